package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/username/steuerrechner/backend/src/config"
	"github.com/username/steuerrechner/backend/src/logger"
	"github.com/username/steuerrechner/backend/src/services"
	"github.com/username/steuerrechner/backend/src/utils"
)

type ReportHandler struct {
	reportService services.ReportService
}

func NewReportHandler(service services.ReportService) *ReportHandler {
	return &ReportHandler{
		reportService: service,
	}
}

// HandleUpload accepts one or more FlexQuery CSV files under the multipart
// field "files" and answers with the report ID and the years it covers.
func (h *ReportHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(config.Cfg.MaxUploadSizeBytes); err != nil {
		logger.L.Warn("Failed to parse multipart form or request too large", "error", err, "limit", config.Cfg.MaxUploadSizeBytes)
		utils.SendJSONError(w, fmt.Sprintf("Failed to parse form or request too large (max %d MB)", config.Cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}

	fileHeaders := r.MultipartForm.File["files"]
	if len(fileHeaders) == 0 {
		utils.SendJSONError(w, "No files uploaded. Ensure the 'files' field is used.", http.StatusBadRequest)
		return
	}

	var files []services.UploadFile
	for _, fileHeader := range fileHeaders {
		if fileHeader.Size > config.Cfg.MaxUploadSizeBytes {
			logger.L.Warn("Uploaded file too large", "filename", fileHeader.Filename, "fileSize", fileHeader.Size, "limit", config.Cfg.MaxUploadSizeBytes)
			utils.SendJSONError(w, fmt.Sprintf("File %s too large, max %d MB", fileHeader.Filename, config.Cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
			return
		}
		file, err := fileHeader.Open()
		if err != nil {
			logger.L.Warn("Failed to open uploaded file", "filename", fileHeader.Filename, "error", err)
			utils.SendJSONError(w, "Failed to read uploaded file.", http.StatusBadRequest)
			return
		}
		defer file.Close()
		files = append(files, services.UploadFile{Filename: fileHeader.Filename, Reader: file})
	}

	logger.L.Info("Processing upload request", "files", len(files))
	summary, err := h.reportService.ProcessUpload(files)
	if err != nil {
		if errors.Is(err, services.ErrParsingFailed) {
			logger.L.Warn("Upload processing failed due to CSV parsing errors", "error", err)
			utils.SendJSONError(w, fmt.Sprintf("Error parsing CSV file: %v", err), http.StatusBadRequest)
		} else {
			logger.L.Error("Internal error processing upload", "error", err)
			utils.SendJSONError(w, "An internal error occurred while processing the file. Please try again later.", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, summary)
}

// HandleGetYears answers GET /api/reports/{reportID}/years.
func (h *ReportHandler) HandleGetYears(w http.ResponseWriter, r *http.Request) {
	reportID := r.PathValue("reportID")
	years, err := h.reportService.GetYears(reportID)
	if err != nil {
		if errors.Is(err, services.ErrReportNotFound) {
			utils.SendJSONError(w, "Report not found or expired. Please upload again.", http.StatusNotFound)
		} else {
			logger.L.Error("Error retrieving report years", "reportID", reportID, "error", err)
			utils.SendJSONError(w, "An internal error occurred.", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, map[string]any{"reportId": reportID, "years": years})
}

// HandleGetYearResults answers GET /api/reports/{reportID}/years/{year} with
// every result table of that year, guarded by an ETag so an unchanged report
// is not re-sent.
func (h *ReportHandler) HandleGetYearResults(w http.ResponseWriter, r *http.Request) {
	reportID := r.PathValue("reportID")
	year, err := strconv.Atoi(r.PathValue("year"))
	if err != nil {
		utils.SendJSONError(w, "Invalid year.", http.StatusBadRequest)
		return
	}

	results, err := h.reportService.GetYearResults(reportID, year)
	if err != nil {
		if errors.Is(err, services.ErrReportNotFound) {
			utils.SendJSONError(w, "Report not found or expired. Please upload again.", http.StatusNotFound)
		} else {
			logger.L.Error("Error retrieving year results", "reportID", reportID, "year", year, "error", err)
			utils.SendJSONError(w, "An internal error occurred.", http.StatusInternalServerError)
		}
		return
	}

	etag, err := utils.GenerateETag(results)
	if err == nil {
		if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
	}

	writeJSON(w, results)
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.L.Error("Error encoding JSON response", "error", err)
	}
}
