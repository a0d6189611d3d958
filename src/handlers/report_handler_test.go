package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/steuerrechner/backend/src/config"
	"github.com/username/steuerrechner/backend/src/logger"
	"github.com/username/steuerrechner/backend/src/report"
	"github.com/username/steuerrechner/backend/src/services"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	config.Cfg = &config.AppConfig{
		BaseCurrency:       "EUR",
		MaxUploadSizeBytes: 10 * 1024 * 1024,
		CutOffMonth:        5,
		CutOffDay:          1,
	}
	os.Exit(m.Run())
}

type stubReportService struct {
	summary *services.ReportSummary
	years   []int
	results *services.YearResults
	err     error
}

func (s *stubReportService) ProcessUpload(files []services.UploadFile) (*services.ReportSummary, error) {
	return s.summary, s.err
}

func (s *stubReportService) GetYears(reportID string) ([]int, error) {
	return s.years, s.err
}

func (s *stubReportService) GetYearResults(reportID string, year int) (*services.YearResults, error) {
	return s.results, s.err
}

func newTestMux(service services.ReportService) *http.ServeMux {
	handler := NewReportHandler(service)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/upload", handler.HandleUpload)
	mux.HandleFunc("GET /api/reports/{reportID}/years", handler.HandleGetYears)
	mux.HandleFunc("GET /api/reports/{reportID}/years/{year}", handler.HandleGetYearResults)
	return mux
}

func multipartUpload(t *testing.T, fieldName string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(fieldName, "activity.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("irrelevant, the service is stubbed\n"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestHandleUpload_Success(t *testing.T) {
	mux := newTestMux(&stubReportService{
		summary: &services.ReportSummary{ReportID: "r1", Years: []int{2023}, StatementRows: 3, TradeRows: 2},
	})

	body, contentType := multipartUpload(t, "files")
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var summary services.ReportSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, "r1", summary.ReportID)
	assert.Equal(t, []int{2023}, summary.Years)
}

func TestHandleUpload_MissingFilesField(t *testing.T) {
	mux := newTestMux(&stubReportService{})

	body, contentType := multipartUpload(t, "attachments")
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleUpload_ParsingFailure(t *testing.T) {
	mux := newTestMux(&stubReportService{err: services.ErrParsingFailed})

	body, contentType := multipartUpload(t, "files")
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetYears(t *testing.T) {
	mux := newTestMux(&stubReportService{years: []int{2023, 2022}})

	req := httptest.NewRequest(http.MethodGet, "/api/reports/r1/years", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var payload struct {
		ReportID string `json:"reportId"`
		Years    []int  `json:"years"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "r1", payload.ReportID)
	assert.Equal(t, []int{2023, 2022}, payload.Years)
}

func TestHandleGetYears_NotFound(t *testing.T) {
	mux := newTestMux(&stubReportService{err: services.ErrReportNotFound})

	req := httptest.NewRequest(http.MethodGet, "/api/reports/gone/years", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleGetYearResults_ETag(t *testing.T) {
	mux := newTestMux(&stubReportService{
		results: &services.YearResults{Year: 2023, Deposits: &report.Result{Year: 2023}},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/reports/r1/years/2023", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	// Replaying the request with the ETag skips the body.
	req = httptest.NewRequest(http.MethodGet, "/api/reports/r1/years/2023", nil)
	req.Header.Set("If-None-Match", etag)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestHandleGetYearResults_InvalidYear(t *testing.T) {
	mux := newTestMux(&stubReportService{})

	req := httptest.NewRequest(http.MethodGet, "/api/reports/r1/years/not-a-year", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
