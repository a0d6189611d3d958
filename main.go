package main

import (
	"encoding/json"
	stdlog "log"
	"net/http"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/steuerrechner/backend/src/config"
	"github.com/username/steuerrechner/backend/src/database"
	"github.com/username/steuerrechner/backend/src/handlers"
	"github.com/username/steuerrechner/backend/src/logger"
	"github.com/username/steuerrechner/backend/src/parsers"
	"github.com/username/steuerrechner/backend/src/services"
	"golang.org/x/time/rate"
)

var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			logger.L.Warn("rate limit exceeded",
				"method", r.Method, "path", r.URL.Path, "remoteAddr", r.RemoteAddr)
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

var allowedOrigins = map[string]bool{
	"http://localhost:3000": true,
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case allowedOrigins[origin]:
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, If-None-Match")
			w.Header().Set("Access-Control-Expose-Headers", "ETag")
		case origin == "":
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)
	logger.L.Info("steuerrechner backend starting")

	database.InitDB(config.Cfg.DatabasePath)
	logger.L.Info("database ready", "path", config.Cfg.DatabasePath)

	reportCache := cache.New(services.DefaultCacheExpiration, services.CacheCleanupInterval)
	reportService := services.NewReportService(parsers.NewFlexQueryParser(), reportCache)
	reportHandler := handlers.NewReportHandler(reportService)

	apiRouter := http.NewServeMux()
	apiRouter.HandleFunc("POST /api/upload", reportHandler.HandleUpload)
	apiRouter.HandleFunc("GET /api/reports/{reportID}/years", reportHandler.HandleGetYears)
	apiRouter.HandleFunc("GET /api/reports/{reportID}/years/{year}", reportHandler.HandleGetYearResults)

	rootMux := http.NewServeMux()
	rootMux.Handle("/api/", apiRouter)
	rootMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" && r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"message": "steuerrechner backend is running"})
			return
		}
		if !strings.HasPrefix(r.URL.Path, "/api/") {
			http.NotFound(w, r)
		}
	})

	server := &http.Server{
		Addr:         ":" + config.Cfg.Port,
		Handler:      enableCORS(rateLimitMiddleware(rootMux)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("server listening", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.L.Error("server failed", "error", err)
		stdlog.Fatalf("server failed: %v", err)
	}
}
