package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	Port               string
	DatabasePath       string
	LogLevel           string
	MaxUploadSizeBytes int64

	// BaseCurrency is the account's base currency. German tax amounts are
	// assessed in EUR, so anything else is rejected at startup.
	BaseCurrency string

	// InterestBearingAccount switches the foreign-currency evaluation from
	// private disposal (§23 EStG) to capital income rules.
	InterestBearingAccount bool

	// CutOffMonth/CutOffDay define the default Stillhalter cut-off election:
	// closing buys up to this date of the following year may be attributed
	// to the premium year.
	CutOffMonth int
	CutOffDay   int
}

var Cfg *AppConfig

func LoadConfig() {
	errEnv := godotenv.Load()
	if errEnv != nil {
		log.Println("Info: No .env file found or error loading .env file. Relying on OS environment variables and defaults. Error (if any):", errEnv)
	} else {
		log.Println(".env file loaded successfully.")
	}

	log.Println("Loading application configuration...")

	maxUploadSizeBytesStr := getEnv("MAX_UPLOAD_SIZE_BYTES", "10485760")
	maxUploadSizeBytes, err := strconv.ParseInt(maxUploadSizeBytesStr, 10, 64)
	if err != nil {
		log.Printf("WARNING: Invalid MAX_UPLOAD_SIZE_BYTES format '%s'. Using default 10MB. Error: %v", maxUploadSizeBytesStr, err)
		maxUploadSizeBytes = 10 * 1024 * 1024
	}

	baseCurrency := strings.ToUpper(getEnv("BASE_CURRENCY", "EUR"))
	if baseCurrency != "EUR" {
		log.Fatalf("FATAL: BASE_CURRENCY must be EUR for German tax assessment, got %q", baseCurrency)
	}

	cutOffMonth := getEnvAsInt("CUT_OFF_MONTH", 5)
	cutOffDay := getEnvAsInt("CUT_OFF_DAY", 1)
	if cutOffMonth < 1 || cutOffMonth > 12 || cutOffDay < 1 || cutOffDay > 31 {
		log.Printf("WARNING: Invalid cut-off date %d-%d, using default May 1", cutOffMonth, cutOffDay)
		cutOffMonth, cutOffDay = 5, 1
	}

	Cfg = &AppConfig{
		Port:                   getEnv("PORT", "8080"),
		DatabasePath:           getEnv("DATABASE_PATH", "./steuerrechner.db"),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		MaxUploadSizeBytes:     maxUploadSizeBytes,
		BaseCurrency:           baseCurrency,
		InterestBearingAccount: getEnvAsBool("INTEREST_BEARING_ACCOUNT", false),
		CutOffMonth:            cutOffMonth,
		CutOffDay:              cutOffDay,
	}

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, DBPath=%s, BaseCurrency=%s",
		Cfg.Port, Cfg.LogLevel, Cfg.DatabasePath, Cfg.BaseCurrency)
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Printf("Environment variable %s not set, using default: %s", key, fallback)
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		log.Printf("Integer value for %s not set or empty, using default: %d", key, fallback)
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid boolean value for %s ('%s'), using default: %t", key, valueStr, fallback)
	return fallback
}
