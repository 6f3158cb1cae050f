package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App        AppConfig
	Processing ProcessingConfig
	Session    SessionConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	// ProcessRate is the sustained /api/process rate per second.
	ProcessRate  float64
	ProcessBurst int
}

type ProcessingConfig struct {
	MaxUploadBytes    int64
	Timeout           time.Duration
	CardmemberHints   []string
	CategoryRulesPath string
}

type SessionConfig struct {
	TTL           time.Duration
	SweepInterval time.Duration
}

// IsProd reports whether the service runs in production mode.
func (c *Config) IsProd() bool {
	return c.App.Environment == "production"
}

// Load reads the environment, after an optional .env file.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}
	return FromEnv()
}

// FromEnv builds the configuration from the current environment only.
func FromEnv() *Config {
	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "8000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "spendsense.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			ProcessRate:        getEnvAsFloat("PROCESS_RATE_PER_SECOND", 5),
			ProcessBurst:       getEnvAsInt("PROCESS_BURST", 10),
		},
		Processing: ProcessingConfig{
			MaxUploadBytes:    int64(getEnvAsInt("MAX_UPLOAD_BYTES", 20<<20)),
			Timeout:           getEnvAsDuration("PROCESS_TIMEOUT", 60*time.Second),
			CardmemberHints:   getEnvAsList("CARDMEMBER_HINTS"),
			CategoryRulesPath: getEnv("CATEGORY_RULES_PATH", ""),
		},
		Session: SessionConfig{
			TTL:           getEnvAsDuration("SESSION_TTL", time.Hour),
			SweepInterval: getEnvAsDuration("SESSION_SWEEP_INTERVAL", 5*time.Minute),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go durations ("90s") or plain seconds ("90").
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil && value > 0 {
		return value
	}
	if secs, err := strconv.Atoi(strValue); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

// getEnvAsList splits a comma-separated value, dropping empty items.
func getEnvAsList(key string) []string {
	var out []string
	for _, item := range strings.Split(getEnv(key, ""), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
