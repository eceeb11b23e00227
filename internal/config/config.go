package config

import (
	"os"
	"strconv"
	"time"

	"affection_pvp/internal/logger"

	"github.com/joho/godotenv"
)

// Config holds the pairing server settings.
type Config struct {
	AppPort       string
	DatabaseURL   string
	AllowedOrigin string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	LogLevel string
	LogJSON  bool

	// PvP limits
	MaxBet         int
	QueueTimeout   time.Duration
	MatchMaxTime   time.Duration
	ReportGrace    time.Duration
	WSRateLimit    int
	WSRateWindow   time.Duration
	APIRateLimit   int
	APIRateWindow  time.Duration
	CleanupEvery   time.Duration
	StaleRoomAfter time.Duration
}

// ClientConfig holds settings for headless PvP clients.
type ClientConfig struct {
	WSBaseURL string
	LogLevel  string
	LogJSON   bool
}

// Load reads the server config from env (and .env if present)
func Load() *Config {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Fatal("DATABASE_URL is not set")
	}

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8000"
	}

	return &Config{
		AppPort:        port,
		DatabaseURL:    dbURL,
		AllowedOrigin:  os.Getenv("ALLOWED_ORIGIN"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RedisDB:        envInt("REDIS_DB", 0),
		LogLevel:       envString("LOG_LEVEL", "info"),
		LogJSON:        os.Getenv("LOG_JSON") == "true",
		MaxBet:         envInt("PVP_MAX_BET", 100),
		QueueTimeout:   time.Duration(envInt("PVP_QUEUE_TIMEOUT_SECONDS", 30)) * time.Second,
		MatchMaxTime:   time.Duration(envInt("PVP_MATCH_MAX_SECONDS", 180)) * time.Second,
		ReportGrace:    time.Duration(envInt("PVP_REPORT_GRACE_MS", 5000)) * time.Millisecond,
		WSRateLimit:    envInt("WS_RATE_LIMIT", 30),
		WSRateWindow:   time.Duration(envInt("WS_RATE_WINDOW_SECONDS", 60)) * time.Second,
		APIRateLimit:   envInt("API_RATE_LIMIT", 60),
		APIRateWindow:  time.Duration(envInt("API_RATE_WINDOW_SECONDS", 60)) * time.Second,
		CleanupEvery:   time.Duration(envInt("PVP_CLEANUP_MINUTES", 10)) * time.Minute,
		StaleRoomAfter: time.Hour,
	}
}

// LoadClient reads client settings from env (and .env if present)
func LoadClient() *ClientConfig {
	_ = godotenv.Load()

	return &ClientConfig{
		WSBaseURL: envString("PVP_WS_URL", "ws://localhost:8000"),
		LogLevel:  envString("LOG_LEVEL", "info"),
		LogJSON:   os.Getenv("LOG_JSON") == "true",
	}
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envInt returns def when the variable is unset, malformed or not positive
func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
