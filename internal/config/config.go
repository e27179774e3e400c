package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port               string
	BackendURL         string
	AdminAPIKey        string
	PublicURL          string
	StaticDir          string
	PollInterval       time.Duration
	RequestTimeout     time.Duration
	ChartWindow        int
	RateLimitPerMinute int
	RateLimitBurst     int
	LogLevel           string
	LogFormat          string
	LogOutput          string
}

func Load() Config {
	port := os.Getenv("KIOSK_PORT")
	if port == "" {
		port = "8090"
	}

	return Config{
		Port:               port,
		BackendURL:         strings.TrimRight(readString("BACKEND_URL", "http://localhost:5000/api"), "/"),
		AdminAPIKey:        os.Getenv("ADMIN_API_KEY"),
		PublicURL:          strings.TrimRight(readString("PUBLIC_URL", "http://localhost:"+port), "/"),
		StaticDir:          os.Getenv("STATIC_DIR"),
		PollInterval:       readDurationSeconds("POLL_INTERVAL_SECONDS", 5),
		RequestTimeout:     readDurationSeconds("REQUEST_TIMEOUT_SECONDS", 5),
		ChartWindow:        readInt("CHART_WINDOW", 10),
		RateLimitPerMinute: readInt("RATE_LIMIT_PER_MIN", 120),
		RateLimitBurst:     readInt("RATE_LIMIT_BURST", 30),
		LogLevel:           readString("LOG_LEVEL", "info"),
		LogFormat:          readString("LOG_FORMAT", "console"),
		LogOutput:          readString("LOG_OUTPUT", "stdout"),
	}
}

func readString(key, fallback string) string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	return raw
}

func readDurationSeconds(key string, fallback int) time.Duration {
	value := readInt(key, fallback)
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Second
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
