package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	APIBaseURL         string
	RealtimeURL        string
	Email              string
	Password           string
	PollInterval       time.Duration
	RevalidateDebounce time.Duration
	ReadRetries        int
	ReconnectBase      time.Duration
	ReconnectAttempts  int
	OTLPEndpoint       string
	OTLPInsecure       bool
}

type BackendConfig struct {
	Port               string
	RateLimitPerMinute int
	RateLimitBurst     int
	OTLPEndpoint       string
	OTLPInsecure       bool
}

func Load() Config {
	base := os.Getenv("API_BASE_URL")
	if base == "" {
		base = "http://localhost:8080/api"
	}
	realtime := os.Getenv("REALTIME_URL")
	if realtime == "" {
		realtime = "ws://localhost:8080/realtime"
	}

	return Config{
		APIBaseURL:         base,
		RealtimeURL:        realtime,
		Email:              os.Getenv("CLINIC_EMAIL"),
		Password:           os.Getenv("CLINIC_PASSWORD"),
		PollInterval:       readDurationSeconds("POLL_INTERVAL_SECONDS", 30),
		RevalidateDebounce: readDurationMillis("REVALIDATE_DEBOUNCE_MS", 250),
		ReadRetries:        readInt("READ_RETRIES", 3),
		ReconnectBase:      readDurationSeconds("RECONNECT_BASE_SECONDS", 2),
		ReconnectAttempts:  readInt("RECONNECT_MAX_ATTEMPTS", 5),
		OTLPEndpoint:       os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTLPInsecure:       readBool("OTEL_EXPORTER_OTLP_INSECURE", false),
	}
}

func LoadBackend() BackendConfig {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	return BackendConfig{
		Port:               port,
		RateLimitPerMinute: readInt("RATE_LIMIT_PER_MIN", 120),
		RateLimitBurst:     readInt("RATE_LIMIT_BURST", 30),
		OTLPEndpoint:       os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTLPInsecure:       readBool("OTEL_EXPORTER_OTLP_INSECURE", false),
	}
}

func readDurationSeconds(key string, fallback int) time.Duration {
	value := readInt(key, fallback)
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Second
}

func readDurationMillis(key string, fallback int) time.Duration {
	value := readInt(key, fallback)
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Millisecond
}

func readBool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
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
