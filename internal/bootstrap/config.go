package bootstrap

import (
	"os"
	"strconv"
	"time"
)

const version = "0.1.0"

type Config struct {
	ServerAddr string
	LogLevel   string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// DatabaseDSN selects Postgres when set; otherwise notes live in a
	// local sqlite file.
	DatabaseDSN string
	SQLitePath  string

	// BackendURL overrides the stored settings when set.
	BackendURL     string
	BackendTimeout time.Duration

	ExtractorURL        string
	ExtractorInstallCmd string

	BundledWorkletPath string
	ResamplerLocator   string
	ShimWorkletPath    string

	AgentSilence      time.Duration
	HandshakeTimeout  time.Duration
	TelemetryInterval time.Duration
	ReconnectPoll     time.Duration
}

func LoadConfig() *Config {
	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", "127.0.0.1:8090"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       0,

		DatabaseDSN: getEnv("DATABASE_DSN", ""),
		SQLitePath:  getEnv("SQLITE_PATH", "companion.db"),

		BackendURL:     getEnv("BACKEND_URL", ""),
		BackendTimeout: getEnvDuration("BACKEND_TIMEOUT_MS", 30*time.Second),

		ExtractorURL:        getEnv("EXTRACTOR_URL", "http://127.0.0.1:8091"),
		ExtractorInstallCmd: getEnv("EXTRACTOR_INSTALL_CMD", ""),

		BundledWorkletPath: getEnv("BUNDLED_WORKLET_PATH", "/worklets/capture-processor.js"),
		ResamplerLocator:   getEnv("RESAMPLER_LOCATOR", "https://cdn.jsdelivr.net/npm/@alexanderolsen/libsamplerate-js/dist/libsamplerate.worklet.js"),
		ShimWorkletPath:    getEnv("SHIM_WORKLET_PATH", "/worklets/resample-shim.js"),

		AgentSilence:      getEnvDuration("AGENT_SILENCE_MS", 600*time.Millisecond),
		HandshakeTimeout:  getEnvDuration("HANDSHAKE_TIMEOUT_MS", 10*time.Second),
		TelemetryInterval: getEnvDuration("TELEMETRY_INTERVAL_MS", 250*time.Millisecond),
		ReconnectPoll:     getEnvDuration("RECONNECT_POLL_MS", 150*time.Millisecond),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if ms, err := strconv.Atoi(value); err == nil && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultValue
}
