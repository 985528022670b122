package config

import (
	"os"
	"strconv"
)

// Config holds all configuration for the agent runtime server.
type Config struct {
	Port         int
	Version      string
	Telemetry    TelemetryConfig
	TokenCounter TokenCounterConfig
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

// TokenCounterConfig bounds the in-process session usage registry.
type TokenCounterConfig struct {
	MaxSessions int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Port:    envInt("AGENT_RUNTIME_PORT", 8080),
		Version: envStr("AGENT_RUNTIME_VERSION", "0.1.0"),
		Telemetry: TelemetryConfig{
			Enabled:      envBool("OTEL_ENABLED", true),
			OTLPEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:  envStr("OTEL_SERVICE_NAME", "agent-runtime"),
		},
		TokenCounter: TokenCounterConfig{
			MaxSessions: envInt("TOKEN_COUNTER_MAX_SESSIONS", 500),
		},
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
