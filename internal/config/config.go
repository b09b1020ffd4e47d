package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	DataPath      string
	BaseURL       string
	MemoryTimeout time.Duration
	MaxSamples    int
	Delay         time.Duration
	StatePath     string
	LogLevel      string
	DatabaseURL   string
	NatsURL       string
	NatsToken     string
	SlackBotToken string
	SlackChannel  string
	StubPort      int
}

func Load() Config {
	return Config{
		DataPath:      envStr("LOCOMO_DATA", "benchmarks/EasyLocomo/data/locomo10.json"),
		BaseURL:       envStr("MEMORY_BASE_URL", "http://localhost:1337"),
		MemoryTimeout: envDuration("MEMORY_TIMEOUT", 60*time.Second),
		MaxSamples:    envInt("INGEST_SAMPLES", 0),
		Delay:         envDuration("INGEST_DELAY", time.Second),
		StatePath:     envStr("INGEST_STATE_PATH", "~/.locomo-ingest/state.json"),
		LogLevel:      envStr("LOG_LEVEL", "info"),
		DatabaseURL:   envStr("DATABASE_URL", ""),
		NatsURL:       envStr("NATS_URL", ""),
		NatsToken:     envStr("NATS_TOKEN", ""),
		SlackBotToken: envStr("SLACK_BOT_TOKEN", ""),
		SlackChannel:  envStr("SLACK_CHANNEL", ""),
		StubPort:      envInt("STUB_PORT", 1337),
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
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// envDuration accepts Go durations ("1.5s") or plain seconds ("1.5").
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil && secs >= 0 {
		return time.Duration(secs * float64(time.Second))
	}
	return fallback
}
