package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	EngineModeProcess = "process"
	EngineModeLibrary = "library"
)

type AppConfig struct {
	HTTPAddr string

	EngineMode       string
	EnginePath       string
	EngineTimeoutSec int
	EngineMaxProcs   int

	RedisURL    string
	DatabaseURL string

	SessionTTLSec     int
	SessionCookie     string
	ClockStartSec     int
	PersistQueryCache bool
	HistoryLimit      int

	MessagesDir string
}

func (c *AppConfig) EngineTimeout() time.Duration {
	return time.Duration(c.EngineTimeoutSec) * time.Second
}

func (c *AppConfig) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLSec) * time.Second
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		HTTPAddr:          ":8080",
		EngineMode:        EngineModeProcess,
		EnginePath:        "./engine/checkora-engine",
		EngineTimeoutSec:  5,
		SessionTTLSec:     86400,
		SessionCookie:     "checkora_sid",
		ClockStartSec:     600,
		PersistQueryCache: true,
		HistoryLimit:      10,
	}

	if v := strings.TrimSpace(os.Getenv("HTTP_ADDR")); v != "" {
		cfg.HTTPAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("ENGINE_MODE")); v != "" {
		cfg.EngineMode = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv("ENGINE_PATH")); v != "" {
		cfg.EnginePath = v
	}
	if v := strings.TrimSpace(os.Getenv("ENGINE_TIMEOUT_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EngineTimeoutSec = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("ENGINE_MAX_PROCS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EngineMaxProcs = n
		}
	}

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))

	if v := strings.TrimSpace(os.Getenv("SESSION_TTL_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SessionTTLSec = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("SESSION_COOKIE")); v != "" {
		cfg.SessionCookie = v
	}
	if v := strings.TrimSpace(os.Getenv("CLOCK_START_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ClockStartSec = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("PERSIST_QUERY_CACHE")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.PersistQueryCache = b
		}
	}
	if v := strings.TrimSpace(os.Getenv("HISTORY_LIMIT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HistoryLimit = n
		}
	}
	cfg.MessagesDir = strings.TrimSpace(os.Getenv("MESSAGES_DIR"))

	switch cfg.EngineMode {
	case EngineModeProcess:
		if cfg.EnginePath == "" {
			return nil, fmt.Errorf("ENGINE_PATH is required when ENGINE_MODE=%s", EngineModeProcess)
		}
	case EngineModeLibrary:
	default:
		return nil, fmt.Errorf("unsupported ENGINE_MODE %q", cfg.EngineMode)
	}

	return cfg, nil
}
