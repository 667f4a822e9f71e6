package obslog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu           sync.RWMutex
	globalLogger = zap.NewNop()
)

// L returns the process-wide logger.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return globalLogger
}

func Set(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	mu.Lock()
	globalLogger = l
	mu.Unlock()
}

type Options struct {
	Level     string
	Format    string
	ToConsole bool
	ToFile    bool
	FilePath  string
	Caller    bool
}

func OptionsFromEnv() Options {
	return Options{
		Level:     getenvDefault("LOG_LEVEL", "info"),
		Format:    getenvDefault("LOG_FORMAT", "legacy"),
		ToConsole: strings.EqualFold(getenvDefault("LOG_TO_CONSOLE", "true"), "true"),
		ToFile:    strings.EqualFold(getenvDefault("LOG_TO_FILE", "false"), "true"),
		FilePath:  strings.TrimSpace(getenvDefault("LOG_FILE", filepath.Join("logs", "checkora.log"))),
		Caller:    strings.EqualFold(getenvDefault("LOG_CALLER", "false"), "true"),
	}
}

// InitFromEnv builds the global logger from LOG_* variables.
func InitFromEnv() (*zap.Logger, error) {
	l, err := New(OptionsFromEnv())
	if err != nil {
		return nil, err
	}
	Set(l)
	return l, nil
}

func New(opt Options) (*zap.Logger, error) {
	level := parseLevel(opt.Level)
	format := strings.ToLower(strings.TrimSpace(opt.Format))
	if format != "legacy" && format != "json" && format != "console" {
		format = "legacy"
	}

	var cores []zapcore.Core
	if opt.ToConsole {
		cores = append(cores, zapcore.NewCore(encoderFor(format), zapcore.AddSync(os.Stdout), level))
	}
	if opt.ToFile {
		path := opt.FilePath
		if path == "" {
			path = filepath.Join("logs", "checkora.log")
		}
		if err := ensureDir(filepath.Dir(path)); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		cores = append(cores, zapcore.NewCore(encoderFor(format), zapcore.AddSync(f), level))
	}
	if len(cores) == 0 {
		enc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(os.Stdout), level))
	}

	logger := zap.New(zapcore.NewTee(cores...))
	if opt.Caller || format == "legacy" {
		logger = logger.WithOptions(zap.AddCaller())
	}
	return logger.WithOptions(zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

func encoderFor(format string) zapcore.Encoder {
	switch format {
	case "json":
		return zapcore.NewJSONEncoder(jsonEncoderConfig())
	case "console":
		return zapcore.NewConsoleEncoder(consoleEncoderConfig())
	default:
		return zapcore.NewConsoleEncoder(legacyEncoderConfig())
	}
}

func ensureDir(dir string) error {
	if strings.TrimSpace(dir) == "" || dir == "." {
		return nil
	}
	if _, err := os.Stat(dir); err == nil {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func legacyEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.ConsoleSeparator = " | "
	return cfg
}

func consoleEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return cfg
}

func jsonEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
	return cfg
}
