package config

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	AppLogger   *slog.Logger
	loggerInitM sync.Mutex
)

const defaultLogPath = "logs/registry.log"

func ensureLogDir(path string) error {
	// path 可能是文件也可能是目录
	dir := path
	if filepath.Ext(path) != "" {
		dir = filepath.Dir(path)
	}
	return os.MkdirAll(dir, 0o755)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func buildLogger(logPath string, level slog.Level) *slog.Logger {
	if strings.TrimSpace(logPath) == "" {
		logPath = defaultLogPath
	}

	if err := ensureLogDir(logPath); err != nil {
		fmt.Printf("failed to create log directory: %v\n", err)
		return slog.Default()
	}

	if filepath.Ext(logPath) == "" {
		logPath = filepath.Join(logPath, "registry.log")
	}

	rotating := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    100, // MB
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}

	mw := io.MultiWriter(os.Stdout, rotating)
	handler := slog.NewTextHandler(mw, &slog.HandlerOptions{
		Level:     level,
		AddSource: true,
	})

	logger := slog.New(handler)

	// 标准库 log 也写到同一个输出
	log.SetOutput(mw)
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	logger.Info("logger initialized", "path", logPath, "level", level.String())
	return logger
}

func logSettingsFromConfig() (string, slog.Level) {
	if AppConfig == nil {
		return defaultLogPath, slog.LevelInfo
	}
	return strings.TrimSpace(AppConfig.Log.Path), parseLevel(AppConfig.Log.Level)
}

// InitLogger rebuilds the global logger from the current config.
func InitLogger() *slog.Logger {
	loggerInitM.Lock()
	defer loggerInitM.Unlock()

	AppLogger = buildLogger(logSettingsFromConfig())
	return AppLogger
}

// EnsureLoggerInitialized returns the global logger, building it on first use.
// Before InitConfig has run it falls back to slog.Default so tests never touch the log directory.
func EnsureLoggerInitialized() *slog.Logger {
	loggerInitM.Lock()
	defer loggerInitM.Unlock()

	if AppLogger != nil {
		return AppLogger
	}
	if AppConfig == nil {
		return slog.Default()
	}
	AppLogger = buildLogger(logSettingsFromConfig())
	return AppLogger
}
