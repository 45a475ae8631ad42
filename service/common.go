package service

import (
	"log/slog"
	"strconv"

	"github.com/FAIRDataPipeline/data-registry/config"
)

func serviceLogger() *slog.Logger {
	if config.AppLogger != nil {
		return config.AppLogger.With("layer", "service")
	}
	if config.AppConfig == nil {
		return slog.Default().With("layer", "service")
	}

	logger := config.EnsureLoggerInitialized()
	if logger == nil {
		return slog.Default().With("layer", "service")
	}
	return logger.With("layer", "service")
}

func uintString(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
