package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/FAIRDataPipeline/data-registry/config"
	"github.com/FAIRDataPipeline/data-registry/dao"
	"github.com/FAIRDataPipeline/data-registry/infrastructure/db"
	"github.com/FAIRDataPipeline/data-registry/infrastructure/tracing"
	"github.com/FAIRDataPipeline/data-registry/service"
)

// app holds the wired registry used by serve and the one-shot report commands.
type app struct {
	reports      *service.ReportService
	dataProducts *service.DataProductService
}

// newApp opens the database, the optional redis cache and the tracer from config.AppConfig.
func newApp() (*app, func(), error) {
	cfg := config.AppConfig
	logger := config.EnsureLoggerInitialized().With("layer", "cmd")

	// 1. Initialize database
	if err := db.InitDB(); err != nil {
		return nil, nil, fmt.Errorf("init database failed: %w", err)
	}

	// 2. Redis 可选，未配置时使用内存缓存
	if err := config.InitRedis(); err != nil {
		if !errors.Is(err, config.ErrRedisNotConfigured) && !errors.Is(err, config.ErrRedisNotWanted) {
			logger.Warn("redis unavailable, report cache falls back to memory", "error", err)
		}
	}

	// 3. Tracing
	provider, err := tracing.NewProvider(cfg.Tracing)
	if err != nil {
		_ = db.Close()
		_ = config.CloseRedis()
		return nil, nil, fmt.Errorf("init tracing failed: %w", err)
	}

	cleanup := func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Warn("shutdown tracing failed", "error", err)
		}
		_ = config.CloseRedis()
		_ = db.Close()
	}

	personnel, err := dao.NewPersonnel(cfg.Registry.AuthorisedUserFile)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("load authorised users failed: %w", err)
	}

	reports, err := service.NewReportServiceFromConfig(cfg, dao.NewGraphDAO(personnel), config.RedisClient, provider.Tracer())
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return &app{
		reports:      reports,
		dataProducts: service.NewDataProductService(dao.NewDataProductDAO()),
	}, cleanup, nil
}
