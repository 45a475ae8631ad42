package db

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/FAIRDataPipeline/data-registry/config"
	"github.com/FAIRDataPipeline/data-registry/entity"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func InitDB() error {
	if config.AppConfig == nil {
		return errors.New("app config is not initialized")
	}

	db, err := Open(config.AppConfig.DB)
	if err != nil {
		return err
	}
	if err := EnsureTables(db); err != nil {
		return err
	}

	DB = db
	return nil
}

// Open connects to MySQL without touching the schema.
func Open(cfg config.DBConfig) (*gorm.DB, error) {
	if !strings.EqualFold(cfg.Driver, "mysql") {
		return nil, fmt.Errorf("unsupported db driver: %s", cfg.Driver)
	}

	tz := cfg.Timezone
	if strings.TrimSpace(tz) == "" {
		tz = "UTC"
	}
	dsn := fmt.Sprintf(
		"%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=%s&timeout=5s&readTimeout=10s&writeTimeout=10s",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DBName,
		url.QueryEscape(tz),
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		PrepareStmt: true,
		Logger:      logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf(
			"connect mysql failed (host=%s port=%d db=%s user=%s): %w",
			cfg.Host, cfg.Port, cfg.DBName, cfg.User, err,
		)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get underlying sql.DB failed: %w", err)
	}
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("mysql ping failed: %w", err)
	}
	return db, nil
}

func registryModels() []interface{} {
	// 顺序按外键依赖排列
	return []interface{}{
		&entity.User{},
		&entity.Author{},
		&entity.UserAuthor{},
		&entity.FileType{},
		&entity.StorageRoot{},
		&entity.StorageLocation{},
		&entity.Object{},
		&entity.Licence{},
		&entity.ObjectComponent{},
		&entity.CodeRun{},
		&entity.CodeRepoRelease{},
		&entity.Namespace{},
		&entity.DataProduct{},
		&entity.ExternalObject{},
	}
}

// EnsureTables auto-migrates every registry table that does not exist yet.
func EnsureTables(db *gorm.DB) error {
	for _, m := range registryModels() {
		if db.Migrator().HasTable(m) {
			continue
		}
		if err := db.AutoMigrate(m); err != nil {
			return fmt.Errorf("auto migrate missing table failed: %w", err)
		}
	}
	return nil
}

func Close() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	DB = nil
	return sqlDB.Close()
}
