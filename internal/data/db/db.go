// Package db opens the durable session store. Postgres is the primary
// backend; SQLite (optionally in-memory) serves local development, tests and
// as a degraded fallback when Postgres is unreachable.
package db

import (
	"fmt"
	stdlog "log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/dentsim/dentsim-backend/internal/config"
	"github.com/dentsim/dentsim-backend/internal/domain"
	"github.com/dentsim/dentsim-backend/internal/platform/logger"
	"github.com/dentsim/dentsim-backend/internal/utils"
)

type Service struct {
	db  *gorm.DB
	log *logger.Logger
}

// New opens the configured database. When the postgres driver is selected but
// the connection fails, it falls back to an in-memory SQLite database so the
// process can still serve (state then lives only as long as the process).
func New(cfg config.DatabaseConfig, logg *logger.Logger) (*Service, error) {
	serviceLog := logg.With("service", "DBService")

	switch cfg.Driver {
	case "postgres":
		svc, err := openPostgres(logg, serviceLog)
		if err == nil {
			return svc, nil
		}
		serviceLog.Warn("Postgres unavailable, falling back to in-memory SQLite", "error", err)
		return openSQLite("file::memory:?cache=shared", serviceLog)
	case "", "sqlite":
		path := cfg.SQLitePath
		if path == "" {
			path = "simulator.db"
		}
		return openSQLite(path, serviceLog)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

func openPostgres(logg, serviceLog *logger.Logger) (*Service, error) {
	host := utils.GetEnv("POSTGRES_HOST", "localhost", logg)
	port := utils.GetEnv("POSTGRES_PORT", "5432", logg)
	user := utils.GetEnv("POSTGRES_USER", "postgres", logg)
	password := utils.GetEnv("POSTGRES_PASSWORD", "", logg)
	name := utils.GetEnv("POSTGRES_NAME", "dentsim", logg)

	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		user, password, host, port, name,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   newGormLogger(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	return &Service{db: db, log: serviceLog}, nil
}

func openSQLite(path string, serviceLog *logger.Logger) (*Service, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: newGormLogger(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite at %s: %w", path, err)
	}
	// SQLite serializes writers; a single connection avoids lock contention
	// and keeps in-memory databases on one shared handle.
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	return &Service{db: db, log: serviceLog}, nil
}

func newGormLogger() gormLogger.Interface {
	return gormLogger.New(
		stdlog.New(os.Stdout, "\r\n", stdlog.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

func (s *Service) DB() *gorm.DB { return s.db }

func (s *Service) AutoMigrateAll() error {
	s.log.Info("Auto migrating session tables...")
	if err := s.db.AutoMigrate(
		&domain.StudentSession{},
		&domain.ChatLog{},
		&domain.ExamResult{},
	); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	return nil
}
