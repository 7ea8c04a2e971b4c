package storage

import (
	"fmt"
	"log/slog"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Options selects and configures the SQL backend.
type Options struct {
	Driver string // sqlite (default) or postgres
	DSN    string // file path for sqlite, connection string for postgres
	Trace  bool   // emit OpenTelemetry spans per query
	Debug  bool   // log every statement
}

// SQLAdapter implements the repository ports on top of GORM.
type SQLAdapter struct {
	db *gorm.DB
}

// Open connects, migrates the schema and returns the adapter.
func Open(opts Options) (*SQLAdapter, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(opts.Driver) {
	case "", DriverSQLite:
		dialector = sqlite.Open(opts.DSN)
	case DriverPostgres:
		dialector = postgres.Open(opts.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}

	level := logger.Silent
	if opts.Debug {
		level = logger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", opts.Driver, err)
	}

	if opts.Trace {
		if err := db.Use(tracing.NewPlugin()); err != nil {
			return nil, fmt.Errorf("failed to enable query tracing: %w", err)
		}
	}

	return NewSQLAdapter(db)
}

// NewSQLAdapter migrates an existing handle.
func NewSQLAdapter(db *gorm.DB) (*SQLAdapter, error) {
	if err := migrate(db); err != nil {
		return nil, err
	}
	return &SQLAdapter{db: db}, nil
}

func migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&ScanModel{},
		&ObservationModel{},
		&NotificationModel{},
		&TechAlertModel{},
		&ModelStateModel{},
		&UserModel{},
		&AuditLogModel{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	// Create Indices for Performance
	stmts := []string{
		"CREATE INDEX IF NOT EXISTS idx_scans_timestamp ON scan_models(timestamp)",
		"CREATE INDEX IF NOT EXISTS idx_notifications_user_read ON notification_models(username, is_read)",
		"CREATE INDEX IF NOT EXISTS idx_alerts_read ON tech_alert_models(is_read)",
	}
	for _, s := range stmts {
		if err := db.Exec(s).Error; err != nil {
			slog.Warn("Failed to create index", "statement", s, "error", err)
		}
	}
	return nil
}

// Close releases the underlying connection pool.
func (a *SQLAdapter) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
