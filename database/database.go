package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"raceday-api/models"
)

// Options controls the connection pool and gorm logging.
type Options struct {
	MaxOpenConns int
	IdleTimeout  time.Duration
	Debug        bool
}

// DefaultIdleTimeout releases idle connections quickly so short bursts do not
// pin server-side slots.
const DefaultIdleTimeout = 5 * time.Second

func Initialize(driver, databaseURL string, opts Options) (*gorm.DB, error) {
	dialector, err := openDialector(driver, databaseURL)
	if err != nil {
		return nil, err
	}

	logLevel := logger.Warn
	if opts.Debug {
		logLevel = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
		sqlDB.SetMaxIdleConns(opts.MaxOpenConns)
	}
	idle := opts.IdleTimeout
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	sqlDB.SetConnMaxIdleTime(idle)

	return db, nil
}

func openDialector(driver, databaseURL string) (gorm.Dialector, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is empty")
	}

	switch driver {
	case "postgres":
		return postgres.Open(databaseURL), nil
	case "mysql":
		return mysql.Open(databaseURL), nil
	case "sqlite":
		return sqlite.Open(databaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Ping checks that a pooled connection can reach the database.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func Migrate(db *gorm.DB) error {
	// Routes first: events reference them.
	err := db.AutoMigrate(
		&models.Route{},
		&models.Event{},
		&models.Registration{},
		&models.StartNumberCounter{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	if err := addCustomIndexes(db); err != nil {
		return fmt.Errorf("failed to add custom indexes: %w", err)
	}

	addDatabaseConstraints(db)

	return nil
}

func addCustomIndexes(db *gorm.DB) error {
	// The orphan sweep looks files up by URL.
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_routes_route_url ON routes(route_url)").Error; err != nil {
		return err
	}

	// Admin listing of an event's registrations is ordered by start number.
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_event_registrations_event_start ON event_registrations(event_id, start_number)").Error; err != nil {
		return err
	}

	return nil
}

// addDatabaseConstraints adds checks the models cannot express. Failures are
// logged, since re-running against an existing schema reports duplicates.
func addDatabaseConstraints(db *gorm.DB) {
	// SQLite cannot add constraints to an existing table.
	if db.Dialector.Name() == "sqlite" {
		return
	}

	checks := map[string]string{
		"ck_routes_distance_non_negative": "ALTER TABLE routes ADD CONSTRAINT ck_routes_distance_non_negative CHECK (distance_m >= 0)",
		"ck_routes_ascent_non_negative":   "ALTER TABLE routes ADD CONSTRAINT ck_routes_ascent_non_negative CHECK (ascent_m >= 0)",
		"ck_routes_descent_non_negative":  "ALTER TABLE routes ADD CONSTRAINT ck_routes_descent_non_negative CHECK (descent_m >= 0)",
		"ck_event_registrations_start":    "ALTER TABLE event_registrations ADD CONSTRAINT ck_event_registrations_start CHECK (start_number > 0)",
	}

	for name, stmt := range checks {
		if err := db.Exec(stmt).Error; err != nil {
			slog.Warn("could not add database constraint", "constraint", name, "error", err)
		}
	}
}
