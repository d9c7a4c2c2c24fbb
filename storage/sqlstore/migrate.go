package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed migrations
var migrations embed.FS

// migrateUp applies pending migrations. It is idempotent and safe to call
// multiple times.
func migrateUp(ctx context.Context, db *sql.DB, driver string, logger *zap.Logger) error {
	src, err := iofs.New(migrations, "migrations/"+driver)
	if err != nil {
		return fmt.Errorf("failed to open migration source: %w", err)
	}

	var (
		target     database.Driver
		targetName string
		ownsTarget bool
	)
	switch driver {
	case DriverSQLite:
		// The sqlite3 driver closes the *sql.DB it was given; never close it here.
		target, err = sqlite3.WithInstance(db, &sqlite3.Config{})
		targetName = "sqlite3"
	case DriverPostgres:
		var conn *sql.Conn
		conn, err = db.Conn(ctx)
		if err == nil {
			target, err = postgres.WithConnection(ctx, conn, &postgres.Config{})
			if err != nil {
				conn.Close()
			}
		}
		targetName = "postgres"
		ownsTarget = true
	default:
		err = fmt.Errorf("no migrations for driver %q", driver)
	}
	if err != nil {
		src.Close()
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, targetName, target)
	if err != nil {
		src.Close()
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	defer func() {
		if ownsTarget {
			srcErr, dbErr := m.Close()
			if srcErr != nil {
				logger.Warn("failed to close migration source", zap.Error(srcErr))
			}
			if dbErr != nil {
				logger.Warn("failed to close migration connection", zap.Error(dbErr))
			}
			return
		}
		if err := src.Close(); err != nil {
			logger.Warn("failed to close migration source", zap.Error(err))
		}
	}()

	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Debug("no migrations to apply (database up-to-date)")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, _, _ := m.Version()
	logger.Info("applied migrations", zap.Uint("version", version))
	return nil
}
