package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/regmap/core"
	"github.com/poiesic/regmap/storage"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// insertBatchSize keeps multi-row inserts under SQLite's bound-variable limit.
const insertBatchSize = 500

// Config selects and locates the database.
type Config struct {
	// Driver is DriverSQLite or DriverPostgres. Default: DriverSQLite.
	Driver string

	// DSN is a file path (SQLite) or a connection URL (PostgreSQL).
	// An empty SQLite DSN opens a private in-memory database.
	DSN string

	// Logger receives GORM and migration logs. Default: zap.L().
	Logger *zap.Logger

	// SlowThreshold marks queries logged as slow. Default: one second.
	SlowThreshold time.Duration
}

// Store implements storage.Store.
type Store struct {
	db     *gorm.DB
	sqlDB  *sql.DB
	driver string
	logger *zap.Logger
}

var _ storage.Store = (*Store)(nil)

type txKey struct{}

// Open connects to the database and applies pending migrations.
func Open(ctx context.Context, cfg Config) (storage.Store, error) {
	return open(ctx, cfg)
}

func open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Driver == "" {
		cfg.Driver = DriverSQLite
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.L()
	}
	if cfg.SlowThreshold <= 0 {
		cfg.SlowThreshold = time.Second
	}
	logger := cfg.Logger.Named("sqlstore").With(zap.String("driver", cfg.Driver))

	var dialector gorm.Dialector
	switch cfg.Driver {
	case DriverSQLite:
		dialector = sqlite.Open(sqliteDSN(cfg.DSN))
	case DriverPostgres:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("%w: postgres requires a DSN", storage.ErrInvalidQuery)
		}
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("%w: unknown driver %q", storage.ErrInvalidQuery, cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger: gormlogger.New(zap.NewStdLog(logger.Named("gorm")), gormlogger.Config{
			SlowThreshold:             cfg.SlowThreshold,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %w", core.ErrPersistence, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrPersistence, err)
	}
	if cfg.Driver == DriverSQLite {
		// One writer; also keeps a memory database alive for the life of the pool.
		sqlDB.SetMaxOpenConns(1)
	}

	if err := migrateUp(ctx, sqlDB, cfg.Driver, logger); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("%w: migrate: %w", core.ErrPersistence, err)
	}

	return &Store{db: db, sqlDB: sqlDB, driver: cfg.Driver, logger: logger}, nil
}

// NewMemoryStore opens a migrated in-memory SQLite store for testing.
// Caller must close the store when done.
func NewMemoryStore(ctx context.Context) (storage.Store, error) {
	return open(ctx, Config{Driver: DriverSQLite})
}

// sqliteDSN turns a path into a DSN with foreign keys enforced.
func sqliteDSN(dsn string) string {
	if dsn == "" || dsn == ":memory:" {
		dsn = "file:regmap-" + uuid.NewString() + "?mode=memory&cache=shared"
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_foreign_keys=on&_busy_timeout=5000"
}

// conn returns the transaction carried by ctx, or the pool.
func (s *Store) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return s.db.WithContext(ctx)
}

// WithTransaction runs fn in a transaction carried by its ctx. Errors from fn
// are returned unchanged; a failed begin or commit wraps storage.ErrTransactionFailed.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	var fnErr error
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fnErr = fn(context.WithValue(ctx, txKey{}, tx))
		return fnErr
	})
	if err != nil && fnErr == nil {
		return fmt.Errorf("%w: %w", storage.ErrTransactionFailed, translate(err))
	}
	return err
}

// Close closes the database pool.
func (s *Store) Close() error {
	return s.sqlDB.Close()
}

// translate maps GORM errors onto storage and core sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return storage.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %w: %w", core.ErrPersistence, storage.ErrDuplicateKey, err)
	case errors.Is(err, sql.ErrConnDone), errors.Is(err, sql.ErrTxDone):
		return fmt.Errorf("%w: %w: %w", core.ErrPersistence, storage.ErrStorageClosed, err)
	default:
		return fmt.Errorf("%w: %w", core.ErrPersistence, err)
	}
}
