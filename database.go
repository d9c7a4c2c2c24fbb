// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package regmap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/poiesic/regmap/ai"
	"github.com/poiesic/regmap/ai/cached"
	"github.com/poiesic/regmap/ai/hosted"
	"github.com/poiesic/regmap/ai/mock"
	"github.com/poiesic/regmap/ai/openai"
	"github.com/poiesic/regmap/catalog"
	"github.com/poiesic/regmap/config"
	"github.com/poiesic/regmap/core"
	"github.com/poiesic/regmap/lock"
	"github.com/poiesic/regmap/metrics"
	"github.com/poiesic/regmap/pipeline"
	"github.com/poiesic/regmap/search"
	"github.com/poiesic/regmap/storage"
	"github.com/poiesic/regmap/storage/badger"
	"github.com/poiesic/regmap/storage/sqlstore"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Database struct {
	store    storage.Store
	provider ai.AIProvider
	locker   lock.Locker
	redis    redis.UniversalClient
	metrics  metrics.Recorder
	progress io.Writer
	cfg      *config.Config
	logger   *zap.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	logger   *zap.Logger
	metrics  metrics.Recorder
	catalog  *catalog.Catalog
	provider ai.AIProvider
	progress io.Writer
}

// WithLogger sets the logger. Default: zap.L().
func WithLogger(logger *zap.Logger) DatabaseOption {
	return func(o *databaseOptions) {
		o.logger = logger
	}
}

// WithMetrics records stage, embedding and cache metrics.
func WithMetrics(recorder metrics.Recorder) DatabaseOption {
	return func(o *databaseOptions) {
		o.metrics = recorder
	}
}

// WithCatalog seeds an empty database from c instead of the configured file.
func WithCatalog(c *catalog.Catalog) DatabaseOption {
	return func(o *databaseOptions) {
		o.catalog = c
	}
}

// WithProvider uses provider instead of the one described by the embedding
// configuration. The vector cache still applies. The Database takes
// ownership and closes it.
func WithProvider(provider ai.AIProvider) DatabaseOption {
	return func(o *databaseOptions) {
		o.provider = provider
	}
}

// WithProgress makes pipelines report rescoring progress to w.
func WithProgress(w io.Writer) DatabaseOption {
	return func(o *databaseOptions) {
		o.progress = w
	}
}

// Open connects to the configured store, applies migrations, seeds the
// catalogue into empty tables and prepares the embedding provider.
func Open(ctx context.Context, cfg *config.Config, opts ...DatabaseOption) (*Database, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", config.ErrInvalidConfig)
	}
	options := &databaseOptions{
		logger:  zap.L(),
		metrics: metrics.Noop{},
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = zap.L()
	}
	if options.metrics == nil {
		options.metrics = metrics.Noop{}
	}
	logger := options.logger

	cat := options.catalog
	if cat == nil {
		var err error
		if cat, err = catalog.Load(cfg.CatalogPath); err != nil {
			return nil, err
		}
	}

	dsn, err := cfg.DatabaseDSN()
	if err != nil {
		return nil, err
	}
	store, err := sqlstore.Open(ctx, sqlstore.Config{
		Driver: cfg.Database.Driver,
		DSN:    dsn,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}

	if _, _, err := cat.Seed(ctx, store); err != nil {
		store.Close()
		return nil, fmt.Errorf("seed catalog: %w", err)
	}

	provider := options.provider
	if provider == nil {
		if provider, err = newProvider(cfg.AIConfig()); err != nil {
			store.Close()
			return nil, err
		}
	}

	var cache storage.VectorCache
	if cfg.Cache.Enabled {
		if cache, err = badger.NewVectorCache(cfg.Cache.Dir); err != nil {
			provider.Close()
			store.Close()
			return nil, err
		}
	}
	provider = cached.NewProvider(provider, cache,
		cached.WithMetrics(options.metrics),
		cached.WithLogger(logger.Named("embedding")))

	db := &Database{
		store:    store,
		provider: provider,
		metrics:  options.metrics,
		progress: options.progress,
		cfg:      cfg,
		logger:   logger,
	}

	switch cfg.Lock.Backend {
	case config.LockRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Lock.RedisAddr,
			Password: cfg.Lock.RedisPassword,
			DB:       cfg.Lock.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			client.Close()
			db.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Lock.RedisAddr, err)
		}
		db.redis = client
		db.locker = lock.NewRedis(client, lock.WithTTL(cfg.Lock.TTL), lock.WithLogger(logger))
	default:
		db.locker = lock.NewLocal()
	}

	return db, nil
}

// newProvider builds the provider named by cfg.Provider.
func newProvider(cfg *ai.Config) (ai.AIProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Provider {
	case ai.ProviderOpenAI:
		return hosted.NewProvider(cfg)
	case ai.ProviderMock:
		return mock.NewProvider(cfg)
	default:
		return openai.NewProvider(cfg)
	}
}

func (db *Database) Close() error {
	var errs []error
	if err := db.provider.Close(); err != nil {
		db.logger.Error("error closing AI provider", zap.Error(err))
		errs = append(errs, err)
	}
	if db.redis != nil {
		if err := db.redis.Close(); err != nil {
			db.logger.Error("error closing redis client", zap.Error(err))
			errs = append(errs, err)
		}
	}
	if err := db.store.Close(); err != nil {
		db.logger.Error("error closing store", zap.Error(err))
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (db *Database) Store() storage.Store {
	return db.store
}

func (db *Database) Provider() ai.AIProvider {
	return db.provider
}

// MinScore is the configured default result threshold.
func (db *Database) MinScore() float64 {
	return db.cfg.Pipeline.MinScore
}

// CreateRegulation registers a document, stamping its upload time.
func (db *Database) CreateRegulation(ctx context.Context, name, sourceRef string) (*core.Regulation, error) {
	reg := &core.Regulation{Name: name, SourceRef: sourceRef, UploadedAt: time.Now()}
	if err := core.ValidateRegulation(reg); err != nil {
		return nil, err
	}
	return db.store.CreateRegulation(ctx, reg)
}

func (db *Database) GetRegulation(ctx context.Context, id core.ID) (*core.Regulation, error) {
	reg, err := db.store.GetRegulation(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: id %d", core.ErrRegulationNotFound, id)
	}
	return reg, err
}

func (db *Database) ListRegulations(ctx context.Context) ([]*core.Regulation, error) {
	return db.store.ListRegulations(ctx)
}

// DeleteRegulation removes a regulation with its requirements and mappings.
// It waits for any stage running on the regulation to finish.
func (db *Database) DeleteRegulation(ctx context.Context, id core.ID) error {
	unlock, err := db.locker.Lock(ctx, pipeline.LockKey(id))
	if err != nil {
		return fmt.Errorf("lock regulation %d: %w", id, err)
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			db.logger.Warn("failed to release regulation lock", zap.Uint64("regulation_id", uint64(id)), zap.Error(err))
		}
	}()

	err = db.store.DeleteRegulation(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: id %d", core.ErrRegulationNotFound, id)
	}
	return err
}

// NewPipeline creates a stage runner sharing the database's store, embedder,
// lock and metrics. opts are applied after the configured defaults.
// Callers must Release the pipeline.
func (db *Database) NewPipeline(opts ...pipeline.Option) (*pipeline.Pipeline, error) {
	defaults := []pipeline.Option{
		pipeline.WithLogger(db.logger),
		pipeline.WithLocker(db.locker),
		pipeline.WithMetrics(db.metrics),
		pipeline.WithRetry(db.cfg.Pipeline.RetryAttempts, db.cfg.Pipeline.RetryDelay),
	}
	if db.cfg.Pipeline.PoolSize > 0 {
		defaults = append(defaults, pipeline.WithPoolSize(db.cfg.Pipeline.PoolSize))
	}
	if db.progress != nil {
		defaults = append(defaults, pipeline.WithProgress(db.progress))
	}
	return pipeline.NewPipeline(db.store, db.provider.Embedder(), append(defaults, opts...)...)
}

func (db *Database) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	opts = append([]search.Option{search.WithLogger(db.logger)}, opts...)
	return search.NewSearcher(db.store, db.provider.Embedder(), opts...)
}
