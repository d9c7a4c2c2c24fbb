package regmap

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/poiesic/regmap/ai/mock"
	"github.com/poiesic/regmap/config"
	"github.com/poiesic/regmap/core"
	"github.com/poiesic/regmap/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const sampleDocument = "Article 1. Access must be restricted. Article 2. Data shall be encrypted at rest."

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Database:  config.DatabaseConfig{Driver: "sqlite", DSN: filepath.Join(dir, "regmap.db")},
		Embedding: config.EmbeddingConfig{Provider: "mock"},
		Cache:     config.CacheConfig{Enabled: true, Dir: filepath.Join(dir, "cache")},
		Lock:      config.LockConfig{Backend: config.LockLocal},
		Pipeline:  config.PipelineConfig{PoolSize: 2, RetryAttempts: 1, MinScore: -1},
		Log:       config.LogConfig{Level: "info", Format: "console"},
	}
	require.NoError(t, cfg.Validate())
	return cfg
}

func openDatabase(t *testing.T, cfg *config.Config, opts ...DatabaseOption) *Database {
	t.Helper()
	db, err := Open(context.Background(), cfg, opts...)
	require.NoError(t, err)
	return db
}

func TestOpen_SeedsCatalog(t *testing.T) {
	db := openDatabase(t, testConfig(t))
	defer db.Close()

	ctx := context.Background()
	tags, err := db.Store().ListTags(ctx)
	require.NoError(t, err)
	assert.Len(t, tags, 5)

	controls, err := db.Store().ListControls(ctx)
	require.NoError(t, err)
	assert.Len(t, controls, 9)
	assert.Equal(t, "mock/fnv", db.Provider().Name())
}

func TestOpen_LogsSeedOnce(t *testing.T) {
	observed, logs := observer.New(zapcore.InfoLevel)
	cfg := testConfig(t)

	db := openDatabase(t, cfg, WithLogger(zap.New(observed)))
	require.NoError(t, db.Close())

	seeded := logs.FilterMessage("seeded catalog").All()
	require.Len(t, seeded, 1)
	assert.EqualValues(t, 5, seeded[0].ContextMap()["tags"])
	assert.EqualValues(t, 9, seeded[0].ContextMap()["controls"])

	db = openDatabase(t, cfg, WithLogger(zap.New(observed)))
	defer db.Close()
	assert.Len(t, logs.FilterMessage("seeded catalog").All(), 1, "reopening seeds nothing")
}

func TestOpen_ReopenDoesNotReseed(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, openDatabase(t, cfg).Close())

	db := openDatabase(t, cfg)
	defer db.Close()
	controls, err := db.Store().ListControls(context.Background())
	require.NoError(t, err)
	assert.Len(t, controls, 9)
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open(context.Background(), nil)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	cfg := testConfig(t)
	cfg.CatalogPath = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = Open(context.Background(), cfg)
	assert.Error(t, err)

	cfg = testConfig(t)
	cfg.Lock = config.LockConfig{Backend: config.LockRedis, RedisAddr: "127.0.0.1:1", TTL: 1}
	_, err = Open(context.Background(), cfg)
	assert.ErrorContains(t, err, "redis")
}

func TestDatabase_Regulations(t *testing.T) {
	db := openDatabase(t, testConfig(t))
	defer db.Close()
	ctx := context.Background()

	_, err := db.CreateRegulation(ctx, "  ", "")
	require.ErrorIs(t, err, core.ErrInvalidRegulation)

	reg, err := db.CreateRegulation(ctx, "Sample Act", "uploads/sample.txt")
	require.NoError(t, err)
	assert.NotZero(t, reg.Id)
	assert.False(t, reg.UploadedAt.IsZero())

	got, err := db.GetRegulation(ctx, reg.Id)
	require.NoError(t, err)
	assert.Equal(t, "Sample Act", got.Name)
	assert.Equal(t, "uploads/sample.txt", got.SourceRef)

	list, err := db.ListRegulations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, db.DeleteRegulation(ctx, reg.Id))
	_, err = db.GetRegulation(ctx, reg.Id)
	assert.ErrorIs(t, err, core.ErrRegulationNotFound)
	assert.ErrorIs(t, db.DeleteRegulation(ctx, reg.Id), core.ErrRegulationNotFound)
}

func TestDatabase_RunPipeline(t *testing.T) {
	db := openDatabase(t, testConfig(t))
	defer db.Close()
	ctx := context.Background()

	reg, err := db.CreateRegulation(ctx, "Sample Act", "")
	require.NoError(t, err)

	p, err := db.NewPipeline()
	require.NoError(t, err)
	defer p.Release()

	out, err := p.Run(ctx, reg.Id, sampleDocument)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Parse.Inserted())
	assert.Equal(t, 2, out.Rescore.Rescored)

	rows, err := p.Results(ctx, reg.Id, pipeline.WithMinScore(db.MinScore()))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "A.9.1.1", rows[0].ControlCode)
	assert.Equal(t, "A.9.2.3", rows[1].ControlCode)
	for _, row := range rows {
		assert.Equal(t, core.SourceHybrid, row.Source)
	}

	// Deleting cascades to requirements and mappings.
	require.NoError(t, db.DeleteRegulation(ctx, reg.Id))
	_, err = p.Status(ctx, reg.Id)
	assert.ErrorIs(t, err, core.ErrRegulationNotFound)
}

func TestDatabase_VectorCacheSurvivesReopen(t *testing.T) {
	cfg := testConfig(t)
	embedder := mock.NewMockEmbedder()
	ctx := context.Background()

	suggest := func() {
		db := openDatabase(t, cfg, WithProvider(mock.NewMockProviderWithEmbedder(embedder)))
		defer db.Close()
		s, err := db.NewSearcher()
		require.NoError(t, err)
		results, err := s.SuggestControls(ctx, "Who may access the systems?", 3, -1)
		require.NoError(t, err)
		assert.Len(t, results, 3)
	}

	suggest()
	require.Equal(t, 1, embedder.CallCount())

	suggest()
	assert.Equal(t, 1, embedder.CallCount(), "every vector should come from the cache")
}

func TestDatabase_CacheDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.Enabled = false
	embedder := mock.NewMockEmbedder()

	db := openDatabase(t, cfg, WithProvider(mock.NewMockProviderWithEmbedder(embedder)))
	defer db.Close()

	s, err := db.NewSearcher()
	require.NoError(t, err)
	for range 2 {
		_, err := s.SuggestControls(context.Background(), "incident handling", 0, -1)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, embedder.CallCount())
}
