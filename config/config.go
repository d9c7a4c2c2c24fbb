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


// Package config loads regmap settings from a YAML file with environment
// variable overrides. Secrets are read from the environment only.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/poiesic/regmap/ai"
	"github.com/poiesic/regmap/core"
	"github.com/poiesic/regmap/logging"
)

// Lock backends.
const (
	LockLocal = "local"
	LockRedis = "redis"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all regmap settings.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Cache     CacheConfig     `yaml:"cache"`
	Lock      LockConfig      `yaml:"lock"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Log       LogConfig       `yaml:"log"`

	// CatalogPath points at a YAML tag and control catalogue used to seed an
	// empty database. Empty means the built-in catalogue.
	CatalogPath string `yaml:"catalog_path" env:"REGMAP_CATALOG" env-default:""`
}

// DatabaseConfig selects the relational store.
type DatabaseConfig struct {
	Driver   string `yaml:"driver" env:"REGMAP_DB_DRIVER" env-default:"sqlite"`
	DSN      string `yaml:"dsn" env:"REGMAP_DB_DSN" env-default:"regmap.db"`
	Password string `yaml:"-" env:"REGMAP_DB_PASSWORD"` // Secret - not in YAML
}

// EmbeddingConfig selects the embedding provider.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider" env:"REGMAP_EMBEDDING_PROVIDER" env-default:"local"`
	Host       string `yaml:"host" env:"REGMAP_EMBEDDING_HOST" env-default:""`
	Model      string `yaml:"model" env:"REGMAP_EMBEDDING_MODEL" env-default:""`
	Dimensions int    `yaml:"dimensions" env:"REGMAP_EMBEDDING_DIMENSIONS" env-default:"0"`
	APIKey     string `yaml:"-" env:"OPENAI_API_KEY"` // Secret - not in YAML
}

// CacheConfig controls the on-disk embedding vector cache.
type CacheConfig struct {
	Enabled bool   `yaml:"enabled" env:"REGMAP_CACHE_ENABLED" env-default:"true"`
	Dir     string `yaml:"dir" env:"REGMAP_CACHE_DIR" env-default:".regmap-cache"`
}

// LockConfig selects how concurrent stage runs on one regulation are excluded.
type LockConfig struct {
	Backend       string        `yaml:"backend" env:"REGMAP_LOCK_BACKEND" env-default:"local"`
	RedisAddr     string        `yaml:"redis_addr" env:"REGMAP_REDIS_ADDR" env-default:"localhost:6379"`
	RedisDB       int           `yaml:"redis_db" env:"REGMAP_REDIS_DB" env-default:"0"`
	RedisPassword string        `yaml:"-" env:"REGMAP_REDIS_PASSWORD"` // Secret - not in YAML
	TTL           time.Duration `yaml:"ttl" env:"REGMAP_LOCK_TTL" env-default:"30s"`
}

// PipelineConfig tunes the stage runner.
type PipelineConfig struct {
	// PoolSize is the number of mappings rescored concurrently. Zero means one per CPU.
	PoolSize      int           `yaml:"pool_size" env:"REGMAP_POOL_SIZE" env-default:"0"`
	RetryAttempts int           `yaml:"retry_attempts" env:"REGMAP_RETRY_ATTEMPTS" env-default:"3"`
	RetryDelay    time.Duration `yaml:"retry_delay" env:"REGMAP_RETRY_DELAY" env-default:"500ms"`
	MinScore      float64       `yaml:"min_score" env:"REGMAP_MIN_SCORE" env-default:"0.2"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level" env:"REGMAP_LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"REGMAP_LOG_FORMAT" env-default:"console"`
}

// Load reads path with environment variable overrides, or the environment
// alone when path is empty, and validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path == "" {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that cannot be checked by their consumers
// without opening a connection first.
func (c *Config) Validate() error {
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	c.Lock.Backend = strings.ToLower(strings.TrimSpace(c.Lock.Backend))

	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("%w: unknown database driver %q", ErrInvalidConfig, c.Database.Driver)
	}
	switch c.Lock.Backend {
	case LockLocal:
	case LockRedis:
		if c.Lock.RedisAddr == "" {
			return fmt.Errorf("%w: redis lock requires redis_addr", ErrInvalidConfig)
		}
		if c.Lock.TTL <= 0 {
			return fmt.Errorf("%w: lock ttl must be positive", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown lock backend %q", ErrInvalidConfig, c.Lock.Backend)
	}
	if c.Cache.Enabled && c.Cache.Dir == "" {
		return fmt.Errorf("%w: cache enabled without a directory", ErrInvalidConfig)
	}
	if c.Pipeline.PoolSize < 0 {
		return fmt.Errorf("%w: pool_size cannot be negative", ErrInvalidConfig)
	}
	if c.Pipeline.RetryAttempts < 1 {
		return fmt.Errorf("%w: retry_attempts must be at least 1", ErrInvalidConfig)
	}
	if err := core.ValidateScore(c.Pipeline.MinScore); err != nil {
		return fmt.Errorf("%w: min_score: %w", ErrInvalidConfig, err)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := c.AIConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// AIConfig converts the embedding section into an ai.Config.
// Empty host and model keep the provider defaults.
func (c *Config) AIConfig() *ai.Config {
	opts := []ai.ConfigOption{
		ai.WithProvider(c.Embedding.Provider),
		ai.WithAPIKey(c.Embedding.APIKey),
		ai.WithDimensions(c.Embedding.Dimensions),
	}
	provider := strings.ToLower(strings.TrimSpace(c.Embedding.Provider))
	if c.Embedding.Host != "" {
		opts = append(opts, ai.WithEmbeddingHost(c.Embedding.Host))
	} else if provider == ai.ProviderOpenAI {
		opts = append(opts, ai.WithEmbeddingHost(ai.DefaultOpenAIHost))
	}
	if c.Embedding.Model != "" {
		opts = append(opts, ai.WithEmbeddingModel(c.Embedding.Model))
	} else if provider == ai.ProviderOpenAI {
		opts = append(opts, ai.WithEmbeddingModel(ai.DefaultOpenAIModel))
	}
	return ai.NewConfig(opts...)
}

// DatabaseDSN returns the DSN with the password from the environment
// applied to PostgreSQL URLs.
func (c *Config) DatabaseDSN() (string, error) {
	if c.Database.Password == "" || c.Database.Driver != "postgres" {
		return c.Database.DSN, nil
	}
	u, err := url.Parse(c.Database.DSN)
	if err != nil {
		return "", fmt.Errorf("%w: database dsn: %w", ErrInvalidConfig, err)
	}
	user := ""
	if u.User != nil {
		user = u.User.Username()
	}
	u.User = url.UserPassword(user, c.Database.Password)
	return u.String(), nil
}
