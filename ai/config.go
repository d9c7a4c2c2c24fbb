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


package ai

import (
	"errors"
	"fmt"
	"strings"
)

// Provider kinds understood by Config.Provider.
const (
	// ProviderLocal talks to an OpenAI-compatible server (Ollama, LocalAI, vLLM).
	ProviderLocal = "local"
	// ProviderOpenAI talks to the hosted OpenAI API and requires an API key.
	ProviderOpenAI = "openai"
	// ProviderMock uses deterministic in-process vectors. Intended for tests and dry runs.
	ProviderMock = "mock"
)

// DefaultOpenAIHost is the base URL used for ProviderOpenAI when none is set.
const DefaultOpenAIHost = "https://api.openai.com/v1"

// DefaultOpenAIModel is the embedding model used for ProviderOpenAI when none is set.
const DefaultOpenAIModel = "text-embedding-3-small"

// Config holds configuration for embedding service providers.
type Config struct {
	// Provider selects the embedding backend: "local", "openai" or "mock".
	// Default: "local"
	Provider string

	// EmbeddingHost is the base URL for the embedding service API.
	// Example: "http://localhost:11434/v1" for local OpenAI-compatible server
	EmbeddingHost string

	// EmbeddingModel is the model identifier to use for text embeddings.
	// Example: "embeddinggemma", "text-embedding-3-small"
	EmbeddingModel string

	// APIKey authenticates against hosted providers. Local servers ignore it.
	APIKey string

	// Dimensions optionally truncates embeddings on models that support it.
	// Zero keeps the model's native size.
	Dimensions int
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithProvider sets the provider kind.
func WithProvider(provider string) ConfigOption {
	return func(c *Config) {
		c.Provider = provider
	}
}

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithAPIKey sets the API key used by hosted providers.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithDimensions sets the requested embedding dimensionality.
func WithDimensions(dims int) ConfigOption {
	return func(c *Config) {
		c.Dimensions = dims
	}
}

// DefaultConfig returns a Config with sensible defaults for a local OpenAI-compatible service.
func DefaultConfig() *Config {
	return &Config{
		Provider:       ProviderLocal,
		EmbeddingHost:  "http://localhost:11434/v1",
		EmbeddingModel: "embeddinggemma",
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithProvider(ProviderOpenAI),
//	    WithEmbeddingHost(DefaultOpenAIHost),
//	    WithEmbeddingModel("text-embedding-3-small"),
//	    WithAPIKey(os.Getenv("OPENAI_API_KEY")),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// Provider names are lower-cased, hosted providers fall back to the public
// OpenAI endpoint, and hosts get the /v1 suffix required by OpenAI-compatible APIs.
func (c *Config) Normalize() {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Provider == "" {
		c.Provider = ProviderLocal
	}
	if c.Provider == ProviderOpenAI {
		if c.EmbeddingHost == "" {
			c.EmbeddingHost = DefaultOpenAIHost
		}
		if c.EmbeddingModel == "" {
			c.EmbeddingModel = DefaultOpenAIModel
		}
	}
	if c.EmbeddingHost != "" && !strings.HasSuffix(c.EmbeddingHost, "/v1") {
		c.EmbeddingHost = strings.TrimSuffix(c.EmbeddingHost, "/") + "/v1"
	}
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	switch c.Provider {
	case ProviderLocal, ProviderOpenAI, ProviderMock:
	default:
		return fmt.Errorf("ai config: unknown provider %q", c.Provider)
	}
	if c.Provider != ProviderMock && c.EmbeddingHost == "" {
		return errors.New("ai config: EmbeddingHost is required")
	}
	if c.EmbeddingModel == "" {
		return errors.New("ai config: EmbeddingModel is required")
	}
	if c.Provider == ProviderOpenAI && c.APIKey == "" {
		return errors.New("ai config: APIKey is required for the openai provider")
	}
	if c.Dimensions < 0 {
		return errors.New("ai config: Dimensions cannot be negative")
	}
	return nil
}
