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


// Package ai provides abstractions for the embedding services used by regmap.
//
// The core pipeline depends only on the Embedder interface: text in, fixed-length
// vector out. Implementations classify their failures with the core error
// taxonomy so callers can tell empty input (core.ErrEmbeddingUnavailable) from
// an upstream outage (core.ErrEmbeddingProvider).
//
// # Implementation Packages
//
//   - ai/openai: OpenAI-compatible servers (Ollama, LocalAI, vLLM) via langchaingo
//   - ai/hosted: the hosted OpenAI embeddings API via go-openai
//   - ai/cached: a decorator that persists vectors in a storage.VectorCache
//   - ai/mock: deterministic test doubles
//
// # Constructor Return Type Pattern
//
// Public constructors (openai.NewProvider, hosted.NewEmbedder, etc.) return
// INTERFACE types to enforce abstraction. Test utility constructors
// (mock.NewMockEmbedder) return CONCRETE types so tests can inject behavior
// and assert on call counts.
//
// # Usage Example
//
//	config := ai.NewConfig(ai.WithEmbeddingModel("nomic-embed-text"))
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vec, err := provider.Embedder().EmbedText(ctx, "Access must be restricted.")
package ai
