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


// Package hosted implements ai.AIProvider against the hosted OpenAI
// embeddings API using the go-openai client.
//
// Use this provider when Config.Provider is "openai". An API key is
// required. Requests may set Config.Dimensions to shorten vectors on
// text-embedding-3 and later models.
//
//	config := ai.NewConfig(
//	    ai.WithProvider(ai.ProviderOpenAI),
//	    ai.WithAPIKey(os.Getenv("OPENAI_API_KEY")),
//	)
//	provider, err := hosted.NewProvider(config)
package hosted
