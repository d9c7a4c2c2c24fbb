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


// Package pipeline maps regulatory text onto compliance controls.
//
// A regulation moves through four stages, each a method on Pipeline:
//
//	Parse        split the document into numbered requirements
//	Tag          attach catalogue tags whose keyword occurs in a requirement
//	MapKeywords  link tagged requirements to controls mentioning the tag
//	Rescore      replace keyword scores with embedding cosine similarity
//
// Results and GroupedResults read the scored mappings back. Run executes
// every stage in order and skips stages that have nothing left to do.
//
// Every stage is idempotent. Re-running a stage never duplicates rows, and a
// failed stage leaves the store exactly as it found it. Mutating stages hold
// a per-regulation lock from the configured lock.Locker for their duration.
//
// Basic usage:
//
//	p, err := pipeline.NewPipeline(store, provider.Embedder(),
//	    pipeline.WithLogger(logger),
//	    pipeline.WithPoolSize(8),
//	)
//	if err != nil {
//	    return err
//	}
//	defer p.Release()
//
//	out, err := p.Run(ctx, regulationID, text)
package pipeline
