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


// Package storage provides the storage abstraction layer for regmap.
//
// This package defines repository interfaces that decouple the pipeline from
// the database in use. Two kinds of backend exist:
//
//   - Store: the relational store holding regulations, requirements, the
//     tag and control catalogue, and control mappings (sqlstore, on GORM
//     with SQLite or PostgreSQL)
//   - VectorCache: a key-value cache of embedding vectors (badger)
//
// # Constructor Return Type Pattern
//
// Public constructors return interfaces:
//
//	store, err := sqlstore.Open(ctx, sqlstore.Config{Driver: "sqlite", DSN: path})  // storage.Store
//	cache, err := badger.NewVectorCache(dir)                                         // storage.VectorCache
//
// Internal constructors may return concrete types since they're only used
// within the implementation package.
//
// # Transactions
//
// WithTransaction places the transaction in the context it hands to fn.
// Every repository method called with that context runs inside the
// transaction:
//
//	err := store.WithTransaction(ctx, func(ctx context.Context) error {
//	    if _, err := store.AddRequirementTags(ctx, assocs...); err != nil {
//	        return err
//	    }
//	    _, err := store.MarkTagged(ctx, ids...)
//	    return err
//	})
//
// # Thread Safety
//
// All implementations must be safe for concurrent use from multiple goroutines.
//
// # Context Support
//
// All repository methods accept context.Context for cancellation
// and timeout support.
package storage
