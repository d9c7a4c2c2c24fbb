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


// Package sqlstore implements storage.Store on GORM.
//
// Two dialects are supported: SQLite (the default, a single file or a
// private in-memory database) and PostgreSQL. The schema is applied with
// golang-migrate from SQL files embedded in the binary, one directory per
// dialect, so the database layout never depends on GORM auto-migration.
//
// # Usage
//
//	store, err := sqlstore.Open(ctx, sqlstore.Config{
//	    Driver: sqlstore.DriverSQLite,
//	    DSN:    "regmap.db",
//	})
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
// Tests use NewMemoryStore, which opens a migrated in-memory SQLite database
// private to the caller.
//
// # Transactions
//
// Store.WithTransaction stores the *gorm.DB transaction in the context.
// Repository methods look it up and fall back to the pool when absent.
// SQLite stores hold a single connection, so code running inside a
// transaction must always pass the transaction's context.
package sqlstore
