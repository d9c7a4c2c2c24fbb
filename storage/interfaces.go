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
package storage

import (
	"context"

	"github.com/poiesic/regmap/core"
)

// TransactionManager runs work atomically.
type TransactionManager interface {
	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	// The context passed to fn carries the transaction; repository calls made
	// with it join the transaction. Nested calls join the outer transaction.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type RegulationRepository interface {
	// CreateRegulation inserts a regulation and returns it with its ID populated.
	// Sets UploadedAt if not already set.
	CreateRegulation(ctx context.Context, regulation *core.Regulation) (*core.Regulation, error)

	// GetRegulation retrieves a regulation by ID.
	// Returns ErrNotFound if the regulation doesn't exist.
	GetRegulation(ctx context.Context, id core.ID) (*core.Regulation, error)

	// ListRegulations returns all regulations ordered by ID.
	ListRegulations(ctx context.Context) ([]*core.Regulation, error)

	// DeleteRegulation removes a regulation and, by cascade, its requirements,
	// tag associations and control mappings.
	// Returns ErrNotFound if the regulation doesn't exist.
	DeleteRegulation(ctx context.Context, id core.ID) error
}

type RequirementRepository interface {
	// CountRequirements returns how many requirements a regulation has.
	CountRequirements(ctx context.Context, regulationID core.ID) (int, error)

	// AddRequirements inserts requirements and returns them with IDs populated.
	// Fails with ErrDuplicateKey if a clause number is already taken.
	AddRequirements(ctx context.Context, requirements ...*core.Requirement) ([]*core.Requirement, error)

	// GetRequirements returns all requirements of a regulation ordered by clause number.
	GetRequirements(ctx context.Context, regulationID core.ID) ([]*core.Requirement, error)

	// GetPendingRequirements returns requirements still in pending_analysis,
	// ordered by clause number.
	GetPendingRequirements(ctx context.Context, regulationID core.ID) ([]*core.Requirement, error)

	// AddRequirementTags inserts tag associations. Associations that already
	// exist are skipped. Returns the number of rows inserted.
	AddRequirementTags(ctx context.Context, associations ...*core.RequirementTag) (int, error)

	// MarkTagged moves pending requirements to tagged. Requirements that are
	// not pending are left alone. Returns the number of rows changed.
	MarkTagged(ctx context.Context, ids ...core.ID) (int, error)

	// GetTaggedPairs returns the distinct (requirement, tag) pairs of tagged
	// requirements in a regulation, ordered by requirement then tag ID.
	GetTaggedPairs(ctx context.Context, regulationID core.ID) ([]*core.TaggedPair, error)
}

type CatalogRepository interface {
	// ListTags returns all tags ordered by ID.
	ListTags(ctx context.Context) ([]*core.Tag, error)

	// ListControls returns all controls ordered by ID.
	ListControls(ctx context.Context) ([]*core.Control, error)

	// SeedCatalog inserts tags when the tag table is empty and controls when
	// the control table is empty. Returns the number of rows inserted of each.
	SeedCatalog(ctx context.Context, tags []*core.Tag, controls []*core.Control) (int, int, error)
}

type MappingRepository interface {
	// KeywordMappingExists reports whether a keyword-derived mapping (source
	// keyword or hybrid) exists for the requirement and control.
	KeywordMappingExists(ctx context.Context, requirementID, controlID core.ID) (bool, error)

	// AddMappings inserts control mappings. Rows colliding on
	// (requirement, control, source) are skipped. Returns the number inserted.
	AddMappings(ctx context.Context, mappings ...*core.RequirementControl) (int, error)

	// GetKeywordCandidates returns the source=keyword mappings of a regulation
	// with the requirement text and control embedding text, ordered by mapping ID.
	GetKeywordCandidates(ctx context.Context, regulationID core.ID) ([]*core.MappingCandidate, error)

	// ApplyScores overwrites score and source of keyword mappings in place.
	// Mappings no longer in source keyword are left alone.
	// Returns the number of rows changed.
	ApplyScores(ctx context.Context, updates ...*core.ScoreUpdate) (int, error)

	// GetResults returns the fan-out result rows of a regulation with
	// similarity_score >= minScore, ordered by requirement ID, framework,
	// control code, mapping ID and tag name.
	GetResults(ctx context.Context, regulationID core.ID, minScore float64) ([]*core.ResultRow, error)

	// Summarize counts requirements by status and mappings by source.
	// Returns ErrNotFound if the regulation doesn't exist.
	Summarize(ctx context.Context, regulationID core.ID) (*core.RegulationSummary, error)
}

// Store is the relational store used by the pipeline.
type Store interface {
	TransactionManager
	RegulationRepository
	RequirementRepository
	CatalogRepository
	MappingRepository

	// Close closes the storage backend and releases resources.
	Close() error
}

// VectorCache persists embedding vectors keyed by model namespace and content hash.
type VectorCache interface {
	// GetVector returns the cached vector. The boolean is false on a miss.
	GetVector(ctx context.Context, namespace string, key core.ID) ([]float32, bool, error)

	// PutVector stores a vector, replacing any previous value.
	PutVector(ctx context.Context, namespace string, key core.ID, vector []float32) error

	// Close closes the cache and releases resources.
	Close() error
}
