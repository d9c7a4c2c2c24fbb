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


package core

import (
	"context"
	"errors"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	KindUnknown            Kind = "unknown"
	KindNotFound           Kind = "not_found"
	KindEmptyInput         Kind = "empty_input"
	KindPreconditionNotMet Kind = "precondition_not_met"
	KindProviderFailure    Kind = "provider_failure"
	KindPersistenceFailure Kind = "persistence_failure"
	KindDimensionMismatch  Kind = "dimension_mismatch"
	KindCanceled           Kind = "canceled"
)

// Error is a classified sentinel error. Callers wrap it with fmt.Errorf("%w")
// to add context and recover it with errors.Is or KindOf.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Pipeline errors
var (
	// ErrRegulationNotFound indicates the referenced regulation does not exist.
	ErrRegulationNotFound = newError(KindNotFound, "regulation not found")

	// ErrEmptyDocument indicates no clauses were recognized in a document.
	ErrEmptyDocument = newError(KindEmptyInput, "empty document: no clauses recognized")

	// ErrAlreadyParsed indicates the regulation already has requirements.
	ErrAlreadyParsed = newError(KindPreconditionNotMet, "regulation already parsed")

	// ErrNotParsed indicates a stage ran before the regulation was parsed.
	ErrNotParsed = newError(KindPreconditionNotMet, "regulation has not been parsed")

	// ErrNoPendingRequirements indicates there is nothing left to tag.
	ErrNoPendingRequirements = newError(KindPreconditionNotMet, "no pending requirements")

	// ErrNoTagsConfigured indicates the tag catalogue is empty.
	ErrNoTagsConfigured = newError(KindPreconditionNotMet, "no tags configured")

	// ErrNoTaggedRequirements indicates keyword mapping ran before tagging produced anything.
	ErrNoTaggedRequirements = newError(KindPreconditionNotMet, "no tagged requirements")

	// ErrNoControlsConfigured indicates the control catalogue is empty.
	ErrNoControlsConfigured = newError(KindPreconditionNotMet, "no controls configured")

	// ErrNoKeywordMappings indicates rescoring ran with no keyword mappings to rescore.
	ErrNoKeywordMappings = newError(KindPreconditionNotMet, "no keyword mappings")

	// ErrEmbeddingUnavailable indicates an embedding was requested for empty text.
	ErrEmbeddingUnavailable = newError(KindEmptyInput, "embedding unavailable for empty text")

	// ErrEmbeddingProvider indicates the embedding service failed or answered malformed data.
	ErrEmbeddingProvider = newError(KindProviderFailure, "embedding provider error")

	// ErrDimensionMismatch indicates two vectors of different lengths were compared.
	ErrDimensionMismatch = newError(KindDimensionMismatch, "vector dimension mismatch")

	// ErrPersistence indicates a storage read or write failed.
	ErrPersistence = newError(KindPersistenceFailure, "persistence failure")
)

// KindOf returns the kind of the first classified error in err's chain.
// Context cancellation and deadline errors report KindCanceled.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCanceled
	}
	return KindUnknown
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Failure is the structured outcome reported to users for a failed operation.
type Failure struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// Describe converts err into a Failure. Returns nil for a nil error.
func Describe(err error) *Failure {
	if err == nil {
		return nil
	}
	return &Failure{Kind: KindOf(err), Message: err.Error()}
}
