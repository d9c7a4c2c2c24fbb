package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "nil", err: nil, want: ""},
		{name: "sentinel", err: ErrRegulationNotFound, want: KindNotFound},
		{name: "wrapped sentinel", err: fmt.Errorf("tag regulation 7: %w", ErrNoPendingRequirements), want: KindPreconditionNotMet},
		{name: "double wrapped", err: fmt.Errorf("rescore: %w", fmt.Errorf("%w: status 500", ErrEmbeddingProvider)), want: KindProviderFailure},
		{name: "empty input", err: ErrEmbeddingUnavailable, want: KindEmptyInput},
		{name: "dimension mismatch", err: ErrDimensionMismatch, want: KindDimensionMismatch},
		{name: "persistence", err: fmt.Errorf("%w: disk full", ErrPersistence), want: KindPersistenceFailure},
		{name: "canceled", err: fmt.Errorf("embed: %w", context.Canceled), want: KindCanceled},
		{name: "deadline", err: context.DeadlineExceeded, want: KindCanceled},
		{name: "unclassified", err: errors.New("boom"), want: KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestIsKind(t *testing.T) {
	err := fmt.Errorf("map regulation 3: %w", ErrNoControlsConfigured)
	assert.True(t, IsKind(err, KindPreconditionNotMet))
	assert.False(t, IsKind(err, KindNotFound))
	assert.False(t, IsKind(nil, KindNotFound))
}

func TestDescribe(t *testing.T) {
	assert.Nil(t, Describe(nil))

	failure := Describe(fmt.Errorf("parse regulation 1: %w", ErrEmptyDocument))
	require.NotNil(t, failure)
	assert.Equal(t, KindEmptyInput, failure.Kind)
	assert.Contains(t, failure.Message, "parse regulation 1")
	assert.Contains(t, failure.Message, "no clauses recognized")
}

func TestSentinelsAreDistinct(t *testing.T) {
	assert.False(t, errors.Is(ErrNoTaggedRequirements, ErrNoPendingRequirements))
	assert.True(t, errors.Is(fmt.Errorf("x: %w", ErrNoKeywordMappings), ErrNoKeywordMappings))
}
