package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/regmap/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckText(t *testing.T) {
	assert.NoError(t, CheckText("Access must be restricted."))
	for _, text := range []string{"", " ", "\n\t "} {
		err := CheckText(text)
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrEmbeddingUnavailable)
		assert.Equal(t, core.KindEmptyInput, core.KindOf(err))
	}
}

func TestCheckTexts(t *testing.T) {
	assert.NoError(t, CheckTexts([]string{"a", "b"}))
	err := CheckTexts([]string{"a", "  "})
	assert.ErrorIs(t, err, core.ErrEmbeddingUnavailable)
	assert.Contains(t, err.Error(), "input 1")
}

func TestProviderError(t *testing.T) {
	assert.NoError(t, ProviderError(nil))

	upstream := errors.New("503 service unavailable")
	err := ProviderError(upstream)
	assert.ErrorIs(t, err, core.ErrEmbeddingProvider)
	assert.ErrorIs(t, err, upstream)
	assert.Equal(t, core.KindProviderFailure, core.KindOf(err))
}

func TestCheckResponse(t *testing.T) {
	assert.NoError(t, CheckResponse([][]float32{{1, 2}, {3, 4}}, 2))

	err := CheckResponse([][]float32{{1, 2}}, 2)
	assert.ErrorIs(t, err, core.ErrEmbeddingProvider)

	err = CheckResponse([][]float32{{1, 2}, {}}, 2)
	assert.ErrorIs(t, err, core.ErrEmbeddingProvider)

	err = CheckResponse([][]float32{{1, 2}, {1, 2, 3}}, 2)
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
}

func TestProviderError_PassesCancellation(t *testing.T) {
	err := ProviderError(context.Canceled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, core.ErrEmbeddingProvider)
}
