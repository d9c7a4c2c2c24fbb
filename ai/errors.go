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
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/poiesic/regmap/core"
)

// CheckText returns core.ErrEmbeddingUnavailable when text is empty or whitespace-only.
func CheckText(text string) error {
	if strings.TrimSpace(text) == "" {
		return core.ErrEmbeddingUnavailable
	}
	return nil
}

// CheckTexts applies CheckText to every input, reporting the first offending index.
func CheckTexts(texts []string) error {
	for i, text := range texts {
		if err := CheckText(text); err != nil {
			return fmt.Errorf("%w: input %d", err, i)
		}
	}
	return nil
}

// ProviderError classifies an upstream failure as core.ErrEmbeddingProvider.
// Context cancellation passes through unchanged.
func ProviderError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", core.ErrEmbeddingProvider, err)
}

// CheckResponse validates that a provider returned one non-empty vector per input
// and that every vector has the same length.
func CheckResponse(vectors [][]float32, inputs int) error {
	if len(vectors) != inputs {
		return fmt.Errorf("%w: expected %d embeddings, got %d", core.ErrEmbeddingProvider, inputs, len(vectors))
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return fmt.Errorf("%w: empty embedding at index %d", core.ErrEmbeddingProvider, i)
		}
		if len(v) != len(vectors[0]) {
			return fmt.Errorf("%w: embedding %d has %d dimensions, expected %d", core.ErrDimensionMismatch, i, len(v), len(vectors[0]))
		}
	}
	return nil
}
