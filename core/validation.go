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
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Domain validation errors
var (
	// ErrInvalidRegulation indicates a Regulation failed validation.
	ErrInvalidRegulation = errors.New("invalid regulation")

	// ErrInvalidTag indicates a Tag failed validation.
	ErrInvalidTag = errors.New("invalid tag")

	// ErrInvalidControl indicates a Control failed validation.
	ErrInvalidControl = errors.New("invalid control")

	// ErrInvalidTimestamp indicates a timestamp is in the future.
	ErrInvalidTimestamp = errors.New("timestamp cannot be in the future")

	// ErrInvalidStatus indicates an unknown requirement status.
	ErrInvalidStatus = errors.New("invalid requirement status")

	// ErrInvalidSource indicates an unknown mapping source.
	ErrInvalidSource = errors.New("invalid mapping source")

	// ErrInvalidScore indicates a score that is NaN or infinite.
	ErrInvalidScore = errors.New("score must be a finite number")
)

// ValidateRegulation validates a Regulation according to domain rules.
//
// Validation rules:
//   - Name must not be blank
//   - UploadedAt must not be in the future
//
// NOT validated:
//   - SourceRef (documents may be registered without a stored file)
//   - ID (0 is valid before insertion)
func ValidateRegulation(reg *Regulation) error {
	if reg == nil {
		return fmt.Errorf("%w: regulation is nil", ErrInvalidRegulation)
	}
	if strings.TrimSpace(reg.Name) == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidRegulation)
	}
	if !IsValidTimestamp(reg.UploadedAt) {
		return fmt.Errorf("%w: %w", ErrInvalidRegulation, ErrInvalidTimestamp)
	}
	return nil
}

// ValidateTag validates a Tag. Keyword may be empty; such tags never match.
func ValidateTag(tag *Tag) error {
	if tag == nil {
		return fmt.Errorf("%w: tag is nil", ErrInvalidTag)
	}
	if strings.TrimSpace(tag.Name) == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidTag)
	}
	return nil
}

// ValidateControl validates a Control.
//
// Validation rules:
//   - Framework must not be blank
//   - Code must not be blank
//
// Title and Description may be empty; controls without text are never rescored.
func ValidateControl(control *Control) error {
	if control == nil {
		return fmt.Errorf("%w: control is nil", ErrInvalidControl)
	}
	if strings.TrimSpace(control.Framework) == "" {
		return fmt.Errorf("%w: framework cannot be empty", ErrInvalidControl)
	}
	if strings.TrimSpace(control.Code) == "" {
		return fmt.Errorf("%w: code cannot be empty", ErrInvalidControl)
	}
	return nil
}

// ValidateStatus validates that a RequirementStatus has a known value.
func ValidateStatus(status RequirementStatus) error {
	if status != StatusPendingAnalysis && status != StatusTagged {
		return fmt.Errorf("%w: value %q", ErrInvalidStatus, status)
	}
	return nil
}

// ValidateSource validates that a MappingSource has a known value.
func ValidateSource(source MappingSource) error {
	switch source {
	case SourceKeyword, SourceSemantic, SourceHybrid:
		return nil
	}
	return fmt.Errorf("%w: value %q", ErrInvalidSource, source)
}

// ValidateScore rejects NaN and infinite scores.
func ValidateScore(score float64) error {
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidScore, score)
	}
	return nil
}

// IsValidTimestamp checks if a timestamp is valid (not in the future).
func IsValidTimestamp(ts time.Time) bool {
	return !ts.After(time.Now())
}
