package core

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestValidateRegulation(t *testing.T) {
	validTime := time.Now().Add(-1 * time.Hour)
	futureTime := time.Now().Add(1 * time.Hour)

	tests := []struct {
		name    string
		reg     *Regulation
		wantErr error
	}{
		{name: "valid regulation", reg: &Regulation{Name: "GDPR", UploadedAt: validTime}, wantErr: nil},
		{name: "valid without source", reg: &Regulation{Name: "GDPR", SourceRef: "", UploadedAt: validTime}, wantErr: nil},
		{name: "nil regulation", reg: nil, wantErr: ErrInvalidRegulation},
		{name: "blank name", reg: &Regulation{Name: "  ", UploadedAt: validTime}, wantErr: ErrInvalidRegulation},
		{name: "future upload", reg: &Regulation{Name: "GDPR", UploadedAt: futureTime}, wantErr: ErrInvalidTimestamp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRegulation(tt.reg)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateRegulation() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateRegulation() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateTag(t *testing.T) {
	if err := ValidateTag(&Tag{Name: "Encryption", Keyword: "encrypt"}); err != nil {
		t.Errorf("ValidateTag() unexpected error = %v", err)
	}
	if err := ValidateTag(&Tag{Name: "Reserved"}); err != nil {
		t.Errorf("ValidateTag() should accept empty keyword, got %v", err)
	}
	if err := ValidateTag(&Tag{Keyword: "log"}); !errors.Is(err, ErrInvalidTag) {
		t.Errorf("ValidateTag() error = %v, want %v", err, ErrInvalidTag)
	}
	if err := ValidateTag(nil); !errors.Is(err, ErrInvalidTag) {
		t.Errorf("ValidateTag(nil) error = %v, want %v", err, ErrInvalidTag)
	}
}

func TestValidateControl(t *testing.T) {
	tests := []struct {
		name    string
		control *Control
		wantErr bool
	}{
		{name: "valid", control: &Control{Framework: "NIST-CSF", Code: "PR.DS-1", Title: "Data-at-rest protection"}},
		{name: "no text", control: &Control{Framework: "NIST-CSF", Code: "PR.DS-1"}},
		{name: "missing framework", control: &Control{Code: "PR.DS-1"}, wantErr: true},
		{name: "missing code", control: &Control{Framework: "NIST-CSF"}, wantErr: true},
		{name: "nil", control: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateControl(tt.control)
			if tt.wantErr != (err != nil) {
				t.Errorf("ValidateControl() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidControl) {
				t.Errorf("ValidateControl() error = %v, want %v", err, ErrInvalidControl)
			}
		})
	}
}

func TestValidateStatusAndSource(t *testing.T) {
	if err := ValidateStatus(StatusTagged); err != nil {
		t.Errorf("ValidateStatus() unexpected error = %v", err)
	}
	if err := ValidateStatus("done"); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("ValidateStatus() error = %v, want %v", err, ErrInvalidStatus)
	}
	for _, src := range []MappingSource{SourceKeyword, SourceSemantic, SourceHybrid} {
		if err := ValidateSource(src); err != nil {
			t.Errorf("ValidateSource(%q) unexpected error = %v", src, err)
		}
	}
	if err := ValidateSource("manual"); !errors.Is(err, ErrInvalidSource) {
		t.Errorf("ValidateSource() error = %v, want %v", err, ErrInvalidSource)
	}
}

func TestValidateScore(t *testing.T) {
	for _, v := range []float64{0, 0.2, 1, -0.5} {
		if err := ValidateScore(v); err != nil {
			t.Errorf("ValidateScore(%v) unexpected error = %v", v, err)
		}
	}
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if err := ValidateScore(v); !errors.Is(err, ErrInvalidScore) {
			t.Errorf("ValidateScore(%v) error = %v, want %v", v, err, ErrInvalidScore)
		}
	}
}

func TestIsValidTimestamp(t *testing.T) {
	if !IsValidTimestamp(time.Now().Add(-time.Minute)) {
		t.Error("past timestamp should be valid")
	}
	if IsValidTimestamp(time.Now().Add(time.Hour)) {
		t.Error("future timestamp should be invalid")
	}
}
