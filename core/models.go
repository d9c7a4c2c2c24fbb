package core

import (
	"encoding/binary"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// Persisted entities get their IDs from database sequences.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// DefaultMinScore is the similarity threshold applied to result views
// when the caller does not supply one.
const DefaultMinScore = 0.2

// KeywordScore is the score assigned to a mapping produced by keyword matching.
const KeywordScore = 1.0

// RequirementStatus tracks how far a requirement has moved through the pipeline.
type RequirementStatus string

const (
	// StatusPendingAnalysis is assigned when a clause is first extracted.
	StatusPendingAnalysis RequirementStatus = "pending_analysis"
	// StatusTagged is assigned once at least one tag matched the clause.
	StatusTagged RequirementStatus = "tagged"
)

// CanTransition reports whether a requirement may move from s to next.
// The only legal move is pending_analysis -> tagged.
func (s RequirementStatus) CanTransition(next RequirementStatus) bool {
	return s == StatusPendingAnalysis && next == StatusTagged
}

// MappingSource identifies which signal produced a requirement-control mapping.
type MappingSource string

const (
	SourceKeyword  MappingSource = "keyword"
	SourceSemantic MappingSource = "semantic"
	SourceHybrid   MappingSource = "hybrid"
)

// Regulation is one uploaded source document and its metadata.
type Regulation struct {
	Id         ID
	Name       string
	SourceRef  string    // Where the original document lives (file path, URL)
	UploadedAt time.Time // When the regulation was registered
}

// Requirement is one extracted clause of a Regulation.
type Requirement struct {
	Id           ID
	RegulationId ID
	ClauseNumber int // 1-based, dense, document order
	Text         string
	Status       RequirementStatus
}

// Tag is a topical label with the keyword used to detect it.
// An empty Keyword never matches.
type Tag struct {
	Id      ID
	Name    string
	Keyword string
}

// Control is an entry of a compliance framework catalogue.
type Control struct {
	Id          ID
	Framework   string
	Code        string // Framework-specific identifier, e.g. "A.9.1.1"
	Title       string
	Description string
}

// SearchText is the lower-cased text keyword matching runs against:
// code, title and description joined by single spaces.
func (c *Control) SearchText() string {
	return strings.ToLower(c.Code + " " + c.Title + " " + c.Description)
}

// EmbeddingText is the text embedded when scoring a control semantically.
func (c *Control) EmbeddingText() string {
	return strings.TrimSpace(c.Title + " " + c.Description)
}

// RequirementTag associates a requirement with a matching tag.
type RequirementTag struct {
	Id            ID
	RequirementId ID
	TagId         ID
}

// RequirementControl is one scored link between a requirement and a control.
type RequirementControl struct {
	Id              ID
	RequirementId   ID
	ControlId       ID
	SimilarityScore float64
	Source          MappingSource
}

// TaggedPair is a distinct (requirement, tag) pair of a tagged requirement.
type TaggedPair struct {
	RequirementId ID
	Tag           *Tag
}

// MappingCandidate is a keyword mapping joined with the texts needed to rescore it.
type MappingCandidate struct {
	MappingId       ID
	RequirementId   ID
	ControlId       ID
	RequirementText string
	ControlText     string // Trimmed title + " " + description
}

// ScoreUpdate is a staged overwrite of a mapping's score and source.
type ScoreUpdate struct {
	MappingId ID
	Score     float64
	Source    MappingSource
}

// ResultRow is one row of the flat result view. A mapping appears once per
// tag carried by its requirement; TagName is nil when the requirement has no tags.
type ResultRow struct {
	RequirementId   ID
	ClauseNumber    int
	RequirementText string
	TagName         *string
	MappingId       ID
	Framework       string
	ControlCode     string
	ControlTitle    string
	SimilarityScore float64
	Source          MappingSource
}

// GroupedResultRow is one mapping of the grouped result view with every tag
// of its requirement listed in name order.
type GroupedResultRow struct {
	RequirementId   ID
	ClauseNumber    int
	RequirementText string
	Tags            []string
	MappingId       ID
	Framework       string
	ControlCode     string
	ControlTitle    string
	SimilarityScore float64
	Source          MappingSource
}

// ControlMatch is a catalogue control ranked against free text.
type ControlMatch struct {
	Control *Control
	Score   float64
}

// Phase is the pipeline stage a regulation has reached, derived from its data.
type Phase string

const (
	PhaseEmpty    Phase = "empty"
	PhaseParsed   Phase = "parsed"
	PhaseTagged   Phase = "tagged"
	PhaseMapped   Phase = "mapped"
	PhaseRescored Phase = "rescored"
)

// RegulationSummary counts a regulation's rows per pipeline stage.
type RegulationSummary struct {
	Regulation       *Regulation
	Requirements     int
	Pending          int
	Tagged           int
	TagAssociations  int
	KeywordMappings  int
	SemanticMappings int
	HybridMappings   int
}

// Phase derives the furthest stage the regulation has completed.
// Pending keyword mappings keep the regulation in PhaseMapped even when
// some mappings were already rescored.
func (s *RegulationSummary) Phase() Phase {
	switch {
	case s.Requirements == 0:
		return PhaseEmpty
	case s.KeywordMappings > 0:
		return PhaseMapped
	case s.HybridMappings > 0 || s.SemanticMappings > 0:
		return PhaseRescored
	case s.Tagged > 0:
		return PhaseTagged
	default:
		return PhaseParsed
	}
}
