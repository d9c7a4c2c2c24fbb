package sqlstore

import (
	"time"

	"github.com/poiesic/regmap/core"
)

type regulationRow struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	Name       string
	FilePath   string
	UploadDate time.Time
}

func (regulationRow) TableName() string { return "regulations" }

func (r *regulationRow) toCore() *core.Regulation {
	return &core.Regulation{
		Id:         core.ID(r.ID),
		Name:       r.Name,
		SourceRef:  r.FilePath,
		UploadedAt: r.UploadDate,
	}
}

type requirementRow struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement"`
	RegulationID uint64
	ClauseNumber int
	Text         string
	Status       string
}

func (requirementRow) TableName() string { return "requirements" }

func (r *requirementRow) toCore() *core.Requirement {
	return &core.Requirement{
		Id:           core.ID(r.ID),
		RegulationId: core.ID(r.RegulationID),
		ClauseNumber: r.ClauseNumber,
		Text:         r.Text,
		Status:       core.RequirementStatus(r.Status),
	}
}

type tagRow struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement"`
	Name    string
	Keyword string
}

func (tagRow) TableName() string { return "tags" }

func (r *tagRow) toCore() *core.Tag {
	return &core.Tag{Id: core.ID(r.ID), Name: r.Name, Keyword: r.Keyword}
}

type requirementTagRow struct {
	ID            uint64 `gorm:"primaryKey;autoIncrement"`
	RequirementID uint64
	TagID         uint64
}

func (requirementTagRow) TableName() string { return "requirement_tags" }

type controlRow struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement"`
	Framework   string
	ControlID   string `gorm:"column:control_id"`
	Title       string
	Description string
}

func (controlRow) TableName() string { return "controls" }

func (r *controlRow) toCore() *core.Control {
	return &core.Control{
		Id:          core.ID(r.ID),
		Framework:   r.Framework,
		Code:        r.ControlID,
		Title:       r.Title,
		Description: r.Description,
	}
}

type requirementControlRow struct {
	ID              uint64 `gorm:"primaryKey;autoIncrement"`
	RequirementID   uint64
	ControlID       uint64 `gorm:"column:control_id"`
	SimilarityScore float64
	Source          string
}

func (requirementControlRow) TableName() string { return "requirement_controls" }

// resultScan receives one row of the result join.
type resultScan struct {
	RequirementID   uint64
	ClauseNumber    int
	RequirementText string
	TagName         *string
	MappingID       uint64
	Framework       string
	ControlCode     string
	ControlTitle    string
	SimilarityScore float64
	Source          string
}

func (r *resultScan) toCore() *core.ResultRow {
	return &core.ResultRow{
		RequirementId:   core.ID(r.RequirementID),
		ClauseNumber:    r.ClauseNumber,
		RequirementText: r.RequirementText,
		TagName:         r.TagName,
		MappingId:       core.ID(r.MappingID),
		Framework:       r.Framework,
		ControlCode:     r.ControlCode,
		ControlTitle:    r.ControlTitle,
		SimilarityScore: r.SimilarityScore,
		Source:          core.MappingSource(r.Source),
	}
}

type candidateScan struct {
	MappingID       uint64
	RequirementID   uint64
	ControlID       uint64
	RequirementText string
	Title           string
	Description     string
}

type taggedPairScan struct {
	RequirementID uint64
	TagID         uint64
	Name          string
	Keyword       string
}

type countScan struct {
	Label string
	N   int
}
