package dto

import (
	"time"

	"github.com/noah-isme/class-builder-api/internal/allocation"
	"github.com/noah-isme/class-builder-api/internal/models"
)

// StudentInput is one roster line submitted for generation.
type StudentInput struct {
	ID              string `json:"id,omitempty" validate:"omitempty,max=64"`
	FirstName       string `json:"firstName" validate:"max=120"`
	Surname         string `json:"surname" validate:"max=120"`
	FullName        string `json:"fullName,omitempty" validate:"max=240"`
	Class           string `json:"class" validate:"max=32"`
	Gender          string `json:"gender" validate:"max=32"`
	Academic        string `json:"academic" validate:"max=32"`
	Behaviour       string `json:"behaviour" validate:"max=32"`
	PairRequest     string `json:"pairRequest,omitempty" validate:"max=500"`
	SeparateRequest string `json:"separateRequest,omitempty" validate:"max=500"`
}

// ClassSize bounds class sizes. Max is a hard cap, Min is advisory.
type ClassSize struct {
	Min int `json:"min" validate:"gte=0,ltefield=Max"`
	Max int `json:"max" validate:"gte=1"`
}

// GenerateClassesRequest captures POST /class-builder/generate payload.
type GenerateClassesRequest struct {
	Students         []StudentInput      `json:"students" validate:"required,min=1,dive"`
	YearLevels       []string            `json:"yearLevels" validate:"dive,max=16"`
	TotalClasses     int                 `json:"totalClasses"`
	CompositeClasses int                 `json:"compositeClasses"`
	ClassSize        ClassSize           `json:"classSize"`
	Seed             *int64              `json:"seed,omitempty"`
	Weights          *allocation.Weights `json:"weights,omitempty"`
}

// GenerateClassesResponse describes a stored proposal.
type GenerateClassesResponse struct {
	ProposalID         string                  `json:"proposalId"`
	Seed               int64                   `json:"seed"`
	ExpiresAt          time.Time               `json:"expiresAt"`
	Settings           models.ProposalSettings `json:"settings"`
	Groups             []*allocation.Group     `json:"groups"`
	Requests           allocation.Ledger       `json:"requests"`
	UnplacedStudentIDs []string                `json:"unplacedStudentIds"`
	Fallbacks          []models.GroupFallback  `json:"fallbacks"`
	UnseededPairs      []allocation.Request    `json:"unseededPairs"`
	Warnings           []string                `json:"warnings"`
}

// MoveStudentRequest captures POST /class-builder/proposals/:id/moves payload.
// A nil Position appends to the destination class.
type MoveStudentRequest struct {
	StudentID   string `json:"studentId" validate:"required"`
	SourceGroup string `json:"sourceGroup" validate:"required"`
	SourceClass int    `json:"sourceClass" validate:"gte=0"`
	DestGroup   string `json:"destGroup" validate:"required"`
	DestClass   int    `json:"destClass" validate:"gte=0"`
	Position    *int   `json:"position,omitempty"`
}

// MoveStudentResponse returns both touched classes with fresh statistics.
type MoveStudentResponse struct {
	Source      *allocation.Class    `json:"source"`
	Destination *allocation.Class    `json:"destination"`
	Violations  []allocation.Request `json:"violations"`
}

// SaveGenerationRequest captures POST /class-builder/generations payload.
type SaveGenerationRequest struct {
	ProposalID string `json:"proposalId" validate:"required"`
	Name       string `json:"name" validate:"required,max=120"`
}

// GenerationPlacementsResponse rebuilds the classes of a saved generation.
type GenerationPlacementsResponse struct {
	Generation models.ClassGeneration `json:"generation"`
	Groups     []*allocation.Group    `json:"groups"`
}

// ParseRosterRequest carries a pasted, tab separated roster.
type ParseRosterRequest struct {
	Text string `json:"text" validate:"required"`
}

// ParseRosterResponse lists the parsed students and the requests resolved among them.
type ParseRosterResponse struct {
	Students []allocation.Student `json:"students"`
	Count    int                  `json:"count"`
	Requests allocation.Ledger    `json:"requests"`
}

// CreateExportRequest captures POST .../exports payload.
type CreateExportRequest struct {
	Format models.ExportFormat `json:"format" validate:"required,oneof=xlsx csv pdf"`
}

// ExportJobResponse is returned after enqueueing an export.
type ExportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ExportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ExportStatusResponse exposes export progress metadata.
type ExportStatusResponse struct {
	ID        string              `json:"id"`
	Status    models.ExportStatus `json:"status"`
	Progress  int                 `json:"progress"`
	Format    models.ExportFormat `json:"format"`
	ResultURL *string             `json:"resultUrl,omitempty"`
	ExpiresAt *time.Time          `json:"expiresAt,omitempty"`
	Error     *string             `json:"error,omitempty"`
}
