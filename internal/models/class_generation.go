package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// ClassGeneration is a saved snapshot of a generated class proposal.
// Versions increase per name.
type ClassGeneration struct {
	ID           string         `db:"id" json:"id"`
	Name         string         `db:"name" json:"name"`
	Version      int            `db:"version" json:"version"`
	Seed         int64          `db:"seed" json:"seed"`
	StudentCount int            `db:"student_count" json:"student_count"`
	ClassCount   int            `db:"class_count" json:"class_count"`
	Meta         types.JSONText `db:"meta" json:"meta"`
	CreatedBy    string         `db:"created_by" json:"created_by"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
}

// ClassGenerationFilter narrows generation listings.
type ClassGenerationFilter struct {
	Name     string
	Page     int
	PageSize int
}

// Pagination is returned alongside generation listings.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// ClassPlacement stores one student's position inside a saved generation.
type ClassPlacement struct {
	ID              string    `db:"id" json:"id"`
	GenerationID    string    `db:"generation_id" json:"generation_id"`
	GroupName       string    `db:"group_name" json:"group_name"`
	GroupOrder      int       `db:"group_order" json:"group_order"`
	ClassIndex      int       `db:"class_index" json:"class_index"`
	Position        int       `db:"position" json:"position"`
	StudentID       string    `db:"student_id" json:"student_id"`
	FirstName       string    `db:"first_name" json:"first_name"`
	Surname         string    `db:"surname" json:"surname"`
	FullName        string    `db:"full_name" json:"full_name"`
	PriorClass      string    `db:"prior_class" json:"prior_class"`
	Gender          string    `db:"gender" json:"gender"`
	Academic        string    `db:"academic" json:"academic"`
	Behaviour       string    `db:"behaviour" json:"behaviour"`
	PairRequest     string    `db:"pair_request" json:"pair_request,omitempty"`
	SeparateRequest string    `db:"separate_request" json:"separate_request,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}
