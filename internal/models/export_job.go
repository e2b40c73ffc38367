package models

import "time"

// ExportFormat enumerates the class list renderings.
type ExportFormat string

const (
	ExportFormatXLSX ExportFormat = "xlsx"
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatPDF  ExportFormat = "pdf"
)

// ContentType returns the MIME type of the rendered file.
func (f ExportFormat) ContentType() string {
	switch f {
	case ExportFormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ExportFormatPDF:
		return "application/pdf"
	default:
		return "text/csv"
	}
}

// ExportStatus captures background job lifecycle states.
type ExportStatus string

const (
	ExportStatusQueued     ExportStatus = "QUEUED"
	ExportStatusProcessing ExportStatus = "PROCESSING"
	ExportStatusFinished   ExportStatus = "FINISHED"
	ExportStatusFailed     ExportStatus = "FAILED"
)

// ExportSource names what an export renders: a live proposal or a saved generation.
type ExportSource string

const (
	ExportSourceProposal   ExportSource = "proposal"
	ExportSourceGeneration ExportSource = "generation"
)

// ExportJob tracks one asynchronous export.
type ExportJob struct {
	ID           string       `json:"id"`
	Source       ExportSource `json:"source"`
	SourceID     string       `json:"source_id"`
	Format       ExportFormat `json:"format"`
	Status       ExportStatus `json:"status"`
	Progress     int          `json:"progress"`
	FileName     string       `json:"file_name,omitempty"`
	ResultURL    *string      `json:"result_url,omitempty"`
	CreatedBy    string       `json:"created_by"`
	CreatedAt    time.Time    `json:"created_at"`
	FinishedAt   *time.Time   `json:"finished_at,omitempty"`
	ExpiresAt    *time.Time   `json:"expires_at,omitempty"`
	ErrorMessage *string      `json:"error_message,omitempty"`
}
