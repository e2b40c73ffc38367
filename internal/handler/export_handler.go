package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/class-builder-api/internal/dto"
	"github.com/noah-isme/class-builder-api/internal/models"
	"github.com/noah-isme/class-builder-api/internal/service"
	appErrors "github.com/noah-isme/class-builder-api/pkg/errors"
	"github.com/noah-isme/class-builder-api/pkg/response"
)

type exportJobs interface {
	CreateJob(ctx context.Context, source models.ExportSource, sourceID string, req dto.CreateExportRequest, actorID string) (*dto.ExportJobResponse, error)
	GetStatus(ctx context.Context, id string, actorID string, role models.UserRole) (*dto.ExportStatusResponse, error)
	ResolveDownload(ctx context.Context, token string) (*service.ExportDownload, error)
}

type templateRenderer interface {
	Template(format models.ExportFormat) ([]byte, string, error)
}

// ExportHandler exposes export and template endpoints.
type ExportHandler struct {
	jobs      exportJobs
	templates templateRenderer
}

// NewExportHandler constructs the handler. jobs may be nil when exports are disabled.
func NewExportHandler(jobs exportJobs, templates templateRenderer) *ExportHandler {
	return &ExportHandler{jobs: jobs, templates: templates}
}

// ProposalExport godoc
// @Summary Queue an export of a proposal
// @Tags Exports
// @Accept json
// @Produce json
// @Param id path string true "Proposal ID"
// @Param payload body dto.CreateExportRequest true "Export payload"
// @Success 202 {object} response.Envelope
// @Router /class-builder/proposals/{id}/exports [post]
func (h *ExportHandler) ProposalExport(c *gin.Context) {
	h.create(c, models.ExportSourceProposal)
}

// GenerationExport godoc
// @Summary Queue an export of a saved generation
// @Tags Exports
// @Accept json
// @Produce json
// @Param id path string true "Generation ID"
// @Param payload body dto.CreateExportRequest true "Export payload"
// @Success 202 {object} response.Envelope
// @Router /class-builder/generations/{id}/exports [post]
func (h *ExportHandler) GenerationExport(c *gin.Context) {
	h.create(c, models.ExportSourceGeneration)
}

func (h *ExportHandler) create(c *gin.Context, source models.ExportSource) {
	if h.jobs == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrFeatureDisabled, "exports are disabled"))
		return
	}
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.CreateExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export payload"))
		return
	}
	result, err := h.jobs.CreateJob(c.Request.Context(), source, c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, result)
}

// Status godoc
// @Summary Export job status
// @Tags Exports
// @Produce json
// @Param jobId path string true "Export job ID"
// @Success 200 {object} response.Envelope
// @Router /class-builder/exports/{jobId} [get]
func (h *ExportHandler) Status(c *gin.Context) {
	if h.jobs == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrFeatureDisabled, "exports are disabled"))
		return
	}
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	result, err := h.jobs.GetStatus(c.Request.Context(), c.Param("jobId"), claims.UserID, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Download godoc
// @Summary Download a finished export
// @Description The signed token is the credential; no bearer token is needed.
// @Tags Exports
// @Produce application/octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /class-builder/exports/download/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	if h.jobs == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrFeatureDisabled, "exports are disabled"))
		return
	}
	download, err := h.jobs.ResolveDownload(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close()

	c.Header("Content-Type", download.ContentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", download.Filename))
	c.Header("Cache-Control", "no-store")
	if !download.ExpiresAt.IsZero() {
		c.Header("Expires", download.ExpiresAt.UTC().Format(http.TimeFormat))
	}
	http.ServeContent(c.Writer, c.Request, download.Filename, download.ModTime, download.File)
}

// Template godoc
// @Summary Download the roster import template
// @Tags ClassBuilder
// @Produce application/octet-stream
// @Param format query string false "csv (default) or xlsx"
// @Success 200 {file} file
// @Failure 415 {object} response.Envelope
// @Router /class-builder/rosters/template [get]
func (h *ExportHandler) Template(c *gin.Context) {
	format := models.ExportFormat(strings.ToLower(c.DefaultQuery("format", string(models.ExportFormatCSV))))
	data, filename, err := h.templates.Template(format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, filename, format.ContentType(), data)
}
