package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/class-builder-api/internal/dto"
	"github.com/noah-isme/class-builder-api/internal/models"
	appErrors "github.com/noah-isme/class-builder-api/pkg/errors"
	"github.com/noah-isme/class-builder-api/pkg/response"
)

const defaultMaxUploadBytes int64 = 5 << 20

type classBuilder interface {
	Generate(ctx context.Context, req dto.GenerateClassesRequest) (*dto.GenerateClassesResponse, error)
	GetProposal(ctx context.Context, id string) (*dto.GenerateClassesResponse, error)
	MoveStudent(ctx context.Context, proposalID string, req dto.MoveStudentRequest) (*dto.MoveStudentResponse, error)
	Save(ctx context.Context, req dto.SaveGenerationRequest) (*models.ClassGeneration, error)
	List(ctx context.Context, filter models.ClassGenerationFilter) ([]models.ClassGeneration, *models.Pagination, error)
	GetPlacements(ctx context.Context, id string) (*dto.GenerationPlacementsResponse, error)
	Delete(ctx context.Context, id string) error
	ParseRoster(ctx context.Context, filename string, r io.Reader) (*dto.ParseRosterResponse, error)
	ParseRosterText(ctx context.Context, req dto.ParseRosterRequest) (*dto.ParseRosterResponse, error)
}

// ClassBuilderHandler exposes class generation endpoints.
type ClassBuilderHandler struct {
	service        classBuilder
	maxUploadBytes int64
}

// NewClassBuilderHandler constructs the handler.
func NewClassBuilderHandler(svc classBuilder, maxUploadBytes int64) *ClassBuilderHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &ClassBuilderHandler{service: svc, maxUploadBytes: maxUploadBytes}
}

// ParseRoster godoc
// @Summary Parse a student roster
// @Description Accepts a multipart upload (field "file", .xlsx/.csv/.tsv/.txt) or a JSON body with pasted tab separated text.
// @Tags ClassBuilder
// @Accept multipart/form-data
// @Accept json
// @Produce json
// @Param file formData file false "Roster file"
// @Param payload body dto.ParseRosterRequest false "Pasted roster"
// @Success 200 {object} response.Envelope
// @Failure 415 {object} response.Envelope
// @Router /class-builder/rosters/parse [post]
func (h *ClassBuilderHandler) ParseRoster(c *gin.Context) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		h.parseUpload(c)
		return
	}
	var req dto.ParseRosterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid roster payload"))
		return
	}
	result, err := h.service.ParseRosterText(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

func (h *ClassBuilderHandler) parseUpload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, appErrors.New("PAYLOAD_TOO_LARGE", http.StatusRequestEntityTooLarge, "roster file is too large"))
			return
		}
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "roster file required"))
		return
	}
	defer file.Close()

	result, err := h.service.ParseRoster(c.Request.Context(), header.Filename, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Generate godoc
// @Summary Generate a class proposal
// @Tags ClassBuilder
// @Accept json
// @Produce json
// @Param payload body dto.GenerateClassesRequest true "Generation payload"
// @Success 200 {object} response.Envelope
// @Router /class-builder/generate [post]
func (h *ClassBuilderHandler) Generate(c *gin.Context) {
	var req dto.GenerateClassesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generate payload"))
		return
	}
	result, err := h.service.Generate(actorContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// GetProposal godoc
// @Summary Get a stored proposal
// @Tags ClassBuilder
// @Produce json
// @Param id path string true "Proposal ID"
// @Success 200 {object} response.Envelope
// @Failure 410 {object} response.Envelope
// @Router /class-builder/proposals/{id} [get]
func (h *ClassBuilderHandler) GetProposal(c *gin.Context) {
	result, err := h.service.GetProposal(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// MoveStudent godoc
// @Summary Move a student between classes of a proposal
// @Tags ClassBuilder
// @Accept json
// @Produce json
// @Param id path string true "Proposal ID"
// @Param payload body dto.MoveStudentRequest true "Move payload"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /class-builder/proposals/{id}/moves [post]
func (h *ClassBuilderHandler) MoveStudent(c *gin.Context) {
	var req dto.MoveStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid move payload"))
		return
	}
	result, err := h.service.MoveStudent(actorContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Save godoc
// @Summary Save a proposal as a versioned generation
// @Tags ClassBuilder
// @Accept json
// @Produce json
// @Param payload body dto.SaveGenerationRequest true "Save payload"
// @Success 201 {object} response.Envelope
// @Router /class-builder/generations [post]
func (h *ClassBuilderHandler) Save(c *gin.Context) {
	var req dto.SaveGenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid save payload"))
		return
	}
	gen, err := h.service.Save(actorContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gen)
}

// List godoc
// @Summary List saved generations
// @Tags ClassBuilder
// @Produce json
// @Param name query string false "Generation name"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /class-builder/generations [get]
func (h *ClassBuilderHandler) List(c *gin.Context) {
	filter := models.ClassGenerationFilter{
		Name:     c.Query("name"),
		Page:     queryInt(c, "page"),
		PageSize: queryInt(c, "pageSize"),
	}
	items, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Placements godoc
// @Summary Get the classes of a saved generation
// @Tags ClassBuilder
// @Produce json
// @Param id path string true "Generation ID"
// @Success 200 {object} response.Envelope
// @Router /class-builder/generations/{id}/placements [get]
func (h *ClassBuilderHandler) Placements(c *gin.Context) {
	result, err := h.service.GetPlacements(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Delete godoc
// @Summary Delete a saved generation
// @Tags ClassBuilder
// @Param id path string true "Generation ID"
// @Success 204
// @Router /class-builder/generations/{id} [delete]
func (h *ClassBuilderHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func queryInt(c *gin.Context, key string) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return n
}
