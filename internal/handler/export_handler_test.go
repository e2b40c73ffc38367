package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/class-builder-api/internal/dto"
	"github.com/noah-isme/class-builder-api/internal/middleware"
	"github.com/noah-isme/class-builder-api/internal/models"
	"github.com/noah-isme/class-builder-api/internal/service"
	appErrors "github.com/noah-isme/class-builder-api/pkg/errors"
)

type exportJobsMock struct {
	source      models.ExportSource
	sourceID    string
	actor       string
	createErr   error
	statusResp  *dto.ExportStatusResponse
	statusErr   error
	download    *service.ExportDownload
	downloadErr error
}

func (m *exportJobsMock) CreateJob(ctx context.Context, source models.ExportSource, sourceID string, req dto.CreateExportRequest, actorID string) (*dto.ExportJobResponse, error) {
	m.source, m.sourceID, m.actor = source, sourceID, actorID
	if m.createErr != nil {
		return nil, m.createErr
	}
	return &dto.ExportJobResponse{ID: "job-1", Status: models.ExportStatusQueued}, nil
}

func (m *exportJobsMock) GetStatus(ctx context.Context, id string, actorID string, role models.UserRole) (*dto.ExportStatusResponse, error) {
	return m.statusResp, m.statusErr
}

func (m *exportJobsMock) ResolveDownload(ctx context.Context, token string) (*service.ExportDownload, error) {
	return m.download, m.downloadErr
}

type templateMock struct{}

func (templateMock) Template(format models.ExportFormat) ([]byte, string, error) {
	if format != models.ExportFormatCSV {
		return nil, "", appErrors.ErrUnsupportedFormat
	}
	return []byte("Class,Surname\n"), "class_builder_template.csv", nil
}

func TestExportHandlerQueuesProposalAndGenerationExports(t *testing.T) {
	gin.SetMode(gin.TestMode)
	jobs := &exportJobsMock{}
	handler := NewExportHandler(jobs, templateMock{})
	payload, _ := json.Marshal(dto.CreateExportRequest{Format: models.ExportFormatXLSX})

	c, w := newGinContext(http.MethodPost, "/class-builder/proposals/p-1/exports", payload)
	c.Params = gin.Params{{Key: "id", Value: "p-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher})
	handler.ProposalExport(c)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, models.ExportSourceProposal, jobs.source)
	assert.Equal(t, "p-1", jobs.sourceID)
	assert.Equal(t, "teacher-1", jobs.actor)

	c, w = newGinContext(http.MethodPost, "/class-builder/generations/gen-1/exports", payload)
	c.Params = gin.Params{{Key: "id", Value: "gen-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
	handler.GenerationExport(c)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, models.ExportSourceGeneration, jobs.source)
}

func TestExportHandlerCreateRequiresClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewExportHandler(&exportJobsMock{}, templateMock{})

	c, w := newGinContext(http.MethodPost, "/class-builder/proposals/p-1/exports", []byte(`{"format":"csv"}`))
	handler.ProposalExport(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestExportHandlerDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewExportHandler(nil, templateMock{})

	c, w := newGinContext(http.MethodGet, "/class-builder/exports/job-1", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
	handler.Status(c)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), appErrors.ErrFeatureDisabled.Code)
}

func TestExportHandlerStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	url := "/api/v1/class-builder/exports/download/tok"
	jobs := &exportJobsMock{statusResp: &dto.ExportStatusResponse{ID: "job-1", Status: models.ExportStatusFinished, Progress: 100, ResultURL: &url}}
	handler := NewExportHandler(jobs, templateMock{})

	c, w := newGinContext(http.MethodGet, "/class-builder/exports/job-1", nil)
	c.Params = gin.Params{{Key: "jobId", Value: "job-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
	handler.Status(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"FINISHED"`)

	jobs.statusErr = appErrors.ErrForbidden
	c, w = newGinContext(http.MethodGet, "/class-builder/exports/job-1", nil)
	c.Params = gin.Params{{Key: "jobId", Value: "job-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "teacher-2", Role: models.RoleTeacher})
	handler.Status(c)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestExportHandlerDownload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	file, err := os.CreateTemp(t.TempDir(), "classes*.csv")
	require.NoError(t, err)
	_, _ = file.WriteString("Group,Class\n")
	_, _ = file.Seek(0, 0)

	jobs := &exportJobsMock{download: &service.ExportDownload{
		File:        file,
		Filename:    "classes.csv",
		ContentType: models.ExportFormatCSV.ContentType(),
		ModTime:     time.Now(),
		ExpiresAt:   time.Now().Add(time.Hour),
	}}
	handler := NewExportHandler(jobs, templateMock{})

	c, w := newGinContext(http.MethodGet, "/class-builder/exports/download/tok", nil)
	c.Params = gin.Params{{Key: "token", Value: "tok"}}
	handler.Download(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Group,Class\n", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), `filename="classes.csv"`)
	assert.NotEmpty(t, w.Header().Get("Expires"))
}

func TestExportHandlerDownloadRejectsBadToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewExportHandler(&exportJobsMock{downloadErr: appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")}, templateMock{})

	c, w := newGinContext(http.MethodGet, "/class-builder/exports/download/bad", nil)
	c.Params = gin.Params{{Key: "token", Value: "bad"}}
	handler.Download(c)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestExportHandlerTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewExportHandler(nil, templateMock{})

	c, w := newGinContext(http.MethodGet, "/class-builder/rosters/template", nil)
	handler.Template(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "Class,Surname"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "class_builder_template.csv")

	c, w = newGinContext(http.MethodGet, "/class-builder/rosters/template?format=pdf", nil)
	handler.Template(c)
	require.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestMetricsHandlerReady(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewMetricsHandler(service.NewMetricsService(), map[string]ReadinessCheck{
		"database": func(context.Context) error { return nil },
	})

	c, w := newGinContext(http.MethodGet, "/ready", nil)
	handler.Ready(c)
	require.Equal(t, http.StatusOK, w.Code)

	handler = NewMetricsHandler(nil, map[string]ReadinessCheck{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})
	c, w = newGinContext(http.MethodGet, "/ready", nil)
	handler.Ready(c)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")

	c, w = newGinContext(http.MethodGet, "/metrics", nil)
	handler.Prometheus(c)
	c.Writer.WriteHeaderNow()
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetricsHandlerPrometheus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	metrics.RecordMove()
	handler := NewMetricsHandler(metrics, nil)

	c, w := newGinContext(http.MethodGet, "/metrics", nil)
	handler.Prometheus(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "class_builder")
}
