package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/class-builder-api/internal/allocation"
	"github.com/noah-isme/class-builder-api/internal/dto"
	"github.com/noah-isme/class-builder-api/internal/models"
	appErrors "github.com/noah-isme/class-builder-api/pkg/errors"
	"github.com/noah-isme/class-builder-api/pkg/export"
	"github.com/noah-isme/class-builder-api/pkg/jobs"
)

type classSource interface {
	Proposal(ctx context.Context, id string) (*models.Proposal, error)
	LoadGeneration(ctx context.Context, id string) (*models.ClassGeneration, *allocation.Generated, error)
}

type exportDispatcher interface {
	Enqueue(job jobs.Job[ExportPayload]) error
}

// ExportPayload is the document snapshot a queued export renders.
type ExportPayload struct {
	Document export.Document
}

// ExportJobConfig governs cleanup of finished exports.
type ExportJobConfig struct {
	ResultTTL       time.Duration
	CleanupInterval time.Duration
}

// ExportDownload aggregates resolved download data.
type ExportDownload struct {
	File        io.ReadSeekCloser
	Filename    string
	ContentType string
	ModTime     time.Time
	ExpiresAt   time.Time
}

// ExportJobService orchestrates the export job lifecycle.
type ExportJobService struct {
	store     *ExportJobStore
	sources   classSource
	queue     exportDispatcher
	exporter  *ExportService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ExportJobConfig
}

// NewExportJobService constructs the export job service.
func NewExportJobService(store *ExportJobStore, sources classSource, queue exportDispatcher, exporter *ExportService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg ExportJobConfig) *ExportJobService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportJobService{
		store:     store,
		sources:   sources,
		queue:     queue,
		exporter:  exporter,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// CreateJob snapshots the proposal or generation and enqueues its rendering.
func (s *ExportJobService) CreateJob(ctx context.Context, source models.ExportSource, sourceID string, req dto.CreateExportRequest, actorID string) (*dto.ExportJobResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export payload")
	}
	doc, err := s.document(ctx, source, sourceID)
	if err != nil {
		return nil, err
	}
	if doc.Empty() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "there are no classes to export")
	}

	job := &models.ExportJob{
		Source:    source,
		SourceID:  sourceID,
		Format:    req.Format,
		Status:    models.ExportStatusQueued,
		CreatedBy: actorID,
	}
	s.store.Create(job)
	if err := s.queue.Enqueue(jobs.Job[ExportPayload]{ID: job.ID, Type: string(job.Format), Payload: ExportPayload{Document: doc}}); err != nil {
		msg := "failed to enqueue job"
		s.store.Update(job.ID, func(j *models.ExportJob) {
			markFinished(j, models.ExportStatusFailed, &msg)
		})
		s.metrics.RecordExport(string(job.Format), "failed")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export job")
	}
	s.logger.Info("export queued",
		zap.String("job_id", job.ID),
		zap.String("source", string(source)),
		zap.String("source_id", sourceID),
		zap.String("format", string(job.Format)))
	return &dto.ExportJobResponse{ID: job.ID, Status: job.Status, Progress: job.Progress}, nil
}

func (s *ExportJobService) document(ctx context.Context, source models.ExportSource, id string) (export.Document, error) {
	switch source {
	case models.ExportSourceProposal:
		p, err := s.sources.Proposal(ctx, id)
		if err != nil {
			return export.Document{}, err
		}
		return BuildDocument(fmt.Sprintf("Class proposal %s", shortID(p.ID)), p.Generated, p.Requests), nil
	case models.ExportSourceGeneration:
		gen, generated, err := s.sources.LoadGeneration(ctx, id)
		if err != nil {
			return export.Document{}, err
		}
		ledger := allocation.ResolveRequests(GeneratedStudents(generated))
		return BuildDocument(fmt.Sprintf("%s v%d", gen.Name, gen.Version), generated, ledger), nil
	default:
		return export.Document{}, appErrors.Clone(appErrors.ErrValidation, "unknown export source")
	}
}

// GetStatus exposes job metadata to clients, enforcing ownership for teachers.
func (s *ExportJobService) GetStatus(_ context.Context, id string, actorID string, role models.UserRole) (*dto.ExportStatusResponse, error) {
	job, ok := s.store.Get(id)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
	}
	if role == models.RoleTeacher && job.CreatedBy != actorID {
		return nil, appErrors.ErrForbidden
	}
	resp := &dto.ExportStatusResponse{
		ID:        job.ID,
		Status:    job.Status,
		Progress:  job.Progress,
		Format:    job.Format,
		ResultURL: job.ResultURL,
		ExpiresAt: job.ExpiresAt,
	}
	if job.ErrorMessage != nil && *job.ErrorMessage != "" {
		resp.Error = job.ErrorMessage
	}
	return resp, nil
}

// ResolveDownload validates the token and opens the stored export file.
func (s *ExportJobService) ResolveDownload(_ context.Context, token string) (*ExportDownload, error) {
	jobID, relPath, expiresAt, err := s.exporter.ParseToken(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	job, ok := s.store.Get(jobID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
	}
	if job.ResultURL == nil || !strings.HasSuffix(*job.ResultURL, token) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	if job.Status != models.ExportStatusFinished {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "export not ready")
	}
	file, info, err := s.exporter.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export file")
	}
	return &ExportDownload{
		File:        file,
		Filename:    filepath.Base(relPath),
		ContentType: job.Format.ContentType(),
		ModTime:     info.ModTime(),
		ExpiresAt:   expiresAt,
	}, nil
}

// StartCleanup boots a goroutine that purges expired exports periodically.
func (s *ExportJobService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cleanupExpired()
			}
		}
	}()
}

func (s *ExportJobService) cleanupExpired() {
	cutoff := time.Now().UTC().Add(-s.cfg.ResultTTL)
	for _, job := range s.store.FinishedBefore(cutoff) {
		if token := extractToken(job.ResultURL); token != "" {
			if _, relPath, _, err := s.exporter.ParseToken(token, true); err == nil {
				if err := s.exporter.Delete(relPath); err != nil {
					s.logger.Warn("cleanup delete failed", zap.String("job_id", job.ID), zap.Error(err))
				}
			}
		}
		s.store.Delete(job.ID)
	}
	if _, err := s.exporter.Cleanup(s.cfg.ResultTTL); err != nil {
		s.logger.Warn("filesystem cleanup failed", zap.Error(err))
	}
}

func extractToken(url *string) string {
	if url == nil || *url == "" {
		return ""
	}
	parts := strings.Split(*url, "/")
	return parts[len(parts)-1]
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func markFinished(j *models.ExportJob, status models.ExportStatus, msg *string) {
	now := time.Now().UTC()
	j.Status = status
	j.Progress = 100
	j.FinishedAt = &now
	j.ErrorMessage = msg
}

// ExportWorker bridges queue jobs to ExportService.
type ExportWorker struct {
	store    *ExportJobStore
	exporter *ExportService
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewExportWorker constructs a worker.
func NewExportWorker(store *ExportJobStore, exporter *ExportService, metrics *MetricsService, logger *zap.Logger) *ExportWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportWorker{store: store, exporter: exporter, metrics: metrics, logger: logger}
}

// Handle renders one queued export. Failed attempts go back to QUEUED; the
// queue retries them and calls Fail once retries are exhausted.
func (w *ExportWorker) Handle(ctx context.Context, job jobs.Job[ExportPayload]) error {
	record, ok := w.store.Get(job.ID)
	if !ok {
		return fmt.Errorf("export job %s not found", job.ID)
	}
	w.store.Update(job.ID, func(j *models.ExportJob) {
		j.Status = models.ExportStatusProcessing
		j.Progress = 10
	})

	result, err := w.exporter.Generate(ctx, record, job.Payload.Document)
	if err != nil {
		msg := err.Error()
		w.store.Update(job.ID, func(j *models.ExportJob) {
			j.Status = models.ExportStatusQueued
			j.Progress = 0
			j.ErrorMessage = &msg
		})
		return err
	}

	url := result.URL
	expiresAt := result.ExpiresAt
	w.store.Update(job.ID, func(j *models.ExportJob) {
		markFinished(j, models.ExportStatusFinished, nil)
		j.FileName = filepath.Base(result.RelativePath)
		j.ResultURL = &url
		j.ExpiresAt = &expiresAt
	})
	w.metrics.RecordExport(string(record.Format), "finished")
	w.logger.Info("export finished", zap.String("job_id", job.ID), zap.String("file", result.RelativePath))
	return nil
}

// Fail marks a job whose retries are exhausted.
func (w *ExportWorker) Fail(job jobs.Job[ExportPayload], err error) {
	msg := err.Error()
	var format string
	w.store.Update(job.ID, func(j *models.ExportJob) {
		markFinished(j, models.ExportStatusFailed, &msg)
		format = string(j.Format)
	})
	w.metrics.RecordExport(format, "failed")
}
