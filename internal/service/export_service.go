package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/class-builder-api/internal/allocation"
	"github.com/noah-isme/class-builder-api/internal/models"
	"github.com/noah-isme/class-builder-api/internal/roster"
	appErrors "github.com/noah-isme/class-builder-api/pkg/errors"
	"github.com/noah-isme/class-builder-api/pkg/export"
	"github.com/noah-isme/class-builder-api/pkg/storage"
)

type fileStorage interface {
	Save(name string, data []byte) (string, error)
	Open(name string) (io.ReadSeekCloser, os.FileInfo, error)
	Delete(name string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type documentRenderer interface {
	RenderDocument(doc export.Document) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ExportFormat
	ExpiresAt    time.Time
}

// ExportService renders class lists and persists the files behind signed links.
type ExportService struct {
	storage   fileStorage
	csv       *export.CSVExporter
	workbook  *export.WorkbookExporter
	renderers map[models.ExportFormat]documentRenderer
	signer    *storage.SignedURLSigner
	logger    *zap.Logger
	cfg       ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(files fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	csv := export.NewCSVExporter()
	workbook := export.NewWorkbookExporter()
	return &ExportService{
		storage:  files,
		csv:      csv,
		workbook: workbook,
		renderers: map[models.ExportFormat]documentRenderer{
			models.ExportFormatCSV:  csv,
			models.ExportFormatXLSX: workbook,
			models.ExportFormatPDF:  export.NewPDFExporter(),
		},
		signer: signer,
		logger: logger,
		cfg:    cfg,
	}
}

// Generate renders the document in the job's format and stores the file.
func (s *ExportService) Generate(ctx context.Context, job *models.ExportJob, doc export.Document) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	payload, err := s.Render(job.Format, doc)
	if err != nil {
		return nil, err
	}

	relPath, err := s.storage.Save(s.buildFilename(job, doc.Title), payload)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	s.logger.Debug("export rendered",
		zap.String("job_id", job.ID),
		zap.String("format", string(job.Format)),
		zap.Int("bytes", len(payload)))
	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/class-builder/exports/download/%s", prefix, token),
		Format:       job.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// Render encodes the document in format without storing it.
func (s *ExportService) Render(format models.ExportFormat, doc export.Document) ([]byte, error) {
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, fmt.Errorf("unsupported format %s", format)
	}
	return renderer.RenderDocument(doc)
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (io.ReadSeekCloser, os.FileInfo, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl, or the configured ResultTTL when ttl <= 0.
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

// Template renders an empty roster with example rows. Only xlsx and csv are offered.
func (s *ExportService) Template(format models.ExportFormat) ([]byte, string, error) {
	data := export.Dataset{Headers: roster.Columns}
	for _, row := range roster.TemplateRows {
		record := make(map[string]string, len(roster.Columns))
		for i, col := range roster.Columns {
			if i < len(row) {
				record[col] = row[i]
			}
		}
		data.Rows = append(data.Rows, record)
	}

	var (
		payload []byte
		err     error
	)
	switch format {
	case models.ExportFormatCSV:
		payload, err = s.csv.Render(data)
	case models.ExportFormatXLSX:
		payload, err = s.workbook.RenderTable("Students", data)
	default:
		return nil, "", appErrors.Clone(appErrors.ErrUnsupportedFormat, "template is available as xlsx or csv")
	}
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster template")
	}
	return payload, "class_builder_template." + string(format), nil
}

func (s *ExportService) buildFilename(job *models.ExportJob, title string) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	return fmt.Sprintf("%s_%s_%s.%s", sanitizeFilename(strings.ToLower(title)), timestamp, job.ID, job.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "classes"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

// BuildDocument converts generated groups into an export document. Students
// sharing a class with a separated partner are flagged as separations; those
// sharing a class with a requested partner are flagged as pairs.
func BuildDocument(title string, gen *allocation.Generated, ledger allocation.Ledger) export.Document {
	doc := export.Document{Title: title}
	if gen == nil {
		return doc
	}
	for _, group := range gen.Groups {
		sheet := export.GroupSheet{Name: group.Name}
		for i, class := range group.Classes {
			separated := requestNames(allocation.SeparationViolations(class, ledger))
			paired := requestNames(allocation.SatisfiedPairs(class, ledger))
			list := export.ClassList{Number: i + 1, Students: make([]export.StudentRow, 0, class.Size())}
			for _, st := range class.Students {
				row := export.StudentRow{
					ID:         st.ID,
					FullName:   st.FullName,
					Surname:    st.Surname,
					PriorClass: st.PriorClass,
					Gender:     st.Gender,
					Academic:   st.Academic,
					Behaviour:  st.Behaviour,
				}
				switch {
				case separated[st.FullName]:
					row.Highlight = export.HighlightSeparation
				case paired[st.FullName]:
					row.Highlight = export.HighlightPair
				}
				list.Students = append(list.Students, row)
			}
			sheet.Classes = append(sheet.Classes, list)
		}
		doc.Groups = append(doc.Groups, sheet)
	}
	return doc
}

func requestNames(reqs []allocation.Request) map[string]bool {
	names := make(map[string]bool, len(reqs)*2)
	for _, r := range reqs {
		names[r.Students[0]] = true
		names[r.Students[1]] = true
	}
	return names
}
