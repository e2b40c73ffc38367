package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/class-builder-api/internal/models"
)

const classGenerationColumns = `id, name, version, seed, student_count, class_count, meta, created_by, created_at`

// ClassGenerationRepository persists saved, versioned class generations.
type ClassGenerationRepository struct {
	db *sqlx.DB
}

// NewClassGenerationRepository constructs the repository.
func NewClassGenerationRepository(db *sqlx.DB) *ClassGenerationRepository {
	return &ClassGenerationRepository{db: db}
}

func (r *ClassGenerationRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// CreateVersioned inserts a generation with the next version for its name.
func (r *ClassGenerationRepository) CreateVersioned(ctx context.Context, exec sqlx.ExtContext, gen *models.ClassGeneration) error {
	if gen == nil {
		return fmt.Errorf("generation payload is nil")
	}
	gen.Name = strings.TrimSpace(gen.Name)
	if gen.Name == "" {
		return fmt.Errorf("generation name is required")
	}
	if gen.ID == "" {
		gen.ID = uuid.NewString()
	}
	if len(gen.Meta) == 0 {
		gen.Meta = types.JSONText(`{}`)
	}
	if gen.CreatedAt.IsZero() {
		gen.CreatedAt = time.Now().UTC()
	}

	target := r.exec(exec)

	const nextVersionQuery = `SELECT COALESCE(MAX(version), 0) + 1 FROM class_generations WHERE name = $1`
	if err := sqlx.GetContext(ctx, target, &gen.Version, nextVersionQuery, gen.Name); err != nil {
		return fmt.Errorf("compute next generation version: %w", err)
	}

	const insertQuery = `
INSERT INTO class_generations (id, name, version, seed, student_count, class_count, meta, created_by, created_at)
VALUES (:id, :name, :version, :seed, :student_count, :class_count, :meta, :created_by, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, target, insertQuery, gen); err != nil {
		return fmt.Errorf("insert class generation: %w", err)
	}
	return nil
}

// List returns generations newest first together with the unpaginated total.
func (r *ClassGenerationRepository) List(ctx context.Context, filter models.ClassGenerationFilter) ([]models.ClassGeneration, int, error) {
	args := make([]interface{}, 0, 3)
	where := ""
	if name := strings.TrimSpace(filter.Name); name != "" {
		args = append(args, name)
		where = fmt.Sprintf(" WHERE name = $%d", len(args))
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM class_generations"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count class generations: %w", err)
	}

	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	args = append(args, size, (page-1)*size)
	query := fmt.Sprintf("SELECT %s FROM class_generations%s ORDER BY created_at DESC, version DESC LIMIT $%d OFFSET $%d",
		classGenerationColumns, where, len(args)-1, len(args))

	var generations []models.ClassGeneration
	if err := r.db.SelectContext(ctx, &generations, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list class generations: %w", err)
	}
	return generations, total, nil
}

// FindByID loads a generation by id.
func (r *ClassGenerationRepository) FindByID(ctx context.Context, id string) (*models.ClassGeneration, error) {
	query := `SELECT ` + classGenerationColumns + ` FROM class_generations WHERE id = $1`
	var gen models.ClassGeneration
	if err := r.db.GetContext(ctx, &gen, query, id); err != nil {
		return nil, err
	}
	return &gen, nil
}

// Delete removes a generation. Placements cascade.
func (r *ClassGenerationRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM class_generations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete class generation: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("class generation rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
