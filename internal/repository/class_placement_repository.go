package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/class-builder-api/internal/models"
)

// ClassPlacementRepository stores the student rows of saved generations.
type ClassPlacementRepository struct {
	db *sqlx.DB
}

// NewClassPlacementRepository builds the repository.
func NewClassPlacementRepository(db *sqlx.DB) *ClassPlacementRepository {
	return &ClassPlacementRepository{db: db}
}

func (r *ClassPlacementRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// InsertBatch writes every placement through exec, normally a transaction.
func (r *ClassPlacementRepository) InsertBatch(ctx context.Context, exec sqlx.ExtContext, placements []models.ClassPlacement) error {
	if len(placements) == 0 {
		return nil
	}
	target := r.exec(exec)
	now := time.Now().UTC()

	const query = `
INSERT INTO class_generation_placements (id, generation_id, group_name, group_order, class_index, position, student_id,
    first_name, surname, full_name, prior_class, gender, academic, behaviour, pair_request, separate_request, created_at)
VALUES (:id, :generation_id, :group_name, :group_order, :class_index, :position, :student_id,
    :first_name, :surname, :full_name, :prior_class, :gender, :academic, :behaviour, :pair_request, :separate_request, :created_at)`

	for i := range placements {
		p := &placements[i]
		if p.GenerationID == "" {
			return fmt.Errorf("placement %d: generation_id is required", i)
		}
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		if _, err := sqlx.NamedExecContext(ctx, target, query, p); err != nil {
			return fmt.Errorf("insert class placement: %w", err)
		}
	}
	return nil
}

// ListByGeneration returns placements in group, class and seat order.
func (r *ClassPlacementRepository) ListByGeneration(ctx context.Context, generationID string) ([]models.ClassPlacement, error) {
	const query = `SELECT id, generation_id, group_name, group_order, class_index, position, student_id, first_name, surname,
full_name, prior_class, gender, academic, behaviour, pair_request, separate_request, created_at
FROM class_generation_placements WHERE generation_id = $1 ORDER BY group_order ASC, class_index ASC, position ASC`
	var placements []models.ClassPlacement
	if err := r.db.SelectContext(ctx, &placements, query, generationID); err != nil {
		return nil, fmt.Errorf("list class placements: %w", err)
	}
	return placements, nil
}
