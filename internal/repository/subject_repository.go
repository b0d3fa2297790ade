package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"edudrive/internal/domain"
)

// SubjectRepository is a read-only view of the platform's subject/material
// tables, consumed by the sync orchestrator. This service never writes them.
type SubjectRepository struct {
	db *sqlx.DB
}

func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

func (r *SubjectRepository) GetSubject(ctx context.Context, id int64) (*domain.Subject, error) {
	var subject domain.Subject
	err := r.db.GetContext(ctx, &subject,
		`SELECT id, title, created_at FROM subjects WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("subject %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get subject: %w", err)
	}

	return &subject, nil
}

func (r *SubjectRepository) GetMaterials(ctx context.Context, subjectID int64) ([]domain.Material, error) {
	var materials []domain.Material
	query := `
        SELECT id, subject_id, name, mime_type, size_bytes, blob_key
        FROM subject_materials
        WHERE subject_id = $1
        ORDER BY id`

	err := r.db.SelectContext(ctx, &materials, query, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to get subject materials: %w", err)
	}

	return materials, nil
}
