package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/grademonitor-api/internal/models"
)

// GradebookRepository reads course items, grades and grading letters.
type GradebookRepository struct {
	db *sqlx.DB
}

// NewGradebookRepository constructs the repository.
func NewGradebookRepository(db *sqlx.DB) *GradebookRepository {
	return &GradebookRepository{db: db}
}

// ListCourseItems returns the gradable items of a course in creation order.
// Course and category totals and items without points are skipped.
func (r *GradebookRepository) ListCourseItems(ctx context.Context, courseID int64) ([]models.GradeItem, error) {
	const query = `SELECT id, course_id, item_name, item_type, grade_max, created_at FROM grade_items
WHERE course_id = $1 AND item_type NOT IN ('course', 'category') AND grade_max > 0 ORDER BY created_at ASC, id ASC`
	var items []models.GradeItem
	if err := r.db.SelectContext(ctx, &items, query, courseID); err != nil {
		return nil, fmt.Errorf("list course items: %w", err)
	}
	return items, nil
}

// ListCourseGrades returns every user's final grades for the course's items.
func (r *GradebookRepository) ListCourseGrades(ctx context.Context, courseID int64) ([]models.GradeEntry, error) {
	const query = `SELECT g.id, g.item_id, g.user_id, g.final_grade, g.aggregation_status FROM grade_grades g
JOIN grade_items i ON i.id = g.item_id
WHERE i.course_id = $1 AND g.aggregation_status NOT IN ('unknown', 'novalue') ORDER BY g.item_id ASC, g.user_id ASC`
	var grades []models.GradeEntry
	if err := r.db.SelectContext(ctx, &grades, query, courseID); err != nil {
		return nil, fmt.Errorf("list course grades: %w", err)
	}
	return grades, nil
}

// SchemeBoundaries returns the four lower boundaries above the lowest grade
// letter of a context, ascending. No letters yields an empty slice.
func (r *GradebookRepository) SchemeBoundaries(ctx context.Context, contextID int64) ([]float64, error) {
	const query = `SELECT lower_boundary FROM grade_letters WHERE context_id = $1 ORDER BY lower_boundary ASC OFFSET 1 LIMIT 4`
	var boundaries []float64
	if err := r.db.SelectContext(ctx, &boundaries, query, contextID); err != nil {
		return nil, fmt.Errorf("list grade letters: %w", err)
	}
	return boundaries, nil
}

// LastSchemeUpdate returns when a grade category of the course last changed.
func (r *GradebookRepository) LastSchemeUpdate(ctx context.Context, courseID int64) (*time.Time, error) {
	const query = `SELECT MAX(modified_at) FROM grade_categories WHERE course_id = $1`
	var modified sql.NullTime
	if err := r.db.GetContext(ctx, &modified, query, courseID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get last scheme update: %w", err)
	}
	if !modified.Valid {
		return nil, nil
	}
	t := modified.Time.UTC()
	return &t, nil
}

// Ping checks database connectivity for the readiness check.
func (r *GradebookRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}
