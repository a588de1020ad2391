package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/smart-plan-api/internal/models"
)

const studyPlanColumns = "id, student_id, week_index, source, fallback_used, plan, created_at"

// StudyPlanRepository persists generated weekly plans.
type StudyPlanRepository struct {
	db *sqlx.DB
}

// NewStudyPlanRepository constructs the repository.
func NewStudyPlanRepository(db *sqlx.DB) *StudyPlanRepository {
	return &StudyPlanRepository{db: db}
}

// Create inserts a plan, assigning id and timestamp when missing.
func (r *StudyPlanRepository) Create(ctx context.Context, plan *models.StudyPlan) error {
	if plan == nil {
		return fmt.Errorf("study plan payload is nil")
	}
	if plan.StudentID == "" {
		return fmt.Errorf("student_id is required")
	}
	if plan.ID == "" {
		plan.ID = uuid.NewString()
	}
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = time.Now().UTC()
	}

	const query = `
INSERT INTO study_plans (id, student_id, week_index, source, fallback_used, plan, created_at)
VALUES (:id, :student_id, :week_index, :source, :fallback_used, :plan, :created_at)
ON CONFLICT (id) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, plan); err != nil {
		return fmt.Errorf("insert study plan: %w", err)
	}
	return nil
}

// FindByID loads a plan by its identifier.
func (r *StudyPlanRepository) FindByID(ctx context.Context, id string) (*models.StudyPlan, error) {
	query := fmt.Sprintf("SELECT %s FROM study_plans WHERE id = $1", studyPlanColumns)
	var plan models.StudyPlan
	if err := r.db.GetContext(ctx, &plan, query, id); err != nil {
		return nil, err
	}
	return &plan, nil
}

// Latest returns the newest plan for a student.
func (r *StudyPlanRepository) Latest(ctx context.Context, studentID string) (*models.StudyPlan, error) {
	query := fmt.Sprintf("SELECT %s FROM study_plans WHERE student_id = $1 ORDER BY created_at DESC LIMIT 1", studyPlanColumns)
	var plan models.StudyPlan
	if err := r.db.GetContext(ctx, &plan, query, studentID); err != nil {
		return nil, err
	}
	return &plan, nil
}

// List returns a page of plans for a student, newest first, and the total count.
func (r *StudyPlanRepository) List(ctx context.Context, filter models.StudyPlanFilter) ([]models.StudyPlan, int, error) {
	conditions := []string{"student_id = $1"}
	args := []interface{}{filter.StudentID}
	if filter.WeekIndex != nil {
		conditions = append(conditions, fmt.Sprintf("week_index = $%d", len(args)+1))
		args = append(args, *filter.WeekIndex)
	}
	where := strings.Join(conditions, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s FROM study_plans WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d", studyPlanColumns, where, size, offset)
	plans := make([]models.StudyPlan, 0)
	if err := r.db.SelectContext(ctx, &plans, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list study plans: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) FROM study_plans WHERE %s", where), args...); err != nil {
		return nil, 0, fmt.Errorf("count study plans: %w", err)
	}
	return plans, total, nil
}

// Delete removes a stored plan.
func (r *StudyPlanRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM study_plans WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete study plan: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("study plan rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Ping checks database connectivity.
func (r *StudyPlanRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
