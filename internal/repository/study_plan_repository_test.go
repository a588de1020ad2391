package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/smart-plan-api/internal/models"
)

var studyPlanRowColumns = []string{"id", "student_id", "week_index", "source", "fallback_used", "plan", "created_at"}

func newStudyPlanRepoMock(t *testing.T) (*StudyPlanRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewStudyPlanRepository(sqlx.NewDb(db, "sqlmock")), mock, func() { db.Close() }
}

func TestStudyPlanRepositoryCreate(t *testing.T) {
	repo, mock, cleanup := newStudyPlanRepoMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO study_plans")).
		WithArgs(sqlmock.AnyArg(), "stu-1", 4, "deterministic", false, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	plan := &models.StudyPlan{
		StudentID: "stu-1",
		WeekIndex: 4,
		Source:    models.PlanSourceDeterministic,
		Plan:      types.JSONText(`{"week":4}`),
	}
	require.NoError(t, repo.Create(context.Background(), plan))
	assert.NotEmpty(t, plan.ID)
	assert.False(t, plan.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudyPlanRepositoryCreateRequiresStudent(t *testing.T) {
	repo, _, cleanup := newStudyPlanRepoMock(t)
	defer cleanup()

	assert.Error(t, repo.Create(context.Background(), &models.StudyPlan{}))
	assert.Error(t, repo.Create(context.Background(), nil))
}

func TestStudyPlanRepositoryFindByID(t *testing.T) {
	repo, mock, cleanup := newStudyPlanRepoMock(t)
	defer cleanup()

	rows := sqlmock.NewRows(studyPlanRowColumns).
		AddRow("plan-1", "stu-1", 2, "enriched", false, []byte(`{"week":2}`), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id, week_index, source, fallback_used, plan, created_at FROM study_plans WHERE id = $1")).
		WithArgs("plan-1").
		WillReturnRows(rows)

	plan, err := repo.FindByID(context.Background(), "plan-1")
	require.NoError(t, err)
	assert.Equal(t, models.PlanSourceEnriched, plan.Source)
	assert.JSONEq(t, `{"week":2}`, string(plan.Plan))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudyPlanRepositoryLatestNotFound(t *testing.T) {
	repo, mock, cleanup := newStudyPlanRepoMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("FROM study_plans WHERE student_id = $1 ORDER BY created_at DESC LIMIT 1")).
		WithArgs("stu-9").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Latest(context.Background(), "stu-9")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudyPlanRepositoryList(t *testing.T) {
	repo, mock, cleanup := newStudyPlanRepoMock(t)
	defer cleanup()

	week := 3
	rows := sqlmock.NewRows(studyPlanRowColumns).
		AddRow("plan-2", "stu-1", 3, "deterministic", true, []byte(`{}`), time.Now()).
		AddRow("plan-1", "stu-1", 3, "deterministic", false, []byte(`{}`), time.Now().Add(-time.Hour))
	mock.ExpectQuery(regexp.QuoteMeta("FROM study_plans WHERE student_id = $1 AND week_index = $2 ORDER BY created_at DESC LIMIT 10 OFFSET 10")).
		WithArgs("stu-1", 3).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM study_plans WHERE student_id = $1 AND week_index = $2")).
		WithArgs("stu-1", 3).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))

	plans, total, err := repo.List(context.Background(), models.StudyPlanFilter{StudentID: "stu-1", WeekIndex: &week, Page: 2, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, plans, 2)
	assert.Equal(t, 12, total)
	assert.True(t, plans[0].FallbackUsed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudyPlanRepositoryDelete(t *testing.T) {
	repo, mock, cleanup := newStudyPlanRepoMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM study_plans WHERE id = $1")).
		WithArgs("plan-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM study_plans WHERE id = $1")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Delete(context.Background(), "plan-1"))
	assert.ErrorIs(t, repo.Delete(context.Background(), "missing"), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
