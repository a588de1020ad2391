package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/smart-plan-api/internal/dto"
	"github.com/noah-isme/smart-plan-api/internal/models"
	"github.com/noah-isme/smart-plan-api/internal/planner"
	appErrors "github.com/noah-isme/smart-plan-api/pkg/errors"
	"github.com/noah-isme/smart-plan-api/pkg/sharelink"
)

type memoryPlanCache struct {
	mu    sync.Mutex
	items map[string][]byte
}

func newMemoryPlanCache() *memoryPlanCache {
	return &memoryPlanCache{items: map[string][]byte{}}
}

func (c *memoryPlanCache) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.items[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (c *memoryPlanCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = raw
	return nil
}

func (c *memoryPlanCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

type stubPlanRecorder struct {
	mu      sync.Mutex
	records []*models.StudyPlan
	err     error
}

func (r *stubPlanRecorder) Record(plan *models.StudyPlan) error {
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, plan)
	return nil
}

type stubPlanStore struct {
	plans   map[string]*models.StudyPlan
	filter  models.StudyPlanFilter
	deleted []string
}

func (s *stubPlanStore) FindByID(_ context.Context, id string) (*models.StudyPlan, error) {
	if plan, ok := s.plans[id]; ok {
		return plan, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubPlanStore) Latest(_ context.Context, studentID string) (*models.StudyPlan, error) {
	var latest *models.StudyPlan
	for _, plan := range s.plans {
		if plan.StudentID == studentID && (latest == nil || plan.CreatedAt.After(latest.CreatedAt)) {
			latest = plan
		}
	}
	if latest == nil {
		return nil, sql.ErrNoRows
	}
	return latest, nil
}

func (s *stubPlanStore) List(_ context.Context, filter models.StudyPlanFilter) ([]models.StudyPlan, int, error) {
	s.filter = filter
	out := make([]models.StudyPlan, 0)
	for _, plan := range s.plans {
		if plan.StudentID == filter.StudentID {
			out = append(out, *plan)
		}
	}
	return out, len(out), nil
}

func (s *stubPlanStore) Delete(_ context.Context, id string) error {
	if _, ok := s.plans[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.plans, id)
	s.deleted = append(s.deleted, id)
	return nil
}

type stubEnricher struct {
	available bool
	outcome   func(EnrichmentInput) EnrichmentOutcome
	mu        sync.Mutex
	inputs    []EnrichmentInput
}

func (e *stubEnricher) Available() bool { return e.available }

func (e *stubEnricher) Enrich(_ context.Context, in EnrichmentInput) EnrichmentOutcome {
	e.mu.Lock()
	e.inputs = append(e.inputs, in)
	e.mu.Unlock()
	return e.outcome(in)
}

func (e *stubEnricher) calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.inputs)
}

var (
	studentClaims = &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent}
	teacherClaims = &models.JWTClaims{UserID: "tch-1", Role: models.RoleTeacher}
)

func planRequest() dto.GenerateStudyPlanRequest {
	enrich := false
	schedules := make([]planner.DaySchedule, 0, len(planner.Week))
	for i, day := range planner.Week {
		ds := planner.DaySchedule{Day: day}
		if i < 5 {
			ds.School = &planner.TimeRange{From: "08:00", To: "15:00"}
		}
		schedules = append(schedules, ds)
	}
	return dto.GenerateStudyPlanRequest{
		Week:      0,
		Enrich:    &enrich,
		Schedules: schedules,
		Subjects: []dto.SubjectRequest{
			{Subject: "Math", Priority: "high"},
			{Subject: "English", Priority: "medium"},
		},
	}
}

type studyPlanFixture struct {
	svc      *StudyPlanService
	cache    *memoryPlanCache
	recorder *stubPlanRecorder
	store    *stubPlanStore
	enricher *stubEnricher
}

func newStudyPlanFixture(t *testing.T) *studyPlanFixture {
	t.Helper()
	engine, err := planner.NewEngine(planner.DefaultPolicy())
	require.NoError(t, err)

	f := &studyPlanFixture{
		cache:    newMemoryPlanCache(),
		recorder: &stubPlanRecorder{},
		store:    &stubPlanStore{plans: map[string]*models.StudyPlan{}},
		enricher: &stubEnricher{outcome: func(in EnrichmentInput) EnrichmentOutcome { return EnrichmentOutcome{Plan: in.Plan} }},
	}
	f.svc = NewStudyPlanService(engine, f.enricher, f.cache, f.store, f.recorder, sharelink.NewSigner("test-secret", time.Hour), nil, nil, nil, StudyPlanConfig{
		BatchMaxStudents: 3,
		BatchConcurrency: 2,
		SharePath:        "/api/v1/shared/study-plans",
	})
	return f
}

func (f *studyPlanFixture) storePlan(t *testing.T, id, studentID string, createdAt time.Time) *models.StudyPlan {
	t.Helper()
	resp, _, err := f.svc.generate(context.Background(), planRequest(), false)
	require.NoError(t, err)
	record, err := models.NewStudyPlan(id, studentID, resp.Plan, resp.Source, false, createdAt)
	require.NoError(t, err)
	f.store.plans[id] = record
	return record
}

func TestStudyPlanServiceGenerateDeterministic(t *testing.T) {
	f := newStudyPlanFixture(t)

	resp, hit, err := f.svc.Generate(context.Background(), studentClaims, planRequest())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, models.PlanSourceDeterministic, resp.Source)
	assert.False(t, resp.FallbackUsed)
	assert.NotNil(t, resp.Warnings)
	require.Len(t, resp.Plan.Days, 7)
	assert.Equal(t, []planner.StudySession{
		{From: "06:00", To: "07:30", Subject: "Math"},
		{From: "15:00", To: "16:30", Subject: "English"},
	}, resp.Plan.Days[0].StudySessions)
	require.NoError(t, planner.VerifyPlan(resp.Plan, resp.FreeSlots))

	require.Len(t, f.recorder.records, 1)
	assert.Equal(t, "stu-1", f.recorder.records[0].StudentID)
	assert.Equal(t, f.recorder.records[0].ID, resp.PlanID)
	assert.Zero(t, f.enricher.calls())
}

func TestStudyPlanServiceGenerateAuthorization(t *testing.T) {
	f := newStudyPlanFixture(t)

	req := planRequest()
	req.StudentID = "stu-2"
	_, _, err := f.svc.Generate(context.Background(), studentClaims, req)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, _, err = f.svc.Generate(context.Background(), nil, planRequest())
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	resp, _, err := f.svc.Generate(context.Background(), teacherClaims, req)
	require.NoError(t, err)
	require.Len(t, f.recorder.records, 1)
	assert.Equal(t, "stu-2", f.recorder.records[0].StudentID)
	assert.NotEmpty(t, resp.PlanID)
}

func TestStudyPlanServiceGenerateValidation(t *testing.T) {
	f := newStudyPlanFixture(t)

	short := planRequest()
	short.Schedules = short.Schedules[:6]

	badPriority := planRequest()
	badPriority.Subjects[0].Priority = "urgent"

	duplicateDay := planRequest()
	duplicateDay.Schedules[1].Day = planner.Monday

	badLightDay := planRequest()
	badLightDay.LightDay = "Funday"

	for name, req := range map[string]dto.GenerateStudyPlanRequest{
		"six days":      short,
		"bad priority":  badPriority,
		"duplicate day": duplicateDay,
		"bad light day": badLightDay,
	} {
		t.Run(name, func(t *testing.T) {
			_, _, err := f.svc.Generate(context.Background(), studentClaims, req)
			assert.ErrorIs(t, err, appErrors.ErrValidation)
		})
	}
	assert.Empty(t, f.recorder.records)
}

func TestStudyPlanServiceGenerateReportsWarnings(t *testing.T) {
	f := newStudyPlanFixture(t)
	req := planRequest()
	req.Schedules[2].Dinner = &planner.TimeRange{From: "20:00", To: "19:00"}

	resp, _, err := f.svc.Generate(context.Background(), studentClaims, req)
	require.NoError(t, err)
	require.Len(t, resp.Warnings, 1)
	assert.Equal(t, planner.Wednesday, resp.Warnings[0].Day)
	assert.Equal(t, planner.PeriodDinner, resp.Warnings[0].Period)
}

func TestStudyPlanServiceGenerateUsesCache(t *testing.T) {
	f := newStudyPlanFixture(t)

	first, hit, err := f.svc.Generate(context.Background(), studentClaims, planRequest())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1, f.cache.len())

	second, hit, err := f.svc.Generate(context.Background(), studentClaims, planRequest())
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, first.Plan, second.Plan)
	assert.NotEqual(t, first.PlanID, second.PlanID)

	other := planRequest()
	other.Week = 2
	_, hit, err = f.svc.Generate(context.Background(), studentClaims, other)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestStudyPlanServiceGenerateEnriched(t *testing.T) {
	f := newStudyPlanFixture(t)
	f.enricher.available = true
	f.enricher.outcome = func(in EnrichmentInput) EnrichmentOutcome {
		return EnrichmentOutcome{Plan: withTip(in.Plan, "Review notes daily."), Enriched: true}
	}

	req := planRequest()
	req.Enrich = nil
	req.LightDay = "sunday"
	resp, _, err := f.svc.Generate(context.Background(), studentClaims, req)
	require.NoError(t, err)

	assert.Equal(t, models.PlanSourceEnriched, resp.Source)
	assert.Equal(t, "Review notes daily.", resp.Plan.WeeklySummary.AITip)
	require.Equal(t, 1, f.enricher.calls())
	assert.Equal(t, planner.Sunday, f.enricher.inputs[0].LightDay)
	assert.Equal(t, "Revision", f.enricher.inputs[0].RevisionLabel)
	assert.Equal(t, models.PlanSourceEnriched, f.recorder.records[0].Source)
}

func TestStudyPlanServiceFallbackIsNotCached(t *testing.T) {
	f := newStudyPlanFixture(t)
	f.enricher.available = true
	f.enricher.outcome = func(in EnrichmentInput) EnrichmentOutcome {
		return EnrichmentOutcome{Plan: in.Plan, FallbackUsed: true, FallbackReason: FallbackReasonTimeout}
	}
	req := planRequest()
	req.Enrich = nil

	resp, _, err := f.svc.Generate(context.Background(), studentClaims, req)
	require.NoError(t, err)
	assert.Equal(t, models.PlanSourceDeterministic, resp.Source)
	assert.True(t, resp.FallbackUsed)
	assert.Equal(t, FallbackReasonTimeout, resp.FallbackReason)
	assert.Zero(t, f.cache.len())
	assert.True(t, f.recorder.records[0].FallbackUsed)
}

func TestStudyPlanServiceHistoryRejectionKeepsPlan(t *testing.T) {
	f := newStudyPlanFixture(t)
	f.recorder.err = errors.New("queue full")

	resp, _, err := f.svc.Generate(context.Background(), studentClaims, planRequest())
	require.NoError(t, err)
	assert.Empty(t, resp.PlanID)
	assert.Len(t, resp.Plan.Days, 7)
}

func TestStudyPlanServiceGenerateBatch(t *testing.T) {
	f := newStudyPlanFixture(t)
	f.enricher.available = true

	a := planRequest()
	a.StudentID = "stu-a"
	a.Enrich = nil
	missing := planRequest()
	c := planRequest()
	c.StudentID = "stu-c"
	c.Week = 5

	out, err := f.svc.GenerateBatch(context.Background(), teacherClaims, dto.BatchGenerateRequest{Items: []dto.GenerateStudyPlanRequest{a, missing, c}})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Succeeded)
	assert.Equal(t, 1, out.Failed)
	require.Len(t, out.Items, 3)
	for i, item := range out.Items {
		assert.Equal(t, i, item.Index)
	}
	assert.Equal(t, "stu-a", out.Items[0].StudentID)
	require.NotNil(t, out.Items[1].Error)
	assert.Equal(t, appErrors.ErrValidation.Code, out.Items[1].Error.Code)
	assert.Equal(t, 5, out.Items[2].Result.Plan.Week)
	assert.Zero(t, f.enricher.calls())
	assert.Len(t, f.recorder.records, 2)
}

func TestStudyPlanServiceGenerateBatchGuards(t *testing.T) {
	f := newStudyPlanFixture(t)
	item := planRequest()
	item.StudentID = "stu-a"

	_, err := f.svc.GenerateBatch(context.Background(), studentClaims, dto.BatchGenerateRequest{Items: []dto.GenerateStudyPlanRequest{item}})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	tooMany := dto.BatchGenerateRequest{Items: []dto.GenerateStudyPlanRequest{item, item, item, item}}
	_, err = f.svc.GenerateBatch(context.Background(), teacherClaims, tooMany)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestStudyPlanServiceGetEnforcesOwnership(t *testing.T) {
	f := newStudyPlanFixture(t)
	f.storePlan(t, "plan-1", "stu-2", time.Now())

	_, err := f.svc.Get(context.Background(), studentClaims, "plan-1")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	plan, err := f.svc.Get(context.Background(), teacherClaims, "plan-1")
	require.NoError(t, err)
	assert.Equal(t, "stu-2", plan.StudentID)

	_, err = f.svc.Get(context.Background(), teacherClaims, "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestStudyPlanServiceListAndLatest(t *testing.T) {
	f := newStudyPlanFixture(t)
	now := time.Now()
	f.storePlan(t, "old", "stu-1", now.Add(-time.Hour))
	f.storePlan(t, "new", "stu-1", now)
	f.storePlan(t, "other", "stu-2", now)

	plans, pagination, err := f.svc.List(context.Background(), studentClaims, dto.StudyPlanListQuery{StudentID: "", PageSize: 500})
	require.NoError(t, err)
	assert.Len(t, plans, 2)
	assert.Equal(t, "stu-1", f.store.filter.StudentID)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 100, pagination.PageSize)
	assert.Equal(t, 2, pagination.TotalCount)

	_, _, err = f.svc.List(context.Background(), teacherClaims, dto.StudyPlanListQuery{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	latest, err := f.svc.Latest(context.Background(), studentClaims, "")
	require.NoError(t, err)
	assert.Equal(t, "new", latest.ID)

	_, err = f.svc.Latest(context.Background(), teacherClaims, "stu-9")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestStudyPlanServiceDelete(t *testing.T) {
	f := newStudyPlanFixture(t)
	f.storePlan(t, "plan-1", "stu-1", time.Now())
	f.storePlan(t, "plan-2", "stu-2", time.Now())

	require.NoError(t, f.svc.Delete(context.Background(), studentClaims, "plan-1"))
	assert.Equal(t, []string{"plan-1"}, f.store.deleted)
	assert.ErrorIs(t, f.svc.Delete(context.Background(), studentClaims, "plan-2"), appErrors.ErrForbidden)
	assert.ErrorIs(t, f.svc.Delete(context.Background(), studentClaims, "plan-1"), appErrors.ErrNotFound)
}

func TestStudyPlanServiceExport(t *testing.T) {
	f := newStudyPlanFixture(t)
	f.storePlan(t, "plan-1", "stu-1", time.Now())

	file, err := f.svc.Export(context.Background(), studentClaims, "plan-1", "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", file.ContentType)
	assert.Equal(t, "study-plan-week-0.csv", file.Filename)
	body := string(file.Data)
	assert.True(t, strings.HasPrefix(body, "Day,School,From,To,Subject\n"))
	assert.Contains(t, body, "Monday,08:00-15:00,06:00,07:30,Math")

	pdf, err := f.svc.Export(context.Background(), studentClaims, "plan-1", "")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", pdf.ContentType)
	assert.True(t, strings.HasPrefix(string(pdf.Data), "%PDF-"))

	_, err = f.svc.Export(context.Background(), studentClaims, "plan-1", "xlsx")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestStudyPlanServiceShareRoundTrip(t *testing.T) {
	f := newStudyPlanFixture(t)
	f.storePlan(t, "plan-1", "stu-1", time.Now())

	share, err := f.svc.Share(context.Background(), studentClaims, "plan-1")
	require.NoError(t, err)
	assert.Equal(t, "plan-1", share.PlanID)
	assert.Equal(t, "/api/v1/shared/study-plans/"+share.Token, share.URL)
	assert.True(t, share.ExpiresAt.After(time.Now()))

	plan, err := f.svc.GetShared(context.Background(), share.Token)
	require.NoError(t, err)
	assert.Equal(t, "plan-1", plan.ID)

	_, err = f.svc.GetShared(context.Background(), share.Token+"x")
	assert.ErrorIs(t, err, appErrors.ErrShareLinkInvalid)
}
