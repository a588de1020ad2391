package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/smart-plan-api/internal/dto"
	"github.com/noah-isme/smart-plan-api/internal/models"
	"github.com/noah-isme/smart-plan-api/internal/planner"
	appErrors "github.com/noah-isme/smart-plan-api/pkg/errors"
	"github.com/noah-isme/smart-plan-api/pkg/export"
)

const tracerName = "github.com/noah-isme/smart-plan-api/internal/service"

const studyPlanCachePrefix = "study_plan:"

type planEngine interface {
	Policy() planner.Policy
	Generate(schedules []planner.DaySchedule, subjects []planner.SubjectSelection, weekIndex int, opts planner.Options) (*planner.Result, error)
}

type planEnricher interface {
	Available() bool
	Enrich(ctx context.Context, in EnrichmentInput) EnrichmentOutcome
}

type planCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type studyPlanReader interface {
	FindByID(ctx context.Context, id string) (*models.StudyPlan, error)
	Latest(ctx context.Context, studentID string) (*models.StudyPlan, error)
	List(ctx context.Context, filter models.StudyPlanFilter) ([]models.StudyPlan, int, error)
	Delete(ctx context.Context, id string) error
}

type planRecorder interface {
	Record(plan *models.StudyPlan) error
}

type shareSigner interface {
	Issue(resourceID string) (string, time.Time, error)
	Verify(token string) (string, time.Time, error)
}

// StudyPlanConfig governs request handling around the planner engine.
type StudyPlanConfig struct {
	CacheTTL         time.Duration
	BatchMaxStudents int
	BatchConcurrency int
	// SharePath is prepended to share tokens to build the public link.
	SharePath string
}

// ExportFile is a rendered plan download.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// StudyPlanService generates weekly study plans and manages their history.
type StudyPlanService struct {
	engine    planEngine
	enricher  planEnricher
	cache     planCache
	plans     studyPlanReader
	history   planRecorder
	signer    shareSigner
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	config    StudyPlanConfig
	now       func() time.Time
}

// NewStudyPlanService wires the generation pipeline. Cache, history, store and
// signer are optional; the matching features are disabled when nil.
func NewStudyPlanService(
	engine planEngine,
	enricher planEnricher,
	cache planCache,
	plans studyPlanReader,
	history planRecorder,
	signer shareSigner,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg StudyPlanConfig,
) *StudyPlanService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchMaxStudents <= 0 {
		cfg.BatchMaxStudents = 50
	}
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = 8
	}
	if cfg.SharePath == "" {
		cfg.SharePath = "/api/v1/shared/study-plans"
	}
	return &StudyPlanService{
		engine:    engine,
		enricher:  enricher,
		cache:     cache,
		plans:     plans,
		history:   history,
		signer:    signer,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		config:    cfg,
		now:       time.Now,
	}
}

// Generate builds a weekly plan for the request. The boolean reports a cache hit.
func (s *StudyPlanService) Generate(ctx context.Context, claims *models.JWTClaims, req dto.GenerateStudyPlanRequest) (*dto.StudyPlanResponse, bool, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid study plan payload")
	}
	studentID, err := resolveStudent(claims, req.StudentID)
	if err != nil {
		return nil, false, err
	}
	enrich := req.EnrichRequested() && s.enricher != nil && s.enricher.Available()

	resp, hit, err := s.generate(ctx, req, enrich)
	if err != nil {
		return nil, false, err
	}
	s.recordHistory(studentID, resp)
	return resp, hit, nil
}

// GenerateBatch produces deterministic plans for several students concurrently.
// Item failures are reported inline and never fail the batch.
func (s *StudyPlanService) GenerateBatch(ctx context.Context, claims *models.JWTClaims, req dto.BatchGenerateRequest) (*dto.BatchGenerateResponse, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !claims.Role.IsStaff() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "batch generation is limited to staff")
	}
	if len(req.Items) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "items must contain at least one request")
	}
	if len(req.Items) > s.config.BatchMaxStudents {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("batch accepts at most %d students", s.config.BatchMaxStudents))
	}

	results := make([]dto.BatchItemResult, len(req.Items))
	var g errgroup.Group
	g.SetLimit(s.config.BatchConcurrency)
	for i, item := range req.Items {
		g.Go(func() error {
			result := dto.BatchItemResult{Index: i, StudentID: item.StudentID}
			resp, err := s.generateBatchItem(ctx, item)
			if err != nil {
				result.Error = appErrors.FromError(err)
			} else {
				result.Result = resp
			}
			results[i] = result
			return nil
		})
	}
	_ = g.Wait()

	out := &dto.BatchGenerateResponse{Items: results}
	for _, r := range results {
		if r.Error != nil {
			out.Failed++
		} else {
			out.Succeeded++
		}
	}
	s.logger.Info("batch study plans generated",
		zap.String("requested_by", claims.UserID),
		zap.Int("succeeded", out.Succeeded),
		zap.Int("failed", out.Failed),
	)
	return out, nil
}

func (s *StudyPlanService) generateBatchItem(ctx context.Context, item dto.GenerateStudyPlanRequest) (*dto.StudyPlanResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrServiceUnavailable.Code, appErrors.ErrServiceUnavailable.Status, "batch cancelled")
	}
	if err := s.validator.Struct(item); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid study plan payload")
	}
	if strings.TrimSpace(item.StudentID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student_id is required for batch items")
	}
	resp, _, err := s.generate(ctx, item, false)
	if err != nil {
		return nil, err
	}
	s.recordHistory(item.StudentID, resp)
	return resp, nil
}

func (s *StudyPlanService) generate(ctx context.Context, req dto.GenerateStudyPlanRequest, enrich bool) (*dto.StudyPlanResponse, bool, error) {
	key, keyErr := planCacheKey(req, enrich)
	if keyErr == nil && s.cache != nil {
		var cached dto.StudyPlanResponse
		hit, err := s.cache.Get(ctx, key, &cached)
		if err == nil && hit {
			return &cached, true, nil
		}
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "planner.generate")
	defer span.End()

	subjects := req.SubjectSelections()
	opts := planner.Options{LightDay: planner.Weekday(strings.TrimSpace(req.LightDay))}
	result, err := s.engine.Generate(req.Schedules, subjects, req.Week, opts)
	if err != nil {
		if errors.Is(err, planner.ErrInvalidInput) {
			return nil, false, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate study plan")
	}
	for _, issue := range result.Issues {
		s.metrics.RecordInputIssue(issue.Period)
		s.logger.Warn("busy period excluded",
			zap.String("day", string(issue.Day)),
			zap.String("period", issue.Period),
			zap.String("reason", issue.Reason),
		)
	}

	resp := &dto.StudyPlanResponse{
		Plan:      result.Plan,
		FreeSlots: result.FreeSlots,
		Source:    models.PlanSourceDeterministic,
		Warnings:  result.Issues,
	}
	if resp.Warnings == nil {
		resp.Warnings = []planner.Issue{}
	}
	if enrich {
		outcome := s.enricher.Enrich(ctx, EnrichmentInput{
			Plan:          result.Plan,
			FreeSlots:     result.FreeSlots,
			Subjects:      subjects,
			LightDay:      s.lightDay(req.LightDay),
			RevisionLabel: s.engine.Policy().RevisionLabel,
		})
		resp.Plan = outcome.Plan
		resp.FallbackUsed = outcome.FallbackUsed
		resp.FallbackReason = outcome.FallbackReason
		if outcome.Enriched {
			resp.Source = models.PlanSourceEnriched
		}
	}

	sessions := resp.Plan.SessionCount()
	s.metrics.RecordPlanGenerated(string(resp.Source), sessions)
	span.SetAttributes(
		attribute.Int("planner.week", req.Week),
		attribute.Int("planner.sessions", sessions),
		attribute.String("planner.source", string(resp.Source)),
	)

	// A fallback caused by the provider may succeed on the next attempt.
	if keyErr == nil && s.cache != nil && !resp.FallbackUsed {
		_ = s.cache.Set(ctx, key, resp, s.config.CacheTTL)
	}
	return resp, false, nil
}

func (s *StudyPlanService) lightDay(raw string) planner.Weekday {
	if day, ok := planner.ParseWeekday(raw); ok {
		return day
	}
	return s.engine.Policy().LightDay
}

// recordHistory hands the plan to the history recorder and stamps its id on resp.
func (s *StudyPlanService) recordHistory(studentID string, resp *dto.StudyPlanResponse) {
	if s.history == nil || studentID == "" {
		return
	}
	record, err := models.NewStudyPlan(uuid.NewString(), studentID, resp.Plan, resp.Source, resp.FallbackUsed, s.now().UTC())
	if err != nil {
		s.logger.Error("encode study plan history", zap.Error(err))
		return
	}
	if err := s.history.Record(record); err != nil {
		return
	}
	resp.PlanID = record.ID
}

// List returns stored plans for a student, newest first.
func (s *StudyPlanService) List(ctx context.Context, claims *models.JWTClaims, query dto.StudyPlanListQuery) ([]models.StudyPlan, *models.Pagination, error) {
	if err := s.requireStore(); err != nil {
		return nil, nil, err
	}
	studentID, err := resolveStudent(claims, query.StudentID)
	if err != nil {
		return nil, nil, err
	}
	if studentID == "" {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "student_id is required")
	}
	page := query.Page
	if page <= 0 {
		page = 1
	}
	size := query.PageSize
	if size <= 0 {
		size = 20
	}
	if size > 100 {
		size = 100
	}

	plans, total, err := s.plans.List(ctx, models.StudyPlanFilter{StudentID: studentID, WeekIndex: query.Week, Page: page, PageSize: size})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list study plans")
	}
	return plans, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Latest returns the newest stored plan for a student.
func (s *StudyPlanService) Latest(ctx context.Context, claims *models.JWTClaims, studentID string) (*models.StudyPlan, error) {
	if err := s.requireStore(); err != nil {
		return nil, err
	}
	resolved, err := resolveStudent(claims, studentID)
	if err != nil {
		return nil, err
	}
	if resolved == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student_id is required")
	}
	plan, err := s.plans.Latest(ctx, resolved)
	if err != nil {
		return nil, mapStoreError(err, "no study plan stored for student")
	}
	return plan, nil
}

// Get returns a stored plan the caller may see.
func (s *StudyPlanService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.StudyPlan, error) {
	if err := s.requireStore(); err != nil {
		return nil, err
	}
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	plan, err := s.plans.FindByID(ctx, id)
	if err != nil {
		return nil, mapStoreError(err, "study plan not found")
	}
	if !claims.Role.IsStaff() && plan.StudentID != claims.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "study plan belongs to another student")
	}
	return plan, nil
}

// Delete removes a stored plan the caller may see.
func (s *StudyPlanService) Delete(ctx context.Context, claims *models.JWTClaims, id string) error {
	if _, err := s.Get(ctx, claims, id); err != nil {
		return err
	}
	if err := s.plans.Delete(ctx, id); err != nil {
		return mapStoreError(err, "study plan not found")
	}
	s.logger.Info("study plan deleted", zap.String("plan_id", id), zap.String("deleted_by", claims.UserID))
	return nil
}

// Export renders a stored plan as PDF or CSV.
func (s *StudyPlanService) Export(ctx context.Context, claims *models.JWTClaims, id, format string) (*ExportFile, error) {
	f, err := export.ParseFormat(format)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	record, err := s.Get(ctx, claims, id)
	if err != nil {
		return nil, err
	}
	plan, err := record.WeeklyPlan()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "stored study plan is unreadable")
	}
	data, err := export.RendererFor(f).Render(planDataset(plan))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render study plan")
	}
	return &ExportFile{
		Filename:    fmt.Sprintf("study-plan-week-%d.%s", plan.Week, f),
		ContentType: f.ContentType(),
		Data:        data,
	}, nil
}

// Share issues a signed, expiring link to a stored plan.
func (s *StudyPlanService) Share(ctx context.Context, claims *models.JWTClaims, id string) (*models.StudyPlanShare, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrServiceUnavailable, "plan sharing is disabled")
	}
	plan, err := s.Get(ctx, claims, id)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.signer.Issue(plan.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign share link")
	}
	return &models.StudyPlanShare{
		PlanID:    plan.ID,
		Token:     token,
		URL:       strings.TrimRight(s.config.SharePath, "/") + "/" + token,
		ExpiresAt: expiresAt,
	}, nil
}

// GetShared resolves a share token to its plan without authentication.
func (s *StudyPlanService) GetShared(ctx context.Context, token string) (*models.StudyPlan, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrServiceUnavailable, "plan sharing is disabled")
	}
	if err := s.requireStore(); err != nil {
		return nil, err
	}
	id, _, err := s.signer.Verify(token)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrShareLinkInvalid.Code, appErrors.ErrShareLinkInvalid.Status, appErrors.ErrShareLinkInvalid.Message)
	}
	plan, err := s.plans.FindByID(ctx, id)
	if err != nil {
		return nil, mapStoreError(err, "study plan not found")
	}
	return plan, nil
}

func (s *StudyPlanService) requireStore() error {
	if s.plans == nil {
		return appErrors.Clone(appErrors.ErrServiceUnavailable, "plan history is disabled")
	}
	return nil
}

// resolveStudent applies ownership rules: students act only for themselves,
// staff act for whoever they name.
func resolveStudent(claims *models.JWTClaims, requested string) (string, error) {
	if claims == nil {
		return "", appErrors.ErrUnauthorized
	}
	requested = strings.TrimSpace(requested)
	if claims.Role.IsStaff() {
		return requested, nil
	}
	if requested != "" && requested != claims.UserID {
		return "", appErrors.Clone(appErrors.ErrForbidden, "students may only access their own plans")
	}
	return claims.UserID, nil
}

func mapStoreError(err error, notFound string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "study plan store failed")
}

// planCacheKey hashes the inputs that determine a plan. Student identity is
// excluded since equal inputs produce equal plans.
func planCacheKey(req dto.GenerateStudyPlanRequest, enrich bool) (string, error) {
	canonical := struct {
		Week      int                        `json:"week"`
		LightDay  string                     `json:"light_day"`
		Enrich    bool                       `json:"enrich"`
		Schedules []planner.DaySchedule      `json:"schedules"`
		Subjects  []planner.SubjectSelection `json:"subjects"`
	}{
		Week:      req.Week,
		LightDay:  strings.ToLower(strings.TrimSpace(req.LightDay)),
		Enrich:    enrich,
		Schedules: req.Schedules,
		Subjects:  req.SubjectSelections(),
	}
	raw, err := json.Marshal(canonical)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return studyPlanCachePrefix + hex.EncodeToString(sum[:]), nil
}

func planDataset(plan planner.WeeklyPlan) export.Dataset {
	rows := make([]map[string]string, 0, len(plan.Days))
	for _, day := range plan.Days {
		school := "-"
		if day.SchoolTime.From != "" {
			school = day.SchoolTime.From + "-" + day.SchoolTime.To
		}
		if len(day.StudySessions) == 0 {
			rows = append(rows, map[string]string{"Day": string(day.Day), "School": school, "From": "-", "To": "-", "Subject": "-"})
			continue
		}
		for _, session := range day.StudySessions {
			rows = append(rows, map[string]string{
				"Day":     string(day.Day),
				"School":  school,
				"From":    session.From,
				"To":      session.To,
				"Subject": session.Subject,
			})
		}
	}
	notes := []string{fmt.Sprintf("Timezone: %s", plan.Timezone)}
	if len(plan.WeeklySummary.FocusSubjects) > 0 {
		notes = append(notes, "Focus: "+strings.Join(plan.WeeklySummary.FocusSubjects, ", "))
	}
	if plan.WeeklySummary.AITip != "" {
		notes = append(notes, "Tip: "+plan.WeeklySummary.AITip)
	}
	return export.Dataset{
		Title:   fmt.Sprintf("Study plan - week %d", plan.Week),
		Headers: []string{"Day", "School", "From", "To", "Subject"},
		Rows:    rows,
		Notes:   notes,
	}
}
