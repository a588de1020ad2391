package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/noah-isme/smart-plan-api/internal/planner"
	appErrors "github.com/noah-isme/smart-plan-api/pkg/errors"
	"github.com/noah-isme/smart-plan-api/pkg/llm"
)

// Fallback reasons reported to callers and metrics.
const (
	FallbackReasonTimeout         = "timeout"
	FallbackReasonProviderError   = "provider_error"
	FallbackReasonInvalidResponse = "invalid_response"
)

const maxTipLength = 280

const enrichmentSystemPrompt = `You are a study coach. You receive a student's weekly free time slots, subjects with priorities and a draft plan.
Return ONLY one JSON object with exactly these fields:
{"week": int, "timezone": string, "days": [{"day": string, "school_time": {"from": "HH:MM", "to": "HH:MM"}, "study_sessions": [{"from": "HH:MM", "to": "HH:MM", "subject": string}]}], "weekly_summary": {"focus_subjects": [string], "ai_tip": string}}
Rules: keep week and timezone unchanged; list all seven days Monday to Sunday; every session must lie inside one of that day's free slots; sessions must not overlap; only use the given subjects or the revision label; the light day has at most one session labelled with the revision label; ai_tip is one short encouraging sentence.`

const tipSystemPrompt = `You are a study coach. Reply with one short encouraging study tip sentence for the student's week. No JSON, no lists.`

type completionClient interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
}

// EnrichmentConfig governs the enrichment attempt.
type EnrichmentConfig struct {
	Enabled     bool
	Timeout     time.Duration
	TipFallback bool
}

// EnrichmentInput is the deterministic result handed to the provider.
type EnrichmentInput struct {
	Plan          planner.WeeklyPlan
	FreeSlots     []planner.DayFreeSlots
	Subjects      []planner.SubjectSelection
	LightDay      planner.Weekday
	RevisionLabel string
}

// EnrichmentOutcome is what the caller should deliver. Plan is always valid.
type EnrichmentOutcome struct {
	Plan           planner.WeeklyPlan
	Enriched       bool
	FallbackUsed   bool
	FallbackReason string
}

// PlanEnrichmentService asks a generative text provider for an annotated
// plan and falls back to the deterministic one on any failure.
type PlanEnrichmentService struct {
	client  completionClient
	metrics *MetricsService
	logger  *zap.Logger
	config  EnrichmentConfig
}

// NewPlanEnrichmentService constructs the service. A nil client disables enrichment.
func NewPlanEnrichmentService(client completionClient, metrics *MetricsService, logger *zap.Logger, cfg EnrichmentConfig) *PlanEnrichmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &PlanEnrichmentService{client: client, metrics: metrics, logger: logger, config: cfg}
}

// Available reports whether enrichment can be attempted.
func (s *PlanEnrichmentService) Available() bool {
	return s != nil && s.config.Enabled && s.client != nil
}

// Enrich makes one bounded attempt to obtain an enriched plan. It never
// returns an error; failures are reported through the outcome.
func (s *PlanEnrichmentService) Enrich(ctx context.Context, in EnrichmentInput) EnrichmentOutcome {
	fallback := EnrichmentOutcome{Plan: in.Plan}
	if !s.Available() {
		return fallback
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "planner.enrich")
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	start := time.Now()
	plan, err := s.requestPlan(ctx, in)
	if err == nil {
		s.metrics.RecordEnrichment(time.Since(start), "")
		span.SetAttributes(attribute.Bool("planner.enriched", true))
		return EnrichmentOutcome{Plan: plan, Enriched: true}
	}

	reason := classifyEnrichmentError(ctx, err)
	s.metrics.RecordEnrichment(time.Since(start), reason)
	span.SetAttributes(attribute.String("planner.fallback_reason", reason))
	span.SetStatus(codes.Error, reason)
	s.logger.Warn("plan enrichment failed, using deterministic plan",
		zap.String("reason", reason),
		zap.Int("week", in.Plan.Week),
		zap.Error(err),
	)

	fallback.FallbackUsed = true
	fallback.FallbackReason = reason
	if s.config.TipFallback && reason == FallbackReasonInvalidResponse && ctx.Err() == nil {
		if tip := s.requestTip(ctx, in); tip != "" {
			fallback.Plan = withTip(in.Plan, tip)
		}
	}
	return fallback
}

func (s *PlanEnrichmentService) requestPlan(ctx context.Context, in EnrichmentInput) (planner.WeeklyPlan, error) {
	prompt, err := buildEnrichmentPrompt(in)
	if err != nil {
		return planner.WeeklyPlan{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build enrichment prompt")
	}
	text, err := s.client.Complete(ctx, llm.Request{System: enrichmentSystemPrompt, User: prompt, JSON: true})
	if err != nil {
		return planner.WeeklyPlan{}, appErrors.Wrap(err, appErrors.ErrEnrichmentUnavailable.Code, appErrors.ErrEnrichmentUnavailable.Status, "enrichment provider call failed")
	}
	plan, err := ParseEnrichedPlan(text, in)
	if err != nil {
		return planner.WeeklyPlan{}, appErrors.Wrap(err, appErrors.ErrInvalidAIResponse.Code, appErrors.ErrInvalidAIResponse.Status, "enrichment response rejected")
	}
	return plan, nil
}

func (s *PlanEnrichmentService) requestTip(ctx context.Context, in EnrichmentInput) string {
	subjects := make([]string, 0, len(in.Subjects))
	for _, subj := range in.Subjects {
		subjects = append(subjects, fmt.Sprintf("%s (%s)", subj.Subject, subj.Priority))
	}
	text, err := s.client.Complete(ctx, llm.Request{
		System: tipSystemPrompt,
		User:   "Subjects this week: " + strings.Join(subjects, ", "),
	})
	if err != nil {
		s.logger.Debug("study tip request failed", zap.Error(err))
		return ""
	}
	return sanitizeTip(text)
}

func classifyEnrichmentError(ctx context.Context, err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return FallbackReasonTimeout
	case errors.Is(err, appErrors.ErrInvalidAIResponse):
		return FallbackReasonInvalidResponse
	default:
		return FallbackReasonProviderError
	}
}

type enrichmentPrompt struct {
	Week          int                        `json:"week"`
	Timezone      string                     `json:"timezone"`
	LightDay      planner.Weekday            `json:"light_day"`
	RevisionLabel string                     `json:"revision_label"`
	Subjects      []planner.SubjectSelection `json:"subjects"`
	FreeSlots     []planner.DayFreeSlots     `json:"free_slots"`
	DraftPlan     planner.WeeklyPlan         `json:"draft_plan"`
}

func buildEnrichmentPrompt(in EnrichmentInput) (string, error) {
	payload := enrichmentPrompt{
		Week:          in.Plan.Week,
		Timezone:      in.Plan.Timezone,
		LightDay:      in.LightDay,
		RevisionLabel: in.RevisionLabel,
		Subjects:      in.Subjects,
		FreeSlots:     in.FreeSlots,
		DraftPlan:     in.Plan,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return "Improve this weekly study plan. Input:\n" + string(raw), nil
}

type strictSummary struct {
	FocusSubjects []string `json:"focus_subjects"`
	AITip         *string  `json:"ai_tip"`
}

type strictDay struct {
	Day           *string                `json:"day"`
	SchoolTime    *planner.TimeRange     `json:"school_time"`
	StudySessions []planner.StudySession `json:"study_sessions"`
}

type strictPlan struct {
	Week          *int           `json:"week"`
	Timezone      *string        `json:"timezone"`
	Days          []strictDay    `json:"days"`
	WeeklySummary *strictSummary `json:"weekly_summary"`
}

// ParseEnrichedPlan extracts the first JSON object from text and accepts it
// only if it is a complete plan consistent with the deterministic input.
func ParseEnrichedPlan(text string, in EnrichmentInput) (planner.WeeklyPlan, error) {
	raw, err := llm.ExtractJSONObject(text)
	if err != nil {
		return planner.WeeklyPlan{}, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var doc strictPlan
	if err := dec.Decode(&doc); err != nil {
		return planner.WeeklyPlan{}, fmt.Errorf("decode enriched plan: %w", err)
	}

	switch {
	case doc.Week == nil:
		return planner.WeeklyPlan{}, errors.New("week is missing")
	case doc.Timezone == nil:
		return planner.WeeklyPlan{}, errors.New("timezone is missing")
	case doc.Days == nil:
		return planner.WeeklyPlan{}, errors.New("days are missing")
	case doc.WeeklySummary == nil || doc.WeeklySummary.FocusSubjects == nil || doc.WeeklySummary.AITip == nil:
		return planner.WeeklyPlan{}, errors.New("weekly_summary is incomplete")
	}
	if *doc.Week != in.Plan.Week {
		return planner.WeeklyPlan{}, fmt.Errorf("week %d does not match %d", *doc.Week, in.Plan.Week)
	}
	if *doc.Timezone != in.Plan.Timezone {
		return planner.WeeklyPlan{}, fmt.Errorf("timezone %q does not match %q", *doc.Timezone, in.Plan.Timezone)
	}

	plan := planner.WeeklyPlan{
		Week:     *doc.Week,
		Timezone: *doc.Timezone,
		Days:     make([]planner.DayPlan, 0, len(doc.Days)),
		WeeklySummary: planner.WeeklySummary{
			FocusSubjects: doc.WeeklySummary.FocusSubjects,
			AITip:         sanitizeTip(*doc.WeeklySummary.AITip),
		},
	}
	for i, d := range doc.Days {
		if d.Day == nil || d.SchoolTime == nil || d.StudySessions == nil {
			return planner.WeeklyPlan{}, fmt.Errorf("day %d is incomplete", i)
		}
		plan.Days = append(plan.Days, planner.DayPlan{
			Day:           planner.Weekday(*d.Day),
			SchoolTime:    *d.SchoolTime,
			StudySessions: d.StudySessions,
		})
	}
	if err := planner.VerifyPlan(plan, in.FreeSlots); err != nil {
		return planner.WeeklyPlan{}, err
	}
	if err := checkEnrichedPolicy(plan, in); err != nil {
		return planner.WeeklyPlan{}, err
	}
	return alignWithDraft(plan, in.Plan), nil
}

func checkEnrichedPolicy(plan planner.WeeklyPlan, in EnrichmentInput) error {
	allowed := make(map[string]struct{}, len(in.Subjects)+1)
	for _, s := range in.Subjects {
		allowed[s.Subject] = struct{}{}
	}
	allowed[in.RevisionLabel] = struct{}{}

	for _, d := range plan.Days {
		if d.Day == in.LightDay {
			if len(d.StudySessions) > 1 {
				return fmt.Errorf("light day %s has %d sessions", d.Day, len(d.StudySessions))
			}
			for _, s := range d.StudySessions {
				if s.Subject != in.RevisionLabel {
					return fmt.Errorf("light day session must be %q", in.RevisionLabel)
				}
			}
			continue
		}
		for _, s := range d.StudySessions {
			if _, ok := allowed[s.Subject]; !ok {
				return fmt.Errorf("unknown subject %q on %s", s.Subject, d.Day)
			}
		}
	}
	return nil
}

// alignWithDraft orders days Monday..Sunday and keeps the school times
// computed from the student's own schedule.
func alignWithDraft(plan, draft planner.WeeklyPlan) planner.WeeklyPlan {
	byDay := make(map[planner.Weekday]planner.DayPlan, len(plan.Days))
	for _, d := range plan.Days {
		byDay[d.Day] = d
	}
	ordered := make([]planner.DayPlan, 0, len(draft.Days))
	for _, d := range draft.Days {
		enriched := byDay[d.Day]
		enriched.SchoolTime = d.SchoolTime
		ordered = append(ordered, enriched)
	}
	plan.Days = ordered
	if plan.WeeklySummary.AITip == "" {
		plan.WeeklySummary.AITip = draft.WeeklySummary.AITip
	}
	return plan
}

func withTip(plan planner.WeeklyPlan, tip string) planner.WeeklyPlan {
	plan.WeeklySummary.AITip = tip
	return plan
}

func sanitizeTip(text string) string {
	tip := strings.Join(strings.Fields(text), " ")
	tip = strings.Trim(tip, "\"")
	if len(tip) > maxTipLength {
		tip = strings.TrimSpace(tip[:maxTipLength])
	}
	return tip
}
