package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/smart-plan-api/internal/planner"
)

// PlanSource identifies which stage produced a plan.
type PlanSource string

const (
	PlanSourceDeterministic PlanSource = "deterministic"
	PlanSourceEnriched      PlanSource = "enriched"
)

// StudyPlan is a generated weekly plan stored in study_plans.
type StudyPlan struct {
	ID           string         `db:"id" json:"id"`
	StudentID    string         `db:"student_id" json:"student_id"`
	WeekIndex    int            `db:"week_index" json:"week_index"`
	Source       PlanSource     `db:"source" json:"source"`
	FallbackUsed bool           `db:"fallback_used" json:"fallback_used"`
	Plan         types.JSONText `db:"plan" json:"plan"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
}

// NewStudyPlan encodes plan into a storable record.
func NewStudyPlan(id, studentID string, plan planner.WeeklyPlan, source PlanSource, fallbackUsed bool, createdAt time.Time) (*StudyPlan, error) {
	raw, err := json.Marshal(plan)
	if err != nil {
		return nil, fmt.Errorf("encode weekly plan: %w", err)
	}
	return &StudyPlan{
		ID:           id,
		StudentID:    studentID,
		WeekIndex:    plan.Week,
		Source:       source,
		FallbackUsed: fallbackUsed,
		Plan:         types.JSONText(raw),
		CreatedAt:    createdAt,
	}, nil
}

// WeeklyPlan decodes the stored plan document.
func (p *StudyPlan) WeeklyPlan() (planner.WeeklyPlan, error) {
	var plan planner.WeeklyPlan
	if err := json.Unmarshal(p.Plan, &plan); err != nil {
		return planner.WeeklyPlan{}, fmt.Errorf("decode weekly plan %s: %w", p.ID, err)
	}
	return plan, nil
}

// StudyPlanFilter narrows history listings.
type StudyPlanFilter struct {
	StudentID string
	WeekIndex *int
	Page      int
	PageSize  int
}

// StudyPlanShare is a signed, expiring link to a stored plan.
type StudyPlanShare struct {
	PlanID    string    `json:"plan_id"`
	Token     string    `json:"token"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
