package dto

import (
	"github.com/noah-isme/smart-plan-api/internal/models"
	"github.com/noah-isme/smart-plan-api/internal/planner"
	appErrors "github.com/noah-isme/smart-plan-api/pkg/errors"
)

// SubjectRequest is one subject choice in a plan request.
type SubjectRequest struct {
	Subject  string `json:"subject" validate:"required,max=100"`
	Priority string `json:"priority" validate:"required,oneof=high medium low"`
}

// GenerateStudyPlanRequest describes a weekly plan generation call.
type GenerateStudyPlanRequest struct {
	StudentID string                `json:"student_id" validate:"omitempty,max=64"`
	Week      int                   `json:"week"`
	LightDay  string                `json:"light_day" validate:"omitempty,max=16"`
	Enrich    *bool                 `json:"enrich,omitempty"`
	Schedules []planner.DaySchedule `json:"schedules" validate:"required,len=7"`
	Subjects  []SubjectRequest      `json:"subjects" validate:"max=30,dive"`
}

// SubjectSelections converts request subjects into planner input.
func (r GenerateStudyPlanRequest) SubjectSelections() []planner.SubjectSelection {
	out := make([]planner.SubjectSelection, 0, len(r.Subjects))
	for _, s := range r.Subjects {
		out = append(out, planner.SubjectSelection{Subject: s.Subject, Priority: planner.Priority(s.Priority)})
	}
	return out
}

// EnrichRequested reports whether the caller wants enrichment. Omitted means yes.
func (r GenerateStudyPlanRequest) EnrichRequested() bool {
	return r.Enrich == nil || *r.Enrich
}

// StudyPlanResponse is returned by the generate endpoint.
type StudyPlanResponse struct {
	PlanID         string                 `json:"plan_id,omitempty"`
	Plan           planner.WeeklyPlan     `json:"plan"`
	FreeSlots      []planner.DayFreeSlots `json:"free_slots"`
	Source         models.PlanSource      `json:"source"`
	FallbackUsed   bool                   `json:"fallback_used"`
	FallbackReason string                 `json:"fallback_reason,omitempty"`
	Warnings       []planner.Issue        `json:"warnings"`
}

// BatchGenerateRequest asks for deterministic plans for several students.
type BatchGenerateRequest struct {
	Items []GenerateStudyPlanRequest `json:"items" validate:"required,min=1,dive"`
}

// BatchItemResult is the outcome for one batch item.
type BatchItemResult struct {
	Index     int                `json:"index"`
	StudentID string             `json:"student_id,omitempty"`
	Result    *StudyPlanResponse `json:"result,omitempty"`
	Error     *appErrors.Error   `json:"error,omitempty"`
}

// BatchGenerateResponse lists batch outcomes in request order.
type BatchGenerateResponse struct {
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Items     []BatchItemResult `json:"items"`
}

// StudyPlanListQuery holds history listing parameters.
type StudyPlanListQuery struct {
	StudentID string `form:"student_id"`
	Week      *int   `form:"week"`
	Page      int    `form:"page"`
	PageSize  int    `form:"page_size"`
}
