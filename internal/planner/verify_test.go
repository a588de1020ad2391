package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func verifiedFixture(t *testing.T) (*Result, WeeklyPlan) {
	t.Helper()
	engine := newTestEngine(t)
	result, err := engine.Generate(schoolWeek(), []SubjectSelection{{Subject: "Math", Priority: PriorityHigh}}, 0, Options{})
	require.NoError(t, err)

	clone := result.Plan
	clone.Days = make([]DayPlan, len(result.Plan.Days))
	for i, d := range result.Plan.Days {
		d.StudySessions = append([]StudySession(nil), d.StudySessions...)
		clone.Days[i] = d
	}
	return result, clone
}

func TestVerifyPlanRejectsSessionOutsideSlots(t *testing.T) {
	result, plan := verifiedFixture(t)
	plan.Days[0].StudySessions[0] = StudySession{From: "09:00", To: "10:00", Subject: "Math"}

	err := VerifyPlan(plan, result.FreeSlots)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside the free slots")
}

func TestVerifyPlanRejectsOverlaps(t *testing.T) {
	result, plan := verifiedFixture(t)
	saturday := &plan.Days[5]
	saturday.StudySessions = []StudySession{
		{From: "08:00", To: "09:00", Subject: "Math"},
		{From: "08:30", To: "09:30", Subject: "English"},
	}

	err := VerifyPlan(plan, result.FreeSlots)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overlap")
}

func TestVerifyPlanRejectsMalformedTimes(t *testing.T) {
	result, plan := verifiedFixture(t)
	plan.Days[6].StudySessions = []StudySession{{From: "8:00", To: "09:00", Subject: "Math"}}

	assert.Error(t, VerifyPlan(plan, result.FreeSlots))
}

func TestVerifyPlanRejectsMissingDay(t *testing.T) {
	result, plan := verifiedFixture(t)
	plan.Days = plan.Days[:6]

	assert.Error(t, VerifyPlan(plan, result.FreeSlots))
}

func TestVerifyPlanRejectsLowercaseDay(t *testing.T) {
	result, plan := verifiedFixture(t)
	plan.Days[0].Day = "monday"

	assert.Error(t, VerifyPlan(plan, result.FreeSlots))
}
