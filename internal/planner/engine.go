package planner

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidInput marks caller contract violations such as a missing weekday.
var ErrInvalidInput = errors.New("invalid planner input")

// Options are per-request overrides of the engine policy.
type Options struct {
	// LightDay replaces the policy light day when set.
	LightDay Weekday
}

// Result is the output of one Generate call.
type Result struct {
	Plan      WeeklyPlan
	FreeSlots []DayFreeSlots
	Issues    []Issue
}

// SessionCount returns the number of sessions across the week.
func (r *Result) SessionCount() int {
	return r.Plan.SessionCount()
}

// Engine runs the normalise, extract and schedule stages for a policy.
type Engine struct {
	policy Policy
}

// NewEngine validates the policy and returns an engine bound to it.
func NewEngine(policy Policy) (*Engine, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Engine{policy: policy}, nil
}

// Policy returns the engine's policy.
func (e *Engine) Policy() Policy {
	return e.policy
}

// Generate builds the deterministic weekly plan. Only contract violations
// return an error; bad periods are excluded and reported in Result.Issues.
func (e *Engine) Generate(schedules []DaySchedule, subjects []SubjectSelection, weekIndex int, opts Options) (*Result, error) {
	byDay, err := indexSchedules(schedules)
	if err != nil {
		return nil, err
	}
	if err := validateSubjects(subjects); err != nil {
		return nil, err
	}
	lightDay := e.policy.LightDay
	if opts.LightDay != "" {
		day, ok := ParseWeekday(string(opts.LightDay))
		if !ok {
			return nil, fmt.Errorf("%w: light day %q is not a weekday", ErrInvalidInput, opts.LightDay)
		}
		lightDay = day
	}

	result := &Result{FreeSlots: make([]DayFreeSlots, 0, len(Week))}
	schoolTimes := make(map[Weekday]TimeRange, len(Week))
	for _, day := range Week {
		ds := byDay[day]
		busy, issues := NormalizeDay(ds)
		result.Issues = append(result.Issues, issues...)
		result.FreeSlots = append(result.FreeSlots, DayFreeSlots{Day: day, Slots: FreeSlots(busy, e.policy)})
		schoolTimes[day] = schoolTime(ds)
	}

	sorted := SortSubjects(subjects)
	sessions := schedule(result.FreeSlots, sorted, weekIndex, lightDay, e.policy)

	plan := WeeklyPlan{
		Week:     weekIndex,
		Timezone: e.policy.Timezone,
		Days:     make([]DayPlan, 0, len(Week)),
		WeeklySummary: WeeklySummary{
			FocusSubjects: focusSubjects(subjects, sorted),
			AITip:         e.policy.DefaultTip,
		},
	}
	for _, day := range Week {
		dp := DayPlan{Day: day, SchoolTime: schoolTimes[day], StudySessions: make([]StudySession, 0, len(sessions[day]))}
		for _, s := range sessions[day] {
			dp.StudySessions = append(dp.StudySessions, StudySession{
				From:    FormatClock(s.Start),
				To:      FormatClock(s.End),
				Subject: s.Subject,
			})
		}
		plan.Days = append(plan.Days, dp)
	}
	result.Plan = plan
	return result, nil
}

func indexSchedules(schedules []DaySchedule) (map[Weekday]DaySchedule, error) {
	if len(schedules) != len(Week) {
		return nil, fmt.Errorf("%w: expected %d day schedules, got %d", ErrInvalidInput, len(Week), len(schedules))
	}
	byDay := make(map[Weekday]DaySchedule, len(Week))
	for _, s := range schedules {
		day, ok := ParseWeekday(string(s.Day))
		if !ok {
			return nil, fmt.Errorf("%w: unknown weekday %q", ErrInvalidInput, s.Day)
		}
		if _, dup := byDay[day]; dup {
			return nil, fmt.Errorf("%w: duplicate schedule for %s", ErrInvalidInput, day)
		}
		s.Day = day
		byDay[day] = s
	}
	return byDay, nil
}

func validateSubjects(subjects []SubjectSelection) error {
	for i, s := range subjects {
		if strings.TrimSpace(s.Subject) == "" {
			return fmt.Errorf("%w: subject %d has no name", ErrInvalidInput, i)
		}
		if _, ok := s.Priority.rank(); !ok {
			return fmt.Errorf("%w: subject %q has unknown priority %q", ErrInvalidInput, s.Subject, s.Priority)
		}
	}
	return nil
}

// schoolTime echoes the school period in canonical form, or empty strings
// when the day has no usable school period.
func schoolTime(day DaySchedule) TimeRange {
	if isBlank(day.School) {
		return TimeRange{}
	}
	interval, err := parsePeriod(*day.School)
	if err != nil {
		return TimeRange{}
	}
	return interval.Range()
}

func focusSubjects(input, sorted []SubjectSelection) []string {
	focus := make([]string, 0, len(input))
	seen := make(map[string]struct{}, len(input))
	for _, s := range input {
		if s.Priority != PriorityHigh {
			continue
		}
		if _, ok := seen[s.Subject]; ok {
			continue
		}
		seen[s.Subject] = struct{}{}
		focus = append(focus, s.Subject)
	}
	if len(focus) == 0 && len(sorted) > 0 {
		focus = append(focus, sorted[0].Subject)
	}
	return focus
}
