// Package planner computes weekly study plans from a student's fixed daily
// commitments and a prioritised subject list.
//
// The package is pure: every function works on its inputs and returns fresh
// values, so an Engine can be shared by concurrent requests.
package planner

import (
	"strings"
)

// Weekday names a day of the planning week.
type Weekday string

const (
	Monday    Weekday = "Monday"
	Tuesday   Weekday = "Tuesday"
	Wednesday Weekday = "Wednesday"
	Thursday  Weekday = "Thursday"
	Friday    Weekday = "Friday"
	Saturday  Weekday = "Saturday"
	Sunday    Weekday = "Sunday"
)

// Week lists the weekdays in plan order.
var Week = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// ParseWeekday resolves a weekday name case-insensitively.
func ParseWeekday(raw string) (Weekday, bool) {
	trimmed := strings.TrimSpace(raw)
	for _, d := range Week {
		if strings.EqualFold(string(d), trimmed) {
			return d, true
		}
	}
	return "", false
}

// Priority ranks how much attention a subject should get.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func (p Priority) rank() (int, bool) {
	switch p {
	case PriorityHigh:
		return 0, true
	case PriorityMedium:
		return 1, true
	case PriorityLow:
		return 2, true
	}
	return 0, false
}

// TimeRange is a wall-clock HH:MM range as exchanged with callers.
type TimeRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// DaySchedule holds the named busy periods of one weekday. A nil period does
// not apply that day.
type DaySchedule struct {
	Day    Weekday    `json:"day"`
	School *TimeRange `json:"school,omitempty"`
	Rest   *TimeRange `json:"rest,omitempty"`
	Dinner *TimeRange `json:"dinner,omitempty"`
}

// SubjectSelection is one subject chosen by the student.
type SubjectSelection struct {
	Subject  string   `json:"subject"`
	Priority Priority `json:"priority"`
}

// StudySession is one scheduled block of study.
type StudySession struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
}

// DayPlan is the per-day part of a WeeklyPlan.
type DayPlan struct {
	Day           Weekday        `json:"day"`
	SchoolTime    TimeRange      `json:"school_time"`
	StudySessions []StudySession `json:"study_sessions"`
}

// WeeklySummary carries the prose part of a plan.
type WeeklySummary struct {
	FocusSubjects []string `json:"focus_subjects"`
	AITip         string   `json:"ai_tip"`
}

// WeeklyPlan is the plan document persisted and displayed downstream. Field
// names are part of the wire contract.
type WeeklyPlan struct {
	Week          int           `json:"week"`
	Timezone      string        `json:"timezone"`
	Days          []DayPlan     `json:"days"`
	WeeklySummary WeeklySummary `json:"weekly_summary"`
}

// SessionCount returns the number of sessions across the week.
func (p WeeklyPlan) SessionCount() int {
	total := 0
	for _, d := range p.Days {
		total += len(d.StudySessions)
	}
	return total
}

// DayFreeSlots lists the free intervals computed for one day.
type DayFreeSlots struct {
	Day   Weekday    `json:"day"`
	Slots []Interval `json:"slots"`
}

// Issue records a busy period that was excluded from a day.
type Issue struct {
	Day    Weekday `json:"day"`
	Period string  `json:"period"`
	Reason string  `json:"reason"`
}
