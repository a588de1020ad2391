package planner

import (
	"fmt"
	"sort"
	"strings"
)

const (
	PeriodSchool = "school"
	PeriodRest   = "rest"
	PeriodDinner = "dinner"
)

type namedPeriod struct {
	name  string
	value *TimeRange
}

// NormalizeDay converts a day's busy periods into a sorted list of disjoint
// intervals. Periods with unparseable or inverted times are excluded and
// reported as issues; a period missing either end is ignored.
func NormalizeDay(day DaySchedule) ([]Interval, []Issue) {
	periods := []namedPeriod{
		{name: PeriodSchool, value: day.School},
		{name: PeriodRest, value: day.Rest},
		{name: PeriodDinner, value: day.Dinner},
	}

	busy := make([]Interval, 0, len(periods))
	var issues []Issue
	for _, p := range periods {
		if isBlank(p.value) {
			continue
		}
		interval, err := parsePeriod(*p.value)
		if err != nil {
			issues = append(issues, Issue{Day: day.Day, Period: p.name, Reason: err.Error()})
			continue
		}
		if interval.Duration() == 0 {
			continue
		}
		busy = append(busy, interval)
	}
	return Merge(busy), issues
}

func isBlank(r *TimeRange) bool {
	return r == nil || strings.TrimSpace(r.From) == "" || strings.TrimSpace(r.To) == ""
}

func parsePeriod(r TimeRange) (Interval, error) {
	start, err := ParseClock(r.From)
	if err != nil {
		return Interval{}, err
	}
	end, err := ParseClock(r.To)
	if err != nil {
		return Interval{}, err
	}
	if start > end {
		return Interval{}, fmt.Errorf("start %s is after end %s", FormatClock(start), FormatClock(end))
	}
	return Interval{Start: start, End: end}, nil
}

// Merge sorts intervals by start and fuses any that overlap or touch. The
// input slice is left untouched.
func Merge(intervals []Interval) []Interval {
	if len(intervals) == 0 {
		return []Interval{}
	}
	sorted := make([]Interval, len(intervals))
	copy(sorted, intervals)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Start == sorted[j].Start {
			return sorted[i].End < sorted[j].End
		}
		return sorted[i].Start < sorted[j].Start
	})

	merged := []Interval{sorted[0]}
	for _, current := range sorted[1:] {
		last := &merged[len(merged)-1]
		if current.Start <= last.End {
			if current.End > last.End {
				last.End = current.End
			}
			continue
		}
		merged = append(merged, current)
	}
	return merged
}
