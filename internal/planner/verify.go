package planner

import (
	"fmt"
	"sort"
	"strings"
)

// VerifyPlan checks that plan covers each weekday exactly once and that every
// session is well formed, sits inside one of its day's free slots and does
// not overlap another session of the same day.
func VerifyPlan(plan WeeklyPlan, free []DayFreeSlots) error {
	slotsByDay := make(map[Weekday][]Interval, len(free))
	for _, d := range free {
		slotsByDay[d.Day] = d.Slots
	}

	if len(plan.Days) != len(Week) {
		return fmt.Errorf("plan has %d days, expected %d", len(plan.Days), len(Week))
	}
	seen := make(map[Weekday]struct{}, len(Week))
	for _, dp := range plan.Days {
		day, ok := ParseWeekday(string(dp.Day))
		if !ok || string(day) != string(dp.Day) {
			return fmt.Errorf("plan day %q is not a weekday", dp.Day)
		}
		if _, dup := seen[day]; dup {
			return fmt.Errorf("plan repeats %s", day)
		}
		seen[day] = struct{}{}

		if err := verifyDay(dp, slotsByDay[day]); err != nil {
			return fmt.Errorf("%s: %w", day, err)
		}
	}
	return nil
}

func verifyDay(dp DayPlan, slots []Interval) error {
	intervals := make([]Interval, 0, len(dp.StudySessions))
	for i, s := range dp.StudySessions {
		if strings.TrimSpace(s.Subject) == "" {
			return fmt.Errorf("session %d has no subject", i)
		}
		start, err := parseCanonicalClock(s.From)
		if err != nil {
			return fmt.Errorf("session %d: %w", i, err)
		}
		end, err := parseCanonicalClock(s.To)
		if err != nil {
			return fmt.Errorf("session %d: %w", i, err)
		}
		if start >= end {
			return fmt.Errorf("session %d %s-%s is empty or inverted", i, s.From, s.To)
		}
		session := Interval{Start: start, End: end}
		if !withinAny(session, slots) {
			return fmt.Errorf("session %d %s-%s is outside the free slots", i, s.From, s.To)
		}
		intervals = append(intervals, session)
	}

	sort.Slice(intervals, func(i, j int) bool { return intervals[i].Start < intervals[j].Start })
	for i := 1; i < len(intervals); i++ {
		if intervals[i].Overlaps(intervals[i-1]) {
			return fmt.Errorf("sessions %s and %s overlap", intervals[i-1].Range().From, intervals[i].Range().From)
		}
	}
	return nil
}

func withinAny(session Interval, slots []Interval) bool {
	for _, slot := range slots {
		if slot.Contains(session) {
			return true
		}
	}
	return false
}
