package planner

import (
	"fmt"
	"strings"

	"github.com/noah-isme/smart-plan-api/pkg/config"
)

const (
	defaultDayStart      = 6 * 60
	defaultDayEnd        = 22 * 60
	defaultMinSlot       = 30
	defaultMaxSession    = 90
	defaultRevisionLabel = "Revision"
	defaultTimezone      = "Africa/Cairo"
)

// Policy is the tunable scheduling behaviour of an Engine.
type Policy struct {
	// DayStart and DayEnd bound the planning window in minutes since midnight.
	DayStart int
	DayEnd   int
	// MinSlotMinutes drops free gaps shorter than this.
	MinSlotMinutes int
	// MaxSessionMinutes caps a single session; 0 lets a session fill its slot.
	MaxSessionMinutes int
	LightDay          Weekday
	RevisionLabel     string
	Timezone          string
	DefaultTip        string
}

// DefaultPolicy returns the 06:00-22:00 window, 30 minute slots and a
// Saturday revision day.
func DefaultPolicy() Policy {
	return Policy{
		DayStart:          defaultDayStart,
		DayEnd:            defaultDayEnd,
		MinSlotMinutes:    defaultMinSlot,
		MaxSessionMinutes: defaultMaxSession,
		LightDay:          Saturday,
		RevisionLabel:     defaultRevisionLabel,
		Timezone:          defaultTimezone,
	}
}

// PolicyFromConfig overlays configured values on DefaultPolicy.
func PolicyFromConfig(cfg config.PlannerConfig) (Policy, error) {
	p := DefaultPolicy()
	if strings.TrimSpace(cfg.DayStart) != "" {
		start, err := ParseClock(cfg.DayStart)
		if err != nil {
			return Policy{}, fmt.Errorf("planner day start: %w", err)
		}
		p.DayStart = start
	}
	if strings.TrimSpace(cfg.DayEnd) != "" {
		end, err := ParseClock(cfg.DayEnd)
		if err != nil {
			return Policy{}, fmt.Errorf("planner day end: %w", err)
		}
		p.DayEnd = end
	}
	if cfg.MinSlotMinutes > 0 {
		p.MinSlotMinutes = cfg.MinSlotMinutes
	}
	if cfg.MaxSessionMinutes >= 0 {
		p.MaxSessionMinutes = cfg.MaxSessionMinutes
	}
	if strings.TrimSpace(cfg.LightDay) != "" {
		day, ok := ParseWeekday(cfg.LightDay)
		if !ok {
			return Policy{}, fmt.Errorf("planner light day %q is not a weekday", cfg.LightDay)
		}
		p.LightDay = day
	}
	if label := strings.TrimSpace(cfg.RevisionLabel); label != "" {
		p.RevisionLabel = label
	}
	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		p.Timezone = tz
	}
	p.DefaultTip = strings.TrimSpace(cfg.DefaultTip)
	return p, p.Validate()
}

// Validate checks the window and durations are coherent.
func (p Policy) Validate() error {
	if p.DayStart < 0 || p.DayEnd > MinutesPerDay || p.DayStart >= p.DayEnd {
		return fmt.Errorf("planner window %s-%s is empty or outside the day", FormatClock(p.DayStart), FormatClock(p.DayEnd))
	}
	if p.MinSlotMinutes <= 0 {
		return fmt.Errorf("planner minimum slot must be positive")
	}
	if p.MaxSessionMinutes < 0 {
		return fmt.Errorf("planner maximum session must not be negative")
	}
	if _, ok := ParseWeekday(string(p.LightDay)); !ok {
		return fmt.Errorf("planner light day %q is not a weekday", p.LightDay)
	}
	if strings.TrimSpace(p.RevisionLabel) == "" {
		return fmt.Errorf("planner revision label is required")
	}
	return nil
}

// Window returns the planning window as an interval.
func (p Policy) Window() Interval {
	return Interval{Start: p.DayStart, End: p.DayEnd}
}
