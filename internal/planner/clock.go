package planner

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// MinutesPerDay is the exclusive upper bound of a wall-clock minute offset.
const MinutesPerDay = 24 * 60

// ParseClock converts "HH:MM" (or "H:MM") into minutes since midnight.
// "24:00" is accepted as the end of the day.
func ParseClock(raw string) (int, error) {
	value := strings.TrimSpace(raw)
	hh, mm, ok := strings.Cut(value, ":")
	if !ok || len(hh) == 0 || len(hh) > 2 || len(mm) != 2 || !isDigits(hh) || !isDigits(mm) {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM", raw)
	}
	hours, err := strconv.Atoi(hh)
	if err != nil || hours < 0 {
		return 0, fmt.Errorf("invalid hour in %q", raw)
	}
	minutes, err := strconv.Atoi(mm)
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("invalid minute in %q", raw)
	}
	total := hours*60 + minutes
	if total > MinutesPerDay {
		return 0, fmt.Errorf("time %q is outside the day", raw)
	}
	return total, nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// FormatClock renders minutes since midnight as zero-padded "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// parseCanonicalClock only accepts the exact zero-padded form FormatClock emits.
func parseCanonicalClock(raw string) (int, error) {
	m, err := ParseClock(raw)
	if err != nil {
		return 0, err
	}
	if FormatClock(m) != raw {
		return 0, fmt.Errorf("time %q is not zero-padded HH:MM", raw)
	}
	return m, nil
}

// Interval is a half-open [Start, End) range of minutes since midnight.
type Interval struct {
	Start int
	End   int
}

// Duration returns the interval length in minutes.
func (i Interval) Duration() int {
	return i.End - i.Start
}

// Contains reports whether other lies fully inside i.
func (i Interval) Contains(other Interval) bool {
	return other.Start >= i.Start && other.End <= i.End
}

// Overlaps reports whether the two half-open intervals share any minute.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start < other.End && other.Start < i.End
}

// Range renders the interval as a wall-clock TimeRange.
func (i Interval) Range() TimeRange {
	return TimeRange{From: FormatClock(i.Start), To: FormatClock(i.End)}
}

// MarshalJSON keeps minute offsets internal; intervals leave the package as HH:MM.
func (i Interval) MarshalJSON() ([]byte, error) {
	return json.Marshal(i.Range())
}

// UnmarshalJSON accepts the HH:MM form produced by MarshalJSON.
func (i *Interval) UnmarshalJSON(data []byte) error {
	var r TimeRange
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	start, err := ParseClock(r.From)
	if err != nil {
		return err
	}
	end, err := ParseClock(r.To)
	if err != nil {
		return err
	}
	*i = Interval{Start: start, End: end}
	return nil
}
