package planner

// FreeSlots returns the gaps inside the policy window not covered by busy,
// keeping only gaps of at least MinSlotMinutes. Busy intervals are clipped to
// the window, so commitments before DayStart or after DayEnd are harmless.
func FreeSlots(busy []Interval, policy Policy) []Interval {
	window := policy.Window()
	free := make([]Interval, 0, len(busy)+1)

	emit := func(start, end int) {
		if end-start >= policy.MinSlotMinutes && end > start {
			free = append(free, Interval{Start: start, End: end})
		}
	}

	cursor := window.Start
	for _, b := range Merge(busy) {
		if b.End <= cursor {
			continue
		}
		if b.Start >= window.End {
			break
		}
		if b.Start > cursor {
			emit(cursor, b.Start)
		}
		cursor = b.End
		if cursor >= window.End {
			return free
		}
	}
	emit(cursor, window.End)
	return free
}
