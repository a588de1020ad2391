package planner

import "sort"

// SortSubjects orders subjects high, medium, low. Subjects with equal
// priority keep their input order. The input slice is not modified.
func SortSubjects(subjects []SubjectSelection) []SubjectSelection {
	sorted := make([]SubjectSelection, len(subjects))
	copy(sorted, subjects)
	sort.SliceStable(sorted, func(i, j int) bool {
		ri, _ := sorted[i].Priority.rank()
		rj, _ := sorted[j].Priority.rank()
		return ri < rj
	})
	return sorted
}

// rotation hands out subjects round-robin across the whole week.
type rotation struct {
	subjects []SubjectSelection
	cursor   int
}

func newRotation(sorted []SubjectSelection, weekIndex int) *rotation {
	r := &rotation{subjects: sorted}
	if n := len(sorted); n > 0 {
		r.cursor = ((weekIndex % n) + n) % n
	}
	return r
}

func (r *rotation) next() string {
	subject := r.subjects[r.cursor].Subject
	r.cursor = (r.cursor + 1) % len(r.subjects)
	return subject
}

type session struct {
	Interval
	Subject string
}

// schedule assigns one session per free slot. days must be in week order so
// the rotation cursor carries over from one day to the next. On the light
// day only the first slot is used, labelled with the revision label, and the
// rotation is left where it was.
func schedule(days []DayFreeSlots, sorted []SubjectSelection, weekIndex int, lightDay Weekday, policy Policy) map[Weekday][]session {
	out := make(map[Weekday][]session, len(days))
	if len(sorted) == 0 {
		return out
	}

	rot := newRotation(sorted, weekIndex)
	for _, day := range days {
		if day.Day == lightDay {
			if len(day.Slots) > 0 {
				out[day.Day] = []session{{Interval: fitSession(day.Slots[0], policy), Subject: policy.RevisionLabel}}
			}
			continue
		}
		sessions := make([]session, 0, len(day.Slots))
		for _, slot := range day.Slots {
			sessions = append(sessions, session{Interval: fitSession(slot, policy), Subject: rot.next()})
		}
		out[day.Day] = sessions
	}
	return out
}

// fitSession starts a session at the slot start and caps it at
// MaxSessionMinutes when that is set.
func fitSession(slot Interval, policy Policy) Interval {
	end := slot.End
	if policy.MaxSessionMinutes > 0 && slot.Start+policy.MaxSessionMinutes < end {
		end = slot.Start + policy.MaxSessionMinutes
	}
	return Interval{Start: slot.Start, End: end}
}
