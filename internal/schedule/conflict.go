package schedule

import "github.com/dukerupert/huddle/internal/model"

// Overlaps applies the half-open interval rule: ranges that merely touch do not overlap.
func Overlaps(startA, endA, startB, endB int) bool {
	return startA < endB && startB < endA
}

// DetectConflicts compares every pair of the day's meetings in ascending index
// order and reports one conflict per overlapping pair. Groups are not merged.
// Meetings with unparseable times never conflict.
func DetectConflicts(dayMeetings []model.Meeting, day model.Weekday) []model.Conflict {
	type span struct {
		start, end int
		ok         bool
	}
	spans := make([]span, len(dayMeetings))
	for i, m := range dayMeetings {
		start, okStart := ParseClock(m.StartTime)
		end, okEnd := ParseClock(m.EndTime)
		spans[i] = span{start: start, end: end, ok: okStart && okEnd}
	}

	var conflicts []model.Conflict
	for i := 0; i < len(dayMeetings); i++ {
		if !spans[i].ok {
			continue
		}
		for j := i + 1; j < len(dayMeetings); j++ {
			if !spans[j].ok {
				continue
			}
			a, b := spans[i], spans[j]
			if !Overlaps(a.start, a.end, b.start, b.end) {
				continue
			}
			label := dayMeetings[i].StartTime
			if b.start > a.start {
				label = dayMeetings[j].StartTime
			}
			conflicts = append(conflicts, model.Conflict{
				Day:        day,
				Time:       label,
				MeetingIDs: [2]int64{dayMeetings[i].ID, dayMeetings[j].ID},
			})
		}
	}
	return conflicts
}

// ConflictsForDay filters meetings to day and detects conflicts among them.
func ConflictsForDay(meetings []model.Meeting, day model.Weekday, filter model.WeekType) []model.Conflict {
	return DetectConflicts(FilterDay(meetings, day, filter), day)
}

// ConflictsForWeek runs ConflictsForDay for every business day in calendar order.
func ConflictsForWeek(meetings []model.Meeting, filter model.WeekType) map[model.Weekday][]model.Conflict {
	out := make(map[model.Weekday][]model.Conflict)
	for _, day := range model.Weekdays {
		if c := ConflictsForDay(meetings, day, filter); len(c) > 0 {
			out[day] = c
		}
	}
	return out
}
