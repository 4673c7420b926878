// Package schedule holds the backend-agnostic scheduling rules: day filtering,
// conflict detection, move-to-day and series grouping. Every function is pure
// and operates on in-memory meetings.
package schedule

import "github.com/dukerupert/huddle/internal/model"

// IncludedOn reports whether m shows on day under the active week-type filter.
// Monthly and Quarterly meetings bypass the alternating-week filter.
func IncludedOn(m model.Meeting, day model.Weekday, filter model.WeekType) bool {
	if !m.HasDay(day) {
		return false
	}
	switch m.WeekType {
	case model.WeekBoth, model.WeekMonthly, model.WeekQuarterly:
		return true
	}
	return m.WeekType == filter
}

// FilterDay returns the meetings shown on day, preserving input order.
func FilterDay(meetings []model.Meeting, day model.Weekday, filter model.WeekType) []model.Meeting {
	var out []model.Meeting
	for _, m := range meetings {
		if IncludedOn(m, day, filter) {
			out = append(out, m)
		}
	}
	return out
}
