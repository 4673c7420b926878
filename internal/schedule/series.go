package schedule

import (
	"sort"
	"strings"

	"github.com/dukerupert/huddle/internal/model"
)

// SeriesKey identifies the series a meeting belongs to: its explicit SeriesID
// when present, otherwise the (name, start, end, category, week type) tuple.
func SeriesKey(m model.Meeting) string {
	if m.SeriesID != "" {
		return "series:" + m.SeriesID
	}
	return "tuple:" + strings.Join([]string{
		m.Name, m.StartTime, m.EndTime, m.CategoryID, string(m.WeekType),
	}, "\x1f")
}

// GroupSeries returns the series with two or more members, ordered by first
// appearance. Members are sorted by ID.
func GroupSeries(meetings []model.Meeting) []model.MeetingSeries {
	var order []string
	groups := make(map[string][]model.Meeting)
	for _, m := range meetings {
		key := SeriesKey(m)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], m)
	}

	var out []model.MeetingSeries
	for _, key := range order {
		members := groups[key]
		if len(members) < 2 {
			continue
		}
		sort.SliceStable(members, func(i, j int) bool { return members[i].ID < members[j].ID })
		out = append(out, model.MeetingSeries{Key: key, Name: members[0].Name, Members: members})
	}
	return out
}

// FindSeries returns the members of the series with the given key.
func FindSeries(meetings []model.Meeting, key string) (model.MeetingSeries, bool) {
	for _, s := range GroupSeries(meetings) {
		if s.Key == key {
			return s, true
		}
	}
	return model.MeetingSeries{}, false
}

// SeriesUpdate is a partial update fanned out to every member of a series.
// Nil fields are left untouched.
type SeriesUpdate struct {
	Name               *string         `json:"name,omitempty"`
	CategoryID         *string         `json:"categoryId,omitempty"`
	StartTime          *string         `json:"startTime,omitempty"`
	EndTime            *string         `json:"endTime,omitempty"`
	WeekType           *model.WeekType `json:"weekType,omitempty"`
	RequiresAttendance *string         `json:"requiresAttendance,omitempty"`
	Notes              *string         `json:"notes,omitempty"`
	AssignedTo         *string         `json:"assignedTo,omitempty"`
	MeetingLink        *string         `json:"meetingLink,omitempty"`
	MeetingLinkType    *string         `json:"meetingLinkType,omitempty"`
	PublicVisibility   *bool           `json:"publicVisibility,omitempty"`
}

// ApplySeriesUpdate overwrites only the fields present in u.
func ApplySeriesUpdate(m model.Meeting, u SeriesUpdate) model.Meeting {
	out := m.Clone()
	if u.Name != nil {
		out.Name = *u.Name
	}
	if u.CategoryID != nil {
		out.CategoryID = *u.CategoryID
	}
	if u.StartTime != nil {
		out.StartTime = *u.StartTime
	}
	if u.EndTime != nil {
		out.EndTime = *u.EndTime
	}
	if u.WeekType != nil {
		out.WeekType = *u.WeekType
	}
	if u.RequiresAttendance != nil {
		out.RequiresAttendance = *u.RequiresAttendance
	}
	if u.Notes != nil {
		out.Notes = *u.Notes
	}
	if u.AssignedTo != nil {
		out.AssignedTo = *u.AssignedTo
	}
	if u.MeetingLink != nil {
		out.MeetingLink = *u.MeetingLink
	}
	if u.MeetingLinkType != nil {
		out.MeetingLinkType = *u.MeetingLinkType
	}
	if u.PublicVisibility != nil {
		out.PublicVisibility = *u.PublicVisibility
	}
	return out
}

// MergeImportedEdit applies a user edit to a stored meeting. Imported meetings
// only accept notes, link, category, assignment and attendance changes;
// everything else keeps the imported value.
func MergeImportedEdit(existing, edited model.Meeting) model.Meeting {
	if !existing.Imported() {
		return edited.Clone()
	}
	out := existing.Clone()
	out.Notes = edited.Notes
	out.MeetingLink = edited.MeetingLink
	out.MeetingLinkType = edited.MeetingLinkType
	out.CategoryID = edited.CategoryID
	out.AssignedTo = edited.AssignedTo
	out.RequiresAttendance = edited.RequiresAttendance
	return out
}
