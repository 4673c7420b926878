// Package importer turns external calendar events into candidate meetings.
package importer

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/dukerupert/huddle/internal/model"
	"github.com/dukerupert/huddle/internal/schedule"
)

var (
	ErrWeekendOnly = errors.New("event has no business-day occurrence")
	ErrAllDay      = errors.New("all-day events have no time slot")
	ErrNoTimes     = errors.New("event has no start or end time")
)

// Event is one external calendar event before normalization. Start and End
// carry the wall-clock time of an occurrence; the date part is only used for
// the weekday when Weekdays is empty.
type Event struct {
	Source      model.Provider
	ExternalID  string
	Title       string
	Start       time.Time
	End         time.Time
	AllDay      bool
	Weekdays    []time.Weekday
	WeekType    model.WeekType
	CategoryID  string
	Attendees   []string
	Location    string
	Description string
}

var weekdayNames = map[time.Weekday]model.Weekday{
	time.Monday:    model.Monday,
	time.Tuesday:   model.Tuesday,
	time.Wednesday: model.Wednesday,
	time.Thursday:  model.Thursday,
	time.Friday:    model.Friday,
}

// Normalize maps ev to a draft meeting. Weekend days are dropped and an
// event left with none is rejected.
func Normalize(ev Event, format model.TimeFormat) (model.Meeting, error) {
	if ev.AllDay {
		return model.Meeting{}, fmt.Errorf("%q: %w", ev.Title, ErrAllDay)
	}
	if ev.Start.IsZero() || ev.End.IsZero() {
		return model.Meeting{}, fmt.Errorf("%q: %w", ev.Title, ErrNoTimes)
	}

	weekdays := ev.Weekdays
	if len(weekdays) == 0 {
		weekdays = []time.Weekday{ev.Start.Weekday()}
	}
	var days []model.Weekday
	seen := make(map[model.Weekday]bool)
	for _, wd := range weekdays {
		d, ok := weekdayNames[wd]
		if !ok || seen[d] {
			continue
		}
		seen[d] = true
		days = append(days, d)
	}
	if len(days) == 0 {
		return model.Meeting{}, fmt.Errorf("%q: %w", ev.Title, ErrWeekendOnly)
	}
	orderDays(days)

	weekType := ev.WeekType
	if !weekType.Valid() {
		weekType = model.WeekBoth
	}
	category := ev.CategoryID
	if category == "" {
		category = model.SyncedCategoryID
	}
	name := strings.TrimSpace(ev.Title)
	if name == "" {
		name = "(untitled)"
	}

	m := model.Meeting{
		Name:       name,
		CategoryID: category,
		Days:       days,
		StartTime:  schedule.FormatClock(ev.Start.Hour()*60+ev.Start.Minute(), format),
		EndTime:    schedule.FormatClock(ev.End.Hour()*60+ev.End.Minute(), format),
		WeekType:   weekType,
		SyncSource: ev.Source,
		ExternalID: ev.ExternalID,
	}
	if len(ev.Attendees) > 0 {
		m.ImportedAttendees = append([]string(nil), ev.Attendees...)
	}
	if link := FindLink(ev.Location, ev.Description); link != "" {
		m.MeetingLink = link
		m.MeetingLinkType = DetectLinkType(link)
	}
	return m, nil
}

// NormalizeAll normalizes each event, collecting the ones that fail.
func NormalizeAll(events []Event, format model.TimeFormat) ([]model.Meeting, []error) {
	meetings := make([]model.Meeting, 0, len(events))
	var errs []error
	for _, ev := range events {
		m, err := Normalize(ev, format)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		meetings = append(meetings, m)
	}
	return meetings, errs
}

func orderDays(days []model.Weekday) {
	rank := make(map[model.Weekday]int, len(model.Weekdays))
	for i, d := range model.Weekdays {
		rank[d] = i
	}
	for i := 1; i < len(days); i++ {
		for j := i; j > 0 && rank[days[j]] < rank[days[j-1]]; j-- {
			days[j], days[j-1] = days[j-1], days[j]
		}
	}
}

var urlPattern = regexp.MustCompile(`https?://[^\s<>"']+`)

// FindLink returns the first conferencing URL in the given texts, falling
// back to the first URL of any kind.
func FindLink(texts ...string) string {
	var first string
	for _, t := range texts {
		for _, u := range urlPattern.FindAllString(t, -1) {
			u = strings.TrimRight(u, ".,;)")
			if DetectLinkType(u) != LinkOther {
				return u
			}
			if first == "" {
				first = u
			}
		}
	}
	return first
}

// Link types.
const (
	LinkZoom  = "zoom"
	LinkMeet  = "meet"
	LinkTeams = "teams"
	LinkWebex = "webex"
	LinkOther = "other"
)

// DetectLinkType classifies a meeting URL by host.
func DetectLinkType(link string) string {
	l := strings.ToLower(link)
	switch {
	case strings.Contains(l, "zoom.us/"):
		return LinkZoom
	case strings.Contains(l, "meet.google.com/"):
		return LinkMeet
	case strings.Contains(l, "teams.microsoft.com/"), strings.Contains(l, "teams.live.com/"):
		return LinkTeams
	case strings.Contains(l, "webex.com/"):
		return LinkWebex
	}
	return LinkOther
}
