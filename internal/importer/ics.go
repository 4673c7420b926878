package importer

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"github.com/dukerupert/huddle/internal/model"
)

// ParseICS extracts candidate events from an ICS payload. Times are
// converted to loc. Cancelled events and overrides of single recurring
// instances are skipped, as are events that fail to parse.
func ParseICS(body []byte, loc *time.Location) ([]Event, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}
	if loc == nil {
		loc = time.Local
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse ics: %w", err)
	}

	var events []Event
	for _, ve := range cal.Events() {
		ev, ok, err := parseVEvent(ve, loc)
		if err != nil {
			slog.Warn("skipping ics event", "error", err)
			continue
		}
		if ok {
			events = append(events, ev)
		}
	}
	return events, nil
}

func parseVEvent(ve *ical.VEvent, loc *time.Location) (Event, bool, error) {
	ev := Event{Source: model.ProviderICS}

	uid := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uid == nil || uid.Value == "" {
		return ev, false, errors.New("missing UID")
	}
	ev.ExternalID = uid.Value

	if p := ve.GetProperty(ical.ComponentPropertyStatus); p != nil && strings.EqualFold(p.Value, "CANCELLED") {
		return ev, false, nil
	}
	if ve.GetProperty(ical.ComponentPropertyRecurrenceId) != nil {
		return ev, false, nil
	}

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		ev.Title = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		ev.Description = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		ev.Location = p.Value
	}
	for _, a := range ve.Attendees() {
		if email := a.Email(); email != "" {
			ev.Attendees = append(ev.Attendees, email)
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertyDtStart); p != nil {
		if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
			ev.AllDay = true
		}
		if !strings.Contains(p.Value, "T") {
			ev.AllDay = true
		}
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return ev, false, fmt.Errorf("event %s: start: %w", ev.ExternalID, err)
	}
	end, err := ve.GetEndAt()
	if err != nil {
		return ev, false, fmt.Errorf("event %s: end: %w", ev.ExternalID, err)
	}
	ev.Start = start.In(loc)
	ev.End = end.In(loc)

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil && p.Value != "" {
		if err := applyRRule(&ev, p.Value); err != nil {
			return ev, false, fmt.Errorf("event %s: %w", ev.ExternalID, err)
		}
	}
	return ev, true, nil
}

// applyRRule maps a recurrence rule to weekdays and a week type.
func applyRRule(ev *Event, raw string) error {
	r, err := rrule.StrToRRule(raw)
	if err != nil {
		return fmt.Errorf("rrule %q: %w", raw, err)
	}
	opts := r.OrigOptions

	for _, wd := range opts.Byweekday {
		ev.Weekdays = append(ev.Weekdays, time.Weekday((wd.Day()+1)%7))
	}

	switch opts.Freq {
	case rrule.WEEKLY:
		if opts.Interval == 2 {
			ev.WeekType = model.WeekA
		}
	case rrule.DAILY:
		if len(ev.Weekdays) == 0 {
			ev.Weekdays = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}
		}
	case rrule.MONTHLY:
		if opts.Interval >= 3 {
			ev.WeekType = model.WeekQuarterly
		} else {
			ev.WeekType = model.WeekMonthly
		}
	case rrule.YEARLY:
		ev.WeekType = model.WeekQuarterly
	}
	return nil
}
