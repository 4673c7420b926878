package importer

import (
	"errors"
	"testing"
	"time"

	"github.com/dukerupert/huddle/internal/model"
)

func at(day, hour, min int) time.Time {
	// 2026-01-05 is a Monday.
	return time.Date(2026, 1, 5+day, hour, min, 0, 0, time.UTC)
}

func TestNormalizeDefaults(t *testing.T) {
	ev := Event{
		Source:     model.ProviderGoogle,
		ExternalID: "evt-1",
		Title:      "  Vendor sync ",
		Start:      at(2, 14, 0),
		End:        at(2, 14, 30),
		Attendees:  []string{"a@example.com"},
	}
	m, err := Normalize(ev, model.TimeFormat12h)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if m.Name != "Vendor sync" {
		t.Errorf("name = %q", m.Name)
	}
	if len(m.Days) != 1 || m.Days[0] != model.Wednesday {
		t.Errorf("days = %v, want [Wednesday]", m.Days)
	}
	if m.WeekType != model.WeekBoth {
		t.Errorf("week type = %q, want Both", m.WeekType)
	}
	if m.CategoryID != model.SyncedCategoryID {
		t.Errorf("category = %q, want synced", m.CategoryID)
	}
	if m.StartTime != "2:00 PM" || m.EndTime != "2:30 PM" {
		t.Errorf("times = %s-%s", m.StartTime, m.EndTime)
	}
	if m.SyncSource != model.ProviderGoogle || m.ExternalID != "evt-1" {
		t.Errorf("source = %q/%q", m.SyncSource, m.ExternalID)
	}
	if m.Persisted() {
		t.Error("normalized meeting should be a draft")
	}
	if !m.Imported() {
		t.Error("normalized meeting should be marked imported")
	}
}

func TestNormalize24hFormat(t *testing.T) {
	m, err := Normalize(Event{Start: at(0, 9, 5), End: at(0, 10, 0)}, model.TimeFormat24h)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if m.StartTime != "09:05" || m.EndTime != "10:00" {
		t.Errorf("times = %s-%s", m.StartTime, m.EndTime)
	}
}

func TestNormalizeWeekdays(t *testing.T) {
	ev := Event{
		Title:    "Mixed",
		Start:    at(0, 9, 0),
		End:      at(0, 10, 0),
		Weekdays: []time.Weekday{time.Friday, time.Saturday, time.Monday, time.Friday},
	}
	m, err := Normalize(ev, model.TimeFormat12h)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(m.Days) != 2 || m.Days[0] != model.Monday || m.Days[1] != model.Friday {
		t.Errorf("days = %v, want [Monday Friday]", m.Days)
	}
}

func TestNormalizeRejects(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		want error
	}{
		{"weekend", Event{Start: at(5, 9, 0), End: at(5, 10, 0)}, ErrWeekendOnly},
		{"weekend days", Event{Start: at(0, 9, 0), End: at(0, 10, 0), Weekdays: []time.Weekday{time.Sunday}}, ErrWeekendOnly},
		{"all day", Event{Start: at(0, 0, 0), End: at(1, 0, 0), AllDay: true}, ErrAllDay},
		{"no times", Event{}, ErrNoTimes},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Normalize(tt.ev, model.TimeFormat12h); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNormalizeAll(t *testing.T) {
	meetings, errs := NormalizeAll([]Event{
		{Title: "ok", Start: at(1, 9, 0), End: at(1, 9, 30)},
		{Title: "saturday", Start: at(5, 9, 0), End: at(5, 9, 30)},
	}, model.TimeFormat12h)
	if len(meetings) != 1 || len(errs) != 1 {
		t.Errorf("got %d meetings and %d errors, want 1 and 1", len(meetings), len(errs))
	}
}

func TestLinkDetection(t *testing.T) {
	tests := []struct {
		texts []string
		link  string
		kind  string
	}{
		{[]string{"https://zoom.us/j/123?pwd=x"}, "https://zoom.us/j/123?pwd=x", LinkZoom},
		{[]string{"Room 4", "Join: https://meet.google.com/abc-defg-hij."}, "https://meet.google.com/abc-defg-hij", LinkMeet},
		{[]string{"https://example.com/agenda then https://teams.microsoft.com/l/meetup-join/1"}, "https://teams.microsoft.com/l/meetup-join/1", LinkTeams},
		{[]string{"https://acme.webex.com/meet/bob"}, "https://acme.webex.com/meet/bob", LinkWebex},
		{[]string{"see https://example.com/agenda"}, "https://example.com/agenda", LinkOther},
		{[]string{"no link here"}, "", ""},
	}
	for _, tt := range tests {
		link := FindLink(tt.texts...)
		if link != tt.link {
			t.Errorf("FindLink(%q) = %q, want %q", tt.texts, link, tt.link)
			continue
		}
		if link != "" && DetectLinkType(link) != tt.kind {
			t.Errorf("DetectLinkType(%q) = %q, want %q", link, DetectLinkType(link), tt.kind)
		}
	}

	m, _ := Normalize(Event{Start: at(0, 9, 0), End: at(0, 10, 0), Location: "https://zoom.us/j/9"}, model.TimeFormat12h)
	if m.MeetingLink != "https://zoom.us/j/9" || m.MeetingLinkType != LinkZoom {
		t.Errorf("link = %q (%q)", m.MeetingLink, m.MeetingLinkType)
	}
}
