package calsync

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dukerupert/huddle/internal/model"
	"github.com/dukerupert/huddle/internal/state"
)

const feed = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Test//EN
BEGIN:VEVENT
UID:standup-1
DTSTAMP:20260101T000000Z
SUMMARY:Partner standup
DTSTART:20260105T140000Z
DTEND:20260105T141500Z
RRULE:FREQ=WEEKLY;BYDAY=MO,TH
END:VEVENT
BEGIN:VEVENT
UID:weekend-1
DTSTAMP:20260101T000000Z
SUMMARY:Saturday hack
DTSTART:20260110T140000Z
DTEND:20260110T150000Z
END:VEVENT
END:VCALENDAR
`

type fakeTarget struct {
	mu       sync.Mutex
	configs  []model.CalendarSyncConfig
	imported []model.Meeting
	saved    []model.CalendarSyncConfig
}

func (f *fakeTarget) Settings() model.Settings {
	s := model.DefaultSettings()
	s.Timezone = "UTC"
	return s
}

func (f *fakeTarget) SyncConfigs(context.Context) ([]model.CalendarSyncConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.CalendarSyncConfig(nil), f.configs...), nil
}

func (f *fakeTarget) SaveSyncConfig(_ context.Context, cfg model.CalendarSyncConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, cfg)
	return nil
}

func (f *fakeTarget) ImportMeetings(_ context.Context, candidates []model.Meeting) (state.ImportResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.imported = append(f.imported, candidates...)
	return state.ImportResult{Created: len(candidates)}, nil
}

func feedServer(t *testing.T, failures int32) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := hits.Add(1)
		switch {
		case r.URL.Path == "/missing.ics":
			http.NotFound(w, r)
		case n <= failures:
			http.Error(w, "try later", http.StatusServiceUnavailable)
		default:
			w.Header().Set("Content-Type", "text/calendar")
			w.Write([]byte(strings.ReplaceAll(feed, "\n", "\r\n")))
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newTestSyncer(target Target) *Syncer {
	s := NewSyncer(target, Options{RetryDelay: time.Millisecond, Retries: 3})
	s.now = func() time.Time { return time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC) }
	return s
}

func TestSyncImportsFeed(t *testing.T) {
	srv, _ := feedServer(t, 0)
	target := &fakeTarget{}
	s := newTestSyncer(target)

	res, err := s.Sync(context.Background(), model.CalendarSyncConfig{Provider: model.ProviderICS, Name: "Partners", CalendarID: srv.URL + "/team.ics"})
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if res.Import.Created != 1 || res.Skipped != 1 {
		t.Errorf("result = %+v, want 1 created and the weekend event skipped", res)
	}

	if len(target.imported) != 1 {
		t.Fatalf("imported = %d, want 1", len(target.imported))
	}
	m := target.imported[0]
	if m.ExternalID != "standup-1" || m.SyncSource != model.ProviderICS {
		t.Errorf("meeting = %+v, want ics source with the event UID", m)
	}
	if len(m.Days) != 2 || m.Days[0] != model.Monday || m.Days[1] != model.Thursday {
		t.Errorf("days = %v, want [Monday Thursday]", m.Days)
	}
	if m.StartTime != "2:00 PM" {
		t.Errorf("start = %q, want 2:00 PM", m.StartTime)
	}

	if len(target.saved) != 1 || target.saved[0].LastSync == nil {
		t.Fatalf("saved configs = %+v, want last sync recorded", target.saved)
	}
	if !target.saved[0].LastSync.Equal(res.SyncedAt) {
		t.Errorf("last sync = %v, want %v", target.saved[0].LastSync, res.SyncedAt)
	}
}

func TestSyncRetriesServerErrors(t *testing.T) {
	srv, hits := feedServer(t, 2)
	s := newTestSyncer(&fakeTarget{})

	if _, err := s.Sync(context.Background(), model.CalendarSyncConfig{Provider: model.ProviderICS, Name: "Flaky", CalendarID: srv.URL + "/team.ics"}); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if got := hits.Load(); got != 3 {
		t.Errorf("requests = %d, want 3", got)
	}
}

func TestSyncDoesNotRetryClientErrors(t *testing.T) {
	srv, hits := feedServer(t, 0)
	target := &fakeTarget{}
	s := newTestSyncer(target)

	_, err := s.Sync(context.Background(), model.CalendarSyncConfig{Provider: model.ProviderICS, Name: "Gone", CalendarID: srv.URL + "/missing.ics"})
	if err == nil {
		t.Fatal("expected an error for a missing feed")
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("requests = %d, want 1", got)
	}
	if len(target.saved) != 0 {
		t.Error("last sync recorded for a failed fetch")
	}
}

func TestSyncRejectsOversizedFeed(t *testing.T) {
	srv, hits := feedServer(t, 0)
	target := &fakeTarget{}
	s := NewSyncer(target, Options{RetryDelay: time.Millisecond, MaxBytes: 64})

	_, err := s.Sync(context.Background(), model.CalendarSyncConfig{Provider: model.ProviderICS, Name: "Huge", CalendarID: srv.URL + "/team.ics"})
	if !errors.Is(err, ErrFeedTooLarge) {
		t.Fatalf("err = %v, want ErrFeedTooLarge", err)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("requests = %d, want 1 (no retry)", got)
	}
	if len(target.imported) != 0 || len(target.saved) != 0 {
		t.Error("a truncated feed was imported")
	}
}

func TestSyncRejectsOAuthProviders(t *testing.T) {
	s := newTestSyncer(&fakeTarget{})
	_, err := s.Sync(context.Background(), model.CalendarSyncConfig{Provider: model.ProviderGoogle, Name: "Work"})
	if !errors.Is(err, ErrUnsupportedProvider) {
		t.Errorf("err = %v, want ErrUnsupportedProvider", err)
	}
}

func TestSyncAllContinuesPastFailures(t *testing.T) {
	srv, _ := feedServer(t, 0)
	target := &fakeTarget{configs: []model.CalendarSyncConfig{
		{Provider: model.ProviderGoogle, Name: "Work"},
		{Provider: model.ProviderICS, Name: "Gone", CalendarID: srv.URL + "/missing.ics"},
		{Provider: model.ProviderICS, Name: "Partners", CalendarID: srv.URL + "/team.ics"},
	}}
	s := newTestSyncer(target)

	results, err := s.SyncAll(context.Background())
	if err == nil || !strings.Contains(err.Error(), "Gone") {
		t.Errorf("err = %v, want the failing connection reported", err)
	}
	if len(results) != 1 || results[0].Name != "Partners" {
		t.Errorf("results = %+v, want only Partners", results)
	}
}

func TestNewSchedulerRejectsBadSpec(t *testing.T) {
	s := newTestSyncer(&fakeTarget{})
	if _, err := NewScheduler(s, "every tuesday", time.UTC, time.Minute); err == nil {
		t.Error("expected an error for an invalid cron spec")
	}

	sched, err := NewScheduler(s, "", time.UTC, time.Minute)
	if err != nil {
		t.Fatalf("default schedule: %v", err)
	}
	sched.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	sched.Stop(ctx)
}
