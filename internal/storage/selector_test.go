package storage

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/dukerupert/huddle/internal/auth"
	"github.com/dukerupert/huddle/internal/database"
	"github.com/dukerupert/huddle/internal/model"
	"github.com/dukerupert/huddle/internal/store"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func signedIn() *staticSessions {
	return &staticSessions{session: &auth.Session{UserID: "user-1"}}
}

func TestUnconfiguredCloudNeverTouchesRemote(t *testing.T) {
	local := newMemBackend("local")
	remote := newMemBackend("cloud")
	sel := NewSelector(local, remote, nil, Options{Logger: quietLogger()})
	ctx := context.Background()

	if sel.CloudConfigured() {
		t.Fatal("cloud should be unconfigured without a session source")
	}
	if err := sel.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	for i := 0; i < 100; i++ {
		var err error
		switch i % 4 {
		case 0:
			_, err = sel.PutMeeting(ctx, model.Meeting{Name: "m", Days: []model.Weekday{model.Monday}, WeekType: model.WeekBoth})
		case 1:
			_, err = sel.Meetings(ctx)
		case 2:
			err = sel.SetSetting(ctx, model.KeyCurrentWeekType, string(model.WeekB))
		case 3:
			_, err = sel.ConflictsForDay(ctx, model.Monday)
		}
		if err != nil {
			t.Fatalf("op %d: %v", i, err)
		}
	}

	if n := remote.calls.Load() + remote.initCalls.Load(); n != 0 {
		t.Errorf("remote received %d calls, want 0", n)
	}
	if sel.Mode() != ModeLocal {
		t.Errorf("mode = %s, want LOCAL", sel.Mode())
	}
}

func TestSignedInRoutesToCloudWithSession(t *testing.T) {
	local := newMemBackend("local")
	remote := newMemBackend("cloud")
	remote.requireSession = true
	sel := NewSelector(local, remote, signedIn(), Options{Logger: quietLogger()})
	ctx := context.Background()

	m, err := sel.PutMeeting(ctx, model.Meeting{Name: "Cloud", Days: []model.Weekday{model.Tuesday}})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if m.ID != 101 {
		t.Errorf("id = %d, want server-assigned 101", m.ID)
	}
	if sel.Mode() != ModeCloud {
		t.Errorf("mode = %s, want CLOUD", sel.Mode())
	}
	if remote.lastUser != "user-1" {
		t.Errorf("remote saw user %q, want user-1", remote.lastUser)
	}
	if local.calls.Load() != 0 {
		t.Errorf("local received %d calls, want 0", local.calls.Load())
	}
	if remote.initCalls.Load() != 1 {
		t.Errorf("remote init calls = %d, want 1", remote.initCalls.Load())
	}
}

func TestSignedOutUsesLocal(t *testing.T) {
	local := newMemBackend("local")
	remote := newMemBackend("cloud")
	sel := NewSelector(local, remote, &staticSessions{}, Options{Logger: quietLogger()})

	if _, err := sel.Meetings(context.Background()); err != nil {
		t.Fatalf("meetings: %v", err)
	}
	if remote.initCalls.Load() != 0 || remote.calls.Load() != 0 {
		t.Error("remote touched while signed out")
	}
}

func TestSlowSessionProbeFallsBackToLocal(t *testing.T) {
	local := newMemBackend("local")
	remote := newMemBackend("cloud")
	sessions := signedIn()
	sessions.delay = time.Second
	sel := NewSelector(local, remote, sessions, Options{ProbeTimeout: 20 * time.Millisecond, Logger: quietLogger()})

	start := time.Now()
	if _, err := sel.Meetings(context.Background()); err != nil {
		t.Fatalf("meetings: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("call took %v, probe was not timeboxed", elapsed)
	}
	if local.calls.Load() != 1 {
		t.Errorf("local calls = %d, want 1", local.calls.Load())
	}
}

func TestRemoteInitTimeoutFallsBackWithBackoff(t *testing.T) {
	local := newMemBackend("local")
	remote := newMemBackend("cloud")
	remote.initDelay.Store(int64(time.Second))
	sel := NewSelector(local, remote, signedIn(), Options{
		InitTimeout: 20 * time.Millisecond,
		InitBackoff: time.Hour,
		Logger:      quietLogger(),
	})
	ctx := context.Background()

	if _, err := sel.Meetings(ctx); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if sel.Mode() != ModeLocal {
		t.Errorf("mode = %s, want LOCAL after init timeout", sel.Mode())
	}
	if _, err := sel.Meetings(ctx); err != nil {
		t.Fatalf("second call: %v", err)
	}
	if n := remote.initCalls.Load(); n != 1 {
		t.Errorf("remote init calls = %d, want 1 within back-off", n)
	}
	if local.calls.Load() != 2 {
		t.Errorf("local calls = %d, want 2", local.calls.Load())
	}

	// Once the back-off has elapsed the next call retries.
	remote.initDelay.Store(0)
	sel.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := sel.Meetings(ctx); err != nil {
		t.Fatalf("third call: %v", err)
	}
	if sel.Mode() != ModeCloud {
		t.Errorf("mode = %s, want CLOUD after retry", sel.Mode())
	}
}

func TestCloudErrorsSurface(t *testing.T) {
	local := newMemBackend("local")
	remote := newMemBackend("cloud")
	boom := errors.New("connection reset")
	remote.failWith = boom
	sel := NewSelector(local, remote, signedIn(), Options{Logger: quietLogger()})

	err := sel.DeleteMeeting(context.Background(), 5)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped remote error", err)
	}
	if !strings.Contains(err.Error(), "cloud") {
		t.Errorf("error %q does not name the backend", err)
	}
	if local.calls.Load() != 0 {
		t.Error("failed cloud call silently fell over to local")
	}
}

func TestWeekTypeDualWrite(t *testing.T) {
	var logs bytes.Buffer
	local := newMemBackend("local")
	remote := newMemBackend("cloud")
	sel := NewSelector(local, remote, signedIn(), Options{Logger: slog.New(slog.NewTextHandler(&logs, nil))})
	ctx := context.Background()

	if err := sel.SetSetting(ctx, model.KeyCurrentWeekType, "WeekB"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if local.settings[model.KeyCurrentWeekType] != "WeekB" || remote.settings[model.KeyCurrentWeekType] != "WeekB" {
		t.Errorf("local=%q remote=%q, want both WeekB", local.settings[model.KeyCurrentWeekType], remote.settings[model.KeyCurrentWeekType])
	}

	// A failed mirror is logged and swallowed.
	remote.failWith = errors.New("offline")
	if err := sel.SetSetting(ctx, model.KeyCurrentView, model.ViewDay); err != nil {
		t.Fatalf("set with failing mirror: %v", err)
	}
	if local.settings[model.KeyCurrentView] != model.ViewDay {
		t.Errorf("local view = %q, want day", local.settings[model.KeyCurrentView])
	}
	if !strings.Contains(logs.String(), "mirror setting failed") {
		t.Errorf("expected mirror failure to be logged, got %q", logs.String())
	}

	// Other settings follow the active backend only.
	remote.failWith = nil
	if err := sel.SetSetting(ctx, model.KeyTimeFormat, "24h"); err != nil {
		t.Fatalf("set time format: %v", err)
	}
	if _, ok := local.settings[model.KeyTimeFormat]; ok {
		t.Error("time format was written locally while in CLOUD mode")
	}
}

func TestConflictsMatchAcrossModes(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	local := store.NewLocalStore(db, nil)
	if err := local.Init(ctx); err != nil {
		t.Fatalf("init local: %v", err)
	}
	remote := newMemBackend("cloud")

	seed, err := local.Meetings(ctx)
	if err != nil {
		t.Fatalf("seed meetings: %v", err)
	}
	extra, err := local.PutMeeting(ctx, model.Meeting{
		Name: "Overlap", CategoryID: "engineering",
		Days:      []model.Weekday{model.Monday, model.Wednesday},
		StartTime: "9:40 AM", EndTime: "10:30 AM", WeekType: model.WeekBoth,
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	for _, m := range append(seed, extra) {
		remote.meetings[m.ID] = m
	}

	localSel := NewSelector(local, nil, nil, Options{Logger: quietLogger()})
	cloudSel := NewSelector(local, remote, signedIn(), Options{Logger: quietLogger()})

	for _, day := range model.Weekdays {
		want, err := localSel.ConflictsForDay(ctx, day)
		if err != nil {
			t.Fatalf("local conflicts %s: %v", day, err)
		}
		got, err := cloudSel.ConflictsForDay(ctx, day)
		if err != nil {
			t.Fatalf("cloud conflicts %s: %v", day, err)
		}
		if len(want) != len(got) || (len(want) > 0 && !reflect.DeepEqual(want, got)) {
			t.Errorf("%s: local %+v, cloud %+v", day, want, got)
		}
	}

	monday, _ := cloudSel.ConflictsForDay(ctx, model.Monday)
	if len(monday) != 2 {
		t.Errorf("monday conflicts = %+v, want standup and sprint planning overlaps", monday)
	}
}

func TestTimebox(t *testing.T) {
	ctx := context.Background()

	v, err := Timebox(ctx, time.Second, func(context.Context) (int, error) { return 7, nil })
	if err != nil || v != 7 {
		t.Errorf("fast op = %d, %v", v, err)
	}

	canceled := make(chan struct{})
	_, err = Timebox(ctx, 10*time.Millisecond, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		close(canceled)
		return 1, nil
	})
	if !errors.Is(err, model.ErrTimeout) {
		t.Errorf("slow op err = %v, want ErrTimeout", err)
	}
	select {
	case <-canceled:
	case <-time.After(time.Second):
		t.Error("abandoned op was not canceled")
	}
}

func TestModeChangeCallback(t *testing.T) {
	local := newMemBackend("local")
	remote := newMemBackend("cloud")
	sessions := signedIn()

	var changes []string
	sel := NewSelector(local, remote, sessions, Options{
		Logger: quietLogger(),
		OnModeChange: func(from, to Mode) {
			changes = append(changes, string(from)+"->"+string(to))
		},
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := sel.Meetings(ctx); err != nil {
			t.Fatalf("meetings: %v", err)
		}
	}
	sessions.session = nil
	if _, err := sel.Meetings(ctx); err != nil {
		t.Fatalf("meetings: %v", err)
	}

	want := []string{"LOCAL->CLOUD", "CLOUD->LOCAL"}
	if !reflect.DeepEqual(changes, want) {
		t.Errorf("changes = %v, want %v", changes, want)
	}
}
