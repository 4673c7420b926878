package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/huddle/internal/auth"
	"github.com/dukerupert/huddle/internal/model"
	"github.com/dukerupert/huddle/internal/schedule"
)

// Mode names the backend currently serving operations.
type Mode string

const (
	ModeLocal Mode = "LOCAL"
	ModeCloud Mode = "CLOUD"
)

// Options tunes the selector. Zero values take the defaults below.
type Options struct {
	ProbeTimeout time.Duration
	InitTimeout  time.Duration
	InitBackoff  time.Duration
	Logger       *slog.Logger
	// OnModeChange is called after the mode flips. It must not block.
	OnModeChange func(from, to Mode)
}

const (
	DefaultProbeTimeout = 3 * time.Second
	DefaultInitTimeout  = 5 * time.Second
	DefaultInitBackoff  = 30 * time.Second
)

// Selector routes each operation to the local or cloud backend. The mode is
// resolved once at the start of every call.
type Selector struct {
	local    Backend
	remote   Backend
	sessions auth.SessionSource
	opts     Options
	logger   *slog.Logger
	now      func() time.Time

	initMu sync.Mutex

	mu          sync.Mutex
	mode        Mode
	remoteReady bool
	retryAt     time.Time
}

// NewSelector builds a selector. With a nil remote or nil sessions the
// selector is pinned to the local backend and never probes.
func NewSelector(local, remote Backend, sessions auth.SessionSource, opts Options) *Selector {
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = DefaultProbeTimeout
	}
	if opts.InitTimeout <= 0 {
		opts.InitTimeout = DefaultInitTimeout
	}
	if opts.InitBackoff <= 0 {
		opts.InitBackoff = DefaultInitBackoff
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{
		local:    local,
		remote:   remote,
		sessions: sessions,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
		mode:     ModeLocal,
	}
}

// Init prepares the local backend. The cloud backend is initialized lazily
// on the first call made with a session.
func (s *Selector) Init(ctx context.Context) error {
	if err := s.local.Init(ctx); err != nil {
		return fmt.Errorf("init %s backend: %w", s.local.Name(), err)
	}
	return nil
}

// CloudConfigured reports whether the selector can ever leave LOCAL mode.
func (s *Selector) CloudConfigured() bool {
	return s.remote != nil && s.sessions != nil
}

// Mode returns the mode chosen by the most recent call.
func (s *Selector) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// resolve picks the backend for one call. For the cloud backend the returned
// context carries the session.
func (s *Selector) resolve(ctx context.Context) (Backend, context.Context) {
	if !s.CloudConfigured() {
		return s.local, ctx
	}

	sess, err := Timebox(ctx, s.opts.ProbeTimeout, s.sessions.Session)
	if err != nil {
		s.logger.Warn("session probe failed", "error", err)
		s.setMode(ModeLocal)
		return s.local, ctx
	}
	if sess == nil {
		s.setMode(ModeLocal)
		return s.local, ctx
	}

	if !s.ensureRemote(ctx) {
		s.setMode(ModeLocal)
		return s.local, ctx
	}
	s.setMode(ModeCloud)
	return s.remote, auth.WithSession(ctx, *sess)
}

// ensureRemote initializes the cloud backend once. A failed attempt blocks
// further attempts until the back-off elapses.
func (s *Selector) ensureRemote(ctx context.Context) bool {
	s.mu.Lock()
	ready, retryAt := s.remoteReady, s.retryAt
	s.mu.Unlock()
	if ready {
		return true
	}
	if s.now().Before(retryAt) {
		return false
	}

	s.initMu.Lock()
	defer s.initMu.Unlock()

	s.mu.Lock()
	ready, retryAt = s.remoteReady, s.retryAt
	s.mu.Unlock()
	if ready {
		return true
	}
	if s.now().Before(retryAt) {
		return false
	}

	_, err := Timebox(ctx, s.opts.InitTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.remote.Init(ctx)
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.retryAt = s.now().Add(s.opts.InitBackoff)
		s.logger.Warn("cloud backend init failed, using local", "error", err, "retry_in", s.opts.InitBackoff)
		return false
	}
	s.remoteReady = true
	return true
}

func (s *Selector) setMode(m Mode) {
	s.mu.Lock()
	prev := s.mode
	s.mode = m
	s.mu.Unlock()
	if prev != m {
		s.logger.Info("storage mode changed", "from", prev, "to", m)
		if s.opts.OnModeChange != nil {
			s.opts.OnModeChange(prev, m)
		}
	}
}

func call[T any](s *Selector, ctx context.Context, op string, fn func(Backend, context.Context) (T, error)) (T, error) {
	b, ctx := s.resolve(ctx)
	v, err := fn(b, ctx)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("%s %s: %w", b.Name(), op, err)
	}
	return v, nil
}

func exec(s *Selector, ctx context.Context, op string, fn func(Backend, context.Context) error) error {
	_, err := call(s, ctx, op, func(b Backend, ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(b, ctx)
	})
	return err
}

func (s *Selector) Meetings(ctx context.Context) ([]model.Meeting, error) {
	return call(s, ctx, "list meetings", func(b Backend, ctx context.Context) ([]model.Meeting, error) {
		return b.Meetings(ctx)
	})
}

func (s *Selector) Meeting(ctx context.Context, id int64) (*model.Meeting, error) {
	return call(s, ctx, "get meeting", func(b Backend, ctx context.Context) (*model.Meeting, error) {
		return b.Meeting(ctx, id)
	})
}

func (s *Selector) PutMeeting(ctx context.Context, m model.Meeting) (model.Meeting, error) {
	return call(s, ctx, "put meeting", func(b Backend, ctx context.Context) (model.Meeting, error) {
		return b.PutMeeting(ctx, m)
	})
}

func (s *Selector) DeleteMeeting(ctx context.Context, id int64) error {
	return exec(s, ctx, "delete meeting", func(b Backend, ctx context.Context) error {
		return b.DeleteMeeting(ctx, id)
	})
}

func (s *Selector) Categories(ctx context.Context) ([]model.Category, error) {
	return call(s, ctx, "list categories", func(b Backend, ctx context.Context) ([]model.Category, error) {
		return b.Categories(ctx)
	})
}

func (s *Selector) Category(ctx context.Context, id string) (*model.Category, error) {
	return call(s, ctx, "get category", func(b Backend, ctx context.Context) (*model.Category, error) {
		return b.Category(ctx, id)
	})
}

func (s *Selector) PutCategory(ctx context.Context, c model.Category) error {
	return exec(s, ctx, "put category", func(b Backend, ctx context.Context) error {
		return b.PutCategory(ctx, c)
	})
}

func (s *Selector) DeleteCategory(ctx context.Context, id string) error {
	return exec(s, ctx, "delete category", func(b Backend, ctx context.Context) error {
		return b.DeleteCategory(ctx, id)
	})
}

func (s *Selector) Settings(ctx context.Context) (map[string]string, error) {
	return call(s, ctx, "get settings", func(b Backend, ctx context.Context) (map[string]string, error) {
		return b.Settings(ctx)
	})
}

// SetSetting writes one setting. The week type and view are always written
// locally and mirrored to the cloud when it is active; a failed mirror is
// logged only.
func (s *Selector) SetSetting(ctx context.Context, key, value string) error {
	if key != model.KeyCurrentWeekType && key != model.KeyCurrentView {
		return exec(s, ctx, "set setting", func(b Backend, ctx context.Context) error {
			return b.SetSetting(ctx, key, value)
		})
	}

	b, cctx := s.resolve(ctx)
	if err := s.local.SetSetting(ctx, key, value); err != nil {
		return fmt.Errorf("%s set setting: %w", s.local.Name(), err)
	}
	if b != s.local {
		if err := b.SetSetting(cctx, key, value); err != nil {
			s.logger.Warn("mirror setting failed", "backend", b.Name(), "key", key, "error", err)
		}
	}
	return nil
}

func (s *Selector) SyncConfigs(ctx context.Context) ([]model.CalendarSyncConfig, error) {
	return call(s, ctx, "list sync configs", func(b Backend, ctx context.Context) ([]model.CalendarSyncConfig, error) {
		return b.SyncConfigs(ctx)
	})
}

func (s *Selector) PutSyncConfig(ctx context.Context, c model.CalendarSyncConfig) error {
	return exec(s, ctx, "put sync config", func(b Backend, ctx context.Context) error {
		return b.PutSyncConfig(ctx, c)
	})
}

func (s *Selector) DeleteSyncConfig(ctx context.Context, provider model.Provider, name string) error {
	return exec(s, ctx, "delete sync config", func(b Backend, ctx context.Context) error {
		return b.DeleteSyncConfig(ctx, provider, name)
	})
}

// MeetingsForDay returns the meetings shown on day under the stored week-type filter.
func (s *Selector) MeetingsForDay(ctx context.Context, day model.Weekday) ([]model.Meeting, error) {
	return call(s, ctx, "meetings for day", func(b Backend, ctx context.Context) ([]model.Meeting, error) {
		if q, ok := b.(DayQuerier); ok {
			return q.MeetingsForDay(ctx, day)
		}
		meetings, filter, err := meetingsWithFilter(ctx, b)
		if err != nil {
			return nil, err
		}
		return schedule.FilterDay(meetings, day, filter), nil
	})
}

// ConflictsForDay reports overlaps on day. Backends without day queries are
// answered in memory by the same engine.
func (s *Selector) ConflictsForDay(ctx context.Context, day model.Weekday) ([]model.Conflict, error) {
	return call(s, ctx, "conflicts for day", func(b Backend, ctx context.Context) ([]model.Conflict, error) {
		if q, ok := b.(DayQuerier); ok {
			return q.ConflictsForDay(ctx, day)
		}
		meetings, filter, err := meetingsWithFilter(ctx, b)
		if err != nil {
			return nil, err
		}
		return schedule.ConflictsForDay(meetings, day, filter), nil
	})
}

func meetingsWithFilter(ctx context.Context, b Backend) ([]model.Meeting, model.WeekType, error) {
	meetings, err := b.Meetings(ctx)
	if err != nil {
		return nil, "", err
	}
	values, err := b.Settings(ctx)
	if err != nil {
		return nil, "", err
	}
	return meetings, model.SettingsFromMap(values).CurrentWeekType, nil
}
