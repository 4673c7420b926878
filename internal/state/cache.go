// Package state holds the in-memory application state the UI reads. Every
// intent persists through the store, then re-reads the affected collection.
package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/huddle/internal/model"
	"github.com/dukerupert/huddle/internal/schedule"
	"github.com/dukerupert/huddle/internal/snapshot"
	"github.com/dukerupert/huddle/internal/storage"
)

// Store is the persistence the cache delegates to.
type Store interface {
	Meetings(ctx context.Context) ([]model.Meeting, error)
	PutMeeting(ctx context.Context, m model.Meeting) (model.Meeting, error)
	DeleteMeeting(ctx context.Context, id int64) error
	Categories(ctx context.Context) ([]model.Category, error)
	PutCategory(ctx context.Context, c model.Category) error
	DeleteCategory(ctx context.Context, id string) error
	Settings(ctx context.Context) (map[string]string, error)
	SetSetting(ctx context.Context, key, value string) error
	SyncConfigs(ctx context.Context) ([]model.CalendarSyncConfig, error)
	PutSyncConfig(ctx context.Context, c model.CalendarSyncConfig) error
	DeleteSyncConfig(ctx context.Context, provider model.Provider, name string) error
}

// Notifier receives a notice after every state change.
type Notifier interface {
	Notify(n model.Notice)
}

type NopNotifier struct{}

func (NopNotifier) Notify(model.Notice) {}

// State is a point-in-time copy of the cache.
type State struct {
	Meetings        []model.Meeting  `json:"meetings"`
	Categories      []model.Category `json:"categories"`
	Settings        model.Settings   `json:"settings"`
	CurrentView     string           `json:"currentView"`
	CurrentWeekType model.WeekType   `json:"currentWeekType"`
	// Loaded is false while only snapshot data has been painted.
	Loaded bool `json:"loaded"`
}

func (s State) clone() State {
	out := s
	out.Meetings = make([]model.Meeting, len(s.Meetings))
	for i, m := range s.Meetings {
		out.Meetings[i] = m.Clone()
	}
	out.Categories = append([]model.Category(nil), s.Categories...)
	if s.Settings.OAuthClientIDs != nil {
		ids := make(map[model.Provider]string, len(s.Settings.OAuthClientIDs))
		for k, v := range s.Settings.OAuthClientIDs {
			ids[k] = v
		}
		out.Settings.OAuthClientIDs = ids
	}
	return out
}

type Options struct {
	Snapshot    *snapshot.File
	Notifier    Notifier
	Logger      *slog.Logger
	ReadTimeout time.Duration
}

const DefaultReadTimeout = 5 * time.Second

// Cache is the single in-memory source of truth for the UI.
type Cache struct {
	store       Store
	snap        *snapshot.File
	notifier    Notifier
	logger      *slog.Logger
	readTimeout time.Duration

	mu    sync.RWMutex
	state State

	ctx    context.Context
	cancel context.CancelFunc
	group  errgroup.Group
}

func New(store Store, opts Options) *Cache {
	if opts.Notifier == nil {
		opts.Notifier = NopNotifier{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = DefaultReadTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	defaults := model.DefaultSettings()
	return &Cache{
		store:       store,
		snap:        opts.Snapshot,
		notifier:    opts.Notifier,
		logger:      opts.Logger,
		readTimeout: opts.ReadTimeout,
		state: State{
			Settings:        defaults,
			CurrentView:     defaults.CurrentView,
			CurrentWeekType: defaults.CurrentWeekType,
		},
		ctx:    ctx,
		cancel: cancel,
	}
}

// Init paints the snapshot, if any, then reconciles with the store.
func (c *Cache) Init(ctx context.Context) error {
	if c.snap != nil {
		snap, err := c.snap.Load()
		switch {
		case err != nil:
			c.logger.Warn("ignoring unreadable snapshot", "path", c.snap.Path(), "error", err)
		case snap != nil:
			c.mu.Lock()
			c.state = State{
				Meetings:        snap.Meetings,
				Categories:      snap.Categories,
				Settings:        snap.Settings,
				CurrentView:     snap.CurrentView,
				CurrentWeekType: snap.CurrentWeekType,
			}
			c.mu.Unlock()
			c.notifier.Notify(model.NewNotice("state", "painted", 0))
		}
	}
	return c.Refresh(ctx)
}

// Refresh re-reads every collection. Each read is time-boxed; a read that
// fails or times out keeps the value already held.
func (c *Cache) Refresh(ctx context.Context) error {
	meetings, mErr := storage.Timebox(ctx, c.readTimeout, c.store.Meetings)
	categories, cErr := storage.Timebox(ctx, c.readTimeout, c.store.Categories)
	values, sErr := storage.Timebox(ctx, c.readTimeout, c.store.Settings)
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	if mErr == nil {
		c.state.Meetings = meetings
	} else {
		c.logger.Warn("meetings unavailable, keeping cached copy", "error", mErr)
	}
	if cErr == nil {
		c.state.Categories = categories
	} else {
		c.logger.Warn("categories unavailable, keeping cached copy", "error", cErr)
	}
	if sErr == nil {
		c.applySettingsLocked(model.SettingsFromMap(values))
	} else {
		c.logger.Warn("settings unavailable, keeping cached copy", "error", sErr)
	}
	c.state.Loaded = c.state.Loaded || (mErr == nil && cErr == nil && sErr == nil)
	c.mu.Unlock()

	c.persist()
	c.notifier.Notify(model.NewNotice("state", "refreshed", 0))
	return nil
}

// RefreshAsync schedules a tracked refresh, e.g. after the storage mode changes.
func (c *Cache) RefreshAsync() {
	if c.ctx.Err() != nil {
		return
	}
	c.group.Go(func() error {
		return c.Refresh(c.ctx)
	})
}

// Close cancels pending refreshes and waits for them.
func (c *Cache) Close() error {
	c.cancel()
	if err := c.group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// State returns a copy of the current state.
func (c *Cache) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.clone()
}

func (c *Cache) Meetings() []model.Meeting {
	return c.State().Meetings
}

func (c *Cache) Categories() []model.Category {
	return c.State().Categories
}

func (c *Cache) Settings() model.Settings {
	return c.State().Settings
}

// MeetingsForDay applies the day filter to the cached meetings.
func (c *Cache) MeetingsForDay(day model.Weekday) []model.Meeting {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return schedule.FilterDay(c.state.Meetings, day, c.state.CurrentWeekType)
}

func (c *Cache) ConflictsForDay(day model.Weekday) []model.Conflict {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return schedule.ConflictsForDay(c.state.Meetings, day, c.state.CurrentWeekType)
}

// Conflicts returns the conflicts of every business day.
func (c *Cache) Conflicts() map[model.Weekday][]model.Conflict {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return schedule.ConflictsForWeek(c.state.Meetings, c.state.CurrentWeekType)
}

func (c *Cache) Series() []model.MeetingSeries {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return schedule.GroupSeries(c.state.Meetings)
}

func (c *Cache) meeting(id int64) (model.Meeting, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, m := range c.state.Meetings {
		if m.ID == id {
			return m.Clone(), true
		}
	}
	return model.Meeting{}, false
}

func (c *Cache) applySettingsLocked(s model.Settings) {
	c.state.Settings = s
	c.state.CurrentView = s.CurrentView
	c.state.CurrentWeekType = s.CurrentWeekType
}

func (c *Cache) reloadMeetings(ctx context.Context) error {
	meetings, err := c.store.Meetings(ctx)
	if err != nil {
		return fmt.Errorf("refresh meetings: %w", err)
	}
	c.mu.Lock()
	c.state.Meetings = meetings
	c.mu.Unlock()
	return nil
}

func (c *Cache) reloadCategories(ctx context.Context) error {
	categories, err := c.store.Categories(ctx)
	if err != nil {
		return fmt.Errorf("refresh categories: %w", err)
	}
	c.mu.Lock()
	c.state.Categories = categories
	c.mu.Unlock()
	return nil
}

func (c *Cache) reloadSettings(ctx context.Context) error {
	values, err := c.store.Settings(ctx)
	if err != nil {
		return fmt.Errorf("refresh settings: %w", err)
	}
	c.mu.Lock()
	c.applySettingsLocked(model.SettingsFromMap(values))
	c.mu.Unlock()
	return nil
}

// persist writes the snapshot. Failures only cost the next cold start.
func (c *Cache) persist() {
	if c.snap == nil {
		return
	}
	s := c.State()
	err := c.snap.Save(snapshot.Snapshot{
		Meetings:        s.Meetings,
		Categories:      s.Categories,
		CurrentView:     s.CurrentView,
		CurrentWeekType: s.CurrentWeekType,
		Settings:        s.Settings,
	})
	if err != nil {
		c.logger.Warn("snapshot write failed", "path", c.snap.Path(), "error", err)
	}
}

// changed persists the snapshot and publishes n.
func (c *Cache) changed(n model.Notice) {
	c.persist()
	c.notifier.Notify(n)
}
