package storage

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dukerupert/huddle/internal/auth"
	"github.com/dukerupert/huddle/internal/model"
)

// memBackend is an in-memory Backend that counts every call.
type memBackend struct {
	name           string
	requireSession bool
	initDelay      atomic.Int64
	initErr        error
	failWith       error

	calls     atomic.Int64
	initCalls atomic.Int64

	mu         sync.Mutex
	meetings   map[int64]model.Meeting
	categories map[string]model.Category
	settings   map[string]string
	configs    map[string]model.CalendarSyncConfig
	nextID     int64
	lastUser   string
}

func newMemBackend(name string) *memBackend {
	return &memBackend{
		name:       name,
		meetings:   map[int64]model.Meeting{},
		categories: map[string]model.Category{},
		settings:   map[string]string{},
		configs:    map[string]model.CalendarSyncConfig{},
		nextID:     100,
	}
}

var errNoSession = errors.New("no session on context")

func (b *memBackend) enter(ctx context.Context) error {
	b.calls.Add(1)
	if b.requireSession {
		uid := auth.UserID(ctx)
		if uid == "" {
			return errNoSession
		}
		b.mu.Lock()
		b.lastUser = uid
		b.mu.Unlock()
	}
	return b.failWith
}

func (b *memBackend) Name() string { return b.name }

func (b *memBackend) Init(ctx context.Context) error {
	b.initCalls.Add(1)
	if d := time.Duration(b.initDelay.Load()); d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return b.initErr
}

func (b *memBackend) Meetings(ctx context.Context) ([]model.Meeting, error) {
	if err := b.enter(ctx); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]model.Meeting, 0, len(b.meetings))
	for _, m := range b.meetings {
		out = append(out, m.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (b *memBackend) Meeting(ctx context.Context, id int64) (*model.Meeting, error) {
	if err := b.enter(ctx); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.meetings[id]
	if !ok {
		return nil, nil
	}
	m = m.Clone()
	return &m, nil
}

func (b *memBackend) PutMeeting(ctx context.Context, m model.Meeting) (model.Meeting, error) {
	if err := b.enter(ctx); err != nil {
		return model.Meeting{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !m.Persisted() {
		b.nextID++
		m.ID = b.nextID
	}
	b.meetings[m.ID] = m.Clone()
	return m, nil
}

func (b *memBackend) DeleteMeeting(ctx context.Context, id int64) error {
	if err := b.enter(ctx); err != nil {
		return err
	}
	b.mu.Lock()
	delete(b.meetings, id)
	b.mu.Unlock()
	return nil
}

func (b *memBackend) Categories(ctx context.Context) ([]model.Category, error) {
	if err := b.enter(ctx); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]model.Category, 0, len(b.categories))
	for _, c := range b.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (b *memBackend) Category(ctx context.Context, id string) (*model.Category, error) {
	if err := b.enter(ctx); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.categories[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (b *memBackend) PutCategory(ctx context.Context, c model.Category) error {
	if err := b.enter(ctx); err != nil {
		return err
	}
	b.mu.Lock()
	b.categories[c.ID] = c
	b.mu.Unlock()
	return nil
}

func (b *memBackend) DeleteCategory(ctx context.Context, id string) error {
	if err := b.enter(ctx); err != nil {
		return err
	}
	b.mu.Lock()
	delete(b.categories, id)
	b.mu.Unlock()
	return nil
}

func (b *memBackend) Settings(ctx context.Context) (map[string]string, error) {
	if err := b.enter(ctx); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]string, len(b.settings))
	for k, v := range b.settings {
		out[k] = v
	}
	return out, nil
}

func (b *memBackend) SetSetting(ctx context.Context, key, value string) error {
	if err := b.enter(ctx); err != nil {
		return err
	}
	b.mu.Lock()
	b.settings[key] = value
	b.mu.Unlock()
	return nil
}

func (b *memBackend) SyncConfigs(ctx context.Context) ([]model.CalendarSyncConfig, error) {
	if err := b.enter(ctx); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]model.CalendarSyncConfig, 0, len(b.configs))
	for _, c := range b.configs {
		out = append(out, c)
	}
	return out, nil
}

func (b *memBackend) PutSyncConfig(ctx context.Context, c model.CalendarSyncConfig) error {
	if err := b.enter(ctx); err != nil {
		return err
	}
	b.mu.Lock()
	b.configs[string(c.Provider)+"/"+c.Name] = c
	b.mu.Unlock()
	return nil
}

func (b *memBackend) DeleteSyncConfig(ctx context.Context, provider model.Provider, name string) error {
	if err := b.enter(ctx); err != nil {
		return err
	}
	b.mu.Lock()
	delete(b.configs, string(provider)+"/"+name)
	b.mu.Unlock()
	return nil
}

// staticSessions is a SessionSource with a fixed answer and optional delay.
type staticSessions struct {
	session *auth.Session
	err     error
	delay   time.Duration
	probes  atomic.Int64
}

func (s *staticSessions) Session(ctx context.Context) (*auth.Session, error) {
	s.probes.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.session, s.err
}
