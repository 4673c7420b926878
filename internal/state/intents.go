package state

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/dukerupert/huddle/internal/model"
	"github.com/dukerupert/huddle/internal/schedule"
)

// ErrImportedReadOnly is returned for schedule changes to imported meetings.
var ErrImportedReadOnly = errors.New("imported meetings follow their source calendar")

// SaveMeeting validates and persists m. Edits to an imported meeting keep
// every field except the user-editable ones.
func (c *Cache) SaveMeeting(ctx context.Context, m model.Meeting) (model.Meeting, error) {
	created := !m.Persisted()
	if !created {
		if existing, ok := c.meeting(m.ID); ok {
			m = schedule.MergeImportedEdit(existing, m)
		}
	}
	if err := m.Validate(); err != nil {
		return model.Meeting{}, err
	}

	saved, err := c.store.PutMeeting(ctx, m)
	if err != nil {
		return model.Meeting{}, fmt.Errorf("save meeting: %w", err)
	}
	if err := c.reloadMeetings(ctx); err != nil {
		return saved, err
	}

	action := "updated"
	if created {
		action = "created"
	}
	c.changed(model.NewNotice("meeting", action, saved.ID).WithMessage("success", fmt.Sprintf("Saved %q", saved.Name)))
	return saved, nil
}

func (c *Cache) DeleteMeeting(ctx context.Context, id int64) error {
	if err := c.store.DeleteMeeting(ctx, id); err != nil {
		return fmt.Errorf("delete meeting: %w", err)
	}
	if err := c.reloadMeetings(ctx); err != nil {
		return err
	}
	c.changed(model.NewNotice("meeting", "deleted", id))
	return nil
}

// MoveMeeting moves the occurrence of meeting id on from to to. A multi-day
// meeting keeps its other days and the moved day becomes a new record.
func (c *Cache) MoveMeeting(ctx context.Context, id int64, from, to model.Weekday) (schedule.MoveResult, error) {
	m, ok := c.meeting(id)
	if !ok {
		return schedule.MoveResult{}, fmt.Errorf("move meeting %d: %w", id, model.ErrNotFound)
	}
	if m.Imported() {
		return schedule.MoveResult{}, fmt.Errorf("move meeting %d: %w", id, ErrImportedReadOnly)
	}

	res, err := schedule.MoveToDay(m, from, to)
	if err != nil {
		return schedule.MoveResult{}, err
	}
	if !res.Changed {
		return res, nil
	}
	if err := res.Updated.Validate(); err != nil {
		return schedule.MoveResult{}, fmt.Errorf("move meeting %d: %w", id, err)
	}
	if res.Split != nil {
		if err := res.Split.Validate(); err != nil {
			return schedule.MoveResult{}, fmt.Errorf("move meeting %d: %w", id, err)
		}
	}

	// The new record goes first: a failure in between leaves a duplicate day, never a lost one.
	if res.Split != nil {
		split, err := c.store.PutMeeting(ctx, *res.Split)
		if err != nil {
			return schedule.MoveResult{}, fmt.Errorf("save split meeting: %w", err)
		}
		res.Split = &split
	}
	if res.Updated, err = c.store.PutMeeting(ctx, res.Updated); err != nil {
		return schedule.MoveResult{}, fmt.Errorf("save moved meeting: %w", err)
	}
	if err := c.reloadMeetings(ctx); err != nil {
		return res, err
	}

	n := model.NewNotice("meeting", "moved", id)
	n.Extra = map[string]any{"from": from, "to": to}
	if res.Split != nil {
		n.Extra["splitId"] = res.Split.ID
	}
	c.changed(n)
	return res, nil
}

// SplitMeeting breaks a multi-day meeting into one record per day, linked
// by a series ID.
func (c *Cache) SplitMeeting(ctx context.Context, id int64) ([]model.Meeting, error) {
	m, ok := c.meeting(id)
	if !ok {
		return nil, fmt.Errorf("split meeting %d: %w", id, model.ErrNotFound)
	}
	if len(m.Days) < 2 {
		return []model.Meeting{m}, nil
	}
	seriesID := m.SeriesID
	if seriesID == "" {
		seriesID = uuid.NewString()
	}

	parts := schedule.SplitByDay(m, seriesID)
	saved := make([]model.Meeting, 0, len(parts))
	// Drafts first, then the original loses its extra days.
	for _, p := range parts[1:] {
		s, err := c.store.PutMeeting(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("save split meeting: %w", err)
		}
		saved = append(saved, s)
	}
	first, err := c.store.PutMeeting(ctx, parts[0])
	if err != nil {
		return nil, fmt.Errorf("save split meeting: %w", err)
	}
	saved = append([]model.Meeting{first}, saved...)

	if err := c.reloadMeetings(ctx); err != nil {
		return saved, err
	}
	c.changed(model.NewNotice("meeting", "split", id))
	return saved, nil
}

// UpdateSeries applies u to every member of the series with the given key
// and returns the number of meetings written.
func (c *Cache) UpdateSeries(ctx context.Context, key string, u schedule.SeriesUpdate) (int, error) {
	c.mu.RLock()
	series, ok := schedule.FindSeries(c.state.Meetings, key)
	c.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("update series: %w", model.ErrNotFound)
	}

	updates := make([]model.Meeting, 0, len(series.Members))
	for _, member := range series.Members {
		updated := schedule.MergeImportedEdit(member, schedule.ApplySeriesUpdate(member, u))
		if err := updated.Validate(); err != nil {
			return 0, err
		}
		updates = append(updates, updated)
	}
	for i, updated := range updates {
		if _, err := c.store.PutMeeting(ctx, updated); err != nil {
			err = fmt.Errorf("update series member %d: %w", updated.ID, err)
			return i, c.afterPartialWrite(ctx, "series", i, len(updates), err)
		}
	}
	if err := c.reloadMeetings(ctx); err != nil {
		return len(series.Members), err
	}

	n := model.NewNotice("series", "updated", 0)
	n.Extra = map[string]any{"key": key, "count": len(series.Members)}
	c.changed(n)
	return len(series.Members), nil
}

// afterPartialWrite re-reads meetings once a batch stopped after written of
// total writes, so the cache matches what was persisted. It returns err
// combined with any reload failure.
func (c *Cache) afterPartialWrite(ctx context.Context, entity string, written, total int, err error) error {
	if written == 0 {
		return err
	}
	if rerr := c.reloadMeetings(ctx); rerr != nil {
		return multierr.Append(err, rerr)
	}
	n := model.NewNotice(entity, "partial", 0)
	n.Extra = map[string]any{"written": written, "total": total}
	c.changed(n.WithMessage("error", fmt.Sprintf("Stopped after %d of %d changes", written, total)))
	return err
}

// SaveCategory persists c, assigning an ID to a new category.
func (c *Cache) SaveCategory(ctx context.Context, cat model.Category) (model.Category, error) {
	cat.Name = strings.TrimSpace(cat.Name)
	if cat.Name == "" {
		return model.Category{}, &model.ValidationError{FieldErrors: map[string]string{"name": "name is required"}}
	}
	if cat.ID == "" {
		cat.ID = uuid.NewString()
	}
	cat.Color &= 0xFFFFFF

	if err := c.store.PutCategory(ctx, cat); err != nil {
		return model.Category{}, fmt.Errorf("save category: %w", err)
	}
	if err := c.reloadCategories(ctx); err != nil {
		return cat, err
	}
	c.changed(model.NewNotice("category", "saved", 0))
	return cat, nil
}

func (c *Cache) DeleteCategory(ctx context.Context, id string) error {
	if err := c.store.DeleteCategory(ctx, id); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if err := c.reloadCategories(ctx); err != nil {
		return err
	}
	c.changed(model.NewNotice("category", "deleted", 0))
	return nil
}

// SetWeekType changes the alternating-week filter.
func (c *Cache) SetWeekType(ctx context.Context, wt model.WeekType) error {
	if !wt.Valid() {
		return &model.ValidationError{FieldErrors: map[string]string{"weekType": "unknown week type"}}
	}
	if err := c.store.SetSetting(ctx, model.KeyCurrentWeekType, string(wt)); err != nil {
		return fmt.Errorf("set week type: %w", err)
	}
	if err := c.reloadSettings(ctx); err != nil {
		return err
	}
	c.changed(model.NewNotice("settings", "week_type", 0))
	return nil
}

func (c *Cache) SetView(ctx context.Context, view string) error {
	switch view {
	case model.ViewWeek, model.ViewDay, model.ViewMonthly:
	default:
		return &model.ValidationError{FieldErrors: map[string]string{"view": "unknown view"}}
	}
	if err := c.store.SetSetting(ctx, model.KeyCurrentView, view); err != nil {
		return fmt.Errorf("set view: %w", err)
	}
	if err := c.reloadSettings(ctx); err != nil {
		return err
	}
	c.changed(model.NewNotice("settings", "view", 0))
	return nil
}

// UpdateSettings writes every setting entry of s.
func (c *Cache) UpdateSettings(ctx context.Context, s model.Settings) (model.Settings, error) {
	for key, value := range s.Entries() {
		if err := c.store.SetSetting(ctx, key, value); err != nil {
			return model.Settings{}, fmt.Errorf("update settings: %w", err)
		}
	}
	if err := c.reloadSettings(ctx); err != nil {
		return model.Settings{}, err
	}
	c.changed(model.NewNotice("settings", "updated", 0))
	return c.Settings(), nil
}

// SyncConfigs are read through on demand; tokens are never cached.
func (c *Cache) SyncConfigs(ctx context.Context) ([]model.CalendarSyncConfig, error) {
	configs, err := c.store.SyncConfigs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sync configs: %w", err)
	}
	return configs, nil
}

func (c *Cache) SaveSyncConfig(ctx context.Context, cfg model.CalendarSyncConfig) error {
	fields := map[string]string{}
	if !cfg.Provider.Valid() {
		fields["provider"] = "unknown provider"
	}
	if strings.TrimSpace(cfg.Name) == "" {
		fields["name"] = "name is required"
	}
	if len(fields) > 0 {
		return &model.ValidationError{FieldErrors: fields}
	}
	if err := c.store.PutSyncConfig(ctx, cfg); err != nil {
		return fmt.Errorf("save sync config: %w", err)
	}
	c.notifier.Notify(model.NewNotice("sync_config", "saved", 0))
	return nil
}

func (c *Cache) DeleteSyncConfig(ctx context.Context, provider model.Provider, name string) error {
	if err := c.store.DeleteSyncConfig(ctx, provider, name); err != nil {
		return fmt.Errorf("delete sync config: %w", err)
	}
	c.notifier.Notify(model.NewNotice("sync_config", "deleted", 0))
	return nil
}
