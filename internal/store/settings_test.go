package store

import (
	"context"
	"testing"

	"github.com/dukerupert/huddle/internal/model"
)

func TestSettingsSetAndGet(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if _, ok, err := s.Setting(ctx, model.KeyTimeFormat); err != nil || ok {
		t.Fatalf("fresh store setting = ok:%v err:%v, want missing", ok, err)
	}

	// Insert new
	if err := s.SetSetting(ctx, model.KeyTimeFormat, "24h"); err != nil {
		t.Fatalf("set: %v", err)
	}
	val, ok, err := s.Setting(ctx, model.KeyTimeFormat)
	if err != nil || !ok {
		t.Fatalf("get after set: ok:%v err:%v", ok, err)
	}
	if val != "24h" {
		t.Errorf("timeFormat = %q, want %q", val, "24h")
	}

	// Update existing
	if err := s.SetSetting(ctx, model.KeyTimeFormat, "12h"); err != nil {
		t.Fatalf("set: %v", err)
	}
	val, _, _ = s.Setting(ctx, model.KeyTimeFormat)
	if val != "12h" {
		t.Errorf("timeFormat = %q, want %q", val, "12h")
	}
}

func TestSettingsExcludeInitFlag(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if err := s.SetSetting(ctx, model.KeyCurrentView, model.ViewDay); err != nil {
		t.Fatalf("set: %v", err)
	}

	all, err := s.Settings(ctx)
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	if _, ok := all[model.KeyHasInitialized]; ok {
		t.Error("internal init flag leaked into settings")
	}
	if all[model.KeyCurrentView] != model.ViewDay {
		t.Errorf("currentView = %q, want %q", all[model.KeyCurrentView], model.ViewDay)
	}
}

func TestSettingsStoredIndependently(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	entries := model.Settings{
		CurrentWeekType: model.WeekB,
		CurrentView:     model.ViewWeek,
		TimeFormat:      model.TimeFormat24h,
		OAuthClientIDs:  map[model.Provider]string{model.ProviderOutlook: "abc"},
	}.Entries()
	for k, v := range entries {
		if err := s.SetSetting(ctx, k, v); err != nil {
			t.Fatalf("set %s: %v", k, err)
		}
	}

	var rows int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM settings WHERE key <> ?`, model.KeyHasInitialized).Scan(&rows); err != nil {
		t.Fatalf("count: %v", err)
	}
	if rows != len(model.SettingKeys) {
		t.Errorf("stored %d rows, want %d independent entries", rows, len(model.SettingKeys))
	}

	all, _ := s.Settings(ctx)
	got := model.SettingsFromMap(all)
	if got.OAuthClientIDs[model.ProviderOutlook] != "abc" || got.CurrentWeekType != model.WeekB {
		t.Errorf("settings = %+v", got)
	}
}
