package store

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dukerupert/huddle/internal/database"
	"github.com/dukerupert/huddle/internal/model"
	"github.com/dukerupert/huddle/internal/secret"
)

func TestSyncConfigUpsertByProviderAndName(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	expiry := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cfg := model.CalendarSyncConfig{
		Provider:    model.ProviderGoogle,
		Name:        "work",
		AccessToken: "access-1",
		TokenExpiry: &expiry,
		CalendarID:  "primary",
	}
	if err := s.PutSyncConfig(ctx, cfg); err != nil {
		t.Fatalf("put: %v", err)
	}
	cfg.AccessToken = "access-2"
	if err := s.PutSyncConfig(ctx, cfg); err != nil {
		t.Fatalf("put again: %v", err)
	}

	personal := model.CalendarSyncConfig{Provider: model.ProviderGoogle, Name: "personal", CalendarID: "me"}
	if err := s.PutSyncConfig(ctx, personal); err != nil {
		t.Fatalf("put personal: %v", err)
	}

	all, err := s.SyncConfigs(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d configs, want 2", len(all))
	}
	var work model.CalendarSyncConfig
	for _, c := range all {
		if c.Name == "work" {
			work = c
		}
	}
	if work.AccessToken != "access-2" {
		t.Errorf("access token = %q, want access-2", work.AccessToken)
	}
	if work.TokenExpiry == nil || !work.TokenExpiry.Equal(expiry) {
		t.Errorf("expiry = %v, want %v", work.TokenExpiry, expiry)
	}
	if work.LastSync != nil {
		t.Errorf("last sync = %v, want nil", work.LastSync)
	}

	if err := s.DeleteSyncConfig(ctx, model.ProviderGoogle, "work"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	all, _ = s.SyncConfigs(ctx)
	if len(all) != 1 || all[0].Name != "personal" {
		t.Errorf("configs after delete = %+v", all)
	}
}

func TestSyncConfigTokensSealedAtRest(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	sealer, err := secret.NewSealer("test passphrase")
	if err != nil {
		t.Fatalf("sealer: %v", err)
	}
	s := NewLocalStore(db, sealer)
	ctx := context.Background()
	if err := s.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	cfg := model.CalendarSyncConfig{Provider: model.ProviderOutlook, Name: "work", AccessToken: "secret-access", RefreshToken: "secret-refresh"}
	if err := s.PutSyncConfig(ctx, cfg); err != nil {
		t.Fatalf("put: %v", err)
	}

	var raw string
	if err := db.QueryRow(`SELECT access_token FROM calendar_sync_configs WHERE name = 'work'`).Scan(&raw); err != nil {
		t.Fatalf("raw read: %v", err)
	}
	if strings.Contains(raw, "secret-access") {
		t.Errorf("access token stored in plaintext: %q", raw)
	}

	all, err := s.SyncConfigs(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if all[0].AccessToken != "secret-access" || all[0].RefreshToken != "secret-refresh" {
		t.Errorf("tokens = %q / %q", all[0].AccessToken, all[0].RefreshToken)
	}
}
