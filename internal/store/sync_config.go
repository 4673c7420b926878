package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/huddle/internal/model"
)

// SyncConfigs returns all calendar connections with tokens unsealed.
func (s *LocalStore) SyncConfigs(ctx context.Context) ([]model.CalendarSyncConfig, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT provider, name, access_token, refresh_token, token_expiry, calendar_id, last_sync
		 FROM calendar_sync_configs ORDER BY provider, name`)
	if err != nil {
		return nil, fmt.Errorf("query sync configs: %w", err)
	}
	defer rows.Close()

	var configs []model.CalendarSyncConfig
	for rows.Next() {
		var c model.CalendarSyncConfig
		var provider string
		var expiry, lastSync sql.NullString
		if err := rows.Scan(&provider, &c.Name, &c.AccessToken, &c.RefreshToken, &expiry, &c.CalendarID, &lastSync); err != nil {
			return nil, fmt.Errorf("scan sync config: %w", err)
		}
		c.Provider = model.Provider(provider)
		c.TokenExpiry = parseTime(expiry)
		c.LastSync = parseTime(lastSync)

		if c.AccessToken, err = s.sealer.OpenString(c.AccessToken); err != nil {
			return nil, fmt.Errorf("open access token for %s/%s: %w", c.Provider, c.Name, err)
		}
		if c.RefreshToken, err = s.sealer.OpenString(c.RefreshToken); err != nil {
			return nil, fmt.Errorf("open refresh token for %s/%s: %w", c.Provider, c.Name, err)
		}
		configs = append(configs, c)
	}
	return configs, rows.Err()
}

// PutSyncConfig inserts or replaces the connection identified by provider and name.
func (s *LocalStore) PutSyncConfig(ctx context.Context, c model.CalendarSyncConfig) error {
	if err := s.check(); err != nil {
		return err
	}
	access, err := s.sealer.SealString(c.AccessToken)
	if err != nil {
		return fmt.Errorf("seal access token: %w", err)
	}
	refresh, err := s.sealer.SealString(c.RefreshToken)
	if err != nil {
		return fmt.Errorf("seal refresh token: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO calendar_sync_configs (provider, name, access_token, refresh_token, token_expiry, calendar_id, last_sync)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(provider, name) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			token_expiry = excluded.token_expiry,
			calendar_id = excluded.calendar_id,
			last_sync = excluded.last_sync`,
		string(c.Provider), c.Name, access, refresh, formatTime(c.TokenExpiry), c.CalendarID, formatTime(c.LastSync),
	)
	if err != nil {
		return fmt.Errorf("upsert sync config %s/%s: %w", c.Provider, c.Name, err)
	}
	return nil
}

func (s *LocalStore) DeleteSyncConfig(ctx context.Context, provider model.Provider, name string) error {
	if err := s.check(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM calendar_sync_configs WHERE provider = ? AND name = ?`, string(provider), name)
	if err != nil {
		return fmt.Errorf("delete sync config %s/%s: %w", provider, name, err)
	}
	return nil
}

func formatTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

func parseTime(v sql.NullString) *time.Time {
	if !v.Valid || v.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, v.String)
	if err != nil {
		return nil
	}
	return &t
}
