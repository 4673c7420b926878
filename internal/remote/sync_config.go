package remote

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/dukerupert/huddle/internal/model"
)

type syncConfigRow struct {
	Provider     string       `db:"provider"`
	Name         string       `db:"name"`
	AccessToken  string       `db:"access_token"`
	RefreshToken string       `db:"refresh_token"`
	TokenExpiry  sql.NullTime `db:"token_expiry"`
	CalendarID   string       `db:"calendar_id"`
	LastSync     sql.NullTime `db:"last_sync"`
}

func (s *Store) SyncConfigs(ctx context.Context) ([]model.CalendarSyncConfig, error) {
	uid, err := s.scope(ctx)
	if err != nil {
		return nil, err
	}
	query, args, err := s.sb.Select("provider", "name", "access_token", "refresh_token", "token_expiry", "calendar_id", "last_sync").
		From("calendar_sync_configs").
		Where(squirrel.Eq{"user_id": uid}).
		OrderBy("provider", "name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sync configs query: %w", err)
	}

	var rows []syncConfigRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query sync configs: %w", err)
	}
	configs := make([]model.CalendarSyncConfig, 0, len(rows))
	for _, r := range rows {
		c := model.CalendarSyncConfig{
			Provider:    model.Provider(r.Provider),
			Name:        r.Name,
			CalendarID:  r.CalendarID,
			TokenExpiry: nullTime(r.TokenExpiry),
			LastSync:    nullTime(r.LastSync),
		}
		if c.AccessToken, err = s.sealer.OpenString(r.AccessToken); err != nil {
			return nil, fmt.Errorf("open access token for %s/%s: %w", c.Provider, c.Name, err)
		}
		if c.RefreshToken, err = s.sealer.OpenString(r.RefreshToken); err != nil {
			return nil, fmt.Errorf("open refresh token for %s/%s: %w", c.Provider, c.Name, err)
		}
		configs = append(configs, c)
	}
	return configs, nil
}

// PutSyncConfig upserts on (user_id, provider, name), so repeating it is harmless.
func (s *Store) PutSyncConfig(ctx context.Context, c model.CalendarSyncConfig) error {
	uid, err := s.scope(ctx)
	if err != nil {
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

	query, args, err := s.sb.Insert("calendar_sync_configs").
		Columns("user_id", "provider", "name", "access_token", "refresh_token", "token_expiry", "calendar_id", "last_sync").
		Values(uid, string(c.Provider), c.Name, access, refresh, timeValue(c.TokenExpiry), c.CalendarID, timeValue(c.LastSync)).
		Suffix(`ON CONFLICT (user_id, provider, name) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			token_expiry = EXCLUDED.token_expiry,
			calendar_id = EXCLUDED.calendar_id,
			last_sync = EXCLUDED.last_sync`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build sync config upsert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert sync config %s/%s: %w", c.Provider, c.Name, err)
	}
	return nil
}

func (s *Store) DeleteSyncConfig(ctx context.Context, provider model.Provider, name string) error {
	uid, err := s.scope(ctx)
	if err != nil {
		return err
	}
	query, args, err := s.sb.Delete("calendar_sync_configs").
		Where(squirrel.Eq{"user_id": uid, "provider": string(provider), "name": name}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build sync config delete: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete sync config %s/%s: %w", provider, name, err)
	}
	return nil
}

func nullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

func timeValue(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
