package remote

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"github.com/dukerupert/huddle/internal/model"
)

type settingRow struct {
	Key   string `db:"key"`
	Value string `db:"value"`
}

func (s *Store) Settings(ctx context.Context) (map[string]string, error) {
	uid, err := s.scope(ctx)
	if err != nil {
		return nil, err
	}
	query, args, err := s.sb.Select("key", "value").
		From("settings").
		Where(squirrel.Eq{"user_id": uid}).
		Where(squirrel.NotEq{"key": model.KeyHasInitialized}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build settings query: %w", err)
	}

	var rows []settingRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("get all settings: %w", err)
	}
	settings := make(map[string]string, len(rows))
	for _, r := range rows {
		settings[r.Key] = r.Value
	}
	return settings, nil
}

// SetSetting upserts on (user_id, key).
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	uid, err := s.scope(ctx)
	if err != nil {
		return err
	}
	query, args, err := s.sb.Insert("settings").
		Columns("user_id", "key", "value").
		Values(uid, key, value).
		Suffix("ON CONFLICT (user_id, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()").
		ToSql()
	if err != nil {
		return fmt.Errorf("build setting upsert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}
