package remote

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"

	"github.com/dukerupert/huddle/internal/model"
)

type categoryRow struct {
	ID    string `db:"id"`
	Name  string `db:"name"`
	Color int    `db:"color"`
}

func (s *Store) Categories(ctx context.Context) ([]model.Category, error) {
	uid, err := s.scope(ctx)
	if err != nil {
		return nil, err
	}
	query, args, err := s.sb.Select("id", "name", "color").
		From("categories").
		Where(squirrel.Eq{"user_id": uid}).
		OrderBy("name", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build categories query: %w", err)
	}

	var rows []categoryRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	categories := make([]model.Category, 0, len(rows))
	for _, r := range rows {
		categories = append(categories, model.Category(r))
	}
	return categories, nil
}

func (s *Store) Category(ctx context.Context, id string) (*model.Category, error) {
	uid, err := s.scope(ctx)
	if err != nil {
		return nil, err
	}
	query, args, err := s.sb.Select("id", "name", "color").
		From("categories").
		Where(squirrel.Eq{"id": id, "user_id": uid}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build category query: %w", err)
	}

	var row categoryRow
	err = s.db.GetContext(ctx, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query category %q: %w", id, err)
	}
	c := model.Category(row)
	return &c, nil
}

// PutCategory upserts on (user_id, id).
func (s *Store) PutCategory(ctx context.Context, c model.Category) error {
	uid, err := s.scope(ctx)
	if err != nil {
		return err
	}
	query, args, err := s.sb.Insert("categories").
		Columns("user_id", "id", "name", "color").
		Values(uid, c.ID, c.Name, c.Color&0xFFFFFF).
		Suffix("ON CONFLICT (user_id, id) DO UPDATE SET name = EXCLUDED.name, color = EXCLUDED.color").
		ToSql()
	if err != nil {
		return fmt.Errorf("build category upsert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert category %q: %w", c.ID, err)
	}
	return nil
}

func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	uid, err := s.scope(ctx)
	if err != nil {
		return err
	}
	query, args, err := s.sb.Delete("categories").Where(squirrel.Eq{"id": id, "user_id": uid}).ToSql()
	if err != nil {
		return fmt.Errorf("build category delete: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete category %q: %w", id, err)
	}
	return nil
}
