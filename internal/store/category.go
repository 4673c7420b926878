package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/huddle/internal/model"
)

// Categories returns all categories ordered by name.
func (s *LocalStore) Categories(ctx context.Context) ([]model.Category, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, color FROM categories ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var categories []model.Category
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Color); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// Category returns the category with the given ID, or nil if it does not exist.
func (s *LocalStore) Category(ctx context.Context, id string) (*model.Category, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	var c model.Category
	err := s.db.QueryRowContext(ctx, `SELECT id, name, color FROM categories WHERE id = ?`, id).Scan(&c.ID, &c.Name, &c.Color)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query category %q: %w", id, err)
	}
	return &c, nil
}

func (s *LocalStore) PutCategory(ctx context.Context, c model.Category) error {
	if err := s.check(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO categories (id, name, color) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, color = excluded.color`,
		c.ID, c.Name, c.Color&0xFFFFFF,
	)
	if err != nil {
		return fmt.Errorf("upsert category %q: %w", c.ID, err)
	}
	return nil
}

func (s *LocalStore) DeleteCategory(ctx context.Context, id string) error {
	if err := s.check(); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete category %q: %w", id, err)
	}
	return nil
}
