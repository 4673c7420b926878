// Package remote is the cloud record store: Postgres rows scoped to the
// user carried on the request context.
package remote

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/dukerupert/huddle/internal/auth"
	"github.com/dukerupert/huddle/internal/database"
	"github.com/dukerupert/huddle/internal/model"
	"github.com/dukerupert/huddle/internal/secret"
)

// Store implements the record store contract against Postgres.
type Store struct {
	db      *sqlx.DB
	sealer  *secret.Sealer
	sb      squirrel.StatementBuilderType
	migrate func(context.Context, *sql.DB) error
	ready   atomic.Bool
}

func New(db *sqlx.DB, sealer *secret.Sealer) *Store {
	return &Store{
		db:      db,
		sealer:  sealer,
		sb:      squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		migrate: database.MigrateRemote,
	}
}

func (s *Store) Name() string { return "cloud" }

// Init verifies connectivity and applies the schema.
func (s *Store) Init(ctx context.Context) error {
	if s.ready.Load() {
		return nil
	}
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping remote db: %w", err)
	}
	if err := s.migrate(ctx, s.db.DB); err != nil {
		return err
	}
	s.ready.Store(true)
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// scope returns the user every statement must be filtered by.
func (s *Store) scope(ctx context.Context) (string, error) {
	if !s.ready.Load() {
		return "", model.ErrNotInitialized
	}
	uid := auth.UserID(ctx)
	if uid == "" {
		return "", model.ErrNotAuthenticated
	}
	return uid, nil
}
