package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"

	"github.com/dukerupert/huddle/internal/model"
	"github.com/dukerupert/huddle/internal/secret"
)

// LocalStore is the on-device record store backed by SQLite.
type LocalStore struct {
	db     *sql.DB
	sealer *secret.Sealer
	ready  atomic.Bool
}

// NewLocalStore wraps an opened and migrated database. Tokens in calendar
// sync configs are sealed at rest when sealer is non-nil.
func NewLocalStore(db *sql.DB, sealer *secret.Sealer) *LocalStore {
	return &LocalStore{db: db, sealer: sealer}
}

func (s *LocalStore) Name() string { return "local" }

// Init seeds default data on first-ever use and marks the store ready.
// Calls made before Init returns fail with model.ErrNotInitialized.
func (s *LocalStore) Init(ctx context.Context) error {
	if s.ready.Load() {
		return nil
	}
	if err := s.seed(ctx); err != nil {
		return fmt.Errorf("seed defaults: %w", err)
	}
	s.ready.Store(true)
	return nil
}

func (s *LocalStore) check() error {
	if !s.ready.Load() {
		return model.ErrNotInitialized
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}
