// Package storage chooses between the on-device and cloud record stores for
// every operation, based on whether a cloud session is available.
package storage

import (
	"context"

	"github.com/dukerupert/huddle/internal/model"
)

// Backend is the record store contract shared by the local and cloud stores.
type Backend interface {
	Name() string
	Init(ctx context.Context) error

	Meetings(ctx context.Context) ([]model.Meeting, error)
	Meeting(ctx context.Context, id int64) (*model.Meeting, error)
	PutMeeting(ctx context.Context, m model.Meeting) (model.Meeting, error)
	DeleteMeeting(ctx context.Context, id int64) error

	Categories(ctx context.Context) ([]model.Category, error)
	Category(ctx context.Context, id string) (*model.Category, error)
	PutCategory(ctx context.Context, c model.Category) error
	DeleteCategory(ctx context.Context, id string) error

	Settings(ctx context.Context) (map[string]string, error)
	SetSetting(ctx context.Context, key, value string) error

	SyncConfigs(ctx context.Context) ([]model.CalendarSyncConfig, error)
	PutSyncConfig(ctx context.Context, c model.CalendarSyncConfig) error
	DeleteSyncConfig(ctx context.Context, provider model.Provider, name string) error
}

// DayQuerier is implemented by backends that answer day queries themselves.
type DayQuerier interface {
	MeetingsForDay(ctx context.Context, day model.Weekday) ([]model.Meeting, error)
	ConflictsForDay(ctx context.Context, day model.Weekday) ([]model.Conflict, error)
}
