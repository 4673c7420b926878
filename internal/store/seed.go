package store

import (
	"context"
	"fmt"

	"github.com/dukerupert/huddle/internal/model"
)

// DefaultCategories are created on first-ever use.
var DefaultCategories = []model.Category{
	{ID: "engineering", Name: "Engineering", Color: 0x3B82F6},
	{ID: "product", Name: "Product", Color: 0x10B981},
	{ID: "design", Name: "Design", Color: 0xF59E0B},
	{ID: "leadership", Name: "Leadership", Color: 0x8B5CF6},
	{ID: "operations", Name: "Operations", Color: 0xEF4444},
	{ID: model.SyncedCategoryID, Name: "Synced Calendar", Color: 0x6B7280},
}

// DefaultMeetings are created on first-ever use.
var DefaultMeetings = []model.Meeting{
	{
		ID: 1, Name: "Daily Standup", CategoryID: "engineering",
		Days:      []model.Weekday{model.Monday, model.Tuesday, model.Wednesday, model.Thursday, model.Friday},
		StartTime: "9:30 AM", EndTime: "9:45 AM", WeekType: model.WeekBoth,
		RequiresAttendance: "Required",
	},
	{
		ID: 2, Name: "Sprint Planning", CategoryID: "product",
		Days:      []model.Weekday{model.Monday},
		StartTime: "10:00 AM", EndTime: "11:00 AM", WeekType: model.WeekA,
		RequiresAttendance: "Required",
	},
	{
		ID: 3, Name: "Design Review", CategoryID: "design",
		Days:      []model.Weekday{model.Wednesday},
		StartTime: "2:00 PM", EndTime: "3:00 PM", WeekType: model.WeekBoth,
		RequiresAttendance: "Optional",
	},
	{
		ID: 4, Name: "Leadership Sync", CategoryID: "leadership",
		Days:      []model.Weekday{model.Tuesday},
		StartTime: "11:00 AM", EndTime: "12:00 PM", WeekType: model.WeekB,
		RequiresAttendance: "Required",
	},
	{
		ID: 5, Name: "All Hands", CategoryID: "operations",
		Days:      []model.Weekday{model.Friday},
		StartTime: "4:00 PM", EndTime: "5:00 PM", WeekType: model.WeekMonthly,
		RequiresAttendance: "Required",
	},
	{
		ID: 6, Name: "Quarterly Planning", CategoryID: "leadership",
		Days:      []model.Weekday{model.Thursday},
		StartTime: "1:00 PM", EndTime: "3:00 PM", WeekType: model.WeekQuarterly,
		RequiresAttendance: "Required",
	},
}

// seed writes the defaults exactly once per database. The hasInitialized flag,
// not emptiness, decides: a user who deletes everything stays empty.
func (s *LocalStore) seed(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	flag, _, err := getSetting(ctx, tx, model.KeyHasInitialized)
	if err != nil {
		return err
	}
	if flag == "true" {
		return nil
	}

	var meetings, categories int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM meetings`).Scan(&meetings); err != nil {
		return fmt.Errorf("count meetings: %w", err)
	}
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories`).Scan(&categories); err != nil {
		return fmt.Errorf("count categories: %w", err)
	}

	if meetings == 0 && categories == 0 {
		for _, c := range DefaultCategories {
			if _, err := tx.ExecContext(ctx, `INSERT INTO categories (id, name, color) VALUES (?, ?, ?)`, c.ID, c.Name, c.Color); err != nil {
				return fmt.Errorf("insert default category %q: %w", c.ID, err)
			}
		}
		for _, m := range DefaultMeetings {
			if err := putMeetingTx(ctx, tx, m); err != nil {
				return err
			}
		}
	}

	if err := setSetting(ctx, tx, model.KeyHasInitialized, "true"); err != nil {
		return err
	}
	return tx.Commit()
}
