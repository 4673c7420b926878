package state

import (
	"context"
	"fmt"
	"slices"

	"github.com/dukerupert/huddle/internal/model"
)

// ImportResult counts what an import did.
type ImportResult struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
}

var syncedCategory = model.Category{ID: model.SyncedCategoryID, Name: "Synced Calendar", Color: 0x6B7280}

// ImportMeetings upserts normalized candidates. A candidate matching an
// existing meeting by source and external ID refreshes the imported fields
// and keeps the user's edits.
func (c *Cache) ImportMeetings(ctx context.Context, candidates []model.Meeting) (ImportResult, error) {
	var res ImportResult
	if len(candidates) == 0 {
		return res, nil
	}
	for _, cand := range candidates {
		if err := cand.Validate(); err != nil {
			return res, fmt.Errorf("import %q: %w", cand.Name, err)
		}
	}

	if err := c.ensureCategory(ctx, candidates); err != nil {
		return res, err
	}

	existing := make(map[string]model.Meeting)
	for _, m := range c.Meetings() {
		if m.Imported() && m.ExternalID != "" {
			existing[importKey(m)] = m
		}
	}

	for _, cand := range candidates {
		prev, ok := existing[importKey(cand)]
		if !ok || cand.ExternalID == "" {
			cand.ID = 0
			saved, err := c.store.PutMeeting(ctx, cand)
			if err != nil {
				return res, c.afterPartialWrite(ctx, "meeting", res.Created+res.Updated, len(candidates), fmt.Errorf("import %q: %w", cand.Name, err))
			}
			existing[importKey(saved)] = saved
			res.Created++
			continue
		}

		merged := refreshImported(prev, cand)
		if sameImported(merged, prev) {
			res.Unchanged++
			continue
		}
		if _, err := c.store.PutMeeting(ctx, merged); err != nil {
			return res, c.afterPartialWrite(ctx, "meeting", res.Created+res.Updated, len(candidates), fmt.Errorf("import %q: %w", cand.Name, err))
		}
		existing[importKey(merged)] = merged
		res.Updated++
	}

	if err := c.reloadMeetings(ctx); err != nil {
		return res, err
	}
	n := model.NewNotice("meeting", "imported", 0)
	n.Extra = map[string]any{"created": res.Created, "updated": res.Updated}
	c.changed(n.WithMessage("success", fmt.Sprintf("Imported %d new, %d updated", res.Created, res.Updated)))
	return res, nil
}

func importKey(m model.Meeting) string {
	return string(m.SyncSource) + "\x1f" + m.ExternalID
}

// refreshImported copies the source-owned fields of cand onto prev.
func refreshImported(prev, cand model.Meeting) model.Meeting {
	out := prev.Clone()
	out.Name = cand.Name
	out.Days = append([]model.Weekday(nil), cand.Days...)
	out.StartTime = cand.StartTime
	out.EndTime = cand.EndTime
	out.WeekType = cand.WeekType
	out.ImportedAttendees = nil
	if len(cand.ImportedAttendees) > 0 {
		out.ImportedAttendees = append([]string(nil), cand.ImportedAttendees...)
	}
	if out.MeetingLink == "" {
		out.MeetingLink = cand.MeetingLink
		out.MeetingLinkType = cand.MeetingLinkType
	}
	return out
}

func sameImported(a, b model.Meeting) bool {
	return a.Name == b.Name &&
		a.StartTime == b.StartTime &&
		a.EndTime == b.EndTime &&
		a.WeekType == b.WeekType &&
		a.MeetingLink == b.MeetingLink &&
		slices.Equal(a.Days, b.Days) &&
		slices.Equal(a.ImportedAttendees, b.ImportedAttendees)
}

// ensureCategory creates the synced category when a candidate uses it and
// it does not exist yet.
func (c *Cache) ensureCategory(ctx context.Context, candidates []model.Meeting) error {
	needed := false
	for _, m := range candidates {
		if m.CategoryID == model.SyncedCategoryID {
			needed = true
			break
		}
	}
	if !needed {
		return nil
	}
	for _, cat := range c.Categories() {
		if cat.ID == model.SyncedCategoryID {
			return nil
		}
	}
	if err := c.store.PutCategory(ctx, syncedCategory); err != nil {
		return fmt.Errorf("create synced category: %w", err)
	}
	return c.reloadCategories(ctx)
}
