package schedule

import (
	"errors"
	"fmt"

	"github.com/dukerupert/huddle/internal/model"
)

// ErrNotOnDay is returned when a move names a source day the meeting does not recur on.
var ErrNotOnDay = errors.New("meeting does not recur on source day")

// MoveResult describes the records a move produces. Split is non-nil only
// when a day was detached from a multi-day meeting into a new record.
type MoveResult struct {
	Updated model.Meeting
	Split   *model.Meeting
	Changed bool
}

// MoveToDay moves meeting m's occurrence on from to to.
//
// A single-day meeting has its day replaced in place. A multi-day meeting is
// split: the original loses from and a new draft record (ID 0) carrying only
// to is returned in Split. If the multi-day meeting already recurs on to, the
// occurrence is merged and no new record is produced.
func MoveToDay(m model.Meeting, from, to model.Weekday) (MoveResult, error) {
	if !to.Valid() {
		return MoveResult{}, fmt.Errorf("move to %q: %w", to, &model.ValidationError{FieldErrors: map[string]string{"to": "unknown weekday"}})
	}
	if !m.HasDay(from) {
		return MoveResult{}, fmt.Errorf("move meeting %d from %s: %w", m.ID, from, ErrNotOnDay)
	}

	updated := m.Clone()
	if from == to {
		return MoveResult{Updated: updated}, nil
	}

	if len(m.Days) == 1 {
		updated.Days = []model.Weekday{to}
		return MoveResult{Updated: updated, Changed: true}, nil
	}

	updated.Days = withoutDay(m.Days, from)
	if m.HasDay(to) {
		return MoveResult{Updated: updated, Changed: true}, nil
	}

	split := m.Clone()
	split.ID = 0
	split.Days = []model.Weekday{to}
	return MoveResult{Updated: updated, Split: &split, Changed: true}, nil
}

// SplitByDay breaks a multi-day meeting into one record per day sharing
// seriesID. The first record keeps the original ID; the rest are drafts.
func SplitByDay(m model.Meeting, seriesID string) []model.Meeting {
	if len(m.Days) < 2 {
		return []model.Meeting{m.Clone()}
	}
	out := make([]model.Meeting, 0, len(m.Days))
	for i, day := range m.Days {
		rec := m.Clone()
		rec.Days = []model.Weekday{day}
		rec.SeriesID = seriesID
		if i > 0 {
			rec.ID = 0
		}
		out = append(out, rec)
	}
	return out
}

func withoutDay(days []model.Weekday, drop model.Weekday) []model.Weekday {
	out := make([]model.Weekday, 0, len(days))
	for _, d := range days {
		if d != drop {
			out = append(out, d)
		}
	}
	return out
}
