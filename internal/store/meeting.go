package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dukerupert/huddle/internal/model"
	"github.com/dukerupert/huddle/internal/schedule"
)

const meetingColumns = `id, name, category_id, days, start_time, end_time, week_type,
	requires_attendance, notes, assigned_to, series_id, sync_source, external_id,
	imported_attendees, meeting_link, meeting_link_type, public_visibility, permalink`

func scanMeeting(row scanner) (model.Meeting, error) {
	var m model.Meeting
	var days, attendees string
	var weekType, syncSource string
	var public int
	err := row.Scan(&m.ID, &m.Name, &m.CategoryID, &days, &m.StartTime, &m.EndTime, &weekType,
		&m.RequiresAttendance, &m.Notes, &m.AssignedTo, &m.SeriesID, &syncSource, &m.ExternalID,
		&attendees, &m.MeetingLink, &m.MeetingLinkType, &public, &m.Permalink)
	if err != nil {
		return m, err
	}
	m.WeekType = model.WeekType(weekType)
	m.SyncSource = model.Provider(syncSource)
	m.PublicVisibility = public != 0
	if err := json.Unmarshal([]byte(days), &m.Days); err != nil {
		return m, fmt.Errorf("decode days for meeting %d: %w", m.ID, err)
	}
	if attendees != "" && attendees != "[]" {
		if err := json.Unmarshal([]byte(attendees), &m.ImportedAttendees); err != nil {
			return m, fmt.Errorf("decode attendees for meeting %d: %w", m.ID, err)
		}
	}
	return m, nil
}

// Meetings returns every stored meeting ordered by ID.
func (s *LocalStore) Meetings(ctx context.Context) ([]model.Meeting, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+meetingColumns+` FROM meetings ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query meetings: %w", err)
	}
	defer rows.Close()

	var meetings []model.Meeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, fmt.Errorf("scan meeting: %w", err)
		}
		meetings = append(meetings, m)
	}
	return meetings, rows.Err()
}

// Meeting returns the meeting with the given ID, or nil if it does not exist.
func (s *LocalStore) Meeting(ctx context.Context, id int64) (*model.Meeting, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	m, err := scanMeeting(s.db.QueryRowContext(ctx, `SELECT `+meetingColumns+` FROM meetings WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query meeting %d: %w", id, err)
	}
	return &m, nil
}

// PutMeeting replaces the full record. A meeting with a non-positive ID is
// inserted with max(id)+1; a positive ID must already exist.
func (s *LocalStore) PutMeeting(ctx context.Context, m model.Meeting) (model.Meeting, error) {
	if err := s.check(); err != nil {
		return model.Meeting{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Meeting{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if !m.Persisted() {
		if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) + 1 FROM meetings`).Scan(&m.ID); err != nil {
			return model.Meeting{}, fmt.Errorf("next meeting id: %w", err)
		}
	} else {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM meetings WHERE id = ?)`, m.ID).Scan(&exists); err != nil {
			return model.Meeting{}, fmt.Errorf("check meeting %d: %w", m.ID, err)
		}
		if !exists {
			return model.Meeting{}, fmt.Errorf("update meeting %d: %w", m.ID, model.ErrNotFound)
		}
	}

	if err := putMeetingTx(ctx, tx, m); err != nil {
		return model.Meeting{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Meeting{}, fmt.Errorf("commit: %w", err)
	}
	return m, nil
}

func putMeetingTx(ctx context.Context, tx *sql.Tx, m model.Meeting) error {
	days, err := json.Marshal(nonNilDays(m.Days))
	if err != nil {
		return fmt.Errorf("encode days: %w", err)
	}
	attendees, err := json.Marshal(nonNilStrings(m.ImportedAttendees))
	if err != nil {
		return fmt.Errorf("encode attendees: %w", err)
	}
	var public int
	if m.PublicVisibility {
		public = 1
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO meetings (`+meetingColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			category_id = excluded.category_id,
			days = excluded.days,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			week_type = excluded.week_type,
			requires_attendance = excluded.requires_attendance,
			notes = excluded.notes,
			assigned_to = excluded.assigned_to,
			series_id = excluded.series_id,
			sync_source = excluded.sync_source,
			external_id = excluded.external_id,
			imported_attendees = excluded.imported_attendees,
			meeting_link = excluded.meeting_link,
			meeting_link_type = excluded.meeting_link_type,
			public_visibility = excluded.public_visibility,
			permalink = excluded.permalink`,
		m.ID, m.Name, m.CategoryID, string(days), m.StartTime, m.EndTime, string(m.WeekType),
		m.RequiresAttendance, m.Notes, m.AssignedTo, m.SeriesID, string(m.SyncSource), m.ExternalID,
		string(attendees), m.MeetingLink, m.MeetingLinkType, public, m.Permalink,
	)
	if err != nil {
		return fmt.Errorf("upsert meeting %d: %w", m.ID, err)
	}
	return nil
}

// DeleteMeeting removes the meeting with the given ID. Deleting a missing
// meeting is not an error.
func (s *LocalStore) DeleteMeeting(ctx context.Context, id int64) error {
	if err := s.check(); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM meetings WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete meeting %d: %w", id, err)
	}
	return nil
}

// MeetingsForDay returns the meetings shown on day under the stored week-type filter.
func (s *LocalStore) MeetingsForDay(ctx context.Context, day model.Weekday) ([]model.Meeting, error) {
	meetings, filter, err := s.meetingsWithFilter(ctx)
	if err != nil {
		return nil, err
	}
	return schedule.FilterDay(meetings, day, filter), nil
}

// ConflictsForDay reports overlapping meeting pairs on day under the stored week-type filter.
func (s *LocalStore) ConflictsForDay(ctx context.Context, day model.Weekday) ([]model.Conflict, error) {
	meetings, filter, err := s.meetingsWithFilter(ctx)
	if err != nil {
		return nil, err
	}
	return schedule.ConflictsForDay(meetings, day, filter), nil
}

func (s *LocalStore) meetingsWithFilter(ctx context.Context) ([]model.Meeting, model.WeekType, error) {
	meetings, err := s.Meetings(ctx)
	if err != nil {
		return nil, "", err
	}
	values, err := s.Settings(ctx)
	if err != nil {
		return nil, "", err
	}
	return meetings, model.SettingsFromMap(values).CurrentWeekType, nil
}

func nonNilDays(days []model.Weekday) []model.Weekday {
	if days == nil {
		return []model.Weekday{}
	}
	return days
}

func nonNilStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
