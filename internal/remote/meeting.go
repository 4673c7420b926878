package remote

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/dukerupert/huddle/internal/model"
)

var meetingColumns = []string{
	"id", "name", "category_id", "days", "start_time", "end_time", "week_type",
	"requires_attendance", "notes", "assigned_to", "series_id", "sync_source", "external_id",
	"imported_attendees", "meeting_link", "meeting_link_type", "public_visibility", "permalink",
}

type meetingRow struct {
	ID                 int64          `db:"id"`
	Name               string         `db:"name"`
	CategoryID         string         `db:"category_id"`
	Days               pq.StringArray `db:"days"`
	StartTime          string         `db:"start_time"`
	EndTime            string         `db:"end_time"`
	WeekType           string         `db:"week_type"`
	RequiresAttendance string         `db:"requires_attendance"`
	Notes              string         `db:"notes"`
	AssignedTo         string         `db:"assigned_to"`
	SeriesID           string         `db:"series_id"`
	SyncSource         string         `db:"sync_source"`
	ExternalID         string         `db:"external_id"`
	ImportedAttendees  pq.StringArray `db:"imported_attendees"`
	MeetingLink        string         `db:"meeting_link"`
	MeetingLinkType    string         `db:"meeting_link_type"`
	PublicVisibility   bool           `db:"public_visibility"`
	Permalink          string         `db:"permalink"`
}

func (r meetingRow) toModel() model.Meeting {
	m := model.Meeting{
		ID:                 r.ID,
		Name:               r.Name,
		CategoryID:         r.CategoryID,
		Days:               make([]model.Weekday, 0, len(r.Days)),
		StartTime:          r.StartTime,
		EndTime:            r.EndTime,
		WeekType:           model.WeekType(r.WeekType),
		RequiresAttendance: r.RequiresAttendance,
		Notes:              r.Notes,
		AssignedTo:         r.AssignedTo,
		SeriesID:           r.SeriesID,
		SyncSource:         model.Provider(r.SyncSource),
		ExternalID:         r.ExternalID,
		MeetingLink:        r.MeetingLink,
		MeetingLinkType:    r.MeetingLinkType,
		PublicVisibility:   r.PublicVisibility,
		Permalink:          r.Permalink,
	}
	for _, d := range r.Days {
		m.Days = append(m.Days, model.Weekday(d))
	}
	if len(r.ImportedAttendees) > 0 {
		m.ImportedAttendees = []string(r.ImportedAttendees)
	}
	return m
}

// meetingValues maps every column except id to its value for m.
func meetingValues(m model.Meeting) map[string]any {
	days := make(pq.StringArray, 0, len(m.Days))
	for _, d := range m.Days {
		days = append(days, string(d))
	}
	attendees := pq.StringArray(m.ImportedAttendees)
	if attendees == nil {
		attendees = pq.StringArray{}
	}
	return map[string]any{
		"name":                m.Name,
		"category_id":         m.CategoryID,
		"days":                days,
		"start_time":          m.StartTime,
		"end_time":            m.EndTime,
		"week_type":           string(m.WeekType),
		"requires_attendance": m.RequiresAttendance,
		"notes":               m.Notes,
		"assigned_to":         m.AssignedTo,
		"series_id":           m.SeriesID,
		"sync_source":         string(m.SyncSource),
		"external_id":         m.ExternalID,
		"imported_attendees":  attendees,
		"meeting_link":        m.MeetingLink,
		"meeting_link_type":   m.MeetingLinkType,
		"public_visibility":   m.PublicVisibility,
		"permalink":           m.Permalink,
	}
}

// Meetings returns the user's meetings ordered by ID.
func (s *Store) Meetings(ctx context.Context) ([]model.Meeting, error) {
	uid, err := s.scope(ctx)
	if err != nil {
		return nil, err
	}
	query, args, err := s.sb.Select(meetingColumns...).
		From("meetings").
		Where(squirrel.Eq{"user_id": uid}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build meetings query: %w", err)
	}

	var rows []meetingRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query meetings: %w", err)
	}
	meetings := make([]model.Meeting, 0, len(rows))
	for _, r := range rows {
		meetings = append(meetings, r.toModel())
	}
	return meetings, nil
}

// Meeting returns the user's meeting with the given ID, or nil if it does not exist.
func (s *Store) Meeting(ctx context.Context, id int64) (*model.Meeting, error) {
	uid, err := s.scope(ctx)
	if err != nil {
		return nil, err
	}
	query, args, err := s.sb.Select(meetingColumns...).
		From("meetings").
		Where(squirrel.Eq{"id": id, "user_id": uid}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build meeting query: %w", err)
	}

	var row meetingRow
	err = s.db.GetContext(ctx, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query meeting %d: %w", id, err)
	}
	m := row.toModel()
	return &m, nil
}

// PutMeeting inserts a draft with a server-assigned ID, or fully replaces
// the user's existing meeting.
func (s *Store) PutMeeting(ctx context.Context, m model.Meeting) (model.Meeting, error) {
	uid, err := s.scope(ctx)
	if err != nil {
		return model.Meeting{}, err
	}
	values := meetingValues(m)

	if !m.Persisted() {
		values["user_id"] = uid
		query, args, err := s.sb.Insert("meetings").SetMap(values).Suffix("RETURNING id").ToSql()
		if err != nil {
			return model.Meeting{}, fmt.Errorf("build meeting insert: %w", err)
		}
		if err := s.db.QueryRowxContext(ctx, query, args...).Scan(&m.ID); err != nil {
			return model.Meeting{}, fmt.Errorf("insert meeting: %w", err)
		}
		return m, nil
	}

	query, args, err := s.sb.Update("meetings").
		SetMap(values).
		Where(squirrel.Eq{"id": m.ID, "user_id": uid}).
		ToSql()
	if err != nil {
		return model.Meeting{}, fmt.Errorf("build meeting update: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return model.Meeting{}, fmt.Errorf("update meeting %d: %w", m.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return model.Meeting{}, fmt.Errorf("update meeting %d: %w", m.ID, model.ErrNotFound)
	}
	return m, nil
}

func (s *Store) DeleteMeeting(ctx context.Context, id int64) error {
	uid, err := s.scope(ctx)
	if err != nil {
		return err
	}
	query, args, err := s.sb.Delete("meetings").Where(squirrel.Eq{"id": id, "user_id": uid}).ToSql()
	if err != nil {
		return fmt.Errorf("build meeting delete: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete meeting %d: %w", id, err)
	}
	return nil
}
