package model

// Weekday is a business weekday name. Meetings only recur Monday through Friday.
type Weekday string

const (
	Monday    Weekday = "Monday"
	Tuesday   Weekday = "Tuesday"
	Wednesday Weekday = "Wednesday"
	Thursday  Weekday = "Thursday"
	Friday    Weekday = "Friday"
)

// Weekdays lists the business weekdays in calendar order.
var Weekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday}

// Valid reports whether d is one of the five business weekdays.
func (d Weekday) Valid() bool {
	for _, w := range Weekdays {
		if d == w {
			return true
		}
	}
	return false
}

// WeekType controls which alternating-week filter includes a meeting.
type WeekType string

const (
	WeekBoth      WeekType = "Both"
	WeekA         WeekType = "WeekA"
	WeekB         WeekType = "WeekB"
	WeekMonthly   WeekType = "Monthly"
	WeekQuarterly WeekType = "Quarterly"
)

func (w WeekType) Valid() bool {
	switch w {
	case WeekBoth, WeekA, WeekB, WeekMonthly, WeekQuarterly:
		return true
	}
	return false
}

// Meeting is a recurring calendar entry. A draft meeting carries a
// non-positive ID until a backend assigns one.
type Meeting struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	CategoryID         string    `json:"categoryId"`
	Days               []Weekday `json:"days"`
	StartTime          string    `json:"startTime"`
	EndTime            string    `json:"endTime"`
	WeekType           WeekType  `json:"weekType"`
	RequiresAttendance string    `json:"requiresAttendance"`
	Notes              string    `json:"notes"`
	AssignedTo         string    `json:"assignedTo"`

	SeriesID          string   `json:"seriesId,omitempty"`
	SyncSource        Provider `json:"syncSource,omitempty"`
	ExternalID        string   `json:"externalId,omitempty"`
	ImportedAttendees []string `json:"importedAttendees,omitempty"`
	MeetingLink       string   `json:"meetingLink,omitempty"`
	MeetingLinkType   string   `json:"meetingLinkType,omitempty"`
	PublicVisibility  bool     `json:"publicVisibility,omitempty"`
	Permalink         string   `json:"permalink,omitempty"`
}

// Persisted reports whether the meeting has a backend-assigned ID.
func (m Meeting) Persisted() bool {
	return m.ID > 0
}

// Imported reports whether the meeting was materialized by a calendar import.
func (m Meeting) Imported() bool {
	return m.SyncSource != ""
}

// HasDay reports whether the meeting recurs on d.
func (m Meeting) HasDay(d Weekday) bool {
	for _, day := range m.Days {
		if day == d {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can mutate slices freely.
func (m Meeting) Clone() Meeting {
	out := m
	out.Days = append([]Weekday(nil), m.Days...)
	if m.ImportedAttendees != nil {
		out.ImportedAttendees = append([]string(nil), m.ImportedAttendees...)
	}
	return out
}

// Validate checks the invariants a meeting must satisfy before it is persisted.
func (m Meeting) Validate() error {
	v := &ValidationError{}
	if m.Name == "" {
		v.add("name", "name is required")
	}
	if m.CategoryID == "" {
		v.add("categoryId", "category is required")
	}
	if len(m.Days) == 0 {
		v.add("days", "at least one weekday is required")
	}
	seen := make(map[Weekday]bool, len(m.Days))
	for _, d := range m.Days {
		if !d.Valid() {
			v.add("days", "unknown weekday "+string(d))
			break
		}
		if seen[d] {
			v.add("days", "duplicate weekday "+string(d))
			break
		}
		seen[d] = true
	}
	if !m.WeekType.Valid() {
		v.add("weekType", "unknown week type "+string(m.WeekType))
	}
	if v.HasErrors() {
		return v
	}
	return nil
}

// MeetingSeries groups meetings that are conceptually one recurring meeting
// spread across several day records.
type MeetingSeries struct {
	Key     string    `json:"key"`
	Name    string    `json:"name"`
	Members []Meeting `json:"members"`
}

// Days returns the union of member weekdays in calendar order.
func (s MeetingSeries) Days() []Weekday {
	seen := make(map[Weekday]bool)
	for _, m := range s.Members {
		for _, d := range m.Days {
			seen[d] = true
		}
	}
	var out []Weekday
	for _, d := range Weekdays {
		if seen[d] {
			out = append(out, d)
		}
	}
	return out
}

// Conflict reports two meetings whose time ranges overlap on a day.
type Conflict struct {
	Day        Weekday  `json:"day"`
	Time       string   `json:"time"`
	MeetingIDs [2]int64 `json:"meetingIds"`
}
