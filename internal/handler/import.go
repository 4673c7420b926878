package handler

import (
	"io"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/dukerupert/huddle/internal/importer"
	"github.com/dukerupert/huddle/internal/model"
	"github.com/dukerupert/huddle/internal/state"
)

// ImportHandler accepts calendar exports and merges them into the schedule.
type ImportHandler struct {
	cache  *state.Cache
	logger *slog.Logger
}

func NewImportHandler(cache *state.Cache, logger *slog.Logger) *ImportHandler {
	return &ImportHandler{cache: cache, logger: logger}
}

type importEvent struct {
	Source      model.Provider `json:"source"`
	ExternalID  string         `json:"externalId"`
	Title       string         `json:"title"`
	Start       time.Time      `json:"start"`
	End         time.Time      `json:"end"`
	AllDay      bool           `json:"allDay"`
	Weekdays    []time.Weekday `json:"weekdays,omitempty"`
	WeekType    model.WeekType `json:"weekType,omitempty"`
	CategoryID  string         `json:"categoryId,omitempty"`
	Attendees   []string       `json:"attendees,omitempty"`
	Location    string         `json:"location,omitempty"`
	Description string         `json:"description,omitempty"`
}

func (e importEvent) event() importer.Event {
	return importer.Event{
		Source:      e.Source,
		ExternalID:  e.ExternalID,
		Title:       e.Title,
		Start:       e.Start,
		End:         e.End,
		AllDay:      e.AllDay,
		Weekdays:    e.Weekdays,
		WeekType:    e.WeekType,
		CategoryID:  e.CategoryID,
		Attendees:   e.Attendees,
		Location:    e.Location,
		Description: e.Description,
	}
}

type importResponse struct {
	state.ImportResult
	Skipped []string `json:"skipped"`
}

// Import takes either a text/calendar body or {"events": [...]} JSON.
func (h *ImportHandler) Import(w http.ResponseWriter, r *http.Request) {
	settings := h.cache.Settings()

	var events []importer.Event
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "text/calendar" {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 10*maxBodyBytes))
		if err != nil {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "calendar too large"})
			return
		}
		events, err = importer.ParseICS(body, location(settings.Timezone))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid calendar"})
			return
		}
	} else {
		var req struct {
			Events []importEvent `json:"events"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		for _, e := range req.Events {
			events = append(events, e.event())
		}
	}

	meetings, rejected := importer.NormalizeAll(events, settings.TimeFormat)
	res, err := h.cache.ImportMeetings(r.Context(), meetings)
	if err != nil {
		writeError(w, h.logger, "failed to import meetings", err)
		return
	}

	resp := importResponse{ImportResult: res, Skipped: make([]string, 0, len(rejected))}
	for _, err := range rejected {
		resp.Skipped = append(resp.Skipped, err.Error())
	}
	h.logger.Info("calendar imported", "created", res.Created, "updated", res.Updated, "skipped", len(rejected))
	writeJSON(w, http.StatusOK, resp)
}

func location(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.Local
	}
	return loc
}
