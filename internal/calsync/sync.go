// Package calsync periodically pulls subscribed calendars into the meeting cache.
package calsync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/multierr"

	"github.com/dukerupert/huddle/internal/importer"
	"github.com/dukerupert/huddle/internal/model"
	"github.com/dukerupert/huddle/internal/state"
)

// maxBody caps a fetched calendar.
const maxBody = 10 << 20

// ErrUnsupportedProvider is returned for connections that need an OAuth exchange.
var ErrUnsupportedProvider = errors.New("provider requires OAuth sign-in")

// ErrFeedTooLarge is returned when a calendar exceeds the size cap. A
// truncated feed is never parsed.
var ErrFeedTooLarge = errors.New("calendar feed too large")

// Target is the part of the state cache a sync writes through.
type Target interface {
	Settings() model.Settings
	SyncConfigs(ctx context.Context) ([]model.CalendarSyncConfig, error)
	SaveSyncConfig(ctx context.Context, cfg model.CalendarSyncConfig) error
	ImportMeetings(ctx context.Context, candidates []model.Meeting) (state.ImportResult, error)
}

// Result summarizes one connection's sync.
type Result struct {
	Name     string             `json:"name"`
	Import   state.ImportResult `json:"import"`
	Skipped  int                `json:"skipped"`
	SyncedAt time.Time          `json:"syncedAt"`
}

type Options struct {
	Client     *http.Client
	Logger     *slog.Logger
	Retries    uint64
	RetryDelay time.Duration
	MaxBytes   int64
}

type Syncer struct {
	target     Target
	client     *http.Client
	logger     *slog.Logger
	retries    uint64
	retryDelay time.Duration
	maxBytes   int64
	now        func() time.Time
}

func NewSyncer(target Target, opts Options) *Syncer {
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 15 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}
	if opts.Retries == 0 {
		opts.Retries = 3
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = maxBody
	}
	return &Syncer{
		target:     target,
		client:     opts.Client,
		logger:     opts.Logger,
		retries:    opts.Retries,
		retryDelay: opts.RetryDelay,
		maxBytes:   opts.MaxBytes,
		now:        time.Now,
	}
}

// SyncAll syncs every ICS connection. A failing connection does not stop
// the others; their errors are combined.
func (s *Syncer) SyncAll(ctx context.Context) ([]Result, error) {
	configs, err := s.target.SyncConfigs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sync configs: %w", err)
	}

	var results []Result
	var errs error
	for _, cfg := range configs {
		if cfg.Provider != model.ProviderICS {
			s.logger.Debug("skipping oauth calendar", "provider", cfg.Provider, "name", cfg.Name)
			continue
		}
		res, err := s.Sync(ctx, cfg)
		if err != nil {
			s.logger.Error("calendar sync failed", "name", cfg.Name, "error", err)
			errs = multierr.Append(errs, err)
			continue
		}
		results = append(results, res)
	}
	return results, errs
}

// Sync fetches one calendar, imports its meetings and records the sync time.
func (s *Syncer) Sync(ctx context.Context, cfg model.CalendarSyncConfig) (Result, error) {
	if cfg.Provider != model.ProviderICS {
		return Result{}, fmt.Errorf("sync %s: %w", cfg.Name, ErrUnsupportedProvider)
	}
	if strings.TrimSpace(cfg.CalendarID) == "" {
		return Result{}, fmt.Errorf("sync %s: no calendar URL", cfg.Name)
	}

	body, err := s.fetch(ctx, cfg.CalendarID)
	if err != nil {
		return Result{}, fmt.Errorf("sync %s: %w", cfg.Name, err)
	}

	settings := s.target.Settings()
	events, err := importer.ParseICS(body, location(settings.Timezone))
	if err != nil {
		return Result{}, fmt.Errorf("sync %s: %w", cfg.Name, err)
	}
	meetings, skipped := importer.NormalizeAll(events, settings.TimeFormat)
	for _, err := range skipped {
		s.logger.Debug("event not imported", "name", cfg.Name, "reason", err)
	}

	imported, err := s.target.ImportMeetings(ctx, meetings)
	if err != nil {
		return Result{}, fmt.Errorf("sync %s: %w", cfg.Name, err)
	}

	now := s.now().UTC()
	cfg.LastSync = &now
	if err := s.target.SaveSyncConfig(ctx, cfg); err != nil {
		return Result{}, fmt.Errorf("record sync time: %w", err)
	}

	s.logger.Info("calendar synced", "name", cfg.Name, "created", imported.Created, "updated", imported.Updated, "skipped", len(skipped))
	return Result{Name: cfg.Name, Import: imported, Skipped: len(skipped), SyncedAt: now}, nil
}

// fetch downloads url, retrying network errors and server-side failures.
func (s *Syncer) fetch(ctx context.Context, url string) ([]byte, error) {
	if rest, ok := strings.CutPrefix(url, "webcal://"); ok {
		url = "https://" + rest
	}

	b := retry.WithMaxRetries(s.retries, retry.NewExponential(s.retryDelay))
	return retry.DoValue(ctx, b, func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "text/calendar")

		resp, err := s.client.Do(req)
		if err != nil {
			return nil, retry.RetryableError(fmt.Errorf("fetch calendar: %w", err))
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return nil, retry.RetryableError(fmt.Errorf("fetch calendar: %s", resp.Status))
		case resp.StatusCode != http.StatusOK:
			return nil, fmt.Errorf("fetch calendar: %s", resp.Status)
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBytes+1))
		if err != nil {
			return nil, retry.RetryableError(fmt.Errorf("read calendar: %w", err))
		}
		if int64(len(body)) > s.maxBytes {
			return nil, fmt.Errorf("read calendar: %w (over %d bytes)", ErrFeedTooLarge, s.maxBytes)
		}
		return body, nil
	})
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
