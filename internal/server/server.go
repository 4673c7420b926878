package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/dukerupert/huddle/internal/auth"
	"github.com/dukerupert/huddle/internal/backup"
	"github.com/dukerupert/huddle/internal/calsync"
	"github.com/dukerupert/huddle/internal/config"
	"github.com/dukerupert/huddle/internal/handler"
	"github.com/dukerupert/huddle/internal/middleware"
	"github.com/dukerupert/huddle/internal/model"
	"github.com/dukerupert/huddle/internal/remote"
	"github.com/dukerupert/huddle/internal/secret"
	"github.com/dukerupert/huddle/internal/snapshot"
	"github.com/dukerupert/huddle/internal/state"
	"github.com/dukerupert/huddle/internal/storage"
	"github.com/dukerupert/huddle/internal/store"
	ws "github.com/dukerupert/huddle/internal/websocket"
)

type Server struct {
	cfg           config.Config
	hub           *ws.Hub
	cache         *state.Cache
	selector      *storage.Selector
	tokens        *auth.TokenSource
	syncer        *calsync.Syncer
	scheduler     *calsync.Scheduler
	backupManager *backup.Manager
	rateLimiter   *middleware.RateLimiter

	meetingH  *handler.MeetingHandler
	categoryH *handler.CategoryHandler
	settingsH *handler.SettingsHandler
	sessionH  *handler.SessionHandler
	syncH     *handler.SyncHandler
	importH   *handler.ImportHandler
	backupH   *handler.BackupHandler

	cancel context.CancelFunc
	logger *slog.Logger
}

// New wires the stores, cache and background services. remoteDB may be nil
// for a local-only install.
func New(cfg config.Config, local *sql.DB, remoteDB *sqlx.DB, logger *slog.Logger) (*Server, error) {
	sealer, err := secret.NewSealer(cfg.Passphrase)
	if err != nil {
		return nil, fmt.Errorf("create sealer: %w", err)
	}

	hub := ws.NewHub(logger.With("component", "websocket"))

	var (
		cloud    storage.Backend
		sessions auth.SessionSource
		tokens   *auth.TokenSource
	)
	if remoteDB != nil && cfg.Remote.Enabled() {
		cloud = remote.New(remoteDB, sealer)
		tokens = auth.NewTokenSource(cfg.Remote.JWTSecret, cfg.Remote.SessionToken)
		sessions = tokens
	}

	// The cache is built after the selector but before any call reaches it.
	var cache *state.Cache
	selector := storage.NewSelector(store.NewLocalStore(local, sealer), cloud, sessions, storage.Options{
		ProbeTimeout: cfg.Remote.ProbeTimeout,
		InitTimeout:  cfg.Remote.InitTimeout,
		Logger:       logger.With("component", "storage"),
		OnModeChange: func(_, to storage.Mode) {
			hub.Notify(model.Notice{Type: "storage_mode", Entity: "storage", Action: string(to), Level: "info"})
			cache.RefreshAsync()
		},
	})

	cache = state.New(selector, state.Options{
		Snapshot:    snapshot.NewFile(cfg.SnapshotPath),
		Notifier:    hub,
		Logger:      logger.With("component", "state"),
		ReadTimeout: cfg.ReadTimeout,
	})

	syncer := calsync.NewSyncer(cache, calsync.Options{Logger: logger.With("component", "calsync")})
	scheduler, err := calsync.NewScheduler(syncer, cfg.Sync.Schedule, cfg.Location(), cfg.Sync.Timeout)
	if err != nil {
		return nil, err
	}

	backupMgr := backup.NewManager(cfg.Backup, sealer, logger.With("component", "backup"), func(s backup.Status) {
		hub.Notify(model.Notice{
			Type:   "backup_status",
			Entity: "backup",
			Action: string(s.State),
			Extra: map[string]any{
				"in_progress": s.InProgress,
				"error":       s.Error,
			},
		})
	})

	return &Server{
		cfg:           cfg,
		hub:           hub,
		cache:         cache,
		selector:      selector,
		tokens:        tokens,
		syncer:        syncer,
		scheduler:     scheduler,
		backupManager: backupMgr,
		rateLimiter:   middleware.NewRateLimiter(),
		meetingH:      handler.NewMeetingHandler(cache, logger.With("component", "meeting")),
		categoryH:     handler.NewCategoryHandler(cache, logger.With("component", "category")),
		settingsH:     handler.NewSettingsHandler(cache, logger.With("component", "settings")),
		sessionH:      handler.NewSessionHandler(tokens, selector, cache, logger.With("component", "session")),
		syncH:         handler.NewSyncHandler(cache, syncer, logger.With("component", "sync")),
		importH:       handler.NewImportHandler(cache, logger.With("component", "import")),
		backupH:       handler.NewBackupHandler(backupMgr, cache, selector, logger.With("component", "backup_handler")),
		logger:        logger,
	}, nil
}

// Cache returns the application state cache.
func (s *Server) Cache() *state.Cache {
	return s.cache
}

// Selector returns the storage selector.
func (s *Server) Selector() *storage.Selector {
	return s.selector
}

// Syncer returns the calendar syncer.
func (s *Server) Syncer() *calsync.Syncer {
	return s.syncer
}

// BackupManager returns the backup manager.
func (s *Server) BackupManager() *backup.Manager {
	return s.backupManager
}

// Init prepares the local store and loads the cache. It does not start any
// background work.
func (s *Server) Init(ctx context.Context) error {
	if err := s.selector.Init(ctx); err != nil {
		return err
	}
	if err := s.cache.Init(ctx); err != nil {
		return fmt.Errorf("init state: %w", err)
	}
	return nil
}

// Start launches the sync schedule, backups and periodic cleanup.
func (s *Server) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	if s.cfg.Sync.Enabled {
		s.scheduler.Start()
	}
	s.backupManager.Start(ctx, s.cache)

	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.rateLimiter.Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Close stops background work and waits for in-flight refreshes.
func (s *Server) Close(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.cfg.Sync.Enabled {
		s.scheduler.Stop(ctx)
	}
	s.backupManager.Stop()
	return s.cache.Close()
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()
	outerMux.HandleFunc("GET /health", s.healthHandler)

	apiMux := http.NewServeMux()
	s.registerAPIRoutes(apiMux)
	outerMux.Handle("/", middleware.RequireToken(s.cfg.APIToken)(apiMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"mode":    s.selector.Mode(),
		"clients": s.hub.ClientCount(),
	})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc, limit int) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, middleware.ByIP, limit, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerAPIRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/state", s.settingsH.State)

	// Meetings
	mux.HandleFunc("GET /api/meetings", s.meetingH.List)
	mux.HandleFunc("POST /api/meetings", s.meetingH.Create)
	mux.HandleFunc("GET /api/meetings/{id}", s.meetingH.Get)
	mux.HandleFunc("PUT /api/meetings/{id}", s.meetingH.Update)
	mux.HandleFunc("DELETE /api/meetings/{id}", s.meetingH.Delete)
	mux.HandleFunc("POST /api/meetings/{id}/move", s.meetingH.Move)
	mux.HandleFunc("POST /api/meetings/{id}/split", s.meetingH.Split)
	mux.HandleFunc("GET /api/days/{day}/meetings", s.meetingH.Day)
	mux.HandleFunc("GET /api/days/{day}/conflicts", s.meetingH.DayConflicts)
	mux.HandleFunc("GET /api/conflicts", s.meetingH.Conflicts)
	mux.HandleFunc("GET /api/series", s.meetingH.Series)
	mux.HandleFunc("PUT /api/series", s.meetingH.UpdateSeries)

	// Categories
	mux.HandleFunc("GET /api/categories", s.categoryH.List)
	mux.HandleFunc("POST /api/categories", s.categoryH.Create)
	mux.HandleFunc("PUT /api/categories/{id}", s.categoryH.Update)
	mux.HandleFunc("DELETE /api/categories/{id}", s.categoryH.Delete)

	// Settings
	mux.HandleFunc("GET /api/settings", s.settingsH.Get)
	mux.HandleFunc("PUT /api/settings", s.settingsH.Update)
	mux.HandleFunc("PUT /api/week-type", s.settingsH.SetWeekType)
	mux.HandleFunc("PUT /api/view", s.settingsH.SetView)

	// Cloud session
	mux.HandleFunc("GET /api/session", s.sessionH.Get)
	mux.HandleFunc("POST /api/session", s.rateLimitedHandler(s.sessionH.SignIn, 10))
	mux.HandleFunc("DELETE /api/session", s.sessionH.SignOut)

	// Calendar connections and import
	mux.HandleFunc("GET /api/sync", s.syncH.List)
	mux.HandleFunc("PUT /api/sync", s.syncH.Save)
	mux.HandleFunc("DELETE /api/sync/{provider}/{name}", s.syncH.Delete)
	mux.HandleFunc("POST /api/sync/run", s.rateLimitedHandler(s.syncH.RunAll, 6))
	mux.HandleFunc("POST /api/sync/{provider}/{name}/run", s.rateLimitedHandler(s.syncH.Run, 6))
	mux.HandleFunc("POST /api/import", s.rateLimitedHandler(s.importH.Import, 10))

	// Backups
	mux.HandleFunc("GET /api/backup", s.backupH.Status)
	mux.HandleFunc("POST /api/backup", s.rateLimitedHandler(s.backupH.Run, 5))
	mux.HandleFunc("GET /api/backups", s.backupH.List)
	mux.HandleFunc("GET /api/backups/download", s.backupH.Download)
	mux.HandleFunc("POST /api/backup/restore", s.rateLimitedHandler(s.backupH.Restore, 5))

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket"), s.cfg.AllowedOrigins))
}
