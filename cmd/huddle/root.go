package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/dukerupert/huddle/internal/config"
	"github.com/dukerupert/huddle/internal/database"
	"github.com/dukerupert/huddle/internal/logging"
	"github.com/dukerupert/huddle/internal/server"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "huddle",
	Short: "Local-first scheduler for recurring team meetings",
	Long: `huddle keeps a team's recurring meeting schedule on this device and,
when signed in, in the cloud. Running it without a subcommand starts the server.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "huddle.yaml", "path to the YAML config file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(conflictsCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(backupCmd)
}

// app is an initialized server plus the handles it was built from.
type app struct {
	cfg    config.Config
	srv    *server.Server
	logger *slog.Logger
	close  func(ctx context.Context) error
}

// openApp loads config, opens the databases and loads the state cache.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger := logging.Setup(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})

	local, err := database.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	var remoteDB *sqlx.DB
	if cfg.Remote.Enabled() {
		remoteDB, err = database.OpenRemote(cfg.Remote.DSN)
		if err != nil {
			return nil, multierr.Append(err, local.Close())
		}
	}

	closeDBs := func() error {
		err := local.Close()
		if remoteDB != nil {
			err = multierr.Append(err, remoteDB.Close())
		}
		return err
	}

	srv, err := server.New(cfg, local, remoteDB, logger)
	if err != nil {
		return nil, multierr.Append(err, closeDBs())
	}
	if err := srv.Init(ctx); err != nil {
		return nil, multierr.Combine(err, srv.Close(ctx), closeDBs())
	}

	return &app{
		cfg:    cfg,
		srv:    srv,
		logger: logger,
		close: func(ctx context.Context) error {
			return multierr.Combine(srv.Close(ctx), closeDBs())
		},
	}, nil
}
