// Package config loads huddle's YAML configuration and applies HUDDLE_*
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dukerupert/huddle/internal/backup"
	"github.com/dukerupert/huddle/internal/calsync"
	"github.com/dukerupert/huddle/internal/logging"
)

// RemoteConfig enables the cloud backend. Leaving DSN empty keeps the app
// local-only.
type RemoteConfig struct {
	DSN          string        `yaml:"dsn"`
	JWTSecret    string        `yaml:"jwt_secret"`
	SessionToken string        `yaml:"session_token"`
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
	InitTimeout  time.Duration `yaml:"init_timeout"`
}

// Enabled reports whether a cloud backend can be built.
func (r RemoteConfig) Enabled() bool {
	return r.DSN != "" && r.JWTSecret != ""
}

type SyncConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Schedule string        `yaml:"schedule"`
	Timezone string        `yaml:"timezone"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Config is the top-level application configuration.
type Config struct {
	Listen         string        `yaml:"listen"`
	LogLevel       string        `yaml:"log_level"`
	LogFormat      string        `yaml:"log_format"`
	DBPath         string        `yaml:"db_path"`
	SnapshotPath   string        `yaml:"snapshot_path"`
	APIToken       string        `yaml:"api_token"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	Passphrase     string        `yaml:"passphrase"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	Remote         RemoteConfig  `yaml:"remote"`
	Sync           SyncConfig    `yaml:"sync"`
	Backup         backup.Config `yaml:"backup"`
}

func Default() Config {
	return Config{
		Listen:       "127.0.0.1:8080",
		LogLevel:     "info",
		LogFormat:    logging.FormatText,
		DBPath:       "huddle.db",
		SnapshotPath: "huddle-state.json",
		ReadTimeout:  5 * time.Second,
		Remote: RemoteConfig{
			ProbeTimeout: 3 * time.Second,
			InitTimeout:  10 * time.Second,
		},
		Sync: SyncConfig{
			Enabled:  true,
			Schedule: calsync.DefaultSchedule,
			Timeout:  2 * time.Minute,
		},
		Backup: backup.Config{
			ScheduleHour:  3,
			RetentionDays: 30,
		},
	}
}

// Load reads path over the defaults and then applies environment
// overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"HUDDLE_LISTEN":        &c.Listen,
		"HUDDLE_LOG_LEVEL":     &c.LogLevel,
		"HUDDLE_LOG_FORMAT":    &c.LogFormat,
		"HUDDLE_DB_PATH":       &c.DBPath,
		"HUDDLE_SNAPSHOT_PATH": &c.SnapshotPath,
		"HUDDLE_API_TOKEN":     &c.APIToken,
		"HUDDLE_PASSPHRASE":    &c.Passphrase,
		"HUDDLE_REMOTE_DSN":    &c.Remote.DSN,
		"HUDDLE_JWT_SECRET":    &c.Remote.JWTSecret,
		"HUDDLE_SESSION_TOKEN": &c.Remote.SessionToken,
		"HUDDLE_SYNC_SCHEDULE": &c.Sync.Schedule,
		"HUDDLE_TIMEZONE":      &c.Sync.Timezone,
		"HUDDLE_S3_ENDPOINT":   &c.Backup.S3.Endpoint,
		"HUDDLE_S3_BUCKET":     &c.Backup.S3.Bucket,
		"HUDDLE_S3_REGION":     &c.Backup.S3.Region,
		"HUDDLE_S3_ACCESS_KEY": &c.Backup.S3.AccessKey,
		"HUDDLE_S3_SECRET_KEY": &c.Backup.S3.SecretKey,
	}
	for key, dst := range str {
		if v, ok := lookup(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	if v, ok := lookup("HUDDLE_ALLOWED_ORIGINS"); ok {
		c.AllowedOrigins = splitList(v)
	}

	flags := map[string]*bool{
		"HUDDLE_SYNC_ENABLED":   &c.Sync.Enabled,
		"HUDDLE_BACKUP_ENABLED": &c.Backup.Enabled,
	}
	for key, dst := range flags {
		v, ok := lookup(key)
		if !ok {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = b
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate rejects settings the app cannot start with.
func (c Config) Validate() error {
	if c.DBPath == "" {
		return errors.New("db_path is required")
	}
	if !logging.ValidFormat(c.LogFormat) {
		return fmt.Errorf("log_format %q must be text or json", c.LogFormat)
	}
	if c.Remote.DSN != "" && c.Remote.JWTSecret == "" {
		return errors.New("remote.jwt_secret is required when remote.dsn is set")
	}
	if c.Backup.ScheduleHour < 0 || c.Backup.ScheduleHour > 23 {
		return fmt.Errorf("backup.schedule_hour %d out of range", c.Backup.ScheduleHour)
	}
	if c.Sync.Timezone != "" {
		if _, err := time.LoadLocation(c.Sync.Timezone); err != nil {
			return fmt.Errorf("sync.timezone: %w", err)
		}
	}
	return nil
}

// Location returns the sync timezone, or the local zone when unset.
func (c Config) Location() *time.Location {
	if c.Sync.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Sync.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
