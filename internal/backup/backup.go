// Package backup uploads passphrase-sealed state snapshots to S3-compatible
// storage and restores them.
package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dukerupert/huddle/internal/model"
	"github.com/dukerupert/huddle/internal/secret"
	"github.com/dukerupert/huddle/internal/snapshot"
	"github.com/dukerupert/huddle/internal/state"
)

const (
	keyPrefix    = "snapshots/"
	keySuffix    = ".json.enc"
	keyTimestamp = "2006-01-02T150405Z"
)

var (
	ErrDisabled     = errors.New("backup not configured: S3 credentials missing")
	ErrNoPassphrase = errors.New("backup passphrase not configured")
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

func (c S3Config) complete() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

// Config holds backup manager configuration.
type Config struct {
	S3            S3Config `yaml:"s3"`
	Enabled       bool     `yaml:"enabled"`
	ScheduleHour  int      `yaml:"schedule_hour"`
	RetentionDays int      `yaml:"retention_days"`
}

// State represents the backup manager state.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateDisabled State = "disabled"
	StateError    State = "error"
)

// Status holds the current backup manager status.
type Status struct {
	State      State      `json:"state"`
	LastBackup *time.Time `json:"last_backup,omitempty"`
	Error      string     `json:"error,omitempty"`
	InProgress bool       `json:"in_progress"`
}

// StatusCallback is called whenever the backup state changes.
type StatusCallback func(Status)

// Object is one stored backup.
type Object struct {
	Key       string    `json:"key"`
	CreatedAt time.Time `json:"createdAt"`
	SizeBytes int64     `json:"sizeBytes"`
}

// Source supplies the state to back up.
type Source interface {
	State() state.State
}

// Target receives restored records.
type Target interface {
	PutMeeting(ctx context.Context, m model.Meeting) (model.Meeting, error)
	PutCategory(ctx context.Context, c model.Category) error
	SetSetting(ctx context.Context, key, value string) error
}

// Manager manages encrypted backups to S3-compatible storage.
type Manager struct {
	mu       sync.RWMutex
	cfg      Config
	status   Status
	callback StatusCallback
	client   s3Client
	sealer   *secret.Sealer
	logger   *slog.Logger
	now      func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a new backup manager. It is disabled until S3
// credentials are configured.
func NewManager(cfg Config, sealer *secret.Sealer, logger *slog.Logger, callback StatusCallback) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 30
	}
	m := &Manager{
		cfg:      cfg,
		callback: callback,
		sealer:   sealer,
		logger:   logger,
		now:      time.Now,
		status:   Status{State: StateDisabled},
	}
	if cfg.S3.complete() {
		m.client = newS3Client(cfg.S3)
		m.status.State = StateIdle
	}
	return m
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// UpdateS3Config hot-reloads the S3 configuration.
func (m *Manager) UpdateS3Config(s3cfg S3Config) {
	m.mu.Lock()
	m.cfg.S3 = s3cfg
	if s3cfg.complete() {
		m.client = newS3Client(s3cfg)
		m.status.State = StateIdle
	} else {
		m.client = nil
		m.status.State = StateDisabled
	}
	status := m.status
	m.mu.Unlock()
	if m.callback != nil {
		m.callback(status)
	}
}

// Start begins the scheduled backup loop. Scheduled backups run once a day
// at the configured hour when enabled.
func (m *Manager) Start(ctx context.Context, src Source) {
	m.mu.Lock()
	if m.status.State == StateDisabled || !m.cfg.Enabled || m.done != nil {
		m.mu.Unlock()
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	done := m.done
	m.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(1 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.checkSchedule(ctx, src)
			}
		}
	}()
}

// Stop gracefully stops the backup loop.
func (m *Manager) Stop() {
	m.mu.RLock()
	cancel := m.cancel
	done := m.done
	m.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Status returns the current backup status.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	if s.LastBackup == nil {
		s.LastBackup = m.status.LastBackup
	}
	m.status = s
	m.mu.Unlock()
	if m.callback != nil {
		m.callback(s)
	}
}

func (m *Manager) fail(err error) error {
	m.setStatus(Status{State: StateError, Error: err.Error()})
	return err
}

func (m *Manager) checkSchedule(ctx context.Context, src Source) {
	now := m.now().UTC()
	m.mu.RLock()
	hour := m.cfg.ScheduleHour
	retention := m.cfg.RetentionDays
	m.mu.RUnlock()
	if now.Hour() != hour || now.Minute() != 0 {
		return
	}

	if _, err := m.RunNow(ctx, src); err != nil {
		m.logger.Error("scheduled backup failed", "error", err)
		return
	}
	if err := m.Cleanup(ctx, retention); err != nil {
		m.logger.Error("backup cleanup failed", "error", err)
	}
}

func (m *Manager) target() (s3Client, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.client == nil {
		return nil, "", ErrDisabled
	}
	return m.client, m.cfg.S3.Bucket, nil
}

// RunNow seals the current state and uploads it. It returns the object key.
func (m *Manager) RunNow(ctx context.Context, src Source) (string, error) {
	client, bucket, err := m.target()
	if err != nil {
		return "", err
	}
	if m.sealer == nil {
		return "", ErrNoPassphrase
	}

	m.setStatus(Status{State: StateRunning, InProgress: true})

	s := src.State()
	now := m.now().UTC()
	data, err := snapshot.Encode(snapshot.Snapshot{
		SavedAt:         now,
		Meetings:        s.Meetings,
		Categories:      s.Categories,
		CurrentView:     s.CurrentView,
		CurrentWeekType: s.CurrentWeekType,
		Settings:        s.Settings,
	})
	if err != nil {
		return "", m.fail(err)
	}
	sealed, err := m.sealer.Seal(data)
	if err != nil {
		return "", m.fail(fmt.Errorf("encrypt: %w", err))
	}

	key := keyPrefix + now.Format(keyTimestamp) + keySuffix
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          strings.NewReader(string(sealed)),
		ContentLength: aws.Int64(int64(len(sealed))),
	})
	if err != nil {
		return "", m.fail(fmt.Errorf("upload to s3: %w", err))
	}

	m.setStatus(Status{State: StateIdle, LastBackup: &now})
	m.logger.Info("backup uploaded", "key", key, "meetings", len(s.Meetings), "bytes", len(sealed))
	return key, nil
}

// List returns stored backups, newest first.
func (m *Manager) List(ctx context.Context) ([]Object, error) {
	client, bucket, err := m.target()
	if err != nil {
		return nil, err
	}

	var out []Object
	var token *string
	for {
		page, err := client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(bucket),
			Prefix:            aws.String(keyPrefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("list backups: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			created, ok := parseKey(key)
			if !ok {
				continue
			}
			out = append(out, Object{Key: key, CreatedAt: created, SizeBytes: aws.ToInt64(obj.Size)})
		}
		if !aws.ToBool(page.IsTruncated) {
			break
		}
		token = page.NextContinuationToken
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Download streams an encrypted backup from S3.
func (m *Manager) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	client, bucket, err := m.target()
	if err != nil {
		return nil, err
	}
	if _, ok := parseKey(key); !ok {
		return nil, fmt.Errorf("backup %q: %w", key, model.ErrNotFound)
	}
	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("download from s3: %w", err)
	}
	return result.Body, nil
}

// Restore downloads and decrypts a backup and replays its meetings,
// categories and settings into dst.
func (m *Manager) Restore(ctx context.Context, key string, dst Target) (snapshot.Snapshot, error) {
	if m.sealer == nil {
		return snapshot.Snapshot{}, ErrNoPassphrase
	}
	body, err := m.Download(ctx, key)
	if err != nil {
		return snapshot.Snapshot{}, err
	}
	defer body.Close()

	sealed, err := io.ReadAll(body)
	if err != nil {
		return snapshot.Snapshot{}, fmt.Errorf("read backup: %w", err)
	}
	data, err := m.sealer.Open(sealed)
	if err != nil {
		return snapshot.Snapshot{}, fmt.Errorf("decrypt backup: %w", err)
	}
	snap, err := snapshot.Decode(data)
	if err != nil {
		return snapshot.Snapshot{}, err
	}

	for _, c := range snap.Categories {
		if err := dst.PutCategory(ctx, c); err != nil {
			return snap, fmt.Errorf("restore category %s: %w", c.ID, err)
		}
	}
	for _, mt := range snap.Meetings {
		_, err := dst.PutMeeting(ctx, mt)
		if errors.Is(err, model.ErrNotFound) {
			// Backends that assign their own IDs cannot recreate a deleted row under its old ID.
			mt.ID = 0
			_, err = dst.PutMeeting(ctx, mt)
		}
		if err != nil {
			return snap, fmt.Errorf("restore meeting %q: %w", mt.Name, err)
		}
	}
	for key, value := range snap.Settings.Entries() {
		if err := dst.SetSetting(ctx, key, value); err != nil {
			return snap, fmt.Errorf("restore setting %s: %w", key, err)
		}
	}

	m.logger.Info("backup restored", "key", key, "meetings", len(snap.Meetings), "categories", len(snap.Categories))
	return snap, nil
}

// Cleanup deletes backups older than the retention period.
func (m *Manager) Cleanup(ctx context.Context, retentionDays int) error {
	client, bucket, err := m.target()
	if err != nil {
		return nil
	}
	objects, err := m.List(ctx)
	if err != nil {
		return err
	}

	before := m.now().UTC().AddDate(0, 0, -retentionDays)
	for _, obj := range objects {
		if !obj.CreatedAt.Before(before) {
			continue
		}
		if _, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(obj.Key),
		}); err != nil {
			m.logger.Warn("failed to delete backup object", "key", obj.Key, "error", err)
		}
	}
	return nil
}

func parseKey(key string) (time.Time, bool) {
	name, ok := strings.CutPrefix(key, keyPrefix)
	if !ok {
		return time.Time{}, false
	}
	name, ok = strings.CutSuffix(name, keySuffix)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(keyTimestamp, name)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
