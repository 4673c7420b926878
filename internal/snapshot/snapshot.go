// Package snapshot persists a whole-state blob used to paint the UI before
// any backend has answered.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dukerupert/huddle/internal/model"
)

// CurrentVersion is written on every save.
const CurrentVersion = 2

var ErrUnsupportedVersion = errors.New("unsupported snapshot version")

// Snapshot is the cached application state.
type Snapshot struct {
	Version         int              `json:"version"`
	SavedAt         time.Time        `json:"savedAt"`
	Meetings        []model.Meeting  `json:"meetings"`
	Categories      []model.Category `json:"categories"`
	CurrentView     string           `json:"currentView"`
	CurrentWeekType model.WeekType   `json:"currentWeekType"`
	Settings        model.Settings   `json:"settings"`
}

// migrations upgrade a raw blob from the keyed version to the next one.
var migrations = map[int]func(map[string]json.RawMessage) error{
	// v1 had no settings object; defaults fill in on decode.
	1: func(map[string]json.RawMessage) error { return nil },
}

// Encode serializes s at the current version.
func Encode(s Snapshot) ([]byte, error) {
	s.Version = CurrentVersion
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// Decode parses a blob of any known version, upgrading it as needed.
func Decode(data []byte) (Snapshot, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}

	version := 1
	if v, ok := raw["version"]; ok {
		if err := json.Unmarshal(v, &version); err != nil {
			return Snapshot{}, fmt.Errorf("decode snapshot version: %w", err)
		}
	}
	if version < 1 || version > CurrentVersion {
		return Snapshot{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	for ; version < CurrentVersion; version++ {
		migrate, ok := migrations[version]
		if !ok {
			return Snapshot{}, fmt.Errorf("%w: no migration from %d", ErrUnsupportedVersion, version)
		}
		if err := migrate(raw); err != nil {
			return Snapshot{}, fmt.Errorf("migrate snapshot from v%d: %w", version, err)
		}
	}
	raw["version"] = json.RawMessage(fmt.Sprint(CurrentVersion))

	upgraded, err := json.Marshal(raw)
	if err != nil {
		return Snapshot{}, fmt.Errorf("re-encode snapshot: %w", err)
	}
	s := Snapshot{Settings: model.DefaultSettings()}
	if err := json.Unmarshal(upgraded, &s); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if !s.CurrentWeekType.Valid() {
		s.CurrentWeekType = s.Settings.CurrentWeekType
	}
	if s.CurrentView == "" {
		s.CurrentView = s.Settings.CurrentView
	}
	return s, nil
}

// File stores a snapshot at a fixed path.
type File struct {
	path string
	mu   sync.Mutex
}

func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Path() string { return f.path }

// Load reads the snapshot. A missing file yields nil with no error.
func (f *File) Load() (*Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	s, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Save replaces the snapshot atomically.
func (f *File) Save(s Snapshot) error {
	if s.SavedAt.IsZero() {
		s.SavedAt = time.Now().UTC()
	}
	data, err := Encode(s)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}
