// ABOUTME: Persisted settings storage as one JSON blob under a fixed key
// ABOUTME: Absent or corrupt blobs yield Default() rather than an error

package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// settingsKey is the fixed key the settings blob lives under.
const settingsKey = "warren.config"

// KV is the key-value storage the settings blob is persisted in. The
// file-backed implementation below is the default; tests substitute a map.
type KV interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
}

// Store loads and saves Settings through a KV.
type Store struct {
	kv     KV
	logger *slog.Logger
}

// NewStore creates a settings store. Pass nil logger for the default.
func NewStore(kv KV, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{kv: kv, logger: logger.With("component", "config")}
}

// Load returns the persisted settings, or Default() if the blob is absent
// or unparseable. Corrupt blobs are logged, never fatal.
func (s *Store) Load() Settings {
	raw, ok, err := s.kv.Get(settingsKey)
	if err != nil {
		s.logger.Warn("reading settings failed, using defaults", "error", err)
		return Default()
	}
	if !ok {
		return Default()
	}

	var settings Settings
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		s.logger.Warn("settings blob corrupt, using defaults", "error", err)
		return Default()
	}
	return settings
}

// Save persists the settings blob.
func (s *Store) Save(settings Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	if err := s.kv.Set(settingsKey, string(data)); err != nil {
		return fmt.Errorf("writing settings: %w", err)
	}
	return nil
}

// Reset removes the persisted blob so the next Load returns defaults.
func (s *Store) Reset() error {
	return s.kv.Delete(settingsKey)
}

// FileKV is a KV backed by one JSON file holding a string map.
type FileKV struct {
	path string
}

// NewFileKV creates a file-backed KV at the given path. Parent directories
// are created on first write.
func NewFileKV(path string) *FileKV {
	return &FileKV{path: path}
}

// DefaultKVPath returns the conventional settings file location,
// honoring XDG_CONFIG_HOME.
func DefaultKVPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "warren-settings.json"
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "warren", "settings.json")
}

func (f *FileKV) read() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	m := map[string]string{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func (f *FileKV) write(m map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, data, 0600)
}

// Get returns the value for key and whether it was present.
func (f *FileKV) Get(key string) (string, bool, error) {
	m, err := f.read()
	if err != nil {
		return "", false, err
	}
	v, ok := m[key]
	return v, ok, nil
}

// Set stores the value for key.
func (f *FileKV) Set(key, value string) error {
	m, err := f.read()
	if err != nil {
		// Corrupt store file: start over rather than wedging settings writes.
		m = map[string]string{}
	}
	m[key] = value
	return f.write(m)
}

// Delete removes key if present.
func (f *FileKV) Delete(key string) error {
	m, err := f.read()
	if err != nil {
		return err
	}
	delete(m, key)
	return f.write(m)
}
