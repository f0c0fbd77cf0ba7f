package library

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ConfigFileName is the sidecar config file consulted when library
// directories are not supplied explicitly.
const ConfigFileName = "config.json"

// Config holds the default directory fallbacks.
type Config struct {
	LibraryDir string `json:"library_dir"`
	AutoDir    string `json:"auto_dir"`
}

// LoadConfigFile reads the fallback config under an advisory shared
// lock, so a concurrent writer (another process) never hands us a torn
// file. A missing file yields a zero Config without error.
func LoadConfigFile(path string) (Config, error) {
	var cfg Config

	lock := flock.New(lockPath(path))
	if err := lock.RLock(); err != nil {
		return cfg, fmt.Errorf("locking config %s: %w", path, err)
	}
	defer lock.Unlock()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// SaveConfigFile writes the fallback config under an exclusive lock.
func SaveConfigFile(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config folder: %w", err)
	}

	lock := flock.New(lockPath(path))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("locking config %s: %w", path, err)
	}
	defer lock.Unlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config %s: %w", path, err)
	}
	return nil
}

func lockPath(path string) string {
	return path + ".lock"
}
