package config

import (
	"fmt"
	"os"
)

// EnsureDirectories creates the writable directories the server needs before
// any connection arrives, so a synthesis call never fails on a missing path.
func EnsureDirectories(cfg *Config) error {
	dirs := []string{cfg.Audio.OutputDir}
	for _, d := range dirs {
		if d == "" {
			continue
		}
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("config: create directory %q: %w", d, err)
		}
	}
	return nil
}
