package localfs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Storage keeps images on local disk. Files older than the TTL are removed
// on the next write, so expiry survives process restarts.
type Storage struct {
	basePath string
	ttl      time.Duration
	now      func() time.Time
}

func New(basePath string, ttl time.Duration) (*Storage, error) {
	if basePath == "" {
		basePath = "./data/images"
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Storage{basePath: basePath, ttl: ttl, now: time.Now}, nil
}

func (s *Storage) Put(_ context.Context, key, _ string, data []byte) (string, error) {
	if err := s.sweepExpired(); err != nil {
		slog.Warn("localfs_sweep_failed", "path", s.basePath, "error", err)
	}

	path := filepath.Join(s.basePath, filepath.Base(key))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return "file://" + path, nil
}

func (s *Storage) sweepExpired() error {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return fmt.Errorf("read storage dir: %w", err)
	}

	cutoff := s.now().Add(-s.ttl)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(s.basePath, entry.Name())); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("remove expired file: %w", err)
			}
		}
	}
	return nil
}
