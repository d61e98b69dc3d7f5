// Package local stores objects as files under a root directory.
package local

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/feichai0017/testcase-generator/pkg/logger"
)

type Config struct {
	Dir string `yaml:"dir"`
}

type LocalStorage struct {
	root   string
	logger logger.Logger
}

func NewLocalStorage(c Config, log logger.Logger) (*LocalStorage, error) {
	if c.Dir == "" {
		c.Dir = "data"
	}
	root, err := filepath.Abs(c.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage dir: %w", err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	return &LocalStorage{root: root, logger: log}, nil
}

// path maps a slash-separated key into root, rejecting keys that escape it.
func (l *LocalStorage) path(key string) (string, error) {
	if key == "" || !fs.ValidPath(key) {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(l.root, filepath.FromSlash(key)), nil
}

func (l *LocalStorage) Store(ctx context.Context, reader io.Reader, key string) (string, error) {
	p, err := l.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to store file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to store file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to store file: %w", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return "", fmt.Errorf("failed to store file: %w", err)
	}
	return key, nil
}

// Get returns an error wrapping fs.ErrNotExist for unknown keys.
func (l *LocalStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	p, err := l.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	return f, nil
}

func (l *LocalStorage) Delete(ctx context.Context, key string) error {
	p, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (l *LocalStorage) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := l.walk(func(key string, _ fs.FileInfo) {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	})
	sort.Strings(keys)
	return keys, err
}

func (l *LocalStorage) CleanupBefore(ctx context.Context, threshold time.Time) error {
	var expired []string
	if err := l.walk(func(key string, info fs.FileInfo) {
		if info.ModTime().Before(threshold) {
			expired = append(expired, key)
		}
	}); err != nil {
		return err
	}

	for _, key := range expired {
		if err := l.Delete(ctx, key); err != nil {
			l.logger.Error("Failed to delete expired object", logger.String("key", key), logger.Error(err))
			continue
		}
		l.logger.Info("Deleted expired object", logger.String("key", key))
	}
	return nil
}

func (l *LocalStorage) walk(fn func(key string, info fs.FileInfo)) error {
	return filepath.WalkDir(l.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".tmp-") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(l.root, p)
		if err != nil {
			return err
		}
		fn(filepath.ToSlash(rel), info)
		return nil
	})
}
