// Package firmware serves the 850 relocator and handler images from a
// directory. Images are cached after the first load; a directory watch drops
// cached entries when the files change on disk.
package firmware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// ErrEmpty is returned for a firmware file with no content.
var ErrEmpty = errors.New("firmware: empty image")

// Store serves firmware images from a directory and caches them until the
// files change.
type Store struct {
	dir string
	log *slog.Logger

	mu    sync.Mutex
	cache map[string][]byte
}

// NewStore returns a store reading from dir.
func NewStore(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		dir:   dir,
		log:   logger,
		cache: make(map[string][]byte),
	}
}

// LoadFirmware returns the image stored under name. Only the base name is
// used, so callers cannot escape the firmware directory.
func (s *Store) LoadFirmware(name string) ([]byte, error) {
	name = filepath.Base(name)

	s.mu.Lock()
	img, ok := s.cache[name]
	s.mu.Unlock()
	if ok {
		return img, nil
	}

	img, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return nil, fmt.Errorf("loading firmware %s: %w", name, err)
	}
	if len(img) == 0 {
		return nil, fmt.Errorf("loading firmware %s: %w", name, ErrEmpty)
	}

	s.mu.Lock()
	s.cache[name] = img
	s.mu.Unlock()
	s.log.Debug("Firmware loaded", "name", name, "size", len(img))
	return img, nil
}

func (s *Store) invalidate(name string) {
	s.mu.Lock()
	_, ok := s.cache[name]
	delete(s.cache, name)
	s.mu.Unlock()
	if ok {
		s.log.Info("Firmware changed on disk", "name", name)
	}
}

// Watch invalidates cached images when their files change. It blocks until
// ctx is done or the watcher fails.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating firmware watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(s.dir); err != nil {
		return fmt.Errorf("watching firmware directory %s: %w", s.dir, err)
	}
	s.log.Debug("Monitoring firmware directory", "dir", s.dir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				s.invalidate(filepath.Base(event.Name))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Warn("Firmware watcher error", "error", err)
		}
	}
}
