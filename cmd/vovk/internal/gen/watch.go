package gen

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce collapses bursts of schema writes into one regeneration.
const DefaultDebounce = 100 * time.Millisecond

// Watcher reports changes to the *.json files of a schema directory,
// including nested segment directories created after it started.
type Watcher struct {
	dir      string
	log      zerolog.Logger
	watcher  *fsnotify.Watcher
	Debounce time.Duration
}

// NewWatcher watches dir and every directory below it. dir is created if
// missing.
func NewWatcher(dir string, log zerolog.Logger) (*Watcher, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create schema dir: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &Watcher{dir: dir, log: log, watcher: fw, Debounce: DefaultDebounce}
	if err := w.addTree(dir); err != nil {
		fw.Close()
		return nil, err
	}
	log.Info().Str("dir", dir).Msg("watching schema directory")
	return w, nil
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.watcher.Add(p); err != nil {
			return fmt.Errorf("watch %s: %w", p, err)
		}
		return nil
	})
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// Run calls onChange after each burst of schema changes until ctx is done.
func (w *Watcher) Run(ctx context.Context, onChange func()) error {
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						w.log.Error().Err(err).Msg("watch new directory")
					}
					continue
				}
			}
			if !strings.HasSuffix(event.Name, ".json") {
				continue
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) &&
				!event.Op.Has(fsnotify.Remove) && !event.Op.Has(fsnotify.Rename) {
				continue
			}
			w.log.Debug().
				Str("event", event.Op.String()).
				Str("file", event.Name).
				Msg("schema changed")
			if timer == nil {
				timer = time.NewTimer(w.Debounce)
			} else {
				timer.Reset(w.Debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			onChange()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Error().Err(err).Msg("file watcher error")
		}
	}
}
