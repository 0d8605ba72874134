package fixture

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// ChangeCallback is invoked (debounced) when a fixture file changes on
// disk after boot. Fixtures are only read at startup and on save loads, so
// the default callback just warns the operator.
type ChangeCallback func(path string)

// Watcher monitors the resource directory for edits to the fixture files.
// Editors commonly write via temp-file-plus-rename, so the whole directory
// is watched and events are filtered by basename and debounced.
type Watcher struct {
	fsWatcher     *fsnotify.Watcher
	targets       map[string]bool
	callback      ChangeCallback
	debounceDelay time.Duration
}

// NewWatcher watches the given fixture files inside the loader's resource
// directory.
func NewWatcher(l *Loader, callback ChangeCallback) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsWatcher.Add(l.ResourceDir); err != nil {
		if closeErr := fsWatcher.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("failed to close watcher after add failure")
		}
		return nil, err
	}
	return &Watcher{
		fsWatcher: fsWatcher,
		targets: map[string]bool{
			l.TeamsFile:    true,
			l.ServicesFile: true,
			l.InjectsFile:  true,
		},
		callback:      callback,
		debounceDelay: 100 * time.Millisecond,
	}, nil
}

// Watch blocks until the context is canceled, invoking the callback for
// debounced fixture changes.
func (w *Watcher) Watch(ctx context.Context) error {
	var (
		timerMu sync.Mutex
		timers  = map[string]*time.Timer{}
	)
	defer func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		for _, t := range timers {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			name := filepath.Base(event.Name)
			if !w.targets[name] {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			timerMu.Lock()
			if t, ok := timers[name]; ok {
				t.Stop()
			}
			timers[name] = time.AfterFunc(w.debounceDelay, func() {
				w.callback(name)
			})
			timerMu.Unlock()
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("fixture watcher error")
		}
	}
}

// Close releases the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.fsWatcher.Close()
}
