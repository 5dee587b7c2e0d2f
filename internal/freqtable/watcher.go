package freqtable

import (
	"context"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/go-logr/logr"
)

// Watcher reloads the registry whenever a table file in the watched
// directory changes, so board min/max overrides can be adjusted without
// restarting the agent.
type Watcher struct {
	registry *Registry
	dir      string
	log      logr.Logger

	cancelFunc func()
	waitGroup  sync.WaitGroup
}

func NewWatcher(registry *Registry, dir string, log logr.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsWatcher.Add(dir); err != nil {
		fsWatcher.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		registry:   registry,
		dir:        dir,
		log:        log,
		cancelFunc: cancel,
	}
	w.waitGroup.Add(1)
	go w.run(ctx, fsWatcher)

	return w, nil
}

func (w *Watcher) Stop() {
	w.cancelFunc()
	w.waitGroup.Wait()
}

func (w *Watcher) run(ctx context.Context, fsWatcher *fsnotify.Watcher) {
	defer w.waitGroup.Done()
	defer fsWatcher.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fsWatcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) {
				continue
			}
			w.log.V(4).Info("table config change event", "event", event.String())
			if err := w.registry.LoadDir(w.dir); err != nil {
				// Keep serving the previous tables on a bad edit.
				w.log.Error(err, "table reload failed, keeping previous tables")
			}
		case err, ok := <-fsWatcher.Errors:
			if !ok {
				return
			}
			w.log.Error(err, "table config watcher error")
		}
	}
}
