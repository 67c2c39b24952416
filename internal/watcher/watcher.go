// Package watcher reports changes of a single file, typically a password
// file whose content may be rotated while the process runs.
package watcher

import (
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	dserrors "github.com/systmms/dsenc/internal/errors"
	"github.com/systmms/dsenc/internal/logging"
)

// EventKind classifies a change of the watched file.
type EventKind int

const (
	Created EventKind = iota + 1
	Modified
	Deleted
)

func (k EventKind) String() string {
	switch k {
	case Created:
		return "created"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Event is one change of the watched file.
type Event struct {
	Kind EventKind
	Path string
}

// Handler receives events on the watcher goroutine. It must not call Stop.
type Handler func(Event)

// Watcher watches the parent directory of one file and forwards every
// create, write and remove notification concerning that file. Events are
// not coalesced.
type Watcher struct {
	path    string
	dir     string
	name    string
	handler Handler
	logger  *logging.Logger

	fsw      *fsnotify.Watcher
	shutdown atomic.Bool
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a watcher for path. Nothing is watched until Start.
func New(path string, handler Handler, logger *logging.Logger) *Watcher {
	if logger == nil {
		logger = logging.Discard()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}
	return &Watcher{
		path:    abs,
		dir:     filepath.Dir(abs),
		name:    filepath.Base(abs),
		handler: handler,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Path returns the absolute path of the watched file.
func (w *Watcher) Path() string {
	return w.path
}

// Start subscribes to the parent directory and launches the event loop.
// A directory that cannot be watched is reported as a
// WatchEstablishmentFailure.
func (w *Watcher) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return dserrors.New(dserrors.KindWatchEstablishmentFailure, "", "watch",
			"unable to create file watcher", err)
	}
	if err := fsw.Add(w.dir); err != nil {
		_ = fsw.Close()
		return dserrors.New(dserrors.KindWatchEstablishmentFailure, "", "watch",
			fmt.Sprintf("unable to watch directory %s", w.dir), err)
	}
	w.fsw = fsw

	w.logger.Debug("Starting file watcher: %s", w.path)
	go w.loop()
	return nil
}

func (w *Watcher) loop() {
	defer close(w.done)

	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if w.shutdown.Load() {
				return
			}
			if filepath.Base(ev.Name) != w.name {
				continue
			}
			kind, ok := classify(ev.Op)
			if !ok {
				continue
			}
			w.logger.Debug("Password file %s: %s", kind, w.path)
			w.handler(Event{Kind: kind, Path: w.path})
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if w.shutdown.Load() {
				return
			}
			w.logger.Warn("File watcher error for %s: %v", w.path, err)
		}
	}
}

func classify(op fsnotify.Op) (EventKind, bool) {
	switch {
	case op.Has(fsnotify.Create):
		return Created, true
	case op.Has(fsnotify.Write):
		return Modified, true
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return Deleted, true
	default:
		return 0, false
	}
}

// Stop closes the watch and waits for the loop to exit. No event is
// delivered once Stop returns. It is idempotent.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		w.shutdown.Store(true)
		if w.fsw == nil {
			close(w.done)
			return
		}
		w.logger.Debug("Stopping file watcher: %s", w.path)
		_ = w.fsw.Close()
		<-w.done
	})
}
