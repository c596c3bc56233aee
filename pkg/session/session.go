// Package session provides the idle/session collaborator. The
// orchestrator notifies it whenever a module is activated through its
// context key; after a configured window without activity the idle
// callback fires.
package session

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// IdleWatcher tracks session activity. It implements
// orchestrator.SessionNotifier.
type IdleWatcher struct {
	window time.Duration
	onIdle func()
	log    zerolog.Logger

	mu    sync.Mutex
	timer *time.Timer
}

// NewIdleWatcher creates a watcher with the given inactivity window.
// onIdle may be nil. The watcher is idle-armed from creation.
func NewIdleWatcher(window time.Duration, onIdle func(), logger zerolog.Logger) *IdleWatcher {
	w := &IdleWatcher{
		window: window,
		onIdle: onIdle,
		log:    logger.With().Str("component", "idle-watcher").Logger(),
	}
	w.ResetTimeout()
	return w
}

// ResetTimeout records activity and restarts the inactivity window.
func (w *IdleWatcher) ResetTimeout() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	if w.window <= 0 {
		return
	}
	w.timer = time.AfterFunc(w.window, w.fire)
}

func (w *IdleWatcher) fire() {
	w.log.Info().Dur("window", w.window).Msg("session idle window elapsed")
	if w.onIdle != nil {
		w.onIdle()
	}
}

// Stop cancels the pending idle timer.
func (w *IdleWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}
