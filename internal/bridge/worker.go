package bridge

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/ppiankov/gatewarden/internal/log"
	"github.com/ppiankov/gatewarden/internal/metrics"
	"github.com/ppiankov/gatewarden/internal/profile"
	"github.com/ppiankov/gatewarden/internal/session"
)

// Sink receives session lifecycle edges. Called from the worker
// goroutine, at most once per edge.
type Sink interface {
	// SessionActivated fires when session_active flips false to true.
	SessionActivated(sessionID string)
	// SessionDeactivated fires when session_active flips true to false.
	// The session state has already been reset when this runs.
	SessionDeactivated(sessionID string)
}

// Worker is the queue's single consumer. It wakes on a poll interval,
// applies up to MaxBatch pending updates per wake, and emits lifecycle
// edges to the sink.
type Worker struct {
	queue    *Queue
	store    *session.Store
	sink     Sink
	poll     time.Duration
	maxBatch int
	logger   zerolog.Logger
}

// WorkerConfig wires a Worker.
type WorkerConfig struct {
	Queue        *Queue
	Store        *session.Store
	Sink         Sink
	PollInterval time.Duration
	MaxBatch     int
}

// NewWorker creates the bridge consumer.
func NewWorker(cfg WorkerConfig) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 50 * time.Millisecond
	}
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = 10
	}
	return &Worker{
		queue:    cfg.Queue,
		store:    cfg.Store,
		sink:     cfg.Sink,
		poll:     cfg.PollInterval,
		maxBatch: cfg.MaxBatch,
		logger:   log.WithComponent("bridge"),
	}
}

// Run drains the queue until ctx is canceled. Single consumer: never
// run two workers against one queue.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	w.logger.Info().Dur("poll", w.poll).Int("max_batch", w.maxBatch).Msg("bridge worker started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("bridge worker stopped")
			return
		case <-ticker.C:
			w.drain()
		}
	}
}

// drain applies at most maxBatch pending updates.
func (w *Worker) drain() {
	for i := 0; i < w.maxBatch; i++ {
		u, ok := w.queue.poll()
		if !ok {
			return
		}
		w.apply(u)
	}
}

// Apply executes one update synchronously. Exported for transports that
// need an immediate state change outside the poll cycle (tests use it
// too).
func (w *Worker) Apply(u Update) {
	w.apply(u)
}

func (w *Worker) apply(u Update) {
	var activated, deactivated bool

	err := w.store.Update(u.SessionID, func(st *session.State) {
		if u.Schema != nil {
			st.Vision = u.Schema
		}
		if u.Authenticated != nil && *u.Authenticated {
			st.Profile.Authenticated = true
			st.Profile.EmployeeName = u.EmployeeName
			st.Profile.Set(profile.Name, profile.Value(u.EmployeeName))
		}
		if u.Active != nil && *u.Active != st.SessionActive {
			st.SessionActive = *u.Active
			if *u.Active {
				activated = true
			} else {
				deactivated = true
				// Visitor left: next detection starts a fresh
				// conversation.
				st.Reset()
				st.Vision = nil
			}
		}
	})
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			w.logger.Error().Err(err).Str("session", u.SessionID).Msg("apply failed")
		}
		return
	}
	metrics.BridgeApplied.Inc()

	switch {
	case activated:
		metrics.ActiveSessions.Inc()
		w.logger.Info().Str("session", u.SessionID).Msg("session activated")
		if w.sink != nil {
			w.sink.SessionActivated(u.SessionID)
		}
	case deactivated:
		metrics.ActiveSessions.Dec()
		w.logger.Info().Str("session", u.SessionID).Msg("session deactivated")
		if w.sink != nil {
			w.sink.SessionDeactivated(u.SessionID)
		}
	}
}
