// Package server exposes the gate over WebSocket plus HTTP health and
// metrics endpoints. Each connection owns one session: the kiosk at a
// checkpoint door connects once and stays connected.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ppiankov/gatewarden/internal/bridge"
	"github.com/ppiankov/gatewarden/internal/directory"
	"github.com/ppiankov/gatewarden/internal/gate"
	"github.com/ppiankov/gatewarden/internal/log"
	"github.com/ppiankov/gatewarden/internal/notify"
	"github.com/ppiankov/gatewarden/internal/record"
	"github.com/ppiankov/gatewarden/internal/session"
	"github.com/ppiankov/gatewarden/internal/vision"
)

// Visitor-facing lifecycle messages.
const (
	msgWelcome  = "Hello! Welcome to the facility. Please state your name and the purpose of your visit."
	msgFarewell = "Goodbye! This session has ended."
)

// Server wires the transport to the gate machine and the vision
// pipeline.
type Server struct {
	listen    string
	machine   *gate.Machine
	store     *session.Store
	updates   *bridge.Queue
	frames    *vision.FrameQueue
	events    *vision.EventQueue
	analyzer  *vision.Analyzer
	threats   *record.Store
	directory *directory.Directory
	webhooks  *notify.Dispatcher

	upgrader    websocket.Upgrader
	eventPoll   time.Duration
	captureHint time.Duration

	mu    sync.RWMutex
	conns map[string]*conn

	logger zerolog.Logger
}

// Config wires a Server.
type Config struct {
	Listen    string
	Machine   *gate.Machine
	Store     *session.Store
	Updates   *bridge.Queue
	Frames    *vision.FrameQueue
	Events    *vision.EventQueue
	Analyzer  *vision.Analyzer
	Threats   *record.Store
	Directory *directory.Directory
	Webhooks  *notify.Dispatcher
	// EventPoll is the event pump's wake interval.
	EventPoll time.Duration
	// CaptureInterval is the frame-upload cadence advertised to kiosks.
	CaptureInterval time.Duration
}

// New creates the transport layer.
func New(cfg Config) *Server {
	if cfg.EventPoll <= 0 {
		cfg.EventPoll = 100 * time.Millisecond
	}
	if cfg.CaptureInterval <= 0 {
		cfg.CaptureInterval = 2 * time.Second
	}
	return &Server{
		listen:    cfg.Listen,
		machine:   cfg.Machine,
		store:     cfg.Store,
		updates:   cfg.Updates,
		frames:    cfg.Frames,
		events:    cfg.Events,
		analyzer:  cfg.Analyzer,
		threats:   cfg.Threats,
		directory: cfg.Directory,
		webhooks:  cfg.Webhooks,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		eventPoll:   cfg.EventPoll,
		captureHint: cfg.CaptureInterval,
		conns:       make(map[string]*conn),
		logger:      log.WithComponent("server"),
	}
}

// Handler returns the HTTP mux: /ws, /healthz, /metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.wsHandler)
	mux.HandleFunc("/healthz", s.healthz)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Run serves until ctx is canceled. The event pump runs alongside the
// HTTP listener.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.pumpEvents(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("listen", s.listen).Msg("server started")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		s.logger.Info().Msg("server stopped")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","sessions":%d}`, s.store.Len())
}

func (s *Server) conn(sessionID string) (*conn, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conns[sessionID]
	return c, ok
}

func (s *Server) register(c *conn) {
	s.mu.Lock()
	s.conns[c.sessionID] = c
	s.mu.Unlock()
}

func (s *Server) unregister(c *conn) {
	s.mu.Lock()
	delete(s.conns, c.sessionID)
	s.mu.Unlock()
}
