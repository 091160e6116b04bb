package vision

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ppiankov/gatewarden/internal/bridge"
	"github.com/ppiankov/gatewarden/internal/log"
	"github.com/ppiankov/gatewarden/internal/metrics"
	"github.com/ppiankov/gatewarden/internal/session"
)

// Model is the vision capability the analyzer consumes.
type Model interface {
	AnalyzeFrame(ctx context.Context, jpeg []byte) (json.RawMessage, error)
}

// ThreatLog persists noteworthy frame analyses for later retrieval.
type ThreatLog interface {
	Record(sessionID string, schema session.VisionSchema) error
}

// Analyzer is the frame queue's single consumer. Each loop iteration
// takes the newest buffered frame, runs the vision model, publishes the
// resulting state update, and raises pipeline events.
type Analyzer struct {
	frames   *FrameQueue
	events   *EventQueue
	updates  *bridge.Queue
	model    Model
	threats  ThreatLog
	cooldown *Cooldown

	mu      sync.Mutex
	windows map[string]*Window
	winSize int

	logger zerolog.Logger
}

// AnalyzerConfig wires an Analyzer.
type AnalyzerConfig struct {
	Frames  *FrameQueue
	Events  *EventQueue
	Updates *bridge.Queue
	Model   Model
	Threats ThreatLog
	// WindowSize is the face-presence debounce depth.
	WindowSize int
	// EscalationCooldown is the per-session minimum gap between
	// escalations.
	EscalationCooldown time.Duration
}

// NewAnalyzer creates the pipeline consumer.
func NewAnalyzer(cfg AnalyzerConfig) *Analyzer {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 4
	}
	return &Analyzer{
		frames:   cfg.Frames,
		events:   cfg.Events,
		updates:  cfg.Updates,
		model:    cfg.Model,
		threats:  cfg.Threats,
		cooldown: NewCooldown(cfg.EscalationCooldown),
		windows:  make(map[string]*Window),
		winSize:  cfg.WindowSize,
		logger:   log.WithComponent("vision"),
	}
}

// Run consumes frames until ctx is canceled. Single consumer.
func (a *Analyzer) Run(ctx context.Context) {
	a.logger.Info().Int("window", a.winSize).Msg("vision analyzer started")
	for {
		frame, skipped, err := a.frames.Next(ctx)
		if err != nil {
			a.logger.Info().Msg("vision analyzer stopped")
			return
		}
		if skipped > 0 {
			a.logger.Debug().Int("skipped", skipped).Str("session", frame.SessionID).
				Msg("stale frames skipped")
		}
		a.analyze(ctx, frame)
	}
}

func (a *Analyzer) analyze(ctx context.Context, frame Frame) {
	raw, err := a.model.AnalyzeFrame(ctx, frame.JPEG)
	if err != nil {
		a.logger.Warn().Err(err).Str("frame", frame.ID).Msg("frame analysis failed")
		return
	}
	schema, err := Normalize(raw)
	if err != nil {
		a.logger.Warn().Err(err).Str("frame", frame.ID).Msg("unparseable vision response")
		return
	}
	metrics.FramesAnalyzed.Inc()

	update := bridge.Update{SessionID: frame.SessionID, Schema: &schema}
	if schema.FaceDetected {
		active := true
		update.Active = &active
	}
	a.updates.Publish(update)

	if a.window(frame.SessionID).Observe(schema.FaceDetected) {
		inactive := false
		a.updates.Publish(bridge.Update{SessionID: frame.SessionID, Active: &inactive})
		a.events.Publish(Event{Type: EventNoFace, SessionID: frame.SessionID, Schema: schema, At: time.Now()})
		a.cooldown.Forget(frame.SessionID)
		a.logger.Info().Str("session", frame.SessionID).Msg("visitor left camera view")
	}

	if a.threats != nil && (schema.AngryFace || schema.DangerousObject || schema.ThreatLevel != session.ThreatLow) {
		if err := a.threats.Record(frame.SessionID, schema); err != nil {
			a.logger.Warn().Err(err).Str("session", frame.SessionID).Msg("threat log append failed")
		}
	}

	if Escalates(schema) && a.cooldown.Allow(frame.SessionID) {
		metrics.Escalations.Inc()
		a.events.Publish(Event{Type: EventEscalate, SessionID: frame.SessionID, Schema: schema, At: time.Now()})
		a.logger.Warn().Str("session", frame.SessionID).Str("threat", string(schema.ThreatLevel)).
			Bool("dangerous_object", schema.DangerousObject).Msg("security escalation raised")
	}
}

func (a *Analyzer) window(sessionID string) *Window {
	a.mu.Lock()
	defer a.mu.Unlock()
	w, ok := a.windows[sessionID]
	if !ok {
		w = NewWindow(a.winSize)
		a.windows[sessionID] = w
	}
	return w
}

// Forget drops per-session pipeline state when a session is removed.
func (a *Analyzer) Forget(sessionID string) {
	a.mu.Lock()
	delete(a.windows, sessionID)
	a.mu.Unlock()
	a.cooldown.Forget(sessionID)
}
