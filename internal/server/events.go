package server

import (
	"context"
	"time"

	"github.com/ppiankov/gatewarden/internal/metrics"
	"github.com/ppiankov/gatewarden/internal/notify"
	"github.com/ppiankov/gatewarden/internal/vision"
)

const (
	eventBatchSize = 5
	// escalationPrompt is the synthetic input that forces a decision
	// turn when the camera raises an escalation and the visitor is
	// silent.
	escalationPrompt = "I am here to visit someone"
	// msgNoFace nudges a visitor who drifted out of frame.
	msgNoFace = "Please position yourself in front of the camera."
)

// pumpEvents drains vision pipeline events and turns them into kiosk
// messages and side effects.
func (s *Server) pumpEvents(ctx context.Context) {
	ticker := time.NewTicker(s.eventPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, e := range s.events.PollBatch(eventBatchSize) {
				s.handleEvent(ctx, e)
			}
		}
	}
}

func (s *Server) handleEvent(ctx context.Context, e vision.Event) {
	switch e.Type {
	case vision.EventNoFace:
		// Deactivation itself arrives through the bridge; the kiosk
		// still gets a nudge to reposition the visitor.
		if c, ok := s.conn(e.SessionID); ok {
			_ = c.write(WSMessage{Type: "camera_instruction", Content: msgNoFace})
		}
	case vision.EventEscalate:
		s.escalate(ctx, e)
	}
}

// escalate alerts security and forces a decision turn on the session so
// the kiosk shows an instruction even if the visitor said nothing.
func (s *Server) escalate(ctx context.Context, e vision.Event) {
	if s.webhooks != nil {
		s.webhooks.Dispatch(notify.WebhookEvent{
			SessionID:   e.SessionID,
			Kind:        "escalate",
			ThreatLevel: string(e.Schema.ThreatLevel),
			Details:     e.Schema.Details,
		})
	}

	c, ok := s.conn(e.SessionID)
	if !ok {
		return
	}
	c.tmu.Lock()
	defer c.tmu.Unlock()

	res, err := s.machine.Turn(ctx, e.SessionID, escalationPrompt)
	if err != nil {
		s.logger.Error().Err(err).Str("session", e.SessionID).Msg("escalation turn failed")
		return
	}
	out := WSMessage{Type: "camera_instruction", Content: res.Reply}
	if res.Complete {
		out.Decision = string(res.Decision)
		out.Confidence = res.Confidence
		metrics.Decisions.WithLabelValues(string(res.Decision)).Inc()
	}
	_ = c.write(out)
}

// SessionActivated implements bridge.Sink: greet the arriving visitor
// exactly once per activation edge.
func (s *Server) SessionActivated(sessionID string) {
	c, ok := s.conn(sessionID)
	if !ok {
		return
	}
	active := true
	_ = c.write(WSMessage{Type: "session_update", Active: &active})
	_ = c.write(WSMessage{Type: "chat_response", Content: msgWelcome})
}

// SessionDeactivated implements bridge.Sink: say goodbye and clear the
// session's threat log. The session state was already reset by the
// bridge worker.
func (s *Server) SessionDeactivated(sessionID string) {
	if s.threats != nil {
		_ = s.threats.Clear(sessionID)
	}
	c, ok := s.conn(sessionID)
	if !ok {
		return
	}
	active := false
	_ = c.write(WSMessage{Type: "session_update", Active: &active})
	_ = c.write(WSMessage{Type: "chat_response", Content: msgFarewell})
}
