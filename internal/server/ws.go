package server

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ppiankov/gatewarden/internal/bridge"
	"github.com/ppiankov/gatewarden/internal/metrics"
	"github.com/ppiankov/gatewarden/internal/notify"
	"github.com/ppiankov/gatewarden/internal/session"
	"github.com/ppiankov/gatewarden/internal/vision"
)

// WSMessage is the wire frame in both directions.
type WSMessage struct {
	Type       string         `json:"type"`
	Content    string         `json:"content,omitempty"`
	Image      string         `json:"image,omitempty"` // base64 JPEG
	Employee   string         `json:"employee,omitempty"`
	SessionID  string         `json:"session_id,omitempty"`
	FrameID    string         `json:"frame_id,omitempty"`
	Decision   string         `json:"decision,omitempty"`
	Confidence float64        `json:"confidence,omitempty"`
	Active     *bool          `json:"active,omitempty"`
	Profile    map[string]any `json:"profile,omitempty"`
	Entries    any            `json:"entries,omitempty"`
	Error      string         `json:"error,omitempty"`
	// CaptureMS tells the kiosk how often to upload camera frames.
	CaptureMS int64 `json:"capture_interval_ms,omitempty"`
}

// conn is one kiosk connection. Writes are serialized by wmu (gorilla
// allows a single concurrent writer); turns by tmu, so a synthetic
// escalation turn never interleaves with a visitor turn.
type conn struct {
	ws        *websocket.Conn
	sessionID string
	cameraID  string
	wmu       sync.Mutex
	tmu       sync.Mutex
}

func (c *conn) write(msg WSMessage) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.ws.WriteJSON(msg)
}

func (s *Server) wsHandler(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	cameraID := r.URL.Query().Get("camera_id")

	c := &conn{ws: ws, sessionID: sessionID, cameraID: cameraID}
	s.store.Create(sessionID, cameraID)
	s.register(c)
	s.logger.Info().Str("session", sessionID).Str("camera", cameraID).Msg("kiosk connected")

	defer func() {
		s.unregister(c)
		ws.Close()
		s.store.Remove(sessionID)
		if s.analyzer != nil {
			s.analyzer.Forget(sessionID)
		}
		if s.threats != nil {
			_ = s.threats.Clear(sessionID)
		}
		s.logger.Info().Str("session", sessionID).Msg("kiosk disconnected")
	}()

	_ = c.write(WSMessage{
		Type:      "session_ready",
		SessionID: sessionID,
		CaptureMS: s.captureHint.Milliseconds(),
	})

	for {
		var msg WSMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug().Err(err).Str("session", sessionID).Msg("websocket read ended")
			}
			return
		}
		s.handle(r.Context(), c, msg)
	}
}

func (s *Server) handle(ctx context.Context, c *conn, msg WSMessage) {
	switch msg.Type {
	case "message":
		s.handleMessage(ctx, c, msg.Content)
	case "get_profile":
		s.handleGetProfile(c)
	case "upload_image":
		s.handleUpload(c, msg.Image)
	case "get_threat_log":
		s.handleThreatLog(c)
	case "authenticate":
		s.handleAuthenticate(c, msg.Employee)
	default:
		_ = c.write(WSMessage{Type: "error", Error: "unknown message type: " + msg.Type})
	}
}

// handleMessage runs one conversation turn.
func (s *Server) handleMessage(ctx context.Context, c *conn, content string) {
	c.tmu.Lock()
	defer c.tmu.Unlock()

	start := time.Now()
	res, err := s.machine.Turn(ctx, c.sessionID, content)
	metrics.TurnDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			_ = c.write(WSMessage{Type: "error", Error: "session not found"})
			return
		}
		s.logger.Error().Err(err).Str("session", c.sessionID).Msg("turn failed")
		_ = c.write(WSMessage{Type: "error", Error: "internal error"})
		return
	}

	out := WSMessage{
		Type:    "chat_response",
		Content: res.Reply,
		Profile: res.Profile,
	}
	if res.Complete {
		out.Decision = string(res.Decision)
		out.Confidence = res.Confidence
		metrics.Decisions.WithLabelValues(string(res.Decision)).Inc()
		if s.webhooks != nil && res.Decision != session.DecisionAllow {
			s.webhooks.Dispatch(notify.WebhookEventFor(c.sessionID, c.cameraID, string(res.Decision), res.Reasoning))
		}
	}
	_ = c.write(out)
}

func (s *Server) handleGetProfile(c *conn) {
	var snap map[string]any
	err := s.store.View(c.sessionID, func(st session.State) {
		snap = st.Profile.Snapshot()
	})
	if err != nil {
		_ = c.write(WSMessage{Type: "error", Error: "session not found"})
		return
	}
	_ = c.write(WSMessage{Type: "profile_data", Profile: snap})
}

// handleUpload feeds one kiosk-captured frame into the vision pipeline.
func (s *Server) handleUpload(c *conn, image string) {
	jpeg, err := base64.StdEncoding.DecodeString(image)
	if err != nil || len(jpeg) == 0 {
		_ = c.write(WSMessage{Type: "error", Error: "invalid image payload"})
		return
	}
	frame := vision.Offer(s.frames, c.sessionID, c.cameraID, jpeg)
	_ = c.write(WSMessage{Type: "image_received", FrameID: frame.ID})
}

func (s *Server) handleThreatLog(c *conn) {
	if s.threats == nil {
		_ = c.write(WSMessage{Type: "threat_log"})
		return
	}
	_ = c.write(WSMessage{Type: "threat_log", Entries: s.threats.Entries(c.sessionID)})
}

// handleAuthenticate verifies a badge-scanned employee name against the
// employee roster and, when known, marks the session authenticated
// through the bridge.
func (s *Server) handleAuthenticate(c *conn, name string) {
	if s.directory == nil || !s.directory.Authenticate(name) {
		_ = c.write(WSMessage{Type: "auth_result", Error: "unknown employee"})
		return
	}
	authn := true
	s.updates.Publish(bridge.Update{
		SessionID:     c.sessionID,
		Authenticated: &authn,
		EmployeeName:  name,
	})
	_ = c.write(WSMessage{Type: "auth_result", Content: s.directory.Greeting(name)})
}
