package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ppiankov/gatewarden/internal/config"
	"github.com/ppiankov/gatewarden/internal/log"
)

const (
	requestTimeout = 5 * time.Second
	maxRetries     = 3
)

var httpClient = &http.Client{Timeout: requestTimeout}

// WebhookEvent is the payload posted to security endpoints.
type WebhookEvent struct {
	Timestamp   string `json:"timestamp"`
	SessionID   string `json:"session_id"`
	CameraID    string `json:"camera_id,omitempty"`
	Kind        string `json:"kind"` // "escalate", "call_security", "deny_request"
	ThreatLevel string `json:"threat_level,omitempty"`
	Details     string `json:"details,omitempty"`
}

// WebhookEventFor builds a decision-outcome payload.
func WebhookEventFor(sessionID, cameraID, kind, details string) WebhookEvent {
	return WebhookEvent{
		SessionID: sessionID,
		CameraID:  cameraID,
		Kind:      kind,
		Details:   details,
	}
}

// Dispatcher fans out events to matching webhook targets.
type Dispatcher struct {
	targets []config.WebhookConfig
}

// NewDispatcher creates a Dispatcher from webhook targets. Returns nil
// when none are configured (callers nil-check).
func NewDispatcher(targets []config.WebhookConfig) *Dispatcher {
	if len(targets) == 0 {
		return nil
	}
	return &Dispatcher{targets: targets}
}

// Dispatch posts the event to every target whose Events list matches
// its kind. Fires goroutines, does not block the caller.
func (d *Dispatcher) Dispatch(event WebhookEvent) {
	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	for _, target := range d.targets {
		if !matches(target.Events, event.Kind) {
			continue
		}
		url := target.URL
		go func() {
			if err := send(url, event); err != nil {
				logger := log.WithComponent("webhook")
				logger.Warn().Err(err).Str("kind", event.Kind).
					Msg("webhook delivery failed")
			}
		}()
	}
}

func matches(events []string, kind string) bool {
	// An empty list subscribes to everything.
	if len(events) == 0 {
		return true
	}
	for _, e := range events {
		if e == kind {
			return true
		}
	}
	return false
}

// send posts the event with retry on 5xx.
func send(url string, event WebhookEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * time.Second)
		}

		req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return fmt.Errorf("webhook rejected: HTTP %d", resp.StatusCode)
		}
		lastErr = fmt.Errorf("webhook server error: HTTP %d", resp.StatusCode)
	}
	return fmt.Errorf("webhook failed after %d attempts: %w", maxRetries, lastErr)
}
