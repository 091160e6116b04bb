// Package vision runs the camera analysis pipeline: bounded frame
// capture, latest-wins analysis, face-presence debouncing, and
// cooldown-gated security escalation.
package vision

import (
	"encoding/json"
	"fmt"

	"github.com/ppiankov/gatewarden/internal/session"
)

// Normalize parses a raw model response into a validated schema. Missing
// booleans default to false and a missing or unrecognized threat level
// defaults to low, so a sparse model answer never raises a false alarm.
func Normalize(raw json.RawMessage) (session.VisionSchema, error) {
	var parsed struct {
		FaceDetected    *bool  `json:"face_detected"`
		AngryFace       *bool  `json:"angry_face"`
		DangerousObject *bool  `json:"dangerous_object"`
		ThreatLevel     string `json:"threat_level"`
		Details         string `json:"details"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return session.VisionSchema{}, fmt.Errorf("vision response: %w", err)
	}

	schema := session.VisionSchema{
		ThreatLevel: session.ThreatLow,
		Details:     parsed.Details,
	}
	if parsed.FaceDetected != nil {
		schema.FaceDetected = *parsed.FaceDetected
	}
	if parsed.AngryFace != nil {
		schema.AngryFace = *parsed.AngryFace
	}
	if parsed.DangerousObject != nil {
		schema.DangerousObject = *parsed.DangerousObject
	}
	switch session.ThreatLevel(parsed.ThreatLevel) {
	case session.ThreatMedium:
		schema.ThreatLevel = session.ThreatMedium
	case session.ThreatHigh:
		schema.ThreatLevel = session.ThreatHigh
	}
	return schema, nil
}

// Escalates reports whether a frame's analysis warrants a security
// escalation: a dangerous object seen at high threat. Lesser signals
// still land in the threat log and steer the decision, without
// interrupting the conversation.
func Escalates(s session.VisionSchema) bool {
	return s.ThreatLevel == session.ThreatHigh && s.DangerousObject
}
