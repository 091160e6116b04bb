package session

import (
	"github.com/ppiankov/gatewarden/internal/profile"
)

// Role tags a message in the conversation log.
type Role string

const (
	RoleSystem Role = "system"
	RoleHuman  Role = "human"
	RoleAgent  Role = "agent"
)

// Message is one entry in a session's conversation log.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Preamble is the system message that opens every session.
const Preamble = "You are a helpful assistant at the gate. Ask necessary questions and decide on access."

// Decision is the access outcome for a completed cycle.
type Decision string

const (
	DecisionNone         Decision = ""
	DecisionAllow        Decision = "allow_request"
	DecisionCallSecurity Decision = "call_security"
	DecisionDeny         Decision = "deny_request"
)

// Valid reports whether d is one of the recognized outcomes.
func (d Decision) Valid() bool {
	switch d {
	case DecisionAllow, DecisionCallSecurity, DecisionDeny:
		return true
	}
	return false
}

// ThreatLevel grades the vision pipeline's threat assessment.
type ThreatLevel string

const (
	ThreatLow    ThreatLevel = "low"
	ThreatMedium ThreatLevel = "medium"
	ThreatHigh   ThreatLevel = "high"
)

// VisionSchema is the validated output of one analyzed camera frame.
// It is written through the bridge and retained until overwritten.
type VisionSchema struct {
	FaceDetected    bool        `json:"face_detected"`
	AngryFace       bool        `json:"angry_face"`
	DangerousObject bool        `json:"dangerous_object"`
	ThreatLevel     ThreatLevel `json:"threat_level"`
	Details         string      `json:"details"`
}

// State is the authoritative per-session record. It is owned by the Store
// and must only be mutated through Store.Update.
type State struct {
	ID       string
	Messages []Message
	Profile  profile.Profile

	Decision           Decision
	DecisionConfidence float64
	DecisionReasoning  string

	Vision *VisionSchema

	UserInput     string
	InvalidInput  bool
	SessionActive bool

	// CameraID associates the session with a checkpoint door/camera,
	// used for door authorization of authenticated employees.
	CameraID string
}

// NewState creates a session opened with the system preamble.
func NewState(id string) *State {
	return &State{
		ID:       id,
		Messages: []Message{{Role: RoleSystem, Content: Preamble}},
	}
}

// Append adds a message to the conversation log.
func (s *State) Append(role Role, content string) {
	s.Messages = append(s.Messages, Message{Role: role, Content: content})
}

// HumanMessages counts human entries in the log, used against the
// compaction threshold.
func (s *State) HumanMessages() int {
	n := 0
	for _, m := range s.Messages {
		if m.Role == RoleHuman {
			n++
		}
	}
	return n
}

// LastHuman returns the most recent human message content, or "".
func (s *State) LastHuman() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleHuman {
			return s.Messages[i].Content
		}
	}
	return ""
}

// Reset returns the session to intake-ready state: profile cleared,
// decision and vision dropped, history truncated to the preamble plus the
// optional carried message (the new visitor's opening line).
func (s *State) Reset(carry ...Message) {
	s.Profile.Reset()
	s.Decision = DecisionNone
	s.DecisionConfidence = 0
	s.DecisionReasoning = ""
	s.Vision = nil
	s.UserInput = ""
	s.InvalidInput = false

	msgs := make([]Message, 0, 1+len(carry))
	msgs = append(msgs, Message{Role: RoleSystem, Content: Preamble})
	msgs = append(msgs, carry...)
	s.Messages = msgs
}
