// Package decision renders the access outcome for a session. Rules run in
// strict priority: camera-confirmed high threat, then authenticated
// employee door checks, then LLM classification with a fail-closed
// default.
package decision

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/gatewarden/internal/llm"
	"github.com/ppiankov/gatewarden/internal/log"
	"github.com/ppiankov/gatewarden/internal/session"
)

// recentWindow is how many trailing messages the classifier sees.
const recentWindow = 10

// Visitor-facing messages per outcome.
const (
	msgAllow        = "Access granted. Welcome! Please proceed to the main entrance."
	msgCallSecurity = "Please wait here. Security has been notified and will assist you shortly."
	msgDeny         = "Access denied. Please contact the appropriate department to arrange your visit."
	msgFallback     = "I cannot process your request at this time. Please contact reception for assistance."
	msgWrongDoor    = "This entrance is not on your access list. Please use one of your authorized doors or contact security."
)

// Classifier is the external capability the engine falls back to when no
// deterministic rule applies.
type Classifier interface {
	Decide(ctx context.Context, profileSummary, conversation string) (llm.Outcome, error)
}

// Doors answers employee authorization questions.
type Doors interface {
	AuthorizeDoor(name, doorID string) bool
	Greeting(name string) string
}

// Result is a rendered access outcome.
type Result struct {
	Decision   session.Decision
	Confidence float64
	Reasoning  string
	// Message is the visitor-facing line for this outcome.
	Message string
}

// Engine evaluates sessions into access outcomes.
type Engine struct {
	classifier Classifier
	doors      Doors
}

// NewEngine creates a decision engine. doors may be nil when employee
// authentication is disabled.
func NewEngine(classifier Classifier, doors Doors) *Engine {
	return &Engine{classifier: classifier, doors: doors}
}

// Evaluate renders the outcome for the session snapshot.
// Never returns an error: every failure path degrades to deny_request.
func (e *Engine) Evaluate(ctx context.Context, st *session.State) Result {
	// Camera-confirmed high threat short-circuits everything.
	if st.Vision != nil && st.Vision.ThreatLevel == session.ThreatHigh {
		return Result{
			Decision:   session.DecisionCallSecurity,
			Confidence: 1,
			Reasoning:  "camera assessment reported a high threat level",
			Message:    msgCallSecurity,
		}
	}

	// Authenticated employees bypass classification: the only question is
	// whether this door is on their list.
	if st.Profile.Authenticated && e.doors != nil {
		name := st.Profile.EmployeeName
		if e.doors.AuthorizeDoor(name, st.CameraID) {
			msg := e.doors.Greeting(name)
			if msg == "" {
				msg = msgAllow
			}
			return Result{
				Decision:   session.DecisionAllow,
				Confidence: 1,
				Reasoning:  fmt.Sprintf("employee %s authorized for door %s", name, st.CameraID),
				Message:    msg,
			}
		}
		return Result{
			Decision:   session.DecisionDeny,
			Confidence: 1,
			Reasoning:  fmt.Sprintf("employee %s not authorized for door %s", name, st.CameraID),
			Message:    msgWrongDoor,
		}
	}

	return e.classify(ctx, st)
}

func (e *Engine) classify(ctx context.Context, st *session.State) Result {
	recent := st.Messages
	if len(recent) > recentWindow {
		recent = recent[len(recent)-recentWindow:]
	}

	outcome, err := e.classifier.Decide(ctx, profileSummary(st), llm.Transcript(recent))
	if err != nil {
		logger := log.WithComponent("decision")
		logger.Warn().Err(err).Str("session", st.ID).
			Msg("classification failed, denying")
		return failClosed("classification unavailable")
	}

	decision := session.Decision(outcome.Decision)
	if !decision.Valid() {
		logger := log.WithComponent("decision")
		logger.Warn().Str("session", st.ID).
			Str("decision", outcome.Decision).Msg("unknown decision value, denying")
		return failClosed("classifier returned an unknown decision")
	}

	return Result{
		Decision:   decision,
		Confidence: outcome.Confidence,
		Reasoning:  outcome.Reasoning,
		Message:    messageFor(decision),
	}
}

func failClosed(reason string) Result {
	return Result{
		Decision:   session.DecisionDeny,
		Confidence: 0,
		Reasoning:  reason,
		Message:    msgFallback,
	}
}

func messageFor(d session.Decision) string {
	switch d {
	case session.DecisionAllow:
		return msgAllow
	case session.DecisionCallSecurity:
		return msgCallSecurity
	default:
		return msgDeny
	}
}

// profileSummary renders the profile for the decision prompt.
func profileSummary(st *session.State) string {
	p := &st.Profile
	var b strings.Builder
	fmt.Fprintf(&b, "- Name: %s\n", p.Name)
	fmt.Fprintf(&b, "- Purpose: %s\n", p.Purpose)
	fmt.Fprintf(&b, "- Contact Person: %s\n", p.ContactPerson)
	fmt.Fprintf(&b, "- Threat Level: %s\n", p.ThreatLevel)
	fmt.Fprintf(&b, "- Affiliation: %s\n", p.Affiliation)
	fmt.Fprintf(&b, "- ID Verified: %v", p.IDVerified)
	return b.String()
}
