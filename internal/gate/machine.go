// Package gate drives one conversation turn end to end: intake, routing,
// history compaction, field extraction, contact validation, decisioning,
// and notification. The flow is an explicit finite-state machine: an
// enumerated state set and a driver loop stepping per-turn state until a
// terminal node.
package gate

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ppiankov/gatewarden/internal/compact"
	"github.com/ppiankov/gatewarden/internal/decision"
	"github.com/ppiankov/gatewarden/internal/log"
	"github.com/ppiankov/gatewarden/internal/profile"
	"github.com/ppiankov/gatewarden/internal/session"
)

// Language is the NLU capability surface the orchestrator consumes.
type Language interface {
	ValidateInput(ctx context.Context, input string) (bool, error)
	DetectNewVisitor(ctx context.Context, msgs []session.Message, latest string) (bool, error)
	ExtractField(ctx context.Context, field string, msgs []session.Message) (string, error)
	MatchContact(ctx context.Context, msgs []session.Message, known []string) (string, error)
}

// Contacts is the read-only directory view the orchestrator needs.
type Contacts interface {
	Match(candidate string) (string, bool)
	Email(name string) (string, bool)
	ContactNames() []string
}

// Notifier delivers the visitor-arrival notification.
type Notifier interface {
	Notify(ctx context.Context, contact, email, subject, body string) error
}

// Decider renders the access outcome for a session snapshot.
type Decider interface {
	Evaluate(ctx context.Context, st *session.State) decision.Result
}

// state enumerates the turn machine's nodes.
type state int

const (
	stateReceive state = iota
	stateValidate
	stateRoute
	stateReset
	stateCompact
	stateExtract
	stateContact
	stateAsk
	stateDecide
	stateNotify
	stateFinish
	stateEnd
)

// Visitor-facing reprompt for empty or irrelevant input.
const msgReprompt = "I didn't understand that. Please provide relevant information for your visit. I need to know your name, purpose of visit, company/organization, and any security-related information."

// TurnResult is what one completed turn reports to the transport.
type TurnResult struct {
	Reply      string
	Decision   session.Decision
	Confidence float64
	Reasoning  string
	Profile    map[string]any
	// Complete is true when the turn finished a full decision cycle.
	Complete bool
	// Invalid is true when the input was rejected before routing.
	Invalid bool
}

// Machine executes session turns. Turns for one session id must be
// serialized by the caller; the machine works on a snapshot and writes
// back only the conversation-owned fields, so bridge updates arriving
// mid-turn are never clobbered.
type Machine struct {
	store     *session.Store
	lang      Language
	contacts  Contacts
	compactor compact.Compactor
	decider   Decider
	notifier  Notifier

	// maxHuman is the human-message count that triggers compaction.
	maxHuman int
	logger   zerolog.Logger
}

// Config wires a Machine.
type Config struct {
	Store            *session.Store
	Language         Language
	Contacts         Contacts
	Compactor        compact.Compactor
	Decider          Decider
	Notifier         Notifier
	MaxHumanMessages int
}

// New creates a turn machine.
func New(cfg Config) *Machine {
	if cfg.MaxHumanMessages <= 0 {
		cfg.MaxHumanMessages = 10
	}
	return &Machine{
		store:     cfg.Store,
		lang:      cfg.Language,
		contacts:  cfg.Contacts,
		compactor: cfg.Compactor,
		decider:   cfg.Decider,
		notifier:  cfg.Notifier,
		maxHuman:  cfg.MaxHumanMessages,
		logger:    log.WithComponent("gate"),
	}
}

// turn carries per-turn scratch state through the driver loop.
type turn struct {
	input   string
	replies []string
	result  TurnResult
}

func (t *turn) say(msg string) {
	if msg != "" {
		t.replies = append(t.replies, msg)
	}
}

// Turn runs one full session turn. Returns session.ErrNotFound for
// unknown ids; every other failure degrades inside the machine and still
// produces a valid turn result.
func (m *Machine) Turn(ctx context.Context, id, input string) (TurnResult, error) {
	var st session.State
	if err := m.store.View(id, func(cp session.State) { st = cp }); err != nil {
		return TurnResult{}, err
	}

	t := &turn{input: input}
	st.UserInput = input
	st.InvalidInput = false

	for s := stateReceive; s != stateEnd; {
		s = m.step(ctx, s, &st, t)
	}

	t.result.Reply = strings.Join(t.replies, "\n")
	if !t.result.Complete {
		t.result.Profile = st.Profile.Snapshot()
	}

	// Write back only what the conversation owns. Vision schema,
	// activity flag, and camera binding belong to the bridge.
	err := m.store.Update(id, func(live *session.State) {
		// A deactivation edge landed mid-turn and already reset the
		// session; the stale snapshot must not resurrect it.
		if st.SessionActive && !live.SessionActive {
			return
		}
		live.Messages = st.Messages
		live.Profile = st.Profile
		live.Decision = st.Decision
		live.DecisionConfidence = st.DecisionConfidence
		live.DecisionReasoning = st.DecisionReasoning
		live.UserInput = st.UserInput
		live.InvalidInput = st.InvalidInput
	})
	if err != nil {
		return TurnResult{}, err
	}
	return t.result, nil
}

// step is the transition function: one node in, the next node out.
func (m *Machine) step(ctx context.Context, s state, st *session.State, t *turn) state {
	switch s {
	case stateReceive:
		return m.receive(st, t)
	case stateValidate:
		return m.validate(ctx, st, t)
	case stateRoute:
		return m.route(ctx, st, t)
	case stateReset:
		return m.reset(st)
	case stateCompact:
		return m.compact(ctx, st)
	case stateExtract:
		return m.extract(ctx, st)
	case stateContact:
		return m.contact(ctx, st)
	case stateAsk:
		return m.ask(st, t)
	case stateDecide:
		return m.decide(ctx, st, t)
	case stateNotify:
		return m.notify(ctx, st, t)
	case stateFinish:
		return m.finish(st, t)
	default:
		return stateEnd
	}
}

// receive rejects empty input before anything else runs.
func (m *Machine) receive(st *session.State, t *turn) state {
	if strings.TrimSpace(t.input) == "" {
		st.InvalidInput = true
		t.result.Invalid = true
		t.say(msgReprompt)
		return stateEnd
	}
	return stateValidate
}

// validate classifies input relevance. Fail-open: a capability failure
// must never lock a legitimate visitor out.
func (m *Machine) validate(ctx context.Context, st *session.State, t *turn) state {
	relevant, err := m.lang.ValidateInput(ctx, t.input)
	if err != nil {
		m.logger.Warn().Err(err).Str("session", st.ID).Msg("input validation failed, accepting input")
		relevant = true
	}
	if !relevant {
		st.InvalidInput = true
		t.result.Invalid = true
		t.say(msgReprompt)
		return stateEnd
	}
	st.Append(session.RoleHuman, t.input)
	return stateRoute
}

// route picks the turn's path. Order matters: invalid input, inactive
// session, camera-confirmed high threat, new visitor, context length.
func (m *Machine) route(ctx context.Context, st *session.State, t *turn) state {
	if st.InvalidInput {
		return stateEnd
	}
	if !st.SessionActive {
		return stateReset
	}
	if st.Vision != nil && st.Vision.ThreatLevel == session.ThreatHigh {
		m.logger.Warn().Str("session", st.ID).Msg("high camera threat, forcing decision")
		return stateDecide
	}

	isNew, err := m.lang.DetectNewVisitor(ctx, st.Messages, t.input)
	if err != nil {
		m.logger.Warn().Err(err).Str("session", st.ID).Msg("session detection failed, assuming same visitor")
		isNew = false
	}
	if isNew {
		return stateReset
	}

	if st.HumanMessages() > m.maxHuman {
		return stateCompact
	}
	return stateExtract
}

// reset clears the session for a new visitor, carrying the triggering
// message into the fresh history. Terminal for the turn.
func (m *Machine) reset(st *session.State) state {
	st.Reset(session.Message{Role: session.RoleHuman, Content: st.UserInput})
	m.logger.Info().Str("session", st.ID).Msg("conversation reset for new visitor")
	return stateEnd
}

// compact reduces history. A failed compaction leaves history untouched
// and the turn continues.
func (m *Machine) compact(ctx context.Context, st *session.State) state {
	out, err := m.compactor.Compact(ctx, st.Messages)
	if err != nil {
		m.logger.Warn().Err(err).Str("session", st.ID).Msg("compaction failed, keeping history")
		return stateExtract
	}
	m.logger.Info().Str("session", st.ID).Int("from", len(st.Messages)).Int("to", len(out)).
		Msg("history compacted")
	st.Messages = out
	return stateExtract
}

// extract fills profile fields from the transcript. Idempotent: fields
// already holding values are never re-queried. Contact person is handled
// by its own node.
func (m *Machine) extract(ctx context.Context, st *session.State) state {
	fields := []profile.FieldName{profile.Name, profile.Purpose, profile.ThreatLevel, profile.Affiliation}
	for _, field := range fields {
		if st.Profile.Field(field).IsSet() {
			continue
		}
		value, err := m.lang.ExtractField(ctx, string(field), st.Messages)
		if err != nil {
			m.logger.Warn().Err(err).Str("session", st.ID).Str("field", string(field)).
				Msg("extraction failed")
			st.Profile.MarkUnknown(field)
			continue
		}
		if value == "" {
			st.Profile.MarkUnknown(field)
			continue
		}
		st.Profile.Set(field, profile.Value(value))
		m.logger.Debug().Str("session", st.ID).Str("field", string(field)).Str("value", value).
			Msg("field extracted")
	}
	return stateContact
}

// contact extracts and validates the contact person against the
// directory. A candidate that does not resolve is discarded, never
// retried against a different capability.
func (m *Machine) contact(ctx context.Context, st *session.State) state {
	if st.Profile.ContactPerson.IsSet() {
		return m.afterContact(st)
	}

	candidate, err := m.lang.MatchContact(ctx, st.Messages, m.contacts.ContactNames())
	if err != nil {
		m.logger.Warn().Err(err).Str("session", st.ID).Msg("contact matching failed")
		st.Profile.MarkUnknown(profile.ContactPerson)
		return m.afterContact(st)
	}
	if candidate == "" {
		st.Profile.MarkUnknown(profile.ContactPerson)
		return m.afterContact(st)
	}

	canonical, ok := m.contacts.Match(candidate)
	if !ok {
		m.logger.Info().Str("session", st.ID).Str("candidate", candidate).
			Msg("contact not in directory, discarded")
		st.Profile.MarkUnknown(profile.ContactPerson)
		return m.afterContact(st)
	}

	st.Profile.Set(profile.ContactPerson, profile.Value(canonical))
	return m.afterContact(st)
}

func (m *Machine) afterContact(st *session.State) state {
	if st.Profile.Complete() {
		return stateDecide
	}
	return stateAsk
}

// ask requests the first missing field in fixed priority order and ends
// the turn.
func (m *Machine) ask(st *session.State, t *turn) state {
	field, ok := st.Profile.Missing()
	if !ok {
		// Completeness was just checked; reaching here means a logic
		// error upstream, fall back to a generic question.
		t.say("Can you tell me more about yourself?")
		st.Append(session.RoleAgent, "Can you tell me more about yourself?")
		return stateEnd
	}
	question := m.questionFor(field)
	st.Append(session.RoleAgent, question)
	t.say(question)
	return stateEnd
}

func (m *Machine) questionFor(field profile.FieldName) string {
	switch field {
	case profile.Name:
		return "What is your name?"
	case profile.Purpose:
		return "What is the purpose of your visit today?"
	case profile.ContactPerson:
		return fmt.Sprintf("Who is your contact? (Known contacts include: %s)",
			strings.Join(m.contacts.ContactNames(), ", "))
	case profile.ThreatLevel:
		return "Are you carrying any restricted items or have any security concerns I should know about?"
	case profile.Affiliation:
		return "What company or organization are you with?"
	}
	return "Can you tell me more about yourself?"
}

// decide renders the outcome and records it on the session.
func (m *Machine) decide(ctx context.Context, st *session.State, t *turn) state {
	res := m.decider.Evaluate(ctx, st)
	st.Decision = res.Decision
	st.DecisionConfidence = res.Confidence
	st.DecisionReasoning = res.Reasoning
	st.Append(session.RoleAgent, res.Message)
	t.say(res.Message)

	t.result.Decision = res.Decision
	t.result.Confidence = res.Confidence
	t.result.Reasoning = res.Reasoning

	m.logger.Info().Str("session", st.ID).Str("decision", string(res.Decision)).
		Float64("confidence", res.Confidence).Msg("decision rendered")

	if res.Decision == session.DecisionAllow && st.Profile.ContactPerson.IsSet() {
		return stateNotify
	}
	return stateFinish
}

// notify emails the contact person. Failure degrades to an apology and
// never aborts the cycle.
func (m *Machine) notify(ctx context.Context, st *session.State, t *turn) state {
	if m.notifier == nil {
		return stateFinish
	}
	contact := st.Profile.ContactPerson.Get()
	email, ok := m.contacts.Email(contact)
	if !ok {
		return stateFinish
	}

	visitor := st.Profile.Name.Get()
	subject := fmt.Sprintf("Visitor Arrival Notification - %s", visitor)
	body := fmt.Sprintf(`Hello %s,

This is an automated notification that your visitor has arrived:

Visitor Details:
- Name: %s
- Purpose: %s
- Affiliation: %s
- Status: Access Granted

The visitor has been cleared through security and is proceeding to the main entrance.

Best regards,
Security Gate System`, contact, visitor, st.Profile.Purpose.Get(), st.Profile.Affiliation.Get())

	if err := m.notifier.Notify(ctx, contact, email, subject, body); err != nil {
		m.logger.Warn().Err(err).Str("session", st.ID).Str("contact", contact).
			Msg("notification failed")
		apology := fmt.Sprintf("Could not send a notification to %s. Please contact them directly.", contact)
		st.Append(session.RoleAgent, apology)
		t.say(apology)
		return stateFinish
	}

	confirmation := fmt.Sprintf("A notification was sent to %s about your arrival.", contact)
	st.Append(session.RoleAgent, confirmation)
	t.say(confirmation)
	return stateFinish
}

// finish closes the decision cycle and returns the session to
// intake-ready state for the next visitor.
func (m *Machine) finish(st *session.State, t *turn) state {
	t.result.Complete = true
	t.result.Profile = st.Profile.Snapshot()
	st.Reset()
	return stateEnd
}
