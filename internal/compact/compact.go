// Package compact reduces conversation history once it outgrows the
// configured threshold. Two interchangeable strategies: Shorten drops the
// middle for free, Summarize folds it into one synthetic system message.
package compact

import (
	"context"
	"fmt"

	"github.com/ppiankov/gatewarden/internal/llm"
	"github.com/ppiankov/gatewarden/internal/session"
)

// DefaultMinMessages is the floor below which compaction is a no-op.
const DefaultMinMessages = 8

// summarizeKeepRecent is how many trailing messages Summarize preserves.
const summarizeKeepRecent = 4

// shortenMarker is inserted where history was dropped.
const shortenMarker = "[Earlier conversation removed to keep context short.]"

// Compactor reduces a message log. Implementations must never return a
// longer log than they were given, and must leave the input untouched on
// failure.
type Compactor interface {
	Compact(ctx context.Context, msgs []session.Message) ([]session.Message, error)
}

// Summarizer is the external capability Summarize depends on.
type Summarizer interface {
	Summarize(ctx context.Context, conversation string) (string, error)
}

// Shorten keeps the system preamble, an elision marker, and the last
// KeepRecent messages. No external calls.
type Shorten struct {
	MinMessages int
	KeepRecent  int
}

// NewShorten creates a Shorten strategy with validated bounds.
func NewShorten(minMessages, keepRecent int) *Shorten {
	if minMessages <= 0 {
		minMessages = DefaultMinMessages
	}
	if keepRecent <= 0 {
		keepRecent = 5
	}
	return &Shorten{MinMessages: minMessages, KeepRecent: keepRecent}
}

// Compact implements Compactor.
func (s *Shorten) Compact(_ context.Context, msgs []session.Message) ([]session.Message, error) {
	if len(msgs) < s.MinMessages {
		return msgs, nil
	}
	keep := s.KeepRecent
	// The marker plus preamble must still shrink the log.
	if keep > len(msgs)-3 {
		keep = len(msgs) - 3
	}
	// Too short to shrink, leave the log alone.
	if keep < 1 {
		return msgs, nil
	}

	out := make([]session.Message, 0, keep+2)
	out = append(out, preamble(msgs))
	out = append(out, session.Message{Role: session.RoleSystem, Content: shortenMarker})
	out = append(out, msgs[len(msgs)-keep:]...)
	return out, nil
}

// Summarize folds everything except the preamble and the trailing messages
// into one synthetic system summary. On summarizer failure the input is
// returned unchanged, no partial mutation.
type Summarize struct {
	MinMessages int
	Summarizer  Summarizer
}

// NewSummarize creates a Summarize strategy.
func NewSummarize(minMessages int, s Summarizer) *Summarize {
	if minMessages <= 0 {
		minMessages = DefaultMinMessages
	}
	return &Summarize{MinMessages: minMessages, Summarizer: s}
}

// Compact implements Compactor.
func (s *Summarize) Compact(ctx context.Context, msgs []session.Message) ([]session.Message, error) {
	if len(msgs) < s.MinMessages {
		return msgs, nil
	}
	// Need a preamble, a non-empty middle, and the recent window.
	if len(msgs) < summarizeKeepRecent+2 {
		return msgs, nil
	}

	recent := msgs[len(msgs)-summarizeKeepRecent:]
	middle := msgs[1 : len(msgs)-summarizeKeepRecent]

	summary, err := s.Summarizer.Summarize(ctx, llm.Transcript(middle))
	if err != nil {
		return msgs, fmt.Errorf("summarize history: %w", err)
	}

	out := make([]session.Message, 0, summarizeKeepRecent+2)
	out = append(out, preamble(msgs))
	out = append(out, session.Message{
		Role:    session.RoleSystem,
		Content: "[CONVERSATION SUMMARY: " + summary + "]",
	})
	out = append(out, recent...)
	return out, nil
}

// preamble returns the opening system message, falling back to a fresh
// preamble if the log somehow lost it.
func preamble(msgs []session.Message) session.Message {
	if len(msgs) > 0 && msgs[0].Role == session.RoleSystem {
		return msgs[0]
	}
	return session.Message{Role: session.RoleSystem, Content: session.Preamble}
}

// New selects a strategy by name ("shorten" or "summarize").
func New(strategy string, minMessages, keepRecent int, s Summarizer) (Compactor, error) {
	switch strategy {
	case "shorten":
		return NewShorten(minMessages, keepRecent), nil
	case "summarize":
		return NewSummarize(minMessages, s), nil
	default:
		return nil, fmt.Errorf("unknown compact strategy %q", strategy)
	}
}
