package compact

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ppiankov/gatewarden/internal/session"
)

type stubSummarizer struct {
	summary string
	err     error
	calls   int
}

func (s *stubSummarizer) Summarize(context.Context, string) (string, error) {
	s.calls++
	return s.summary, s.err
}

func history(n int) []session.Message {
	msgs := []session.Message{{Role: session.RoleSystem, Content: session.Preamble}}
	for i := 1; i < n; i++ {
		role := session.RoleHuman
		if i%2 == 0 {
			role = session.RoleAgent
		}
		msgs = append(msgs, session.Message{Role: role, Content: fmt.Sprintf("message %d", i)})
	}
	return msgs
}

func TestShortenNoopBelowMinimum(t *testing.T) {
	c := NewShorten(8, 5)
	msgs := history(7)
	out, err := c.Compact(context.Background(), msgs)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != len(msgs) {
		t.Errorf("expected no-op below minimum, got %d messages", len(out))
	}
}

func TestShortenReducesLength(t *testing.T) {
	c := NewShorten(8, 5)
	for _, n := range []int{8, 12, 30} {
		msgs := history(n)
		out, err := c.Compact(context.Background(), msgs)
		if err != nil {
			t.Fatal(err)
		}
		if len(out) >= len(msgs) {
			t.Errorf("n=%d: output %d not shorter than input %d", n, len(out), len(msgs))
		}
		if out[0].Content != session.Preamble {
			t.Errorf("n=%d: preamble not preserved", n)
		}
		if out[1].Role != session.RoleSystem {
			t.Errorf("n=%d: missing elision marker", n)
		}
		if last := out[len(out)-1]; last != msgs[len(msgs)-1] {
			t.Errorf("n=%d: most recent message not preserved", n)
		}
	}
}

func TestShortenTinyHistoryIsNoop(t *testing.T) {
	c := NewShorten(1, 5)
	for _, n := range []int{1, 2, 3} {
		msgs := history(n)
		out, err := c.Compact(context.Background(), msgs)
		if err != nil {
			t.Fatal(err)
		}
		if len(out) != len(msgs) {
			t.Errorf("n=%d: expected no-op, got %d messages", n, len(out))
		}
	}
}

func TestSummarizeNoopBelowMinimum(t *testing.T) {
	s := &stubSummarizer{summary: "unused"}
	c := NewSummarize(8, s)
	out, err := c.Compact(context.Background(), history(7))
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 7 || s.calls != 0 {
		t.Error("expected no-op with no summarizer call below minimum")
	}
}

func TestSummarizeTinyHistoryIsNoop(t *testing.T) {
	s := &stubSummarizer{summary: "unused"}
	c := NewSummarize(2, s)
	for _, n := range []int{2, 3, 5} {
		msgs := history(n)
		out, err := c.Compact(context.Background(), msgs)
		if err != nil {
			t.Fatal(err)
		}
		if len(out) != len(msgs) || s.calls != 0 {
			t.Errorf("n=%d: expected no-op with no summarizer call", n)
		}
	}
}

func TestSummarizeFoldsMiddle(t *testing.T) {
	s := &stubSummarizer{summary: "visitor is John from FedEx delivering a package"}
	c := NewSummarize(8, s)
	msgs := history(12)

	out, err := c.Compact(context.Background(), msgs)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 6 {
		t.Fatalf("expected preamble + summary + 4 recent, got %d", len(out))
	}
	if out[0].Content != session.Preamble {
		t.Error("preamble not preserved")
	}
	if out[1].Role != session.RoleSystem || out[1].Content != "[CONVERSATION SUMMARY: visitor is John from FedEx delivering a package]" {
		t.Errorf("unexpected summary message: %+v", out[1])
	}
	for i, m := range msgs[len(msgs)-4:] {
		if out[2+i] != m {
			t.Errorf("recent message %d not preserved", i)
		}
	}
}

func TestSummarizeFailureLeavesHistoryUntouched(t *testing.T) {
	s := &stubSummarizer{err: errors.New("model offline")}
	c := NewSummarize(8, s)
	msgs := history(12)

	out, err := c.Compact(context.Background(), msgs)
	if err == nil {
		t.Fatal("expected error")
	}
	if len(out) != len(msgs) {
		t.Error("failed summarization must not mutate history")
	}
	for i := range msgs {
		if out[i] != msgs[i] {
			t.Fatalf("message %d changed on failure", i)
		}
	}
}

func TestNewSelectsStrategy(t *testing.T) {
	if _, err := New("shorten", 8, 5, nil); err != nil {
		t.Errorf("shorten: %v", err)
	}
	if _, err := New("summarize", 8, 5, &stubSummarizer{}); err != nil {
		t.Errorf("summarize: %v", err)
	}
	if _, err := New("amnesia", 8, 5, nil); err == nil {
		t.Error("expected error for unknown strategy")
	}
}
