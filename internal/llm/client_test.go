package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ppiankov/gatewarden/internal/session"
)

// fakeEndpoint returns a server that answers every chat completion with
// the given assistant content.
func fakeEndpoint(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func clientFor(srv *httptest.Server) *Client {
	return New(Config{APIURL: srv.URL})
}

func TestStripThinking(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"<think>reasoning here</think>\nlow", "low"},
		{"plain answer", "plain answer"},
		{"  padded  ", "padded"},
	}
	for _, c := range cases {
		if got := stripThinking(c.in); got != c.want {
			t.Errorf("stripThinking(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestCleanExtraction(t *testing.T) {
	cases := []struct {
		in, field, want string
	}{
		{"name: John Smith", "name", "John Smith"},
		{"Answer: meeting", "purpose", "meeting"},
		{"\"Google\"", "affiliation", "Google"},
		{"the visitor is from University of XYZ", "affiliation", "University of XYZ"},
		{"-1", "name", "-1"},
	}
	for _, c := range cases {
		if got := cleanExtraction(c.in, c.field); got != c.want {
			t.Errorf("cleanExtraction(%q, %q) = %q, want %q", c.in, c.field, got, c.want)
		}
	}
}

func TestExtractObjectFromFencedResponse(t *testing.T) {
	raw, err := extractObject("```json\n{\"decision\":\"deny_request\"}\n```")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var m map[string]string
	if err := json.Unmarshal(raw, &m); err != nil || m["decision"] != "deny_request" {
		t.Errorf("bad object: %s err=%v", raw, err)
	}
}

func TestExtractObjectRejectsProse(t *testing.T) {
	if _, err := extractObject("I cannot help with that."); err == nil {
		t.Error("expected error for non-JSON response")
	}
}

func TestValidateInput(t *testing.T) {
	srv := fakeEndpoint(t, "unrelated")
	defer srv.Close()
	ok, err := clientFor(srv).ValidateInput(context.Background(), "asdfghjkl")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected unrelated input rejected")
	}
}

func TestValidateInputUnclearDefaultsValid(t *testing.T) {
	srv := fakeEndpoint(t, "hmm, hard to say")
	defer srv.Close()
	ok, err := clientFor(srv).ValidateInput(context.Background(), "I'm here for the tour")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("unclear validation must default to valid")
	}
}

func TestDetectNewVisitorBiasedToSame(t *testing.T) {
	srv := fakeEndpoint(t, "could be new, probably same")
	defer srv.Close()
	isNew, err := clientFor(srv).DetectNewVisitor(context.Background(), nil, "hello again")
	if err != nil {
		t.Fatal(err)
	}
	if isNew {
		t.Error("ambiguous answer must not report a new visitor")
	}
}

func TestExtractFieldSentinel(t *testing.T) {
	srv := fakeEndpoint(t, "-1")
	defer srv.Close()
	value, err := clientFor(srv).ExtractField(context.Background(), "name", []session.Message{
		{Role: session.RoleHuman, Content: "hello"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if value != "" {
		t.Errorf("sentinel must map to empty value, got %q", value)
	}
}

func TestExtractFieldUnknownField(t *testing.T) {
	srv := fakeEndpoint(t, "whatever")
	defer srv.Close()
	if _, err := clientFor(srv).ExtractField(context.Background(), "shoe_size", nil); err == nil {
		t.Error("expected error for undescribed field")
	}
}

func TestDecideParsesOutcome(t *testing.T) {
	srv := fakeEndpoint(t, `{"decision":"ALLOW_REQUEST","confidence":1.4,"reasoning":"credentials check out"}`)
	defer srv.Close()
	outcome, err := clientFor(srv).Decide(context.Background(), "profile", "conversation")
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Decision != "allow_request" {
		t.Errorf("decision not normalized: %q", outcome.Decision)
	}
	if outcome.Confidence != 1 {
		t.Errorf("confidence not clamped: %v", outcome.Confidence)
	}
}

func TestDecideMalformed(t *testing.T) {
	srv := fakeEndpoint(t, "access granted, have a nice day")
	defer srv.Close()
	if _, err := clientFor(srv).Decide(context.Background(), "p", "c"); err == nil {
		t.Error("expected parse error for prose decision")
	}
}

func TestAnalyzeFrameSendsMultimodal(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": `{"face_detected":true,"threat_level":"low"}`}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	raw, err := clientFor(srv).AnalyzeFrame(context.Background(), "aGVsbG8=")
	if err != nil {
		t.Fatal(err)
	}
	var schema map[string]any
	if err := json.Unmarshal(raw, &schema); err != nil || schema["face_detected"] != true {
		t.Errorf("bad schema: %s err=%v", raw, err)
	}

	msgs, _ := gotBody["messages"].([]any)
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	first, _ := msgs[0].(map[string]any)
	parts, _ := first["content"].([]any)
	if len(parts) != 2 {
		t.Errorf("expected image + text parts, got %d", len(parts))
	}
}

func TestTranscript(t *testing.T) {
	got := Transcript([]session.Message{
		{Role: session.RoleSystem, Content: "preamble"},
		{Role: session.RoleHuman, Content: "hi"},
	})
	want := "system: preamble\nhuman: hi"
	if got != want {
		t.Errorf("Transcript = %q, want %q", got, want)
	}
}
