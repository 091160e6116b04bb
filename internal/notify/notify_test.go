package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/gatewarden/internal/config"
)

func TestMailerNilWhenUnconfigured(t *testing.T) {
	if m := NewMailer(config.SMTPConfig{}, ""); m != nil {
		t.Fatal("unconfigured mailer must be nil")
	}
	if m := NewMailer(config.SMTPConfig{Host: "smtp.example.com", Username: "gate@example.com"}, ""); m != nil {
		t.Fatal("mailer without a password must be nil")
	}
}

func TestMailerMessageFormat(t *testing.T) {
	m := NewMailer(config.SMTPConfig{
		Host:       "smtp.example.com",
		Port:       587,
		Username:   "gate@example.com",
		SenderName: "Security Gate System",
	}, "secret")
	if m == nil {
		t.Fatal("mailer not created")
	}

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	m.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	err := m.Notify(context.Background(), "John Smith", "john@example.com",
		"Visitor Arrival Notification - Alice", "Alice has arrived.")
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if gotAddr != "smtp.example.com:587" {
		t.Fatalf("addr = %q", gotAddr)
	}
	if gotFrom != "gate@example.com" {
		t.Fatalf("envelope from = %q", gotFrom)
	}
	if len(gotTo) != 1 || gotTo[0] != "john@example.com" {
		t.Fatalf("to = %v", gotTo)
	}
	msg := string(gotMsg)
	if !strings.Contains(msg, "From: Security Gate System <gate@example.com>\r\n") {
		t.Fatalf("missing display-name From header:\n%s", msg)
	}
	if !strings.Contains(msg, "Subject: Visitor Arrival Notification - Alice\r\n") {
		t.Fatalf("missing subject:\n%s", msg)
	}
	if !strings.HasSuffix(msg, "\r\n\r\nAlice has arrived.") {
		t.Fatalf("body malformed:\n%s", msg)
	}
}

func TestMailerCanceledContext(t *testing.T) {
	m := NewMailer(config.SMTPConfig{Host: "smtp.example.com", Port: 587, Username: "u"}, "p")
	m.send = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("send must not run on a canceled context")
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Notify(ctx, "c", "c@example.com", "s", "b"); err == nil {
		t.Fatal("expected context error")
	}
}

func TestDispatcherMatchesKind(t *testing.T) {
	received := make(chan WebhookEvent, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var e WebhookEvent
		if err := json.Unmarshal(body, &e); err != nil {
			t.Errorf("bad payload: %v", err)
		}
		received <- e
	}))
	defer srv.Close()

	d := NewDispatcher([]config.WebhookConfig{
		{URL: srv.URL, Events: []string{"escalate"}},
	})
	d.Dispatch(WebhookEvent{SessionID: "s1", Kind: "escalate", ThreatLevel: "high"})
	d.Dispatch(WebhookEvent{SessionID: "s1", Kind: "deny_request"})

	select {
	case e := <-received:
		if e.Kind != "escalate" || e.Timestamp == "" {
			t.Fatalf("payload = %+v", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("matching event not delivered")
	}
	select {
	case e := <-received:
		t.Fatalf("non-matching event delivered: %+v", e)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestDispatcherEmptyEventsSubscribesAll(t *testing.T) {
	received := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received <- struct{}{}
	}))
	defer srv.Close()

	d := NewDispatcher([]config.WebhookConfig{{URL: srv.URL}})
	d.Dispatch(WebhookEvent{SessionID: "s1", Kind: "call_security"})

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestDispatcherNilWhenEmpty(t *testing.T) {
	if d := NewDispatcher(nil); d != nil {
		t.Fatal("dispatcher without targets must be nil")
	}
}

func TestSendRetriesServerErrors(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := send(srv.URL, WebhookEvent{Kind: "escalate"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestSendStopsOnClientError(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	if err := send(srv.URL, WebhookEvent{Kind: "escalate"}); err == nil {
		t.Fatal("expected rejection error")
	}
	if calls != 1 {
		t.Fatalf("4xx must not retry, calls = %d", calls)
	}
}
