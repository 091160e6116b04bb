package session

import (
	"errors"
	"testing"

	"github.com/ppiankov/gatewarden/internal/profile"
)

func TestNewStateOpensWithPreamble(t *testing.T) {
	st := NewState("s1")
	if len(st.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(st.Messages))
	}
	if st.Messages[0].Role != RoleSystem || st.Messages[0].Content != Preamble {
		t.Error("expected system preamble as first message")
	}
}

func TestHumanMessages(t *testing.T) {
	st := NewState("s1")
	st.Append(RoleHuman, "hi")
	st.Append(RoleAgent, "hello")
	st.Append(RoleHuman, "I'm here for a tour")
	if got := st.HumanMessages(); got != 2 {
		t.Errorf("expected 2 human messages, got %d", got)
	}
}

func TestResetTruncatesToPreamblePlusCarry(t *testing.T) {
	st := NewState("s1")
	st.Append(RoleHuman, "Hi, I'm Bob")
	st.Append(RoleAgent, "What is your purpose?")
	st.Profile.Set(profile.Name, profile.Value("Bob Stone"))
	st.Decision = DecisionAllow
	st.Vision = &VisionSchema{FaceDetected: true, ThreatLevel: ThreatLow}

	carry := Message{Role: RoleHuman, Content: "Hi, I'm Alice"}
	st.Reset(carry)

	if len(st.Messages) != 2 {
		t.Fatalf("expected preamble + carried message, got %d messages", len(st.Messages))
	}
	if st.Messages[1] != carry {
		t.Error("expected triggering message carried through reset")
	}
	if st.Profile.Name.State() != profile.Unset {
		t.Error("profile must be all-Unset after reset")
	}
	if st.Decision != DecisionNone || st.Vision != nil {
		t.Error("decision and vision schema must be cleared")
	}
}

func TestResetPreservesSessionIdentity(t *testing.T) {
	st := NewState("s1")
	st.CameraID = "door-2"
	st.Reset()
	if st.ID != "s1" || st.CameraID != "door-2" {
		t.Error("reset must preserve session id and camera binding")
	}
}

func TestStoreUpdateUnknownSession(t *testing.T) {
	s := NewStore()
	err := s.Update("missing", func(*State) {})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreViewIsACopy(t *testing.T) {
	s := NewStore()
	s.Create("s1", "door-1")
	_ = s.Update("s1", func(st *State) {
		st.Append(RoleHuman, "hello")
	})

	_ = s.View("s1", func(cp State) {
		cp.Messages[0].Content = "tampered"
		cp.Profile.Set(profile.Name, profile.Value("Eve"))
	})

	_ = s.View("s1", func(cp State) {
		if cp.Messages[0].Content != Preamble {
			t.Error("View copy mutation leaked into store")
		}
		if cp.Profile.Name.IsSet() {
			t.Error("View profile mutation leaked into store")
		}
	})
}

func TestStoreCreateReplaces(t *testing.T) {
	s := NewStore()
	s.Create("s1", "door-1")
	_ = s.Update("s1", func(st *State) { st.Append(RoleHuman, "old") })
	s.Create("s1", "door-9")
	_ = s.View("s1", func(cp State) {
		if len(cp.Messages) != 1 || cp.CameraID != "door-9" {
			t.Error("Create must replace existing session state")
		}
	})
}

func TestStoreActive(t *testing.T) {
	s := NewStore()
	if s.Active("nope") {
		t.Error("unknown session cannot be active")
	}
	s.Create("s1", "")
	_ = s.Update("s1", func(st *State) { st.SessionActive = true })
	if !s.Active("s1") {
		t.Error("expected active session")
	}
}
