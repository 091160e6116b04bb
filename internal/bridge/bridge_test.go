package bridge

import (
	"testing"

	"github.com/ppiankov/gatewarden/internal/session"
)

type recordingSink struct {
	activated   []string
	deactivated []string
}

func (r *recordingSink) SessionActivated(id string)   { r.activated = append(r.activated, id) }
func (r *recordingSink) SessionDeactivated(id string) { r.deactivated = append(r.deactivated, id) }

func boolPtr(b bool) *bool { return &b }

func newTestWorker(store *session.Store, q *Queue, sink Sink) *Worker {
	return NewWorker(WorkerConfig{Queue: q, Store: store, Sink: sink, MaxBatch: 10})
}

func TestQueueDropOldest(t *testing.T) {
	q := NewQueue(2)
	q.Publish(Update{SessionID: "a"})
	q.Publish(Update{SessionID: "b"})
	if ok := q.Publish(Update{SessionID: "c"}); ok {
		t.Fatal("expected eviction on full queue")
	}
	u, ok := q.poll()
	if !ok || u.SessionID != "b" {
		t.Fatalf("oldest must be evicted, head = %q", u.SessionID)
	}
	u, _ = q.poll()
	if u.SessionID != "c" {
		t.Fatalf("newest must survive, got %q", u.SessionID)
	}
}

func TestWorkerActivationEdgeFiresOnce(t *testing.T) {
	store := session.NewStore()
	store.Create("s1", "cam-1")
	sink := &recordingSink{}
	w := newTestWorker(store, NewQueue(10), sink)

	for i := 0; i < 3; i++ {
		w.Apply(Update{SessionID: "s1", Active: boolPtr(true)})
	}
	if len(sink.activated) != 1 {
		t.Fatalf("activation fired %d times, want 1", len(sink.activated))
	}
	if !store.Active("s1") {
		t.Fatal("session must be active")
	}
}

func TestWorkerDeactivationResetsSession(t *testing.T) {
	store := session.NewStore()
	store.Create("s1", "cam-1")
	sink := &recordingSink{}
	w := newTestWorker(store, NewQueue(10), sink)

	w.Apply(Update{SessionID: "s1", Active: boolPtr(true)})
	store.Update("s1", func(st *session.State) {
		st.Append(session.RoleHuman, "hello")
		st.Vision = &session.VisionSchema{FaceDetected: true, ThreatLevel: session.ThreatLow}
	})

	w.Apply(Update{SessionID: "s1", Active: boolPtr(false)})
	if len(sink.deactivated) != 1 {
		t.Fatalf("deactivation fired %d times, want 1", len(sink.deactivated))
	}
	store.View("s1", func(st session.State) {
		if st.SessionActive {
			t.Fatal("session must be inactive")
		}
		if len(st.Messages) != 1 {
			t.Fatalf("history must reset to preamble, got %d messages", len(st.Messages))
		}
		if st.Vision != nil {
			t.Fatal("vision schema must be cleared")
		}
	})
}

func TestWorkerAppliesSchemaWithoutEdge(t *testing.T) {
	store := session.NewStore()
	store.Create("s1", "cam-1")
	sink := &recordingSink{}
	w := newTestWorker(store, NewQueue(10), sink)

	w.Apply(Update{SessionID: "s1", Schema: &session.VisionSchema{
		FaceDetected: true,
		ThreatLevel:  session.ThreatMedium,
		Details:      "agitated visitor",
	}})
	if len(sink.activated)+len(sink.deactivated) != 0 {
		t.Fatal("schema-only update must not fire lifecycle edges")
	}
	store.View("s1", func(st session.State) {
		if st.Vision == nil || st.Vision.ThreatLevel != session.ThreatMedium {
			t.Fatal("schema not applied")
		}
	})
}

func TestWorkerAuthentication(t *testing.T) {
	store := session.NewStore()
	store.Create("s1", "cam-1")
	w := newTestWorker(store, NewQueue(10), nil)

	w.Apply(Update{SessionID: "s1", Authenticated: boolPtr(true), EmployeeName: "Jane Doe"})
	store.View("s1", func(st session.State) {
		if !st.Profile.Authenticated {
			t.Fatal("authenticated flag not set")
		}
		if st.Profile.EmployeeName != "Jane Doe" {
			t.Fatalf("employee name = %q", st.Profile.EmployeeName)
		}
		if st.Profile.Name.Get() != "Jane Doe" {
			t.Fatal("name field must be filled from the badge")
		}
	})
}

func TestWorkerUnknownSessionIgnored(t *testing.T) {
	w := newTestWorker(session.NewStore(), NewQueue(10), &recordingSink{})
	// Must not panic or fire edges.
	w.Apply(Update{SessionID: "ghost", Active: boolPtr(true)})
}

func TestWorkerBatchCap(t *testing.T) {
	store := session.NewStore()
	store.Create("s1", "cam-1")
	q := NewQueue(30)
	w := NewWorker(WorkerConfig{Queue: q, Store: store, MaxBatch: 10})

	for i := 0; i < 15; i++ {
		q.Publish(Update{SessionID: "s1", Schema: &session.VisionSchema{FaceDetected: true}})
	}
	w.drain()
	if got := q.Len(); got != 5 {
		t.Fatalf("one drain must apply at most the batch cap, %d left", got)
	}
}
