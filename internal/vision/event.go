package vision

import (
	"time"

	"github.com/ppiankov/gatewarden/internal/session"
)

// EventType names a pipeline event delivered to the transport layer.
type EventType string

const (
	// EventNoFace fires when the debounce window confirms the visitor
	// left the camera view.
	EventNoFace EventType = "no_face"
	// EventEscalate fires when frame analysis warrants alerting
	// security.
	EventEscalate EventType = "escalate"
)

// Event is one pipeline notification.
type Event struct {
	Type      EventType
	SessionID string
	Schema    session.VisionSchema
	At        time.Time
}

// EventQueue is a bounded drop-oldest event buffer consumed by the
// transport's event pump.
type EventQueue struct {
	ch chan Event
}

// NewEventQueue creates a queue holding at most size pending events.
func NewEventQueue(size int) *EventQueue {
	if size <= 0 {
		size = 20
	}
	return &EventQueue{ch: make(chan Event, size)}
}

// Publish enqueues an event, evicting the oldest when full. Never
// blocks.
func (q *EventQueue) Publish(e Event) {
	select {
	case q.ch <- e:
		return
	default:
	}
	select {
	case <-q.ch:
	default:
	}
	select {
	case q.ch <- e:
	default:
	}
}

// PollBatch returns up to max pending events without blocking.
func (q *EventQueue) PollBatch(max int) []Event {
	if max <= 0 {
		max = 5
	}
	var out []Event
	for len(out) < max {
		select {
		case e := <-q.ch:
			out = append(out, e)
		default:
			return out
		}
	}
	return out
}

// Len reports the number of pending events.
func (q *EventQueue) Len() int { return len(q.ch) }
