// Package bridge carries state updates from the vision pipeline and
// transport handlers into the session store. A single worker drains a
// bounded queue, applies updates under the store lock, and detects
// session-activity edges so lifecycle side effects fire exactly once.
package bridge

import (
	"github.com/ppiankov/gatewarden/internal/metrics"
	"github.com/ppiankov/gatewarden/internal/session"
)

// Update is one state mutation request. Nil optional fields leave the
// corresponding session state untouched.
type Update struct {
	SessionID string

	// Schema replaces the session's vision analysis when set.
	Schema *session.VisionSchema

	// Active toggles session activity when set. Edges trigger
	// lifecycle side effects.
	Active *bool

	// Authenticated marks the visitor as a verified employee when set.
	Authenticated *bool
	EmployeeName  string
}

// Queue is a bounded multi-producer single-consumer update queue. When
// full, the oldest pending update is dropped so fresh state always wins.
type Queue struct {
	ch chan Update
}

// NewQueue creates a queue holding at most size pending updates.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = 50
	}
	return &Queue{ch: make(chan Update, size)}
}

// Publish enqueues an update, evicting the oldest pending one when the
// queue is full. Never blocks. Returns false when an eviction happened.
func (q *Queue) Publish(u Update) bool {
	select {
	case q.ch <- u:
		return true
	default:
	}
	select {
	case <-q.ch:
		metrics.BridgeDropped.Inc()
	default:
	}
	select {
	case q.ch <- u:
	default:
	}
	return false
}

// Len reports the number of pending updates.
func (q *Queue) Len() int { return len(q.ch) }

func (q *Queue) poll() (Update, bool) {
	select {
	case u := <-q.ch:
		return u, true
	default:
		return Update{}, false
	}
}
