package vision

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/gatewarden/internal/metrics"
)

// Frame is one captured camera image awaiting analysis.
type Frame struct {
	ID         string
	SessionID  string
	CameraID   string
	JPEG       []byte
	CapturedAt time.Time
}

// NewFrame tags a captured image with a fresh id and timestamp.
func NewFrame(sessionID, cameraID string, jpeg []byte) Frame {
	return Frame{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		CameraID:   cameraID,
		JPEG:       jpeg,
		CapturedAt: time.Now(),
	}
}

// FrameQueue is a bounded multi-producer frame buffer. Capture never
// blocks: when the queue is full the oldest frame is dropped, because a
// stale frame has no analysis value once a newer one exists.
type FrameQueue struct {
	ch chan Frame
}

// NewFrameQueue creates a queue holding at most size frames.
func NewFrameQueue(size int) *FrameQueue {
	if size <= 0 {
		size = 10
	}
	return &FrameQueue{ch: make(chan Frame, size)}
}

// Push enqueues a frame, evicting the oldest when full. Never blocks.
func (q *FrameQueue) Push(f Frame) {
	select {
	case q.ch <- f:
		return
	default:
	}
	select {
	case <-q.ch:
		metrics.FramesDropped.Inc()
	default:
	}
	select {
	case q.ch <- f:
	default:
		metrics.FramesDropped.Inc()
	}
}

// Next blocks until a frame is available, then drains any backlog and
// returns only the newest frame. The second return is the number of
// frames skipped.
func (q *FrameQueue) Next(ctx context.Context) (Frame, int, error) {
	var f Frame
	select {
	case <-ctx.Done():
		return Frame{}, 0, ctx.Err()
	case f = <-q.ch:
	}

	skipped := 0
	for {
		select {
		case newer := <-q.ch:
			f = newer
			skipped++
			metrics.FramesDropped.Inc()
		default:
			return f, skipped, nil
		}
	}
}

// Len reports the number of buffered frames.
func (q *FrameQueue) Len() int { return len(q.ch) }
