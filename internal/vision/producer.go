package vision

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ppiankov/gatewarden/internal/log"
)

// FrameSource captures one JPEG frame from a camera.
type FrameSource interface {
	Capture(ctx context.Context) ([]byte, error)
}

// Producer captures frames on a fixed interval and feeds the frame
// queue. Capture failures are logged and skipped; the pipeline must
// survive a flaky camera.
type Producer struct {
	source    FrameSource
	frames    *FrameQueue
	sessionID string
	cameraID  string
	interval  time.Duration
	logger    zerolog.Logger
}

// NewProducer creates a capture loop for one camera.
func NewProducer(source FrameSource, frames *FrameQueue, sessionID, cameraID string, interval time.Duration) *Producer {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Producer{
		source:    source,
		frames:    frames,
		sessionID: sessionID,
		cameraID:  cameraID,
		interval:  interval,
		logger:    log.WithComponent("capture"),
	}
}

// Run captures until ctx is canceled.
func (p *Producer) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info().Str("camera", p.cameraID).Dur("interval", p.interval).Msg("frame capture started")
	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Str("camera", p.cameraID).Msg("frame capture stopped")
			return
		case <-ticker.C:
			jpeg, err := p.source.Capture(ctx)
			if err != nil {
				p.logger.Warn().Err(err).Str("camera", p.cameraID).Msg("capture failed")
				continue
			}
			if len(jpeg) == 0 {
				continue
			}
			p.frames.Push(NewFrame(p.sessionID, p.cameraID, jpeg))
		}
	}
}

// Offer pushes an externally supplied frame, e.g. an image uploaded
// over the transport instead of captured locally.
func Offer(frames *FrameQueue, sessionID, cameraID string, jpeg []byte) Frame {
	f := NewFrame(sessionID, cameraID, jpeg)
	frames.Push(f)
	return f
}
