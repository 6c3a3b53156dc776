package detection

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"split-the-g/internal/inference"
	"split-the-g/internal/logger"
)

// ErrNoCapture is returned when the poller runs out of frames without a capture
var ErrNoCapture = errors.New("no capture within frame budget")

// FrameSource yields the current camera frame
type FrameSource interface {
	Frame(ctx context.Context) ([]byte, error)
}

// FrameSourceFunc adapts a function to FrameSource
type FrameSourceFunc func(ctx context.Context) ([]byte, error)

func (f FrameSourceFunc) Frame(ctx context.Context) ([]byte, error) { return f(ctx) }

// Detector is the subset of the inference client the poller needs
type Detector interface {
	Detect(ctx context.Context, image []byte) (*inference.Detection, error)
}

type PollerConfig struct {
	Interval      time.Duration
	Window        int
	MinVotes      int
	MinConfidence float64
	// MaxFrames bounds the run; 0 means until ctx is done
	MaxFrames int
}

// Poller samples frames on a timer until the vote says capture
type Poller struct {
	cfg      PollerConfig
	source   FrameSource
	detector Detector
}

func NewPoller(cfg PollerConfig, source FrameSource, detector Detector) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 500 * time.Millisecond
	}
	return &Poller{cfg: cfg, source: source, detector: detector}
}

// Run blocks until a frame is captured, the frame budget is spent or ctx is
// done. It returns the frame that completed the winning vote. Frame and
// detect errors count as misses.
func (p *Poller) Run(ctx context.Context) ([]byte, error) {
	voter := NewVoter(p.cfg.Window, p.cfg.MinVotes)
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for frames := 0; p.cfg.MaxFrames == 0 || frames < p.cfg.MaxFrames; frames++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		frame, hit := p.sample(ctx)
		d := voter.Observe(hit)

		logger.WithFields(logrus.Fields{
			"frame": frames,
			"hit":   d.Hit,
			"hits":  d.Hits,
			"seen":  d.Seen,
		}).Debug("Detection frame")

		if d.Capture {
			return frame, nil
		}
	}
	return nil, ErrNoCapture
}

func (p *Poller) sample(ctx context.Context) ([]byte, bool) {
	frame, err := p.source.Frame(ctx)
	if err != nil {
		logger.WithError(err).Warn("Frame source failed")
		return nil, false
	}
	det, err := p.detector.Detect(ctx, frame)
	if err != nil {
		logger.WithError(err).Warn("Frame detection failed")
		return frame, false
	}
	return frame, IsHit(det, p.cfg.MinConfidence)
}
