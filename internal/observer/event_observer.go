package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// SplitEvent describes one step of a submitted pour
type SplitEvent struct {
	EventType      EventType              `json:"event_type"`
	Timestamp      time.Time              `json:"timestamp"`
	SplitID        string                 `json:"split_id,omitempty"`
	Username       string                 `json:"username,omitempty"`
	Score          float64                `json:"score,omitempty"`
	ProcessingTime time.Duration          `json:"processing_time"`
	Success        bool                   `json:"success"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of split event
type EventType string

const (
	// SplitSubmitted when a photo is accepted for scoring
	SplitSubmitted EventType = "split_submitted"
	// SplitScored when the split has been scored and stored
	SplitScored EventType = "split_scored"
	// SplitFailed when any stage of the submission fails
	SplitFailed EventType = "split_failed"
	// FrameCaptured when live detection decides to auto-capture
	FrameCaptured EventType = "frame_captured"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event SplitEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event SplitEvent)
}

// LoggingObserver logs split events
type LoggingObserver struct {
	logger *logrus.Logger
}

func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

func (o *LoggingObserver) OnEvent(ctx context.Context, event SplitEvent) {
	fields := logrus.Fields{
		"event_type":      event.EventType,
		"split_id":        event.SplitID,
		"processing_time": event.ProcessingTime,
		"success":         event.Success,
	}
	if event.EventType == SplitScored {
		fields["score"] = event.Score
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	switch event.EventType {
	case SplitSubmitted:
		o.logger.WithFields(fields).Info("Split submitted")
	case SplitScored:
		o.logger.WithFields(fields).Info("Split scored")
	case SplitFailed:
		o.logger.WithFields(fields).Error("Split failed")
	case FrameCaptured:
		o.logger.WithFields(fields).Debug("Frame captured")
	default:
		o.logger.WithFields(fields).Info("Split event occurred")
	}
}

func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// MetricsObserver keeps running totals for the health endpoint
type MetricsObserver struct {
	mu                  sync.RWMutex
	submitted           int64
	scored              int64
	failed              int64
	captures            int64
	totalScore          float64
	totalProcessingTime time.Duration
}

func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{}
}

func (o *MetricsObserver) OnEvent(ctx context.Context, event SplitEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case SplitSubmitted:
		o.submitted++
	case SplitScored:
		o.scored++
		o.totalScore += event.Score
		o.totalProcessingTime += event.ProcessingTime
	case SplitFailed:
		o.failed++
	case FrameCaptured:
		o.captures++
	}
}

func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// GetMetrics returns a snapshot of the counters
func (o *MetricsObserver) GetMetrics() map[string]interface{} {
	o.mu.RLock()
	defer o.mu.RUnlock()

	avgScore := 0.0
	avgProcessingTime := time.Duration(0)
	if o.scored > 0 {
		avgScore = o.totalScore / float64(o.scored)
		avgProcessingTime = o.totalProcessingTime / time.Duration(o.scored)
	}

	return map[string]interface{}{
		"splits_submitted":    o.submitted,
		"splits_scored":       o.scored,
		"splits_failed":       o.failed,
		"frames_captured":     o.captures,
		"avg_score":           avgScore,
		"avg_processing_time": avgProcessingTime.String(),
	}
}

// EventPublisher fans events out to observers on their own goroutines
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
	inflight  sync.WaitGroup
}

func NewEventPublisher() *EventPublisher {
	return &EventPublisher{
		observers: make([]Observer, 0),
	}
}

func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers does not block on slow observers. The request context is
// detached so a finished request does not cancel its own audit trail.
func (p *EventPublisher) NotifyObservers(ctx context.Context, event SplitEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	ctx = context.WithoutCancel(ctx)

	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	for _, observer := range observers {
		p.inflight.Add(1)
		go func(obs Observer) {
			defer p.inflight.Done()
			defer func() {
				if r := recover(); r != nil {
					logrus.WithField("observer", obs.GetObserverName()).
						WithField("panic", r).
						Error("Observer panicked while handling event")
				}
			}()
			obs.OnEvent(ctx, event)
		}(observer)
	}
}

// Wait blocks until every dispatched event has been handled
func (p *EventPublisher) Wait() {
	p.inflight.Wait()
}
