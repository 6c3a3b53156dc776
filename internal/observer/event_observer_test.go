package observer

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	name   string
	mu     sync.Mutex
	events []SplitEvent
}

func (r *recordingObserver) OnEvent(_ context.Context, event SplitEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingObserver) GetObserverName() string { return r.name }

func (r *recordingObserver) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

type panickingObserver struct{}

func (panickingObserver) OnEvent(context.Context, SplitEvent) { panic("boom") }
func (panickingObserver) GetObserverName() string             { return "panicky" }

func TestEventPublisher_FanOut(t *testing.T) {
	p := NewEventPublisher()
	a := &recordingObserver{name: "a"}
	b := &recordingObserver{name: "b"}
	p.Subscribe(a)
	p.Subscribe(b)
	p.Subscribe(panickingObserver{})

	p.NotifyObservers(context.Background(), SplitEvent{EventType: SplitSubmitted})
	p.Wait()

	assert.Equal(t, 1, a.count())
	assert.Equal(t, 1, b.count())
	assert.False(t, a.events[0].Timestamp.IsZero(), "timestamp is filled in")

	p.Unsubscribe(a)
	p.NotifyObservers(context.Background(), SplitEvent{EventType: SplitScored})
	p.Wait()

	assert.Equal(t, 1, a.count())
	assert.Equal(t, 2, b.count())
}

func TestEventPublisher_DetachesCancellation(t *testing.T) {
	p := NewEventPublisher()
	seen := make(chan error, 1)
	p.Subscribe(observerFunc(func(ctx context.Context, _ SplitEvent) { seen <- ctx.Err() }))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.NotifyObservers(ctx, SplitEvent{EventType: SplitFailed})
	p.Wait()

	assert.NoError(t, <-seen)
}

type observerFunc func(context.Context, SplitEvent)

func (f observerFunc) OnEvent(ctx context.Context, e SplitEvent) { f(ctx, e) }
func (f observerFunc) GetObserverName() string                  { return "func" }

func TestMetricsObserver(t *testing.T) {
	m := NewMetricsObserver()
	ctx := context.Background()

	m.OnEvent(ctx, SplitEvent{EventType: SplitSubmitted})
	m.OnEvent(ctx, SplitEvent{EventType: SplitSubmitted})
	m.OnEvent(ctx, SplitEvent{EventType: SplitSubmitted})
	m.OnEvent(ctx, SplitEvent{EventType: SplitScored, Score: 5, ProcessingTime: 2 * time.Second})
	m.OnEvent(ctx, SplitEvent{EventType: SplitScored, Score: 3, ProcessingTime: 4 * time.Second})
	m.OnEvent(ctx, SplitEvent{EventType: SplitFailed})
	m.OnEvent(ctx, SplitEvent{EventType: FrameCaptured})

	metrics := m.GetMetrics()
	assert.Equal(t, int64(3), metrics["splits_submitted"])
	assert.Equal(t, int64(2), metrics["splits_scored"])
	assert.Equal(t, int64(1), metrics["splits_failed"])
	assert.Equal(t, int64(1), metrics["frames_captured"])
	assert.InDelta(t, 4.0, metrics["avg_score"], 1e-9)
	assert.Equal(t, "3s", metrics["avg_processing_time"])
}

func TestMetricsObserver_Empty(t *testing.T) {
	metrics := NewMetricsObserver().GetMetrics()
	assert.Equal(t, 0.0, metrics["avg_score"])
	assert.Equal(t, "0s", metrics["avg_processing_time"])
}

func TestLoggingObserver(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.JSONFormatter{})

	o := NewLoggingObserver(log)
	o.OnEvent(context.Background(), SplitEvent{
		EventType: SplitScored,
		SplitID:   "abc",
		Score:     4.5,
		Success:   true,
		Metadata:  map[string]interface{}{"grade": "Great split"},
	})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Split scored", entry["msg"])
	assert.Equal(t, "abc", entry["split_id"])
	assert.Equal(t, 4.5, entry["score"])
	assert.Equal(t, "Great split", entry["grade"])
	assert.Equal(t, "info", entry["level"])

	buf.Reset()
	o.OnEvent(context.Background(), SplitEvent{EventType: SplitFailed, ErrorMessage: "no logo"})
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "no logo", entry["error"])
}
