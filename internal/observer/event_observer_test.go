package observer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type panickingObserver struct{}

func (panickingObserver) OnEvent(context.Context, ScoringEvent) { panic("boom") }
func (panickingObserver) GetObserverName() string               { return "panicking" }

func TestMetricsObserver(t *testing.T) {
	m := NewMetricsObserver()
	ctx := context.Background()

	m.OnEvent(ctx, ScoringEvent{EventType: ScoringStarted})
	m.OnEvent(ctx, ScoringEvent{EventType: ScoringCompleted, Score: 57, ProcessingTime: 40 * time.Millisecond})
	m.OnEvent(ctx, ScoringEvent{EventType: ScoringStarted})
	m.OnEvent(ctx, ScoringEvent{EventType: ScoringCompleted, Score: 100, ProcessingTime: 20 * time.Millisecond})
	m.OnEvent(ctx, ScoringEvent{EventType: ScoringStarted})
	m.OnEvent(ctx, ScoringEvent{EventType: ScoringFailed})
	m.OnEvent(ctx, ScoringEvent{EventType: ScoreCacheHit, Score: 51})

	metrics := m.GetMetrics()
	assert.Equal(t, int64(3), metrics["total_scorings"])
	assert.Equal(t, int64(2), metrics["successful_scorings"])
	assert.Equal(t, int64(1), metrics["failed_scorings"])
	assert.Equal(t, int64(1), metrics["cache_hits"])
	assert.Equal(t, 30*time.Millisecond, metrics["avg_processing_time"])

	histogram := metrics["score_histogram"].(map[string]int64)
	assert.Equal(t, int64(2), histogram["50-59"])
	assert.Equal(t, int64(1), histogram["100"])
	assert.Equal(t, int64(0), histogram["0-9"])
	assert.Len(t, histogram, scoreBuckets)
}

func TestEventPublisher(t *testing.T) {
	p := NewEventPublisher()
	m := NewMetricsObserver()
	p.Subscribe(panickingObserver{})
	p.Subscribe(m)

	p.NotifyObservers(context.Background(), ScoringEvent{EventType: ScoringStarted})
	assert.Equal(t, int64(1), m.GetMetrics()["total_scorings"], "a panicking observer must not block the others")

	p.Unsubscribe(m)
	p.NotifyObservers(context.Background(), ScoringEvent{EventType: ScoringStarted})
	assert.Equal(t, int64(1), m.GetMetrics()["total_scorings"])
}
