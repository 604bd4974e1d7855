package observer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ScoringEvent represents one step of scoring an image
type ScoringEvent struct {
	EventType      EventType              `json:"event_type"`
	Timestamp      time.Time              `json:"timestamp"`
	RequestID      string                 `json:"request_id,omitempty"`
	Source         string                 `json:"source,omitempty"`
	ProcessingTime time.Duration          `json:"processing_time"`
	Success        bool                   `json:"success"`
	Score          int                    `json:"score,omitempty"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of scoring event
type EventType string

const (
	// ScoringStarted when scoring begins
	ScoringStarted EventType = "scoring_started"
	// ScoringCompleted when a score was produced
	ScoringCompleted EventType = "scoring_completed"
	// ScoringFailed when scoring fails
	ScoringFailed EventType = "scoring_failed"
	// ImageFetched when image is successfully fetched
	ImageFetched EventType = "image_fetched"
	// ImageFetchFailed when image fetch fails
	ImageFetchFailed EventType = "image_fetch_failed"
	// ScoreCacheHit when a stored score was reused
	ScoreCacheHit EventType = "score_cache_hit"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event ScoringEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event ScoringEvent)
}

// LoggingObserver logs scoring events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent handles scoring events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event ScoringEvent) {
	fields := logrus.Fields{
		"event_type":      event.EventType,
		"request_id":      event.RequestID,
		"source":          event.Source,
		"processing_time": event.ProcessingTime,
		"success":         event.Success,
	}
	if event.EventType == ScoringCompleted || event.EventType == ScoreCacheHit {
		fields["score"] = event.Score
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	entry := o.logger.WithFields(fields)
	switch event.EventType {
	case ScoringStarted:
		entry.Debug("Quality scoring started")
	case ScoringCompleted:
		entry.Info("Quality scoring completed")
	case ScoringFailed:
		entry.Error("Quality scoring failed")
	case ImageFetched:
		entry.Debug("Image fetched successfully")
	case ImageFetchFailed:
		entry.Error("Image fetch failed")
	case ScoreCacheHit:
		entry.Info("Quality score served from cache")
	default:
		entry.Info("Scoring event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// scoreBuckets is the number of ten-point score ranges tracked
const scoreBuckets = 11

// MetricsObserver collects counters and a score distribution from scoring events
type MetricsObserver struct {
	mu                  sync.RWMutex
	totalScorings       int64
	successfulScorings  int64
	failedScorings      int64
	fetchFailures       int64
	cacheHits           int64
	totalProcessingTime time.Duration
	scoreHistogram      [scoreBuckets]int64
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{}
}

// OnEvent handles scoring events by collecting metrics
func (o *MetricsObserver) OnEvent(ctx context.Context, event ScoringEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case ScoringStarted:
		o.totalScorings++
	case ScoringCompleted:
		o.successfulScorings++
		o.totalProcessingTime += event.ProcessingTime
		o.scoreHistogram[bucket(event.Score)]++
	case ScoringFailed:
		o.failedScorings++
	case ImageFetchFailed:
		o.fetchFailures++
	case ScoreCacheHit:
		o.cacheHits++
		o.scoreHistogram[bucket(event.Score)]++
	}
}

func bucket(score int) int {
	b := score / 10
	if b < 0 {
		return 0
	}
	if b >= scoreBuckets {
		return scoreBuckets - 1
	}
	return b
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// GetMetrics returns current metrics
func (o *MetricsObserver) GetMetrics() map[string]interface{} {
	o.mu.RLock()
	defer o.mu.RUnlock()

	avgProcessingTime := time.Duration(0)
	if o.successfulScorings > 0 {
		avgProcessingTime = o.totalProcessingTime / time.Duration(o.successfulScorings)
	}
	histogram := make(map[string]int64, scoreBuckets)
	for i, n := range o.scoreHistogram {
		if i == scoreBuckets-1 {
			histogram["100"] = n
			continue
		}
		histogram[rangeLabel(i)] = n
	}

	return map[string]interface{}{
		"total_scorings":        o.totalScorings,
		"successful_scorings":   o.successfulScorings,
		"failed_scorings":       o.failedScorings,
		"fetch_failures":        o.fetchFailures,
		"cache_hits":            o.cacheHits,
		"total_processing_time": o.totalProcessingTime,
		"avg_processing_time":   avgProcessingTime,
		"score_histogram":       histogram,
	}
}

func rangeLabel(i int) string {
	return fmt.Sprintf("%d-%d", i*10, i*10+9)
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher() *EventPublisher {
	return &EventPublisher{
		observers: make([]Observer, 0),
	}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
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

// NotifyObservers delivers event to every observer. Observers run in order on
// the caller's goroutine; a panicking observer is logged and skipped.
func (p *EventPublisher) NotifyObservers(ctx context.Context, event ScoringEvent) {
	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	for _, observer := range observers {
		notify(ctx, observer, event)
	}
}

func notify(ctx context.Context, obs Observer, event ScoringEvent) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithField("observer", obs.GetObserverName()).
				WithField("panic", r).
				Error("Observer panicked while handling event")
		}
	}()
	obs.OnEvent(ctx, event)
}
