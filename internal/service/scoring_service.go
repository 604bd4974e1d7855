package service

import (
	"context"
	"errors"
	"time"

	apperrors "go-fingerprint-quality/internal/errors"
	"go-fingerprint-quality/internal/logger"
	"go-fingerprint-quality/internal/observer"
	"go-fingerprint-quality/internal/repository"
	"go-fingerprint-quality/pkg/models"
	"go-fingerprint-quality/pkg/validation"

	"github.com/sirupsen/logrus"
)

// ScoringRequest describes one image to score
type ScoringRequest struct {
	RequestID       string
	Source          string
	PPI             int
	TrimWhiteFrame  bool
	IncludeFeatures bool
}

// ScoringResponse is the outcome of a ScoringRequest
type ScoringResponse struct {
	RequestID         string                    `json:"request_id,omitempty"`
	Source            string                    `json:"source,omitempty"`
	Digest            string                    `json:"digest"`
	Timestamp         string                    `json:"timestamp"`
	ProcessingTimeSec float64                   `json:"processing_time_sec"`
	Score             int                       `json:"score"`
	RawScore          float64                   `json:"raw_score"`
	Actionable        []string                  `json:"actionable"`
	Feedback          []validation.FeedbackItem `json:"feedback,omitempty"`
	Features          models.FeatureVector      `json:"features,omitempty"`
	ModuleErrors      map[string]string         `json:"module_errors,omitempty"`
	ModelVersion      string                    `json:"model_version"`
	ModelHash         string                    `json:"model_hash"`
	Cached            bool                      `json:"cached"`
}

// ImageScoringService scores images fetched from a source or supplied directly
type ImageScoringService interface {
	ScoreSource(ctx context.Context, req ScoringRequest) (*ScoringResponse, error)
	ScoreImage(ctx context.Context, img *models.FingerprintImage, req ScoringRequest) (*ScoringResponse, error)
	ValidateSource(source string) error
}

// imageScoringService implements ImageScoringService
type imageScoringService struct {
	imageRepo repository.ImageRepository
	scores    repository.ScoreRepository
	quality   QualityService
	events    observer.Subject
}

// NewImageScoringService creates a scoring service. scores may be nil to disable caching.
func NewImageScoringService(
	imageRepository repository.ImageRepository,
	scoreRepository repository.ScoreRepository,
	quality QualityService,
	events observer.Subject,
) ImageScoringService {
	if events == nil {
		events = observer.NewEventPublisher()
	}
	return &imageScoringService{
		imageRepo: imageRepository,
		scores:    scoreRepository,
		quality:   quality,
		events:    events,
	}
}

// ScoreSource fetches the image at req.Source and scores it
func (s *imageScoringService) ScoreSource(ctx context.Context, req ScoringRequest) (*ScoringResponse, error) {
	if err := s.ValidateSource(req.Source); err != nil {
		return nil, apperrors.NewValidationError("invalid image source", err)
	}

	start := time.Now()
	decoded, err := s.imageRepo.FetchImage(ctx, req.Source)
	if err != nil {
		s.publish(ctx, req, observer.ScoringEvent{EventType: observer.ImageFetchFailed, ProcessingTime: time.Since(start), ErrorMessage: err.Error()})
		return nil, fetchError(err)
	}
	s.publish(ctx, req, observer.ScoringEvent{EventType: observer.ImageFetched, ProcessingTime: time.Since(start), Success: true})

	img, err := models.FromImage(decoded, ppiOrDefault(req.PPI))
	if err != nil {
		return nil, err
	}
	return s.ScoreImage(ctx, img, req)
}

// ScoreImage scores an already decoded image, reusing a stored score when one exists
func (s *imageScoringService) ScoreImage(ctx context.Context, img *models.FingerprintImage, req ScoringRequest) (*ScoringResponse, error) {
	start := time.Now()
	s.publish(ctx, req, observer.ScoringEvent{EventType: observer.ScoringStarted})

	info := s.quality.ModelInfo()
	key := repository.ScoreKey(img.Digest(), info.Hash(), req.TrimWhiteFrame)
	if !req.IncludeFeatures {
		if resp := s.cached(ctx, key, req, start); resp != nil {
			return resp, nil
		}
	}

	result, err := s.compute(ctx, img, req.TrimWhiteFrame)
	if err != nil {
		s.publish(ctx, req, observer.ScoringEvent{EventType: observer.ScoringFailed, ProcessingTime: time.Since(start), ErrorMessage: err.Error()})
		return nil, err
	}

	resp := &ScoringResponse{
		RequestID:    req.RequestID,
		Source:       req.Source,
		Digest:       img.Digest(),
		Score:        result.Score,
		RawScore:     result.RawScore,
		Actionable:   feedbackIDs(result.Feedback),
		Feedback:     result.Feedback,
		ModuleErrors: result.Features.ModuleErrors,
		ModelVersion: info.Version(),
		ModelHash:    info.Hash(),
	}
	if req.IncludeFeatures {
		resp.Features = result.Features.Vector
	}
	s.finish(resp, start)
	s.store(ctx, key, resp)
	logger.WithFields(logFields(resp)).Info("Scoring completed")

	s.publish(ctx, req, observer.ScoringEvent{
		EventType:      observer.ScoringCompleted,
		ProcessingTime: time.Since(start),
		Success:        true,
		Score:          resp.Score,
		Metadata:       map[string]interface{}{"unavailable_modules": len(resp.ModuleErrors)},
	})
	return resp, nil
}

// ValidateSource validates the image source
func (s *imageScoringService) ValidateSource(source string) error {
	return s.imageRepo.ValidateSource(source)
}

// compute runs the engine and gives up when ctx expires. The engine itself is
// not interruptible, so an abandoned computation finishes in the background.
func (s *imageScoringService) compute(ctx context.Context, img *models.FingerprintImage, trim bool) (*ScoreResult, error) {
	if trim {
		trimmed, err := img.TrimWhiteFrame()
		if err != nil {
			return nil, err
		}
		img = trimmed
	}

	type outcome struct {
		result *ScoreResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		r, err := s.quality.ComputeQualityScore(img)
		done <- outcome{r, err}
	}()

	select {
	case o := <-done:
		return o.result, o.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, apperrors.NewTimeoutError("quality scoring timed out", ctx.Err())
		}
		return nil, ctx.Err()
	}
}

func (s *imageScoringService) cached(ctx context.Context, key string, req ScoringRequest, start time.Time) *ScoringResponse {
	if s.scores == nil {
		return nil
	}
	rec, err := s.scores.GetScore(ctx, key)
	if err != nil {
		if !errors.Is(err, repository.ErrScoreNotFound) {
			logger.WithError(err).WithField("key", key).Warn("Score cache lookup failed")
		}
		return nil
	}

	info := s.quality.ModelInfo()
	resp := &ScoringResponse{
		RequestID:    req.RequestID,
		Source:       req.Source,
		Digest:       rec.Digest,
		Score:        rec.Score,
		RawScore:     rec.RawScore,
		Actionable:   feedbackIDs(rec.Feedback),
		Feedback:     rec.Feedback,
		ModuleErrors: rec.ModuleErrors,
		ModelVersion: info.Version(),
		ModelHash:    rec.ModelHash,
		Cached:       true,
	}
	s.finish(resp, start)
	s.publish(ctx, req, observer.ScoringEvent{EventType: observer.ScoreCacheHit, ProcessingTime: time.Since(start), Success: true, Score: rec.Score})
	return resp
}

func (s *imageScoringService) store(ctx context.Context, key string, resp *ScoringResponse) {
	if s.scores == nil {
		return
	}
	rec := &repository.ScoreRecord{
		Digest:       resp.Digest,
		ModelHash:    resp.ModelHash,
		Score:        resp.Score,
		RawScore:     resp.RawScore,
		Feedback:     resp.Feedback,
		ModuleErrors: resp.ModuleErrors,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.scores.SaveScore(ctx, key, rec); err != nil {
		logger.WithError(err).WithField("key", key).Warn("Failed to store score")
	}
}

func (s *imageScoringService) finish(resp *ScoringResponse, start time.Time) {
	resp.Timestamp = time.Now().UTC().Format(time.RFC3339)
	resp.ProcessingTimeSec = time.Since(start).Seconds()
}

func (s *imageScoringService) publish(ctx context.Context, req ScoringRequest, event observer.ScoringEvent) {
	event.RequestID = req.RequestID
	event.Source = req.Source
	s.events.NotifyObservers(ctx, event)
}

func fetchError(err error) error {
	switch {
	case errors.Is(err, repository.ErrInvalidSource), errors.Is(err, repository.ErrSourceNotSupported):
		return apperrors.NewValidationError("unsupported image source", err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewTimeoutError("image fetch timeout", err)
	default:
		return apperrors.NewNetworkError("failed to fetch image", err)
	}
}

func feedbackIDs(items []validation.FeedbackItem) []string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = string(it.ID)
	}
	return ids
}

func ppiOrDefault(ppi int) int {
	if ppi <= 0 {
		return models.Resolution500PPI
	}
	return ppi
}

// logFields summarises a response for request logs
func logFields(resp *ScoringResponse) logrus.Fields {
	return logrus.Fields{
		"request_id": resp.RequestID,
		"score":      resp.Score,
		"cached":     resp.Cached,
		"actionable": resp.Actionable,
	}
}
