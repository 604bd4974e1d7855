package service

import (
	"fmt"
	"sync"
	"time"

	"go-fingerprint-quality/internal/analyzer"
	apperrors "go-fingerprint-quality/internal/errors"
	"go-fingerprint-quality/internal/logger"
	"go-fingerprint-quality/internal/model"
	"go-fingerprint-quality/internal/timer"
	"go-fingerprint-quality/pkg/models"
	"go-fingerprint-quality/pkg/validation"

	"github.com/sirupsen/logrus"
)

// ScoreResult is the outcome of scoring one image
type ScoreResult struct {
	Score    int                       `json:"score"`
	RawScore float64                   `json:"raw_score"`
	Features *models.FeatureData       `json:"features"`
	Feedback []validation.FeedbackItem `json:"feedback"`
	Elapsed  time.Duration             `json:"elapsed_ns"`
}

// QualityService defines the quality engine's public operations
type QualityService interface {
	// Scoring
	ComputeQualityScore(img *models.FingerprintImage) (*ScoreResult, error)
	ComputeQualityScoreFromFeatures(vec models.FeatureVector) (int, error)

	// Features
	QualityFeatureData(img *models.FingerprintImage) (*models.FeatureData, error)
	QualityFeatureDataForModules(img *models.FingerprintImage, modules []string) (*models.FeatureData, error)
	NativeQualityValues(vec models.FeatureVector) map[string]uint8

	// Actionable feedback
	ActionableFeedback(img *models.FingerprintImage) ([]validation.FeedbackItem, error)
	ActionableFeedbackFromFeatures(vec models.FeatureVector) []validation.FeedbackItem

	// Enumerations
	AllQualityFeatureIDs() []string
	AllActionableIdentifiers() []validation.FeedbackID

	LastFeatureSpeeds() map[string]time.Duration
	LastModuleSpeeds() map[string]time.Duration
	ModelInfo() model.Info
}

// qualityService implements QualityService over one model and one schema
type qualityService struct {
	model      *model.Model
	aggregator *analyzer.Aggregator
	feedback   *validation.FeedbackGenerator
	options    analyzer.AggregatorOptions

	mu            sync.Mutex
	featureSpeeds map[string]time.Duration
	moduleSpeeds  map[string]time.Duration
}

// NewQualityService creates a quality service. The model's feature ids must
// match the aggregator's schema.
func NewQualityService(
	m *model.Model,
	aggregator *analyzer.Aggregator,
	feedback *validation.FeedbackGenerator,
	options analyzer.AggregatorOptions,
) (QualityService, error) {
	if m == nil {
		return nil, apperrors.NewModelLoadError("no model", nil)
	}
	if err := checkSchema(aggregator.Schema().FeatureIDs(), m.FeatureIDs()); err != nil {
		return nil, err
	}
	return &qualityService{
		model:         m,
		aggregator:    aggregator,
		feedback:      feedback,
		options:       options,
		featureSpeeds: map[string]time.Duration{},
		moduleSpeeds:  map[string]time.Duration{},
	}, nil
}

// NewDefaultQualityService uses the bundled model and the default schema
func NewDefaultQualityService(options analyzer.AggregatorOptions) (QualityService, error) {
	m, err := model.Default()
	if err != nil {
		return nil, err
	}
	return NewQualityService(m, analyzer.NewAggregator(analyzer.DefaultSchema()), validation.NewFeedbackGenerator(), options)
}

// ComputeQualityScore extracts every feature of img, scores it and evaluates feedback
func (s *qualityService) ComputeQualityScore(img *models.FingerprintImage) (*ScoreResult, error) {
	t := timer.Start()

	data, err := s.QualityFeatureData(img)
	if err != nil {
		return nil, err
	}
	score, raw, err := s.model.Score(data.Vector)
	if err != nil {
		return nil, err
	}

	result := &ScoreResult{
		Score:    score,
		RawScore: raw,
		Features: data,
		Feedback: s.feedback.FromFeatures(data.Vector),
		Elapsed:  t.Stop(),
	}

	logger.WithFields(logrus.Fields{
		"score":           result.Score,
		"raw_score":       result.RawScore,
		"feedback_count":  len(result.Feedback),
		"unavailable":     len(data.ModuleErrors),
		"processing_time": result.Elapsed,
	}).Debug("Quality score computed")

	return result, nil
}

// ComputeQualityScoreFromFeatures scores a precomputed vector. The vector must
// match the model's schema exactly and carry every required feature.
func (s *qualityService) ComputeQualityScoreFromFeatures(vec models.FeatureVector) (int, error) {
	if err := checkSchema(vec.IDs(), s.model.FeatureIDs()); err != nil {
		return 0, err
	}
	schema := s.aggregator.Schema()
	for _, m := range schema.Modules {
		if !schema.IsRequired(m.Name()) {
			continue
		}
		for _, id := range m.FeatureIDs() {
			if rec, _ := vec.Get(id); !rec.Available {
				return 0, apperrors.NewFeatureExtractionError(
					fmt.Sprintf("required feature %s of module %s is unavailable", id, m.Name()), nil)
			}
		}
	}
	score, _, err := s.model.Score(vec)
	return score, err
}

// QualityFeatureData runs every module over img
func (s *qualityService) QualityFeatureData(img *models.FingerprintImage) (*models.FeatureData, error) {
	return s.run(img, s.options)
}

// QualityFeatureDataForModules runs only the named modules
func (s *qualityService) QualityFeatureDataForModules(img *models.FingerprintImage, modules []string) (*models.FeatureData, error) {
	return s.run(img, s.options.WithModules(modules...))
}

func (s *qualityService) run(img *models.FingerprintImage, opts analyzer.AggregatorOptions) (*models.FeatureData, error) {
	data, err := s.aggregator.Run(img, opts)
	if err != nil {
		return nil, err
	}
	s.recordSpeeds(data)
	return data, nil
}

// NativeQualityValues maps the vector's features to 0..100 quality values
func (s *qualityService) NativeQualityValues(vec models.FeatureVector) map[string]uint8 {
	return analyzer.NativeQualityValues(vec)
}

// ActionableFeedback computes only the features the feedback rules read.
// The extraction updates LastFeatureSpeeds and LastModuleSpeeds like any other.
func (s *qualityService) ActionableFeedback(img *models.FingerprintImage) ([]validation.FeedbackItem, error) {
	data, err := s.run(img, s.options.WithModules(validation.FeedbackModules()...))
	if err != nil {
		return nil, err
	}
	return s.feedback.FromFeatures(data.Vector), nil
}

// ActionableFeedbackFromFeatures evaluates the feedback rules against vec
func (s *qualityService) ActionableFeedbackFromFeatures(vec models.FeatureVector) []validation.FeedbackItem {
	return s.feedback.FromFeatures(vec)
}

func (s *qualityService) AllQualityFeatureIDs() []string {
	return s.aggregator.Schema().FeatureIDs()
}

func (s *qualityService) AllActionableIdentifiers() []validation.FeedbackID {
	return validation.AllIdentifiers()
}

// LastFeatureSpeeds returns the per-feature timings of the most recent extraction
func (s *qualityService) LastFeatureSpeeds() map[string]time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyDurations(s.featureSpeeds)
}

// LastModuleSpeeds returns the per-speed-group timings of the most recent extraction
func (s *qualityService) LastModuleSpeeds() map[string]time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyDurations(s.moduleSpeeds)
}

func (s *qualityService) ModelInfo() model.Info {
	return s.model.Info()
}

func (s *qualityService) recordSpeeds(data *models.FeatureData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.featureSpeeds = copyDurations(data.FeatureSpeeds)
	s.moduleSpeeds = copyDurations(data.ModuleSpeeds)
}

func copyDurations(in map[string]time.Duration) map[string]time.Duration {
	out := make(map[string]time.Duration, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func checkSchema(got, want []string) error {
	if len(got) != len(want) {
		return apperrors.NewSchemaMismatchError(
			fmt.Sprintf("feature vector has %d entries, model expects %d", len(got), len(want)), nil)
	}
	for i := range want {
		if got[i] != want[i] {
			return apperrors.NewSchemaMismatchError(
				fmt.Sprintf("feature %d is %q, model expects %q", i, got[i], want[i]), nil)
		}
	}
	return nil
}
