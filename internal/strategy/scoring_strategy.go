package strategy

import (
	"go-fingerprint-quality/internal/service"
	"go-fingerprint-quality/pkg/models"
	"go-fingerprint-quality/pkg/validation"
)

// Strategy names
const (
	FullScore    = "full_score"
	FeedbackOnly = "actionable_feedback"
	FeaturesOnly = "features_only"
)

// Evaluation is what a strategy produced for one image. Score and RawScore
// are meaningful only when Scored is set.
type Evaluation struct {
	Strategy string                    `json:"strategy"`
	Scored   bool                      `json:"scored"`
	Score    int                       `json:"score"`
	RawScore float64                   `json:"raw_score"`
	Feedback []validation.FeedbackItem `json:"feedback,omitempty"`
	Features *models.FeatureData       `json:"features,omitempty"`
}

// ScoringStrategy defines the interface for different evaluation strategies
type ScoringStrategy interface {
	Evaluate(img *models.FingerprintImage) (*Evaluation, error)
	GetStrategyName() string
}

// FullScoreStrategy extracts every feature, scores them and derives feedback
type FullScoreStrategy struct {
	quality service.QualityService
}

// NewFullScoreStrategy creates a new full score strategy
func NewFullScoreStrategy(quality service.QualityService) ScoringStrategy {
	return &FullScoreStrategy{quality: quality}
}

// Evaluate performs full scoring
func (s *FullScoreStrategy) Evaluate(img *models.FingerprintImage) (*Evaluation, error) {
	res, err := s.quality.ComputeQualityScore(img)
	if err != nil {
		return nil, err
	}
	return &Evaluation{
		Strategy: s.GetStrategyName(),
		Scored:   true,
		Score:    res.Score,
		RawScore: res.RawScore,
		Feedback: res.Feedback,
		Features: res.Features,
	}, nil
}

// GetStrategyName returns the strategy name
func (s *FullScoreStrategy) GetStrategyName() string {
	return FullScore
}

// FeedbackStrategy runs only the modules that actionable feedback reads
type FeedbackStrategy struct {
	quality service.QualityService
}

// NewFeedbackStrategy creates a new feedback strategy
func NewFeedbackStrategy(quality service.QualityService) ScoringStrategy {
	return &FeedbackStrategy{quality: quality}
}

// Evaluate computes actionable feedback without a score
func (s *FeedbackStrategy) Evaluate(img *models.FingerprintImage) (*Evaluation, error) {
	items, err := s.quality.ActionableFeedback(img)
	if err != nil {
		return nil, err
	}
	return &Evaluation{Strategy: s.GetStrategyName(), Feedback: items}, nil
}

// GetStrategyName returns the strategy name
func (s *FeedbackStrategy) GetStrategyName() string {
	return FeedbackOnly
}

// FeatureStrategy extracts features without scoring. An empty module list means all modules.
type FeatureStrategy struct {
	quality service.QualityService
	modules []string
}

// NewFeatureStrategy creates a new feature extraction strategy
func NewFeatureStrategy(quality service.QualityService, modules ...string) ScoringStrategy {
	return &FeatureStrategy{quality: quality, modules: modules}
}

// Evaluate extracts features
func (s *FeatureStrategy) Evaluate(img *models.FingerprintImage) (*Evaluation, error) {
	var (
		data *models.FeatureData
		err  error
	)
	if len(s.modules) == 0 {
		data, err = s.quality.QualityFeatureData(img)
	} else {
		data, err = s.quality.QualityFeatureDataForModules(img, s.modules)
	}
	if err != nil {
		return nil, err
	}
	return &Evaluation{Strategy: s.GetStrategyName(), Features: data}, nil
}

// GetStrategyName returns the strategy name
func (s *FeatureStrategy) GetStrategyName() string {
	return FeaturesOnly
}

// ScoringContext manages the evaluation strategy
type ScoringContext struct {
	strategy ScoringStrategy
}

// NewScoringContext creates a new scoring context
func NewScoringContext(strategy ScoringStrategy) *ScoringContext {
	return &ScoringContext{strategy: strategy}
}

// SetStrategy changes the evaluation strategy
func (c *ScoringContext) SetStrategy(strategy ScoringStrategy) {
	c.strategy = strategy
}

// Execute evaluates img using the current strategy
func (c *ScoringContext) Execute(img *models.FingerprintImage) (*Evaluation, error) {
	return c.strategy.Evaluate(img)
}

// GetCurrentStrategy returns the current strategy name
func (c *ScoringContext) GetCurrentStrategy() string {
	return c.strategy.GetStrategyName()
}
