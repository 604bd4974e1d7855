package validation

import (
	"go-fingerprint-quality/internal/analyzer"
	"go-fingerprint-quality/pkg/models"
)

// FeedbackID names one actionable defect. The set is fixed and versioned with
// the feature schema.
type FeedbackID string

const (
	EmptyImageOrContrastTooLow FeedbackID = "EmptyImageOrContrastTooLow"
	UniformImage               FeedbackID = "UniformImage"
	InsufficientRidgeStructure FeedbackID = "InsufficientRidgeStructure"
	InsufficientMinutiae       FeedbackID = "InsufficientMinutiae"
	InsufficientForeground     FeedbackID = "InsufficientForeground"
	PoorRidgeClarity           FeedbackID = "PoorRidgeClarity"
)

// Feature identifiers the rules read
const (
	featureMu            = "Mu"
	featureSigma         = "Sigma"
	featureOCLMean       = "OCL_Bin10_Mean"
	featureMinutiaeCount = "Minutiae_Count"
	featureROIPixels     = "ImgProcROIArea_Pixels"
	featureLCSMean       = "LCS_Bin10_Mean"
)

// FeedbackThresholds defines configurable thresholds for actionable feedback
type FeedbackThresholds struct {
	// Mean gray level above which the image is treated as empty
	MaxMu float64

	// Gray level deviation below which the image is uniform
	MinSigma float64

	// Ridge structure
	MinOrientationCertainty float64
	MinLocalClarity         float64

	MinMinutiae         float64
	MinForegroundPixels float64
}

// DefaultFeedbackThresholds returns the thresholds the bundled model was tuned with
func DefaultFeedbackThresholds() FeedbackThresholds {
	return FeedbackThresholds{
		MaxMu:                   250.0,
		MinSigma:                1.0,
		MinOrientationCertainty: 0.3,
		MinLocalClarity:         0.25,
		MinMinutiae:             5,
		MinForegroundPixels:     50000,
	}
}

// FeedbackItem is one triggered defect
type FeedbackItem struct {
	ID        FeedbackID `json:"id"`
	Message   string     `json:"message"`
	Severity  string     `json:"severity"` // "error" or "warning"
	Value     float64    `json:"value"`
	Available bool       `json:"available"`
	Threshold float64    `json:"threshold"`
}

type feedbackRule struct {
	id       FeedbackID
	feature  string
	module   string
	severity string
	message  string
	// threshold picks the rule's limit
	threshold func(FeedbackThresholds) float64
	// trigger decides from the feature value; ok is false when the feature is unavailable
	trigger func(v float64, ok bool, limit float64) bool
}

// rules in enumeration order
var rules = []feedbackRule{
	{
		id:        EmptyImageOrContrastTooLow,
		feature:   featureMu,
		module:    analyzer.ModuleContrast,
		severity:  "error",
		message:   "Image is empty or contrast is too low. Clean the sensor and place the finger firmly.",
		threshold: func(t FeedbackThresholds) float64 { return t.MaxMu },
		trigger:   func(v float64, ok bool, limit float64) bool { return ok && v > limit },
	},
	{
		id:        UniformImage,
		feature:   featureSigma,
		module:    analyzer.ModuleContrast,
		severity:  "error",
		message:   "Image has no gray level variation. Check the capture device.",
		threshold: func(t FeedbackThresholds) float64 { return t.MinSigma },
		trigger:   func(v float64, ok bool, limit float64) bool { return ok && v < limit },
	},
	{
		id:        InsufficientRidgeStructure,
		feature:   featureOCLMean,
		module:    analyzer.ModuleOrientationCertainty,
		severity:  "error",
		message:   "Ridge structure is not visible. Press the finger flat on the sensor.",
		threshold: func(t FeedbackThresholds) float64 { return t.MinOrientationCertainty },
		trigger:   func(v float64, ok bool, limit float64) bool { return !ok || v < limit },
	},
	{
		id:        InsufficientMinutiae,
		feature:   featureMinutiaeCount,
		module:    analyzer.ModuleMinutiaeCount,
		severity:  "error",
		message:   "Too few minutiae were found. Capture a larger area of the fingertip.",
		threshold: func(t FeedbackThresholds) float64 { return t.MinMinutiae },
		trigger:   func(v float64, ok bool, limit float64) bool { return ok && v < limit },
	},
	{
		id:        InsufficientForeground,
		feature:   featureROIPixels,
		module:    analyzer.ModuleRegionOfInterest,
		severity:  "error",
		message:   "Fingerprint area is too small. Center the finger on the sensor.",
		threshold: func(t FeedbackThresholds) float64 { return t.MinForegroundPixels },
		trigger:   func(v float64, ok bool, limit float64) bool { return ok && v < limit },
	},
	{
		id:        PoorRidgeClarity,
		feature:   featureLCSMean,
		module:    analyzer.ModuleLocalClarity,
		severity:  "warning",
		message:   "Ridges are smudged or broken. Dry or moisten the finger and try again.",
		threshold: func(t FeedbackThresholds) float64 { return t.MinLocalClarity },
		trigger:   func(v float64, ok bool, limit float64) bool { return ok && v < limit },
	},
}

// AllIdentifiers returns every feedback identifier in enumeration order
func AllIdentifiers() []FeedbackID {
	ids := make([]FeedbackID, len(rules))
	for i, r := range rules {
		ids[i] = r.id
	}
	return ids
}

// FeedbackModules returns the feature modules the rules read, in schema order
func FeedbackModules() []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range analyzer.Modules() {
		for _, r := range rules {
			if r.module == m.Name() && !seen[m.Name()] {
				seen[m.Name()] = true
				names = append(names, m.Name())
			}
		}
	}
	return names
}

// FeedbackGenerator turns feature values into actionable defects
type FeedbackGenerator struct {
	thresholds FeedbackThresholds
}

// NewFeedbackGenerator creates a generator with default thresholds
func NewFeedbackGenerator() *FeedbackGenerator {
	return &FeedbackGenerator{
		thresholds: DefaultFeedbackThresholds(),
	}
}

// NewFeedbackGeneratorWithThresholds creates a generator with custom thresholds
func NewFeedbackGeneratorWithThresholds(thresholds FeedbackThresholds) *FeedbackGenerator {
	return &FeedbackGenerator{
		thresholds: thresholds,
	}
}

// Thresholds returns the thresholds in use
func (g *FeedbackGenerator) Thresholds() FeedbackThresholds {
	return g.thresholds
}

// FromFeatures evaluates every rule against vec and returns the triggered
// items in enumeration order. A rule whose feature is absent from vec is skipped.
func (g *FeedbackGenerator) FromFeatures(vec models.FeatureVector) []FeedbackItem {
	var items []FeedbackItem
	for _, r := range rules {
		rec, present := vec.Get(r.feature)
		if !present {
			continue
		}
		limit := r.threshold(g.thresholds)
		if !r.trigger(rec.Value, rec.Available, limit) {
			continue
		}
		items = append(items, FeedbackItem{
			ID:        r.id,
			Message:   r.message,
			Severity:  r.severity,
			Value:     rec.Value,
			Available: rec.Available,
			Threshold: limit,
		})
	}
	return items
}

// FromImage extracts only the features the rules need and evaluates them
func (g *FeedbackGenerator) FromImage(agg *analyzer.Aggregator, img *models.FingerprintImage, opts analyzer.AggregatorOptions) ([]FeedbackItem, error) {
	data, err := agg.Run(img, opts.WithModules(FeedbackModules()...))
	if err != nil {
		return nil, err
	}
	return g.FromFeatures(data.Vector), nil
}

// IDs returns the identifiers of items
func IDs(items []FeedbackItem) []FeedbackID {
	ids := make([]FeedbackID, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}

// HasCriticalIssues checks if there are any critical (error severity) items
func HasCriticalIssues(items []FeedbackItem) bool {
	for _, it := range items {
		if it.Severity == "error" {
			return true
		}
	}
	return false
}
