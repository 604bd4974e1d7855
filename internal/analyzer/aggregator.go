package analyzer

import (
	"fmt"
	"math"
	"time"

	apperrors "go-fingerprint-quality/internal/errors"
	"go-fingerprint-quality/internal/logger"
	"go-fingerprint-quality/internal/timer"
	"go-fingerprint-quality/pkg/models"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Aggregator runs the feature modules of a schema over one image and
// assembles their output into an ordered feature vector.
type Aggregator struct {
	schema Schema
}

// NewAggregator creates an aggregator for schema
func NewAggregator(schema Schema) *Aggregator {
	return &Aggregator{schema: schema}
}

// Schema returns the schema the aggregator extracts
func (ag *Aggregator) Schema() Schema {
	return ag.schema
}

type moduleResult struct {
	values  []float64
	err     error
	elapsed time.Duration
}

// Run extracts features from img. Modules run concurrently, bounded by
// opts.MaxWorkers, and the result does not depend on their completion order.
// A failing required module aborts with a coded error; a failing optional
// module marks its features unavailable.
func (ag *Aggregator) Run(img *models.FingerprintImage, opts AggregatorOptions) (*models.FeatureData, error) {
	if img == nil {
		return nil, apperrors.NewInvalidImageError("image is nil", nil)
	}
	modules, err := ag.schema.Select(opts.Modules)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid module selection", err)
	}

	total := timer.Start()
	if opts.TrimWhiteFrame {
		img, err = img.TrimWhiteFrame()
		if err != nil {
			return nil, err
		}
	}

	analysis := NewAnalysis(img)
	results := make([]moduleResult, len(modules))

	g := new(errgroup.Group)
	g.SetLimit(opts.workers())
	for i, m := range modules {
		g.Go(func() error {
			results[i] = runModule(m, analysis)
			return nil
		})
	}
	_ = g.Wait()

	data := &models.FeatureData{
		FeatureSpeeds: make(map[string]time.Duration),
		ModuleSpeeds:  make(map[string]time.Duration),
		ModuleErrors:  make(map[string]string),
	}
	for i, m := range modules {
		res := results[i]
		if res.err == nil {
			if id, ok := firstNonFinite(m.FeatureIDs(), res.values); ok {
				res.err = apperrors.NewNumericalInstabilityError(
					fmt.Sprintf("module %s produced a non-finite value for %s", m.Name(), id), nil)
			}
		}

		if res.err != nil {
			if ag.schema.IsRequired(m.Name()) {
				logger.WithFields(logrus.Fields{
					"module": m.Name(),
					"error":  res.err.Error(),
				}).Error("Required feature module failed")
				if apperrors.IsType(res.err, apperrors.ErrorTypeNumericalInstability) {
					return nil, res.err
				}
				return nil, apperrors.NewFeatureExtractionError(
					fmt.Sprintf("required module %s failed", m.Name()), res.err)
			}
			logger.WithFields(logrus.Fields{
				"module": m.Name(),
				"error":  res.err.Error(),
			}).Warn("Optional feature module failed, features marked unavailable")
			data.ModuleErrors[m.Name()] = res.err.Error()
		}

		for j, id := range m.FeatureIDs() {
			if res.err != nil {
				data.Vector = append(data.Vector, models.Unavailable(id, res.elapsed))
			} else {
				data.Vector = append(data.Vector, models.FeatureRecord{
					ID:        id,
					Value:     res.values[j],
					Available: true,
					Elapsed:   res.elapsed,
				})
			}
			data.FeatureSpeeds[id] = res.elapsed
		}
		data.ModuleSpeeds[m.SpeedGroup()] += res.elapsed
	}

	data.Elapsed = total.Stop()
	logger.WithFields(logrus.Fields{
		"modules":     len(modules),
		"failed":      len(data.ModuleErrors),
		"features":    len(data.Vector),
		"duration_ms": total.Milliseconds(),
	}).Debug("Feature extraction completed")
	return data, nil
}

// runModule executes one module, converting panics into errors
func runModule(m FeatureModule, a *Analysis) (res moduleResult) {
	t := timer.Start()
	defer func() {
		if r := recover(); r != nil {
			res.values = nil
			res.err = fmt.Errorf("module %s panicked: %v", m.Name(), r)
		}
		res.elapsed = t.Stop()
	}()

	values, err := m.Compute(a)
	if err == nil && len(values) != len(m.FeatureIDs()) {
		err = fmt.Errorf("module %s returned %d values for %d features", m.Name(), len(values), len(m.FeatureIDs()))
	}
	res.values, res.err = values, err
	return res
}

func firstNonFinite(ids []string, values []float64) (string, bool) {
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ids[i], true
		}
	}
	return "", false
}
