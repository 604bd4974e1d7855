// Package batch scores many images concurrently for the command line tool.
package batch

import (
	"context"
	"time"

	"go-fingerprint-quality/internal/logger"
	"go-fingerprint-quality/internal/storage"
	"go-fingerprint-quality/internal/strategy"
	"go-fingerprint-quality/pkg/models"

	"github.com/sirupsen/logrus"
)

// Loader turns a path into a scoring-ready image
type Loader func(ctx context.Context, path string) (*models.FingerprintImage, error)

// Result is the outcome for one path. Exactly one of Evaluation and Err is set.
type Result struct {
	Path       string
	Evaluation *strategy.Evaluation
	Err        error
	Elapsed    time.Duration
}

// Runner evaluates a list of images with one strategy on a worker pool
type Runner struct {
	strategy strategy.ScoringStrategy
	load     Loader
	workers  int
}

// NewRunner creates a runner. workers <= 0 uses the CPU count.
func NewRunner(s strategy.ScoringStrategy, load Loader, workers int) *Runner {
	return &Runner{strategy: s, load: load, workers: workers}
}

// Run evaluates every path and returns results in input order. Paths not yet
// started when ctx is done fail with the context error.
func (r *Runner) Run(ctx context.Context, paths []string) []Result {
	pool := NewWorkerPool(r.workers)
	pool.Start()
	defer pool.Close()

	results := make([]Result, len(paths))
	for i, path := range paths {
		pool.Submit(func() {
			results[i] = r.process(ctx, path)
		})
	}
	pool.Wait()

	stats := pool.GetStats()
	logger.WithFields(logrus.Fields{
		"strategy":  r.strategy.GetStrategyName(),
		"images":    len(paths),
		"completed": stats.CompletedJobs,
		"workers":   stats.Workers,
	}).Debug("Batch finished")
	return results
}

func (r *Runner) process(ctx context.Context, path string) Result {
	start := time.Now()
	res := Result{Path: path}
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	img, err := r.load(ctx, path)
	if err == nil {
		res.Evaluation, err = r.strategy.Evaluate(img)
	}
	res.Err = err
	res.Elapsed = time.Since(start)
	if err != nil {
		logger.WithError(err).WithField("path", path).Warn("Image evaluation failed")
	}
	return res
}

// FileLoader reads images through fetcher, optionally removing a white scanner frame
func FileLoader(fetcher storage.ImageFetcher, ppi int, trimWhiteFrame bool) Loader {
	return func(ctx context.Context, path string) (*models.FingerprintImage, error) {
		decoded, err := fetcher.FetchImage(ctx, path)
		if err != nil {
			return nil, err
		}
		img, err := models.FromImage(decoded, ppi)
		if err != nil {
			return nil, err
		}
		if trimWhiteFrame {
			return img.TrimWhiteFrame()
		}
		return img, nil
	}
}
