package model

import (
	_ "embed"
	"sync"

	"go-fingerprint-quality/internal/analyzer"
	"go-fingerprint-quality/internal/logger"

	"github.com/sirupsen/logrus"
)

//go:embed assets/quality_forest.json.gz
var embeddedForest []byte

var (
	defaultOnce  sync.Once
	defaultModel *Model
	defaultErr   error
)

// Default returns the bundled model, loading and verifying it on first use.
// A load failure is cached and returned to every caller.
func Default() (*Model, error) {
	defaultOnce.Do(func() {
		defaultModel, defaultErr = Load(embeddedForest, analyzer.DefaultSchema())
		if defaultErr != nil {
			logger.WithError(defaultErr).Error("Failed to load bundled quality model")
			return
		}
		logger.WithFields(logrus.Fields{
			"name":    defaultModel.info.name,
			"version": defaultModel.info.version,
			"hash":    defaultModel.info.hash,
			"trees":   len(defaultModel.trees),
		}).Info("Quality model loaded")
	})
	return defaultModel, defaultErr
}

// EmbeddedBlob returns a copy of the bundled model blob
func EmbeddedBlob() []byte {
	return append([]byte(nil), embeddedForest...)
}
