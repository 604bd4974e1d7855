package repository

import (
	"context"
	"image"
	"time"

	"go-fingerprint-quality/pkg/validation"
)

// ImageRepository defines the interface for image data access operations
type ImageRepository interface {
	// FetchImage retrieves and decodes the image at source
	FetchImage(ctx context.Context, source string) (image.Image, error)

	// ValidateSource validates if the provided location is acceptable
	ValidateSource(source string) error
}

// ScoreRepository stores score results keyed by image digest and model hash
type ScoreRepository interface {
	// GetScore returns ErrScoreNotFound when nothing is stored under key
	GetScore(ctx context.Context, key string) (*ScoreRecord, error)

	SaveScore(ctx context.Context, key string, record *ScoreRecord) error
}

// ScoreRecord is the cached outcome of scoring one image. It carries everything
// a scoring response needs except the feature vector.
type ScoreRecord struct {
	Digest       string                    `json:"digest"`
	ModelHash    string                    `json:"model_hash"`
	Score        int                       `json:"score"`
	RawScore     float64                   `json:"raw_score"`
	Feedback     []validation.FeedbackItem `json:"feedback"`
	ModuleErrors map[string]string         `json:"module_errors,omitempty"`
	CreatedAt    time.Time                 `json:"created_at"`
}

// Clone returns a deep copy. A non-nil empty Feedback stays non-nil.
func (r *ScoreRecord) Clone() *ScoreRecord {
	c := *r
	if r.Feedback != nil {
		c.Feedback = make([]validation.FeedbackItem, len(r.Feedback))
		copy(c.Feedback, r.Feedback)
	}
	if r.ModuleErrors != nil {
		c.ModuleErrors = make(map[string]string, len(r.ModuleErrors))
		for k, v := range r.ModuleErrors {
			c.ModuleErrors[k] = v
		}
	}
	return &c
}

// ScoreKey builds the cache key for an image scored by a model
func ScoreKey(digest, modelHash string, trimmed bool) string {
	key := "fpquality:score:" + modelHash + ":" + digest
	if trimmed {
		key += ":trimmed"
	}
	return key
}
