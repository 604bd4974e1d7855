package service

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"testing"
	"time"

	apperrors "go-fingerprint-quality/internal/errors"
	"go-fingerprint-quality/internal/observer"
	"go-fingerprint-quality/internal/repository"
	"go-fingerprint-quality/internal/testutil"
	"go-fingerprint-quality/pkg/models"
	"go-fingerprint-quality/pkg/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubImageRepository struct {
	img     image.Image
	err     error
	fetches int
}

func (r *stubImageRepository) FetchImage(ctx context.Context, source string) (image.Image, error) {
	r.fetches++
	return r.img, r.err
}

func (r *stubImageRepository) ValidateSource(source string) error {
	if source == "" {
		return errors.New("image source cannot be empty")
	}
	return nil
}

func newScoringService(t *testing.T, repo repository.ImageRepository, scores repository.ScoreRepository) (ImageScoringService, *observer.MetricsObserver) {
	t.Helper()
	metrics := observer.NewMetricsObserver()
	events := observer.NewEventPublisher()
	events.Subscribe(metrics)
	return NewImageScoringService(repo, scores, newService(t), events), metrics
}

func TestScoreSource_CachesByDigest(t *testing.T) {
	repo := &stubImageRepository{img: testutil.Fingerprint(320, 360).Gray()}
	scores := repository.NewMemoryScoreRepository(time.Hour)
	svc, metrics := newScoringService(t, repo, scores)

	req := ScoringRequest{RequestID: "req-1", Source: "https://prints.example.com/a.png"}
	first, err := svc.ScoreSource(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.NotEmpty(t, first.Digest)
	assert.Nil(t, first.Features)
	assert.Equal(t, 1, scores.Len())

	second, err := svc.ScoreSource(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Score, second.Score)
	assert.Equal(t, first.Actionable, second.Actionable)
	assert.Equal(t, 2, repo.fetches)

	m := metrics.GetMetrics()
	assert.Equal(t, int64(1), m["cache_hits"])
	assert.Equal(t, int64(1), m["successful_scorings"])
}

func TestScoreImage_CachedResponseMatchesFresh(t *testing.T) {
	tests := []struct {
		name string
		img  *models.FingerprintImage
	}{
		{"fingerprint", testutil.Fingerprint(320, 360)},
		{"blank", testutil.Blank(200, 200, 255)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newScoringService(t, &stubImageRepository{}, repository.NewMemoryScoreRepository(time.Hour))
			req := ScoringRequest{RequestID: "req-" + tt.name}

			fresh, err := svc.ScoreImage(context.Background(), tt.img, req)
			require.NoError(t, err)
			cached, err := svc.ScoreImage(context.Background(), tt.img, req)
			require.NoError(t, err)
			require.True(t, cached.Cached)

			normalized := *cached
			normalized.Cached = false
			normalized.Timestamp = fresh.Timestamp
			normalized.ProcessingTimeSec = fresh.ProcessingTimeSec
			assert.Equal(t, *fresh, normalized)

			freshJSON, err := json.Marshal(fresh)
			require.NoError(t, err)
			cachedJSON, err := json.Marshal(&normalized)
			require.NoError(t, err)
			assert.JSONEq(t, string(freshJSON), string(cachedJSON))
			assert.NotNil(t, cached.Actionable)
		})
	}
}

func TestScoreImage_CachedBlankKeepsFeedback(t *testing.T) {
	svc, _ := newScoringService(t, &stubImageRepository{}, repository.NewMemoryScoreRepository(time.Hour))
	img := testutil.Blank(200, 200, 255)

	_, err := svc.ScoreImage(context.Background(), img, ScoringRequest{})
	require.NoError(t, err)
	cached, err := svc.ScoreImage(context.Background(), img, ScoringRequest{})
	require.NoError(t, err)

	require.True(t, cached.Cached)
	assert.NotEmpty(t, cached.Feedback)
	assert.Contains(t, cached.Actionable, string(validation.InsufficientRidgeStructure))
	assert.Len(t, cached.Actionable, len(cached.Feedback))
}

func TestScoreImage_IncludeFeaturesBypassesCache(t *testing.T) {
	scores := repository.NewMemoryScoreRepository(time.Hour)
	svc, _ := newScoringService(t, &stubImageRepository{}, scores)
	img := testutil.Fingerprint(320, 360)

	_, err := svc.ScoreImage(context.Background(), img, ScoringRequest{})
	require.NoError(t, err)

	resp, err := svc.ScoreImage(context.Background(), img, ScoringRequest{IncludeFeatures: true})
	require.NoError(t, err)
	assert.False(t, resp.Cached)
	assert.NotEmpty(t, resp.Features)
	assert.Len(t, resp.Actionable, len(resp.Feedback))
}

func TestScoreSource_Errors(t *testing.T) {
	t.Run("invalid source", func(t *testing.T) {
		svc, _ := newScoringService(t, &stubImageRepository{}, nil)
		_, err := svc.ScoreSource(context.Background(), ScoringRequest{})
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation), "got %v", err)
	})

	t.Run("fetch failure", func(t *testing.T) {
		repo := &stubImageRepository{err: errors.New("connection refused")}
		svc, metrics := newScoringService(t, repo, nil)
		_, err := svc.ScoreSource(context.Background(), ScoringRequest{Source: "https://prints.example.com/a.png"})
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNetwork), "got %v", err)
		assert.Equal(t, int64(1), metrics.GetMetrics()["fetch_failures"])
	})

	t.Run("unsupported source", func(t *testing.T) {
		repo := &stubImageRepository{err: repository.ErrSourceNotSupported}
		svc, _ := newScoringService(t, repo, nil)
		_, err := svc.ScoreSource(context.Background(), ScoringRequest{Source: "azblob://prints/a.png"})
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation), "got %v", err)
	})

	t.Run("unsupported resolution", func(t *testing.T) {
		repo := &stubImageRepository{img: testutil.Fingerprint(320, 360).Gray()}
		svc, _ := newScoringService(t, repo, nil)
		_, err := svc.ScoreSource(context.Background(), ScoringRequest{Source: "https://prints.example.com/a.png", PPI: 1000})
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalidImage), "got %v", err)
	})
}

func TestScoreImage_DeadlineExceeded(t *testing.T) {
	svc, metrics := newScoringService(t, &stubImageRepository{}, nil)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := svc.ScoreImage(ctx, testutil.Fingerprint(320, 360), ScoringRequest{})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeTimeout), "got %v", err)
	assert.Equal(t, int64(1), metrics.GetMetrics()["failed_scorings"])
}

func TestScoreImage_TrimWhiteFrame(t *testing.T) {
	svc, _ := newScoringService(t, &stubImageRepository{}, nil)

	framed := testutil.Framed(testutil.Fingerprint(400, 480), 40)
	resp, err := svc.ScoreImage(context.Background(), framed, ScoringRequest{TrimWhiteFrame: true})
	require.NoError(t, err)
	assert.Equal(t, framed.Digest(), resp.Digest)

	_, err = svc.ScoreImage(context.Background(), testutil.Blank(200, 200, 255), ScoringRequest{TrimWhiteFrame: true})
	assert.Error(t, err)
}
