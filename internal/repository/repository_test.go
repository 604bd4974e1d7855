package repository

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"go-fingerprint-quality/pkg/validation"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingFetcher struct {
	name  string
	calls *[]string
}

func (f recordingFetcher) FetchImage(ctx context.Context, source string) (image.Image, error) {
	*f.calls = append(*f.calls, f.name)
	return image.NewGray(image.Rect(0, 0, 1, 1)), nil
}

func TestSourceImageRepository_Routing(t *testing.T) {
	var calls []string
	repo := NewSourceImageRepository(
		recordingFetcher{"http", &calls},
		recordingFetcher{"blob", &calls},
		recordingFetcher{"file", &calls},
	)

	sources := []string{
		"https://example.com/print.png",
		"azblob://prints/left.png",
		"https://acct.blob.core.windows.net/prints/left.png",
		"file:///tmp/print.png",
		"prints/right.png",
	}
	for _, s := range sources {
		_, err := repo.FetchImage(context.Background(), s)
		require.NoError(t, err, s)
	}
	assert.Equal(t, []string{"http", "blob", "blob", "file", "file"}, calls)
}

func TestSourceImageRepository_Unsupported(t *testing.T) {
	var calls []string
	repo := NewSourceImageRepository(recordingFetcher{"http", &calls}, nil, nil)

	_, err := repo.FetchImage(context.Background(), "azblob://prints/left.png")
	assert.ErrorIs(t, err, ErrSourceNotSupported)

	// without local files the validator rejects paths outright
	_, err = repo.FetchImage(context.Background(), "/etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidSource)

	_, err = repo.FetchImage(context.Background(), "https://acct.blob.core.windows.net/prints/left.png?sig=x")
	require.NoError(t, err)
	assert.Equal(t, []string{"http"}, calls)
}

func TestMemoryScoreRepository(t *testing.T) {
	repo := NewMemoryScoreRepository(time.Minute)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := repo.GetScore(ctx, "missing")
	assert.ErrorIs(t, err, ErrScoreNotFound)

	rec := &ScoreRecord{
		Digest:       "d",
		ModelHash:    "h",
		Score:        57,
		RawScore:     0.57,
		Feedback:     []validation.FeedbackItem{{ID: validation.PoorRidgeClarity, Severity: "warning", Value: 0.2, Available: true}},
		ModuleErrors: map[string]string{"MU": "skipped"},
	}
	require.NoError(t, repo.SaveScore(ctx, "k", rec))
	rec.Feedback[0].ID = "mutated"
	rec.ModuleErrors["MU"] = "mutated"

	got, err := repo.GetScore(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 57, got.Score)
	require.Len(t, got.Feedback, 1)
	assert.Equal(t, validation.PoorRidgeClarity, got.Feedback[0].ID)
	assert.Equal(t, map[string]string{"MU": "skipped"}, got.ModuleErrors)

	got.Feedback[0].ID = "changed"
	again, err := repo.GetScore(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, validation.PoorRidgeClarity, again.Feedback[0].ID)

	now = now.Add(2 * time.Minute)
	_, err = repo.GetScore(ctx, "k")
	assert.ErrorIs(t, err, ErrScoreNotFound)
	assert.Equal(t, 1, repo.Len())
}

func TestMemoryScoreRepository_KeepsEmptyCollections(t *testing.T) {
	repo := NewMemoryScoreRepository(0)
	ctx := context.Background()

	rec := &ScoreRecord{Digest: "d", Feedback: []validation.FeedbackItem{}, ModuleErrors: map[string]string{}}
	require.NoError(t, repo.SaveScore(ctx, "empty", rec))
	require.NoError(t, repo.SaveScore(ctx, "nil", &ScoreRecord{Digest: "d"}))

	got, err := repo.GetScore(ctx, "empty")
	require.NoError(t, err)
	assert.NotNil(t, got.Feedback)
	assert.Empty(t, got.Feedback)
	assert.NotNil(t, got.ModuleErrors)

	got, err = repo.GetScore(ctx, "nil")
	require.NoError(t, err)
	assert.Nil(t, got.Feedback)
	assert.Nil(t, got.ModuleErrors)
}

func TestRedisScoreRepository_Unavailable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()
	repo := NewRedisScoreRepository(client, time.Minute)

	_, err := repo.GetScore(context.Background(), "k")
	assert.ErrorIs(t, err, ErrRepositoryUnavailable)

	err = repo.SaveScore(context.Background(), "k", &ScoreRecord{Score: 1})
	assert.True(t, errors.Is(err, ErrRepositoryUnavailable))
}

func TestScoreKey(t *testing.T) {
	assert.Equal(t, "fpquality:score:abc:123", ScoreKey("123", "abc", false))
	assert.Equal(t, "fpquality:score:abc:123:trimmed", ScoreKey("123", "abc", true))
}
