package batch

import (
	"context"
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"go-fingerprint-quality/internal/analyzer"
	"go-fingerprint-quality/internal/service"
	"go-fingerprint-quality/internal/storage"
	"go-fingerprint-quality/internal/strategy"
	"go-fingerprint-quality/internal/testutil"
	"go-fingerprint-quality/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, dir, name string, img *models.FingerprintImage) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img.Gray()))
	return path
}

func TestRunner_ScoresInOrder(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writePNG(t, dir, "print.png", testutil.Fingerprint(320, 360)),
		filepath.Join(dir, "missing.png"),
		writePNG(t, dir, "blank.png", testutil.Blank(300, 300, 255)),
	}

	quality, err := service.NewDefaultQualityService(analyzer.SequentialOptions())
	require.NoError(t, err)
	load := FileLoader(storage.NewFileImageFetcher(""), models.Resolution500PPI, false)

	results := NewRunner(strategy.NewFullScoreStrategy(quality), load, 3).Run(context.Background(), paths)
	require.Len(t, results, 3)

	for i, r := range results {
		assert.Equal(t, paths[i], r.Path)
	}
	require.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
	assert.Nil(t, results[1].Evaluation)
	require.NoError(t, results[2].Err)
	assert.Greater(t, results[0].Evaluation.Score, results[2].Evaluation.Score)
}

func TestRunner_CanceledContext(t *testing.T) {
	calls := 0
	load := func(ctx context.Context, path string) (*models.FingerprintImage, error) {
		calls++
		return nil, errors.New("unreachable")
	}
	quality, err := service.NewDefaultQualityService(analyzer.DefaultOptions())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := NewRunner(strategy.NewFeedbackStrategy(quality), load, 1).Run(ctx, []string{"a.png", "b.png"})

	assert.Equal(t, 0, calls)
	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
}

func TestFileLoader_Trim(t *testing.T) {
	dir := t.TempDir()
	path := writePNG(t, dir, "framed.png", testutil.Framed(testutil.Fingerprint(320, 360), 30))
	fetcher := storage.NewFileImageFetcher(dir)

	img, err := FileLoader(fetcher, models.Resolution500PPI, true)(context.Background(), "framed.png")
	require.NoError(t, err)
	assert.Less(t, img.Width(), 380)

	_, err = FileLoader(fetcher, 1000, false)(context.Background(), "framed.png")
	assert.Error(t, err)
}
