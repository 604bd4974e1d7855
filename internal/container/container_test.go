package container

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go-fingerprint-quality/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Host:               "127.0.0.1",
		Port:               "8080",
		RequestTimeout:     30 * time.Second,
		ImageFetchTimeout:  5 * time.Second,
		AnalysisTimeout:    20 * time.Second,
		MaxRequestBodySize: 1 << 20,
		DefaultPPI:         500,
		RedisTTL:           time.Hour,
	}
}

func TestNewContainer(t *testing.T) {
	c, err := NewContainer(testConfig())
	require.NoError(t, err)
	defer c.Close()

	assert.NotNil(t, c.ScoringService())
	assert.Equal(t, "127.0.0.1:8080", c.Config().ServerAddress())

	w := httptest.NewRecorder()
	c.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNewContainer_Failures(t *testing.T) {
	t.Run("missing model info", func(t *testing.T) {
		cfg := testConfig()
		cfg.ModelInfoPath = t.TempDir() + "/missing.txt"
		_, err := NewContainer(cfg)
		assert.Error(t, err)
	})

	t.Run("redis unreachable", func(t *testing.T) {
		cfg := testConfig()
		cfg.RedisAddr = "127.0.0.1:1"
		_, err := NewContainer(cfg)
		assert.ErrorContains(t, err, "redis connection failed")
	})

	t.Run("bad azure key", func(t *testing.T) {
		cfg := testConfig()
		cfg.AzureStorageAccount = "prints"
		cfg.AzureStorageKey = "not base64!"
		_, err := NewContainer(cfg)
		assert.Error(t, err)
	})
}
