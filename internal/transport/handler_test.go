package transport

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go-fingerprint-quality/internal/analyzer"
	"go-fingerprint-quality/internal/config"
	"go-fingerprint-quality/internal/observer"
	"go-fingerprint-quality/internal/repository"
	"go-fingerprint-quality/internal/service"
	"go-fingerprint-quality/internal/storage"
	"go-fingerprint-quality/internal/testutil"
	"go-fingerprint-quality/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() *config.Config {
	return &config.Config{
		RequestTimeout:     30 * time.Second,
		ImageFetchTimeout:  5 * time.Second,
		AnalysisTimeout:    20 * time.Second,
		MaxRequestBodySize: 10 << 20,
		DefaultPPI:         500,
	}
}

func newTestHandler(t *testing.T, cfg *config.Config) (http.Handler, *observer.MetricsObserver) {
	t.Helper()
	quality, err := service.NewDefaultQualityService(analyzer.DefaultOptions())
	require.NoError(t, err)

	metrics := observer.NewMetricsObserver()
	events := observer.NewEventPublisher()
	events.Subscribe(metrics)

	images := repository.NewSourceImageRepository(storage.NewHTTPImageFetcher(cfg.ImageFetchTimeout), nil, nil)
	scoring := service.NewImageScoringService(images, repository.NewMemoryScoreRepository(time.Hour), quality, events)
	return NewHandler(scoring, quality, metrics, cfg), metrics
}

func printPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testutil.Fingerprint(400, 480).Gray()))
	return buf.Bytes()
}

func do(h http.Handler, method, target string, body []byte, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestEnumerationRoutes(t *testing.T) {
	h, _ := newTestHandler(t, testConfig())

	w := do(h, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(h, http.MethodGet, "/v1/features", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	features := decode[map[string][]string](t, w)
	assert.Equal(t, analyzer.DefaultSchema().FeatureIDs(), features["features"])

	w = do(h, http.MethodGet, "/v1/actionable", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[map[string][]string](t, w)["identifiers"], 6)

	w = do(h, http.MethodGet, "/v1/model", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	info := decode[models.ModelInfoResponse](t, w)
	assert.Equal(t, analyzer.ExpectedModelHash, info.Hash)
	assert.Equal(t, len(features["features"]), info.FeatureCount)
}

func TestScore_Inline(t *testing.T) {
	h, metrics := newTestHandler(t, testConfig())

	body, _ := json.Marshal(models.ScoreRequest{
		ImageBase64:     base64.StdEncoding.EncodeToString(printPNG(t)),
		IncludeFeatures: true,
	})
	w := do(h, http.MethodPost, "/v1/score", body, map[string]string{"X-Request-ID": "abc-123"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))

	resp := decode[service.ScoringResponse](t, w)
	assert.Equal(t, "abc-123", resp.RequestID)
	assert.Greater(t, resp.Score, 25)
	assert.Len(t, resp.Features, len(analyzer.DefaultSchema().FeatureIDs()))

	w = do(h, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode[map[string]any](t, w)["successful_scorings"])
	assert.Equal(t, int64(1), metrics.GetMetrics()["total_scorings"])
}

func TestScore_FromURLIsCached(t *testing.T) {
	payload := printPNG(t)
	images := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(payload)
	}))
	defer images.Close()

	h, _ := newTestHandler(t, testConfig())
	body, _ := json.Marshal(models.ScoreRequest{URL: images.URL + "/print.png"})

	w := do(h, http.MethodPost, "/v1/score", body, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	first := decode[service.ScoringResponse](t, w)
	assert.False(t, first.Cached)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = do(h, http.MethodPost, "/v1/score", body, nil)
	require.Equal(t, http.StatusOK, w.Code)
	second := decode[service.ScoringResponse](t, w)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Score, second.Score)
}

func TestScore_BadRequests(t *testing.T) {
	h, _ := newTestHandler(t, testConfig())

	tests := []struct {
		name string
		body string
		code int
	}{
		{"not json", "{", http.StatusBadRequest},
		{"no image", `{}`, http.StatusBadRequest},
		{"both sources", `{"url":"https://a.example.com/x.png","image_base64":"AAAA"}`, http.StatusBadRequest},
		{"bad base64", `{"image_base64":"***"}`, http.StatusBadRequest},
		{"not an image", `{"image_base64":"aGVsbG8="}`, http.StatusBadRequest},
		{"disallowed scheme", `{"url":"ftp://a.example.com/x.png"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(h, http.MethodPost, "/v1/score", []byte(tt.body), nil)
			assert.Equal(t, tt.code, w.Code, w.Body.String())
			resp := decode[models.ErrorResponse](t, w)
			assert.NotEmpty(t, resp.RequestID)
		})
	}
}

func TestScoreRaw(t *testing.T) {
	h, _ := newTestHandler(t, testConfig())
	blank := testutil.Blank(300, 300, 255)

	w := do(h, http.MethodPost, "/v1/score/raw?width=300&height=300", blank.Pixels(), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[service.ScoringResponse](t, w)
	assert.LessOrEqual(t, resp.Score, 10)
	assert.Contains(t, resp.Actionable, "InsufficientRidgeStructure")

	w = do(h, http.MethodPost, "/v1/score/raw?width=300", blank.Pixels(), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(h, http.MethodPost, "/v1/score/raw?width=300&height=299", blank.Pixels(), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(h, http.MethodPost, "/v1/score/raw?width=300&height=300&ppi=1000", blank.Pixels(), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRequestSizeLimit(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRequestBodySize = 1024
	h, _ := newTestHandler(t, cfg)

	body := []byte(`{"image_base64":"` + strings.Repeat("A", 4096) + `"}`)
	w := do(h, http.MethodPost, "/v1/score", body, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitRPS = 0.001
	cfg.RateLimitBurst = 1
	h, _ := newTestHandler(t, cfg)

	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/health", nil, nil).Code)
	w := do(h, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}
