package transport

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"strconv"
	"time"

	"go-fingerprint-quality/internal/config"
	apperrors "go-fingerprint-quality/internal/errors"
	"go-fingerprint-quality/internal/logger"
	"go-fingerprint-quality/internal/observer"
	"go-fingerprint-quality/internal/service"
	"go-fingerprint-quality/internal/storage"
	"go-fingerprint-quality/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Handler serves the quality scoring API
type Handler struct {
	scoring service.ImageScoringService
	quality service.QualityService
	metrics *observer.MetricsObserver
	cfg     *config.Config
}

// NewHandler builds the gin engine. metrics may be nil.
func NewHandler(scoring service.ImageScoringService, quality service.QualityService, metrics *observer.MetricsObserver, cfg *config.Config) http.Handler {
	h := &Handler{scoring: scoring, quality: quality, metrics: metrics, cfg: cfg}

	r := gin.Default()

	// Add middleware
	r.Use(
		requestID(),
		rateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	// Configure routes
	r.GET("/health", healthCheck)
	r.GET("/metrics", h.getMetrics)

	v1 := r.Group("/v1")
	v1.GET("/model", h.modelInfo)
	v1.GET("/features", h.featureIDs)
	v1.GET("/actionable", h.actionableIDs)
	v1.POST("/score", h.score)
	v1.POST("/score/raw", h.scoreRaw)

	return r
}

func (h *Handler) score(c *gin.Context) {
	startTime := time.Now()

	// Log request start
	logger.WithFields(logrus.Fields{
		"request_id": c.GetString(requestIDKey),
		"path":       c.Request.URL.Path,
		"user_agent": c.Request.UserAgent(),
		"ip":         c.ClientIP(),
	}).Info("Processing score request")

	var req models.ScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request format", err)
		return
	}
	if (req.URL == "") == (req.ImageBase64 == "") {
		err := apperrors.NewValidationError("exactly one of url and image_base64 is required", nil)
		respondError(c, err.StatusCode, "invalid request", err)
		return
	}

	sreq := h.scoringRequest(c, req.PPI, req.TrimWhiteFrame, req.IncludeFeatures)
	sreq.Source = req.URL

	// inline images skip the fetch, so only the analysis budget applies
	timeout := h.cfg.RequestTimeout
	if req.URL == "" {
		timeout = h.cfg.AnalysisTimeout
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
	defer cancel()

	var (
		resp *service.ScoringResponse
		err  error
	)
	if req.URL != "" {
		resp, err = h.scoring.ScoreSource(ctx, sreq)
	} else {
		var img *models.FingerprintImage
		img, err = decodeInline(req.ImageBase64, sreq.PPI)
		if err == nil {
			resp, err = h.scoring.ScoreImage(ctx, img, sreq)
		}
	}
	if err != nil {
		respondError(c, apperrors.GetStatusCode(err), "scoring failed", err)
		return
	}

	logger.WithFields(logrus.Fields{
		"request_id":         sreq.RequestID,
		"processing_time_ms": time.Since(startTime).Milliseconds(),
		"score":              resp.Score,
		"cached":             resp.Cached,
	}).Info("Score request completed")

	c.JSON(http.StatusOK, resp)
}

// scoreRaw scores an uncompressed 8-bit grayscale raster sent as the request body
func (h *Handler) scoreRaw(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.AnalysisTimeout)
	defer cancel()

	width, werr := strconv.Atoi(c.Query("width"))
	height, herr := strconv.Atoi(c.Query("height"))
	if werr != nil || herr != nil {
		err := apperrors.NewValidationError("width and height query parameters are required", nil)
		respondError(c, err.StatusCode, "invalid request", err)
		return
	}
	ppi, _ := strconv.Atoi(c.Query("ppi"))
	var trim *bool
	if v, err := strconv.ParseBool(c.Query("trim_white_frame")); err == nil {
		trim = &v
	}
	includeFeatures, _ := strconv.ParseBool(c.Query("include_features"))
	sreq := h.scoringRequest(c, ppi, trim, includeFeatures)

	pixels, err := io.ReadAll(c.Request.Body)
	if err != nil {
		respondError(c, http.StatusRequestEntityTooLarge, "failed to read image", err)
		return
	}
	img, err := models.NewFingerprintImage(pixels, width, height, sreq.PPI)
	if err != nil {
		respondError(c, apperrors.GetStatusCode(err), "invalid image", err)
		return
	}

	resp, err := h.scoring.ScoreImage(ctx, img, sreq)
	if err != nil {
		respondError(c, apperrors.GetStatusCode(err), "scoring failed", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) scoringRequest(c *gin.Context, ppi int, trim *bool, includeFeatures bool) service.ScoringRequest {
	if ppi <= 0 {
		ppi = h.cfg.DefaultPPI
	}
	trimWhiteFrame := h.cfg.TrimWhiteFrame
	if trim != nil {
		trimWhiteFrame = *trim
	}
	return service.ScoringRequest{
		RequestID:       c.GetString(requestIDKey),
		PPI:             ppi,
		TrimWhiteFrame:  trimWhiteFrame,
		IncludeFeatures: includeFeatures,
	}
}

func decodeInline(encoded string, ppi int) (*models.FingerprintImage, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, apperrors.NewValidationError("image_base64 is not valid base64", err)
	}
	decoded, err := storage.DecodeImage(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.NewInvalidImageError("image_base64 is not a supported image", err)
	}
	return models.FromImage(decoded, ppi)
}

func (h *Handler) modelInfo(c *gin.Context) {
	info := h.quality.ModelInfo()
	c.JSON(http.StatusOK, models.ModelInfoResponse{
		Name:          info.Name(),
		Trainer:       info.Trainer(),
		Description:   info.Description(),
		Version:       info.Version(),
		Hash:          info.Hash(),
		SchemaVersion: info.SchemaVersion(),
		FeatureCount:  info.FeatureCount(),
	})
}

func (h *Handler) featureIDs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"features": h.quality.AllQualityFeatureIDs()})
}

func (h *Handler) actionableIDs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"identifiers": h.quality.AllActionableIdentifiers()})
}

func (h *Handler) getMetrics(c *gin.Context) {
	if h.metrics == nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	c.JSON(http.StatusOK, h.metrics.GetMetrics())
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"version": "1.0.0",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}
