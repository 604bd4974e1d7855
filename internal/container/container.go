package container

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go-fingerprint-quality/internal/analyzer"
	"go-fingerprint-quality/internal/config"
	"go-fingerprint-quality/internal/factory"
	"go-fingerprint-quality/internal/logger"
	"go-fingerprint-quality/internal/observer"
	"go-fingerprint-quality/internal/repository"
	"go-fingerprint-quality/internal/service"
	"go-fingerprint-quality/internal/storage"
	"go-fingerprint-quality/internal/transport"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// Container holds all application dependencies
type Container struct {
	config          *config.Config
	qualityService  service.QualityService
	imageRepository repository.ImageRepository
	scoreRepository repository.ScoreRepository
	scoringService  service.ImageScoringService
	metrics         *observer.MetricsObserver
	redisClient     *redis.Client
	handler         http.Handler
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *config.Config) (*Container, error) {
	components := factory.NewComponentFactory(factory.StorageOptions{
		FetchTimeout: cfg.ImageFetchTimeout,
		AzureAccount: cfg.AzureStorageAccount,
		AzureKey:     cfg.AzureStorageKey,
		LocalRoot:    cfg.LocalImageRoot,
	})

	// Build dependency graph
	qualityService, err := components.CreateQualityService(cfg.ModelInfoPath, analyzer.DefaultOptions().WithWorkers(cfg.Workers))
	if err != nil {
		return nil, fmt.Errorf("failed to load quality model: %w", err)
	}

	imageRepository, err := newImageRepository(components.StorageFactory, cfg)
	if err != nil {
		return nil, err
	}

	c := &Container{
		config:          cfg,
		qualityService:  qualityService,
		imageRepository: imageRepository,
		metrics:         observer.NewMetricsObserver(),
	}

	if cfg.RedisAddr != "" {
		c.redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.redisClient.Ping(ctx).Err(); err != nil {
			c.redisClient.Close()
			return nil, fmt.Errorf("redis connection failed: %w", err)
		}
		c.scoreRepository = repository.NewRedisScoreRepository(c.redisClient, cfg.RedisTTL)
	} else {
		c.scoreRepository = repository.NewMemoryScoreRepository(cfg.RedisTTL)
	}

	events := observer.NewEventPublisher()
	events.Subscribe(observer.NewLoggingObserver(logger.Logger))
	events.Subscribe(c.metrics)

	c.scoringService = service.NewImageScoringService(imageRepository, c.scoreRepository, qualityService, events)
	c.handler = transport.NewHandler(c.scoringService, qualityService, c.metrics, cfg)

	info := qualityService.ModelInfo()
	logger.WithFields(logrus.Fields{
		"model":       info.Name(),
		"version":     info.Version(),
		"hash":        info.Hash(),
		"redis":       cfg.RedisAddr != "",
		"azure":       cfg.AzureEnabled(),
		"local_files": cfg.LocalImageRoot != "",
	}).Info("Container initialised")

	return c, nil
}

func newImageRepository(f factory.StorageFactory, cfg *config.Config) (repository.ImageRepository, error) {
	httpFetcher, err := f.CreateStorage(factory.HTTPStorage)
	if err != nil {
		return nil, err
	}

	var blobFetcher, fileFetcher storage.ImageFetcher
	if cfg.AzureEnabled() {
		if blobFetcher, err = f.CreateStorage(factory.AzureStorage); err != nil {
			return nil, err
		}
	}
	if cfg.LocalImageRoot != "" {
		if fileFetcher, err = f.CreateStorage(factory.LocalStorage); err != nil {
			return nil, err
		}
	}
	return repository.NewSourceImageRepository(httpFetcher, blobFetcher, fileFetcher), nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// ScoringService returns the image scoring service
func (c *Container) ScoringService() service.ImageScoringService {
	return c.scoringService
}

// Close releases the score cache connection
func (c *Container) Close() error {
	if c.redisClient != nil {
		return c.redisClient.Close()
	}
	return nil
}
