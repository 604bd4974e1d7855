package factory

import (
	"fmt"
	"time"

	"go-fingerprint-quality/internal/analyzer"
	"go-fingerprint-quality/internal/model"
	"go-fingerprint-quality/internal/service"
	"go-fingerprint-quality/internal/storage"
	"go-fingerprint-quality/pkg/validation"
)

// StorageType represents different types of storage backends
type StorageType string

const (
	// HTTPStorage for HTTP-based image fetching
	HTTPStorage StorageType = "http"
	// AzureStorage for Azure blob storage
	AzureStorage StorageType = "azure"
	// LocalStorage for local file system
	LocalStorage StorageType = "local"
)

// StorageOptions carries what the storage backends need
type StorageOptions struct {
	FetchTimeout time.Duration
	AzureAccount string
	AzureKey     string
	LocalRoot    string
}

// StorageFactory creates storage implementations
type StorageFactory interface {
	CreateStorage(storageType StorageType) (storage.ImageFetcher, error)
}

// ModelFactory loads the scoring model
type ModelFactory interface {
	// CreateModel loads the model described by infoPath, or the bundled model when infoPath is empty
	CreateModel(infoPath string) (*model.Model, error)
}

// storageFactory implements StorageFactory
type storageFactory struct {
	opts StorageOptions
}

// NewStorageFactory creates a new storage factory
func NewStorageFactory(opts StorageOptions) StorageFactory {
	return &storageFactory{opts: opts}
}

// CreateStorage creates a storage implementation based on the specified type
func (f *storageFactory) CreateStorage(storageType StorageType) (storage.ImageFetcher, error) {
	switch storageType {
	case HTTPStorage:
		timeout := f.opts.FetchTimeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		return storage.NewHTTPImageFetcher(timeout), nil
	case AzureStorage:
		if f.opts.AzureAccount == "" || f.opts.AzureKey == "" {
			return nil, fmt.Errorf("azure storage requires an account name and key")
		}
		return storage.NewAzureStorage(f.opts.AzureAccount, f.opts.AzureKey)
	case LocalStorage:
		return storage.NewFileImageFetcher(f.opts.LocalRoot), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}

// modelFactory implements ModelFactory
type modelFactory struct {
	schema analyzer.Schema
}

// NewModelFactory creates a model factory for schema
func NewModelFactory(schema analyzer.Schema) ModelFactory {
	return &modelFactory{schema: schema}
}

func (f *modelFactory) CreateModel(infoPath string) (*model.Model, error) {
	if infoPath == "" {
		return model.Default()
	}
	return model.LoadFromInfoFile(infoPath, f.schema)
}

// ComponentFactory combines all factories
type ComponentFactory struct {
	StorageFactory StorageFactory
	ModelFactory   ModelFactory
	schema         analyzer.Schema
}

// NewComponentFactory creates a new component factory over the default schema
func NewComponentFactory(opts StorageOptions) *ComponentFactory {
	schema := analyzer.DefaultSchema()
	return &ComponentFactory{
		StorageFactory: NewStorageFactory(opts),
		ModelFactory:   NewModelFactory(schema),
		schema:         schema,
	}
}

// CreateQualityService loads the model and builds a quality service around it
func (f *ComponentFactory) CreateQualityService(infoPath string, options analyzer.AggregatorOptions) (service.QualityService, error) {
	m, err := f.ModelFactory.CreateModel(infoPath)
	if err != nil {
		return nil, err
	}
	return service.NewQualityService(m, analyzer.NewAggregator(f.schema), validation.NewFeedbackGenerator(), options)
}
