package repository

import (
	"context"
	"fmt"
	"image"
	"net/url"
	"strings"

	"go-fingerprint-quality/internal/storage"
	"go-fingerprint-quality/pkg/validation"
)

// SourceImageRepository routes each source to the fetcher for its kind
type SourceImageRepository struct {
	validator *validation.SourceValidator
	http      storage.ImageFetcher
	blob      storage.ImageFetcher
	file      storage.ImageFetcher
}

// NewSourceImageRepository creates a repository. blob and file may be nil, in
// which case those sources are rejected.
func NewSourceImageRepository(http, blob, file storage.ImageFetcher) ImageRepository {
	validator := validation.NewSourceValidator()
	if file != nil {
		validator = validator.WithLocalFiles()
	}
	return &SourceImageRepository{
		validator: validator,
		http:      http,
		blob:      blob,
		file:      file,
	}
}

// FetchImage validates source and fetches it with the matching fetcher
func (r *SourceImageRepository) FetchImage(ctx context.Context, source string) (image.Image, error) {
	if err := r.ValidateSource(source); err != nil {
		return nil, err
	}
	fetcher, err := r.fetcherFor(source)
	if err != nil {
		return nil, err
	}
	return fetcher.FetchImage(ctx, source)
}

// ValidateSource validates if the provided location is acceptable
func (r *SourceImageRepository) ValidateSource(source string) error {
	if err := r.validator.ValidateSource(source); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSource, err)
	}
	return nil
}

func (r *SourceImageRepository) fetcherFor(source string) (storage.ImageFetcher, error) {
	var fetcher storage.ImageFetcher
	switch {
	case storage.IsBlobSource(source):
		fetcher = r.blob
		// public and SAS URLs need no account credentials
		if fetcher == nil && strings.HasPrefix(source, validation.SchemeHTTPS+"://") {
			fetcher = r.http
		}
	case isLocal(source):
		fetcher = r.file
	default:
		fetcher = r.http
	}
	if fetcher == nil {
		return nil, fmt.Errorf("%w: %s", ErrSourceNotSupported, source)
	}
	return fetcher, nil
}

func isLocal(source string) bool {
	u, err := url.Parse(source)
	return err == nil && (u.Scheme == "" || u.Scheme == validation.SchemeFile)
}
