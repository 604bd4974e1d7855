package repository

import "errors"

var (
	// ErrInvalidSource indicates an image location that cannot be fetched
	ErrInvalidSource = errors.New("invalid image source")

	// ErrSourceNotSupported indicates no fetcher is configured for the source kind
	ErrSourceNotSupported = errors.New("image source not supported")

	// ErrScoreNotFound indicates no score is stored under the key
	ErrScoreNotFound = errors.New("score not found")

	// ErrRepositoryUnavailable indicates the repository is unavailable
	ErrRepositoryUnavailable = errors.New("repository unavailable")
)
