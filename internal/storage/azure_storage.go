package storage

import (
	"context"
	"fmt"
	"image"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// BlobScheme addresses a blob in the configured account as azblob://container/path/to/blob
const BlobScheme = "azblob"

type azureStorage struct {
	client *azblob.Client
}

// NewAzureStorage creates a fetcher for blobs in one storage account
func NewAzureStorage(accountName string, accountKey string) (ImageFetcher, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("invalid azure credentials: %w", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create azure client: %w", err)
	}

	return &azureStorage{client: client}, nil
}

// FetchImage downloads and decodes the blob named by source
func (s *azureStorage) FetchImage(ctx context.Context, source string) (image.Image, error) {
	containerName, blobName, err := ParseBlobSource(source)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.DownloadStream(ctx, containerName, blobName, nil)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	return DecodeImage(resp.Body)
}

// ParseBlobSource splits azblob://container/blob or
// https://account.blob.core.windows.net/container/blob into container and blob name
func ParseBlobSource(source string) (container, blob string, err error) {
	u, err := url.Parse(source)
	if err != nil {
		return "", "", fmt.Errorf("invalid blob URL: %w", err)
	}

	var path string
	switch {
	case u.Scheme == BlobScheme:
		path = u.Host + u.Path
	case u.Scheme == "https" && strings.HasSuffix(u.Host, ".blob.core.windows.net"):
		path = strings.TrimPrefix(u.Path, "/")
	default:
		return "", "", fmt.Errorf("not a blob URL: %s", source)
	}

	container, blob, ok := strings.Cut(path, "/")
	if !ok || container == "" || blob == "" {
		return "", "", fmt.Errorf("blob URL must name a container and a blob: %s", source)
	}
	return container, blob, nil
}

// IsBlobSource reports whether source addresses Azure blob storage
func IsBlobSource(source string) bool {
	_, _, err := ParseBlobSource(source)
	return err == nil
}
