package storage

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
)

// FileScheme prefixes local sources given as URLs
const FileScheme = "file://"

// FileImageFetcher reads images from the local file system
type FileImageFetcher struct {
	// root confines reads when non-empty
	root string
}

// NewFileImageFetcher creates a local fetcher. An empty root allows any path.
func NewFileImageFetcher(root string) ImageFetcher {
	return &FileImageFetcher{root: root}
}

// FetchImage decodes the file at source
func (f *FileImageFetcher) FetchImage(ctx context.Context, source string) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := f.resolve(source)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	return DecodeImage(file)
}

func (f *FileImageFetcher) resolve(source string) (string, error) {
	path := filepath.Clean(strings.TrimPrefix(source, FileScheme))
	if f.root == "" {
		return path, nil
	}

	root, err := filepath.Abs(f.root)
	if err != nil {
		return "", fmt.Errorf("invalid image root: %w", err)
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s is outside the image root", source)
	}
	return path, nil
}
