package storage

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"time"
)

// MaxImageBytes caps how much of a source is read before decoding
const MaxImageBytes = 32 << 20

// ImageFetcher retrieves and decodes an image from a source location
type ImageFetcher interface {
	FetchImage(ctx context.Context, source string) (image.Image, error)
}

// HTTPImageFetcher fetches images over HTTP(S) with retry on transient failures
type HTTPImageFetcher struct {
	client   *http.Client
	attempts int
	backoff  time.Duration
}

// NewHTTPImageFetcher creates an HTTP image fetcher
func NewHTTPImageFetcher(timeout time.Duration) ImageFetcher {
	transport := &http.Transport{
		MaxIdleConns:           10,
		MaxIdleConnsPerHost:    2,
		IdleConnTimeout:        30 * time.Second,
		TLSHandshakeTimeout:    10 * time.Second,
		ResponseHeaderTimeout:  10 * time.Second,
		ExpectContinueTimeout:  1 * time.Second,
		MaxResponseHeaderBytes: 4096,
	}

	return newHTTPImageFetcher(&http.Client{
		Transport: transport,
		Timeout:   timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 3 {
				return fmt.Errorf("too many redirects (limit: 3)")
			}
			return nil
		},
	}, 3, time.Second)
}

func newHTTPImageFetcher(client *http.Client, attempts int, backoff time.Duration) *HTTPImageFetcher {
	return &HTTPImageFetcher{client: client, attempts: attempts, backoff: backoff}
}

// FetchImage downloads and decodes source. Network errors and 5xx responses
// are retried with linear backoff; 4xx responses fail immediately.
func (h *HTTPImageFetcher) FetchImage(ctx context.Context, source string) (image.Image, error) {
	var lastErr error
	for attempt := 0; attempt < h.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * h.backoff):
			}
		}

		img, retry, err := h.fetchOnce(ctx, source)
		if err == nil {
			return img, nil
		}
		lastErr = err
		if !retry {
			return nil, err
		}
	}
	return nil, fmt.Errorf("failed to fetch image after %d attempts: %w", h.attempts, lastErr)
}

func (h *HTTPImageFetcher) fetchOnce(ctx context.Context, source string) (image.Image, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, false, fmt.Errorf("invalid URL: %w", err)
	}
	req.Header.Set("Accept", "image/png, image/jpeg, image/gif, */*")
	req.Header.Set("User-Agent", "fpquality/1.0")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("server error: status code %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, false, fmt.Errorf("client error: status code %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, false, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	img, err := DecodeImage(resp.Body)
	return img, false, err
}

// DecodeImage decodes a PNG, JPEG or GIF image read from r, up to MaxImageBytes
func DecodeImage(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(io.LimitReader(r, MaxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}
