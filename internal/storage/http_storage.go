package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"split-the-g/pkg/validation"
)

const (
	fetchAttempts = 3
	// maxFetchBytes caps a downloaded workflow image
	maxFetchBytes = 20 << 20
)

// ImageFetcher downloads image bytes from a URL
type ImageFetcher interface {
	FetchBytes(ctx context.Context, imageURL string) ([]byte, error)
}

// HTTPImageFetcher fetches workflow output images with a small retry budget
type HTTPImageFetcher struct {
	client    *http.Client
	validator *validation.URLValidator
	backoff   time.Duration
}

// NewHTTPImageFetcher creates an HTTP image fetcher
func NewHTTPImageFetcher() *HTTPImageFetcher {
	return newHTTPImageFetcher(time.Second)
}

func newHTTPImageFetcher(backoff time.Duration) *HTTPImageFetcher {
	transport := &http.Transport{
		MaxIdleConns:           10,
		MaxIdleConnsPerHost:    2,
		IdleConnTimeout:        30 * time.Second,
		TLSHandshakeTimeout:    10 * time.Second,
		ResponseHeaderTimeout:  10 * time.Second,
		ExpectContinueTimeout:  1 * time.Second,
		MaxResponseHeaderBytes: 4096,
	}

	return &HTTPImageFetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		},
		validator: validation.NewURLValidator(),
		backoff:   backoff,
	}
}

// FetchBytes downloads imageURL. Transport errors and 5xx responses are
// retried with linear backoff; 4xx responses fail immediately.
func (h *HTTPImageFetcher) FetchBytes(ctx context.Context, imageURL string) ([]byte, error) {
	if err := h.validator.ValidateURL(imageURL); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < fetchAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * h.backoff):
			}
		}

		data, retry, err := h.fetchOnce(ctx, imageURL)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !retry {
			break
		}
	}

	return nil, fmt.Errorf("failed to fetch image after %d attempts: %w", fetchAttempts, lastErr)
}

func (h *HTTPImageFetcher) fetchOnce(ctx context.Context, imageURL string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("invalid URL: %w", err)
	}
	req.Header.Set("Accept", "image/jpeg, image/png, image/webp, */*")
	req.Header.Set("User-Agent", "split-the-g/1.0")

	resp, err := h.client.Do(req)
	if err != nil {
		// a cancelled context will not recover on retry
		return nil, ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, false, fmt.Errorf("client error: status code %d", resp.StatusCode)
	default:
		return nil, true, fmt.Errorf("server error: status code %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes+1))
	if err != nil {
		return nil, true, fmt.Errorf("read body: %w", err)
	}
	if len(data) > maxFetchBytes {
		return nil, false, fmt.Errorf("image larger than %d bytes", maxFetchBytes)
	}
	return data, false, nil
}
