// Package render fetches derived images from the external URL-based
// processor. The processor's only contract with this service is that a
// directive-carrying URL serves the sequentially transformed image.
package render

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const maxDerivedBytes = 64 << 20

type Config struct {
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

type Client struct {
	httpClient     *http.Client
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	initialBackoff := cfg.InitialBackoff
	if initialBackoff <= 0 {
		initialBackoff = 1 * time.Second
	}

	maxBackoff := cfg.MaxBackoff
	if maxBackoff < initialBackoff {
		maxBackoff = initialBackoff
	}

	return &Client{
		httpClient:     &http.Client{Timeout: timeout},
		maxAttempts:    maxAttempts,
		initialBackoff: initialBackoff,
		maxBackoff:     maxBackoff,
	}
}

// Fetch retrieves the derived image at url, retrying transient failures with
// exponential backoff. It returns the image bytes and the served content type.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	backoff := c.initialBackoff
	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}

		data, contentType, retryable, err := c.fetchOnce(ctx, url)
		if err == nil {
			return data, contentType, nil
		}

		lastErr = err
		if !retryable || attempt == c.maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, "", ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, c.maxBackoff)
	}

	return nil, "", fmt.Errorf("fetch derived image after %d attempts: %w", c.maxAttempts, lastErr)
}

func (c *Client) fetchOnce(ctx context.Context, url string) (data []byte, contentType string, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", false, fmt.Errorf("build processor request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Client errors mean a bad directive string and will not heal on
		// retry; server errors might.
		return nil, "", resp.StatusCode >= 500, fmt.Errorf("processor returned status=%d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDerivedBytes))
	if err != nil {
		return nil, "", true, fmt.Errorf("read processor response: %w", err)
	}

	return body, resp.Header.Get("Content-Type"), false, nil
}
