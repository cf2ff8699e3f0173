package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math/rand"
	"net"
	"net/http"
	"time"

	clierr "github.com/ncasillas/txpilot/internal/errors"
)

// Client is a shared JSON HTTP client with bounded retries for the
// external token-metadata and account-backend services.
type Client struct {
	httpClient *http.Client
	retries    int
	userAgent  string
}

func New(timeout time.Duration, retries int) *Client {
	if retries < 0 {
		retries = 0
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		retries:    retries,
		userAgent:  "txpilot/1.0",
	}
}

// DoJSON performs the request, retrying transient failures, and decodes
// the response body into out when out is non-nil.
func (c *Client) DoJSON(ctx context.Context, req *http.Request, out any) (http.Header, error) {
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, clierr.Wrap(clierr.CodeUnavailable, "request cancelled", ctx.Err())
			case <-time.After(backoff(attempt)):
			}
		}

		cloneReq := req.Clone(ctx)
		if req.Body != nil && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, clierr.Wrap(clierr.CodeInternal, "clone request body", err)
			}
			cloneReq.Body = body
		}

		resp, err := c.httpClient.Do(cloneReq)
		if err != nil {
			lastErr = mapNetError(err)
			if attempt < c.retries {
				continue
			}
			return nil, lastErr
		}

		buf, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return resp.Header, clierr.Wrap(clierr.CodeUnavailable, "read provider response", readErr)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = clierr.New(clierr.CodeRateLimited, "provider rate limited request")
			if attempt < c.retries {
				continue
			}
			return resp.Header, lastErr
		}

		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return resp.Header, clierr.New(clierr.CodeAuth, "provider authentication failed")
		}

		if resp.StatusCode >= http.StatusInternalServerError {
			lastErr = clierr.Newf(clierr.CodeUnavailable, "provider unavailable (status %d)", resp.StatusCode)
			if attempt < c.retries {
				continue
			}
			return resp.Header, lastErr
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return resp.Header, clierr.Newf(clierr.CodeUnavailable, "provider returned unexpected status %d", resp.StatusCode)
		}

		if out == nil {
			return resp.Header, nil
		}
		if len(bytes.TrimSpace(buf)) == 0 {
			return resp.Header, clierr.New(clierr.CodeUnavailable, "provider returned empty response")
		}
		if err := json.Unmarshal(buf, out); err != nil {
			return resp.Header, clierr.Wrap(clierr.CodeUnavailable, "decode provider JSON", err)
		}
		return resp.Header, nil
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, clierr.New(clierr.CodeUnavailable, "request failed")
}

// GetJSON is a convenience wrapper for simple GET endpoints.
func (c *Client) GetJSON(ctx context.Context, url string, headers map[string]string, out any) (http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "build request", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.DoJSON(ctx, req, out)
}

// PostJSON marshals body and performs a POST with JSON content type.
func (c *Client) PostJSON(ctx context.Context, url string, body any, headers map[string]string, out any) (http.Header, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "encode request body", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(payload)), nil
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.DoJSON(ctx, req, out)
}

func mapNetError(err error) error {
	if nerr, ok := err.(net.Error); ok {
		if nerr.Timeout() {
			return clierr.Wrap(clierr.CodeUnavailable, "provider timeout", err)
		}
	}
	return clierr.Wrap(clierr.CodeUnavailable, "provider request failed", err)
}

func backoff(attempt int) time.Duration {
	base := 120 * time.Millisecond
	d := base * time.Duration(1<<uint(attempt-1))
	if d > 2*time.Second {
		d = 2 * time.Second
	}
	jitter := time.Duration(rand.Intn(75)) * time.Millisecond
	return d + jitter
}
