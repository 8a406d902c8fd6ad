package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	clierr "github.com/ggonzalez94/defai/internal/errors"
)

// Client performs single-shot JSON requests. Failures are returned to the
// caller as coded errors; nothing is retried here.
type Client struct {
	httpClient *http.Client
	userAgent  string
}

// StatusError is the cause attached to non-2xx responses. Body holds the raw
// upstream payload so callers can surface it.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("status %d", e.StatusCode)
	}
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Body)
}

func New(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  "defai/1.0",
	}
}

func (c *Client) DoJSON(ctx context.Context, req *http.Request, out any) (http.Header, error) {
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req.WithContext(ctx))
	if err != nil {
		return nil, mapNetError(err)
	}
	buf, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp.Header, clierr.Wrap(clierr.CodeUnavailable, "read provider response", readErr)
	}

	statusErr := &StatusError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(buf))}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return resp.Header, clierr.Wrap(clierr.CodeRateLimited, "provider rate limited request", statusErr)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return resp.Header, clierr.Wrap(clierr.CodeAuth, "provider authentication failed", statusErr)
	case resp.StatusCode >= http.StatusInternalServerError:
		return resp.Header, clierr.Wrap(clierr.CodeUnavailable, "provider unavailable", statusErr)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return resp.Header, clierr.Wrap(clierr.CodeUnsupported, "provider returned unexpected status", statusErr)
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

func DoBodyJSON(ctx context.Context, c *Client, method, url string, body []byte, headers map[string]string, out any) (http.Header, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "build request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.DoJSON(ctx, req, out)
}

// AsStatusError extracts the upstream status and body from an error returned by DoJSON.
func AsStatusError(err error) (*StatusError, bool) {
	var target *StatusError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

func mapNetError(err error) error {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return clierr.Wrap(clierr.CodeUnavailable, "provider timeout", err)
	}
	return clierr.Wrap(clierr.CodeUnavailable, "provider request failed", err)
}
