// Package remote holds the response handling shared by the HTTP-backed
// collaborators (embedding providers and vector stores).
package remote

import (
	"fmt"
	"io"
	"net/http"
	"time"
)

// RetryableError indicates a transient failure that can be retried.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("retryable error: %s", truncate(e.Message, 200))
	}
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

// IsRetryableStatus reports whether an HTTP status signals throttling or a
// server-side fault.
func IsRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// CheckResponse turns a non-2xx response into an error carrying up to 1KiB
// of the body. Throttling and server faults come back as *RetryableError.
func CheckResponse(resp *http.Response, op string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if IsRetryableStatus(resp.StatusCode) {
		return &RetryableError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("%s: %s", op, body)}
	}
	return fmt.Errorf("%s: status %d: %s", op, resp.StatusCode, string(body))
}

// Doer wraps an http.Client for SDKs that accept a custom Do. Transport
// failures and retryable statuses are reported as *RetryableError so they
// survive the SDK's own error wrapping.
type Doer struct {
	client *http.Client
}

func NewDoer(timeout time.Duration) *Doer {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Doer{client: &http.Client{Timeout: timeout}}
}

func (d *Doer) Do(req *http.Request) (*http.Response, error) {
	resp, err := d.client.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &RetryableError{Message: err.Error()}
	}
	if IsRetryableStatus(resp.StatusCode) {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &RetryableError{StatusCode: resp.StatusCode, Message: string(body)}
	}
	return resp, nil
}

// CloseIdleConnections releases pooled connections.
func (d *Doer) CloseIdleConnections() {
	d.client.CloseIdleConnections()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
