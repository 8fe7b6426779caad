package partner

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

const (
	defaultHealthPath = "/health"
	maxResponseBytes  = 1 << 20
)

// transportError classifies a failed round trip. Every transport failure (timeout,
// connection reset, refused) is worth retrying unless the caller gave up.
func transportError(ctx context.Context, kind Kind, err error) error {
	return &CallError{
		Partner:   kind,
		Code:      CodeServiceUnavailable,
		Retryable: ctx.Err() != context.Canceled,
		Err:       errors.Wrapf(err, "%s request failed", kind),
	}
}

// statusError classifies a non-2xx answer. Server errors are transient.
func statusError(kind Kind, status int, body []byte) error {
	return &CallError{
		Partner:   kind,
		Code:      CodeExternalFault,
		Retryable: status >= http.StatusInternalServerError,
		Err:       errors.Errorf("unexpected status %d: %s", status, truncate(body, 200)),
	}
}

func parseError(kind Kind, err error) error {
	return &CallError{
		Partner: kind,
		Code:    CodeParseError,
		Err:     errors.Wrapf(err, "decoding %s response", kind),
	}
}

func readBody(resp *http.Response) ([]byte, error) {
	return io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

func joinURL(base, path string) string {
	if path == "" {
		path = defaultHealthPath
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// healthCheck issues a GET against the partner health endpoint.
func healthCheck(ctx context.Context, client *http.Client, kind Kind, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrapf(err, "building %s health request", kind)
	}
	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s health check failed", kind)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s health check returned status %d", kind, resp.StatusCode)
	}
	return nil
}
