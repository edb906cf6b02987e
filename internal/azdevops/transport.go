// Package azdevops talks to the Azure DevOps REST API and exposes the
// pull request operations the rest of the module builds on. The client
// composes cache, retry, and rate limiting in front of a thin HTTP
// transport; callers only ever see domain values and apierr errors.
package azdevops

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/J03Fr0st/ado-pr-review/internal/apierr"
	"github.com/J03Fr0st/ado-pr-review/internal/config"
	"github.com/J03Fr0st/ado-pr-review/internal/sanitize"
)

const (
	apiVersion = "7.1"

	// DefaultTimeout bounds general API calls; ValidateTimeout bounds the
	// credential check so a bad configuration fails fast.
	DefaultTimeout  = 30 * time.Second
	ValidateTimeout = 10 * time.Second
)

// Transport performs one HTTP exchange against the service. It carries
// authentication and JSON (de)serialization but no retry, rate limiting,
// or caching, so test doubles can stand in without touching those layers.
// Paths are organization-relative (e.g. "/Widgets/_apis/git/pullrequests").
type Transport interface {
	Do(ctx context.Context, method, path string, query url.Values, body, out any) error
}

type httpTransport struct {
	baseURL    string
	authHeader string
	client     *http.Client
	timeout    time.Duration
	logger     *slog.Logger
}

func newHTTPTransport(creds config.Credentials, logger *slog.Logger) *httpTransport {
	// Azure DevOps PATs authenticate as HTTP basic auth with an empty
	// username.
	encoded := base64.StdEncoding.EncodeToString([]byte(":" + creds.Token))
	return &httpTransport{
		baseURL:    strings.TrimSuffix(creds.OrganizationURL, "/"),
		authHeader: "Basic " + encoded,
		client:     &http.Client{},
		timeout:    DefaultTimeout,
		logger:     logger,
	}
}

func (t *httpTransport) Do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	q := url.Values{}
	for k, vs := range query {
		q[k] = vs
	}
	q.Set("api-version", apiVersion)

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &apierr.TerminalError{Message: fmt.Sprintf("encode request body: %v", err), Err: err}
		}
		reader = bytes.NewReader(data)
	}

	op := method + " " + path
	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path+"?"+q.Encode(), reader)
	if err != nil {
		return &apierr.TerminalError{Message: fmt.Sprintf("build request: %v", err), Err: err}
	}
	req.Header.Set("Authorization", t.authHeader)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		// Timeouts and connection failures are transient; for mutating
		// calls the retry policy converts them to terminal because the
		// outcome is ambiguous.
		return &apierr.TransientError{Op: op, Err: fmt.Errorf("%s", sanitize.Error(err))}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &apierr.TransientError{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}

	t.logger.Debug("api call",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"request_id", req.Header.Get("X-Request-Id"),
	)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || len(data) == 0 {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return &apierr.TerminalError{Message: fmt.Sprintf("malformed response for %s: %v", op, err), Err: err}
		}
		return nil
	}
	return mapStatusError(op, resp.StatusCode, resp.Header, data)
}

// mapStatusError translates an HTTP failure into the error taxonomy. It is
// the single point where remote-controlled text enters an error, so the
// envelope message is sanitized here.
func mapStatusError(op string, status int, header http.Header, body []byte) error {
	var envelope wireError
	_ = json.Unmarshal(body, &envelope)
	msg := sanitize.Message(envelope.Message)
	if msg == "" {
		msg = http.StatusText(status)
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &apierr.AuthenticationError{StatusCode: status, Message: msg}
	case status == http.StatusNotFound:
		return &apierr.NotFoundError{Resource: msg}
	case status == http.StatusConflict:
		return &apierr.ConflictError{Message: msg}
	case status == http.StatusTooManyRequests:
		return &apierr.RateLimitError{RetryAfter: parseRetryAfter(header), Message: msg}
	case status >= 500:
		return &apierr.TransientError{Op: op, Err: fmt.Errorf("HTTP %d: %s", status, msg)}
	default:
		return &apierr.TerminalError{StatusCode: status, TypeKey: envelope.TypeKey, Message: msg}
	}
}

// parseRetryAfter reads the Retry-After header as delay seconds. HTTP-date
// values are not produced by the service and are ignored.
func parseRetryAfter(header http.Header) time.Duration {
	raw := header.Get("Retry-After")
	if raw == "" {
		return 0
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
