// Package apiclient is the authenticated HTTP layer in front of the
// helpdesk REST API.
//
// Every request goes through Client.do, which attaches the bearer
// credential, intercepts 401 responses centrally and maps the remaining
// failures onto the errs taxonomy. Feature code never sees a 401: it
// receives errs.ErrAuthExpired after the session has already been
// dropped and the front end sent to the login route.
//
// Idempotent reads get one automatic retry on transient failures.
// Writes are never retried.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/psds-microservice/helpdesk-client/internal/errs"
	"github.com/psds-microservice/helpdesk-client/internal/navigate"
	"github.com/sethvargo/go-retry"
)

// MaxResponseSize bounds JSON response reads.
const MaxResponseSize int64 = 16 << 20

const (
	defaultTimeout    = 15 * time.Second
	defaultRetryDelay = 250 * time.Millisecond
)

// Credentials — источник токена. session.Context реализует этот интерфейс.
type Credentials interface {
	// Token returns the current credential ("" if none) and its epoch.
	Token() (string, uint64)
	// Expire drops the credential of epoch. It returns true only for
	// the first caller that observes the failure of that credential.
	Expire(epoch uint64) bool
}

type Config struct {
	// BaseURL is the API base address, e.g. "http://localhost:8000".
	BaseURL string
	// HTTPClient is used for all requests. If nil, a client with Timeout is built.
	HTTPClient *http.Client
	Timeout    time.Duration
	// RetryDelay is the pause before the single retry of a failed read.
	RetryDelay  time.Duration
	Credentials Credentials
	// Navigator receives the redirect to the login route on session expiry.
	Navigator navigate.Navigator
	Logger    *slog.Logger
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	retryDelay time.Duration
	creds      Credentials
	nav        navigate.Navigator
	logger     *slog.Logger
}

func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("apiclient: BaseURL is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("apiclient: invalid BaseURL %q: %w", cfg.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("apiclient: BaseURL %q must be http or https", cfg.BaseURL)
	}
	if cfg.Credentials == nil {
		return nil, errors.New("apiclient: Credentials is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}
	nav := cfg.Navigator
	if nav == nil {
		nav = navigate.Discard
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		retryDelay: retryDelay,
		creds:      cfg.Credentials,
		nav:        nav,
		logger:     logger,
	}, nil
}

// request describes one API call.
type request struct {
	method string
	path   string
	query  url.Values
	body   any
	// public requests (login, register) never carry the credential and
	// a 401 on them means rejected credentials, not an expired session.
	public bool
}

func (r request) idempotent() bool {
	return r.method == http.MethodGet || r.method == http.MethodHead
}

// do performs req and decodes a 2xx body into out (if non-nil).
func (c *Client) do(ctx context.Context, req request, out any) error {
	if !req.idempotent() {
		return c.once(ctx, req, out)
	}
	backoff := retry.WithMaxRetries(1, retry.NewConstant(c.retryDelay))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := c.once(ctx, req, out)
		if isTransient(err) {
			c.logger.Debug("retrying read", "method", req.method, "path", req.path, "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
}

func (c *Client) once(ctx context.Context, req request, out any) error {
	requestURL := c.baseURL + req.path
	if len(req.query) > 0 {
		requestURL += "?" + req.query.Encode()
	}

	var bodyReader io.Reader
	if req.body != nil {
		encoded, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("apiclient: encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, requestURL, bodyReader)
	if err != nil {
		return fmt.Errorf("apiclient: create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	var epoch uint64
	if !req.public {
		var token string
		token, epoch = c.creds.Token()
		if token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("apiclient: %s %s: %w", req.method, req.path, ctx.Err())
		}
		return fmt.Errorf("apiclient: %s %s: %w: %w", req.method, req.path, errs.ErrTransientNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return fmt.Errorf("apiclient: %s %s: read body: %w: %w", req.method, req.path, errs.ErrTransientNetwork, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || len(body) == 0 {
			return nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("apiclient: decode %s %s: %w", req.method, req.path, err)
		}
		return nil
	}

	apiErr := newAPIError(req, resp.StatusCode, body)
	if resp.StatusCode == http.StatusUnauthorized && !req.public {
		c.handleAuthFailure(epoch, req)
	}
	return apiErr
}

// handleAuthFailure runs the logout + redirect for the first observer
// of a dead credential. Concurrent observers of the same credential
// return without side effects.
func (c *Client) handleAuthFailure(epoch uint64, req request) {
	if !c.creds.Expire(epoch) {
		return
	}
	c.logger.Warn("authentication failed, redirecting to login",
		"method", req.method, "path", req.path, "epoch", epoch)
	c.nav.Navigate(navigate.RouteLogin)
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, errs.ErrTransientNetwork) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
	}
	return false
}

func escape(id string) string { return url.PathEscape(id) }
