package backend

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chattie/chattie/internal/auth"
	"github.com/chattie/chattie/internal/circuitbreaker"
	"github.com/chattie/chattie/internal/common/errors"
	"github.com/chattie/chattie/internal/observability"
	"github.com/chattie/chattie/internal/ratelimit"
	"github.com/chattie/chattie/internal/retry"
	"go.uber.org/zap"
)

const (
	DefaultTimeout = 10 * time.Second

	maxErrorBody = 64 << 10
)

type Options struct {
	// Endpoint is the BaaS REST root, including the /v1 prefix.
	Endpoint     string
	Project      string
	Database     string
	AvatarBucket string
	// AppBaseURL is where the web app serves its /api routes.
	AppBaseURL string
	Timeout    time.Duration
	UserAgent  string

	Retry      retry.Config
	Breaker    *circuitbreaker.CircuitBreaker
	Limiter    *ratelimit.Limiter
	Metrics    *observability.Metrics
	HTTPClient *http.Client
}

// Client talks to the BaaS REST API and to the app's own route handlers.
// Every call is rate limited, retried with backoff on transient failures and
// guarded by a circuit breaker.
type Client struct {
	endpoint     string
	appBase      string
	project      string
	database     string
	avatarBucket string
	userAgent    string

	creds   *auth.Credentials
	http    *http.Client
	retry   retry.Config
	breaker *circuitbreaker.CircuitBreaker
	limiter *ratelimit.Limiter
	metrics *observability.Metrics
	logger  *zap.Logger
}

func New(opts Options, creds *auth.Credentials, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Database == "" {
		opts.Database = "main"
	}
	if opts.AvatarBucket == "" {
		opts.AvatarBucket = "avatars"
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = retry.DefaultConfig()
	}
	if opts.Breaker == nil {
		opts.Breaker = circuitbreaker.New(5, 30*time.Second, errors.IsRetryable)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	return &Client{
		endpoint:     strings.TrimRight(opts.Endpoint, "/"),
		appBase:      strings.TrimRight(opts.AppBaseURL, "/"),
		project:      opts.Project,
		database:     opts.Database,
		avatarBucket: opts.AvatarBucket,
		userAgent:    opts.UserAgent,
		creds:        creds,
		http:         httpClient,
		retry:        opts.Retry,
		breaker:      opts.Breaker,
		limiter:      opts.Limiter,
		metrics:      opts.Metrics,
		logger:       logger,
	}
}

func (c *Client) Database() string {
	return c.database
}

// Headers returns the credential headers, for the realtime handshake.
func (c *Client) Headers() http.Header {
	if c.creds == nil {
		return http.Header{}
	}
	return c.creds.Headers()
}

type request struct {
	method string
	url    string
	query  url.Values
	body   any
	// route labels the metrics series and picks the limiter bucket.
	route string
	limit string
}

// apiError is the error body both the BaaS and the app routes return.
type apiError struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Type    string `json:"type"`
}

func (c *Client) do(ctx context.Context, req request, out any) error {
	limit := req.limit
	if limit == "" {
		limit = "default"
	}
	if err := c.limiter.Wait(ctx, limit); err != nil {
		return err
	}

	return retry.WithBackoff(ctx, c.retry, func() error {
		err := c.breaker.Call(func() error {
			return c.send(ctx, req, out)
		})
		switch {
		case err == nil:
			return nil
		case stderrors.Is(err, circuitbreaker.ErrCircuitOpen):
			return retry.Permanent(errors.Unavailable("backend circuit open", err))
		case ctx.Err() != nil:
			return retry.Permanent(ctx.Err())
		case !errors.IsRetryable(err):
			return retry.Permanent(err)
		}
		c.logger.Debug("retrying backend request",
			zap.String("route", req.route),
			zap.Error(err),
		)
		return err
	})
}

func (c *Client) send(ctx context.Context, req request, out any) error {
	target := req.url
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		buf, err := json.Marshal(req.body)
		if err != nil {
			return errors.Internal("failed to encode request", err)
		}
		body = bytes.NewReader(buf)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return errors.Internal("failed to build request", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	if c.creds != nil {
		c.creds.Apply(httpReq)
	} else if c.project != "" {
		httpReq.Header.Set(auth.HeaderProject, c.project)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.metrics.RecordBackendRequest(req.route, 0, time.Since(start))
		return errors.Transport(fmt.Sprintf("%s %s failed", req.method, req.route), err)
	}
	defer resp.Body.Close()
	c.metrics.RecordBackendRequest(req.route, resp.StatusCode, time.Since(start))

	if resp.StatusCode >= http.StatusMultipleChoices {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Internal("undecodable backend response", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var body apiError
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &body) == nil {
		switch {
		case body.Message != "":
			msg = body.Message
		case body.Error != "":
			msg = body.Error
		}
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return errors.FromHTTPStatus(resp.StatusCode, msg)
}

func (c *Client) baas(path string) string {
	return c.endpoint + path
}

func (c *Client) app(path string) string {
	return c.appBase + "/api" + path
}
