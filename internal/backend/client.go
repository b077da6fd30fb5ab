// Package backend is the client of the storefront backend API.
//
// Every failure leaving this package is a *failure.Error. Transport errors
// become NetworkError, or AmbiguousOutcome when a non-idempotent request had
// already been written to the wire. Error responses become Unauthenticated
// (401) or ServerRejected with the server's message and field errors.
package backend

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/internal/domain/failure"
	"github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/internal/domain/payment"
	"github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/pkg/httpmiddleware"
)

const maxBodySize = 4 << 20

// RejectFunc is called with the token of an authenticated request that the
// backend answered with 401.
type RejectFunc func(ctx context.Context, token string)

// Options configures a Client.
type Options struct {
	// HTTPClient is used as-is when set. Otherwise a client with an otelhttp
	// transport and Timeout is created.
	HTTPClient     *http.Client
	Timeout        time.Duration
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	Logger         *zap.Logger

	// OnReject is invoked on credential rejection.
	OnReject RejectFunc

	// ProviderNames maps payment providers to the backend's provider names.
	// Defaults to "card" and "wallet".
	ProviderNames map[payment.Provider]string

	// Breaker trips after BreakerFailures consecutive transport or 5xx
	// failures and stays open for BreakerTimeout. Zero disables tripping.
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// Client calls the backend API.
type Client struct {
	base      *url.URL
	http      *http.Client
	onReject  RejectFunc
	providers map[payment.Provider]string
	breaker   *gobreaker.CircuitBreaker[*response]
}

// New creates a Client for the API rooted at baseURL.
func New(baseURL string, opts Options) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("base url %q must be absolute", baseURL)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		var transportOpts []otelhttp.Option
		if opts.TracerProvider != nil {
			transportOpts = append(transportOpts, otelhttp.WithTracerProvider(opts.TracerProvider))
		}
		if opts.MeterProvider != nil {
			transportOpts = append(transportOpts, otelhttp.WithMeterProvider(opts.MeterProvider))
		}
		httpClient = &http.Client{
			Timeout:   opts.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport, transportOpts...),
		}
	}

	providers := map[payment.Provider]string{
		payment.ProviderCard:   "card",
		payment.ProviderWallet: "wallet",
	}
	for p, name := range opts.ProviderNames {
		if name != "" {
			providers[p] = name
		}
	}

	lg := opts.Logger
	if lg == nil {
		lg = zap.NewNop()
	}
	failures := opts.BreakerFailures
	return &Client{
		base:      u,
		http:      httpClient,
		onReject:  opts.OnReject,
		providers: providers,
		breaker: gobreaker.NewCircuitBreaker[*response](gobreaker.Settings{
			Name:    "backend",
			Timeout: opts.BreakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return failures > 0 && counts.ConsecutiveFailures >= failures
			},
			IsSuccessful: func(err error) bool {
				var se *statusError
				return err == nil || (errors.As(err, &se) && se.resp.status < http.StatusInternalServerError)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				lg.Warn("Circuit breaker state changed",
					zap.String("breaker", name),
					zap.Stringer("from", from),
					zap.Stringer("to", to),
				)
			},
		}),
	}, nil
}

type response struct {
	status int
	body   []byte
}

// statusError carries a non-2xx response through the breaker.
type statusError struct {
	resp *response
}

func (e *statusError) Error() string {
	return http.StatusText(e.resp.status)
}

// do sends one request and returns the body of a 2xx response. Requests are
// never retried.
func (c *Client) do(ctx context.Context, method, path, token string, body []byte) ([]byte, error) {
	lg := zctx.From(ctx)

	var wrote atomic.Bool
	ctx = httptrace.WithClientTrace(ctx, &httptrace.ClientTrace{
		WroteRequest: func(httptrace.WroteRequestInfo) { wrote.Store(true) },
	})

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, bytesReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if id := httpmiddleware.RequestIDFromContext(ctx); id != "" {
		req.Header.Set(httpmiddleware.HeaderRequestID, id)
	}

	resp, err := c.breaker.Execute(func() (*response, error) {
		res, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer func() { _ = res.Body.Close() }()

		data, err := io.ReadAll(io.LimitReader(res.Body, maxBodySize))
		if err != nil {
			return nil, errors.Wrap(err, "read response")
		}
		r := &response{status: res.StatusCode, body: data}
		if r.status >= http.StatusBadRequest {
			return r, &statusError{resp: r}
		}
		return r, nil
	})

	var se *statusError
	switch {
	case err == nil:
		return resp.body, nil
	case errors.As(err, &se):
		return nil, c.rejected(ctx, token, se.resp)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, &failure.Error{
			Kind:    failure.NetworkError,
			Message: "the store is temporarily unavailable, try again shortly",
			Err:     err,
		}
	case wrote.Load() && !idempotent(method):
		lg.Warn("Backend request outcome unknown",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, &failure.Error{Kind: failure.AmbiguousOutcome, Err: err}
	default:
		return nil, &failure.Error{Kind: failure.NetworkError, Err: err}
	}
}

func (c *Client) rejected(ctx context.Context, token string, resp *response) error {
	message, fields := decodeProblem(resp.body)
	if resp.status == http.StatusUnauthorized {
		if token != "" && c.onReject != nil {
			c.onReject(ctx, token)
		}
		return &failure.Error{
			Kind:       failure.Unauthenticated,
			Message:    message,
			HTTPStatus: resp.status,
		}
	}
	return &failure.Error{
		Kind:       failure.ServerRejected,
		Message:    message,
		HTTPStatus: resp.status,
		Fields:     fields,
	}
}

func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete:
		return true
	default:
		return false
	}
}

func bytesReader(body []byte) io.Reader {
	if body == nil {
		return nil
	}
	return bytes.NewReader(body)
}

// Ping checks that the backend answers HTTP at all. Any response counts.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.base.String()+"/", nil)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	res, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "ping backend")
	}
	return res.Body.Close()
}
