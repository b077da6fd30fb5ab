// Package card confirms card payments against the card network's payment
// intents API using the client secret issued by the backend.
package card

import (
	"context"
	"io"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/internal/domain/failure"
	"github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/internal/domain/payment"
)

var _ payment.CardConfirmer = (*Client)(nil)

// Client confirms payment intents. It authenticates with the publishable
// key, so it never holds a secret credential.
type Client struct {
	baseURL        string
	publishableKey string
	http           *http.Client
}

// New creates a Client. A nil httpClient gets an otelhttp transport traced
// with tp.
func New(baseURL, publishableKey string, httpClient *http.Client, tp trace.TracerProvider) *Client {
	if httpClient == nil {
		var opts []otelhttp.Option
		if tp != nil {
			opts = append(opts, otelhttp.WithTracerProvider(tp))
		}
		httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport, opts...)}
	}
	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		publishableKey: publishableKey,
		http:           httpClient,
	}
}

// ConfirmCard confirms the payment intent identified by clientSecret with
// paymentMethod. Declines are returned as failure.ProviderError with the
// provider's message.
func (c *Client) ConfirmCard(ctx context.Context, clientSecret, paymentMethod string) error {
	intentID, _, ok := strings.Cut(clientSecret, "_secret_")
	if !ok || intentID == "" {
		return failure.New(failure.ProviderError, "the payment session is invalid, start checkout again")
	}
	if paymentMethod == "" {
		return failure.New(failure.ProviderError, "enter your card details")
	}

	form := url.Values{
		"client_secret":  {clientSecret},
		"payment_method": {paymentMethod},
	}

	var wrote atomic.Bool
	ctx = httptrace.WithClientTrace(ctx, &httptrace.ClientTrace{
		WroteRequest: func(httptrace.WroteRequestInfo) { wrote.Store(true) },
	})

	endpoint := c.baseURL + "/v1/payment_intents/" + url.PathEscape(intentID) + "/confirm"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+c.publishableKey)

	res, err := c.http.Do(req)
	if err != nil {
		if wrote.Load() {
			return &failure.Error{Kind: failure.AmbiguousOutcome, Err: err}
		}
		return &failure.Error{Kind: failure.NetworkError, Err: err}
	}
	defer func() { _ = res.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return &failure.Error{Kind: failure.AmbiguousOutcome, Err: err}
	}

	intent, err := decodeIntent(data)
	if err != nil {
		return &failure.Error{Kind: failure.AmbiguousOutcome, HTTPStatus: res.StatusCode, Err: err}
	}
	if res.StatusCode >= http.StatusBadRequest || intent.errMessage != "" {
		return &failure.Error{
			Kind:       failure.ProviderError,
			Message:    intent.errMessage,
			HTTPStatus: res.StatusCode,
		}
	}

	switch intent.status {
	case "succeeded", "processing":
		return nil
	case "requires_action":
		return failure.New(failure.ProviderError, "your bank requires additional authentication for this payment")
	case "requires_payment_method":
		return failure.New(failure.ProviderError, intent.lastError)
	case "canceled":
		return failure.New(failure.ProviderError, "the payment was canceled")
	default:
		return failure.New(failure.ProviderError, "unexpected payment status "+intent.status)
	}
}

type intent struct {
	status     string
	lastError  string
	errMessage string
}

func decodeIntent(data []byte) (intent, error) {
	var in intent
	message := func(d *jx.Decoder, dst *string) error {
		if d.Next() != jx.Object {
			return d.Skip()
		}
		return d.Obj(func(d *jx.Decoder, key string) error {
			if key == "message" && d.Next() == jx.String {
				v, err := d.Str()
				*dst = v
				return err
			}
			return d.Skip()
		})
	}

	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "status":
			v, err := d.Str()
			in.status = v
			return err
		case "last_payment_error":
			return message(d, &in.lastError)
		case "error":
			if err := message(d, &in.errMessage); err != nil {
				return err
			}
			if in.errMessage == "" {
				in.errMessage = "the payment could not be completed"
			}
			return nil
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return intent{}, errors.Wrap(err, "decode payment intent")
	}
	return in, nil
}
