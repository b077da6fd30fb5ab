// Package failure defines the error kinds surfaced by the checkout core.
//
// Every error returned to the rendering surface can be classified into one of
// the kinds below with KindOf. Errors carry a human-readable message sourced
// from the server when one is available, else a generic fallback for the kind.
package failure

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-faster/errors"
)

// Kind distinguishes failures the caller reacts to differently.
type Kind string

const (
	// Unknown is reported for errors that carry no kind, e.g. storage failures.
	Unknown Kind = ""
	// Unauthenticated means there is no credential or it was rejected.
	Unauthenticated Kind = "unauthenticated"
	// EmptyCart means checkout was attempted with no cart lines.
	EmptyCart Kind = "empty_cart"
	// OutOfStock means the product cannot be added to the cart.
	OutOfStock Kind = "out_of_stock"
	// NetworkError means no response was received.
	NetworkError Kind = "network_error"
	// ServerRejected means the backend answered with an error status.
	ServerRejected Kind = "server_rejected"
	// ProviderError means the payment provider failed the confirmation.
	ProviderError Kind = "provider_error"
	// AmbiguousOutcome means the request was dispatched but its result is unknown.
	AmbiguousOutcome Kind = "ambiguous_outcome"
)

var fallbackMessages = map[Kind]string{
	Unauthenticated:  "please sign in to continue",
	EmptyCart:        "your cart is empty",
	OutOfStock:       "this product is out of stock",
	NetworkError:     "could not reach the store, check your connection and try again",
	ServerRejected:   "the request was rejected",
	ProviderError:    "the payment could not be completed",
	AmbiguousOutcome: "the request may or may not have been processed, check your orders before trying again",
}

// Error is a classified failure.
type Error struct {
	Kind       Kind
	Message    string
	HTTPStatus int
	// Fields holds field-keyed validation messages for ServerRejected.
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	b.WriteString(": ")
	b.WriteString(e.UserMessage())
	if e.HTTPStatus != 0 {
		fmt.Fprintf(&b, " (status %d)", e.HTTPStatus)
	}
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "; %s: %s", k, e.Fields[k])
		}
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// UserMessage returns the message shown to the user.
func (e *Error) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	if m, ok := fallbackMessages[e.Kind]; ok {
		return m
	}
	return "something went wrong"
}

// New returns an Error of the given kind with an optional message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap classifies err under kind. A nil err yields nil.
func Wrap(err error, kind Kind, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Unknown
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// As returns the classified error in err's chain, if any.
func As(err error) (*Error, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
