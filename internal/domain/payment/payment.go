// Package payment drives a payment session for an order through a provider
// to a terminal state.
//
// Two provider shapes exist. CARD sessions are confirmed in-process through
// a CardConfirmer. WALLET sessions redirect the user to the provider and are
// confirmed by a later return callback, which is matched to its session
// through a durable record keyed by the provider transaction token.
package payment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/internal/domain/order"
)

var (
	// ErrNotFound is returned by a Repository when no record matches.
	ErrNotFound = errors.New("payment session not found")
	// ErrOrderNotCreated is returned when payment is started for an order
	// the server has not confirmed.
	ErrOrderNotCreated = errors.New("order has not been created")
	// ErrOrderNotPending is returned when the order is already settled.
	ErrOrderNotPending = errors.New("order is not pending")
	// ErrUnknownProvider is returned for an unsupported provider.
	ErrUnknownProvider = errors.New("unknown payment provider")
	// ErrWrongProvider is returned when an operation does not apply to the
	// session's provider.
	ErrWrongProvider = errors.New("operation not supported by payment provider")
)

// Provider identifies a payment processor shape.
type Provider string

const (
	ProviderCard   Provider = "CARD"
	ProviderWallet Provider = "WALLET"
)

// ParseProvider parses a provider name, ignoring case.
func ParseProvider(s string) (Provider, error) {
	switch p := Provider(strings.ToUpper(strings.TrimSpace(s))); p {
	case ProviderCard, ProviderWallet:
		return p, nil
	default:
		return "", errors.Wrapf(ErrUnknownProvider, "%q", s)
	}
}

// Status is the state of a payment session.
type Status string

const (
	StatusInitiated            Status = "INITIATED"
	StatusAwaitingConfirmation Status = "AWAITING_CONFIRMATION"
	StatusConfirmed            Status = "CONFIRMED"
	StatusFailed               Status = "FAILED"
)

var transitions = map[Status][]Status{
	StatusInitiated:            {StatusAwaitingConfirmation},
	StatusAwaitingConfirmation: {StatusConfirmed, StatusFailed},
}

// IsTerminal reports whether the session has reached a final state.
func (s Status) IsTerminal() bool {
	return s == StatusConfirmed || s == StatusFailed
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IllegalTransitionError is returned for a transition the state machine
// does not allow.
type IllegalTransitionError struct {
	From Status
	To   Status
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal payment transition %s -> %s", e.From, e.To)
}

// Session is one checkout attempt for an order.
type Session struct {
	ID       string   `json:"id"`
	OrderID  string   `json:"order_id"`
	Provider Provider `json:"provider"`
	// ProviderSessionToken is the card client secret or the wallet
	// transaction token.
	ProviderSessionToken string    `json:"provider_session_token"`
	RedirectURL          string    `json:"redirect_url,omitempty"`
	Status               Status    `json:"status"`
	FailureReason        string    `json:"failure_reason,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func (s *Session) transition(to Status, now time.Time) error {
	if !s.Status.CanTransitionTo(to) {
		return &IllegalTransitionError{From: s.Status, To: to}
	}
	s.Status = to
	s.UpdatedAt = now
	return nil
}

func (s *Session) clone() *Session {
	c := *s
	return &c
}

// Checkout is the backend's answer to opening a provider session.
type Checkout struct {
	ClientSecret         string
	ProviderSessionToken string
	RedirectURL          string
}

// WalletExecution finalizes a wallet payment after the user returned from
// the provider.
type WalletExecution struct {
	OrderID       string
	TransactionID string
	PayerID       string
}

// Backend is the slice of the backend API used for payments.
type Backend interface {
	CreateCheckout(ctx context.Context, token, orderID string, provider Provider) (*Checkout, error)
	ExecuteWallet(ctx context.Context, token string, req WalletExecution) (*order.Order, error)
	GetOrder(ctx context.Context, token, id string) (*order.Order, error)
}

// CardConfirmer is the card provider's confirmation primitive. A declined
// payment is reported as a failure.ProviderError carrying the provider's
// message.
type CardConfirmer interface {
	ConfirmCard(ctx context.Context, clientSecret, paymentMethod string) error
}

// Repository durably records wallet sessions so a return callback can be
// resolved by a process that did not start the checkout.
type Repository interface {
	Save(ctx context.Context, s *Session) error
	FindByToken(ctx context.Context, token string) (*Session, error)
	// FindByOrder returns the most recently updated session for orderID.
	FindByOrder(ctx context.Context, orderID string) (*Session, error)
}
