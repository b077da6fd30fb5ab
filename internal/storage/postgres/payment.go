package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/internal/domain/payment"
)

const (
	paymentColumns = `id, order_id, provider, provider_token, redirect_url, status, failure_reason, created_at, updated_at`

	savePaymentSQL = `INSERT INTO payment_sessions (namespace, ` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (namespace, provider_token) DO UPDATE SET
			id = EXCLUDED.id,
			order_id = EXCLUDED.order_id,
			provider = EXCLUDED.provider,
			redirect_url = EXCLUDED.redirect_url,
			status = EXCLUDED.status,
			failure_reason = EXCLUDED.failure_reason,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at`

	findPaymentByTokenSQL = `SELECT ` + paymentColumns + ` FROM payment_sessions
		WHERE namespace = $1 AND provider_token = $2`

	findPaymentByOrderSQL = `SELECT ` + paymentColumns + ` FROM payment_sessions
		WHERE namespace = $1 AND order_id = $2 ORDER BY updated_at DESC LIMIT 1`

	listPaymentsSQL = `SELECT ` + paymentColumns + ` FROM payment_sessions
		WHERE namespace = $1 ORDER BY updated_at DESC`
)

var _ payment.Repository = (*PaymentRepository)(nil)

// PaymentRepository implements payment.Repository.
type PaymentRepository struct {
	pool      *pgxpool.Pool
	namespace string
}

// NewPaymentRepository returns a PaymentRepository for namespace.
func NewPaymentRepository(pool *pgxpool.Pool, namespace string) *PaymentRepository {
	return &PaymentRepository{pool: pool, namespace: namespace}
}

// Save inserts s. A record with the same provider token is replaced.
func (r *PaymentRepository) Save(ctx context.Context, s *payment.Session) error {
	_, err := r.pool.Exec(ctx, savePaymentSQL,
		r.namespace, s.ID, s.OrderID, string(s.Provider), s.ProviderSessionToken,
		s.RedirectURL, string(s.Status), s.FailureReason, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving payment session %q: %w", s.ID, err)
	}
	return nil
}

func (r *PaymentRepository) FindByToken(ctx context.Context, token string) (*payment.Session, error) {
	return r.findOne(ctx, findPaymentByTokenSQL, token)
}

func (r *PaymentRepository) FindByOrder(ctx context.Context, orderID string) (*payment.Session, error) {
	return r.findOne(ctx, findPaymentByOrderSQL, orderID)
}

// List returns every payment session of the namespace, most recently
// updated first.
func (r *PaymentRepository) List(ctx context.Context) ([]payment.Session, error) {
	rows, err := r.pool.Query(ctx, listPaymentsSQL, r.namespace)
	if err != nil {
		return nil, fmt.Errorf("listing payment sessions: %w", err)
	}
	sessions, err := pgx.CollectRows(rows, scanPaymentSession)
	if err != nil {
		return nil, fmt.Errorf("listing payment sessions: %w", err)
	}
	return sessions, nil
}

func (r *PaymentRepository) findOne(ctx context.Context, query, arg string) (*payment.Session, error) {
	rows, err := r.pool.Query(ctx, query, r.namespace, arg)
	if err != nil {
		return nil, fmt.Errorf("finding payment session: %w", err)
	}
	s, err := pgx.CollectExactlyOneRow(rows, scanPaymentSession)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrNotFound
		}
		return nil, fmt.Errorf("finding payment session: %w", err)
	}
	return &s, nil
}

func scanPaymentSession(row pgx.CollectableRow) (payment.Session, error) {
	var (
		s                payment.Session
		provider, status string
	)
	err := row.Scan(
		&s.ID, &s.OrderID, &provider, &s.ProviderSessionToken, &s.RedirectURL,
		&status, &s.FailureReason, &s.CreatedAt, &s.UpdatedAt,
	)
	s.Provider = payment.Provider(provider)
	s.Status = payment.Status(status)
	return s, err
}
