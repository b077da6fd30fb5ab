package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/internal/domain/session"
)

const (
	loadSessionSQL = `SELECT record FROM sessions WHERE namespace = $1`

	saveSessionSQL = `INSERT INTO sessions (namespace, record, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (namespace) DO UPDATE SET record = EXCLUDED.record, updated_at = EXCLUDED.updated_at`

	deleteSessionSQL = `DELETE FROM sessions WHERE namespace = $1`
)

var _ session.Repository = (*SessionRepository)(nil)

// SessionRepository implements session.Repository with one JSONB record
// per namespace.
type SessionRepository struct {
	pool      *pgxpool.Pool
	namespace string
}

// NewSessionRepository returns a SessionRepository for namespace.
func NewSessionRepository(pool *pgxpool.Pool, namespace string) *SessionRepository {
	return &SessionRepository{pool: pool, namespace: namespace}
}

func (r *SessionRepository) Load(ctx context.Context) (session.Session, error) {
	var s session.Session
	err := r.pool.QueryRow(ctx, loadSessionSQL, r.namespace).Scan(&s)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return session.Session{}, session.ErrNotFound
		}
		return session.Session{}, fmt.Errorf("loading session: %w", err)
	}
	return s, nil
}

func (r *SessionRepository) Save(ctx context.Context, s session.Session) error {
	if _, err := r.pool.Exec(ctx, saveSessionSQL, r.namespace, s); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Delete(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, deleteSessionSQL, r.namespace); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}
