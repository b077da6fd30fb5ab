package session

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned by a Repository when no session has been stored.
var ErrNotFound = errors.New("session not found")

// Identity describes the signed-in user.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role,omitempty"`
}

// Session is the current auth state. A zero Session is anonymous.
type Session struct {
	User  *Identity `json:"user,omitempty"`
	Token string    `json:"token,omitempty"`
}

// Authenticated reports whether the session carries a credential token.
func (s Session) Authenticated() bool {
	return s.Token != ""
}

// Repository persists the session as a single record.
type Repository interface {
	Load(ctx context.Context) (Session, error)
	Save(ctx context.Context, s Session) error
	Delete(ctx context.Context) error
}
