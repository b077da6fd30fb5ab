package session

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Holder owns the process-wide session. Other components read it through
// Current and never mutate it.
type Holder struct {
	repo Repository

	mu      sync.RWMutex
	current Session
}

// Open restores the persisted session, starting anonymous when none exists.
func Open(ctx context.Context, repo Repository) (*Holder, error) {
	s, err := repo.Load(ctx)
	switch {
	case errors.Is(err, ErrNotFound):
		s = Session{}
	case err != nil:
		return nil, errors.Wrap(err, "load session")
	}
	return &Holder{repo: repo, current: clone(s)}, nil
}

// SetSession replaces the current session and persists it.
func (h *Holder) SetSession(ctx context.Context, user *Identity, token string) error {
	next := clone(Session{User: user, Token: token})

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.repo.Save(ctx, next); err != nil {
		return errors.Wrap(err, "persist session")
	}
	h.current = next
	return nil
}

// Clear removes the session and purges the persisted token.
func (h *Holder) Clear(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.clearLocked(ctx)
}

// Reject clears the session if token is still the current credential. It is
// called when an authenticated request was answered with 401, so a late
// rejection of an old token never signs out a newer login.
func (h *Holder) Reject(ctx context.Context, token string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if token == "" || h.current.Token != token {
		return
	}
	lg := zctx.From(ctx)
	if err := h.clearLocked(ctx); err != nil {
		lg.Error("Clear rejected session", zap.Error(err))
		return
	}
	lg.Info("Session cleared after credential rejection")
}

// Current returns a copy of the current session.
func (h *Holder) Current() Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return clone(h.current)
}

func (h *Holder) clearLocked(ctx context.Context) error {
	if err := h.repo.Delete(ctx); err != nil {
		return errors.Wrap(err, "purge session")
	}
	h.current = Session{}
	return nil
}

func clone(s Session) Session {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}
