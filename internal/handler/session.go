package handler

import (
	"net/http"

	"github.com/mohamim360/E-commerce-Ordering-and-Payment-System-Frontend/internal/domain/session"
)

type identity struct {
	ID    string `json:"id" validate:"required"`
	Email string `json:"email" validate:"omitempty,email"`
	Name  string `json:"name"`
	Role  string `json:"role,omitempty"`
}

// sessionResponse never carries the token back to the surface.
type sessionResponse struct {
	Authenticated bool      `json:"authenticated"`
	User          *identity `json:"user,omitempty"`
}

type putSessionRequest struct {
	Token string    `json:"token" validate:"required"`
	User  *identity `json:"user" validate:"required"`
}

func toSessionResponse(s session.Session) sessionResponse {
	resp := sessionResponse{Authenticated: s.Authenticated()}
	if s.User != nil {
		resp.User = &identity{ID: s.User.ID, Email: s.User.Email, Name: s.User.Name, Role: s.User.Role}
	}
	return resp
}

func (h *Handler) getSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toSessionResponse(h.sessions.Current()))
}

func (h *Handler) putSession(w http.ResponseWriter, r *http.Request) {
	var req putSessionRequest
	if !h.decode(w, r, &req) {
		return
	}
	user := &session.Identity{ID: req.User.ID, Email: req.User.Email, Name: req.User.Name, Role: req.User.Role}
	if err := h.sessions.SetSession(r.Context(), user, req.Token); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(h.sessions.Current()))
}

func (h *Handler) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Clear(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
