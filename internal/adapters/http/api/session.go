package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/nndl/courseboard/internal/adapters/identity"
	"github.com/nndl/courseboard/internal/domain/principal"
)

// SessionHandler handles sign-in, sign-out and principal lookup.
type SessionHandler struct {
	deps SessionDependencies
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(deps SessionDependencies) *SessionHandler {
	return &SessionHandler{deps: deps}
}

// HandleSession dispatches /api/session by method:
// POST signs in, GET returns the current principal, DELETE signs out.
func (h *SessionHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleSignIn(w, r)
	case http.MethodGet:
		h.handleCurrent(w, r)
	case http.MethodDelete:
		h.handleSignOut(w, r)
	default:
		http.NotFound(w, r)
	}
}

type signInRequest struct {
	Credential string `json:"credential"`
}

// principalResponse is the principal plus its derived flags.
type principalResponse struct {
	principal.Principal
	IsAdmin       bool `json:"isAdmin"`
	AllowedDomain bool `json:"allowedDomain"`
}

func (h *SessionHandler) describe(p principal.Principal) principalResponse {
	return principalResponse{
		Principal:     p,
		IsAdmin:       h.deps.IsAdmin(p),
		AllowedDomain: p.AllowedDomain(h.deps.AllowedDomains()),
	}
}

func (h *SessionHandler) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if strings.TrimSpace(req.Credential) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", errors.New("missing credential"))
		return
	}

	p, err := h.deps.SignIn(r.Context(), req.Credential)
	if err != nil {
		if errors.Is(err, identity.ErrUnauthorizedDomain) {
			writeError(w, http.StatusForbidden, "unauthorized_domain", identity.ErrUnauthorizedDomain)
			return
		}
		writeError(w, http.StatusBadGateway, "provider_error", err)
		return
	}
	writeJSON(w, http.StatusOK, h.describe(p))
}

func (h *SessionHandler) handleCurrent(w http.ResponseWriter, r *http.Request) {
	p, ok := h.deps.Current()
	if !ok {
		writeError(w, http.StatusUnauthorized, "not_signed_in", errors.New("not signed in"))
		return
	}
	writeJSON(w, http.StatusOK, h.describe(p))
}

func (h *SessionHandler) handleSignOut(w http.ResponseWriter, r *http.Request) {
	// Local state is cleared regardless of the provider call's outcome,
	// so sign-out always succeeds from the UI's point of view.
	_ = h.deps.SignOut(r.Context())
	w.WriteHeader(http.StatusNoContent)
}
