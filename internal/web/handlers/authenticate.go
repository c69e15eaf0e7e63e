package handlers

import (
	"net/http"

	"github.com/kozaktomas/face-auth/internal/authentication"
	"github.com/kozaktomas/face-auth/internal/detector"
	"github.com/kozaktomas/face-auth/internal/logger"
)

// AuthenticateHandler answers "who is this?" for a submitted face
type AuthenticateHandler struct {
	auth     *authentication.Authenticator
	detector detector.Detector
	log      *logger.Logger
}

// NewAuthenticateHandler creates a new authenticate handler
func NewAuthenticateHandler(auth *authentication.Authenticator, det detector.Detector, log *logger.Logger) *AuthenticateHandler {
	return &AuthenticateHandler{auth: auth, detector: det, log: log}
}

// AuthenticateResponse is the outcome of an authentication attempt.
// Distance is null when nobody is enrolled.
type AuthenticateResponse struct {
	Accepted  bool     `json:"accepted"`
	Name      string   `json:"name,omitempty"`
	Distance  *float64 `json:"distance"`
	Threshold float64  `json:"threshold"`
}

// Authenticate matches a JSON descriptor or an uploaded image against the enrolled identities.
func (h *AuthenticateHandler) Authenticate(w http.ResponseWriter, r *http.Request) {
	probe, err := readFace(r, h.detector)
	if err != nil {
		h.log.Warn("reading face failed", "error", err)
		respondFailure(w, err)
		return
	}

	outcome, err := h.auth.Authenticate(r.Context(), probe)
	if err != nil {
		respondFailure(w, err)
		return
	}

	respondJSON(w, http.StatusOK, AuthenticateResponse{
		Accepted:  outcome.Accepted,
		Name:      outcome.Name,
		Distance:  jsonDistance(outcome.Distance),
		Threshold: h.auth.Matcher().Threshold(),
	})
}
