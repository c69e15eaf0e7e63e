package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-auth/internal/constants"
	"github.com/kozaktomas/face-auth/internal/descriptor"
	"github.com/kozaktomas/face-auth/internal/facematch"
	"github.com/kozaktomas/face-auth/internal/identity"
	"github.com/kozaktomas/face-auth/internal/logger"
)

// IdentitiesHandler handles the enrolled identity set
type IdentitiesHandler struct {
	repo    *identity.Repository
	matcher *facematch.Matcher
	index   facematch.IndexCache
	log     *logger.Logger
}

// NewIdentitiesHandler creates a new identities handler
func NewIdentitiesHandler(repo *identity.Repository, matcher *facematch.Matcher, log *logger.Logger) *IdentitiesHandler {
	return &IdentitiesHandler{repo: repo, matcher: matcher, log: log}
}

// IdentityResponse is the public view of an identity. Descriptors are never exposed.
type IdentityResponse struct {
	Name       string     `json:"name"`
	EnrolledAt *time.Time `json:"enrolled_at,omitempty"`
}

func toIdentityResponse(ident identity.Identity) IdentityResponse {
	resp := IdentityResponse{Name: ident.Name}
	if !ident.EnrolledAt.IsZero() {
		t := ident.EnrolledAt
		resp.EnrolledAt = &t
	}
	return resp
}

// IdentityListResponse is returned by List
type IdentityListResponse struct {
	Count      int                `json:"count"`
	Total      int                `json:"total"`
	Identities []IdentityResponse `json:"identities"`
}

// List returns enrolled identities in enrollment order, optionally filtered by ?q=.
func (h *IdentitiesHandler) List(w http.ResponseWriter, r *http.Request) {
	all := h.repo.List()
	filtered := identity.Filter(all, r.URL.Query().Get("q"))

	resp := IdentityListResponse{
		Count:      len(filtered),
		Total:      len(all),
		Identities: make([]IdentityResponse, 0, len(filtered)),
	}
	for _, ident := range filtered {
		resp.Identities = append(resp.Identities, toIdentityResponse(ident))
	}
	respondJSON(w, http.StatusOK, resp)
}

// Delete removes one identity by name.
func (h *IdentitiesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.repo.Remove(r.Context(), name); err != nil {
		h.log.Warn("removing identity failed", "name", sanitizeForLog(name), "error", err)
		respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"removed": identity.NormalizeName(name), "count": h.repo.Len()})
}

// Reset removes every identity.
func (h *IdentitiesHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.Reset(r.Context()); err != nil {
		respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"count": 0})
}

// NearestRequest asks for the k closest identities to a descriptor
type NearestRequest struct {
	Descriptor []float32 `json:"descriptor"`
	K          int       `json:"k"`
}

// NeighborResponse is one entry of NearestResponse
type NeighborResponse struct {
	Name     string  `json:"name"`
	Distance float64 `json:"distance"`
	Accepted bool    `json:"accepted"`
}

// NearestResponse lists the nearest identities for threshold tuning
type NearestResponse struct {
	Threshold float64            `json:"threshold"`
	Neighbors []NeighborResponse `json:"neighbors"`
}

// Nearest returns the k nearest identities with their distances. It is a
// diagnostic view and never authenticates anyone.
func (h *IdentitiesHandler) Nearest(w http.ResponseWriter, r *http.Request) {
	var req NearestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	probe := descriptor.Descriptor(req.Descriptor)
	if err := descriptor.Validate(probe, h.repo.DescriptorSize()); err != nil {
		respondFailure(w, err)
		return
	}

	k := req.K
	if k <= 0 {
		k = constants.DefaultNearestLimit
	}
	k = min(k, constants.MaxNearestLimit)

	neighbors := h.index.Get(h.repo).Nearest(probe, k)
	resp := NearestResponse{Threshold: h.matcher.Threshold(), Neighbors: make([]NeighborResponse, 0, len(neighbors))}
	for _, n := range neighbors {
		resp.Neighbors = append(resp.Neighbors, NeighborResponse{
			Name:     n.Name,
			Distance: n.Distance,
			Accepted: h.matcher.Accepts(n.Distance),
		})
	}
	respondJSON(w, http.StatusOK, resp)
}
