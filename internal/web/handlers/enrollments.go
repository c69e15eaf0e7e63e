package handlers

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kozaktomas/face-auth/internal/constants"
	"github.com/kozaktomas/face-auth/internal/detector"
	"github.com/kozaktomas/face-auth/internal/enrollment"
	"github.com/kozaktomas/face-auth/internal/identity"
	"github.com/kozaktomas/face-auth/internal/logger"
)

// EnrollmentSession is an in-progress enrollment.
type EnrollmentSession struct {
	ID       string
	Workflow *enrollment.Workflow

	mu       sync.Mutex
	lastSeen time.Time
}

func (s *EnrollmentSession) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *EnrollmentSession) expiresAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen.Add(constants.EnrollmentTTL)
}

// EnrollmentManager keeps enrollment sessions in memory.
type EnrollmentManager struct {
	repo     *identity.Repository
	log      *logger.Logger
	sessions map[string]*EnrollmentSession
	mu       sync.RWMutex
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

// NewEnrollmentManager creates a manager and starts its cleanup goroutine.
func NewEnrollmentManager(repo *identity.Repository, log *logger.Logger) *EnrollmentManager {
	m := &EnrollmentManager{
		repo:     repo,
		log:      log,
		sessions: make(map[string]*EnrollmentSession),
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	go m.cleanupLoop(constants.EnrollmentCleanupInterval)
	return m
}

// Create starts a new enrollment session.
func (m *EnrollmentManager) Create() *EnrollmentSession {
	s := &EnrollmentSession{
		ID:       uuid.New().String(),
		Workflow: enrollment.New(m.repo, m.log),
		lastSeen: m.now(),
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	return s
}

// Get returns a live session and refreshes its expiry.
func (m *EnrollmentManager) Get(id string) *EnrollmentSession {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil
	}

	now := m.now()
	if now.After(s.expiresAt()) {
		m.Delete(id)
		return nil
	}
	s.touch(now)
	return s
}

// Delete removes a session.
func (m *EnrollmentManager) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	return ok
}

// Len returns the number of sessions, including expired ones not yet collected.
func (m *EnrollmentManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Cleanup drops expired sessions and returns how many were removed.
func (m *EnrollmentManager) Cleanup() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, s := range m.sessions {
		if now.After(s.expiresAt()) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

func (m *EnrollmentManager) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := m.Cleanup(); n > 0 {
				m.log.Debug("expired enrollment sessions removed", "count", n)
			}
		case <-m.stop:
			return
		}
	}
}

// Stop stops the cleanup goroutine.
func (m *EnrollmentManager) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

// EnrollmentsHandler exposes the enrollment workflow over HTTP
type EnrollmentsHandler struct {
	sessions *EnrollmentManager
	detector detector.Detector
	log      *logger.Logger
}

// NewEnrollmentsHandler creates a new enrollments handler
func NewEnrollmentsHandler(sessions *EnrollmentManager, det detector.Detector, log *logger.Logger) *EnrollmentsHandler {
	return &EnrollmentsHandler{sessions: sessions, detector: det, log: log}
}

// EnrollmentResponse describes an enrollment session
type EnrollmentResponse struct {
	ID        string            `json:"id"`
	State     enrollment.Kind   `json:"state"`
	Name      string            `json:"name,omitempty"`
	Error     *ErrorResponse    `json:"error,omitempty"`
	Identity  *IdentityResponse `json:"identity,omitempty"`
	ExpiresAt time.Time         `json:"expires_at"`
}

func toEnrollmentResponse(s *EnrollmentSession) EnrollmentResponse {
	resp := EnrollmentResponse{ID: s.ID, ExpiresAt: s.expiresAt()}

	var lastErr error
	switch st := s.Workflow.State().(type) {
	case enrollment.CollectingName:
		resp.Name, lastErr = st.Name, st.Err
	case enrollment.CollectingFace:
		resp.Name, lastErr = st.Name, st.Err
	case enrollment.Committed:
		resp.Name = st.Identity.Name
		ident := toIdentityResponse(st.Identity)
		resp.Identity = &ident
	}
	resp.State = s.Workflow.Kind()

	if lastErr != nil {
		_, code := errorStatus(lastErr)
		resp.Error = &ErrorResponse{Error: lastErr.Error(), Code: code}
	}
	return resp
}

func (h *EnrollmentsHandler) session(w http.ResponseWriter, r *http.Request) *EnrollmentSession {
	s := h.sessions.Get(chi.URLParam(r, "id"))
	if s == nil {
		respondEnrollmentFailure(w, errEnrollmentNotFound)
	}
	return s
}

// Create starts a new enrollment in the collecting_name state.
func (h *EnrollmentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	s := h.sessions.Create()
	h.log.Debug("enrollment started", "id", s.ID)
	respondJSON(w, http.StatusCreated, toEnrollmentResponse(s))
}

// Get returns the enrollment state.
func (h *EnrollmentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}
	respondJSON(w, http.StatusOK, toEnrollmentResponse(s))
}

// Delete abandons an enrollment.
func (h *EnrollmentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.sessions.Delete(chi.URLParam(r, "id")) {
		respondEnrollmentFailure(w, errEnrollmentNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SubmitNameRequest carries the name to enroll
type SubmitNameRequest struct {
	Name string `json:"name"`
}

// SubmitName handles PUT /enrollments/{id}/name.
func (h *EnrollmentsHandler) SubmitName(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}

	var req SubmitNameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWorkflowError(w, s, errBadRequest)
		return
	}

	if err := s.Workflow.SubmitName(req.Name); err != nil {
		h.respondWorkflowError(w, s, err)
		return
	}
	respondJSON(w, http.StatusOK, toEnrollmentResponse(s))
}

// SubmitFace handles POST /enrollments/{id}/face with a JSON descriptor or an image.
func (h *EnrollmentsHandler) SubmitFace(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}

	d, err := readFace(r, h.detector)
	if err != nil {
		h.respondWorkflowError(w, s, err)
		return
	}

	if err := s.Workflow.SubmitFace(r.Context(), d); err != nil {
		h.respondWorkflowError(w, s, err)
		return
	}
	respondJSON(w, http.StatusOK, toEnrollmentResponse(s))
}

// Restart handles POST /enrollments/{id}/restart.
func (h *EnrollmentsHandler) Restart(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}
	if err := s.Workflow.Restart(); err != nil {
		h.respondWorkflowError(w, s, err)
		return
	}
	respondJSON(w, http.StatusOK, toEnrollmentResponse(s))
}

// respondEnrollmentFailure reports an error that has no session to describe,
// keeping the {"error": {"error", "code"}} shape of EnrollmentResponse.
func respondEnrollmentFailure(w http.ResponseWriter, err error) {
	status, code := errorStatus(err)
	respondJSON(w, status, struct {
		Error ErrorResponse `json:"error"`
	}{ErrorResponse{Error: err.Error(), Code: code}})
}

// respondWorkflowError reports err together with the state the workflow is now in,
// so clients know whether to ask for a new name or retry the capture.
func (h *EnrollmentsHandler) respondWorkflowError(w http.ResponseWriter, s *EnrollmentSession, err error) {
	status, code := errorStatus(err)
	if status == http.StatusInternalServerError {
		h.log.Error("enrollment failed", "id", s.ID, "error", err)
	}
	resp := toEnrollmentResponse(s)
	resp.Error = &ErrorResponse{Error: err.Error(), Code: code}
	respondJSON(w, status, resp)
}
