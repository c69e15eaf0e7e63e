package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/face-auth/internal/authentication"
	"github.com/kozaktomas/face-auth/internal/facematch"
	"github.com/kozaktomas/face-auth/internal/identity"
)

func newAuthenticateHandler(t *testing.T, det *stubDetector, identities ...identity.Identity) *AuthenticateHandler {
	t.Helper()
	repo, _ := testRepo(t, identities...)
	auth := authentication.New(repo, facematch.NewMatcher(facematch.DefaultThreshold), testLogger)
	if det == nil {
		return NewAuthenticateHandler(auth, nil, testLogger)
	}
	return NewAuthenticateHandler(auth, det, testLogger)
}

func TestAuthenticateHandler_JSON(t *testing.T) {
	handler := newAuthenticateHandler(t, nil,
		identity.Identity{Name: "Alice", Descriptor: vec()},
		identity.Identity{Name: "Bob", Descriptor: vec(1.2)},
	)

	tests := []struct {
		name     string
		probe    []float32
		accepted bool
		who      string
	}{
		{"alice", vec(0.25), true, "Alice"},
		{"stranger", vec(0, 0.75), false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			handler.Authenticate(recorder, jsonRequest(t, http.MethodPost, "/api/v1/authenticate", map[string]any{"descriptor": tt.probe}))

			if recorder.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
			}
			var resp AuthenticateResponse
			decodeBody(t, recorder, &resp)
			if resp.Accepted != tt.accepted || resp.Name != tt.who {
				t.Errorf("got %+v, want accepted=%v name=%q", resp, tt.accepted, tt.who)
			}
			if resp.Distance == nil {
				t.Error("expected a distance")
			}
			if resp.Threshold != facematch.DefaultThreshold {
				t.Errorf("expected threshold %v, got %v", facematch.DefaultThreshold, resp.Threshold)
			}
		})
	}
}

func TestAuthenticateHandler_NoFace(t *testing.T) {
	handler := newAuthenticateHandler(t, nil, identity.Identity{Name: "Alice", Descriptor: vec()})

	recorder := httptest.NewRecorder()
	handler.Authenticate(recorder, jsonRequest(t, http.MethodPost, "/api/v1/authenticate", map[string]any{"descriptor": nil}))

	if recorder.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", recorder.Code)
	}
	var resp ErrorResponse
	decodeBody(t, recorder, &resp)
	if resp.Code != "no_face_detected" {
		t.Errorf("expected no_face_detected, got %q", resp.Code)
	}
}

func TestAuthenticateHandler_EmptyRepository(t *testing.T) {
	handler := newAuthenticateHandler(t, nil)

	recorder := httptest.NewRecorder()
	handler.Authenticate(recorder, jsonRequest(t, http.MethodPost, "/api/v1/authenticate", map[string]any{"descriptor": vec()}))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	var resp AuthenticateResponse
	decodeBody(t, recorder, &resp)
	if resp.Accepted || resp.Distance != nil {
		t.Errorf("expected rejection with null distance, got %+v", resp)
	}
}

func TestAuthenticateHandler_Image(t *testing.T) {
	det := &stubDetector{result: vec(0.5)}
	handler := newAuthenticateHandler(t, det, identity.Identity{Name: "Alice", Descriptor: vec()})

	recorder := httptest.NewRecorder()
	handler.Authenticate(recorder, multipartImageRequest(t, "image", []byte("jpeg")))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	var resp AuthenticateResponse
	decodeBody(t, recorder, &resp)
	if !resp.Accepted || resp.Name != "Alice" {
		t.Errorf("expected Alice, got %+v", resp)
	}
}

func TestAuthenticateHandler_ImageNoFaceAndDetectorError(t *testing.T) {
	tests := []struct {
		name   string
		det    *stubDetector
		status int
	}{
		{"no face in image", &stubDetector{}, http.StatusUnprocessableEntity},
		{"detector error", &stubDetector{err: errors.New("connection refused")}, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newAuthenticateHandler(t, tt.det, identity.Identity{Name: "Alice", Descriptor: vec()})
			recorder := httptest.NewRecorder()
			handler.Authenticate(recorder, multipartImageRequest(t, "image", []byte("jpeg")))
			if recorder.Code != tt.status {
				t.Errorf("expected %d, got %d", tt.status, recorder.Code)
			}
		})
	}
}
