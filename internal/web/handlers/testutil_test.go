package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-auth/internal/config"
	"github.com/kozaktomas/face-auth/internal/database/mock"
	"github.com/kozaktomas/face-auth/internal/descriptor"
	"github.com/kozaktomas/face-auth/internal/identity"
	"github.com/kozaktomas/face-auth/internal/logger"
)

const testSize = 4

// testConfig creates a minimal config for testing
func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Descriptor.Size = testSize
	cfg.Matcher.Threshold = 0.6
	cfg.Storage.Backend = config.BackendFile
	cfg.Detector.URL = "http://localhost:8000"
	cfg.Detector.MaxImageSize = 1280
	return cfg
}

func vec(v ...float32) []float32 {
	d := make([]float32, testSize)
	copy(d, v)
	return d
}

// testRepo opens a repository over an in-memory store, pre-populated with identities
func testRepo(t *testing.T, identities ...identity.Identity) (*identity.Repository, *mock.MockIdentityStore) {
	t.Helper()
	store := mock.NewMockIdentityStore()
	repo, _, err := identity.Open(context.Background(), store, identity.Options{DescriptorSize: testSize})
	if err != nil {
		t.Fatalf("failed to open repository: %v", err)
	}
	for _, ident := range identities {
		if err := repo.Add(context.Background(), ident); err != nil {
			t.Fatalf("failed to add %s: %v", ident.Name, err)
		}
	}
	return repo, store
}

// jsonRequest creates a request with a JSON body
func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// decodeBody decodes a JSON response body into v
func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to unmarshal response %q: %v", recorder.Body.String(), err)
	}
}

// stubDetector returns a fixed descriptor or error
type stubDetector struct {
	result descriptor.Descriptor
	err    error
	calls  int
	got    []byte
}

func (s *stubDetector) Detect(_ context.Context, imageData []byte) (descriptor.Descriptor, error) {
	s.calls++
	s.got = imageData
	return s.result, s.err
}

var testLogger = logger.Nop()
