package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime"
	"net/http"
	"strings"

	"github.com/kozaktomas/face-auth/internal/constants"
	"github.com/kozaktomas/face-auth/internal/descriptor"
	"github.com/kozaktomas/face-auth/internal/detector"
	"github.com/kozaktomas/face-auth/internal/enrollment"
	"github.com/kozaktomas/face-auth/internal/identity"
)

const (
	// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
	errInvalidRequestBody = "invalid request body"
)

var (
	errBadRequest          = errors.New(errInvalidRequestBody)
	errDetectorUnavailable = errors.New("face detector is not configured")
	errDetectorFailed      = errors.New("face detection failed")
	errEnrollmentNotFound  = errors.New("enrollment not found")
)

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// ErrorResponse is the body of a failed domain operation.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// errorStatus maps domain errors to an HTTP status and a stable error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, identity.ErrNameExists):
		return http.StatusConflict, "name_exists"
	case errors.Is(err, enrollment.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, identity.ErrNotFound), errors.Is(err, errEnrollmentNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, descriptor.ErrNoFace):
		return http.StatusUnprocessableEntity, "no_face_detected"
	case errors.Is(err, descriptor.ErrInvalidDescriptor):
		return http.StatusUnprocessableEntity, "invalid_descriptor"
	case errors.Is(err, enrollment.ErrEmptyName), errors.Is(err, identity.ErrInvalidName):
		return http.StatusUnprocessableEntity, "empty_name"
	case errors.Is(err, identity.ErrStorageIO):
		return http.StatusServiceUnavailable, "storage_unavailable"
	case errors.Is(err, errDetectorUnavailable):
		return http.StatusServiceUnavailable, "detector_unavailable"
	case errors.Is(err, errDetectorFailed):
		return http.StatusBadGateway, "detector_failed"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// respondFailure sends err with the status errorStatus assigns to it.
func respondFailure(w http.ResponseWriter, err error) {
	status, code := errorStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal server error"
	}
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// jsonDistance renders +Inf (no candidates) as null.
func jsonDistance(d float64) *float64 {
	if math.IsInf(d, 0) || math.IsNaN(d) {
		return nil
	}
	return &d
}

// faceRequest is the JSON form of a face submission. A null or missing
// descriptor means the client found no face.
type faceRequest struct {
	Descriptor []float32 `json:"descriptor"`
}

// readFace extracts the descriptor from a request: either JSON
// {"descriptor": [...]} or a multipart "image" field sent through det.
// A nil descriptor and nil error means no face.
func readFace(r *http.Request, det detector.Detector) (descriptor.Descriptor, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var req faceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %w", errBadRequest, err)
		}
		if req.Descriptor == nil {
			return nil, nil
		}
		return descriptor.Descriptor(req.Descriptor), nil
	}

	if det == nil {
		return nil, errDetectorUnavailable
	}
	if err := r.ParseMultipartForm(constants.MaxImageUpload); err != nil {
		return nil, fmt.Errorf("%w: %w", errBadRequest, err)
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		return nil, fmt.Errorf("%w: missing image field", errBadRequest)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errBadRequest, err)
	}
	d, err := det.Detect(r.Context(), data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errDetectorFailed, err)
	}
	return d, nil
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
