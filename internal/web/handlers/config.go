package handlers

import (
	"net/http"

	"github.com/kozaktomas/face-auth/internal/config"
	"github.com/kozaktomas/face-auth/internal/constants"
)

// ConfigHandler handles configuration endpoints
type ConfigHandler struct {
	config *config.Config
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{
		config: cfg,
	}
}

// ConfigResponse represents the configuration response
type ConfigResponse struct {
	DescriptorSize   int     `json:"descriptor_size"`
	Threshold        float64 `json:"threshold"`
	StorageBackend   string  `json:"storage_backend"`
	DetectorURL      string  `json:"detector_url,omitempty"`
	MaxImageSize     int     `json:"max_image_size"`
	EnrollmentTTLSec int     `json:"enrollment_ttl_sec"`
}

// Get returns the public part of the configuration
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	response := ConfigResponse{
		DescriptorSize:   h.config.Descriptor.Size,
		Threshold:        h.config.Matcher.Threshold,
		StorageBackend:   h.config.Storage.Backend,
		DetectorURL:      h.config.Detector.URL,
		MaxImageSize:     h.config.Detector.MaxImageSize,
		EnrollmentTTLSec: int(constants.EnrollmentTTL.Seconds()),
	}

	respondJSON(w, http.StatusOK, response)
}
