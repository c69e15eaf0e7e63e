// Package detector turns an image into a face descriptor by calling an external
// face-embedding server.
package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/kozaktomas/face-auth/internal/descriptor"
)

const (
	defaultURL     = "http://localhost:8000"
	defaultTimeout = 30 * time.Second
	facePath       = "/embed/face"
)

// Detector extracts at most one face descriptor from an image.
// A nil descriptor with a nil error means no face was found.
type Detector interface {
	Detect(ctx context.Context, imageData []byte) (descriptor.Descriptor, error)
}

// Client talks to the embedding server
type Client struct {
	baseURL      string
	maxImageSize int
	client       *http.Client
}

// NewClient creates a detector client. maxImageSize <= 0 disables resizing.
func NewClient(baseURL string, maxImageSize int, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		maxImageSize: maxImageSize,
		client:       &http.Client{Timeout: timeout},
	}
}

// FaceDetection represents a single detected face
type FaceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
}

// FaceResponse represents the response from the face embedding endpoint
type FaceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []FaceDetection `json:"faces"`
	Model      string          `json:"model"`
}

// Detect sends imageData to the server and returns the descriptor of the most
// confident face, or nil when no face was detected.
func (c *Client) Detect(ctx context.Context, imageData []byte) (descriptor.Descriptor, error) {
	if c.maxImageSize > 0 {
		resized, err := ResizeImage(imageData, c.maxImageSize)
		if err != nil {
			return nil, err
		}
		imageData = resized
	}

	resp, err := c.ComputeFaceEmbeddings(ctx, imageData)
	if err != nil {
		return nil, err
	}
	return BestFace(resp), nil
}

// BestFace returns the embedding of the face with the highest detection score.
func BestFace(resp *FaceResponse) descriptor.Descriptor {
	if resp == nil {
		return nil
	}
	best := -1
	for i, face := range resp.Faces {
		if len(face.Embedding) == 0 {
			continue
		}
		if best < 0 || face.DetScore > resp.Faces[best].DetScore {
			best = i
		}
	}
	if best < 0 {
		return nil
	}
	return descriptor.Descriptor(resp.Faces[best].Embedding)
}

// ComputeFaceEmbeddings detects faces and computes their embeddings
func (c *Client) ComputeFaceEmbeddings(ctx context.Context, imageData []byte) (*FaceResponse, error) {
	body, err := c.postMultipartImage(ctx, facePath, imageData)
	if err != nil {
		return nil, err
	}

	var faceResp FaceResponse
	if err := json.Unmarshal(body, &faceResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &faceResp, nil
}

// postMultipartImage posts imageData as the "file" form field to endpoint.
func (c *Client) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	h.Set("Content-Type", detectMIMEType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// detectMIMEType detects the MIME type from image data
func detectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: 89 50 4E 47
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	// BMP: 42 4D
	if data[0] == 0x42 && data[1] == 0x4D {
		return "image/bmp"
	}
	return "application/octet-stream"
}
