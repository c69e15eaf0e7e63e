package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func pngImage(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := range w {
		for y := range h {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestBestFace(t *testing.T) {
	tests := []struct {
		name     string
		resp     *FaceResponse
		expected []float32
	}{
		{"nil response", nil, nil},
		{"no faces", &FaceResponse{}, nil},
		{"single face", &FaceResponse{FacesCount: 1, Faces: []FaceDetection{{Embedding: []float32{1, 2}, DetScore: 0.4}}}, []float32{1, 2}},
		{
			"highest score wins",
			&FaceResponse{FacesCount: 3, Faces: []FaceDetection{
				{Embedding: []float32{1}, DetScore: 0.7},
				{Embedding: []float32{2}, DetScore: 0.9},
				{Embedding: []float32{3}, DetScore: 0.8},
			}},
			[]float32{2},
		},
		{
			"empty embedding ignored",
			&FaceResponse{FacesCount: 2, Faces: []FaceDetection{
				{DetScore: 0.99},
				{Embedding: []float32{5}, DetScore: 0.5},
			}},
			[]float32{5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BestFace(tt.resp)
			if tt.expected == nil {
				if got != nil {
					t.Errorf("expected nil descriptor, got %v", got)
				}
				return
			}
			if len(got) != len(tt.expected) || got[0] != tt.expected[0] {
				t.Errorf("BestFace() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestClient_Detect(t *testing.T) {
	var gotContentType, gotPartType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embed/face" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotContentType = r.Header.Get("Content-Type")
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		gotPartType = header.Header.Get("Content-Type")
		data, _ := io.ReadAll(file)
		if _, err := jpeg.Decode(bytes.NewReader(data)); err != nil {
			t.Errorf("expected JPEG payload: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(FaceResponse{
			FacesCount: 2,
			Faces: []FaceDetection{
				{FaceIndex: 0, Dim: 2, Embedding: []float32{0.1, 0.2}, DetScore: 0.6},
				{FaceIndex: 1, Dim: 2, Embedding: []float32{0.3, 0.4}, DetScore: 0.95},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", 64, time.Second)
	got, err := client.Detect(context.Background(), pngImage(t, 200, 100))
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(got) != 2 || got[0] != 0.3 || got[1] != 0.4 {
		t.Errorf("expected the most confident face, got %v", got)
	}
	if !strings.HasPrefix(gotContentType, "multipart/form-data") {
		t.Errorf("expected multipart request, got %q", gotContentType)
	}
	if gotPartType != "image/jpeg" {
		t.Errorf("expected image/jpeg part, got %q", gotPartType)
	}
}

func TestClient_DetectNoFace(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"faces_count":0,"faces":[]}`))
	}))
	defer server.Close()

	got, err := NewClient(server.URL, 0, 0).Detect(context.Background(), pngImage(t, 8, 8))
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil descriptor, got %v", got)
	}
}

func TestClient_DetectServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewClient(server.URL, 0, 0).Detect(context.Background(), pngImage(t, 8, 8))
	if err == nil || !strings.Contains(err.Error(), "status 503") {
		t.Errorf("expected status 503 error, got %v", err)
	}
}

func TestResizeImage(t *testing.T) {
	tests := []struct {
		name         string
		w, h, max    int
		wantW, wantH int
	}{
		{"landscape", 200, 100, 50, 50, 25},
		{"portrait", 100, 400, 100, 25, 100},
		{"small stays", 30, 20, 50, 30, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := ResizeImage(pngImage(t, tt.w, tt.h), tt.max)
			if err != nil {
				t.Fatalf("ResizeImage: %v", err)
			}
			img, err := jpeg.Decode(bytes.NewReader(out))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if img.Bounds().Dx() != tt.wantW || img.Bounds().Dy() != tt.wantH {
				t.Errorf("got %dx%d, want %dx%d", img.Bounds().Dx(), img.Bounds().Dy(), tt.wantW, tt.wantH)
			}
		})
	}
}

func TestResizeImage_InvalidData(t *testing.T) {
	if _, err := ResizeImage([]byte("not an image"), 100); err == nil {
		t.Error("expected error for invalid image")
	}
}

func TestDetectMIMEType(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected string
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0, 0, 0}, "image/jpeg"},
		{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, "image/png"},
		{"bmp", []byte{0x42, 0x4D, 0, 0, 0, 0, 0, 0}, "image/bmp"},
		{"short", []byte{0xFF}, "application/octet-stream"},
	}
	for _, tt := range tests {
		if got := detectMIMEType(tt.data); got != tt.expected {
			t.Errorf("%s: detectMIMEType() = %q, want %q", tt.name, got, tt.expected)
		}
	}
}
