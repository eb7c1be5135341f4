package api

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
)

func TestServeFrameReturnsFileContents(t *testing.T) {
	h, r := setupTestHandlers(t)

	if err := os.MkdirAll(h.framesDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(h.framesDir, "123.jpg"), []byte("fake-jpeg"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	w := performRequest(r, "GET", "/frames/123.jpg", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if w.Body.String() != "fake-jpeg" {
		t.Fatalf("expected file contents, got %q", w.Body.String())
	}
}

func TestServeFrameMissingFileIsNotFound(t *testing.T) {
	_, r := setupTestHandlers(t)

	w := performRequest(r, "GET", "/frames/missing.jpg", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestServeFrameRejectsTraversal(t *testing.T) {
	_, r := setupTestHandlers(t)

	w := performRequest(r, "GET", "/frames/../etc/passwd", nil)
	if w.Code != http.StatusBadRequest && w.Code != http.StatusNotFound {
		t.Fatalf("expected traversal attempt to be rejected, got %d: %s", w.Code, w.Body.String())
	}
}

func TestServeVideoReturnsFileContents(t *testing.T) {
	h, r := setupTestHandlers(t)

	if err := os.MkdirAll(h.videosDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(h.videosDir, "1.mp4"), []byte("fake-mp4"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	w := performRequest(r, "GET", "/videos/1.mp4", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if w.Body.String() != "fake-mp4" {
		t.Fatalf("expected file contents, got %q", w.Body.String())
	}
}
