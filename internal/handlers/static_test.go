package handlers

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestAssetFileServer(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "memes"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "memes", "abc.png"), []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}
	h := AssetFileServer(root)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/assets/memes/abc.png", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "png" {
		t.Fatalf("expected file, got %d %q", rr.Code, rr.Body.String())
	}

	for _, p := range []string{"/assets/memes/", "/assets/", "/assets/memes/missing.png", "/assets/../secret"} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, p, nil))
		if rr.Code != http.StatusNotFound && rr.Code != http.StatusMovedPermanently {
			t.Fatalf("%s: expected 404, got %d", p, rr.Code)
		}
	}
}
