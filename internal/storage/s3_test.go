package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testS3Config(endpoint string) S3Config {
	return S3Config{
		Bucket:          "test-bucket",
		Region:          "us-east-1",
		Endpoint:        endpoint,
		AccessKeyID:     "test-access-key",
		SecretAccessKey: "test-secret-key",
	}
}

func TestNewS3Storage(t *testing.T) {
	cfg := testS3Config("http://localhost:4566")

	storage, err := NewS3Storage(t.TempDir(), cfg)
	if err != nil {
		t.Fatalf("NewS3Storage() error = %v", err)
	}

	if storage.bucket != cfg.Bucket {
		t.Errorf("bucket = %v, want %v", storage.bucket, cfg.Bucket)
	}
	if storage.region != cfg.Region {
		t.Errorf("region = %v, want %v", storage.region, cfg.Region)
	}
}

func TestS3Storage_InheritsLocalStorage(t *testing.T) {
	storage, err := NewS3Storage(t.TempDir(), testS3Config("http://localhost:4566"))
	if err != nil {
		t.Fatalf("NewS3Storage() error = %v", err)
	}

	ctx := context.Background()
	dir, err := storage.TempDir(ctx, "chunks")
	if err != nil {
		t.Fatalf("TempDir() error = %v", err)
	}
	if err := storage.CleanupTemp(ctx, []string{dir}); err != nil {
		t.Fatalf("CleanupTemp() error = %v", err)
	}
}

func TestS3Storage_Publish_MockServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT method, got %s", r.Method)
		}
		if !strings.HasSuffix(r.URL.Path, "/test-bucket/exports/cut.edl") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "text/plain; charset=utf-8" {
			t.Errorf("unexpected content type: %s", ct)
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("failed to read body: %v", err)
		}
		if !strings.Contains(string(body), "TITLE: cut") {
			t.Errorf("unexpected body: %s", string(body))
		}

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	storage, err := NewS3Storage(t.TempDir(), testS3Config(server.URL))
	if err != nil {
		t.Fatalf("NewS3Storage() error = %v", err)
	}

	artifact := filepath.Join(t.TempDir(), "cut.edl")
	if err := os.WriteFile(artifact, []byte("TITLE: cut\nFCM: NON-DROP FRAME\n\n"), 0600); err != nil {
		t.Fatalf("write artifact: %v", err)
	}

	url, err := storage.Publish(context.Background(), "exports/cut.edl", artifact)
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	expectedURL := server.URL + "/test-bucket/exports/cut.edl"
	if url != expectedURL {
		t.Errorf("url = %v, want %v", url, expectedURL)
	}
}

func TestS3Storage_Publish_MissingFile(t *testing.T) {
	storage, err := NewS3Storage(t.TempDir(), testS3Config("http://localhost:4566"))
	if err != nil {
		t.Fatalf("NewS3Storage() error = %v", err)
	}

	if _, err := storage.Publish(context.Background(), "k", filepath.Join(t.TempDir(), "missing.edl")); err == nil {
		t.Error("expected error for missing artifact")
	}
}

func TestS3Storage_ObjectURL(t *testing.T) {
	s := &S3Storage{bucket: "b", region: "eu-west-1"}
	if got := s.objectURL("exports/a.edl"); got != "https://b.s3.eu-west-1.amazonaws.com/exports/a.edl" {
		t.Errorf("objectURL() = %s", got)
	}
}

func TestContentType(t *testing.T) {
	tests := map[string]string{
		"cut.edl":                 "text/plain; charset=utf-8",
		"cut.fcpxmld/Info.fcpxml": "application/xml",
		"cut.bin":                 "application/octet-stream",
	}
	for path, want := range tests {
		if got := contentType(path); got != want {
			t.Errorf("contentType(%q) = %q, want %q", path, got, want)
		}
	}
}
