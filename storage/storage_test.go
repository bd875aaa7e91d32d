package storage

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"video-branding-worker/config"
	"video-branding-worker/constant"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLocalStorePut(t *testing.T) {
	src := filepath.Join(t.TempDir(), "out.mp4")
	writeFile(t, src, "mp4 bytes")
	root := t.TempDir()

	ref, err := NewLocalStore(root, "").Put(context.Background(), "processed/video_1.mp4", src, constant.ContentTypeMP4)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	want := filepath.Join(root, "processed", "video_1.mp4")
	if ref != want {
		t.Fatalf("ref = %q, want %q", ref, want)
	}
	got, err := os.ReadFile(want)
	if err != nil || string(got) != "mp4 bytes" {
		t.Fatalf("artifact content = %q, %v", got, err)
	}
	leftovers, _ := filepath.Glob(filepath.Join(root, "processed", ".partial-*"))
	if len(leftovers) != 0 {
		t.Fatalf("partial files left behind: %v", leftovers)
	}
}

func TestLocalStorePublicURL(t *testing.T) {
	src := filepath.Join(t.TempDir(), "out.mp4")
	writeFile(t, src, "x")

	ref, err := NewLocalStore(t.TempDir(), "https://cdn.example.com/media/").Put(context.Background(), "processed/a.mp4", src, constant.ContentTypeMP4)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if ref != "https://cdn.example.com/media/processed/a.mp4" {
		t.Fatalf("unexpected ref %q", ref)
	}
}

func TestLocalStoreMissingSource(t *testing.T) {
	_, err := NewLocalStore(t.TempDir(), "").Put(context.Background(), "k.mp4", filepath.Join(t.TempDir(), "none.mp4"), constant.ContentTypeMP4)
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestNewSelectsBackend(t *testing.T) {
	cfg := &config.Config{Storage: config.Storage{Backend: constant.StorageBackendLocal, LocalRoot: t.TempDir()}}
	store, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := store.(*LocalStore); !ok {
		t.Fatalf("expected *LocalStore, got %T", store)
	}

	cfg.Storage.Backend = "tape"
	if _, err := New(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestNewMinIOUsesSharedClient(t *testing.T) {
	client, err := NewMinIOClient(config.MinIO{URL: "localhost:9000", AccessID: "id", SecretAccessKey: "secret"})
	if err != nil {
		t.Fatalf("NewMinIOClient: %v", err)
	}
	cfg := &config.Config{Storage: config.Storage{Backend: constant.StorageBackendMinIO, Bucket: "videos"}}

	store, err := New(context.Background(), cfg, client)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if ms, ok := store.(*MinIOStore); !ok || ms.client != client {
		t.Fatalf("expected a MinIOStore on the shared client, got %T", store)
	}
	if _, err := New(context.Background(), cfg, nil); !errors.Is(err, ErrMinIONotConfigured) {
		t.Fatalf("expected ErrMinIONotConfigured, got %v", err)
	}
}

func TestFetchLocalPathPassesThrough(t *testing.T) {
	f := NewFetcher(nil, nil)
	for _, ref := range []string{"/srv/videos/in.mp4", "templates/overlay.png", `C:\videos\in.mp4`} {
		got, err := f.Fetch(context.Background(), ref, "/unused")
		if err != nil || got != ref {
			t.Fatalf("Fetch(%q) = %q, %v", ref, got, err)
		}
	}
}

func TestFetchHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/in.mp4" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("remote video"))
	}))
	defer srv.Close()

	dst := filepath.Join(t.TempDir(), "input", "source.mp4")
	f := NewFetcher(nil, srv.Client())
	got, err := f.Fetch(context.Background(), srv.URL+"/in.mp4", dst)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got != dst {
		t.Fatalf("path = %q, want %q", got, dst)
	}
	body, _ := os.ReadFile(dst)
	if string(body) != "remote video" {
		t.Fatalf("body = %q", body)
	}

	if _, err := f.Fetch(context.Background(), srv.URL+"/missing.mp4", dst); err == nil {
		t.Fatal("expected error for 404")
	}
}

func TestFetchMinIOWithoutClient(t *testing.T) {
	_, err := NewFetcher(nil, nil).Fetch(context.Background(), "minio://videos/in.mp4", filepath.Join(t.TempDir(), "in.mp4"))
	if !errors.Is(err, ErrMinIONotConfigured) {
		t.Fatalf("expected ErrMinIONotConfigured, got %v", err)
	}
}

func TestFetchUnsupportedScheme(t *testing.T) {
	if _, err := NewFetcher(nil, nil).Fetch(context.Background(), "ftp://host/in.mp4", "/tmp/x"); err == nil {
		t.Fatal("expected error for ftp scheme")
	}
}
