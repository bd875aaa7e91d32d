package config

import (
	"os"
	"path/filepath"
	"testing"

	"video-branding-worker/constant"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := writeConfig(t, `
app:
  environment: production
rabbitmq_host: broker
minio:
  url: minio:9000
  bucket: videos
`)
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.IsProduction() {
		t.Fatal("expected production environment")
	}
	if cfg.Storage.Backend != constant.StorageBackendMinIO || cfg.Storage.Bucket != "videos" {
		t.Fatalf("unexpected storage config %+v", cfg.Storage)
	}
	if cfg.Queue.RoutingKey != constant.TopicProcessVideo || cfg.Queue.Port != 5672 {
		t.Fatalf("unexpected queue config %+v", cfg.Queue)
	}
	if cfg.Limits.MaxSizeBytes != 100*1024*1024 || cfg.Limits.MaxDurationSeconds != 60 || cfg.Limits.AspectTolerance != 0.01 {
		t.Fatalf("unexpected limits %+v", cfg.Limits)
	}
	if cfg.Server.Workers != 2 {
		t.Fatalf("expected 2 workers, got %d", cfg.Server.Workers)
	}
}

func TestLoadEnvironmentOverride(t *testing.T) {
	dir := writeConfig(t, `
storage:
  backend: minio
  bucket: videos
`)
	t.Setenv("STORAGE_BACKEND", "local")
	t.Setenv("STORAGE_LOCAL_ROOT", "/srv/artifacts")
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Backend != constant.StorageBackendLocal || cfg.Storage.LocalRoot != "/srv/artifacts" {
		t.Fatalf("environment override not applied: %+v", cfg.Storage)
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	dir := writeConfig(t, `
storage:
  backend: floppy
`)
	if _, err := Load(dir); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestLoadRequiresBucketForObjectStores(t *testing.T) {
	dir := writeConfig(t, `
storage:
  backend: s3
`)
	if _, err := Load(dir); err == nil {
		t.Fatal("expected error for missing bucket")
	}
}

func TestLoadRequiresMinIOEndpoint(t *testing.T) {
	dir := writeConfig(t, `
storage:
  backend: minio
  bucket: videos
`)
	if _, err := Load(dir); err == nil {
		t.Fatal("expected error for missing minio.url")
	}
}

func TestRabbitMQURL(t *testing.T) {
	r := RabbitMQ{Host: "broker", Port: 5672, User: "guest", Pass: "p@ss"}
	if got := r.URL(); got != "amqp://guest:p@ss@broker:5672/" {
		t.Fatalf("unexpected url %q", got)
	}
}
