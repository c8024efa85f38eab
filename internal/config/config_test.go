package config

import (
	"testing"
	"time"
)

func TestLoadRequiresSecrets(t *testing.T) {
	t.Setenv("SESSION_JWT_SECRET", "")
	t.Setenv("RENDER_JWT_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when secrets are missing")
	}

	t.Setenv("SESSION_JWT_SECRET", "session-secret")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when render secret is missing")
	}
}

func TestLoadRejectsEqualSecrets(t *testing.T) {
	t.Setenv("SESSION_JWT_SECRET", "same")
	t.Setenv("RENDER_JWT_SECRET", "same")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when both domains share a secret")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SESSION_JWT_SECRET", "session-secret")
	t.Setenv("RENDER_JWT_SECRET", "render-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("unexpected listen addr: %s", cfg.ListenAddr)
	}
	if cfg.StorageBackend != "local" {
		t.Errorf("unexpected storage backend: %s", cfg.StorageBackend)
	}
	if cfg.MaxUploadSize != 100*1024*1024 {
		t.Errorf("unexpected max upload size: %d", cfg.MaxUploadSize)
	}
	if cfg.MaxUploadFiles != 10 {
		t.Errorf("unexpected max upload files: %d", cfg.MaxUploadFiles)
	}
	if cfg.GrantTTL != 30*time.Minute {
		t.Errorf("unexpected grant TTL: %v", cfg.GrantTTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SESSION_JWT_SECRET", "session-secret")
	t.Setenv("RENDER_JWT_SECRET", "render-secret")
	t.Setenv("MAX_UPLOAD_FILES", "3")
	t.Setenv("GRANT_TTL", "10m")
	t.Setenv("S3_USE_SSL", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxUploadFiles != 3 {
		t.Errorf("expected 3 max upload files, got %d", cfg.MaxUploadFiles)
	}
	if cfg.GrantTTL != 10*time.Minute {
		t.Errorf("expected 10m grant TTL, got %v", cfg.GrantTTL)
	}
	if !cfg.S3UseSSL {
		t.Error("expected S3_USE_SSL to be true")
	}
}
