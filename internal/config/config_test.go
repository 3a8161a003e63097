package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_DefaultsWithoutFileOrEnv(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("unexpected http addr %q", cfg.HTTPAddr)
	}
	if cfg.PartSize != DefaultPartSize {
		t.Fatalf("unexpected part size %d", cfg.PartSize)
	}
	if cfg.URLTTL != time.Hour {
		t.Fatalf("unexpected url ttl %v", cfg.URLTTL)
	}
	if cfg.DedupWindow != 5*time.Minute {
		t.Fatalf("unexpected dedup window %v", cfg.DedupWindow)
	}
	if len(cfg.SupportedLanguages) != 10 {
		t.Fatalf("expected ten default languages, got %v", cfg.SupportedLanguages)
	}
	if cfg.StreamPrefix != "catalog:events" {
		t.Fatalf("unexpected stream prefix %q", cfg.StreamPrefix)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	raw := []byte("http_addr: \":9999\"\nbucket: file-bucket\npart_size: 10485760\n")
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv("CONFIG_PATH", path)
	t.Setenv("RAW_MEDIA_BUCKET", "env-bucket")
	t.Setenv("SUPPORTED_LANGUAGES", "hi, te ,ta")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.HTTPAddr != ":9999" {
		t.Fatalf("file value must apply, got %q", cfg.HTTPAddr)
	}
	if cfg.PartSize != 10*1024*1024 {
		t.Fatalf("file part size must apply, got %d", cfg.PartSize)
	}
	if cfg.Bucket != "env-bucket" {
		t.Fatalf("env must override the file, got %q", cfg.Bucket)
	}
	if got := len(cfg.SupportedLanguages); got != 3 {
		t.Fatalf("csv env list must be trimmed and split, got %v", cfg.SupportedLanguages)
	}
	if !cfg.LanguageSupported("te") || cfg.LanguageSupported("bn") {
		t.Fatalf("language set must match the env list: %v", cfg.SupportedLanguages)
	}
}

func TestLoad_RejectsBadValues(t *testing.T) {
	t.Setenv("STORE_MODE", "mysql")
	if _, err := Load(); err == nil {
		t.Fatalf("expected invalid store mode to fail")
	}

	t.Setenv("STORE_MODE", "sqlite")
	t.Setenv("UPLOAD_PART_SIZE", "512")
	if _, err := Load(); err == nil {
		t.Fatalf("expected undersized part size to fail")
	}
}

func TestContentTypeAllowed_DefaultSet(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	for _, ct := range []string{"image/jpeg", "image/png", "audio/opus", "audio/mpeg", "audio/wav"} {
		if !cfg.ContentTypeAllowed(ct) {
			t.Fatalf("default set must allow %q", ct)
		}
	}
	if cfg.ContentTypeAllowed("video/mp4") {
		t.Fatalf("video must not be allowed by default")
	}
}
