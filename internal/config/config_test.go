package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("reported existing file for missing path")
	}
	if resolved != path {
		t.Fatalf("resolved = %q, want %q", resolved, path)
	}
	if cfg.Processing.MaxConcurrency != 3 || cfg.Processing.MaxRetries != 2 {
		t.Fatalf("defaults = %+v", cfg.Processing)
	}
	if cfg.Upload.Backend != "local" {
		t.Fatalf("default backend = %q, want local", cfg.Upload.Backend)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[processing]
max_concurrency = 8
max_retries = 5
image_output_format = "PNG"

[upload]
backend = "s3"

[upload.s3]
bucket = "media"
region = "eu-west-1"

[workflow]
queue_poll_interval = 2
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("existing file not detected")
	}
	if cfg.Processing.MaxConcurrency != 8 || cfg.Processing.MaxRetries != 5 {
		t.Fatalf("processing overrides = %+v", cfg.Processing)
	}
	if cfg.Processing.ImageOutputFormat != "png" {
		t.Fatalf("image format = %q, want normalized lowercase", cfg.Processing.ImageOutputFormat)
	}
	if cfg.Upload.Backend != "s3" || cfg.Upload.S3.Bucket != "media" {
		t.Fatalf("upload overrides = %+v", cfg.Upload)
	}
	if cfg.Workflow.QueuePollInterval != 2 {
		t.Fatalf("poll interval = %d, want 2", cfg.Workflow.QueuePollInterval)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"unsupported image format": `
[processing]
image_output_format = "tiff"
`,
		"unknown backend": `
[upload]
backend = "ftp"
`,
		"s3 without bucket": `
[upload]
backend = "s3"
`,
		"unknown log format": `
[logging]
format = "xml"
`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			if _, _, _, err := Load(path); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestNormalizeBackfillsZeroValues(t *testing.T) {
	cfg := Config{}
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Processing.MaxConcurrency <= 0 {
		t.Fatal("max concurrency not backfilled")
	}
	if cfg.Processing.RetryMaxDelay < cfg.Processing.RetryBaseDelay {
		t.Fatalf("retry delays inverted: %d < %d", cfg.Processing.RetryMaxDelay, cfg.Processing.RetryBaseDelay)
	}
	if cfg.Processing.ImageOutputFormat == "" || cfg.Processing.VideoOutputFormat == "" {
		t.Fatal("output formats not backfilled")
	}
	if cfg.Paths.DBPath == "" || cfg.Paths.LockPath == "" {
		t.Fatal("db and lock paths not backfilled")
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}

	expanded, err := ExpandPath("~/media/in.jpg")
	if err != nil {
		t.Fatalf("ExpandPath: %v", err)
	}
	if expanded != filepath.Join(home, "media", "in.jpg") {
		t.Fatalf("expanded = %q", expanded)
	}

	absolute, err := ExpandPath("relative/file.png")
	if err != nil {
		t.Fatalf("ExpandPath: %v", err)
	}
	if !filepath.IsAbs(absolute) {
		t.Fatalf("expanded path %q is not absolute", absolute)
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := Default()
	cfg.Paths.StagingDir = filepath.Join(base, "staging")
	cfg.Paths.LibraryDir = filepath.Join(base, "library")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.DBPath = filepath.Join(base, "db", "queue.db")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StagingDir, cfg.Paths.LibraryDir, cfg.Paths.LogDir, filepath.Dir(cfg.Paths.DBPath)} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("directory %q missing: %v", dir, err)
		}
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[processing]") {
		t.Fatal("sample missing processing section")
	}

	if _, _, _, err := Load(path); err != nil {
		t.Fatalf("sample config does not load: %v", err)
	}
}
