package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"docdesk/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("DOCDESK_API_TOKEN", "")
	t.Setenv("DOCDESK_CLASSIFIER_API_BASE", "")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantRoot := filepath.Join(tempHome, ".local", "share", "docdesk")
	if cfg.Paths.Root != wantRoot {
		t.Fatalf("unexpected root: got %q want %q", cfg.Paths.Root, wantRoot)
	}
	if cfg.Paths.SourceDir != filepath.Join(tempHome, "scans") {
		t.Fatalf("unexpected source dir: %q", cfg.Paths.SourceDir)
	}
	if cfg.App.User != "system" {
		t.Fatalf("unexpected default user: %q", cfg.App.User)
	}
	if cfg.Routing.Policy != "min" || cfg.Routing.Threshold != 0.7 {
		t.Fatalf("unexpected routing defaults: %+v", cfg.Routing)
	}
	if cfg.PollInterval() != 3*time.Second {
		t.Fatalf("unexpected poll interval: %s", cfg.PollInterval())
	}
	if cfg.StabilityDelay() != 300*time.Millisecond {
		t.Fatalf("unexpected stability delay: %s", cfg.StabilityDelay())
	}
	if cfg.MaxUploadBytes() != 25<<20 {
		t.Fatalf("unexpected upload limit: %d", cfg.MaxUploadBytes())
	}
	if cfg.ClassifierTimeout() != time.Minute {
		t.Fatalf("unexpected classifier timeout: %s", cfg.ClassifierTimeout())
	}
	if cfg.Storage.Backend != config.BackendFile {
		t.Fatalf("unexpected backend: %q", cfg.Storage.Backend)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.Root, cfg.Paths.SourceDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "docdesk.toml")
	t.Setenv("DOCDESK_CLASSIFIER_API_BASE", "")

	type payload struct {
		Paths struct {
			Root string `toml:"root"`
		} `toml:"paths"`
		Classifier struct {
			APIBase string `toml:"api_base"`
		} `toml:"classifier"`
		Routing struct {
			Policy    string  `toml:"policy"`
			Threshold float64 `toml:"threshold"`
		} `toml:"routing"`
		Storage struct {
			Backend string `toml:"backend"`
		} `toml:"storage"`
	}
	custom := payload{}
	custom.Paths.Root = filepath.Join(tempDir, "desk")
	custom.Classifier.APIBase = "https://classifier.example.com/api/v1/"
	custom.Routing.Policy = "AVG"
	custom.Routing.Threshold = 0.85
	custom.Storage.Backend = "sqlite"
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Paths.Root != custom.Paths.Root {
		t.Fatalf("unexpected root %q", cfg.Paths.Root)
	}
	if cfg.Classifier.APIBase != "https://classifier.example.com/api/v1" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Classifier.APIBase)
	}
	if cfg.Routing.Policy != "avg" {
		t.Fatalf("expected lowercased policy, got %q", cfg.Routing.Policy)
	}
	if cfg.Routing.Threshold != 0.85 {
		t.Fatalf("unexpected threshold %v", cfg.Routing.Threshold)
	}
	if cfg.Storage.Backend != config.BackendSQLite {
		t.Fatalf("unexpected backend %q", cfg.Storage.Backend)
	}
}

func TestEnvVarOverridesConfigFile(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "docdesk.toml")
	contents := "[server]\napi_token = \"file-token\"\n[classifier]\napi_base = \"http://file.example\"\n"
	if err := os.WriteFile(configPath, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("DOCDESK_API_TOKEN", "env-token")
	t.Setenv("DOCDESK_CLASSIFIER_API_BASE", "http://env.example/api")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.APIToken != "env-token" {
		t.Errorf("expected token from env, got %q", cfg.Server.APIToken)
	}
	if cfg.Classifier.APIBase != "http://env.example/api" {
		t.Errorf("expected api base from env, got %q", cfg.Classifier.APIBase)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if !strings.Contains(cfg.Paths.Root, "docdesk") {
		t.Fatalf("expected root to contain docdesk, got %q", cfg.Paths.Root)
	}
	def := config.Default()
	if cfg.Routing != def.Routing {
		t.Fatalf("sample routing %+v differs from defaults %+v", cfg.Routing, def.Routing)
	}
	if cfg.Ingest != def.Ingest {
		t.Fatalf("sample ingest %+v differs from defaults %+v", cfg.Ingest, def.Ingest)
	}
	if cfg.Classifier != def.Classifier {
		t.Fatalf("sample classifier %+v differs from defaults %+v", cfg.Classifier, def.Classifier)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"threshold above one", func(c *config.Config) { c.Routing.Threshold = 1.5 }},
		{"negative threshold", func(c *config.Config) { c.Routing.Threshold = -0.1 }},
		{"unknown policy", func(c *config.Config) { c.Routing.Policy = "median" }},
		{"unknown backend", func(c *config.Config) { c.Storage.Backend = "postgres" }},
		{"relative api base", func(c *config.Config) { c.Classifier.APIBase = "classifier/api" }},
		{"zero timeout", func(c *config.Config) { c.Classifier.TimeoutSeconds = 0 }},
		{"bad correlation mode", func(c *config.Config) { c.Classifier.CorrelationID = "hash" }},
		{"zero poll interval", func(c *config.Config) { c.Ingest.PollIntervalMillis = 0 }},
		{"bad log format", func(c *config.Config) { c.Logging.Format = "xml" }},
		{"missing root", func(c *config.Config) { c.Paths.Root = "" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	cfg := config.Default()
	cfg.Routing.Threshold = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("threshold 0 should be valid: %v", err)
	}
}
