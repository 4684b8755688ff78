package testsupport

import (
	"path/filepath"
	"testing"

	"docdesk/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.Root = filepath.Join(base, "root")
	cfgVal.Paths.SourceDir = filepath.Join(base, "scans")
	cfgVal.Server.Bind = "127.0.0.1:0"
	cfgVal.App.User = "tester"
	cfgVal.Ingest.PollIntervalMillis = 20
	cfgVal.Ingest.StabilityDelayMillis = 5

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithBackend selects the meta store backend.
func WithBackend(backend string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Storage.Backend = backend
	}
}

// WithClassifier points the classifier at apiBase, typically an httptest server.
func WithClassifier(apiBase string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Classifier.APIBase = apiBase
		b.cfg.Classifier.TimeoutSeconds = 5
	}
}

// WithRouting overrides the aggregation policy and threshold.
func WithRouting(policy string, threshold float64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Routing.Policy = policy
		b.cfg.Routing.Threshold = threshold
	}
}

// WithAPIToken requires bearer authentication on the API.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Server.APIToken = token
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.Root)
}
