package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"docdesk/internal/layout"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the storage root and the scanner feed directory.
type Paths struct {
	Root      string `toml:"root"`
	SourceDir string `toml:"source_dir"`
}

// App contains identity settings.
type App struct {
	User string `toml:"user"`
}

// Server contains HTTP API settings.
type Server struct {
	Bind     string `toml:"bind"`
	APIToken string `toml:"api_token"`
}

// Ingest contains scanner poller and upload settings.
type Ingest struct {
	PollIntervalMillis   int  `toml:"poll_interval_ms"`
	StabilityDelayMillis int  `toml:"stability_delay_ms"`
	Watch                bool `toml:"watch"`
	MaxUploadMB          int  `toml:"max_upload_mb"`
}

// Classifier contains upstream classification service settings.
type Classifier struct {
	APIBase        string `toml:"api_base"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	// CorrelationID selects how the request identifier is derived: "uuid"
	// extracts a UUID from the filename, "stem" uses the filename stem.
	CorrelationID string `toml:"correlation_id"`
}

// Routing contains auto-route settings.
type Routing struct {
	Policy    string  `toml:"policy"`
	Threshold float64 `toml:"threshold"`
}

// Storage selects the meta store backend.
type Storage struct {
	Backend string `toml:"backend"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for docdesk.
//
// Configuration sections by subsystem:
//   - Paths: storage root and scanner source directory
//   - App: default acting user
//   - Server: API bind address and bearer token
//   - Ingest: poll interval, stability delay, fsnotify wake-up, upload limit
//   - Classifier: upstream base URL, timeout, correlation id derivation
//   - Routing: aggregation policy and auto-route threshold
//   - Storage: meta store backend (file or sqlite)
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	App        App        `toml:"app"`
	Server     Server     `toml:"server"`
	Ingest     Ingest     `toml:"ingest"`
	Classifier Classifier `toml:"classifier"`
	Routing    Routing    `toml:"routing"`
	Storage    Storage    `toml:"storage"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("docdesk.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the storage tree beneath the root. The source
// directory is created on a best-effort basis so the daemon can start before
// the scanner share is mounted.
func (c *Config) EnsureDirectories() error {
	dirs := append([]string{c.Paths.Root}, layout.New(c.Paths.Root).Dirs()...)
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.SourceDir) != "" {
		_ = os.MkdirAll(c.Paths.SourceDir, 0o755)
	}
	return nil
}

// PollInterval returns the poller tick interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Ingest.PollIntervalMillis) * time.Millisecond
}

// StabilityDelay returns the wait between the two size checks.
func (c *Config) StabilityDelay() time.Duration {
	return time.Duration(c.Ingest.StabilityDelayMillis) * time.Millisecond
}

// MaxUploadBytes returns the per-file upload limit.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Ingest.MaxUploadMB) << 20
}

// ClassifierTimeout returns the per-request classifier timeout.
func (c *Config) ClassifierTimeout() time.Duration {
	return time.Duration(c.Classifier.TimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// SampleConfig returns the embedded sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
