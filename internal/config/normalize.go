package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeApp()
	c.normalizeServer()
	c.normalizeIngest()
	c.normalizeClassifier()
	c.normalizeRouting()
	c.normalizeStorage()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.Root) == "" {
		c.Paths.Root = defaultRoot
	}
	if c.Paths.Root, err = expandPath(c.Paths.Root); err != nil {
		return fmt.Errorf("paths.root: %w", err)
	}
	if c.Paths.SourceDir, err = expandPath(strings.TrimSpace(c.Paths.SourceDir)); err != nil {
		return fmt.Errorf("paths.source_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeApp() {
	c.App.User = strings.TrimSpace(c.App.User)
	if c.App.User == "" {
		c.App.User = defaultUser
	}
}

func (c *Config) normalizeServer() {
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		c.Server.Bind = defaultBind
	}
	if value, ok := os.LookupEnv("DOCDESK_API_TOKEN"); ok && strings.TrimSpace(value) != "" {
		c.Server.APIToken = value
	}
	c.Server.APIToken = strings.TrimSpace(c.Server.APIToken)
}

func (c *Config) normalizeIngest() {
	if c.Ingest.PollIntervalMillis == 0 {
		c.Ingest.PollIntervalMillis = defaultPollIntervalMillis
	}
	if c.Ingest.StabilityDelayMillis == 0 {
		c.Ingest.StabilityDelayMillis = defaultStabilityDelayMillis
	}
	if c.Ingest.MaxUploadMB == 0 {
		c.Ingest.MaxUploadMB = defaultMaxUploadMB
	}
}

func (c *Config) normalizeClassifier() {
	if value, ok := os.LookupEnv("DOCDESK_CLASSIFIER_API_BASE"); ok && strings.TrimSpace(value) != "" {
		c.Classifier.APIBase = value
	}
	c.Classifier.APIBase = strings.TrimRight(strings.TrimSpace(c.Classifier.APIBase), "/")
	if c.Classifier.APIBase == "" {
		c.Classifier.APIBase = defaultClassifierAPIBase
	}
	if c.Classifier.TimeoutSeconds == 0 {
		c.Classifier.TimeoutSeconds = defaultClassifierTimeout
	}
	c.Classifier.CorrelationID = strings.ToLower(strings.TrimSpace(c.Classifier.CorrelationID))
	if c.Classifier.CorrelationID == "" {
		c.Classifier.CorrelationID = defaultCorrelationID
	}
}

func (c *Config) normalizeRouting() {
	c.Routing.Policy = strings.ToLower(strings.TrimSpace(c.Routing.Policy))
	if c.Routing.Policy == "" {
		c.Routing.Policy = defaultPolicy
	}
}

func (c *Config) normalizeStorage() {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = defaultBackend
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
