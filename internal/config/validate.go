package config

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateIngest(); err != nil {
		return err
	}
	if err := c.validateClassifier(); err != nil {
		return err
	}
	if err := c.validateRouting(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.Root) == "" {
		return errors.New("paths.root must be set")
	}
	return nil
}

func (c *Config) validateIngest() error {
	return ensurePositiveMap(map[string]int{
		"ingest.poll_interval_ms":   c.Ingest.PollIntervalMillis,
		"ingest.stability_delay_ms": c.Ingest.StabilityDelayMillis,
		"ingest.max_upload_mb":      c.Ingest.MaxUploadMB,
	})
}

func (c *Config) validateClassifier() error {
	parsed, err := url.Parse(c.Classifier.APIBase)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("classifier.api_base must be an absolute URL, got %q", c.Classifier.APIBase)
	}
	if c.Classifier.TimeoutSeconds <= 0 {
		return errors.New("classifier.timeout_seconds must be positive")
	}
	switch c.Classifier.CorrelationID {
	case CorrelationUUID, CorrelationStem:
	default:
		return fmt.Errorf("classifier.correlation_id must be %q or %q, got %q", CorrelationUUID, CorrelationStem, c.Classifier.CorrelationID)
	}
	return nil
}

func (c *Config) validateRouting() error {
	switch c.Routing.Policy {
	case "min", "avg", "max":
	default:
		return fmt.Errorf("routing.policy must be one of min, avg, max, got %q", c.Routing.Policy)
	}
	if c.Routing.Threshold < 0 || c.Routing.Threshold > 1 {
		return errors.New("routing.threshold must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case BackendFile, BackendSQLite:
		return nil
	default:
		return fmt.Errorf("storage.backend must be %q or %q, got %q", BackendFile, BackendSQLite, c.Storage.Backend)
	}
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
