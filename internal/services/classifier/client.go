package classifier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"docdesk/internal/config"
	"docdesk/internal/logging"
	"docdesk/internal/record"
	"docdesk/internal/services"
)

const (
	defaultHTTPTimeout = 60 * time.Second
	maxErrorBody       = 4 << 10
	maxResponseBody    = 4 << 20
	component          = "classifier"
)

// Config captures the runtime settings required to talk to the classifier.
type Config struct {
	APIBase        string
	TimeoutSeconds int
}

// Client wraps the classifier HTTP API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLogger attaches a logger for request diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient constructs a classifier client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIBase:        strings.TrimRight(strings.TrimSpace(cfg.APIBase), "/"),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	client.logger = logging.NewComponentLogger(client.logger, component)
	return client
}

// NewFromConfig builds a client from the [classifier] section.
func NewFromConfig(cfg *config.Config, opts ...Option) *Client {
	if cfg == nil {
		return NewClient(Config{}, opts...)
	}
	return NewClient(Config{
		APIBase:        cfg.Classifier.APIBase,
		TimeoutSeconds: cfg.Classifier.TimeoutSeconds,
	}, opts...)
}

// APIBase returns the normalized base URL requests are sent to.
func (c *Client) APIBase() string {
	return c.cfg.APIBase
}

// HTTPError carries the upstream status and a truncated response body.
type HTTPError struct {
	Status     int
	StatusText string
	Body       string
}

func (e *HTTPError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("http %d %s", e.Status, e.StatusText)
	}
	return fmt.Sprintf("http %d %s: %s", e.Status, e.StatusText, body)
}

// Classify posts pdf to the classifier and returns the normalized result.
// Errors are tagged with services.ErrUpstreamUnavailable,
// services.ErrUpstreamHTTP or services.ErrBadUpstreamResponse.
func (c *Client) Classify(ctx context.Context, correlationID string, pdf io.Reader) (*record.Result, error) {
	correlationID = strings.TrimSpace(correlationID)
	if correlationID == "" {
		return nil, services.Wrap(services.ErrInvalidFilename, component, "classify", "correlation id required", nil)
	}
	if c.cfg.APIBase == "" {
		return nil, services.Wrap(services.ErrConfiguration, component, "classify", "api base not configured", nil)
	}
	endpoint := c.cfg.APIBase + "/classify/" + url.PathEscape(correlationID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, pdf)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, component, "build request", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/pdf")
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrUpstreamUnavailable, component, "post", endpoint, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("classifier response",
		logging.String("correlation_id", correlationID),
		logging.Int("status", resp.StatusCode),
		logging.Duration("elapsed", time.Since(started)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		httpErr := &HTTPError{
			Status:     resp.StatusCode,
			StatusText: http.StatusText(resp.StatusCode),
			Body:       string(body),
		}
		return nil, services.Wrap(services.ErrUpstreamHTTP, component, "post", endpoint, httpErr)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, services.Wrap(services.ErrUpstreamUnavailable, component, "read response", endpoint, err)
	}
	result, err := Normalize(body)
	if err != nil {
		return nil, services.Wrap(services.ErrBadUpstreamResponse, component, "decode response", endpoint, err)
	}
	return result, nil
}

// Fold converts a classification failure into its durable record form.
func Fold(err error) *record.ClassificationError {
	if err == nil {
		return nil
	}
	folded := &record.ClassificationError{
		Code:    services.Code(err),
		Message: err.Error(),
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		folded.Status = httpErr.Status
		folded.StatusText = httpErr.StatusText
		folded.Body = truncate(httpErr.Body, maxErrorBody)
	}
	return folded
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
