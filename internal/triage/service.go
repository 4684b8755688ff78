package triage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"docdesk/internal/audit"
	"docdesk/internal/config"
	"docdesk/internal/ingest"
	"docdesk/internal/layout"
	"docdesk/internal/logging"
	"docdesk/internal/metastore"
	"docdesk/internal/record"
	"docdesk/internal/routing"
	"docdesk/internal/services"
	"docdesk/internal/services/classifier"
)

const component = "triage"

// Classifier submits a PDF to the upstream classification service.
type Classifier interface {
	Classify(ctx context.Context, correlationID string, pdf io.Reader) (*record.Result, error)
	APIBase() string
}

// Service implements the desk operations over one meta store.
type Service struct {
	cfg        *config.Config
	store      metastore.Store
	locker     *metastore.Locker
	trail      *audit.Trail
	layout     layout.Layout
	engine     *routing.Engine
	ingester   *ingest.Ingester
	classifier Classifier
	logger     *slog.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithClassifier overrides the upstream classifier client.
func WithClassifier(c Classifier) Option {
	return func(s *Service) {
		if c != nil {
			s.classifier = c
		}
	}
}

// WithTrail overrides the audit trail, typically to pin the clock in tests.
func WithTrail(t *audit.Trail) Option {
	return func(s *Service) {
		if t != nil {
			s.trail = t
		}
	}
}

// New wires the routing engine, ingester and classifier around store.
func New(cfg *config.Config, store metastore.Store, logger *slog.Logger, opts ...Option) (*Service, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("triage requires config and store")
	}
	l := layout.New(cfg.Paths.Root)
	s := &Service{
		cfg:    cfg,
		store:  store,
		locker: metastore.NewLocker(),
		layout: l,
		logger: logging.NewComponentLogger(logger, component),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.trail == nil {
		s.trail = audit.New(l.ActionLogPath(), audit.WithLogger(logger))
	}
	if s.classifier == nil {
		s.classifier = classifier.NewFromConfig(cfg, classifier.WithLogger(logger))
	}
	engine, err := routing.New(cfg, store, s.locker, s.trail, logger)
	if err != nil {
		return nil, err
	}
	s.engine = engine
	s.ingester = ingest.NewIngester(cfg, store, s.trail, logger)
	return s, nil
}

// Ingester returns the ingester used for uploads, for wiring the poller.
func (s *Service) Ingester() *ingest.Ingester {
	return s.ingester
}

func (s *Service) actor(ctx context.Context) string {
	return services.ActorOr(ctx, s.cfg.App.User)
}

// ListDocuments returns summaries of documents in state, newest first. An
// empty state lists the inbox.
func (s *Service) ListDocuments(ctx context.Context, state string) ([]record.Summary, error) {
	target := record.StateInbox
	if state != "" {
		parsed, ok := record.ParseState(state)
		if !ok {
			return nil, services.Wrap(services.ErrBadRequest, component, "list", fmt.Sprintf("unknown state %q", state), nil)
		}
		target = parsed
	}
	return metastore.ListByState(ctx, s.store, target)
}

// GetDocument returns the full record for docID.
func (s *Service) GetDocument(ctx context.Context, docID string) (*record.Record, error) {
	return s.store.Get(ctx, docID)
}

// RouteDocument moves a document to the named state.
func (s *Service) RouteDocument(ctx context.Context, docID, to string) (*record.Record, error) {
	target, ok := record.ParseState(to)
	if !ok {
		return nil, services.Wrap(services.ErrBadRequest, component, "route",
			fmt.Sprintf("to must be one of inbox, review, hold, processed; got %q", to), nil)
	}
	return s.engine.Route(ctx, docID, target)
}

// AutoRouteDocument auto-routes one document. A nil threshold uses the
// configured default.
func (s *Service) AutoRouteDocument(ctx context.Context, docID string, threshold *float64) (routing.Decision, error) {
	return s.engine.AutoRoute(ctx, docID, s.threshold(threshold))
}

// BulkAutoRoute auto-routes every inbox document.
func (s *Service) BulkAutoRoute(ctx context.Context, threshold *float64) (routing.BulkResult, error) {
	return s.engine.BulkAutoRoute(ctx, s.threshold(threshold))
}

func (s *Service) threshold(value *float64) float64 {
	if value == nil {
		return s.engine.DefaultThreshold()
	}
	return *value
}

// UploadDocument stores an uploaded PDF in the inbox.
func (s *Service) UploadDocument(ctx context.Context, name string, r io.Reader) (*record.Record, error) {
	return s.ingester.IngestUpload(ctx, name, r)
}

// OpenDocument opens the PDF of docID for preview. The caller closes the file.
func (s *Service) OpenDocument(ctx context.Context, docID string) (*os.File, *record.Record, error) {
	rec, err := s.store.Get(ctx, docID)
	if err != nil {
		return nil, nil, err
	}
	abs, err := s.layout.Abs(rec.FilePath)
	if err != nil {
		return nil, nil, services.Wrap(services.ErrFileMissing, component, "preview", rec.FilePath, err)
	}
	f, err := os.Open(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, services.Wrap(services.ErrFileMissing, component, "preview", rec.FilePath, nil)
		}
		return nil, nil, services.Wrap(services.ErrInternal, component, "preview", rec.FilePath, err)
	}
	return f, rec, nil
}
