package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"docdesk/internal/audit"
	"docdesk/internal/config"
	"docdesk/internal/fileutil"
	"docdesk/internal/layout"
	"docdesk/internal/logging"
	"docdesk/internal/metastore"
	"docdesk/internal/record"
	"docdesk/internal/services"
)

const component = "ingest"

// Origins recorded in the "from" field of the first history entry.
const (
	OriginScanner = "scanner"
	OriginUpload  = "upload"
	OriginCLI     = "cli"
)

// Ingester creates records for PDFs entering the inbox.
type Ingester struct {
	cfg    *config.Config
	store  metastore.Store
	layout layout.Layout
	trail  *audit.Trail
	logger *slog.Logger
}

// NewIngester constructs an Ingester writing to store.
func NewIngester(cfg *config.Config, store metastore.Store, trail *audit.Trail, logger *slog.Logger) *Ingester {
	l := layout.New(cfg.Paths.Root)
	if trail == nil {
		trail = audit.New(l.ActionLogPath(), audit.WithLogger(logger))
	}
	return &Ingester{
		cfg:    cfg,
		store:  store,
		layout: l,
		trail:  trail,
		logger: logging.NewComponentLogger(logger, component),
	}
}

// IngestFile moves the PDF at path into the inbox and records it.
func (i *Ingester) IngestFile(ctx context.Context, path string) (*record.Record, error) {
	return i.ingestPath(ctx, path, OriginCLI)
}

func (i *Ingester) ingestPath(ctx context.Context, src, origin string) (*record.Record, error) {
	info, err := os.Stat(src)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, services.Wrap(services.ErrFileMissing, component, "stat", src, nil)
		}
		return nil, services.Wrap(services.ErrInternal, component, "stat", src, err)
	}
	if !info.Mode().IsRegular() {
		return nil, services.Wrap(services.ErrBadRequest, component, "validate", src+" is not a regular file", nil)
	}
	if !IsPDFName(src) {
		return nil, services.Wrap(services.ErrBadRequest, component, "validate", src+" is not a .pdf file", nil)
	}

	dst, err := fileutil.Relocate(src, i.layout.StateDir(record.StateInbox))
	if err != nil {
		if dst == "" {
			return nil, services.Wrap(services.ErrInternal, component, "relocate", src, err)
		}
		logging.WarnWithContext(logging.WithContext(ctx, i.logger), "source left behind after move",
			"relocate_cleanup_failed",
			logging.String("source", src),
			logging.String("target", dst),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the source file so it is not ingested twice"),
		)
	}
	rec, err := i.create(ctx, dst, filepath.Base(src), origin)
	if err != nil {
		if rbErr := fileutil.MoveTo(dst, src); rbErr != nil {
			logging.ErrorWithContext(i.logger, "returning file to source failed",
				"ingest_rollback_failed",
				logging.String("path", dst),
				logging.Error(rbErr),
			)
		}
		return nil, err
	}
	return rec, nil
}

// create registers the inbox file at abs. Callers undo the file placement on
// error.
func (i *Ingester) create(ctx context.Context, abs, originalFilename, origin string) (*record.Record, error) {
	rel, err := i.layout.Rel(abs)
	if err != nil {
		return nil, services.Wrap(services.ErrInternal, component, "relativize", abs, err)
	}
	by := services.ActorOr(ctx, i.cfg.App.User)
	entry := i.trail.Entry(by, audit.EventMoved, origin, string(record.StateInbox), "")
	rec := &record.Record{
		DocID:            uuid.NewString(),
		State:            record.StateInbox,
		OriginalFilename: originalFilename,
		FilePath:         rel,
		CreatedAt:        entry.At,
		CreatedBy:        by,
		PageCount:        i.pageCount(ctx, abs),
	}
	i.trail.Append(rec, entry)
	ctx = services.WithDocID(ctx, rec.DocID)
	if err := i.store.Create(ctx, rec); err != nil {
		return nil, err
	}
	i.trail.Publish(ctx, rec.DocID, "ingest", entry)
	logging.WithContext(ctx, i.logger).Info("document ingested",
		logging.String(logging.FieldEventType, "document_ingested"),
		logging.String("origin", origin),
		logging.String("original_filename", originalFilename),
		logging.String("file_path", rel),
		logging.Int("page_count", rec.PageCount),
	)
	return rec, nil
}

// pageCount returns 0 when pdfcpu cannot parse the file.
func (i *Ingester) pageCount(ctx context.Context, abs string) int {
	pages, err := api.PageCountFile(abs)
	if err != nil {
		logging.WithContext(ctx, i.logger).Debug("page count unavailable",
			logging.String("path", abs),
			logging.Error(err),
		)
		return 0
	}
	return pages
}

// IsPDFName reports whether name carries a .pdf extension, in any case.
func IsPDFName(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}

func errTooLarge(limit int64) error {
	return services.Wrap(services.ErrBadRequest, component, "upload", fmt.Sprintf("file exceeds %d MiB limit", limit>>20), nil)
}
