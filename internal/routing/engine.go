package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"docdesk/internal/audit"
	"docdesk/internal/confidence"
	"docdesk/internal/config"
	"docdesk/internal/fileutil"
	"docdesk/internal/layout"
	"docdesk/internal/logging"
	"docdesk/internal/metastore"
	"docdesk/internal/record"
	"docdesk/internal/services"
)

const component = "routing"

// Engine performs state transitions against a meta store.
type Engine struct {
	cfg    *config.Config
	store  metastore.Store
	locker *metastore.Locker
	trail  *audit.Trail
	layout layout.Layout
	policy confidence.Policy
	logger *slog.Logger
}

// New constructs an Engine. locker must be shared with every other writer of
// the same store in this process.
func New(cfg *config.Config, store metastore.Store, locker *metastore.Locker, trail *audit.Trail, logger *slog.Logger) (*Engine, error) {
	policy, err := confidence.ParsePolicy(cfg.Routing.Policy)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, component, "new", "routing policy", err)
	}
	if locker == nil {
		locker = metastore.NewLocker()
	}
	if trail == nil {
		trail = audit.New(layout.New(cfg.Paths.Root).ActionLogPath(), audit.WithLogger(logger))
	}
	return &Engine{
		cfg:    cfg,
		store:  store,
		locker: locker,
		trail:  trail,
		layout: layout.New(cfg.Paths.Root),
		policy: policy,
		logger: logging.NewComponentLogger(logger, component),
	}, nil
}

// Policy returns the configured aggregation policy.
func (e *Engine) Policy() confidence.Policy {
	return e.policy
}

// Route moves a document to state to. Any state may move to any state.
func (e *Engine) Route(ctx context.Context, docID string, to record.State) (*record.Record, error) {
	target, ok := record.ParseState(string(to))
	if !ok {
		return nil, services.Wrap(services.ErrBadRequest, component, "route", fmt.Sprintf("unknown state %q", to), nil)
	}
	ctx = services.WithDocID(ctx, docID)
	unlock := e.locker.Lock(docID)
	defer unlock()

	rec, err := e.store.Get(ctx, docID)
	if err != nil {
		return nil, err
	}
	by := services.ActorOr(ctx, e.cfg.App.User)
	from := rec.State
	tr := transition{to: target, auto: false}
	if err := e.apply(ctx, rec, tr, e.trail.Entry(by, audit.EventMoved, string(from), string(target), "")); err != nil {
		return nil, err
	}
	return rec, nil
}

type transition struct {
	to      record.State
	auto    bool
	routing *record.Routing
}

// apply relocates the file, updates rec, persists it and refreshes side-cars.
// Callers hold the record lock.
func (e *Engine) apply(ctx context.Context, rec *record.Record, tr transition, entry record.HistoryEntry) error {
	logger := logging.WithContext(ctx, e.logger)
	from := rec.State
	prevPath := rec.FilePath

	src, err := e.layout.Abs(rec.FilePath)
	if err != nil {
		return services.Wrap(services.ErrFileMissing, component, "resolve file", rec.FilePath, err)
	}
	if _, err := os.Stat(src); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return services.Wrap(services.ErrFileMissing, component, "stat file", rec.FilePath, nil)
		}
		return services.Wrap(services.ErrInternal, component, "stat file", rec.FilePath, err)
	}

	dst := src
	targetDir := e.layout.StateDir(tr.to)
	if filepath.Dir(src) != targetDir {
		moved, err := fileutil.Relocate(src, targetDir)
		if err != nil {
			if moved == "" {
				return services.Wrap(services.ErrInternal, component, "relocate", rec.FilePath, err)
			}
			logging.WarnWithContext(logger, "source left behind after move",
				"relocate_cleanup_failed",
				logging.String("source", src),
				logging.String("target", moved),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "remove the stale source file manually"),
				logging.String(logging.FieldImpact, "duplicate PDF remains in the previous state directory"),
			)
		}
		dst = moved
	}
	rel, err := e.layout.Rel(dst)
	if err != nil {
		return services.Wrap(services.ErrInternal, component, "relativize", dst, err)
	}

	updated := rec.Clone()
	updated.State = tr.to
	updated.FilePath = rel
	if tr.routing != nil {
		updated.Routing = tr.routing
	}
	if tr.to == record.StateProcessed {
		updated.ClassificationMode = ClassificationMode(updated, tr.auto)
	} else {
		updated.ClassificationMode = ""
	}
	e.trail.Append(updated, entry)

	if err := e.store.Put(ctx, updated); err != nil {
		e.rollback(logger, src, dst)
		return err
	}
	*rec = *updated

	e.refreshSidecars(logger, rec, from)
	action := "route"
	if tr.auto {
		action = "auto-route"
	}
	e.trail.Publish(ctx, rec.DocID, action, entry)
	logger.Info("document moved",
		logging.String(logging.FieldEventType, "document_moved"),
		logging.String("from", string(from)),
		logging.String("to", string(tr.to)),
		logging.String("previous_path", prevPath),
		logging.String("file_path", rec.FilePath),
	)
	return nil
}

// rollback returns the PDF to its previous location after a failed persist so
// the stored filePath keeps pointing at an existing file.
func (e *Engine) rollback(logger *slog.Logger, src, dst string) {
	if src == dst {
		return
	}
	if err := fileutil.MoveTo(dst, src); err != nil {
		logging.ErrorWithContext(logger, "rollback of file move failed",
			"relocate_rollback_failed",
			logging.String("source", src),
			logging.String("target", dst),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "move the file back manually so it matches the stored record"),
		)
	}
}
