package metastore

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	"docdesk/internal/config"
	"docdesk/internal/layout"
	"docdesk/internal/record"
	"docdesk/internal/services"
)

// Store is the record persistence contract.
type Store interface {
	// Create inserts a new record; services.ErrExists when docId is taken.
	Create(ctx context.Context, rec *record.Record) error
	// Get loads a record; services.ErrNotFound or services.ErrCorrupt.
	Get(ctx context.Context, docID string) (*record.Record, error)
	// List returns every readable record. Corrupt records are skipped.
	List(ctx context.Context) ([]*record.Record, error)
	// Put overwrites the full record.
	Put(ctx context.Context, rec *record.Record) error
	Close() error
}

// stateLister is implemented by backends that can filter by state natively.
type stateLister interface {
	ListState(ctx context.Context, state record.State) ([]*record.Record, error)
}

// Open constructs the backend selected by cfg.Storage.Backend.
func Open(cfg *config.Config) (Store, error) {
	l := layout.New(cfg.Paths.Root)
	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		return OpenSQLite(filepath.Join(l.MetaDir(), "records.db"))
	case config.BackendFile, "":
		return NewFileStore(l.MetaDir())
	default:
		return nil, services.Wrap(services.ErrConfiguration, "metastore", "open", fmt.Sprintf("unknown backend %q", cfg.Storage.Backend), nil)
	}
}

// ListByState returns summaries of records in state, newest first.
func ListByState(ctx context.Context, store Store, state record.State) ([]record.Summary, error) {
	var (
		records []*record.Record
		err     error
	)
	if sl, ok := store.(stateLister); ok {
		records, err = sl.ListState(ctx, state)
	} else {
		records, err = store.List(ctx)
	}
	if err != nil {
		return nil, err
	}
	summaries := make([]record.Summary, 0, len(records))
	for _, rec := range records {
		if rec.State != state {
			continue
		}
		summaries = append(summaries, rec.Summarize())
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	return summaries, nil
}

// ValidateID rejects identifiers that are not UUIDs. Record ids double as file
// names, so anything else could address paths outside the meta directory.
func ValidateID(docID string) error {
	if _, err := uuid.Parse(docID); err != nil {
		return services.Wrap(services.ErrNotFound, "metastore", "validate id", fmt.Sprintf("invalid document id %q", docID), nil)
	}
	return nil
}

func validateRecord(rec *record.Record) error {
	if rec == nil {
		return services.Wrap(services.ErrBadRequest, "metastore", "validate", "record is nil", nil)
	}
	if err := ValidateID(rec.DocID); err != nil {
		return services.Wrap(services.ErrBadRequest, "metastore", "validate", "record id", err)
	}
	if _, ok := record.ParseState(string(rec.State)); !ok {
		return services.Wrap(services.ErrBadRequest, "metastore", "validate", fmt.Sprintf("unknown state %q", rec.State), nil)
	}
	return nil
}
