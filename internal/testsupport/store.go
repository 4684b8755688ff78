package testsupport

import (
	"context"
	"path"
	"testing"
	"time"

	"github.com/google/uuid"

	"docdesk/internal/config"
	"docdesk/internal/layout"
	"docdesk/internal/metastore"
	"docdesk/internal/record"
)

// MustOpenStore opens the configured meta store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) metastore.Store {
	t.Helper()

	store, err := metastore.Open(cfg)
	if err != nil {
		t.Fatalf("metastore.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// RecordOption customizes a seeded record.
type RecordOption func(*record.Record)

// WithResult attaches a successful classification with the given scores for
// doc_id, doc_date_sic and doc_subject. A negative score omits the field score.
func WithResult(docIDScore, dateScore, subjectScore float64) RecordOption {
	return func(rec *record.Record) {
		rec.Classification = &record.Classification{
			FetchedAt: time.Now().UTC(),
			APIBase:   "http://classifier.test",
			Result: &record.Result{
				Kind:          "invoice",
				DocDateParsed: "2024-03-01",
				DocID:         scoredField("INV-1", docIDScore),
				DocDateSic:    scoredField("01.03.2024", dateScore),
				DocSubject:    scoredField("Office supplies", subjectScore),
			},
		}
	}
}

// WithCreatedAt overrides the creation timestamp.
func WithCreatedAt(ts time.Time) RecordOption {
	return func(rec *record.Record) {
		rec.CreatedAt = ts
	}
}

func scoredField(value string, score float64) *record.Field {
	f := &record.Field{Value: value}
	if score >= 0 {
		s := score
		f.Score = &s
	}
	return f
}

// SeedDocument writes a PDF named filename into the canonical directory of
// state and creates its record. The filename should normally embed a UUID so
// classification can derive a correlation id.
func SeedDocument(t testing.TB, cfg *config.Config, store metastore.Store, state record.State, filename string, opts ...RecordOption) *record.Record {
	t.Helper()

	l := layout.New(cfg.Paths.Root)
	rel := path.Join(layout.StateRel(state), filename)
	abs, err := l.Abs(rel)
	if err != nil {
		t.Fatalf("resolve %s: %v", rel, err)
	}
	WritePDF(t, abs, 1)

	rec := &record.Record{
		DocID:            uuid.NewString(),
		State:            state,
		OriginalFilename: filename,
		FilePath:         rel,
		CreatedAt:        time.Now().UTC(),
		CreatedBy:        "scanner",
		History: []record.HistoryEntry{{
			At:    time.Now().UTC(),
			By:    "scanner",
			Event: "moved",
			From:  "scanner",
			To:    string(state),
		}},
	}
	for _, opt := range opts {
		opt(rec)
	}
	if err := store.Create(context.Background(), rec); err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return rec
}
