package triage_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"docdesk/internal/config"
	"docdesk/internal/layout"
	"docdesk/internal/metastore"
	"docdesk/internal/record"
	"docdesk/internal/services"
	"docdesk/internal/testsupport"
	"docdesk/internal/triage"
)

const classifierResponse = `{"kind":"invoice","doc_date_parsed":"2024-03-01",
	"doc_id":{"value":"INV-7","score":0.91},
	"doc_date_sic":{"value":"01.03.2024","score":0.88},
	"doc_subject":{"value":"Hosting","score":0.75}}`

type fixture struct {
	cfg     *config.Config
	store   metastore.Store
	svc     *triage.Service
	calls   *atomic.Int32
	status  *atomic.Int32
	baseURL string
}

func newFixture(t *testing.T, opts ...testsupport.ConfigOption) *fixture {
	t.Helper()
	calls := &atomic.Int32{}
	status := &atomic.Int32{}
	status.Store(http.StatusOK)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = io.Copy(io.Discard, r.Body)
		code := int(status.Load())
		if code != http.StatusOK {
			w.WriteHeader(code)
			_, _ = io.WriteString(w, "upstream exploded")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, classifierResponse)
	}))
	t.Cleanup(server.Close)

	opts = append(opts, testsupport.WithClassifier(server.URL+"/api/v1"))
	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)
	svc, err := triage.New(cfg, store, nil)
	if err != nil {
		t.Fatalf("triage.New: %v", err)
	}
	return &fixture{cfg: cfg, store: store, svc: svc, calls: calls, status: status, baseURL: server.URL + "/api/v1"}
}

func uuidName() string {
	return uuid.NewString() + ".pdf"
}

func TestListDocumentsNewestFirst(t *testing.T) {
	f := newFixture(t)
	now := time.Now().UTC()
	older := testsupport.SeedDocument(t, f.cfg, f.store, record.StateInbox, "old.pdf", testsupport.WithCreatedAt(now.Add(-time.Hour)))
	newer := testsupport.SeedDocument(t, f.cfg, f.store, record.StateInbox, "new.pdf", testsupport.WithCreatedAt(now))
	testsupport.SeedDocument(t, f.cfg, f.store, record.StateHold, "held.pdf")

	list, err := f.svc.ListDocuments(context.Background(), "")
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if len(list) != 2 || list[0].DocID != newer.DocID || list[1].DocID != older.DocID {
		t.Fatalf("unexpected order %+v", list)
	}
	held, err := f.svc.ListDocuments(context.Background(), "HOLD")
	if err != nil || len(held) != 1 {
		t.Fatalf("hold listing: %v %+v", err, held)
	}
	if _, err := f.svc.ListDocuments(context.Background(), "archive"); !errors.Is(err, services.ErrBadRequest) {
		t.Fatalf("expected ErrBadRequest, got %v", err)
	}
}

func TestGetDocumentErrors(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.GetDocument(context.Background(), uuid.NewString()); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := f.svc.GetDocument(context.Background(), "../etc/passwd"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for invalid id, got %v", err)
	}
}

func TestClassifyDocumentStoresResult(t *testing.T) {
	f := newFixture(t)
	name := uuidName()
	seeded := testsupport.SeedDocument(t, f.cfg, f.store, record.StateInbox, name)
	ctx := services.WithActor(context.Background(), "dora")

	rec, err := f.svc.ClassifyDocument(ctx, seeded.DocID)
	if err != nil {
		t.Fatalf("ClassifyDocument: %v", err)
	}
	if !rec.IsClassified() || rec.EffectiveValue(record.FieldDocID) != "INV-7" {
		t.Fatalf("unexpected classification %+v", rec.Classification)
	}
	if rec.Classification.RequestUUID != name[:36] || rec.Classification.APIBase != f.baseURL {
		t.Fatalf("unexpected request metadata %+v", rec.Classification)
	}
	last := rec.History[len(rec.History)-1]
	if last.Event != "classified" || last.By != "dora" {
		t.Fatalf("unexpected history entry %+v", last)
	}
	stored, _ := f.store.Get(context.Background(), seeded.DocID)
	if stored.State != record.StateInbox || !stored.IsClassified() {
		t.Fatalf("stored record not updated: %+v", stored)
	}
}

func TestClassifyInvalidFilenameIsRecorded(t *testing.T) {
	f := newFixture(t)
	seeded := testsupport.SeedDocument(t, f.cfg, f.store, record.StateInbox, "invoice.pdf")

	_, err := f.svc.ClassifyDocument(context.Background(), seeded.DocID)
	if !errors.Is(err, services.ErrInvalidFilename) {
		t.Fatalf("expected ErrInvalidFilename, got %v", err)
	}
	if f.calls.Load() != 0 {
		t.Fatal("classifier must not be called without a correlation id")
	}
	stored, _ := f.store.Get(context.Background(), seeded.DocID)
	if stored.Classification == nil || stored.Classification.Error == nil || stored.Classification.Error.Code != services.CodeInvalidFilename {
		t.Fatalf("expected folded error, got %+v", stored.Classification)
	}
	last := stored.History[len(stored.History)-1]
	if last.Event != "classification_failed" || last.Note != services.CodeInvalidFilename {
		t.Fatalf("unexpected history entry %+v", last)
	}
}

func TestClassifyStemModeUsesFilename(t *testing.T) {
	f := newFixture(t)
	f.cfg.Classifier.CorrelationID = config.CorrelationStem
	seeded := testsupport.SeedDocument(t, f.cfg, f.store, record.StateInbox, "invoice.pdf")

	rec, err := f.svc.ClassifyDocument(context.Background(), seeded.DocID)
	if err != nil {
		t.Fatalf("ClassifyDocument: %v", err)
	}
	if rec.Classification.RequestUUID != "invoice" {
		t.Fatalf("unexpected request id %q", rec.Classification.RequestUUID)
	}
}

func TestClassifyFileMissingLeavesRecord(t *testing.T) {
	f := newFixture(t)
	seeded := testsupport.SeedDocument(t, f.cfg, f.store, record.StateInbox, uuidName())
	abs, _ := layout.New(f.cfg.Paths.Root).Abs(seeded.FilePath)
	if err := os.Remove(abs); err != nil {
		t.Fatalf("remove: %v", err)
	}

	_, err := f.svc.ClassifyDocument(context.Background(), seeded.DocID)
	if !errors.Is(err, services.ErrFileMissing) {
		t.Fatalf("expected ErrFileMissing, got %v", err)
	}
	stored, _ := f.store.Get(context.Background(), seeded.DocID)
	if stored.Classification != nil || len(stored.History) != len(seeded.History) {
		t.Fatalf("record changed: %+v", stored)
	}
}

func TestClassifyUpstreamErrorIsRecorded(t *testing.T) {
	f := newFixture(t)
	f.status.Store(http.StatusInternalServerError)
	seeded := testsupport.SeedDocument(t, f.cfg, f.store, record.StateInbox, uuidName())

	_, err := f.svc.ClassifyDocument(context.Background(), seeded.DocID)
	if !errors.Is(err, services.ErrUpstreamHTTP) {
		t.Fatalf("expected ErrUpstreamHTTP, got %v", err)
	}
	stored, _ := f.store.Get(context.Background(), seeded.DocID)
	folded := stored.Classification.Error
	if folded == nil || folded.Status != http.StatusInternalServerError || folded.Body != "upstream exploded" {
		t.Fatalf("unexpected folded error %+v", folded)
	}
	if stored.IsClassified() {
		t.Fatal("error-only classification must not count as classified")
	}
}

func TestBulkClassifySkipsClassifiedOnSecondRun(t *testing.T) {
	f := newFixture(t)
	testsupport.SeedDocument(t, f.cfg, f.store, record.StateInbox, uuidName())
	testsupport.SeedDocument(t, f.cfg, f.store, record.StateInbox, uuidName())
	testsupport.SeedDocument(t, f.cfg, f.store, record.StateReview, uuidName())
	ctx := context.Background()

	first, err := f.svc.BulkClassify(ctx, false)
	if err != nil {
		t.Fatalf("BulkClassify: %v", err)
	}
	if first != (triage.BulkClassifyResult{OK: 2, Scanned: 2}) {
		t.Fatalf("unexpected first run %+v", first)
	}
	second, err := f.svc.BulkClassify(ctx, false)
	if err != nil {
		t.Fatalf("BulkClassify: %v", err)
	}
	if second != (triage.BulkClassifyResult{Skipped: 2, Scanned: 2}) {
		t.Fatalf("unexpected second run %+v", second)
	}
	if f.calls.Load() != 2 {
		t.Fatalf("expected 2 upstream calls, got %d", f.calls.Load())
	}
	third, err := f.svc.BulkClassify(ctx, true)
	if err != nil {
		t.Fatalf("BulkClassify reclassify: %v", err)
	}
	if third.OK != 2 || f.calls.Load() != 4 {
		t.Fatalf("unexpected reclassify run %+v calls=%d", third, f.calls.Load())
	}
}

func TestBulkClassifyCountsFailures(t *testing.T) {
	f := newFixture(t)
	testsupport.SeedDocument(t, f.cfg, f.store, record.StateInbox, uuidName())
	testsupport.SeedDocument(t, f.cfg, f.store, record.StateInbox, "no-id.pdf")

	result, err := f.svc.BulkClassify(context.Background(), false)
	if err != nil {
		t.Fatalf("BulkClassify: %v", err)
	}
	if result != (triage.BulkClassifyResult{OK: 1, Fail: 1, Scanned: 2}) {
		t.Fatalf("unexpected result %+v", result)
	}
	// Error-only records are retried on the next run.
	again, _ := f.svc.BulkClassify(context.Background(), false)
	if again != (triage.BulkClassifyResult{Fail: 1, Skipped: 1, Scanned: 2}) {
		t.Fatalf("unexpected second result %+v", again)
	}
}

func TestClassifyThenAutoRoute(t *testing.T) {
	f := newFixture(t)
	seeded := testsupport.SeedDocument(t, f.cfg, f.store, record.StateInbox, uuidName())
	ctx := context.Background()

	if _, err := f.svc.ClassifyDocument(ctx, seeded.DocID); err != nil {
		t.Fatalf("ClassifyDocument: %v", err)
	}
	decision, err := f.svc.AutoRouteDocument(ctx, seeded.DocID, nil)
	if err != nil {
		t.Fatalf("AutoRouteDocument: %v", err)
	}
	if decision.State != record.StateProcessed || decision.Threshold != 0.7 || decision.Aggregate != 0.75 {
		t.Fatalf("unexpected decision %+v", decision)
	}

	strict := 0.8
	other := testsupport.SeedDocument(t, f.cfg, f.store, record.StateInbox, uuidName())
	if _, err := f.svc.ClassifyDocument(ctx, other.DocID); err != nil {
		t.Fatalf("ClassifyDocument: %v", err)
	}
	result, err := f.svc.BulkAutoRoute(ctx, &strict)
	if err != nil {
		t.Fatalf("BulkAutoRoute: %v", err)
	}
	if result.Reviewed != 1 || result.Scanned != 1 {
		t.Fatalf("unexpected bulk result %+v", result)
	}
}

func TestRouteDocumentValidatesTarget(t *testing.T) {
	f := newFixture(t)
	seeded := testsupport.SeedDocument(t, f.cfg, f.store, record.StateInbox, "a.pdf")

	if _, err := f.svc.RouteDocument(context.Background(), seeded.DocID, "trash"); !errors.Is(err, services.ErrBadRequest) {
		t.Fatalf("expected ErrBadRequest, got %v", err)
	}
	rec, err := f.svc.RouteDocument(context.Background(), seeded.DocID, "Processed")
	if err != nil {
		t.Fatalf("RouteDocument: %v", err)
	}
	if rec.State != record.StateProcessed || rec.ClassificationMode != record.ModeManual {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestOpenDocument(t *testing.T) {
	f := newFixture(t)
	seeded := testsupport.SeedDocument(t, f.cfg, f.store, record.StateInbox, "a.pdf")

	file, rec, err := f.svc.OpenDocument(context.Background(), seeded.DocID)
	if err != nil {
		t.Fatalf("OpenDocument: %v", err)
	}
	defer file.Close()
	head := make([]byte, 5)
	if _, err := io.ReadFull(file, head); err != nil || string(head) != "%PDF-" {
		t.Fatalf("unexpected content %q: %v", head, err)
	}
	if rec.DocID != seeded.DocID {
		t.Fatalf("unexpected record %s", rec.DocID)
	}
}
