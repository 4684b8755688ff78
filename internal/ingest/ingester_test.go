package ingest_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"docdesk/internal/config"
	"docdesk/internal/ingest"
	"docdesk/internal/layout"
	"docdesk/internal/metastore"
	"docdesk/internal/record"
	"docdesk/internal/services"
	"docdesk/internal/testsupport"
)

func newIngester(t *testing.T, cfg *config.Config) (*ingest.Ingester, metastore.Store) {
	t.Helper()
	store := testsupport.MustOpenStore(t, cfg)
	return ingest.NewIngester(cfg, store, nil, nil), store
}

func TestIngestFileCreatesInboxRecord(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ingester, store := newIngester(t, cfg)
	src := filepath.Join(testsupport.BaseDir(cfg), "incoming", "scan.PDF")
	testsupport.WritePDF(t, src, 2)

	rec, err := ingester.IngestFile(services.WithActor(context.Background(), "carol"), src)
	if err != nil {
		t.Fatalf("IngestFile: %v", err)
	}
	if rec.State != record.StateInbox || rec.FilePath != "storage/inbox/scan.PDF" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if rec.OriginalFilename != "scan.PDF" || rec.CreatedBy != "carol" {
		t.Fatalf("unexpected provenance %+v", rec)
	}
	if rec.PageCount != 2 {
		t.Fatalf("page count = %d, want 2", rec.PageCount)
	}
	if len(rec.History) != 1 || rec.History[0].From != ingest.OriginCLI || rec.History[0].To != "inbox" {
		t.Fatalf("unexpected history %+v", rec.History)
	}
	if _, err := os.Stat(src); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected source to be moved, got %v", err)
	}
	stored, err := store.Get(context.Background(), rec.DocID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.FilePath != rec.FilePath {
		t.Fatalf("stored path %s", stored.FilePath)
	}
}

func TestIngestFileRejectsNonPDF(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ingester, _ := newIngester(t, cfg)
	src := filepath.Join(testsupport.BaseDir(cfg), "notes.txt")
	testsupport.WriteBytes(t, src, []byte("hello"))

	if _, err := ingester.IngestFile(context.Background(), src); !errors.Is(err, services.ErrBadRequest) {
		t.Fatalf("expected ErrBadRequest, got %v", err)
	}
	if _, err := ingester.IngestFile(context.Background(), filepath.Join(testsupport.BaseDir(cfg), "missing.pdf")); !errors.Is(err, services.ErrFileMissing) {
		t.Fatalf("expected ErrFileMissing, got %v", err)
	}
}

func TestIngestUploadCollisionNaming(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ingester, _ := newIngester(t, cfg)
	ctx := context.Background()

	first, err := ingester.IngestUpload(ctx, "invoice.pdf", bytes.NewReader(testsupport.MinimalPDF(1)))
	if err != nil {
		t.Fatalf("first upload: %v", err)
	}
	second, err := ingester.IngestUpload(ctx, "invoice.pdf", bytes.NewReader(testsupport.MinimalPDF(1)))
	if err != nil {
		t.Fatalf("second upload: %v", err)
	}
	if first.FilePath != "storage/inbox/invoice.pdf" {
		t.Fatalf("unexpected first path %s", first.FilePath)
	}
	if second.FilePath != "storage/inbox/invoice (1).pdf" || second.OriginalFilename != "invoice (1).pdf" {
		t.Fatalf("unexpected second record %s / %s", second.FilePath, second.OriginalFilename)
	}
	if second.History[0].From != ingest.OriginUpload || second.CreatedBy != "tester" {
		t.Fatalf("unexpected provenance %+v", second.History[0])
	}
}

func TestIngestUploadValidation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Ingest.MaxUploadMB = 1
	ingester, store := newIngester(t, cfg)
	ctx := context.Background()

	tests := []struct {
		name string
		file string
		body []byte
	}{
		{"wrong extension", "invoice.docx", testsupport.MinimalPDF(1)},
		{"missing signature", "invoice.pdf", []byte("GIF89a not a pdf")},
		{"empty body", "invoice.pdf", nil},
		{"too large", "big.pdf", append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("x"), 1<<20)...)},
		{"hidden name", ".pdf", testsupport.MinimalPDF(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ingester.IngestUpload(ctx, tt.file, bytes.NewReader(tt.body))
			if !errors.Is(err, services.ErrBadRequest) {
				t.Fatalf("expected ErrBadRequest, got %v", err)
			}
		})
	}

	entries, err := os.ReadDir(layout.New(cfg.Paths.Root).StateDir(record.StateInbox))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("read inbox: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("rejected uploads left files behind: %v", entries)
	}
	all, _ := store.List(ctx)
	if len(all) != 0 {
		t.Fatalf("rejected uploads created records")
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"../../etc/scan.pdf":    "scan.pdf",
		`C:\Users\me\Brief.PDF`: "Brief.PDF",
		"Cafe\u0301.pdf":        "Caf\u00e9.pdf",
	}
	for in, want := range tests {
		got, err := ingest.SanitizeFilename(in)
		if err != nil {
			t.Fatalf("SanitizeFilename(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("SanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
	if _, err := ingest.SanitizeFilename("   "); err == nil || !strings.Contains(err.Error(), "filename required") {
		t.Fatalf("expected filename required error, got %v", err)
	}
}
