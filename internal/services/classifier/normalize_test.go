package classifier

import (
	"errors"
	"testing"

	"docdesk/internal/services"
)

func TestNormalizeUnwrapsNestedResult(t *testing.T) {
	result, err := Normalize([]byte(`{"status":"ok","result":{"kind":"letter","doc_subject":{"value":"Tax","score":0.5}}}`))
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if result.Kind != "letter" {
		t.Fatalf("kind = %q", result.Kind)
	}
	if result.DocSubject == nil || result.DocSubject.Value != "Tax" {
		t.Fatalf("unexpected doc_subject %+v", result.DocSubject)
	}
}

func TestNormalizeKeepsTopLevelWhenScored(t *testing.T) {
	result, err := Normalize([]byte(`{"doc_id":{"value":"A","score":0.4},"result":{"doc_id":{"value":"B","score":0.9}}}`))
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if result.DocID.Value != "A" {
		t.Fatalf("expected top-level field, got %q", result.DocID.Value)
	}
}

func TestNormalizeAcceptsNumericValues(t *testing.T) {
	result, err := Normalize([]byte(`{"kind":{"value":"invoice"},"doc_id":{"value":12345,"score":1},"doc_date_sic":"2024"}`))
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if result.Kind != "invoice" {
		t.Fatalf("kind = %q", result.Kind)
	}
	if result.DocID.Value != "12345" {
		t.Fatalf("doc_id = %q", result.DocID.Value)
	}
	if result.DocDateSic == nil || result.DocDateSic.Value != "2024" || result.DocDateSic.Score != nil {
		t.Fatalf("unexpected doc_date_sic %+v", result.DocDateSic)
	}
	if result.DocSubject != nil {
		t.Fatalf("expected missing doc_subject to stay nil")
	}
}

func TestCorrelationID(t *testing.T) {
	const id = "3F2504E0-4F89-41D3-9A0C-0305E82C3301"
	tests := []struct {
		name     string
		mode     string
		original string
		filePath string
		want     string
	}{
		{"uuid from original", "uuid", "scan_" + id + ".pdf", "storage/inbox/other.pdf", id},
		{"uuid from path", "uuid", "invoice.pdf", "storage/inbox/" + id + ".pdf", id},
		{"stem", "stem", "invoice march.pdf", "storage/inbox/x.pdf", "invoice march"},
		{"stem from path", "stem", "", "storage/inbox/x.pdf", "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CorrelationID(tt.mode, tt.original, tt.filePath)
			if err != nil {
				t.Fatalf("CorrelationID returned error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCorrelationIDMissing(t *testing.T) {
	_, err := CorrelationID("uuid", "invoice.pdf", "storage/inbox/invoice.pdf")
	if !errors.Is(err, services.ErrInvalidFilename) {
		t.Fatalf("expected ErrInvalidFilename, got %v", err)
	}
	if Fold(err).Code != services.CodeInvalidFilename {
		t.Fatalf("unexpected code %q", Fold(err).Code)
	}
}
