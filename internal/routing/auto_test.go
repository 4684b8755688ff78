package routing_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"docdesk/internal/record"
	"docdesk/internal/routing"
	"docdesk/internal/services"
	"docdesk/internal/testsupport"
)

func TestAutoRouteThresholdIsInclusive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	engine, store := newEngine(t, cfg)
	seeded := testsupport.SeedDocument(t, cfg, store, record.StateInbox, "a.pdf", testsupport.WithResult(0.9, 0.7, 0.8))

	decision, err := engine.AutoRoute(context.Background(), seeded.DocID, 0.7)
	if err != nil {
		t.Fatalf("AutoRoute: %v", err)
	}
	if decision.State != record.StateProcessed || !decision.Accepted || decision.Aggregate != 0.7 {
		t.Fatalf("unexpected decision %+v", decision)
	}

	stored, _ := store.Get(context.Background(), seeded.DocID)
	assertConsistent(t, cfg, stored)
	if stored.ClassificationMode != record.ModeAuto {
		t.Fatalf("mode = %q", stored.ClassificationMode)
	}
	if stored.Routing == nil || stored.Routing.Policy != "min" || !stored.Routing.AutoProcessed || stored.Routing.DecidedBy != "tester" {
		t.Fatalf("unexpected routing %+v", stored.Routing)
	}
	last := stored.History[len(stored.History)-1]
	if last.Note != "auto-route policy=min aggregate=0.7 threshold=0.7" {
		t.Fatalf("unexpected note %q", last.Note)
	}
}

func TestAutoRouteBelowThresholdGoesToReview(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	engine, store := newEngine(t, cfg)
	seeded := testsupport.SeedDocument(t, cfg, store, record.StateInbox, "a.pdf", testsupport.WithResult(0.9, 0.6999, 0.8))

	decision, err := engine.AutoRoute(context.Background(), seeded.DocID, 0.7)
	if err != nil {
		t.Fatalf("AutoRoute: %v", err)
	}
	if decision.State != record.StateReview || decision.Accepted {
		t.Fatalf("unexpected decision %+v", decision)
	}
	stored, _ := store.Get(context.Background(), seeded.DocID)
	if stored.ClassificationMode != "" || stored.Routing.AutoProcessed {
		t.Fatalf("unexpected record %+v", stored)
	}
	assertConsistent(t, cfg, stored)
}

func TestAutoRouteOverrideLiftsAggregate(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	engine, store := newEngine(t, cfg)
	seeded := testsupport.SeedDocument(t, cfg, store, record.StateInbox, "a.pdf", testsupport.WithResult(0.9, 0.5, 0.9))
	override := 0.95
	seeded.Corrections = &record.Corrections{ConfOverrides: &record.ConfOverrides{DocDateSicScore: &override}}
	if err := store.Put(context.Background(), seeded); err != nil {
		t.Fatalf("Put: %v", err)
	}

	decision, err := engine.AutoRoute(context.Background(), seeded.DocID, 0.7)
	if err != nil {
		t.Fatalf("AutoRoute: %v", err)
	}
	if decision.State != record.StateProcessed || decision.Aggregate != 0.9 {
		t.Fatalf("unexpected decision %+v", decision)
	}
	stored, _ := store.Get(context.Background(), seeded.DocID)
	if stored.ClassificationMode != record.ModeCorrected {
		t.Fatalf("expected corrected mode, got %q", stored.ClassificationMode)
	}
	if *stored.Result().DocDateSic.Score != 0.5 {
		t.Fatal("raw score must not be rewritten")
	}
}

func TestAutoRouteNotClassifiedLeavesState(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	engine, store := newEngine(t, cfg)
	seeded := testsupport.SeedDocument(t, cfg, store, record.StateInbox, "a.pdf")

	_, err := engine.AutoRoute(context.Background(), seeded.DocID, 0.7)
	if !errors.Is(err, services.ErrNotClassified) {
		t.Fatalf("expected ErrNotClassified, got %v", err)
	}
	stored, _ := store.Get(context.Background(), seeded.DocID)
	if stored.State != record.StateInbox || len(stored.History) != 1 {
		t.Fatalf("record changed: %+v", stored)
	}
	assertConsistent(t, cfg, stored)
}

func TestAutoRouteNoScores(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	engine, store := newEngine(t, cfg)
	seeded := testsupport.SeedDocument(t, cfg, store, record.StateInbox, "a.pdf", testsupport.WithResult(-1, -1, -1))

	_, err := engine.AutoRoute(context.Background(), seeded.DocID, 0.7)
	if !errors.Is(err, services.ErrNoScores) {
		t.Fatalf("expected ErrNoScores, got %v", err)
	}
}

func TestAutoRouteRejectsThresholdOutOfRange(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	engine, store := newEngine(t, cfg)
	seeded := testsupport.SeedDocument(t, cfg, store, record.StateInbox, "a.pdf", testsupport.WithResult(0.9, 0.9, 0.9))

	for _, threshold := range []float64{-0.1, 1.01} {
		if _, err := engine.AutoRoute(context.Background(), seeded.DocID, threshold); !errors.Is(err, services.ErrBadRequest) {
			t.Fatalf("threshold %v: expected ErrBadRequest, got %v", threshold, err)
		}
	}
}

func TestAutoRouteAveragePolicy(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithRouting("avg", 0.7))
	engine, store := newEngine(t, cfg)
	seeded := testsupport.SeedDocument(t, cfg, store, record.StateInbox, "a.pdf", testsupport.WithResult(1, 0.5, 0.8))

	decision, err := engine.AutoRoute(context.Background(), seeded.DocID, engine.DefaultThreshold())
	if err != nil {
		t.Fatalf("AutoRoute: %v", err)
	}
	if decision.State != record.StateProcessed || decision.Policy != "avg" {
		t.Fatalf("unexpected decision %+v", decision)
	}
	stored, _ := store.Get(context.Background(), seeded.DocID)
	if !strings.Contains(stored.History[len(stored.History)-1].Note, "policy=avg") {
		t.Fatalf("unexpected note %q", stored.History[len(stored.History)-1].Note)
	}
}

func TestBulkAutoRouteTallies(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	engine, store := newEngine(t, cfg)
	high := testsupport.SeedDocument(t, cfg, store, record.StateInbox, "high.pdf", testsupport.WithResult(0.9, 0.9, 0.9))
	low := testsupport.SeedDocument(t, cfg, store, record.StateInbox, "low.pdf", testsupport.WithResult(0.9, 0.2, 0.9))
	testsupport.SeedDocument(t, cfg, store, record.StateInbox, "fresh.pdf")
	testsupport.SeedDocument(t, cfg, store, record.StateInbox, "empty.pdf", testsupport.WithResult(-1, -1, -1))
	testsupport.SeedDocument(t, cfg, store, record.StateReview, "other.pdf", testsupport.WithResult(0.9, 0.9, 0.9))

	result, err := engine.BulkAutoRoute(context.Background(), 0.7)
	if err != nil {
		t.Fatalf("BulkAutoRoute: %v", err)
	}
	want := routing.BulkResult{Processed: 1, Reviewed: 1, Skipped: 1, Failed: 1, Scanned: 4}
	if result != want {
		t.Fatalf("got %+v, want %+v", result, want)
	}

	for id, state := range map[string]record.State{high.DocID: record.StateProcessed, low.DocID: record.StateReview} {
		stored, _ := store.Get(context.Background(), id)
		if stored.State != state {
			t.Fatalf("%s: state %s, want %s", id, stored.State, state)
		}
		assertConsistent(t, cfg, stored)
	}
}

func TestClassificationMode(t *testing.T) {
	override := 0.9
	tests := []struct {
		name string
		rec  *record.Record
		auto bool
		want string
	}{
		{"manual", &record.Record{}, false, record.ModeManual},
		{"auto", &record.Record{}, true, record.ModeAuto},
		{"value correction", &record.Record{Corrections: &record.Corrections{Kind: "letter"}}, true, record.ModeCorrected},
		{"override only", &record.Record{Corrections: &record.Corrections{ConfOverrides: &record.ConfOverrides{DocIDScore: &override}}}, false, record.ModeCorrected},
		{"empty corrections", &record.Record{Corrections: &record.Corrections{}}, false, record.ModeManual},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := routing.ClassificationMode(tt.rec, tt.auto); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}
