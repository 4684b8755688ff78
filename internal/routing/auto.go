package routing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	"docdesk/internal/audit"
	"docdesk/internal/confidence"
	"docdesk/internal/logging"
	"docdesk/internal/metastore"
	"docdesk/internal/record"
	"docdesk/internal/services"
)

// Decision is the outcome of a single auto-route.
type Decision struct {
	State      record.State `json:"newState"`
	Aggregate  float64      `json:"aggregated_confidence"`
	Threshold  float64      `json:"threshold"`
	Policy     string       `json:"policy"`
	Accepted   bool         `json:"auto_processed"`
	FilePath   string       `json:"filePath"`
	DocumentID string       `json:"docId"`
}

// BulkResult tallies a bulk auto-route run over the inbox.
type BulkResult struct {
	Processed int `json:"processed"`
	Reviewed  int `json:"reviewed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
	Scanned   int `json:"scanned"`
}

// ValidateThreshold rejects thresholds outside [0,1].
func ValidateThreshold(threshold float64) error {
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return services.Wrap(services.ErrBadRequest, component, "threshold", fmt.Sprintf("threshold %v outside [0,1]", threshold), nil)
	}
	return nil
}

// DefaultThreshold returns the configured auto-route threshold.
func (e *Engine) DefaultThreshold() float64 {
	return e.cfg.Routing.Threshold
}

// AutoRoute sends a classified document to processed when its aggregated
// confidence reaches threshold, otherwise to review.
func (e *Engine) AutoRoute(ctx context.Context, docID string, threshold float64) (Decision, error) {
	if err := ValidateThreshold(threshold); err != nil {
		return Decision{}, err
	}
	ctx = services.WithDocID(ctx, docID)
	unlock := e.locker.Lock(docID)
	defer unlock()

	rec, err := e.store.Get(ctx, docID)
	if err != nil {
		return Decision{}, err
	}
	return e.autoRoute(ctx, rec, threshold)
}

func (e *Engine) autoRoute(ctx context.Context, rec *record.Record, threshold float64) (Decision, error) {
	if !rec.IsClassified() {
		return Decision{}, services.Wrap(services.ErrNotClassified, component, "auto-route", rec.DocID, nil)
	}
	aggregate, ok := confidence.Aggregate(e.policy, confidence.Scores(rec))
	if !ok {
		return Decision{}, services.Wrap(services.ErrNoScores, component, "auto-route", rec.DocID, nil)
	}

	accepted := aggregate >= threshold
	target := record.StateReview
	if accepted {
		target = record.StateProcessed
	}
	by := services.ActorOr(ctx, e.cfg.App.User)
	now := e.trail.Now()
	note := fmt.Sprintf("auto-route policy=%s aggregate=%s threshold=%s",
		e.policy, formatScore(aggregate), formatScore(threshold))
	tr := transition{
		to:   target,
		auto: accepted,
		routing: &record.Routing{
			Policy:               string(e.policy),
			Threshold:            threshold,
			AggregatedConfidence: aggregate,
			AutoProcessed:        accepted,
			DecidedAt:            now,
			DecidedBy:            by,
		},
	}
	entry := e.trail.Entry(by, audit.EventMoved, string(rec.State), string(target), note)
	if err := e.apply(ctx, rec, tr, entry); err != nil {
		return Decision{}, err
	}
	return Decision{
		State:      target,
		Aggregate:  aggregate,
		Threshold:  threshold,
		Policy:     string(e.policy),
		Accepted:   accepted,
		FilePath:   rec.FilePath,
		DocumentID: rec.DocID,
	}, nil
}

// BulkAutoRoute auto-routes every inbox document serially. Documents without a
// classification result are skipped; other failures are counted and the run
// continues.
func (e *Engine) BulkAutoRoute(ctx context.Context, threshold float64) (BulkResult, error) {
	var result BulkResult
	if err := ValidateThreshold(threshold); err != nil {
		return result, err
	}
	inbox, err := metastore.ListByState(ctx, e.store, record.StateInbox)
	if err != nil {
		return result, err
	}
	logger := logging.WithContext(ctx, e.logger)
	result.Scanned = len(inbox)
	for _, summary := range inbox {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		decision, err := e.bulkOne(ctx, summary.DocID, threshold)
		switch {
		case errors.Is(err, services.ErrNotClassified), errors.Is(err, errSkipped):
			result.Skipped++
		case err != nil:
			result.Failed++
			logger.Warn("auto-route failed",
				logging.String(logging.FieldDocID, summary.DocID),
				logging.String(logging.FieldEventType, "auto_route_failed"),
				logging.String("code", services.Code(err)),
				logging.Error(err),
			)
		case decision.State == record.StateProcessed:
			result.Processed++
		default:
			result.Reviewed++
		}
	}
	logger.Info("bulk auto-route finished",
		logging.String(logging.FieldEventType, "bulk_auto_route"),
		logging.Int("processed", result.Processed),
		logging.Int("reviewed", result.Reviewed),
		logging.Int("skipped", result.Skipped),
		logging.Int("failed", result.Failed),
		logging.Int("scanned", result.Scanned),
	)
	return result, nil
}

var errSkipped = errors.New("no longer in inbox")

func (e *Engine) bulkOne(ctx context.Context, docID string, threshold float64) (Decision, error) {
	ctx = services.WithDocID(ctx, docID)
	unlock := e.locker.Lock(docID)
	defer unlock()

	rec, err := e.store.Get(ctx, docID)
	if err != nil {
		return Decision{}, err
	}
	// Another writer may have moved it since the listing.
	if rec.State != record.StateInbox {
		return Decision{}, errSkipped
	}
	return e.autoRoute(ctx, rec, threshold)
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
