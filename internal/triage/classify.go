package triage

import (
	"context"
	"errors"
	"os"

	"docdesk/internal/audit"
	"docdesk/internal/logging"
	"docdesk/internal/metastore"
	"docdesk/internal/record"
	"docdesk/internal/services"
	"docdesk/internal/services/classifier"
)

// BulkClassifyResult tallies a bulk classification run over the inbox.
type BulkClassifyResult struct {
	OK      int `json:"ok"`
	Fail    int `json:"fail"`
	Skipped int `json:"skipped"`
	Scanned int `json:"scanned"`
}

// ClassifyDocument submits the document to the classifier and stores the
// outcome. Upstream and filename failures are recorded in the document and
// returned; a missing file leaves the record untouched.
func (s *Service) ClassifyDocument(ctx context.Context, docID string) (*record.Record, error) {
	rec, _, err := s.classify(ctx, docID, false)
	return rec, err
}

// BulkClassify classifies every inbox document. Unless reclassify is set,
// documents that already carry a classification result are skipped.
func (s *Service) BulkClassify(ctx context.Context, reclassify bool) (BulkClassifyResult, error) {
	var result BulkClassifyResult
	inbox, err := metastore.ListByState(ctx, s.store, record.StateInbox)
	if err != nil {
		return result, err
	}
	logger := logging.WithContext(ctx, s.logger)
	result.Scanned = len(inbox)
	for _, summary := range inbox {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		_, skipped, err := s.classify(ctx, summary.DocID, !reclassify)
		switch {
		case skipped:
			result.Skipped++
		case err != nil:
			result.Fail++
			logger.Warn("classification failed",
				logging.String(logging.FieldDocID, summary.DocID),
				logging.String(logging.FieldEventType, "classification_failed"),
				logging.String("code", services.Code(err)),
				logging.Error(err),
			)
		default:
			result.OK++
		}
	}
	logger.Info("bulk classification finished",
		logging.String(logging.FieldEventType, "bulk_classify"),
		logging.Int("ok", result.OK),
		logging.Int("fail", result.Fail),
		logging.Int("skipped", result.Skipped),
		logging.Int("scanned", result.Scanned),
	)
	return result, nil
}

// classify runs one classification under the record lock. With
// skipClassified, a record that already has a result is left alone and
// reported as skipped.
func (s *Service) classify(ctx context.Context, docID string, skipClassified bool) (*record.Record, bool, error) {
	ctx = services.WithDocID(ctx, docID)
	unlock := s.locker.Lock(docID)
	defer unlock()

	rec, err := s.store.Get(ctx, docID)
	if err != nil {
		return nil, false, err
	}
	if skipClassified && rec.IsClassified() {
		return rec, true, nil
	}
	logger := logging.WithContext(ctx, s.logger)

	requestID, idErr := classifier.CorrelationID(s.cfg.Classifier.CorrelationID, rec.OriginalFilename, rec.FilePath)
	var (
		result  *record.Result
		callErr = idErr
	)
	if idErr == nil {
		result, callErr = s.submit(ctx, rec, requestID)
		// A missing file or misconfiguration is not the document's fault.
		if callErr != nil && !services.IsUpstream(callErr) {
			return nil, false, callErr
		}
	}

	updated := rec.Clone()
	updated.Classification = &record.Classification{
		FetchedAt:   s.trail.Now(),
		APIBase:     s.classifier.APIBase(),
		RequestUUID: requestID,
		Result:      result,
		Error:       classifier.Fold(callErr),
	}
	by := s.actor(ctx)
	entry := s.trail.Entry(by, audit.EventClassified, "", "", "")
	if callErr != nil {
		entry = s.trail.Entry(by, audit.EventClassificationFailed, "", "", services.Code(callErr))
	}
	s.trail.Append(updated, entry)
	if err := s.store.Put(ctx, updated); err != nil {
		return nil, false, err
	}
	s.trail.Publish(ctx, docID, "classify", entry)

	if callErr != nil {
		logging.WarnWithContext(logger, "classification failed",
			"classification_failed",
			logging.String("code", services.Code(callErr)),
			logging.String("request_uuid", requestID),
			logging.Error(callErr),
			logging.String(logging.FieldErrorHint, "check classifier.api_base and the upstream service logs"),
			logging.String(logging.FieldImpact, "document stays unclassified until reclassified"),
		)
		return updated, false, callErr
	}
	logger.Info("document classified",
		logging.String(logging.FieldEventType, "document_classified"),
		logging.String("request_uuid", requestID),
		logging.String("kind", result.Kind),
	)
	return updated, false, nil
}

func (s *Service) submit(ctx context.Context, rec *record.Record, requestID string) (*record.Result, error) {
	abs, err := s.layout.Abs(rec.FilePath)
	if err != nil {
		return nil, services.Wrap(services.ErrFileMissing, component, "classify", rec.FilePath, err)
	}
	f, err := os.Open(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, services.Wrap(services.ErrFileMissing, component, "classify", rec.FilePath, nil)
		}
		return nil, services.Wrap(services.ErrInternal, component, "classify", rec.FilePath, err)
	}
	defer f.Close()
	return s.classifier.Classify(ctx, requestID, f)
}
