// Package audit builds history entries and appends them to the process-wide
// action log.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"docdesk/internal/logging"
	"docdesk/internal/record"
)

// History event names.
const (
	EventMoved                = "moved"
	EventClassified           = "classified"
	EventClassificationFailed = "classification_failed"
	EventCorrectionsSaved     = "corrections_saved"
)

// Line is one JSON record in actions.log.
type Line struct {
	At     time.Time `json:"at"`
	DocID  string    `json:"docId"`
	Action string    `json:"action"`
	By     string    `json:"by"`
	From   string    `json:"from,omitempty"`
	To     string    `json:"to,omitempty"`
	Note   string    `json:"note,omitempty"`
}

// Trail stamps history entries and mirrors them into the action log.
type Trail struct {
	path   string
	clock  func() time.Time
	logger *slog.Logger
	mu     sync.Mutex
}

// Option customizes a Trail.
type Option func(*Trail)

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(t *Trail) {
		if clock != nil {
			t.clock = clock
		}
	}
}

// WithLogger attaches the logger used for publish failures.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Trail) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// New returns a Trail appending to path. An empty path disables publishing.
func New(path string, opts ...Option) *Trail {
	t := &Trail{
		path:  path,
		clock: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = logging.NewComponentLogger(t.logger, "audit")
	return t
}

// Now returns the trail clock reading.
func (t *Trail) Now() time.Time {
	return t.clock()
}

// Entry builds a history entry stamped with the current time.
func (t *Trail) Entry(by, event, from, to, note string) record.HistoryEntry {
	return record.HistoryEntry{
		At:    t.clock(),
		By:    by,
		Event: event,
		From:  from,
		To:    to,
		Note:  note,
	}
}

// Append adds entry to the record history.
func (t *Trail) Append(rec *record.Record, entry record.HistoryEntry) {
	rec.AppendHistory(entry)
}

// Publish writes one line to the action log. Failures are logged and never
// returned.
func (t *Trail) Publish(ctx context.Context, docID, action string, entry record.HistoryEntry) {
	if t.path == "" {
		return
	}
	line := Line{
		At:     entry.At,
		DocID:  docID,
		Action: action,
		By:     entry.By,
		From:   entry.From,
		To:     entry.To,
		Note:   entry.Note,
	}
	if err := t.write(line); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, t.logger), "action log append failed",
			"audit_publish_failed",
			logging.String(logging.FieldDocID, docID),
			logging.String("action", action),
			logging.String("path", t.path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions on the storage/logs directory"),
			logging.String(logging.FieldImpact, "operation succeeded but is missing from actions.log"),
		)
	}
}

func (t *Trail) write(line Line) error {
	data, err := json.Marshal(line)
	if err != nil {
		return fmt.Errorf("encode action: %w", err)
	}
	data = append(data, '\n')

	t.mu.Lock()
	defer t.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(t.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open action log: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("append action: %w", err)
	}
	return f.Close()
}
