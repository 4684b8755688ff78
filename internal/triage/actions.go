package triage

import (
	"context"

	"docdesk/internal/audit"
	"docdesk/internal/logs"
	"docdesk/internal/services"
)

// DefaultActionLimit caps RecentActions when no limit is given.
const DefaultActionLimit = 50

// RecentActions returns the newest action log entries, oldest first,
// optionally restricted to one document.
func (s *Service) RecentActions(ctx context.Context, docID string, limit int) ([]audit.Line, error) {
	if limit <= 0 {
		limit = DefaultActionLimit
	}
	result, err := logs.Tail(ctx, s.layout.ActionLogPath(), logs.TailOptions{Offset: -1, Limit: limit, DocID: docID})
	if err != nil {
		return nil, services.Wrap(services.ErrInternal, component, "actions", "read action log", err)
	}
	if result.Entries == nil {
		return []audit.Line{}, nil
	}
	return result.Entries, nil
}
