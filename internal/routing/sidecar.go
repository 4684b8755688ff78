package routing

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"

	"docdesk/internal/fileutil"
	"docdesk/internal/logging"
	"docdesk/internal/record"
)

// refreshSidecars writes the side-car beside the file and drops the stale one
// in the previous state directory. Failures are only logged.
func (e *Engine) refreshSidecars(logger *slog.Logger, rec *record.Record, previous record.State) {
	path := e.layout.SidecarPath(rec.State, rec.DocID)
	data, err := json.MarshalIndent(rec, "", "  ")
	if err == nil {
		err = fileutil.WriteFileAtomic(path, append(data, '\n'), 0o644)
	}
	if err != nil {
		logging.WarnWithContext(logger, "side-car write failed",
			"sidecar_write_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "meta store record is current; side-car is stale"),
		)
	}
	if previous == "" || previous == rec.State {
		return
	}
	stale := e.layout.SidecarPath(previous, rec.DocID)
	if err := os.Remove(stale); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.WarnWithContext(logger, "stale side-car removal failed",
			"sidecar_remove_failed",
			logging.String("path", stale),
			logging.Error(err),
		)
	}
}
