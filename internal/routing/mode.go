package routing

import "docdesk/internal/record"

// ClassificationMode derives how a document arriving at processed was
// classified. Any correction, including a confidence override, wins over an
// automatic decision.
func ClassificationMode(rec *record.Record, autoAccepted bool) string {
	switch {
	case rec.HasCorrections():
		return record.ModeCorrected
	case autoAccepted:
		return record.ModeAuto
	default:
		return record.ModeManual
	}
}
