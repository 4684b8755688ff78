package triage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"

	"docdesk/internal/audit"
	"docdesk/internal/logging"
	"docdesk/internal/record"
	"docdesk/internal/services"
)

var correctableFields = []record.FieldName{
	record.FieldKind,
	record.FieldDocID,
	record.FieldDocDateSic,
	record.FieldDocDateParsed,
	record.FieldDocSubject,
}

// Patch is a decoded corrections request. Fields not present in the request
// are left unchanged.
type Patch struct {
	// Values maps a field to its new correction; "" clears it.
	Values map[record.FieldName]string
	// Overrides maps a scored field to its new confidence; nil clears it.
	Overrides map[record.FieldName]*float64
}

// DecodePatch parses a corrections request body. String fields accept
// strings or numbers, with null leaving the field unchanged. conf_overrides
// values must be numbers in [0,1]; "" or null clears the override.
func DecodePatch(data []byte) (Patch, error) {
	patch := Patch{
		Values:    map[record.FieldName]string{},
		Overrides: map[record.FieldName]*float64{},
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return patch, nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return patch, badPatch("body must be a JSON object", err)
	}
	for _, name := range correctableFields {
		value, ok := raw[string(name)]
		if !ok || isNull(value) {
			continue
		}
		s, err := record.ScalarString(value)
		if err != nil {
			return patch, badPatch(string(name), err)
		}
		patch.Values[name] = s
	}
	overrides, ok := raw["conf_overrides"]
	if !ok || isNull(overrides) {
		return patch, nil
	}
	var rawOverrides map[string]json.RawMessage
	if err := json.Unmarshal(overrides, &rawOverrides); err != nil {
		return patch, badPatch("conf_overrides must be an object", err)
	}
	keys := make([]string, 0, len(rawOverrides))
	for key := range rawOverrides {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		name, ok := record.OverrideField(key)
		if !ok {
			return patch, badPatch(fmt.Sprintf("unknown override %q", key), nil)
		}
		score, err := decodeOverride(rawOverrides[key])
		if err != nil {
			return patch, badPatch(key, err)
		}
		patch.Overrides[name] = score
	}
	return patch, nil
}

func decodeOverride(raw json.RawMessage) (*float64, error) {
	trimmed := bytes.TrimSpace(raw)
	if isNull(trimmed) || bytes.Equal(trimmed, []byte(`""`)) {
		return nil, nil
	}
	if trimmed[0] == '"' || trimmed[0] == '{' || trimmed[0] == '[' || trimmed[0] == 't' || trimmed[0] == 'f' {
		return nil, fmt.Errorf("must be a number between 0 and 1")
	}
	v, err := strconv.ParseFloat(string(trimmed), 64)
	if err != nil {
		return nil, fmt.Errorf("must be a number between 0 and 1")
	}
	if math.IsNaN(v) || v < 0 || v > 1 {
		return nil, fmt.Errorf("%v outside [0,1]", v)
	}
	return &v, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func badPatch(what string, err error) error {
	return services.Wrap(services.ErrBadRequest, component, "corrections", what, err)
}

// Apply merges the patch into c.
func (p Patch) Apply(c *record.Corrections) {
	for name, value := range p.Values {
		c.SetValue(name, value)
	}
	if len(p.Overrides) == 0 {
		return
	}
	if c.ConfOverrides == nil {
		c.ConfOverrides = &record.ConfOverrides{}
	}
	for name, score := range p.Overrides {
		c.ConfOverrides.SetScore(name, score)
	}
	if c.ConfOverrides.IsEmpty() {
		c.ConfOverrides = nil
	}
}

// ApplyCorrections merges a decoded patch into the document's corrections.
// The raw classifier result is never touched.
func (s *Service) ApplyCorrections(ctx context.Context, docID string, patch Patch) (*record.Record, error) {
	ctx = services.WithDocID(ctx, docID)
	unlock := s.locker.Lock(docID)
	defer unlock()

	rec, err := s.store.Get(ctx, docID)
	if err != nil {
		return nil, err
	}
	updated := rec.Clone()
	corrections := updated.Corrections
	if corrections == nil {
		corrections = &record.Corrections{}
	}
	patch.Apply(corrections)
	if corrections.IsEmpty() {
		updated.Corrections = nil
	} else {
		updated.Corrections = corrections
	}

	by := s.actor(ctx)
	entry := s.trail.Entry(by, audit.EventCorrectionsSaved, "", "", "")
	at := entry.At
	updated.CorrectedAt = &at
	updated.CorrectedBy = by
	s.trail.Append(updated, entry)

	if err := s.store.Put(ctx, updated); err != nil {
		return nil, err
	}
	s.trail.Publish(ctx, docID, "corrections", entry)
	logging.WithContext(ctx, s.logger).Info("corrections saved",
		logging.String(logging.FieldEventType, "corrections_saved"),
		logging.Int("fields", len(patch.Values)),
		logging.Int("overrides", len(patch.Overrides)),
	)
	return updated, nil
}
