package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// FieldName identifies a classifier output field.
type FieldName string

const (
	FieldKind          FieldName = "kind"
	FieldDocID         FieldName = "doc_id"
	FieldDocDateSic    FieldName = "doc_date_sic"
	FieldDocDateParsed FieldName = "doc_date_parsed"
	FieldDocSubject    FieldName = "doc_subject"
)

// ScoredFields lists the fields that carry a classifier confidence score.
var ScoredFields = []FieldName{FieldDocID, FieldDocDateSic, FieldDocSubject}

// Classification is the outcome of the latest classifier request.
// Exactly one of Result and Error is set.
type Classification struct {
	FetchedAt   time.Time            `json:"fetchedAt"`
	APIBase     string               `json:"apiBase"`
	RequestUUID string               `json:"requestUuid,omitempty"`
	Result      *Result              `json:"result,omitempty"`
	Error       *ClassificationError `json:"error,omitempty"`
}

// ClassificationError is the durable form of a failed classifier request.
type ClassificationError struct {
	Code       string `json:"code"`
	Message    string `json:"message,omitempty"`
	Status     int    `json:"status,omitempty"`
	StatusText string `json:"statusText,omitempty"`
	Body       string `json:"body,omitempty"`
}

// Result is the normalized classifier output.
type Result struct {
	Kind          string `json:"kind,omitempty"`
	DocDateParsed string `json:"doc_date_parsed,omitempty"`
	DocID         *Field `json:"doc_id,omitempty"`
	DocDateSic    *Field `json:"doc_date_sic,omitempty"`
	DocSubject    *Field `json:"doc_subject,omitempty"`
}

// Field is a classifier value with its confidence score.
type Field struct {
	Value string   `json:"value"`
	Score *float64 `json:"score,omitempty"`
}

// UnmarshalJSON accepts string, number, and boolean values; the upstream
// service is not strict about value types.
func (f *Field) UnmarshalJSON(data []byte) error {
	var raw struct {
		Value json.RawMessage `json:"value"`
		Score *float64        `json:"score"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	value, err := ScalarString(raw.Value)
	if err != nil {
		return fmt.Errorf("field value: %w", err)
	}
	f.Value = value
	f.Score = raw.Score
	return nil
}

// ScalarString renders a JSON scalar as a string. null and missing values
// produce "".
func ScalarString(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", err
		}
		return s, nil
	case '{', '[':
		return "", fmt.Errorf("expected scalar, got %s", string(trimmed[:1]))
	default:
		return string(trimmed), nil
	}
}

// Field returns the scored field by name, or nil.
func (r *Result) Field(name FieldName) *Field {
	if r == nil {
		return nil
	}
	switch name {
	case FieldDocID:
		return r.DocID
	case FieldDocDateSic:
		return r.DocDateSic
	case FieldDocSubject:
		return r.DocSubject
	default:
		return nil
	}
}

// Value returns the raw classifier value for name.
func (r *Result) Value(name FieldName) string {
	if r == nil {
		return ""
	}
	switch name {
	case FieldKind:
		return r.Kind
	case FieldDocDateParsed:
		return r.DocDateParsed
	}
	if f := r.Field(name); f != nil {
		return f.Value
	}
	return ""
}

// Score returns the raw classifier score for name.
func (r *Result) Score(name FieldName) (float64, bool) {
	f := r.Field(name)
	if f == nil || f.Score == nil {
		return 0, false
	}
	return *f.Score, true
}

func (r *Result) clone() *Result {
	cp := *r
	for _, ptr := range []**Field{&cp.DocID, &cp.DocDateSic, &cp.DocSubject} {
		if *ptr == nil {
			continue
		}
		f := **ptr
		if f.Score != nil {
			s := *f.Score
			f.Score = &s
		}
		*ptr = &f
	}
	return &cp
}

// Corrections holds human overrides. Raw classifier output is never
// rewritten; effective values are resolved at read time.
type Corrections struct {
	Kind          string         `json:"kind,omitempty"`
	DocID         string         `json:"doc_id,omitempty"`
	DocDateSic    string         `json:"doc_date_sic,omitempty"`
	DocDateParsed string         `json:"doc_date_parsed,omitempty"`
	DocSubject    string         `json:"doc_subject,omitempty"`
	ConfOverrides *ConfOverrides `json:"conf_overrides,omitempty"`
}

// Value returns the correction for name.
func (c *Corrections) Value(name FieldName) string {
	if c == nil {
		return ""
	}
	switch name {
	case FieldKind:
		return c.Kind
	case FieldDocID:
		return c.DocID
	case FieldDocDateSic:
		return c.DocDateSic
	case FieldDocDateParsed:
		return c.DocDateParsed
	case FieldDocSubject:
		return c.DocSubject
	default:
		return ""
	}
}

// SetValue stores a correction for name. An empty value clears it.
func (c *Corrections) SetValue(name FieldName, value string) bool {
	value = strings.TrimSpace(value)
	switch name {
	case FieldKind:
		c.Kind = value
	case FieldDocID:
		c.DocID = value
	case FieldDocDateSic:
		c.DocDateSic = value
	case FieldDocDateParsed:
		c.DocDateParsed = value
	case FieldDocSubject:
		c.DocSubject = value
	default:
		return false
	}
	return true
}

// IsEmpty reports whether no correction or override is set.
func (c *Corrections) IsEmpty() bool {
	if c == nil {
		return true
	}
	for _, name := range []FieldName{FieldKind, FieldDocID, FieldDocDateSic, FieldDocDateParsed, FieldDocSubject} {
		if strings.TrimSpace(c.Value(name)) != "" {
			return false
		}
	}
	return c.ConfOverrides.IsEmpty()
}

// ConfOverrides are per-field confidence overrides in [0,1].
type ConfOverrides struct {
	DocIDScore      *float64 `json:"doc_id_score,omitempty"`
	DocDateSicScore *float64 `json:"doc_date_sic_score,omitempty"`
	DocSubjectScore *float64 `json:"doc_subject_score,omitempty"`
}

// OverrideKey returns the conf_overrides key for a scored field.
func OverrideKey(name FieldName) string {
	return string(name) + "_score"
}

// OverrideField maps a conf_overrides key back to its scored field.
func OverrideField(key string) (FieldName, bool) {
	for _, name := range ScoredFields {
		if OverrideKey(name) == key {
			return name, true
		}
	}
	return "", false
}

// Score returns the override for name, or nil.
func (o *ConfOverrides) Score(name FieldName) *float64 {
	if o == nil {
		return nil
	}
	switch name {
	case FieldDocID:
		return o.DocIDScore
	case FieldDocDateSic:
		return o.DocDateSicScore
	case FieldDocSubject:
		return o.DocSubjectScore
	default:
		return nil
	}
}

// SetScore stores an override for name; nil clears it.
func (o *ConfOverrides) SetScore(name FieldName, score *float64) {
	if score != nil {
		v := *score
		score = &v
	}
	switch name {
	case FieldDocID:
		o.DocIDScore = score
	case FieldDocDateSic:
		o.DocDateSicScore = score
	case FieldDocSubject:
		o.DocSubjectScore = score
	}
}

// IsEmpty reports whether no override is set.
func (o *ConfOverrides) IsEmpty() bool {
	return o == nil || (o.DocIDScore == nil && o.DocDateSicScore == nil && o.DocSubjectScore == nil)
}

func (o *ConfOverrides) clone() *ConfOverrides {
	cp := &ConfOverrides{}
	for _, name := range ScoredFields {
		cp.SetScore(name, o.Score(name))
	}
	return cp
}
