package record

import (
	"strings"
	"time"
)

// State represents the lifecycle position of a document.
type State string

const (
	StateInbox     State = "inbox"
	StateReview    State = "review"
	StateHold      State = "hold"
	StateProcessed State = "processed"
)

var allStates = []State{
	StateInbox,
	StateReview,
	StateHold,
	StateProcessed,
}

var stateSet = func() map[State]struct{} {
	set := make(map[State]struct{}, len(allStates))
	for _, state := range allStates {
		set[state] = struct{}{}
	}
	return set
}()

// AllStates returns the ordered list of known states.
func AllStates() []State {
	cp := make([]State, len(allStates))
	copy(cp, allStates)
	return cp
}

// ParseState converts a string into a known State.
func ParseState(value string) (State, bool) {
	normalized := State(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := stateSet[normalized]
	return normalized, ok
}

// Classification modes recorded when a document reaches processed.
const (
	ModeCorrected = "corrected"
	ModeAuto      = "auto"
	ModeManual    = "manual"
)

// Record is the persisted per-document state object.
type Record struct {
	DocID              string          `json:"docId"`
	State              State           `json:"state"`
	OriginalFilename   string          `json:"originalFilename"`
	FilePath           string          `json:"filePath"`
	CreatedAt          time.Time       `json:"createdAt"`
	CreatedBy          string          `json:"createdBy"`
	PageCount          int             `json:"pageCount,omitempty"`
	Classification     *Classification `json:"classification,omitempty"`
	Corrections        *Corrections    `json:"corrections,omitempty"`
	CorrectedAt        *time.Time      `json:"correctedAt,omitempty"`
	CorrectedBy        string          `json:"correctedBy,omitempty"`
	Routing            *Routing        `json:"routing,omitempty"`
	ClassificationMode string          `json:"classification_mode,omitempty"`
	History            []HistoryEntry  `json:"history"`
}

// HistoryEntry is one immutable audit event in a record's history.
type HistoryEntry struct {
	At    time.Time `json:"at"`
	By    string    `json:"by"`
	Event string    `json:"event"`
	From  string    `json:"from,omitempty"`
	To    string    `json:"to,omitempty"`
	Note  string    `json:"note,omitempty"`
}

// Routing captures the auto-route decision.
type Routing struct {
	Policy               string    `json:"policy"`
	Threshold            float64   `json:"threshold"`
	AggregatedConfidence float64   `json:"aggregated_confidence"`
	AutoProcessed        bool      `json:"auto_processed"`
	DecidedAt            time.Time `json:"decided_at"`
	DecidedBy            string    `json:"decided_by"`
}

// Summary is the listing projection of a record.
type Summary struct {
	DocID            string    `json:"docId"`
	State            State     `json:"state"`
	OriginalFilename string    `json:"originalFilename"`
	FilePath         string    `json:"filePath"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Summarize returns the listing projection of r.
func (r *Record) Summarize() Summary {
	return Summary{
		DocID:            r.DocID,
		State:            r.State,
		OriginalFilename: r.OriginalFilename,
		FilePath:         r.FilePath,
		CreatedAt:        r.CreatedAt,
	}
}

// Result returns the classifier result, or nil when the record was never
// classified successfully.
func (r *Record) Result() *Result {
	if r == nil || r.Classification == nil {
		return nil
	}
	return r.Classification.Result
}

// IsClassified reports whether the record carries a successful classification.
func (r *Record) IsClassified() bool {
	return r.Result() != nil
}

// HasCorrections reports whether any human correction is set, including
// confidence overrides.
func (r *Record) HasCorrections() bool {
	if r == nil || r.Corrections == nil {
		return false
	}
	return !r.Corrections.IsEmpty()
}

// EffectiveValue returns the correction for field when present, otherwise the
// raw classifier value.
func (r *Record) EffectiveValue(field FieldName) string {
	if r == nil {
		return ""
	}
	if r.Corrections != nil {
		if v := strings.TrimSpace(r.Corrections.Value(field)); v != "" {
			return v
		}
	}
	return r.Result().Value(field)
}

// EffectiveScore returns the confidence override for field when present,
// otherwise the raw classifier score. The boolean is false when neither exists.
func (r *Record) EffectiveScore(field FieldName) (float64, bool) {
	if r == nil {
		return 0, false
	}
	if r.Corrections != nil && r.Corrections.ConfOverrides != nil {
		if v := r.Corrections.ConfOverrides.Score(field); v != nil {
			return *v, true
		}
	}
	return r.Result().Score(field)
}

// AppendHistory appends entry to the record history.
func (r *Record) AppendHistory(entry HistoryEntry) {
	r.History = append(r.History, entry)
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	cp := *r
	if r.Classification != nil {
		c := *r.Classification
		if c.Result != nil {
			res := r.Classification.Result.clone()
			c.Result = res
		}
		if c.Error != nil {
			e := *c.Error
			c.Error = &e
		}
		cp.Classification = &c
	}
	if r.Corrections != nil {
		c := *r.Corrections
		if c.ConfOverrides != nil {
			o := c.ConfOverrides.clone()
			c.ConfOverrides = o
		}
		cp.Corrections = &c
	}
	if r.CorrectedAt != nil {
		at := *r.CorrectedAt
		cp.CorrectedAt = &at
	}
	if r.Routing != nil {
		rt := *r.Routing
		cp.Routing = &rt
	}
	cp.History = append([]HistoryEntry(nil), r.History...)
	return &cp
}
