package classifier

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"docdesk/internal/record"
)

// Normalize decodes a classifier response body. One nested "result" layer is
// unwrapped when the top level carries no scored field.
func Normalize(body []byte) (*record.Result, error) {
	obj, err := decodeObject(body)
	if err != nil {
		return nil, err
	}
	if !hasScoredField(obj) {
		if inner, ok := obj["result"]; ok {
			nested, err := decodeObject(inner)
			if err != nil {
				return nil, fmt.Errorf("result: %w", err)
			}
			obj = nested
		}
	}

	result := &record.Result{}
	if result.Kind, err = plainValue(obj[string(record.FieldKind)]); err != nil {
		return nil, fmt.Errorf("kind: %w", err)
	}
	if result.DocDateParsed, err = plainValue(obj[string(record.FieldDocDateParsed)]); err != nil {
		return nil, fmt.Errorf("doc_date_parsed: %w", err)
	}
	targets := map[record.FieldName]**record.Field{
		record.FieldDocID:      &result.DocID,
		record.FieldDocDateSic: &result.DocDateSic,
		record.FieldDocSubject: &result.DocSubject,
	}
	for _, name := range record.ScoredFields {
		field, err := scoredField(obj[string(name)])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		*targets[name] = field
	}
	return result, nil
}

func decodeObject(raw []byte) (map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errors.New("response is not a JSON object")
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

func hasScoredField(obj map[string]json.RawMessage) bool {
	for _, name := range record.ScoredFields {
		if _, ok := obj[string(name)]; ok {
			return true
		}
	}
	return false
}

// plainValue accepts a scalar or a {"value": ...} object.
func plainValue(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var wrapped struct {
			Value json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return "", err
		}
		return record.ScalarString(wrapped.Value)
	}
	return record.ScalarString(trimmed)
}

func scoredField(raw json.RawMessage) (*record.Field, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] != '{' {
		value, err := record.ScalarString(trimmed)
		if err != nil {
			return nil, err
		}
		return &record.Field{Value: value}, nil
	}
	var field record.Field
	if err := json.Unmarshal(trimmed, &field); err != nil {
		return nil, err
	}
	if field.Score != nil {
		s := *field.Score
		if math.IsNaN(s) || s < 0 || s > 1 {
			return nil, fmt.Errorf("score %v outside [0,1]", s)
		}
	}
	return &field, nil
}
