package model

import (
	"encoding/json"
	"fmt"
	"maps"
	"strings"
)

// Value is a single entry in a workflow's accumulated data. It is a closed
// set: TextValue, RecordValue and ResultValue.
type Value interface {
	isValue()
	// Plain returns the value as a plain Go value suitable for JSON.
	Plain() any
}

// TextValue holds a caller response.
type TextValue string

// RecordValue holds a structured record, such as a fetched issue.
type RecordValue map[string]any

// ResultValue holds the output of an action step.
type ResultValue map[string]any

func (TextValue) isValue()   {}
func (RecordValue) isValue() {}
func (ResultValue) isValue() {}

// Plain implements Value.
func (v TextValue) Plain() any { return string(v) }

// Plain implements Value.
func (v RecordValue) Plain() any { return map[string]any(v) }

// Plain implements Value.
func (v ResultValue) Plain() any { return map[string]any(v) }

// String returns the string stored under key, or "" when the key is absent
// or does not hold a string.
func (v RecordValue) String(key string) string {
	s, _ := v[key].(string)
	return s
}

// Nested returns the record stored under key.
func (v RecordValue) Nested(key string) RecordValue {
	m, _ := v[key].(map[string]any)
	return RecordValue(m)
}

// NewRecord converts any JSON-serializable value into a RecordValue.
func NewRecord(v any) (RecordValue, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	var rec map[string]any
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("record must be a JSON object: %w", err)
	}
	return RecordValue(rec), nil
}

// Data is the append-only accumulator of a workflow instance, keyed by step
// id (responses), "<stepId>_result" (action results), or a context key
// supplied at start.
type Data map[string]Value

// DataFromMap converts a plain map into Data. Strings become TextValue,
// objects become RecordValue and any other value is stored as a RecordValue
// under a "value" key.
func DataFromMap(m map[string]any) Data {
	d := make(Data, len(m))
	for k, v := range m {
		switch tv := v.(type) {
		case Value:
			d[k] = tv
		case string:
			d[k] = TextValue(tv)
		case map[string]any:
			d[k] = RecordValue(tv)
		default:
			d[k] = RecordValue{"value": tv}
		}
	}
	return d
}

// Text returns the TextValue stored under key.
func (d Data) Text(key string) (string, bool) {
	v, ok := d[key].(TextValue)
	return string(v), ok
}

// Record returns the RecordValue stored under key.
func (d Data) Record(key string) (RecordValue, bool) {
	v, ok := d[key].(RecordValue)
	return v, ok
}

// Result returns the ResultValue stored under key.
func (d Data) Result(key string) (ResultValue, bool) {
	v, ok := d[key].(ResultValue)
	return v, ok
}

// Clone returns a copy of d. Record and result maps are copied one level
// deep.
func (d Data) Clone() Data {
	if d == nil {
		return Data{}
	}
	out := make(Data, len(d))
	for k, v := range d {
		switch tv := v.(type) {
		case RecordValue:
			out[k] = RecordValue(maps.Clone(map[string]any(tv)))
		case ResultValue:
			out[k] = ResultValue(maps.Clone(map[string]any(tv)))
		default:
			out[k] = v
		}
	}
	return out
}

// Plain converts d into a plain map.
func (d Data) Plain() map[string]any {
	out := make(map[string]any, len(d))
	for k, v := range d {
		if v == nil {
			out[k] = nil
			continue
		}
		out[k] = v.Plain()
	}
	return out
}

// MarshalJSON implements json.Marshaler.
func (d Data) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Plain())
}

// UnmarshalJSON implements json.Unmarshaler. Keys ending in "_result" are
// restored as ResultValue.
func (d *Data) UnmarshalJSON(b []byte) error {
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	out := DataFromMap(m)
	for k, v := range out {
		if rec, ok := v.(RecordValue); ok && strings.HasSuffix(k, resultSuffix) {
			out[k] = ResultValue(rec)
		}
	}
	*d = out
	return nil
}

const resultSuffix = "_result"

// ResultKey returns the data key an action step's result is stored under.
func ResultKey(stepID string) string {
	return stepID + resultSuffix
}
