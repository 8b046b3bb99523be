// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package backend

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
)

// IDKeys are the identifier keys probed on backend records, in order.
var IDKeys = []string{"id", "_id"}

// Record is a single backend entity as decoded from JSON.
type Record map[string]any

// ID returns the record identifier as a string, or "" if none is present.
func (r Record) ID() string {
	for _, k := range IDKeys {
		if v, ok := r[k]; ok {
			if s := scalarString(v); s != "" {
				return s
			}
		}
	}
	return ""
}

// String returns the value at key formatted for display or form inputs.
func (r Record) String(key string) string {
	v, ok := r[key]
	if !ok {
		return ""
	}
	return scalarString(v)
}

// Int returns the value at key as an int, or 0 when missing or non-numeric.
func (r Record) Int(key string) int {
	switch v := r[key].(type) {
	case float64:
		return int(v)
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	}
	return 0
}

// Bool returns the value at key as a bool.
func (r Record) Bool(key string) bool {
	switch v := r[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	case float64:
		return v != 0
	}
	return false
}

// Object returns the nested object at key, or nil.
func (r Record) Object(key string) Record {
	switch v := r[key].(type) {
	case map[string]any:
		return Record(v)
	case Record:
		return v
	}
	return nil
}

// Strings returns a list value at key as strings.
func (r Record) Strings(key string) []string {
	switch v := r[key].(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s := scalarString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return v
	}
	return nil
}

func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}

// DecodeList decodes a list response. The backend answers either with a bare
// JSON array or with an {"items": [...]} envelope.
func DecodeList(body []byte) ([]Record, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty list body", ErrUnexpectedResponse)
	}

	switch trimmed[0] {
	case '[':
		var items []Record
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
		}
		return items, nil
	case '{':
		var envelope struct {
			Items *[]Record `json:"items"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
		}
		if envelope.Items == nil {
			return nil, fmt.Errorf("%w: object without items", ErrUnexpectedResponse)
		}
		return *envelope.Items, nil
	}
	return nil, fmt.Errorf("%w: list body is neither array nor envelope", ErrUnexpectedResponse)
}

// DecodeRecord decodes a single entity. Bare objects and {"item": {...}}
// envelopes are accepted. An empty body yields an empty record.
func DecodeRecord(body []byte) (Record, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return Record{}, nil
	}
	var rec Record
	if err := json.Unmarshal(trimmed, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}
	if inner, ok := rec["item"].(map[string]any); ok && len(rec) == 1 {
		return Record(inner), nil
	}
	return rec, nil
}
