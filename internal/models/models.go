package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RawRecord is a booking object as the backend sends it: optional fields with
// several possible aliases. Only Normalize reads it.
type RawRecord map[string]interface{}

// String returns the first non-empty alias. Numbers are formatted without a
// fractional part when integral.
func (r RawRecord) String(keys ...string) string {
	for _, key := range keys {
		val, ok := r.lookup(key)
		if !ok || val == nil {
			continue
		}
		switch v := val.(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case json.Number:
			return v.String()
		case int:
			return strconv.Itoa(v)
		case int64:
			return strconv.FormatInt(v, 10)
		}
	}
	return ""
}

// Float returns the first alias holding a number or numeric string.
func (r RawRecord) Float(keys ...string) (float64, bool) {
	for _, key := range keys {
		val, ok := r.lookup(key)
		if !ok || val == nil {
			continue
		}
		switch v := val.(type) {
		case float64:
			return v, true
		case int:
			return float64(v), true
		case int64:
			return float64(v), true
		case json.Number:
			if f, err := v.Float64(); err == nil {
				return f, true
			}
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

// Time returns the first alias that parses as a timestamp.
func (r RawRecord) Time(keys ...string) *time.Time {
	for _, key := range keys {
		val, ok := r.lookup(key)
		if !ok || val == nil {
			continue
		}
		switch v := val.(type) {
		case time.Time:
			t := v
			return &t
		case string:
			if t, ok := parseTime(v); ok {
				return &t
			}
		}
	}
	return nil
}

// Map returns a nested object.
func (r RawRecord) Map(key string) RawRecord {
	val, ok := r.lookup(key)
	if !ok {
		return nil
	}
	switch v := val.(type) {
	case map[string]interface{}:
		return RawRecord(v)
	case RawRecord:
		return v
	default:
		return nil
	}
}

// Slice returns a nested array of objects, skipping non-object elements.
func (r RawRecord) Slice(key string) []RawRecord {
	val, ok := r.lookup(key)
	if !ok {
		return nil
	}
	items, ok := val.([]interface{})
	if !ok {
		return nil
	}
	out := make([]RawRecord, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]interface{}); ok {
			out = append(out, RawRecord(m))
		}
	}
	return out
}

// lookup resolves dotted paths such as "service.subcategory.name".
func (r RawRecord) lookup(path string) (interface{}, bool) {
	if r == nil {
		return nil, false
	}
	parts := strings.Split(path, ".")
	cur := r
	for i, part := range parts {
		val, ok := cur[part]
		if !ok {
			return nil, false
		}
		if i == len(parts)-1 {
			return val, true
		}
		next, ok := val.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur = next
	}
	return nil, false
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DecodeRawList accepts the list shapes the backend uses: a bare array, or an
// object wrapping it under one of the given keys.
func DecodeRawList(data json.RawMessage, keys ...string) ([]RawRecord, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}

	if strings.HasPrefix(trimmed, "[") {
		var list []map[string]interface{}
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("decode list: %w", err)
		}
		return toRaw(list), nil
	}

	var wrap map[string]json.RawMessage
	if err := json.Unmarshal(data, &wrap); err != nil {
		return nil, fmt.Errorf("decode list wrapper: %w", err)
	}
	for _, key := range keys {
		inner, ok := wrap[key]
		if !ok {
			continue
		}
		var list []map[string]interface{}
		if err := json.Unmarshal(inner, &list); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		return toRaw(list), nil
	}
	return nil, nil
}

func toRaw(list []map[string]interface{}) []RawRecord {
	out := make([]RawRecord, 0, len(list))
	for _, m := range list {
		if m != nil {
			out = append(out, RawRecord(m))
		}
	}
	return out
}
