package contracts

import (
	"math"
	"time"
)

// RawRecord is one source-native reading from the append-only raw fact
// table. Raw rows are never mutated; canonical rows reference them by id.
type RawRecord struct {
	ID          int64
	Source      string
	SourceType  string
	Identifier  string
	PeriodStart time.Time
	PeriodEnd   time.Time
	Value       *float64
	Unit        string
	Payload     map[string]any
}

// HasValue reports whether the record carries a usable numeric value.
// Null and NaN values are filtered out before any aggregation.
func (r *RawRecord) HasValue() bool {
	return r.Value != nil && !math.IsNaN(*r.Value)
}

// PayloadString returns a string field from the source-specific payload.
func (r *RawRecord) PayloadString(key string) (string, bool) {
	if r.Payload == nil {
		return "", false
	}
	v, ok := r.Payload[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// PayloadFloat returns a numeric field from the source-specific payload.
// JSON numbers decode as float64; strings holding numbers are not coerced.
func (r *RawRecord) PayloadFloat(key string) (float64, bool) {
	if r.Payload == nil {
		return 0, false
	}
	switch v := r.Payload[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// PayloadInt returns an integer field from the source-specific payload.
func (r *RawRecord) PayloadInt(key string) (int, bool) {
	f, ok := r.PayloadFloat(key)
	if !ok {
		return 0, false
	}
	return int(f), true
}
