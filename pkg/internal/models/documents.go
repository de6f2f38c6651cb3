package models

import (
	"encoding/json"
	"time"
)

const (
	CollectionPosts         = "posts"
	CollectionComments      = "comments"
	CollectionLikes         = "likes"
	CollectionUsers         = "users"
	CollectionNotifications = "notifications"
	CollectionSubscriptions = "subscriptions"
)

// Document is the schemaless record exchanged with the document store.
// Timestamps are kept as Unix microseconds so every adapter orders them numerically.
type Document map[string]any

func (d Document) String(key string) string {
	val, _ := d[key].(string)
	return val
}

func (d Document) OptionalString(key string) *string {
	val, ok := d[key].(string)
	if !ok {
		return nil
	}
	return &val
}

func (d Document) Bool(key string) bool {
	val, _ := d[key].(bool)
	return val
}

func (d Document) Int(key string) int64 {
	val, _ := ToInt64(d[key])
	return val
}

func (d Document) Time(key string) time.Time {
	raw, ok := d[key]
	if !ok || raw == nil {
		return time.Time{}
	}
	if t, ok := raw.(time.Time); ok {
		return t
	}
	micro, _ := ToInt64(raw)
	return time.UnixMicro(micro)
}

// Clone returns a shallow copy, the values of a document are scalars.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

func TimeValue(t time.Time) int64 {
	return t.UnixMicro()
}

// ToInt64 converts every numeric representation produced by the store drivers.
func ToInt64(raw any) (int64, bool) {
	switch val := raw.(type) {
	case int:
		return int64(val), true
	case int8:
		return int64(val), true
	case int16:
		return int64(val), true
	case int32:
		return int64(val), true
	case int64:
		return val, true
	case uint:
		return int64(val), true
	case uint8:
		return int64(val), true
	case uint16:
		return int64(val), true
	case uint32:
		return int64(val), true
	case uint64:
		return int64(val), true
	case float32:
		return int64(val), true
	case float64:
		return int64(val), true
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n, true
		}
		f, err := val.Float64()
		return int64(f), err == nil
	default:
		return 0, false
	}
}

// ToFloat64 is ToInt64 for comparisons that must keep fractions.
func ToFloat64(raw any) (float64, bool) {
	switch val := raw.(type) {
	case float32:
		return float64(val), true
	case float64:
		return val, true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	default:
		n, ok := ToInt64(raw)
		return float64(n), ok
	}
}
