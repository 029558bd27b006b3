// Package docstore models records the way a document database exposes them:
// a path, an id and a loosely typed field map. Decoders turn documents back
// into typed models and fail closed when a required field is missing.
package docstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"
)

// ErrMissingField is wrapped by every decode error caused by an absent field.
var ErrMissingField = errors.New("missing required field")

// ErrFieldType is wrapped when a field is present with an unusable type.
var ErrFieldType = errors.New("field has wrong type")

// Document is a single record under a collection path.
type Document struct {
	ID         string         `json:"id"`
	Path       string         `json:"path"`
	Data       map[string]any `json:"data"`
	UpdateTime time.Time      `json:"update_time"`
}

func missing(field string) error {
	return fmt.Errorf("%w: %s", ErrMissingField, field)
}

func wrongType(field string, v any) error {
	return fmt.Errorf("%w: %s is %T", ErrFieldType, field, v)
}

func (d Document) lookup(field string) (any, bool) {
	if d.Data == nil {
		return nil, false
	}
	v, ok := d.Data[field]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// RequireString returns a string field.
func (d Document) RequireString(field string) (string, error) {
	v, ok := d.lookup(field)
	if !ok {
		return "", missing(field)
	}
	s, ok := v.(string)
	if !ok {
		return "", wrongType(field, v)
	}
	return s, nil
}

// OptionalString returns a string field or "" when absent or mistyped.
func (d Document) OptionalString(field string) string {
	s, err := d.RequireString(field)
	if err != nil {
		return ""
	}
	return s
}

// RequireInt returns an integral numeric field. JSON numbers arrive as
// float64 or json.Number; both are accepted when they hold a whole value.
func (d Document) RequireInt(field string) (int64, error) {
	v, ok := d.lookup(field)
	if !ok {
		return 0, missing(field)
	}
	n, ok := toInt(v)
	if !ok {
		return 0, wrongType(field, v)
	}
	return n, nil
}

// OptionalInt returns an integral field or 0.
func (d Document) OptionalInt(field string) int64 {
	n, err := d.RequireInt(field)
	if err != nil {
		return 0
	}
	return n
}

// RequireID returns a positive integral field as a uint id. Ids may also be
// stored as decimal strings.
func (d Document) RequireID(field string) (uint, error) {
	v, ok := d.lookup(field)
	if !ok {
		return 0, missing(field)
	}
	id, ok := toID(v)
	if !ok {
		return 0, wrongType(field, v)
	}
	return id, nil
}

// RequireTime returns a timestamp field. Accepted forms are time.Time, an
// RFC 3339 string, and an exported timestamp object with seconds and
// nanoseconds.
func (d Document) RequireTime(field string) (time.Time, error) {
	v, ok := d.lookup(field)
	if !ok {
		return time.Time{}, missing(field)
	}
	t, ok := toTime(v)
	if !ok {
		return time.Time{}, wrongType(field, v)
	}
	return t, nil
}

// OptionalTime returns a timestamp field or the zero time.
func (d Document) OptionalTime(field string) time.Time {
	t, err := d.RequireTime(field)
	if err != nil {
		return time.Time{}
	}
	return t
}

// RequireIDSlice returns a list of ids. Any bad element fails the whole field.
func (d Document) RequireIDSlice(field string) ([]uint, error) {
	v, ok := d.lookup(field)
	if !ok {
		return nil, missing(field)
	}
	switch list := v.(type) {
	case []uint:
		return list, nil
	case []any:
		out := make([]uint, 0, len(list))
		for _, item := range list {
			id, ok := toID(item)
			if !ok {
				return nil, wrongType(field, item)
			}
			out = append(out, id)
		}
		return out, nil
	default:
		return nil, wrongType(field, v)
	}
}

// OptionalIDSlice returns a list of ids or an empty slice.
func (d Document) OptionalIDSlice(field string) []uint {
	ids, err := d.RequireIDSlice(field)
	if err != nil {
		return []uint{}
	}
	return ids
}

// DocID returns the document id parsed as a uint.
func (d Document) DocID() (uint, error) {
	id, err := strconv.ParseUint(d.ID, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: document id %q", ErrFieldType, d.ID)
	}
	return uint(id), nil
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float64:
		// Whole floats outside [-2^63, 2^63) do not convert.
		if n != math.Trunc(n) || n < -(1<<63) || n >= 1<<63 {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}

func toID(v any) (uint, bool) {
	if s, ok := v.(string); ok {
		id, err := strconv.ParseUint(s, 10, 64)
		if err != nil || id == 0 {
			return 0, false
		}
		return uint(id), true
	}
	n, ok := toInt(v)
	if !ok || n <= 0 {
		return 0, false
	}
	return uint(n), true
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	case map[string]any:
		secs, ok := t["_seconds"]
		if !ok {
			secs, ok = t["seconds"]
		}
		if !ok {
			return time.Time{}, false
		}
		s, ok := toInt(secs)
		if !ok {
			return time.Time{}, false
		}
		nanosVal, ok := t["_nanoseconds"]
		if !ok {
			nanosVal = t["nanoseconds"]
		}
		nanos, _ := toInt(nanosVal)
		return time.Unix(s, nanos).UTC(), true
	default:
		return time.Time{}, false
	}
}
