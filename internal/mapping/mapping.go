// Package mapping implements the declarative field-mapping language that
// converts an arbitrary source record into a normalized attribute set.
// Parsing is deliberately lenient: upstream feeds are not schema-guaranteed,
// so missing or malformed input never raises an error; absence simply
// propagates.
package mapping

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Transform is the closed enum of typed conversions applied to extracted
// values.
type Transform string

const (
	TransformString    Transform = "string"
	TransformNumber    Transform = "number"
	TransformDate      Transform = "date"
	TransformArray     Transform = "array"
	TransformLowercase Transform = "lowercase"
	TransformUppercase Transform = "uppercase"
)

// FieldRule describes how one target field is produced: a dotted source
// path, an optional default for missing values, and an optional transform.
type FieldRule struct {
	Source    string    `json:"source"`
	Default   any       `json:"default,omitempty"`
	Transform Transform `json:"transform,omitempty"`
}

// Mapping maps target field names to rules. In JSON form a rule may be a
// bare string, shorthand for {"source": path}.
type Mapping map[string]FieldRule

// UnmarshalJSON accepts both the shorthand (string path) and the full rule
// object per entry.
func (m *Mapping) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Mapping, len(raw))
	for field, entry := range raw {
		var path string
		if err := json.Unmarshal(entry, &path); err == nil {
			out[field] = FieldRule{Source: path}
			continue
		}
		var rule FieldRule
		if err := json.Unmarshal(entry, &rule); err != nil {
			return fmt.Errorf("mapping entry %q: %w", field, err)
		}
		out[field] = rule
	}
	*m = out
	return nil
}

// Apply evaluates the mapping against one record. Target fields whose source
// path is absent and that have no default are left unset.
func Apply(record map[string]any, m Mapping) map[string]any {
	out := make(map[string]any, len(m))
	for field, rule := range m {
		val, ok := Lookup(record, rule.Source)
		if !ok {
			if rule.Default != nil {
				out[field] = rule.Default
			}
			continue
		}
		if rule.Transform != "" {
			val = applyTransform(val, rule.Transform)
		}
		out[field] = val
	}
	return out
}

// Lookup resolves a dot-separated path over nested maps and arrays. Numeric
// segments index into arrays. The second return is false when any segment is
// missing.
func Lookup(record map[string]any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	var cur any = record
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}
	if cur == nil {
		return nil, false
	}
	return cur, true
}

// applyTransform converts a present value. Failed conversions fall back to
// the untouched value for date/number where a sensible fallback exists, per
// the lenient-parsing policy.
func applyTransform(val any, t Transform) any {
	switch t {
	case TransformString:
		return toString(val)
	case TransformNumber:
		return toNumber(val)
	case TransformDate:
		return toISODate(val)
	case TransformArray:
		if arr, ok := val.([]any); ok {
			return arr
		}
		return []any{val}
	case TransformLowercase:
		return strings.ToLower(toString(val))
	case TransformUppercase:
		return strings.ToUpper(toString(val))
	default:
		return val
	}
}

func toString(val any) string {
	switch v := val.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func toNumber(val any) any {
	switch v := val.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return val
}

var dateLayouts = []string{
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func toISODate(val any) any {
	switch v := val.(type) {
	case string:
		for _, layout := range dateLayouts {
			if ts, err := time.Parse(layout, v); err == nil {
				return ts.UTC().Format(time.RFC3339)
			}
		}
	case float64:
		// Treat large values as Unix milliseconds, the common case for
		// market APIs; smaller ones as seconds.
		sec := int64(v)
		if sec > 1e12 {
			return time.UnixMilli(sec).UTC().Format(time.RFC3339)
		}
		return time.Unix(sec, 0).UTC().Format(time.RFC3339)
	}
	return val
}
