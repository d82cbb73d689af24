package model

import (
	"encoding/json"
	"fmt"
	"maps"
	"strconv"
)

// ComponentRecord is one catalog entry: an ID, the category it belongs to,
// and a flat bag of vendor attributes exactly as the catalog supplied them.
//
// Records are immutable once constructed. The getters below tolerate the
// loose typing of JSON catalogs (numbers may arrive as float64, int or
// numeric strings) but never guess between differently named fields; that
// is the job of the typed component schema in package core.
type ComponentRecord struct {
	ID       string
	Category string

	attrs map[string]any
}

// NewComponentRecord copies attrs into a new record. An "id" attribute is
// used as the record ID when id is empty.
func NewComponentRecord(category, id string, attrs map[string]any) ComponentRecord {
	cp := make(map[string]any, len(attrs))
	maps.Copy(cp, attrs)
	if id == "" {
		if s, ok := cp["id"].(string); ok {
			id = s
		}
	}
	delete(cp, "id")
	return ComponentRecord{ID: id, Category: category, attrs: cp}
}

// WithCategory returns a copy of the record filed under category.
func (r ComponentRecord) WithCategory(category string) ComponentRecord {
	r.Category = category
	return r
}

// Attr returns the raw attribute value, or nil.
func (r ComponentRecord) Attr(key string) any {
	return r.attrs[key]
}

// IsZero reports whether the record is the zero value (no selection).
func (r ComponentRecord) IsZero() bool {
	return r.ID == "" && r.Category == "" && len(r.attrs) == 0
}

// Has reports whether the attribute is present and non-null.
func (r ComponentRecord) Has(key string) bool {
	v, ok := r.attrs[key]
	return ok && v != nil
}

// Keys returns the attribute names carried by the record.
func (r ComponentRecord) Keys() []string {
	out := make([]string, 0, len(r.attrs))
	for k := range r.attrs {
		out = append(out, k)
	}
	return out
}

// Float returns a numeric attribute.
func (r ComponentRecord) Float(key string) (float64, bool) {
	return toFloat(r.attrs[key])
}

// FloatOr returns a numeric attribute or def when absent.
func (r ComponentRecord) FloatOr(key string, def float64) float64 {
	if v, ok := r.Float(key); ok {
		return v
	}
	return def
}

// Bool returns a boolean attribute.
func (r ComponentRecord) Bool(key string) (bool, bool) {
	b, ok := r.attrs[key].(bool)
	return b, ok
}

// String returns a string attribute.
func (r ComponentRecord) String(key string) (string, bool) {
	s, ok := r.attrs[key].(string)
	return s, ok
}

// Floats returns a numeric list attribute (e.g. supports_bitrates). Non
// numeric entries are skipped.
func (r ComponentRecord) Floats(key string) []float64 {
	switch v := r.attrs[key].(type) {
	case []float64:
		return append([]float64(nil), v...)
	case []any:
		out := make([]float64, 0, len(v))
		for _, item := range v {
			if f, ok := toFloat(item); ok {
				out = append(out, f)
			}
		}
		return out
	default:
		return nil
	}
}

// Table returns a string-keyed numeric table attribute, such as a
// per-bitrate sensitivity table.
func (r ComponentRecord) Table(key string) map[string]float64 {
	switch v := r.attrs[key].(type) {
	case map[string]float64:
		return maps.Clone(v)
	case map[string]any:
		out := make(map[string]float64, len(v))
		for k, item := range v {
			if f, ok := toFloat(item); ok {
				out[k] = f
			}
		}
		return out
	default:
		return nil
	}
}

// MarshalJSON flattens the record back into the catalog wire shape.
func (r ComponentRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.attrs)+1)
	maps.Copy(out, r.attrs)
	out["id"] = r.ID
	return json.Marshal(out)
}

// UnmarshalJSON reads a flat catalog object. The category is assigned by
// the enclosing catalog.
func (r *ComponentRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("component record: %w", err)
	}
	*r = NewComponentRecord(r.Category, "", raw)
	return nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
