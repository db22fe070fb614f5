package model

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

type unknown struct{}

// MarshalJSON renders the marker as null so stored records round-trip to nil.
func (unknown) MarshalJSON() ([]byte, error) { return []byte("null"), nil }

func (unknown) String() string { return "" }

// Unknown marks a field whose upstream value was empty or the literal "null".
// It is distinct from the empty string.
var Unknown = unknown{}

// IsUnknown reports whether v carries no usable value: nil, Unknown, an empty
// or blank string, or the text "null" in any letter case.
func IsUnknown(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case unknown:
		return true
	case string:
		s := strings.TrimSpace(t)
		return s == "" || strings.EqualFold(s, "null")
	}
	return false
}

// Opportunity is one procurement listing as returned by the upstream
// service. Keys are the upstream field names; values are kept as decoded.
type Opportunity map[string]any

// Clone returns a shallow copy of the record.
func (o Opportunity) Clone() Opportunity {
	out := make(Opportunity, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// Text returns the field as trimmed text. ok is false when the field is unknown.
func (o Opportunity) Text(key string) (string, bool) {
	v, present := o[key]
	if !present || IsUnknown(v) {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case json.Number:
		return t.String(), true
	case bool:
		return strconv.FormatBool(t), true
	}
	return "", false
}

// Number returns the field as a float. Unparseable values, NaN, infinities
// and non-decimal strings such as hex floats are reported the same way as
// absent ones.
func (o Opportunity) Number(key string) (float64, bool) {
	v, present := o[key]
	if !present || IsUnknown(v) {
		return 0, false
	}
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		if !isDecimal(t.String()) {
			return 0, false
		}
		var err error
		if f, err = t.Float64(); err != nil {
			return 0, false
		}
	case string:
		s := strings.TrimSpace(t)
		if !isDecimal(s) {
			return 0, false
		}
		var err error
		if f, err = strconv.ParseFloat(s, 64); err != nil {
			return 0, false
		}
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// isDecimal accepts an optionally signed decimal with an optional exponent:
// "120000", "-1.5", ".5", "1e6". Underscores, hex and special values fail.
func isDecimal(s string) bool {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := 0
	for ; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		digits++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for ; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
			digits++
		}
	}
	if digits == 0 {
		return false
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		i++
		if i < len(s) && (s[i] == '+' || s[i] == '-') {
			i++
		}
		exp := 0
		for ; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
			exp++
		}
		if exp == 0 {
			return false
		}
	}
	return i == len(s)
}

// Lookup returns the first key that holds a known value, trying keys in order.
func (o Opportunity) Lookup(keys ...string) (key string, ok bool) {
	for _, k := range keys {
		if v, present := o[k]; present && !IsUnknown(v) {
			return k, true
		}
	}
	return "", false
}

// TextOf is Text over the first known key in keys.
func (o Opportunity) TextOf(keys ...string) (string, bool) {
	k, ok := o.Lookup(keys...)
	if !ok {
		return "", false
	}
	return o.Text(k)
}

// NumberOf is Number over the first known key in keys.
func (o Opportunity) NumberOf(keys ...string) (float64, bool) {
	k, ok := o.Lookup(keys...)
	if !ok {
		return 0, false
	}
	return o.Number(k)
}
