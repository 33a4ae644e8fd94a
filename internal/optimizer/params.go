package optimizer

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
)

// ParamKind tags the scalar type carried by a ParamValue.
type ParamKind int

const (
	KindString ParamKind = iota
	KindNumber
	KindBool
)

// ParamValue is a tagged scalar: string, number or boolean. Grid values and
// candidate parameters are restricted to this closed set; anything else is
// rejected at the grid-expansion boundary.
type ParamValue struct {
	Kind ParamKind
	Str  string
	Num  float64
	Bool bool
}

// Str returns a string ParamValue.
func String(s string) ParamValue { return ParamValue{Kind: KindString, Str: s} }

// Number returns a numeric ParamValue.
func Number(n float64) ParamValue { return ParamValue{Kind: KindNumber, Num: n} }

// Boolean returns a boolean ParamValue.
func Boolean(b bool) ParamValue { return ParamValue{Kind: KindBool, Bool: b} }

// FromAny converts a loosely-typed value into a ParamValue. JSON numbers
// arrive as float64; integer types are accepted for convenience.
func FromAny(v interface{}) (ParamValue, error) {
	switch x := v.(type) {
	case string:
		return String(x), nil
	case float64:
		return Number(x), nil
	case float32:
		return Number(float64(x)), nil
	case int:
		return Number(float64(x)), nil
	case int64:
		return Number(float64(x)), nil
	case bool:
		return Boolean(x), nil
	default:
		return ParamValue{}, fmt.Errorf("unsupported parameter value type %T", v)
	}
}

// MarshalJSON encodes the value as its bare scalar.
func (p ParamValue) MarshalJSON() ([]byte, error) {
	switch p.Kind {
	case KindString:
		return json.Marshal(p.Str)
	case KindNumber:
		return json.Marshal(p.Num)
	case KindBool:
		return json.Marshal(p.Bool)
	}
	return nil, fmt.Errorf("unknown param kind %d", p.Kind)
}

// UnmarshalJSON decodes a bare scalar into a tagged value.
func (p *ParamValue) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v, err := FromAny(raw)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

func (p ParamValue) String() string {
	switch p.Kind {
	case KindString:
		return p.Str
	case KindNumber:
		return strconv.FormatFloat(p.Num, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(p.Bool)
	}
	return ""
}

// Params is one concrete parameter assignment for a strategy.
type Params map[string]ParamValue

// ParamGrid maps a parameter name to its ordered candidate values. A key with
// an empty value list is ignored during expansion.
type ParamGrid map[string][]ParamValue

// Clone returns a shallow copy safe to override independently.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Num returns the numeric value of key, or def when absent or non-numeric.
func (p Params) Num(key string, def float64) float64 {
	if v, ok := p[key]; ok && v.Kind == KindNumber {
		return v.Num
	}
	return def
}

// Int returns the numeric value of key truncated to int.
func (p Params) Int(key string, def int) int {
	if v, ok := p[key]; ok && v.Kind == KindNumber {
		return int(v.Num)
	}
	return def
}

// Flag returns the boolean value of key, or def when absent.
func (p Params) Flag(key string, def bool) bool {
	if v, ok := p[key]; ok && v.Kind == KindBool {
		return v.Bool
	}
	return def
}

// StableJSON serializes the params with sorted keys so that equal assignments
// always produce byte-identical output.
func (p Params) StableJSON() string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf := make([]byte, 0, 64)
	buf = append(buf, '{')
	for i, k := range keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		kb, _ := json.Marshal(k)
		vb, _ := json.Marshal(p[k])
		buf = append(buf, kb...)
		buf = append(buf, ':')
		buf = append(buf, vb...)
	}
	buf = append(buf, '}')
	return string(buf)
}

// Hash returns a stable hex digest of the normalized params, used for
// de-duplication and evaluation-cache keys.
func (p Params) Hash() string {
	return HashString(p.StableJSON())
}

// HashString hashes an arbitrary string into the short hex form used in cache
// keys.
func HashString(s string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return strconv.FormatUint(h.Sum64(), 16)
}
