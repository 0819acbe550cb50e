package command

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Kind tags the scalar stored in a Value.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindInt
	KindFloat
	KindString
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	default:
		return "invalid"
	}
}

// Value is a tagged scalar received from a provider's argument map.
// The zero Value has KindInvalid.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
	b    bool
}

func IntValue(v int64) Value     { return Value{kind: KindInt, i: v} }
func FloatValue(v float64) Value { return Value{kind: KindFloat, f: v} }
func StringValue(v string) Value { return Value{kind: KindString, s: v} }
func BoolValue(v bool) Value     { return Value{kind: KindBool, b: v} }

// Kind returns the tag.
func (v Value) Kind() Kind { return v.kind }

// Int returns the value as an integer. Floats are accepted when they carry
// no fractional part; numeric strings are accepted because some models
// quote numbers.
func (v Value) Int() (int64, bool) {
	switch v.kind {
	case KindInt:
		return v.i, true
	case KindFloat:
		if v.f == math.Trunc(v.f) && v.f >= math.MinInt64 && v.f < math.MaxInt64 {
			return int64(v.f), true
		}
		return 0, false
	case KindString:
		n, err := strconv.ParseInt(strings.TrimSpace(v.s), 10, 64)
		return n, err == nil
	case KindBool:
		return 0, false
	default:
		return 0, false
	}
}

// Float returns the value as a float64.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64)
		return f, err == nil
	case KindBool:
		return 0, false
	default:
		return 0, false
	}
}

// Str returns the value as a string. Only KindString converts.
func (v Value) Str() (string, bool) {
	switch v.kind {
	case KindString:
		return v.s, true
	case KindInt, KindFloat, KindBool:
		return "", false
	default:
		return "", false
	}
}

// Bool returns the value as a boolean. "true"/"false" strings convert.
func (v Value) Bool() (bool, bool) {
	switch v.kind {
	case KindBool:
		return v.b, true
	case KindString:
		b, err := strconv.ParseBool(strings.TrimSpace(v.s))
		return b, err == nil
	case KindInt, KindFloat:
		return false, false
	default:
		return false, false
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return strconv.Quote(v.s)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return "<invalid>"
	}
}

// MarshalJSON encodes the scalar as its natural JSON form.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindInt:
		return []byte(strconv.FormatInt(v.i, 10)), nil
	case KindFloat:
		return json.Marshal(v.f)
	case KindString:
		return json.Marshal(v.s)
	case KindBool:
		return json.Marshal(v.b)
	default:
		return nil, fmt.Errorf("cannot marshal %s value", v.kind)
	}
}

// Arg is one named argument.
type Arg struct {
	Key   string
	Value Value
}

// Args is an ordered argument map. Later duplicates shadow earlier ones.
type Args []Arg

// Get returns the last value stored under key.
func (a Args) Get(key string) (Value, bool) {
	for i := len(a) - 1; i >= 0; i-- {
		if a[i].Key == key {
			return a[i].Value, true
		}
	}
	return Value{}, false
}

// Has reports whether key is present.
func (a Args) Has(key string) bool {
	_, ok := a.Get(key)
	return ok
}

// Keys returns argument names in order of first appearance.
func (a Args) Keys() []string {
	seen := make(map[string]struct{}, len(a))
	keys := make([]string, 0, len(a))
	for _, arg := range a {
		if _, ok := seen[arg.Key]; ok {
			continue
		}
		seen[arg.Key] = struct{}{}
		keys = append(keys, arg.Key)
	}
	return keys
}

// MarshalJSON encodes Args as a JSON object preserving key order.
func (a Args) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range a.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, _ := a.Get(key)
		data, err := v.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("arg %q: %w", key, err)
		}
		buf.Write(data)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ErrUnsupportedValue is returned by ParseArgs for JSON values that are not
// scalars.
var ErrUnsupportedValue = errors.New("unsupported argument value")

// ParseArgs decodes a JSON object of scalar values, preserving key order.
// Empty input yields no arguments and a null value leaves its key out.
func ParseArgs(raw []byte) (Args, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("parse arguments: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("parse arguments: expected object, got %v", tok)
	}

	var args Args
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("parse arguments: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("parse arguments: expected key, got %v", keyTok)
		}
		valTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("parse arguments: %q: %w", key, err)
		}
		if valTok == nil {
			continue
		}
		val, err := scalarFromToken(valTok)
		if err != nil {
			return nil, fmt.Errorf("parse arguments: %q: %w", key, err)
		}
		args = append(args, Arg{Key: key, Value: val})
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("parse arguments: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("parse arguments: trailing data")
	}
	return args, nil
}

func scalarFromToken(tok json.Token) (Value, error) {
	switch v := tok.(type) {
	case json.Number:
		s := v.String()
		if !strings.ContainsAny(s, ".eE") {
			if n, err := v.Int64(); err == nil {
				return IntValue(n), nil
			}
		}
		f, err := v.Float64()
		if err != nil {
			return Value{}, err
		}
		return FloatValue(f), nil
	case string:
		return StringValue(v), nil
	case bool:
		return BoolValue(v), nil
	case json.Delim:
		return Value{}, fmt.Errorf("%w: nested %v", ErrUnsupportedValue, v)
	default:
		return Value{}, fmt.Errorf("%w: %T", ErrUnsupportedValue, tok)
	}
}

// ToolInvocation is a provider function call normalised to scalar arguments.
type ToolInvocation struct {
	ID   string
	Name string
	Args Args
}
