// Package koda implements the KODA data format: a human-authorable text
// syntax and a canonical, deterministic binary encoding, with length-prefixed
// streaming framing tying the two together.
package koda

import (
	"fmt"
	"math"
	"sort"
)

// Type identifies which of the seven KODA value variants a Value holds.
type Type int8

// The seven KODA value variants.
const (
	TypeNull Type = iota
	TypeBool
	TypeInt
	TypeFloat
	TypeString
	TypeArray
	TypeObject

	numTypes
)

var typeNames = [numTypes]string{
	"null", "bool", "int", "float", "string", "array", "object",
}

// String returns a human-readable name for t.
func (t Type) String() string {
	if t < 0 || t >= numTypes {
		return "<unknown>"
	}
	return typeNames[t]
}

// Pair is one key/value entry of an Object, in insertion order.
type Pair struct {
	Key   string
	Value *Value
}

// Value is the KODA tagged variant: exactly one of Null, Bool, Int, Float,
// String, Array, or Object. The zero Value is Null.
//
// Values are treated as immutable by the engine: parse and decode return a
// freshly built tree owned by the caller, and encode only ever reads the
// tree it is given.
type Value struct {
	typ         Type
	boolValue   bool
	intValue    int64
	floatValue  float64
	stringValue string
	arrayValue  []*Value
	objectValue []Pair
}

// Null is the shared Null value. Callers may use it directly: Set, the only
// method that mutates a Value in place, rejects non-Object Values.
var Null = &Value{typ: TypeNull}

// NewBool returns a Bool Value.
func NewBool(b bool) *Value { return &Value{typ: TypeBool, boolValue: b} }

// NewInt returns an Int Value.
func NewInt(i int64) *Value { return &Value{typ: TypeInt, intValue: i} }

// NewFloat returns a Float Value.
func NewFloat(f float64) *Value { return &Value{typ: TypeFloat, floatValue: f} }

// NewString returns a String Value. s must be well-formed UTF-8; callers
// that cannot guarantee this should validate before calling.
func NewString(s string) *Value { return &Value{typ: TypeString, stringValue: s} }

// NewArray returns an Array Value containing elems in order. The slice is
// copied so the caller may reuse its backing array.
func NewArray(elems ...*Value) *Value {
	v := &Value{typ: TypeArray, arrayValue: make([]*Value, len(elems))}
	copy(v.arrayValue, elems)
	return v
}

// NewObject returns an empty Object Value. Use Set to add pairs.
func NewObject() *Value {
	return &Value{typ: TypeObject}
}

// Type reports the variant held by v.
func (v *Value) Type() Type { return v.typ }

// AsBool returns the boolean payload, or false and an error if v is not Bool.
func (v *Value) AsBool() (bool, error) {
	if v.typ != TypeBool {
		return false, fmt.Errorf("koda: value is %s, not bool", v.typ)
	}
	return v.boolValue, nil
}

// AsInt returns the int64 payload, or 0 and an error if v is not Int.
func (v *Value) AsInt() (int64, error) {
	if v.typ != TypeInt {
		return 0, fmt.Errorf("koda: value is %s, not int", v.typ)
	}
	return v.intValue, nil
}

// AsFloat returns the float64 payload, or 0 and an error if v is not Float.
func (v *Value) AsFloat() (float64, error) {
	if v.typ != TypeFloat {
		return 0, fmt.Errorf("koda: value is %s, not float", v.typ)
	}
	return v.floatValue, nil
}

// AsString returns the string payload, or "" and an error if v is not String.
func (v *Value) AsString() (string, error) {
	if v.typ != TypeString {
		return "", fmt.Errorf("koda: value is %s, not string", v.typ)
	}
	return v.stringValue, nil
}

// AsArray returns the element slice, or nil and an error if v is not Array.
// The returned slice is shared with v and must not be mutated.
func (v *Value) AsArray() ([]*Value, error) {
	if v.typ != TypeArray {
		return nil, fmt.Errorf("koda: value is %s, not array", v.typ)
	}
	return v.arrayValue, nil
}

// AsPairs returns the Object's pairs in insertion order, or nil and an error
// if v is not Object. The returned slice is shared with v and must not be
// mutated.
func (v *Value) AsPairs() ([]Pair, error) {
	if v.typ != TypeObject {
		return nil, fmt.Errorf("koda: value is %s, not object", v.typ)
	}
	return v.objectValue, nil
}

// Index is a fluent accessor for array elements. It returns Null instead of
// an error when v is not an Array or i is out of range.
func (v *Value) Index(i int) *Value {
	if v.typ != TypeArray || i < 0 || i >= len(v.arrayValue) {
		return Null
	}
	return v.arrayValue[i]
}

// Key is a fluent accessor for object members. It returns Null instead of an
// error when v is not an Object or k is not present.
func (v *Value) Key(k string) *Value {
	if v.typ != TypeObject {
		return Null
	}
	for _, p := range v.objectValue {
		if p.Key == k {
			return p.Value
		}
	}
	return Null
}

// Set inserts or replaces the pair (key, val) on an Object Value, preserving
// the position of an existing key or appending a new one at the end. It
// returns an error if v is not an Object.
func (v *Value) Set(key string, val *Value) error {
	if v.typ != TypeObject {
		return fmt.Errorf("koda: Set on non-object value %s", v.typ)
	}
	for i, p := range v.objectValue {
		if p.Key == key {
			v.objectValue[i].Value = val
			return nil
		}
	}
	v.objectValue = append(v.objectValue, Pair{Key: key, Value: val})
	return nil
}

// Len returns the number of elements of an Array or pairs of an Object, and
// 0 for any other Type.
func (v *Value) Len() int {
	switch v.typ {
	case TypeArray:
		return len(v.arrayValue)
	case TypeObject:
		return len(v.objectValue)
	default:
		return 0
	}
}

// Depth returns the nesting depth of v: 1 for scalars, 1 + the maximum
// depth of any child for Array and Object.
func (v *Value) Depth() int {
	switch v.typ {
	case TypeArray:
		max := 0
		for _, e := range v.arrayValue {
			if d := e.Depth(); d > max {
				max = d
			}
		}
		return 1 + max
	case TypeObject:
		max := 0
		for _, p := range v.objectValue {
			if d := p.Value.Depth(); d > max {
				max = d
			}
		}
		return 1 + max
	default:
		return 1
	}
}

// Equal reports whether v and other are structurally equal. Object key
// order does not affect equality; Array order does. Int and Float never
// compare equal even at the same numeric value. Float equality treats all
// NaN bit patterns as equal to each other, matching the canonicalization
// comparisons described for the binary decoder.
func (v *Value) Equal(other *Value) bool {
	if v == nil || other == nil {
		return v == other
	}
	if v.typ != other.typ {
		return false
	}
	switch v.typ {
	case TypeNull:
		return true
	case TypeBool:
		return v.boolValue == other.boolValue
	case TypeInt:
		return v.intValue == other.intValue
	case TypeFloat:
		if math.IsNaN(v.floatValue) && math.IsNaN(other.floatValue) {
			return true
		}
		return math.Float64bits(v.floatValue) == math.Float64bits(other.floatValue)
	case TypeString:
		return v.stringValue == other.stringValue
	case TypeArray:
		if len(v.arrayValue) != len(other.arrayValue) {
			return false
		}
		for i, e := range v.arrayValue {
			if !e.Equal(other.arrayValue[i]) {
				return false
			}
		}
		return true
	case TypeObject:
		if len(v.objectValue) != len(other.objectValue) {
			return false
		}
		am := make(map[string]*Value, len(v.objectValue))
		for _, p := range v.objectValue {
			am[p.Key] = p.Value
		}
		bm := make(map[string]*Value, len(other.objectValue))
		for _, p := range other.objectValue {
			bm[p.Key] = p.Value
		}
		if len(am) != len(v.objectValue) || len(bm) != len(other.objectValue) {
			// duplicate keys snuck in somehow; fall back to strict order compare
			for i, p := range v.objectValue {
				if p.Key != other.objectValue[i].Key || !p.Value.Equal(other.objectValue[i].Value) {
					return false
				}
			}
			return true
		}
		for k, av := range am {
			bv, ok := bm[k]
			if !ok || !av.Equal(bv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// sortedKeys adds every key used by any Object in v's tree to set.
func sortedKeys(v *Value, set map[string]struct{}) {
	switch v.typ {
	case TypeArray:
		for _, e := range v.arrayValue {
			sortedKeys(e, set)
		}
	case TypeObject:
		for _, p := range v.objectValue {
			set[p.Key] = struct{}{}
			sortedKeys(p.Value, set)
		}
	}
}

// collectSortedKeys returns the deduplicated, lexicographically UTF-8-sorted
// list of every key used by any Object in v's tree. It is the key dictionary
// construction rule used by the binary encoder.
func collectSortedKeys(v *Value) []string {
	set := make(map[string]struct{})
	sortedKeys(v, set)
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
