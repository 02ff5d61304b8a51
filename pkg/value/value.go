// Package value implements Nexus's tagged Value union: the runtime
// representation produced by evaluating expressions and exchanged between
// the scheduler, modules, and the variable store.
package value

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies which variant a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindDict
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindDict:
		return "dict"
	default:
		return "unknown"
	}
}

// Value is the tagged union described in the data model: Null, Bool, Int
// (64-bit signed), Float (IEEE-754 double), String, List of Value, and
// Dict (String -> Value). Values are immutable once constructed; mutating
// methods on List/Dict return new Values rather than editing in place.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	list []Value
	dict map[string]Value
	// keys preserves first-insertion order for deterministic iteration;
	// the data model says insertion order is irrelevant semantically, but
	// deterministic output (for diffs, recaps, JSON) still wants an order.
	keys []string
}

func Null() Value                 { return Value{kind: KindNull} }
func Bool(b bool) Value           { return Value{kind: KindBool, b: b} }
func Int(i int64) Value           { return Value{kind: KindInt, i: i} }
func Float(f float64) Value       { return Value{kind: KindFloat, f: f} }
func String(s string) Value       { return Value{kind: KindString, s: s} }

func List(items []Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: KindList, list: cp}
}

func Dict(m map[string]Value) Value {
	d := Value{kind: KindDict, dict: make(map[string]Value, len(m)), keys: make([]string, 0, len(m))}
	for k, v := range m {
		d.dict[k] = v
		d.keys = append(d.keys, k)
	}
	return d
}

// NewDict returns an empty, ordered Dict Value builder-friendly constructor.
func NewDict() Value {
	return Value{kind: KindDict, dict: map[string]Value{}}
}

// WithKey returns a copy of a Dict Value with key set to v (insertion
// order preserved; re-setting an existing key keeps its original position).
func (v Value) WithKey(key string, val Value) Value {
	if v.kind != KindDict {
		v = NewDict()
	}
	nd := make(map[string]Value, len(v.dict)+1)
	for k, vv := range v.dict {
		nd[k] = vv
	}
	_, existed := nd[key]
	nd[key] = val
	keys := v.keys
	if !existed {
		keys = append(append([]string{}, keys...), key)
	}
	return Value{kind: KindDict, dict: nd, keys: keys}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) AsBool() (bool, bool)       { return v.b, v.kind == KindBool }
func (v Value) AsInt() (int64, bool)       { return v.i, v.kind == KindInt }
func (v Value) AsFloat() (float64, bool)   { return v.f, v.kind == KindFloat }
func (v Value) AsString() (string, bool)   { return v.s, v.kind == KindString }
func (v Value) AsList() ([]Value, bool)    { return v.list, v.kind == KindList }
func (v Value) AsDict() (map[string]Value, bool) { return v.dict, v.kind == KindDict }

// Keys returns the dict's keys in insertion order. Empty for non-dicts.
func (v Value) Keys() []string {
	if v.kind != KindDict {
		return nil
	}
	out := make([]string, len(v.keys))
	copy(out, v.keys)
	return out
}

// Truthy implements the spec's truthiness rule: Null, Bool(false), numeric
// zero, and empty string/list/dict are falsy; everything else is truthy.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNull:
		return false
	case KindBool:
		return v.b
	case KindInt:
		return v.i != 0
	case KindFloat:
		return v.f != 0
	case KindString:
		return v.s != ""
	case KindList:
		return len(v.list) > 0
	case KindDict:
		return len(v.dict) > 0
	}
	return false
}

// Equal implements structural equality. Int and Float compare numerically
// across kinds (1 == 1.0); all other cross-kind comparisons are unequal.
func (v Value) Equal(o Value) bool {
	if v.kind == KindInt && o.kind == KindFloat {
		return float64(v.i) == o.f
	}
	if v.kind == KindFloat && o.kind == KindInt {
		return v.f == float64(o.i)
	}
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindString:
		return v.s == o.s
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case KindDict:
		if len(v.dict) != len(o.dict) {
			return false
		}
		for k, vv := range v.dict {
			ov, ok := o.dict[k]
			if !ok || !vv.Equal(ov) {
				return false
			}
		}
		return true
	}
	return false
}

// Compare orders two Values per the data model: defined between two Ints,
// two Floats (NaN treated equal for sorting stability), Int<->Float, and
// two Strings. Returns an error for any other pairing.
func Compare(a, b Value) (int, error) {
	switch {
	case a.kind == KindInt && b.kind == KindInt:
		return cmpInt64(a.i, b.i), nil
	case a.kind == KindFloat && b.kind == KindFloat:
		return cmpFloatStable(a.f, b.f), nil
	case a.kind == KindInt && b.kind == KindFloat:
		return cmpFloatStable(float64(a.i), b.f), nil
	case a.kind == KindFloat && b.kind == KindInt:
		return cmpFloatStable(a.f, float64(b.i)), nil
	case a.kind == KindString && b.kind == KindString:
		return strings.Compare(a.s, b.s), nil
	}
	return 0, fmt.Errorf("cannot order %s and %s", a.kind, b.kind)
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpFloatStable(a, b float64) int {
	if math.IsNaN(a) && math.IsNaN(b) {
		return 0
	}
	if math.IsNaN(a) {
		return 1
	}
	if math.IsNaN(b) {
		return -1
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// String renders a Value for display/interpolation purposes.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return v.s
	case KindList:
		parts := make([]string, len(v.list))
		for i, e := range v.list {
			parts[i] = e.GoString()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindDict:
		parts := make([]string, 0, len(v.dict))
		for _, k := range v.keysSorted() {
			parts = append(parts, fmt.Sprintf("%s: %s", k, v.dict[k].GoString()))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return ""
}

// GoString renders a Value the way it would appear nested inside a list or
// dict's String() (quoted strings, recursive containers).
func (v Value) GoString() string {
	if v.kind == KindString {
		return strconv.Quote(v.s)
	}
	return v.String()
}

func (v Value) keysSorted() []string {
	if len(v.keys) == len(v.dict) {
		return v.keys
	}
	ks := make([]string, 0, len(v.dict))
	for k := range v.dict {
		ks = append(ks, k)
	}
	sort.Strings(ks)
	return ks
}

// FromGo converts a plain Go value (as produced by yaml.v3 unmarshalling
// into interface{}) into a Value.
func FromGo(in interface{}) Value {
	switch t := in.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(t)
	case int:
		return Int(int64(t))
	case int64:
		return Int(t)
	case float64:
		return Float(t)
	case string:
		return String(t)
	case []interface{}:
		items := make([]Value, len(t))
		for i, e := range t {
			items[i] = FromGo(e)
		}
		return List(items)
	case []Value:
		return List(t)
	case map[string]interface{}:
		d := NewDict()
		for k, e := range t {
			d = d.WithKey(k, FromGo(e))
		}
		return d
	case map[interface{}]interface{}:
		d := NewDict()
		for k, e := range t {
			d = d.WithKey(fmt.Sprintf("%v", k), FromGo(e))
		}
		return d
	case Value:
		return t
	default:
		return String(fmt.Sprintf("%v", t))
	}
}

// ToGo converts a Value back into a plain Go value (for module args,
// JSON/YAML marshalling, and interop with the Ansible-derived Result type).
func (v Value) ToGo() interface{} {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindList:
		out := make([]interface{}, len(v.list))
		for i, e := range v.list {
			out[i] = e.ToGo()
		}
		return out
	case KindDict:
		out := make(map[string]interface{}, len(v.dict))
		for k, e := range v.dict {
			out[k] = e.ToGo()
		}
		return out
	}
	return nil
}

// TypeName reports the kind name, used by builtins and error messages
// (`string`, `int`, `list`, ...).
func (v Value) TypeName() string { return v.kind.String() }
