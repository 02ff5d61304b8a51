package eval

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/nexus-automation/nexus/pkg/ast"
	"github.com/nexus-automation/nexus/pkg/lookup"
	"github.com/nexus-automation/nexus/pkg/value"
)

// lookupManager backs the lookup() builtin. Built once and reused across
// evaluations; lookup plugins carry no per-call state of their own.
var lookupManager = lookup.NewLookupManager()

// callBuiltin dispatches a bare function call, e.g. `len(x)`, `range(1, 5)`.
func callBuiltin(e *Evaluator, name string, pos []value.Value, kw map[string]value.Value, rawArgs []ast.Arg) (value.Value, error) {
	switch name {
	case "len":
		return builtinLen(argAt(pos, 0))
	case "str":
		return value.String(argAt(pos, 0).String()), nil
	case "int":
		return builtinInt(argAt(pos, 0))
	case "float":
		return builtinFloat(argAt(pos, 0))
	case "bool":
		return value.Bool(argAt(pos, 0).Truthy()), nil
	case "list":
		return builtinList(argAt(pos, 0))
	case "dict":
		if len(pos) == 0 {
			return value.NewDict(), nil
		}
		return argAt(pos, 0), nil
	case "range":
		return builtinRange(pos)
	case "min":
		return builtinMinMax(pos, true)
	case "max":
		return builtinMinMax(pos, false)
	case "sum":
		return builtinSum(pos)
	case "abs":
		return builtinAbs(argAt(pos, 0))
	case "round":
		return builtinRound(pos)
	case "sorted":
		lam, hasLam := lambdaArg(rawArgs, 1, "key")
		reverse := false
		if rv, ok := kw["reverse"]; ok {
			reverse = rv.Truthy()
		}
		return builtinSorted(e, argAt(pos, 0), lam, hasLam, reverse)
	case "reversed":
		return builtinReversed(argAt(pos, 0))
	case "enumerate":
		return builtinEnumerate(argAt(pos, 0))
	case "zip":
		return builtinZip(pos)
	case "any":
		return builtinAny(argAt(pos, 0))
	case "all":
		return builtinAll(argAt(pos, 0))
	case "lookup":
		return builtinLookup(pos)
	}
	return value.Null(), fmt.Errorf("unknown function %q", name)
}

// builtinLookup implements `lookup('env', 'HOME')`, `lookup('file', path)`,
// etc., dispatching to the registered lookup plugins.
func builtinLookup(pos []value.Value) (value.Value, error) {
	if len(pos) < 1 {
		return value.Null(), fmt.Errorf("lookup() requires a plugin name")
	}
	plugin, ok := pos[0].AsString()
	if !ok {
		return value.Null(), fmt.Errorf("lookup() plugin name must be a string")
	}
	terms := make([]string, 0, len(pos)-1)
	for _, p := range pos[1:] {
		terms = append(terms, p.String())
	}

	results, err := lookupManager.Lookup(context.Background(), plugin, terms, nil)
	if err != nil {
		return value.Null(), err
	}
	if len(results) == 1 {
		return value.FromGo(results[0]), nil
	}
	out := make([]value.Value, len(results))
	for i, r := range results {
		out[i] = value.FromGo(r)
	}
	return value.List(out), nil
}

func argAt(pos []value.Value, i int) value.Value {
	if i < len(pos) {
		return pos[i]
	}
	return value.Null()
}

func builtinLen(v value.Value) (value.Value, error) {
	switch v.Kind() {
	case value.KindString:
		s, _ := v.AsString()
		return value.Int(int64(len([]rune(s)))), nil
	case value.KindList:
		l, _ := v.AsList()
		return value.Int(int64(len(l))), nil
	case value.KindDict:
		d, _ := v.AsDict()
		return value.Int(int64(len(d))), nil
	}
	return value.Null(), fmt.Errorf("len() requires a string, list, or dict, got %s", v.TypeName())
}

func builtinInt(v value.Value) (value.Value, error) {
	if i, ok := v.AsInt(); ok {
		return value.Int(i), nil
	}
	if f, ok := v.AsFloat(); ok {
		return value.Int(int64(f)), nil
	}
	if b, ok := v.AsBool(); ok {
		if b {
			return value.Int(1), nil
		}
		return value.Int(0), nil
	}
	if s, ok := v.AsString(); ok {
		i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return value.Null(), fmt.Errorf("cannot convert %q to int", s)
		}
		return value.Int(i), nil
	}
	return value.Null(), fmt.Errorf("cannot convert %s to int", v.TypeName())
}

func builtinFloat(v value.Value) (value.Value, error) {
	if i, ok := v.AsInt(); ok {
		return value.Float(float64(i)), nil
	}
	if f, ok := v.AsFloat(); ok {
		return value.Float(f), nil
	}
	if s, ok := v.AsString(); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return value.Null(), fmt.Errorf("cannot convert %q to float", s)
		}
		return value.Float(f), nil
	}
	return value.Null(), fmt.Errorf("cannot convert %s to float", v.TypeName())
}

func builtinList(v value.Value) (value.Value, error) {
	if l, ok := v.AsList(); ok {
		return value.List(l), nil
	}
	if s, ok := v.AsString(); ok {
		runes := []rune(s)
		out := make([]value.Value, len(runes))
		for i, r := range runes {
			out[i] = value.String(string(r))
		}
		return value.List(out), nil
	}
	if _, ok := v.AsDict(); ok {
		keys := v.Keys()
		out := make([]value.Value, len(keys))
		for i, k := range keys {
			out[i] = value.String(k)
		}
		return value.List(out), nil
	}
	return value.Null(), fmt.Errorf("cannot convert %s to list", v.TypeName())
}

func builtinRange(pos []value.Value) (value.Value, error) {
	var start, stop, step int64 = 0, 0, 1
	switch len(pos) {
	case 1:
		s, ok := pos[0].AsInt()
		if !ok {
			return value.Null(), fmt.Errorf("range() requires int arguments")
		}
		stop = s
	case 2:
		a, ok1 := pos[0].AsInt()
		b, ok2 := pos[1].AsInt()
		if !ok1 || !ok2 {
			return value.Null(), fmt.Errorf("range() requires int arguments")
		}
		start, stop = a, b
	case 3:
		a, ok1 := pos[0].AsInt()
		b, ok2 := pos[1].AsInt()
		c, ok3 := pos[2].AsInt()
		if !ok1 || !ok2 || !ok3 {
			return value.Null(), fmt.Errorf("range() requires int arguments")
		}
		start, stop, step = a, b, c
	default:
		return value.Null(), fmt.Errorf("range() takes 1 to 3 arguments")
	}
	if step == 0 {
		return value.Null(), fmt.Errorf("range() step cannot be zero")
	}
	var out []value.Value
	if step > 0 {
		for i := start; i < stop; i += step {
			out = append(out, value.Int(i))
		}
	} else {
		for i := start; i > stop; i += step {
			out = append(out, value.Int(i))
		}
	}
	return value.List(out), nil
}

func builtinMinMax(pos []value.Value, wantMin bool) (value.Value, error) {
	items := pos
	if len(pos) == 1 {
		if l, ok := pos[0].AsList(); ok {
			items = l
		}
	}
	if len(items) == 0 {
		return value.Null(), fmt.Errorf("min()/max() requires at least one item")
	}
	best := items[0]
	for _, it := range items[1:] {
		c, err := value.Compare(it, best)
		if err != nil {
			return value.Null(), err
		}
		if (wantMin && c < 0) || (!wantMin && c > 0) {
			best = it
		}
	}
	return best, nil
}

func builtinSum(pos []value.Value) (value.Value, error) {
	items := pos
	if len(pos) == 1 {
		if l, ok := pos[0].AsList(); ok {
			items = l
		}
	}
	var total float64
	allInt := true
	var totalInt int64
	for _, it := range items {
		if i, ok := it.AsInt(); ok {
			totalInt += i
			total += float64(i)
			continue
		}
		if f, ok := it.AsFloat(); ok {
			allInt = false
			total += f
			continue
		}
		return value.Null(), fmt.Errorf("sum() requires numeric items")
	}
	if allInt {
		return value.Int(totalInt), nil
	}
	return value.Float(total), nil
}

func builtinAbs(v value.Value) (value.Value, error) {
	if i, ok := v.AsInt(); ok {
		if i < 0 {
			return value.Int(-i), nil
		}
		return value.Int(i), nil
	}
	if f, ok := v.AsFloat(); ok {
		if f < 0 {
			return value.Float(-f), nil
		}
		return value.Float(f), nil
	}
	return value.Null(), fmt.Errorf("abs() requires a numeric argument, got %s", v.TypeName())
}

func builtinRound(pos []value.Value) (value.Value, error) {
	v := argAt(pos, 0)
	digits := int64(0)
	if len(pos) > 1 {
		d, ok := pos[1].AsInt()
		if ok {
			digits = d
		}
	}
	f, ok := toFloat(v)
	if !ok {
		return value.Null(), fmt.Errorf("round() requires a numeric argument, got %s", v.TypeName())
	}
	mult := 1.0
	for i := int64(0); i < digits; i++ {
		mult *= 10
	}
	rounded := float64(int64(f*mult+sign(f)*0.5)) / mult
	if digits == 0 {
		return value.Int(int64(rounded)), nil
	}
	return value.Float(rounded), nil
}

func sign(f float64) float64 {
	if f < 0 {
		return -1
	}
	return 1
}

func builtinSorted(e *Evaluator, v value.Value, lam *ast.Lambda, hasLam bool, reverse bool) (value.Value, error) {
	l, ok := v.AsList()
	if !ok {
		return value.Null(), fmt.Errorf("sorted() requires a list, got %s", v.TypeName())
	}
	items := make([]value.Value, len(l))
	copy(items, l)
	var sortErr error
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if hasLam {
			ka, err := e.applyLambda(lam, a)
			if err != nil {
				sortErr = err
				return false
			}
			kb, err := e.applyLambda(lam, b)
			if err != nil {
				sortErr = err
				return false
			}
			a, b = ka, kb
		}
		c, err := value.Compare(a, b)
		if err != nil {
			sortErr = err
			return false
		}
		if reverse {
			return c > 0
		}
		return c < 0
	})
	if sortErr != nil {
		return value.Null(), sortErr
	}
	return value.List(items), nil
}

func builtinReversed(v value.Value) (value.Value, error) {
	l, ok := v.AsList()
	if !ok {
		return value.Null(), fmt.Errorf("reversed() requires a list, got %s", v.TypeName())
	}
	out := make([]value.Value, len(l))
	for i, it := range l {
		out[len(l)-1-i] = it
	}
	return value.List(out), nil
}

func builtinEnumerate(v value.Value) (value.Value, error) {
	l, ok := v.AsList()
	if !ok {
		return value.Null(), fmt.Errorf("enumerate() requires a list, got %s", v.TypeName())
	}
	out := make([]value.Value, len(l))
	for i, it := range l {
		out[i] = value.List([]value.Value{value.Int(int64(i)), it})
	}
	return value.List(out), nil
}

func builtinZip(pos []value.Value) (value.Value, error) {
	if len(pos) == 0 {
		return value.List(nil), nil
	}
	lists := make([][]value.Value, len(pos))
	minLen := -1
	for i, p := range pos {
		l, ok := p.AsList()
		if !ok {
			return value.Null(), fmt.Errorf("zip() requires list arguments")
		}
		lists[i] = l
		if minLen == -1 || len(l) < minLen {
			minLen = len(l)
		}
	}
	out := make([]value.Value, minLen)
	for i := 0; i < minLen; i++ {
		tuple := make([]value.Value, len(lists))
		for j, l := range lists {
			tuple[j] = l[i]
		}
		out[i] = value.List(tuple)
	}
	return value.List(out), nil
}

func builtinAny(v value.Value) (value.Value, error) {
	l, ok := v.AsList()
	if !ok {
		return value.Null(), fmt.Errorf("any() requires a list, got %s", v.TypeName())
	}
	for _, it := range l {
		if it.Truthy() {
			return value.Bool(true), nil
		}
	}
	return value.Bool(false), nil
}

func builtinAll(v value.Value) (value.Value, error) {
	l, ok := v.AsList()
	if !ok {
		return value.Null(), fmt.Errorf("all() requires a list, got %s", v.TypeName())
	}
	for _, it := range l {
		if !it.Truthy() {
			return value.Bool(false), nil
		}
	}
	return value.Bool(true), nil
}
