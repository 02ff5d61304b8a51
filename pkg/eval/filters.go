package eval

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"hash"
	"regexp"
	"strings"

	"github.com/nexus-automation/nexus/pkg/ast"
	"github.com/nexus-automation/nexus/pkg/value"
)

// callMethod dispatches `receiver.method(args)`.
func callMethod(e *Evaluator, recv value.Value, method string, pos []value.Value, kw map[string]value.Value, rawArgs []ast.Arg) (value.Value, error) {
	switch method {
	case "upper":
		s, ok := recv.AsString()
		if !ok {
			return value.Null(), fmt.Errorf("upper() requires a string receiver")
		}
		return value.String(strings.ToUpper(s)), nil
	case "lower":
		s, ok := recv.AsString()
		if !ok {
			return value.Null(), fmt.Errorf("lower() requires a string receiver")
		}
		return value.String(strings.ToLower(s)), nil
	case "strip", "trim":
		s, ok := recv.AsString()
		if !ok {
			return value.Null(), fmt.Errorf("strip() requires a string receiver")
		}
		return value.String(strings.TrimSpace(s)), nil
	case "split":
		s, ok := recv.AsString()
		if !ok {
			return value.Null(), fmt.Errorf("split() requires a string receiver")
		}
		sep := " "
		if len(pos) > 0 {
			if ss, ok := pos[0].AsString(); ok {
				sep = ss
			}
		}
		var parts []string
		if len(pos) == 0 {
			parts = strings.Fields(s)
		} else {
			parts = strings.Split(s, sep)
		}
		out := make([]value.Value, len(parts))
		for i, p := range parts {
			out[i] = value.String(p)
		}
		return value.List(out), nil
	case "join":
		l, ok := recv.AsList()
		if !ok {
			return value.Null(), fmt.Errorf("join() requires a list receiver")
		}
		sep := ""
		if len(pos) > 0 {
			if ss, ok := pos[0].AsString(); ok {
				sep = ss
			}
		}
		parts := make([]string, len(l))
		for i, it := range l {
			parts[i] = it.String()
		}
		return value.String(strings.Join(parts, sep)), nil
	case "replace":
		s, ok := recv.AsString()
		if !ok {
			return value.Null(), fmt.Errorf("replace() requires a string receiver")
		}
		if len(pos) < 2 {
			return value.Null(), fmt.Errorf("replace() requires two arguments")
		}
		old, _ := pos[0].AsString()
		newS, _ := pos[1].AsString()
		return value.String(strings.ReplaceAll(s, old, newS)), nil
	case "startswith", "starts_with":
		s, _ := recv.AsString()
		p := ""
		if len(pos) > 0 {
			p, _ = pos[0].AsString()
		}
		return value.Bool(strings.HasPrefix(s, p)), nil
	case "endswith", "ends_with":
		s, _ := recv.AsString()
		p := ""
		if len(pos) > 0 {
			p, _ = pos[0].AsString()
		}
		return value.Bool(strings.HasSuffix(s, p)), nil
	case "contains":
		return evalIn(argAt(pos, 0), recv)
	case "keys":
		if _, ok := recv.AsDict(); !ok {
			return value.Null(), fmt.Errorf("keys() requires a dict receiver")
		}
		keys := recv.Keys()
		out := make([]value.Value, len(keys))
		for i, k := range keys {
			out[i] = value.String(k)
		}
		return value.List(out), nil
	case "values":
		d, ok := recv.AsDict()
		if !ok {
			return value.Null(), fmt.Errorf("values() requires a dict receiver")
		}
		keys := recv.Keys()
		out := make([]value.Value, len(keys))
		for i, k := range keys {
			out[i] = d[k]
		}
		return value.List(out), nil
	case "items":
		d, ok := recv.AsDict()
		if !ok {
			return value.Null(), fmt.Errorf("items() requires a dict receiver")
		}
		keys := recv.Keys()
		out := make([]value.Value, len(keys))
		for i, k := range keys {
			out[i] = value.List([]value.Value{value.String(k), d[k]})
		}
		return value.List(out), nil
	case "get":
		d, ok := recv.AsDict()
		if !ok {
			return value.Null(), fmt.Errorf("get() requires a dict receiver")
		}
		key, _ := argAt(pos, 0).AsString()
		if v, ok := d[key]; ok {
			return v, nil
		}
		if len(pos) > 1 {
			return pos[1], nil
		}
		return value.Null(), nil
	case "append":
		l, ok := recv.AsList()
		if !ok {
			return value.Null(), fmt.Errorf("append() requires a list receiver")
		}
		out := make([]value.Value, len(l)+1)
		copy(out, l)
		out[len(l)] = argAt(pos, 0)
		return value.List(out), nil
	}
	return value.Null(), fmt.Errorf("unknown method %q on %s", method, recv.TypeName())
}

// callFilter dispatches `input | name(args)` (Jinja-style pipe filters).
// Most filters mirror the equivalent method; a handful (default, select,
// map, unique, flatten) only make sense in filter position.
func callFilter(e *Evaluator, input value.Value, name string, pos []value.Value, kw map[string]value.Value, rawArgs []ast.Arg) (value.Value, error) {
	switch name {
	case "default":
		if input.IsNull() {
			return argAt(pos, 0), nil
		}
		boolean := len(pos) > 1 && pos[1].Truthy()
		if boolean && !input.Truthy() {
			return argAt(pos, 0), nil
		}
		return input, nil
	case "select":
		return filterSelect(e, input, rawArgs, false)
	case "reject":
		return filterSelect(e, input, rawArgs, true)
	case "map":
		return filterMap(e, input, rawArgs)
	case "unique":
		return filterUnique(input)
	case "flatten":
		return filterFlatten(input)
	case "first":
		l, ok := input.AsList()
		if !ok || len(l) == 0 {
			return value.Null(), nil
		}
		return l[0], nil
	case "last":
		l, ok := input.AsList()
		if !ok || len(l) == 0 {
			return value.Null(), nil
		}
		return l[len(l)-1], nil
	case "title":
		s, ok := input.AsString()
		if !ok {
			return value.Null(), fmt.Errorf("title filter requires a string input")
		}
		return value.String(strings.Title(s)), nil
	case "capitalize":
		s, ok := input.AsString()
		if !ok {
			return value.Null(), fmt.Errorf("capitalize filter requires a string input")
		}
		if len(s) == 0 {
			return value.String(s), nil
		}
		return value.String(strings.ToUpper(s[:1]) + s[1:]), nil
	case "regex_replace":
		return filterRegexReplace(input, pos)
	case "regex_search":
		return filterRegexSearch(input, pos)
	case "regex_findall":
		return filterRegexFindall(input, pos)
	case "b64encode":
		s, ok := input.AsString()
		if !ok {
			return value.Null(), fmt.Errorf("b64encode filter requires a string input")
		}
		return value.String(base64.StdEncoding.EncodeToString([]byte(s))), nil
	case "b64decode":
		s, ok := input.AsString()
		if !ok {
			return value.Null(), fmt.Errorf("b64decode filter requires a string input")
		}
		decoded, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return value.Null(), fmt.Errorf("b64decode: %w", err)
		}
		return value.String(string(decoded)), nil
	case "hash", "md5", "sha1", "sha256", "sha512":
		return filterHash(input, name, pos)
	}
	return callMethod(e, input, name, pos, kw, rawArgs)
}

func filterRegexReplace(input value.Value, pos []value.Value) (value.Value, error) {
	s, ok := input.AsString()
	if !ok {
		return value.Null(), fmt.Errorf("regex_replace filter requires a string input")
	}
	if len(pos) < 2 {
		return value.Null(), fmt.Errorf("regex_replace filter requires a pattern and a replacement")
	}
	pattern, _ := pos[0].AsString()
	replacement, _ := pos[1].AsString()
	re, err := regexp.Compile(pattern)
	if err != nil {
		return value.Null(), fmt.Errorf("regex_replace: %w", err)
	}
	return value.String(re.ReplaceAllString(s, replacement)), nil
}

func filterRegexSearch(input value.Value, pos []value.Value) (value.Value, error) {
	s, ok := input.AsString()
	if !ok {
		return value.Null(), fmt.Errorf("regex_search filter requires a string input")
	}
	if len(pos) < 1 {
		return value.Null(), fmt.Errorf("regex_search filter requires a pattern")
	}
	pattern, _ := pos[0].AsString()
	re, err := regexp.Compile(pattern)
	if err != nil {
		return value.Null(), fmt.Errorf("regex_search: %w", err)
	}
	return value.String(re.FindString(s)), nil
}

func filterRegexFindall(input value.Value, pos []value.Value) (value.Value, error) {
	s, ok := input.AsString()
	if !ok {
		return value.Null(), fmt.Errorf("regex_findall filter requires a string input")
	}
	if len(pos) < 1 {
		return value.Null(), fmt.Errorf("regex_findall filter requires a pattern")
	}
	pattern, _ := pos[0].AsString()
	re, err := regexp.Compile(pattern)
	if err != nil {
		return value.Null(), fmt.Errorf("regex_findall: %w", err)
	}
	matches := re.FindAllString(s, -1)
	out := make([]value.Value, len(matches))
	for i, m := range matches {
		out[i] = value.String(m)
	}
	return value.List(out), nil
}

func filterHash(input value.Value, name string, pos []value.Value) (value.Value, error) {
	s, ok := input.AsString()
	if !ok {
		return value.Null(), fmt.Errorf("%s filter requires a string input", name)
	}

	algo := name
	if name == "hash" {
		algo = "sha256"
		if len(pos) > 0 {
			if a, ok := pos[0].AsString(); ok {
				algo = a
			}
		}
	}

	var h hash.Hash
	switch algo {
	case "md5":
		h = md5.New()
	case "sha1":
		h = sha1.New()
	case "sha256":
		h = sha256.New()
	case "sha512":
		h = sha512.New()
	default:
		return value.Null(), fmt.Errorf("hash: unknown algorithm %q", algo)
	}
	h.Write([]byte(s))
	return value.String(hex.EncodeToString(h.Sum(nil))), nil
}

func filterSelect(e *Evaluator, input value.Value, rawArgs []ast.Arg, negate bool) (value.Value, error) {
	l, ok := input.AsList()
	if !ok {
		return value.Null(), fmt.Errorf("select/reject requires a list input")
	}
	lam, hasLam := lambdaArg(rawArgs, 0, "")
	var out []value.Value
	for _, it := range l {
		keep := it.Truthy()
		if hasLam {
			r, err := e.applyLambda(lam, it)
			if err != nil {
				return value.Null(), err
			}
			keep = r.Truthy()
		}
		if negate {
			keep = !keep
		}
		if keep {
			out = append(out, it)
		}
	}
	return value.List(out), nil
}

func filterMap(e *Evaluator, input value.Value, rawArgs []ast.Arg) (value.Value, error) {
	l, ok := input.AsList()
	if !ok {
		return value.Null(), fmt.Errorf("map requires a list input")
	}
	lam, hasLam := lambdaArg(rawArgs, 0, "")
	if !hasLam {
		return value.Null(), fmt.Errorf("map requires a lambda argument")
	}
	out := make([]value.Value, len(l))
	for i, it := range l {
		r, err := e.applyLambda(lam, it)
		if err != nil {
			return value.Null(), err
		}
		out[i] = r
	}
	return value.List(out), nil
}

func filterUnique(input value.Value) (value.Value, error) {
	l, ok := input.AsList()
	if !ok {
		return value.Null(), fmt.Errorf("unique requires a list input")
	}
	var out []value.Value
	for _, it := range l {
		dup := false
		for _, seen := range out {
			if seen.Equal(it) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, it)
		}
	}
	return value.List(out), nil
}

func filterFlatten(input value.Value) (value.Value, error) {
	l, ok := input.AsList()
	if !ok {
		return value.Null(), fmt.Errorf("flatten requires a list input")
	}
	var out []value.Value
	for _, it := range l {
		if sub, ok := it.AsList(); ok {
			out = append(out, sub...)
		} else {
			out = append(out, it)
		}
	}
	return value.List(out), nil
}
