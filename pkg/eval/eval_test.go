package eval

import (
	"testing"

	"github.com/nexus-automation/nexus/pkg/value"
)

func evalStr(t *testing.T, src string, ctx *Context) value.Value {
	t.Helper()
	v, err := Eval(src, ctx)
	if err != nil {
		t.Fatalf("Eval(%q) failed: %v", src, err)
	}
	return v
}

func TestArithmetic(t *testing.T) {
	ctx := NewContext()
	cases := map[string]value.Value{
		"1 + 2":       value.Int(3),
		"2 * 3 + 1":   value.Int(7),
		"2 + 3 * 2":   value.Int(8),
		"(2 + 3) * 2": value.Int(10),
		"7 % 3":       value.Int(1),
		"1.5 + 1":     value.Float(2.5),
		"-5 + 2":      value.Int(-3),
	}
	for expr, want := range cases {
		got := evalStr(t, expr, ctx)
		if !got.Equal(want) {
			t.Errorf("%s = %v, want %v", expr, got, want)
		}
	}
}

func TestComparisonsAndLogic(t *testing.T) {
	ctx := NewContext()
	cases := map[string]bool{
		"1 < 2":            true,
		"2 <= 2":           true,
		"3 > 4":            false,
		"1 == 1.0":         true,
		"1 != 2":           true,
		"true and false":   false,
		"true or false":    true,
		"not false":        true,
		"1 < 2 and 3 < 4":  true,
		"'a' in ['a','b']": true,
		"'z' not in ['a']": true,
	}
	for expr, want := range cases {
		got := evalStr(t, expr, ctx)
		b, ok := got.AsBool()
		if !ok || b != want {
			t.Errorf("%s = %v, want %v", expr, got, want)
		}
	}
}

func TestTernary(t *testing.T) {
	ctx := NewContext()
	got := evalStr(t, "1 < 2 ? 'yes' : 'no'", ctx)
	s, _ := got.AsString()
	if s != "yes" {
		t.Errorf("ternary = %q, want yes", s)
	}
}

func TestVariableLookup(t *testing.T) {
	ctx := NewContext().Set("host", value.NewDict().WithKey("name", value.String("web1")))
	got := evalStr(t, "host.name", ctx)
	s, _ := got.AsString()
	if s != "web1" {
		t.Errorf("host.name = %q, want web1", s)
	}

	_, err := Eval("undefined_var", ctx)
	if err == nil {
		t.Error("expected error for undefined variable")
	}
}

func TestListAndDictLiterals(t *testing.T) {
	ctx := NewContext()
	got := evalStr(t, "[1, 2, 3][1]", ctx)
	i, _ := got.AsInt()
	if i != 2 {
		t.Errorf("list index = %d, want 2", i)
	}

	got = evalStr(t, "{name: 'web1', port: 80}.port", ctx)
	p, _ := got.AsInt()
	if p != 80 {
		t.Errorf("dict attribute = %d, want 80", p)
	}
}

func TestStringMethodsAndFilters(t *testing.T) {
	ctx := NewContext()
	got := evalStr(t, "'Hello'.upper()", ctx)
	s, _ := got.AsString()
	if s != "HELLO" {
		t.Errorf("upper() = %q, want HELLO", s)
	}

	got = evalStr(t, "'a,b,c'.split(',')", ctx)
	l, _ := got.AsList()
	if len(l) != 3 {
		t.Errorf("split() returned %d items, want 3", len(l))
	}

	got = evalStr(t, "null | default('fallback')", ctx)
	s, _ = got.AsString()
	if s != "fallback" {
		t.Errorf("default filter = %q, want fallback", s)
	}
}

func TestBuiltinFunctions(t *testing.T) {
	ctx := NewContext()
	got := evalStr(t, "len([1,2,3])", ctx)
	i, _ := got.AsInt()
	if i != 3 {
		t.Errorf("len() = %d, want 3", i)
	}

	got = evalStr(t, "sum(range(1, 5))", ctx)
	s, _ := got.AsInt()
	if s != 10 {
		t.Errorf("sum(range(1,5)) = %d, want 10", s)
	}

	got = evalStr(t, "max([3, 1, 4, 1, 5])", ctx)
	m, _ := got.AsInt()
	if m != 5 {
		t.Errorf("max() = %d, want 5", m)
	}
}

func TestSelectMapFilters(t *testing.T) {
	ctx := NewContext().Set("nums", value.List([]value.Value{
		value.Int(1), value.Int(2), value.Int(3), value.Int(4),
	}))
	got := evalStr(t, "nums | select(n => n > 2)", ctx)
	l, _ := got.AsList()
	if len(l) != 2 {
		t.Fatalf("select() returned %d items, want 2", len(l))
	}

	got = evalStr(t, "nums | map(n => n * 2)", ctx)
	l, _ = got.AsList()
	if len(l) != 4 {
		t.Fatalf("map() returned %d items, want 4", len(l))
	}
	first, _ := l[0].AsInt()
	if first != 2 {
		t.Errorf("map()[0] = %d, want 2", first)
	}
}

func TestParseTemplateInterpolation(t *testing.T) {
	tpl, err := ParseTemplate("hello ${ name }, you have ${ count } items")
	if err != nil {
		t.Fatalf("ParseTemplate failed: %v", err)
	}
	ctx := NewContext().Set("name", value.String("web1")).Set("count", value.Int(3))
	got, err := NewEvaluator(ctx).Evaluate(tpl)
	if err != nil {
		t.Fatalf("evaluate template failed: %v", err)
	}
	s, _ := got.AsString()
	want := "hello web1, you have 3 items"
	if s != want {
		t.Errorf("template = %q, want %q", s, want)
	}
}

func TestParseTemplateSingleExprCollapses(t *testing.T) {
	tpl, err := ParseTemplate("${ port }")
	if err != nil {
		t.Fatalf("ParseTemplate failed: %v", err)
	}
	ctx := NewContext().Set("port", value.Int(8080))
	got, err := NewEvaluator(ctx).Evaluate(tpl)
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if _, ok := got.AsInt(); !ok {
		t.Errorf("single-expr template should collapse to Int, got %s", got.TypeName())
	}
}

func TestEscapedDollarIsLiteral(t *testing.T) {
	if HasInterpolation(`\${ not a var }`) {
		t.Error("escaped ${ should not be detected as interpolation")
	}
	tpl, err := ParseTemplate(`price: \${ not interpolated }`)
	if err != nil {
		t.Fatalf("ParseTemplate failed: %v", err)
	}
	got, err := NewEvaluator(NewContext()).Evaluate(tpl)
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	s, _ := got.AsString()
	if s != "price: ${ not interpolated }" {
		t.Errorf("escaped dollar = %q", s)
	}
}

func TestHashAndEncodingFilters(t *testing.T) {
	ctx := NewContext()

	got := evalStr(t, "'hello' | md5", ctx)
	s, _ := got.AsString()
	if s != "5d41402abc4b2a76b9719d911017c592" {
		t.Errorf("md5 filter = %q", s)
	}

	got = evalStr(t, "'hello' | b64encode", ctx)
	s, _ = got.AsString()
	if s != "aGVsbG8=" {
		t.Errorf("b64encode filter = %q", s)
	}

	got = evalStr(t, "'aGVsbG8=' | b64decode", ctx)
	s, _ = got.AsString()
	if s != "hello" {
		t.Errorf("b64decode filter = %q", s)
	}

	got = evalStr(t, "'web-01' | regex_replace('[0-9]+', 'X')", ctx)
	s, _ = got.AsString()
	if s != "web-X" {
		t.Errorf("regex_replace filter = %q", s)
	}

	got = evalStr(t, "'hello world' | title", ctx)
	s, _ = got.AsString()
	if s != "Hello World" {
		t.Errorf("title filter = %q", s)
	}
}

func TestLookupEnvBuiltin(t *testing.T) {
	t.Setenv("NEXUS_EVAL_LOOKUP_TEST", "val1")
	ctx := NewContext()
	got := evalStr(t, `lookup('env', 'NEXUS_EVAL_LOOKUP_TEST')`, ctx)
	s, _ := got.AsString()
	if s != "val1" {
		t.Errorf("lookup('env', ...) = %q, want val1", s)
	}
}
