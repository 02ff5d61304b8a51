// Package eval implements the expression language used inside `${ ... }`
// interpolations: a lexer and precedence-climbing parser producing
// pkg/ast.Expr trees, and a tree-walking evaluator against a layered
// Context of variables.
package eval

import (
	"fmt"
	"math"

	"github.com/nexus-automation/nexus/pkg/ast"
	"github.com/nexus-automation/nexus/pkg/value"
)

// Evaluator walks an ast.Expr tree and produces a value.Value.
type Evaluator struct {
	ctx *Context
}

func NewEvaluator(ctx *Context) *Evaluator {
	return &Evaluator{ctx: ctx}
}

// Eval parses and evaluates an expression string in one step.
func Eval(src string, ctx *Context) (value.Value, error) {
	expr, err := ParseExpr(src)
	if err != nil {
		return value.Null(), err
	}
	return NewEvaluator(ctx).Evaluate(expr)
}

func (e *Evaluator) Evaluate(expr ast.Expr) (value.Value, error) {
	switch n := expr.(type) {
	case *ast.Literal:
		return n.Value, nil
	case *ast.Variable:
		return e.evalVariable(n)
	case *ast.InterpolatedString:
		return e.evalInterpolatedString(n)
	case *ast.BinaryOp:
		return e.evalBinary(n)
	case *ast.UnaryOp:
		return e.evalUnary(n)
	case *ast.Ternary:
		cond, err := e.Evaluate(n.Condition)
		if err != nil {
			return value.Null(), err
		}
		if cond.Truthy() {
			return e.Evaluate(n.Then)
		}
		return e.Evaluate(n.Else)
	case *ast.List:
		items := make([]value.Value, len(n.Items))
		for i, it := range n.Items {
			v, err := e.Evaluate(it)
			if err != nil {
				return value.Null(), err
			}
			items[i] = v
		}
		return value.List(items), nil
	case *ast.Dict:
		d := value.NewDict()
		for _, entry := range n.Entries {
			k, err := e.Evaluate(entry.Key)
			if err != nil {
				return value.Null(), err
			}
			v, err := e.Evaluate(entry.Value)
			if err != nil {
				return value.Null(), err
			}
			d = d.WithKey(k.String(), v)
		}
		return d, nil
	case *ast.Index:
		return e.evalIndex(n)
	case *ast.Attribute:
		return e.evalAttribute(n)
	case *ast.FunctionCall:
		return e.evalFunctionCall(n)
	case *ast.MethodCall:
		return e.evalMethodCall(n)
	case *ast.Filter:
		return e.evalFilter(n)
	case *ast.Lambda:
		return value.Null(), fmt.Errorf("lambda cannot be evaluated standalone")
	}
	return value.Null(), fmt.Errorf("unsupported expression node %T", expr)
}

func (e *Evaluator) evalVariable(n *ast.Variable) (value.Value, error) {
	if len(n.Path) == 0 {
		return value.Null(), fmt.Errorf("empty variable path")
	}
	v, ok := e.ctx.Lookup(n.Path[0])
	if !ok {
		return value.Null(), fmt.Errorf("undefined variable %q", n.Path[0])
	}
	for _, seg := range n.Path[1:] {
		next, err := attrOf(v, seg)
		if err != nil {
			return value.Null(), err
		}
		v = next
	}
	return v, nil
}

func attrOf(v value.Value, name string) (value.Value, error) {
	if d, ok := v.AsDict(); ok {
		if val, ok := d[name]; ok {
			return val, nil
		}
		return value.Null(), nil
	}
	return value.Null(), fmt.Errorf("cannot access attribute %q on %s", name, v.TypeName())
}

func (e *Evaluator) evalInterpolatedString(n *ast.InterpolatedString) (value.Value, error) {
	if len(n.Parts) == 1 && n.Parts[0].Literal == "" && n.Parts[0].Expr != nil {
		return e.Evaluate(n.Parts[0].Expr)
	}
	out := ""
	for _, part := range n.Parts {
		if part.Expr == nil {
			out += part.Literal
			continue
		}
		v, err := e.Evaluate(part.Expr)
		if err != nil {
			return value.Null(), err
		}
		out += v.String()
	}
	return value.String(out), nil
}

func (e *Evaluator) evalUnary(n *ast.UnaryOp) (value.Value, error) {
	v, err := e.Evaluate(n.Operand)
	if err != nil {
		return value.Null(), err
	}
	switch n.Op {
	case ast.Not:
		return value.Bool(!v.Truthy()), nil
	case ast.Neg:
		if i, ok := v.AsInt(); ok {
			return value.Int(-i), nil
		}
		if f, ok := v.AsFloat(); ok {
			return value.Float(-f), nil
		}
		return value.Null(), fmt.Errorf("cannot negate %s", v.TypeName())
	}
	return value.Null(), fmt.Errorf("unknown unary operator")
}

func (e *Evaluator) evalBinary(n *ast.BinaryOp) (value.Value, error) {
	// short-circuit And/Or before evaluating the right side
	if n.Op == ast.And {
		l, err := e.Evaluate(n.Left)
		if err != nil {
			return value.Null(), err
		}
		if !l.Truthy() {
			return value.Bool(false), nil
		}
		r, err := e.Evaluate(n.Right)
		if err != nil {
			return value.Null(), err
		}
		return value.Bool(r.Truthy()), nil
	}
	if n.Op == ast.Or {
		l, err := e.Evaluate(n.Left)
		if err != nil {
			return value.Null(), err
		}
		if l.Truthy() {
			return value.Bool(true), nil
		}
		r, err := e.Evaluate(n.Right)
		if err != nil {
			return value.Null(), err
		}
		return value.Bool(r.Truthy()), nil
	}

	l, err := e.Evaluate(n.Left)
	if err != nil {
		return value.Null(), err
	}
	r, err := e.Evaluate(n.Right)
	if err != nil {
		return value.Null(), err
	}

	switch n.Op {
	case ast.Add:
		return evalAdd(l, r)
	case ast.Sub, ast.Mul, ast.Div, ast.Mod:
		return evalArith(n.Op, l, r)
	case ast.Eq:
		return value.Bool(l.Equal(r)), nil
	case ast.Ne:
		return value.Bool(!l.Equal(r)), nil
	case ast.Lt, ast.Le, ast.Gt, ast.Ge:
		return evalOrderCompare(n.Op, l, r)
	case ast.In:
		return evalIn(l, r)
	case ast.NotIn:
		v, err := evalIn(l, r)
		if err != nil {
			return value.Null(), err
		}
		b, _ := v.AsBool()
		return value.Bool(!b), nil
	}
	return value.Null(), fmt.Errorf("unknown binary operator")
}

func evalAdd(l, r value.Value) (value.Value, error) {
	if ls, ok := l.AsString(); ok {
		if rs, ok := r.AsString(); ok {
			return value.String(ls + rs), nil
		}
	}
	if ll, ok := l.AsList(); ok {
		if rl, ok := r.AsList(); ok {
			out := make([]value.Value, 0, len(ll)+len(rl))
			out = append(out, ll...)
			out = append(out, rl...)
			return value.List(out), nil
		}
	}
	return evalArith(ast.Add, l, r)
}

func evalArith(op ast.BinaryOperator, l, r value.Value) (value.Value, error) {
	li, lIsInt := l.AsInt()
	ri, rIsInt := r.AsInt()
	if lIsInt && rIsInt {
		switch op {
		case ast.Add:
			return value.Int(li + ri), nil
		case ast.Sub:
			return value.Int(li - ri), nil
		case ast.Mul:
			return value.Int(li * ri), nil
		case ast.Div:
			if ri == 0 {
				return value.Null(), fmt.Errorf("division by zero")
			}
			return value.Int(li / ri), nil
		case ast.Mod:
			if ri == 0 {
				return value.Null(), fmt.Errorf("division by zero")
			}
			return value.Int(li % ri), nil
		}
	}
	lf, lok := toFloat(l)
	rf, rok := toFloat(r)
	if !lok || !rok {
		return value.Null(), fmt.Errorf("cannot apply arithmetic to %s and %s", l.TypeName(), r.TypeName())
	}
	switch op {
	case ast.Add:
		return value.Float(lf + rf), nil
	case ast.Sub:
		return value.Float(lf - rf), nil
	case ast.Mul:
		return value.Float(lf * rf), nil
	case ast.Div:
		if rf == 0 {
			return value.Null(), fmt.Errorf("division by zero")
		}
		return value.Float(lf / rf), nil
	case ast.Mod:
		if rf == 0 {
			return value.Null(), fmt.Errorf("division by zero")
		}
		return value.Float(math.Mod(lf, rf)), nil
	}
	return value.Null(), fmt.Errorf("unknown arithmetic operator")
}

func toFloat(v value.Value) (float64, bool) {
	if i, ok := v.AsInt(); ok {
		return float64(i), true
	}
	if f, ok := v.AsFloat(); ok {
		return f, true
	}
	return 0, false
}

func evalOrderCompare(op ast.BinaryOperator, l, r value.Value) (value.Value, error) {
	c, err := value.Compare(l, r)
	if err != nil {
		return value.Null(), err
	}
	switch op {
	case ast.Lt:
		return value.Bool(c < 0), nil
	case ast.Le:
		return value.Bool(c <= 0), nil
	case ast.Gt:
		return value.Bool(c > 0), nil
	case ast.Ge:
		return value.Bool(c >= 0), nil
	}
	return value.Null(), fmt.Errorf("unknown comparison operator")
}

func evalIn(l, r value.Value) (value.Value, error) {
	if rl, ok := r.AsList(); ok {
		for _, item := range rl {
			if item.Equal(l) {
				return value.Bool(true), nil
			}
		}
		return value.Bool(false), nil
	}
	if rs, ok := r.AsString(); ok {
		if ls, ok := l.AsString(); ok {
			return value.Bool(containsSubstring(rs, ls)), nil
		}
		return value.Bool(false), nil
	}
	if rd, ok := r.AsDict(); ok {
		if ls, ok := l.AsString(); ok {
			_, exists := rd[ls]
			return value.Bool(exists), nil
		}
		return value.Bool(false), nil
	}
	return value.Null(), fmt.Errorf("'in' requires a list, string, or dict on the right side, got %s", r.TypeName())
}

func containsSubstring(s, sub string) bool {
	if len(sub) == 0 {
		return true
	}
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

func (e *Evaluator) evalIndex(n *ast.Index) (value.Value, error) {
	recv, err := e.Evaluate(n.Receiver)
	if err != nil {
		return value.Null(), err
	}
	idx, err := e.Evaluate(n.IndexExpr)
	if err != nil {
		return value.Null(), err
	}
	if l, ok := recv.AsList(); ok {
		i, ok := idx.AsInt()
		if !ok {
			return value.Null(), fmt.Errorf("list index must be an int, got %s", idx.TypeName())
		}
		if i < 0 {
			i += int64(len(l))
		}
		if i < 0 || i >= int64(len(l)) {
			return value.Null(), fmt.Errorf("list index %d out of range", i)
		}
		return l[i], nil
	}
	if d, ok := recv.AsDict(); ok {
		key, ok := idx.AsString()
		if !ok {
			return value.Null(), fmt.Errorf("dict key must be a string, got %s", idx.TypeName())
		}
		if v, ok := d[key]; ok {
			return v, nil
		}
		return value.Null(), nil
	}
	if s, ok := recv.AsString(); ok {
		i, ok := idx.AsInt()
		if !ok {
			return value.Null(), fmt.Errorf("string index must be an int, got %s", idx.TypeName())
		}
		runes := []rune(s)
		if i < 0 {
			i += int64(len(runes))
		}
		if i < 0 || i >= int64(len(runes)) {
			return value.Null(), fmt.Errorf("string index %d out of range", i)
		}
		return value.String(string(runes[i])), nil
	}
	return value.Null(), fmt.Errorf("cannot index %s", recv.TypeName())
}

func (e *Evaluator) evalAttribute(n *ast.Attribute) (value.Value, error) {
	recv, err := e.Evaluate(n.Receiver)
	if err != nil {
		return value.Null(), err
	}
	return attrOf(recv, n.Name)
}

func (e *Evaluator) evalArgs(args []ast.Arg) ([]value.Value, map[string]value.Value, error) {
	pos := make([]value.Value, 0, len(args))
	kw := map[string]value.Value{}
	for _, a := range args {
		if lam, ok := a.Value.(*ast.Lambda); ok {
			_ = lam
			// Lambdas are resolved lazily by callers that need a predicate
			// (filters like select/map); evaluate to Null placeholder here.
			if a.Name != "" {
				kw[a.Name] = value.Null()
			} else {
				pos = append(pos, value.Null())
			}
			continue
		}
		v, err := e.Evaluate(a.Value)
		if err != nil {
			return nil, nil, err
		}
		if a.Name != "" {
			kw[a.Name] = v
		} else {
			pos = append(pos, v)
		}
	}
	return pos, kw, nil
}

func (e *Evaluator) evalFunctionCall(n *ast.FunctionCall) (value.Value, error) {
	pos, kw, err := e.evalArgs(n.Args)
	if err != nil {
		return value.Null(), err
	}
	return callBuiltin(e, n.Name, pos, kw, n.Args)
}

func (e *Evaluator) evalMethodCall(n *ast.MethodCall) (value.Value, error) {
	recv, err := e.Evaluate(n.Receiver)
	if err != nil {
		return value.Null(), err
	}
	pos, kw, err := e.evalArgs(n.Args)
	if err != nil {
		return value.Null(), err
	}
	return callMethod(e, recv, n.Method, pos, kw, n.Args)
}

func (e *Evaluator) evalFilter(n *ast.Filter) (value.Value, error) {
	input, err := e.Evaluate(n.Input)
	if err != nil {
		return value.Null(), err
	}
	pos, kw, err := e.evalArgs(n.Args)
	if err != nil {
		return value.Null(), err
	}
	return callFilter(e, input, n.Name, pos, kw, n.Args)
}

// lambdaArg extracts the *ast.Lambda from args[idx] or the named kwarg,
// for filters/methods like select/map/sorted(key: ...) that need a predicate
// rather than a pre-evaluated value.
func lambdaArg(args []ast.Arg, idx int, name string) (*ast.Lambda, bool) {
	if name != "" {
		for _, a := range args {
			if a.Name == name {
				if lam, ok := a.Value.(*ast.Lambda); ok {
					return lam, true
				}
			}
		}
	}
	pos := 0
	for _, a := range args {
		if a.Name != "" {
			continue
		}
		if pos == idx {
			if lam, ok := a.Value.(*ast.Lambda); ok {
				return lam, true
			}
			return nil, false
		}
		pos++
	}
	return nil, false
}

func (e *Evaluator) applyLambda(lam *ast.Lambda, args ...value.Value) (value.Value, error) {
	vars := map[string]value.Value{}
	for i, p := range lam.Params {
		if i < len(args) {
			vars[p] = args[i]
		}
	}
	sub := NewEvaluator(e.ctx.Push(vars))
	return sub.Evaluate(lam.Body)
}
