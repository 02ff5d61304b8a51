package eval

import (
	"fmt"

	"github.com/nexus-automation/nexus/pkg/ast"
	"github.com/nexus-automation/nexus/pkg/value"
)

// Parser turns an expression string (the text inside `${ ... }`) into an
// ast.Expr via recursive-descent with precedence climbing.
type Parser struct {
	toks []token
	pos  int
}

// ParseExpr parses a single expression (no surrounding `${ }`).
func ParseExpr(src string) (ast.Expr, error) {
	toks, err := newLexer(src).tokenize()
	if err != nil {
		return nil, err
	}
	p := &Parser{toks: toks}
	expr, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	if p.cur().kind != tokEOF {
		return nil, fmt.Errorf("unexpected trailing token %q", p.cur().text)
	}
	return expr, nil
}

func (p *Parser) cur() token  { return p.toks[p.pos] }
func (p *Parser) advance() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) expect(k tokenKind, what string) (token, error) {
	if p.cur().kind != k {
		return token{}, fmt.Errorf("expected %s, got %q", what, p.cur().text)
	}
	return p.advance(), nil
}

func (p *Parser) parseTernary() (ast.Expr, error) {
	cond, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.cur().kind == tokQuestion {
		p.advance()
		then, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokColon, "':'"); err != nil {
			return nil, err
		}
		els, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		return &ast.Ternary{Condition: cond, Then: then, Else: els}, nil
	}
	return cond, nil
}

func (p *Parser) parseOr() (ast.Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.cur().kind == tokOr {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOp{Op: ast.Or, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (ast.Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.cur().kind == tokAnd {
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOp{Op: ast.And, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseNot() (ast.Expr, error) {
	if p.cur().kind == tokNot {
		p.advance()
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryOp{Op: ast.Not, Operand: operand}, nil
	}
	return p.parseComparison()
}

func (p *Parser) parseComparison() (ast.Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		switch p.cur().kind {
		case tokEq:
			p.advance()
			right, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			left = &ast.BinaryOp{Op: ast.Eq, Left: left, Right: right}
		case tokNe:
			p.advance()
			right, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			left = &ast.BinaryOp{Op: ast.Ne, Left: left, Right: right}
		case tokLt:
			p.advance()
			right, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			left = &ast.BinaryOp{Op: ast.Lt, Left: left, Right: right}
		case tokLe:
			p.advance()
			right, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			left = &ast.BinaryOp{Op: ast.Le, Left: left, Right: right}
		case tokGt:
			p.advance()
			right, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			left = &ast.BinaryOp{Op: ast.Gt, Left: left, Right: right}
		case tokGe:
			p.advance()
			right, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			left = &ast.BinaryOp{Op: ast.Ge, Left: left, Right: right}
		case tokIn:
			p.advance()
			right, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			left = &ast.BinaryOp{Op: ast.In, Left: left, Right: right}
		case tokNot:
			// lookahead for "not in"
			save := p.pos
			p.advance()
			if p.cur().kind == tokIn {
				p.advance()
				right, err := p.parseAdditive()
				if err != nil {
					return nil, err
				}
				left = &ast.BinaryOp{Op: ast.NotIn, Left: left, Right: right}
				continue
			}
			p.pos = save
			return left, nil
		default:
			return left, nil
		}
	}
}

func (p *Parser) parseAdditive() (ast.Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.cur().kind == tokPlus || p.cur().kind == tokMinus {
		op := ast.Add
		if p.cur().kind == tokMinus {
			op = ast.Sub
		}
		p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOp{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (ast.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		var op ast.BinaryOperator
		switch p.cur().kind {
		case tokStar:
			op = ast.Mul
		case tokSlash:
			op = ast.Div
		case tokPercent:
			op = ast.Mod
		default:
			return left, nil
		}
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOp{Op: op, Left: left, Right: right}
	}
}

func (p *Parser) parseUnary() (ast.Expr, error) {
	if p.cur().kind == tokMinus {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryOp{Op: ast.Neg, Operand: operand}, nil
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() (ast.Expr, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.cur().kind {
		case tokDot:
			p.advance()
			name, err := p.expect(tokIdent, "identifier")
			if err != nil {
				return nil, err
			}
			if p.cur().kind == tokLParen {
				args, err := p.parseArgs()
				if err != nil {
					return nil, err
				}
				expr = &ast.MethodCall{Receiver: expr, Method: name.text, Args: args}
			} else {
				expr = &ast.Attribute{Receiver: expr, Name: name.text}
			}
		case tokLBracket:
			p.advance()
			idx, err := p.parseTernary()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tokRBracket, "']'"); err != nil {
				return nil, err
			}
			expr = &ast.Index{Receiver: expr, IndexExpr: idx}
		case tokPipe:
			p.advance()
			name, err := p.expect(tokIdent, "filter name")
			if err != nil {
				return nil, err
			}
			var args []ast.Arg
			if p.cur().kind == tokLParen {
				args, err = p.parseArgs()
				if err != nil {
					return nil, err
				}
			}
			expr = &ast.Filter{Input: expr, Name: name.text, Args: args}
		default:
			return expr, nil
		}
	}
}

func (p *Parser) parseArgs() ([]ast.Arg, error) {
	if _, err := p.expect(tokLParen, "'('"); err != nil {
		return nil, err
	}
	var args []ast.Arg
	for p.cur().kind != tokRParen {
		arg, err := p.parseArg()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if p.cur().kind == tokComma {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(tokRParen, "')'"); err != nil {
		return nil, err
	}
	return args, nil
}

func (p *Parser) parseArg() (ast.Arg, error) {
	// keyword arg: ident ':' expr; keyword args are only recognized at
	// top-level of a call.
	if p.cur().kind == tokIdent {
		save := p.pos
		name := p.advance()
		if p.cur().kind == tokColon {
			// lambda param list shorthand "x: expr" not used here; colon
			// after bare ident inside args means a kwarg using `name: val`.
			p.advance()
			val, err := p.parseTernary()
			if err != nil {
				return ast.Arg{}, err
			}
			return ast.Arg{Name: name.text, Value: val}, nil
		}
		p.pos = save
	}
	// lambda: ident '=>' expr (a single parameter; there is no
	// parenthesised parameter-list form)
	if p.cur().kind == tokIdent {
		save := p.pos
		param := p.advance()
		if p.cur().kind == tokArrow {
			p.advance()
			body, err := p.parseTernary()
			if err != nil {
				return ast.Arg{}, err
			}
			return ast.Arg{Value: &ast.Lambda{Params: []string{param.text}, Body: body}}, nil
		}
		p.pos = save
	}
	val, err := p.parseTernary()
	if err != nil {
		return ast.Arg{}, err
	}
	return ast.Arg{Value: val}, nil
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	t := p.cur()
	switch t.kind {
	case tokInt:
		p.advance()
		return &ast.Literal{Value: value.Int(t.i)}, nil
	case tokFloat:
		p.advance()
		return &ast.Literal{Value: value.Float(t.f)}, nil
	case tokString:
		p.advance()
		return &ast.Literal{Value: value.String(t.text)}, nil
	case tokTrue:
		p.advance()
		return &ast.Literal{Value: value.Bool(true)}, nil
	case tokFalse:
		p.advance()
		return &ast.Literal{Value: value.Bool(false)}, nil
	case tokNull:
		p.advance()
		return &ast.Literal{Value: value.Null()}, nil
	case tokLParen:
		p.advance()
		expr, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return expr, nil
	case tokLBracket:
		return p.parseList()
	case tokLBrace:
		return p.parseDict()
	case tokIdent:
		return p.parseIdentOrCall(t)
	}
	return nil, fmt.Errorf("unexpected token %q", t.text)
}

func (p *Parser) parseIdentOrCall(t token) (ast.Expr, error) {
	p.advance()
	if p.cur().kind == tokLParen {
		args, err := p.parseArgs()
		if err != nil {
			return nil, err
		}
		return &ast.FunctionCall{Name: t.text, Args: args}, nil
	}
	path := []string{t.text}
	for p.cur().kind == tokDot {
		// Only treat as part of a bare dotted variable path when the
		// following segment is not itself the start of a method call;
		// MethodCall/Attribute postfix parsing handles that case, so a
		// plain Variable here is just consecutive identifier.field.field.
		save := p.pos
		p.advance()
		if p.cur().kind != tokIdent {
			p.pos = save
			break
		}
		next := p.advance()
		if p.cur().kind == tokLParen {
			// it's actually a method call; rewind to let parsePostfix
			// handle `.method(...)` against the Variable built so far.
			p.pos = save
			break
		}
		path = append(path, next.text)
	}
	return &ast.Variable{Path: path}, nil
}

func (p *Parser) parseList() (ast.Expr, error) {
	p.advance() // '['
	var items []ast.Expr
	for p.cur().kind != tokRBracket {
		item, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if p.cur().kind == tokComma {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(tokRBracket, "']'"); err != nil {
		return nil, err
	}
	return &ast.List{Items: items}, nil
}

func (p *Parser) parseDict() (ast.Expr, error) {
	p.advance() // '{'
	var entries []ast.DictEntry
	for p.cur().kind != tokRBrace {
		var keyExpr ast.Expr
		if p.cur().kind == tokIdent {
			id := p.advance()
			keyExpr = &ast.Literal{Value: value.String(id.text)}
		} else {
			k, err := p.parseTernary()
			if err != nil {
				return nil, err
			}
			keyExpr = k
		}
		if _, err := p.expect(tokColon, "':'"); err != nil {
			return nil, err
		}
		val, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		entries = append(entries, ast.DictEntry{Key: keyExpr, Value: val})
		if p.cur().kind == tokComma {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(tokRBrace, "'}'"); err != nil {
		return nil, err
	}
	return &ast.Dict{Entries: entries}, nil
}
