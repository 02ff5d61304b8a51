package eval

import (
	"fmt"
	"strings"

	"github.com/nexus-automation/nexus/pkg/ast"
)

// ParseTemplate scans a raw YAML scalar for `${ ... }` interpolations,
// honoring `\$` as an escape for a literal dollar sign, and returns an
// ast.InterpolatedString. A string with no `${` at all still returns an
// InterpolatedString with a single literal part; callers that only need to
// know whether a field is dynamic should use HasInterpolation first.
func ParseTemplate(src string) (*ast.InterpolatedString, error) {
	var parts []ast.StringPart
	var lit strings.Builder
	runes := []rune(src)
	i := 0
	for i < len(runes) {
		c := runes[i]
		if c == '\\' && i+1 < len(runes) && runes[i+1] == '$' {
			lit.WriteRune('$')
			i += 2
			continue
		}
		if c == '$' && i+1 < len(runes) && runes[i+1] == '{' {
			start := i + 2
			depth := 1
			j := start
			for j < len(runes) && depth > 0 {
				switch runes[j] {
				case '{':
					depth++
				case '}':
					depth--
					if depth == 0 {
						continue
					}
				}
				j++
			}
			if depth != 0 {
				return nil, fmt.Errorf("unterminated interpolation starting at offset %d", i)
			}
			exprSrc := string(runes[start:j])
			expr, err := ParseExpr(exprSrc)
			if err != nil {
				return nil, fmt.Errorf("in interpolation %q: %w", exprSrc, err)
			}
			parts = append(parts, ast.StringPart{Literal: lit.String()})
			lit.Reset()
			parts = append(parts, ast.StringPart{Expr: expr})
			i = j + 1
			continue
		}
		lit.WriteRune(c)
		i++
	}
	if lit.Len() > 0 || len(parts) == 0 {
		parts = append(parts, ast.StringPart{Literal: lit.String()})
	}
	return collapseParts(parts), nil
}

// collapseParts drops empty literal parts that sit beside an expression
// part (it does not merge adjacent literal parts), so `${ x }` alone collapses to
// a single-part InterpolatedString (see InterpolatedString's doc comment).
func collapseParts(parts []ast.StringPart) *ast.InterpolatedString {
	var out []ast.StringPart
	for _, p := range parts {
		if p.Expr == nil && p.Literal == "" {
			continue
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		out = append(out, ast.StringPart{Literal: ""})
	}
	return &ast.InterpolatedString{Parts: out}
}

// HasInterpolation reports whether src contains an unescaped `${`.
func HasInterpolation(src string) bool {
	runes := []rune(src)
	for i := 0; i < len(runes)-1; i++ {
		if runes[i] == '\\' && i+1 < len(runes) && runes[i+1] == '$' {
			i++
			continue
		}
		if runes[i] == '$' && runes[i+1] == '{' {
			return true
		}
	}
	return false
}
