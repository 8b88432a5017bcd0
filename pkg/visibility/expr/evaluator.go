package expr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-formscript/pkg/visibility"
)

// Evaluator is the dependency-free rule dialect.
//
// Supported syntax:
//   - truthiness: `approved`, `!approved`
//   - comparisons: `musteriTipi == "Bireysel"`, `tutar1 > 1000`, `startDate <= "2024-01-01"`
//   - composition: `a && (b || !c)`
//
// Operands are field names (dot paths are followed through nested maps),
// `extras.` lookups, or string, number, bool and null literals. A bare word on
// the right of a comparison that names no value is read as a string.
type Evaluator struct{}

// New returns an Evaluator.
func New() *Evaluator { return &Evaluator{} }

var _ visibility.Evaluator = (*Evaluator)(nil)

// Eval evaluates rule. An empty rule holds.
func (e *Evaluator) Eval(fieldKey, rule string, ctx visibility.Context) (bool, error) {
	if strings.TrimSpace(rule) == "" {
		return true, nil
	}
	tokens, err := scan(rule)
	if err != nil {
		return false, err
	}
	p := &parser{tokens: tokens}
	root, err := p.parse()
	if err != nil {
		return false, fmt.Errorf("%w (field %s)", err, fieldKey)
	}
	return root.eval(ctx)
}

type kind int

const (
	kindIdent kind = iota
	kindString
	kindNumber
	kindBool
	kindNull
	kindOp
	kindNot
	kindAnd
	kindOr
	kindOpen
	kindClose
)

type token struct {
	kind kind
	text string
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}

func isDelimiter(ch byte) bool {
	return isSpace(ch) || strings.IndexByte("()!=<>&|", ch) >= 0
}

func scan(input string) ([]token, error) {
	var out []token
	for i := 0; i < len(input); {
		ch := input[i]
		if isSpace(ch) {
			i++
			continue
		}
		pair := ""
		if i+1 < len(input) {
			pair = input[i : i+2]
		}
		switch {
		case pair == "==" || pair == "!=" || pair == "<=" || pair == ">=":
			out = append(out, token{kind: kindOp, text: pair})
			i += 2
		case pair == "&&":
			out = append(out, token{kind: kindAnd, text: pair})
			i += 2
		case pair == "||":
			out = append(out, token{kind: kindOr, text: pair})
			i += 2
		case ch == '<' || ch == '>':
			out = append(out, token{kind: kindOp, text: string(ch)})
			i++
		case ch == '!':
			out = append(out, token{kind: kindNot, text: "!"})
			i++
		case ch == '(':
			out = append(out, token{kind: kindOpen, text: "("})
			i++
		case ch == ')':
			out = append(out, token{kind: kindClose, text: ")"})
			i++
		case ch == '=' || ch == '&' || ch == '|':
			return nil, fmt.Errorf("visibility/expr: unexpected %q; use %q", ch, string([]byte{ch, ch}))
		case ch == '"' || ch == '\'':
			text, next, err := scanString(input, i)
			if err != nil {
				return nil, err
			}
			out = append(out, token{kind: kindString, text: text})
			i = next
		default:
			start := i
			for i < len(input) && !isDelimiter(input[i]) {
				i++
			}
			out = append(out, word(input[start:i]))
		}
	}
	return out, nil
}

func scanString(input string, start int) (string, int, error) {
	quote := input[start]
	escaped := false
	for i := start + 1; i < len(input); i++ {
		switch {
		case escaped:
			escaped = false
		case input[i] == '\\':
			escaped = true
		case input[i] == quote:
			body := input[start+1 : i]
			if quote == '\'' {
				body = strings.ReplaceAll(strings.ReplaceAll(body, `\'`, `'`), `"`, `\"`)
			}
			value, err := strconv.Unquote(`"` + body + `"`)
			if err != nil {
				return "", 0, fmt.Errorf("visibility/expr: invalid string literal: %w", err)
			}
			return value, i + 1, nil
		}
	}
	return "", 0, errors.New("visibility/expr: unterminated string literal")
}

func word(raw string) token {
	switch strings.ToLower(raw) {
	case "true", "false":
		return token{kind: kindBool, text: strings.ToLower(raw)}
	case "null", "nil", "undefined":
		return token{kind: kindNull, text: "null"}
	}
	if _, err := strconv.ParseFloat(raw, 64); err == nil {
		return token{kind: kindNumber, text: raw}
	}
	return token{kind: kindIdent, text: raw}
}

type node interface {
	eval(ctx visibility.Context) (bool, error)
}

type orNode struct{ left, right node }

func (n orNode) eval(ctx visibility.Context) (bool, error) {
	ok, err := n.left.eval(ctx)
	if err != nil || ok {
		return ok, err
	}
	return n.right.eval(ctx)
}

type andNode struct{ left, right node }

func (n andNode) eval(ctx visibility.Context) (bool, error) {
	ok, err := n.left.eval(ctx)
	if err != nil || !ok {
		return false, err
	}
	return n.right.eval(ctx)
}

type notNode struct{ inner node }

func (n notNode) eval(ctx visibility.Context) (bool, error) {
	ok, err := n.inner.eval(ctx)
	return !ok, err
}

// operand is either a lookup or a literal value.
type operand struct {
	ident   string
	literal any
	// bare marks an identifier that reads as text when it resolves to nothing.
	bare bool
}

func (o operand) value(ctx visibility.Context) any {
	if o.ident == "" {
		return o.literal
	}
	if v, ok := lookup(ctx, o.ident); ok {
		return v
	}
	if o.bare {
		return o.ident
	}
	return nil
}

type truthNode struct{ operand operand }

func (n truthNode) eval(ctx visibility.Context) (bool, error) {
	return truthy(n.operand.value(ctx)), nil
}

type compareNode struct {
	op          string
	left, right operand
}

func (n compareNode) eval(ctx visibility.Context) (bool, error) {
	left, right := n.left.value(ctx), n.right.value(ctx)
	switch n.op {
	case "==":
		return equal(left, right), nil
	case "!=":
		return !equal(left, right), nil
	}

	cmp, ok := order(left, right)
	if !ok {
		return false, nil
	}
	switch n.op {
	case "<":
		return cmp < 0, nil
	case "<=":
		return cmp <= 0, nil
	case ">":
		return cmp > 0, nil
	case ">=":
		return cmp >= 0, nil
	default:
		return false, fmt.Errorf("visibility/expr: unsupported operator %q", n.op)
	}
}

func equal(left, right any) bool {
	if left == nil || right == nil {
		return left == nil && right == nil
	}
	_, leftBool := left.(bool)
	_, rightBool := right.(bool)
	if leftBool || rightBool {
		return coerceBool(left) == coerceBool(right)
	}
	if isNumber(left) || isNumber(right) {
		l, lok := coerceNumber(left)
		r, rok := coerceNumber(right)
		return lok && rok && l == r
	}
	return coerceString(left) == coerceString(right)
}

// order compares numerically when both sides are numeric, lexically otherwise.
// ISO dates therefore order correctly as strings.
func order(left, right any) (int, bool) {
	if left == nil || right == nil {
		return 0, false
	}
	l, lok := coerceNumber(left)
	r, rok := coerceNumber(right)
	if lok && rok {
		switch {
		case l < r:
			return -1, true
		case l > r:
			return 1, true
		default:
			return 0, true
		}
	}
	return strings.Compare(coerceString(left), coerceString(right)), true
}

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) parse() (node, error) {
	root, err := p.or()
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.tokens) {
		return nil, fmt.Errorf("visibility/expr: unexpected token %q", p.tokens[p.pos].text)
	}
	return root, nil
}

func (p *parser) peek() (token, bool) {
	if p.pos >= len(p.tokens) {
		return token{}, false
	}
	return p.tokens[p.pos], true
}

func (p *parser) accept(k kind) (token, bool) {
	tok, ok := p.peek()
	if !ok || tok.kind != k {
		return token{}, false
	}
	p.pos++
	return tok, true
}

func (p *parser) or() (node, error) {
	left, err := p.and()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.accept(kindOr); !ok {
			return left, nil
		}
		right, err := p.and()
		if err != nil {
			return nil, err
		}
		left = orNode{left: left, right: right}
	}
}

func (p *parser) and() (node, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.accept(kindAnd); !ok {
			return left, nil
		}
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		left = andNode{left: left, right: right}
	}
}

func (p *parser) unary() (node, error) {
	if _, ok := p.accept(kindNot); ok {
		inner, err := p.unary()
		if err != nil {
			return nil, err
		}
		return notNode{inner: inner}, nil
	}
	if _, ok := p.accept(kindOpen); ok {
		inner, err := p.or()
		if err != nil {
			return nil, err
		}
		if _, ok := p.accept(kindClose); !ok {
			return nil, errors.New("visibility/expr: missing closing ')'")
		}
		return inner, nil
	}
	return p.comparison()
}

func (p *parser) comparison() (node, error) {
	left, err := p.operand(false)
	if err != nil {
		return nil, err
	}
	op, ok := p.accept(kindOp)
	if !ok {
		return truthNode{operand: left}, nil
	}
	right, err := p.operand(true)
	if err != nil {
		return nil, err
	}
	return compareNode{op: op.text, left: left, right: right}, nil
}

func (p *parser) operand(rightHand bool) (operand, error) {
	tok, ok := p.peek()
	if !ok {
		return operand{}, errors.New("visibility/expr: unexpected end of rule")
	}
	p.pos++
	switch tok.kind {
	case kindIdent:
		return operand{ident: tok.text, bare: rightHand}, nil
	case kindString:
		return operand{literal: tok.text}, nil
	case kindNumber:
		n, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return operand{}, fmt.Errorf("visibility/expr: invalid number literal %q", tok.text)
		}
		return operand{literal: n}, nil
	case kindBool:
		return operand{literal: tok.text == "true"}, nil
	case kindNull:
		return operand{}, nil
	default:
		return operand{}, fmt.Errorf("visibility/expr: expected operand, got %q", tok.text)
	}
}
