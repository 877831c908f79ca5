// internal/rules/parser.go
package rules

import (
	"fmt"
	"regexp"
)

/*
 * Recursive descent parser for rule expressions.
 *
 * Tokens carry no kind; each parse function classifies the token at the
 * cursor from its grammatical position. Binding, tightest first:
 *   1. ( expr )
 *   2. atomic conditions (comparison, defined, date, date-spec)
 *   3. and
 *   4. or
 *
 * A run of the same operator at one level yields a single BoolExpr. A
 * parenthesized group yields its inner expression; Flatten merges it into an
 * enclosing group of the same operator.
 *
 * Errors are RuleSyntaxError values positioned on the preprocessed token list,
 * or ValueSyntaxError values from the date-spec and duration parsers.
 */

const (
	kwAnd        = "and"
	kwOr         = "or"
	kwDefined    = "defined"
	kwNotDefined = "not_defined"
	kwDate       = "date"
	kwDateSpec   = "date-spec"
	kwDuration   = "duration"
	kwTo         = "to"
	kwInRange    = "in_range"
)

// reservedWords cannot name an attribute.
var reservedWords = map[string]bool{
	kwAnd: true, kwOr: true,
	kwDefined: true, kwNotDefined: true,
	kwDateSpec: true, kwDuration: true,
	kwTo: true, kwInRange: true,
	"string": true, "integer": true, "version": true,
	"eq": true, "ne": true, "lt": true, "gt": true, "lte": true, "gte": true,
}

var (
	integerValueRe = regexp.MustCompile(`^[-+]?[0-9]+$`)
	versionValueRe = regexp.MustCompile(`^[0-9]+(?:\.[0-9]+)*$`)
)

// Parse preprocesses tokens and parses them into an expression tree.
func Parse(tokens []string) (Expr, error) {
	return parseTokens(Preprocess(tokens))
}

// parseTokens parses already preprocessed tokens.
func parseTokens(tokens []string) (Expr, error) {
	p := &parser{tokens: tokens}
	if len(tokens) == 0 {
		return nil, &RuleSyntaxError{Message: "unexpected end of input", EndOfInput: true}
	}
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.done() {
		return nil, p.unexpected()
	}
	return expr, nil
}

type parser struct {
	tokens []string
	pos    int
	depth  int
}

func (p *parser) done() bool { return p.pos >= len(p.tokens) }

func (p *parser) peek() string {
	if p.done() {
		return ""
	}
	return p.tokens[p.pos]
}

func (p *parser) next() string {
	tok := p.peek()
	p.pos++
	return tok
}

func (p *parser) parseOr() (Expr, error) {
	return p.parseRun(OpOr, p.parseAnd)
}

func (p *parser) parseAnd() (Expr, error) {
	return p.parseRun(OpAnd, p.parsePrimary)
}

// parseRun parses operand (op operand)* into one BoolExpr, or returns the
// single operand when op does not follow it.
func (p *parser) parseRun(op BoolOp, operand func() (Expr, error)) (Expr, error) {
	first, err := operand()
	if err != nil {
		return nil, err
	}
	if p.peek() != string(op) {
		return first, nil
	}
	group := &BoolExpr{Op: op, Operands: []Expr{first}}
	for !p.done() && p.peek() == string(op) {
		p.pos++
		next, err := operand()
		if err != nil {
			return nil, err
		}
		group.Operands = append(group.Operands, next)
	}
	return group, nil
}

func (p *parser) parsePrimary() (Expr, error) {
	if p.done() {
		return nil, p.endOfRule()
	}
	switch tok := p.peek(); tok {
	case "(":
		return p.parseGroup()
	case kwDefined, kwNotDefined:
		p.pos++
		attr, err := p.attribute()
		if err != nil {
			return nil, err
		}
		return &DefinedExpr{Attribute: attr, Negated: tok == kwNotDefined}, nil
	case kwDateSpec:
		p.pos++
		raw, err := p.value()
		if err != nil {
			return nil, err
		}
		spec, err := ParseDateSpec(raw)
		if err != nil {
			return nil, err
		}
		return &DateSpecExpr{Spec: spec}, nil
	case kwDate:
		if p.pos+1 < len(p.tokens) {
			if _, ok := compareOps[p.tokens[p.pos+1]]; ok && !isDateOp(p.tokens[p.pos+1]) {
				return p.parseComparison()
			}
		}
		return p.parseDate()
	}
	return p.parseComparison()
}

func (p *parser) parseGroup() (Expr, error) {
	open := p.pos
	p.pos++
	p.depth++
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.done() {
		return nil, &RuleSyntaxError{Message: "missing ')'", Token: "(", Position: open}
	}
	if p.peek() != ")" {
		return nil, p.unexpected()
	}
	p.pos++
	p.depth--
	return expr, nil
}

// parseComparison parses ATTR OP [TYPE] VALUE.
func (p *parser) parseComparison() (Expr, error) {
	attr, err := p.attribute()
	if err != nil {
		return nil, err
	}
	if p.done() {
		return nil, p.endOfRule()
	}
	op, ok := compareOps[p.peek()]
	if !ok {
		return nil, p.unexpected()
	}
	p.pos++

	typ := TypeNone
	if t, ok := valueTypes[p.peek()]; ok && p.pos+1 < len(p.tokens) && !isGroupEnd(p.tokens[p.pos+1]) {
		typ = t
		p.pos++
	}
	valuePos := p.pos
	value, err := p.value()
	if err != nil {
		return nil, err
	}
	if err := checkTypedValue(typ, value, valuePos); err != nil {
		return nil, err
	}
	return &CompareExpr{Attribute: attr, Op: op, Type: typ, Value: value}, nil
}

// parseDate parses date gt|lt VALUE and date in_range VALUE to VALUE|duration DUR.
func (p *parser) parseDate() (Expr, error) {
	p.pos++
	if p.done() {
		return nil, p.endOfRule()
	}
	switch p.peek() {
	case string(DateGt), string(DateLt):
		op := DateOp(p.next())
		value, err := p.value()
		if err != nil {
			return nil, err
		}
		if op == DateGt {
			return &DateExpr{Op: DateGt, Start: value}, nil
		}
		return &DateExpr{Op: DateLt, End: value}, nil
	case kwInRange:
		p.pos++
	default:
		return nil, p.unexpected()
	}

	start, err := p.value()
	if err != nil {
		return nil, err
	}
	if p.done() {
		return nil, p.endOfRule()
	}
	if p.peek() != kwTo {
		return nil, p.unexpected()
	}
	p.pos++
	if p.peek() == kwDuration {
		p.pos++
		raw, err := p.value()
		if err != nil {
			return nil, err
		}
		dur, err := ParseDuration(raw)
		if err != nil {
			return nil, err
		}
		return &DateExpr{Op: DateInRange, Start: start, Duration: dur}, nil
	}
	end, err := p.value()
	if err != nil {
		return nil, err
	}
	return &DateExpr{Op: DateInRange, Start: start, End: end}, nil
}

// attribute consumes an attribute name token.
func (p *parser) attribute() (string, error) {
	if p.done() {
		return "", p.endOfRule()
	}
	tok := p.peek()
	if tok == "(" || tok == ")" || reservedWords[tok] {
		return "", p.unexpected()
	}
	p.pos++
	return tok, nil
}

// value consumes a literal token.
func (p *parser) value() (string, error) {
	if p.done() {
		return "", p.endOfRule()
	}
	tok := p.peek()
	if tok == "(" || isGroupEnd(tok) {
		return "", p.unexpected()
	}
	p.pos++
	return tok, nil
}

// endOfRule reports input that stopped inside a construct.
func (p *parser) endOfRule() error {
	last := p.tokens[len(p.tokens)-1]
	return &RuleSyntaxError{
		Message:    fmt.Sprintf("unexpected end of rule after '%s'", last),
		Token:      last,
		Position:   len(p.tokens),
		EndOfInput: true,
	}
}

// unexpected reports the token at the cursor with neighbor context.
func (p *parser) unexpected() error {
	tok := p.peek()
	err := &RuleSyntaxError{Token: tok, Position: p.pos}
	switch {
	case tok == ")" && p.depth == 0:
		err.Message = "unexpected ')'"
	case p.pos > 0:
		err.Neighbor = p.tokens[p.pos-1]
		err.Message = fmt.Sprintf("unexpected '%s' after '%s'", tok, err.Neighbor)
	case p.pos+1 < len(p.tokens):
		err.Neighbor = p.tokens[p.pos+1]
		err.Message = fmt.Sprintf("unexpected '%s' before '%s'", tok, err.Neighbor)
	default:
		err.Message = fmt.Sprintf("unexpected '%s'", tok)
	}
	return err
}

func checkTypedValue(typ ValueType, value string, pos int) error {
	var ok bool
	switch typ {
	case TypeInteger:
		ok = integerValueRe.MatchString(value)
	case TypeVersion:
		ok = versionValueRe.MatchString(value)
	default:
		return nil
	}
	if ok {
		return nil
	}
	return &RuleSyntaxError{
		Message:  fmt.Sprintf("invalid %s value '%s'", typ, value),
		Token:    value,
		Position: pos,
	}
}

func isGroupEnd(tok string) bool {
	return tok == kwAnd || tok == kwOr || tok == ")"
}

func isDateOp(tok string) bool {
	return tok == string(DateGt) || tok == string(DateLt)
}
