// internal/rules/ast.go
package rules

import (
	"strings"
	"unicode"
)

/*
 * Rule expression syntax tree.
 *
 * Expr is a closed sum type: only the node types in this file implement it
 * (ruleExpr is unexported). The builder and exporter switch over the concrete
 * types exhaustively.
 *
 * Node shapes:
 *   - BoolExpr: and/or over two or more operands; a run of the same operator
 *     at one precedence level is a single node
 *   - CompareExpr: ATTR OP [TYPE] VALUE
 *   - DefinedExpr: defined ATTR / not_defined ATTR
 *   - DateExpr: date gt|lt VALUE, date in_range START to END|duration
 *   - DateSpecExpr: date-spec FIELDS
 *
 * String renders the node as rule text the parser accepts, parenthesizing
 * nested groups of a different operator.
 */

// Kind tags the operator a node represents.
type Kind int

const (
	KindAnd Kind = iota
	KindOr
	KindEq
	KindNe
	KindLt
	KindGt
	KindLte
	KindGte
	KindInRange
	KindDefined
	KindNotDefined
	KindDateSpec
)

var kindNames = [...]string{
	KindAnd:        "and",
	KindOr:         "or",
	KindEq:         "eq",
	KindNe:         "ne",
	KindLt:         "lt",
	KindGt:         "gt",
	KindLte:        "lte",
	KindGte:        "gte",
	KindInRange:    "in_range",
	KindDefined:    "defined",
	KindNotDefined: "not_defined",
	KindDateSpec:   "date-spec",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Expr is a node of a parsed rule expression.
type Expr interface {
	Kind() Kind
	String() string
	ruleExpr()
}

// BoolOp is a boolean combinator.
type BoolOp string

const (
	OpAnd BoolOp = "and"
	OpOr  BoolOp = "or"
)

// CompareOp is an attribute comparison operator.
type CompareOp string

const (
	OpEq  CompareOp = "eq"
	OpNe  CompareOp = "ne"
	OpLt  CompareOp = "lt"
	OpGt  CompareOp = "gt"
	OpLte CompareOp = "lte"
	OpGte CompareOp = "gte"
)

var compareOps = map[string]CompareOp{
	"eq":  OpEq,
	"ne":  OpNe,
	"lt":  OpLt,
	"gt":  OpGt,
	"lte": OpLte,
	"gte": OpGte,
}

// ValueType is the optional type keyword of a comparison.
type ValueType string

const (
	TypeNone    ValueType = ""
	TypeString  ValueType = "string"
	TypeInteger ValueType = "integer"
	TypeVersion ValueType = "version"
)

var valueTypes = map[string]ValueType{
	"string":  TypeString,
	"integer": TypeInteger,
	"version": TypeVersion,
}

// DateOp is the operator of a date expression.
type DateOp string

const (
	DateGt      DateOp = "gt"
	DateLt      DateOp = "lt"
	DateInRange DateOp = "in_range"
)

// BoolExpr combines two or more operands with and/or.
type BoolExpr struct {
	Op       BoolOp
	Operands []Expr
}

func (e *BoolExpr) Kind() Kind {
	if e.Op == OpOr {
		return KindOr
	}
	return KindAnd
}

func (e *BoolExpr) String() string {
	parts := make([]string, len(e.Operands))
	for i, operand := range e.Operands {
		if nested, ok := operand.(*BoolExpr); ok && nested.Op != e.Op {
			parts[i] = "(" + nested.String() + ")"
			continue
		}
		parts[i] = operand.String()
	}
	return strings.Join(parts, " "+string(e.Op)+" ")
}

// CompareExpr compares a node attribute against a literal value.
type CompareExpr struct {
	Attribute string
	Op        CompareOp
	Type      ValueType
	Value     string
}

func (e *CompareExpr) Kind() Kind {
	switch e.Op {
	case OpNe:
		return KindNe
	case OpLt:
		return KindLt
	case OpGt:
		return KindGt
	case OpLte:
		return KindLte
	case OpGte:
		return KindGte
	default:
		return KindEq
	}
}

func (e *CompareExpr) String() string {
	parts := []string{quoteValue(e.Attribute), string(e.Op)}
	if e.Type != TypeNone {
		parts = append(parts, string(e.Type))
	}
	return strings.Join(append(parts, quoteValue(e.Value)), " ")
}

// DefinedExpr tests whether a node attribute is (not) defined.
type DefinedExpr struct {
	Attribute string
	Negated   bool
}

func (e *DefinedExpr) Kind() Kind {
	if e.Negated {
		return KindNotDefined
	}
	return KindDefined
}

func (e *DefinedExpr) String() string {
	return e.Kind().String() + " " + quoteValue(e.Attribute)
}

// DateExpr is an absolute date comparison or range.
// Gt uses Start, Lt uses End; InRange uses Start and either End or Duration.
type DateExpr struct {
	Op       DateOp
	Start    string
	End      string
	Duration *DurationValue
}

func (e *DateExpr) Kind() Kind {
	switch e.Op {
	case DateGt:
		return KindGt
	case DateLt:
		return KindLt
	default:
		return KindInRange
	}
}

func (e *DateExpr) String() string {
	switch e.Op {
	case DateGt:
		return "date gt " + quoteValue(e.Start)
	case DateLt:
		return "date lt " + quoteValue(e.End)
	}
	s := "date in_range " + quoteValue(e.Start) + " to "
	if e.Duration != nil {
		return s + "duration " + e.Duration.String()
	}
	return s + quoteValue(e.End)
}

// DateSpecExpr matches a recurring calendar pattern.
type DateSpecExpr struct {
	Spec *DateSpecValue
}

func (e *DateSpecExpr) Kind() Kind { return KindDateSpec }

func (e *DateSpecExpr) String() string {
	return "date-spec " + e.Spec.String()
}

func (*BoolExpr) ruleExpr()     {}
func (*CompareExpr) ruleExpr()  {}
func (*DefinedExpr) ruleExpr()  {}
func (*DateExpr) ruleExpr()     {}
func (*DateSpecExpr) ruleExpr() {}

// Flatten merges nested groups that repeat their parent's operator.
// Parenthesized runs of the same operator parse as nested nodes; Flatten
// gives the shape the builder stores.
func Flatten(expr Expr) Expr {
	be, ok := expr.(*BoolExpr)
	if !ok {
		return expr
	}
	out := &BoolExpr{Op: be.Op, Operands: make([]Expr, 0, len(be.Operands))}
	for _, operand := range be.Operands {
		flat := Flatten(operand)
		if nested, ok := flat.(*BoolExpr); ok && nested.Op == be.Op {
			out.Operands = append(out.Operands, nested.Operands...)
			continue
		}
		out.Operands = append(out.Operands, flat)
	}
	return out
}

// quoteValue wraps values containing whitespace or quote characters in double
// quotes so the text survives shell-style splitting. Backslashes and double
// quotes are escaped.
func quoteValue(v string) string {
	if v != "" && !strings.ContainsFunc(v, needsQuote) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(v) + `"`
}

func needsQuote(r rune) bool {
	return unicode.IsSpace(r) || r == '"' || r == '\'' || r == '\\'
}
