// internal/rules/builder.go
package rules

import (
	"fmt"

	"github.com/beevik/etree"

	"github.com/solatis/cibrule/internal/types"
)

/*
 * CIB rule builder.
 *
 * Renders an expression tree as a <rule> fragment under a constraint:
 *
 *   <rule id="C-rule" score="INFINITY" boolean-op="and">
 *     <expression id="C-rule-expr" attribute="#uname" operation="eq" value="n1"/>
 *     <rule id="C-rule-rule" score="0" boolean-op="or">...</rule>
 *     <date_expression id="C-rule-expr-1" operation="date_spec">
 *       <date_spec id="C-rule-expr-1-datespec" hours="9-16"/>
 *     </date_expression>
 *   </rule>
 *
 * Every id is derived from its owner: nested rules append -rule, leaves append
 * -expr, and a taken candidate gets -1, -2, ... appended until free. Taken
 * means known to the document predicate or already handed out in this build.
 *
 * The fragment is assembled under a detached scratch element and moved under
 * the constraint only after the whole tree rendered, so a failed build leaves
 * the document untouched.
 */

// IDExistsFunc reports whether an id is already used anywhere in the document.
type IDExistsFunc func(id string) bool

// CIB element and attribute names written by the builder and read by the exporter.
const (
	tagRule           = "rule"
	tagExpression     = "expression"
	tagDateExpression = "date_expression"
	tagDateSpec       = "date_spec"
	tagDuration       = "duration"

	attrID             = "id"
	attrScore          = "score"
	attrScoreAttribute = "score-attribute"
	attrRole           = "role"
	attrBooleanOp      = "boolean-op"
	attrAttribute      = "attribute"
	attrOperation      = "operation"
	attrType           = "type"
	attrValue          = "value"
	attrStart          = "start"
	attrEnd            = "end"
	attrNode           = "node"

	// cibTypeNumber is how the CIB spells the integer comparison type.
	cibTypeNumber = "number"
	// dateOpDateSpec is the date_expression operation of a date-spec leaf.
	dateOpDateSpec = "date_spec"
	// nestedScore is the score carried by nested rules.
	nestedScore = "0"
)

// BuildRule renders expr as a new <rule> appended to constraint and returns it.
// opts are validated first; validation warnings are dropped here, Compile
// reports them. On success any score or node attribute on the constraint is
// removed since the rule now decides placement.
func BuildRule(constraint *etree.Element, opts Options, expr Expr, exists IDExistsFunc) (*etree.Element, error) {
	if constraint == nil {
		return nil, fmt.Errorf("%w: constraint element is nil", types.ErrInvalidCIB)
	}
	if expr == nil {
		return nil, &RuleSyntaxError{Message: "no rule expression was specified", EndOfInput: true}
	}
	if exists == nil {
		exists = func(string) bool { return false }
	}
	opts, _, err := opts.Validate()
	if err != nil {
		return nil, err
	}

	ids := &idAllocator{exists: exists, used: make(map[string]bool)}
	ruleID := opts.ID
	if ruleID != "" {
		if !ids.claim(ruleID) {
			return nil, &OptionError{Option: optID, Value: ruleID, Err: types.ErrIDInUse}
		}
	} else {
		ruleID = ids.unique(defaultRuleBase(constraint))
	}

	scratch := etree.NewElement("scratch")
	rule := scratch.CreateElement(tagRule)
	rule.CreateAttr(attrID, ruleID)
	if opts.ScoreAttribute != "" {
		rule.CreateAttr(attrScoreAttribute, opts.ScoreAttribute)
	} else {
		rule.CreateAttr(attrScore, opts.Score)
	}
	if opts.Role != "" {
		rule.CreateAttr(attrRole, roleAttr(opts.Role))
	}

	b := &builder{ids: ids}
	b.fillRule(rule, Flatten(expr))

	constraint.AddChild(rule)
	constraint.RemoveAttr(attrScore)
	constraint.RemoveAttr(attrNode)
	return rule, nil
}

// defaultRuleBase is "<constraint-id>-rule", or "<tag>-rule" for a constraint
// without an id.
func defaultRuleBase(constraint *etree.Element) string {
	base := constraint.SelectAttrValue(attrID, "")
	if base == "" {
		base = constraint.Tag
	}
	return base + "-rule"
}

type idAllocator struct {
	exists IDExistsFunc
	used   map[string]bool
}

func (a *idAllocator) taken(id string) bool {
	return a.used[id] || a.exists(id)
}

// claim reserves id exactly, reporting false when it is taken.
func (a *idAllocator) claim(id string) bool {
	if a.taken(id) {
		return false
	}
	a.used[id] = true
	return true
}

// unique reserves base, or base-N for the smallest free N >= 1.
func (a *idAllocator) unique(base string) string {
	id := base
	for n := 1; a.taken(id); n++ {
		id = fmt.Sprintf("%s-%d", base, n)
	}
	a.used[id] = true
	return id
}

type builder struct {
	ids *idAllocator
}

// fillRule writes the boolean-op and the children of an existing <rule>.
// A leaf expression becomes the rule's only child.
func (b *builder) fillRule(rule *etree.Element, expr Expr) {
	ruleID := rule.SelectAttrValue(attrID, "")
	group, ok := expr.(*BoolExpr)
	if !ok {
		b.leaf(rule, ruleID, expr)
		return
	}
	rule.CreateAttr(attrBooleanOp, string(group.Op))
	for _, operand := range group.Operands {
		if nested, ok := operand.(*BoolExpr); ok {
			child := rule.CreateElement(tagRule)
			child.CreateAttr(attrID, b.ids.unique(ruleID+"-rule"))
			child.CreateAttr(attrScore, nestedScore)
			b.fillRule(child, nested)
			continue
		}
		b.leaf(rule, ruleID, operand)
	}
}

func (b *builder) leaf(rule *etree.Element, ruleID string, expr Expr) {
	id := b.ids.unique(ruleID + "-expr")
	switch e := expr.(type) {
	case *CompareExpr:
		el := rule.CreateElement(tagExpression)
		el.CreateAttr(attrID, id)
		el.CreateAttr(attrAttribute, e.Attribute)
		el.CreateAttr(attrOperation, string(e.Op))
		switch e.Type {
		case TypeNone:
		case TypeInteger:
			el.CreateAttr(attrType, cibTypeNumber)
		default:
			el.CreateAttr(attrType, string(e.Type))
		}
		el.CreateAttr(attrValue, e.Value)
	case *DefinedExpr:
		el := rule.CreateElement(tagExpression)
		el.CreateAttr(attrID, id)
		el.CreateAttr(attrAttribute, e.Attribute)
		el.CreateAttr(attrOperation, e.Kind().String())
	case *DateExpr:
		el := rule.CreateElement(tagDateExpression)
		el.CreateAttr(attrID, id)
		el.CreateAttr(attrOperation, string(e.Op))
		switch e.Op {
		case DateGt:
			el.CreateAttr(attrStart, e.Start)
		case DateLt:
			el.CreateAttr(attrEnd, e.End)
		default:
			el.CreateAttr(attrStart, e.Start)
			if e.Duration != nil {
				b.dateParts(el, tagDuration, id+"-duration", &e.Duration.dateParts)
			} else {
				el.CreateAttr(attrEnd, e.End)
			}
		}
	case *DateSpecExpr:
		el := rule.CreateElement(tagDateExpression)
		el.CreateAttr(attrID, id)
		el.CreateAttr(attrOperation, dateOpDateSpec)
		b.dateParts(el, tagDateSpec, id+"-datespec", &e.Spec.dateParts)
	}
}

func (b *builder) dateParts(parent *etree.Element, tag, base string, parts *dateParts) {
	el := parent.CreateElement(tag)
	el.CreateAttr(attrID, b.ids.unique(base))
	for _, f := range parts.Fields() {
		el.CreateAttr(f.String(), parts.values[f])
	}
}
