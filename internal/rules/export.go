// internal/rules/export.go
package rules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/beevik/etree"

	"github.com/solatis/cibrule/internal/types"
)

/*
 * Rule exporter.
 *
 * Turns a stored <rule>, <expression> or <date_expression> back into rule
 * text the parser accepts. Literal mode keeps child and attribute order as
 * stored; normalized mode sorts each group's operands by rendered text, walks
 * date fields in canonical order and spells out the default "string" type, so
 * equivalent rules export identically.
 *
 * A nested <rule> with its parent's boolean-op, or with a single operand,
 * contributes its operands directly; any other nested rule is parenthesized.
 *
 * An expression the parser would read back differently is an error: a
 * reserved word as attribute, "date" compared with gt or lt (which parses as
 * a date expression), parentheses in an attribute or value, or a value of
 * "and" or "or".
 */

// Export renders el as rule text.
func Export(el *etree.Element, normalize bool) (string, error) {
	if el == nil {
		return "", fmt.Errorf("%w: element is nil", types.ErrInvalidCIB)
	}
	x := exporter{normalize: normalize}
	switch el.Tag {
	case tagRule:
		op, parts, err := x.group(el)
		if err != nil {
			return "", err
		}
		return strings.Join(parts, " "+op+" "), nil
	case tagExpression:
		return x.expression(el)
	case tagDateExpression:
		return x.dateExpression(el)
	}
	return "", fmt.Errorf("%w: cannot export <%s>", types.ErrInvalidCIB, el.Tag)
}

type exporter struct {
	normalize bool
}

// group renders the operands of a <rule> and returns its boolean-op.
func (x exporter) group(rule *etree.Element) (string, []string, error) {
	op := rule.SelectAttrValue(attrBooleanOp, string(OpAnd))
	var parts []string
	for _, child := range rule.ChildElements() {
		switch child.Tag {
		case tagRule:
			childOp, childParts, err := x.group(child)
			if err != nil {
				return "", nil, err
			}
			if childOp == op || len(childParts) == 1 {
				parts = append(parts, childParts...)
				continue
			}
			parts = append(parts, "("+strings.Join(childParts, " "+childOp+" ")+")")
		case tagExpression:
			text, err := x.expression(child)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, text)
		case tagDateExpression:
			text, err := x.dateExpression(child)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return "", nil, fmt.Errorf("%w: rule '%s' has no expressions", types.ErrInvalidCIB, rule.SelectAttrValue(attrID, ""))
	}
	if x.normalize {
		sort.Strings(parts)
	}
	return op, parts, nil
}

func (x exporter) expression(el *etree.Element) (string, error) {
	attr := el.SelectAttrValue(attrAttribute, "")
	op := el.SelectAttrValue(attrOperation, "")
	if attr == "" || op == "" {
		return "", fmt.Errorf("%w: expression '%s' needs attribute and operation", types.ErrInvalidCIB, el.SelectAttrValue(attrID, ""))
	}
	if !exportableAttribute(attr) {
		return "", unexportable(el, "attribute", attr)
	}
	if op == kwDefined || op == kwNotDefined {
		return op + " " + quoteValue(attr), nil
	}
	if attr == kwDate && isDateOp(op) {
		return "", unexportable(el, "attribute", attr)
	}
	value := el.SelectAttrValue(attrValue, "")
	if strings.ContainsAny(value, "()") || value == kwAnd || value == kwOr {
		return "", unexportable(el, "value", value)
	}

	parts := []string{quoteValue(attr), op}
	typ := el.SelectAttrValue(attrType, "")
	if typ == cibTypeNumber {
		typ = string(TypeInteger)
	}
	if typ == "" && x.normalize {
		typ = string(TypeString)
	}
	if typ != "" {
		parts = append(parts, typ)
	}
	parts = append(parts, quoteValue(value))
	return strings.Join(parts, " "), nil
}

func exportableAttribute(attr string) bool {
	return !reservedWords[attr] && !strings.ContainsAny(attr, "()")
}

func unexportable(el *etree.Element, what, text string) error {
	return fmt.Errorf("%w: expression '%s' has %s '%s' that cannot be written as rule text",
		types.ErrInvalidCIB, el.SelectAttrValue(attrID, ""), what, text)
}

func (x exporter) dateExpression(el *etree.Element) (string, error) {
	id := el.SelectAttrValue(attrID, "")
	start := el.SelectAttrValue(attrStart, "")
	end := el.SelectAttrValue(attrEnd, "")
	duration := el.SelectElement(tagDuration)
	spec := el.SelectElement(tagDateSpec)

	op := el.SelectAttrValue(attrOperation, "")
	if op == "" {
		op = inferDateOp(start, end, duration, spec)
	}

	switch op {
	case dateOpDateSpec:
		if spec == nil {
			return "", fmt.Errorf("%w: date_expression '%s' has no date_spec", types.ErrInvalidCIB, id)
		}
		return kwDateSpec + " " + x.fields(spec), nil
	case string(DateGt):
		if start == "" {
			return "", fmt.Errorf("%w: date_expression '%s' has no start", types.ErrInvalidCIB, id)
		}
		return "date gt " + quoteValue(start), nil
	case string(DateLt):
		if end == "" {
			return "", fmt.Errorf("%w: date_expression '%s' has no end", types.ErrInvalidCIB, id)
		}
		return "date lt " + quoteValue(end), nil
	case string(DateInRange):
		if start == "" {
			return "", fmt.Errorf("%w: date_expression '%s' has no start", types.ErrInvalidCIB, id)
		}
		text := "date in_range " + quoteValue(start) + " to "
		if duration != nil {
			return text + kwDuration + " " + x.fields(duration), nil
		}
		if end == "" {
			return "", fmt.Errorf("%w: date_expression '%s' has no end or duration", types.ErrInvalidCIB, id)
		}
		return text + quoteValue(end), nil
	}
	return "", fmt.Errorf("%w: date_expression '%s' has unknown operation '%s'", types.ErrInvalidCIB, id, op)
}

// inferDateOp derives the operation of a date_expression stored without one.
func inferDateOp(start, end string, duration, spec *etree.Element) string {
	switch {
	case spec != nil:
		return dateOpDateSpec
	case start != "" && (end != "" || duration != nil):
		return string(DateInRange)
	case start != "":
		return string(DateGt)
	case end != "":
		return string(DateLt)
	}
	return ""
}

// fields renders the field attributes of a <date_spec> or <duration>.
func (x exporter) fields(el *etree.Element) string {
	if x.normalize {
		var parts dateParts
		for _, a := range el.Attr {
			if f, ok := LookupDateField(a.Key); ok {
				parts.put(f, a.Value)
			}
		}
		return parts.String()
	}
	var out []string
	for _, a := range el.Attr {
		if a.Key == attrID {
			continue
		}
		out = append(out, a.Key+"="+a.Value)
	}
	return strings.Join(out, " ")
}
