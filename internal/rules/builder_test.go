// internal/rules/builder_test.go
package rules

import (
	"errors"
	"testing"

	"github.com/beevik/etree"

	"github.com/solatis/cibrule/internal/types"
)

func newConstraint(id string) *etree.Element {
	el := etree.NewElement("rsc_location")
	el.CreateAttr("id", id)
	el.CreateAttr("rsc", "A")
	return el
}

func elementXML(t *testing.T, el *etree.Element) string {
	t.Helper()
	doc := etree.NewDocument()
	doc.AddChild(el.Copy())
	s, err := doc.WriteToString()
	if err != nil {
		t.Fatalf("WriteToString() error = %v", err)
	}
	return s
}

func existsIn(ids ...string) IDExistsFunc {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return func(id string) bool { return set[id] }
}

func mustParse(t *testing.T, tokens ...string) Expr {
	t.Helper()
	expr, err := Parse(tokens)
	if err != nil {
		t.Fatalf("Parse(%q) error = %v", tokens, err)
	}
	return expr
}

func TestBuildRule_Shapes(t *testing.T) {
	tests := []struct {
		name   string
		opts   Options
		tokens []string
		want   string
	}{
		{
			name:   "simple expression",
			tokens: []string{"#uname", "eq", "node1"},
			want: `<rule id="location-A-rule" score="INFINITY">` +
				`<expression id="location-A-rule-expr" attribute="#uname" operation="eq" value="node1"/>` +
				`</rule>`,
		},
		{
			name:   "typed comparisons",
			opts:   Options{ID: "r"},
			tokens: []string{"pingd", "gt", "integer", "5", "and", "ver", "lt", "version", "2.0", "and", "name", "eq", "string", "x"},
			want: `<rule id="r" score="INFINITY" boolean-op="and">` +
				`<expression id="r-expr" attribute="pingd" operation="gt" type="number" value="5"/>` +
				`<expression id="r-expr-1" attribute="ver" operation="lt" type="version" value="2.0"/>` +
				`<expression id="r-expr-2" attribute="name" operation="eq" type="string" value="x"/>` +
				`</rule>`,
		},
		{
			name:   "sibling groups",
			opts:   Options{ID: "r"},
			tokens: []string{"(a", "eq", "1", "and", "b", "eq", "2)", "or", "(c", "eq", "3", "and", "defined", "d)"},
			want: `<rule id="r" score="INFINITY" boolean-op="or">` +
				`<rule id="r-rule" score="0" boolean-op="and">` +
				`<expression id="r-rule-expr" attribute="a" operation="eq" value="1"/>` +
				`<expression id="r-rule-expr-1" attribute="b" operation="eq" value="2"/>` +
				`</rule>` +
				`<rule id="r-rule-1" score="0" boolean-op="and">` +
				`<expression id="r-rule-1-expr" attribute="c" operation="eq" value="3"/>` +
				`<expression id="r-rule-1-expr-1" attribute="d" operation="defined"/>` +
				`</rule>` +
				`</rule>`,
		},
		{
			name:   "same operator groups flatten",
			opts:   Options{ID: "r"},
			tokens: []string{"a", "eq", "1", "and", "(b", "eq", "2", "and", "c", "eq", "3)"},
			want: `<rule id="r" score="INFINITY" boolean-op="and">` +
				`<expression id="r-expr" attribute="a" operation="eq" value="1"/>` +
				`<expression id="r-expr-1" attribute="b" operation="eq" value="2"/>` +
				`<expression id="r-expr-2" attribute="c" operation="eq" value="3"/>` +
				`</rule>`,
		},
		{
			name:   "date expressions",
			opts:   Options{ID: "r", ScoreAttribute: "pingd", Role: "slave"},
			tokens: []string{"date", "gt", "2014-06-26", "or", "date", "lt", "2015-01-01", "or", "date", "in_range", "2014-06-26", "to", "2014-07-26"},
			want: `<rule id="r" score-attribute="pingd" role="Slave" boolean-op="or">` +
				`<date_expression id="r-expr" operation="gt" start="2014-06-26"/>` +
				`<date_expression id="r-expr-1" operation="lt" end="2015-01-01"/>` +
				`<date_expression id="r-expr-2" operation="in_range" start="2014-06-26" end="2014-07-26"/>` +
				`</rule>`,
		},
		{
			name:   "duration and date-spec",
			opts:   Options{ID: "r"},
			tokens: []string{"date", "in_range", "2014-06-26", "to", "duration", "weeks=2", "months=1", "and", "date-spec", "weekdays=1-5", "hours=9-16"},
			want: `<rule id="r" score="INFINITY" boolean-op="and">` +
				`<date_expression id="r-expr" operation="in_range" start="2014-06-26">` +
				`<duration id="r-expr-duration" months="1" weeks="2"/>` +
				`</date_expression>` +
				`<date_expression id="r-expr-1" operation="date_spec">` +
				`<date_spec id="r-expr-1-datespec" hours="9-16" weekdays="1-5"/>` +
				`</date_expression>` +
				`</rule>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			constraint := newConstraint("location-A")
			rule, err := BuildRule(constraint, tt.opts, mustParse(t, tt.tokens...), existsIn("location-A"))
			if err != nil {
				t.Fatalf("BuildRule() error = %v, want nil", err)
			}
			if got := elementXML(t, rule); got != tt.want {
				t.Errorf("BuildRule() =\n%s\nwant\n%s", got, tt.want)
			}
			if rule.Parent() != constraint {
				t.Errorf("rule not attached to constraint")
			}
		})
	}
}

func TestBuildRule_IDCollisions(t *testing.T) {
	constraint := newConstraint("location-A")
	exists := existsIn("location-A", "location-A-rule", "location-A-rule-1-expr")
	rule, err := BuildRule(constraint, Options{}, mustParse(t, "a", "eq", "1", "and", "b", "eq", "2"), exists)
	if err != nil {
		t.Fatalf("BuildRule() error = %v, want nil", err)
	}
	want := `<rule id="location-A-rule-1" score="INFINITY" boolean-op="and">` +
		`<expression id="location-A-rule-1-expr-1" attribute="a" operation="eq" value="1"/>` +
		`<expression id="location-A-rule-1-expr-2" attribute="b" operation="eq" value="2"/>` +
		`</rule>`
	if got := elementXML(t, rule); got != want {
		t.Errorf("BuildRule() =\n%s\nwant\n%s", got, want)
	}
}

func TestBuildRule_ConstraintWithoutID(t *testing.T) {
	constraint := etree.NewElement("rsc_location")
	rule, err := BuildRule(constraint, Options{}, mustParse(t, "defined", "a"), nil)
	if err != nil {
		t.Fatalf("BuildRule() error = %v, want nil", err)
	}
	if got := rule.SelectAttrValue("id", ""); got != "rsc_location-rule" {
		t.Errorf("rule id = %q, want %q", got, "rsc_location-rule")
	}
}

func TestBuildRule_RemovesConstraintPlacement(t *testing.T) {
	constraint := newConstraint("location-A")
	constraint.CreateAttr("node", "n1")
	constraint.CreateAttr("score", "100")

	if _, err := BuildRule(constraint, Options{}, mustParse(t, "defined", "a"), nil); err != nil {
		t.Fatalf("BuildRule() error = %v, want nil", err)
	}
	if constraint.SelectAttr("node") != nil || constraint.SelectAttr("score") != nil {
		t.Errorf("constraint still has node/score: %s", elementXML(t, constraint))
	}
	if constraint.SelectAttrValue("rsc", "") != "A" {
		t.Errorf("constraint lost rsc attribute")
	}
}

func TestBuildRule_FailureLeavesConstraintUntouched(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		exists  IDExistsFunc
		wantErr error
	}{
		{"explicit id in use", Options{ID: "taken"}, existsIn("taken"), types.ErrIDInUse},
		{"invalid explicit id", Options{ID: "-bad"}, nil, types.ErrInvalidID},
		{"score conflict", Options{Score: "100", ScoreAttribute: "pingd"}, nil, types.ErrScoreConflict},
		{"invalid role", Options{Role: "promoted"}, nil, types.ErrInvalidRole},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			constraint := newConstraint("location-A")
			constraint.CreateAttr("score", "100")
			before := elementXML(t, constraint)

			_, err := BuildRule(constraint, tt.opts, mustParse(t, "a", "eq", "b"), tt.exists)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("BuildRule() error = %v, want %v", err, tt.wantErr)
			}
			var optErr *OptionError
			if !errors.As(err, &optErr) {
				t.Errorf("error type = %T, want *OptionError", err)
			}
			if after := elementXML(t, constraint); after != before {
				t.Errorf("constraint changed on failure:\n%s\nwant\n%s", after, before)
			}
		})
	}
}

func TestBuildRule_IDInUseMessage(t *testing.T) {
	_, err := BuildRule(newConstraint("c"), Options{ID: "taken"}, mustParse(t, "defined", "a"), existsIn("taken"))
	want := "id 'taken' is already in use, please specify another one"
	if err == nil || err.Error() != want {
		t.Errorf("error = %v, want %q", err, want)
	}
}
