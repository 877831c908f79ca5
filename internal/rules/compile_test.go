// internal/rules/compile_test.go
package rules

import (
	"errors"
	"math/rand"
	"reflect"
	"testing"

	"github.com/beevik/etree"
	"github.com/kballard/go-shellquote"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/solatis/cibrule/internal/types"
)

func TestCompile(t *testing.T) {
	constraint := newConstraint("location-A")
	constraint.CreateAttr("score", "INFINITY")

	res, err := Compile(constraint, []string{"score=pingd", "#uname", "eq", "node1"}, existsIn("location-A"))
	if err != nil {
		t.Fatalf("Compile() error = %v, want nil", err)
	}
	if got := res.Rule.SelectAttrValue("score-attribute", ""); got != "pingd" {
		t.Errorf("score-attribute = %q, want %q", got, "pingd")
	}
	if res.Rule.SelectAttr("score") != nil {
		t.Errorf("rule has score attribute after recovery")
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("len(Warnings) = %d, want 1", len(res.Warnings))
	}
	if res.Options.ScoreAttribute != "pingd" {
		t.Errorf("Options.ScoreAttribute = %q, want %q", res.Options.ScoreAttribute, "pingd")
	}
	if constraint.SelectAttr("score") != nil {
		t.Errorf("constraint score not removed")
	}
	if len(constraint.ChildElements()) != 1 {
		t.Errorf("constraint children = %d, want 1", len(constraint.ChildElements()))
	}
}

func TestCompile_NumericScore(t *testing.T) {
	res, err := Compile(newConstraint("c"), []string{"score=100", "defined", "pingd"}, nil)
	if err != nil {
		t.Fatalf("Compile() error = %v, want nil", err)
	}
	if got := res.Rule.SelectAttrValue("score", ""); got != "100" {
		t.Errorf("score = %q, want %q", got, "100")
	}
	if len(res.Warnings) != 0 {
		t.Errorf("Warnings = %v, want none", res.Warnings)
	}
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		argv    []string
		wantErr error
	}{
		{"no expression", []string{"score=100"}, types.ErrUnexpectedEnd},
		{"score conflict", []string{"score=100", "score-attribute=pingd", "defined", "a"}, types.ErrScoreConflict},
		{"syntax error", []string{"a", "eq"}, types.ErrRuleSyntax},
		{"value error", []string{"date-spec", "hours=99"}, types.ErrValueSyntax},
		{"invalid role", []string{"role=started", "defined", "a"}, types.ErrInvalidRole},
		{"empty id", []string{"id=", "defined", "a"}, types.ErrInvalidID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			constraint := newConstraint("c")
			_, err := Compile(constraint, tt.argv, nil)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Compile(%q) error = %v, want %v", tt.argv, err, tt.wantErr)
			}
			if len(constraint.ChildElements()) != 0 {
				t.Errorf("constraint has children after failed compile")
			}
		})
	}
}

func TestCompile_NoExpressionMessage(t *testing.T) {
	_, err := Compile(newConstraint("c"), []string{"id=r1"}, nil)
	var synErr *RuleSyntaxError
	if !errors.As(err, &synErr) || synErr.Message != "no rule expression was specified" {
		t.Errorf("error = %v, want no rule expression", err)
	}
}

// Property-based test: text -> tree -> XML -> text parses back to the same tree
func TestCompile_PropertyRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("exported rules parse back to the same tree", prop.ForAll(
		func(seed int64) bool {
			tokens := randomRule(rand.New(rand.NewSource(seed)), 3)
			want, err := Parse(tokens)
			if err != nil {
				t.Logf("Parse(%q) error = %v", tokens, err)
				return false
			}
			rule, err := BuildRule(newConstraint("c"), Options{}, want, nil)
			if err != nil {
				t.Logf("BuildRule(%q) error = %v", tokens, err)
				return false
			}
			text, err := Export(rule, false)
			if err != nil {
				t.Logf("Export(%q) error = %v", tokens, err)
				return false
			}
			split, err := shellquote.Split(text)
			if err != nil {
				t.Logf("Split(%q) error = %v", text, err)
				return false
			}
			got, err := Parse(split)
			if err != nil {
				t.Logf("Parse(%q) error = %v", split, err)
				return false
			}
			if !reflect.DeepEqual(Flatten(got), Flatten(want)) {
				t.Logf("round trip of %q: got %s, want %s", tokens, got, want)
				return false
			}
			return true
		},
		gen.Int64(),
	))

	properties.Property("normalized export ignores operand order", prop.ForAll(
		func(seed int64) bool {
			r := rand.New(rand.NewSource(seed))
			expr, err := Parse(randomRule(r, 3))
			if err != nil {
				return false
			}
			rule, err := BuildRule(newConstraint("c"), Options{}, expr, nil)
			if err != nil {
				return false
			}
			want, err := Export(rule, true)
			if err != nil {
				return false
			}
			permuted := rule.Copy()
			shuffleRule(r, permuted)
			got, err := Export(permuted, true)
			if err != nil {
				return false
			}
			if got != want {
				t.Logf("permuted export %q, want %q", got, want)
				return false
			}
			return true
		},
		gen.Int64(),
	))

	properties.TestingRun(t)
}

var (
	sampleAttributes = []string{"#uname", "pingd", "site", "attr.name", "#kind"}
	sampleValues     = []string{"node1", "two words", "5", `say "hi"`, "it's", `back\slash`, "tab\there"}
	sampleDates      = []string{"2014-06-26", "2015-01-01T10:00:00", "2014-06-26 12:00"}
	sampleCompare    = []string{"eq", "ne", "lt", "gt", "lte", "gte"}
)

func pick(r *rand.Rand, from []string) string {
	return from[r.Intn(len(from))]
}

// randomRule generates a valid token list with parenthesized nested groups.
func randomRule(r *rand.Rand, depth int) []string {
	tokens, _ := randomExpr(r, depth)
	return tokens
}

func randomExpr(r *rand.Rand, depth int) ([]string, bool) {
	if depth == 0 || r.Intn(3) == 0 {
		return randomLeaf(r), false
	}
	op := kwAnd
	if r.Intn(2) == 0 {
		op = kwOr
	}
	var tokens []string
	for i := 0; i < 2+r.Intn(2); i++ {
		if i > 0 {
			tokens = append(tokens, op)
		}
		sub, group := randomExpr(r, depth-1)
		if group {
			sub = append(append([]string{"("}, sub...), ")")
		}
		tokens = append(tokens, sub...)
	}
	return tokens, true
}

func randomLeaf(r *rand.Rand) []string {
	switch r.Intn(7) {
	case 0:
		return []string{pick(r, sampleAttributes), pick(r, sampleCompare), pick(r, sampleValues)}
	case 1:
		switch r.Intn(3) {
		case 0:
			return []string{pick(r, sampleAttributes), pick(r, sampleCompare), "integer", pick(r, []string{"-5", "10", "+3"})}
		case 1:
			return []string{pick(r, sampleAttributes), pick(r, sampleCompare), "version", pick(r, []string{"1", "1.2", "10.0.3"})}
		default:
			return []string{pick(r, sampleAttributes), pick(r, sampleCompare), "string", pick(r, sampleValues)}
		}
	case 2:
		return []string{pick(r, []string{kwDefined, kwNotDefined}), pick(r, sampleAttributes)}
	case 3:
		return []string{kwDate, pick(r, []string{"gt", "lt"}), pick(r, sampleDates)}
	case 4:
		return []string{kwDate, kwInRange, pick(r, sampleDates), kwTo, pick(r, sampleDates)}
	case 5:
		return append([]string{kwDate, kwInRange, pick(r, sampleDates), kwTo, kwDuration}, randomFields(r, false)...)
	default:
		return append([]string{kwDateSpec}, randomFields(r, true)...)
	}
}

// randomFields returns one to three field=value tokens in arbitrary order.
func randomFields(r *rand.Rand, ranges bool) []string {
	fields := DateFields()
	r.Shuffle(len(fields), func(i, j int) { fields[i], fields[j] = fields[j], fields[i] })
	n := 1 + r.Intn(3)
	out := make([]string, 0, n)
	for _, f := range fields[:n] {
		value := boundedValue(f, r.Int63n(100), -1)
		if ranges {
			value = boundedValue(f, r.Int63n(100), r.Int63n(10)-3)
		}
		out = append(out, f.String()+"="+value)
	}
	return out
}

// shuffleRule permutes the children of every <rule> under el.
func shuffleRule(r *rand.Rand, el *etree.Element) {
	children := el.ChildElements()
	for _, c := range children {
		el.RemoveChild(c)
	}
	r.Shuffle(len(children), func(i, j int) { children[i], children[j] = children[j], children[i] })
	for _, c := range children {
		if c.Tag == tagRule {
			shuffleRule(r, c)
		}
		el.AddChild(c)
	}
}
