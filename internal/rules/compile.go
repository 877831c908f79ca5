// internal/rules/compile.go
package rules

import "github.com/beevik/etree"

/*
 * Rule compilation.
 *
 * Compile runs the whole forward pipeline over the tail of a command line:
 *   1. ParseOptions strips leading id=/score=/score-attribute=/role= tokens
 *   2. Options.Validate applies score recovery and defaults
 *   3. Parse preprocesses and parses the remaining tokens
 *   4. BuildRule renders the tree under the constraint
 *
 * Nothing is attached to the constraint unless every step succeeds.
 */

// Result is the outcome of a successful Compile.
type Result struct {
	Rule     *etree.Element
	Options  Options
	Warnings []Warning
}

// Compile compiles argv into a <rule> appended to constraint.
// exists reports ids already present in the document.
func Compile(constraint *etree.Element, argv []string, exists IDExistsFunc) (*Result, error) {
	opts, exprTokens, err := ParseOptions(argv)
	if err != nil {
		return nil, err
	}
	opts, warnings, err := opts.Validate()
	if err != nil {
		return nil, err
	}
	if len(exprTokens) == 0 {
		return nil, &RuleSyntaxError{Message: "no rule expression was specified", EndOfInput: true}
	}
	expr, err := Parse(exprTokens)
	if err != nil {
		return nil, err
	}
	rule, err := BuildRule(constraint, opts, expr, exists)
	if err != nil {
		return nil, err
	}
	return &Result{Rule: rule, Options: opts, Warnings: warnings}, nil
}
