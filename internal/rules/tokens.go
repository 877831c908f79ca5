// internal/rules/tokens.go
package rules

import "strings"

/*
 * Token preprocessing.
 *
 * Rewrites the raw command-line tokens into the shape the parser expects
 * without changing their meaning. Three passes run in order:
 *   1. splitParentheses: "(" and ")" become standalone tokens
 *   2. rewriteLegacyDate: "date start=X [end=Y] OP" becomes canonical syntax
 *   3. mergeFieldClusters: field=value tokens after date-spec/duration join
 *      into a single value token
 *
 * Parentheses are split first so "hours=9)" still reaches the merge pass as
 * "hours=9" followed by ")". The grammar itself never sees deprecated forms.
 */

// Preprocess normalizes raw rule tokens for parsing. The input is not modified.
func Preprocess(tokens []string) []string {
	return mergeFieldClusters(rewriteLegacyDate(splitParentheses(tokens)))
}

// splitParentheses separates "(" and ")" from adjacent text.
// "a(b)c" becomes "a", "(", "b", ")", "c".
func splitParentheses(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if !strings.ContainsAny(tok, "()") {
			out = append(out, tok)
			continue
		}
		start := 0
		for i := 0; i < len(tok); i++ {
			if tok[i] != '(' && tok[i] != ')' {
				continue
			}
			if i > start {
				out = append(out, tok[start:i])
			}
			out = append(out, tok[i:i+1])
			start = i + 1
		}
		if start < len(tok) {
			out = append(out, tok[start:])
		}
	}
	return out
}

// rewriteLegacyDate converts deprecated date expressions:
//
//	date start=X gt            -> date gt X
//	date end=Y lt              -> date lt Y
//	date start=X end=Y in_range -> date in_range X to Y
//
// The operator may also be written operation=OP. Any other combination is
// copied unchanged for the parser to reject.
func rewriteLegacyDate(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for i := 0; i < len(tokens); i++ {
		out = append(out, tokens[i])
		if tokens[i] != "date" {
			continue
		}
		if rewritten, next, ok := legacyDate(tokens, i+1); ok {
			out = append(out, rewritten...)
			i = next - 1
		}
	}
	return out
}

// legacyDate inspects the tokens following "date" at index i. It returns the
// canonical replacement and the index just past the consumed tokens.
func legacyDate(tokens []string, i int) ([]string, int, bool) {
	var start, end string
	j := i
	for ; j < len(tokens); j++ {
		if v, ok := strings.CutPrefix(tokens[j], "start="); ok && v != "" && start == "" {
			start = v
			continue
		}
		if v, ok := strings.CutPrefix(tokens[j], "end="); ok && v != "" && end == "" {
			end = v
			continue
		}
		break
	}
	if (start == "" && end == "") || j >= len(tokens) {
		return nil, 0, false
	}

	op := strings.TrimPrefix(tokens[j], "operation=")
	switch {
	case op == string(DateGt) && start != "" && end == "":
		return []string{string(DateGt), start}, j + 1, true
	case op == string(DateLt) && end != "" && start == "":
		return []string{string(DateLt), end}, j + 1, true
	case op == string(DateInRange) && start != "" && end != "":
		return []string{string(DateInRange), start, "to", end}, j + 1, true
	}
	return nil, 0, false
}

// mergeFieldClusters joins the field=value run after date-spec or duration
// into one space separated token. operation=... tokens in the run are dropped;
// a run holding only those produces no token.
func mergeFieldClusters(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for i := 0; i < len(tokens); i++ {
		out = append(out, tokens[i])
		if tokens[i] != kwDateSpec && tokens[i] != kwDuration {
			continue
		}
		var parts []string
		j := i + 1
		for ; j < len(tokens) && isFieldAssignment(tokens[j]); j++ {
			if strings.HasPrefix(tokens[j], "operation=") {
				continue
			}
			parts = append(parts, tokens[j])
		}
		if len(parts) > 0 {
			out = append(out, strings.Join(parts, " "))
		}
		i = j - 1
	}
	return out
}

// isFieldAssignment reports whether tok looks like name=value.
func isFieldAssignment(tok string) bool {
	name, _, ok := strings.Cut(tok, "=")
	return ok && name != "" && !strings.ContainsAny(name, " ()")
}
