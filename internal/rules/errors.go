// internal/rules/errors.go
package rules

import (
	"fmt"

	"github.com/solatis/cibrule/internal/types"
)

/*
 * Structured compiler errors.
 *
 * Every failure the compiler reports is one of three values:
 *   - ValueSyntaxError: a date-spec or duration field cluster is malformed
 *   - RuleSyntaxError: the token sequence does not match the grammar
 *     (EndOfInput set for empty or truncated input)
 *   - OptionError: a rule option (id, score, score-attribute, role) is rejected
 *
 * Each unwraps to a sentinel in internal/types so callers can branch with
 * errors.Is and still read positional data with errors.As.
 */

// ValueErrorReason classifies a ValueSyntaxError.
type ValueErrorReason int

const (
	ReasonInvalidValue ValueErrorReason = iota
	ReasonUnexpectedPart
	ReasonMissingAssign
	ReasonMissingValue
	ReasonEmpty
)

// Value sub-language names used in diagnostics.
const (
	LanguageDateSpec = "date-spec"
	LanguageDuration = "duration"
)

// ValueSyntaxError reports a malformed field=value cluster.
type ValueSyntaxError struct {
	Language string // LanguageDateSpec or LanguageDuration
	Part     string // raw field=value chunk as written
	Field    string // field name, empty for unexpected parts
	Value    string // raw value, empty when missing
	Reason   ValueErrorReason
}

func (e *ValueSyntaxError) Error() string {
	switch e.Reason {
	case ReasonUnexpectedPart:
		return fmt.Sprintf("unexpected '%s' in '%s'", e.Part, e.Language)
	case ReasonMissingAssign:
		return fmt.Sprintf("missing '=value' after '%s' in '%s'", e.Part, e.Language)
	case ReasonMissingValue:
		return fmt.Sprintf("missing value after '%s' in '%s'", e.Part, e.Language)
	case ReasonEmpty:
		return fmt.Sprintf("no fields specified in '%s'", e.Language)
	default:
		return fmt.Sprintf("invalid %s '%s' in '%s'", e.Field, e.Value, e.Language)
	}
}

func (e *ValueSyntaxError) Unwrap() error {
	return types.ErrValueSyntax
}

// RuleSyntaxError reports a token sequence the grammar rejects.
// Position indexes the preprocessed token list; it equals the token count
// when the input ended early.
type RuleSyntaxError struct {
	Message    string
	Token      string // offending token, or the last token before a truncation
	Neighbor   string // adjacent token quoted in Message, if any
	Position   int
	EndOfInput bool
}

func (e *RuleSyntaxError) Error() string {
	return e.Message
}

func (e *RuleSyntaxError) Unwrap() []error {
	if e.EndOfInput {
		return []error{types.ErrRuleSyntax, types.ErrUnexpectedEnd}
	}
	return []error{types.ErrRuleSyntax}
}

// OptionError reports a rejected rule option.
// Err is one of types.ErrScoreConflict, ErrInvalidRole, ErrInvalidID, ErrIDInUse,
// or nil for an empty option value.
type OptionError struct {
	Option string
	Value  string
	Detail string
	Err    error
}

func (e *OptionError) Error() string {
	switch e.Err {
	case types.ErrScoreConflict:
		return "can not specify both score and score-attribute"
	case types.ErrInvalidRole:
		return fmt.Sprintf("invalid role '%s', use '%s' or '%s'", e.Value, RoleMaster, RoleSlave)
	case types.ErrIDInUse:
		return fmt.Sprintf("id '%s' is already in use, please specify another one", e.Value)
	case types.ErrInvalidID:
		if e.Detail != "" {
			return fmt.Sprintf("invalid rule id '%s': %s", e.Value, e.Detail)
		}
		return fmt.Sprintf("invalid rule id '%s'", e.Value)
	default:
		return fmt.Sprintf("invalid %s '%s'", e.Option, e.Value)
	}
}

func (e *OptionError) Unwrap() []error {
	if e.Err == nil {
		return []error{types.ErrInvalidOption}
	}
	return []error{types.ErrInvalidOption, e.Err}
}

// Warning describes a recoverable option rewrite made during compilation.
type Warning struct {
	Option  string
	Value   string
	Message string
}

func (w Warning) String() string {
	return w.Message
}
