package types

import "errors"

// Sentinel errors for rule compilation and CIB handling.
// Structured error values in internal/rules unwrap to these so callers can
// branch with errors.Is without depending on message text.
var (
	// ErrValueSyntax indicates a malformed date-spec or duration value.
	ErrValueSyntax = errors.New("invalid value syntax")

	// ErrRuleSyntax indicates a malformed rule token sequence.
	ErrRuleSyntax = errors.New("invalid rule syntax")

	// ErrUnexpectedEnd indicates the rule expression is empty or truncated.
	ErrUnexpectedEnd = errors.New("rule expression is incomplete")

	// ErrInvalidOption indicates a rejected rule option (id, score, role).
	ErrInvalidOption = errors.New("invalid rule option")

	// ErrInvalidID indicates a string that is not a legal XML id.
	ErrInvalidID = errors.New("invalid id")

	// ErrIDInUse indicates an explicit id already exists in the document.
	ErrIDInUse = errors.New("id is already in use")

	// ErrInvalidRole indicates a role outside master/slave.
	ErrInvalidRole = errors.New("invalid role")

	// ErrScoreConflict indicates both score and score-attribute were given.
	ErrScoreConflict = errors.New("score and score-attribute are mutually exclusive")

	// ErrInvalidCIB indicates a document that is not a usable CIB.
	ErrInvalidCIB = errors.New("invalid CIB document")

	// ErrConstraintNotFound indicates no constraint carries the requested id.
	ErrConstraintNotFound = errors.New("constraint not found")

	// ErrDuplicateRule indicates the constraint already owns an equivalent rule.
	ErrDuplicateRule = errors.New("duplicate rule")
)
