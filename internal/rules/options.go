// internal/rules/options.go
package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/solatis/cibrule/internal/types"
)

// Roles accepted by the role option, in canonical form.
const (
	RoleMaster = "master"
	RoleSlave  = "slave"
)

// ScoreInfinity is the score applied when neither score nor score-attribute is given.
const ScoreInfinity = "INFINITY"

const (
	optID             = "id"
	optScore          = "score"
	optScoreAttribute = "score-attribute"
	optRole           = "role"
)

var scoreRe = regexp.MustCompile(`^[-+]?(?:INFINITY|[0-9]+)$`)

// Options are the key=value settings that precede a rule expression.
type Options struct {
	ID             string
	Score          string
	ScoreAttribute string
	Role           string
}

// ParseOptions consumes leading id=, score=, score-attribute= and role= tokens
// and returns them with the remaining expression tokens. A repeated key keeps
// its last value. A recognized key with an empty value is an OptionError.
func ParseOptions(argv []string) (Options, []string, error) {
	var opts Options
	i := 0
	for ; i < len(argv); i++ {
		key, value, ok := strings.Cut(argv[i], "=")
		if !ok {
			break
		}
		switch key {
		case optID:
			opts.ID = value
		case optScore:
			opts.Score = value
		case optScoreAttribute:
			opts.ScoreAttribute = value
		case optRole:
			opts.Role = value
		default:
			return opts, argv[i:], nil
		}
		if value == "" {
			return opts, nil, emptyOption(key)
		}
	}
	return opts, argv[i:], nil
}

func emptyOption(key string) error {
	switch key {
	case optID:
		return &OptionError{Option: optID, Detail: types.XMLIDProblem(""), Err: types.ErrInvalidID}
	case optRole:
		return &OptionError{Option: optRole, Err: types.ErrInvalidRole}
	}
	return &OptionError{Option: key}
}

// IsScore reports whether s is a literal pacemaker score.
func IsScore(s string) bool {
	return scoreRe.MatchString(s)
}

// Validate checks the options and applies defaults. A score that is not a
// literal score is moved to score-attribute and reported as a warning.
// An explicit id is checked for syntax here; uniqueness is checked when the
// rule is built.
func (o Options) Validate() (Options, []Warning, error) {
	if o.Score != "" && o.ScoreAttribute != "" {
		return o, nil, &OptionError{Option: optScore, Value: o.Score, Err: types.ErrScoreConflict}
	}
	if o.Role != "" {
		role := strings.ToLower(o.Role)
		if role != RoleMaster && role != RoleSlave {
			return o, nil, &OptionError{Option: optRole, Value: o.Role, Err: types.ErrInvalidRole}
		}
		o.Role = role
	}
	if o.ID != "" {
		if problem := types.XMLIDProblem(o.ID); problem != "" {
			return o, nil, &OptionError{Option: optID, Value: o.ID, Detail: problem, Err: types.ErrInvalidID}
		}
	}

	var warnings []Warning
	if o.Score != "" && !IsScore(o.Score) {
		warnings = append(warnings, Warning{
			Option:  optScore,
			Value:   o.Score,
			Message: fmt.Sprintf("invalid score '%s', setting score-attribute=%s instead", o.Score, o.Score),
		})
		o.ScoreAttribute, o.Score = o.Score, ""
	}
	if o.Score == "" && o.ScoreAttribute == "" {
		o.Score = ScoreInfinity
	}
	return o, warnings, nil
}

// roleAttr renders a canonical role as the CIB spells it.
func roleAttr(role string) string {
	if role == "" {
		return ""
	}
	return strings.ToUpper(role[:1]) + role[1:]
}
