package api

import (
	"context"
	"errors"
	"strconv"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/solatis/cibrule/internal/rules"
	"github.com/solatis/cibrule/internal/types"
)

// ErrorDomain is the ErrorInfo domain for rule service failures.
const ErrorDomain = "cibrule"

// ErrorInfo reasons.
const (
	ReasonValueSyntax = "value_syntax"
	ReasonRuleSyntax  = "rule_syntax"
	ReasonEndOfInput  = "end_of_input"
	ReasonOption      = "option"
	ReasonInvalidCIB  = "invalid_cib"
	ReasonNotFound    = "constraint_not_found"
	ReasonDuplicate   = "duplicate_rule"
	ReasonRequest     = "invalid_request"
	ReasonJournal     = "journal"
	ReasonCanceled    = "canceled"
	ReasonInternal    = "internal"
)

// resultOK labels successful compiles in metrics.
const resultOK = "ok"

// requestError reports a malformed request body.
type requestError struct {
	field string
	msg   string
}

func (e *requestError) Error() string {
	return e.field + ": " + e.msg
}

// journalError wraps a failure to record a compiled rule.
type journalError struct {
	err error
}

func (e *journalError) Error() string {
	return "failed to record journal entry: " + e.err.Error()
}

func (e *journalError) Unwrap() error {
	return e.err
}

// classify returns the status code, ErrorInfo reason and metadata for err.
// Auth errors are mapped in the auth package interceptor.
func classify(err error) (codes.Code, string, map[string]string) {
	var (
		valueErr   *rules.ValueSyntaxError
		syntaxErr  *rules.RuleSyntaxError
		optionErr  *rules.OptionError
		reqErr     *requestError
		journalErr *journalError
	)

	switch {
	case errors.As(err, &reqErr):
		return codes.InvalidArgument, ReasonRequest, map[string]string{"field": reqErr.field}
	case errors.As(err, &valueErr):
		return codes.InvalidArgument, ReasonValueSyntax, map[string]string{
			"language": valueErr.Language,
			"part":     valueErr.Part,
			"field":    valueErr.Field,
			"value":    valueErr.Value,
		}
	case errors.As(err, &syntaxErr):
		md := map[string]string{
			"token":    syntaxErr.Token,
			"neighbor": syntaxErr.Neighbor,
			"position": strconv.Itoa(syntaxErr.Position),
		}
		if syntaxErr.EndOfInput {
			return codes.InvalidArgument, ReasonEndOfInput, md
		}
		return codes.InvalidArgument, ReasonRuleSyntax, md
	case errors.As(err, &optionErr):
		return codes.InvalidArgument, ReasonOption, map[string]string{
			"option": optionErr.Option,
			"value":  optionErr.Value,
		}
	case errors.Is(err, types.ErrInvalidCIB):
		return codes.InvalidArgument, ReasonInvalidCIB, nil
	case errors.Is(err, types.ErrConstraintNotFound):
		return codes.NotFound, ReasonNotFound, nil
	case errors.Is(err, types.ErrDuplicateRule):
		return codes.AlreadyExists, ReasonDuplicate, nil
	case errors.As(err, &journalErr):
		return codes.Unavailable, ReasonJournal, nil
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded, ReasonCanceled, nil
	case errors.Is(err, context.Canceled):
		return codes.Canceled, ReasonCanceled, nil
	default:
		return codes.Internal, ReasonInternal, nil
	}
}

// errorStatus converts err into a gRPC status carrying an ErrorInfo detail.
func errorStatus(err error) error {
	code, reason, md := classify(err)
	for k, v := range md {
		if v == "" {
			delete(md, k)
		}
	}

	st := status.New(code, err.Error())
	detailed, derr := st.WithDetails(&errdetails.ErrorInfo{
		Reason:   reason,
		Domain:   ErrorDomain,
		Metadata: md,
	})
	if derr != nil {
		return st.Err()
	}
	return detailed.Err()
}
