package api

import (
	"context"
	"fmt"
	"time"

	"github.com/kballard/go-shellquote"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/cibrule/internal/cib"
	"github.com/solatis/cibrule/internal/core/auth"
	"github.com/solatis/cibrule/internal/types"
)

// compileRequest is the decoded Compile body.
type compileRequest struct {
	cib            string
	constraintID   string
	tokens         []string
	allowDuplicate bool
}

func decodeCompile(req *structpb.Struct) (*compileRequest, error) {
	var (
		r   compileRequest
		err error
	)
	if r.cib, err = requiredString(req, fieldCIB); err != nil {
		return nil, err
	}
	if len(r.cib) > types.MaxCIBSize {
		return nil, &requestError{field: fieldCIB, msg: fmt.Sprintf("exceeds %d bytes", types.MaxCIBSize)}
	}
	if r.constraintID, err = requiredString(req, fieldConstraintID); err != nil {
		return nil, err
	}
	if r.allowDuplicate, err = boolField(req, fieldAllowDuplicate); err != nil {
		return nil, err
	}

	args, err := stringsField(req, fieldArgs)
	if err != nil {
		return nil, err
	}
	expression, err := stringField(req, fieldExpression)
	if err != nil {
		return nil, err
	}
	switch {
	case args != nil && expression != "":
		return nil, &requestError{field: fieldExpression, msg: "cannot be combined with args"}
	case expression != "":
		if r.tokens, err = shellquote.Split(expression); err != nil {
			return nil, &requestError{field: fieldExpression, msg: err.Error()}
		}
	default:
		r.tokens = args
	}
	if len(r.tokens) > types.MaxExpressionTokens {
		return nil, &requestError{field: fieldArgs, msg: fmt.Sprintf("exceeds %d tokens", types.MaxExpressionTokens)}
	}
	return &r, nil
}

// Compile adds a rule to a constraint of the submitted CIB and returns the
// updated document.
func (s *RuleService) Compile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	start := time.Now()
	resp, err := s.compile(ctx, req)
	if err != nil {
		_, reason, _ := classify(err)
		s.metrics.ObserveCompile(reason, time.Since(start))
		s.logger.DebugContext(ctx, "compile rejected", "reason", reason, "error", err)
		return nil, errorStatus(err)
	}
	s.metrics.ObserveCompile(resultOK, time.Since(start))
	return resp, nil
}

func (s *RuleService) compile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	r, err := decodeCompile(req)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, err := cib.Parse([]byte(r.cib))
	if err != nil {
		return nil, err
	}
	added, err := doc.AddRule(r.constraintID, r.tokens, r.allowDuplicate)
	if err != nil {
		return nil, err
	}

	warnings := make([]string, len(added.Warnings))
	for i, w := range added.Warnings {
		warnings[i] = w.Message
		s.logger.WarnContext(ctx, w.Message, "option", w.Option, "value", w.Value)
	}

	out, err := doc.Bytes()
	if err != nil {
		return nil, err
	}

	fields := map[string]any{
		fieldCIB:        string(out),
		fieldRuleID:     added.RuleID,
		fieldNormalized: added.Normalized,
		fieldWarnings:   stringList(warnings),
	}

	if s.journal != nil {
		entry := &types.JournalEntry{
			ConstraintID: r.constraintID,
			RuleID:       added.RuleID,
			Expression:   shellquote.Join(r.tokens...),
			Normalized:   added.Normalized,
		}
		if err := s.journal.Record(ctx, entry); err != nil {
			return nil, &journalError{err: err}
		}
		fields[fieldEntryID] = string(entry.EntryID)
		fields[fieldRecordedAt] = entry.CreatedAt.UTC().Format(time.RFC3339)
	}

	s.logger.InfoContext(ctx, "rule compiled",
		"constraint", r.constraintID,
		"rule", added.RuleID,
		"principal", auth.PrincipalFromContext(ctx))

	resp, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to build response: %w", err)
	}
	return resp, nil
}
