package api

import (
	"context"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/cibrule/internal/cib"
	"github.com/solatis/cibrule/internal/types"
)

// Export returns the rule text of every rule owned by a constraint.
func (s *RuleService) Export(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	resp, err := s.export(ctx, req)
	if err != nil {
		return nil, errorStatus(err)
	}
	s.metrics.IncExport()
	return resp, nil
}

func (s *RuleService) export(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	text, err := requiredString(req, fieldCIB)
	if err != nil {
		return nil, err
	}
	if len(text) > types.MaxCIBSize {
		return nil, &requestError{field: fieldCIB, msg: fmt.Sprintf("exceeds %d bytes", types.MaxCIBSize)}
	}
	constraintID, err := requiredString(req, fieldConstraintID)
	if err != nil {
		return nil, err
	}
	normalize, err := boolField(req, fieldNormalize)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, err := cib.Parse([]byte(text))
	if err != nil {
		return nil, err
	}
	rules, err := doc.RuleText(constraintID, normalize)
	if err != nil {
		return nil, err
	}

	resp, err := structpb.NewStruct(map[string]any{
		fieldRules: stringList(rules),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build response: %w", err)
	}
	return resp, nil
}
