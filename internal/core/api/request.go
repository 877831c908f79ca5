package api

import (
	"google.golang.org/protobuf/types/known/structpb"
)

// Request and response field names.
const (
	fieldCIB            = "cib"
	fieldConstraintID   = "constraint_id"
	fieldArgs           = "args"
	fieldExpression     = "expression"
	fieldAllowDuplicate = "allow_duplicate"
	fieldNormalize      = "normalize"
	fieldRuleID         = "rule_id"
	fieldNormalized     = "normalized"
	fieldWarnings       = "warnings"
	fieldEntryID        = "entry_id"
	fieldRecordedAt     = "recorded_at"
	fieldRules          = "rules"
)

func stringField(req *structpb.Struct, name string) (string, error) {
	v, ok := req.GetFields()[name]
	if !ok {
		return "", nil
	}
	sv, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", &requestError{field: name, msg: "must be a string"}
	}
	return sv.StringValue, nil
}

func requiredString(req *structpb.Struct, name string) (string, error) {
	s, err := stringField(req, name)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", &requestError{field: name, msg: "is required"}
	}
	return s, nil
}

func boolField(req *structpb.Struct, name string) (bool, error) {
	v, ok := req.GetFields()[name]
	if !ok {
		return false, nil
	}
	bv, ok := v.GetKind().(*structpb.Value_BoolValue)
	if !ok {
		return false, &requestError{field: name, msg: "must be a boolean"}
	}
	return bv.BoolValue, nil
}

// stringsField reads a list of strings; absent means nil.
func stringsField(req *structpb.Struct, name string) ([]string, error) {
	v, ok := req.GetFields()[name]
	if !ok {
		return nil, nil
	}
	lv, ok := v.GetKind().(*structpb.Value_ListValue)
	if !ok {
		return nil, &requestError{field: name, msg: "must be a list of strings"}
	}
	out := make([]string, 0, len(lv.ListValue.GetValues()))
	for _, item := range lv.ListValue.GetValues() {
		sv, ok := item.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, &requestError{field: name, msg: "must be a list of strings"}
		}
		out = append(out, sv.StringValue)
	}
	return out, nil
}

// stringList adapts a string slice for structpb.NewStruct.
func stringList(items []string) []any {
	out := make([]any, len(items))
	for i, s := range items {
		out[i] = s
	}
	return out
}
