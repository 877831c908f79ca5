// Package api implements the gRPC rule service.
//
// Requests and responses are google.protobuf.Struct messages so the service
// needs no generated code; desc.go registers the methods by hand.
package api

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/solatis/cibrule/internal/core/metrics"
	"github.com/solatis/cibrule/internal/types"
)

// Recorder persists compiled rules. Implemented by *db.Journal.
type Recorder interface {
	Record(ctx context.Context, entry *types.JournalEntry) error
}

// RuleService implements RuleServiceServer.
// Thin orchestration layer delegating to the cib, rules and db packages.
type RuleService struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
	journal Recorder
}

// NewRuleService creates service instance with dependencies.
// journal may be nil, which disables journaling.
func NewRuleService(logger *slog.Logger, m *metrics.Metrics, journal Recorder) (*RuleService, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if m == nil {
		return nil, fmt.Errorf("metrics cannot be nil")
	}
	return &RuleService{
		logger:  logger,
		metrics: m,
		journal: journal,
	}, nil
}
