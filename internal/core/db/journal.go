package db

import (
	"context"
	"fmt"
	"time"

	"github.com/solatis/cibrule/internal/types"
)

// DefaultListLimit bounds journal listings when the caller passes no limit.
const DefaultListLimit = 50

// Journal records compiled rules.
type Journal struct {
	queries *Queries
	now     func() time.Time
}

// NewJournal creates a journal over loaded queries.
func NewJournal(queries *Queries) *Journal {
	return &Journal{queries: queries, now: time.Now}
}

// Record stores entry, assigning EntryID and CreatedAt when unset.
func (j *Journal) Record(ctx context.Context, entry *types.JournalEntry) error {
	if entry.EntryID == "" {
		entry.EntryID = types.NewEntryID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = j.now().UTC()
	}

	_, err := j.queries.Exec(ctx, "insert-journal-entry",
		string(entry.EntryID), entry.ConstraintID, entry.RuleID,
		entry.Expression, entry.Normalized, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record journal entry: %w", err)
	}
	return nil
}

// List returns the newest entries first, limited to limit rows.
// An empty constraintID lists entries for all constraints.
func (j *Journal) List(ctx context.Context, constraintID string, limit int) ([]types.JournalEntry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	var entries []types.JournalEntry
	var err error
	if constraintID == "" {
		err = j.queries.Select(ctx, "list-journal-entries", &entries, limit)
	} else {
		err = j.queries.Select(ctx, "list-journal-entries-by-constraint", &entries, constraintID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list journal entries: %w", err)
	}
	return entries, nil
}
