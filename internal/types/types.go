// Package types provides domain models shared across cibrule components.
//
// Kept free of XML and transport dependencies so the journal, the rule
// service and the CLI can share entry records and sentinel errors without
// importing the compiler.
package types

import "time"

// EntryID represents a UUIDv7 journal entry identifier.
type EntryID string

// JournalEntry records one successful rule compilation.
// Expression holds the tokens as given; Normalized holds the order-independent
// export used for duplicate detection and display.
type JournalEntry struct {
	EntryID      EntryID   `db:"entry_id"`
	ConstraintID string    `db:"constraint_id"`
	RuleID       string    `db:"rule_id"`
	Expression   string    `db:"expression"`
	Normalized   string    `db:"normalized"`
	CreatedAt    time.Time `db:"created_at"`
}

// Limits applied by the rule service to bound request cost.
const (
	// MaxExpressionTokens limits the token count of a single rule expression.
	// 512 tokens covers hand-written rules with generous nesting.
	MaxExpressionTokens = 512

	// MaxCIBSize limits a CIB document submitted to the rule service.
	// 16MB accommodates large clusters with status sections included.
	MaxCIBSize = 16 * 1024 * 1024
)
