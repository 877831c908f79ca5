package types

import (
	"fmt"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

// NewEntryID generates a UUIDv7 journal entry identifier.
// Time-ordered IDs keep journal listings in insertion order.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewEntryID() EntryID {
	return EntryID(uuid.Must(uuid.NewV7()).String())
}

// ParseEntryID validates and converts a string to EntryID.
func ParseEntryID(s string) (EntryID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", err
	}
	return EntryID(s), nil
}

// EntryIDTime extracts the timestamp embedded in a UUIDv7 entry ID.
// Returns zero time for invalid UUIDs; caller should check IsZero().
func EntryIDTime(id EntryID) time.Time {
	u, err := uuid.Parse(string(id))
	if err != nil {
		return time.Time{}
	}
	sec, nsec := u.Time().UnixTime()
	return time.Unix(sec, nsec)
}

// ValidateXMLID checks that id is a legal XML ID (an NCName): a letter or
// underscore followed by letters, digits, '.', '-' or '_'.
// The returned error wraps ErrInvalidID and names the offending character.
func ValidateXMLID(id string) error {
	if problem := XMLIDProblem(id); problem != "" {
		return fmt.Errorf("%w: %s", ErrInvalidID, problem)
	}
	return nil
}

// XMLIDProblem describes why id is not a legal XML ID, or returns "".
func XMLIDProblem(id string) string {
	if id == "" {
		return "id cannot be empty"
	}
	first, size := utf8.DecodeRuneInString(id)
	if !isIDStart(first) {
		return fmt.Sprintf("'%c' is not a valid first character for an id '%s'", first, id)
	}
	for _, r := range id[size:] {
		if !isIDStart(r) && !unicode.IsDigit(r) && r != '.' && r != '-' {
			return fmt.Sprintf("'%c' is not a valid character for an id '%s'", r, id)
		}
	}
	return ""
}

func isIDStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}
