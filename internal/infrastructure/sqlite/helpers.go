package sqlite

import "strings"

// isUniqueViolation matches the driver's message for a primary-key clash;
// modernc.org/sqlite exposes no typed error for it. The repo maps it onto
// [domain.ErrAlreadyExists] for duplicate attempt IDs.
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
