package domain

import "context"

// AttemptLog persists the audit trail of finished deployment attempts.
// The pipeline only appends; the log is read back by status and history
// queries, never by the release protocol itself.
type AttemptLog interface {
	Append(ctx context.Context, rec AttemptRecord) error

	// Recent returns up to limit records, most recent first.
	Recent(ctx context.Context, limit int) ([]AttemptRecord, error)

	// Trim deletes all but the keep most recent records and reports how
	// many were removed.
	Trim(ctx context.Context, keep int) (int, error)
}
