package domain

import "context"

// ReleaseStore catalogs staged releases and the slot working-directory
// aliases that reference them.
type ReleaseStore interface {
	// Stage extracts a packaged artifact into a fresh release directory
	// named by the artifact's timestamp identifier. Re-staging the
	// byte-identical artifact is not an error and returns the existing
	// release; a different artifact carrying an already-used identifier
	// fails with [ErrStaging].
	Stage(ctx context.Context, archivePath string) (Release, error)

	// List returns all staged releases, newest first.
	List(ctx context.Context) ([]Release, error)

	// Prune deletes all releases beyond the keep most recent, except
	// those in protected. Protected releases survive regardless of age.
	Prune(ctx context.Context, keep int, protected map[ReleaseID]bool) (PruneReport, error)

	// Bind points a slot's working-directory alias at a release.
	Bind(ctx context.Context, slot Slot, release Release) error

	// BoundRelease reports the release a slot's alias currently points
	// at. ok is false when the slot has never been bound.
	BoundRelease(ctx context.Context, slot Slot) (Release, bool, error)
}
