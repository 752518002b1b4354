package domain

import (
	"fmt"
	"time"
)

// ReleaseID identifies a staged release. IDs are derived from the artifact
// build timestamp rendered as YYYYMMDDhhmmss, so lexicographic order is
// recency order.
type ReleaseID string

// BuildMode identifies how an artifact was packaged and therefore how the
// slot process is launched.
type BuildMode string

const (
	// BuildModeBundle is a self-contained runtime bundle; the entrypoint
	// runs directly with no dependency installation.
	BuildModeBundle BuildMode = "bundle"

	// BuildModeSource is a source tree with its dependencies already
	// installed; the entrypoint runs through the package manager.
	BuildModeSource BuildMode = "source"
)

// ParseBuildMode converts the metadata record's buildMode field into a
// [BuildMode]. Any other value is a staging error: the orchestrator cannot
// know how to launch an artifact it cannot classify.
func ParseBuildMode(v string) (BuildMode, error) {
	switch m := BuildMode(v); m {
	case BuildModeBundle, BuildModeSource:
		return m, nil
	default:
		return "", fmt.Errorf("%w: unknown build mode %q", ErrStaging, v)
	}
}

// Release is an immutable staged artifact in the release store.
type Release struct {
	ID        ReleaseID
	Dir       string
	Mode      BuildMode
	CreatedAt time.Time
}

// ArtifactMeta is the metadata record shipped at the root of every packaged
// artifact. The orchestrator reads Timestamp and BuildMode; the remaining
// fields are informational and surfaced as-is.
type ArtifactMeta struct {
	Timestamp      string `json:"timestamp"`
	BuildMode      string `json:"buildMode"`
	RuntimeVersion string `json:"runtimeVersion"`
	PackageManager string `json:"packageManager"`
	CommitHash     string `json:"commitHash"`
}

// releaseIDLayout is the time layout a ReleaseID is rendered in.
const releaseIDLayout = "20060102150405"

// ReleaseIDFromTime renders a build timestamp as a [ReleaseID].
func ReleaseIDFromTime(t time.Time) ReleaseID {
	return ReleaseID(t.UTC().Format(releaseIDLayout))
}

// ParseReleaseID validates an identifier and returns its build time.
func ParseReleaseID(id ReleaseID) (time.Time, error) {
	t, err := time.Parse(releaseIDLayout, string(id))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: malformed release id %q", ErrInvalidArgument, id)
	}
	return t, nil
}

// PruneReport describes what a retention pass did.
type PruneReport struct {
	Removed []ReleaseID
	// Kept lists releases that were beyond the retention cut but
	// survived because a slot still references them.
	Kept []ReleaseID
}
