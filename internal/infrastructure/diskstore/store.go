// Package diskstore implements the release store and live pointer on the
// local filesystem. Releases live under <root>/releases/<id>, the slot
// working-directory aliases under <root>/slots/<a|b>, and the live pointer
// at <root>/current. All alias and pointer updates are symlink-then-rename,
// so observers never see a half-written indirection.
package diskstore

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/google/uuid"

	"github.com/slotshift/slotshift/internal/domain"
)

const (
	metaFile     = "release.json"
	checksumFile = ".artifact-sha256"
)

// Store implements [domain.ReleaseStore] under a single deploy root.
type Store struct {
	Root   string
	Logger log.Logger
}

func (s *Store) releasesDir() string { return filepath.Join(s.Root, "releases") }
func (s *Store) slotsDir() string    { return filepath.Join(s.Root, "slots") }

// Stage extracts the artifact into a fresh release directory named by the
// artifact's timestamp. Extraction goes through a hidden temp directory and
// a rename, so a half-extracted tree is never visible under a release id.
// Re-staging the byte-identical artifact returns the existing release; a
// different artifact under an already-used id fails.
func (s *Store) Stage(ctx context.Context, archivePath string) (domain.Release, error) {
	if err := os.MkdirAll(s.releasesDir(), 0o755); err != nil {
		return domain.Release{}, fmt.Errorf("%w: create releases dir: %v", domain.ErrStaging, err)
	}

	sum, err := checksum(archivePath)
	if err != nil {
		return domain.Release{}, fmt.Errorf("%w: read artifact: %v", domain.ErrStaging, err)
	}

	tmp := filepath.Join(s.releasesDir(), ".staging-"+uuid.NewString())
	if err := extract(ctx, archivePath, tmp); err != nil {
		os.RemoveAll(tmp)
		return domain.Release{}, fmt.Errorf("%w: extract %s: %v", domain.ErrStaging, filepath.Base(archivePath), err)
	}

	rel, err := readRelease(tmp)
	if err != nil {
		os.RemoveAll(tmp)
		return domain.Release{}, err
	}

	final := filepath.Join(s.releasesDir(), string(rel.ID))
	if existing, err := os.ReadFile(filepath.Join(final, checksumFile)); err == nil {
		os.RemoveAll(tmp)
		if strings.TrimSpace(string(existing)) == sum {
			// Same artifact staged again: at-least-once safe.
			return readRelease(final)
		}
		return domain.Release{}, fmt.Errorf("%w: release id %s already staged from a different artifact", domain.ErrStaging, rel.ID)
	} else if _, statErr := os.Stat(final); statErr == nil {
		os.RemoveAll(tmp)
		return domain.Release{}, fmt.Errorf("%w: release id %s collides with an unverifiable directory", domain.ErrStaging, rel.ID)
	}

	if err := os.WriteFile(filepath.Join(tmp, checksumFile), []byte(sum+"\n"), 0o644); err != nil {
		os.RemoveAll(tmp)
		return domain.Release{}, fmt.Errorf("%w: write checksum: %v", domain.ErrStaging, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.RemoveAll(tmp)
		return domain.Release{}, fmt.Errorf("%w: publish release %s: %v", domain.ErrStaging, rel.ID, err)
	}

	rel.Dir = final
	return rel, nil
}

// List returns all staged releases, newest first. A directory without
// readable release metadata is reported and skipped, not fatal: one
// corrupt or foreign entry must not take down status, listing, or the
// retention step of every later deployment. Skipped entries are also
// invisible to [Store.Prune], which never deletes what it cannot read.
func (s *Store) List(_ context.Context) ([]domain.Release, error) {
	entries, err := os.ReadDir(s.releasesDir())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read releases dir: %w", err)
	}

	var releases []domain.Release
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		rel, err := readRelease(filepath.Join(s.releasesDir(), e.Name()))
		if err != nil {
			s.log("event", "skipping unreadable release dir", "dir", e.Name(), "err", err)
			continue
		}
		releases = append(releases, rel)
	}
	sort.Slice(releases, func(i, j int) bool { return releases[i].ID > releases[j].ID })
	return releases, nil
}

// Prune deletes all releases beyond the keep most recent, except protected
// ones. Protected releases beyond the cut are reported as kept.
func (s *Store) Prune(ctx context.Context, keep int, protected map[domain.ReleaseID]bool) (domain.PruneReport, error) {
	if keep < 0 {
		return domain.PruneReport{}, fmt.Errorf("%w: keep must be non-negative", domain.ErrInvalidArgument)
	}
	releases, err := s.List(ctx)
	if err != nil {
		return domain.PruneReport{}, err
	}

	var report domain.PruneReport
	for i, rel := range releases {
		if i < keep {
			continue
		}
		if protected[rel.ID] {
			report.Kept = append(report.Kept, rel.ID)
			continue
		}
		if err := os.RemoveAll(rel.Dir); err != nil {
			return report, fmt.Errorf("remove release %s: %w", rel.ID, err)
		}
		report.Removed = append(report.Removed, rel.ID)
	}
	return report, nil
}

// Bind atomically points the slot's working-directory alias at the release.
func (s *Store) Bind(_ context.Context, slot domain.Slot, rel domain.Release) error {
	if err := os.MkdirAll(s.slotsDir(), 0o755); err != nil {
		return fmt.Errorf("create slots dir: %w", err)
	}
	return atomicSymlink(rel.Dir, filepath.Join(s.slotsDir(), string(slot)))
}

// BoundRelease reports the release a slot's alias currently points at.
func (s *Store) BoundRelease(_ context.Context, slot domain.Slot) (domain.Release, bool, error) {
	target, err := os.Readlink(filepath.Join(s.slotsDir(), string(slot)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.Release{}, false, nil
		}
		return domain.Release{}, false, fmt.Errorf("read slot %s alias: %w", slot, err)
	}
	rel, err := readRelease(target)
	if err != nil {
		return domain.Release{}, false, fmt.Errorf("slot %s alias: %w", slot, err)
	}
	return rel, true, nil
}

func checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// readRelease builds a [domain.Release] from a release directory's metadata
// record.
func readRelease(dir string) (domain.Release, error) {
	raw, err := os.ReadFile(filepath.Join(dir, metaFile))
	if err != nil {
		return domain.Release{}, fmt.Errorf("%w: read %s: %v", domain.ErrStaging, metaFile, err)
	}
	var meta domain.ArtifactMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return domain.Release{}, fmt.Errorf("%w: parse %s: %v", domain.ErrStaging, metaFile, err)
	}

	mode, err := domain.ParseBuildMode(meta.BuildMode)
	if err != nil {
		return domain.Release{}, err
	}
	createdAt, err := parseTimestamp(meta.Timestamp)
	if err != nil {
		return domain.Release{}, fmt.Errorf("%w: %s timestamp %q: %v", domain.ErrStaging, metaFile, meta.Timestamp, err)
	}

	return domain.Release{
		ID:        domain.ReleaseIDFromTime(createdAt),
		Dir:       dir,
		Mode:      mode,
		CreatedAt: createdAt,
	}, nil
}

// parseTimestamp accepts the packaging tool's compact id form as well as
// RFC 3339.
func parseTimestamp(v string) (time.Time, error) {
	if t, err := domain.ParseReleaseID(domain.ReleaseID(v)); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, v)
}

// extract unpacks a tar.gz archive into dest, rejecting entries that would
// escape it.
func extract(ctx context.Context, archivePath, dest string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer gz.Close()

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}

	tr := tar.NewReader(gz)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		name := filepath.Clean(hdr.Name)
		if name == "." {
			continue
		}
		if strings.HasPrefix(name, "..") || filepath.IsAbs(name) {
			return fmt.Errorf("entry %q escapes archive root", hdr.Name)
		}
		path := filepath.Join(dest, name)

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(path, os.FileMode(hdr.Mode)|0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(hdr.Mode))
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return err
			}
			if err := os.Symlink(hdr.Linkname, path); err != nil {
				return err
			}
		default:
			// Hard links, devices and the like have no business in an
			// application artifact.
			return fmt.Errorf("entry %q has unsupported type %d", hdr.Name, hdr.Typeflag)
		}
	}
}

func (s *Store) log(kv ...any) {
	if s.Logger != nil {
		s.Logger.Log(kv...)
	}
}

// atomicSymlink points link at target via a temp name and a rename.
func atomicSymlink(target, link string) error {
	tmp := link + ".tmp-" + uuid.NewString()
	if err := os.Symlink(target, tmp); err != nil {
		return fmt.Errorf("create symlink: %w", err)
	}
	if err := os.Rename(tmp, link); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("publish symlink: %w", err)
	}
	return nil
}
