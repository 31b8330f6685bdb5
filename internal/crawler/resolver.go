package crawler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Aman-CERP/contentsync/internal/content"
)

// ResolveVersions returns the versions of the given node in language that
// must be re-indexed, oldest first. A missing latest version is a soft skip
// and yields no versions.
//
// A synthesized fallback version has no history of its own, so it resolves
// to itself alone. Before returning, a stale temporary version (fallback
// switched off on the node) has its document retracted and is left out, and
// in fallback mode the language's superseded synthesized documents are
// removed.
func (s *Synchronizer) ResolveVersions(ctx context.Context, v *content.Version, language string) ([]*content.Version, error) {
	latestID := content.Identity{
		Database: v.Database,
		NodeID:   v.NodeID,
		Language: language,
		Version:  content.Latest(),
	}

	latest, err := s.repo.GetVersion(ctx, latestID, s.freshReadOpts())
	if err != nil {
		return nil, fmt.Errorf("failed to get latest version of %s: %w", latestID, err)
	}
	if latest == nil {
		if err := s.retractFallbacks(ctx, latestID); err != nil {
			return nil, err
		}
		slog.WarnContext(ctx, "latest version not found, skipping",
			slog.String("index", s.cfg.IndexName),
			slog.String("identity", latestID.Key()),
			slog.String("path", v.Path))
		return nil, nil
	}

	var versions []*content.Version
	if s.cfg.EnableItemLanguageFallback && latest.IsFallback {
		versions = []*content.Version{latest}
	} else {
		versions, err = s.repo.GetVersions(ctx, v.Database, v.NodeID, language, s.freshReadOpts())
		if err != nil {
			return nil, fmt.Errorf("failed to list versions of %s: %w", latestID, err)
		}
	}

	retracted, err := s.deleteUnusedFallbackVersion(ctx, latest)
	if err != nil {
		return nil, err
	}
	if !retracted {
		if err := s.retractSupersededFallbacks(ctx, latest); err != nil {
			return nil, err
		}
		return versions, nil
	}

	kept := versions[:0:0]
	for _, ver := range versions {
		if ver.Temporary && !ver.FallbackEnabled {
			continue
		}
		kept = append(kept, ver)
	}
	return kept, nil
}

// ResolveIndexableAndCheckDeletes looks up the version named by id. If id
// names a specific version that is no longer among the variant's version
// numbers, the result is nil: that is how a version deleted in the
// repository is detected without an explicit delete event.
func (s *Synchronizer) ResolveIndexableAndCheckDeletes(ctx context.Context, id content.Identity) (*content.Version, error) {
	v, err := s.repo.GetVersion(ctx, id, s.freshReadOpts())
	if err != nil {
		return nil, fmt.Errorf("failed to get version %s: %w", id, err)
	}
	if v == nil {
		return nil, nil
	}
	if id.Version.IsLatest() {
		return v, nil
	}

	numbers, err := s.repo.GetVersionNumbers(ctx, id.Database, id.NodeID, id.Language, s.freshReadOpts())
	if err != nil {
		return nil, fmt.Errorf("failed to get version numbers of %s: %w", id, err)
	}
	if !id.Version.In(numbers) {
		slog.DebugContext(ctx, "version no longer exists",
			slog.String("identity", id.Key()),
			slog.Any("versions", numbers))
		return nil, nil
	}
	return v, nil
}

// getVersion is a plain lookup without the deleted-version check.
func (s *Synchronizer) getVersion(ctx context.Context, id content.Identity) (*content.Version, error) {
	v, err := s.repo.GetVersion(ctx, id, s.readOpts())
	if err != nil {
		return nil, fmt.Errorf("failed to get version %s: %w", id, err)
	}
	return v, nil
}

// isLatestVersion reports whether v is the highest version of its variant.
func (s *Synchronizer) isLatestVersion(ctx context.Context, v *content.Version) (bool, error) {
	numbers, err := s.repo.GetVersionNumbers(ctx, v.Database, v.NodeID, v.Language, s.freshReadOpts())
	if err != nil {
		return false, fmt.Errorf("failed to get version numbers of %s: %w", v.Identity(), err)
	}
	if len(numbers) == 0 {
		return true, nil
	}
	return v.Number >= numbers[len(numbers)-1], nil
}
