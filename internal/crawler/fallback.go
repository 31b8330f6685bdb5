package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Aman-CERP/contentsync/internal/content"
)

// PrepareVersion builds the index-ready projection of v, with
// IsLatestVersion taken from the variant's version ordering.
func (s *Synchronizer) PrepareVersion(ctx context.Context, v *content.Version) (*content.Document, error) {
	latest, err := s.isLatestVersion(ctx, v)
	if err != nil {
		return nil, err
	}
	return s.projectVersion(v, latest), nil
}

func (s *Synchronizer) projectVersion(v *content.Version, isLatest bool) *content.Document {
	id := v.Identity()
	return &content.Document{
		ID:              id.Key(),
		GroupID:         id.GroupID().String(),
		Database:        v.Database,
		NodeID:          v.NodeID,
		Language:        v.Language,
		Version:         v.Number,
		Path:            v.Path,
		TemplateID:      v.TemplateID,
		IsLatestVersion: isLatest,
		IsFallback:      v.IsFallback,
		Temporary:       v.Temporary,
		Formatter:       s.cfg.Formatter,
		Fields:          v.FieldMap(),
		IndexedAt:       time.Now().UTC(),
	}
}

// deleteUnusedFallbackVersion retracts the document of a temporary version
// whose node no longer has item fallback enabled while the index still runs
// in fallback mode. For a synthesized version every synthesized document of
// its language goes. It reports whether a retraction happened.
func (s *Synchronizer) deleteUnusedFallbackVersion(ctx context.Context, v *content.Version) (bool, error) {
	if !s.cfg.EnableItemLanguageFallback || v.FallbackEnabled || !v.Temporary {
		return false, nil
	}

	slog.DebugContext(ctx, "retracting unused fallback version",
		slog.String("identity", v.Identity().Key()),
		slog.String("path", v.Path))

	if v.IsFallback {
		return true, s.retractFallbacks(ctx, v.Identity().WithVersion(content.Latest()))
	}
	if err := s.store.DeleteDocument(ctx, v.Identity()); err != nil {
		return false, fmt.Errorf("failed to delete unused fallback version %s: %w", v.Identity(), err)
	}
	return true, nil
}

// retractSupersededFallbacks removes the synthesized documents of v's
// language that v makes stale: all of them once the language has a real
// version, the other version numbers when v is itself synthesized.
func (s *Synchronizer) retractSupersededFallbacks(ctx context.Context, v *content.Version) error {
	if v.IsFallback {
		return s.retractFallbacks(ctx, v.Identity())
	}
	return s.retractFallbacks(ctx, v.Identity().WithVersion(content.Latest()))
}

// retractFallbacks removes the synthesized documents of id's language
// variant, keeping the version id names when it is specific. It does
// nothing outside item fallback mode.
func (s *Synchronizer) retractFallbacks(ctx context.Context, id content.Identity) error {
	if !s.cfg.EnableItemLanguageFallback {
		return nil
	}
	if err := s.store.DeleteFallbacks(ctx, id); err != nil {
		return fmt.Errorf("failed to retract fallback documents of %s: %w", id, err)
	}
	return nil
}

// writeSynthesizedFallbacks writes the synthesized versions of every
// language that currently borrows its content from v's language. Used
// when an update is narrowed to v's own language or version.
func (s *Synchronizer) writeSynthesizedFallbacks(ctx context.Context, guard *ProcessedSet, v *content.Version) error {
	if !s.cfg.EnableItemLanguageFallback || v.IsFallback {
		return nil
	}

	languages, err := s.repo.GetLanguagesSharingFallback(ctx, v.Language, v.Database, v.NodeID)
	if err != nil {
		return fmt.Errorf("failed to get fallback languages of %s: %w", v.Identity(), err)
	}

	for _, lang := range languages {
		id := content.Identity{Database: v.Database, NodeID: v.NodeID, Language: lang, Version: content.Latest()}
		fv, err := s.repo.GetVersion(ctx, id, s.freshReadOpts())
		if err != nil {
			return fmt.Errorf("failed to get fallback version %s: %w", id, err)
		}
		if fv == nil || !fv.IsFallback {
			continue
		}
		retracted, err := s.deleteUnusedFallbackVersion(ctx, fv)
		if err != nil {
			return err
		}
		if retracted || !guard.TryAdd(fv.Identity()) {
			continue
		}
		if err := s.retractSupersededFallbacks(ctx, fv); err != nil {
			return err
		}
		if err := s.store.WriteDocument(ctx, s.projectVersion(fv, true)); err != nil {
			return fmt.Errorf("failed to write fallback version %s: %w", fv.Identity(), err)
		}
	}
	return nil
}

// propagateFallbackFields re-updates the real versions of every language
// that falls back to the language of id, because their shared fields were
// derived from content that is being deleted. If id no longer resolves its
// fields are unknown and the propagation runs unconditionally.
func (s *Synchronizer) propagateFallbackFields(ctx context.Context, guard *ProcessedSet, id content.Identity) error {
	v, err := s.getVersion(ctx, id)
	if err != nil {
		return err
	}
	if v != nil && !v.HasSharedFallbackFields() {
		return nil
	}

	languages, err := s.repo.GetLanguagesSharingFallback(ctx, id.Language, id.Database, id.NodeID)
	if err != nil {
		return fmt.Errorf("failed to get fallback languages of %s: %w", id, err)
	}

	storedOnly := content.ReadOptions{Consistency: s.cfg.ReadConsistency}
	for _, lang := range languages {
		versions, err := s.repo.GetVersions(ctx, id.Database, id.NodeID, lang, storedOnly)
		if err != nil {
			return fmt.Errorf("failed to list versions of %s in %s: %w", id.GroupID(), lang, err)
		}
		for _, fv := range versions {
			if err := s.Update(ctx, guard, fv.Identity(), nil, content.IndexingDefault); err != nil {
				return err
			}
		}
	}
	return nil
}

// retractFallbackVersions deletes the synthesized documents of every
// dependent language that only existed because of id. Deletes coming from
// another database do not trigger this cleanup.
func (s *Synchronizer) retractFallbackVersions(ctx context.Context, id content.Identity) error {
	if id.Database != s.cfg.Database {
		return nil
	}

	source, err := s.getVersion(ctx, id)
	if err != nil {
		return err
	}

	languages, err := s.repo.GetLanguagesSharingFallback(ctx, id.Language, id.Database, id.NodeID)
	if err != nil {
		return fmt.Errorf("failed to get fallback languages of %s: %w", id, err)
	}

	for _, lang := range languages {
		target := id.WithLanguage(lang)

		if source == nil {
			// Without the source nothing can be synthesized any more; a
			// language with no real versions only ever held fallback documents.
			numbers, err := s.repo.GetVersionNumbers(ctx, id.Database, id.NodeID, lang, content.ReadOptions{Consistency: s.cfg.ReadConsistency})
			if err != nil {
				return fmt.Errorf("failed to get version numbers of %s: %w", target, err)
			}
			if len(numbers) > 0 {
				continue
			}
			if err := s.store.DeleteDocument(ctx, target.WithVersion(content.Latest())); err != nil {
				return fmt.Errorf("failed to retract fallback documents of %s: %w", target, err)
			}
			continue
		}

		fv, err := s.repo.GetVersion(ctx, target.WithVersion(content.Specific(source.Number)), s.freshReadOpts())
		if err != nil {
			return fmt.Errorf("failed to get fallback version %s: %w", target, err)
		}
		if fv == nil || !fv.Temporary {
			continue
		}
		if err := s.store.DeleteDocument(ctx, fv.Identity()); err != nil {
			return fmt.Errorf("failed to retract fallback version %s: %w", fv.Identity(), err)
		}
	}
	return nil
}
