package repository

import (
	"slices"
	"sort"

	"github.com/Aman-CERP/contentsync/internal/content"
)

// Diff compares two snapshots of the same database and returns the
// mutation events that bring an index built from before up to date with
// after. Events are ordered by content path.
func Diff(before, after *Memory) []content.MutationEvent {
	before.mu.RLock()
	defer before.mu.RUnlock()
	after.mu.RLock()
	defer after.mu.RUnlock()

	type pathed struct {
		path string
		ev   content.MutationEvent
	}
	var out []pathed
	emit := func(path string, id content.Identity, op *content.OperationContext) {
		out = append(out, pathed{path: path, ev: content.MutationEvent{
			Kind:     content.EventUpdate,
			Identity: id,
			Context:  op,
		}})
	}

	for _, nodeID := range after.sortedIDsLocked() {
		n := after.nodes[nodeID]
		path := after.pathLocked(n)
		latest := content.Identity{
			Database: after.database,
			NodeID:   nodeID,
			Language: after.primaryLanguageLocked(n),
			Version:  content.Latest(),
		}

		old, existed := before.nodes[nodeID]
		if !existed {
			emit(path, latest, &content.OperationContext{
				NeedUpdateAllVersions:  true,
				NeedUpdateAllLanguages: true,
			})
			continue
		}

		if old.parentID != n.parentID || old.name != n.name {
			op := &content.OperationContext{NeedUpdateChildren: true}
			if old.parentID != n.parentID {
				op.OldParentID = old.parentID
			}
			emit(path, latest, op)
			continue
		}

		if old.itemFallback != n.itemFallback || old.templateID != n.templateID || !slices.Equal(old.dependsOn, n.dependsOn) {
			emit(path, latest, &content.OperationContext{
				NeedUpdateAllVersions:  true,
				NeedUpdateAllLanguages: true,
			})
			continue
		}

		for _, lang := range unionLanguages(old, n) {
			oldByNumber := indexVersions(old.versions[lang])
			newVersions := n.versions[lang]
			newByNumber := indexVersions(newVersions)
			newLatest := 0
			if len(newVersions) > 0 {
				newLatest = newVersions[len(newVersions)-1].number
			}

			for _, r := range newVersions {
				id := latest.WithLanguage(lang).WithVersion(content.Specific(r.number))
				prev, had := oldByNumber[r.number]
				switch {
				case !had && r.number == newLatest:
					emit(path, id, &content.OperationContext{NeedUpdatePreviousVersion: true})
				case !had:
					emit(path, id, nil)
				case prev.temporary != r.temporary || !slices.Equal(prev.fields, r.fields):
					emit(path, id, nil)
				}
			}

			for _, r := range old.versions[lang] {
				if newByNumber[r.number] == nil {
					emit(path, latest.WithLanguage(lang).WithVersion(content.Specific(r.number)), nil)
				}
			}
		}
	}

	for _, nodeID := range before.sortedIDsLocked() {
		if _, ok := after.nodes[nodeID]; ok {
			continue
		}
		n := before.nodes[nodeID]
		emit(before.pathLocked(n), content.Identity{
			Database: before.database,
			NodeID:   nodeID,
			Language: before.primaryLanguageLocked(n),
			Version:  content.Latest(),
		}, nil)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].path < out[j].path
	})

	events := make([]content.MutationEvent, len(out))
	for i, p := range out {
		events[i] = p.ev
	}
	return events
}

// primaryLanguageLocked is the first language the node has a version in,
// or the first database language.
func (m *Memory) primaryLanguageLocked(n *nodeRecord) string {
	if langs := m.storedLanguagesLocked(n); len(langs) > 0 {
		return langs[0]
	}
	if len(m.languages) > 0 {
		return m.languages[0].Name
	}
	return ""
}

func unionLanguages(a, b *nodeRecord) []string {
	seen := make(map[string]bool)
	var langs []string
	for _, n := range []*nodeRecord{a, b} {
		for lang := range n.versions {
			if !seen[lang] {
				seen[lang] = true
				langs = append(langs, lang)
			}
		}
	}
	sort.Strings(langs)
	return langs
}

func indexVersions(versions []*versionRecord) map[int]*versionRecord {
	m := make(map[int]*versionRecord, len(versions))
	for _, r := range versions {
		m[r.number] = r
	}
	return m
}
