package crawler

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/contentsync/internal/content"
	"github.com/Aman-CERP/contentsync/internal/repository"
)

// memStore is an IndexStore that keeps documents in a map and logs every call.
type memStore struct {
	mu   sync.Mutex
	docs map[string]*content.Document
	ops  []string
}

func newMemStore() *memStore {
	return &memStore{docs: make(map[string]*content.Document)}
}

func (m *memStore) WriteDocument(_ context.Context, doc *content.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.ID] = doc
	m.ops = append(m.ops, "write "+doc.ID)
	return nil
}

func (m *memStore) DeleteDocument(_ context.Context, id content.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = append(m.ops, "delete "+id.Key())
	if !id.Version.IsLatest() {
		delete(m.docs, id.Key())
		return nil
	}
	for key, d := range m.docs {
		if d.GroupID == id.GroupID().String() && d.Language == id.Language {
			delete(m.docs, key)
		}
	}
	return nil
}

func (m *memStore) DeleteGroup(_ context.Context, group content.GroupID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = append(m.ops, "deleteGroup "+group.String())
	for key, d := range m.docs {
		if d.GroupID == group.String() {
			delete(m.docs, key)
		}
	}
	return nil
}

func (m *memStore) DeleteFallbacks(_ context.Context, id content.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = append(m.ops, "deleteFallbacks "+id.Key())
	for key, d := range m.docs {
		if d.IsFallback && d.GroupID == id.GroupID().String() && d.Language == id.Language && key != id.Key() {
			delete(m.docs, key)
		}
	}
	return nil
}

// seed stores a document without logging it.
func (m *memStore) seed(node, lang string, version int) {
	id := content.Identity{Database: "master", NodeID: node, Language: lang, Version: content.Specific(version)}
	m.docs[id.Key()] = &content.Document{
		ID:       id.Key(),
		GroupID:  id.GroupID().String(),
		Database: "master",
		NodeID:   node,
		Language: lang,
		Version:  version,
	}
}

func (m *memStore) writes() []string {
	var w []string
	for _, op := range m.ops {
		if len(op) > 6 && op[:6] == "write " {
			w = append(w, op[6:])
		}
	}
	return w
}

func (m *memStore) keys() []string {
	keys := make([]string, 0, len(m.docs))
	for k := range m.docs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// variantKeys returns the sorted document keys of one node in one language.
func (m *memStore) variantKeys(node, lang string) []string {
	prefix := "master:" + node + "/" + lang + "/"
	var keys []string
	for _, k := range m.keys() {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys
}

// fakePolicy excludes listed nodes and deletes groups of missing nodes.
type fakePolicy struct {
	repo     content.Repository
	excluded map[string]bool
	paused   bool
}

func (p *fakePolicy) IsExcluded(_ context.Context, id content.Identity) (bool, error) {
	return p.excluded[id.NodeID], nil
}

func (p *fakePolicy) ShouldStartIndexing(opts content.IndexingOptions) bool {
	return !p.paused || opts == content.IndexingForced
}

func (p *fakePolicy) GroupShouldBeDeleted(ctx context.Context, group content.GroupID) (bool, error) {
	node, err := p.repo.GetNode(ctx, group.Database, group.NodeID)
	return node == nil, err
}

// eventLog records lifecycle event names.
type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) Raise(_ context.Context, e Event) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

func (l *eventLog) names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	names := make([]string, len(l.events))
	for i, e := range l.events {
		names[i] = e.Name
	}
	return names
}

type fixture struct {
	sync   *Synchronizer
	repo   *repository.Memory
	store  *memStore
	policy *fakePolicy
	events *eventLog
}

// newRepo returns a repository with an "en" language and a /content root.
func newRepo(t *testing.T) *repository.Memory {
	t.Helper()
	repo := repository.NewMemory("master")
	repo.AddLanguage("en", "")
	require.NoError(t, repo.AddNode(repository.NodeSpec{ID: "content"}))
	return repo
}

func addNode(t *testing.T, repo *repository.Memory, spec repository.NodeSpec, lang string, versions int) {
	t.Helper()
	require.NoError(t, repo.AddNode(spec))
	for i := 0; i < versions; i++ {
		_, err := repo.AddVersion(spec.ID, lang, repository.VersionSpec{
			Fields: []content.Field{{Name: "title", Value: spec.ID}},
		})
		require.NoError(t, err)
	}
}

func setup(t *testing.T, repo content.Repository, mutate func(*Config)) *fixture {
	t.Helper()
	cfg := Config{
		IndexName: "test",
		Database:  "master",
		RootPath:  "/content",
		RootID:    "content",
	}
	if mutate != nil {
		mutate(&cfg)
	}

	f := &fixture{
		store:  newMemStore(),
		policy: &fakePolicy{repo: repo, excluded: map[string]bool{}},
		events: &eventLog{},
	}
	if m, ok := repo.(*repository.Memory); ok {
		f.repo = m
	}
	f.sync = New(cfg, repo, f.store, f.policy, f.events)
	return f
}

func latest(node, lang string) content.Identity {
	return content.Identity{Database: "master", NodeID: node, Language: lang, Version: content.Latest()}
}

func version(node, lang string, n int) content.Identity {
	return content.Identity{Database: "master", NodeID: node, Language: lang, Version: content.Specific(n)}
}

func updateEvent(id content.Identity, op *content.OperationContext) content.MutationEvent {
	return content.MutationEvent{Kind: content.EventUpdate, Identity: id, Context: op}
}
