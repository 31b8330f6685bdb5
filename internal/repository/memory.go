// Package repository provides a content repository held in memory and
// loaded from YAML, plus a caching decorator and a snapshot differ that
// turns repository changes into mutation events.
package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Aman-CERP/contentsync/internal/content"
)

// maxDepth bounds parent-chain walks so a corrupt parent cycle cannot hang.
const maxDepth = 256

// LanguageDef is a language of the database and the language it falls back to.
type LanguageDef struct {
	Name     string
	Fallback string
}

// NodeSpec describes a node to add.
type NodeSpec struct {
	ID         string
	Name       string
	ParentID   string
	TemplateID string
	// ItemFallback enables item language fallback for this node.
	ItemFallback bool
	// DependsOn lists nodes whose content this node's documents embed.
	DependsOn []string
}

// VersionSpec describes a stored version to add. A zero Number appends
// after the current latest version.
type VersionSpec struct {
	Number    int
	Temporary bool
	Fields    []content.Field
}

type versionRecord struct {
	number    int
	temporary bool
	fields    []content.Field
}

type nodeRecord struct {
	id           string
	name         string
	parentID     string
	templateID   string
	itemFallback bool
	dependsOn    []string
	versions     map[string][]*versionRecord // language -> ascending
}

// Memory is a single-database content repository. It is safe for
// concurrent readers; writers take an exclusive lock.
type Memory struct {
	mu        sync.RWMutex
	database  string
	languages []LanguageDef
	nodes     map[string]*nodeRecord
}

var _ content.Repository = (*Memory)(nil)

// NewMemory creates an empty repository for database.
func NewMemory(database string) *Memory {
	return &Memory{
		database: database,
		nodes:    make(map[string]*nodeRecord),
	}
}

// Database returns the database name.
func (m *Memory) Database() string {
	return m.database
}

// AddLanguage defines a language. fallback may be empty.
func (m *Memory) AddLanguage(name, fallback string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, l := range m.languages {
		if l.Name == name {
			m.languages[i].Fallback = fallback
			return
		}
	}
	m.languages = append(m.languages, LanguageDef{Name: name, Fallback: fallback})
}

// AddNode adds a node. The parent does not have to exist yet.
func (m *Memory) AddNode(spec NodeSpec) error {
	if spec.ID == "" {
		return fmt.Errorf("node id is required")
	}
	if spec.Name == "" {
		spec.Name = spec.ID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.nodes[spec.ID]; ok {
		return fmt.Errorf("duplicate node id %q", spec.ID)
	}
	m.nodes[spec.ID] = &nodeRecord{
		id:           spec.ID,
		name:         spec.Name,
		parentID:     spec.ParentID,
		templateID:   spec.TemplateID,
		itemFallback: spec.ItemFallback,
		dependsOn:    append([]string(nil), spec.DependsOn...),
		versions:     make(map[string][]*versionRecord),
	}
	return nil
}

// AddVersion stores a version of a language variant and returns its number.
func (m *Memory) AddVersion(nodeID, language string, spec VersionSpec) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.nodes[nodeID]
	if !ok {
		return 0, fmt.Errorf("unknown node %q", nodeID)
	}

	existing := n.versions[language]
	number := spec.Number
	if number == 0 {
		number = 1
		if len(existing) > 0 {
			number = existing[len(existing)-1].number + 1
		}
	}
	for _, r := range existing {
		if r.number == number {
			return 0, fmt.Errorf("node %q already has version %d in %q", nodeID, number, language)
		}
	}

	rec := &versionRecord{
		number:    number,
		temporary: spec.Temporary,
		fields:    append([]content.Field(nil), spec.Fields...),
	}
	versions := append(existing, rec)
	sort.Slice(versions, func(i, j int) bool { return versions[i].number < versions[j].number })
	n.versions[language] = versions
	return number, nil
}

// SetFields replaces the fields of a stored version.
func (m *Memory) SetFields(nodeID, language string, number int, fields []content.Field) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.nodes[nodeID]
	if !ok {
		return fmt.Errorf("unknown node %q", nodeID)
	}
	for _, r := range n.versions[language] {
		if r.number == number {
			r.fields = append([]content.Field(nil), fields...)
			return nil
		}
	}
	return fmt.Errorf("node %q has no version %d in %q", nodeID, number, language)
}

// RemoveVersion deletes one stored version. Removing a missing version is a no-op.
func (m *Memory) RemoveVersion(nodeID, language string, number int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.nodes[nodeID]
	if !ok {
		return
	}
	versions := n.versions[language]
	for i, r := range versions {
		if r.number == number {
			n.versions[language] = append(versions[:i:i], versions[i+1:]...)
			break
		}
	}
	if len(n.versions[language]) == 0 {
		delete(n.versions, language)
	}
}

// RemoveNode deletes a node and its whole subtree.
func (m *Memory) RemoveNode(nodeID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(nodeID, 0)
}

func (m *Memory) removeLocked(nodeID string, depth int) {
	if depth > maxDepth {
		return
	}
	for _, child := range m.childIDsLocked(nodeID) {
		m.removeLocked(child, depth+1)
	}
	delete(m.nodes, nodeID)
}

// MoveNode re-parents a node.
func (m *Memory) MoveNode(nodeID, newParentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.nodes[nodeID]
	if !ok {
		return fmt.Errorf("unknown node %q", nodeID)
	}
	n.parentID = newParentID
	return nil
}

// SetItemFallback toggles item language fallback on a node.
func (m *Memory) SetItemFallback(nodeID string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.nodes[nodeID]
	if !ok {
		return fmt.Errorf("unknown node %q", nodeID)
	}
	n.itemFallback = enabled
	return nil
}

// Replace swaps in the contents of other, keeping this instance (and
// everything holding it) in place. other must not be used afterwards.
func (m *Memory) Replace(other *Memory) {
	other.mu.RLock()
	languages := other.languages
	nodes := other.nodes
	database := other.database
	other.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.database = database
	m.languages = languages
	m.nodes = nodes
}

// Clone returns a deep copy, used as the "before" snapshot of a diff.
func (m *Memory) Clone() *Memory {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c := NewMemory(m.database)
	c.languages = append([]LanguageDef(nil), m.languages...)
	for id, n := range m.nodes {
		cn := *n
		cn.dependsOn = append([]string(nil), n.dependsOn...)
		cn.versions = make(map[string][]*versionRecord, len(n.versions))
		for lang, versions := range n.versions {
			cv := make([]*versionRecord, len(versions))
			for i, r := range versions {
				rc := *r
				rc.fields = append([]content.Field(nil), r.fields...)
				cv[i] = &rc
			}
			cn.versions[lang] = cv
		}
		c.nodes[id] = &cn
	}
	return c
}

// NodeIDs returns every node ID in sorted order.
func (m *Memory) NodeIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sortedIDsLocked()
}

// GetNode implements content.Repository.
func (m *Memory) GetNode(_ context.Context, database, nodeID string) (*content.Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := m.lookupLocked(database, nodeID)
	if n == nil {
		return nil, nil
	}
	return m.buildNodeLocked(n), nil
}

// GetLanguages implements content.Repository.
func (m *Memory) GetLanguages(_ context.Context, database string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if database != m.database {
		return nil, nil
	}
	names := make([]string, len(m.languages))
	for i, l := range m.languages {
		names[i] = l.Name
	}
	return names, nil
}

// GetVersion implements content.Repository. With opts.ItemFallback a
// language without stored versions resolves to a temporary version
// synthesized from the first language up its fallback chain that has one.
// The temporary version is returned even when the node has item fallback
// switched off, with FallbackEnabled false, so its document can be retracted.
func (m *Memory) GetVersion(_ context.Context, id content.Identity, opts content.ReadOptions) (*content.Version, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := m.lookupLocked(id.Database, id.NodeID)
	if n == nil {
		return nil, nil
	}

	if stored := n.versions[id.Language]; len(stored) > 0 {
		rec := pickVersion(stored, id.Version)
		if rec == nil {
			return nil, nil
		}
		return m.buildVersionLocked(n, id.Language, rec, opts), nil
	}

	if !opts.ItemFallback {
		return nil, nil
	}
	srcLang, src := m.fallbackSourceLocked(n, id.Language)
	if src == nil {
		return nil, nil
	}
	if !id.Version.IsLatest() && id.Version.Number() != src.number {
		return nil, nil
	}

	v := m.buildVersionLocked(n, id.Language, src, content.ReadOptions{})
	v.IsFallback = true
	v.FallbackSource = srcLang
	v.Temporary = true
	return v, nil
}

// GetVersionNumbers implements content.Repository.
func (m *Memory) GetVersionNumbers(_ context.Context, database, nodeID, language string, opts content.ReadOptions) ([]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := m.lookupLocked(database, nodeID)
	if n == nil {
		return nil, nil
	}

	stored := n.versions[language]
	if len(stored) == 0 {
		if opts.ItemFallback && n.itemFallback {
			if _, src := m.fallbackSourceLocked(n, language); src != nil {
				return []int{src.number}, nil
			}
		}
		return nil, nil
	}

	numbers := make([]int, len(stored))
	for i, r := range stored {
		numbers[i] = r.number
	}
	return numbers, nil
}

// GetVersions implements content.Repository. Only stored versions are returned.
func (m *Memory) GetVersions(_ context.Context, database, nodeID, language string, opts content.ReadOptions) ([]*content.Version, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := m.lookupLocked(database, nodeID)
	if n == nil {
		return nil, nil
	}

	stored := n.versions[language]
	versions := make([]*content.Version, 0, len(stored))
	for _, r := range stored {
		versions = append(versions, m.buildVersionLocked(n, language, r, opts))
	}
	return versions, nil
}

// GetChildren implements content.Repository. Children are ordered by name.
func (m *Memory) GetChildren(_ context.Context, database, nodeID string) ([]*content.Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if database != m.database {
		return nil, nil
	}
	ids := m.childIDsLocked(nodeID)
	children := make([]*content.Node, 0, len(ids))
	for _, id := range ids {
		children = append(children, m.buildNodeLocked(m.nodes[id]))
	}
	return children, nil
}

// GetDependents implements content.Repository. A node depending on id.NodeID
// is reported in id's language when it has that language, otherwise in
// every language it has.
func (m *Memory) GetDependents(_ context.Context, id content.Identity) ([]content.Identity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if id.Database != m.database {
		return nil, nil
	}

	var deps []content.Identity
	for _, nodeID := range m.sortedIDsLocked() {
		n := m.nodes[nodeID]
		if nodeID == id.NodeID || !contains(n.dependsOn, id.NodeID) {
			continue
		}
		languages := []string{id.Language}
		if len(n.versions[id.Language]) == 0 {
			languages = m.storedLanguagesLocked(n)
		}
		for _, lang := range languages {
			deps = append(deps, content.Identity{
				Database: m.database,
				NodeID:   nodeID,
				Language: lang,
				Version:  content.Latest(),
			})
		}
	}
	return deps, nil
}

// GetDependentsOnDelete implements content.Repository.
func (m *Memory) GetDependentsOnDelete(ctx context.Context, id content.Identity) ([]content.Identity, error) {
	return m.GetDependents(ctx, id)
}

// GetLanguagesSharingFallback implements content.Repository.
func (m *Memory) GetLanguagesSharingFallback(_ context.Context, language, database, nodeID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.lookupLocked(database, nodeID) == nil {
		return nil, nil
	}

	reached := map[string]bool{language: true}
	for changed := true; changed; {
		changed = false
		for _, l := range m.languages {
			if !reached[l.Name] && l.Fallback != "" && reached[l.Fallback] {
				reached[l.Name] = true
				changed = true
			}
		}
	}

	var result []string
	for _, l := range m.languages {
		if l.Name != language && reached[l.Name] {
			result = append(result, l.Name)
		}
	}
	return result, nil
}

func (m *Memory) lookupLocked(database, nodeID string) *nodeRecord {
	if database != m.database {
		return nil
	}
	return m.nodes[nodeID]
}

func (m *Memory) buildNodeLocked(n *nodeRecord) *content.Node {
	return &content.Node{
		ID:         n.id,
		Database:   m.database,
		Name:       n.name,
		Path:       m.pathLocked(n),
		ParentID:   n.parentID,
		TemplateID: n.templateID,
		Languages:  m.storedLanguagesLocked(n),
	}
}

func (m *Memory) buildVersionLocked(n *nodeRecord, language string, rec *versionRecord, opts content.ReadOptions) *content.Version {
	v := &content.Version{
		NodeID:          n.id,
		Database:        m.database,
		Path:            m.pathLocked(n),
		ParentID:        n.parentID,
		TemplateID:      n.templateID,
		Language:        language,
		Number:          rec.number,
		FallbackEnabled: n.itemFallback,
		Temporary:       rec.temporary,
		Fields:          append([]content.Field(nil), rec.fields...),
	}
	if opts.FieldFallback {
		m.fillSharedFieldsLocked(n, v)
	}
	return v
}

// fillSharedFieldsLocked fills empty or missing fields of v from shared
// fields of the languages up its fallback chain.
func (m *Memory) fillSharedFieldsLocked(n *nodeRecord, v *content.Version) {
	index := make(map[string]int, len(v.Fields))
	for i, f := range v.Fields {
		index[f.Name] = i
	}

	visited := map[string]bool{v.Language: true}
	for lang := m.fallbackOfLocked(v.Language); lang != "" && !visited[lang]; lang = m.fallbackOfLocked(lang) {
		visited[lang] = true
		stored := n.versions[lang]
		if len(stored) == 0 {
			continue
		}
		for _, f := range stored[len(stored)-1].fields {
			if !f.SharedLanguageFallback || f.Value == "" {
				continue
			}
			if i, ok := index[f.Name]; ok {
				if v.Fields[i].Value == "" {
					v.Fields[i].Value = f.Value
				}
				continue
			}
			index[f.Name] = len(v.Fields)
			v.Fields = append(v.Fields, content.Field{Name: f.Name, Value: f.Value})
		}
	}
}

func (m *Memory) fallbackSourceLocked(n *nodeRecord, language string) (string, *versionRecord) {
	visited := map[string]bool{language: true}
	for lang := m.fallbackOfLocked(language); lang != "" && !visited[lang]; lang = m.fallbackOfLocked(lang) {
		visited[lang] = true
		if stored := n.versions[lang]; len(stored) > 0 {
			return lang, stored[len(stored)-1]
		}
	}
	return "", nil
}

func (m *Memory) fallbackOfLocked(language string) string {
	for _, l := range m.languages {
		if l.Name == language {
			return l.Fallback
		}
	}
	return ""
}

func (m *Memory) pathLocked(n *nodeRecord) string {
	path := "/" + n.name
	cur := n
	for depth := 0; cur.parentID != "" && depth < maxDepth; depth++ {
		parent, ok := m.nodes[cur.parentID]
		if !ok {
			break
		}
		path = "/" + parent.name + path
		cur = parent
	}
	return path
}

func (m *Memory) storedLanguagesLocked(n *nodeRecord) []string {
	var langs []string
	seen := make(map[string]bool, len(n.versions))
	for _, l := range m.languages {
		if len(n.versions[l.Name]) > 0 {
			langs = append(langs, l.Name)
			seen[l.Name] = true
		}
	}
	// Languages not declared in the database still count, in stable order.
	var extra []string
	for lang, versions := range n.versions {
		if !seen[lang] && len(versions) > 0 {
			extra = append(extra, lang)
		}
	}
	sort.Strings(extra)
	return append(langs, extra...)
}

func (m *Memory) childIDsLocked(nodeID string) []string {
	var ids []string
	for id, n := range m.nodes {
		if n.parentID == nodeID && id != nodeID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := m.nodes[ids[i]], m.nodes[ids[j]]
		if a.name != b.name {
			return a.name < b.name
		}
		return a.id < b.id
	})
	return ids
}

func (m *Memory) sortedIDsLocked() []string {
	ids := make([]string, 0, len(m.nodes))
	for id := range m.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func pickVersion(stored []*versionRecord, sel content.VersionSelector) *versionRecord {
	if sel.IsLatest() {
		return stored[len(stored)-1]
	}
	for _, r := range stored {
		if r.number == sel.Number() {
			return r
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
