// Package content defines the content-repository data model the synchronizer
// reacts to: nodes, their language variants and versions, and the index
// documents projected from them.
package content

import (
	"time"
)

// Node is a content unit addressable by stable identity and hierarchical path.
// ParentID is a weak back-reference used for scope checks only.
type Node struct {
	ID         string
	Database   string
	Name       string
	Path       string // e.g. /content/home/news
	ParentID   string // empty for tree roots
	TemplateID string
	Languages  []string // languages with at least one stored version
}

// GroupID returns the document group of the node.
func (n *Node) GroupID() GroupID {
	return GroupID{Database: n.Database, NodeID: n.ID}
}

// IsAtOrBelow reports whether the node path equals root or lies under it.
func (n *Node) IsAtOrBelow(root string) bool {
	return IsPathAtOrBelow(n.Path, root)
}

// IsPathAtOrBelow reports whether path equals root or is one of its descendants.
func IsPathAtOrBelow(path, root string) bool {
	if root == "" || root == "/" {
		return true
	}
	if path == root {
		return true
	}
	return len(path) > len(root) && path[:len(root)] == root && path[len(root)] == '/'
}

// Field is one named value of a version.
type Field struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`

	// SharedLanguageFallback marks a field whose value is shared with the
	// languages that fall back to this one.
	SharedLanguageFallback bool `json:"shared_fallback,omitempty" yaml:"shared_fallback,omitempty"`
}

// Version is one historical snapshot of a language variant.
type Version struct {
	NodeID     string
	Database   string
	Path       string
	ParentID   string
	TemplateID string
	Language   string
	Number     int

	// IsFallback is set on versions synthesized from another language.
	IsFallback bool
	// FallbackSource is the language the content was borrowed from.
	FallbackSource string
	// FallbackEnabled mirrors the node's item-language-fallback setting.
	FallbackEnabled bool
	// Temporary marks a version materialized only to satisfy fallback display.
	Temporary bool

	Fields []Field
}

// Identity returns the identity naming exactly this version.
func (v *Version) Identity() Identity {
	return Identity{
		Database: v.Database,
		NodeID:   v.NodeID,
		Language: v.Language,
		Version:  Specific(v.Number),
	}
}

// HasSharedFallbackFields reports whether any field is shared with fallback languages.
func (v *Version) HasSharedFallbackFields() bool {
	for _, f := range v.Fields {
		if f.SharedLanguageFallback {
			return true
		}
	}
	return false
}

// FieldMap returns the fields as a name → value map.
func (v *Version) FieldMap() map[string]string {
	m := make(map[string]string, len(v.Fields))
	for _, f := range v.Fields {
		m[f.Name] = f.Value
	}
	return m
}

// Document is the indexed projection of exactly one (node, language, version).
type Document struct {
	ID              string            `json:"id"`
	GroupID         string            `json:"group_id"`
	Database        string            `json:"database"`
	NodeID          string            `json:"node_id"`
	Language        string            `json:"language"`
	Version         int               `json:"version"`
	Path            string            `json:"path"`
	TemplateID      string            `json:"template_id,omitempty"`
	IsLatestVersion bool              `json:"is_latest_version"`
	IsFallback      bool              `json:"is_fallback"`
	Temporary       bool              `json:"temporary"`
	Formatter       string            `json:"formatter"`
	Fields          map[string]string `json:"fields"`
	IndexedAt       time.Time         `json:"indexed_at"`
}

// Identity returns the identity of the version the document projects.
func (d *Document) Identity() Identity {
	return Identity{
		Database: d.Database,
		NodeID:   d.NodeID,
		Language: d.Language,
		Version:  Specific(d.Version),
	}
}
