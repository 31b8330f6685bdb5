package repository

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/contentsync/internal/content"
	serrors "github.com/Aman-CERP/contentsync/internal/errors"
)

// fileRepository is the on-disk YAML layout of a content database.
//
//	database: master
//	languages:
//	  - name: en
//	  - name: de
//	    fallback: en
//	nodes:
//	  - id: home
//	    parent: content
//	    item_fallback: true
//	    depends_on: [footer]
//	    versions:
//	      en:
//	        - number: 1
//	          fields:
//	            - {name: title, value: Home, shared_fallback: true}
type fileRepository struct {
	Database  string         `yaml:"database"`
	Languages []fileLanguage `yaml:"languages"`
	Nodes     []fileNode     `yaml:"nodes"`
}

type fileLanguage struct {
	Name     string `yaml:"name"`
	Fallback string `yaml:"fallback,omitempty"`
}

type fileNode struct {
	ID           string                   `yaml:"id"`
	Name         string                   `yaml:"name,omitempty"`
	Parent       string                   `yaml:"parent,omitempty"`
	Template     string                   `yaml:"template,omitempty"`
	ItemFallback bool                     `yaml:"item_fallback,omitempty"`
	DependsOn    []string                 `yaml:"depends_on,omitempty"`
	Versions     map[string][]fileVersion `yaml:"versions,omitempty"`
}

type fileVersion struct {
	Number    int             `yaml:"number,omitempty"`
	Temporary bool            `yaml:"temporary,omitempty"`
	Fields    []content.Field `yaml:"fields,omitempty"`
}

// Load reads a repository from a YAML file.
func Load(path string) (*Memory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		code := serrors.ErrCodeRepositoryRead
		if os.IsNotExist(err) {
			code = serrors.ErrCodeRepositoryMissing
		}
		return nil, serrors.New(code, "failed to read repository file "+path, err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, serrors.New(serrors.ErrCodeRepositoryParse, "failed to load "+path, err)
	}
	return m, nil
}

// Parse builds a repository from YAML.
func Parse(data []byte) (*Memory, error) {
	var f fileRepository
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse repository YAML: %w", err)
	}
	if f.Database == "" {
		return nil, fmt.Errorf("database name is required")
	}

	m := NewMemory(f.Database)
	for _, l := range f.Languages {
		if l.Name == "" {
			return nil, fmt.Errorf("language name is required")
		}
		m.AddLanguage(l.Name, l.Fallback)
	}

	for _, n := range f.Nodes {
		err := m.AddNode(NodeSpec{
			ID:           n.ID,
			Name:         n.Name,
			ParentID:     n.Parent,
			TemplateID:   n.Template,
			ItemFallback: n.ItemFallback,
			DependsOn:    n.DependsOn,
		})
		if err != nil {
			return nil, err
		}

		// Map order is random; add languages in a stable order so error
		// messages are reproducible.
		langs := make([]string, 0, len(n.Versions))
		for lang := range n.Versions {
			langs = append(langs, lang)
		}
		sort.Strings(langs)

		for _, lang := range langs {
			for _, v := range n.Versions[lang] {
				_, err := m.AddVersion(n.ID, lang, VersionSpec{
					Number:    v.Number,
					Temporary: v.Temporary,
					Fields:    v.Fields,
				})
				if err != nil {
					return nil, err
				}
			}
		}
	}

	return m, nil
}

// Marshal renders the repository in the YAML layout read by Parse.
func (m *Memory) Marshal() ([]byte, error) {
	m.mu.RLock()
	f := fileRepository{Database: m.database}
	for _, l := range m.languages {
		f.Languages = append(f.Languages, fileLanguage{Name: l.Name, Fallback: l.Fallback})
	}
	for _, id := range m.sortedIDsLocked() {
		n := m.nodes[id]
		fn := fileNode{
			ID:           n.id,
			Name:         n.name,
			Parent:       n.parentID,
			Template:     n.templateID,
			ItemFallback: n.itemFallback,
			DependsOn:    n.dependsOn,
		}
		if len(n.versions) > 0 {
			fn.Versions = make(map[string][]fileVersion, len(n.versions))
			for lang, versions := range n.versions {
				for _, r := range versions {
					fn.Versions[lang] = append(fn.Versions[lang], fileVersion{
						Number:    r.number,
						Temporary: r.temporary,
						Fields:    r.fields,
					})
				}
			}
		}
		f.Nodes = append(f.Nodes, fn)
	}
	m.mu.RUnlock()

	data, err := yaml.Marshal(&f)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal repository: %w", err)
	}
	return data, nil
}
