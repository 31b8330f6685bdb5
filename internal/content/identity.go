package content

import (
	"fmt"
	"strconv"
	"strings"
)

// VersionSelector names either the latest version of a language variant
// or one specific version number.
type VersionSelector struct {
	number int // 0 means latest
}

// Latest selects the highest existing version number.
func Latest() VersionSelector {
	return VersionSelector{}
}

// Specific selects version n. Non-positive numbers select the latest version.
func Specific(n int) VersionSelector {
	if n < 0 {
		n = 0
	}
	return VersionSelector{number: n}
}

// IsLatest reports whether the selector is the "latest" sentinel.
func (s VersionSelector) IsLatest() bool {
	return s.number == 0
}

// Number returns the selected version number, or 0 for the latest sentinel.
func (s VersionSelector) Number() int {
	return s.number
}

// In reports whether the selector names one of the given version numbers.
// The latest sentinel is always considered present.
func (s VersionSelector) In(numbers []int) bool {
	if s.IsLatest() {
		return true
	}
	for _, n := range numbers {
		if n == s.number {
			return true
		}
	}
	return false
}

// String returns "latest" or the decimal version number.
func (s VersionSelector) String() string {
	if s.IsLatest() {
		return "latest"
	}
	return strconv.Itoa(s.number)
}

// ParseVersionSelector parses "latest" (or an empty string) and positive integers.
func ParseVersionSelector(s string) (VersionSelector, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "latest") {
		return Latest(), nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return VersionSelector{}, fmt.Errorf("invalid version %q: want a positive number or \"latest\"", s)
	}
	return Specific(n), nil
}

// GroupID identifies every document of one node in one database,
// across all of its languages and versions.
type GroupID struct {
	Database string
	NodeID   string
}

// String formats the group as "database:nodeID".
func (g GroupID) String() string {
	return g.Database + ":" + g.NodeID
}

// Identity addresses one (node, language, version) triple in a database.
type Identity struct {
	Database string
	NodeID   string
	Language string
	Version  VersionSelector
}

// GroupID returns the group this identity belongs to.
func (id Identity) GroupID() GroupID {
	return GroupID{Database: id.Database, NodeID: id.NodeID}
}

// WithVersion returns a copy of the identity selecting another version.
func (id Identity) WithVersion(v VersionSelector) Identity {
	id.Version = v
	return id
}

// WithLanguage returns a copy of the identity in another language.
func (id Identity) WithLanguage(lang string) Identity {
	id.Language = lang
	return id
}

// Key is the stable string form used as a document key and as the
// cycle-guard identity: "database:nodeID/language/version".
func (id Identity) Key() string {
	return id.GroupID().String() + "/" + id.Language + "/" + id.Version.String()
}

// String implements fmt.Stringer.
func (id Identity) String() string {
	return id.Key()
}

// ParseIdentity parses "database:nodeID/language/version". The version part
// may be omitted, in which case the latest version is selected.
func ParseIdentity(s string) (Identity, error) {
	group, rest, ok := strings.Cut(s, "/")
	if !ok {
		return Identity{}, fmt.Errorf("invalid identity %q: want database:nodeID/language[/version]", s)
	}
	g, err := ParseGroupID(group)
	if err != nil {
		return Identity{}, err
	}

	lang, ver, _ := strings.Cut(rest, "/")
	if lang == "" {
		return Identity{}, fmt.Errorf("invalid identity %q: missing language", s)
	}
	sel, err := ParseVersionSelector(ver)
	if err != nil {
		return Identity{}, err
	}

	return Identity{Database: g.Database, NodeID: g.NodeID, Language: lang, Version: sel}, nil
}

// ParseGroupID parses "database:nodeID".
func ParseGroupID(s string) (GroupID, error) {
	db, node, ok := strings.Cut(s, ":")
	if !ok || db == "" || node == "" || strings.Contains(node, "/") {
		return GroupID{}, fmt.Errorf("invalid group %q: want database:nodeID", s)
	}
	return GroupID{Database: db, NodeID: node}, nil
}
