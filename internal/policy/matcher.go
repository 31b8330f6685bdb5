package policy

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	serrors "github.com/Aman-CERP/contentsync/internal/errors"
)

// PathMatcher matches content paths against exclusion patterns written in
// gitignore syntax. Patterns starting with "/" are anchored at the tree
// root; other patterns match at any depth. A trailing "/" excludes the
// descendants of a node but not the node itself. "!" re-includes paths an
// earlier pattern excluded. The last matching pattern wins.
type PathMatcher struct {
	mu    sync.RWMutex
	rules []rule
}

type rule struct {
	pattern     string
	regex       *regexp.Regexp
	negation    bool
	descendants bool
}

// NewPathMatcher compiles patterns. Empty lines and # comments are skipped.
func NewPathMatcher(patterns ...string) (*PathMatcher, error) {
	m := &PathMatcher{}
	for _, p := range patterns {
		if err := m.AddPattern(p); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// AddPattern compiles and appends one pattern.
func (m *PathMatcher) AddPattern(pattern string) error {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" || strings.HasPrefix(pattern, "#") {
		return nil
	}

	r := rule{pattern: pattern}
	if strings.HasPrefix(pattern, "!") {
		r.negation = true
		pattern = strings.TrimPrefix(pattern, "!")
	}
	if strings.HasSuffix(pattern, "/") {
		r.descendants = true
		pattern = strings.TrimSuffix(pattern, "/")
	}

	expr := patternToRegex(strings.TrimPrefix(pattern, "/"))
	if strings.HasPrefix(pattern, "/") {
		expr = "^/" + expr
	} else {
		expr = "(?:^|/)" + expr
	}
	if r.descendants {
		expr += "/.+$"
	} else {
		// Excluding a node excludes its subtree.
		expr += "(?:/.*)?$"
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		return serrors.New(serrors.ErrCodeInvalidPattern, fmt.Sprintf("invalid exclude pattern %q", r.pattern), err)
	}
	r.regex = re

	m.mu.Lock()
	m.rules = append(m.rules, r)
	m.mu.Unlock()
	return nil
}

// Match reports whether path is excluded.
func (m *PathMatcher) Match(path string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	excluded := false
	for _, r := range m.rules {
		if r.regex.MatchString(path) {
			excluded = !r.negation
		}
	}
	return excluded
}

// Len returns the number of compiled patterns.
func (m *PathMatcher) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rules)
}

// patternToRegex converts a glob pattern to a regex string.
func patternToRegex(pattern string) string {
	var result strings.Builder

	i := 0
	for i < len(pattern) {
		c := pattern[i]

		switch c {
		case '*':
			if i+1 < len(pattern) && pattern[i+1] == '*' {
				if i+2 < len(pattern) && pattern[i+2] == '/' {
					// **/ - matches any number of path segments
					result.WriteString("(?:.*/)?")
					i += 3
					continue
				}
				result.WriteString(".*")
				i += 2
				continue
			}
			// Single * - matches anything except /
			result.WriteString("[^/]*")
			i++

		case '?':
			result.WriteString("[^/]")
			i++

		case '[':
			// Character class - pass through
			j := i + 1
			for j < len(pattern) && pattern[j] != ']' {
				j++
			}
			if j < len(pattern) {
				result.WriteString(pattern[i : j+1])
				i = j + 1
			} else {
				result.WriteString(regexp.QuoteMeta(string(c)))
				i++
			}

		case '\\':
			if i+1 < len(pattern) {
				result.WriteString(regexp.QuoteMeta(string(pattern[i+1])))
				i += 2
			} else {
				result.WriteString(regexp.QuoteMeta(string(c)))
				i++
			}

		case '.', '+', '^', '$', '(', ')', '{', '}', '|':
			result.WriteString(regexp.QuoteMeta(string(c)))
			i++

		default:
			result.WriteByte(c)
			i++
		}
	}

	return result.String()
}
