package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serrors "github.com/Aman-CERP/contentsync/internal/errors"
)

func TestPathMatcher_Match(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		path     string
		want     bool
	}{
		{"no patterns", nil, "/content/home", false},
		{"anchored exact", []string{"/content/system"}, "/content/system", true},
		{"anchored subtree", []string{"/content/system"}, "/content/system/settings", true},
		{"anchored does not match prefix name", []string{"/content/system"}, "/content/systems", false},
		{"anchored not elsewhere", []string{"/system"}, "/content/system", false},
		{"floating at any depth", []string{"drafts"}, "/content/home/drafts/post", true},
		{"floating exact segment only", []string{"drafts"}, "/content/home/mydrafts", false},
		{"wildcard segment", []string{"/content/*/archive"}, "/content/news/archive/2020", true},
		{"wildcard does not cross slash", []string{"/content/*/archive"}, "/content/a/b/archive", false},
		{"double star", []string{"/content/**/archive"}, "/content/a/b/archive", true},
		{"question mark", []string{"/content/v?"}, "/content/v2", true},
		{"character class", []string{"/content/[ab]ackup"}, "/content/backup", true},
		{"descendants only excludes children", []string{"/content/media/"}, "/content/media/logo", true},
		{"descendants only keeps node", []string{"/content/media/"}, "/content/media", false},
		{"negation re-includes", []string{"/content/system", "!/content/system/public"}, "/content/system/public/page", false},
		{"last match wins", []string{"!/content/system", "/content/system"}, "/content/system", true},
		{"comments and blanks", []string{"# comment", "  "}, "/content/home", false},
		{"escaped dot", []string{"/content/a.b"}, "/content/axb", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewPathMatcher(tt.patterns...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Match(tt.path))
		})
	}
}

func TestPathMatcher_InvalidPattern(t *testing.T) {
	_, err := NewPathMatcher("/content/[z-a]")
	require.Error(t, err)
	assert.Equal(t, serrors.ErrCodeInvalidPattern, serrors.GetCode(err))
}

func TestPathMatcher_Len(t *testing.T) {
	m, err := NewPathMatcher("/a", "# skip", "", "b")
	require.NoError(t, err)
	assert.Equal(t, 2, m.Len())
}
