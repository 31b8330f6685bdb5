package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/contentsync/internal/content"
)

func loadSite(t *testing.T) *Memory {
	t.Helper()
	m, err := Load("testdata/site.yaml")
	require.NoError(t, err)
	return m
}

func id(node, lang string, sel content.VersionSelector) content.Identity {
	return content.Identity{Database: "master", NodeID: node, Language: lang, Version: sel}
}

var fallbackOn = content.ReadOptions{ItemFallback: true, FieldFallback: true}

func TestMemory_GetNode_ComputesPathAndLanguages(t *testing.T) {
	m := loadSite(t)

	node, err := m.GetNode(context.Background(), "master", "news")
	require.NoError(t, err)
	require.NotNil(t, node)

	assert.Equal(t, "/content/home/news", node.Path)
	assert.Equal(t, "home", node.ParentID)
	assert.Equal(t, []string{"en", "de"}, node.Languages)
}

func TestMemory_GetNode_UnknownOrOtherDatabaseIsNil(t *testing.T) {
	m := loadSite(t)
	ctx := context.Background()

	node, err := m.GetNode(ctx, "master", "missing")
	require.NoError(t, err)
	assert.Nil(t, node)

	node, err = m.GetNode(ctx, "web", "home")
	require.NoError(t, err)
	assert.Nil(t, node)
}

func TestMemory_GetVersion_LatestAndSpecific(t *testing.T) {
	m := loadSite(t)
	ctx := context.Background()

	v, err := m.GetVersion(ctx, id("home", "en", content.Latest()), content.ReadOptions{})
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, 2, v.Number)
	assert.True(t, v.FallbackEnabled)
	assert.False(t, v.IsFallback)

	v, err = m.GetVersion(ctx, id("home", "en", content.Specific(1)), content.ReadOptions{})
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "Home", v.FieldMap()["title"])

	v, err = m.GetVersion(ctx, id("home", "en", content.Specific(7)), content.ReadOptions{})
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestMemory_GetVersion_SynthesizesFallback(t *testing.T) {
	m := loadSite(t)
	ctx := context.Background()

	t.Run("without item fallback option", func(t *testing.T) {
		v, err := m.GetVersion(ctx, id("home", "de", content.Latest()), content.ReadOptions{})
		require.NoError(t, err)
		assert.Nil(t, v)
	})

	t.Run("direct fallback", func(t *testing.T) {
		v, err := m.GetVersion(ctx, id("home", "de", content.Latest()), fallbackOn)
		require.NoError(t, err)
		require.NotNil(t, v)
		assert.True(t, v.IsFallback)
		assert.True(t, v.Temporary)
		assert.Equal(t, "en", v.FallbackSource)
		assert.Equal(t, "de", v.Language)
		assert.Equal(t, 2, v.Number)
		assert.Equal(t, "Home v2", v.FieldMap()["title"])
	})

	t.Run("transitive fallback", func(t *testing.T) {
		v, err := m.GetVersion(ctx, id("home", "de-CH", content.Latest()), fallbackOn)
		require.NoError(t, err)
		require.NotNil(t, v)
		assert.Equal(t, "en", v.FallbackSource)
	})

	t.Run("specific number must match source", func(t *testing.T) {
		v, err := m.GetVersion(ctx, id("home", "de", content.Specific(1)), fallbackOn)
		require.NoError(t, err)
		assert.Nil(t, v)
	})

	t.Run("language without fallback chain", func(t *testing.T) {
		v, err := m.GetVersion(ctx, id("home", "fr", content.Latest()), fallbackOn)
		require.NoError(t, err)
		assert.Nil(t, v)
	})

	t.Run("node without item fallback", func(t *testing.T) {
		v, err := m.GetVersion(ctx, id("news", "de-CH", content.Latest()), fallbackOn)
		require.NoError(t, err)
		require.NotNil(t, v)
		assert.True(t, v.Temporary)
		assert.False(t, v.FallbackEnabled)

		numbers, err := m.GetVersionNumbers(ctx, "master", "news", "de-CH", fallbackOn)
		require.NoError(t, err)
		assert.Empty(t, numbers, "a disabled fallback has no version history")
	})
}

func TestMemory_GetVersion_FieldFallbackFillsSharedFields(t *testing.T) {
	m := NewMemory("master")
	m.AddLanguage("en", "")
	m.AddLanguage("de", "en")
	require.NoError(t, m.AddNode(NodeSpec{ID: "a"}))
	_, err := m.AddVersion("a", "en", VersionSpec{Fields: []content.Field{
		{Name: "title", Value: "Title", SharedLanguageFallback: true},
		{Name: "body", Value: "Body"},
	}})
	require.NoError(t, err)
	_, err = m.AddVersion("a", "de", VersionSpec{Fields: []content.Field{{Name: "title"}}})
	require.NoError(t, err)

	ctx := context.Background()

	v, err := m.GetVersion(ctx, id("a", "de", content.Latest()), content.ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, "", v.FieldMap()["title"])

	v, err = m.GetVersion(ctx, id("a", "de", content.Latest()), content.ReadOptions{FieldFallback: true})
	require.NoError(t, err)
	fields := v.FieldMap()
	assert.Equal(t, "Title", fields["title"])
	_, hasBody := fields["body"]
	assert.False(t, hasBody, "non-shared fields are not inherited")
}

func TestMemory_GetVersionNumbers(t *testing.T) {
	m := loadSite(t)
	ctx := context.Background()

	numbers, err := m.GetVersionNumbers(ctx, "master", "home", "en", content.ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, numbers)

	numbers, err = m.GetVersionNumbers(ctx, "master", "home", "de", content.ReadOptions{})
	require.NoError(t, err)
	assert.Empty(t, numbers)

	numbers, err = m.GetVersionNumbers(ctx, "master", "home", "de", fallbackOn)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, numbers)
}

func TestMemory_GetVersions_StoredOnly(t *testing.T) {
	m := loadSite(t)

	versions, err := m.GetVersions(context.Background(), "master", "home", "de", fallbackOn)
	require.NoError(t, err)
	assert.Empty(t, versions)

	versions, err = m.GetVersions(context.Background(), "master", "home", "en", fallbackOn)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, 1, versions[0].Number)
	assert.Equal(t, 2, versions[1].Number)
}

func TestMemory_GetChildren_OrderedByName(t *testing.T) {
	m := NewMemory("master")
	require.NoError(t, m.AddNode(NodeSpec{ID: "root"}))
	require.NoError(t, m.AddNode(NodeSpec{ID: "c", Name: "zeta", ParentID: "root"}))
	require.NoError(t, m.AddNode(NodeSpec{ID: "a", Name: "alpha", ParentID: "root"}))
	require.NoError(t, m.AddNode(NodeSpec{ID: "b", Name: "mid", ParentID: "root"}))

	children, err := m.GetChildren(context.Background(), "master", "root")
	require.NoError(t, err)
	require.Len(t, children, 3)
	assert.Equal(t, "alpha", children[0].Name)
	assert.Equal(t, "mid", children[1].Name)
	assert.Equal(t, "zeta", children[2].Name)
}

func TestMemory_GetDependents(t *testing.T) {
	m := loadSite(t)
	ctx := context.Background()

	deps, err := m.GetDependents(ctx, id("home", "en", content.Specific(2)))
	require.NoError(t, err)
	assert.Equal(t, []content.Identity{id("news", "en", content.Latest())}, deps)

	// The dependent has no fr version, so every language it has is refreshed.
	deps, err = m.GetDependentsOnDelete(ctx, id("home", "fr", content.Latest()))
	require.NoError(t, err)
	assert.Equal(t, []content.Identity{
		id("news", "en", content.Latest()),
		id("news", "de", content.Latest()),
	}, deps)
}

func TestMemory_GetLanguagesSharingFallback(t *testing.T) {
	m := loadSite(t)
	ctx := context.Background()

	langs, err := m.GetLanguagesSharingFallback(ctx, "en", "master", "home")
	require.NoError(t, err)
	assert.Equal(t, []string{"de", "de-CH"}, langs)

	langs, err = m.GetLanguagesSharingFallback(ctx, "de-CH", "master", "home")
	require.NoError(t, err)
	assert.Empty(t, langs)

	langs, err = m.GetLanguagesSharingFallback(ctx, "en", "master", "missing")
	require.NoError(t, err)
	assert.Nil(t, langs)
}

func TestMemory_FallbackCycleTerminates(t *testing.T) {
	m := NewMemory("master")
	m.AddLanguage("a", "b")
	m.AddLanguage("b", "a")
	require.NoError(t, m.AddNode(NodeSpec{ID: "n", ItemFallback: true}))

	v, err := m.GetVersion(context.Background(), id("n", "a", content.Latest()), fallbackOn)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestMemory_Mutations(t *testing.T) {
	m := loadSite(t)
	ctx := context.Background()

	n, err := m.AddVersion("home", "en", VersionSpec{})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = m.AddVersion("home", "en", VersionSpec{Number: 3})
	assert.Error(t, err)

	m.RemoveVersion("home", "en", 2)
	numbers, err := m.GetVersionNumbers(ctx, "master", "home", "en", content.ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, numbers)

	require.NoError(t, m.MoveNode("news", "system"))
	node, err := m.GetNode(ctx, "master", "news")
	require.NoError(t, err)
	assert.Equal(t, "/system/news", node.Path)

	m.RemoveNode("content")
	node, err = m.GetNode(ctx, "master", "home")
	require.NoError(t, err)
	assert.Nil(t, node, "subtree is removed with its root")
	node, err = m.GetNode(ctx, "master", "news")
	require.NoError(t, err)
	assert.NotNil(t, node, "moved node is no longer part of the subtree")
}

func TestMemory_CloneIsIndependent(t *testing.T) {
	m := loadSite(t)
	c := m.Clone()

	require.NoError(t, m.SetFields("home", "en", 2, []content.Field{{Name: "title", Value: "changed"}}))

	v, err := c.GetVersion(context.Background(), id("home", "en", content.Latest()), content.ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Home v2", v.FieldMap()["title"])
}

func TestMemory_Replace(t *testing.T) {
	m := loadSite(t)
	other := NewMemory("master")
	require.NoError(t, other.AddNode(NodeSpec{ID: "only"}))

	m.Replace(other)

	node, err := m.GetNode(context.Background(), "master", "home")
	require.NoError(t, err)
	assert.Nil(t, node)
	node, err = m.GetNode(context.Background(), "master", "only")
	require.NoError(t, err)
	assert.NotNil(t, node)
}

func TestMemory_NodeIDs(t *testing.T) {
	m := NewMemory("master")
	require.NoError(t, m.AddNode(NodeSpec{ID: "b"}))
	require.NoError(t, m.AddNode(NodeSpec{ID: "a"}))

	assert.Equal(t, []string{"a", "b"}, m.NodeIDs())
	assert.Empty(t, NewMemory("master").NodeIDs())
}
