package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/contentsync/internal/content"
	serrors "github.com/Aman-CERP/contentsync/internal/errors"
)

func makeDoc(node, lang string, version int, latest bool) *content.Document {
	id := content.Identity{Database: "master", NodeID: node, Language: lang, Version: content.Specific(version)}
	return &content.Document{
		ID:              id.Key(),
		GroupID:         id.GroupID().String(),
		Database:        "master",
		NodeID:          node,
		Language:        lang,
		Version:         version,
		Path:            "/content/" + node,
		IsLatestVersion: latest,
		Formatter:       "default",
		Fields:          map[string]string{"title": node + " " + lang},
		IndexedAt:       time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func ident(node, lang string, sel content.VersionSelector) content.Identity {
	return content.Identity{Database: "master", NodeID: node, Language: lang, Version: sel}
}

// backends returns a fresh store of every backend.
func backends(t *testing.T) map[string]Store {
	t.Helper()

	sqliteMem, err := NewSQLiteStore("")
	require.NoError(t, err)
	sqliteFile, err := NewSQLiteStore(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	bleveMem, err := NewBleveStore("")
	require.NoError(t, err)
	bleveFile, err := NewBleveStore(filepath.Join(t.TempDir(), "index.bleve"))
	require.NoError(t, err)

	stores := map[string]Store{
		"sqlite-memory": sqliteMem,
		"sqlite-file":   sqliteFile,
		"bleve-memory":  bleveMem,
		"bleve-file":    bleveFile,
	}
	t.Cleanup(func() {
		for _, s := range stores {
			_ = s.Close()
		}
	})
	return stores
}

func seed(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	for _, d := range []*content.Document{
		makeDoc("home", "en", 1, false),
		makeDoc("home", "en", 2, true),
		makeDoc("home", "de", 2, true),
		makeDoc("news", "en", 1, true),
	} {
		require.NoError(t, s.WriteDocument(ctx, d))
	}
}

func ids(docs []*content.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}

func TestStore_WriteAndGet(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			doc := makeDoc("home", "en", 1, true)
			require.NoError(t, s.WriteDocument(ctx, doc))

			got, err := s.Get(ctx, doc.ID)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, doc.ID, got.ID)
			assert.Equal(t, doc.GroupID, got.GroupID)
			assert.Equal(t, doc.Fields, got.Fields)
			assert.True(t, got.IsLatestVersion)
			assert.True(t, doc.IndexedAt.Equal(got.IndexedAt))

			missing, err := s.Get(ctx, "master:nope/en/1")
			require.NoError(t, err)
			assert.Nil(t, missing)
		})
	}
}

func TestStore_WriteReplacesSameID(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.WriteDocument(ctx, makeDoc("home", "en", 1, true)))

			demoted := makeDoc("home", "en", 1, false)
			demoted.Fields["title"] = "demoted"
			require.NoError(t, s.WriteDocument(ctx, demoted))

			docs, err := s.List(ctx, Filter{})
			require.NoError(t, err)
			require.Len(t, docs, 1)
			assert.False(t, docs[0].IsLatestVersion)
			assert.Equal(t, "demoted", docs[0].Fields["title"])
		})
	}
}

func TestStore_DeleteDocument(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seed(t, s)

			require.NoError(t, s.DeleteDocument(ctx, ident("home", "en", content.Specific(1))))
			docs, err := s.List(ctx, Filter{})
			require.NoError(t, err)
			assert.Equal(t, []string{"master:home/de/2", "master:home/en/2", "master:news/en/1"}, ids(docs))

			// Deleting a missing document is not an error.
			require.NoError(t, s.DeleteDocument(ctx, ident("home", "en", content.Specific(9))))
		})
	}
}

func TestStore_DeleteDocument_LatestRemovesLanguageVariant(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seed(t, s)

			require.NoError(t, s.DeleteDocument(ctx, ident("home", "en", content.Latest())))
			docs, err := s.List(ctx, Filter{})
			require.NoError(t, err)
			assert.Equal(t, []string{"master:home/de/2", "master:news/en/1"}, ids(docs))
		})
	}
}

func TestStore_DeleteGroup(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seed(t, s)

			require.NoError(t, s.DeleteGroup(ctx, content.GroupID{Database: "master", NodeID: "home"}))
			docs, err := s.List(ctx, Filter{})
			require.NoError(t, err)
			assert.Equal(t, []string{"master:news/en/1"}, ids(docs))
		})
	}
}

func TestStore_DeleteFallbacks(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seed(t, s)
			for _, v := range []int{3, 4} {
				doc := makeDoc("home", "fr", v, true)
				doc.IsFallback = true
				doc.Temporary = true
				require.NoError(t, s.WriteDocument(ctx, doc))
			}
			own := makeDoc("home", "fr", 1, true)
			require.NoError(t, s.WriteDocument(ctx, own))

			require.NoError(t, s.DeleteFallbacks(ctx, ident("home", "fr", content.Specific(4))))
			docs, err := s.List(ctx, Filter{GroupID: "master:home", Language: "fr"})
			require.NoError(t, err)
			assert.Equal(t, []string{"master:home/fr/1", "master:home/fr/4"}, ids(docs))

			docs, err = s.List(ctx, Filter{FallbackOnly: true})
			require.NoError(t, err)
			assert.Equal(t, []string{"master:home/fr/4"}, ids(docs))

			require.NoError(t, s.DeleteFallbacks(ctx, ident("home", "fr", content.Latest())))
			docs, err = s.List(ctx, Filter{GroupID: "master:home", Language: "fr"})
			require.NoError(t, err)
			assert.Equal(t, []string{"master:home/fr/1"}, ids(docs), "real versions are kept")

			all, err := s.List(ctx, Filter{})
			require.NoError(t, err)
			assert.Len(t, all, 5, "other variants are untouched")
		})
	}
}

func TestStore_ListFilters(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seed(t, s)

			docs, err := s.List(ctx, Filter{GroupID: "master:home", Language: "en"})
			require.NoError(t, err)
			assert.Equal(t, []string{"master:home/en/1", "master:home/en/2"}, ids(docs))

			docs, err = s.List(ctx, Filter{LatestOnly: true})
			require.NoError(t, err)
			assert.Equal(t, []string{"master:home/de/2", "master:home/en/2", "master:news/en/1"}, ids(docs))
		})
	}
}

func TestStore_StatsAndClear(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seed(t, s)

			stats, err := s.Stats(ctx)
			require.NoError(t, err)
			assert.Equal(t, 4, stats.Documents)
			assert.Equal(t, 2, stats.Groups)
			assert.Equal(t, 3, stats.Latest)
			assert.Equal(t, map[string]int{"en": 3, "de": 1}, stats.ByLanguage)

			require.NoError(t, s.Clear(ctx))
			stats, err = s.Stats(ctx)
			require.NoError(t, err)
			assert.Equal(t, 0, stats.Documents)
		})
	}
}

func TestStore_ClosedStoreFails(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Close())
			require.NoError(t, s.Close(), "close is idempotent")

			err := s.WriteDocument(context.Background(), makeDoc("home", "en", 1, true))
			require.Error(t, err)
			assert.Equal(t, serrors.ErrCodeStoreWrite, serrors.GetCode(err))
		})
	}
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	seed(t, s)
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	docs, err := s.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, docs, 4)
}

func TestSQLiteStore_RecreatesCorruptedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	require.NoError(t, os.WriteFile(path, []byte("not a database"), 0o644))

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	stats, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Documents)
}

func TestBleveStore_RecreatesCorruptedDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.bleve")
	require.NoError(t, os.MkdirAll(path, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(path, "index_meta.json"), []byte("{"), 0o644))

	s, err := NewBleveStore(path)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.WriteDocument(context.Background(), makeDoc("home", "en", 1, true)))
}

func TestClassify(t *testing.T) {
	err := classify(assert.AnError)
	assert.Equal(t, serrors.ErrCodeStoreWrite, serrors.GetCode(err))
	assert.False(t, serrors.IsRetryable(err))

	err = classify(errString("database is locked (5) (SQLITE_BUSY)"))
	assert.Equal(t, serrors.ErrCodeStoreBusy, serrors.GetCode(err))
	assert.True(t, serrors.IsRetryable(err))
}

type errString string

func (e errString) Error() string { return string(e) }
