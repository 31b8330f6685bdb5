package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/Aman-CERP/contentsync/internal/content"
	serrors "github.com/Aman-CERP/contentsync/internal/errors"
)

// BleveStore keeps documents in a Bleve index. Field values are full-text
// indexed; the complete document is kept in a stored field. Bleve holds an
// exclusive lock on its directory, so only one process may open it.
type BleveStore struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

var _ Store = (*BleveStore)(nil)

// bleveDocument is the indexed shape of a content.Document.
type bleveDocument struct {
	GroupID    string `json:"group_id"`
	Language   string `json:"language"`
	Path       string `json:"path"`
	IsLatest   bool   `json:"is_latest"`
	IsFallback bool   `json:"is_fallback"`
	Text       string `json:"text"`
	Raw        string `json:"raw"`
}

// validateIndexIntegrity checks if a Bleve index is valid before opening.
func validateIndexIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing (corrupted index)")
	}
	if err != nil {
		return fmt.Errorf("cannot stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty (corrupted)")
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	var meta map[string]any
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}
	return nil
}

// NewBleveStore opens (or creates) a Bleve document store.
// If path is empty, creates an in-memory store.
func NewBleveStore(path string) (*BleveStore, error) {
	m := createDocumentMapping()

	var (
		idx bleve.Index
		err error
	)
	if path == "" {
		idx, err = bleve.NewMemOnly(m)
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
		}

		if validErr := validateIndexIntegrity(path); validErr != nil {
			slog.Warn("bleve_store_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))
			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, serrors.New(serrors.ErrCodeCorruptIndex,
					fmt.Sprintf("index corrupted at %s and cannot be removed", path), removeErr)
			}
		}

		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			idx, err = bleve.New(path, m)
		} else {
			idx, err = bleve.Open(path)
		}
	}
	if err != nil {
		return nil, serrors.New(serrors.ErrCodeStoreOpen, "failed to open bleve index", err)
	}

	return &BleveStore{index: idx, path: path}, nil
}

func createDocumentMapping() *mapping.IndexMappingImpl {
	keyword := bleve.NewKeywordFieldMapping()

	flag := bleve.NewBooleanFieldMapping()

	text := bleve.NewTextFieldMapping()
	text.Store = false

	raw := bleve.NewTextFieldMapping()
	raw.Index = false
	raw.Store = true

	doc := bleve.NewDocumentStaticMapping()
	doc.AddFieldMappingsAt("group_id", keyword)
	doc.AddFieldMappingsAt("language", keyword)
	doc.AddFieldMappingsAt("path", keyword)
	doc.AddFieldMappingsAt("is_latest", flag)
	doc.AddFieldMappingsAt("is_fallback", flag)
	doc.AddFieldMappingsAt("text", text)
	doc.AddFieldMappingsAt("raw", raw)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	return m
}

// WriteDocument implements Store.
func (b *BleveStore) WriteDocument(ctx context.Context, doc *content.Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return serrors.IndexError("failed to encode "+doc.ID, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return serrors.IndexError("store is closed", nil)
	}

	err = b.index.Index(doc.ID, bleveDocument{
		GroupID:    doc.GroupID,
		Language:   doc.Language,
		Path:       doc.Path,
		IsLatest:   doc.IsLatestVersion,
		IsFallback: doc.IsFallback,
		Text:       fieldText(doc.Fields),
		Raw:        string(raw),
	})
	if err != nil {
		return serrors.IndexError("failed to index "+doc.ID, err)
	}
	return nil
}

// DeleteDocument implements Store.
func (b *BleveStore) DeleteDocument(ctx context.Context, id content.Identity) error {
	if !id.Version.IsLatest() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.closed {
			return serrors.IndexError("store is closed", nil)
		}
		if err := b.index.Delete(id.Key()); err != nil {
			return serrors.IndexError("failed to delete "+id.Key(), err)
		}
		return nil
	}
	return b.deleteMatching(ctx, Filter{GroupID: id.GroupID().String(), Language: id.Language}, "")
}

// DeleteGroup implements Store.
func (b *BleveStore) DeleteGroup(ctx context.Context, group content.GroupID) error {
	return b.deleteMatching(ctx, Filter{GroupID: group.String()}, "")
}

// DeleteFallbacks implements Store.
func (b *BleveStore) DeleteFallbacks(ctx context.Context, id content.Identity) error {
	keep := ""
	if !id.Version.IsLatest() {
		keep = id.Key()
	}
	filter := Filter{GroupID: id.GroupID().String(), Language: id.Language, FallbackOnly: true}
	return b.deleteMatching(ctx, filter, keep)
}

// Clear implements Store.
func (b *BleveStore) Clear(ctx context.Context) error {
	return b.deleteMatching(ctx, Filter{}, "")
}

// deleteMatching removes every document matching filter except keepID.
func (b *BleveStore) deleteMatching(ctx context.Context, filter Filter, keepID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return serrors.IndexError("store is closed", nil)
	}

	hits, err := b.searchLocked(ctx, filterQuery(filter), false)
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		return nil
	}

	batch := b.index.NewBatch()
	deletes := 0
	for _, h := range hits {
		if h.ID != keepID {
			batch.Delete(h.ID)
			deletes++
		}
	}
	if deletes == 0 {
		return nil
	}
	if err := b.index.Batch(batch); err != nil {
		return serrors.IndexError("failed to delete documents", err)
	}
	return nil
}

// Get implements Store.
func (b *BleveStore) Get(ctx context.Context, docID string) (*content.Document, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, serrors.IndexError("store is closed", nil)
	}

	hits, err := b.searchLocked(ctx, bleve.NewDocIDQuery([]string{docID}), true)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}
	return decodeHit(hits[0].ID, hits[0].Fields)
}

// List implements Store.
func (b *BleveStore) List(ctx context.Context, filter Filter) ([]*content.Document, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, serrors.IndexError("store is closed", nil)
	}

	hits, err := b.searchLocked(ctx, filterQuery(filter), true)
	if err != nil {
		return nil, err
	}

	docs := make([]*content.Document, 0, len(hits))
	for _, h := range hits {
		doc, err := decodeHit(h.ID, h.Fields)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

// Stats implements Store.
func (b *BleveStore) Stats(ctx context.Context) (*Stats, error) {
	docs, err := b.List(ctx, Filter{})
	if err != nil {
		return nil, err
	}
	return summarize(BackendBleve, b.path, docs), nil
}

// Close implements Store.
func (b *BleveStore) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return b.index.Close()
}

type bleveHit struct {
	ID     string
	Fields map[string]any
}

func (b *BleveStore) searchLocked(ctx context.Context, q query.Query, withRaw bool) ([]bleveHit, error) {
	count, err := b.index.DocCount()
	if err != nil {
		return nil, serrors.IndexError("failed to count documents", err)
	}
	if count == 0 {
		return nil, nil
	}

	req := bleve.NewSearchRequest(q)
	req.Size = int(count)
	if withRaw {
		req.Fields = []string{"raw"}
	}

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, serrors.IndexError("search failed", err)
	}

	hits := make([]bleveHit, len(res.Hits))
	for i, h := range res.Hits {
		hits[i] = bleveHit{ID: h.ID, Fields: h.Fields}
	}
	return hits, nil
}

func filterQuery(filter Filter) query.Query {
	var conjuncts []query.Query
	if filter.GroupID != "" {
		q := bleve.NewTermQuery(filter.GroupID)
		q.SetField("group_id")
		conjuncts = append(conjuncts, q)
	}
	if filter.Language != "" {
		q := bleve.NewTermQuery(filter.Language)
		q.SetField("language")
		conjuncts = append(conjuncts, q)
	}
	if filter.LatestOnly {
		q := bleve.NewBoolFieldQuery(true)
		q.SetField("is_latest")
		conjuncts = append(conjuncts, q)
	}
	if filter.FallbackOnly {
		q := bleve.NewBoolFieldQuery(true)
		q.SetField("is_fallback")
		conjuncts = append(conjuncts, q)
	}
	if len(conjuncts) == 0 {
		return bleve.NewMatchAllQuery()
	}
	return bleve.NewConjunctionQuery(conjuncts...)
}

func decodeHit(id string, fields map[string]any) (*content.Document, error) {
	raw, ok := fields["raw"].(string)
	if !ok {
		return nil, serrors.New(serrors.ErrCodeCorruptIndex, "stored document missing for "+id, nil)
	}
	var doc content.Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, serrors.New(serrors.ErrCodeCorruptIndex, "failed to decode "+id, err)
	}
	return &doc, nil
}

// fieldText joins field values in name order for full-text indexing.
func fieldText(fields map[string]string) string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(fields[name])
	}
	return sb.String()
}
