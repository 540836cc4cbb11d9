package vectorstore

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/google/uuid"

	"github.com/finlearn/finlearn-backend/internal/domain"
	"github.com/finlearn/finlearn-backend/internal/platform/errs"
	"github.com/finlearn/finlearn-backend/internal/platform/logger"
)

const DefaultCollection = "financial_docs"

// Embedder produces one vector per input text, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ScoredDocument is a search hit with its cosine similarity in [0, 1].
type ScoredDocument struct {
	Document domain.Document `json:"document"`
	Score    float32         `json:"score"`
}

// Manager owns the persistent vector database. Collections are embedded and
// persisted under a single directory so the whole store can be archived and
// restored as one unit.
type Manager struct {
	mu    sync.RWMutex
	db    *chromem.DB
	path  string
	embed chromem.EmbeddingFunc
	log   *logger.Logger
}

func NewManager(path string, embedder Embedder, log *logger.Logger) (*Manager, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errs.Validation("vector store path is empty", nil)
	}
	db, err := chromem.NewPersistentDB(path, true)
	if err != nil {
		return nil, errs.Storage(fmt.Sprintf("open vector store at %s", path), err)
	}
	m := &Manager{
		db:   db,
		path: path,
		log:  log.With("service", "vectorstore"),
	}
	m.embed = embeddingFunc(embedder)
	return m, nil
}

// embeddingFunc adapts a batch Embedder to chromem's single-text callback.
func embeddingFunc(e Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		vecs, err := e.Embed(ctx, []string{text})
		if err != nil {
			return nil, err
		}
		if len(vecs) != 1 {
			return nil, fmt.Errorf("embedder returned %d vectors for one text", len(vecs))
		}
		return vecs[0], nil
	}
}

// CreateCollection creates the named collection if it does not already exist.
func (m *Manager) CreateCollection(name string) error {
	if strings.TrimSpace(name) == "" {
		return errs.Validation("collection name is empty", nil)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.db.GetOrCreateCollection(name, nil, m.embed); err != nil {
		return errs.Storage(fmt.Sprintf("create collection %s", name), err)
	}
	return nil
}

// DeleteCollection removes the named collection and its persisted vectors.
func (m *Manager) DeleteCollection(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.db.DeleteCollection(name); err != nil {
		return errs.Storage(fmt.Sprintf("delete collection %s", name), err)
	}
	return nil
}

// ListCollections returns the names of all collections.
func (m *Manager) ListCollections() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	colls := m.db.ListCollections()
	names := make([]string, 0, len(colls))
	for name := range colls {
		names = append(names, name)
	}
	return names
}

// Count returns the number of stored chunks in a collection, zero if the
// collection does not exist.
func (m *Manager) Count(name string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	coll := m.db.GetCollection(name, m.embed)
	if coll == nil {
		return 0
	}
	return coll.Count()
}

// Add embeds the documents and stores them in the collection, creating it on
// first use. It returns the generated chunk IDs in document order.
func (m *Manager) Add(ctx context.Context, collection string, docs []domain.Document) ([]string, error) {
	if len(docs) == 0 {
		return nil, errs.Validation("no documents to add", nil)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	coll, err := m.db.GetOrCreateCollection(collection, nil, m.embed)
	if err != nil {
		return nil, errs.Storage(fmt.Sprintf("open collection %s", collection), err)
	}

	ids := make([]string, len(docs))
	chromemDocs := make([]chromem.Document, len(docs))
	for i, doc := range docs {
		ids[i] = uuid.NewString()
		chromemDocs[i] = chromem.Document{
			ID:       ids[i],
			Content:  doc.Text,
			Metadata: domain.CloneMetadata(doc.Metadata),
		}
	}
	if err := coll.AddDocuments(ctx, chromemDocs, runtime.NumCPU()); err != nil {
		return nil, errs.Storage(fmt.Sprintf("add %d documents to %s", len(docs), collection), err)
	}

	m.log.Info("documents added", "collection", collection, "count", len(docs))
	return ids, nil
}

// Search returns up to k documents most similar to the query.
func (m *Manager) Search(ctx context.Context, collection, query string, k int) ([]domain.Document, error) {
	scored, err := m.SearchWithScore(ctx, collection, query, k)
	if err != nil {
		return nil, err
	}
	docs := make([]domain.Document, len(scored))
	for i, s := range scored {
		docs[i] = s.Document
	}
	return docs, nil
}

// SearchWithScore returns up to k hits with similarity scores, best first.
// k is clamped to the collection size; an empty or missing collection yields
// an empty result rather than an error.
func (m *Manager) SearchWithScore(ctx context.Context, collection, query string, k int) ([]ScoredDocument, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errs.Validation("search query is empty", nil)
	}
	if k <= 0 {
		k = 4
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	coll := m.db.GetCollection(collection, m.embed)
	if coll == nil {
		return nil, errs.NotFound(fmt.Sprintf("collection %s", collection), nil)
	}
	count := coll.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	results, err := coll.Query(ctx, query, k, nil, nil)
	if err != nil {
		return nil, errs.Storage(fmt.Sprintf("query collection %s", collection), err)
	}

	out := make([]ScoredDocument, len(results))
	for i, r := range results {
		out[i] = ScoredDocument{
			Document: domain.Document{Text: r.Content, Metadata: r.Metadata},
			Score:    r.Similarity,
		}
	}
	return out, nil
}

// Retriever returns a query function bound to one collection and result
// count, the shape the lesson generator consumes.
func (m *Manager) Retriever(collection string, k int) func(ctx context.Context, query string) ([]domain.Document, error) {
	return func(ctx context.Context, query string) ([]domain.Document, error) {
		return m.Search(ctx, collection, query, k)
	}
}

// Clear deletes every collection and leaves an empty store behind.
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resetLocked()
}

func (m *Manager) resetLocked() error {
	for name := range m.db.ListCollections() {
		if err := m.db.DeleteCollection(name); err != nil {
			return errs.Storage(fmt.Sprintf("delete collection %s", name), err)
		}
	}
	return nil
}

// reload re-opens the persistent database after its files changed on disk.
func (m *Manager) reload() error {
	db, err := chromem.NewPersistentDB(m.path, true)
	if err != nil {
		return errs.Storage(fmt.Sprintf("reopen vector store at %s", m.path), err)
	}
	m.db = db
	return nil
}

// Path returns the on-disk location of the store.
func (m *Manager) Path() string { return m.path }

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
