package redisearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/searchsync/internal/db"
	dbredis "github.com/kailas-cloud/searchsync/internal/db/redis"
	"github.com/kailas-cloud/searchsync/internal/domain/search/index"
	"github.com/kailas-cloud/searchsync/internal/domain/search/mapping"
	"github.com/kailas-cloud/searchsync/internal/usecase/indexing"
)

// DefaultPrefix namespaces index names and document keys.
const DefaultPrefix = "search:"

// store is the consumer interface for the redis backend (ISP).
type store interface {
	Ping(ctx context.Context) error
	JSONSet(ctx context.Context, key, path string, data []byte) error
	JSONSetMulti(ctx context.Context, items []db.JSONSetItem) error
	Del(ctx context.Context, key string) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string, deleteDocs bool) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchText(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
}

var (
	_ indexing.Backend   = (*Backend)(nil)
	_ indexing.BulkAdder = (*Backend)(nil)
	_ indexing.Searcher  = (*Backend)(nil)
	_ indexing.Pinger    = (*Backend)(nil)
	_ indexing.Resetter  = (*Backend)(nil)
)

// Backend stores documents as JSON and indexes them with one FT index
// per document type. Indexes are created before the first write.
type Backend struct {
	store  store
	reg    *index.Registry
	prefix string
	ready  sync.Map // index name -> struct{}
	logger *zap.Logger
}

// New creates a redis search backend.
func New(s store, reg *index.Registry, prefix string, logger *zap.Logger) *Backend {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backend{store: s, reg: reg, prefix: prefix, logger: logger}
}

// IndexForModel returns the FT index holding documents of m.
func (b *Backend) IndexForModel(m *index.Model) string {
	return mapping.New(b.reg, m).IndexName(b.prefix)
}

// Ping checks the store.
func (b *Backend) Ping(ctx context.Context) error {
	return b.store.Ping(ctx)
}

// Add upserts the document of obj.
func (b *Backend) Add(ctx context.Context, obj any) error {
	mp, err := mapping.For(b.reg, obj)
	if err != nil {
		return err
	}
	if err := b.ensureIndex(ctx, mp); err != nil {
		return err
	}
	item, err := b.item(ctx, mp, obj)
	if err != nil {
		return err
	}
	return b.store.JSONSet(ctx, item.Key, item.Path, item.Data)
}

// AddBulk upserts the documents of objs, all of model m, in one pipeline.
func (b *Backend) AddBulk(ctx context.Context, m *index.Model, objs []any) error {
	if len(objs) == 0 {
		return nil
	}
	mp := mapping.New(b.reg, m)
	if err := b.ensureIndex(ctx, mp); err != nil {
		return err
	}
	items := make([]db.JSONSetItem, 0, len(objs))
	for _, obj := range objs {
		item, err := b.item(ctx, mp, obj)
		if err != nil {
			return err
		}
		items = append(items, item)
	}
	return b.store.JSONSetMulti(ctx, items)
}

// Delete removes the document of obj. Missing documents are not an error.
func (b *Backend) Delete(ctx context.Context, obj any) error {
	mp, err := mapping.For(b.reg, obj)
	if err != nil {
		return err
	}
	id, err := mp.DocumentID(ctx, obj)
	if err != nil {
		return err
	}
	return b.store.Del(ctx, b.key(mp, id))
}

// Reset drops the FT index of m's document type together with its
// documents. The index is recreated by the next write.
func (b *Backend) Reset(ctx context.Context, m *index.Model) error {
	name := b.IndexForModel(m)
	b.ready.Delete(name)
	if err := b.store.DropIndex(ctx, name, true); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("drop index %s: %w", name, err)
	}
	b.logger.Info("Search index dropped", zap.String("index", name))
	return nil
}

// Search runs query over the documents of m and its subtypes.
func (b *Backend) Search(ctx context.Context, m *index.Model, query string, limit int) ([]indexing.Hit, error) {
	mp := mapping.New(b.reg, m)
	q := dbredis.TagQuery(mapping.ContentTypeColumn, mp.ContentType())
	if text := strings.TrimSpace(query); text != "" {
		q += " (" + dbredis.EscapeQuery(text) + ")"
	}

	res, err := b.store.SearchText(ctx, &db.TextQuery{
		IndexName:    mp.IndexName(b.prefix),
		Query:        q,
		Limit:        limit,
		ReturnFields: []string{mapping.ContentTypeColumn},
		WithScores:   true,
	})
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("search %s: %w", mp.IndexName(b.prefix), err)
	}

	hits := make([]indexing.Hit, 0, len(res.Entries))
	keyPrefix := b.key(mp, "")
	for _, e := range res.Entries {
		hits = append(hits, indexing.Hit{ID: strings.TrimPrefix(e.Key, keyPrefix), Score: e.Score})
	}
	return hits, nil
}

func (b *Backend) item(ctx context.Context, mp *mapping.Mapping, obj any) (db.JSONSetItem, error) {
	id, err := mp.DocumentID(ctx, obj)
	if err != nil {
		return db.JSONSetItem{}, err
	}
	doc, err := mp.Document(ctx, obj)
	if err != nil {
		return db.JSONSetItem{}, err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return db.JSONSetItem{}, fmt.Errorf("marshal %s %s: %w", mp.ContentType(), id, err)
	}
	return db.JSONSetItem{Key: b.key(mp, id), Path: "$", Data: data}, nil
}

func (b *Backend) key(mp *mapping.Mapping, id string) string {
	return mp.IndexName(b.prefix) + ":" + id
}

// ensureIndex creates the FT index of the document type unless it is known
// to exist. Concurrent creation is tolerated.
func (b *Backend) ensureIndex(ctx context.Context, mp *mapping.Mapping) error {
	name := mp.IndexName(b.prefix)
	if _, ok := b.ready.Load(name); ok {
		return nil
	}

	exists, err := b.store.IndexExists(ctx, name)
	if err != nil {
		return fmt.Errorf("check index %s: %w", name, err)
	}
	if !exists {
		def, err := BuildIndex(mp, b.prefix)
		if err != nil {
			return err
		}
		if err := b.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
			return fmt.Errorf("create index %s: %w", name, err)
		}
		b.logger.Info("Search index created", zap.String("index", name), zap.Int("fields", len(def.Fields)))
	}

	b.ready.Store(name, struct{}{})
	return nil
}
