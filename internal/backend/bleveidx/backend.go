package bleveidx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve"
	"github.com/blevesearch/bleve/search/query"
	"go.uber.org/zap"

	"github.com/kailas-cloud/searchsync/internal/domain/search/field"
	"github.com/kailas-cloud/searchsync/internal/domain/search/index"
	"github.com/kailas-cloud/searchsync/internal/domain/search/mapping"
	"github.com/kailas-cloud/searchsync/internal/usecase/indexing"
)

var (
	_ indexing.Backend   = (*Backend)(nil)
	_ indexing.BulkAdder = (*Backend)(nil)
	_ indexing.Searcher  = (*Backend)(nil)
	_ indexing.Resetter  = (*Backend)(nil)
)

// Backend keeps one bleve index per document type, on disk under dir or in
// memory when dir is empty.
type Backend struct {
	dir    string
	prefix string
	reg    *index.Registry
	logger *zap.Logger

	mu      sync.Mutex
	indices map[string]bleve.Index
}

// New creates a bleve backend.
func New(dir, prefix string, reg *index.Registry, logger *zap.Logger) *Backend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backend{
		dir:     dir,
		prefix:  prefix,
		reg:     reg,
		logger:  logger,
		indices: make(map[string]bleve.Index),
	}
}

// IndexForModel returns the name of the bleve index holding documents of m.
func (b *Backend) IndexForModel(m *index.Model) string {
	return mapping.New(b.reg, m).IndexName(b.prefix)
}

// Add indexes the document of obj.
func (b *Backend) Add(ctx context.Context, obj any) error {
	mp, err := mapping.For(b.reg, obj)
	if err != nil {
		return err
	}
	idx, err := b.open(mp)
	if err != nil {
		return err
	}
	id, doc, err := document(ctx, mp, obj)
	if err != nil {
		return err
	}
	if err := idx.Index(id, doc); err != nil {
		return fmt.Errorf("bleve index %s %s: %w", mp.IndexName(b.prefix), id, err)
	}
	return nil
}

// AddBulk indexes objs, all of model m, in one batch.
func (b *Backend) AddBulk(ctx context.Context, m *index.Model, objs []any) error {
	if len(objs) == 0 {
		return nil
	}
	mp := mapping.New(b.reg, m)
	idx, err := b.open(mp)
	if err != nil {
		return err
	}

	batch := idx.NewBatch()
	for _, obj := range objs {
		id, doc, err := document(ctx, mp, obj)
		if err != nil {
			return err
		}
		if err := batch.Index(id, doc); err != nil {
			return fmt.Errorf("bleve batch %s %s: %w", mp.IndexName(b.prefix), id, err)
		}
	}
	if err := idx.Batch(batch); err != nil {
		return fmt.Errorf("bleve batch %s: %w", mp.IndexName(b.prefix), err)
	}
	return nil
}

// Delete removes the document of obj.
func (b *Backend) Delete(ctx context.Context, obj any) error {
	mp, err := mapping.For(b.reg, obj)
	if err != nil {
		return err
	}
	id, err := mp.DocumentID(ctx, obj)
	if err != nil {
		return err
	}
	idx, err := b.open(mp)
	if err != nil {
		return err
	}
	if err := idx.Delete(id); err != nil {
		return fmt.Errorf("bleve delete %s %s: %w", mp.IndexName(b.prefix), id, err)
	}
	return nil
}

// Search matches text against the search columns of m's document type,
// restricted to m and its subtypes. An empty text lists them.
func (b *Backend) Search(_ context.Context, m *index.Model, text string, limit int) ([]indexing.Hit, error) {
	mp := mapping.New(b.reg, m)
	idx, err := b.open(mp)
	if err != nil {
		return nil, err
	}

	req := bleve.NewSearchRequestOptions(buildQuery(mp, text), limit, 0, false)
	res, err := idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("bleve search %s: %w", mp.IndexName(b.prefix), err)
	}

	hits := make([]indexing.Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hits = append(hits, indexing.Hit{ID: h.ID, Score: h.Score})
	}
	return hits, nil
}

// Reset closes the index of m's document type and removes it from disk.
// The next access creates it empty.
func (b *Backend) Reset(_ context.Context, m *index.Model) error {
	name := b.IndexForModel(m)

	b.mu.Lock()
	defer b.mu.Unlock()
	if idx, ok := b.indices[name]; ok {
		delete(b.indices, name)
		if err := idx.Close(); err != nil {
			return fmt.Errorf("bleve close %s: %w", name, err)
		}
	}
	if b.dir == "" {
		return nil
	}
	if err := os.RemoveAll(b.path(name)); err != nil {
		return fmt.Errorf("bleve remove %s: %w", name, err)
	}
	b.logger.Info("Bleve index removed", zap.String("index", name))
	return nil
}

// Close closes every open index.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var errs []error
	for name, idx := range b.indices {
		if err := idx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
		delete(b.indices, name)
	}
	return errors.Join(errs...)
}

func (b *Backend) open(mp *mapping.Mapping) (bleve.Index, error) {
	name := mp.IndexName(b.prefix)

	b.mu.Lock()
	defer b.mu.Unlock()
	if idx, ok := b.indices[name]; ok {
		return idx, nil
	}

	var (
		idx bleve.Index
		err error
	)
	switch path := b.path(name); {
	case b.dir == "":
		idx, err = bleve.NewMemOnly(BuildMapping(mp))
	case exists(path):
		idx, err = bleve.Open(path)
	default:
		idx, err = bleve.New(path, BuildMapping(mp))
		if err == nil {
			b.logger.Info("Bleve index created", zap.String("index", name), zap.String("path", path))
		}
	}
	if err != nil {
		return nil, fmt.Errorf("bleve open %s: %w", name, err)
	}

	b.indices[name] = idx
	return idx, nil
}

func (b *Backend) path(name string) string {
	return filepath.Join(b.dir, strings.ReplaceAll(name, ":", "_")+".bleve")
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func document(ctx context.Context, mp *mapping.Mapping, obj any) (string, map[string]any, error) {
	id, err := mp.DocumentID(ctx, obj)
	if err != nil {
		return "", nil, err
	}
	doc, err := mp.Document(ctx, obj)
	if err != nil {
		return "", nil, err
	}
	return id, doc, nil
}

func buildQuery(mp *mapping.Mapping, text string) query.Query {
	ct := bleve.NewTermQuery(mp.ContentType())
	ct.SetField(mapping.ContentTypeColumn)

	text = strings.TrimSpace(text)
	if text == "" {
		return ct
	}

	var should []query.Query
	for _, c := range mp.Columns() {
		should = append(should, textQueries("", c, text)...)
	}
	if len(should) == 0 {
		return ct
	}
	return bleve.NewConjunctionQuery(ct, bleve.NewDisjunctionQuery(should...))
}

func textQueries(parent string, c mapping.Column, text string) []query.Query {
	path := c.Name
	if parent != "" {
		path = parent + "." + c.Name
	}

	switch c.Kind {
	case field.KindSearch:
		mq := bleve.NewMatchQuery(text)
		mq.SetField(path)
		if c.Boost > 0 {
			mq.SetBoost(c.Boost)
		}
		out := []query.Query{mq}
		if c.PartialMatch {
			pq := bleve.NewPrefixQuery(strings.ToLower(text))
			pq.SetField(path)
			out = append(out, pq)
		}
		return out
	case field.KindRelated:
		var out []query.Query
		for _, child := range c.Children {
			out = append(out, textQueries(path, child, text)...)
		}
		return out
	default:
		return nil
	}
}
