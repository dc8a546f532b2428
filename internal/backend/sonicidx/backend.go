package sonicidx

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/expectedsh/go-sonic/sonic"
	"go.uber.org/zap"

	"github.com/kailas-cloud/searchsync/internal/domain/search/field"
	"github.com/kailas-cloud/searchsync/internal/domain/search/index"
	"github.com/kailas-cloud/searchsync/internal/domain/search/mapping"
	"github.com/kailas-cloud/searchsync/internal/usecase/indexing"
)

// DefaultPrefix namespaces sonic collections.
const DefaultPrefix = "search_"

// Ingester is the subset of the sonic ingest channel used by the backend.
type Ingester interface {
	Push(collection, bucket, object, text string) error
	FlushObject(collection, bucket, object string) error
	FlushCollection(collection string) error
	Ping() error
	Quit() error
}

// Querier is the subset of the sonic search channel used by the backend.
type Querier interface {
	Query(collection, bucket, terms string, limit, offset int) ([]string, error)
	Ping() error
	Quit() error
}

// Dialer opens both sonic channels.
type Dialer func() (Ingester, Querier, error)

// TCPDialer connects to a sonic server.
func TCPDialer(host string, port int, password string) Dialer {
	return func() (Ingester, Querier, error) {
		ingester, err := sonic.NewIngester(host, port, password)
		if err != nil {
			return nil, nil, fmt.Errorf("connect sonic ingest channel: %w", err)
		}
		search, err := sonic.NewSearch(host, port, password)
		if err != nil {
			_ = ingester.Quit()
			return nil, nil, fmt.Errorf("connect sonic search channel: %w", err)
		}
		return ingester, search, nil
	}
}

var (
	_ indexing.Backend  = (*Backend)(nil)
	_ indexing.Searcher = (*Backend)(nil)
	_ indexing.Pinger   = (*Backend)(nil)
	_ indexing.Resetter = (*Backend)(nil)
)

// Backend pushes the searchable text of documents into sonic. Each document
// type is a collection and each content type a bucket, so an object is pushed
// once per type in its ancestry.
type Backend struct {
	dial   Dialer
	reg    *index.Registry
	prefix string
	logger *zap.Logger

	mu       sync.Mutex
	ingester Ingester
	search   Querier
}

// New dials sonic and creates the backend.
func New(dial Dialer, reg *index.Registry, prefix string, logger *zap.Logger) (*Backend, error) {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ingester, search, err := dial()
	if err != nil {
		return nil, err
	}
	return &Backend{
		dial:     dial,
		reg:      reg,
		prefix:   prefix,
		logger:   logger,
		ingester: ingester,
		search:   search,
	}, nil
}

// IndexForModel returns the sonic collection holding documents of m.
func (b *Backend) IndexForModel(m *index.Model) string {
	return collection(mapping.New(b.reg, m), b.prefix)
}

// Add replaces the text of obj in every bucket of its ancestry.
func (b *Backend) Add(ctx context.Context, obj any) error {
	mp, err := mapping.For(b.reg, obj)
	if err != nil {
		return err
	}
	id, err := mp.DocumentID(ctx, obj)
	if err != nil {
		return err
	}
	doc, err := mp.Document(ctx, obj)
	if err != nil {
		return err
	}
	text := Text(mp.Columns(), doc)
	coll := collection(mp, b.prefix)

	return b.withIngester(func(ing Ingester) error {
		for _, ct := range mp.AllContentTypes() {
			bucket := bucketName(ct)
			if err := ing.FlushObject(coll, bucket, id); err != nil {
				return fmt.Errorf("sonic flush %s/%s/%s: %w", coll, bucket, id, err)
			}
			if text == "" {
				continue
			}
			if err := ing.Push(coll, bucket, id, text); err != nil {
				return fmt.Errorf("sonic push %s/%s/%s: %w", coll, bucket, id, err)
			}
		}
		return nil
	})
}

// Delete flushes obj from every bucket of its ancestry.
func (b *Backend) Delete(ctx context.Context, obj any) error {
	mp, err := mapping.For(b.reg, obj)
	if err != nil {
		return err
	}
	id, err := mp.DocumentID(ctx, obj)
	if err != nil {
		return err
	}
	coll := collection(mp, b.prefix)

	return b.withIngester(func(ing Ingester) error {
		for _, ct := range mp.AllContentTypes() {
			if err := ing.FlushObject(coll, bucketName(ct), id); err != nil {
				return fmt.Errorf("sonic flush %s/%s: %w", coll, id, err)
			}
		}
		return nil
	})
}

// Reset flushes the whole collection of m's document type.
func (b *Backend) Reset(_ context.Context, m *index.Model) error {
	coll := b.IndexForModel(m)
	return b.withIngester(func(ing Ingester) error {
		if err := ing.FlushCollection(coll); err != nil {
			return fmt.Errorf("sonic flush collection %s: %w", coll, err)
		}
		return nil
	})
}

// Search queries the bucket of m. Sonic has no listing, so an empty query
// yields no hits. Sonic does not score results; hits keep its ranking order.
func (b *Backend) Search(_ context.Context, m *index.Model, query string, limit int) ([]indexing.Hit, error) {
	terms := normalize(query)
	if terms == "" {
		return nil, nil
	}
	mp := mapping.New(b.reg, m)
	coll, bucket := collection(mp, b.prefix), bucketName(mp.ContentType())

	var ids []string
	err := b.withSearch(func(q Querier) error {
		var err error
		ids, err = q.Query(coll, bucket, terms, limit, 0)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("sonic query %s/%s: %w", coll, bucket, err)
	}

	hits := make([]indexing.Hit, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		hits = append(hits, indexing.Hit{ID: id})
	}
	return hits, nil
}

// Ping checks both channels.
func (b *Backend) Ping(_ context.Context) error {
	if err := b.withIngester(func(ing Ingester) error { return ing.Ping() }); err != nil {
		return fmt.Errorf("sonic ingest ping: %w", err)
	}
	if err := b.withSearch(func(q Querier) error { return q.Ping() }); err != nil {
		return fmt.Errorf("sonic search ping: %w", err)
	}
	return nil
}

// Close quits both channels.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return errors.Join(b.ingester.Quit(), b.search.Quit())
}

func (b *Backend) withIngester(fn func(Ingester) error) error {
	b.mu.Lock()
	ing := b.ingester
	b.mu.Unlock()

	err := fn(ing)
	if !isClosed(err) {
		return err
	}
	if err := b.reconnect(); err != nil {
		return err
	}
	b.mu.Lock()
	ing = b.ingester
	b.mu.Unlock()
	return fn(ing)
}

func (b *Backend) withSearch(fn func(Querier) error) error {
	b.mu.Lock()
	q := b.search
	b.mu.Unlock()

	err := fn(q)
	if !isClosed(err) {
		return err
	}
	if err := b.reconnect(); err != nil {
		return err
	}
	b.mu.Lock()
	q = b.search
	b.mu.Unlock()
	return fn(q)
}

func (b *Backend) reconnect() error {
	b.logger.Warn("Reconnecting to sonic")

	ingester, search, err := b.dial()
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.ingester, b.search = ingester, search
	b.mu.Unlock()
	return nil
}

func isClosed(err error) bool {
	return err != nil && (errors.Is(err, sonic.ErrClosed) || strings.Contains(err.Error(), "EOF"))
}

func collection(mp *mapping.Mapping, prefix string) string {
	return strings.ReplaceAll(mp.IndexName(prefix), ":", "_")
}

func bucketName(contentType string) string {
	return strings.ToLower(strings.ReplaceAll(contentType, ".", "_"))
}

// Text joins the values of the search columns of doc, nested ones included.
func Text(cols []mapping.Column, doc map[string]any) string {
	var parts []string
	collect(cols, doc, &parts)
	return normalize(strings.Join(parts, " "))
}

func collect(cols []mapping.Column, doc map[string]any, parts *[]string) {
	for _, c := range cols {
		v, ok := doc[c.Name]
		if !ok || v == nil {
			continue
		}
		switch c.Kind {
		case field.KindSearch:
			*parts = append(*parts, fmt.Sprint(v))
		case field.KindRelated:
			switch nested := v.(type) {
			case map[string]any:
				collect(c.Children, nested, parts)
			case []map[string]any:
				for _, item := range nested {
					collect(c.Children, item, parts)
				}
			}
		}
	}
}

// normalize collapses whitespace; sonic commands are line based.
func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
