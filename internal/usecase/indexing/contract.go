package indexing

import (
	"context"

	"github.com/kailas-cloud/searchsync/internal/domain/search/index"
)

// Backend is a search engine integration.
type Backend interface {
	// Add upserts the document of obj.
	Add(ctx context.Context, obj any) error
	// Delete removes the document of obj.
	Delete(ctx context.Context, obj any) error
	// IndexForModel returns the physical index holding documents of m.
	IndexForModel(m *index.Model) string
}

// BulkAdder writes many objects of one model in a single round trip.
type BulkAdder interface {
	AddBulk(ctx context.Context, m *index.Model, objs []any) error
}

// Resetter empties the index holding m's document type, so that a full
// reindex leaves no documents of deleted or out-of-scope rows behind.
type Resetter interface {
	Reset(ctx context.Context, m *index.Model) error
}

// Pinger reports backend reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Searcher runs a full-text query restricted to a model and its descendants.
type Searcher interface {
	Search(ctx context.Context, m *index.Model, query string, limit int) ([]Hit, error)
}

// Hit is one search result.
type Hit struct {
	ID    string
	Score float64
}
