package search

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/searchsync/internal/domain/search/index"
	"github.com/kailas-cloud/searchsync/internal/usecase/indexing"
)

// Pagination defaults.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Service runs full-text queries against the configured backends.
type Service struct {
	reg      *index.Registry
	backends *indexing.Backends
	logger   *zap.Logger

	defaultLimit int
	maxLimit     int
}

// New creates a search service.
func New(reg *index.Registry, backends *indexing.Backends, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		reg:          reg,
		backends:     backends,
		logger:       logger,
		defaultLimit: DefaultLimit,
		maxLimit:     MaxLimit,
	}
}

// WithLimits overrides the default and maximum result counts.
func (s *Service) WithLimits(def, maxLimit int) *Service {
	if def > 0 {
		s.defaultLimit = def
	}
	if maxLimit > 0 {
		s.maxLimit = maxLimit
	}
	return s
}

// Search queries one backend, or every searchable backend when backend is
// empty. Rankings of several backends are fused; a failing backend is
// logged and left out.
func (s *Service) Search(
	ctx context.Context, backend, contentType, query string, limit int,
) ([]indexing.Hit, error) {
	m, err := s.Model(contentType)
	if err != nil {
		return nil, err
	}
	limit = s.clamp(limit)

	if backend != "" {
		b, err := s.backends.Get(backend)
		if err != nil {
			return nil, err
		}
		sr, ok := b.(indexing.Searcher)
		if !ok {
			return nil, fmt.Errorf("%s: %w", backend, ErrNotSearchable)
		}
		hits, err := sr.Search(ctx, m, query, limit)
		if err != nil {
			return nil, fmt.Errorf("search %s in %s: %w", m, backend, err)
		}
		return hits, nil
	}

	var (
		rankings   [][]indexing.Hit
		searchable int
	)
	for _, nb := range s.backends.All() {
		sr, ok := nb.Backend.(indexing.Searcher)
		if !ok {
			continue
		}
		searchable++
		hits, err := sr.Search(ctx, m, query, limit)
		if err != nil {
			s.logger.Warn("Search backend query failed",
				zap.String("backend", nb.Name),
				zap.String("model", m.ContentType()),
				zap.Error(err),
			)
			continue
		}
		rankings = append(rankings, hits)
	}
	if searchable == 0 {
		return nil, ErrNotSearchable
	}
	if len(rankings) == 1 {
		return rankings[0], nil
	}
	return fuseRRF(rankings, limit), nil
}

// Model resolves a registered indexed model by content type ("ns.TypeName")
// or its token ("ns_typename"), case-insensitively.
func (s *Service) Model(contentType string) (*index.Model, error) {
	for _, m := range s.reg.AllIndexedModels() {
		if strings.EqualFold(m.ContentType(), contentType) || strings.EqualFold(m.ContentTypeToken(), contentType) {
			return m, nil
		}
	}
	return nil, fmt.Errorf("%q: %w", contentType, ErrUnknownContentType)
}

func (s *Service) clamp(limit int) int {
	if limit <= 0 {
		return s.defaultLimit
	}
	if limit > s.maxLimit {
		return s.maxLimit
	}
	return limit
}
