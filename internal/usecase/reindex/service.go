package reindex

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/kailas-cloud/searchsync/internal/domain/search/index"
	"github.com/kailas-cloud/searchsync/internal/metrics"
	"github.com/kailas-cloud/searchsync/internal/usecase/indexing"
)

// DefaultChunkSize is the number of rows loaded per query.
const DefaultChunkSize = 1000

// Report summarizes the reindexing of one model into one backend.
type Report struct {
	Backend string
	Model   string
	Indexed int
	Failed  int
	Err     error
}

// Service rebuilds backend contents from the database.
type Service struct {
	reg       *index.Registry
	db        *gorm.DB
	backends  *indexing.Backends
	logger    *zap.Logger
	chunkSize int
}

// New creates a reindex service.
func New(reg *index.Registry, db *gorm.DB, backends *indexing.Backends, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		reg: reg, db: db, backends: backends,
		logger: logger, chunkSize: DefaultChunkSize,
	}
}

// WithChunkSize configures the number of rows per batch.
func (s *Service) WithChunkSize(size int) *Service {
	if size > 0 {
		s.chunkSize = size
	}
	return s
}

// Run writes every indexable row of every concrete indexed model into the
// named backend, or into all backends when name is empty. Manual backends
// are included. Backends implementing indexing.Resetter are emptied first,
// once per document type. Per-model failures are reported, not returned.
func (s *Service) Run(ctx context.Context, name string) ([]Report, error) {
	targets, err := s.backends.Select(name)
	if err != nil {
		return nil, err
	}

	var reports []Report
	for _, b := range targets {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		resetErrs := s.reset(ctx, b)
		for _, m := range s.reg.AllIndexedModels() {
			if err := ctx.Err(); err != nil {
				return reports, err
			}
			r := s.model(ctx, b, m)
			if r.Err == nil {
				r.Err = resetErrs[m.ToplevelContentType()]
			}
			reports = append(reports, r)

			metrics.ReindexedObjectsTotal.WithLabelValues(b.Name, m.ContentType(), metrics.StatusOK).Add(float64(r.Indexed))
			metrics.ReindexedObjectsTotal.WithLabelValues(b.Name, m.ContentType(), metrics.StatusError).Add(float64(r.Failed))
		}
	}
	return reports, nil
}

// reset empties every document type of b and returns the failures keyed by
// document type. A failed reset still lets the models be written.
func (s *Service) reset(ctx context.Context, b indexing.Named) map[string]error {
	rs, ok := b.Backend.(indexing.Resetter)
	if !ok {
		return nil
	}

	errs := make(map[string]error)
	done := make(map[string]bool)
	for _, m := range s.reg.AllIndexedModels() {
		top := m.Toplevel()
		docType := top.ContentTypeToken()
		if done[docType] {
			continue
		}
		done[docType] = true

		idx := b.Backend.IndexForModel(top)
		if err := safe(func() error { return rs.Reset(ctx, top) }); err != nil {
			errs[docType] = fmt.Errorf("reset %s: %w", idx, err)
			s.logger.Error("Index reset failed",
				zap.String("backend", b.Name),
				zap.String("index", idx),
				zap.Error(err),
			)
			continue
		}
		s.logger.Info("Index reset", zap.String("backend", b.Name), zap.String("index", idx))
	}
	return errs
}

func (s *Service) model(ctx context.Context, b indexing.Named, m *index.Model) Report {
	r := Report{Backend: b.Name, Model: m.ContentType()}
	start := time.Now()
	log := s.logger.With(zap.String("backend", b.Name), zap.String("model", m.ContentType()))
	log.Info("Reindexing model", zap.String("index", b.Backend.IndexForModel(m)))

	dest := reflect.New(reflect.SliceOf(reflect.PointerTo(m.Type())))
	res := s.reg.IndexableQuery(s.db.WithContext(ctx), m).
		FindInBatches(dest.Interface(), s.chunkSize, func(_ *gorm.DB, batch int) error {
			objs := items(dest.Elem())
			ok, failed := s.write(ctx, b, m, objs, log)
			r.Indexed += ok
			r.Failed += failed
			log.Debug("Batch written", zap.Int("batch", batch), zap.Int("indexed", ok), zap.Int("failed", failed))
			return nil
		})
	if res.Error != nil {
		r.Err = fmt.Errorf("load %s: %w", m, res.Error)
		log.Error("Reindex query failed", zap.Error(res.Error))
	}

	log.Info("Reindexed model",
		zap.Int("indexed", r.Indexed),
		zap.Int("failed", r.Failed),
		zap.Duration("took", time.Since(start)),
	)
	return r
}

// write stores one batch and returns the number of written and failed objects.
func (s *Service) write(
	ctx context.Context, b indexing.Named, m *index.Model, objs []any, log *zap.Logger,
) (ok, failed int) {
	if len(objs) == 0 {
		return 0, 0
	}
	if bulk, isBulk := b.Backend.(indexing.BulkAdder); isBulk {
		if err := safe(func() error { return bulk.AddBulk(ctx, m, objs) }); err != nil {
			log.Error("Bulk add failed", zap.Int("objects", len(objs)), zap.Error(err))
			return 0, len(objs)
		}
		return len(objs), 0
	}

	for _, obj := range objs {
		if err := safe(func() error { return b.Backend.Add(ctx, obj) }); err != nil {
			log.Error("Add failed", zap.Error(err))
			failed++
			continue
		}
		ok++
	}
	return ok, failed
}

func safe(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

func items(slice reflect.Value) []any {
	out := make([]any, slice.Len())
	for i := range out {
		out[i] = slice.Index(i).Interface()
	}
	return out
}
