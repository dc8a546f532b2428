package indexing

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kailas-cloud/searchsync/internal/domain/search/index"
	"github.com/kailas-cloud/searchsync/internal/domain/search/mapping"
	"github.com/kailas-cloud/searchsync/internal/metrics"
)

// Service fans entity changes out to every configured backend.
// Backend failures are logged and never returned to the caller.
type Service struct {
	reg      *index.Registry
	db       *gorm.DB
	backends *Backends
	logger   *zap.Logger
}

// New creates a dispatch service. db is used for existence checks and may be nil.
func New(reg *index.Registry, db *gorm.DB, backends *Backends, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{reg: reg, db: db, backends: backends, logger: logger}
}

type callOptions struct {
	skipExists bool
	db         *gorm.DB
}

// CallOption tunes a single dispatch.
type CallOption func(*callOptions)

// SkipExistsCheck skips verifying that the object is still indexable,
// for callers that just inserted it.
func SkipExistsCheck() CallOption {
	return func(o *callOptions) { o.skipExists = true }
}

// Using runs the existence check on db, e.g. the session of a hook.
func Using(db *gorm.DB) CallOption {
	return func(o *callOptions) { o.db = db }
}

// InsertOrUpdate indexes instance in every auto-update backend.
func (s *Service) InsertOrUpdate(ctx context.Context, instance any, opts ...CallOption) {
	o := callOptions{db: s.db}
	for _, opt := range opts {
		opt(&o)
	}

	obj, m, ok := s.resolve(instance)
	if !ok {
		return
	}
	if !o.skipExists && !s.live(ctx, o.db, m, obj) {
		metrics.SkippedObjectsTotal.WithLabelValues("not_live").Inc()
		return
	}

	for _, b := range s.backends.AutoUpdate() {
		_ = s.call(ctx, b.Name, OpAdd, m, obj, func() error { return b.Backend.Add(ctx, obj) })
	}
}

// Remove deletes the document of instance from every auto-update backend.
// The row may already be gone, so liveness is not checked.
func (s *Service) Remove(ctx context.Context, instance any) {
	obj, m, ok := s.resolve(instance)
	if !ok {
		return
	}
	for _, b := range s.backends.AutoUpdate() {
		_ = s.call(ctx, b.Name, OpDelete, m, obj, func() error { return b.Backend.Delete(ctx, obj) })
	}
}

// resolve returns the object representing instance in the index.
func (s *Service) resolve(instance any) (any, *index.Model, bool) {
	if !s.indexable(instance) {
		metrics.SkippedObjectsTotal.WithLabelValues("not_indexable").Inc()
		return nil, nil, false
	}

	obj := instance
	if ii, ok := instancer(instance); ok {
		obj = ii.IndexedInstance()
		if isNil(obj) {
			metrics.SkippedObjectsTotal.WithLabelValues("opted_out").Inc()
			return nil, nil, false
		}
		if !s.indexable(obj) {
			metrics.SkippedObjectsTotal.WithLabelValues("not_indexable").Inc()
			return nil, nil, false
		}
	}

	m, err := s.reg.ModelOf(obj)
	if err != nil {
		return nil, nil, false
	}
	return obj, m, true
}

func (s *Service) indexable(instance any) bool {
	if isNil(instance) {
		return false
	}
	return s.reg.ClassIsIndexable(reflect.TypeOf(instance))
}

// live reports whether obj is still part of its model's indexable rows.
func (s *Service) live(ctx context.Context, db *gorm.DB, m *index.Model, obj any) bool {
	if db == nil {
		return true
	}
	sch := m.Schema()
	if sch == nil || sch.PrioritizedPrimaryField == nil {
		return false
	}
	pk, isZero := sch.PrioritizedPrimaryField.ValueOf(ctx, reflect.Indirect(reflect.ValueOf(obj)))
	if isZero {
		return false
	}

	var n int64
	err := s.reg.Scope(db.Session(&gorm.Session{NewDB: true}).WithContext(ctx), m).
		Where(clause.Eq{
			Column: clause.Column{Table: clause.CurrentTable, Name: sch.PrioritizedPrimaryField.DBName},
			Value:  pk,
		}).
		Count(&n).Error
	if err != nil {
		s.logger.Warn("Existence check failed",
			zap.String("model", m.ContentType()),
			zap.Any("pk", pk),
			zap.Error(err),
		)
		return false
	}
	return n > 0
}

// call runs one backend operation, recovering panics and recording the outcome.
func (s *Service) call(
	ctx context.Context, backend, op string, m *index.Model, obj any, fn func() error,
) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = &BackendError{Backend: backend, Op: op, Err: fmt.Errorf("panic: %v", r)}
		}

		metrics.BackendOperationDuration.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
		if err == nil {
			metrics.BackendOperationsTotal.WithLabelValues(backend, op, metrics.StatusOK).Inc()
			return
		}
		metrics.BackendOperationsTotal.WithLabelValues(backend, op, metrics.StatusError).Inc()
		s.logger.Error("Search backend operation failed",
			zap.String("backend", backend),
			zap.String("operation", op),
			zap.String("object", s.describe(ctx, m, obj)),
			zap.Error(err),
		)
	}()

	if e := fn(); e != nil {
		return &BackendError{Backend: backend, Op: op, Err: e}
	}
	return nil
}

// describe names obj for logs. It runs while a backend failure is being
// recorded, so a String method that panics falls back to the document ID.
func (s *Service) describe(ctx context.Context, m *index.Model, obj any) string {
	if name, ok := safeString(obj); ok {
		return name
	}
	id, err := mapping.New(s.reg, m).DocumentID(ctx, obj)
	if err != nil {
		id = "?"
	}
	return m.ContentType() + "#" + id
}

func safeString(obj any) (name string, ok bool) {
	st, isStringer := obj.(fmt.Stringer)
	if !isStringer {
		return "", false
	}
	defer func() {
		if r := recover(); r != nil {
			name, ok = "", false
		}
	}()
	return st.String(), true
}

func instancer(instance any) (index.IndexedInstancer, bool) {
	if ii, ok := instance.(index.IndexedInstancer); ok {
		return ii, true
	}
	rv := reflect.ValueOf(instance)
	if rv.Kind() == reflect.Pointer {
		return nil, false
	}
	p := reflect.New(rv.Type())
	p.Elem().Set(rv)
	ii, ok := p.Interface().(index.IndexedInstancer)
	return ii, ok
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func:
		return rv.IsNil()
	default:
		return false
	}
}
