package catalog

import (
	"context"
	"fmt"
	"reflect"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/kailas-cloud/searchsync/internal/domain/search/index"
	logpkg "github.com/kailas-cloud/searchsync/internal/logger"
	"github.com/kailas-cloud/searchsync/internal/usecase/indexing"
)

// Dispatcher receives entity changes.
type Dispatcher interface {
	InsertOrUpdate(ctx context.Context, instance any, opts ...indexing.CallOption)
	Remove(ctx context.Context, instance any)
}

// Callback names registered by InstallSignals.
const (
	createCallback = "searchsync:after_create"
	updateCallback = "searchsync:after_update"
	deleteCallback = "searchsync:after_delete"

	afterCommit = "gorm:commit_or_rollback_transaction"
)

// InstallSignals registers gorm callbacks that forward every successful
// create, update and delete to d. Only statements carrying the affected
// instances are forwarded; bulk updates by condition are left to reindexing.
func InstallSignals(db *gorm.DB, d Dispatcher) error {
	cb := db.Callback()
	if err := cb.Create().After(afterCommit).Register(createCallback, forward(func(ctx context.Context, tx *gorm.DB, obj any) {
		// A fresh row exists; only a scope can still exclude it.
		if _, scoped := obj.(index.Scoper); scoped {
			d.InsertOrUpdate(ctx, obj, indexing.Using(tx))
			return
		}
		d.InsertOrUpdate(ctx, obj, indexing.SkipExistsCheck())
	})); err != nil {
		return fmt.Errorf("register %s: %w", createCallback, err)
	}
	if err := cb.Update().After(afterCommit).Register(updateCallback, forward(func(ctx context.Context, tx *gorm.DB, obj any) {
		d.InsertOrUpdate(ctx, obj, indexing.Using(tx))
	})); err != nil {
		return fmt.Errorf("register %s: %w", updateCallback, err)
	}
	if err := cb.Delete().After(afterCommit).Register(deleteCallback, forward(func(ctx context.Context, _ *gorm.DB, obj any) {
		d.Remove(ctx, obj)
	})); err != nil {
		return fmt.Errorf("register %s: %w", deleteCallback, err)
	}
	return nil
}

// forward calls fn for every instance of a successful statement.
func forward(fn func(ctx context.Context, tx *gorm.DB, obj any)) func(*gorm.DB) {
	return func(tx *gorm.DB) {
		if tx.Error != nil || tx.Statement.Schema == nil {
			return
		}
		ctx := tx.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}
		ctx = logpkg.With(ctx, zap.String("table", tx.Statement.Table))

		for _, obj := range instances(tx) {
			logpkg.FromContext(ctx).Debug("Dispatching entity change",
				zap.String("type", fmt.Sprintf("%T", obj)),
			)
			fn(ctx, tx, obj)
		}
	}
}

// instances returns pointers to the statement's model values that carry a
// primary key.
func instances(tx *gorm.DB) []any {
	rv := tx.Statement.ReflectValue
	pk := tx.Statement.Schema.PrioritizedPrimaryField
	if !rv.IsValid() || pk == nil {
		return nil
	}

	var out []any
	add := func(v reflect.Value) {
		for v.Kind() == reflect.Pointer {
			if v.IsNil() {
				return
			}
			v = v.Elem()
		}
		if v.Kind() != reflect.Struct || v.Type() != tx.Statement.Schema.ModelType {
			return
		}
		if _, isZero := pk.ValueOf(tx.Statement.Context, v); isZero {
			return
		}
		if v.CanAddr() {
			out = append(out, v.Addr().Interface())
			return
		}
		out = append(out, v.Interface())
	}

	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			add(rv.Index(i))
		}
	default:
		add(rv)
	}
	return out
}
