package repositorycache

import (
	"context"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// Interface assertion to ensure InvalidatingRepository implements Repository[T]
var _ repository.Repository[any] = (*InvalidatingRepository[any])(nil)

// Invalidator purges cached data. invalidation.Gateway implements it.
type Invalidator interface {
	Invalidate(pattern string) int
	InvalidateAll()
}

// InvalidatingRepository decorates a base repository so that every
// successful write purges the cached resource family before returning.
//
// Reads pass through untouched; caching happens at the response layer.
// Single record writes invalidate pattern; bulk and criteria based writes
// clear everything. Writes taking a caller supplied transaction do not
// invalidate, since the data is not visible until commit: use RunInTx or
// RunBulkInTx, which invalidate after the commit succeeds.
type InvalidatingRepository[T any] struct {
	repository.Repository[T]

	invalidator Invalidator
	pattern     string
	logger      *zap.Logger
}

// Option customizes an InvalidatingRepository.
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger sets the logger used for invalidation events.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New wraps base so that writes invalidate pattern through invalidator.
func New[T any](base repository.Repository[T], invalidator Invalidator, pattern string, opts ...Option) *InvalidatingRepository[T] {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return &InvalidatingRepository[T]{
		Repository:  base,
		invalidator: invalidator,
		pattern:     pattern,
		logger:      o.logger,
	}
}

// Pattern returns the pattern invalidated after single record writes.
func (r *InvalidatingRepository[T]) Pattern() string {
	return r.pattern
}

// Create creates a new record
func (r *InvalidatingRepository[T]) Create(ctx context.Context, record T, criteria ...repository.InsertCriteria) (T, error) {
	result, err := r.Repository.Create(ctx, record, criteria...)
	if err == nil {
		r.invalidate("create")
	}
	return result, err
}

// CreateMany creates multiple records
func (r *InvalidatingRepository[T]) CreateMany(ctx context.Context, records []T, criteria ...repository.InsertCriteria) ([]T, error) {
	result, err := r.Repository.CreateMany(ctx, records, criteria...)
	if err == nil {
		r.invalidateAll("create_many")
	}
	return result, err
}

// GetOrCreate gets a record or creates it if it doesn't exist
func (r *InvalidatingRepository[T]) GetOrCreate(ctx context.Context, record T) (T, error) {
	result, err := r.Repository.GetOrCreate(ctx, record)
	if err == nil {
		r.invalidate("get_or_create")
	}
	return result, err
}

// Update updates a record
func (r *InvalidatingRepository[T]) Update(ctx context.Context, record T, criteria ...repository.UpdateCriteria) (T, error) {
	result, err := r.Repository.Update(ctx, record, criteria...)
	if err == nil {
		r.invalidate("update")
	}
	return result, err
}

// UpdateMany updates multiple records
func (r *InvalidatingRepository[T]) UpdateMany(ctx context.Context, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	result, err := r.Repository.UpdateMany(ctx, records, criteria...)
	if err == nil {
		r.invalidateAll("update_many")
	}
	return result, err
}

// Upsert inserts or updates a record
func (r *InvalidatingRepository[T]) Upsert(ctx context.Context, record T, criteria ...repository.UpdateCriteria) (T, error) {
	result, err := r.Repository.Upsert(ctx, record, criteria...)
	if err == nil {
		r.invalidate("upsert")
	}
	return result, err
}

// UpsertMany inserts or updates multiple records
func (r *InvalidatingRepository[T]) UpsertMany(ctx context.Context, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	result, err := r.Repository.UpsertMany(ctx, records, criteria...)
	if err == nil {
		r.invalidateAll("upsert_many")
	}
	return result, err
}

// Delete deletes a record
func (r *InvalidatingRepository[T]) Delete(ctx context.Context, record T) error {
	err := r.Repository.Delete(ctx, record)
	if err == nil {
		r.invalidate("delete")
	}
	return err
}

// DeleteMany deletes multiple records based on criteria
func (r *InvalidatingRepository[T]) DeleteMany(ctx context.Context, criteria ...repository.DeleteCriteria) error {
	err := r.Repository.DeleteMany(ctx, criteria...)
	if err == nil {
		// the affected records are unknown
		r.invalidateAll("delete_many")
	}
	return err
}

// DeleteWhere deletes records based on criteria
func (r *InvalidatingRepository[T]) DeleteWhere(ctx context.Context, criteria ...repository.DeleteCriteria) error {
	err := r.Repository.DeleteWhere(ctx, criteria...)
	if err == nil {
		r.invalidateAll("delete_where")
	}
	return err
}

// ForceDelete force deletes a record (bypassing soft delete)
func (r *InvalidatingRepository[T]) ForceDelete(ctx context.Context, record T) error {
	err := r.Repository.ForceDelete(ctx, record)
	if err == nil {
		r.invalidate("force_delete")
	}
	return err
}

// RunInTx runs fn in a transaction on db and invalidates pattern once the
// transaction commits. Nothing is invalidated when fn or the commit fails.
func (r *InvalidatingRepository[T]) RunInTx(ctx context.Context, db bun.IDB, fn func(ctx context.Context, tx bun.Tx) error) error {
	if err := db.RunInTx(ctx, nil, fn); err != nil {
		return err
	}
	r.invalidate("tx")
	return nil
}

// RunBulkInTx is RunInTx for bulk operations: it clears every cache after commit.
func (r *InvalidatingRepository[T]) RunBulkInTx(ctx context.Context, db bun.IDB, fn func(ctx context.Context, tx bun.Tx) error) error {
	if err := db.RunInTx(ctx, nil, fn); err != nil {
		return err
	}
	r.invalidateAll("bulk_tx")
	return nil
}

func (r *InvalidatingRepository[T]) invalidate(op string) {
	removed := r.invalidator.Invalidate(r.pattern)
	r.logger.Debug("write invalidated cache",
		zap.String("op", op),
		zap.String("pattern", r.pattern),
		zap.Int("removed", removed),
	)
}

func (r *InvalidatingRepository[T]) invalidateAll(op string) {
	r.invalidator.InvalidateAll()
	r.logger.Debug("write cleared cache", zap.String("op", op))
}
