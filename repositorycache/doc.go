// Package repositorycache provides a write-side decorator for go-repository-bun
// repositories that keeps response caches consistent with storage.
//
// # Overview
//
// InvalidatingRepository wraps a base repository and, after every successful
// write, purges the cached resource family through an Invalidator (usually
// the invalidation.Gateway). Reads pass straight through; caching happens at
// the HTTP response layer, not here.
//
// # Basic Usage
//
//	base := catalog.NewCarRepository(db)
//	gateway := invalidation.New([]cache.Target{store, relations})
//
//	cars := repositorycache.New(base, gateway, invalidation.CarsPattern)
//
//	// the cache no longer holds any "cars:" key when Create returns
//	car, err := cars.Create(ctx, car)
//
// # Invalidation Rules
//
//   - Single record writes (Create, GetOrCreate, Update, Upsert, Delete,
//     ForceDelete) invalidate the configured pattern.
//   - Bulk and criteria writes (CreateMany, UpdateMany, UpsertMany,
//     DeleteMany, DeleteWhere) clear every cache; the affected keys cannot
//     be computed cheaply.
//   - Failed writes invalidate nothing.
//
// # Transaction Handling
//
// The *Tx methods pass through without invalidating: data written inside a
// caller owned transaction is not visible to readers until commit, and an
// early purge could be refilled with pre-commit data. Wrap transactional
// work in RunInTx (or RunBulkInTx) instead:
//
//	err := cars.RunInTx(ctx, db, func(ctx context.Context, tx bun.Tx) error {
//		if _, err := cars.CreateTx(ctx, tx, car); err != nil {
//			return err
//		}
//		return insertImages(ctx, tx, car)
//	})
//
// Invalidation runs after the commit succeeds and before RunInTx returns.
package repositorycache
