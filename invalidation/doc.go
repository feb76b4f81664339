// Package invalidation purges cached data after writes.
//
// Write paths call Invalidate with a pattern scoped to the affected resource
// family (CarsPattern for cars) after the mutation commits and before the
// response is sent. Bulk operations call InvalidateAll. Neither call can
// fail; a pattern with no matches is a no-op.
package invalidation
