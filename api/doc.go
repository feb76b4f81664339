// Package api exposes the inventory over HTTP.
//
// Read endpoints run behind httpcache with keys in the "cars:" family:
//
//	GET /cars          cars:<page>:<limit>:<filters>[:<sort>]
//	GET /cars/makes    cars:GET:/cars/makes
//	GET /cars/{id}     cars:detail:<id>
//
// Write endpoints go through a CarService whose repository invalidates that
// family after commit, so a read issued after a write response never sees
// data cached before it. Bulk import clears every cache.
//
// Errors render as {"error": "..."}; validation failures add a "details"
// object keyed by parameter or field name.
package api
