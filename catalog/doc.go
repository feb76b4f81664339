// Package catalog holds the car inventory: bun models, schema, the search
// planner executing listing plans and the service behind detail and write
// endpoints.
//
// The Planner runs a query.Plan with one of two strategies. Structured plans
// go through the generic repository as bun criteria with eager loaded
// relations. Fulltext plans use parameterized raw SQL for the count and the
// page, then load images and translations of the page in one batch, through
// a sturdyc backed cache when WithRelationCache is set. Both strategies share
// the plan's page window and order, so a term matching every row returns
// exactly what the structured path returns.
//
// Every storage failure is marked with ErrStorage. Service writes go through
// a CarWriter whose transactions invalidate cached car data after commit.
package catalog
