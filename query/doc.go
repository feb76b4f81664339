// Package query compiles listing request parameters into a Plan.
//
// Compilation is pure: no storage access, no clock reads beyond the time
// passed in. A Plan carries the validated FilterSet, the resolved page
// window, the sort order and the execution Mode. Requests with a search
// term run in ModeFulltext, everything else in ModeStructured.
//
// Every rejected parameter is collected into one *ValidationError so a
// client can fix the whole request at once:
//
//	plan, err := query.Build(r.URL.Query(), query.DefaultPolicy(), time.Now())
//	if verr, ok := query.AsValidationError(err); ok {
//		// 400 with verr.Fields
//	}
//
// Conditions render as SQL fragments with "?" placeholders qualified by the
// "c" table alias, so the structured path can hand them to bun Where calls
// and the fulltext path can join them into raw SQL without divergence.
package query
