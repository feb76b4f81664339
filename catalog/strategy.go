package catalog

import (
	"context"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-inventory-cache/query"
)

// structuredStrategy runs the filter set as bun Where clauses through the
// repository and eager loads relations with the ORM.
type structuredStrategy struct {
	cars repository.Repository[*Car]
}

func (s *structuredStrategy) execute(ctx context.Context, plan query.Plan) (Result, error) {
	cars, total, err := s.cars.List(ctx, SelectPlan(plan)...)
	if err != nil {
		return Result{}, storageError(err, "list cars")
	}
	return Result{Cars: cars, Total: total}, nil
}

// SelectPlan returns the select criteria applying plan's filters, order and
// page window, eager loading images and translations.
func SelectPlan(plan query.Plan) []repository.SelectCriteria {
	return []repository.SelectCriteria{
		func(q *bun.SelectQuery) *bun.SelectQuery {
			for _, c := range plan.Filters.Conditions() {
				q = q.Where(c.SQL, c.Args...)
			}
			return q
		},
		WithRelations(),
		func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				OrderExpr(plan.Sort.OrderExpr()).
				Limit(plan.Page.Limit).
				Offset(plan.Page.Skip)
		},
	}
}

// WithRelations eager loads images by position and translations by locale.
func WithRelations() repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.
			Relation("Images", func(q *bun.SelectQuery) *bun.SelectQuery {
				return q.OrderExpr("ci.position ASC")
			}).
			Relation("Translations", func(q *bun.SelectQuery) *bun.SelectQuery {
				return q.OrderExpr("ct.locale ASC")
			})
	}
}

// fulltextStrategy runs a parameterized substring match in raw SQL, then
// fetches relations for the returned page in one batch.
type fulltextStrategy struct {
	db        bun.IDB
	cars      repository.Repository[*Car]
	relations func(ctx context.Context, ids []string) (map[string]Relations, error)
}

func (s *fulltextStrategy) execute(ctx context.Context, plan query.Plan) (Result, error) {
	where, args := query.Where(plan.FulltextConditions())

	var total int
	countSQL := "SELECT COUNT(*) FROM " + TableCars + " AS " + query.Alias + " WHERE " + where
	if err := s.db.NewRaw(countSQL, args...).Scan(ctx, &total); err != nil {
		return Result{}, storageError(err, "count cars")
	}
	if total == 0 || plan.Page.Skip >= total {
		return Result{Total: total}, nil
	}

	rowsSQL := "SELECT " + query.Alias + ".* FROM " + TableCars + " AS " + query.Alias +
		" WHERE " + where +
		" ORDER BY " + plan.Sort.OrderExpr() +
		" LIMIT ? OFFSET ?"
	rowArgs := append(append([]any(nil), args...), plan.Page.Limit, plan.Page.Skip)

	cars, err := s.cars.Raw(ctx, rowsSQL, rowArgs...)
	if err != nil {
		return Result{}, storageError(err, "search cars")
	}
	if len(cars) == 0 {
		return Result{Cars: cars, Total: total}, nil
	}

	ids := make([]string, len(cars))
	for i, c := range cars {
		ids[i] = c.ID.String()
	}

	rels, err := s.relations(ctx, ids)
	if err != nil {
		return Result{}, storageError(err, "load relations")
	}
	for _, c := range cars {
		rel := rels[c.ID.String()]
		c.Images = rel.Images
		c.Translations = rel.Translations
	}

	return Result{Cars: cars, Total: total}, nil
}
