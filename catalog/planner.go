package catalog

import (
	"context"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/goliatone/go-inventory-cache/cache"
	"github.com/goliatone/go-inventory-cache/query"
)

// RelationsKeyPrefix prefixes relation cache keys. It contains the car
// family token so car invalidation also drops cached relations.
const RelationsKeyPrefix = "cars:relations:"

// Result is one page of cars plus the total number of matches.
type Result struct {
	Cars  []*Car
	Total int
}

// strategy executes a plan for one Mode. Both implementations apply the
// same page window and order so their results are interchangeable.
type strategy interface {
	execute(ctx context.Context, plan query.Plan) (Result, error)
}

// Planner runs compiled listing plans against storage.
type Planner struct {
	db         bun.IDB
	cars       repository.Repository[*Car]
	relations  cache.BatchCache[Relations]
	logger     *zap.Logger
	strategies map[query.Mode]strategy
}

// PlannerOption customizes a Planner.
type PlannerOption func(*Planner)

// WithPlannerLogger sets the planner logger.
func WithPlannerLogger(logger *zap.Logger) PlannerOption {
	return func(p *Planner) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithRelationCache routes fulltext relation lookups through c.
func WithRelationCache(c cache.BatchCache[Relations]) PlannerOption {
	return func(p *Planner) {
		p.relations = c
	}
}

// NewPlanner returns a Planner reading through cars for the structured path
// and issuing raw SQL on db for the fulltext path.
func NewPlanner(db bun.IDB, cars repository.Repository[*Car], opts ...PlannerOption) *Planner {
	p := &Planner{
		db:     db,
		cars:   cars,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.strategies = map[query.Mode]strategy{
		query.ModeStructured: &structuredStrategy{cars: cars},
		query.ModeFulltext:   &fulltextStrategy{db: db, cars: cars, relations: p.loadRelations},
	}
	return p
}

// Search executes plan with the strategy matching its mode.
func (p *Planner) Search(ctx context.Context, plan query.Plan) (Result, error) {
	s, ok := p.strategies[plan.Mode]
	if !ok {
		s = p.strategies[query.ModeStructured]
	}

	start := time.Now()
	res, err := s.execute(ctx, plan)
	if err != nil {
		return Result{}, err
	}

	if res.Cars == nil {
		res.Cars = []*Car{}
	}
	for _, c := range res.Cars {
		c.normalize()
	}

	p.logger.Debug("listing executed",
		zap.String("mode", string(plan.Mode)),
		zap.Int("page", plan.Page.Page),
		zap.Int("limit", plan.Page.Limit),
		zap.Int("total", res.Total),
		zap.Duration("took", time.Since(start)),
	)
	return res, nil
}

// loadRelations returns the relations of ids, through the relation cache
// when one is configured.
func (p *Planner) loadRelations(ctx context.Context, ids []string) (map[string]Relations, error) {
	if p.relations == nil {
		return FetchRelations(ctx, p.db, ids)
	}
	return p.relations.GetOrFetchBatch(ctx, ids, func(ctx context.Context, missing []string) (map[string]Relations, error) {
		return FetchRelations(ctx, p.db, missing)
	})
}

// FetchRelations loads the images and translations of ids in two queries.
// Every id is present in the result, with empty slices when it has none.
func FetchRelations(ctx context.Context, db bun.IDB, ids []string) (map[string]Relations, error) {
	out := make(map[string]Relations, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var images []*CarImage
	err := db.NewSelect().
		Model(&images).
		Where("ci.car_id IN (?)", bun.In(ids)).
		OrderExpr("ci.car_id ASC, ci.position ASC").
		Scan(ctx)
	if err != nil {
		return nil, storageError(err, "load images")
	}

	var translations []*CarTranslation
	err = db.NewSelect().
		Model(&translations).
		Where("ct.car_id IN (?)", bun.In(ids)).
		OrderExpr("ct.car_id ASC, ct.locale ASC").
		Scan(ctx)
	if err != nil {
		return nil, storageError(err, "load translations")
	}

	for _, id := range ids {
		out[id] = Relations{Images: []*CarImage{}, Translations: []*CarTranslation{}}
	}
	for _, img := range images {
		id := img.CarID.String()
		rel := out[id]
		rel.Images = append(rel.Images, img)
		out[id] = rel
	}
	for _, tr := range translations {
		id := tr.CarID.String()
		rel := out[id]
		rel.Translations = append(rel.Translations, tr)
		out[id] = rel
	}
	return out, nil
}
