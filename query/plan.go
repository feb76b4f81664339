package query

import (
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Sort parameter names.
const (
	ParamSort  = "sort"
	ParamOrder = "order"
)

// Mode names the execution strategy chosen for a plan.
type Mode string

const (
	// ModeStructured runs the filter set as an ORM predicate tree.
	ModeStructured Mode = "structured"
	// ModeFulltext runs a raw substring match across the text columns.
	ModeFulltext Mode = "fulltext"
)

// SortField is a sortable listing attribute.
type SortField string

const (
	SortCreatedAt SortField = "createdAt"
	SortPrice     SortField = "price"
	SortYear      SortField = "year"
	SortMileage   SortField = "mileage"
)

var sortColumns = map[SortField]string{
	SortCreatedAt: "created_at",
	SortPrice:     "price",
	SortYear:      "year",
	SortMileage:   "mileage",
}

// Sort is a field and direction. The zero value is not valid; use DefaultSort.
type Sort struct {
	Field SortField
	Desc  bool
}

// DefaultSort orders newest first.
func DefaultSort() Sort {
	return Sort{Field: SortCreatedAt, Desc: true}
}

func (s Sort) direction() string {
	if s.Desc {
		return "DESC"
	}
	return "ASC"
}

// OrderExpr renders the ORDER BY expression. The id tiebreaker keeps page
// boundaries stable when the sort column has duplicates.
func (s Sort) OrderExpr() string {
	col, ok := sortColumns[s.Field]
	if !ok {
		col = sortColumns[SortCreatedAt]
	}
	dir := s.direction()
	return Alias + "." + col + " " + dir + ", " + Alias + ".id " + dir
}

// String returns "field:asc" or "field:desc".
func (s Sort) String() string {
	return string(s.Field) + ":" + strings.ToLower(s.direction())
}

// Plan is the compiled form of a listing request: which strategy runs, with
// which filters, over which page window and in which order.
type Plan struct {
	Mode    Mode
	Term    string
	Filters FilterSet
	Page    Page
	Sort    Sort
}

// Build compiles raw listing parameters into a Plan. Every rejected
// parameter is reported in a single *ValidationError.
func Build(values url.Values, policy Policy, now time.Time) (Plan, error) {
	errs := validation.Errors{}

	filters := compileFilters(values, now, errs)
	page := parseNumeric(values, ParamPage, errs)
	limit := parseNumeric(values, ParamLimit, errs)
	sort := compileSort(values, errs)

	if err := FromValidation(errs.Filter()); err != nil {
		return Plan{}, err
	}

	plan := Plan{
		Mode:    ModeStructured,
		Filters: filters,
		Page:    policy.Resolve(page, limit, filters.HasTextFilters()),
		Sort:    sort,
	}
	if filters.Search != "" {
		plan.Mode = ModeFulltext
		plan.Term = filters.Search
	}
	return plan, nil
}

func compileSort(values url.Values, errs validation.Errors) Sort {
	s := DefaultSort()

	field := strings.TrimSpace(values.Get(ParamSort))
	if err := validation.Validate(field, validation.In(
		string(SortCreatedAt), string(SortPrice), string(SortYear), string(SortMileage),
	).Error("must be one of createdAt, price, year, mileage")); err != nil {
		errs[ParamSort] = err
	} else if field != "" {
		s.Field = SortField(field)
	}

	order := strings.ToLower(strings.TrimSpace(values.Get(ParamOrder)))
	if err := validation.Validate(order, validation.In("asc", "desc").Error("must be asc or desc")); err != nil {
		errs[ParamOrder] = err
	} else if order != "" {
		s.Desc = order == "desc"
	}

	return s
}

// KeyArgs returns the arguments identifying this plan's result page in a
// cache key: page, limit and the filter set, plus the sort when it is not
// the default.
func (p Plan) KeyArgs() []any {
	args := []any{p.Page.Page, p.Page.Limit, p.Filters}
	if p.Sort != DefaultSort() {
		args = append(args, p.Sort.String())
	}
	return args
}
