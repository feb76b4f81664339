package query

import (
	"strings"
)

// Alias is the table alias every rendered condition qualifies columns with.
const Alias = "c"

// SearchColumns are the text columns matched by a fulltext term.
var SearchColumns = []string{
	"make",
	"model",
	"fuel_type",
	"color",
	"transmission",
	"engine",
	"body_type",
}

// Condition is a single SQL predicate with positional "?" placeholders.
// The same text is valid as a bun Where clause and inside raw SQL.
type Condition struct {
	SQL  string
	Args []any
}

func cond(sql string, args ...any) Condition {
	return Condition{SQL: sql, Args: args}
}

func col(name string) string {
	return Alias + "." + name
}

// Conditions renders every filter except the search term.
func (f FilterSet) Conditions() []Condition {
	var out []Condition

	if f.Make != "" {
		out = append(out, cond("LOWER("+col("make")+") = LOWER(?)", f.Make))
	}
	if f.Model != "" {
		out = append(out, cond("LOWER("+col("model")+") = LOWER(?)", f.Model))
	}

	equalities := []struct {
		column string
		value  string
	}{
		{"fuel_type", f.FuelType},
		{"transmission", f.Transmission},
		{"plate_status", f.PlateStatus},
		{"body_type", f.BodyType},
		{"category", f.Category},
	}
	for _, eq := range equalities {
		if eq.value != "" {
			out = append(out, cond(col(eq.column)+" = ?", eq.value))
		}
	}

	out = appendRange(out, "year", f.Year)
	out = appendRange(out, "price", f.Price)
	out = appendRange(out, "mileage", f.Mileage)

	if f.Status != "" {
		out = append(out, StatusCondition(f.Status))
	}

	return out
}

func appendRange(out []Condition, column string, r *Range) []Condition {
	if r == nil {
		return out
	}
	if r.Gte != nil {
		out = append(out, cond(col(column)+" >= ?", *r.Gte))
	}
	if r.Lte != nil {
		out = append(out, cond(col(column)+" <= ?", *r.Lte))
	}
	return out
}

// StatusCondition renders the flag combination for a stock state.
func StatusCondition(s Status) Condition {
	sold, incoming, reserved := col("is_sold"), col("is_incoming"), col("is_reserved")

	switch s {
	case StatusSold:
		return cond(sold)
	case StatusIncoming:
		return cond(incoming + " AND NOT " + sold)
	case StatusReserved:
		return cond(reserved + " AND NOT " + sold)
	default:
		return cond("NOT " + sold + " AND NOT " + incoming + " AND NOT " + reserved)
	}
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// SearchCondition renders the case-insensitive substring match of the term
// across SearchColumns, ORed with the numeric year and price candidates.
func (f FilterSet) SearchCondition() (Condition, bool) {
	if f.Search == "" {
		return Condition{}, false
	}

	pattern := "%" + likeEscaper.Replace(f.Search) + "%"

	var (
		parts []string
		args  []any
	)
	for _, c := range SearchColumns {
		parts = append(parts, "LOWER("+col(c)+") LIKE LOWER(?) ESCAPE '!'")
		args = append(args, pattern)
	}
	if f.SearchYear != nil {
		parts = append(parts, col("year")+" = ?")
		args = append(args, *f.SearchYear)
	}
	if f.SearchPrice != nil {
		parts = append(parts, col("price")+" BETWEEN ? AND ?")
		args = append(args, *f.SearchPrice-SearchPriceWindow, *f.SearchPrice+SearchPriceWindow)
	}

	return Condition{SQL: "(" + strings.Join(parts, " OR ") + ")", Args: args}, true
}

// Where joins conditions with AND, each in parentheses, and returns the
// combined placeholder arguments. An empty list renders "1 = 1".
func Where(conds []Condition) (string, []any) {
	if len(conds) == 0 {
		return "1 = 1", nil
	}

	parts := make([]string, 0, len(conds))
	var args []any
	for _, c := range conds {
		parts = append(parts, "("+c.SQL+")")
		args = append(args, c.Args...)
	}
	return strings.Join(parts, " AND "), args
}

// FulltextConditions returns the predicate list used by the raw path: the
// search match, the stock restriction to available cars and every other filter.
func (p Plan) FulltextConditions() []Condition {
	var out []Condition
	if search, ok := p.Filters.SearchCondition(); ok {
		out = append(out, search)
	}

	filters := p.Filters
	filters.Status = StatusAvailable
	return append(out, filters.Conditions()...)
}
