package query

import (
	"github.com/cockroachdb/errors"
)

// Pagination parameter names.
const (
	ParamPage  = "page"
	ParamLimit = "limit"
)

// Policy holds the page size rules. Storefront requests are capped at
// PublicMax; requests without text filters asking for more than
// AdminThreshold rows are treated as admin listings and capped at AdminMax.
type Policy struct {
	DefaultLimit   int `yaml:"default_limit" json:"defaultLimit"`
	PublicMax      int `yaml:"public_max" json:"publicMax"`
	AdminThreshold int `yaml:"admin_threshold" json:"adminThreshold"`
	AdminMax       int `yaml:"admin_max" json:"adminMax"`
}

// DefaultPolicy returns the catalog page size rules.
func DefaultPolicy() Policy {
	return Policy{
		DefaultLimit:   10,
		PublicMax:      50,
		AdminThreshold: 100,
		AdminMax:       2000,
	}
}

// Validate rejects policies that cannot produce a positive page size.
func (p Policy) Validate() error {
	switch {
	case p.DefaultLimit < 1:
		return errors.New("pagination: default_limit must be greater than 0")
	case p.PublicMax < 1:
		return errors.New("pagination: public_max must be greater than 0")
	case p.AdminThreshold < 0:
		return errors.New("pagination: admin_threshold must be non-negative")
	case p.AdminMax < p.PublicMax:
		return errors.New("pagination: admin_max must not be lower than public_max")
	}
	return nil
}

// Page is a resolved page window. Skip is computed once here and used by
// every execution path.
type Page struct {
	Page  int  `json:"page"`
	Limit int  `json:"limit"`
	Skip  int  `json:"-"`
	Admin bool `json:"-"`
}

// Resolve applies defaults and ceilings to the requested page and limit.
// A zero page or limit means the parameter was not supplied.
func (p Policy) Resolve(page, limit int, textFiltered bool) Page {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = p.DefaultLimit
	}

	admin := !textFiltered && limit > p.AdminThreshold
	ceiling := p.PublicMax
	if admin {
		ceiling = p.AdminMax
	}
	if limit > ceiling {
		limit = ceiling
	}

	return Page{
		Page:  page,
		Limit: limit,
		Skip:  (page - 1) * limit,
		Admin: admin,
	}
}

// TotalPages returns the number of pages needed for total rows.
func (p Page) TotalPages(total int) int {
	if total <= 0 || p.Limit <= 0 {
		return 0
	}
	return (total + p.Limit - 1) / p.Limit
}
