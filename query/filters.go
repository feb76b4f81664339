package query

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Query parameter names understood by the filter compiler.
const (
	ParamSearch       = "search"
	ParamMake         = "make"
	ParamModel        = "model"
	ParamFuelType     = "fuelType"
	ParamTransmission = "transmission"
	ParamPlateStatus  = "plateStatus"
	ParamBodyType     = "bodyType"
	ParamCategory     = "category"
	ParamStatus       = "status"
	ParamYear         = "year"
	ParamPrice        = "price"
	ParamMileage      = "mileage"
)

const (
	MinSearchLength = 2
	MaxSearchLength = 100
	MaxValueLength  = 100

	// MinSearchYear is the oldest model year a numeric search term may match.
	MinSearchYear = 1900
	// SearchPriceWindow is the distance either side of a numeric search term
	// used for the price proximity match.
	SearchPriceWindow = 10_000
	// MaxSearchPrice is the largest numeric search term treated as a price.
	MaxSearchPrice = 10_000_000

	maxNumericDigits = 15
)

var (
	digitsPattern = regexp.MustCompile(`^[0-9]+$`)
	yearPattern   = regexp.MustCompile(`^[0-9]{4}$`)
)

var numericRules = []validation.Rule{
	validation.Length(0, maxNumericDigits).Error("must have at most 15 digits"),
	validation.Match(digitsPattern).Error("must contain only digits"),
}

// Status selects one of the mutually exclusive stock states derived from
// the sold, incoming and reserved flags.
type Status string

const (
	StatusAvailable Status = "available"
	StatusSold      Status = "sold"
	StatusIncoming  Status = "incoming"
	StatusReserved  Status = "reserved"
)

// Range is an inclusive numeric interval. A nil bound is unbounded.
type Range struct {
	Gte *int64 `json:"gte,omitempty"`
	Lte *int64 `json:"lte,omitempty"`
}

// FilterSet is the validated, sanitized form of the listing query
// parameters. Its JSON encoding is canonical and is used in cache keys.
type FilterSet struct {
	Search       string `json:"search,omitempty"`
	Make         string `json:"make,omitempty"`
	Model        string `json:"model,omitempty"`
	FuelType     string `json:"fuelType,omitempty"`
	Transmission string `json:"transmission,omitempty"`
	PlateStatus  string `json:"plateStatus,omitempty"`
	BodyType     string `json:"bodyType,omitempty"`
	Category     string `json:"category,omitempty"`
	Status       Status `json:"status,omitempty"`
	Year         *Range `json:"year,omitempty"`
	Price        *Range `json:"price,omitempty"`
	Mileage      *Range `json:"mileage,omitempty"`

	// Derived from Search; ORed into the text match.
	SearchYear  *int64 `json:"-"`
	SearchPrice *int64 `json:"-"`
}

// HasTextFilters reports whether any free text style filter is present.
// Those requests never qualify for the admin page size ceiling.
func (f FilterSet) HasTextFilters() bool {
	return f.Search != "" || f.Make != "" || f.Model != ""
}

// CompileFilters validates and sanitizes raw listing parameters. now decides
// the newest model year a numeric search term may match.
func CompileFilters(values url.Values, now time.Time) (FilterSet, error) {
	errs := validation.Errors{}
	fs := compileFilters(values, now, errs)
	if err := FromValidation(errs.Filter()); err != nil {
		return FilterSet{}, err
	}
	return fs, nil
}

func compileFilters(values url.Values, now time.Time, errs validation.Errors) FilterSet {
	var fs FilterSet

	fs.Search = compileSearch(values, errs)
	if fs.Search != "" {
		fs.SearchYear, fs.SearchPrice = searchAugmentations(fs.Search, now)
	}

	fs.Make = compileText(values, ParamMake, errs)
	fs.Model = compileText(values, ParamModel, errs)
	fs.FuelType = compileText(values, ParamFuelType, errs)
	fs.Transmission = compileText(values, ParamTransmission, errs)
	fs.PlateStatus = compileText(values, ParamPlateStatus, errs)
	fs.BodyType = compileText(values, ParamBodyType, errs)
	fs.Category = compileText(values, ParamCategory, errs)

	status := strings.TrimSpace(values.Get(ParamStatus))
	if err := validation.Validate(status, validation.In(
		string(StatusAvailable), string(StatusSold), string(StatusIncoming), string(StatusReserved),
	).Error("must be one of available, sold, incoming, reserved")); err != nil {
		errs[ParamStatus] = err
	} else {
		fs.Status = Status(status)
	}

	fs.Year = compileRange(values, ParamYear, errs)
	fs.Price = compileRange(values, ParamPrice, errs)
	fs.Mileage = compileRange(values, ParamMileage, errs)

	return fs
}

// compileSearch trims the term, checks its length, strips markup characters
// and checks the length of what remains. A blank term is treated as absent.
func compileSearch(values url.Values, errs validation.Errors) string {
	term := strings.TrimSpace(values.Get(ParamSearch))
	if term == "" {
		return ""
	}

	if err := validation.Validate(term,
		validation.Length(MinSearchLength, MaxSearchLength),
	); err != nil {
		errs[ParamSearch] = err
		return ""
	}

	term = strings.TrimSpace(Sanitize(term))
	if term == "" {
		errs[ParamSearch] = validation.NewError("validation_search_empty", "must contain searchable characters")
		return ""
	}
	// stripping may leave fewer characters than the minimum
	if err := validation.Validate(term,
		validation.Length(MinSearchLength, MaxSearchLength),
	); err != nil {
		errs[ParamSearch] = err
		return ""
	}
	return term
}

// searchAugmentations returns the year equality and price proximity
// candidates for a purely numeric term.
func searchAugmentations(term string, now time.Time) (year, price *int64) {
	if yearPattern.MatchString(term) {
		y, _ := strconv.ParseInt(term, 10, 64)
		if y >= MinSearchYear && y <= int64(now.Year()+1) {
			year = &y
		}
	}

	if digitsPattern.MatchString(term) && len(term) <= 8 {
		p, _ := strconv.ParseInt(term, 10, 64)
		if p > 0 && p <= MaxSearchPrice {
			price = &p
		}
	}
	return year, price
}

func compileText(values url.Values, name string, errs validation.Errors) string {
	raw := values.Get(name)
	if raw == "" {
		return ""
	}
	v := strings.TrimSpace(Sanitize(raw))
	if err := validation.Validate(v, validation.Length(0, MaxValueLength)); err != nil {
		errs[name] = err
		return ""
	}
	return v
}

// compileRange reads the bounds of a numeric range. The lower bound comes
// from min<Name>, then <name>From, then <name>; the upper bound from
// max<Name>, then <name>To, then <name>. Absent bounds stay nil.
func compileRange(values url.Values, name string, errs validation.Errors) *Range {
	title := strings.ToUpper(name[:1]) + name[1:]

	var r Range
	r.Gte = compileBound(values, errs, "min"+title, name+"From", name)
	r.Lte = compileBound(values, errs, "max"+title, name+"To", name)

	if r.Gte == nil && r.Lte == nil {
		return nil
	}
	return &r
}

func compileBound(values url.Values, errs validation.Errors, names ...string) *int64 {
	for _, name := range names {
		raw := strings.TrimSpace(values.Get(name))
		if raw == "" {
			continue
		}
		if err := validation.Validate(raw, numericRules...); err != nil {
			errs[name] = err
			return nil
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			errs[name] = validation.NewError("validation_out_of_range", "is out of range")
			return nil
		}
		return &v
	}
	return nil
}

// Sanitize removes angle brackets and control characters from s.
func Sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '<' || r == '>' || unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

// parseNumeric validates an optional all-digit parameter and returns 0 when absent.
func parseNumeric(values url.Values, name string, errs validation.Errors) int {
	raw := strings.TrimSpace(values.Get(name))
	if raw == "" {
		return 0
	}
	if err := validation.Validate(raw, numericRules...); err != nil {
		errs[name] = err
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		errs[name] = validation.NewError("validation_out_of_range", "is out of range")
		return 0
	}
	return v
}
