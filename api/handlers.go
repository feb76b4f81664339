package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/goliatone/go-inventory-cache/catalog"
	"github.com/goliatone/go-inventory-cache/httpcache"
	"github.com/goliatone/go-inventory-cache/query"
)

// Request body limits.
const (
	maxCarBody    = 1 << 20
	maxImportBody = 32 << 20
)

// Pagination is the page metadata of a listing response.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// ListResponse is the body of GET /cars, identical for both search modes.
type ListResponse struct {
	Cars       []*catalog.Car `json:"cars"`
	Pagination Pagination     `json:"pagination"`
}

func (a *API) listCars(r *http.Request) (*httpcache.Response, error) {
	plan, err := query.Build(r.URL.Query(), a.opts.Policy, a.opts.Now())
	if err != nil {
		return nil, err
	}

	res, err := a.planner.Search(r.Context(), plan)
	if err != nil {
		return nil, err
	}

	return httpcache.JSON(http.StatusOK, ListResponse{
		Cars: res.Cars,
		Pagination: Pagination{
			Page:       plan.Page.Page,
			Limit:      plan.Page.Limit,
			Total:      res.Total,
			TotalPages: plan.Page.TotalPages(res.Total),
		},
	}), nil
}

func (a *API) listMakes(r *http.Request) (*httpcache.Response, error) {
	makes, err := a.cars.Makes(r.Context())
	if err != nil {
		return nil, err
	}
	return httpcache.JSON(http.StatusOK, makes), nil
}

func (a *API) getCar(r *http.Request) (*httpcache.Response, error) {
	car, err := a.cars.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		return nil, err
	}
	return httpcache.JSON(http.StatusOK, car), nil
}

func (a *API) createCar(r *http.Request) (*httpcache.Response, error) {
	car := new(catalog.Car)
	if err := decodeBody(r, maxCarBody, car); err != nil {
		return nil, err
	}

	created, err := a.cars.Create(r.Context(), car)
	if err != nil {
		return nil, err
	}
	return httpcache.JSON(http.StatusCreated, created), nil
}

func (a *API) updateCar(r *http.Request) (*httpcache.Response, error) {
	car := new(catalog.Car)
	if err := decodeBody(r, maxCarBody, car); err != nil {
		return nil, err
	}

	updated, err := a.cars.Update(r.Context(), r.PathValue("id"), car)
	if err != nil {
		return nil, err
	}
	return httpcache.JSON(http.StatusOK, updated), nil
}

func (a *API) deleteCar(r *http.Request) (*httpcache.Response, error) {
	if err := a.cars.Delete(r.Context(), r.PathValue("id")); err != nil {
		return nil, err
	}
	return &httpcache.Response{Status: http.StatusNoContent}, nil
}

func (a *API) importCars(r *http.Request) (*httpcache.Response, error) {
	var cars []*catalog.Car
	if err := decodeBody(r, maxImportBody, &cars); err != nil {
		return nil, err
	}

	n, err := a.cars.Import(r.Context(), cars)
	if err != nil {
		return nil, err
	}
	return httpcache.JSON(http.StatusCreated, map[string]int{"imported": n}), nil
}

func (a *API) cacheStats(w http.ResponseWriter, r *http.Request) {
	httpcache.WriteJSON(w, http.StatusOK, a.store.Stats())
}

type invalidateRequest struct {
	Pattern string `json:"pattern"`
}

func (a *API) invalidateCache(w http.ResponseWriter, r *http.Request) {
	var req invalidateRequest
	if err := decodeBody(r, maxCarBody, &req); err != nil {
		a.renderError(w, r, err)
		return
	}
	if req.Pattern == "" {
		a.renderError(w, r, &query.ValidationError{Fields: map[string]string{"pattern": "cannot be blank"}})
		return
	}

	removed := a.gateway.Invalidate(req.Pattern)
	httpcache.WriteJSON(w, http.StatusOK, map[string]any{
		"pattern": req.Pattern,
		"removed": removed,
	})
}

func (a *API) clearCache(w http.ResponseWriter, r *http.Request) {
	a.gateway.InvalidateAll()
	httpcache.WriteJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

func decodeBody(r *http.Request, limit int64, dest any) error {
	body := http.MaxBytesReader(nil, r.Body, limit)
	defer body.Close()

	if err := json.NewDecoder(body).Decode(dest); err != nil {
		msg := "must be valid JSON"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			msg = "too large"
		} else if errors.Is(err, io.EOF) {
			msg = "cannot be empty"
		}
		return &query.ValidationError{Fields: map[string]string{"body": msg}}
	}
	return nil
}

type errorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

// renderError maps handler errors to responses. Storage and unexpected
// failures are logged with their cause and rendered without it.
func (a *API) renderError(w http.ResponseWriter, r *http.Request, err error) {
	if verr, ok := query.AsValidationError(err); ok {
		httpcache.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "validation failed", Details: verr.Fields})
		return
	}

	switch {
	case errors.Is(err, catalog.ErrNotFound):
		httpcache.WriteJSON(w, http.StatusNotFound, errorResponse{Error: "car not found"})
	case httpcache.IsTimeout(err):
		a.logger.Warn("request timed out", zap.String("method", r.Method), zap.String("path", r.URL.Path))
		httpcache.WriteJSON(w, http.StatusGatewayTimeout, errorResponse{Error: "request timeout"})
	default:
		a.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Bool("storage", errors.Is(err, catalog.ErrStorage)),
			zap.Error(err),
		)
		httpcache.WriteJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
