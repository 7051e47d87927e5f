package daemon

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"time"

	"gemdesk/internal/access"
	"gemdesk/internal/analytics"
	"gemdesk/internal/logging"
)

// series adapts one analytics query to a handler over the caller's
// entitlement and the query-string filter.
func series[T any](s *apiServer, query func(context.Context, access.Entitlement, analytics.Filter) ([]T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ent := entitlementFor(claimsFrom(r.Context()), time.Now())
		rows, err := query(r.Context(), ent, analyticsFilter(r.URL.Query()))
		if err != nil {
			s.writeCatalogError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, rows)
	}
}

func (s *apiServer) handleTopMinistries(w http.ResponseWriter, r *http.Request) {
	ent := entitlementFor(claimsFrom(r.Context()), time.Now())
	query := r.URL.Query()
	limit, _ := strconv.Atoi(text(query, "limit"))
	rows, err := s.daemon.analytics.TopMinistries(r.Context(), ent, analyticsFilter(query), limit)
	if err != nil {
		s.writeCatalogError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rows)
}

func (s *apiServer) handleBrandCompare(w http.ResponseWriter, r *http.Request) {
	ent := entitlementFor(claimsFrom(r.Context()), time.Now())
	query := r.URL.Query()
	result, err := s.daemon.analytics.CompareBrands(r.Context(), ent, text(query, "brand1"), text(query, "brand2"), text(query, "month"))
	switch {
	case errors.Is(err, analytics.ErrMissingBrand), errors.Is(err, analytics.ErrInvalidMonth):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		s.writeCatalogError(w, err)
	default:
		s.writeJSON(w, http.StatusOK, result)
	}
}

func (s *apiServer) handleSearchBrands(w http.ResponseWriter, r *http.Request) {
	ent := entitlementFor(claimsFrom(r.Context()), time.Now())
	options, err := s.daemon.analytics.SearchBrands(r.Context(), ent, text(r.URL.Query(), "term"))
	if err != nil {
		s.writeCatalogError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, options)
}

func (s *apiServer) handleUserBrands(w http.ResponseWriter, r *http.Request) {
	ent := entitlementFor(claimsFrom(r.Context()), time.Now())
	s.writeJSON(w, http.StatusOK, analytics.UserBrands(ent))
}

func (s *apiServer) handleSyncBrands(w http.ResponseWriter, r *http.Request) {
	result, err := s.daemon.SyncBrands(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.daemon.logger.Info("brands synced",
		logging.Int("found", result.Found),
		logging.Int("inserted", result.Inserted),
	)
	s.writeJSON(w, http.StatusOK, result)
}

// analyticsFilter reads the contract filter plus repeated brands[] or
// brands parameters.
func analyticsFilter(q url.Values) analytics.Filter {
	brands := slices.Concat(q["brands[]"], q["brands"])
	return analytics.Filter{ContractFilter: contractFilter(q), Brands: brands}
}
