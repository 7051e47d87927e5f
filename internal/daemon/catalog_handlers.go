package daemon

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"gemdesk/internal/access"
	"gemdesk/internal/records"
	"gemdesk/internal/store"
)

const dateParamLayout = "2006-01-02"

func (s *apiServer) handleListContracts(w http.ResponseWriter, r *http.Request) {
	ent := entitlementFor(claimsFrom(r.Context()), time.Now())
	query := r.URL.Query()
	page, err := s.daemon.catalog.ListContracts(r.Context(), ent, contractFilter(query), pageParam(query))
	if err != nil {
		s.writeCatalogError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, page)
}

func (s *apiServer) handleContractDetail(w http.ResponseWriter, r *http.Request) {
	ent := entitlementFor(claimsFrom(r.Context()), time.Now())
	detail, err := s.daemon.catalog.ContractDetail(r.Context(), ent, chi.URLParam(r, "contractID"))
	if err != nil {
		s.writeCatalogError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, detail)
}

type contractNumbersRequest struct {
	ContractNos []string `json:"contract_nos"`
}

func (s *apiServer) handleContractsByNumbers(w http.ResponseWriter, r *http.Request) {
	var req contractNumbersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.ContractNos) == 0 {
		s.writeError(w, http.StatusBadRequest, "invalid contract numbers")
		return
	}
	ent := entitlementFor(claimsFrom(r.Context()), time.Now())
	contracts, err := s.daemon.catalog.ContractsByNumbers(r.Context(), ent, req.ContractNos)
	if err != nil {
		s.writeCatalogError(w, err)
		return
	}
	if contracts == nil {
		contracts = []records.Contract{}
	}
	s.writeJSON(w, http.StatusOK, contracts)
}

func (s *apiServer) handleListSellers(w http.ResponseWriter, r *http.Request) {
	ent := entitlementFor(claimsFrom(r.Context()), time.Now())
	query := r.URL.Query()
	page, err := s.daemon.catalog.ListSellers(r.Context(), ent, sellerFilter(query), pageParam(query))
	if err != nil {
		s.writeCatalogError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, page)
}

func (s *apiServer) writeCatalogError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, access.ErrForbidden):
		s.writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, access.ErrNoContractNumbers):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "not found")
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func contractFilter(q url.Values) store.ContractFilter {
	return store.ContractFilter{
		ContractID:       text(q, "contract_id"),
		Status:           text(q, "status"),
		OrganizationType: text(q, "organization_type"),
		Ministry:         text(q, "ministry"),
		Department:       text(q, "department"),
		OrganizationName: text(q, "organization_name"),
		OfficeZone:       text(q, "office_zone"),
		Location:         text(q, "location"),
		BuyerDesignation: text(q, "buyer_designation"),
		BuyingMode:       text(q, "buying_mode"),
		BidNumber:        text(q, "bid_number"),
		ContractDate:     dateParam(q, "contract_date"),
		DateFrom:         dateParam(q, "date_from"),
		DateTo:           dateParam(q, "date_to"),
		MinTotal:         floatParam(q, "min_total"),
		MaxTotal:         floatParam(q, "max_total"),
	}
}

func sellerFilter(q url.Values) store.SellerFilter {
	return store.SellerFilter{
		ContractNo:   text(q, "contract_no"),
		CategoryName: text(q, "category_name"),
		SellerID:     text(q, "seller_id"),
		CompanyName:  text(q, "company_name"),
		ContactNo:    text(q, "contact_no"),
		Email:        text(q, "email"),
		MSMERegNo:    text(q, "msme_reg_no"),
		GSTIN:        text(q, "gstin"),
	}
}

func text(q url.Values, key string) string {
	return strings.TrimSpace(q.Get(key))
}

// dateParam parses YYYY-MM-DD; malformed values are ignored.
func dateParam(q url.Values, key string) *time.Time {
	value := text(q, key)
	if value == "" {
		return nil
	}
	t, err := time.Parse(dateParamLayout, value)
	if err != nil {
		return nil
	}
	return &t
}

// floatParam parses a number; malformed values are ignored.
func floatParam(q url.Values, key string) *float64 {
	value := text(q, key)
	if value == "" {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil
	}
	return &f
}

func pageParam(q url.Values) int {
	page, err := strconv.Atoi(text(q, "page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}
