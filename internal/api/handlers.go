package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/example/pharma-exchange/internal/domain/catalog"
	"github.com/example/pharma-exchange/internal/domain/exchange"
	"github.com/example/pharma-exchange/internal/domain/stock"
)

// CatalogStore is the reference-data storage the handlers need.
type CatalogStore interface {
	CreateCompany(ctx context.Context, name, color string) (*catalog.Company, error)
	CreatePharmacy(ctx context.Context, name, address string) (*catalog.Pharmacy, error)
	CreateDrug(ctx context.Context, name, companyID, explanation string) (*catalog.Drug, error)
	CreateInsuranceCompany(ctx context.Context, name string) (*catalog.InsuranceCompany, error)
}

type Handlers struct {
	ledger  *stock.Ledger
	market  *exchange.Market
	catalog CatalogStore
}

func NewHandlers(ledger *stock.Ledger, market *exchange.Market, catalog CatalogStore) *Handlers {
	return &Handlers{
		ledger:  ledger,
		market:  market,
		catalog: catalog,
	}
}

// Stock item handlers

func (h *Handlers) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DrugID     string    `json:"drug_id"`
		CompanyID  string    `json:"company_id"`
		PharmacyID string    `json:"pharmacy_id"`
		Amount     int       `json:"amount"`
		Price      int       `json:"price"`
		Expiration time.Time `json:"expiration"`
		Note       string    `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	item, err := h.ledger.CreateItem(r.Context(), stock.CreateItemParams{
		DrugID:     req.DrugID,
		CompanyID:  req.CompanyID,
		PharmacyID: req.PharmacyID,
		Amount:     req.Amount,
		Price:      req.Price,
		Expiration: req.Expiration,
		Note:       req.Note,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, item)
}

func (h *Handlers) Intake(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DrugName    string    `json:"drug_name"`
		Explanation string    `json:"explanation"`
		CompanyID   string    `json:"company_id"`
		PharmacyID  string    `json:"pharmacy_id"`
		Amount      int       `json:"amount"`
		Price       int       `json:"price"`
		Expiration  time.Time `json:"expiration"`
		Note        string    `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	item, err := h.ledger.Intake(r.Context(), stock.IntakeParams{
		DrugName:    req.DrugName,
		Explanation: req.Explanation,
		CompanyID:   req.CompanyID,
		PharmacyID:  req.PharmacyID,
		Amount:      req.Amount,
		Price:       req.Price,
		Expiration:  req.Expiration,
		Note:        req.Note,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, item)
}

func (h *Handlers) GetItem(w http.ResponseWriter, r *http.Request) {
	id := extractPathParam(r.URL.Path, "/items/")
	item, err := h.ledger.Item(r.Context(), id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, item)
}

func (h *Handlers) GetItemsByPharmacy(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSuffix(extractPathParam(r.URL.Path, "/pharmacies/"), "/items")
	items, err := h.ledger.ItemsByPharmacy(r.Context(), id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

func (h *Handlers) GetItemsByDrug(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSuffix(extractPathParam(r.URL.Path, "/drugs/"), "/items")
	items, err := h.ledger.ItemsByDrug(r.Context(), id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

func (h *Handlers) GetItemsByCompany(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSuffix(extractPathParam(r.URL.Path, "/companies/"), "/items")
	items, err := h.ledger.ItemsByCompany(r.Context(), id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

func (h *Handlers) AdjustItem(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSuffix(extractPathParam(r.URL.Path, "/items/"), "/adjust")

	var req struct {
		Delta int `json:"delta"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	total, err := h.ledger.AdjustAmount(r.Context(), id, req.Delta)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"item_id":      id,
		"total_amount": total,
	})
}

func (h *Handlers) LockItem(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSuffix(extractPathParam(r.URL.Path, "/items/"), "/lock")

	var req struct {
		Amount int `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.ledger.LockAmount(r.Context(), id, req.Amount); err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Stock locked"})
}

func (h *Handlers) UnlockItem(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSuffix(extractPathParam(r.URL.Path, "/items/"), "/unlock")

	var req struct {
		Amount int `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.ledger.UnlockAmount(r.Context(), id, req.Amount); err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Stock unlocked"})
}

// Exchange handlers

func (h *Handlers) ListStock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ItemID string `json:"item_id"`
		Amount int    `json:"amount"`
		Price  int    `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	listing, err := h.market.List(r.Context(), req.ItemID, req.Amount, req.Price)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, listing)
}

func (h *Handlers) GetListing(w http.ResponseWriter, r *http.Request) {
	id := extractPathParam(r.URL.Path, "/exchange/listings/")
	listing, err := h.market.Listing(r.Context(), id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, listing)
}

func (h *Handlers) GetListingsByDrug(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSuffix(extractPathParam(r.URL.Path, "/drugs/"), "/listings")
	listings, err := h.market.ListingsByDrug(r.Context(), id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, listings)
}

func (h *Handlers) Delist(w http.ResponseWriter, r *http.Request) {
	id := extractPathParam(r.URL.Path, "/exchange/listings/")

	if err := h.market.Delist(r.Context(), id); err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Listing removed"})
}

// Catalog handlers

func (h *Handlers) CreateCompany(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Color string `json:"color"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	company, err := h.catalog.CreateCompany(r.Context(), req.Name, req.Color)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, company)
}

func (h *Handlers) CreatePharmacy(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name    string `json:"name"`
		Address string `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	pharmacy, err := h.catalog.CreatePharmacy(r.Context(), req.Name, req.Address)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, pharmacy)
}

func (h *Handlers) CreateDrug(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		CompanyID   string `json:"company_id"`
		Explanation string `json:"explanation"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	drug, err := h.catalog.CreateDrug(r.Context(), req.Name, req.CompanyID, req.Explanation)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, drug)
}

func (h *Handlers) CreateInsuranceCompany(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	insurer, err := h.catalog.CreateInsuranceCompany(r.Context(), req.Name)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, insurer)
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func extractPathParam(path, prefix string) string {
	return strings.TrimPrefix(path, prefix)
}

// respondDomainError maps ledger and market errors onto HTTP statuses:
// missing entities are 404, amount conflicts 409, bad input 400.
func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, stock.ErrItemNotFound),
		errors.Is(err, stock.ErrNotFound),
		errors.Is(err, exchange.ErrListingNotFound):
		respondJSONError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, stock.ErrInsufficientStock),
		errors.Is(err, stock.ErrInsufficientUnlockedStock),
		errors.Is(err, stock.ErrInsufficientLockedStock):
		respondJSONError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, stock.ErrInvalidQuantity),
		errors.Is(err, exchange.ErrNegativeListedAmount):
		respondJSONError(w, err.Error(), http.StatusBadRequest)
	default:
		respondJSONError(w, err.Error(), http.StatusInternalServerError)
	}
}
