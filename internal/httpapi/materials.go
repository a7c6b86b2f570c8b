package httpapi

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/printworks/platform/internal/domain/inventory"
	"github.com/printworks/platform/internal/domain/users"
)

type stockResult struct {
	Material    inventory.Material    `json:"material"`
	Transaction inventory.Transaction `json:"transaction"`
}

func (a *api) registerMaterialRoutes(r *mux.Router) {
	r.HandleFunc("/materials", a.listMaterials).Methods(http.MethodGet)
	r.HandleFunc("/materials", guard(users.PermManageMaterials, a.createMaterial)).Methods(http.MethodPost)
	r.HandleFunc("/materials/search", a.searchMaterials).Methods(http.MethodGet)
	r.HandleFunc("/materials/low-stock", a.lowStockMaterials).Methods(http.MethodGet)
	r.HandleFunc("/materials/transactions", a.listTransactions).Methods(http.MethodGet)
	r.HandleFunc("/materials/usage", guard(users.PermRecordUsage, a.recordUsage)).Methods(http.MethodPost)
	r.HandleFunc("/materials/restock", guard(users.PermRestockMaterials, a.restock)).Methods(http.MethodPost)
	r.HandleFunc("/materials/adjust", guard(users.PermAdjustStock, a.adjustStock)).Methods(http.MethodPost)
	r.HandleFunc("/materials/code/{code}", a.materialByCode).Methods(http.MethodGet)
	r.HandleFunc("/materials/{id}", a.getMaterial).Methods(http.MethodGet)
	r.HandleFunc("/materials/{id}", guard(users.PermManageMaterials, a.updateMaterial)).Methods(http.MethodPut, http.MethodPatch)
	r.HandleFunc("/materials/{id}", guard(users.PermManageMaterials, a.deleteMaterial)).Methods(http.MethodDelete)
	r.HandleFunc("/materials/{id}/usage-history", a.usageHistory).Methods(http.MethodGet)
}

func materialFilter(r *http.Request) inventory.Filter {
	q := r.URL.Query()
	return inventory.Filter{
		Category:   q.Get("category"),
		Type:       q.Get("type"),
		SupplierID: q.Get("supplier_id"),
		Search:     strings.TrimSpace(q.Get("q")),
	}
}

func (a *api) listMaterials(w http.ResponseWriter, r *http.Request) {
	p, err := a.paging.parse(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	all, err := a.services.Inventory.List(r.Context(), materialFilter(r))
	if err != nil {
		fail(w, a.logger, "list materials", err)
		return
	}
	start := min(p.offset(), len(all))
	end := min(start+p.PerPage, len(all))
	respondJSON(w, http.StatusOK, map[string]any{
		"data":     all[start:end],
		"count":    end - start,
		"total":    len(all),
		"page":     p.Number,
		"per_page": p.PerPage,
	})
}

func (a *api) searchMaterials(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	term := strings.TrimSpace(q.Get("q"))
	if term == "" {
		respondError(w, http.StatusBadRequest, "q parameter is required")
		return
	}
	results, err := a.services.Inventory.Search(r.Context(), term, q.Get("category"), q.Get("supplier_id"))
	if err != nil {
		fail(w, a.logger, "search materials", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"data": results, "count": len(results)})
}

func (a *api) lowStockMaterials(w http.ResponseWriter, r *http.Request) {
	results, err := a.services.Inventory.LowStock(r.Context())
	if err != nil {
		fail(w, a.logger, "low stock materials", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"data": results, "count": len(results)})
}

func (a *api) createMaterial(w http.ResponseWriter, r *http.Request) {
	var input inventory.CreateInput
	if err := decodeBody(r, &input); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	m, err := a.services.Inventory.Create(r.Context(), input)
	if err != nil {
		fail(w, a.logger, "create material", err)
		return
	}
	respondJSON(w, http.StatusCreated, m)
}

func (a *api) getMaterial(w http.ResponseWriter, r *http.Request) {
	m, err := a.services.Inventory.Get(r.Context(), pathID(r))
	if err != nil {
		fail(w, a.logger, "get material", err)
		return
	}
	respondJSON(w, http.StatusOK, m)
}

func (a *api) materialByCode(w http.ResponseWriter, r *http.Request) {
	m, err := a.services.Inventory.GetByCode(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		fail(w, a.logger, "get material by code", err)
		return
	}
	respondJSON(w, http.StatusOK, m)
}

func (a *api) updateMaterial(w http.ResponseWriter, r *http.Request) {
	var input inventory.UpdateInput
	if err := decodeBody(r, &input); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	m, err := a.services.Inventory.Update(r.Context(), pathID(r), input)
	if err != nil {
		fail(w, a.logger, "update material", err)
		return
	}
	respondJSON(w, http.StatusOK, m)
}

func (a *api) deleteMaterial(w http.ResponseWriter, r *http.Request) {
	if err := a.services.Inventory.Delete(r.Context(), pathID(r)); err != nil {
		fail(w, a.logger, "delete material", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) recordUsage(w http.ResponseWriter, r *http.Request) {
	var input inventory.UsageInput
	if err := decodeBody(r, &input); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if input.UserID == "" {
		input.UserID = callerID(r)
	}
	m, tx, err := a.services.Inventory.RecordUsage(r.Context(), input)
	if err != nil {
		fail(w, a.logger, "record material usage", err)
		return
	}
	respondJSON(w, http.StatusCreated, stockResult{Material: m, Transaction: tx})
}

func (a *api) restock(w http.ResponseWriter, r *http.Request) {
	var input inventory.RestockInput
	if err := decodeBody(r, &input); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if input.UserID == "" {
		input.UserID = callerID(r)
	}
	m, tx, err := a.services.Inventory.Restock(r.Context(), input)
	if err != nil {
		fail(w, a.logger, "restock material", err)
		return
	}
	respondJSON(w, http.StatusCreated, stockResult{Material: m, Transaction: tx})
}

func (a *api) adjustStock(w http.ResponseWriter, r *http.Request) {
	var input inventory.AdjustInput
	if err := decodeBody(r, &input); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if input.UserID == "" {
		input.UserID = callerID(r)
	}
	m, tx, err := a.services.Inventory.AdjustStock(r.Context(), input)
	if err != nil {
		fail(w, a.logger, "adjust stock", err)
		return
	}
	respondJSON(w, http.StatusCreated, stockResult{Material: m, Transaction: tx})
}

func (a *api) listTransactions(w http.ResponseWriter, r *http.Request) {
	from, to, err := dateRange(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	q := r.URL.Query()
	filter := inventory.TransactionFilter{
		MaterialID: q.Get("material_id"),
		Type:       inventory.TransactionType(strings.ToUpper(q.Get("type"))),
		From:       from,
		To:         to,
	}
	if filter.Type != "" && !filter.Type.Valid() {
		respondError(w, http.StatusBadRequest, "invalid transaction type")
		return
	}
	results, err := a.services.Inventory.Transactions(r.Context(), filter)
	if err != nil {
		fail(w, a.logger, "list stock transactions", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"data": results, "count": len(results)})
}

func (a *api) usageHistory(w http.ResponseWriter, r *http.Request) {
	from, to, err := dateRange(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	results, err := a.services.Inventory.UsageHistory(r.Context(), pathID(r), from, to)
	if err != nil {
		fail(w, a.logger, "material usage history", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"data": results, "count": len(results)})
}
