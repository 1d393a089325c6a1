package httpapi

import (
	"net/http"

	"tezgah/backend/internal/domain"
)

func (a *API) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := a.service.ListCategories(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

func (a *API) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req domain.CategoryRequest
	if !a.bind(w, r, &req) {
		return
	}
	category, err := a.service.CreateCategory(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"category": category})
}

func (a *API) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req domain.CategoryRequest
	if !a.bind(w, r, &req) {
		return
	}
	category, err := a.service.UpdateCategory(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"category": category})
}

func (a *API) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteCategory(r.Context(), r.PathValue("id")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := a.service.ListProducts(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (a *API) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductCreateRequest
	if !a.bind(w, r, &req) {
		return
	}
	resp, err := a.service.CreateProduct(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := a.service.GetProduct(r.Context(), r.PathValue("id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

func (a *API) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductUpdateRequest
	if !a.bind(w, r, &req) {
		return
	}
	product, err := a.service.UpdateProduct(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

func (a *API) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteProduct(r.Context(), r.PathValue("id")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleLowStock(w http.ResponseWriter, r *http.Request) {
	products, err := a.service.ListLowStockProducts(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (a *API) handleListMovements(w http.ResponseWriter, r *http.Request) {
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)
	movements, err := a.service.ListStockMovements(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"movements": movements})
}

func (a *API) handleApplyMovement(w http.ResponseWriter, r *http.Request) {
	var req domain.StockMovementRequest
	if !a.bind(w, r, &req) {
		return
	}
	resp, err := a.service.ApplyStockMovement(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) handleListSerials(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	serials, err := a.service.ListSerials(r.Context(), query.Get("product_id"), domain.SerialStatus(query.Get("status")))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"serials": serials})
}

func (a *API) handleCreateSerial(w http.ResponseWriter, r *http.Request) {
	var req domain.SerialCreateRequest
	if !a.bind(w, r, &req) {
		return
	}
	serial, err := a.service.CreateSerial(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"serial": serial})
}

func (a *API) handleFindSerial(w http.ResponseWriter, r *http.Request) {
	serial, err := a.service.FindSerial(r.Context(), r.URL.Query().Get("serial"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"serial": serial})
}

func (a *API) handleGetSerial(w http.ResponseWriter, r *http.Request) {
	serial, err := a.service.GetSerial(r.Context(), r.PathValue("id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"serial": serial})
}

func (a *API) handleSellSerial(w http.ResponseWriter, r *http.Request) {
	var req domain.SerialSellRequest
	if !a.bindOptional(w, r, &req) {
		return
	}
	serial, err := a.service.SellSerial(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"serial": serial})
}

func (a *API) handleReturnSerial(w http.ResponseWriter, r *http.Request) {
	serial, err := a.service.ReturnSerial(r.Context(), r.PathValue("id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"serial": serial})
}

func (a *API) handleRestockSerial(w http.ResponseWriter, r *http.Request) {
	serial, err := a.service.RestockSerial(r.Context(), r.PathValue("id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"serial": serial})
}
