package httpapi

import (
	"net/http"

	"tezgah/backend/internal/domain"
)

func (a *API) handleListServiceRecords(w http.ResponseWriter, r *http.Request) {
	records, err := a.service.ListServiceRecords(r.Context(), domain.ServiceStatus(r.URL.Query().Get("status")))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"service_records": records})
}

func (a *API) handleCreateServiceRecord(w http.ResponseWriter, r *http.Request) {
	var req domain.ServiceRecordCreateRequest
	if !a.bind(w, r, &req) {
		return
	}
	record, err := a.service.CreateServiceRecord(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"service_record": record})
}

func (a *API) handleGetServiceRecord(w http.ResponseWriter, r *http.Request) {
	record, err := a.service.GetServiceRecord(r.Context(), r.PathValue("id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"service_record": record})
}

func (a *API) handleUpdateServiceRecord(w http.ResponseWriter, r *http.Request) {
	var req domain.ServiceRecordUpdateRequest
	if !a.bind(w, r, &req) {
		return
	}
	record, err := a.service.UpdateServiceRecord(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"service_record": record})
}

func (a *API) handleDeleteServiceRecord(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteServiceRecord(r.Context(), r.PathValue("id")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleAdvanceServiceRecord(w http.ResponseWriter, r *http.Request) {
	var req domain.ServiceAdvanceRequest
	if !a.bindOptional(w, r, &req) {
		return
	}
	record, err := a.service.AdvanceServiceRecord(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"service_record": record})
}

func (a *API) handlePriceDecision(w http.ResponseWriter, r *http.Request) {
	var req domain.PriceDecisionRequest
	if !a.bind(w, r, &req) {
		return
	}
	record, err := a.service.DecidePrice(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"service_record": record})
}

func (a *API) handleCancelServiceRecord(w http.ResponseWriter, r *http.Request) {
	var req domain.ServiceCancelRequest
	if !a.bindOptional(w, r, &req) {
		return
	}
	record, err := a.service.CancelServiceRecord(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"service_record": record})
}

func (a *API) handleActivateWarranty(w http.ResponseWriter, r *http.Request) {
	var req domain.WarrantyRequest
	if !a.bind(w, r, &req) {
		return
	}
	record, err := a.service.ActivateWarranty(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"service_record": record})
}

func (a *API) handleExpiringWarranties(w http.ResponseWriter, r *http.Request) {
	records, err := a.service.ListExpiringWarranties(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"service_records": records})
}

func (a *API) handleServiceHistory(w http.ResponseWriter, r *http.Request) {
	history, err := a.service.ListServiceHistory(r.Context(), r.PathValue("id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

func (a *API) handleListAttachments(w http.ResponseWriter, r *http.Request) {
	attachments, err := a.service.ListServiceAttachments(r.Context(), r.PathValue("id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"attachments": attachments})
}

func (a *API) handleAddAttachment(w http.ResponseWriter, r *http.Request) {
	var req domain.AttachmentRequest
	if !a.bind(w, r, &req) {
		return
	}
	resp, err := a.service.AddServiceAttachment(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}
