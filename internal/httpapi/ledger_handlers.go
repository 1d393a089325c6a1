package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"tezgah/backend/internal/domain"
	"tezgah/backend/internal/store"
)

func (a *API) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := a.service.ListAccounts(r.Context(), domain.AccountType(r.URL.Query().Get("type")))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

func (a *API) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req domain.AccountRequest
	if !a.bind(w, r, &req) {
		return
	}
	account, err := a.service.CreateAccount(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"account": account})
}

func (a *API) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := a.service.GetAccount(r.Context(), r.PathValue("id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"account": account})
}

func (a *API) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	var req domain.AccountRequest
	if !a.bind(w, r, &req) {
		return
	}
	account, err := a.service.UpdateAccount(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"account": account})
}

func (a *API) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteAccount(r.Context(), r.PathValue("id")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleListBankAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := a.service.ListBankAccounts(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bank_accounts": accounts})
}

func (a *API) handleCreateBankAccount(w http.ResponseWriter, r *http.Request) {
	var req domain.BankAccountRequest
	if !a.bind(w, r, &req) {
		return
	}
	account, err := a.service.CreateBankAccount(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"bank_account": account})
}

func (a *API) handleGetBankAccount(w http.ResponseWriter, r *http.Request) {
	account, err := a.service.GetBankAccount(r.Context(), r.PathValue("id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bank_account": account})
}

func (a *API) handleUpdateBankAccount(w http.ResponseWriter, r *http.Request) {
	var req domain.BankAccountRequest
	if !a.bind(w, r, &req) {
		return
	}
	account, err := a.service.UpdateBankAccount(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bank_account": account})
}

func (a *API) handleDeleteBankAccount(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteBankAccount(r.Context(), r.PathValue("id")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	from, err := parseTimeParam(query.Get("from"), false)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	to, err := parseTimeParam(query.Get("to"), true)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	txs, err := a.service.ListTransactions(r.Context(), domain.TransactionFilter{
		From:          from,
		To:            to,
		Type:          domain.TransactionType(query.Get("type")),
		PaymentMethod: domain.PaymentMethod(query.Get("payment_method")),
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": txs})
}

func (a *API) handleRecordTransaction(w http.ResponseWriter, r *http.Request) {
	var req domain.TransactionRequest
	if !a.bind(w, r, &req) {
		return
	}
	resp, err := a.service.RecordTransaction(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := a.service.GetTransaction(r.Context(), r.PathValue("id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transaction": tx})
}

func (a *API) handleCancelTransaction(w http.ResponseWriter, r *http.Request) {
	reverse, err := parseBoolParam(r.URL.Query().Get("reverse"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	resp, err := a.service.CancelTransaction(r.Context(), r.PathValue("id"), reverse)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleExchangeRate(w http.ResponseWriter, r *http.Request) {
	rate, err := a.service.ExchangeRate(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rate": rate, "available": rate != nil})
}

func (a *API) handleConvert(w http.ResponseWriter, r *http.Request) {
	var req domain.ConvertRequest
	if !a.bind(w, r, &req) {
		return
	}
	resp, err := a.service.Convert(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleSummary(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	from, err := parseTimeParam(query.Get("from"), false)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	to, err := parseTimeParam(query.Get("to"), true)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	cashOnly, err := parseBoolParam(query.Get("cash_only"))
	if err != nil {
		a.fail(w, r, err)
		return
	}

	summary, err := a.service.Summary(r.Context(), from, to, domain.Currency(query.Get("currency")), cashOnly)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) handleMonthly(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	months := 0
	if raw := strings.TrimSpace(query.Get("months")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, store.ErrInvalidRequest)
			return
		}
		months = parsed
	}

	report, err := a.service.MonthlyReport(r.Context(), domain.Currency(query.Get("currency")), months)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
