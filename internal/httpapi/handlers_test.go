package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tezgah/backend/internal/domain"
	"tezgah/backend/internal/service"
	"tezgah/backend/internal/store/memory"
)

// newTestAPI builds a full API over a seeded in-memory store so handler tests
// exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo, err := memory.NewSeeded(zap.NewNop())
	require.NoError(t, err)
	svc := service.New(repo, service.Options{AllowNegativeStock: true})
	auth := NewAuthManager(testSecret, time.Hour, repo, nil)

	return New(svc, auth, "*", nil)
}

type session struct {
	api   *API
	token string
	csrf  string
}

func newSession(t *testing.T, api *API, username, password string) session {
	t.Helper()
	return session{api: api, token: login(t, api, username, password), csrf: fetchCSRFToken(t, api)}
}

func (s session) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	if s.csrf != "" {
		req.Header.Set("X-CSRF-Token", s.csrf)
	}
	res := httptest.NewRecorder()
	s.api.Handler().ServeHTTP(res, req)
	return res
}

func decodeInto(t *testing.T, res *httptest.ResponseRecorder, dest any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(res.Body).Decode(dest), res.Body.String())
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	decodeInto(t, rec, &body)
	assert.Equal(t, true, body["ok"])
}

func TestHandleLoginInvalidCredentials(t *testing.T) {
	api := newTestAPI(t)
	s := session{api: api}

	res := s.do(t, http.MethodPost, "/api/v1/auth/login", domain.LoginRequest{Username: "admin", Password: "wrongpassword"})
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	res = s.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{"username": "admin"})
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestProtectedRouteNeedsToken(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	res := httptest.NewRecorder()
	api.Handler().ServeHTTP(res, req)
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	res = httptest.NewRecorder()
	api.Handler().ServeHTTP(res, req)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestMeReturnsActor(t *testing.T) {
	api := newTestAPI(t)
	s := newSession(t, api, "user", "user12345")

	res := s.do(t, http.MethodGet, "/api/v1/auth/me", nil)
	require.Equal(t, http.StatusOK, res.Code)
	var body struct {
		Actor domain.Actor `json:"actor"`
	}
	decodeInto(t, res, &body)
	assert.Equal(t, "user", body.Actor.Username)
	assert.Equal(t, domain.RoleUser, body.Actor.Role)
	assert.NotEmpty(t, body.Actor.UserID)
}

func TestProductAndStockFlow(t *testing.T) {
	api := newTestAPI(t)
	s := newSession(t, api, "admin", "admin123")

	res := s.do(t, http.MethodPost, "/api/v1/products", map[string]any{
		"name": "USB-C cable", "quantity": 5, "sale_price": "120.50", "min_stock_level": 3,
	})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	var created domain.ProductCreateResponse
	decodeInto(t, res, &created)
	require.NotNil(t, created.Movement)
	assert.Equal(t, 5, created.Product.Quantity)
	productID := created.Product.ID

	res = s.do(t, http.MethodPost, "/api/v1/products/"+productID+"/movements", domain.StockMovementRequest{Type: domain.MovementOut, Quantity: 3})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	var moved domain.StockMovementResponse
	decodeInto(t, res, &moved)
	assert.Equal(t, 5, moved.Movement.PreviousQuantity)
	assert.Equal(t, 2, moved.Product.Quantity)

	res = s.do(t, http.MethodGet, "/api/v1/products/low-stock", nil)
	require.Equal(t, http.StatusOK, res.Code)
	var low struct {
		Products []domain.Product `json:"products"`
	}
	decodeInto(t, res, &low)
	require.Len(t, low.Products, 1)
	assert.Equal(t, productID, low.Products[0].ID)

	res = s.do(t, http.MethodGet, "/api/v1/products/"+productID+"/movements", nil)
	require.Equal(t, http.StatusOK, res.Code)
	var listed struct {
		Movements []domain.StockMovement `json:"movements"`
	}
	decodeInto(t, res, &listed)
	assert.Len(t, listed.Movements, 2)

	res = s.do(t, http.MethodDelete, "/api/v1/products/"+productID, nil)
	assert.Equal(t, http.StatusConflict, res.Code)

	res = s.do(t, http.MethodGet, "/api/v1/products/prd_missing", nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestCreateProductValidation(t *testing.T) {
	api := newTestAPI(t)
	s := newSession(t, api, "user", "user12345")

	res := s.do(t, http.MethodPost, "/api/v1/products", map[string]any{"quantity": 1})
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = s.do(t, http.MethodPost, "/api/v1/products", map[string]any{"name": "x", "currency": "EUR"})
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = s.do(t, http.MethodPost, "/api/v1/products", map[string]any{"name": "x", "colour": "red"})
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestCurrencyCodesAreCaseInsensitive(t *testing.T) {
	api := newTestAPI(t)
	s := newSession(t, api, "user", "user12345")

	res := s.do(t, http.MethodPost, "/api/v1/products", map[string]any{"name": "Adapter", "currency": "usd", "sale_price": "12"})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	var created domain.ProductCreateResponse
	decodeInto(t, res, &created)
	assert.Equal(t, domain.CurrencyUSD, created.Product.Currency)

	res = s.do(t, http.MethodPost, "/api/v1/convert", map[string]any{"amount": "10", "from": "usd", "to": "Try"})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	var converted domain.ConvertResponse
	decodeInto(t, res, &converted)
	assert.Equal(t, domain.CurrencyTRY, converted.Currency)

	res = s.do(t, http.MethodPost, "/api/v1/accounts", map[string]any{"name": "Acme", "type": "supplier", "currency": "eur"})
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestDeleteNeedsAdmin(t *testing.T) {
	api := newTestAPI(t)
	user := newSession(t, api, "user", "user12345")

	res := user.do(t, http.MethodPost, "/api/v1/products", map[string]any{"name": "Case"})
	require.Equal(t, http.StatusCreated, res.Code)
	var created domain.ProductCreateResponse
	decodeInto(t, res, &created)

	res = user.do(t, http.MethodDelete, "/api/v1/products/"+created.Product.ID, nil)
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = user.do(t, http.MethodGet, "/api/v1/users", nil)
	assert.Equal(t, http.StatusForbidden, res.Code)
	res = user.do(t, http.MethodGet, "/api/v1/audit-logs", nil)
	assert.Equal(t, http.StatusForbidden, res.Code)
}

func TestSaleAndReversalOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	admin := newSession(t, api, "admin", "admin123")

	res := admin.do(t, http.MethodPost, "/api/v1/products", map[string]any{"name": "Charger", "quantity": 4})
	require.Equal(t, http.StatusCreated, res.Code)
	var created domain.ProductCreateResponse
	decodeInto(t, res, &created)

	res = admin.do(t, http.MethodPost, "/api/v1/transactions", map[string]any{
		"type": "sale", "amount": "300", "payment_method": "cash",
		"product_id": created.Product.ID, "affects_stock": true, "quantity": 2,
	})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	var recorded domain.TransactionResponse
	decodeInto(t, res, &recorded)
	require.NotNil(t, recorded.Movement)
	assert.Equal(t, 2, recorded.Movement.NewQuantity)

	res = admin.do(t, http.MethodGet, "/api/v1/transactions?type=sale&from=2000-01-01", nil)
	require.Equal(t, http.StatusOK, res.Code)
	var listed struct {
		Transactions []domain.Transaction `json:"transactions"`
	}
	decodeInto(t, res, &listed)
	assert.Len(t, listed.Transactions, 1)

	res = admin.do(t, http.MethodDelete, "/api/v1/transactions/"+recorded.Transaction.ID+"?reverse=true", nil)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	var cancelled domain.CancelTransactionResponse
	decodeInto(t, res, &cancelled)
	assert.True(t, cancelled.Reversed)
	require.Len(t, cancelled.Movements, 1)

	res = admin.do(t, http.MethodGet, "/api/v1/products/"+created.Product.ID, nil)
	require.Equal(t, http.StatusOK, res.Code)
	var got struct {
		Product domain.Product `json:"product"`
	}
	decodeInto(t, res, &got)
	assert.Equal(t, 4, got.Product.Quantity)

	res = admin.do(t, http.MethodGet, "/api/v1/transactions/"+recorded.Transaction.ID, nil)
	assert.Equal(t, http.StatusNotFound, res.Code)

	res = admin.do(t, http.MethodGet, "/api/v1/transactions?from=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestServiceTicketOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	s := newSession(t, api, "user", "user12345")

	res := s.do(t, http.MethodPost, "/api/v1/service-records", map[string]any{
		"customer_name": "Ayse", "device_type": "phone", "problem_description": "no signal",
	})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	var created struct {
		Record domain.ServiceRecord `json:"service_record"`
	}
	decodeInto(t, res, &created)
	id := created.Record.ID
	assert.Equal(t, domain.StatusPendingQCEntry, created.Record.Status)

	res = s.do(t, http.MethodPost, "/api/v1/service-records/"+id+"/advance", nil)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	res = s.do(t, http.MethodPost, "/api/v1/service-records/"+id+"/advance", domain.ServiceAdvanceRequest{Technician: "Mehmet"})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	res = s.do(t, http.MethodPost, "/api/v1/service-records/"+id+"/advance", nil)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	res = s.do(t, http.MethodPost, "/api/v1/service-records/"+id+"/advance", nil)
	assert.Equal(t, http.StatusConflict, res.Code)

	res = s.do(t, http.MethodPost, "/api/v1/service-records/"+id+"/price-decision", map[string]any{"approve": true, "price": "450"})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	var decided struct {
		Record domain.ServiceRecord `json:"service_record"`
	}
	decodeInto(t, res, &decided)
	assert.Equal(t, domain.StatusRepairInProgress, decided.Record.Status)

	res = s.do(t, http.MethodPost, "/api/v1/service-records/"+id+"/warranty", domain.WarrantyRequest{Type: domain.WarrantyParts, Days: 5})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	res = s.do(t, http.MethodGet, "/api/v1/service-records/warranties/expiring", nil)
	require.Equal(t, http.StatusOK, res.Code)
	var expiring struct {
		Records []domain.ServiceRecord `json:"service_records"`
	}
	decodeInto(t, res, &expiring)
	assert.Len(t, expiring.Records, 1)

	res = s.do(t, http.MethodGet, "/api/v1/service-records/"+id+"/history", nil)
	require.Equal(t, http.StatusOK, res.Code)
	var history struct {
		History []domain.ServiceHistory `json:"history"`
	}
	decodeInto(t, res, &history)
	assert.Len(t, history.History, 5)

	res = s.do(t, http.MethodPost, "/api/v1/service-records/"+id+"/attachments", domain.AttachmentRequest{
		Stage: domain.StageRepair, FileName: "board.jpg", ContentType: "image/jpeg",
	})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	var attachment domain.AttachmentResponse
	decodeInto(t, res, &attachment)
	assert.Contains(t, attachment.UploadURL, "/upload/service/"+id+"/repair/")
}

func TestReportsOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	s := newSession(t, api, "user", "user12345")

	res := s.do(t, http.MethodPost, "/api/v1/transactions", map[string]any{"type": "income", "amount": "250", "payment_method": "cash"})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	res = s.do(t, http.MethodPost, "/api/v1/transactions", map[string]any{"type": "expense", "amount": "100", "payment_method": "bank"})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())

	res = s.do(t, http.MethodGet, "/api/v1/reports/summary?currency=TRY", nil)
	require.Equal(t, http.StatusOK, res.Code)
	var summary domain.Summary
	decodeInto(t, res, &summary)
	assert.Equal(t, "150.00", summary.Net.StringFixed(2))
	assert.Equal(t, 2, summary.Count)

	res = s.do(t, http.MethodGet, "/api/v1/reports/summary?cash_only=true", nil)
	require.Equal(t, http.StatusOK, res.Code)
	decodeInto(t, res, &summary)
	assert.Equal(t, 1, summary.Count)

	res = s.do(t, http.MethodGet, "/api/v1/reports/monthly?months=3", nil)
	require.Equal(t, http.StatusOK, res.Code)
	var monthly domain.MonthlyReport
	decodeInto(t, res, &monthly)
	assert.Len(t, monthly.Buckets, 3)

	res = s.do(t, http.MethodGet, "/api/v1/reports/monthly?months=abc", nil)
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = s.do(t, http.MethodPost, "/api/v1/convert", map[string]any{"amount": "10", "from": "USD", "to": "TRY"})
	require.Equal(t, http.StatusOK, res.Code)
	var converted domain.ConvertResponse
	decodeInto(t, res, &converted)
	assert.False(t, converted.RateKnown)
}

func TestAdminManagesUsers(t *testing.T) {
	api := newTestAPI(t)
	admin := newSession(t, api, "admin", "admin123")

	res := admin.do(t, http.MethodPost, "/api/v1/users", domain.UserCreateRequest{Username: "clerk01", Password: "pass12345"})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())

	res = admin.do(t, http.MethodPost, "/api/v1/users", domain.UserCreateRequest{Username: "clerk01", Password: "pass12345"})
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = admin.do(t, http.MethodGet, "/api/v1/users", nil)
	require.Equal(t, http.StatusOK, res.Code)
	var listed struct {
		Users []domain.UserView `json:"users"`
	}
	decodeInto(t, res, &listed)
	assert.Len(t, listed.Users, 3)

	clerk := newSession(t, api, "clerk01", "pass12345")
	res = clerk.do(t, http.MethodGet, "/api/v1/products", nil)
	assert.Equal(t, http.StatusOK, res.Code)

	res = admin.do(t, http.MethodGet, "/api/v1/audit-logs", nil)
	assert.Equal(t, http.StatusOK, res.Code)
}
