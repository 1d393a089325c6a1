package httpapi

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"tezgah/backend/internal/domain"
	"tezgah/backend/internal/service"
	"tezgah/backend/internal/store"
)

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	loginLimiter  *attemptLimiter
	csrfSecret    []byte
	validate      *validator.Validate
	logger        *zap.Logger
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	csrfSecret := make([]byte, 32)
	if _, err := rand.Read(csrfSecret); err != nil {
		logger.Warn("crypto/rand failed, csrf secret falls back to a fixed value", zap.Error(err))
		csrfSecret = []byte("csrf-fallback-secret-change-me!!")
	}
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		csrfSecret:    csrfSecret,
		validate:      newValidator(),
		logger:        logger,
	}
}

// newValidator registers "currency", which accepts a supported code in any
// letter case; the service layer upper-cases it.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("currency", func(fl validator.FieldLevel) bool {
		return domain.Currency(strings.ToUpper(strings.TrimSpace(fl.Field().String()))).Valid()
	})
	return v
}

// csrfTokenForHour computes a hex HMAC-SHA256 token for an hour bucket
// expressed as Unix seconds truncated to the hour.
func (a *API) csrfTokenForHour(hourBucket int64) string {
	h := hmac.New(sha256.New, a.csrfSecret)
	fmt.Fprintf(h, "%d", hourBucket)
	return hex.EncodeToString(h.Sum(nil))
}

func (a *API) generateCSRFToken() string {
	bucket := time.Now().UTC().Truncate(time.Hour).Unix()
	return a.csrfTokenForHour(bucket)
}

// validateCSRFToken accepts the current and the previous hour bucket.
func (a *API) validateCSRFToken(token string) bool {
	if token == "" {
		return false
	}
	currentBucket := time.Now().UTC().Truncate(time.Hour).Unix()
	prevBucket := currentBucket - 3600

	return hmac.Equal([]byte(token), []byte(a.csrfTokenForHour(currentBucket))) ||
		hmac.Equal([]byte(token), []byte(a.csrfTokenForHour(prevBucket)))
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	l.entries[key] = append(kept, now)
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", a.handleHealth)
	mux.HandleFunc("POST /api/v1/auth/login", a.handleLogin)
	mux.HandleFunc("GET /api/v1/auth/csrf-token", a.handleCSRFToken)
	mux.HandleFunc("GET /api/v1/auth/me", a.requireAuth(a.handleMe))

	mux.HandleFunc("GET /api/v1/users", a.requireAuth(a.handleListUsers, domain.RoleAdmin))
	mux.HandleFunc("POST /api/v1/users", a.requireAuth(a.handleCreateUser, domain.RoleAdmin))
	mux.HandleFunc("GET /api/v1/audit-logs", a.requireAuth(a.handleAuditLogs, domain.RoleAdmin))

	mux.HandleFunc("GET /api/v1/categories", a.requireAuth(a.handleListCategories))
	mux.HandleFunc("POST /api/v1/categories", a.requireAuth(a.handleCreateCategory))
	mux.HandleFunc("PUT /api/v1/categories/{id}", a.requireAuth(a.handleUpdateCategory))
	mux.HandleFunc("DELETE /api/v1/categories/{id}", a.requireAuth(a.handleDeleteCategory))

	mux.HandleFunc("GET /api/v1/products", a.requireAuth(a.handleListProducts))
	mux.HandleFunc("POST /api/v1/products", a.requireAuth(a.handleCreateProduct))
	mux.HandleFunc("GET /api/v1/products/low-stock", a.requireAuth(a.handleLowStock))
	mux.HandleFunc("GET /api/v1/products/{id}", a.requireAuth(a.handleGetProduct))
	mux.HandleFunc("PUT /api/v1/products/{id}", a.requireAuth(a.handleUpdateProduct))
	mux.HandleFunc("DELETE /api/v1/products/{id}", a.requireAuth(a.handleDeleteProduct))
	mux.HandleFunc("GET /api/v1/products/{id}/movements", a.requireAuth(a.handleListMovements))
	mux.HandleFunc("POST /api/v1/products/{id}/movements", a.requireAuth(a.handleApplyMovement))

	mux.HandleFunc("GET /api/v1/serials", a.requireAuth(a.handleListSerials))
	mux.HandleFunc("POST /api/v1/serials", a.requireAuth(a.handleCreateSerial))
	mux.HandleFunc("GET /api/v1/serials/lookup", a.requireAuth(a.handleFindSerial))
	mux.HandleFunc("GET /api/v1/serials/{id}", a.requireAuth(a.handleGetSerial))
	mux.HandleFunc("POST /api/v1/serials/{id}/sell", a.requireAuth(a.handleSellSerial))
	mux.HandleFunc("POST /api/v1/serials/{id}/return", a.requireAuth(a.handleReturnSerial))
	mux.HandleFunc("POST /api/v1/serials/{id}/restock", a.requireAuth(a.handleRestockSerial))

	mux.HandleFunc("GET /api/v1/accounts", a.requireAuth(a.handleListAccounts))
	mux.HandleFunc("POST /api/v1/accounts", a.requireAuth(a.handleCreateAccount))
	mux.HandleFunc("GET /api/v1/accounts/{id}", a.requireAuth(a.handleGetAccount))
	mux.HandleFunc("PUT /api/v1/accounts/{id}", a.requireAuth(a.handleUpdateAccount))
	mux.HandleFunc("DELETE /api/v1/accounts/{id}", a.requireAuth(a.handleDeleteAccount))

	mux.HandleFunc("GET /api/v1/bank-accounts", a.requireAuth(a.handleListBankAccounts))
	mux.HandleFunc("POST /api/v1/bank-accounts", a.requireAuth(a.handleCreateBankAccount))
	mux.HandleFunc("GET /api/v1/bank-accounts/{id}", a.requireAuth(a.handleGetBankAccount))
	mux.HandleFunc("PUT /api/v1/bank-accounts/{id}", a.requireAuth(a.handleUpdateBankAccount))
	mux.HandleFunc("DELETE /api/v1/bank-accounts/{id}", a.requireAuth(a.handleDeleteBankAccount))

	mux.HandleFunc("GET /api/v1/transactions", a.requireAuth(a.handleListTransactions))
	mux.HandleFunc("POST /api/v1/transactions", a.requireAuth(a.handleRecordTransaction))
	mux.HandleFunc("GET /api/v1/transactions/{id}", a.requireAuth(a.handleGetTransaction))
	mux.HandleFunc("DELETE /api/v1/transactions/{id}", a.requireAuth(a.handleCancelTransaction))

	mux.HandleFunc("GET /api/v1/service-records", a.requireAuth(a.handleListServiceRecords))
	mux.HandleFunc("POST /api/v1/service-records", a.requireAuth(a.handleCreateServiceRecord))
	mux.HandleFunc("GET /api/v1/service-records/warranties/expiring", a.requireAuth(a.handleExpiringWarranties))
	mux.HandleFunc("GET /api/v1/service-records/{id}", a.requireAuth(a.handleGetServiceRecord))
	mux.HandleFunc("PUT /api/v1/service-records/{id}", a.requireAuth(a.handleUpdateServiceRecord))
	mux.HandleFunc("DELETE /api/v1/service-records/{id}", a.requireAuth(a.handleDeleteServiceRecord))
	mux.HandleFunc("POST /api/v1/service-records/{id}/advance", a.requireAuth(a.handleAdvanceServiceRecord))
	mux.HandleFunc("POST /api/v1/service-records/{id}/price-decision", a.requireAuth(a.handlePriceDecision))
	mux.HandleFunc("POST /api/v1/service-records/{id}/cancel", a.requireAuth(a.handleCancelServiceRecord))
	mux.HandleFunc("POST /api/v1/service-records/{id}/warranty", a.requireAuth(a.handleActivateWarranty))
	mux.HandleFunc("GET /api/v1/service-records/{id}/history", a.requireAuth(a.handleServiceHistory))
	mux.HandleFunc("GET /api/v1/service-records/{id}/attachments", a.requireAuth(a.handleListAttachments))
	mux.HandleFunc("POST /api/v1/service-records/{id}/attachments", a.requireAuth(a.handleAddAttachment))

	mux.HandleFunc("GET /api/v1/exchange-rate", a.requireAuth(a.handleExchangeRate))
	mux.HandleFunc("POST /api/v1/convert", a.requireAuth(a.handleConvert))
	mux.HandleFunc("GET /api/v1/reports/summary", a.requireAuth(a.handleSummary))
	mux.HandleFunc("GET /api/v1/reports/monthly", a.requireAuth(a.handleMonthly))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if !a.bind(w, r, &req) {
		return
	}

	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCSRFToken returns a stateless token valid for the current hour bucket.
// Clients send it back in X-CSRF-Token on every mutating request.
func (a *API) handleCSRFToken(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"csrf_token": a.generateCSRFToken(),
	})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	actor, _ := service.ActorFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"actor": actor})
}

// csrfExemptPaths are called before a client can have fetched a token.
var csrfExemptPaths = []string{
	"/api/v1/auth/login",
}

// checkCSRF enforces the CSRF token on state-changing methods. It writes the
// error response itself and reports whether the request may proceed.
func (a *API) checkCSRF(w http.ResponseWriter, r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return true
	}
	for _, exempt := range csrfExemptPaths {
		if r.URL.Path == exempt {
			return true
		}
	}
	token := strings.TrimSpace(r.Header.Get("X-CSRF-Token"))
	if !a.validateCSRFToken(token) {
		writeError(w, http.StatusForbidden, errors.New("missing or invalid CSRF token"))
		return false
	}
	return true
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-CSRF-Token")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if !a.checkCSRF(w, r) {
			return
		}

		startedAt := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		a.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", recorder.status),
			zap.Duration("duration", time.Since(startedAt)),
		)
	})
}

// bind decodes the JSON body into dest and validates its struct tags. On
// failure it writes a 400 and returns false.
func (a *API) bind(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := decodeJSON(r, dest); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return false
	}
	return a.check(w, dest)
}

// bindOptional is bind for endpoints whose body may be empty.
func (a *API) bindOptional(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := decodeJSON(r, dest); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, err)
		return false
	}
	return a.check(w, dest)
}

func (a *API) check(w http.ResponseWriter, dest any) bool {
	if err := a.validate.Struct(dest); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			writeError(w, http.StatusBadRequest, validationError(verrs))
			return false
		}
		writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

func validationError(verrs validator.ValidationErrors) error {
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", store.ErrInvalidRequest, strings.Join(fields, "; "))
}

// fail maps a service error onto its status code. Unknown errors are logged
// and reported as a generic 500.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		a.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeError(w, status, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrDuplicateSerial),
		errors.Is(err, store.ErrDuplicateTicket),
		errors.Is(err, store.ErrReferenced),
		errors.Is(err, store.ErrInvalidTransition),
		errors.Is(err, store.ErrPriceApprovalRequired),
		errors.Is(err, store.ErrInsufficientStock):
		return http.StatusConflict
	case errors.Is(err, store.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, store.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

// parseTimeParam accepts RFC 3339 or a bare YYYY-MM-DD date. A bare date used
// as an exclusive upper bound is pushed to the end of that day.
func parseTimeParam(raw string, upper bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.UTC()
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is neither RFC 3339 nor YYYY-MM-DD", store.ErrInvalidRequest, raw)
	}
	if upper {
		t = t.Add(24 * time.Hour)
	}
	return &t, nil
}

func parseBoolParam(raw string) (bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %q is not a boolean", store.ErrInvalidRequest, raw)
	}
	return v, nil
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 5xx bodies stay generic; the cause is logged by the caller.
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
