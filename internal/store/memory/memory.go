package memory

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"tezgah/backend/internal/domain"
	"tezgah/backend/internal/store"
	"tezgah/backend/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	products        map[string]domain.Product
	movements       []domain.StockMovement
	categories      map[string]domain.Category
	serials         map[string]domain.ProductSerial
	accounts        map[string]domain.Account
	bankAccounts    map[string]domain.BankAccount
	transactions    map[string]domain.Transaction
	serviceRecords  map[string]domain.ServiceRecord
	serviceHistory  []domain.ServiceHistory
	attachments     []domain.ServiceAttachment
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		products:        make(map[string]domain.Product),
		movements:       make([]domain.StockMovement, 0, 128),
		categories:      make(map[string]domain.Category),
		serials:         make(map[string]domain.ProductSerial),
		accounts:        make(map[string]domain.Account),
		bankAccounts:    make(map[string]domain.BankAccount),
		transactions:    make(map[string]domain.Transaction),
		serviceRecords:  make(map[string]domain.ServiceRecord),
		serviceHistory:  make([]domain.ServiceHistory, 0, 64),
		attachments:     make([]domain.ServiceAttachment, 0, 16),
		auditLogs:       make([]domain.AuditLog, 0, 128),
		usersByUsername: make(map[string]domain.UserAccount),
	}
}

// NewSeeded returns a store with an admin and a regular user for dev/demo
// mode. Passwords come from SEED_ADMIN_PASSWORD and SEED_USER_PASSWORD.
func NewSeeded(logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	userPwd := envOr("SEED_USER_PASSWORD", "user12345")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_USER_PASSWORD") == "" {
		logger.Warn("using default dev credentials, set SEED_ADMIN_PASSWORD and SEED_USER_PASSWORD to override")
	}

	s := New()
	now := time.Now().UTC()
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"user", userPwd, domain.RoleUser},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash seed password for %s: %w", u.username, err)
		}
		s.usersByUsername[u.username] = domain.UserAccount{
			ID:        xid.New("usr"),
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return s, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// WithTx holds the write lock for the whole unit. Every write made through the
// txn records an undo step; on error or panic the steps run in reverse.
func (s *Store) WithTx(_ context.Context, fn func(tx store.Tx) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &txn{s: s}
	defer func() {
		if p := recover(); p != nil {
			t.rollback()
			panic(p)
		}
	}()
	if err = fn(t); err != nil {
		t.rollback()
		return err
	}
	return nil
}

func (s *Store) GetProduct(_ context.Context, userID, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok || p.UserID != userID {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) ListProducts(_ context.Context, userID string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if p.UserID == userID {
			result = append(result, p)
		}
	}
	sortProducts(result)
	return result, nil
}

func (s *Store) ListLowStockProducts(_ context.Context, userID string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Product, 0, 16)
	for _, p := range s.products {
		if p.UserID == userID && p.LowStock() {
			result = append(result, p)
		}
	}
	sortProducts(result)
	return result, nil
}

func (s *Store) ListStockMovements(_ context.Context, userID, productID string, limit int) ([]domain.StockMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.StockMovement, 0, 32)
	for i := len(s.movements) - 1; i >= 0; i-- {
		m := s.movements[i]
		if m.UserID != userID || (productID != "" && m.ProductID != productID) {
			continue
		}
		result = append(result, m)
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

func (s *Store) GetCategory(_ context.Context, userID, id string) (*domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.category(userID, id)
}

func (s *Store) category(userID, id string) (*domain.Category, error) {
	c, ok := s.categories[id]
	if !ok || c.UserID != userID {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (s *Store) ListCategories(_ context.Context, userID string) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Category, 0, len(s.categories))
	for _, c := range s.categories {
		if c.UserID == userID {
			result = append(result, c)
		}
	}
	slices.SortFunc(result, func(a, b domain.Category) int {
		return strings.Compare(a.Name, b.Name)
	})
	return result, nil
}

func (s *Store) GetSerial(_ context.Context, userID, id string) (*domain.ProductSerial, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.serial(userID, id)
}

func (s *Store) serial(userID, id string) (*domain.ProductSerial, error) {
	serial, ok := s.serials[id]
	if !ok || serial.UserID != userID {
		return nil, store.ErrNotFound
	}
	return &serial, nil
}

func (s *Store) FindSerial(_ context.Context, userID, serialNumber string) (*domain.ProductSerial, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, serial := range s.serials {
		if serial.UserID == userID && serial.SerialNumber == serialNumber {
			return &serial, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListSerials(_ context.Context, userID, productID string, status domain.SerialStatus) ([]domain.ProductSerial, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.ProductSerial, 0, 16)
	for _, serial := range s.serials {
		if serial.UserID != userID {
			continue
		}
		if productID != "" && serial.ProductID != productID {
			continue
		}
		if status != "" && serial.Status != status {
			continue
		}
		result = append(result, serial)
	}
	sortSerials(result)
	return result, nil
}

func (s *Store) GetAccount(_ context.Context, userID, id string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok || a.UserID != userID {
		return nil, store.ErrNotFound
	}
	return &a, nil
}

func (s *Store) ListAccounts(_ context.Context, userID string, typ domain.AccountType) ([]domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		if a.UserID != userID || (typ != "" && a.Type != typ) {
			continue
		}
		result = append(result, a)
	}
	slices.SortFunc(result, func(a, b domain.Account) int {
		return strings.Compare(a.Name, b.Name)
	})
	return result, nil
}

func (s *Store) GetBankAccount(_ context.Context, userID, id string) (*domain.BankAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.bankAccounts[id]
	if !ok || a.UserID != userID {
		return nil, store.ErrNotFound
	}
	return &a, nil
}

func (s *Store) ListBankAccounts(_ context.Context, userID string) ([]domain.BankAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.BankAccount, 0, len(s.bankAccounts))
	for _, a := range s.bankAccounts {
		if a.UserID == userID {
			result = append(result, a)
		}
	}
	slices.SortFunc(result, func(a, b domain.BankAccount) int {
		return strings.Compare(a.Name, b.Name)
	})
	return result, nil
}

func (s *Store) GetTransaction(_ context.Context, userID, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.transactions[id]
	if !ok || t.UserID != userID {
		return nil, store.ErrNotFound
	}
	return &t, nil
}

func (s *Store) ListTransactions(_ context.Context, userID string, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Transaction, 0, 64)
	for _, t := range s.transactions {
		if t.UserID == userID && filter.Matches(t) {
			result = append(result, t)
		}
	}
	slices.SortFunc(result, func(a, b domain.Transaction) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	return result, nil
}

func (s *Store) GetServiceRecord(_ context.Context, userID, id string) (*domain.ServiceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.serviceRecords[id]
	if !ok || r.UserID != userID {
		return nil, store.ErrNotFound
	}
	return &r, nil
}

func (s *Store) ListServiceRecords(_ context.Context, userID string, status domain.ServiceStatus) ([]domain.ServiceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.ServiceRecord, 0, len(s.serviceRecords))
	for _, r := range s.serviceRecords {
		if r.UserID != userID || (status != "" && r.Status != status) {
			continue
		}
		result = append(result, r)
	}
	sortServiceRecords(result)
	return result, nil
}

func (s *Store) ListServiceHistory(_ context.Context, userID, recordID string) ([]domain.ServiceHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.ServiceHistory, 0, 10)
	for _, h := range s.serviceHistory {
		if h.UserID == userID && h.ServiceRecordID == recordID {
			result = append(result, h)
		}
	}
	return result, nil
}

func (s *Store) ListServiceAttachments(_ context.Context, userID, recordID string) ([]domain.ServiceAttachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.ServiceAttachment, 0, 4)
	for _, a := range s.attachments {
		if a.UserID == userID && a.ServiceRecordID == recordID {
			result = append(result, a)
		}
	}
	return result, nil
}

func (s *Store) ListWarrantiesEndingBetween(_ context.Context, userID string, from, to time.Time) ([]domain.ServiceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.ServiceRecord, 0, 8)
	for _, r := range s.serviceRecords {
		if r.UserID != userID || !r.HasWarranty || r.WarrantyEnd == nil {
			continue
		}
		if r.WarrantyEnd.Before(from) || !r.WarrantyEnd.Before(to) {
			continue
		}
		result = append(result, r)
	}
	slices.SortFunc(result, func(a, b domain.ServiceRecord) int {
		return a.WarrantyEnd.Compare(*b.WarrantyEnd)
	})
	return result, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, userID string, from, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, 64)
	for i := len(s.auditLogs) - 1; i >= 0; i-- {
		entry := s.auditLogs[i]
		if userID != "" && entry.UserID != userID {
			continue
		}
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		result = append(result, entry)
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidRequest
	}
	if _, exists := s.usersByUsername[username]; exists {
		return fmt.Errorf("%w: username already exists", store.ErrInvalidRequest)
	}
	user.Username = username
	if user.ID == "" {
		user.ID = xid.New("usr")
	}
	if user.Role == "" {
		user.Role = domain.RoleUser
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidRequest
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func sortProducts(products []domain.Product) {
	slices.SortFunc(products, func(a, b domain.Product) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

func sortSerials(serials []domain.ProductSerial) {
	slices.SortFunc(serials, func(a, b domain.ProductSerial) int {
		return strings.Compare(a.SerialNumber, b.SerialNumber)
	})
}

func sortServiceRecords(records []domain.ServiceRecord) {
	slices.SortFunc(records, func(a, b domain.ServiceRecord) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.TicketNo, a.TicketNo)
	})
}
