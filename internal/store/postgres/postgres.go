package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"tezgah/backend/internal/domain"
	"tezgah/backend/internal/store"
	"tezgah/backend/internal/xid"
)

const (
	productColumns = `id, user_id, name, sku, barcode, quantity, unit, purchase_price, sale_price,
		currency, min_stock_level, category, created_at, updated_at`
	movementColumns = `id, user_id, product_id, type, quantity, previous_quantity, new_quantity,
		reason, transaction_id, created_by, created_at`
	categoryColumns = `id, user_id, name, color, parent_id, requires_serial, created_at`
	serialColumns   = `id, user_id, product_id, serial_number, status, purchase_price, sale_price,
		sold_at, sold_to_account_id, transaction_id, created_at, updated_at`
	accountColumns     = `id, user_id, name, type, phone, email, balance, currency, created_at, updated_at`
	bankColumns        = `id, user_id, name, bank_name, iban, balance, currency, created_at, updated_at`
	transactionColumns = `id, user_id, type, amount, currency, payment_method, account_id, product_id,
		bank_account_id, description, affects_stock, quantity, date, created_by, created_at`
	serviceColumns = `id, user_id, ticket_no, customer_name, customer_phone, account_id, device_type,
		brand, model, serial_number, problem_description, status, technician_name, price, currency,
		price_approved, qc_entry_at, qc_entry_by, qc_entry_notes, qc_exit_at, qc_exit_by, qc_exit_notes,
		completed_at, delivered_at, cancelled_at, has_warranty, warranty_type, warranty_days,
		warranty_start, warranty_end, notes, created_by, created_at, updated_at`
	historyColumns    = `id, user_id, service_record_id, previous_status, new_status, actor, notes, created_at`
	attachmentColumns = `id, user_id, service_record_id, stage, file_name, content_type, object_key,
		uploaded_by, created_at`
	auditColumns = `id, user_id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at`
	userColumns  = `id, username, password, role, active, created_at`
)

type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func New(ctx context.Context, databaseURL string, logger *zap.Logger) (*Store, error) {
	db, err := sqlx.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return NewWithDB(db, logger), nil
}

// NewWithDB wraps an existing handle. The driver name must bind with $n.
func NewWithDB(db *sqlx.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// WithTx runs fn inside one serializable transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(&txStore{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) GetProduct(ctx context.Context, userID, id string) (*domain.Product, error) {
	return getOne[domain.Product](ctx, s.db, `SELECT `+productColumns+` FROM products WHERE user_id = $1 AND id = $2`, userID, id)
}

func (s *Store) ListProducts(ctx context.Context, userID string) ([]domain.Product, error) {
	return selectAll[domain.Product](ctx, s.db, `SELECT `+productColumns+` FROM products WHERE user_id = $1 ORDER BY name, id`, userID)
}

func (s *Store) ListLowStockProducts(ctx context.Context, userID string) ([]domain.Product, error) {
	return selectAll[domain.Product](ctx, s.db, `
		SELECT `+productColumns+`
		FROM products
		WHERE user_id = $1 AND min_stock_level > 0 AND quantity <= min_stock_level
		ORDER BY name, id
	`, userID)
}

func (s *Store) ListStockMovements(ctx context.Context, userID, productID string, limit int) ([]domain.StockMovement, error) {
	query := `SELECT ` + movementColumns + ` FROM stock_movements WHERE user_id = $1`
	args := []any{userID}
	if productID != "" {
		args = append(args, productID)
		query += fmt.Sprintf(" AND product_id = $%d", len(args))
	}
	query += " ORDER BY seq DESC"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return selectAll[domain.StockMovement](ctx, s.db, query, args...)
}

func (s *Store) GetCategory(ctx context.Context, userID, id string) (*domain.Category, error) {
	return getOne[domain.Category](ctx, s.db, `SELECT `+categoryColumns+` FROM categories WHERE user_id = $1 AND id = $2`, userID, id)
}

func (s *Store) ListCategories(ctx context.Context, userID string) ([]domain.Category, error) {
	return selectAll[domain.Category](ctx, s.db, `SELECT `+categoryColumns+` FROM categories WHERE user_id = $1 ORDER BY name`, userID)
}

func (s *Store) GetSerial(ctx context.Context, userID, id string) (*domain.ProductSerial, error) {
	return getOne[domain.ProductSerial](ctx, s.db, `SELECT `+serialColumns+` FROM product_serials WHERE user_id = $1 AND id = $2`, userID, id)
}

func (s *Store) FindSerial(ctx context.Context, userID, serialNumber string) (*domain.ProductSerial, error) {
	return getOne[domain.ProductSerial](ctx, s.db, `SELECT `+serialColumns+` FROM product_serials WHERE user_id = $1 AND serial_number = $2`, userID, serialNumber)
}

func (s *Store) ListSerials(ctx context.Context, userID, productID string, status domain.SerialStatus) ([]domain.ProductSerial, error) {
	query := `SELECT ` + serialColumns + ` FROM product_serials WHERE user_id = $1`
	args := []any{userID}
	if productID != "" {
		args = append(args, productID)
		query += fmt.Sprintf(" AND product_id = $%d", len(args))
	}
	if status != "" {
		args = append(args, status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY serial_number"
	return selectAll[domain.ProductSerial](ctx, s.db, query, args...)
}

func (s *Store) GetAccount(ctx context.Context, userID, id string) (*domain.Account, error) {
	return getOne[domain.Account](ctx, s.db, `SELECT `+accountColumns+` FROM accounts WHERE user_id = $1 AND id = $2`, userID, id)
}

func (s *Store) ListAccounts(ctx context.Context, userID string, typ domain.AccountType) ([]domain.Account, error) {
	if typ == "" {
		return selectAll[domain.Account](ctx, s.db, `SELECT `+accountColumns+` FROM accounts WHERE user_id = $1 ORDER BY name`, userID)
	}
	return selectAll[domain.Account](ctx, s.db, `SELECT `+accountColumns+` FROM accounts WHERE user_id = $1 AND type = $2 ORDER BY name`, userID, typ)
}

func (s *Store) GetBankAccount(ctx context.Context, userID, id string) (*domain.BankAccount, error) {
	return getOne[domain.BankAccount](ctx, s.db, `SELECT `+bankColumns+` FROM bank_accounts WHERE user_id = $1 AND id = $2`, userID, id)
}

func (s *Store) ListBankAccounts(ctx context.Context, userID string) ([]domain.BankAccount, error) {
	return selectAll[domain.BankAccount](ctx, s.db, `SELECT `+bankColumns+` FROM bank_accounts WHERE user_id = $1 ORDER BY name`, userID)
}

func (s *Store) GetTransaction(ctx context.Context, userID, id string) (*domain.Transaction, error) {
	return getOne[domain.Transaction](ctx, s.db, `SELECT `+transactionColumns+` FROM transactions WHERE user_id = $1 AND id = $2`, userID, id)
}

func (s *Store) ListTransactions(ctx context.Context, userID string, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = $1`
	args := []any{userID}
	if filter.From != nil {
		args = append(args, *filter.From)
		query += fmt.Sprintf(" AND date >= $%d", len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		query += fmt.Sprintf(" AND date < $%d", len(args))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		query += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if filter.PaymentMethod != "" {
		args = append(args, filter.PaymentMethod)
		query += fmt.Sprintf(" AND payment_method = $%d", len(args))
	}
	query += " ORDER BY date DESC, id DESC"
	return selectAll[domain.Transaction](ctx, s.db, query, args...)
}

func (s *Store) GetServiceRecord(ctx context.Context, userID, id string) (*domain.ServiceRecord, error) {
	return getOne[domain.ServiceRecord](ctx, s.db, `SELECT `+serviceColumns+` FROM service_records WHERE user_id = $1 AND id = $2`, userID, id)
}

func (s *Store) ListServiceRecords(ctx context.Context, userID string, status domain.ServiceStatus) ([]domain.ServiceRecord, error) {
	if status == "" {
		return selectAll[domain.ServiceRecord](ctx, s.db, `SELECT `+serviceColumns+` FROM service_records WHERE user_id = $1 ORDER BY created_at DESC, ticket_no DESC`, userID)
	}
	return selectAll[domain.ServiceRecord](ctx, s.db, `SELECT `+serviceColumns+` FROM service_records WHERE user_id = $1 AND status = $2 ORDER BY created_at DESC, ticket_no DESC`, userID, status)
}

func (s *Store) ListServiceHistory(ctx context.Context, userID, recordID string) ([]domain.ServiceHistory, error) {
	return selectAll[domain.ServiceHistory](ctx, s.db, `
		SELECT `+historyColumns+`
		FROM service_history
		WHERE user_id = $1 AND service_record_id = $2
		ORDER BY seq
	`, userID, recordID)
}

func (s *Store) ListServiceAttachments(ctx context.Context, userID, recordID string) ([]domain.ServiceAttachment, error) {
	return selectAll[domain.ServiceAttachment](ctx, s.db, `
		SELECT `+attachmentColumns+`
		FROM service_attachments
		WHERE user_id = $1 AND service_record_id = $2
		ORDER BY created_at, id
	`, userID, recordID)
}

func (s *Store) ListWarrantiesEndingBetween(ctx context.Context, userID string, from, to time.Time) ([]domain.ServiceRecord, error) {
	return selectAll[domain.ServiceRecord](ctx, s.db, `
		SELECT `+serviceColumns+`
		FROM service_records
		WHERE user_id = $1 AND has_warranty AND warranty_end >= $2 AND warranty_end < $3
		ORDER BY warranty_end
	`, userID, from, to)
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := sqlx.NamedExecContext(ctx, s.db, `
		INSERT INTO audit_logs (`+auditColumns+`)
		VALUES (:id, :user_id, :actor_username, :actor_role, :action, :entity_type, :entity_id, :detail, :created_at)
	`, entry)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, userID string, from, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit <= 0 {
		limit = 200
	}
	return selectAll[domain.AuditLog](ctx, s.db, `
		SELECT `+auditColumns+`
		FROM audit_logs
		WHERE ($1 = '' OR user_id = $1) AND created_at >= $2 AND created_at < $3
		ORDER BY created_at DESC, id DESC
		LIMIT $4
	`, userID, from, to, limit)
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidRequest
	}
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

	_, err := sqlx.NamedExecContext(ctx, s.db, `
		INSERT INTO users (`+userColumns+`)
		VALUES (:id, :username, :password, :role, :active, :created_at)
	`, user)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: username already exists", store.ErrInvalidRequest)
	}
	return err
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	return selectAll[domain.UserAccount](ctx, s.db, `SELECT `+userColumns+` FROM users ORDER BY username`)
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidRequest
	}
	return execOne(ctx, s.db, `UPDATE users SET password = $1 WHERE username = $2`, password, username)
}

func getOne[T any](ctx context.Context, q sqlx.QueryerContext, query string, args ...any) (*T, error) {
	var v T
	if err := sqlx.GetContext(ctx, q, &v, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

func selectAll[T any](ctx context.Context, q sqlx.QueryerContext, query string, args ...any) ([]T, error) {
	result := make([]T, 0, 16)
	if err := sqlx.SelectContext(ctx, q, &result, query, args...); err != nil {
		return nil, err
	}
	return result, nil
}

// execOne runs a write that must touch exactly one row.
func execOne(ctx context.Context, e sqlx.ExecerContext, query string, args ...any) error {
	res, err := e.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
