package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"tezgah/backend/internal/domain"
	"tezgah/backend/internal/store"
)

type txStore struct {
	tx *sqlx.Tx
}

func (t *txStore) GetProductForUpdate(ctx context.Context, userID, id string) (*domain.Product, error) {
	return getOne[domain.Product](ctx, t.tx, `SELECT `+productColumns+` FROM products WHERE user_id = $1 AND id = $2 FOR UPDATE`, userID, id)
}

func (t *txStore) CreateProduct(ctx context.Context, p domain.Product) error {
	_, err := sqlx.NamedExecContext(ctx, t.tx, `
		INSERT INTO products (`+productColumns+`)
		VALUES (:id, :user_id, :name, :sku, :barcode, :quantity, :unit, :purchase_price, :sale_price,
			:currency, :min_stock_level, :category, :created_at, :updated_at)
	`, p)
	return err
}

// UpdateProduct never writes quantity; stock moves only through movements.
func (t *txStore) UpdateProduct(ctx context.Context, p domain.Product) error {
	res, err := sqlx.NamedExecContext(ctx, t.tx, `
		UPDATE products
		SET name = :name, sku = :sku, barcode = :barcode, unit = :unit,
			purchase_price = :purchase_price, sale_price = :sale_price, currency = :currency,
			min_stock_level = :min_stock_level, category = :category, updated_at = :updated_at
		WHERE user_id = :user_id AND id = :id
	`, p)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

func (t *txStore) UpdateProductQuantity(ctx context.Context, userID, id string, quantity int, at time.Time) error {
	return execOne(ctx, t.tx, `UPDATE products SET quantity = $1, updated_at = $2 WHERE user_id = $3 AND id = $4`, quantity, at, userID, id)
}

func (t *txStore) DeleteProduct(ctx context.Context, userID, id string) error {
	return execOne(ctx, t.tx, `DELETE FROM products WHERE user_id = $1 AND id = $2`, userID, id)
}

func (t *txStore) CountProductReferences(ctx context.Context, userID, id string) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, t.tx, &count, `
		SELECT
			(SELECT COUNT(*) FROM stock_movements WHERE user_id = $1 AND product_id = $2) +
			(SELECT COUNT(*) FROM product_serials WHERE user_id = $1 AND product_id = $2)
	`, userID, id)
	return count, err
}

func (t *txStore) CreateStockMovement(ctx context.Context, m domain.StockMovement) error {
	_, err := sqlx.NamedExecContext(ctx, t.tx, `
		INSERT INTO stock_movements (`+movementColumns+`)
		VALUES (:id, :user_id, :product_id, :type, :quantity, :previous_quantity, :new_quantity,
			:reason, :transaction_id, :created_by, :created_at)
	`, m)
	return err
}

func (t *txStore) ListMovementsByTransaction(ctx context.Context, userID, transactionID string) ([]domain.StockMovement, error) {
	return selectAll[domain.StockMovement](ctx, t.tx, `
		SELECT `+movementColumns+`
		FROM stock_movements
		WHERE user_id = $1 AND transaction_id = $2
		ORDER BY seq
	`, userID, transactionID)
}

func (t *txStore) GetCategory(ctx context.Context, userID, id string) (*domain.Category, error) {
	return getOne[domain.Category](ctx, t.tx, `SELECT `+categoryColumns+` FROM categories WHERE user_id = $1 AND id = $2`, userID, id)
}

func (t *txStore) GetCategoryByName(ctx context.Context, userID, name string) (*domain.Category, error) {
	return getOne[domain.Category](ctx, t.tx, `SELECT `+categoryColumns+` FROM categories WHERE user_id = $1 AND name = $2`, userID, name)
}

func (t *txStore) RenameProductCategory(ctx context.Context, userID, from, to string, at time.Time) (int, error) {
	res, err := t.tx.ExecContext(ctx, `UPDATE products SET category = $1, updated_at = $2 WHERE user_id = $3 AND category = $4`, to, at, userID, from)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (t *txStore) CreateCategory(ctx context.Context, c domain.Category) error {
	_, err := sqlx.NamedExecContext(ctx, t.tx, `
		INSERT INTO categories (`+categoryColumns+`)
		VALUES (:id, :user_id, :name, :color, :parent_id, :requires_serial, :created_at)
	`, c)
	if isUniqueViolation(err) {
		return store.ErrInvalidRequest
	}
	return err
}

func (t *txStore) UpdateCategory(ctx context.Context, c domain.Category) error {
	res, err := sqlx.NamedExecContext(ctx, t.tx, `
		UPDATE categories
		SET name = :name, color = :color, parent_id = :parent_id, requires_serial = :requires_serial
		WHERE user_id = :user_id AND id = :id
	`, c)
	if isUniqueViolation(err) {
		return store.ErrInvalidRequest
	}
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

func (t *txStore) DeleteCategory(ctx context.Context, userID, id string) error {
	return execOne(ctx, t.tx, `DELETE FROM categories WHERE user_id = $1 AND id = $2`, userID, id)
}

func (t *txStore) CountChildCategories(ctx context.Context, userID, id string) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, t.tx, &count, `SELECT COUNT(*) FROM categories WHERE user_id = $1 AND parent_id = $2`, userID, id)
	return count, err
}

func (t *txStore) CreateSerial(ctx context.Context, serial domain.ProductSerial) error {
	_, err := sqlx.NamedExecContext(ctx, t.tx, `
		INSERT INTO product_serials (`+serialColumns+`)
		VALUES (:id, :user_id, :product_id, :serial_number, :status, :purchase_price, :sale_price,
			:sold_at, :sold_to_account_id, :transaction_id, :created_at, :updated_at)
	`, serial)
	if isUniqueViolation(err) {
		return store.ErrDuplicateSerial
	}
	return err
}

func (t *txStore) GetSerialForUpdate(ctx context.Context, userID, id string) (*domain.ProductSerial, error) {
	return getOne[domain.ProductSerial](ctx, t.tx, `SELECT `+serialColumns+` FROM product_serials WHERE user_id = $1 AND id = $2 FOR UPDATE`, userID, id)
}

func (t *txStore) UpdateSerial(ctx context.Context, serial domain.ProductSerial) error {
	res, err := sqlx.NamedExecContext(ctx, t.tx, `
		UPDATE product_serials
		SET status = :status, sale_price = :sale_price, sold_at = :sold_at,
			sold_to_account_id = :sold_to_account_id, transaction_id = :transaction_id, updated_at = :updated_at
		WHERE user_id = :user_id AND id = :id
	`, serial)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

func (t *txStore) ListSerialsByTransaction(ctx context.Context, userID, transactionID string) ([]domain.ProductSerial, error) {
	return selectAll[domain.ProductSerial](ctx, t.tx, `
		SELECT `+serialColumns+`
		FROM product_serials
		WHERE user_id = $1 AND transaction_id = $2
		ORDER BY serial_number
		FOR UPDATE
	`, userID, transactionID)
}

func (t *txStore) CreateAccount(ctx context.Context, a domain.Account) error {
	_, err := sqlx.NamedExecContext(ctx, t.tx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES (:id, :user_id, :name, :type, :phone, :email, :balance, :currency, :created_at, :updated_at)
	`, a)
	return err
}

func (t *txStore) UpdateAccount(ctx context.Context, a domain.Account) error {
	res, err := sqlx.NamedExecContext(ctx, t.tx, `
		UPDATE accounts
		SET name = :name, type = :type, phone = :phone, email = :email, balance = :balance,
			currency = :currency, updated_at = :updated_at
		WHERE user_id = :user_id AND id = :id
	`, a)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

func (t *txStore) DeleteAccount(ctx context.Context, userID, id string) error {
	return execOne(ctx, t.tx, `DELETE FROM accounts WHERE user_id = $1 AND id = $2`, userID, id)
}

func (t *txStore) CreateBankAccount(ctx context.Context, a domain.BankAccount) error {
	_, err := sqlx.NamedExecContext(ctx, t.tx, `
		INSERT INTO bank_accounts (`+bankColumns+`)
		VALUES (:id, :user_id, :name, :bank_name, :iban, :balance, :currency, :created_at, :updated_at)
	`, a)
	return err
}

func (t *txStore) UpdateBankAccount(ctx context.Context, a domain.BankAccount) error {
	res, err := sqlx.NamedExecContext(ctx, t.tx, `
		UPDATE bank_accounts
		SET name = :name, bank_name = :bank_name, iban = :iban, balance = :balance,
			currency = :currency, updated_at = :updated_at
		WHERE user_id = :user_id AND id = :id
	`, a)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

func (t *txStore) DeleteBankAccount(ctx context.Context, userID, id string) error {
	return execOne(ctx, t.tx, `DELETE FROM bank_accounts WHERE user_id = $1 AND id = $2`, userID, id)
}

func (t *txStore) CreateTransaction(ctx context.Context, tr domain.Transaction) error {
	_, err := sqlx.NamedExecContext(ctx, t.tx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES (:id, :user_id, :type, :amount, :currency, :payment_method, :account_id, :product_id,
			:bank_account_id, :description, :affects_stock, :quantity, :date, :created_by, :created_at)
	`, tr)
	return err
}

func (t *txStore) GetTransactionForUpdate(ctx context.Context, userID, id string) (*domain.Transaction, error) {
	return getOne[domain.Transaction](ctx, t.tx, `SELECT `+transactionColumns+` FROM transactions WHERE user_id = $1 AND id = $2 FOR UPDATE`, userID, id)
}

func (t *txStore) DeleteTransaction(ctx context.Context, userID, id string) error {
	return execOne(ctx, t.tx, `DELETE FROM transactions WHERE user_id = $1 AND id = $2`, userID, id)
}

func (t *txStore) CreateServiceRecord(ctx context.Context, r domain.ServiceRecord) error {
	_, err := sqlx.NamedExecContext(ctx, t.tx, `
		INSERT INTO service_records (`+serviceColumns+`)
		VALUES (:id, :user_id, :ticket_no, :customer_name, :customer_phone, :account_id, :device_type,
			:brand, :model, :serial_number, :problem_description, :status, :technician_name, :price, :currency,
			:price_approved, :qc_entry_at, :qc_entry_by, :qc_entry_notes, :qc_exit_at, :qc_exit_by, :qc_exit_notes,
			:completed_at, :delivered_at, :cancelled_at, :has_warranty, :warranty_type, :warranty_days,
			:warranty_start, :warranty_end, :notes, :created_by, :created_at, :updated_at)
	`, r)
	if isUniqueViolation(err) {
		return store.ErrDuplicateTicket
	}
	return err
}

func (t *txStore) GetServiceRecordForUpdate(ctx context.Context, userID, id string) (*domain.ServiceRecord, error) {
	return getOne[domain.ServiceRecord](ctx, t.tx, `SELECT `+serviceColumns+` FROM service_records WHERE user_id = $1 AND id = $2 FOR UPDATE`, userID, id)
}

func (t *txStore) UpdateServiceRecord(ctx context.Context, r domain.ServiceRecord) error {
	res, err := sqlx.NamedExecContext(ctx, t.tx, `
		UPDATE service_records
		SET customer_name = :customer_name, customer_phone = :customer_phone, account_id = :account_id,
			device_type = :device_type, brand = :brand, model = :model, serial_number = :serial_number,
			problem_description = :problem_description, status = :status, technician_name = :technician_name,
			price = :price, currency = :currency, price_approved = :price_approved,
			qc_entry_at = :qc_entry_at, qc_entry_by = :qc_entry_by, qc_entry_notes = :qc_entry_notes,
			qc_exit_at = :qc_exit_at, qc_exit_by = :qc_exit_by, qc_exit_notes = :qc_exit_notes,
			completed_at = :completed_at, delivered_at = :delivered_at, cancelled_at = :cancelled_at,
			has_warranty = :has_warranty, warranty_type = :warranty_type, warranty_days = :warranty_days,
			warranty_start = :warranty_start, warranty_end = :warranty_end, notes = :notes,
			updated_at = :updated_at
		WHERE user_id = :user_id AND id = :id
	`, r)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

func (t *txStore) DeleteServiceRecord(ctx context.Context, userID, id string) error {
	return execOne(ctx, t.tx, `DELETE FROM service_records WHERE user_id = $1 AND id = $2`, userID, id)
}

func (t *txStore) CreateServiceHistory(ctx context.Context, h domain.ServiceHistory) error {
	_, err := sqlx.NamedExecContext(ctx, t.tx, `
		INSERT INTO service_history (`+historyColumns+`)
		VALUES (:id, :user_id, :service_record_id, :previous_status, :new_status, :actor, :notes, :created_at)
	`, h)
	return err
}

func (t *txStore) CreateServiceAttachment(ctx context.Context, a domain.ServiceAttachment) error {
	_, err := sqlx.NamedExecContext(ctx, t.tx, `
		INSERT INTO service_attachments (`+attachmentColumns+`)
		VALUES (:id, :user_id, :service_record_id, :stage, :file_name, :content_type, :object_key,
			:uploaded_by, :created_at)
	`, a)
	return err
}
