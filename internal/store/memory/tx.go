package memory

import (
	"context"
	"time"

	"tezgah/backend/internal/domain"
	"tezgah/backend/internal/store"
)

// txn runs with the store write lock already held by WithTx.
type txn struct {
	s    *Store
	undo []func()
}

func (t *txn) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func put[K comparable, V any](t *txn, m map[K]V, key K, value V) {
	old, existed := m[key]
	m[key] = value
	t.undo = append(t.undo, func() {
		if existed {
			m[key] = old
		} else {
			delete(m, key)
		}
	})
}

func remove[K comparable, V any](t *txn, m map[K]V, key K) {
	old, existed := m[key]
	if !existed {
		return
	}
	delete(m, key)
	t.undo = append(t.undo, func() { m[key] = old })
}

func appendRow[T any](t *txn, rows *[]T, row T) {
	n := len(*rows)
	*rows = append(*rows, row)
	t.undo = append(t.undo, func() { *rows = (*rows)[:n] })
}

func (t *txn) GetProductForUpdate(_ context.Context, userID, id string) (*domain.Product, error) {
	p, ok := t.s.products[id]
	if !ok || p.UserID != userID {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (t *txn) CreateProduct(_ context.Context, product domain.Product) error {
	if product.ID == "" || product.UserID == "" {
		return store.ErrInvalidRequest
	}
	put(t, t.s.products, product.ID, product)
	return nil
}

func (t *txn) UpdateProduct(_ context.Context, product domain.Product) error {
	current, ok := t.s.products[product.ID]
	if !ok || current.UserID != product.UserID {
		return store.ErrNotFound
	}
	product.Quantity = current.Quantity
	put(t, t.s.products, product.ID, product)
	return nil
}

func (t *txn) UpdateProductQuantity(_ context.Context, userID, id string, quantity int, at time.Time) error {
	p, ok := t.s.products[id]
	if !ok || p.UserID != userID {
		return store.ErrNotFound
	}
	p.Quantity = quantity
	p.UpdatedAt = at
	put(t, t.s.products, id, p)
	return nil
}

func (t *txn) DeleteProduct(_ context.Context, userID, id string) error {
	p, ok := t.s.products[id]
	if !ok || p.UserID != userID {
		return store.ErrNotFound
	}
	remove(t, t.s.products, id)
	return nil
}

func (t *txn) CountProductReferences(_ context.Context, userID, id string) (int, error) {
	count := 0
	for _, m := range t.s.movements {
		if m.UserID == userID && m.ProductID == id {
			count++
		}
	}
	for _, serial := range t.s.serials {
		if serial.UserID == userID && serial.ProductID == id {
			count++
		}
	}
	return count, nil
}

func (t *txn) CreateStockMovement(_ context.Context, movement domain.StockMovement) error {
	if movement.ID == "" || movement.ProductID == "" {
		return store.ErrInvalidRequest
	}
	appendRow(t, &t.s.movements, movement)
	return nil
}

func (t *txn) ListMovementsByTransaction(_ context.Context, userID, transactionID string) ([]domain.StockMovement, error) {
	result := make([]domain.StockMovement, 0, 2)
	for _, m := range t.s.movements {
		if m.UserID == userID && m.TransactionID == transactionID {
			result = append(result, m)
		}
	}
	return result, nil
}

func (t *txn) GetCategory(_ context.Context, userID, id string) (*domain.Category, error) {
	return t.s.category(userID, id)
}

func (t *txn) GetCategoryByName(_ context.Context, userID, name string) (*domain.Category, error) {
	for _, c := range t.s.categories {
		if c.UserID == userID && c.Name == name {
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (t *txn) RenameProductCategory(_ context.Context, userID, from, to string, at time.Time) (int, error) {
	moved := 0
	for id, p := range t.s.products {
		if p.UserID != userID || p.Category != from {
			continue
		}
		p.Category = to
		p.UpdatedAt = at
		put(t, t.s.products, id, p)
		moved++
	}
	return moved, nil
}

func (t *txn) CreateCategory(_ context.Context, category domain.Category) error {
	put(t, t.s.categories, category.ID, category)
	return nil
}

func (t *txn) UpdateCategory(_ context.Context, category domain.Category) error {
	if _, err := t.s.category(category.UserID, category.ID); err != nil {
		return err
	}
	put(t, t.s.categories, category.ID, category)
	return nil
}

func (t *txn) DeleteCategory(_ context.Context, userID, id string) error {
	if _, err := t.s.category(userID, id); err != nil {
		return err
	}
	remove(t, t.s.categories, id)
	return nil
}

func (t *txn) CountChildCategories(_ context.Context, userID, id string) (int, error) {
	count := 0
	for _, c := range t.s.categories {
		if c.UserID == userID && c.ParentID == id {
			count++
		}
	}
	return count, nil
}

func (t *txn) CreateSerial(_ context.Context, serial domain.ProductSerial) error {
	for _, existing := range t.s.serials {
		if existing.UserID == serial.UserID && existing.SerialNumber == serial.SerialNumber {
			return store.ErrDuplicateSerial
		}
	}
	put(t, t.s.serials, serial.ID, serial)
	return nil
}

func (t *txn) GetSerialForUpdate(_ context.Context, userID, id string) (*domain.ProductSerial, error) {
	return t.s.serial(userID, id)
}

func (t *txn) UpdateSerial(_ context.Context, serial domain.ProductSerial) error {
	if _, err := t.s.serial(serial.UserID, serial.ID); err != nil {
		return err
	}
	put(t, t.s.serials, serial.ID, serial)
	return nil
}

func (t *txn) ListSerialsByTransaction(_ context.Context, userID, transactionID string) ([]domain.ProductSerial, error) {
	result := make([]domain.ProductSerial, 0, 2)
	for _, serial := range t.s.serials {
		if serial.UserID == userID && serial.TransactionID == transactionID {
			result = append(result, serial)
		}
	}
	sortSerials(result)
	return result, nil
}

func (t *txn) CreateAccount(_ context.Context, account domain.Account) error {
	put(t, t.s.accounts, account.ID, account)
	return nil
}

func (t *txn) UpdateAccount(_ context.Context, account domain.Account) error {
	current, ok := t.s.accounts[account.ID]
	if !ok || current.UserID != account.UserID {
		return store.ErrNotFound
	}
	put(t, t.s.accounts, account.ID, account)
	return nil
}

func (t *txn) DeleteAccount(_ context.Context, userID, id string) error {
	current, ok := t.s.accounts[id]
	if !ok || current.UserID != userID {
		return store.ErrNotFound
	}
	remove(t, t.s.accounts, id)
	return nil
}

func (t *txn) CreateBankAccount(_ context.Context, account domain.BankAccount) error {
	put(t, t.s.bankAccounts, account.ID, account)
	return nil
}

func (t *txn) UpdateBankAccount(_ context.Context, account domain.BankAccount) error {
	current, ok := t.s.bankAccounts[account.ID]
	if !ok || current.UserID != account.UserID {
		return store.ErrNotFound
	}
	put(t, t.s.bankAccounts, account.ID, account)
	return nil
}

func (t *txn) DeleteBankAccount(_ context.Context, userID, id string) error {
	current, ok := t.s.bankAccounts[id]
	if !ok || current.UserID != userID {
		return store.ErrNotFound
	}
	remove(t, t.s.bankAccounts, id)
	return nil
}

func (t *txn) CreateTransaction(_ context.Context, transaction domain.Transaction) error {
	if transaction.ID == "" || transaction.UserID == "" {
		return store.ErrInvalidRequest
	}
	put(t, t.s.transactions, transaction.ID, transaction)
	return nil
}

func (t *txn) GetTransactionForUpdate(_ context.Context, userID, id string) (*domain.Transaction, error) {
	tr, ok := t.s.transactions[id]
	if !ok || tr.UserID != userID {
		return nil, store.ErrNotFound
	}
	return &tr, nil
}

func (t *txn) DeleteTransaction(_ context.Context, userID, id string) error {
	tr, ok := t.s.transactions[id]
	if !ok || tr.UserID != userID {
		return store.ErrNotFound
	}
	remove(t, t.s.transactions, id)
	return nil
}

func (t *txn) CreateServiceRecord(_ context.Context, record domain.ServiceRecord) error {
	for _, existing := range t.s.serviceRecords {
		if existing.UserID == record.UserID && existing.TicketNo == record.TicketNo {
			return store.ErrDuplicateTicket
		}
	}
	put(t, t.s.serviceRecords, record.ID, record)
	return nil
}

func (t *txn) GetServiceRecordForUpdate(_ context.Context, userID, id string) (*domain.ServiceRecord, error) {
	r, ok := t.s.serviceRecords[id]
	if !ok || r.UserID != userID {
		return nil, store.ErrNotFound
	}
	return &r, nil
}

func (t *txn) UpdateServiceRecord(_ context.Context, record domain.ServiceRecord) error {
	current, ok := t.s.serviceRecords[record.ID]
	if !ok || current.UserID != record.UserID {
		return store.ErrNotFound
	}
	put(t, t.s.serviceRecords, record.ID, record)
	return nil
}

func (t *txn) DeleteServiceRecord(_ context.Context, userID, id string) error {
	current, ok := t.s.serviceRecords[id]
	if !ok || current.UserID != userID {
		return store.ErrNotFound
	}
	remove(t, t.s.serviceRecords, id)
	return nil
}

func (t *txn) CreateServiceHistory(_ context.Context, entry domain.ServiceHistory) error {
	appendRow(t, &t.s.serviceHistory, entry)
	return nil
}

func (t *txn) CreateServiceAttachment(_ context.Context, attachment domain.ServiceAttachment) error {
	appendRow(t, &t.s.attachments, attachment)
	return nil
}
