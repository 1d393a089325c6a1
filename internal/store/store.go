package store

import (
	"context"
	"errors"
	"time"

	"tezgah/backend/internal/domain"
)

var (
	ErrNotFound              = errors.New("not found")
	ErrInvalidRequest        = errors.New("invalid request")
	ErrInsufficientStock     = errors.New("insufficient stock")
	ErrDuplicateSerial       = errors.New("duplicate serial number")
	ErrDuplicateTicket       = errors.New("duplicate ticket number")
	ErrInvalidTransition     = errors.New("invalid state transition")
	ErrPriceApprovalRequired = errors.New("price approval required")
	ErrReferenced            = errors.New("entity is still referenced")
	ErrUnauthenticated       = errors.New("not authenticated")
	ErrForbidden             = errors.New("forbidden")
)

// Repository is the read side of the store plus the transactional boundary.
// Every read is scoped to the owning tenant. Implementations must not be
// called from inside a WithTx function; use the Tx handed to it instead.
type Repository interface {
	GetProduct(ctx context.Context, userID, id string) (*domain.Product, error)
	ListProducts(ctx context.Context, userID string) ([]domain.Product, error)
	ListLowStockProducts(ctx context.Context, userID string) ([]domain.Product, error)
	ListStockMovements(ctx context.Context, userID, productID string, limit int) ([]domain.StockMovement, error)

	GetCategory(ctx context.Context, userID, id string) (*domain.Category, error)
	ListCategories(ctx context.Context, userID string) ([]domain.Category, error)

	GetSerial(ctx context.Context, userID, id string) (*domain.ProductSerial, error)
	FindSerial(ctx context.Context, userID, serialNumber string) (*domain.ProductSerial, error)
	ListSerials(ctx context.Context, userID, productID string, status domain.SerialStatus) ([]domain.ProductSerial, error)

	GetAccount(ctx context.Context, userID, id string) (*domain.Account, error)
	ListAccounts(ctx context.Context, userID string, typ domain.AccountType) ([]domain.Account, error)
	GetBankAccount(ctx context.Context, userID, id string) (*domain.BankAccount, error)
	ListBankAccounts(ctx context.Context, userID string) ([]domain.BankAccount, error)

	GetTransaction(ctx context.Context, userID, id string) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, userID string, filter domain.TransactionFilter) ([]domain.Transaction, error)

	GetServiceRecord(ctx context.Context, userID, id string) (*domain.ServiceRecord, error)
	ListServiceRecords(ctx context.Context, userID string, status domain.ServiceStatus) ([]domain.ServiceRecord, error)
	ListServiceHistory(ctx context.Context, userID, recordID string) ([]domain.ServiceHistory, error)
	ListServiceAttachments(ctx context.Context, userID, recordID string) ([]domain.ServiceAttachment, error)
	// ListWarrantiesEndingBetween returns warranties whose end is in [from, to).
	ListWarrantiesEndingBetween(ctx context.Context, userID string, from, to time.Time) ([]domain.ServiceRecord, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, userID string, from, to time.Time, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error

	// WithTx runs fn as one atomic unit. A non-nil error from fn undoes every
	// write fn made through tx and is returned unchanged.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the write side. Reads named ForUpdate lock the row until the unit ends.
type Tx interface {
	GetProductForUpdate(ctx context.Context, userID, id string) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) error
	UpdateProduct(ctx context.Context, product domain.Product) error
	UpdateProductQuantity(ctx context.Context, userID, id string, quantity int, at time.Time) error
	DeleteProduct(ctx context.Context, userID, id string) error
	CountProductReferences(ctx context.Context, userID, id string) (int, error)

	CreateStockMovement(ctx context.Context, movement domain.StockMovement) error
	ListMovementsByTransaction(ctx context.Context, userID, transactionID string) ([]domain.StockMovement, error)

	GetCategory(ctx context.Context, userID, id string) (*domain.Category, error)
	GetCategoryByName(ctx context.Context, userID, name string) (*domain.Category, error)
	CreateCategory(ctx context.Context, category domain.Category) error
	UpdateCategory(ctx context.Context, category domain.Category) error
	DeleteCategory(ctx context.Context, userID, id string) error
	CountChildCategories(ctx context.Context, userID, id string) (int, error)
	// RenameProductCategory repoints products filed under from to to and
	// returns how many moved.
	RenameProductCategory(ctx context.Context, userID, from, to string, at time.Time) (int, error)

	CreateSerial(ctx context.Context, serial domain.ProductSerial) error
	GetSerialForUpdate(ctx context.Context, userID, id string) (*domain.ProductSerial, error)
	UpdateSerial(ctx context.Context, serial domain.ProductSerial) error
	ListSerialsByTransaction(ctx context.Context, userID, transactionID string) ([]domain.ProductSerial, error)

	CreateAccount(ctx context.Context, account domain.Account) error
	UpdateAccount(ctx context.Context, account domain.Account) error
	DeleteAccount(ctx context.Context, userID, id string) error
	CreateBankAccount(ctx context.Context, account domain.BankAccount) error
	UpdateBankAccount(ctx context.Context, account domain.BankAccount) error
	DeleteBankAccount(ctx context.Context, userID, id string) error

	CreateTransaction(ctx context.Context, transaction domain.Transaction) error
	GetTransactionForUpdate(ctx context.Context, userID, id string) (*domain.Transaction, error)
	DeleteTransaction(ctx context.Context, userID, id string) error

	CreateServiceRecord(ctx context.Context, record domain.ServiceRecord) error
	GetServiceRecordForUpdate(ctx context.Context, userID, id string) (*domain.ServiceRecord, error)
	UpdateServiceRecord(ctx context.Context, record domain.ServiceRecord) error
	DeleteServiceRecord(ctx context.Context, userID, id string) error
	CreateServiceHistory(ctx context.Context, entry domain.ServiceHistory) error
	CreateServiceAttachment(ctx context.Context, attachment domain.ServiceAttachment) error
}
