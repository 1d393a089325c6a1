package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

type Currency string

const (
	CurrencyTRY Currency = "TRY"
	CurrencyUSD Currency = "USD"
)

func (c Currency) Valid() bool {
	return c == CurrencyTRY || c == CurrencyUSD
}

type MovementType string

const (
	MovementIn         MovementType = "in"
	MovementOut        MovementType = "out"
	MovementAdjustment MovementType = "adjustment"
)

func (t MovementType) Valid() bool {
	switch t {
	case MovementIn, MovementOut, MovementAdjustment:
		return true
	default:
		return false
	}
}

type SerialStatus string

const (
	SerialInStock  SerialStatus = "in_stock"
	SerialSold     SerialStatus = "sold"
	SerialReturned SerialStatus = "returned"
)

func (s SerialStatus) Valid() bool {
	switch s {
	case SerialInStock, SerialSold, SerialReturned:
		return true
	default:
		return false
	}
}

type TransactionType string

const (
	TxIncome   TransactionType = "income"
	TxExpense  TransactionType = "expense"
	TxPurchase TransactionType = "purchase"
	TxSale     TransactionType = "sale"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TxIncome, TxExpense, TxPurchase, TxSale:
		return true
	default:
		return false
	}
}

// IncomeLike reports whether the transaction counts on the income side of a report.
func (t TransactionType) IncomeLike() bool {
	return t == TxIncome || t == TxSale
}

// StockDirection is the movement a stock-affecting transaction of this type applies.
func (t TransactionType) StockDirection() MovementType {
	if t == TxSale || t == TxExpense {
		return MovementOut
	}
	return MovementIn
}

type PaymentMethod string

const (
	PaymentCash PaymentMethod = "cash"
	PaymentBank PaymentMethod = "bank"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentCash || m == PaymentBank
}

type AccountType string

const (
	AccountCustomer AccountType = "customer"
	AccountSupplier AccountType = "supplier"
)

func (t AccountType) Valid() bool {
	return t == AccountCustomer || t == AccountSupplier
}

type Product struct {
	ID            string          `json:"id" db:"id"`
	UserID        string          `json:"user_id" db:"user_id"`
	Name          string          `json:"name" db:"name"`
	SKU           string          `json:"sku" db:"sku"`
	Barcode       string          `json:"barcode" db:"barcode"`
	Quantity      int             `json:"quantity" db:"quantity"`
	Unit          string          `json:"unit" db:"unit"`
	PurchasePrice decimal.Decimal `json:"purchase_price" db:"purchase_price"`
	SalePrice     decimal.Decimal `json:"sale_price" db:"sale_price"`
	Currency      Currency        `json:"currency" db:"currency"`
	MinStockLevel int             `json:"min_stock_level" db:"min_stock_level"`
	Category      string          `json:"category" db:"category"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

func (p Product) LowStock() bool {
	return p.MinStockLevel > 0 && p.Quantity <= p.MinStockLevel
}

type StockMovement struct {
	ID               string       `json:"id" db:"id"`
	UserID           string       `json:"user_id" db:"user_id"`
	ProductID        string       `json:"product_id" db:"product_id"`
	Type             MovementType `json:"type" db:"type"`
	Quantity         int          `json:"quantity" db:"quantity"`
	PreviousQuantity int          `json:"previous_quantity" db:"previous_quantity"`
	NewQuantity      int          `json:"new_quantity" db:"new_quantity"`
	Reason           string       `json:"reason" db:"reason"`
	TransactionID    string       `json:"transaction_id,omitempty" db:"transaction_id"`
	CreatedBy        string       `json:"created_by" db:"created_by"`
	CreatedAt        time.Time    `json:"created_at" db:"created_at"`
}

type ProductSerial struct {
	ID              string          `json:"id" db:"id"`
	UserID          string          `json:"user_id" db:"user_id"`
	ProductID       string          `json:"product_id" db:"product_id"`
	SerialNumber    string          `json:"serial_number" db:"serial_number"`
	Status          SerialStatus    `json:"status" db:"status"`
	PurchasePrice   decimal.Decimal `json:"purchase_price" db:"purchase_price"`
	SalePrice       decimal.Decimal `json:"sale_price" db:"sale_price"`
	SoldAt          *time.Time      `json:"sold_at,omitempty" db:"sold_at"`
	SoldToAccountID string          `json:"sold_to_account_id,omitempty" db:"sold_to_account_id"`
	TransactionID   string          `json:"transaction_id,omitempty" db:"transaction_id"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

type Category struct {
	ID             string    `json:"id" db:"id"`
	UserID         string    `json:"user_id" db:"user_id"`
	Name           string    `json:"name" db:"name"`
	Color          string    `json:"color" db:"color"`
	ParentID       string    `json:"parent_id,omitempty" db:"parent_id"`
	RequiresSerial bool      `json:"requires_serial" db:"requires_serial"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

type Account struct {
	ID        string          `json:"id" db:"id"`
	UserID    string          `json:"user_id" db:"user_id"`
	Name      string          `json:"name" db:"name"`
	Type      AccountType     `json:"type" db:"type"`
	Phone     string          `json:"phone" db:"phone"`
	Email     string          `json:"email" db:"email"`
	Balance   decimal.Decimal `json:"balance" db:"balance"`
	Currency  Currency        `json:"currency" db:"currency"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

type BankAccount struct {
	ID        string          `json:"id" db:"id"`
	UserID    string          `json:"user_id" db:"user_id"`
	Name      string          `json:"name" db:"name"`
	BankName  string          `json:"bank_name" db:"bank_name"`
	IBAN      string          `json:"iban" db:"iban"`
	Balance   decimal.Decimal `json:"balance" db:"balance"`
	Currency  Currency        `json:"currency" db:"currency"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

type Transaction struct {
	ID            string          `json:"id" db:"id"`
	UserID        string          `json:"user_id" db:"user_id"`
	Type          TransactionType `json:"type" db:"type"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	Currency      Currency        `json:"currency" db:"currency"`
	PaymentMethod PaymentMethod   `json:"payment_method" db:"payment_method"`
	AccountID     string          `json:"account_id,omitempty" db:"account_id"`
	ProductID     string          `json:"product_id,omitempty" db:"product_id"`
	BankAccountID string          `json:"bank_account_id,omitempty" db:"bank_account_id"`
	Description   string          `json:"description" db:"description"`
	AffectsStock  bool            `json:"affects_stock" db:"affects_stock"`
	Quantity      int             `json:"quantity" db:"quantity"`
	Date          time.Time       `json:"date" db:"date"`
	CreatedBy     string          `json:"created_by" db:"created_by"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

// ExchangeRate is one USD/TRY pair. Timestamp is the provider's publication
// time; FetchedAt is when this deployment pulled it and drives staleness.
type ExchangeRate struct {
	USDToTRY  decimal.Decimal `json:"usd_to_try"`
	TRYToUSD  decimal.Decimal `json:"try_to_usd"`
	Timestamp time.Time       `json:"timestamp"`
	FetchedAt time.Time       `json:"fetched_at"`
}

type Actor struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

type UserAccount struct {
	ID        string    `json:"id" db:"id"`
	Username  string    `json:"username" db:"username"`
	Password  string    `json:"-" db:"password"`
	Role      string    `json:"role" db:"role"`
	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type AuditLog struct {
	ID            string    `json:"id" db:"id"`
	UserID        string    `json:"user_id" db:"user_id"`
	ActorUsername string    `json:"actor_username" db:"actor_username"`
	ActorRole     string    `json:"actor_role" db:"actor_role"`
	Action        string    `json:"action" db:"action"`
	EntityType    string    `json:"entity_type" db:"entity_type"`
	EntityID      string    `json:"entity_id" db:"entity_id"`
	Detail        string    `json:"detail" db:"detail"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

type TransactionFilter struct {
	From          *time.Time
	To            *time.Time
	Type          TransactionType
	PaymentMethod PaymentMethod
}

// Matches reports whether tx passes every set field of the filter. From is
// inclusive and To exclusive.
func (f TransactionFilter) Matches(tx Transaction) bool {
	if f.From != nil && tx.Date.Before(*f.From) {
		return false
	}
	if f.To != nil && !tx.Date.Before(*f.To) {
		return false
	}
	if f.Type != "" && tx.Type != f.Type {
		return false
	}
	if f.PaymentMethod != "" && tx.PaymentMethod != f.PaymentMethod {
		return false
	}
	return true
}
