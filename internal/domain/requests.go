package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	UserID      string `json:"user_id"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type UserCreateRequest struct {
	Username string `json:"username" validate:"required,min=4,max=64"`
	Password string `json:"password" validate:"required,min=8"`
}

type UserView struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type CategoryRequest struct {
	Name           string `json:"name" validate:"required,max=120"`
	Color          string `json:"color" validate:"omitempty,max=32"`
	ParentID       string `json:"parent_id"`
	RequiresSerial bool   `json:"requires_serial"`
}

type SerialInput struct {
	SerialNumber  string          `json:"serial_number" validate:"required,max=120"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	SalePrice     decimal.Decimal `json:"sale_price"`
}

type ProductCreateRequest struct {
	Name          string          `json:"name" validate:"required,max=200"`
	SKU           string          `json:"sku" validate:"max=64"`
	Barcode       string          `json:"barcode" validate:"max=64"`
	Quantity      int             `json:"quantity" validate:"gte=0"`
	Unit          string          `json:"unit" validate:"max=32"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	SalePrice     decimal.Decimal `json:"sale_price"`
	Currency      Currency        `json:"currency" validate:"omitempty,currency"`
	MinStockLevel int             `json:"min_stock_level" validate:"gte=0"`
	Category      string          `json:"category" validate:"max=120"`
	Serials       []SerialInput   `json:"serials" validate:"dive"`
}

// ProductUpdateRequest never carries quantity; stock only moves through movements.
type ProductUpdateRequest struct {
	Name          string          `json:"name" validate:"required,max=200"`
	SKU           string          `json:"sku" validate:"max=64"`
	Barcode       string          `json:"barcode" validate:"max=64"`
	Unit          string          `json:"unit" validate:"max=32"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	SalePrice     decimal.Decimal `json:"sale_price"`
	Currency      Currency        `json:"currency" validate:"omitempty,currency"`
	MinStockLevel int             `json:"min_stock_level" validate:"gte=0"`
	Category      string          `json:"category" validate:"max=120"`
}

type ProductCreateResponse struct {
	Product  Product         `json:"product"`
	Serials  []ProductSerial `json:"serials"`
	Movement *StockMovement  `json:"movement,omitempty"`
}

type StockMovementRequest struct {
	Type     MovementType `json:"type" validate:"required,oneof=in out adjustment"`
	Quantity int          `json:"quantity" validate:"gte=0"`
	Reason   string       `json:"reason" validate:"max=500"`
}

type StockMovementResponse struct {
	Movement StockMovement `json:"movement"`
	Product  Product       `json:"product"`
}

type SerialCreateRequest struct {
	ProductID     string          `json:"product_id" validate:"required"`
	SerialNumber  string          `json:"serial_number" validate:"required,max=120"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	SalePrice     decimal.Decimal `json:"sale_price"`
}

type SerialSellRequest struct {
	SalePrice      decimal.Decimal `json:"sale_price"`
	BuyerAccountID string          `json:"buyer_account_id"`
	TransactionID  string          `json:"transaction_id"`
}

type AccountRequest struct {
	Name     string          `json:"name" validate:"required,max=200"`
	Type     AccountType     `json:"type" validate:"required,oneof=customer supplier"`
	Phone    string          `json:"phone" validate:"max=32"`
	Email    string          `json:"email" validate:"omitempty,email"`
	Balance  decimal.Decimal `json:"balance"`
	Currency Currency        `json:"currency" validate:"omitempty,currency"`
}

type BankAccountRequest struct {
	Name     string          `json:"name" validate:"required,max=200"`
	BankName string          `json:"bank_name" validate:"max=200"`
	IBAN     string          `json:"iban" validate:"max=34"`
	Balance  decimal.Decimal `json:"balance"`
	Currency Currency        `json:"currency" validate:"omitempty,currency"`
}

type TransactionRequest struct {
	Type          TransactionType `json:"type" validate:"required,oneof=income expense purchase sale"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      Currency        `json:"currency" validate:"omitempty,currency"`
	PaymentMethod PaymentMethod   `json:"payment_method" validate:"required,oneof=cash bank"`
	AccountID     string          `json:"account_id"`
	ProductID     string          `json:"product_id"`
	BankAccountID string          `json:"bank_account_id"`
	Description   string          `json:"description" validate:"max=1000"`
	Date          *time.Time      `json:"date"`
	AffectsStock  bool            `json:"affects_stock"`
	Quantity      int             `json:"quantity" validate:"gte=0"`
	SerialIDs     []string        `json:"serial_ids" validate:"dive,required"`
}

type TransactionResponse struct {
	Transaction Transaction     `json:"transaction"`
	Movement    *StockMovement  `json:"movement,omitempty"`
	Serials     []ProductSerial `json:"serials,omitempty"`
}

type CancelTransactionResponse struct {
	TransactionID string          `json:"transaction_id"`
	Reversed      bool            `json:"reversed"`
	Movements     []StockMovement `json:"movements,omitempty"`
	Serials       []ProductSerial `json:"serials,omitempty"`
}

type ServiceRecordCreateRequest struct {
	CustomerName       string          `json:"customer_name" validate:"required,max=200"`
	CustomerPhone      string          `json:"customer_phone" validate:"max=32"`
	AccountID          string          `json:"account_id"`
	DeviceType         string          `json:"device_type" validate:"required,max=120"`
	Brand              string          `json:"brand" validate:"max=120"`
	Model              string          `json:"model" validate:"max=120"`
	SerialNumber       string          `json:"serial_number" validate:"max=120"`
	ProblemDescription string          `json:"problem_description" validate:"required,max=2000"`
	Price              decimal.Decimal `json:"price"`
	Currency           Currency        `json:"currency" validate:"omitempty,currency"`
	Notes              string          `json:"notes" validate:"max=2000"`
}

type ServiceRecordUpdateRequest struct {
	CustomerName       string `json:"customer_name" validate:"required,max=200"`
	CustomerPhone      string `json:"customer_phone" validate:"max=32"`
	DeviceType         string `json:"device_type" validate:"required,max=120"`
	Brand              string `json:"brand" validate:"max=120"`
	Model              string `json:"model" validate:"max=120"`
	SerialNumber       string `json:"serial_number" validate:"max=120"`
	ProblemDescription string `json:"problem_description" validate:"required,max=2000"`
	Notes              string `json:"notes" validate:"max=2000"`
}

type ServiceAdvanceRequest struct {
	Notes      string `json:"notes" validate:"max=2000"`
	Technician string `json:"technician" validate:"max=200"`
}

type PriceDecisionRequest struct {
	Approve bool            `json:"approve"`
	Price   decimal.Decimal `json:"price"`
	Notes   string          `json:"notes" validate:"max=2000"`
}

type ServiceCancelRequest struct {
	Notes string `json:"notes" validate:"max=2000"`
}

type WarrantyRequest struct {
	Type WarrantyType `json:"type" validate:"required,oneof=none labor parts full"`
	Days int          `json:"days" validate:"gte=0,lte=3650"`
}

type AttachmentRequest struct {
	Stage       AttachmentStage `json:"stage" validate:"required,oneof=entry repair exit delivery"`
	FileName    string          `json:"file_name" validate:"required,max=200"`
	ContentType string          `json:"content_type" validate:"required,max=120"`
}

type AttachmentResponse struct {
	Attachment ServiceAttachment `json:"attachment"`
	UploadURL  string            `json:"upload_url"`
}

type ConvertRequest struct {
	Amount decimal.Decimal `json:"amount"`
	From   Currency        `json:"from" validate:"required,currency"`
	To     Currency        `json:"to" validate:"required,currency"`
}

type ConvertResponse struct {
	Amount    decimal.Decimal `json:"amount"`
	Currency  Currency        `json:"currency"`
	RateKnown bool            `json:"rate_known"`
}

type Summary struct {
	Currency Currency        `json:"currency"`
	Income   decimal.Decimal `json:"income"`
	Expense  decimal.Decimal `json:"expense"`
	Net      decimal.Decimal `json:"net"`
	Count    int             `json:"count"`
}

type MonthlyBucket struct {
	Year    int             `json:"year"`
	Month   int             `json:"month"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Net     decimal.Decimal `json:"net"`
}

type MonthlyReport struct {
	Currency Currency        `json:"currency"`
	Buckets  []MonthlyBucket `json:"buckets"`
}
