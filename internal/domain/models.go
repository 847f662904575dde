package domain

import "time"

// Amounts are integer minor currency units (cents) everywhere. Conversion to
// a decimal representation happens only at the display boundary.

type Product struct {
	ID           string    `json:"id"`
	SKU          string    `json:"sku"`
	Name         string    `json:"name"`
	PriceMinor   int64     `json:"price_minor"`
	CostMinor    int64     `json:"cost_minor"`
	AvailableQty int       `json:"available_qty"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type ProductCreateRequest struct {
	SKU          string `json:"sku" validate:"required"`
	Name         string `json:"name" validate:"required"`
	PriceMinor   int64  `json:"price_minor" validate:"gt=0"`
	CostMinor    int64  `json:"cost_minor" validate:"gte=0"`
	InitialStock int    `json:"initial_stock" validate:"gte=0"`
}

// CartLine is one product entry in a cart or draft. SnapshotStock records the
// availability observed at the last validation; commit re-checks it against
// the live row, never trusts it.
type CartLine struct {
	ProductID      string `json:"product_id" validate:"required"`
	UnitPriceMinor int64  `json:"unit_price_minor"`
	Quantity       int    `json:"quantity" validate:"gte=1"`
	SnapshotStock  int    `json:"snapshot_stock"`
}

// Cart is the in-progress sale a client is building. DraftID is empty until
// the cart has been persisted as a draft order.
type Cart struct {
	DraftID       string     `json:"draft_id,omitempty"`
	OwnerUserID   string     `json:"owner_user_id"`
	CustomerID    string     `json:"customer_id,omitempty"`
	Lines         []CartLine `json:"lines"`
	ShippingMinor int64      `json:"shipping_minor"`
	Name          string     `json:"name,omitempty"`
}

// DraftOrder is a persisted, resumable cart. The id is assigned on first save
// and reused on later saves (upsert, not append).
type DraftOrder struct {
	ID            string     `json:"id"`
	OwnerUserID   string     `json:"owner_user_id"`
	CustomerID    string     `json:"customer_id,omitempty"`
	Lines         []CartLine `json:"lines"`
	ShippingMinor int64      `json:"shipping_minor"`
	Name          string     `json:"name,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type DraftSaveRequest struct {
	DraftID       string     `json:"draft_id,omitempty"`
	CustomerID    string     `json:"customer_id,omitempty"`
	Name          string     `json:"name,omitempty"`
	ShippingMinor int64      `json:"shipping_minor" validate:"gte=0"`
	Lines         []CartLine `json:"lines" validate:"min=1,dive"`
}

type DraftListResponse struct {
	Drafts []DraftOrder `json:"drafts"`
}

const (
	PaymentCash  = "cash"
	PaymentCard  = "card"
	PaymentSplit = "split"
)

const (
	SaleStatusPaid = "paid"
)

// Sale is immutable once created. Later compensations are new records, never
// edits of this row. TotalMinor = SubtotalMinor + TaxMinor + ShippingMinor is
// verified at commit, not merely computed.
type Sale struct {
	ID                string     `json:"id"`
	UserID            string     `json:"user_id"`
	CustomerID        string     `json:"customer_id,omitempty"`
	SubtotalMinor     int64      `json:"subtotal_minor"`
	TaxMinor          int64      `json:"tax_minor"`
	ShippingMinor     int64      `json:"shipping_minor"`
	TotalMinor        int64      `json:"total_minor"`
	PaymentMethod     string     `json:"payment_method"`
	PaymentStatus     string     `json:"payment_status"`
	CashTenderedMinor int64      `json:"cash_tendered_minor,omitempty"`
	ChangeGivenMinor  int64      `json:"change_given_minor"`
	CreatedAt         time.Time  `json:"created_at"`
	Lines             []SaleLine `json:"lines"`
}

// SaleLine is created atomically with its parent Sale and never deleted on
// its own. Product name and SKU are denormalized for receipt rendering.
type SaleLine struct {
	SaleID            string `json:"sale_id"`
	ProductID         string `json:"product_id"`
	ProductName       string `json:"product_name"`
	SKU               string `json:"sku"`
	Quantity          int    `json:"quantity"`
	UnitPriceMinor    int64  `json:"unit_price_minor"`
	LineSubtotalMinor int64  `json:"line_subtotal_minor"`
}

type CashDrawerBalance struct {
	UserID       string    `json:"user_id"`
	BalanceMinor int64     `json:"balance_minor"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CashAdjustment is the append-only audit record written whenever a
// privileged user overrides a drawer balance. Never mutated or deleted.
type CashAdjustment struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	AdminID        string    `json:"admin_id"`
	OldAmountMinor int64     `json:"old_amount_minor"`
	NewAmountMinor int64     `json:"new_amount_minor"`
	Reason         string    `json:"reason,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type CashDrawerAdjustRequest struct {
	UserID          string `json:"user_id" validate:"required"`
	NewBalanceMinor int64  `json:"new_balance_minor"`
	Reason          string `json:"reason,omitempty"`
}

type TaxConfig struct {
	RatePercent float64 `json:"rate_percent" validate:"gte=0,lte=100"`
	Inclusive   bool    `json:"inclusive"`
}

type StockRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gte=1"`
}

// StockShortfall describes one line whose requested quantity exceeds the
// currently available stock.
type StockShortfall struct {
	ProductID string `json:"product_id"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

type StockCheckRequest struct {
	Items []StockRequest `json:"items" validate:"min=1,dive"`
}

type StockCheckResponse struct {
	OK         bool             `json:"ok"`
	Shortfalls []StockShortfall `json:"shortfalls,omitempty"`
}

// SaleCommitRequest is the confirmed payment action for a cart. SessionID
// scopes the commit guard; it defaults to the acting user when empty.
// DraftID, when set, names the draft this cart was hydrated from; it is
// deleted after a successful commit.
type SaleCommitRequest struct {
	SessionID         string         `json:"session_id,omitempty"`
	CustomerID        string         `json:"customer_id,omitempty"`
	DraftID           string         `json:"draft_id,omitempty"`
	Lines             []StockRequest `json:"lines" validate:"min=1,dive"`
	ShippingMinor     int64          `json:"shipping_minor" validate:"gte=0"`
	PaymentMethod     string         `json:"payment_method" validate:"required,oneof=cash card split"`
	CashTenderedMinor int64          `json:"cash_tendered_minor"`
	CashPortionMinor  int64          `json:"cash_portion_minor"`
}

// CommitResult is what receipt rendering consumes. DrawerBalanceMinor is the
// authoritative post-commit balance read back from the store, not computed
// client-side; it is omitted entirely when that read fails.
type CommitResult struct {
	SaleID             string           `json:"sale_id"`
	SubtotalMinor      int64            `json:"subtotal_minor"`
	TaxMinor           int64            `json:"tax_minor"`
	ShippingMinor      int64            `json:"shipping_minor"`
	TotalMinor         int64            `json:"total_minor"`
	PaymentMethod      string           `json:"payment_method"`
	CashTenderedMinor  int64            `json:"cash_tendered_minor,omitempty"`
	ChangeGivenMinor   int64            `json:"change_given_minor"`
	CashPortionMinor   int64            `json:"cash_portion_minor,omitempty"`
	CardPortionMinor   int64            `json:"card_portion_minor,omitempty"`
	DrawerBalanceMinor *int64           `json:"drawer_balance_minor,omitempty"`
	Lines              []SaleLine       `json:"lines"`
	CashierID          string           `json:"cashier_id"`
	CustomerID         string           `json:"customer_id,omitempty"`
	CreatedAt          string           `json:"created_at"`
	Shortfalls         []StockShortfall `json:"shortfalls,omitempty"`
}

type ReceiptResponse struct {
	SaleID       string `json:"sale_id"`
	EscposBase64 string `json:"escpos_base64"`
	PreviewText  string `json:"preview_text"`
	FileName     string `json:"file_name"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

const (
	RoleAdmin    = "admin"
	RoleCashier  = "cashier"
	RoleCustomer = "customer"
)

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type UserCreateRequest struct {
	Username string `json:"username" validate:"required,min=4"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role" validate:"omitempty,oneof=admin cashier customer"`
}

type UserView struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}
