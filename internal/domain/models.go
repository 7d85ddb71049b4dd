package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PaymentStatusPending   = "PENDING"
	PaymentStatusCompleted = "COMPLETED"
)

const (
	RoleAdmin   = "admin"
	RoleCashier = "cashier"
)

type InventoryItem struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	CostBasisCents      int64      `json:"cost_basis_cents"`
	ListPriceCents      int64      `json:"list_price_cents"`
	MarkdownPriceCents  *int64     `json:"markdown_price_cents,omitempty"`
	SalePriceCents      *int64     `json:"sale_price_cents,omitempty"`
	Quantity            int        `json:"quantity"`
	ListedOnMarketplace bool       `json:"listed_on_marketplace"`
	SoldOnMarketplace   bool       `json:"sold_on_marketplace"`
	SaleID              string     `json:"sale_id,omitempty"`
	SoldAt              *time.Time `json:"sold_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

// EffectivePriceCents is the amount the item is reported at: the realized sale
// price when known, otherwise the markdown price, otherwise the list price.
func (i InventoryItem) EffectivePriceCents() int64 {
	if i.SalePriceCents != nil {
		return *i.SalePriceCents
	}
	if i.MarkdownPriceCents != nil {
		return *i.MarkdownPriceCents
	}
	return i.ListPriceCents
}

type Sale struct {
	ID            string    `json:"id"`
	SubtotalCents int64     `json:"subtotal_cents"`
	TotalCents    int64     `json:"total_cents"`
	DiscountCents int64     `json:"discount_cents"`
	PaymentID     string    `json:"payment_id,omitempty"`
	OrderID       string    `json:"order_id,omitempty"`
	CheckoutID    string    `json:"checkout_id,omitempty"`
	PaymentStatus string    `json:"payment_status"`
	ReceiptURL    string    `json:"receipt_url,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// SaleLink carries the fields written onto an item when it is attached to a sale.
type SaleLink struct {
	ItemID            string
	SaleID            string
	SalePriceCents    int64
	SoldAt            time.Time
	SoldOnMarketplace bool
}

// SoldItem is an item joined with the sale it is linked to.
type SoldItem struct {
	Item InventoryItem
	Sale Sale
}

type PeriodRow struct {
	Date             string  `json:"date"`
	StoreTotal       float64 `json:"store_total"`
	MarketplaceTotal float64 `json:"marketplace_total"`
	Total            float64 `json:"total"`
	Count            int     `json:"count"`
}

type SalesReport struct {
	Timezone    string      `json:"timezone"`
	Granularity string      `json:"granularity"`
	Rows        []PeriodRow `json:"rows"`
}

type StaffUser struct {
	Username  string    `json:"username"`
	Password  string    `json:"-"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
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

type DirectSaleRequest struct {
	ItemIDs       []string   `json:"item_ids"`
	DiscountCents int64      `json:"discount_cents"`
	CreatedAt     *time.Time `json:"created_at,omitempty"`
}

type SaleResponse struct {
	Sale  Sale            `json:"sale"`
	Items []InventoryItem `json:"items,omitempty"`
}

type CheckoutStatusResponse struct {
	CheckoutID string `json:"checkout_id"`
	Status     string `json:"status"`
	SaleID     string `json:"sale_id,omitempty"`
}

// CartLine is one line of a terminal checkout. Price is in major units.
type CartLine struct {
	ItemID   string          `json:"item_id,omitempty"`
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

type TerminalCheckoutRequest struct {
	LineItems []CartLine      `json:"line_items"`
	Discount  decimal.Decimal `json:"discount"`
}

type TerminalCheckoutResponse struct {
	CheckoutID  string `json:"checkout_id"`
	OrderID     string `json:"order_id"`
	AmountCents int64  `json:"amount_cents"`
	Status      string `json:"status"`
}
