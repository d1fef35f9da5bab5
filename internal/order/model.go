package order

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusFulfilled  Status = "fulfilled"
	StatusRefunded   Status = "refunded"
	StatusCancelled  Status = "cancelled"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

type ShippingInfo struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone,omitempty"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type Order struct {
	ID               string        `json:"id"`
	OrderNumber      string        `json:"order_number"`
	OwnerKey         string        `json:"-"`
	AccountID        *uuid.UUID    `json:"account_id,omitempty"`
	SessionToken     *string       `json:"-"`
	CartID           string        `json:"cart_id"`
	Status           Status        `json:"status"`
	PaymentStatus    PaymentStatus `json:"payment_status"`
	SubtotalCents    int64         `json:"subtotal_cents"`
	ShippingCents    int64         `json:"shipping_cents"`
	TaxCents         int64         `json:"tax_cents"`
	DiscountCents    int64         `json:"discount_cents"`
	TotalCents       int64         `json:"total_cents"`
	Currency         string        `json:"currency"`
	PromoCode        *string       `json:"promo_code,omitempty"`
	ShippingRateID   *string       `json:"shipping_rate_id,omitempty"`
	Shipping         ShippingInfo  `json:"shipping"`
	PaymentReference *string       `json:"payment_reference,omitempty"`
	RequiresAction   bool          `json:"requires_action"`
	FailureReason    *string       `json:"failure_reason,omitempty"`
	PaidAt           *time.Time    `json:"paid_at,omitempty"`
	CancelledAt      *time.Time    `json:"cancelled_at,omitempty"`
	FulfilledAt      *time.Time    `json:"fulfilled_at,omitempty"`
	RefundedAt       *time.Time    `json:"refunded_at,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
	Items            []Item        `json:"items,omitempty"`
}

// Item is copied from the cart at checkout and never follows later catalog
// edits.
type Item struct {
	ID             string `json:"id"`
	OrderID        string `json:"order_id"`
	VariantID      string `json:"variant_id"`
	ProductID      string `json:"product_id"`
	ProductTitle   string `json:"product_title"`
	VariantTitle   string `json:"variant_title"`
	SKU            string `json:"sku"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	LineTotalCents int64  `json:"line_total_cents"`
	// StockTracked records whether checkout wrote a sale movement, so
	// refunds and cancellations only restock what was taken.
	StockTracked bool `json:"-"`
}

type CreateParams struct {
	Shipping       ShippingInfo
	ShippingRateID string
	PromoCode      string
}

// CheckoutResult is returned by CreateOrder and RetryAuthorization.
// ClientSecret is empty for zero-total orders.
type CheckoutResult struct {
	Order        *Order `json:"order"`
	ClientSecret string `json:"client_secret,omitempty"`
}

type EventOutcome struct {
	OrderID       string        `json:"order_id"`
	Duplicate     bool          `json:"duplicate"`
	Applied       bool          `json:"applied"`
	Status        Status        `json:"status,omitempty"`
	PaymentStatus PaymentStatus `json:"payment_status,omitempty"`
	Note          string        `json:"note,omitempty"`
}
