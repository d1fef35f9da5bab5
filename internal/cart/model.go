package cart

import (
	"time"

	"github.com/google/uuid"
)

const MaxItemQuantity = 99

type Status string

const (
	StatusActive Status = "active"
	StatusClosed Status = "closed"
)

type Cart struct {
	ID             string     `json:"id"`
	OwnerKey       string     `json:"-"`
	AccountID      *uuid.UUID `json:"account_id,omitempty"`
	SessionToken   *string    `json:"-"`
	Status         Status     `json:"status"`
	ShareToken     *string    `json:"share_token,omitempty"`
	ShareEnabled   bool       `json:"share_enabled"`
	ShareExpiresAt *time.Time `json:"share_expires_at,omitempty"`
	ShareLabel     *string    `json:"share_label,omitempty"`
	ShareMessage   *string    `json:"share_message,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type Item struct {
	ID                 string    `json:"id"`
	CartID             string    `json:"cart_id"`
	VariantID          string    `json:"variant_id"`
	Quantity           int       `json:"quantity"`
	PriceCentsSnapshot int64     `json:"price_cents_snapshot"`
	AddedNote          *string   `json:"added_note,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type AddItemParams struct {
	VariantID string
	Quantity  int
	Note      string
}

// MergeParams drives the merge-or-insert rule shared by add, clone and
// restore. Reprice replaces the stored price with the live one.
type MergeParams struct {
	VariantID string
	Quantity  int
	Reprice   bool
	Note      string
}

type MergeResult struct {
	Item *Item
	// Existed is true when the variant was already in the cart.
	Existed bool
	// Capped is true when the merged quantity hit MaxItemQuantity.
	Capped         bool
	LivePriceCents int64
}

// Line is one cart item joined with its live catalog data.
type Line struct {
	ItemID         string    `json:"item_id"`
	VariantID      string    `json:"variant_id"`
	ProductID      string    `json:"product_id"`
	ProductTitle   string    `json:"product_title"`
	VariantTitle   string    `json:"variant_title"`
	SKU            string    `json:"sku"`
	ImageURL       *string   `json:"image_url,omitempty"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	LivePriceCents int64     `json:"live_price_cents"`
	PriceChanged   bool      `json:"price_changed"`
	LineTotalCents int64     `json:"line_total_cents"`
	IsActive       bool      `json:"is_active"`
	Note           *string   `json:"note,omitempty"`
	AddedAt        time.Time `json:"added_at"`
}

type View struct {
	CartID        *string `json:"cart_id"`
	Status        Status  `json:"status,omitempty"`
	Lines         []Line  `json:"lines"`
	ItemCount     int     `json:"item_count"`
	SubtotalCents int64   `json:"subtotal_cents"`
	ShareEnabled  bool    `json:"share_enabled"`
	ShareToken    *string `json:"share_token,omitempty"`
	ShareLabel    *string `json:"share_label,omitempty"`
	ShareMessage  *string `json:"share_message,omitempty"`
	ShareExpires  *string `json:"share_expires_at,omitempty"`
}

type ShareSettings struct {
	Token     string
	ExpiresAt time.Time
	Label     *string
	Message   *string
}

type upsertItemParams struct {
	CartID     string
	VariantID  string
	Quantity   int
	PriceCents int64
	Reprice    bool
	Note       *string
}
