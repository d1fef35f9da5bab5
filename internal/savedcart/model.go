package savedcart

import (
	"time"

	"github.com/google/uuid"
)

type Trigger string

const (
	TriggerManual     Trigger = "manual"
	TriggerPreRestore Trigger = "pre-restore"
)

func (t Trigger) Valid() bool {
	return t == TriggerManual || t == TriggerPreRestore
}

// ItemSnapshot is a self-contained copy of a cart line. It stays readable
// after the variant or product behind it is gone.
type ItemSnapshot struct {
	VariantID    string  `json:"variant_id"`
	ProductID    string  `json:"product_id"`
	ProductTitle string  `json:"product_title"`
	VariantTitle string  `json:"variant_title"`
	SKU          string  `json:"sku"`
	ImageURL     *string `json:"image_url,omitempty"`
	Quantity     int     `json:"quantity"`
	PriceCents   int64   `json:"price_cents"`
	Note         *string `json:"note,omitempty"`
}

type SavedCart struct {
	ID            string         `json:"id"`
	OwnerKey      string         `json:"-"`
	AccountID     *uuid.UUID     `json:"account_id,omitempty"`
	SessionToken  *string        `json:"-"`
	Label         *string        `json:"label,omitempty"`
	Trigger       Trigger        `json:"trigger"`
	SourceCartID  *string        `json:"source_cart_id,omitempty"`
	Items         []ItemSnapshot `json:"items"`
	ItemCount     int            `json:"item_count"`
	SubtotalCents int64          `json:"subtotal_cents"`
	CreatedAt     time.Time      `json:"created_at"`
	ExpiresAt     time.Time      `json:"expires_at"`
	DeletedAt     *time.Time     `json:"deleted_at,omitempty"`
}

type SnapshotParams struct {
	Trigger Trigger
	Label   string
}

type RestoreResult struct {
	CartID               string   `json:"cart_id"`
	Restored             int      `json:"restored"`
	Skipped              int      `json:"skipped"`
	Warnings             []string `json:"warnings"`
	Message              string   `json:"message"`
	PreRestoreSnapshotID *string  `json:"pre_restore_snapshot_id,omitempty"`
	Interrupted          bool     `json:"interrupted"`
}
