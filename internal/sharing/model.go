package sharing

import (
	"time"

	"storefront-be/internal/cart"
)

const (
	MinDaysValid = 1
	MaxDaysValid = 90

	maxTokenAttempts = 3
)

type Config struct {
	// DefaultDays applies when EnableParams.DaysValid is zero.
	DefaultDays int
	// StoreURL prefixes the public share link.
	StoreURL string
}

type EnableParams struct {
	Label     string
	Message   string
	DaysValid int
}

type ShareInfo struct {
	CartID    string    `json:"cart_id"`
	Token     string    `json:"share_token"`
	URL       string    `json:"share_url"`
	Label     *string   `json:"label,omitempty"`
	Message   *string   `json:"message,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ViewContext describes who is looking at a shared cart. All fields are
// optional and only feed the view tracker.
type ViewContext struct {
	ViewerSessionID string
	IP              string
	UserAgent       string
	Referrer        string
}

type SharedView struct {
	Label         *string     `json:"label,omitempty"`
	Message       *string     `json:"message,omitempty"`
	ExpiresAt     *time.Time  `json:"expires_at,omitempty"`
	Lines         []cart.Line `json:"lines"`
	ItemCount     int         `json:"item_count"`
	SubtotalCents int64       `json:"subtotal_cents"`
}

type CloneResult struct {
	CartID   string   `json:"cart_id"`
	Cloned   int      `json:"cloned"`
	Skipped  int      `json:"skipped"`
	Warnings []string `json:"warnings"`
	// Interrupted is set when a timeout stopped the copy after some lines merged.
	Interrupted bool `json:"interrupted"`
}
