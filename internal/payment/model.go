package payment

import (
	"encoding/json"
	"time"
)

const ProviderDefault = "gateway"

type EventType string

const (
	EventAuthorizationSucceeded EventType = "authorization.succeeded"
	EventAuthorizationFailed    EventType = "authorization.failed"
	EventRequiresAction         EventType = "authorization.requires_action"
	EventChargeRefunded         EventType = "charge.refunded"
)

func (t EventType) Valid() bool {
	switch t {
	case EventAuthorizationSucceeded, EventAuthorizationFailed, EventRequiresAction, EventChargeRefunded:
		return true
	}
	return false
}

// Event is one gateway callback. EventID is unique per provider and is the
// idempotency key.
type Event struct {
	Provider      string          `json:"provider"`
	EventID       string          `json:"event_id"`
	Type          EventType       `json:"type"`
	OrderID       string          `json:"order_id"`
	Reference     string          `json:"reference,omitempty"`
	Outcome       string          `json:"outcome,omitempty"`
	FailureReason string          `json:"failure_reason,omitempty"`
	Payload       json.RawMessage `json:"-"`
	ReceivedAt    time.Time       `json:"received_at"`
}

type AuthorizationRequest struct {
	AmountCents int64
	Currency    string
	OrderID     string
	OrderNumber string
}

type Authorization struct {
	Reference    string `json:"reference"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
}

type gatewayAuthorizationResponse struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	ClientSecret string `json:"client_secret"`
}
