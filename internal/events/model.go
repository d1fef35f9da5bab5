package events

import "time"

// Topics are logical; the Kafka sink maps them to configured topic names.
const (
	TopicNotifications = "notifications"
	TopicShareViews    = "share_views"
)

type Audience string

const (
	AudienceCustomer Audience = "customer"
	AudienceStaff    Audience = "staff"
)

// Notification is a customer-facing message. Delivery is someone else's
// concern; the core only emits it.
type Notification struct {
	Type      string    `json:"type"`
	OrderID   string    `json:"order_id,omitempty"`
	OwnerKey  string    `json:"owner_key,omitempty"`
	Title     string    `json:"title"`
	Subtitle  string    `json:"subtitle,omitempty"`
	ActionURL string    `json:"action_url,omitempty"`
	Audience  Audience  `json:"audience"`
	CreatedAt time.Time `json:"created_at"`
}

type ShareView struct {
	ShareToken      string    `json:"share_token"`
	ViewerSessionID string    `json:"viewer_session_id,omitempty"`
	IP              string    `json:"ip,omitempty"`
	UserAgent       string    `json:"user_agent,omitempty"`
	Referrer        string    `json:"referrer,omitempty"`
	Cloned          bool      `json:"cloned"`
	ViewedAt        time.Time `json:"viewed_at"`
}

// Envelope is one queued event.
type Envelope struct {
	Topic   string
	Key     string
	Payload any
}

// Notifier never returns an error and never blocks the caller.
type Notifier interface {
	Notify(n Notification)
}

// ViewTracker never returns an error and never blocks the caller.
type ViewTracker interface {
	RecordView(v ShareView)
}
