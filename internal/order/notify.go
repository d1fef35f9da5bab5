package order

import (
	"fmt"
	"strings"

	"storefront-be/internal/events"
	"storefront-be/internal/utils"
)

func (s *service) orderURL(o *Order) string {
	return strings.TrimRight(s.cfg.StoreURL, "/") + "/orders/" + o.ID
}

// notify emits the customer notification for kind. Paid orders also alert
// staff so fulfillment can start.
func (s *service) notify(o *Order, kind notifyKind) {
	if s.notifier == nil || o == nil || kind == notifyNone {
		return
	}

	n := events.Notification{
		OrderID:   o.ID,
		OwnerKey:  o.OwnerKey,
		ActionURL: s.orderURL(o),
		Audience:  events.AudienceCustomer,
		CreatedAt: s.now(),
	}

	switch kind {
	case notifyPaid:
		n.Type = "order.paid"
		n.Title = "Payment received"
		n.Subtitle = fmt.Sprintf("Order %s is being prepared.", o.OrderNumber)
	case notifyFailed:
		n.Type = "order.payment_failed"
		n.Title = "Payment failed"
		n.Subtitle = fmt.Sprintf("Order %s: %s", o.OrderNumber, utils.PtrString(o.FailureReason))
	case notifyRefunded:
		n.Type = "order.refunded"
		n.Title = "Refund issued"
		n.Subtitle = fmt.Sprintf("Order %s was refunded %s %s.", o.OrderNumber, o.Currency, utils.FormatCents(o.TotalCents))
	case notifyCancelled:
		n.Type = "order.cancelled"
		n.Title = "Order cancelled"
		n.Subtitle = fmt.Sprintf("Order %s has been cancelled.", o.OrderNumber)
	case notifyFulfilled:
		n.Type = "order.fulfilled"
		n.Title = "Order shipped"
		n.Subtitle = fmt.Sprintf("Order %s is on its way.", o.OrderNumber)
	}

	if kind == notifyPaidCancelled {
		n.Type = "order.paid_after_cancel"
		n.Title = "Payment received for cancelled order"
		n.Subtitle = fmt.Sprintf("%s captured %s %s; issue a refund.", o.OrderNumber, o.Currency, utils.FormatCents(o.TotalCents))
		n.OwnerKey = ""
		n.Audience = events.AudienceStaff
	}

	s.notifier.Notify(n)

	if kind == notifyPaid {
		staff := n
		staff.Type = "order.new"
		staff.Title = "New paid order"
		staff.Subtitle = fmt.Sprintf("%s for %s %s", o.OrderNumber, o.Currency, utils.FormatCents(o.TotalCents))
		staff.OwnerKey = ""
		staff.Audience = events.AudienceStaff
		s.notifier.Notify(staff)
	}
}
