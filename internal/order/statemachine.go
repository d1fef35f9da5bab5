package order

import (
	"time"

	"storefront-be/internal/payment"
)

var statusTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusFulfilled, StatusRefunded, StatusCancelled},
}

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending: {PaymentPaid, PaymentFailed},
	PaymentFailed:  {PaymentPaid, PaymentPending},
	PaymentPaid:    {PaymentRefunded},
}

func (s Status) CanTransition(to Status) bool {
	for _, next := range statusTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (p PaymentStatus) CanTransition(to PaymentStatus) bool {
	for _, next := range paymentTransitions[p] {
		if next == to {
			return true
		}
	}
	return false
}

type notifyKind int

const (
	notifyNone notifyKind = iota
	notifyPaid
	notifyFailed
	notifyRefunded
	notifyCancelled
	notifyFulfilled
	notifyPaidCancelled
)

// transition is the effect of one payment event on an order.
type transition struct {
	Changed bool
	Note    string
	Notify  notifyKind
	Restock bool
}

// applyEvent mutates o according to e. Events that do not fit the current
// state leave o untouched and explain why in Note.
func applyEvent(o *Order, e payment.Event, now time.Time) transition {
	switch e.Type {
	case payment.EventAuthorizationSucceeded:
		if o.Status == StatusCancelled && o.PaymentStatus.CanTransition(PaymentPaid) {
			// money was captured after the shopper cancelled; staff must refund it
			o.PaymentStatus = PaymentPaid
			o.RequiresAction = false
			o.FailureReason = nil
			o.PaidAt = &now
			return transition{Changed: true, Notify: notifyPaidCancelled}
		}
		if o.Status != StatusPending || !o.PaymentStatus.CanTransition(PaymentPaid) {
			return transition{Note: "order is not awaiting payment"}
		}
		o.PaymentStatus = PaymentPaid
		o.Status = StatusProcessing
		o.RequiresAction = false
		o.FailureReason = nil
		o.PaidAt = &now
		if e.Reference != "" && o.PaymentReference == nil {
			ref := e.Reference
			o.PaymentReference = &ref
		}
		return transition{Changed: true, Notify: notifyPaid}

	case payment.EventAuthorizationFailed:
		if o.Status != StatusPending || o.PaymentStatus != PaymentPending {
			return transition{Note: "order is not awaiting payment"}
		}
		o.PaymentStatus = PaymentFailed
		o.RequiresAction = false
		reason := e.FailureReason
		if reason == "" {
			reason = "payment was declined"
		}
		o.FailureReason = &reason
		return transition{Changed: true, Notify: notifyFailed}

	case payment.EventRequiresAction:
		if o.Status != StatusPending || o.PaymentStatus != PaymentPending {
			return transition{Note: "order is not awaiting payment"}
		}
		if o.RequiresAction {
			return transition{Note: "action already required"}
		}
		o.RequiresAction = true
		return transition{Changed: true}

	case payment.EventChargeRefunded:
		if o.Status == StatusCancelled && o.PaymentStatus == PaymentPaid {
			// cancellation already returned the stock
			o.PaymentStatus = PaymentRefunded
			o.RefundedAt = &now
			return transition{Changed: true, Notify: notifyRefunded}
		}
		if !o.Status.CanTransition(StatusRefunded) || !o.PaymentStatus.CanTransition(PaymentRefunded) {
			return transition{Note: "order cannot be refunded from its current state"}
		}
		o.PaymentStatus = PaymentRefunded
		o.Status = StatusRefunded
		o.RefundedAt = &now
		return transition{Changed: true, Notify: notifyRefunded, Restock: true}
	}

	return transition{Note: "unsupported event type"}
}
