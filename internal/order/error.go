package order

import "storefront-be/internal/apperror"

var (
	// -- Authorization --
	ErrNotOrderOwner = apperror.New(apperror.CodeForbidden, "order belongs to another owner")

	// -- Validation & Input --
	ErrEmptyCart            = apperror.New(apperror.CodeInvalidInput, "cart is empty")
	ErrShippingRequired     = apperror.New(apperror.CodeInvalidInput, "shipping address is incomplete")
	ErrShippingRateNotFound = apperror.New(apperror.CodeInvalidInput, "shipping rate not available")
	ErrMissingEventFields   = apperror.New(apperror.CodeInvalidInput, "event id and order id are required")
	ErrAmbiguousTax         = apperror.New(apperror.CodeCreateFailed, "more than one tax rate applies to this state")

	// -- Promo --
	ErrPromoNotFound    = apperror.New(apperror.CodeInvalidPromo, "promo code not found")
	ErrPromoInactive    = apperror.New(apperror.CodeInvalidPromo, "promo code is not active")
	ErrPromoExhausted   = apperror.New(apperror.CodeInvalidPromo, "promo code usage limit reached")
	ErrPromoMinSubtotal = apperror.New(apperror.CodeInvalidPromo, "order does not meet the promo minimum")
	ErrPromoNotStarted  = apperror.New(apperror.CodeInvalidPromo, "promo code is not valid yet")
	ErrPromoExpired     = apperror.New(apperror.CodeInvalidPromo, "promo code has expired")

	// -- Resource State --
	ErrOrderNotFound     = apperror.New(apperror.CodeNotFound, "order not found")
	ErrTransitionDenied  = apperror.New(apperror.CodeInvalidTransition, "order cannot move to the requested state")
	ErrAuthorizationDone = apperror.New(apperror.CodeInvalidTransition, "order is not awaiting payment")
)

// -- Database & Operation Failures --
const (
	msgFailedCreateOrder = "failed to create order"
	msgFailedLoadOrder   = "failed to load order"
	msgFailedUpdateOrder = "failed to update order"
	msgFailedAuthorize   = "payment authorization failed, please retry"
	msgFailedEvent       = "failed to process payment event"
)
