package cart

import "storefront-be/internal/apperror"

var (
	// -- Authorization --
	ErrNotCartOwner = apperror.New(apperror.CodeForbidden, "cart belongs to another owner")

	// -- Validation & Input --
	ErrCartClosed = apperror.New(apperror.CodeInvalidInput, "cart is no longer active")

	// -- Resource State --
	ErrCartNotFound     = apperror.New(apperror.CodeNotFound, "cart not found")
	ErrCartItemNotFound = apperror.New(apperror.CodeNotFound, "cart item not found")
)

// -- Database & Operation Failures --
const (
	msgFailedGetCart    = "failed to load cart"
	msgFailedAddItem    = "failed to add item to cart"
	msgFailedUpdateItem = "failed to update cart item"
	msgFailedRemoveItem = "failed to remove cart item"
	msgFailedClearCart  = "failed to clear cart"
)
