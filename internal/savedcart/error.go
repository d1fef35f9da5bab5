package savedcart

import "storefront-be/internal/apperror"

var (
	// -- Validation & Input --
	ErrInvalidTrigger = apperror.New(apperror.CodeInvalidInput, "invalid snapshot trigger")

	// -- Resource State --
	ErrSavedCartNotFound = apperror.New(apperror.CodeNotFound, "saved cart not found")
	ErrSavedCartExpired  = apperror.New(apperror.CodeExpired, "this saved cart has expired")
)

// -- Database & Operation Failures --
const (
	msgFailedSnapshot = "failed to save cart"
	msgFailedLoad     = "failed to load saved cart"
	msgFailedRestore  = "failed to restore saved cart"
	msgFailedDelete   = "failed to delete saved cart"
	msgFailedPurge    = "failed to purge saved carts"
)
