package catalog

import "storefront-be/internal/apperror"

var (
	// -- Resource State --
	ErrVariantNotFound = apperror.New(apperror.CodeNotFound, "variant not found")
)
