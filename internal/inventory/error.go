package inventory

import "storefront-be/internal/apperror"

var (
	// -- Validation & Input --
	ErrZeroDelta     = apperror.New(apperror.CodeInvalidInput, "delta quantity must not be zero")
	ErrInvalidReason = apperror.New(apperror.CodeInvalidInput, "unknown movement reason")
	ErrMissingID     = apperror.New(apperror.CodeInvalidInput, "variant id is required")
)

const msgFailedRecordMovement = "failed to record inventory movement"
