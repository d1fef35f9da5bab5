package sharing

import "storefront-be/internal/apperror"

var (
	// -- Validation & Input --
	ErrInvalidDaysValid = apperror.Newf(apperror.CodeInvalidInput, "days valid must be between %d and %d", MinDaysValid, MaxDaysValid)
	ErrCloneIntoSelf    = apperror.New(apperror.CodeInvalidInput, "cannot clone a cart into itself")

	// -- Resource State --
	ErrShareNotFound = apperror.New(apperror.CodeNotFound, "shared cart not found")
	ErrShareExpired  = apperror.New(apperror.CodeExpired, "this shared cart link has expired")
)

// -- Database & Operation Failures --
const (
	msgFailedEnableShare  = "failed to enable sharing"
	msgFailedDisableShare = "failed to disable sharing"
	msgFailedLoadShare    = "failed to load shared cart"
	msgFailedClone        = "failed to clone shared cart"
)
