// Package apperror defines the error taxonomy shared by the commerce core.
// Every error returned across a service boundary is either an *Error or wraps one.
package apperror

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	pkgerrors "github.com/pkg/errors"
)

type Code string

const (
	CodeNoIdentity          Code = "NO_IDENTITY"
	CodeNotFound            Code = "NOT_FOUND"
	CodeForbidden           Code = "FORBIDDEN"
	CodeExpired             Code = "EXPIRED"
	CodeInvalidQuantity     Code = "INVALID_QUANTITY"
	CodeVariantInactive     Code = "VARIANT_INACTIVE"
	CodeOutOfStock          Code = "OUT_OF_STOCK"
	CodeInvalidInput        Code = "INVALID_INPUT"
	CodeInvalidPromo        Code = "INVALID_PROMO"
	CodeInvalidTransition   Code = "INVALID_TRANSITION"
	CodeCreateFailed        Code = "CREATE_FAILED"
	CodePaymentGatewayError Code = "PAYMENT_GATEWAY_ERROR"
	CodeTimeout             Code = "TIMEOUT"
)

// Error is the application error. Two errors are considered equal by errors.Is
// when their codes match, so callers can test against the sentinels below.
type Error struct {
	Code    Code
	Message string
	Details string
	// Available is the remaining stock for OUT_OF_STOCK errors.
	Available *int
	cause     error
}

var (
	ErrNoIdentity          = &Error{Code: CodeNoIdentity, Message: "no caller identity"}
	ErrNotFound            = &Error{Code: CodeNotFound, Message: "not found"}
	ErrForbidden           = &Error{Code: CodeForbidden, Message: "forbidden"}
	ErrExpired             = &Error{Code: CodeExpired, Message: "expired"}
	ErrInvalidQuantity     = &Error{Code: CodeInvalidQuantity, Message: "quantity must be between 1 and 99"}
	ErrVariantInactive     = &Error{Code: CodeVariantInactive, Message: "variant is not available"}
	ErrOutOfStock          = &Error{Code: CodeOutOfStock, Message: "not enough stock"}
	ErrInvalidInput        = &Error{Code: CodeInvalidInput, Message: "invalid input"}
	ErrInvalidPromo        = &Error{Code: CodeInvalidPromo, Message: "promo code is not valid"}
	ErrInvalidTransition   = &Error{Code: CodeInvalidTransition, Message: "invalid state transition"}
	ErrCreateFailed        = &Error{Code: CodeCreateFailed, Message: "failed to save changes"}
	ErrPaymentGatewayError = &Error{Code: CodePaymentGatewayError, Message: "payment provider error"}
	ErrTimeout             = &Error{Code: CodeTimeout, Message: "request timed out, please retry"}
)

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches cause (with a stack trace) to a new error of the given code.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: pkgerrors.WithStack(cause)}
}

// OutOfStock builds the user-facing stock error carrying the remaining count.
func OutOfStock(available int) *Error {
	if available < 0 {
		available = 0
	}
	return &Error{
		Code:      CodeOutOfStock,
		Message:   fmt.Sprintf("only %d left in stock", available),
		Available: &available,
	}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// WithDetails returns a copy of e carrying details.
func (e *Error) WithDetails(details string) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// Retryable reports whether the caller may retry the same request unchanged.
func (e *Error) Retryable() bool {
	return e.Code == CodeTimeout || e.Code == CodePaymentGatewayError
}

func (e *Error) HTTPStatus() int {
	return HTTPStatus(e.Code)
}

func HTTPStatus(code Code) int {
	switch code {
	case CodeNoIdentity:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	case CodeForbidden:
		return http.StatusForbidden
	case CodeExpired:
		return http.StatusGone
	case CodeInvalidQuantity, CodeVariantInactive, CodeInvalidInput, CodeInvalidPromo:
		return http.StatusUnprocessableEntity
	case CodeOutOfStock, CodeInvalidTransition:
		return http.StatusConflict
	case CodePaymentGatewayError:
		return http.StatusBadGateway
	case CodeTimeout:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// From extracts the *Error in err's chain. Anything else is reported as
// CREATE_FAILED, or TIMEOUT when the chain holds a context deadline/cancel.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	if IsTimeout(err) {
		return Wrap(CodeTimeout, ErrTimeout.Message, err)
	}
	return Wrap(CodeCreateFailed, ErrCreateFailed.Message, err)
}

// Store classifies a store failure: *Error passes through, timeouts become
// TIMEOUT, everything else becomes code with message.
func Store(code Code, message string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return err
	}
	if IsTimeout(err) {
		return Wrap(CodeTimeout, ErrTimeout.Message, err)
	}
	return Wrap(code, message, err)
}

func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

func CodeOf(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
