package payment

import "errors"

var (
	ErrInvalidCallbackToken = errors.New("invalid webhook callback token")
	ErrEmptyReference       = errors.New("gateway returned no authorization reference")
)
