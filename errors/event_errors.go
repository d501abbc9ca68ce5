package errors

import "errors"

var (
	ErrEventValidation = errors.New("event validation failed")
	ErrEventNotFound   = errors.New("event not found")
	ErrAlertNotFound   = errors.New("alert not found")
)
