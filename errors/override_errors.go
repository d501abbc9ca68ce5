package errors

import "errors"

var (
	ErrInvalidReasonCode   = errors.New("invalid override reason code")
	ErrExplanationRequired = errors.New("override explanation required")
	ErrOverrideNotFound    = errors.New("override not found")
)
