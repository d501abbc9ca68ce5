package errors

import "errors"

var (
	ErrKillSwitchTargetNotFound = errors.New("kill switch target not found")
	ErrKillSwitchNotFound       = errors.New("kill switch action not found")
	ErrInvalidTargetType        = errors.New("invalid kill switch target type")
)
