package errors

import "errors"

var (
	ErrIncidentNotFound        = errors.New("incident not found")
	ErrIncidentVersionConflict = errors.New("incident version conflict")
	ErrInvalidTransition       = errors.New("invalid incident transition")
	ErrResolutionNoteRequired  = errors.New("resolution note required")
	ErrJustificationRequired   = errors.New("false-positive justification required")
)
