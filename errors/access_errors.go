package errors

import "errors"

var (
	ErrPolicyNotFound    = errors.New("policy not found")
	ErrRoleNotFound      = errors.New("role not found")
	ErrPrincipalNotFound = errors.New("principal not found")
	ErrDecisionNotFound  = errors.New("decision not found")

	ErrInvalidPolicyData    = errors.New("invalid policy data")
	ErrInvalidRoleData      = errors.New("invalid role data")
	ErrInvalidPrincipalData = errors.New("invalid principal data")

	ErrRoleCycle            = errors.New("role graph contains a cycle")
	ErrUnknownConditionType = errors.New("unknown condition type")
	ErrPolicyEvaluation     = errors.New("policy evaluation failed")

	ErrDatabaseOperation = errors.New("database operation failed")
	ErrInternalServer    = errors.New("internal server error")
	ErrUnauthorized      = errors.New("unauthorized")
)
