package util

import (
	"fmt"

	sentinel_errors "github.com/hearthguard/sentinel/errors"
	"github.com/hearthguard/sentinel/model"
)

type ValidationUtil struct{}

func NewValidationUtil() *ValidationUtil {
	return &ValidationUtil{}
}

func (v *ValidationUtil) ValidatePolicy(policy model.Policy) error {
	if policy.Name == "" {
		return fmt.Errorf("%w: policy name cannot be empty", sentinel_errors.ErrInvalidPolicyData)
	}
	if !policy.Effect.Valid() {
		return fmt.Errorf("%w: policy effect must be either 'allow' or 'deny'", sentinel_errors.ErrInvalidPolicyData)
	}
	if policy.Priority < 0 {
		return fmt.Errorf("%w: policy priority cannot be negative", sentinel_errors.ErrInvalidPolicyData)
	}
	if policy.Resource == "" {
		return fmt.Errorf("%w: policy resource pattern cannot be empty", sentinel_errors.ErrInvalidPolicyData)
	}
	if policy.Action == "" {
		return fmt.Errorf("%w: policy action pattern cannot be empty", sentinel_errors.ErrInvalidPolicyData)
	}
	for _, c := range policy.Conditions {
		if !c.Type.Known() {
			return fmt.Errorf("%w: policy condition type %q", sentinel_errors.ErrUnknownConditionType, c.Type)
		}
	}
	return nil
}

func (v *ValidationUtil) ValidateRole(role model.Role) error {
	if role.ID == "" {
		return fmt.Errorf("%w: role ID cannot be empty", sentinel_errors.ErrInvalidRoleData)
	}
	if role.Name == "" {
		return fmt.Errorf("%w: role name cannot be empty", sentinel_errors.ErrInvalidRoleData)
	}
	return nil
}

func (v *ValidationUtil) ValidatePrincipal(principal model.Principal) error {
	if principal.ID == "" {
		return fmt.Errorf("%w: principal ID cannot be empty", sentinel_errors.ErrInvalidPrincipalData)
	}
	return nil
}

func (v *ValidationUtil) ValidateOverride(reason model.ReasonCode, explanation string) error {
	if !reason.Valid() {
		return fmt.Errorf("%w: %q", sentinel_errors.ErrInvalidReasonCode, reason)
	}
	if explanation == "" {
		return sentinel_errors.ErrExplanationRequired
	}
	return nil
}

func (v *ValidationUtil) ValidateTargetType(targetType model.TargetType) error {
	if !targetType.Valid() {
		return fmt.Errorf("%w: %q", sentinel_errors.ErrInvalidTargetType, targetType)
	}
	return nil
}
