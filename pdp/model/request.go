package model

import (
	"github.com/hearthguard/sentinel/model"
)

// AccessRequest is one evaluation of (principal, resource, action, context).
type AccessRequest struct {
	PrincipalID string              `json:"principal_id"`
	Resource    string              `json:"resource"`
	Action      string              `json:"action"`
	Context     model.AccessContext `json:"context"`
}
