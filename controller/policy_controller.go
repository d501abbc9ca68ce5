package controller

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	sentinel_errors "github.com/hearthguard/sentinel/errors"
	"github.com/hearthguard/sentinel/model"
	"github.com/hearthguard/sentinel/service"
	"github.com/hearthguard/sentinel/util"
)

type PolicyController struct {
	policyService service.IPolicyAdminService
}

func NewPolicyController(policyService service.IPolicyAdminService) *PolicyController {
	return &PolicyController{
		policyService: policyService,
	}
}

// RegisterRoutes registers the API routes
func (pc *PolicyController) RegisterRoutes(r *gin.RouterGroup) {
	policies := r.Group("/policies")
	{
		policies.POST("", pc.CreatePolicy)
		policies.PUT("/:id", pc.UpdatePolicy)
		policies.DELETE("/:id", pc.DeletePolicy)
		policies.GET("/:id", pc.GetPolicy)
		policies.GET("", pc.ListPolicies)
	}
	roles := r.Group("/roles")
	{
		roles.PUT("/:id", pc.UpsertRole)
		roles.DELETE("/:id", pc.DeleteRole)
		roles.GET("/:id", pc.GetRole)
		roles.GET("", pc.ListRoles)
	}
	principals := r.Group("/principals")
	{
		principals.PUT("/:id", pc.UpsertPrincipal)
		principals.DELETE("/:id", pc.DeletePrincipal)
		principals.GET("/:id", pc.GetPrincipal)
		principals.GET("", pc.ListPrincipals)
	}
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func (pc *PolicyController) respondWriteError(c *gin.Context, err error, entity string) {
	switch {
	case errors.Is(err, sentinel_errors.ErrRoleCycle):
		util.RespondWithError(c, http.StatusUnprocessableEntity, "Role hierarchy would contain a cycle", err)
	case errors.Is(err, sentinel_errors.ErrUnknownConditionType):
		util.RespondWithError(c, http.StatusUnprocessableEntity, "Unknown condition type", err)
	case errors.Is(err, sentinel_errors.ErrInvalidPolicyData),
		errors.Is(err, sentinel_errors.ErrInvalidRoleData),
		errors.Is(err, sentinel_errors.ErrInvalidPrincipalData):
		util.RespondWithError(c, http.StatusBadRequest, "Invalid "+entity+" data", err)
	case errors.Is(err, sentinel_errors.ErrPolicyNotFound),
		errors.Is(err, sentinel_errors.ErrRoleNotFound),
		errors.Is(err, sentinel_errors.ErrPrincipalNotFound):
		util.RespondWithError(c, http.StatusNotFound, entity+" not found", err)
	default:
		util.RespondWithError(c, http.StatusInternalServerError, "Failed to save "+entity, sentinel_errors.ErrInternalServer)
	}
}

// CreatePolicy endpoint
func (pc *PolicyController) CreatePolicy(c *gin.Context) {
	var policy model.Policy
	if err := c.ShouldBindJSON(&policy); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid policy data", sentinel_errors.ErrInvalidPolicyData)
		return
	}
	principalID, err := util.GetPrincipalIDFromContext(c)
	if err != nil {
		util.RespondWithError(c, http.StatusUnauthorized, "Unauthorized", sentinel_errors.ErrUnauthorized)
		return
	}

	created, err := pc.policyService.CreatePolicy(c, policy, principalID)
	if err != nil {
		pc.respondWriteError(c, err, "policy")
		return
	}
	c.JSON(http.StatusCreated, created)
}

// UpdatePolicy endpoint
func (pc *PolicyController) UpdatePolicy(c *gin.Context) {
	var policy model.Policy
	if err := c.ShouldBindJSON(&policy); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid policy data", sentinel_errors.ErrInvalidPolicyData)
		return
	}
	policy.ID = c.Param("id")
	principalID, err := util.GetPrincipalIDFromContext(c)
	if err != nil {
		util.RespondWithError(c, http.StatusUnauthorized, "Unauthorized", sentinel_errors.ErrUnauthorized)
		return
	}

	updated, err := pc.policyService.UpdatePolicy(c, policy, principalID)
	if err != nil {
		pc.respondWriteError(c, err, "policy")
		return
	}
	c.JSON(http.StatusOK, updated)
}

// DeletePolicy endpoint
func (pc *PolicyController) DeletePolicy(c *gin.Context) {
	principalID, err := util.GetPrincipalIDFromContext(c)
	if err != nil {
		util.RespondWithError(c, http.StatusUnauthorized, "Unauthorized", sentinel_errors.ErrUnauthorized)
		return
	}
	if err := pc.policyService.DeletePolicy(c, c.Param("id"), principalID); err != nil {
		pc.respondWriteError(c, err, "policy")
		return
	}
	c.Status(http.StatusNoContent)
}

// GetPolicy endpoint
func (pc *PolicyController) GetPolicy(c *gin.Context) {
	policy, err := pc.policyService.GetPolicy(c.Param("id"))
	if err != nil {
		util.RespondWithError(c, http.StatusNotFound, "Policy not found", sentinel_errors.ErrPolicyNotFound)
		return
	}
	c.JSON(http.StatusOK, policy)
}

// ListPolicies endpoint
func (pc *PolicyController) ListPolicies(c *gin.Context) {
	c.JSON(http.StatusOK, pc.policyService.ListPolicies())
}

// UpsertRole endpoint
func (pc *PolicyController) UpsertRole(c *gin.Context) {
	var role model.Role
	if err := c.ShouldBindJSON(&role); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid role data", sentinel_errors.ErrInvalidRoleData)
		return
	}
	role.ID = c.Param("id")
	principalID, err := util.GetPrincipalIDFromContext(c)
	if err != nil {
		util.RespondWithError(c, http.StatusUnauthorized, "Unauthorized", sentinel_errors.ErrUnauthorized)
		return
	}

	saved, err := pc.policyService.UpsertRole(c, role, principalID)
	if err != nil {
		pc.respondWriteError(c, err, "role")
		return
	}
	c.JSON(http.StatusOK, saved)
}

// DeleteRole endpoint
func (pc *PolicyController) DeleteRole(c *gin.Context) {
	principalID, err := util.GetPrincipalIDFromContext(c)
	if err != nil {
		util.RespondWithError(c, http.StatusUnauthorized, "Unauthorized", sentinel_errors.ErrUnauthorized)
		return
	}
	if err := pc.policyService.DeleteRole(c, c.Param("id"), principalID); err != nil {
		pc.respondWriteError(c, err, "role")
		return
	}
	c.Status(http.StatusNoContent)
}

// GetRole endpoint
func (pc *PolicyController) GetRole(c *gin.Context) {
	role, err := pc.policyService.GetRole(c.Param("id"))
	if err != nil {
		util.RespondWithError(c, http.StatusNotFound, "Role not found", sentinel_errors.ErrRoleNotFound)
		return
	}
	c.JSON(http.StatusOK, role)
}

// ListRoles endpoint
func (pc *PolicyController) ListRoles(c *gin.Context) {
	c.JSON(http.StatusOK, pc.policyService.ListRoles())
}

// UpsertPrincipal endpoint
func (pc *PolicyController) UpsertPrincipal(c *gin.Context) {
	var principal model.Principal
	if err := c.ShouldBindJSON(&principal); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid principal data", sentinel_errors.ErrInvalidPrincipalData)
		return
	}
	principal.ID = c.Param("id")
	principalID, err := util.GetPrincipalIDFromContext(c)
	if err != nil {
		util.RespondWithError(c, http.StatusUnauthorized, "Unauthorized", sentinel_errors.ErrUnauthorized)
		return
	}

	saved, err := pc.policyService.UpsertPrincipal(c, principal, principalID)
	if err != nil {
		pc.respondWriteError(c, err, "principal")
		return
	}
	c.JSON(http.StatusOK, saved)
}

// DeletePrincipal endpoint
func (pc *PolicyController) DeletePrincipal(c *gin.Context) {
	principalID, err := util.GetPrincipalIDFromContext(c)
	if err != nil {
		util.RespondWithError(c, http.StatusUnauthorized, "Unauthorized", sentinel_errors.ErrUnauthorized)
		return
	}
	if err := pc.policyService.DeletePrincipal(c, c.Param("id"), principalID); err != nil {
		pc.respondWriteError(c, err, "principal")
		return
	}
	c.Status(http.StatusNoContent)
}

// GetPrincipal endpoint
func (pc *PolicyController) GetPrincipal(c *gin.Context) {
	principal, err := pc.policyService.GetPrincipal(c.Param("id"))
	if err != nil {
		util.RespondWithError(c, http.StatusNotFound, "Principal not found", sentinel_errors.ErrPrincipalNotFound)
		return
	}
	c.JSON(http.StatusOK, principal)
}

// ListPrincipals endpoint
func (pc *PolicyController) ListPrincipals(c *gin.Context) {
	c.JSON(http.StatusOK, pc.policyService.ListPrincipals())
}
