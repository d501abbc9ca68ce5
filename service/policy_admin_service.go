package service

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hearthguard/sentinel/audit"
	"github.com/hearthguard/sentinel/dao"
	sentinel_errors "github.com/hearthguard/sentinel/errors"
	logger "github.com/hearthguard/sentinel/logging"
	"github.com/hearthguard/sentinel/model"
	pdp_store "github.com/hearthguard/sentinel/pdp/store"
	"github.com/hearthguard/sentinel/util"
)

type IPolicyAdminService interface {
	CreatePolicy(ctx context.Context, policy model.Policy, actor string) (model.Policy, error)
	UpdatePolicy(ctx context.Context, policy model.Policy, actor string) (model.Policy, error)
	DeletePolicy(ctx context.Context, policyID, actor string) error
	GetPolicy(id string) (model.Policy, error)
	ListPolicies() []model.Policy

	UpsertRole(ctx context.Context, role model.Role, actor string) (model.Role, error)
	DeleteRole(ctx context.Context, roleID, actor string) error
	GetRole(id string) (model.Role, error)
	ListRoles() []model.Role

	UpsertPrincipal(ctx context.Context, principal model.Principal, actor string) (model.Principal, error)
	DeletePrincipal(ctx context.Context, principalID, actor string) error
	GetPrincipal(id string) (model.Principal, error)
	ListPrincipals() []model.Principal
}

// PolicyAdminService manages the policy/role/principal catalog. Writes go
// through the snapshot store first (which validates and rejects role cycles
// and unknown condition types), then persist to Neo4j and invalidate caches.
type PolicyAdminService struct {
	store        *pdp_store.Store
	policyDAO    *dao.PolicyDAO
	auditService audit.Service
	cacheService *util.CacheService
	validation   *util.ValidationUtil
	notification *util.NotificationService
	eventBus     *util.EventBus
}

func NewPolicyAdminService(
	store *pdp_store.Store,
	policyDAO *dao.PolicyDAO,
	auditService audit.Service,
	cacheService *util.CacheService,
	validation *util.ValidationUtil,
	notification *util.NotificationService,
	eventBus *util.EventBus,
) *PolicyAdminService {
	s := &PolicyAdminService{
		store:        store,
		policyDAO:    policyDAO,
		auditService: auditService,
		cacheService: cacheService,
		validation:   validation,
		notification: notification,
		eventBus:     eventBus,
	}
	s.eventBus.Subscribe(util.TopicPolicyChanged, func(ctx context.Context, event util.Event) error {
		return s.cacheService.InvalidateDecisions(ctx)
	})
	return s
}

func (s *PolicyAdminService) CreatePolicy(ctx context.Context, policy model.Policy, actor string) (model.Policy, error) {
	if policy.ID == "" {
		policy.ID = uuid.New().String()
	}
	policy.CreatedAt = time.Now().UTC()
	policy.UpdatedAt = policy.CreatedAt
	return s.putPolicy(ctx, policy, actor, "created")
}

func (s *PolicyAdminService) UpdatePolicy(ctx context.Context, policy model.Policy, actor string) (model.Policy, error) {
	existing, err := s.GetPolicy(policy.ID)
	if err != nil {
		return model.Policy{}, err
	}
	policy.CreatedAt = existing.CreatedAt
	policy.UpdatedAt = time.Now().UTC()
	return s.putPolicy(ctx, policy, actor, "updated")
}

func (s *PolicyAdminService) putPolicy(ctx context.Context, policy model.Policy, actor, changeType string) (model.Policy, error) {
	if err := s.validation.ValidatePolicy(policy); err != nil {
		return model.Policy{}, err
	}
	version, err := s.store.PutPolicy(policy)
	if err != nil {
		return model.Policy{}, err
	}
	if s.policyDAO != nil {
		if daoErr := s.policyDAO.SavePolicy(ctx, policy); daoErr != nil {
			logger.Error("Failed to persist policy", zap.Error(daoErr), zap.String("policyID", policy.ID))
			return model.Policy{}, daoErr
		}
	}
	s.recordPolicyChange(ctx, actor, changeType, "policy", policy.ID, version)
	if notifyErr := s.notification.NotifyPolicyChange(ctx, changeType, policy); notifyErr != nil {
		logger.Warn("Policy change notification failed", zap.Error(notifyErr))
	}
	return policy, nil
}

func (s *PolicyAdminService) DeletePolicy(ctx context.Context, policyID, actor string) error {
	version, err := s.store.RemovePolicy(policyID)
	if err != nil {
		return err
	}
	if s.policyDAO != nil {
		if daoErr := s.policyDAO.DeletePolicy(ctx, policyID); daoErr != nil {
			logger.Error("Failed to delete policy", zap.Error(daoErr), zap.String("policyID", policyID))
			return daoErr
		}
	}
	s.recordPolicyChange(ctx, actor, "deleted", "policy", policyID, version)
	return nil
}

func (s *PolicyAdminService) GetPolicy(id string) (model.Policy, error) {
	for _, policy := range s.store.Current().Policies {
		if policy.ID == id {
			return policy, nil
		}
	}
	return model.Policy{}, sentinel_errors.ErrPolicyNotFound
}

func (s *PolicyAdminService) ListPolicies() []model.Policy {
	snapshot := s.store.Current()
	out := make([]model.Policy, len(snapshot.Policies))
	copy(out, snapshot.Policies)
	return out
}

func (s *PolicyAdminService) UpsertRole(ctx context.Context, role model.Role, actor string) (model.Role, error) {
	if err := s.validation.ValidateRole(role); err != nil {
		return model.Role{}, err
	}
	now := time.Now().UTC()
	if existing, ok := s.store.Current().Roles[role.ID]; ok {
		role.CreatedAt = existing.CreatedAt
	} else {
		role.CreatedAt = now
	}
	role.UpdatedAt = now
	version, err := s.store.PutRole(role)
	if err != nil {
		return model.Role{}, err
	}
	if s.policyDAO != nil {
		if daoErr := s.policyDAO.SaveRole(ctx, role); daoErr != nil {
			logger.Error("Failed to persist role", zap.Error(daoErr), zap.String("roleID", role.ID))
			return model.Role{}, daoErr
		}
	}
	s.recordPolicyChange(ctx, actor, "upserted", "role", role.ID, version)
	return role, nil
}

func (s *PolicyAdminService) DeleteRole(ctx context.Context, roleID, actor string) error {
	version, err := s.store.RemoveRole(roleID)
	if err != nil {
		return err
	}
	if s.policyDAO != nil {
		if daoErr := s.policyDAO.DeleteRole(ctx, roleID); daoErr != nil {
			logger.Error("Failed to delete role", zap.Error(daoErr), zap.String("roleID", roleID))
			return daoErr
		}
	}
	s.recordPolicyChange(ctx, actor, "deleted", "role", roleID, version)
	return nil
}

func (s *PolicyAdminService) GetRole(id string) (model.Role, error) {
	role, ok := s.store.Current().Roles[id]
	if !ok {
		return model.Role{}, sentinel_errors.ErrRoleNotFound
	}
	return role, nil
}

func (s *PolicyAdminService) ListRoles() []model.Role {
	snapshot := s.store.Current()
	out := make([]model.Role, 0, len(snapshot.Roles))
	for _, role := range snapshot.Roles {
		out = append(out, role)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *PolicyAdminService) UpsertPrincipal(ctx context.Context, principal model.Principal, actor string) (model.Principal, error) {
	if err := s.validation.ValidatePrincipal(principal); err != nil {
		return model.Principal{}, err
	}
	now := time.Now().UTC()
	if existing, ok := s.store.Current().Principals[principal.ID]; ok {
		principal.CreatedAt = existing.CreatedAt
	} else {
		principal.CreatedAt = now
	}
	principal.UpdatedAt = now
	version, err := s.store.PutPrincipal(principal)
	if err != nil {
		return model.Principal{}, err
	}
	if s.policyDAO != nil {
		if daoErr := s.policyDAO.SavePrincipal(ctx, principal); daoErr != nil {
			logger.Error("Failed to persist principal", zap.Error(daoErr), zap.String("principalID", principal.ID))
			return model.Principal{}, daoErr
		}
	}
	s.recordPolicyChange(ctx, actor, "upserted", "principal", principal.ID, version)
	return principal, nil
}

func (s *PolicyAdminService) DeletePrincipal(ctx context.Context, principalID, actor string) error {
	version, err := s.store.RemovePrincipal(principalID)
	if err != nil {
		return err
	}
	if s.policyDAO != nil {
		if daoErr := s.policyDAO.DeletePrincipal(ctx, principalID); daoErr != nil {
			logger.Error("Failed to delete principal", zap.Error(daoErr), zap.String("principalID", principalID))
			return daoErr
		}
	}
	s.recordPolicyChange(ctx, actor, "deleted", "principal", principalID, version)
	return nil
}

func (s *PolicyAdminService) GetPrincipal(id string) (model.Principal, error) {
	principal, ok := s.store.Current().Principals[id]
	if !ok {
		return model.Principal{}, sentinel_errors.ErrPrincipalNotFound
	}
	return principal, nil
}

func (s *PolicyAdminService) ListPrincipals() []model.Principal {
	snapshot := s.store.Current()
	out := make([]model.Principal, 0, len(snapshot.Principals))
	for _, principal := range snapshot.Principals {
		out = append(out, principal)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type policyChange struct {
	Kind            string `json:"kind"`
	EntityID        string `json:"entity_id"`
	Change          string `json:"change"`
	SnapshotVersion uint64 `json:"snapshot_version"`
}

func (s *PolicyAdminService) recordPolicyChange(ctx context.Context, actor, changeType, kind, entityID string, version uint64) {
	change := policyChange{Kind: kind, EntityID: entityID, Change: changeType, SnapshotVersion: version}
	if _, err := s.auditService.Append(ctx, audit.RecordPolicyChange, actor, change); err != nil {
		logger.Error("Failed to audit policy change", zap.Error(err),
			zap.String("kind", kind), zap.String("entityID", entityID))
	}
	s.eventBus.Publish(ctx, util.TopicPolicyChanged, change)
}
