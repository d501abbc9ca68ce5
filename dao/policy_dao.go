package dao

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	sentinel_errors "github.com/hearthguard/sentinel/errors"
	logger "github.com/hearthguard/sentinel/logging"
	"github.com/hearthguard/sentinel/model"
)

// PolicyDAO persists the role/policy/principal set in Neo4j. The in-memory
// snapshot store stays authoritative at runtime; the DAO provides the boot
// snapshot and durability for management writes.
type PolicyDAO struct {
	Driver neo4j.Driver
}

func NewPolicyDAO(driver neo4j.Driver) *PolicyDAO {
	dao := &PolicyDAO{Driver: driver}
	ctx := context.Background()
	if err := dao.EnsureConstraints(ctx); err != nil {
		logger.Fatal("Failed to ensure unique constraints", zap.Error(err))
	}
	return dao
}

// EnsureConstraints ensures unique constraints on node ids.
func (dao *PolicyDAO) EnsureConstraints(ctx context.Context) error {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer func() {
		if err := session.Close(); err != nil {
			logger.Error("Failed to close Neo4j session", zap.Error(err))
		}
	}()

	constraints := []string{
		`CREATE CONSTRAINT unique_policy_id IF NOT EXISTS FOR (p:POLICY) REQUIRE p.id IS UNIQUE`,
		`CREATE CONSTRAINT unique_role_id IF NOT EXISTS FOR (r:ROLE) REQUIRE r.id IS UNIQUE`,
		`CREATE CONSTRAINT unique_principal_id IF NOT EXISTS FOR (u:PRINCIPAL) REQUIRE u.id IS UNIQUE`,
	}

	_, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		for _, query := range constraints {
			if _, err := transaction.Run(query, nil); err != nil {
				return nil, fmt.Errorf("failed to create constraint: %w", err)
			}
		}
		return nil, nil
	})
	if err != nil {
		logger.Error("Failed to ensure unique constraints", zap.Error(err))
		return err
	}
	return nil
}

func (dao *PolicyDAO) upsertNode(ctx context.Context, label, id string, doc interface{}) error {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", label, err)
	}

	_, err = session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := fmt.Sprintf(`
        MERGE (n:%s {id: $id})
        ON CREATE SET n.data = $data
        ON MATCH SET n.data = $data
        RETURN n.id as id
        `, label)
		result, err := transaction.Run(query, map[string]interface{}{
			"id":   id,
			"data": string(data),
		})
		if err != nil {
			return nil, sentinel_errors.ErrDatabaseOperation
		}
		return nil, result.Err()
	})
	return err
}

func (dao *PolicyDAO) deleteNode(ctx context.Context, label, id string) error {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	_, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := fmt.Sprintf(`MATCH (n:%s {id: $id}) DETACH DELETE n`, label)
		if _, err := transaction.Run(query, map[string]interface{}{"id": id}); err != nil {
			return nil, sentinel_errors.ErrDatabaseOperation
		}
		return nil, nil
	})
	return err
}

func (dao *PolicyDAO) loadNodes(ctx context.Context, label string, each func(data string) error) error {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	_, err := session.ReadTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := fmt.Sprintf(`MATCH (n:%s) RETURN n.data as data`, label)
		result, err := transaction.Run(query, nil)
		if err != nil {
			return nil, sentinel_errors.ErrDatabaseOperation
		}
		for result.Next() {
			raw, ok := result.Record().Get("data")
			if !ok {
				continue
			}
			data, ok := raw.(string)
			if !ok {
				continue
			}
			if err := each(data); err != nil {
				return nil, err
			}
		}
		return nil, result.Err()
	})
	return err
}

func (dao *PolicyDAO) SavePolicy(ctx context.Context, policy model.Policy) error {
	logger.Debug("Persisting policy", zap.String("policyID", policy.ID))
	return dao.upsertNode(ctx, "POLICY", policy.ID, policy)
}

func (dao *PolicyDAO) DeletePolicy(ctx context.Context, policyID string) error {
	return dao.deleteNode(ctx, "POLICY", policyID)
}

func (dao *PolicyDAO) SaveRole(ctx context.Context, role model.Role) error {
	logger.Debug("Persisting role", zap.String("roleID", role.ID))
	return dao.upsertNode(ctx, "ROLE", role.ID, role)
}

func (dao *PolicyDAO) DeleteRole(ctx context.Context, roleID string) error {
	return dao.deleteNode(ctx, "ROLE", roleID)
}

func (dao *PolicyDAO) SavePrincipal(ctx context.Context, principal model.Principal) error {
	logger.Debug("Persisting principal", zap.String("principalID", principal.ID))
	return dao.upsertNode(ctx, "PRINCIPAL", principal.ID, principal)
}

func (dao *PolicyDAO) DeletePrincipal(ctx context.Context, principalID string) error {
	return dao.deleteNode(ctx, "PRINCIPAL", principalID)
}

// LoadAll reads the persisted role/policy/principal set for the boot
// snapshot. Each label gets its own session, so the three reads run
// concurrently.
func (dao *PolicyDAO) LoadAll(ctx context.Context) ([]model.Role, []model.Policy, []model.Principal, error) {
	var roles []model.Role
	var policies []model.Policy
	var principals []model.Principal

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return dao.loadNodes(groupCtx, "ROLE", func(data string) error {
			var role model.Role
			if err := json.Unmarshal([]byte(data), &role); err != nil {
				return fmt.Errorf("corrupt role node: %w", err)
			}
			roles = append(roles, role)
			return nil
		})
	})

	group.Go(func() error {
		return dao.loadNodes(groupCtx, "POLICY", func(data string) error {
			var policy model.Policy
			if err := json.Unmarshal([]byte(data), &policy); err != nil {
				return fmt.Errorf("corrupt policy node: %w", err)
			}
			policies = append(policies, policy)
			return nil
		})
	})

	group.Go(func() error {
		return dao.loadNodes(groupCtx, "PRINCIPAL", func(data string) error {
			var principal model.Principal
			if err := json.Unmarshal([]byte(data), &principal); err != nil {
				return fmt.Errorf("corrupt principal node: %w", err)
			}
			principals = append(principals, principal)
			return nil
		})
	})

	if err := group.Wait(); err != nil {
		return nil, nil, nil, err
	}

	logger.Info("Loaded policy set from Neo4j",
		zap.Int("roles", len(roles)),
		zap.Int("policies", len(policies)),
		zap.Int("principals", len(principals)))
	return roles, policies, principals, nil
}
