package store

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	sentinel_errors "github.com/hearthguard/sentinel/errors"
	"github.com/hearthguard/sentinel/model"
)

// Snapshot is an immutable, self-consistent view of the role/policy set.
// Policies are pre-sorted in evaluation order: priority descending, deny
// before allow at equal priority, id ascending as the stable tie-break.
type Snapshot struct {
	Version    uint64
	Roles      map[string]model.Role
	Policies   []model.Policy
	Principals map[string]model.Principal
}

// Store publishes snapshots copy-on-write: readers always observe a complete
// snapshot through an atomic pointer and never block on writers.
type Store struct {
	mu      sync.Mutex // serializes writers only
	current atomic.Pointer[Snapshot]
}

func NewStore() *Store {
	s := &Store{}
	s.current.Store(&Snapshot{
		Version:    1,
		Roles:      map[string]model.Role{},
		Policies:   nil,
		Principals: map[string]model.Principal{},
	})
	return s
}

// Current returns the latest published snapshot. The returned snapshot must
// be treated as read-only.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// Load replaces the whole snapshot content, e.g. from durable storage at
// boot. Nothing is published if validation fails.
func (s *Store) Load(roles []model.Role, policies []model.Policy, principals []model.Principal) (uint64, error) {
	return s.publish(func(next *Snapshot) error {
		for _, r := range roles {
			next.Roles[r.ID] = r
		}
		next.Policies = append(next.Policies, policies...)
		for _, p := range principals {
			next.Principals[p.ID] = p
		}
		return nil
	})
}

func (s *Store) PutRole(role model.Role) (uint64, error) {
	if role.ID == "" || role.Name == "" {
		return 0, fmt.Errorf("%w: role id and name are required", sentinel_errors.ErrInvalidRoleData)
	}
	return s.publish(func(next *Snapshot) error {
		role.UpdatedAt = time.Now().UTC()
		if existing, ok := next.Roles[role.ID]; ok {
			role.CreatedAt = existing.CreatedAt
		} else {
			role.CreatedAt = role.UpdatedAt
		}
		next.Roles[role.ID] = role
		return nil
	})
}

func (s *Store) RemoveRole(roleID string) (uint64, error) {
	return s.publish(func(next *Snapshot) error {
		if _, ok := next.Roles[roleID]; !ok {
			return sentinel_errors.ErrRoleNotFound
		}
		delete(next.Roles, roleID)
		return nil
	})
}

func (s *Store) PutPolicy(policy model.Policy) (uint64, error) {
	if policy.ID == "" || !policy.Effect.Valid() || policy.Resource == "" || policy.Action == "" {
		return 0, fmt.Errorf("%w: id, effect, resource and action are required", sentinel_errors.ErrInvalidPolicyData)
	}
	return s.publish(func(next *Snapshot) error {
		policy.UpdatedAt = time.Now().UTC()
		replaced := false
		for i, existing := range next.Policies {
			if existing.ID == policy.ID {
				policy.CreatedAt = existing.CreatedAt
				next.Policies[i] = policy
				replaced = true
				break
			}
		}
		if !replaced {
			policy.CreatedAt = policy.UpdatedAt
			next.Policies = append(next.Policies, policy)
		}
		return nil
	})
}

func (s *Store) RemovePolicy(policyID string) (uint64, error) {
	return s.publish(func(next *Snapshot) error {
		for i, existing := range next.Policies {
			if existing.ID == policyID {
				next.Policies = append(next.Policies[:i], next.Policies[i+1:]...)
				return nil
			}
		}
		return sentinel_errors.ErrPolicyNotFound
	})
}

func (s *Store) PutPrincipal(principal model.Principal) (uint64, error) {
	if principal.ID == "" {
		return 0, fmt.Errorf("%w: principal id is required", sentinel_errors.ErrInvalidPrincipalData)
	}
	return s.publish(func(next *Snapshot) error {
		principal.UpdatedAt = time.Now().UTC()
		if existing, ok := next.Principals[principal.ID]; ok {
			principal.CreatedAt = existing.CreatedAt
		} else {
			principal.CreatedAt = principal.UpdatedAt
		}
		next.Principals[principal.ID] = principal
		return nil
	})
}

func (s *Store) RemovePrincipal(principalID string) (uint64, error) {
	return s.publish(func(next *Snapshot) error {
		if _, ok := next.Principals[principalID]; !ok {
			return sentinel_errors.ErrPrincipalNotFound
		}
		delete(next.Principals, principalID)
		return nil
	})
}

// publish copies the current snapshot, applies the mutation, validates, and
// atomically swaps in the result with the next version number.
func (s *Store) publish(mutate func(next *Snapshot) error) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.current.Load()
	next := &Snapshot{
		Version:    prev.Version + 1,
		Roles:      make(map[string]model.Role, len(prev.Roles)),
		Policies:   make([]model.Policy, len(prev.Policies)),
		Principals: make(map[string]model.Principal, len(prev.Principals)),
	}
	for id, r := range prev.Roles {
		next.Roles[id] = r
	}
	copy(next.Policies, prev.Policies)
	for id, p := range prev.Principals {
		next.Principals[id] = p
	}

	if err := mutate(next); err != nil {
		return 0, err
	}
	if err := validate(next); err != nil {
		return 0, err
	}

	sortPolicies(next.Policies)
	s.current.Store(next)
	return next.Version, nil
}

func validate(snap *Snapshot) error {
	if err := validateRoleGraph(snap.Roles); err != nil {
		return err
	}
	for _, p := range snap.Policies {
		for _, c := range p.Conditions {
			if !c.Type.Known() {
				return fmt.Errorf("%w: policy %s condition %q", sentinel_errors.ErrUnknownConditionType, p.ID, c.Type)
			}
		}
	}
	return nil
}

// validateRoleGraph rejects any cycle in the parent graph with a Kahn
// topological sort. References to missing parents are also rejected.
func validateRoleGraph(roles map[string]model.Role) error {
	indegree := make(map[string]int, len(roles))
	children := make(map[string][]string, len(roles))

	for id := range roles {
		indegree[id] = 0
	}
	for id, role := range roles {
		for _, parent := range role.Parents {
			if _, ok := roles[parent]; !ok {
				return fmt.Errorf("%w: role %s references unknown parent %s", sentinel_errors.ErrRoleNotFound, id, parent)
			}
			indegree[id]++
			children[parent] = append(children[parent], id)
		}
	}

	queue := make([]string, 0, len(roles))
	for id, deg := range indegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}

	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, child := range children[id] {
			indegree[child]--
			if indegree[child] == 0 {
				queue = append(queue, child)
			}
		}
	}

	if visited != len(roles) {
		return sentinel_errors.ErrRoleCycle
	}
	return nil
}

func sortPolicies(policies []model.Policy) {
	sort.SliceStable(policies, func(i, j int) bool {
		if policies[i].Priority != policies[j].Priority {
			return policies[i].Priority > policies[j].Priority
		}
		// deny wins a priority tie, so it must be seen first
		if policies[i].Effect != policies[j].Effect {
			return policies[i].Effect == model.EffectDeny
		}
		return policies[i].ID < policies[j].ID
	})
}
