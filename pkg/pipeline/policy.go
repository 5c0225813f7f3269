package pipeline

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// RoleAdministrator is always allowed regardless of policy contents.
const RoleAdministrator = "administrator"

// PolicyWildcard is the sentinel tool name for the default policy.
const PolicyWildcard = "*"

// PolicyStore owns flat allow-lists of roles keyed by exact tool name, with
// a default policy applying when no tool-specific policy exists. Policies
// are re-evaluated per call.
type PolicyStore struct {
	mu           sync.RWMutex
	policies     map[string][]string
	defaultRoles []string
}

// NewPolicyStore creates a policy store with the given default allow-list.
func NewPolicyStore(defaultRoles ...string) *PolicyStore {
	return &PolicyStore{
		policies:     make(map[string][]string),
		defaultRoles: append([]string(nil), defaultRoles...),
	}
}

// AddPolicy upserts the allow-list for a tool; last write wins. The wildcard
// name sets the default policy.
func (ps *PolicyStore) AddPolicy(toolName string, allowedRoles []string) {
	if toolName == PolicyWildcard {
		ps.SetDefaultPolicy(allowedRoles)
		return
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()

	ps.policies[toolName] = append([]string(nil), allowedRoles...)

	log.Debug().Str("tool", toolName).Strs("roles", allowedRoles).Msg("Access policy set")
}

// RemovePolicy deletes a tool-specific policy and reports whether one existed.
func (ps *PolicyStore) RemovePolicy(toolName string) bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	_, ok := ps.policies[toolName]
	if ok {
		delete(ps.policies, toolName)
	}
	return ok
}

// SetDefaultPolicy replaces the fallback allow-list.
func (ps *PolicyStore) SetDefaultPolicy(allowedRoles []string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	ps.defaultRoles = append([]string(nil), allowedRoles...)
}

// ClearPolicies drops every tool-specific policy. The default policy is kept.
func (ps *PolicyStore) ClearPolicies() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	ps.policies = make(map[string][]string)
}

// IsAllowed reports whether a role may invoke a tool. The administrator role
// is always allowed.
func (ps *PolicyStore) IsAllowed(toolName, role string) bool {
	if role == RoleAdministrator {
		return true
	}

	ps.mu.RLock()
	defer ps.mu.RUnlock()

	allowed, ok := ps.policies[toolName]
	if !ok {
		allowed = ps.defaultRoles
	}

	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}
