// Package roles provides the injectable role-capability check the ledger
// services authorize privileged callers against. The coordinator is a role,
// not a hardcoded address, so tests can swap identities and a committee or
// multi-signature authorizer can later replace a single key without touching
// module logic.
package roles

import "sync"

// Role names a capability a caller address may hold.
type Role string

const (
	// Coordinator sequences multi-step cross-module workflows and is the
	// only role trusted for verification, activation, allocation batches,
	// and finalization operations.
	Coordinator Role = "coordinator"

	// TokenLedger is the ownership ledger's module identity, allowed to
	// increment a listing's units-sold counter.
	TokenLedger Role = "token_ledger"

	// SettlementEngine is the settlement module identity, allowed to mark
	// listings sold, burn holdings, and mark SELL proposals executed.
	SettlementEngine Role = "settlement_engine"
)

// Authorizer answers whether a caller address holds a role.
type Authorizer interface {
	HasRole(addr string, role Role) bool
}

// StaticAuthorizer is a fixed grant table, the single-trusted-key deployment
// shape. Safe for concurrent reads after wiring.
type StaticAuthorizer struct {
	mu     sync.RWMutex
	grants map[string]map[Role]bool
}

// NewStaticAuthorizer creates an empty grant table.
func NewStaticAuthorizer() *StaticAuthorizer {
	return &StaticAuthorizer{grants: make(map[string]map[Role]bool)}
}

// Grant gives addr the role.
func (a *StaticAuthorizer) Grant(addr string, role Role) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.grants[addr] == nil {
		a.grants[addr] = make(map[Role]bool)
	}
	a.grants[addr][role] = true
}

// HasRole implements Authorizer.
func (a *StaticAuthorizer) HasRole(addr string, role Role) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.grants[addr][role]
}
