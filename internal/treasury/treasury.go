// Package treasury models the host ledger's atomic value transfers. The
// core is a callee of this contract, not its implementer: services call
// Transfer as the last step inside their own transaction, so a refused
// transfer fails the whole operation and no record changes persist.
package treasury

import (
	"fmt"
	"sync"
)

// Treasury moves value between accounts. Implementations must apply each
// transfer atomically and refuse transfers the source cannot cover.
type Treasury interface {
	Transfer(from, to string, amount int64) error
	Balance(addr string) int64
}

// Custody account naming. Module custody, escrow, deposits, and the
// insurance pool are plain treasury accounts addressed by these helpers.
const InsurancePool = "insurance:pool"

// EscrowAccount holds a buyer's settlement funds for one asset.
func EscrowAccount(assetID uint) string { return fmt.Sprintf("escrow:asset:%d", assetID) }

// IncomeAccount holds deposited income awaiting holder claims for one asset.
func IncomeAccount(assetID uint) string { return fmt.Sprintf("income:asset:%d", assetID) }

// DepositAccount holds the listing owner's security deposit for one asset.
func DepositAccount(assetID uint) string { return fmt.Sprintf("deposit:asset:%d", assetID) }

// ProceedsAccount holds unit-sale proceeds for one asset.
func ProceedsAccount(assetID uint) string { return fmt.Sprintf("proceeds:asset:%d", assetID) }

// Memory is an in-process account map implementing Treasury. It backs tests
// and single-node deployments; a chain-backed host replaces it in
// production wiring.
type Memory struct {
	mu       sync.Mutex
	balances map[string]int64
}

// NewMemory creates an empty in-memory treasury.
func NewMemory() *Memory {
	return &Memory{balances: make(map[string]int64)}
}

// Credit mints amount into addr. Used to seed external-party balances.
func (m *Memory) Credit(addr string, amount int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[addr] += amount
}

// Transfer implements Treasury. It refuses zero and negative amounts and
// transfers the source cannot cover.
func (m *Memory) Transfer(from, to string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("transfer amount must be positive, got %d", amount)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[from] < amount {
		return fmt.Errorf("insufficient funds in %s: have %d, need %d", from, m.balances[from], amount)
	}
	m.balances[from] -= amount
	m.balances[to] += amount
	return nil
}

// Balance implements Treasury.
func (m *Memory) Balance(addr string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[addr]
}
