package token

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Token is the fungible-token collaborator the claim authority pays out
// through. Implementations own balance bookkeeping; the authority only
// calls Transfer and treats a returned error as a declined payout.
type Token interface {
	// Transfer moves amount units from the distributor pool to recipient.
	// Returns an error if the transfer is declined.
	Transfer(recipient common.Address, amount *big.Int) error

	// Mint credits amount units to recipient out of thin air.
	Mint(recipient common.Address, amount *big.Int) error

	// BalanceOf returns the current balance of an address.
	BalanceOf(addr common.Address) *big.Int
}

// MemoryToken is an in-memory ledger implementation of Token.
// Intended for tests and local development; transfers draw from a pool
// balance that must be minted up front, like a funded distributor.
type MemoryToken struct {
	mu       sync.RWMutex
	pool     *big.Int
	balances map[common.Address]*big.Int
}

// NewMemoryToken creates an empty in-memory ledger with a zero pool.
func NewMemoryToken() *MemoryToken {
	return &MemoryToken{
		pool:     new(big.Int),
		balances: make(map[common.Address]*big.Int),
	}
}

// FundPool credits the distributor pool the transfers draw from.
func (m *MemoryToken) FundPool(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("invalid pool funding amount")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.pool.Add(m.pool, amount)
	return nil
}

// PoolBalance returns the remaining distributor pool balance.
func (m *MemoryToken) PoolBalance() *big.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return new(big.Int).Set(m.pool)
}

// Transfer moves amount from the pool to recipient. Declines when the
// pool cannot cover the amount.
func (m *MemoryToken) Transfer(recipient common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("invalid transfer amount")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pool.Cmp(amount) < 0 {
		return fmt.Errorf("insufficient pool balance: have %s, need %s", m.pool.String(), amount.String())
	}

	m.pool.Sub(m.pool, amount)
	m.credit(recipient, amount)
	return nil
}

// Mint credits amount to recipient directly.
func (m *MemoryToken) Mint(recipient common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("invalid mint amount")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.credit(recipient, amount)
	return nil
}

// BalanceOf returns the recipient's balance.
func (m *MemoryToken) BalanceOf(addr common.Address) *big.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	balance, ok := m.balances[addr]
	if !ok {
		return new(big.Int)
	}
	return new(big.Int).Set(balance)
}

// credit assumes the lock is held
func (m *MemoryToken) credit(addr common.Address, amount *big.Int) {
	balance, ok := m.balances[addr]
	if !ok {
		balance = new(big.Int)
		m.balances[addr] = balance
	}
	balance.Add(balance, amount)
}

// FailingToken is a Token whose transfers always decline. Used to test
// that a failed payout unwinds the claim state mutation.
type FailingToken struct {
	// TransferAttempts counts how many transfers were declined
	TransferAttempts int
}

func (f *FailingToken) Transfer(recipient common.Address, amount *big.Int) error {
	f.TransferAttempts++
	return fmt.Errorf("transfer declined")
}

func (f *FailingToken) Mint(recipient common.Address, amount *big.Int) error {
	return fmt.Errorf("mint declined")
}

func (f *FailingToken) BalanceOf(addr common.Address) *big.Int {
	return new(big.Int)
}
