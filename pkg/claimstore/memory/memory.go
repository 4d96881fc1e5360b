package memory

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/merkledrop-labs/merkledrop-go/pkg/claimstore"
)

// MemoryClaimStore is an in-memory implementation of IClaimStore.
// All flags are lost when the process exits, so a restarted gate would
// accept replays. Use the badger or redis store for real deployments.
//
// Thread-safe using sync.RWMutex for concurrent access.
type MemoryClaimStore struct {
	mu      sync.RWMutex
	claimed map[common.Address]bool
	closed  bool
}

// NewMemoryClaimStore creates a new in-memory claim store.
func NewMemoryClaimStore() *MemoryClaimStore {
	return &MemoryClaimStore{
		claimed: make(map[common.Address]bool),
	}
}

// IsClaimed reports whether the address is marked claimed.
func (m *MemoryClaimStore) IsClaimed(addr common.Address) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return false, fmt.Errorf("claim store is closed")
	}

	return m.claimed[addr], nil
}

// MarkClaimed sets the claimed flag, enforcing write-once semantics.
func (m *MemoryClaimStore) MarkClaimed(addr common.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("claim store is closed")
	}

	if m.claimed[addr] {
		return claimstore.ErrAlreadyMarked
	}

	m.claimed[addr] = true
	return nil
}

// UnmarkClaimed clears the claimed flag. Idempotent.
func (m *MemoryClaimStore) UnmarkClaimed(addr common.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("claim store is closed")
	}

	delete(m.claimed, addr)
	return nil
}

// Count returns the number of claimed addresses.
func (m *MemoryClaimStore) Count() (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, fmt.Errorf("claim store is closed")
	}

	return int64(len(m.claimed)), nil
}

// Close shuts down the store. Idempotent.
func (m *MemoryClaimStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

// HealthCheck verifies the store is operational.
func (m *MemoryClaimStore) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return fmt.Errorf("claim store is closed")
	}

	return nil
}
