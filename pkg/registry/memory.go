package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// MemoryClient is an in-process registry for tests and the dev server.
// It records one root per distributor, like the contract does.
type MemoryClient struct {
	mu          sync.RWMutex
	distributor common.Address
	roots       map[common.Address]publishedRoot
}

type publishedRoot struct {
	root        [32]byte
	submittedAt uint64
}

// NewMemoryClient creates an in-memory registry acting as the given
// distributor for submissions.
func NewMemoryClient(distributor common.Address) *MemoryClient {
	return &MemoryClient{
		distributor: distributor,
		roots:       make(map[common.Address]publishedRoot),
	}
}

// SubmitRoot records the root under the configured distributor address.
// The returned receipt is synthetic and always successful.
func (m *MemoryClient) SubmitRoot(_ context.Context, root [32]byte) (*types.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.roots[m.distributor] = publishedRoot{
		root:        root,
		submittedAt: uint64(time.Now().Unix()),
	}

	return &types.Receipt{Status: types.ReceiptStatusSuccessful}, nil
}

// GetRoot returns the root a distributor last published and when.
func (m *MemoryClient) GetRoot(_ context.Context, distributor common.Address) ([32]byte, uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	published, exists := m.roots[distributor]
	if !exists {
		return [32]byte{}, 0, fmt.Errorf("no root published for distributor %s", distributor.Hex())
	}
	return published.root, published.submittedAt, nil
}
