package badger

import (
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/merkledrop-labs/merkledrop-go/pkg/claimstore"
	"github.com/merkledrop-labs/merkledrop-go/pkg/logger"
)

func newTestStore(t *testing.T) *BadgerClaimStore {
	t.Helper()

	tmpDir := t.TempDir()
	testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	store, err := NewBadgerClaimStore(tmpDir, testLogger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestBadgerClaimStore_MarkAndRead(t *testing.T) {
	store := newTestStore(t)
	addr := common.HexToAddress("0x1111111111111111111111111111111111111111")

	claimed, err := store.IsClaimed(addr)
	require.NoError(t, err)
	assert.False(t, claimed)

	require.NoError(t, store.MarkClaimed(addr))

	claimed, err = store.IsClaimed(addr)
	require.NoError(t, err)
	assert.True(t, claimed)

	count, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestBadgerClaimStore_WriteOnce(t *testing.T) {
	store := newTestStore(t)
	addr := common.HexToAddress("0x2222222222222222222222222222222222222222")

	require.NoError(t, store.MarkClaimed(addr))
	require.ErrorIs(t, store.MarkClaimed(addr), claimstore.ErrAlreadyMarked)
}

func TestBadgerClaimStore_UnmarkIdempotent(t *testing.T) {
	store := newTestStore(t)
	addr := common.HexToAddress("0x3333333333333333333333333333333333333333")

	require.NoError(t, store.MarkClaimed(addr))
	require.NoError(t, store.UnmarkClaimed(addr))
	require.NoError(t, store.UnmarkClaimed(addr))

	claimed, err := store.IsClaimed(addr)
	require.NoError(t, err)
	assert.False(t, claimed)

	// Mark is allowed again after rollback
	require.NoError(t, store.MarkClaimed(addr))
}

func TestBadgerClaimStore_PersistsAcrossReopen(t *testing.T) {
	tmpDir := t.TempDir()
	testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	addr := common.HexToAddress("0x4444444444444444444444444444444444444444")

	store, err := NewBadgerClaimStore(tmpDir, testLogger)
	require.NoError(t, err)
	require.NoError(t, store.MarkClaimed(addr))
	require.NoError(t, store.Close())

	reopened, err := NewBadgerClaimStore(tmpDir, testLogger)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	claimed, err := reopened.IsClaimed(addr)
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestBadgerClaimStore_ConcurrentMarks(t *testing.T) {
	store := newTestStore(t)
	addr := common.HexToAddress("0x5555555555555555555555555555555555555555")

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := store.MarkClaimed(addr); err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
}

func TestBadgerClaimStore_ClosedOperationsFail(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close()) // idempotent

	addr := common.HexToAddress("0x6666666666666666666666666666666666666666")
	_, err := store.IsClaimed(addr)
	require.Error(t, err)
	require.Error(t, store.MarkClaimed(addr))
	require.Error(t, store.HealthCheck())
}

func TestBadgerClaimStore_HealthCheck(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.HealthCheck())
}
