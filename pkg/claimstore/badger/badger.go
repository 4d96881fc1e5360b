package badger

import (
	"context"
	"encoding/binary"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	badgerdb "github.com/dgraph-io/badger/v3"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/merkledrop-labs/merkledrop-go/pkg/claimstore"
)

// Key prefixes for namespacing
const (
	keyPrefixClaim       = "claim:"
	keySchemaVersion     = "metadata:schema_version"
	currentSchemaVersion = "v1"
)

// BadgerClaimStore is a durable, disk-based claim store with ACID
// guarantees. The write-once check and the flag write happen inside a
// single Badger transaction, so two concurrent marks for the same
// address admit exactly one winner.
type BadgerClaimStore struct {
	db       *badgerdb.DB
	logger   *zap.Logger
	gcCancel context.CancelFunc
	gcWg     sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
}

// NewBadgerClaimStore opens a Badger-backed claim store at the given path.
// SyncWrites is enabled for durability; a background goroutine runs value
// log garbage collection.
func NewBadgerClaimStore(dataPath string, logger *zap.Logger) (*BadgerClaimStore, error) {
	absPath, err := filepath.Abs(dataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	opts := badgerdb.DefaultOptions(absPath)
	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.SyncWrites = true // Ensure durability (fsync on every write)
	opts.CompactL0OnClose = true
	opts.NumVersionsToKeep = 1

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database at %s: %w", absPath, err)
	}

	bs := &BadgerClaimStore{
		db:     db,
		logger: logger,
	}

	if err := bs.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	bs.gcCancel = cancel
	bs.gcWg.Add(1)
	go bs.runGC(ctx)

	logger.Sugar().Infow("Badger claim store initialized", "path", absPath)

	return bs, nil
}

// initSchema initializes or validates the schema version
func (b *BadgerClaimStore) initSchema() error {
	return b.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keySchemaVersion))
		if err == badgerdb.ErrKeyNotFound {
			return txn.Set([]byte(keySchemaVersion), []byte(currentSchemaVersion))
		}
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}

		var existingVersion string
		err = item.Value(func(val []byte) error {
			existingVersion = string(val)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to read schema version value: %w", err)
		}

		if existingVersion != currentSchemaVersion {
			return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
		}

		return nil
	})
}

// runGC runs periodic garbage collection in the background
func (b *BadgerClaimStore) runGC(ctx context.Context) {
	defer b.gcWg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := b.db.RunValueLogGC(0.5)
			if err != nil && err != badgerdb.ErrNoRewrite {
				b.logger.Sugar().Warnw("Badger GC error", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func claimKey(addr common.Address) []byte {
	return []byte(keyPrefixClaim + addr.Hex())
}

// IsClaimed reports whether the address is marked claimed.
func (b *BadgerClaimStore) IsClaimed(addr common.Address) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return false, fmt.Errorf("claim store is closed")
	}

	claimed := false
	err := b.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get(claimKey(addr))
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		claimed = true
		return nil
	})

	if err != nil {
		return false, fmt.Errorf("failed to read claimed flag: %w", err)
	}

	return claimed, nil
}

// MarkClaimed sets the claimed flag, enforcing write-once semantics
// inside one transaction. The stored value is the mark time (unix seconds)
// for operational debugging.
func (b *BadgerClaimStore) MarkClaimed(addr common.Address) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("claim store is closed")
	}

	return b.db.Update(func(txn *badgerdb.Txn) error {
		key := claimKey(addr)

		_, err := txn.Get(key)
		if err == nil {
			return claimstore.ErrAlreadyMarked
		}
		if err != badgerdb.ErrKeyNotFound {
			return fmt.Errorf("failed to check claimed flag: %w", err)
		}

		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(time.Now().Unix()))
		return txn.Set(key, buf)
	})
}

// UnmarkClaimed clears the claimed flag. Idempotent.
func (b *BadgerClaimStore) UnmarkClaimed(addr common.Address) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("claim store is closed")
	}

	return b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete(claimKey(addr))
	})
}

// Count returns the number of claimed addresses.
func (b *BadgerClaimStore) Count() (int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0, fmt.Errorf("claim store is closed")
	}

	var count int64
	err := b.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefixClaim)
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})

	if err != nil {
		return 0, fmt.Errorf("failed to count claimed addresses: %w", err)
	}

	return count, nil
}

// Close shuts down the store. Idempotent.
func (b *BadgerClaimStore) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	if b.gcCancel != nil {
		b.gcCancel()
	}
	b.gcWg.Wait()

	if err := b.db.Close(); err != nil {
		return fmt.Errorf("failed to close badger database: %w", err)
	}

	b.logger.Sugar().Info("Badger claim store closed")
	return nil
}

// HealthCheck verifies the store is operational.
func (b *BadgerClaimStore) HealthCheck() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("claim store is closed")
	}

	return b.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get([]byte(keySchemaVersion))
		if err == badgerdb.ErrKeyNotFound {
			return fmt.Errorf("schema version not found - database may be corrupted")
		}
		return err
	})
}
