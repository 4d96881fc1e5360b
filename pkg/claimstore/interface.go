package claimstore

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

// ErrAlreadyMarked is returned by MarkClaimed when the address already
// carries the claimed flag. The store enforces write-once semantics at
// the API boundary rather than trusting callers to check first.
var ErrAlreadyMarked = errors.New("address already marked claimed")

// IClaimStore persists the per-address claimed flag backing the claim
// authority's replay protection. All implementations must be thread-safe.
//
// The flag is monotonic in normal operation: once set it is never reset.
// UnmarkClaimed exists solely as the compensating action for a payout
// that failed after the flag was set, keeping the claim transition
// all-or-nothing.
type IClaimStore interface {
	// IsClaimed reports whether the address holds a terminal claimed flag.
	// Unknown addresses are unclaimed. Returns error only on storage failure.
	IsClaimed(addr common.Address) (bool, error)

	// MarkClaimed sets the claimed flag for the address.
	// Returns ErrAlreadyMarked if the flag is already set, other errors
	// only on storage failure.
	MarkClaimed(addr common.Address) error

	// UnmarkClaimed clears the claimed flag. Idempotent - returns nil if
	// the flag was not set. Only intended for payout rollback.
	UnmarkClaimed(addr common.Address) error

	// Count returns how many addresses are marked claimed.
	Count() (int64, error)

	// Close cleanly shuts down the store. Idempotent; after Close all
	// other operations return errors.
	Close() error

	// HealthCheck verifies the store is operational. Returns nil if
	// healthy. Should be called during startup to fail fast.
	HealthCheck() error
}
