package authority

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/merkledrop-labs/merkledrop-go/pkg/claimstore"
	"github.com/merkledrop-labs/merkledrop-go/pkg/codec"
	"github.com/merkledrop-labs/merkledrop-go/pkg/logger"
	"github.com/merkledrop-labs/merkledrop-go/pkg/merkle"
	"github.com/merkledrop-labs/merkledrop-go/pkg/signing"
	"github.com/merkledrop-labs/merkledrop-go/pkg/token"
	"github.com/merkledrop-labs/merkledrop-go/pkg/types"
)

/*
ClaimAuthority gates the one-time payout behind three ordered guards:

  1. claimed flag   -> ErrAlreadyClaimed
  2. signature      -> ErrInvalidSignature
  3. merkle proof   -> ErrInvalidProof

The order is part of the contract: the first failing guard determines the
reported error. Guards are pure reads; only after all of them pass does
the transition mutate state, and it marks the address Claimed BEFORE
invoking the token collaborator. That ordering closes the reentrancy
window where a malicious payout target could re-enter Claim while its
own flag is still clear. If the transfer itself is declined, the flag is
unwound so the whole transition stays all-or-nothing.

Every invocation runs under one mutex, so claims serialize; there is no
suspension point between the flag check and the flag write.
*/

// guard is one ordered precondition check over a claim request.
type guard func(req *types.ClaimRequest) error

// NotifyFunc receives a notification after each successful claim.
type NotifyFunc func(types.ClaimNotification)

// Config fixes the commitment and collaborators for the lifetime of the
// authority. None of these can be swapped after construction.
type Config struct {
	// Root is the published merkle root commitment
	Root [32]byte
	// DomainSeparator binds claim signatures to this deployment
	DomainSeparator [32]byte
	// Token is the payout collaborator
	Token token.Token
	// Store holds the per-address claimed flags
	Store claimstore.IClaimStore
	// Logger is optional; a default is created if nil
	Logger *zap.Logger
	// Notify is optional; called after each successful claim
	Notify NotifyFunc
}

// ClaimAuthority is the claim-authorization state machine.
type ClaimAuthority struct {
	root      [32]byte
	validator *signing.Validator
	token     token.Token
	store     claimstore.IClaimStore
	logger    *zap.Logger
	notify    NotifyFunc

	guards []guard

	mu sync.Mutex
}

// NewClaimAuthority creates the authority with its guard chain in the
// mandated order.
func NewClaimAuthority(cfg Config) (*ClaimAuthority, error) {
	if cfg.Token == nil {
		return nil, fmt.Errorf("token collaborator cannot be nil")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("claim store cannot be nil")
	}

	authorityLogger := cfg.Logger
	if authorityLogger == nil {
		authorityLogger, _ = logger.NewLogger(&logger.LoggerConfig{Debug: false})
	}

	a := &ClaimAuthority{
		root:      cfg.Root,
		validator: signing.NewValidator(cfg.DomainSeparator),
		token:     cfg.Token,
		store:     cfg.Store,
		logger:    authorityLogger,
		notify:    cfg.Notify,
	}

	// Check order is part of the contract: claimed flag, signature, proof
	a.guards = []guard{
		a.guardNotClaimed,
		a.guardSignature,
		a.guardProof,
	}

	return a, nil
}

// Claim runs the one-shot claim transition for the request. On success
// the address is terminally Claimed and the payout has been delivered;
// on any failure no state changes.
func (a *ClaimAuthority) Claim(req *types.ClaimRequest) (*types.ClaimNotification, error) {
	if req == nil {
		return nil, fmt.Errorf("claim request cannot be nil")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, g := range a.guards {
		if err := g(req); err != nil {
			a.logger.Sugar().Infow("Claim rejected",
				"claimer", req.Claimer.Hex(), "amount", req.Amount.String(), "reason", err)
			return nil, err
		}
	}

	// Effects before interaction: flag first, then the external call
	if err := a.store.MarkClaimed(req.Claimer); err != nil {
		if errors.Is(err, claimstore.ErrAlreadyMarked) {
			return nil, ErrAlreadyClaimed
		}
		return nil, errors.Wrap(err, "failed to mark address claimed")
	}

	if err := a.token.Transfer(req.Claimer, req.Amount); err != nil {
		// Compensating rollback keeps the transition all-or-nothing
		if unmarkErr := a.store.UnmarkClaimed(req.Claimer); unmarkErr != nil {
			a.logger.Sugar().Errorw("Failed to unwind claimed flag after declined payout",
				"claimer", req.Claimer.Hex(), "error", unmarkErr)
			return nil, errors.Wrap(unmarkErr, "payout failed and rollback failed")
		}
		return nil, fmt.Errorf("%w: %v", ErrPayoutFailed, err)
	}

	notification := types.ClaimNotification{
		ID:      uuid.New().String(),
		Claimer: req.Claimer,
		Amount:  new(big.Int).Set(req.Amount),
	}

	a.logger.Sugar().Infow("Claim paid out",
		"id", notification.ID, "claimer", req.Claimer.Hex(), "amount", req.Amount.String())

	if a.notify != nil {
		a.notify(notification)
	}

	return &notification, nil
}

func (a *ClaimAuthority) guardNotClaimed(req *types.ClaimRequest) error {
	claimed, err := a.store.IsClaimed(req.Claimer)
	if err != nil {
		return errors.Wrap(err, "failed to read claimed flag")
	}
	if claimed {
		return ErrAlreadyClaimed
	}
	return nil
}

func (a *ClaimAuthority) guardSignature(req *types.ClaimRequest) error {
	if !a.validator.IsValid(req.Claimer, req.Amount, req.V, req.R, req.S) {
		return ErrInvalidSignature
	}
	return nil
}

func (a *ClaimAuthority) guardProof(req *types.ClaimRequest) error {
	leaf, err := codec.LeafHash(req.Claimer, req.Amount)
	if err != nil {
		return ErrInvalidProof
	}
	if !merkle.VerifyProof(leaf, req.MerkleProof, a.root) {
		return ErrInvalidProof
	}
	return nil
}

// Root returns the published commitment root.
func (a *ClaimAuthority) Root() [32]byte {
	return a.root
}

// DomainSeparator returns the signature domain this deployment verifies
// against.
func (a *ClaimAuthority) DomainSeparator() [32]byte {
	return a.validator.DomainSeparator()
}

// Token returns the payout collaborator.
func (a *ClaimAuthority) Token() token.Token {
	return a.token
}

// IsClaimed reports the per-address claimed status.
func (a *ClaimAuthority) IsClaimed(addr common.Address) (bool, error) {
	return a.store.IsClaimed(addr)
}

// ClaimedCount returns how many addresses have claimed.
func (a *ClaimAuthority) ClaimedCount() (int64, error) {
	return a.store.Count()
}
