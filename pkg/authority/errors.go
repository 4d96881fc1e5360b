package authority

import "errors"

// Claim failure taxonomy. Each guard reports its own named error so
// callers can tell "you already claimed" from "your proof is wrong"
// from "your signature is wrong"; none of them is ever coerced into a
// generic failure.
var (
	// ErrAlreadyClaimed means the address holds a terminal Claimed state.
	ErrAlreadyClaimed = errors.New("address has already claimed")

	// ErrInvalidSignature means the signature components are malformed or
	// the recovered signer does not match the claimer.
	ErrInvalidSignature = errors.New("invalid claim signature")

	// ErrInvalidProof means the recomputed root does not match the
	// published commitment.
	ErrInvalidProof = errors.New("invalid merkle proof")

	// ErrPayoutFailed means the token collaborator declined the transfer;
	// the claimed flag set earlier in the same invocation is unwound.
	ErrPayoutFailed = errors.New("token payout failed")
)
