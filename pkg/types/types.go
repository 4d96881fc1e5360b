package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// EntitlementRecord is one (recipient, amount) pair committed into a tree.
// Records are immutable once included; recipient uniqueness within one
// commitment is a precondition the builder enforces.
type EntitlementRecord struct {
	Recipient common.Address `json:"recipient"`
	Amount    *big.Int       `json:"amount"`
}

// ClaimRequest is the structured parameter bundle presented at claim time.
// MerkleProof is the ordered sibling-digest path for the claimer's leaf.
// V, R, S are the components of the claimer's ECDSA signature over the
// domain-separated (claimer, amount) digest.
type ClaimRequest struct {
	Claimer     common.Address `json:"claimer"`
	Amount      *big.Int       `json:"amount"`
	MerkleProof [][32]byte     `json:"merkleProof"`
	V           uint8          `json:"v"`
	R           [32]byte       `json:"r"`
	S           [32]byte       `json:"s"`
}

// ClaimNotification is emitted after a successful claim for observability.
type ClaimNotification struct {
	ID      string         `json:"id"` // request id assigned by the authority
	Claimer common.Address `json:"claimer"`
	Amount  *big.Int       `json:"amount"`
}
