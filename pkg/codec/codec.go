package codec

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// EncodedRecordLength is the byte length of a canonically encoded record:
// 20-byte recipient address followed by a 32-byte big-endian amount.
const EncodedRecordLength = 20 + 32

// MaxAmount is the largest representable amount (2^256 - 1). Amounts wider
// than 256 bits would silently alias under a fixed-width encoding, so they
// are rejected instead.
var MaxAmount = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// EncodeRecord produces the canonical packed encoding of an entitlement
// record: recipient (20 bytes) || amount (32 bytes, big-endian).
// The encoding is injective over all valid inputs - both fields are
// fixed-width, so no two distinct (recipient, amount) pairs share bytes.
func EncodeRecord(recipient common.Address, amount *big.Int) ([]byte, error) {
	if amount == nil {
		return nil, fmt.Errorf("amount cannot be nil")
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount cannot be negative: %s", amount.String())
	}
	if amount.Cmp(MaxAmount) > 0 {
		return nil, fmt.Errorf("amount exceeds 256 bits: %s", amount.String())
	}

	data := make([]byte, 0, EncodedRecordLength)
	data = append(data, recipient.Bytes()...)
	data = append(data, common.BigToHash(amount).Bytes()...)
	return data, nil
}

// LeafHash computes the merkle leaf digest of a record:
// keccak256(keccak256(EncodeRecord(recipient, amount))).
// The double hash separates the leaf domain from the internal-node domain,
// so an attacker cannot present an internal 64-byte pair encoding as a leaf.
func LeafHash(recipient common.Address, amount *big.Int) ([32]byte, error) {
	encoded, err := EncodeRecord(recipient, amount)
	if err != nil {
		return [32]byte{}, err
	}

	inner := crypto.Keccak256(encoded)
	outer := crypto.Keccak256Hash(inner)
	return [32]byte(outer), nil
}
