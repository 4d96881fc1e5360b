package signing

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

/*
Claim Signature Scheme

A claimer proves ownership of the recipient address by signing a
domain-separated digest over (claimer, amount):

  structHash = keccak256(CLAIM_TYPEHASH || claimer (32 bytes) || amount (32 bytes))
  digest     = keccak256(0x19 || 0x01 || domainSeparator || structHash)

The 0x1901 prefix and the 32-byte domain separator bind the signature to
one specific deployment (name, version, chain, verifying contract), so a
signature collected for one airdrop cannot be replayed against another.

The signature travels as the compact (v, r, s) triple. v is accepted as
27/28 (Ethereum convention) or 0/1 (raw recovery id); anything else is an
invalid-signature condition, never a crash.
*/

// ClaimTypeHash is the type hash of the signed claim structure.
var ClaimTypeHash = [32]byte(crypto.Keccak256Hash([]byte("Claim(address claimer,uint256 amount)")))

var domainTypeHash = crypto.Keccak256([]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"))

// ComputeDomainSeparator derives the 32-byte domain separator that binds
// claim signatures to one deployment context.
func ComputeDomainSeparator(name, version string, chainID uint64, verifyingContract common.Address) [32]byte {
	data := make([]byte, 0, 32*5)
	data = append(data, domainTypeHash...)
	data = append(data, crypto.Keccak256([]byte(name))...)
	data = append(data, crypto.Keccak256([]byte(version))...)
	data = append(data, common.BigToHash(new(big.Int).SetUint64(chainID)).Bytes()...)
	data = append(data, common.BytesToHash(verifyingContract.Bytes()).Bytes()...)

	return [32]byte(crypto.Keccak256Hash(data))
}

// ClaimDigest computes the domain-separated digest a claimer must sign
// for the given (claimer, amount) pair.
func ClaimDigest(domainSeparator [32]byte, claimer common.Address, amount *big.Int) ([32]byte, error) {
	if amount == nil || amount.Sign() < 0 || amount.BitLen() > 256 {
		return [32]byte{}, fmt.Errorf("invalid claim amount")
	}

	structData := make([]byte, 0, 32*3)
	structData = append(structData, ClaimTypeHash[:]...)
	structData = append(structData, common.BytesToHash(claimer.Bytes()).Bytes()...)
	structData = append(structData, common.BigToHash(amount).Bytes()...)
	structHash := crypto.Keccak256(structData)

	data := make([]byte, 0, 2+32+32)
	data = append(data, 0x19, 0x01)
	data = append(data, domainSeparator[:]...)
	data = append(data, structHash...)

	return [32]byte(crypto.Keccak256Hash(data)), nil
}

// RecoverSigner recovers the address that produced the (v, r, s) signature
// over the given digest. Malformed components (bad recovery parameter,
// out-of-range r/s, point not on curve) are reported as errors.
func RecoverSigner(digest [32]byte, v uint8, r, s [32]byte) (common.Address, error) {
	// Normalize the Ethereum convention recovery byte to a raw id
	recoveryID := v
	if recoveryID >= 27 {
		recoveryID -= 27
	}
	if recoveryID > 1 {
		return common.Address{}, fmt.Errorf("invalid recovery parameter: %d", v)
	}

	rInt := new(big.Int).SetBytes(r[:])
	sInt := new(big.Int).SetBytes(s[:])
	if !crypto.ValidateSignatureValues(recoveryID, rInt, sInt, true) {
		return common.Address{}, fmt.Errorf("signature values out of range")
	}

	sig := make([]byte, 65)
	copy(sig[0:32], r[:])
	copy(sig[32:64], s[:])
	sig[64] = recoveryID

	pubKey, err := crypto.SigToPub(digest[:], sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", err)
	}

	return crypto.PubkeyToAddress(*pubKey), nil
}

// Validator checks claim signatures for one deployment context.
type Validator struct {
	domainSeparator [32]byte
}

// NewValidator creates a validator bound to the published domain separator.
func NewValidator(domainSeparator [32]byte) *Validator {
	return &Validator{domainSeparator: domainSeparator}
}

// DomainSeparator returns the separator this validator is bound to.
func (v *Validator) DomainSeparator() [32]byte {
	return v.domainSeparator
}

// IsValid reports whether the (vSig, r, s) signature over the
// domain-separated (claimer, amount) digest recovers to the claimer.
// Any malformed component is an invalid-signature condition.
func (v *Validator) IsValid(claimer common.Address, amount *big.Int, vSig uint8, r, s [32]byte) bool {
	digest, err := ClaimDigest(v.domainSeparator, claimer, amount)
	if err != nil {
		return false
	}

	signer, err := RecoverSigner(digest, vSig, r, s)
	if err != nil {
		return false
	}

	return signer == claimer
}

// SignClaim signs the domain-separated (claimer, amount) digest with the
// given private key and returns the compact (v, r, s) triple with v in
// Ethereum convention (27/28). Intended for tests and offline tooling.
func SignClaim(privateKey *ecdsa.PrivateKey, domainSeparator [32]byte, claimer common.Address, amount *big.Int) (uint8, [32]byte, [32]byte, error) {
	if privateKey == nil {
		return 0, [32]byte{}, [32]byte{}, fmt.Errorf("private key is nil")
	}

	digest, err := ClaimDigest(domainSeparator, claimer, amount)
	if err != nil {
		return 0, [32]byte{}, [32]byte{}, err
	}

	sig, err := crypto.Sign(digest[:], privateKey)
	if err != nil {
		return 0, [32]byte{}, [32]byte{}, fmt.Errorf("failed to sign claim: %w", err)
	}

	var r, s [32]byte
	copy(r[:], sig[0:32])
	copy(s[:], sig[32:64])

	return sig[64] + 27, r, s, nil
}
