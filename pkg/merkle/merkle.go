package merkle

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// BuildTree creates a binary merkle tree from an ordered list of leaf
// digests. Leaf order is significant: the root commits to the exact
// sequence, not the multiset, so leaf index equals input position.
//
// Adjacent pairs are combined as keccak256(sort(a, b)) - the pair is
// ordered bytewise before concatenation, which makes proof verification
// agnostic to which side a sibling was on. A layer of odd length promotes
// its unpaired last node to the next layer unchanged; it is never
// duplicated or padded. Proofs for that node simply skip the level.
func BuildTree(leaves [][32]byte) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, fmt.Errorf("cannot build merkle tree from empty leaf list")
	}

	layer0 := make([][32]byte, len(leaves))
	copy(layer0, leaves)

	levels := make([][][32]byte, 0)
	levels = append(levels, layer0)

	currentLevel := layer0
	for len(currentLevel) > 1 {
		nextLevel := make([][32]byte, 0, (len(currentLevel)+1)/2)

		for i := 0; i < len(currentLevel); i += 2 {
			if i+1 < len(currentLevel) {
				nextLevel = append(nextLevel, hashPair(currentLevel[i], currentLevel[i+1]))
			} else {
				// Odd layer: promote the unpaired node unchanged
				nextLevel = append(nextLevel, currentLevel[i])
			}
		}

		levels = append(levels, nextLevel)
		currentLevel = nextLevel
	}

	if len(currentLevel) != 1 {
		return nil, fmt.Errorf("merkle tree construction failed: final level has %d nodes instead of 1", len(currentLevel))
	}

	return &Tree{
		Leaves: layer0,
		Root:   currentLevel[0],
		levels: levels,
	}, nil
}

// GenerateProof creates a merkle proof for the leaf at the given index.
// The proof consists of the sibling digests along the path from leaf to
// root; levels where the node was promoted unpaired contribute nothing.
func (t *Tree) GenerateProof(leafIndex int) (*Proof, error) {
	if leafIndex < 0 || leafIndex >= len(t.Leaves) {
		return nil, fmt.Errorf("leaf index %d out of bounds (tree has %d leaves)", leafIndex, len(t.Leaves))
	}

	siblings := make([][32]byte, 0)
	index := leafIndex

	for level := 0; level < len(t.levels)-1; level++ {
		currentLevel := t.levels[level]

		var siblingIndex int
		if index%2 == 0 {
			siblingIndex = index + 1
		} else {
			siblingIndex = index - 1
		}

		// Unpaired last node was promoted; no sibling at this level
		if siblingIndex < len(currentLevel) {
			siblings = append(siblings, currentLevel[siblingIndex])
		}

		index = index / 2
	}

	return &Proof{
		LeafIndex: leafIndex,
		Leaf:      t.Leaves[leafIndex],
		Siblings:  siblings,
	}, nil
}

// GenerateAllProofs creates proofs for every leaf, indexed by position.
func (t *Tree) GenerateAllProofs() ([]*Proof, error) {
	proofs := make([]*Proof, len(t.Leaves))
	for i := range t.Leaves {
		proof, err := t.GenerateProof(i)
		if err != nil {
			return nil, err
		}
		proofs[i] = proof
	}
	return proofs, nil
}

// VerifyProof recomputes the root from a leaf digest and an ordered list
// of sibling digests, and checks it against the expected root. Each step
// combines the running digest with the next sibling as keccak256(sort(a, b)),
// so no left/right indexing is needed. A proof whose length does not match
// the committed tree shape produces a different digest and returns false;
// it never panics.
func VerifyProof(leaf [32]byte, siblings [][32]byte, root [32]byte) bool {
	currentHash := leaf

	for _, sibling := range siblings {
		currentHash = hashPair(currentHash, sibling)
	}

	return currentHash == root
}

// Verify checks a proof against the expected root.
func (p *Proof) Verify(root [32]byte) bool {
	if p == nil {
		return false
	}
	return VerifyProof(p.Leaf, p.Siblings, root)
}

// hashPair computes keccak256 over the two digests in canonical bytewise
// order. Sorting before concatenation makes the combine step commutative,
// which is what lets the verifier fold a proof without side information.
func hashPair(a, b [32]byte) [32]byte {
	data := make([]byte, 64)
	if bytes.Compare(a[:], b[:]) <= 0 {
		copy(data[0:32], a[:])
		copy(data[32:64], b[:])
	} else {
		copy(data[0:32], b[:])
		copy(data[32:64], a[:])
	}

	hash := crypto.Keccak256Hash(data)
	return [32]byte(hash)
}
