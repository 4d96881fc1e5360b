package merkle

// Tree is a binary merkle tree over an ordered list of leaf digests.
// The tree uses keccak256 hashing for Solidity compatibility.
type Tree struct {
	// Leaves contains the leaf digests in input order (leaf index = position)
	Leaves [][32]byte

	// Root is the merkle root digest
	Root [32]byte

	// levels stores all tree levels for proof generation
	// levels[0] = leaves, levels[len-1] = root
	levels [][][32]byte
}

// Proof shows that a leaf is included in a tree with a given root.
// Siblings are the sibling digests along the path from leaf to root;
// Siblings[0] is next to the leaf, Siblings[len-1] is next to the root.
// Because pairs are sorted before combination, verification needs no
// left/right positioning information.
type Proof struct {
	// LeafIndex is the position of the leaf in the committed input order
	LeafIndex int

	// Leaf is the digest of the leaf being proven
	Leaf [32]byte

	// Siblings contains the sibling digests from leaf to root.
	// A level where the node was promoted unpaired contributes no entry.
	Siblings [][32]byte
}
