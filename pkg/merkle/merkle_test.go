package merkle

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// randomLeaves generates n random 32-byte leaf digests
func randomLeaves(n int) [][32]byte {
	leaves := make([][32]byte, n)
	for i := range leaves {
		_, _ = rand.Read(leaves[i][:]) // Ignore error in test helper
	}
	return leaves
}

// TestBuildTree tests merkle tree construction with various leaf counts
func TestBuildTree(t *testing.T) {
	testCases := []struct {
		name      string
		numLeaves int
	}{
		{"Single leaf", 1},
		{"Two leaves", 2},
		{"Three leaves", 3},
		{"Four leaves (power of 2)", 4},
		{"Five leaves", 5},
		{"Seven leaves", 7},
		{"Eight leaves (power of 2)", 8},
		{"Fifteen leaves", 15},
		{"Sixteen leaves (power of 2)", 16},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			leaves := randomLeaves(tc.numLeaves)
			tree, err := BuildTree(leaves)
			require.NoError(t, err)
			require.NotNil(t, tree)

			require.Equal(t, tc.numLeaves, len(tree.Leaves))
			require.NotEqual(t, [32]byte{}, tree.Root)

			// Generate and verify proofs for all leaves
			for i := 0; i < tc.numLeaves; i++ {
				proof, err := tree.GenerateProof(i)
				require.NoError(t, err)
				require.NotNil(t, proof)
				require.Equal(t, i, proof.LeafIndex)
				require.Equal(t, tree.Leaves[i], proof.Leaf)
				require.True(t, proof.Verify(tree.Root), "Proof for leaf %d should be valid", i)
			}
		})
	}
}

// TestBuildTreeEmpty tests that building a tree from no leaves fails
func TestBuildTreeEmpty(t *testing.T) {
	tree, err := BuildTree(nil)
	require.Error(t, err)
	require.Nil(t, tree)
	require.Contains(t, err.Error(), "empty")
}

// TestBuildTreeDeterministic tests bit-for-bit reproducibility
func TestBuildTreeDeterministic(t *testing.T) {
	leaves := randomLeaves(9)

	a, err := BuildTree(leaves)
	require.NoError(t, err)

	b, err := BuildTree(leaves)
	require.NoError(t, err)

	require.Equal(t, a.Root, b.Root)
	require.Equal(t, a.Leaves, b.Leaves)
}

// TestBuildTreeOrderSensitivity tests that leaf order changes the root
// and that a proof from one ordering does not verify against the other
func TestBuildTreeOrderSensitivity(t *testing.T) {
	leaves := randomLeaves(4)

	original, err := BuildTree(leaves)
	require.NoError(t, err)

	swapped := make([][32]byte, len(leaves))
	copy(swapped, leaves)
	swapped[0], swapped[3] = swapped[3], swapped[0]

	reordered, err := BuildTree(swapped)
	require.NoError(t, err)
	require.NotEqual(t, original.Root, reordered.Root)

	proof, err := original.GenerateProof(0)
	require.NoError(t, err)
	require.True(t, proof.Verify(original.Root))
	require.False(t, proof.Verify(reordered.Root))
}

// TestOddLayerPromotion pins the odd-length layer policy: the unpaired
// last node moves up unchanged, so its proof skips that level entirely
func TestOddLayerPromotion(t *testing.T) {
	t.Run("Three leaves", func(t *testing.T) {
		leaves := randomLeaves(3)
		tree, err := BuildTree(leaves)
		require.NoError(t, err)

		// Level 1 is [hash(l0,l1), l2]; the root combines both.
		// Leaves 0 and 1 cross two levels, leaf 2 only one.
		p0, err := tree.GenerateProof(0)
		require.NoError(t, err)
		require.Len(t, p0.Siblings, 2)

		p2, err := tree.GenerateProof(2)
		require.NoError(t, err)
		require.Len(t, p2.Siblings, 1)

		// The promoted leaf's single sibling is the combined pair
		require.Equal(t, hashPair(leaves[0], leaves[1]), p2.Siblings[0])

		require.True(t, p0.Verify(tree.Root))
		require.True(t, p2.Verify(tree.Root))
	})

	t.Run("Promoted node is never its own sibling", func(t *testing.T) {
		for _, n := range []int{3, 5, 7, 9, 11} {
			leaves := randomLeaves(n)
			tree, err := BuildTree(leaves)
			require.NoError(t, err)

			proof, err := tree.GenerateProof(n - 1)
			require.NoError(t, err)
			for _, sibling := range proof.Siblings {
				require.NotEqual(t, proof.Leaf, sibling, "n=%d", n)
			}
			require.True(t, proof.Verify(tree.Root), "n=%d", n)
		}
	})
}

// TestProofVerification tests verification against valid and invalid inputs
func TestProofVerification(t *testing.T) {
	leaves := randomLeaves(4)
	tree, err := BuildTree(leaves)
	require.NoError(t, err)

	t.Run("Valid proof", func(t *testing.T) {
		proof, err := tree.GenerateProof(0)
		require.NoError(t, err)
		require.True(t, proof.Verify(tree.Root))
	})

	t.Run("Wrong root", func(t *testing.T) {
		proof, err := tree.GenerateProof(0)
		require.NoError(t, err)

		var wrongRoot [32]byte
		copy(wrongRoot[:], tree.Root[:])
		wrongRoot[0] ^= 0xff
		require.False(t, proof.Verify(wrongRoot))
	})

	t.Run("Tampered leaf", func(t *testing.T) {
		proof, err := tree.GenerateProof(1)
		require.NoError(t, err)

		proof.Leaf[31] ^= 0x01
		require.False(t, proof.Verify(tree.Root))
	})

	t.Run("Tampered sibling", func(t *testing.T) {
		proof, err := tree.GenerateProof(2)
		require.NoError(t, err)

		proof.Siblings[0][0] ^= 0x01
		require.False(t, proof.Verify(tree.Root))
	})

	t.Run("Truncated proof", func(t *testing.T) {
		proof, err := tree.GenerateProof(0)
		require.NoError(t, err)
		require.False(t, VerifyProof(proof.Leaf, proof.Siblings[:len(proof.Siblings)-1], tree.Root))
	})

	t.Run("Over-long proof", func(t *testing.T) {
		proof, err := tree.GenerateProof(0)
		require.NoError(t, err)

		extended := append(append([][32]byte{}, proof.Siblings...), randomLeaves(1)[0])
		require.False(t, VerifyProof(proof.Leaf, extended, tree.Root))
	})

	t.Run("Proof for another leaf", func(t *testing.T) {
		p0, err := tree.GenerateProof(0)
		require.NoError(t, err)
		p1, err := tree.GenerateProof(3)
		require.NoError(t, err)
		require.False(t, VerifyProof(p0.Leaf, p1.Siblings, tree.Root))
	})

	t.Run("Nil proof", func(t *testing.T) {
		var proof *Proof
		require.False(t, proof.Verify(tree.Root))
	})

	t.Run("Empty proof against single-leaf tree", func(t *testing.T) {
		single, err := BuildTree(randomLeaves(1))
		require.NoError(t, err)

		proof, err := single.GenerateProof(0)
		require.NoError(t, err)
		require.Empty(t, proof.Siblings)
		require.True(t, proof.Verify(single.Root))
	})
}

// TestGenerateProofBounds tests index validation
func TestGenerateProofBounds(t *testing.T) {
	tree, err := BuildTree(randomLeaves(4))
	require.NoError(t, err)

	_, err = tree.GenerateProof(-1)
	require.Error(t, err)
	require.Contains(t, err.Error(), "out of bounds")

	_, err = tree.GenerateProof(4)
	require.Error(t, err)
	require.Contains(t, err.Error(), "out of bounds")
}

// TestGenerateAllProofs tests bulk proof generation
func TestGenerateAllProofs(t *testing.T) {
	tree, err := BuildTree(randomLeaves(7))
	require.NoError(t, err)

	proofs, err := tree.GenerateAllProofs()
	require.NoError(t, err)
	require.Len(t, proofs, 7)

	for i, proof := range proofs {
		require.Equal(t, i, proof.LeafIndex)
		require.True(t, proof.Verify(tree.Root))
	}
}

// TestHashPairCommutative tests that the combine step is order-independent
func TestHashPairCommutative(t *testing.T) {
	pairs := randomLeaves(2)
	require.Equal(t, hashPair(pairs[0], pairs[1]), hashPair(pairs[1], pairs[0]))
}
