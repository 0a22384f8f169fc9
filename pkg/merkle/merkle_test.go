package merkle

import (
	"math/big"
	"math/rand"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/Layr-Labs/eigenx-rewards-go/pkg/types"
)

// createTestValues creates n test values with unique operators
func createTestValues(n int) []types.OperatorReward {
	values := make([]types.OperatorReward, n)
	for i := 0; i < n; i++ {
		// Start from 1 to avoid the zero address
		operator := common.BigToAddress(big.NewInt(int64(i + 1)))
		values[i] = types.NewOperatorReward(operator, uint64(i+1)*1000)
	}
	return values
}

func shuffled(values []types.OperatorReward, seed int64) []types.OperatorReward {
	out := make([]types.OperatorReward, len(values))
	copy(out, values)
	r := rand.New(rand.NewSource(seed))
	r.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func mustParse(t *testing.T, operator, reward string) types.OperatorReward {
	t.Helper()
	value, err := ParseLeafValue(operator, reward)
	require.NoError(t, err)
	return value
}

// TestBuildMerkleTree tests merkle tree construction with various numbers of values
func TestBuildMerkleTree(t *testing.T) {
	testCases := []struct {
		name      string
		numValues int
	}{
		{"Single value", 1},
		{"Two values", 2},
		{"Three values", 3},
		{"Four values (power of 2)", 4},
		{"Seven values", 7},
		{"Eight values (power of 2)", 8},
		{"Fifteen values", 15},
		{"Sixteen values (power of 2)", 16},
		{"Hundred values", 100},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			values := createTestValues(tc.numValues)
			tree, err := BuildMerkleTree(values)
			require.NoError(t, err)
			require.NotNil(t, tree)

			// Verify tree structure
			require.Equal(t, tc.numValues, tree.Len())
			require.Len(t, tree.Nodes(), 2*tc.numValues-1)
			require.NotEqual(t, common.Hash{}, tree.Root)

			// Generate and verify proofs for all values
			for i := 0; i < tc.numValues; i++ {
				proof, err := tree.GenerateProof(i)
				require.NoError(t, err)
				require.Equal(t, i, proof.ValueIndex)
				require.True(t, values[i].Equal(proof.Value))

				valid := VerifyProof(tree.Root, values[i], proof.Proof)
				require.True(t, valid, "Proof for value %d should be valid", i)
				require.True(t, proof.Verify(tree.Root))
			}
		})
	}
}

// TestBuildMerkleTreeEmpty tests that building a tree from no values fails
func TestBuildMerkleTreeEmpty(t *testing.T) {
	tree, err := BuildMerkleTree([]types.OperatorReward{})
	require.ErrorIs(t, err, ErrEmptyInput)
	require.Nil(t, tree)

	tree, err = BuildMerkleTree(nil)
	require.ErrorIs(t, err, ErrEmptyInput)
	require.Nil(t, tree)
}

func TestBuildMerkleTreeDuplicates(t *testing.T) {
	operator := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	t.Run("Same operator and reward", func(t *testing.T) {
		tree, err := BuildMerkleTree([]types.OperatorReward{
			types.NewOperatorReward(operator, 5),
			types.NewOperatorReward(operator, 5),
		})
		require.ErrorIs(t, err, ErrDuplicateLeaf)
		require.Nil(t, tree)
	})

	t.Run("Same operator different reward", func(t *testing.T) {
		tree, err := BuildMerkleTree([]types.OperatorReward{
			types.NewOperatorReward(operator, 5),
			types.NewOperatorReward(operator, 6),
		})
		require.NoError(t, err)
		require.Equal(t, 2, tree.Len())
	})

	t.Run("Same address in different case", func(t *testing.T) {
		values := []types.OperatorReward{
			mustParse(t, "0xAbCdEf0000000000000000000000000000000001", "5"),
			mustParse(t, "0xabcdef0000000000000000000000000000000001", "5"),
		}
		_, err := BuildMerkleTree(values)
		require.ErrorIs(t, err, ErrDuplicateLeaf)
	})
}

func TestBuildMerkleTreeMalformedValue(t *testing.T) {
	values := createTestValues(3)
	values[1].Reward = nil

	tree, err := BuildMerkleTree(values)
	require.ErrorIs(t, err, ErrMalformedLeaf)
	require.Nil(t, tree)
	require.Contains(t, err.Error(), "value 1")
}

// TestBuildMerkleTreeDeterministic checks the root only depends on the set of values
func TestBuildMerkleTreeDeterministic(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5, 8, 13, 33} {
		values := createTestValues(n)
		tree, err := BuildMerkleTree(values)
		require.NoError(t, err)

		for seed := int64(1); seed <= 5; seed++ {
			other, err := BuildMerkleTree(shuffled(values, seed))
			require.NoError(t, err)
			require.Equal(t, tree.Root, other.Root)
			require.Equal(t, tree.Nodes(), other.Nodes())

			for _, value := range values {
				p1, err := tree.ProveInclusion(value)
				require.NoError(t, err)
				p2, err := other.ProveInclusion(value)
				require.NoError(t, err)
				require.Equal(t, p1.Proof, p2.Proof)
				require.Equal(t, p1.Leaf, p2.Leaf)
			}
		}
	}
}

func TestConcreteTwoOperatorScenario(t *testing.T) {
	a := mustParse(t, "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA1", "100")
	b := mustParse(t, "0xBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB2", "200")

	forward, err := BuildMerkleTree([]types.OperatorReward{a, b})
	require.NoError(t, err)
	reversed, err := BuildMerkleTree([]types.OperatorReward{b, a})
	require.NoError(t, err)
	require.Equal(t, forward.Root.Hex(), reversed.Root.Hex())

	leafA, err := LeafHash(a)
	require.NoError(t, err)
	leafB, err := LeafHash(b)
	require.NoError(t, err)
	require.Equal(t, HashPair(leafA, leafB), forward.Root)

	// lookup is case-insensitive on the address text
	lookup := mustParse(t, strings.ToLower("0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA1"), "100")
	proof, err := forward.ProveInclusion(lookup)
	require.NoError(t, err)
	require.Equal(t, []common.Hash{leafB}, proof.Proof)
	require.True(t, VerifyProof(forward.Root, a, proof.Proof))

	// the same proof does not verify a different amount
	forged := mustParse(t, "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA1", "101")
	require.False(t, VerifyProof(forward.Root, forged, proof.Proof))

	_, err = forward.ProveInclusion(forged)
	require.ErrorIs(t, err, ErrLeafNotFound)
}

// TestMerkleProofVerification tests proof verification with valid and invalid cases
func TestMerkleProofVerification(t *testing.T) {
	values := createTestValues(5)
	tree, err := BuildMerkleTree(values)
	require.NoError(t, err)

	t.Run("Valid proof", func(t *testing.T) {
		proof, err := tree.GenerateProof(0)
		require.NoError(t, err)
		require.True(t, VerifyProof(tree.Root, values[0], proof.Proof))
	})

	t.Run("Invalid proof - wrong root", func(t *testing.T) {
		proof, err := tree.GenerateProof(0)
		require.NoError(t, err)

		invalidRoot := common.Hash{1, 2, 3, 4, 5}
		require.False(t, VerifyProof(invalidRoot, values[0], proof.Proof))
	})

	t.Run("Invalid proof - tampered leaf", func(t *testing.T) {
		proof, err := tree.GenerateProof(0)
		require.NoError(t, err)

		leaf := proof.Leaf
		leaf[0] ^= 0xFF
		require.False(t, VerifyLeafProof(tree.Root, leaf, proof.Proof))
		require.True(t, VerifyLeafProof(tree.Root, proof.Leaf, proof.Proof))
	})

	t.Run("Invalid proof - tampered sibling", func(t *testing.T) {
		proof, err := tree.GenerateProof(0)
		require.NoError(t, err)
		require.NotEmpty(t, proof.Proof)

		proof.Proof[0][0] ^= 0xFF
		require.False(t, VerifyProof(tree.Root, values[0], proof.Proof))
	})

	t.Run("Invalid proof - truncated", func(t *testing.T) {
		proof, err := tree.GenerateProof(0)
		require.NoError(t, err)
		require.False(t, VerifyProof(tree.Root, values[0], proof.Proof[:len(proof.Proof)-1]))
	})

	t.Run("Invalid proof - nil proof", func(t *testing.T) {
		var proof *MerkleProof
		require.False(t, proof.Verify(tree.Root))
	})

	t.Run("Invalid proof - malformed value", func(t *testing.T) {
		proof, err := tree.GenerateProof(0)
		require.NoError(t, err)
		require.False(t, VerifyProof(tree.Root, types.OperatorReward{Operator: values[0].Operator}, proof.Proof))
	})
}

// TestProofNonForgery checks no proof verifies any value other than its own
func TestProofNonForgery(t *testing.T) {
	values := createTestValues(9)
	tree, err := BuildMerkleTree(values)
	require.NoError(t, err)

	outsider := types.NewOperatorReward(common.HexToAddress("0x00000000000000000000000000000000deadbeef"), 1)

	for i, value := range values {
		proof, err := tree.ProveInclusion(value)
		require.NoError(t, err)
		require.True(t, VerifyProof(tree.Root, value, proof.Proof))

		for j, other := range values {
			if i == j {
				continue
			}
			require.False(t, VerifyProof(tree.Root, other, proof.Proof), "proof of %d verified value %d", i, j)
		}
		require.False(t, VerifyProof(tree.Root, outsider, proof.Proof))
	}
}

// TestGenerateProofInvalidIndex tests proof generation with invalid indices
func TestGenerateProofInvalidIndex(t *testing.T) {
	values := createTestValues(4)
	tree, err := BuildMerkleTree(values)
	require.NoError(t, err)

	t.Run("Negative index", func(t *testing.T) {
		proof, err := tree.GenerateProof(-1)
		require.Error(t, err)
		require.Nil(t, proof)
	})

	t.Run("Index out of bounds", func(t *testing.T) {
		proof, err := tree.GenerateProof(10)
		require.Error(t, err)
		require.Nil(t, proof)
	})
}

func TestSingleLeafTree(t *testing.T) {
	values := createTestValues(1)
	tree, err := BuildMerkleTree(values)
	require.NoError(t, err)

	leaf, err := LeafHash(values[0])
	require.NoError(t, err)
	require.Equal(t, leaf, tree.Root)

	proof, err := tree.ProveInclusion(values[0])
	require.NoError(t, err)
	require.Empty(t, proof.Proof)
	require.True(t, VerifyProof(tree.Root, values[0], proof.Proof))
}

func TestTreeLayout(t *testing.T) {
	values := createTestValues(3)
	tree, err := BuildMerkleTree(values)
	require.NoError(t, err)

	nodes := tree.Nodes()
	require.Len(t, nodes, 5)

	// leaves sit in the last three slots, sorted ascending from the end
	require.LessOrEqual(t, compareHashes(nodes[4], nodes[3]), 0)
	require.LessOrEqual(t, compareHashes(nodes[3], nodes[2]), 0)

	require.Equal(t, HashPair(nodes[3], nodes[4]), nodes[1])
	require.Equal(t, HashPair(nodes[1], nodes[2]), nodes[0])

	seen := map[int]bool{}
	for _, v := range tree.Values() {
		require.GreaterOrEqual(t, v.TreeIndex, 2)
		require.LessOrEqual(t, v.TreeIndex, 4)
		require.False(t, seen[v.TreeIndex])
		seen[v.TreeIndex] = true
	}
}

// Values, root and proof published in the @openzeppelin/merkle-tree README
// for StandardMerkleTree.of(values, ["address", "uint256"]).
func TestStandardMerkleTreeKnownAnswer(t *testing.T) {
	first := mustParse(t, "0x1111111111111111111111111111111111111111", "5000000000000000000")
	second := mustParse(t, "0x2222222222222222222222222222222222222222", "2500000000000000000")

	tree, err := BuildMerkleTree([]types.OperatorReward{first, second})
	require.NoError(t, err)

	firstLeaf := common.HexToHash("0xeb02c421cfa48976e66dfb29120745909ea3a0f843456c263cf8f1253483e283")
	secondLeaf := common.HexToHash("0xb92c48e9d7abe27fd8dfd6b5dfdbfb1c9a463f80c712b66f3a5180a090cccafc")
	root := common.HexToHash("0xd4dee0beab2d53f2cc83e567171bd2820e49898130a22622b10ead383e90bd77")

	require.Equal(t, root, tree.Root)
	require.Equal(t, []common.Hash{root, firstLeaf, secondLeaf}, tree.Nodes())

	proof, err := tree.ProveInclusion(first)
	require.NoError(t, err)
	require.Equal(t, []common.Hash{secondLeaf}, proof.Proof)

	proof, err = tree.ProveInclusion(second)
	require.NoError(t, err)
	require.Equal(t, []common.Hash{firstLeaf}, proof.Proof)
	require.True(t, VerifyProof(root, second, proof.Proof))
}

func TestProofsForOperator(t *testing.T) {
	operator := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	values := append(createTestValues(4),
		types.NewOperatorReward(operator, 7),
		types.NewOperatorReward(operator, 3),
	)
	tree, err := BuildMerkleTree(values)
	require.NoError(t, err)

	proofs, err := tree.ProofsForOperator(operator)
	require.NoError(t, err)
	require.Len(t, proofs, 2)
	require.Equal(t, 4, proofs[0].ValueIndex)
	require.Equal(t, uint64(7), proofs[0].Value.Reward.Uint64())
	require.Equal(t, 5, proofs[1].ValueIndex)
	for _, proof := range proofs {
		require.True(t, proof.Verify(tree.Root))
	}

	_, err = tree.ProofsForOperator(common.HexToAddress("0x00000000000000000000000000000000000000bb"))
	require.ErrorIs(t, err, ErrLeafNotFound)
}

func TestValuesAreCopies(t *testing.T) {
	values := createTestValues(2)
	tree, err := BuildMerkleTree(values)
	require.NoError(t, err)

	// mutating the input after construction must not affect the tree
	values[0].Reward.SetUint64(999999)
	got := tree.Values()
	require.Equal(t, uint64(1000), got[0].Value.Reward.Uint64())

	got[1].Value.Reward.SetUint64(1)
	require.Equal(t, uint64(2000), tree.Values()[1].Value.Reward.Uint64())
}

func TestEncodeLeaf(t *testing.T) {
	operator := common.HexToAddress("0x1234567890123456789012345678901234567890")
	reward := uint256.NewInt(0xdeadbeef)

	encoded, err := EncodeLeaf(operator, reward)
	require.NoError(t, err)
	require.Len(t, encoded, 64)

	expected := append(common.LeftPadBytes(operator.Bytes(), 32), reward.PaddedBytes(32)...)
	require.Equal(t, expected, encoded)

	_, err = EncodeLeaf(operator, nil)
	require.ErrorIs(t, err, ErrMalformedLeaf)
}

func TestHashLeafIsDoubleKeccak(t *testing.T) {
	encoded, err := EncodeLeaf(common.HexToAddress("0x01"), uint256.NewInt(1))
	require.NoError(t, err)

	single := crypto.Keccak256Hash(encoded)
	require.NotEqual(t, single, HashLeaf(encoded))
	require.Equal(t, crypto.Keccak256Hash(single.Bytes()), HashLeaf(encoded))
}

func TestHashPairCommutative(t *testing.T) {
	a := crypto.Keccak256Hash([]byte("a"))
	b := crypto.Keccak256Hash([]byte("b"))

	require.Equal(t, HashPair(a, b), HashPair(b, a))
	require.NotEqual(t, HashPair(a, b), HashPair(a, a))

	low, high := a, b
	if compareHashes(a, b) > 0 {
		low, high = b, a
	}
	require.Equal(t, crypto.Keccak256Hash(low.Bytes(), high.Bytes()), HashPair(a, b))
}

func TestParseLeafValue(t *testing.T) {
	maxUint256 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	overflow := new(big.Int).Lsh(big.NewInt(1), 256)

	validCases := []struct {
		name     string
		operator string
		reward   string
	}{
		{"Lower case", "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa1", "100"},
		{"Checksum", "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", "1"},
		{"Zero reward", "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa1", "0"},
		{"Max reward", "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa1", maxUint256.String()},
	}
	for _, tc := range validCases {
		t.Run(tc.name, func(t *testing.T) {
			value, err := ParseLeafValue(tc.operator, tc.reward)
			require.NoError(t, err)
			require.Equal(t, strings.ToLower(tc.operator), strings.ToLower(value.Operator.Hex()))
			require.Equal(t, tc.reward, value.Reward.Dec())
		})
	}

	invalidCases := []struct {
		name     string
		operator string
		reward   string
	}{
		{"Short address", "0x1234", "1"},
		{"Missing prefix", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa1", "1"},
		{"Non hex address", "0xzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz", "1"},
		{"Long address", "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa1aa", "1"},
		{"Negative reward", "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa1", "-1"},
		{"Fractional reward", "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa1", "1.5"},
		{"Hex reward", "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa1", "0x10"},
		{"Exponent reward", "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa1", "1e18"},
		{"Empty reward", "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa1", ""},
		{"Overflowing reward", "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa1", overflow.String()},
	}
	for _, tc := range invalidCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseLeafValue(tc.operator, tc.reward)
			require.ErrorIs(t, err, ErrMalformedLeaf)
		})
	}
}
