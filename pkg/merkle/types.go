package merkle

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/Layr-Labs/eigenx-rewards-go/pkg/types"
)

// MerkleTree is an immutable binary merkle tree over (operator, reward) leaves.
// The tree uses keccak256 hashing for Solidity compatibility.
//
// Nodes are stored in a flat array in heap layout: node i has children 2i+1
// and 2i+2, the root is node 0 and the sorted leaves occupy the last N slots
// in reverse order. Leaf counts that are not a power of two need no padding.
type MerkleTree struct {
	// Root is the merkle root hash
	Root common.Hash

	// nodes stores every node, nodes[0] = root
	nodes []common.Hash

	// values keeps the caller supplied order
	values []IndexedValue

	// leafLookup maps a leaf hash to its position in values
	leafLookup map[common.Hash]int

	// operatorLookup maps an operator to its positions in values, ascending
	operatorLookup map[common.Address][]int
}

// IndexedValue is a leaf value together with the position of its leaf in the node array.
type IndexedValue struct {
	Value     types.OperatorReward
	TreeIndex int
}

// MerkleProof represents a proof that a leaf is included in the tree.
// The proof consists of sibling hashes along the path from leaf to root.
type MerkleProof struct {
	// ValueIndex is the index of the value in the caller supplied order
	ValueIndex int

	// Value is the (operator, reward) tuple being proven
	Value types.OperatorReward

	// Leaf is the hash of the leaf being proven
	Leaf common.Hash

	// Proof contains the sibling hashes from leaf to root
	// proof[0] is the sibling of the leaf, proof[len-1] is a child of the root
	Proof []common.Hash
}
