package merkle

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Layr-Labs/eigenx-rewards-go/pkg/types"
)

// BuildMerkleTree creates a binary merkle tree from (operator, reward) values.
// Leaf hashes are sorted ascending before the tree is built, so the root only
// depends on the multiset of values and not on the order they were supplied in.
//
// Internal nodes are HashPair(left, right). There is no padding: the tree is
// complete, filled from the root, with the sorted leaves in the last level(s).
func BuildMerkleTree(values []types.OperatorReward) (*MerkleTree, error) {
	if len(values) == 0 {
		return nil, ErrEmptyInput
	}

	// Hash all leaves
	hashes := make([]common.Hash, len(values))
	leafLookup := make(map[common.Hash]int, len(values))
	for i, value := range values {
		hash, err := LeafHash(value)
		if err != nil {
			return nil, fmt.Errorf("value %d: %w", i, err)
		}
		if j, exists := leafLookup[hash]; exists {
			return nil, fmt.Errorf("%w: values %d and %d are both %s", ErrDuplicateLeaf, j, i, value.String())
		}
		leafLookup[hash] = i
		hashes[i] = hash
	}

	// Sort leaves by hash for deterministic ordering
	order := make([]int, len(values))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool {
		return compareHashes(hashes[order[i]], hashes[order[j]]) < 0
	})

	nodes := make([]common.Hash, 2*len(values)-1)
	indexed := make([]IndexedValue, len(values))
	operatorLookup := make(map[common.Address][]int)
	for i, value := range values {
		indexed[i].Value = copyValue(value)
		operatorLookup[value.Operator] = append(operatorLookup[value.Operator], i)
	}

	for position, valueIndex := range order {
		treeIndex := len(nodes) - 1 - position
		nodes[treeIndex] = hashes[valueIndex]
		indexed[valueIndex].TreeIndex = treeIndex
	}

	// Build internal nodes bottom-up
	for i := len(nodes) - 1 - len(values); i >= 0; i-- {
		nodes[i] = HashPair(nodes[leftChild(i)], nodes[rightChild(i)])
	}

	return &MerkleTree{
		Root:           nodes[0],
		nodes:          nodes,
		values:         indexed,
		leafLookup:     leafLookup,
		operatorLookup: operatorLookup,
	}, nil
}

// Len returns the number of leaves in the tree.
func (mt *MerkleTree) Len() int {
	return len(mt.values)
}

// Values returns the leaf values in the order they were supplied.
func (mt *MerkleTree) Values() []IndexedValue {
	out := make([]IndexedValue, len(mt.values))
	for i, v := range mt.values {
		out[i] = IndexedValue{Value: copyValue(v.Value), TreeIndex: v.TreeIndex}
	}
	return out
}

// Nodes returns a copy of the node array, root first.
func (mt *MerkleTree) Nodes() []common.Hash {
	out := make([]common.Hash, len(mt.nodes))
	copy(out, mt.nodes)
	return out
}

// GenerateProof creates a merkle proof for the value at the given index
// (index into the caller supplied order).
func (mt *MerkleTree) GenerateProof(valueIndex int) (*MerkleProof, error) {
	if valueIndex < 0 || valueIndex >= len(mt.values) {
		return nil, fmt.Errorf("value index %d out of bounds (tree has %d leaves)", valueIndex, len(mt.values))
	}

	value := mt.values[valueIndex]
	proof := make([]common.Hash, 0)

	// Traverse from leaf to root, collecting sibling hashes
	for index := value.TreeIndex; index > 0; index = parent(index) {
		proof = append(proof, mt.nodes[sibling(index)])
	}

	return &MerkleProof{
		ValueIndex: valueIndex,
		Value:      copyValue(value.Value),
		Leaf:       mt.nodes[value.TreeIndex],
		Proof:      proof,
	}, nil
}

// ProveInclusion creates a merkle proof for an exact (operator, reward) value.
// Returns ErrLeafNotFound if the value is not a leaf of this tree.
func (mt *MerkleTree) ProveInclusion(value types.OperatorReward) (*MerkleProof, error) {
	index, err := mt.IndexOf(value)
	if err != nil {
		return nil, err
	}
	return mt.GenerateProof(index)
}

// IndexOf returns the position of an exact (operator, reward) value in the caller supplied order.
func (mt *MerkleTree) IndexOf(value types.OperatorReward) (int, error) {
	hash, err := LeafHash(value)
	if err != nil {
		return -1, err
	}
	index, ok := mt.leafLookup[hash]
	if !ok {
		return -1, fmt.Errorf("%w: %s", ErrLeafNotFound, value.String())
	}
	return index, nil
}

// ProofsForOperator returns one proof per leaf that belongs to the operator,
// in the caller supplied order. Returns ErrLeafNotFound if the operator has no leaf.
func (mt *MerkleTree) ProofsForOperator(operator common.Address) ([]*MerkleProof, error) {
	indexes, ok := mt.operatorLookup[operator]
	if !ok {
		return nil, fmt.Errorf("%w: operator %s", ErrLeafNotFound, operator.Hex())
	}

	proofs := make([]*MerkleProof, 0, len(indexes))
	for _, index := range indexes {
		proof, err := mt.GenerateProof(index)
		if err != nil {
			return nil, err
		}
		proofs = append(proofs, proof)
	}
	return proofs, nil
}

// VerifyProof checks that value is included under root using only the value,
// the sibling path and the root. A malformed value never verifies.
func VerifyProof(root common.Hash, value types.OperatorReward, proof []common.Hash) bool {
	leaf, err := LeafHash(value)
	if err != nil {
		return false
	}
	return VerifyLeafProof(root, leaf, proof)
}

// VerifyLeafProof folds the proof over an already hashed leaf and compares the result with root.
func VerifyLeafProof(root common.Hash, leaf common.Hash, proof []common.Hash) bool {
	currentHash := leaf
	for _, siblingHash := range proof {
		currentHash = HashPair(currentHash, siblingHash)
	}
	return currentHash == root
}

// Verify checks the proof against the given root.
func (p *MerkleProof) Verify(root common.Hash) bool {
	if p == nil {
		return false
	}
	return VerifyProof(root, p.Value, p.Proof)
}

func leftChild(i int) int  { return 2*i + 1 }
func rightChild(i int) int { return 2*i + 2 }
func parent(i int) int     { return (i - 1) / 2 }

// sibling of a left child (odd index) is the next node, of a right child the previous one
func sibling(i int) int {
	if i%2 == 1 {
		return i + 1
	}
	return i - 1
}

func copyValue(v types.OperatorReward) types.OperatorReward {
	out := types.OperatorReward{Operator: v.Operator}
	if v.Reward != nil {
		out.Reward = v.Reward.Clone()
	}
	return out
}
