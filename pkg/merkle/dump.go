package merkle

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Layr-Labs/eigenx-rewards-go/pkg/types"
)

// FormatStandardV1 identifies the only supported dump format. The layout is
// the one produced by OpenZeppelin's StandardMerkleTree, so existing trees
// files can be loaded unchanged.
const FormatStandardV1 = "standard-v1"

// TreeDump is the self-describing serialized form of a MerkleTree.
type TreeDump struct {
	Format       string        `json:"format"`
	LeafEncoding []string      `json:"leafEncoding"`
	Tree         []common.Hash `json:"tree"`
	Values       []DumpedValue `json:"values"`
}

// DumpedValue is one leaf value as [operator, reward] plus its node index.
type DumpedValue struct {
	Value     []types.FlexString `json:"value"`
	TreeIndex int                `json:"treeIndex"`
}

// Dump serializes the tree. Values are written in the caller supplied order.
func (mt *MerkleTree) Dump() *TreeDump {
	values := make([]DumpedValue, len(mt.values))
	for i, v := range mt.values {
		values[i] = DumpedValue{
			Value: []types.FlexString{
				types.FlexString(v.Value.Operator.Hex()),
				types.FlexString(v.Value.Reward.Dec()),
			},
			TreeIndex: v.TreeIndex,
		}
	}

	leafEncoding := make([]string, len(LeafEncoding))
	copy(leafEncoding, LeafEncoding)

	return &TreeDump{
		Format:       FormatStandardV1,
		LeafEncoding: leafEncoding,
		Tree:         mt.Nodes(),
		Values:       values,
	}
}

// Root returns the root stated by the dump, i.e. the first node.
func (d *TreeDump) Root() (common.Hash, error) {
	if d == nil || len(d.Tree) == 0 {
		return common.Hash{}, fmt.Errorf("%w: tree has no nodes", ErrCorruptTreeRecord)
	}
	return d.Tree[0], nil
}

// LoadMerkleTree reconstructs a tree from its dump. The dump is checked for
// internal consistency and rebuilt from its values; the rebuilt tree must
// match the dumped one node for node. Nothing is ever repaired: every
// inconsistency is reported as ErrCorruptTreeRecord.
func LoadMerkleTree(d *TreeDump) (*MerkleTree, error) {
	if d == nil {
		return nil, fmt.Errorf("%w: dump is nil", ErrCorruptTreeRecord)
	}
	if d.Format != FormatStandardV1 {
		return nil, fmt.Errorf("%w: unrecognized format %q (expected %q)", ErrCorruptTreeRecord, d.Format, FormatStandardV1)
	}
	if !equalLeafEncoding(d.LeafEncoding) {
		return nil, fmt.Errorf("%w: unsupported leaf encoding %v (expected %v)", ErrCorruptTreeRecord, d.LeafEncoding, LeafEncoding)
	}
	if len(d.Values) == 0 {
		return nil, fmt.Errorf("%w: dump has no values", ErrCorruptTreeRecord)
	}

	n := len(d.Values)
	if len(d.Tree) != 2*n-1 {
		return nil, fmt.Errorf("%w: tree has %d nodes, expected %d for %d values", ErrCorruptTreeRecord, len(d.Tree), 2*n-1, n)
	}

	values := make([]types.OperatorReward, n)
	seen := make(map[int]int, n)
	for i, dv := range d.Values {
		if len(dv.Value) != len(LeafEncoding) {
			return nil, fmt.Errorf("%w: value %d has %d fields, expected %d", ErrCorruptTreeRecord, i, len(dv.Value), len(LeafEncoding))
		}
		value, err := ParseLeafValue(dv.Value[0].String(), dv.Value[1].String())
		if err != nil {
			return nil, fmt.Errorf("%w: value %d: %w", ErrCorruptTreeRecord, i, err)
		}

		// leaves occupy nodes [n-1, 2n-2]
		if dv.TreeIndex < n-1 || dv.TreeIndex >= len(d.Tree) {
			return nil, fmt.Errorf("%w: value %d has tree index %d outside the leaf range [%d, %d]", ErrCorruptTreeRecord, i, dv.TreeIndex, n-1, len(d.Tree)-1)
		}
		if j, exists := seen[dv.TreeIndex]; exists {
			return nil, fmt.Errorf("%w: values %d and %d share tree index %d", ErrCorruptTreeRecord, j, i, dv.TreeIndex)
		}
		seen[dv.TreeIndex] = i

		leaf, err := LeafHash(value)
		if err != nil {
			return nil, fmt.Errorf("%w: value %d: %w", ErrCorruptTreeRecord, i, err)
		}
		if d.Tree[dv.TreeIndex] != leaf {
			return nil, fmt.Errorf("%w: value %d does not match leaf at tree index %d", ErrCorruptTreeRecord, i, dv.TreeIndex)
		}
		values[i] = value
	}

	rebuilt, err := BuildMerkleTree(values)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptTreeRecord, err)
	}

	if rebuilt.Root != d.Tree[0] {
		return nil, fmt.Errorf("%w: stated root %s does not match recomputed root %s", ErrCorruptTreeRecord, d.Tree[0].Hex(), rebuilt.Root.Hex())
	}
	for i, node := range rebuilt.nodes {
		if d.Tree[i] != node {
			return nil, fmt.Errorf("%w: node %d is %s, recomputed %s", ErrCorruptTreeRecord, i, d.Tree[i].Hex(), node.Hex())
		}
	}
	return rebuilt, nil
}

func equalLeafEncoding(encoding []string) bool {
	if len(encoding) != len(LeafEncoding) {
		return false
	}
	for i := range encoding {
		if encoding[i] != LeafEncoding[i] {
			return false
		}
	}
	return true
}
