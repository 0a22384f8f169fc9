package persistence

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/Layr-Labs/eigenx-rewards-go/pkg/types"
)

// MarshalStoredTree serializes a StoredTree to JSON bytes.
func MarshalStoredTree(st *StoredTree) ([]byte, error) {
	if st == nil {
		return nil, fmt.Errorf("cannot marshal nil StoredTree")
	}
	if st.GenerationID == "" {
		return nil, fmt.Errorf("cannot marshal StoredTree for token %q without a generation", st.Token)
	}
	if strings.Contains(st.GenerationID, ":") {
		return nil, fmt.Errorf("generation ID %q cannot contain ':'", st.GenerationID)
	}
	if st.Tree == nil {
		return nil, fmt.Errorf("cannot marshal StoredTree for token %q without a tree", st.Token)
	}

	data, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal StoredTree to JSON: %w", err)
	}

	return data, nil
}

// UnmarshalStoredTree deserializes a StoredTree from JSON bytes.
func UnmarshalStoredTree(data []byte) (*StoredTree, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var st StoredTree
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to StoredTree: %w", err)
	}

	return &st, nil
}

// DecodeStoredTree deserializes the value stored under a generation and token key.
// It never fails: a value that does not decode, or that belongs to another key,
// is returned as an undecodable record with Err set.
func DecodeStoredTree(generationID string, token types.TokenID, data []byte) *StoredTree {
	st, err := UnmarshalStoredTree(data)
	if err != nil {
		return UndecodableTree(generationID, token, err)
	}
	if st.GenerationID != generationID || st.Token != token {
		return UndecodableTree(generationID, token,
			fmt.Errorf("record of token %q in generation %q is stored under the key of token %q in generation %q",
				st.Token, st.GenerationID, token, generationID))
	}
	return st
}

// UndecodableTree is the ListTrees entry for a key whose value could not be read back.
func UndecodableTree(generationID string, token types.TokenID, err error) *StoredTree {
	return &StoredTree{
		Token:        token,
		GenerationID: generationID,
		Err:          err,
	}
}

// SortStoredTrees orders trees by Position, then token. Undecodable records
// have no known position and go last, ordered by token.
func SortStoredTrees(trees []*StoredTree) {
	sort.Slice(trees, func(i, j int) bool {
		if (trees[i].Err == nil) != (trees[j].Err == nil) {
			return trees[i].Err == nil
		}
		if trees[i].Err == nil && trees[i].Position != trees[j].Position {
			return trees[i].Position < trees[j].Position
		}
		return trees[i].Token < trees[j].Token
	})
}
