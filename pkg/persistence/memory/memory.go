package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Layr-Labs/eigenx-rewards-go/pkg/merkle"
	"github.com/Layr-Labs/eigenx-rewards-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-rewards-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
)

// MemoryPersistence is an in-memory implementation of ITreePersistence.
// All data is stored in memory and will be lost when the process exits.
// Thread-safe using sync.RWMutex for concurrent access.
// Deep copies data to prevent external mutation.
type MemoryPersistence struct {
	mu sync.RWMutex

	// Tree storage: generation -> token -> StoredTree
	generations map[string]map[types.TokenID]*persistence.StoredTree

	// Active generation tracking
	activeGeneration string

	// Closed flag
	closed bool
}

// NewMemoryPersistence creates a new in-memory persistence layer.
func NewMemoryPersistence() *MemoryPersistence {
	return &MemoryPersistence{
		generations: make(map[string]map[types.TokenID]*persistence.StoredTree),
	}
}

// SaveTree persists a serialized tree.
func (m *MemoryPersistence) SaveTree(tree *persistence.StoredTree) error {
	if tree == nil {
		return fmt.Errorf("cannot save nil StoredTree")
	}
	if tree.GenerationID == "" {
		return fmt.Errorf("cannot save StoredTree for token %q without a generation", tree.Token)
	}
	if tree.Tree == nil {
		return fmt.Errorf("cannot save StoredTree for token %q without a tree", tree.Token)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	trees, exists := m.generations[tree.GenerationID]
	if !exists {
		trees = make(map[types.TokenID]*persistence.StoredTree)
		m.generations[tree.GenerationID] = trees
	}
	trees[tree.Token] = deepCopyStoredTree(tree)
	return nil
}

// LoadTree retrieves the stored tree of a token in a generation.
func (m *MemoryPersistence) LoadTree(generationID string, token types.TokenID) (*persistence.StoredTree, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	tree, exists := m.generations[generationID][token]
	if !exists {
		return nil, nil // Not found is not an error
	}

	return deepCopyStoredTree(tree), nil
}

// ListTrees returns all trees of a generation sorted by position.
func (m *MemoryPersistence) ListTrees(generationID string) ([]*persistence.StoredTree, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	trees := m.generations[generationID]
	result := make([]*persistence.StoredTree, 0, len(trees))
	for _, tree := range trees {
		result = append(result, deepCopyStoredTree(tree))
	}
	persistence.SortStoredTrees(result)

	return result, nil
}

// ListGenerations returns the IDs of every generation holding trees.
func (m *MemoryPersistence) ListGenerations() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	generations := make([]string, 0, len(m.generations))
	for generationID := range m.generations {
		generations = append(generations, generationID)
	}
	sort.Strings(generations)
	return generations, nil
}

// DeleteGeneration removes every tree of a generation.
func (m *MemoryPersistence) DeleteGeneration(generationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	delete(m.generations, generationID)
	return nil
}

// SetActiveGeneration stores the active generation ID.
func (m *MemoryPersistence) SetActiveGeneration(generationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	m.activeGeneration = generationID
	return nil
}

// GetActiveGeneration retrieves the active generation ID.
func (m *MemoryPersistence) GetActiveGeneration() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return "", fmt.Errorf("persistence layer is closed")
	}

	return m.activeGeneration, nil
}

// Close shuts down the persistence layer.
func (m *MemoryPersistence) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

// HealthCheck verifies the persistence layer is operational.
func (m *MemoryPersistence) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}
	return nil
}

func deepCopyStoredTree(st *persistence.StoredTree) *persistence.StoredTree {
	out := *st
	if st.Tree != nil {
		dump := &merkle.TreeDump{
			Format:       st.Tree.Format,
			LeafEncoding: append([]string(nil), st.Tree.LeafEncoding...),
			Tree:         append([]common.Hash(nil), st.Tree.Tree...),
			Values:       make([]merkle.DumpedValue, len(st.Tree.Values)),
		}
		for i, v := range st.Tree.Values {
			dump.Values[i] = merkle.DumpedValue{
				Value:     append([]types.FlexString(nil), v.Value...),
				TreeIndex: v.TreeIndex,
			}
		}
		out.Tree = dump
	}
	return &out
}
