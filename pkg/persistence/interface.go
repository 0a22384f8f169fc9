package persistence

import "github.com/Layr-Labs/eigenx-rewards-go/pkg/types"

// ITreePersistence defines the interface for storing serialized token trees.
// All implementations must be thread-safe.
//
// The interface supports:
// - Tree management (save, load, list) keyed by generation and token
// - Generation management (list, delete, active pointer)
// - Lifecycle management (close, health check)
//
// Trees of one generation never overwrite trees of another, so a generation
// stays readable until it is deleted. Stores hold serialized trees verbatim.
// They do not validate them; callers load stored trees through
// merkle.LoadMerkleTree, which rejects corrupt records.
type ITreePersistence interface {
	// Tree Management

	// SaveTree persists a serialized tree indexed by its generation and token.
	// Overwrites any existing tree for the same generation and token.
	SaveTree(tree *StoredTree) error

	// LoadTree retrieves the stored tree of a token in a generation.
	// Returns nil if there is no such tree, error only on storage failure.
	LoadTree(generationID string, token types.TokenID) (*StoredTree, error)

	// ListTrees returns all trees of a generation sorted with SortStoredTrees.
	// A record that cannot be decoded is returned with only Token,
	// GenerationID and Err set, so the caller can report it per token.
	// Returns empty slice if the generation holds no trees, error only on storage failure.
	ListTrees(generationID string) ([]*StoredTree, error)

	// Generation Management

	// ListGenerations returns the IDs of every generation holding at least one tree, sorted.
	ListGenerations() ([]string, error)

	// DeleteGeneration removes every tree of a generation.
	// Idempotent - returns nil if the generation holds no trees.
	DeleteGeneration(generationID string) error

	// SetActiveGeneration stores which generation of trees is current.
	SetActiveGeneration(generationID string) error

	// GetActiveGeneration returns the current generation ID.
	// Returns "" if no generation has been activated yet (first run).
	GetActiveGeneration() (string, error)

	// Lifecycle Management

	// Close cleanly shuts down the persistence layer.
	// Idempotent - safe to call multiple times.
	// After Close(), all other operations should return errors.
	Close() error

	// HealthCheck verifies the persistence layer is operational.
	// Returns nil if healthy, error describing the problem if not.
	HealthCheck() error
}
