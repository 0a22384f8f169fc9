package persistence

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/Layr-Labs/eigenx-rewards-go/pkg/merkle"
	"github.com/Layr-Labs/eigenx-rewards-go/pkg/types"
)

// StoredTree is a serialized token tree together with storage metadata.
type StoredTree struct {
	// Token is the token group this tree belongs to.
	Token types.TokenID `json:"token"`

	// Root is the tree root at the time it was stored.
	// Checked against the reloaded tree so a swapped record is detected.
	Root common.Hash `json:"root"`

	// GenerationID identifies the set of trees stored together.
	// Together with Token it is the primary key.
	GenerationID string `json:"generationId"`

	// StoredAt is the Unix timestamp when the tree was stored
	StoredAt int64 `json:"storedAt"`

	// Position is the index of the token group in the supplied trees record.
	// Used to list trees in the order they were supplied.
	Position int `json:"position"`

	// Tree is the serialized merkle tree
	Tree *merkle.TreeDump `json:"tree"`

	// Err is set by ListTrees when the record under this key could not be decoded.
	Err error `json:"-"`
}
