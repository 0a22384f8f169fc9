package rewards

import (
	"errors"
	"fmt"

	"github.com/Layr-Labs/eigenx-rewards-go/pkg/merkle"
	"github.com/Layr-Labs/eigenx-rewards-go/pkg/types"
)

var (
	// ErrInvalidToken is returned for a token group without a usable identifier.
	ErrInvalidToken = errors.New("invalid token identifier")

	// ErrDuplicateToken is returned for every token group after the first one with the same identifier.
	ErrDuplicateToken = errors.New("duplicate token group")

	// ErrNoTreesToStore is returned when a store request holds no available tree.
	ErrNoTreesToStore = errors.New("no token tree to store")
)

// TokenTree is one entry of a trees record: a token and its serialized merkle tree.
type TokenTree struct {
	Token types.TokenID    `json:"token"`
	Tree  *merkle.TreeDump `json:"tree"`

	// Err is set when the entry could not be decoded. LoadTrees reports it as
	// the failure of this token only.
	Err error `json:"-"`
}

// TokenError ties a failure to the token group it happened in.
type TokenError struct {
	Token types.TokenID
	Err   error
}

func (e *TokenError) Error() string {
	return fmt.Sprintf("token %q: %v", e.Token, e.Err)
}

func (e *TokenError) Unwrap() error {
	return e.Err
}

// TokenResult is the outcome of building or loading the tree of a single token group.
// Exactly one of Tree and Err is set.
type TokenResult struct {
	Token types.TokenID
	Tree  *merkle.MerkleTree
	Err   error
}

// OK reports whether the token's tree is available.
func (r *TokenResult) OK() bool {
	return r != nil && r.Err == nil && r.Tree != nil
}
