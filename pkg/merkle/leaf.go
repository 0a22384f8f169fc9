package merkle

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/Layr-Labs/eigenx-rewards-go/pkg/types"
)

// LeafEncoding is the solidity tuple type of every leaf.
var LeafEncoding = []string{"address", "uint256"}

// leafArguments packs (address, uint256) the same way abi.encode does on-chain.
var leafArguments = func() abi.Arguments {
	addressType, _ := abi.NewType("address", "", nil)
	uint256Type, _ := abi.NewType("uint256", "", nil)
	return abi.Arguments{{Type: addressType}, {Type: uint256Type}}
}()

// EncodeLeaf returns abi.encode(operator, reward): two 32-byte words, the
// left-padded address followed by the big-endian reward.
func EncodeLeaf(operator common.Address, reward *uint256.Int) ([]byte, error) {
	if reward == nil {
		return nil, fmt.Errorf("%w: reward for %s is missing", ErrMalformedLeaf, operator.Hex())
	}

	encoded, err := leafArguments.Pack(operator, reward.ToBig())
	if err != nil {
		return nil, fmt.Errorf("%w: failed to abi encode (%s, %s): %w", ErrMalformedLeaf, operator.Hex(), reward.Dec(), err)
	}
	return encoded, nil
}

// HashLeaf computes keccak256(keccak256(encoded)).
//
// The second round separates leaves from internal nodes: an internal node is
// the hash of 64 bytes of child hashes, a leaf is the hash of a 32-byte hash.
// This matches the leaf hashing expected by OpenZeppelin's MerkleProof.
func HashLeaf(encoded []byte) common.Hash {
	return crypto.Keccak256Hash(crypto.Keccak256(encoded))
}

// LeafHash encodes and hashes a value.
func LeafHash(value types.OperatorReward) (common.Hash, error) {
	encoded, err := EncodeLeaf(value.Operator, value.Reward)
	if err != nil {
		return common.Hash{}, err
	}
	return HashLeaf(encoded), nil
}

// ParseLeafValue converts the textual (operator, reward) pair into a leaf
// value. Any format problem is reported as ErrMalformedLeaf.
func ParseLeafValue(operator, reward string) (types.OperatorReward, error) {
	address, err := types.ParseOperatorAddress(operator)
	if err != nil {
		return types.OperatorReward{}, fmt.Errorf("%w: %w", ErrMalformedLeaf, err)
	}

	amount, err := types.ParseReward(reward)
	if err != nil {
		return types.OperatorReward{}, fmt.Errorf("%w: operator %s: %w", ErrMalformedLeaf, address.Hex(), err)
	}

	return types.OperatorReward{Operator: address, Reward: amount}, nil
}

// HashPair computes keccak256(min(a, b) || max(a, b)).
// Children are ordered before hashing, so HashPair(a, b) == HashPair(b, a)
// and a verifier never needs to know which side a sibling was on.
func HashPair(a, b common.Hash) common.Hash {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	return crypto.Keccak256Hash(a[:], b[:])
}

// compareHashes orders hashes as unsigned 256-bit big-endian integers.
func compareHashes(a, b common.Hash) int {
	return bytes.Compare(a[:], b[:])
}
