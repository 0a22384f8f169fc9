package types

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// TokenID identifies one token group (one reward table and its merkle tree).
// It is opaque to the merkle engine and only used as a key.
type TokenID string

func (t TokenID) String() string {
	return string(t)
}

// ParseTokenID canonicalizes a token identifier supplied at the boundary.
func ParseTokenID(s string) (TokenID, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return "", fmt.Errorf("token identifier cannot be empty")
	}
	return TokenID(trimmed), nil
}

// OperatorReward is the leaf value of a rewards merkle tree: the solidity
// tuple (address operator, uint256 reward).
type OperatorReward struct {
	Operator common.Address
	Reward   *uint256.Int
}

// NewOperatorReward is a convenience constructor used mostly by tests and fixtures.
func NewOperatorReward(operator common.Address, reward uint64) OperatorReward {
	return OperatorReward{
		Operator: operator,
		Reward:   uint256.NewInt(reward),
	}
}

// Equal reports whether both tuples have the same operator and exactly the same reward.
func (o OperatorReward) Equal(other OperatorReward) bool {
	if o.Operator != other.Operator {
		return false
	}
	if o.Reward == nil || other.Reward == nil {
		return o.Reward == other.Reward
	}
	return o.Reward.Eq(other.Reward)
}

func (o OperatorReward) String() string {
	reward := "<nil>"
	if o.Reward != nil {
		reward = o.Reward.Dec()
	}
	return fmt.Sprintf("(%s, %s)", o.Operator.Hex(), reward)
}

// ParseOperatorAddress parses a 0x-prefixed, 40 hex character address.
// Comparison on the returned value is case-insensitive with respect to the input text.
func ParseOperatorAddress(s string) (common.Address, error) {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "0x") && !strings.HasPrefix(trimmed, "0X") {
		return common.Address{}, fmt.Errorf("address %q must be 0x-prefixed", s)
	}
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("invalid address format: %q", s)
	}
	return common.HexToAddress(trimmed), nil
}

// ParseReward parses an unsigned base-10 integer that must fit in 256 bits.
func ParseReward(s string) (*uint256.Int, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil, fmt.Errorf("reward cannot be empty")
	}
	for _, c := range trimmed {
		if c < '0' || c > '9' {
			return nil, fmt.Errorf("reward %q is not an unsigned decimal integer", s)
		}
	}
	reward, err := uint256.FromDecimal(trimmed)
	if err != nil {
		return nil, fmt.Errorf("reward %q does not fit in uint256: %w", s, err)
	}
	return reward, nil
}

// FlexString holds a textual scalar that may arrive either as a JSON string
// or as a bare JSON number. It is always written back as a JSON string.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", string(data))
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string {
	return string(f)
}

// OperatorEntry is one row of a token's reward table as exchanged with the
// outside world.
type OperatorEntry struct {
	Operator string     `json:"operator"`
	Reward   FlexString `json:"reward"`
}

// TokenDistribution is the reward table of a single token group.
type TokenDistribution struct {
	Token     TokenID         `json:"token"`
	Operators []OperatorEntry `json:"operators"`

	// Err is set when the group could not be decoded. Building its tree fails
	// with it and leaves the other groups alone.
	Err error `json:"-"`
}

// TokenRoot is the published commitment for one token group.
type TokenRoot struct {
	Token TokenID     `json:"token"`
	Root  common.Hash `json:"root"`
}

// TokenProof is an inclusion proof for one operator in one token group.
type TokenProof struct {
	Token  TokenID       `json:"token"`
	Reward string        `json:"reward"`
	Proof  []common.Hash `json:"proof"`
}
