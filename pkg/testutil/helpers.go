package testutil

import (
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Layr-Labs/eigenx-rewards-go/internal/tests"
	"github.com/Layr-Labs/eigenx-rewards-go/pkg/types"
)

// CreateTestOperators returns n distinct operator addresses, 0x..01 through 0x..n.
func CreateTestOperators(n int) []common.Address {
	operators := make([]common.Address, n)
	for i := range operators {
		operators[i] = common.BigToAddress(big.NewInt(int64(i + 1)))
	}
	return operators
}

// CreateTestTokenGroup creates a token group where operator i earns (i+1)*rewardStep.
func CreateTestTokenGroup(token string, operators []common.Address, rewardStep uint64) types.TokenDistribution {
	entries := make([]types.OperatorEntry, len(operators))
	for i, operator := range operators {
		entries[i] = types.OperatorEntry{
			Operator: operator.Hex(),
			Reward:   types.FlexString(fmt.Sprintf("%d", uint64(i+1)*rewardStep)),
		}
	}
	return types.TokenDistribution{Token: types.TokenID(token), Operators: entries}
}

// CreateTestDistribution creates numTokens token groups named token-0 .. token-(n-1),
// each paying the same numOperators operators with a per-token reward step.
func CreateTestDistribution(numTokens, numOperators int) []types.TokenDistribution {
	operators := CreateTestOperators(numOperators)
	distribution := make([]types.TokenDistribution, numTokens)
	for i := range distribution {
		distribution[i] = CreateTestTokenGroup(fmt.Sprintf("token-%d", i), operators, uint64(1000*(i+1)))
	}
	return distribution
}

// LoadFixtureDistribution reads internal/testData/distribution.json into the
// production distribution shape.
func LoadFixtureDistribution(t *testing.T) []types.TokenDistribution {
	t.Helper()

	groups, err := tests.ReadDistributionFixture(tests.GetProjectRootPath())
	if err != nil {
		t.Fatalf("Failed to read distribution fixture: %v", err)
	}

	distribution := make([]types.TokenDistribution, len(groups))
	for i, group := range groups {
		entries := make([]types.OperatorEntry, len(group.Operators))
		for j, op := range group.Operators {
			entries[j] = types.OperatorEntry{Operator: op.Operator, Reward: types.FlexString(op.Reward.String())}
		}
		distribution[i] = types.TokenDistribution{Token: types.TokenID(group.Token), Operators: entries}
	}
	return distribution
}
