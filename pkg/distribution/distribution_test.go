package distribution

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Layr-Labs/eigenx-rewards-go/internal/tests"
	"github.com/Layr-Labs/eigenx-rewards-go/pkg/merkle"
	"github.com/Layr-Labs/eigenx-rewards-go/pkg/rewards"
	"github.com/Layr-Labs/eigenx-rewards-go/pkg/testutil"
	"github.com/Layr-Labs/eigenx-rewards-go/pkg/types"
)

func TestReadDistributionFile_Fixture(t *testing.T) {
	distribution, err := ReadDistributionFile(tests.DistributionFixturePath(tests.GetProjectRootPath()))
	require.NoError(t, err)
	require.Len(t, distribution, 3)

	assert.Equal(t, types.TokenID("0xec53bF9167f50cDEB3Ae105f56099aaaB9061F83"), distribution[0].Token)
	require.Len(t, distribution[0].Operators, 3)
	assert.Equal(t, "0x5ACCC90436492F24E6aF278569691e2c942A676d", distribution[0].Operators[0].Operator)
	assert.Equal(t, types.FlexString("1250000000000000000000"), distribution[0].Operators[0].Reward)

	// numeric reward keeps every digit
	assert.Equal(t, types.FlexString("17000000000000000"), distribution[1].Operators[1].Reward)
}

func TestReadDistributionFile_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadDistributionFile(filepath.Join(dir, "missing.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read file")

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"token": "not a list"}`), 0o644))
	_, err = ReadDistributionFile(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal")

	truncated := filepath.Join(dir, "truncated.json")
	require.NoError(t, os.WriteFile(truncated, []byte(`[{"token":"a","operators":[]}`), 0o644))
	_, err = ReadDistributionFile(truncated)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal")
}

func TestReadDistributionFile_BadGroupFailsAlone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "distribution.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
  {"token": "good", "operators": [{"operator": "0x0000000000000000000000000000000000000001", "reward": "5"}]},
  {"token": "bad", "operators": [{"operator": "0x0000000000000000000000000000000000000002", "reward": true}]},
  {"token": 7, "operators": []}
]`), 0o644))

	distribution, err := ReadDistributionFile(path)
	require.NoError(t, err)
	require.Len(t, distribution, 3)

	require.NoError(t, distribution[0].Err)
	assert.Equal(t, types.TokenID("good"), distribution[0].Token)
	assert.Equal(t, types.FlexString("5"), distribution[0].Operators[0].Reward)

	assert.Equal(t, types.TokenID("bad"), distribution[1].Token)
	assert.ErrorIs(t, distribution[1].Err, merkle.ErrMalformedLeaf)
	assert.ErrorContains(t, distribution[1].Err, "expected string or number")

	assert.Equal(t, types.TokenID("7"), distribution[2].Token)
	assert.ErrorIs(t, distribution[2].Err, merkle.ErrMalformedLeaf)

	p := rewards.NewPipeline(&rewards.PipelineConfig{Workers: 2}, zap.NewNop())
	results := p.BuildTrees(distribution)
	require.Len(t, rewards.Failures(results), 2)
	assert.True(t, results[0].OK())
	assert.ErrorIs(t, results[1].Err, merkle.ErrMalformedLeaf)
	assert.ErrorIs(t, results[2].Err, merkle.ErrMalformedLeaf)
}

func TestDistributionFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "distribution.json")
	distribution := testutil.CreateTestDistribution(2, 3)

	require.NoError(t, WriteDistributionFile(path, distribution))

	loaded, err := ReadDistributionFile(path)
	require.NoError(t, err)
	assert.Equal(t, distribution, loaded)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "[\n  {\n    \"token\": \"token-0\""))
	assert.Contains(t, string(data), `"reward": "1000"`)
}

func TestWriteDistributionFile_Nil(t *testing.T) {
	path := filepath.Join(t.TempDir(), "distribution.json")
	require.NoError(t, WriteDistributionFile(path, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))
}

func TestTreesFile_RoundTrip(t *testing.T) {
	p := rewards.NewPipeline(&rewards.PipelineConfig{Workers: 2}, zap.NewNop())
	built := p.BuildTrees(testutil.CreateTestDistribution(3, 5))
	require.NoError(t, rewards.Err(built))

	path := filepath.Join(t.TempDir(), "trees.json")
	require.NoError(t, WriteTreesFile(path, rewards.TreeRecords(built)))

	records, err := ReadTreesFile(path)
	require.NoError(t, err)
	require.Len(t, records, 3)

	loaded := p.LoadTrees(records)
	require.NoError(t, rewards.Err(loaded))
	assert.Equal(t, rewards.Roots(built), rewards.Roots(loaded))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"format": "standard-v1"`)
	assert.Contains(t, string(data), `"treeIndex"`)
}

func TestReadTreesFile_CorruptEntryFailsAlone(t *testing.T) {
	p := rewards.NewPipeline(&rewards.PipelineConfig{Workers: 2}, zap.NewNop())
	built := p.BuildTrees(testutil.CreateTestDistribution(2, 3))
	require.NoError(t, rewards.Err(built))

	path := filepath.Join(t.TempDir(), "trees.json")
	require.NoError(t, WriteTreesFile(path, rewards.TreeRecords(built)))

	// cut the last node hash of token-1 to 62 hex characters
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	last := built[1].Tree.Nodes()[len(built[1].Tree.Nodes())-1].Hex()
	require.Equal(t, 1, strings.Count(string(data), last))
	data = []byte(strings.Replace(string(data), last, last[:len(last)-2], 1))
	require.NoError(t, os.WriteFile(path, data, 0o644))

	records, err := ReadTreesFile(path)
	require.NoError(t, err)
	require.Len(t, records, 2)

	require.NoError(t, records[0].Err)
	assert.Equal(t, types.TokenID("token-1"), records[1].Token)
	assert.ErrorIs(t, records[1].Err, merkle.ErrCorruptTreeRecord)

	loaded := p.LoadTrees(records)
	assert.True(t, loaded[0].OK())
	assert.Equal(t, built[0].Tree.Root, loaded[0].Tree.Root)
	assert.ErrorIs(t, loaded[1].Err, merkle.ErrCorruptTreeRecord)
	require.Len(t, rewards.Failures(loaded), 1)
}

func TestReadTreesFile_NullEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trees.json")
	require.NoError(t, os.WriteFile(path, []byte(`[null]`), 0o644))

	records, err := ReadTreesFile(path)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Nil(t, records[0])
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	err := WriteJSON(&buf, []types.TokenProof{{Token: "eigen", Reward: "5"}})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(buf.String(), "]\n"))
	assert.Contains(t, buf.String(), `"token": "eigen"`)
}
