package rewards

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Layr-Labs/eigenx-rewards-go/pkg/merkle"
	"github.com/Layr-Labs/eigenx-rewards-go/pkg/types"
)

// PipelineConfig configures a Pipeline.
type PipelineConfig struct {
	// Workers bounds how many token groups are processed at once.
	// Zero or negative means runtime.NumCPU().
	Workers int
}

// Pipeline turns token groups into merkle trees and answers root and proof queries over them.
// Token groups are independent: a failure in one is reported in its result and
// never stops the others.
type Pipeline struct {
	workers int
	logger  *zap.Logger
}

func NewPipeline(cfg *PipelineConfig, logger *zap.Logger) *Pipeline {
	workers := 0
	if cfg != nil {
		workers = cfg.Workers
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pipeline{
		workers: workers,
		logger:  logger,
	}
}

// BuildTrees builds one tree per token group. Results are in the same order as the groups.
func (p *Pipeline) BuildTrees(distribution []types.TokenDistribution) []*TokenResult {
	tokens := make([]string, len(distribution))
	decodeErrs := make([]error, len(distribution))
	for i, group := range distribution {
		tokens[i] = group.Token.String()
		decodeErrs[i] = group.Err
	}

	return p.run("build", tokens, decodeErrs, func(i int) (*merkle.MerkleTree, error) {
		return buildTokenTree(distribution[i].Operators)
	})
}

// LoadTrees reconstructs and validates one tree per trees record entry.
// Results are in the same order as the records.
func (p *Pipeline) LoadTrees(records []*TokenTree) []*TokenResult {
	tokens := make([]string, len(records))
	decodeErrs := make([]error, len(records))
	for i, record := range records {
		if record != nil {
			tokens[i] = record.Token.String()
			decodeErrs[i] = record.Err
		}
	}

	return p.run("load", tokens, decodeErrs, func(i int) (*merkle.MerkleTree, error) {
		if records[i] == nil {
			return nil, fmt.Errorf("%w: record is nil", merkle.ErrCorruptTreeRecord)
		}
		return merkle.LoadMerkleTree(records[i].Tree)
	})
}

// run processes every token in parallel. A token with a decode error fails
// with it and still claims its identifier for duplicate detection.
func (p *Pipeline) run(action string, tokens []string, decodeErrs []error, fn func(i int) (*merkle.MerkleTree, error)) []*TokenResult {
	results := make([]*TokenResult, len(tokens))
	seen := make(map[types.TokenID]int, len(tokens))

	for i, raw := range tokens {
		token, err := types.ParseTokenID(raw)
		if decodeErrs[i] != nil {
			if err != nil {
				token = types.TokenID(raw)
			} else if _, exists := seen[token]; !exists {
				seen[token] = i
			}
			results[i] = &TokenResult{
				Token: token,
				Err:   &TokenError{Token: token, Err: fmt.Errorf("group %d: %w", i, decodeErrs[i])},
			}
			continue
		}
		if err != nil {
			results[i] = &TokenResult{
				Token: types.TokenID(raw),
				Err:   &TokenError{Token: types.TokenID(raw), Err: fmt.Errorf("%w: group %d: %w", ErrInvalidToken, i, err)},
			}
			continue
		}
		if first, exists := seen[token]; exists {
			results[i] = &TokenResult{
				Token: token,
				Err:   &TokenError{Token: token, Err: fmt.Errorf("%w: groups %d and %d", ErrDuplicateToken, first, i)},
			}
			continue
		}
		seen[token] = i
		results[i] = &TokenResult{Token: token}
	}

	var g errgroup.Group
	g.SetLimit(p.workers)

	for i, result := range results {
		if result.Err != nil {
			continue
		}
		g.Go(func() error {
			tree, err := fn(i)
			if err != nil {
				result.Err = &TokenError{Token: result.Token, Err: err}
				return nil
			}
			result.Tree = tree
			return nil
		})
	}
	// per token failures are carried in the results
	_ = g.Wait()

	for _, result := range results {
		if result.Err != nil {
			p.logger.Sugar().Warnw("Failed to "+action+" token tree", "token", result.Token, "error", result.Err)
			continue
		}
		p.logger.Sugar().Debugw("Token tree ready",
			"action", action,
			"token", result.Token,
			"leaves", result.Tree.Len(),
			"root", result.Tree.Root.Hex())
	}

	return results
}

func buildTokenTree(operators []types.OperatorEntry) (*merkle.MerkleTree, error) {
	values := make([]types.OperatorReward, len(operators))
	for i, entry := range operators {
		value, err := merkle.ParseLeafValue(entry.Operator, entry.Reward.String())
		if err != nil {
			return nil, fmt.Errorf("operator entry %d: %w", i, err)
		}
		values[i] = value
	}
	return merkle.BuildMerkleTree(values)
}

// Roots returns the root of every available tree, in result order.
func Roots(results []*TokenResult) []types.TokenRoot {
	roots := make([]types.TokenRoot, 0, len(results))
	for _, result := range results {
		if !result.OK() {
			continue
		}
		roots = append(roots, types.TokenRoot{Token: result.Token, Root: result.Tree.Root})
	}
	return roots
}

// ProofsForOperator scans every available tree, in result order, and returns
// one proof per leaf of the operator. Trees that do not contain the operator
// are skipped.
func (p *Pipeline) ProofsForOperator(results []*TokenResult, operator common.Address) []types.TokenProof {
	proofs := make([]types.TokenProof, 0)
	for _, result := range results {
		if !result.OK() {
			continue
		}

		tokenProofs, err := result.Tree.ProofsForOperator(operator)
		if errors.Is(err, merkle.ErrLeafNotFound) {
			p.logger.Sugar().Debugw("Operator not in token tree", "token", result.Token, "operator", operator.Hex())
			continue
		}
		if err != nil {
			p.logger.Sugar().Warnw("Failed to generate proof", "token", result.Token, "operator", operator.Hex(), "error", err)
			continue
		}

		for _, proof := range tokenProofs {
			proofs = append(proofs, types.TokenProof{
				Token:  result.Token,
				Reward: proof.Value.Reward.Dec(),
				Proof:  proof.Proof,
			})
		}
	}
	return proofs
}

// TreeRecords serializes every available tree, in result order.
func TreeRecords(results []*TokenResult) []*TokenTree {
	records := make([]*TokenTree, 0, len(results))
	for _, result := range results {
		if !result.OK() {
			continue
		}
		records = append(records, &TokenTree{Token: result.Token, Tree: result.Tree.Dump()})
	}
	return records
}

// Distribution converts every available tree back into its reward table.
// Operators keep the order they were originally supplied in.
func Distribution(results []*TokenResult) []types.TokenDistribution {
	distribution := make([]types.TokenDistribution, 0, len(results))
	for _, result := range results {
		if !result.OK() {
			continue
		}

		values := result.Tree.Values()
		operators := make([]types.OperatorEntry, len(values))
		for i, v := range values {
			operators[i] = types.OperatorEntry{
				Operator: v.Value.Operator.Hex(),
				Reward:   types.FlexString(v.Value.Reward.Dec()),
			}
		}
		distribution = append(distribution, types.TokenDistribution{Token: result.Token, Operators: operators})
	}
	return distribution
}

// Failures returns the error of every token group that could not be processed.
func Failures(results []*TokenResult) []*TokenError {
	failures := make([]*TokenError, 0)
	for _, result := range results {
		if result.Err == nil {
			continue
		}
		var tokenErr *TokenError
		if errors.As(result.Err, &tokenErr) {
			failures = append(failures, tokenErr)
			continue
		}
		failures = append(failures, &TokenError{Token: result.Token, Err: result.Err})
	}
	return failures
}

// Err joins all per-token failures, or returns nil if every token group succeeded.
func Err(results []*TokenResult) error {
	failures := Failures(results)
	if len(failures) == 0 {
		return nil
	}
	errs := make([]error, len(failures))
	for i, failure := range failures {
		errs[i] = failure
	}
	return errors.Join(errs...)
}
