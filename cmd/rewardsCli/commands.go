package main

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/Layr-Labs/eigenx-rewards-go/pkg/config"
	"github.com/Layr-Labs/eigenx-rewards-go/pkg/distribution"
	"github.com/Layr-Labs/eigenx-rewards-go/pkg/logger"
	"github.com/Layr-Labs/eigenx-rewards-go/pkg/rewards"
	"github.com/Layr-Labs/eigenx-rewards-go/pkg/types"
)

type commandEnv struct {
	cfg      *config.RewardsCliConfig
	logger   *zap.Logger
	pipeline *rewards.Pipeline
	ctx      *cli.Context
}

type requirement func(cfg *config.RewardsCliConfig)

func needDistribution(cfg *config.RewardsCliConfig) { cfg.RequireDistribution = true }
func needTrees(cfg *config.RewardsCliConfig)        { cfg.RequireTrees = true }
func needOperator(cfg *config.RewardsCliConfig)     { cfg.RequireOperator = true }
func needPersistence(cfg *config.RewardsCliConfig)  { cfg.RequirePersistence = true }

func newCommandEnv(c *cli.Context, requirements ...requirement) (*commandEnv, error) {
	cfg, err := parseRewardsCliConfig(c)
	if err != nil {
		return nil, errors.Wrap(err, "configuration error")
	}
	for _, apply := range requirements {
		apply(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Verbose})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create logger")
	}

	return &commandEnv{
		cfg:      cfg,
		logger:   l,
		pipeline: rewards.NewPipeline(&rewards.PipelineConfig{Workers: cfg.Workers}, l),
		ctx:      c,
	}, nil
}

func parseRewardsCliConfig(c *cli.Context) (*config.RewardsCliConfig, error) {
	operator := c.String("operator")
	if operator == "" {
		operator = c.Args().First()
	}

	cfg := &config.RewardsCliConfig{
		DistributionFile: c.String("distribution"),
		TreesFile:        c.String("trees"),
		OutputFile:       c.String("output"),
		Operator:         operator,
		Workers:          c.Int("workers"),
		Verbose:          c.Bool("verbose"),
	}

	if c.String("persistence-type") != "" {
		persistenceConfig, err := parsePersistenceConfig(c)
		if err != nil {
			return nil, err
		}
		cfg.Persistence = persistenceConfig
	}
	return cfg, nil
}

func (e *commandEnv) close() {
	_ = e.logger.Sync()
}

func (e *commandEnv) operator() common.Address {
	// validated by config
	address, _ := types.ParseOperatorAddress(e.cfg.Operator)
	return address
}

// writeResult writes v to the output file, or to the app's writer when none is set
func (e *commandEnv) writeResult(v any) error {
	if e.cfg.OutputFile == "" {
		return distribution.WriteJSON(e.ctx.App.Writer, v)
	}
	if err := distribution.WriteJSONFile(e.cfg.OutputFile, v); err != nil {
		return err
	}
	e.logger.Sugar().Infow("Output written", "path", e.cfg.OutputFile)
	return nil
}

func (e *commandEnv) buildFromDistribution() ([]*rewards.TokenResult, error) {
	input, err := distribution.ReadDistributionFile(e.cfg.DistributionFile)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read distribution %s", e.cfg.DistributionFile)
	}
	e.logger.Sugar().Infow("Building token trees", "distribution", e.cfg.DistributionFile, "tokens", len(input))
	return e.pipeline.BuildTrees(input), nil
}

func (e *commandEnv) loadFromTrees() ([]*rewards.TokenResult, error) {
	records, err := distribution.ReadTreesFile(e.cfg.TreesFile)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read trees %s", e.cfg.TreesFile)
	}
	e.logger.Sugar().Infow("Loading token trees", "trees", e.cfg.TreesFile, "tokens", len(records))
	return e.pipeline.LoadTrees(records), nil
}

func (e *commandEnv) loadFromStore() ([]*rewards.TokenResult, error) {
	store, err := newTreePersistence(e.cfg.Persistence, e.logger)
	if err != nil {
		return nil, err
	}
	defer func() { _ = store.Close() }()

	results, err := e.pipeline.LoadStoredTrees(store)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load stored trees")
	}
	return results, nil
}

func (e *commandEnv) writeRoots(results []*rewards.TokenResult) error {
	roots := rewards.Roots(results)
	for _, root := range roots {
		e.logger.Sugar().Infow("Token root", "token", root.Token, "root", root.Root.Hex())
	}
	if err := e.writeResult(roots); err != nil {
		return errors.Wrap(err, "failed to write roots")
	}
	return failedTokens(results)
}

func (e *commandEnv) writeProofs(results []*rewards.TokenResult) error {
	operator := e.operator()
	proofs := e.pipeline.ProofsForOperator(results, operator)
	for _, proof := range proofs {
		e.logger.Sugar().Infow("Operator proof",
			"token", proof.Token, "operator", operator.Hex(), "reward", proof.Reward, "proof", proof.Proof)
	}
	if len(proofs) == 0 {
		e.logger.Sugar().Warnw("Operator not found in any token tree", "operator", operator.Hex())
	}
	if err := e.writeResult(proofs); err != nil {
		return errors.Wrap(err, "failed to write proofs")
	}
	return failedTokens(results)
}

// failedTokens turns per-token failures into the command's error once all output is written
func failedTokens(results []*rewards.TokenResult) error {
	err := rewards.Err(results)
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, "%d token group(s) failed", len(rewards.Failures(results)))
}

func distributionToTrees(c *cli.Context) error {
	env, err := newCommandEnv(c, needDistribution)
	if err != nil {
		return err
	}
	defer env.close()

	results, err := env.buildFromDistribution()
	if err != nil {
		return err
	}
	if err := env.writeResult(rewards.TreeRecords(results)); err != nil {
		return errors.Wrap(err, "failed to write trees")
	}
	return failedTokens(results)
}

func distributionToRoots(c *cli.Context) error {
	env, err := newCommandEnv(c, needDistribution)
	if err != nil {
		return err
	}
	defer env.close()

	results, err := env.buildFromDistribution()
	if err != nil {
		return err
	}
	return env.writeRoots(results)
}

func distributionToProofs(c *cli.Context) error {
	env, err := newCommandEnv(c, needDistribution, needOperator)
	if err != nil {
		return err
	}
	defer env.close()

	results, err := env.buildFromDistribution()
	if err != nil {
		return err
	}
	return env.writeProofs(results)
}

func treesToDistribution(c *cli.Context) error {
	env, err := newCommandEnv(c, needTrees)
	if err != nil {
		return err
	}
	defer env.close()

	results, err := env.loadFromTrees()
	if err != nil {
		return err
	}
	if err := env.writeResult(rewards.Distribution(results)); err != nil {
		return errors.Wrap(err, "failed to write distribution")
	}
	return failedTokens(results)
}

func treesToRoots(c *cli.Context) error {
	env, err := newCommandEnv(c, needTrees)
	if err != nil {
		return err
	}
	defer env.close()

	results, err := env.loadFromTrees()
	if err != nil {
		return err
	}
	return env.writeRoots(results)
}

func treesToProofs(c *cli.Context) error {
	env, err := newCommandEnv(c, needTrees, needOperator)
	if err != nil {
		return err
	}
	defer env.close()

	results, err := env.loadFromTrees()
	if err != nil {
		return err
	}
	return env.writeProofs(results)
}

func storeTrees(c *cli.Context) error {
	env, err := newCommandEnv(c, needTrees, needPersistence)
	if err != nil {
		return err
	}
	defer env.close()

	results, err := env.loadFromTrees()
	if err != nil {
		return err
	}

	store, err := newTreePersistence(env.cfg.Persistence, env.logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	generationID, err := env.pipeline.StoreTrees(store, results)
	if err != nil {
		return errors.Wrap(err, "failed to store trees")
	}
	env.logger.Sugar().Infow("Trees stored",
		"generation", generationID,
		"persistence", env.cfg.Persistence.Type,
		"stored", len(rewards.Roots(results)))
	return failedTokens(results)
}

func storeRoots(c *cli.Context) error {
	env, err := newCommandEnv(c, needPersistence)
	if err != nil {
		return err
	}
	defer env.close()

	results, err := env.loadFromStore()
	if err != nil {
		return err
	}
	return env.writeRoots(results)
}

func storeProofs(c *cli.Context) error {
	env, err := newCommandEnv(c, needOperator, needPersistence)
	if err != nil {
		return err
	}
	defer env.close()

	results, err := env.loadFromStore()
	if err != nil {
		return err
	}
	return env.writeProofs(results)
}
