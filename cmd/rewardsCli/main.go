package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/Layr-Labs/eigenx-rewards-go/pkg/config"
	"github.com/Layr-Labs/eigenx-rewards-go/pkg/distribution"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "rewards-cli",
		Usage: "Default operator rewards merkle tree tooling",
		Description: `Builds one merkle tree per reward token from an operator reward distribution.

Trees commit to (operator address, reward) leaves encoded as abi.encode(address, uint256)
and are compatible with the OpenZeppelin StandardMerkleTree and MerkleProof libraries.
Every token group is processed independently; a failing group is logged and the command
exits non-zero after all other groups were written.`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable verbose logging",
				EnvVars: []string{config.EnvRewardsVerbose},
			},
			&cli.IntFlag{
				Name:    "workers",
				Usage:   "Token groups processed in parallel (0 = number of CPUs)",
				EnvVars: []string{config.EnvRewardsWorkers},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "distribution-to-trees",
				Usage:  "Build a trees file from a distribution file",
				Flags:  []cli.Flag{distributionFlag(), outputFlag(distribution.DefaultTreesPath)},
				Action: distributionToTrees,
			},
			{
				Name:   "distribution-to-roots",
				Usage:  "Print the root of every token tree built from a distribution file",
				Flags:  []cli.Flag{distributionFlag(), outputFlag("")},
				Action: distributionToRoots,
			},
			{
				Name:      "distribution-to-proofs",
				Usage:     "Print an operator's proof in every token tree built from a distribution file",
				ArgsUsage: "[operator]",
				Flags:     []cli.Flag{distributionFlag(), operatorFlag(), outputFlag("")},
				Action:    distributionToProofs,
			},
			{
				Name:   "trees-to-distribution",
				Usage:  "Recover the distribution file from a trees file",
				Flags:  []cli.Flag{treesFlag(), outputFlag(distribution.DefaultDistributionPath)},
				Action: treesToDistribution,
			},
			{
				Name:   "trees-to-roots",
				Usage:  "Print the root of every tree in a trees file",
				Flags:  []cli.Flag{treesFlag(), outputFlag("")},
				Action: treesToRoots,
			},
			{
				Name:      "trees-to-proofs",
				Usage:     "Print an operator's proof in every tree of a trees file",
				ArgsUsage: "[operator]",
				Flags:     []cli.Flag{treesFlag(), operatorFlag(), outputFlag("")},
				Action:    treesToProofs,
			},
			{
				Name:   "store-trees",
				Usage:  "Validate a trees file and store its trees as the active generation",
				Flags:  append([]cli.Flag{treesFlag()}, persistenceFlags()...),
				Action: storeTrees,
			},
			{
				Name:   "store-roots",
				Usage:  "Print the root of every tree of the active stored generation",
				Flags:  append([]cli.Flag{outputFlag("")}, persistenceFlags()...),
				Action: storeRoots,
			},
			{
				Name:      "store-proofs",
				Usage:     "Print an operator's proof in every tree of the active stored generation",
				ArgsUsage: "[operator]",
				Flags:     append([]cli.Flag{operatorFlag(), outputFlag("")}, persistenceFlags()...),
				Action:    storeProofs,
			},
		},
	}
}

func distributionFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "distribution",
		Aliases: []string{"d"},
		Usage:   "Path of the distribution JSON file",
		Value:   distribution.DefaultDistributionPath,
		EnvVars: []string{config.EnvRewardsDistributionFile},
	}
}

func treesFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "trees",
		Aliases: []string{"t"},
		Usage:   "Path of the trees JSON file",
		Value:   distribution.DefaultTreesPath,
		EnvVars: []string{config.EnvRewardsTreesFile},
	}
}

func operatorFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "operator",
		Aliases: []string{"op"},
		Usage:   "Operator address to generate proofs for (may also be given as the first argument)",
		EnvVars: []string{config.EnvRewardsOperator},
	}
}

func outputFlag(defaultPath string) cli.Flag {
	usage := "Path of the JSON output file"
	if defaultPath == "" {
		usage = "Path of the JSON output file (default: stdout)"
	}
	return &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   usage,
		Value:   defaultPath,
		EnvVars: []string{config.EnvRewardsOutputFile},
	}
}
