package tests

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// GetProjectRootPath walks up from the working directory to the directory holding go.mod.
func GetProjectRootPath() string {
	wd, err := os.Getwd()
	if err != nil {
		panic(err)
	}

	p := wd
	for iterations := 0; iterations <= 10; iterations++ {
		if _, err := os.Stat(filepath.Join(p, "go.mod")); err == nil {
			return p
		}
		parent := filepath.Dir(p)
		if parent == p {
			break
		}
		p = parent
	}
	panic(fmt.Sprintf("Could not find project root path from %s", wd))
}

// DistributionFixturePath is the sample reward distribution shipped with the repo.
func DistributionFixturePath(projectRoot string) string {
	return filepath.Join(projectRoot, "internal", "testData", "distribution.json")
}

// FixtureOperator is one operator entry of the sample distribution.
// Rewards appear both as JSON strings and as JSON numbers.
type FixtureOperator struct {
	Operator string      `json:"operator"`
	Reward   json.Number `json:"reward"`
}

// FixtureTokenGroup is one token group of the sample distribution.
type FixtureTokenGroup struct {
	Token     string            `json:"token"`
	Operators []FixtureOperator `json:"operators"`
}

// ReadDistributionFixture reads the sample distribution without going through
// the production parsers, so tests can compare against it independently.
func ReadDistributionFixture(projectRoot string) ([]FixtureTokenGroup, error) {
	filePath := DistributionFixturePath(projectRoot)

	file, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var groups []FixtureTokenGroup
	if err := json.Unmarshal(file, &groups); err != nil {
		return nil, fmt.Errorf("failed to unmarshal file: %w", err)
	}
	return groups, nil
}
