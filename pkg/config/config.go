package config

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"k8s.io/apimachinery/pkg/util/validation/field"
)

// Environment variable names for the rewards CLI
const (
	EnvRewardsDistributionFile = "REWARDS_DISTRIBUTION_FILE"
	EnvRewardsTreesFile        = "REWARDS_TREES_FILE"
	EnvRewardsOutputFile       = "REWARDS_OUTPUT_FILE"
	EnvRewardsOperator         = "REWARDS_OPERATOR"
	EnvRewardsWorkers          = "REWARDS_WORKERS"
	EnvRewardsVerbose          = "REWARDS_VERBOSE"

	EnvRewardsPersistenceType = "REWARDS_PERSISTENCE_TYPE"
	EnvRewardsDataPath        = "REWARDS_DATA_PATH"
	EnvRewardsRedisAddress    = "REWARDS_REDIS_ADDRESS"
	EnvRewardsRedisPassword   = "REWARDS_REDIS_PASSWORD"
	EnvRewardsRedisDB         = "REWARDS_REDIS_DB"
	EnvRewardsRedisKeyPrefix  = "REWARDS_REDIS_KEY_PREFIX"
)

// PersistenceType names a tree store backend.
type PersistenceType string

func (p PersistenceType) String() string {
	return string(p)
}

// Durable reports whether the backend keeps trees after the process exits.
func (p PersistenceType) Durable() bool {
	return p != PersistenceTypeMemory
}

const (
	PersistenceTypeMemory PersistenceType = "memory"
	PersistenceTypeBadger PersistenceType = "badger"
	PersistenceTypeRedis  PersistenceType = "redis"
)

// GetSupportedPersistenceTypes returns all supported tree store backends
func GetSupportedPersistenceTypes() []PersistenceType {
	return []PersistenceType{
		PersistenceTypeMemory,
		PersistenceTypeBadger,
		PersistenceTypeRedis,
	}
}

// GetSupportedPersistenceTypesString returns supported backends as a string for CLI help
func GetSupportedPersistenceTypesString() string {
	return strings.Join(persistenceTypeNames(), ", ")
}

// GetDurablePersistenceTypesString returns the backends a separate process can
// read back, as a string for CLI help
func GetDurablePersistenceTypesString() string {
	return strings.Join(durablePersistenceTypeNames(), ", ")
}

// ParsePersistenceType normalizes and checks a backend name
func ParsePersistenceType(s string) (PersistenceType, error) {
	p := PersistenceType(strings.ToLower(strings.TrimSpace(s)))
	for _, supported := range GetSupportedPersistenceTypes() {
		if p == supported {
			return p, nil
		}
	}
	return "", fmt.Errorf("unsupported persistence type %q. Supported: %s", s, GetSupportedPersistenceTypesString())
}

// PersistenceConfig selects and configures the tree store
type PersistenceConfig struct {
	Type PersistenceType `json:"type"`

	// Badger
	DataPath string `json:"data_path"`

	// Redis
	RedisAddress   string `json:"redis_address"`
	RedisPassword  string `json:"redis_password"`
	RedisDB        int    `json:"redis_db"`
	RedisKeyPrefix string `json:"redis_key_prefix"`
}

func (pc *PersistenceConfig) validate(path *field.Path) field.ErrorList {
	var allErrors field.ErrorList

	switch pc.Type {
	case PersistenceTypeMemory:
	case PersistenceTypeBadger:
		if pc.DataPath == "" {
			allErrors = append(allErrors, field.Required(path.Child("dataPath"), "dataPath is required for badger persistence"))
		}
	case PersistenceTypeRedis:
		if pc.RedisAddress == "" {
			allErrors = append(allErrors, field.Required(path.Child("redisAddress"), "redisAddress is required for redis persistence"))
		}
		if pc.RedisDB < 0 || pc.RedisDB > 15 {
			allErrors = append(allErrors, field.Invalid(path.Child("redisDB"), pc.RedisDB, "must be between 0-15"))
		}
	default:
		allErrors = append(allErrors, field.NotSupported(path.Child("type"), pc.Type, persistenceTypeNames()))
	}

	return allErrors
}

// Validate validates the persistence configuration
func (pc *PersistenceConfig) Validate() error {
	if allErrors := pc.validate(field.NewPath("persistence")); len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

// RewardsCliConfig is the configuration shared by every rewards CLI subcommand.
// Each subcommand marks which inputs it needs before validating.
type RewardsCliConfig struct {
	DistributionFile string `json:"distribution_file"`
	TreesFile        string `json:"trees_file"`
	OutputFile       string `json:"output_file"`
	Operator         string `json:"operator"`

	Workers int  `json:"workers"`
	Verbose bool `json:"verbose"`

	Persistence *PersistenceConfig `json:"persistence,omitempty"`

	RequireDistribution bool `json:"-"`
	RequireTrees        bool `json:"-"`
	RequireOperator     bool `json:"-"`
	RequirePersistence  bool `json:"-"`
}

// Validate validates the rewards CLI configuration
func (c *RewardsCliConfig) Validate() error {
	var allErrors field.ErrorList

	if c.RequireDistribution && c.DistributionFile == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("distributionFile"), "distributionFile is required"))
	}
	if c.RequireTrees && c.TreesFile == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("treesFile"), "treesFile is required"))
	}
	if c.RequireOperator {
		if err := ValidateOperatorAddress(c.Operator); err != nil {
			allErrors = append(allErrors, field.Invalid(field.NewPath("operator"), c.Operator, err.Error()))
		}
	}
	if c.Workers < 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("workers"), c.Workers, "must not be negative"))
	}
	if c.RequirePersistence {
		if c.Persistence == nil {
			allErrors = append(allErrors, field.Required(field.NewPath("persistence"), "persistence is required"))
		} else {
			allErrors = append(allErrors, c.Persistence.validate(field.NewPath("persistence"))...)
			// each command runs in its own process
			if !c.Persistence.Type.Durable() {
				allErrors = append(allErrors, field.NotSupported(field.NewPath("persistence", "type"),
					c.Persistence.Type, durablePersistenceTypeNames()))
			}
		}
	}

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

// ValidateOperatorAddress checks that s is a 0x-prefixed 20 byte hex address
func ValidateOperatorAddress(s string) error {
	if s == "" {
		return fmt.Errorf("operator address cannot be empty")
	}
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return fmt.Errorf("operator address must start with 0x: %s", s)
	}
	if !common.IsHexAddress(s) {
		return fmt.Errorf("invalid operator address format: %s", s)
	}
	return nil
}

func persistenceTypeNames() []string {
	types := GetSupportedPersistenceTypes()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.String()
	}
	return names
}

func durablePersistenceTypeNames() []string {
	var names []string
	for _, t := range GetSupportedPersistenceTypes() {
		if t.Durable() {
			names = append(names, t.String())
		}
	}
	return names
}
