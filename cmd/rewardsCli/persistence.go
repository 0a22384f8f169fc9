package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/Layr-Labs/eigenx-rewards-go/pkg/config"
	"github.com/Layr-Labs/eigenx-rewards-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-rewards-go/pkg/persistence/badger"
	"github.com/Layr-Labs/eigenx-rewards-go/pkg/persistence/redis"
)

const defaultDataPath = "data/store"

func persistenceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "persistence-type",
			Usage:   fmt.Sprintf("Tree store backend: %s", config.GetDurablePersistenceTypesString()),
			Value:   config.PersistenceTypeBadger.String(),
			EnvVars: []string{config.EnvRewardsPersistenceType},
		},
		&cli.StringFlag{
			Name:    "data-path",
			Usage:   "Directory of the badger tree store",
			Value:   defaultDataPath,
			EnvVars: []string{config.EnvRewardsDataPath},
		},
		&cli.StringFlag{
			Name:    "redis-address",
			Usage:   "Redis server address (host:port)",
			Value:   "localhost:6379",
			EnvVars: []string{config.EnvRewardsRedisAddress},
		},
		&cli.StringFlag{
			Name:    "redis-password",
			Usage:   "Redis password",
			EnvVars: []string{config.EnvRewardsRedisPassword},
		},
		&cli.IntFlag{
			Name:    "redis-db",
			Usage:   "Redis database number (0-15)",
			EnvVars: []string{config.EnvRewardsRedisDB},
		},
		&cli.StringFlag{
			Name:    "redis-key-prefix",
			Usage:   "Prefix prepended to every Redis key",
			EnvVars: []string{config.EnvRewardsRedisKeyPrefix},
		},
	}
}

func parsePersistenceConfig(c *cli.Context) (*config.PersistenceConfig, error) {
	persistenceType, err := config.ParsePersistenceType(c.String("persistence-type"))
	if err != nil {
		return nil, err
	}
	return &config.PersistenceConfig{
		Type:           persistenceType,
		DataPath:       c.String("data-path"),
		RedisAddress:   c.String("redis-address"),
		RedisPassword:  c.String("redis-password"),
		RedisDB:        c.Int("redis-db"),
		RedisKeyPrefix: c.String("redis-key-prefix"),
	}, nil
}

// newTreePersistence opens the configured durable tree store. Callers must Close it.
func newTreePersistence(cfg *config.PersistenceConfig, l *zap.Logger) (persistence.ITreePersistence, error) {
	var (
		store persistence.ITreePersistence
		err   error
	)

	switch cfg.Type {
	case config.PersistenceTypeBadger:
		store, err = badger.NewBadgerPersistence(cfg.DataPath, l)
	case config.PersistenceTypeRedis:
		store, err = redis.NewRedisPersistence(&redis.RedisConfig{
			Address:   cfg.RedisAddress,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.RedisKeyPrefix,
		}, l)
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s", cfg.Type)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s tree store", cfg.Type)
	}

	if err := store.HealthCheck(); err != nil {
		_ = store.Close()
		return nil, errors.Wrapf(err, "%s tree store is unhealthy", cfg.Type)
	}
	return store, nil
}
