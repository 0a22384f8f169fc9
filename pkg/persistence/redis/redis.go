package redis

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Layr-Labs/eigenx-rewards-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-rewards-go/pkg/types"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Key prefixes for namespacing in Redis. Trees live under
// rewards:tree:<generation>:<token>.
const (
	keyPrefixTree             = "rewards:tree:"
	keyPrefixActiveGeneration = "rewards:active:generation"
	keySchemaVersion          = "rewards:metadata:schema_version"
	currentSchemaVersion      = "v2"

	// Redis has no native prefix iteration, so the tokens of each generation
	// and the generations themselves are tracked in sets
	keyPrefixGenerationIndex = "rewards:generation:"
	keySetGenerations        = "rewards:generations"
)

// RedisPersistence stores trees in Redis, shared by every process pointed
// at the same server and database.
type RedisPersistence struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string
	mu        sync.RWMutex
	closed    bool
}

// RedisConfig holds the configuration for connecting to Redis
type RedisConfig struct {
	// Address is the Redis server address (host:port)
	Address string
	// Password is the optional Redis password
	Password string
	// DB is the Redis database number (0-15)
	DB int
	// KeyPrefix is prepended to every key, e.g. "staging:" gives
	// "staging:rewards:tree:<generation>:eigen". Empty means no extra prefix.
	KeyPrefix string
}

// NewRedisPersistence connects to Redis and validates the schema version.
func NewRedisPersistence(cfg *RedisConfig, logger *zap.Logger) (*RedisPersistence, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}

	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	rp := &RedisPersistence{
		client:    client,
		logger:    logger,
		keyPrefix: cfg.KeyPrefix,
	}

	if err := rp.initSchema(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Sugar().Infow("Redis persistence initialized",
		"address", cfg.Address, "db", cfg.DB, "key_prefix", cfg.KeyPrefix)

	return rp, nil
}

// prefixKey adds the custom key prefix (if configured) to a key
func (r *RedisPersistence) prefixKey(key string) string {
	if r.keyPrefix == "" {
		return key
	}
	return r.keyPrefix + key
}

func (r *RedisPersistence) treeKey(generationID, token string) string {
	return r.prefixKey(keyPrefixTree + generationID + ":" + token)
}

func (r *RedisPersistence) generationIndexKey(generationID string) string {
	return r.prefixKey(keyPrefixGenerationIndex + generationID + ":tokens")
}

// initSchema initializes or validates the schema version
func (r *RedisPersistence) initSchema(ctx context.Context) error {
	schemaKey := r.prefixKey(keySchemaVersion)

	existingVersion, err := r.client.Get(ctx, schemaKey).Result()
	if err == redis.Nil {
		return r.client.Set(ctx, schemaKey, currentSchemaVersion, 0).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if existingVersion != currentSchemaVersion {
		return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
	}

	return nil
}

// SaveTree persists a serialized tree
func (r *RedisPersistence) SaveTree(tree *persistence.StoredTree) error {
	if tree == nil {
		return fmt.Errorf("cannot save nil StoredTree")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	data, err := persistence.MarshalStoredTree(tree)
	if err != nil {
		return fmt.Errorf("failed to marshal StoredTree: %w", err)
	}

	ctx := context.Background()
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.treeKey(tree.GenerationID, tree.Token.String()), data, 0)
	pipe.SAdd(ctx, r.generationIndexKey(tree.GenerationID), tree.Token.String())
	pipe.SAdd(ctx, r.prefixKey(keySetGenerations), tree.GenerationID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save StoredTree: %w", err)
	}

	return nil
}

// LoadTree retrieves the stored tree of a token in a generation
func (r *RedisPersistence) LoadTree(generationID string, token types.TokenID) (*persistence.StoredTree, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	data, err := r.client.Get(context.Background(), r.treeKey(generationID, token.String())).Bytes()
	if err == redis.Nil {
		return nil, nil // Not found is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load StoredTree: %w", err)
	}

	tree, err := persistence.UnmarshalStoredTree(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal StoredTree: %w", err)
	}

	return tree, nil
}

// ListTrees returns all trees of a generation sorted by position.
// Values that are missing or do not decode are returned as undecodable records.
func (r *RedisPersistence) ListTrees(generationID string) ([]*persistence.StoredTree, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	ctx := context.Background()

	tokens, err := r.client.SMembers(ctx, r.generationIndexKey(generationID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list stored tokens: %w", err)
	}

	trees := make([]*persistence.StoredTree, 0, len(tokens))
	if len(tokens) == 0 {
		return trees, nil
	}

	keys := make([]string, len(tokens))
	for i, token := range tokens {
		keys[i] = r.treeKey(generationID, token)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch StoredTrees: %w", err)
	}

	for i, val := range values {
		token := types.TokenID(tokens[i])

		var tree *persistence.StoredTree
		switch data := val.(type) {
		case nil:
			tree = persistence.UndecodableTree(generationID, token, fmt.Errorf("indexed tree value is missing"))
		case string:
			tree = persistence.DecodeStoredTree(generationID, token, []byte(data))
		default:
			tree = persistence.UndecodableTree(generationID, token, fmt.Errorf("unexpected value type %T", val))
		}
		if tree.Err != nil {
			r.logger.Sugar().Warnw("Failed to decode StoredTree", "key", keys[i], "error", tree.Err)
		}
		trees = append(trees, tree)
	}

	persistence.SortStoredTrees(trees)
	return trees, nil
}

// ListGenerations returns the IDs of every generation holding trees
func (r *RedisPersistence) ListGenerations() ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	generations, err := r.client.SMembers(context.Background(), r.prefixKey(keySetGenerations)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list generations: %w", err)
	}

	sort.Strings(generations)
	return generations, nil
}

// DeleteGeneration removes every tree of a generation
func (r *RedisPersistence) DeleteGeneration(generationID string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	ctx := context.Background()
	indexKey := r.generationIndexKey(generationID)

	tokens, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return fmt.Errorf("failed to list tokens of generation %s: %w", generationID, err)
	}

	pipe := r.client.TxPipeline()
	for _, token := range tokens {
		pipe.Del(ctx, r.treeKey(generationID, token))
	}
	pipe.Del(ctx, indexKey)
	pipe.SRem(ctx, r.prefixKey(keySetGenerations), generationID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete generation %s: %w", generationID, err)
	}
	return nil
}

// SetActiveGeneration stores the active generation ID
func (r *RedisPersistence) SetActiveGeneration(generationID string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	return r.client.Set(context.Background(), r.prefixKey(keyPrefixActiveGeneration), generationID, 0).Err()
}

// GetActiveGeneration retrieves the active generation ID
func (r *RedisPersistence) GetActiveGeneration() (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return "", fmt.Errorf("persistence layer is closed")
	}

	generationID, err := r.client.Get(context.Background(), r.prefixKey(keyPrefixActiveGeneration)).Result()
	if err == redis.Nil {
		return "", nil // No generation stored yet
	}
	if err != nil {
		return "", fmt.Errorf("failed to get active generation: %w", err)
	}

	return generationID, nil
}

// Close shuts down the persistence layer
func (r *RedisPersistence) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}

	r.logger.Sugar().Info("Redis persistence closed")
	return nil
}

// HealthCheck verifies the persistence layer is operational
func (r *RedisPersistence) HealthCheck() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}

	_, err := r.client.Get(ctx, r.prefixKey(keySchemaVersion)).Result()
	if err == redis.Nil {
		return fmt.Errorf("schema version not found - database may not be properly initialized")
	}
	if err != nil {
		return fmt.Errorf("failed to verify schema version: %w", err)
	}

	return nil
}
