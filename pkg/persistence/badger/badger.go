package badger

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Layr-Labs/eigenx-rewards-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-rewards-go/pkg/types"
	badgerdb "github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"
)

// Key prefixes for namespacing. Trees live under tree:<generation>:<token>.
const (
	keyPrefixTree             = "tree:"
	keyPrefixActiveGeneration = "active:generation"
	keySchemaVersion          = "metadata:schema_version"
	currentSchemaVersion      = "v2"
)

// BadgerPersistence is a disk-backed tree store using Badger.
type BadgerPersistence struct {
	db       *badgerdb.DB
	logger   *zap.Logger
	gcCancel context.CancelFunc
	gcWg     sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
}

// NewBadgerPersistence opens (or creates) a Badger database at dataPath.
// SyncWrites is enabled and a background goroutine runs value log GC.
func NewBadgerPersistence(dataPath string, logger *zap.Logger) (*BadgerPersistence, error) {
	absPath, err := filepath.Abs(dataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	opts := badgerdb.DefaultOptions(absPath)
	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.SyncWrites = true
	opts.CompactL0OnClose = true
	opts.NumVersionsToKeep = 1

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database at %s: %w", absPath, err)
	}

	bp := &BadgerPersistence{
		db:     db,
		logger: logger,
	}

	if err := bp.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	bp.gcCancel = cancel
	bp.gcWg.Add(1)
	go bp.runGC(ctx)

	logger.Sugar().Infow("Badger persistence initialized", "path", absPath)

	return bp, nil
}

// initSchema initializes or validates the schema version
func (b *BadgerPersistence) initSchema() error {
	return b.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keySchemaVersion))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return txn.Set([]byte(keySchemaVersion), []byte(currentSchemaVersion))
		}
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}

		var existingVersion string
		err = item.Value(func(val []byte) error {
			existingVersion = string(val)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to read schema version value: %w", err)
		}

		if existingVersion != currentSchemaVersion {
			return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
		}

		return nil
	})
}

// runGC runs periodic garbage collection in the background
func (b *BadgerPersistence) runGC(ctx context.Context) {
	defer b.gcWg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := b.db.RunValueLogGC(0.5)
			if err != nil && !errors.Is(err, badgerdb.ErrNoRewrite) {
				b.logger.Sugar().Warnw("Badger GC error", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func generationPrefix(generationID string) []byte {
	return []byte(keyPrefixTree + generationID + ":")
}

func treeKey(generationID string, token types.TokenID) []byte {
	return append(generationPrefix(generationID), token.String()...)
}

// SaveTree persists a serialized tree
func (b *BadgerPersistence) SaveTree(tree *persistence.StoredTree) error {
	if tree == nil {
		return fmt.Errorf("cannot save nil StoredTree")
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	data, err := persistence.MarshalStoredTree(tree)
	if err != nil {
		return fmt.Errorf("failed to marshal StoredTree: %w", err)
	}

	return b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(treeKey(tree.GenerationID, tree.Token), data)
	})
}

// LoadTree retrieves the stored tree of a token in a generation
func (b *BadgerPersistence) LoadTree(generationID string, token types.TokenID) (*persistence.StoredTree, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	var data []byte
	err := b.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(treeKey(generationID, token))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return nil // Not found is not an error
		}
		if err != nil {
			return err
		}

		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load StoredTree: %w", err)
	}

	if data == nil {
		return nil, nil
	}

	tree, err := persistence.UnmarshalStoredTree(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal StoredTree: %w", err)
	}

	return tree, nil
}

// ListTrees returns all trees of a generation sorted by position.
// Values that do not decode are returned as undecodable records.
func (b *BadgerPersistence) ListTrees(generationID string) ([]*persistence.StoredTree, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	trees := make([]*persistence.StoredTree, 0)
	prefix := generationPrefix(generationID)

	err := b.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			token := types.TokenID(item.Key()[len(prefix):])

			data, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("failed to read value: %w", err)
			}

			tree := persistence.DecodeStoredTree(generationID, token, data)
			if tree.Err != nil {
				b.logger.Sugar().Warnw("Failed to decode StoredTree",
					"key", string(item.Key()), "error", tree.Err)
			}
			trees = append(trees, tree)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list StoredTrees: %w", err)
	}

	persistence.SortStoredTrees(trees)
	return trees, nil
}

// ListGenerations returns the IDs of every generation holding trees
func (b *BadgerPersistence) ListGenerations() ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	generations := make([]string, 0)

	err := b.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefixTree)
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); {
			rest := string(it.Item().Key()[len(keyPrefixTree):])
			generationID, _, found := strings.Cut(rest, ":")
			if !found {
				it.Next()
				continue
			}
			generations = append(generations, generationID)

			// ';' sorts right after ':', skip the rest of this generation
			it.Seek([]byte(keyPrefixTree + generationID + ";"))
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list generations: %w", err)
	}

	// key order puts "gen-10:" before "gen-1:"
	sort.Strings(generations)
	return generations, nil
}

// DeleteGeneration removes every tree of a generation
func (b *BadgerPersistence) DeleteGeneration(generationID string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	if err := b.db.DropPrefix(generationPrefix(generationID)); err != nil {
		return fmt.Errorf("failed to delete generation %s: %w", generationID, err)
	}
	return nil
}

// SetActiveGeneration stores the active generation ID
func (b *BadgerPersistence) SetActiveGeneration(generationID string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	return b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set([]byte(keyPrefixActiveGeneration), []byte(generationID))
	})
}

// GetActiveGeneration retrieves the active generation ID
func (b *BadgerPersistence) GetActiveGeneration() (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return "", fmt.Errorf("persistence layer is closed")
	}

	var generationID string
	err := b.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keyPrefixActiveGeneration))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return nil // No generation stored yet
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			generationID = string(val)
			return nil
		})
	})
	if err != nil {
		return "", fmt.Errorf("failed to get active generation: %w", err)
	}

	return generationID, nil
}

// Close shuts down the persistence layer
func (b *BadgerPersistence) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	if b.gcCancel != nil {
		b.gcCancel()
	}
	b.gcWg.Wait()

	if err := b.db.Close(); err != nil {
		return fmt.Errorf("failed to close badger database: %w", err)
	}

	b.logger.Sugar().Info("Badger persistence closed")
	return nil
}

// HealthCheck verifies the persistence layer is operational
func (b *BadgerPersistence) HealthCheck() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	return b.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get([]byte(keySchemaVersion))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return fmt.Errorf("schema version not found - database may be corrupted")
		}
		return err
	})
}
