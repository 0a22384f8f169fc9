package rewards

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Layr-Labs/eigenx-rewards-go/pkg/merkle"
	"github.com/Layr-Labs/eigenx-rewards-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-rewards-go/pkg/types"
)

// StoreTrees writes every available tree to the store as a new generation and
// makes it the active one once all of its trees are written. A token whose
// group failed keeps the tree it had in the previously active generation.
// Tokens absent from results are not carried over.
//
// The previously active generation stays intact and active when any write
// fails, and when no result holds a tree (ErrNoTreesToStore). Older
// generations are removed after the switch.
func (p *Pipeline) StoreTrees(store persistence.ITreePersistence, results []*TokenResult) (string, error) {
	available := 0
	for _, result := range results {
		if result.OK() {
			available++
		}
	}
	if available == 0 {
		return "", fmt.Errorf("%w: all %d token group(s) failed", ErrNoTreesToStore, len(results))
	}

	previousID, previous, err := p.activeTrees(store)
	if err != nil {
		return "", err
	}

	generationID := uuid.New().String()
	storedAt := time.Now().Unix()

	records := make([]*persistence.StoredTree, 0, len(results))
	written := make(map[types.TokenID]struct{}, len(results))
	for position, result := range results {
		if _, ok := written[result.Token]; ok {
			continue
		}

		if result.OK() {
			records = append(records, &persistence.StoredTree{
				Token:        result.Token,
				Root:         result.Tree.Root,
				GenerationID: generationID,
				StoredAt:     storedAt,
				Position:     position,
				Tree:         result.Tree.Dump(),
			})
			written[result.Token] = struct{}{}
			continue
		}

		kept, ok := previous[result.Token]
		if !ok {
			continue
		}
		carried := *kept
		carried.GenerationID = generationID
		carried.Position = position
		records = append(records, &carried)
		written[result.Token] = struct{}{}
		p.logger.Sugar().Warnw("Keeping previously stored tree of failed token group",
			"token", result.Token, "generation", previousID, "root", kept.Root.Hex())
	}

	for _, record := range records {
		if err := store.SaveTree(record); err != nil {
			p.discardGeneration(store, generationID)
			return "", fmt.Errorf("failed to store tree of token %q: %w", record.Token, err)
		}
	}

	if err := store.SetActiveGeneration(generationID); err != nil {
		p.discardGeneration(store, generationID)
		return "", fmt.Errorf("failed to activate generation %s: %w", generationID, err)
	}

	generations, err := store.ListGenerations()
	if err != nil {
		p.logger.Sugar().Warnw("Failed to list stored generations", "error", err)
	}
	for _, older := range generations {
		if older == generationID {
			continue
		}
		p.discardGeneration(store, older)
	}

	p.logger.Sugar().Infow("Stored token trees",
		"generation", generationID,
		"previous", previousID,
		"trees", len(records),
		"carried", len(records)-available)
	return generationID, nil
}

// activeTrees returns the decodable trees of the active generation by token.
func (p *Pipeline) activeTrees(store persistence.ITreePersistence) (string, map[types.TokenID]*persistence.StoredTree, error) {
	generationID, err := store.GetActiveGeneration()
	if err != nil {
		return "", nil, fmt.Errorf("failed to read active generation: %w", err)
	}
	if generationID == "" {
		return "", nil, nil
	}

	stored, err := store.ListTrees(generationID)
	if err != nil {
		return "", nil, fmt.Errorf("failed to list stored trees: %w", err)
	}

	trees := make(map[types.TokenID]*persistence.StoredTree, len(stored))
	for _, st := range stored {
		if st.Err != nil {
			continue
		}
		trees[st.Token] = st
	}
	return generationID, trees, nil
}

func (p *Pipeline) discardGeneration(store persistence.ITreePersistence, generationID string) {
	if err := store.DeleteGeneration(generationID); err != nil {
		p.logger.Sugar().Warnw("Failed to delete stored generation", "generation", generationID, "error", err)
		return
	}
	p.logger.Sugar().Debugw("Deleted stored generation", "generation", generationID)
}

// LoadStoredTrees reloads and validates the trees of the active generation, in
// the order they were stored. A record that cannot be decoded, or whose stored
// root disagrees with the reloaded tree, is reported as a corrupt record for
// that token.
func (p *Pipeline) LoadStoredTrees(store persistence.ITreePersistence) ([]*TokenResult, error) {
	generationID, err := store.GetActiveGeneration()
	if err != nil {
		return nil, fmt.Errorf("failed to read active generation: %w", err)
	}
	if generationID == "" {
		return nil, fmt.Errorf("tree store holds no active generation")
	}

	stored, err := store.ListTrees(generationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stored trees: %w", err)
	}

	records := make([]*TokenTree, len(stored))
	for i, st := range stored {
		records[i] = &TokenTree{Token: st.Token, Tree: st.Tree}
		if st.Err != nil {
			records[i].Err = fmt.Errorf("%w: stored record: %w", merkle.ErrCorruptTreeRecord, st.Err)
		}
	}

	results := p.LoadTrees(records)
	for i, result := range results {
		if !result.OK() || result.Tree.Root == stored[i].Root {
			continue
		}
		result.Err = &TokenError{
			Token: result.Token,
			Err: fmt.Errorf("%w: stored root %s does not match tree root %s",
				merkle.ErrCorruptTreeRecord, stored[i].Root.Hex(), result.Tree.Root.Hex()),
		}
		result.Tree = nil
		p.logger.Sugar().Warnw("Failed to load token tree", "token", result.Token, "error", result.Err)
	}

	return results, nil
}
