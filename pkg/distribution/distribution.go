// Package distribution reads and writes the JSON records exchanged with the
// rest of the rewards pipeline: distribution files, trees files, and the
// root and proof results derived from them.
package distribution

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Layr-Labs/eigenx-rewards-go/pkg/merkle"
	"github.com/Layr-Labs/eigenx-rewards-go/pkg/rewards"
	"github.com/Layr-Labs/eigenx-rewards-go/pkg/types"
)

const (
	// DefaultDistributionPath is where the distribution record lives unless overridden
	DefaultDistributionPath = "data/distribution.json"
	// DefaultTreesPath is where the trees record lives unless overridden
	DefaultTreesPath = "data/trees.json"
)

// ReadDistributionFile reads a distribution record: an ordered list of token
// groups with their operator rewards. The file must hold a JSON array. A group
// that does not decode is returned with Err set so only that group fails.
func ReadDistributionFile(path string) ([]types.TokenDistribution, error) {
	elements, err := readJSONArray(path)
	if err != nil {
		return nil, err
	}

	distribution := make([]types.TokenDistribution, len(elements))
	for i, element := range elements {
		if err := decodeElement(element, &distribution[i]); err != nil {
			distribution[i] = types.TokenDistribution{
				Token: elementToken(element),
				Err:   fmt.Errorf("%w: %w", merkle.ErrMalformedLeaf, err),
			}
		}
	}
	return distribution, nil
}

// WriteDistributionFile writes a distribution record.
func WriteDistributionFile(path string, distribution []types.TokenDistribution) error {
	if distribution == nil {
		distribution = []types.TokenDistribution{}
	}
	return WriteJSONFile(path, distribution)
}

// ReadTreesFile reads a trees record: an ordered list of tokens and their
// serialized trees. The file must hold a JSON array. An entry that does not
// decode is returned with Err set so only that token fails to load.
func ReadTreesFile(path string) ([]*rewards.TokenTree, error) {
	elements, err := readJSONArray(path)
	if err != nil {
		return nil, err
	}

	records := make([]*rewards.TokenTree, len(elements))
	for i, element := range elements {
		var record *rewards.TokenTree
		if err := decodeElement(element, &record); err != nil {
			record = &rewards.TokenTree{
				Token: elementToken(element),
				Err:   fmt.Errorf("%w: %w", merkle.ErrCorruptTreeRecord, err),
			}
		}
		records[i] = record
	}
	return records, nil
}

// WriteTreesFile writes a trees record.
func WriteTreesFile(path string, records []*rewards.TokenTree) error {
	if records == nil {
		records = []*rewards.TokenTree{}
	}
	return WriteJSONFile(path, records)
}

// WriteJSONFile writes v as indented JSON, creating parent directories as needed.
func WriteJSONFile(path string, v any) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	data, err := marshalIndent(v)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}
	return nil
}

// WriteJSON writes v as indented JSON followed by a newline.
func WriteJSON(w io.Writer, v any) error {
	data, err := marshalIndent(v)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write JSON: %w", err)
	}
	return nil
}

func marshalIndent(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return append(data, '\n'), nil
}

// readJSONArray splits a file holding a JSON array into its raw elements.
func readJSONArray(path string) ([]json.RawMessage, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(file, &elements); err != nil {
		return nil, fmt.Errorf("failed to unmarshal file %s: %w", path, err)
	}
	return elements, nil
}

func decodeElement(element json.RawMessage, v any) error {
	decoder := json.NewDecoder(bytes.NewReader(element))
	decoder.UseNumber()
	return decoder.Decode(v)
}

// elementToken recovers the token of an element that failed to decode, so
// the failure can still be reported against it.
func elementToken(element json.RawMessage) types.TokenID {
	var partial struct {
		Token json.RawMessage `json:"token"`
	}
	if err := json.Unmarshal(element, &partial); err != nil || len(partial.Token) == 0 {
		return ""
	}

	var token string
	if err := json.Unmarshal(partial.Token, &token); err != nil {
		return types.TokenID(partial.Token)
	}
	return types.TokenID(token)
}
