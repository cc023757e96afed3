package genesis

import (
	"encoding/json"
	"os"

	"github.com/blockberries/ledger/errors"
	"github.com/blockberries/ledger/types"
)

// Load reads and validates a JSON genesis document.
func Load(path string) (types.GenesisDoc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.GenesisDoc{}, errors.NotFound.WithFormat("read genesis: %w", err)
	}
	var doc types.GenesisDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return types.GenesisDoc{}, errors.BadRequest.WithFormat("decode genesis %s: %w", path, err)
	}
	if err := Validate(&doc); err != nil {
		return types.GenesisDoc{}, err
	}
	return doc, nil
}

// Save writes doc as indented JSON.
func Save(path string, doc types.GenesisDoc) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Internal.WithFormat("encode genesis: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Internal.WithFormat("write genesis: %w", err)
	}
	return nil
}
