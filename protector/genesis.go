package protector

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

const genesisValidatorsRootFile = "genesis_validators_root"

// ReconcileGenesisValidatorsRoot pins the chain an interchange import/export
// belongs to. The first call for a fresh service directory writes rootHex;
// every later call (a later import, or an export) must match it, so a
// document from the wrong chain is rejected outright rather than silently
// merged into this validator's history.
func (s *Service) ReconcileGenesisValidatorsRoot(rootHex string) error {
	rootHex = strings.ToLower(strings.TrimPrefix(rootHex, "0x"))
	if _, err := hex.DecodeString(rootHex); err != nil {
		return errors.Wrap(err, "genesis_validators_root is not valid hex")
	}

	path := filepath.Join(s.dir, genesisValidatorsRootFile)
	existing, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return errors.Wrap(err, "reading genesis validators root")
		}
		return errors.Wrap(os.WriteFile(path, []byte(rootHex), 0600), "writing genesis validators root")
	}
	if string(existing) != rootHex {
		return errors.Errorf("genesis validators root mismatch: store has %s, import has %s", existing, rootHex)
	}
	return nil
}

// GenesisValidatorsRootHex returns the root pinned by ReconcileGenesisValidatorsRoot.
func (s *Service) GenesisValidatorsRootHex() (string, error) {
	path := filepath.Join(s.dir, genesisValidatorsRootFile)
	b, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrap(err, "reading genesis validators root")
	}
	return string(b), nil
}
