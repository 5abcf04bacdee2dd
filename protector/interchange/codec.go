package interchange

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/ethvault/slashing-protector/protector"
	"github.com/pkg/errors"
)

// ParsedHistory is one validator's parsed interchange entries, ready to be
// replayed through the decision engines in target/slot order.
type ParsedHistory struct {
	Attestations []protector.AttestationRecord
	Blocks       []protector.BlockRecord
}

// ParseValidatorHistories decodes every ValidatorHistory entry in data,
// grouping duplicate pubkeys' entries together exactly as the retrieved
// Prysm importer does: a pubkey may legally appear more than once in a
// document, and its signed blocks/attestations are simply concatenated
// before being replayed.
//
// A record whose signing root is absent from the JSON is given a random
// 32-byte root instead of the zero value. Per spec §6 an absent root is a
// wildcard that "forbids a SameVote classification": substituting a random
// root (rather than leaving it zero, which could coincidentally match a
// real stored root of zero) guarantees that replaying the record against
// an existing entry at the same key can never spuriously classify as
// SameVote — any existing entry at that key becomes a DoubleVote/
// DoubleProposal, which is the conservative behavior spec §6 asks for.
func ParseValidatorHistories(data []ValidatorHistory) (map[protector.ValidatorId]*ParsedHistory, error) {
	out := make(map[protector.ValidatorId]*ParsedHistory)
	for _, entry := range data {
		pubKey, err := parsePubKey(entry.Pubkey)
		if err != nil {
			return nil, errors.Wrapf(err, "pubkey %q", entry.Pubkey)
		}
		history, ok := out[pubKey]
		if !ok {
			history = &ParsedHistory{}
			out[pubKey] = history
		}

		for _, sb := range entry.SignedBlocks {
			rec, err := parseSignedBlock(sb)
			if err != nil {
				return nil, errors.Wrapf(err, "pubkey %x, signed block", pubKey)
			}
			history.Blocks = append(history.Blocks, rec)
		}
		for _, sa := range entry.SignedAttestations {
			rec, err := parseSignedAttestation(sa)
			if err != nil {
				return nil, errors.Wrapf(err, "pubkey %x, signed attestation", pubKey)
			}
			history.Attestations = append(history.Attestations, rec)
		}
	}
	return out, nil
}

func parseSignedBlock(sb SignedBlock) (protector.BlockRecord, error) {
	slot, err := parseUint64(sb.Slot)
	if err != nil {
		return protector.BlockRecord{}, errors.Wrap(err, "slot")
	}
	root, err := parseOptionalRoot(sb.SigningRoot)
	if err != nil {
		return protector.BlockRecord{}, errors.Wrap(err, "signing_root")
	}
	return protector.BlockRecord{Slot: protector.Slot(slot), SigningRoot: root}, nil
}

func parseSignedAttestation(sa SignedAttestation) (protector.AttestationRecord, error) {
	source, err := parseUint64(sa.SourceEpoch)
	if err != nil {
		return protector.AttestationRecord{}, errors.Wrap(err, "source_epoch")
	}
	target, err := parseUint64(sa.TargetEpoch)
	if err != nil {
		return protector.AttestationRecord{}, errors.Wrap(err, "target_epoch")
	}
	root, err := parseOptionalRoot(sa.SigningRoot)
	if err != nil {
		return protector.AttestationRecord{}, errors.Wrap(err, "signing_root")
	}
	return protector.AttestationRecord{
		Source:      protector.Checkpoint{Epoch: protector.Epoch(source)},
		Target:      protector.Checkpoint{Epoch: protector.Epoch(target)},
		SigningRoot: root,
	}, nil
}

func parsePubKey(s string) (protector.ValidatorId, error) {
	var id protector.ValidatorId
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return id, err
	}
	if len(b) != len(id) {
		return id, errors.Errorf("want %d bytes, got %d", len(id), len(b))
	}
	copy(id[:], b)
	return id, nil
}

func parseOptionalRoot(s string) ([32]byte, error) {
	var root [32]byte
	if s == "" {
		if _, err := rand.Read(root[:]); err != nil {
			return root, errors.Wrap(err, "generating wildcard root")
		}
		return root, nil
	}
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return root, err
	}
	if len(b) != len(root) {
		return root, errors.Errorf("want %d bytes, got %d", len(root), len(b))
	}
	copy(root[:], b)
	return root, nil
}

func parseUint64(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}

func formatUint64(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func formatRoot(root [32]byte) string {
	return "0x" + hex.EncodeToString(root[:])
}

func formatPubKey(id protector.ValidatorId) string {
	return "0x" + hex.EncodeToString(id[:])
}

// BuildDocument assembles an export Document from one validator's full
// histories (ascending order is not required by the format, but the
// exporter always hands them in ascending order since that is how the
// store yields them).
func BuildDocument(genesisValidatorsRoot [32]byte, perValidator map[protector.ValidatorId]ParsedHistory) *Document {
	doc := &Document{
		Metadata: Metadata{
			InterchangeFormatVersion: FormatVersion,
			GenesisValidatorsRoot:    formatRoot(genesisValidatorsRoot),
		},
	}
	for id, history := range perValidator {
		entry := ValidatorHistory{Pubkey: formatPubKey(id)}
		for _, b := range history.Blocks {
			entry.SignedBlocks = append(entry.SignedBlocks, SignedBlock{
				Slot:        formatUint64(uint64(b.Slot)),
				SigningRoot: formatRoot(b.SigningRoot),
			})
		}
		for _, a := range history.Attestations {
			entry.SignedAttestations = append(entry.SignedAttestations, SignedAttestation{
				SourceEpoch: formatUint64(uint64(a.Source.Epoch)),
				TargetEpoch: formatUint64(uint64(a.Target.Epoch)),
				SigningRoot: formatRoot(a.SigningRoot),
			})
		}
		doc.Data = append(doc.Data, entry)
	}
	return doc
}
