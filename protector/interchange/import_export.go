package interchange

import (
	"context"
	"encoding/hex"
	"sort"

	"github.com/ethvault/slashing-protector/protector"
	"github.com/pkg/errors"
)

// ImportTarget is the subset of *protector.Service an Import needs. It is
// satisfied by *protector.Service through structural typing: protector does
// not import this package, so there is no import cycle between the two.
type ImportTarget interface {
	ReconcileGenesisValidatorsRoot(rootHex string) error
	CheckAndInsertAttestation(ctx context.Context, network string, validator protector.ValidatorId, a protector.AttestationRecord) protector.Outcome
	CheckAndInsertBlock(ctx context.Context, network string, validator protector.ValidatorId, b protector.BlockRecord) protector.Outcome
}

// ExportSource is the subset of *protector.Service an Export needs.
type ExportSource interface {
	GenesisValidatorsRootHex() (string, error)
	HistoryFor(ctx context.Context, network string, validator protector.ValidatorId) ([]protector.AttestationRecord, []protector.BlockRecord, error)
}

// Import reconciles doc against target's existing history for network, per
// spec §4.5/§6: it rejects the whole document if the format version or
// genesis validators root do not match, then replays each validator's
// entries in target/slot order through the live decision-and-insert path,
// exactly as if they had arrived as ordinary signing requests. The first
// record CheckAndInsertAttestation/Block rejects — for any reason, not only
// a same-key DoubleVote/DoubleProposal — aborts the rest of that
// validator's import: "equal records with differing signing roots abort
// the import (the operator must resolve manually)" of spec §4.5 covers the
// same-key case directly, since that is exactly what the decision engine
// classifies as DoubleVote/DoubleProposal; a Surrounded/Surrounding/
// InvalidAttestation/PruningBarrier rejection means the document disagrees
// with this validator's on-disk history just as irreconcilably, so it gets
// the same treatment rather than being silently dropped.
func Import(ctx context.Context, target ImportTarget, network string, doc *Document) (*ImportSummary, error) {
	if doc.Metadata.InterchangeFormatVersion != FormatVersion {
		return nil, errors.Errorf("unsupported interchange_format_version %q, want %q", doc.Metadata.InterchangeFormatVersion, FormatVersion)
	}
	if err := target.ReconcileGenesisValidatorsRoot(doc.Metadata.GenesisValidatorsRoot); err != nil {
		return nil, errors.Wrap(err, "genesis_validators_root")
	}

	histories, err := ParseValidatorHistories(doc.Data)
	if err != nil {
		return nil, errors.Wrap(err, "parsing interchange document")
	}

	summary := &ImportSummary{}
	for validator, history := range histories {
		sort.SliceStable(history.Attestations, func(i, j int) bool {
			return history.Attestations[i].Target.Epoch < history.Attestations[j].Target.Epoch
		})
		sort.SliceStable(history.Blocks, func(i, j int) bool {
			return history.Blocks[i].Slot < history.Blocks[j].Slot
		})

		var rejected *protector.Outcome
		for _, rec := range history.Attestations {
			outcome := target.CheckAndInsertAttestation(ctx, network, validator, rec)
			if !outcome.IsSafe() {
				rejected = &outcome
				break
			}
			summary.Imported++
		}
		if rejected == nil {
			for _, rec := range history.Blocks {
				outcome := target.CheckAndInsertBlock(ctx, network, validator, rec)
				if !outcome.IsSafe() {
					rejected = &outcome
					break
				}
				summary.Imported++
			}
		}
		if rejected != nil {
			summary.Skipped = append(summary.Skipped, SkippedValidator{
				PubKey: hex.EncodeToString(validator[:]),
				Kind:   string(rejected.Kind),
				Detail: rejected.Detail,
			})
		}
	}
	return summary, nil
}

// Export builds an interchange Document covering every listed validator's
// full history on network.
func Export(ctx context.Context, source ExportSource, network string, validators []protector.ValidatorId) (*Document, error) {
	rootHex, err := source.GenesisValidatorsRootHex()
	if err != nil {
		return nil, errors.Wrap(err, "genesis_validators_root")
	}
	root, err := parseOptionalRoot(rootHex)
	if err != nil {
		return nil, errors.Wrap(err, "stored genesis_validators_root")
	}

	perValidator := make(map[protector.ValidatorId]ParsedHistory, len(validators))
	for _, id := range validators {
		attestations, blocks, err := source.HistoryFor(ctx, network, id)
		if err != nil {
			return nil, errors.Wrapf(err, "pub_key %x", id)
		}
		perValidator[id] = ParsedHistory{Attestations: attestations, Blocks: blocks}
	}
	return BuildDocument(root, perValidator), nil
}
