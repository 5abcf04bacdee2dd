// Package protector implements the slashing-protection core of spec.md:
// the Service façade that is the only entry point a signer should ever
// call. The record model and the pure attestation/block decision engines
// live in the slashing subpackage (store and kvpool need them too, and
// importing this package from there would cycle); protector re-exports
// them under their original names in types.go.
package protector

import (
	"context"
	"encoding/hex"

	"github.com/ethvault/slashing-protector/protector/kvpool"
	"github.com/ethvault/slashing-protector/protector/slashing"
	"github.com/ethvault/slashing-protector/protector/store"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Service is the protection façade of spec §4.4: it combines lookup,
// decision, and atomic persistence under per-validator serialization. It
// is descended from the teacher's protector struct, generalized from a
// two-method (attestation/proposal) interface to the five operations of
// spec §6's Service API.
type Service struct {
	dir  string
	pool *kvpool.Pool
	log  *zap.Logger
}

// New opens a protection service rooted at dir, one bbolt file per
// (network, validator) beneath it. cfg carries the slots_per_epoch network
// parameter and the epoch/slot bounds enforced by StoreFull.
func New(dir string, cfg store.Config, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		dir:  dir,
		pool: kvpool.New(dir, cfg),
		log:  log,
	}
}

// Close releases every open validator connection.
func (s *Service) Close() error {
	return s.pool.Close()
}

// PoolSize reports how many distinct validators have an open connection,
// surfaced by the HTTP metrics endpoint.
func (s *Service) PoolSize() int {
	return s.pool.Size()
}

const maxBoundedValue = ^uint64(0) >> 1

// CheckAndInsertAttestation is check_and_insert_attestation of spec §6: it
// acquires the validator's lock, loads its attestation history, classifies
// the proposed record, appends it on Safe(Valid|EmptyHistory), and
// releases the lock unconditionally.
func (s *Service) CheckAndInsertAttestation(
	ctx context.Context,
	network string,
	validator ValidatorId,
	a AttestationRecord,
) Outcome {
	conn, err := s.pool.Acquire(ctx, network, validator)
	if err != nil {
		s.log.Error("failed to acquire validator connection", zap.Error(err))
		return NotSafe(KindStoreIO, err.Error())
	}
	defer conn.Release()

	history, err := conn.AttestationsIn(0, Epoch(maxBoundedValue))
	if err != nil {
		s.log.Error("failed to load attestation history", zap.Error(err))
		return NotSafe(KindStoreIO, err.Error())
	}

	outcome := slashing.CheckAttestation(a, history)
	if !outcome.ShouldPersist() {
		s.logDecision("attestation", validator, outcome)
		return outcome
	}

	if err := conn.AppendAttestation(a); err != nil {
		s.log.Error("failed to persist attestation", zap.Error(err))
		return storeErrToOutcome(err)
	}
	s.logDecision("attestation", validator, outcome)
	return outcome
}

// CheckAndInsertBlock is check_and_insert_block of spec §6, analogous to
// CheckAndInsertAttestation but over the block history/decision engine.
func (s *Service) CheckAndInsertBlock(
	ctx context.Context,
	network string,
	validator ValidatorId,
	b BlockRecord,
) Outcome {
	conn, err := s.pool.Acquire(ctx, network, validator)
	if err != nil {
		s.log.Error("failed to acquire validator connection", zap.Error(err))
		return NotSafe(KindStoreIO, err.Error())
	}
	defer conn.Release()

	history, err := conn.BlocksIn(0, Slot(maxBoundedValue))
	if err != nil {
		s.log.Error("failed to load block history", zap.Error(err))
		return NotSafe(KindStoreIO, err.Error())
	}

	outcome := slashing.CheckBlock(b, history)
	if !outcome.ShouldPersist() {
		s.logDecision("block", validator, outcome)
		return outcome
	}

	if err := conn.AppendBlock(b); err != nil {
		s.log.Error("failed to persist block", zap.Error(err))
		return storeErrToOutcome(err)
	}
	s.logDecision("block", validator, outcome)
	return outcome
}

// Prune invokes store pruning with boundary retention for one validator.
func (s *Service) Prune(ctx context.Context, network string, validator ValidatorId, minEpoch Epoch, minSlot Slot) error {
	conn, err := s.pool.Acquire(ctx, network, validator)
	if err != nil {
		return errors.Wrap(err, "kvpool.Acquire")
	}
	defer conn.Release()

	if err := conn.PruneAttestations(minEpoch); err != nil {
		return errors.Wrap(err, "PruneAttestations")
	}
	if err := conn.PruneBlocks(minSlot); err != nil {
		return errors.Wrap(err, "PruneBlocks")
	}
	return nil
}

// HistoryFor loads a validator's complete attestation and block history,
// ascending, for interchange export. It satisfies interchange.ExportSource
// by structural typing; this package does not import interchange.
func (s *Service) HistoryFor(ctx context.Context, network string, validator ValidatorId) ([]AttestationRecord, []BlockRecord, error) {
	conn, err := s.pool.Acquire(ctx, network, validator)
	if err != nil {
		return nil, nil, errors.Wrap(err, "kvpool.Acquire")
	}
	defer conn.Release()

	attestations, err := conn.AttestationsIn(0, Epoch(maxBoundedValue))
	if err != nil {
		return nil, nil, errors.Wrap(err, "AttestationsIn")
	}
	blocks, err := conn.BlocksIn(0, Slot(maxBoundedValue))
	if err != nil {
		return nil, nil, errors.Wrap(err, "BlocksIn")
	}
	return attestations, blocks, nil
}

func (s *Service) logDecision(kind string, validator ValidatorId, outcome Outcome) {
	pubKey := hex.EncodeToString(validator[:])
	if outcome.IsSafe() {
		s.log.Debug(kind+" decision", zap.String("pub_key", pubKey), zap.String("outcome", outcome.String()))
		return
	}
	s.log.Info(kind+" rejected",
		zap.String("pub_key", pubKey),
		zap.String("kind", string(outcome.Kind)),
		zap.String("detail", outcome.Detail),
	)
}

func storeErrToOutcome(err error) Outcome {
	switch errors.Cause(err) {
	case store.ErrStoreFull:
		return NotSafe(KindStoreFull, err.Error())
	case store.ErrConflict:
		// A conflict on append after a Safe decision means another writer
		// raced us; per §5 this cannot happen under the per-validator
		// lock, so surfacing it as StoreIO is the conservative choice.
		return NotSafe(KindStoreIO, err.Error())
	default:
		return NotSafe(KindStoreIO, err.Error())
	}
}
