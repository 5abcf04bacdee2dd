package protector

import "github.com/ethvault/slashing-protector/protector/slashing"

// The record model and decision engines live in the leaf package slashing
// (store and kvpool import it directly, so they cannot import this
// package). These aliases let every other caller keep writing
// protector.ValidatorId, protector.Outcome, and so on, exactly as if the
// types were still declared here.
type (
	ValidatorId       = slashing.ValidatorId
	Epoch             = slashing.Epoch
	Slot              = slashing.Slot
	Checkpoint        = slashing.Checkpoint
	AttestationRecord = slashing.AttestationRecord
	BlockRecord       = slashing.BlockRecord
	Reason            = slashing.Reason
	Kind              = slashing.Kind
	Outcome           = slashing.Outcome
)

const (
	ReasonEmptyHistory = slashing.ReasonEmptyHistory
	ReasonSameVote     = slashing.ReasonSameVote
	ReasonValid        = slashing.ReasonValid
)

const (
	KindDoubleVote         = slashing.KindDoubleVote
	KindSurrounded         = slashing.KindSurrounded
	KindSurrounding        = slashing.KindSurrounding
	KindInvalidAttestation = slashing.KindInvalidAttestation
	KindDoubleProposal     = slashing.KindDoubleProposal
	KindPruningBarrier     = slashing.KindPruningBarrier
	KindStoreIO            = slashing.KindStoreIO
	KindStoreFull          = slashing.KindStoreFull
	KindImportConflict     = slashing.KindImportConflict
)

// Safe and NotSafe build an Outcome; see slashing.Safe/slashing.NotSafe.
func Safe(reason Reason) Outcome { return slashing.Safe(reason) }

func NotSafe(kind Kind, detail string) Outcome { return slashing.NotSafe(kind, detail) }
