// Package slashing is the leaf of the module: the record model and the
// pure attestation/block decision engines of spec.md §3/§4.2/§4.3. It has
// no dependency on store, kvpool, or the protector façade, so those
// packages can import it without creating a cycle; protector re-exports
// its types under the same names for callers that only ever imported
// protector.
package slashing

import (
	"github.com/attestantio/go-eth2-client/spec/phase0"
)

// ValidatorId is the 48-byte BLS public-key fingerprint that identifies a
// validator. It is created externally by the caller; this package never
// mints one.
type ValidatorId = phase0.BLSPubKey

// Epoch and Slot are the protocol's monotonic time units. slots_per_epoch is
// injected as configuration (see Config) rather than hard-coded, since it is
// a network parameter, not a constant of this package.
type Epoch = phase0.Epoch
type Slot = phase0.Slot

// Checkpoint pairs an epoch with the root it attests to.
type Checkpoint = phase0.Checkpoint

// AttestationRecord is one validator's vote on a source/target checkpoint
// pair. Invariant: Target.Epoch > Source.Epoch, except the genesis record
// where Source.Epoch == Target.Epoch == 0.
type AttestationRecord struct {
	Source      Checkpoint
	Target      Checkpoint
	SigningRoot phase0.Root
}

// BlockRecord is one validator's signature over a block at a given slot.
type BlockRecord struct {
	Slot        Slot
	SigningRoot phase0.Root
}

// Reason classifies why an incoming message was judged Safe to sign.
type Reason string

const (
	ReasonEmptyHistory Reason = "empty_history"
	ReasonSameVote     Reason = "same_vote"
	ReasonValid        Reason = "valid"
)

// Kind classifies why an incoming message was judged NotSafe to sign.
type Kind string

const (
	KindDoubleVote         Kind = "double_vote"
	KindSurrounded         Kind = "surrounded"
	KindSurrounding        Kind = "surrounding"
	KindInvalidAttestation Kind = "invalid_attestation"
	KindDoubleProposal     Kind = "double_proposal"
	KindPruningBarrier     Kind = "pruning_barrier"
	KindStoreIO            Kind = "store_io"
	KindStoreFull          Kind = "store_full"
	KindImportConflict     Kind = "import_conflict"
)

// Outcome is the result of a decision: either Safe, in which case Reason
// explains why, or not, in which case Kind and Detail explain why not.
// Exactly one of the two branches is populated; Safe() reports which.
type Outcome struct {
	Reason Reason
	Kind   Kind
	Detail string
}

// Safe builds a Safe{reason} outcome.
func Safe(reason Reason) Outcome {
	return Outcome{Reason: reason}
}

// NotSafe builds a NotSafe{kind, detail} outcome.
func NotSafe(kind Kind, detail string) Outcome {
	return Outcome{Kind: kind, Detail: detail}
}

// IsSafe reports whether the outcome authorizes a signature.
func (o Outcome) IsSafe() bool {
	return o.Kind == ""
}

// ShouldPersist reports whether a Safe outcome should be appended to the
// history. SameVote is a permitted replay of an already-persisted record,
// so it must not grow the history a second time.
func (o Outcome) ShouldPersist() bool {
	return o.IsSafe() && o.Reason != ReasonSameVote
}

func (o Outcome) String() string {
	if o.IsSafe() {
		return "safe:" + string(o.Reason)
	}
	if o.Detail == "" {
		return "not_safe:" + string(o.Kind)
	}
	return "not_safe:" + string(o.Kind) + ": " + o.Detail
}
