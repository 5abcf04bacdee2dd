package slashing

import (
	"fmt"
	"sort"
)

// CheckAttestation classifies a proposed attestation against a validator's
// history, which must be ordered ascending by Target.Epoch (invariant I1).
// It is a pure function: it never mutates history and never performs I/O.
//
// Grounded on lighthouse's should_sign_attestation (validator_client/
// slashing_protection/src/logic.rs): locate the record at or before the
// target epoch, classify same-target votes directly, then bound the
// surrounded/surrounding scans using the bracketing records rather than
// walking the full history.
func CheckAttestation(a AttestationRecord, history []AttestationRecord) Outcome {
	genesis := a.Source.Epoch == 0 && a.Target.Epoch == 0
	if a.Target.Epoch <= a.Source.Epoch && !(genesis && len(history) == 0) {
		return NotSafe(KindInvalidAttestation, fmt.Sprintf(
			"target epoch %d does not exceed source epoch %d", a.Target.Epoch, a.Source.Epoch,
		))
	}

	if len(history) == 0 {
		return Safe(ReasonEmptyHistory)
	}

	if a.Target.Epoch < history[0].Target.Epoch {
		return NotSafe(KindPruningBarrier, fmt.Sprintf(
			"target epoch %d precedes earliest retained record at target epoch %d",
			a.Target.Epoch, history[0].Target.Epoch,
		))
	}

	// Rightmost record with Target.Epoch <= a.Target.Epoch.
	targetIdx := sort.Search(len(history), func(i int) bool {
		return history[i].Target.Epoch > a.Target.Epoch
	}) - 1
	if targetIdx < 0 {
		return NotSafe(KindPruningBarrier, fmt.Sprintf(
			"no retained record at or before target epoch %d", a.Target.Epoch,
		))
	}

	ht := history[targetIdx]
	if ht.Target.Epoch == a.Target.Epoch {
		if ht.SigningRoot == a.SigningRoot && ht.Source.Epoch == a.Source.Epoch {
			return Safe(ReasonSameVote)
		}
		return NotSafe(KindDoubleVote, fmt.Sprintf(
			"existing attestation at target epoch %d with conflicting signing root %x",
			a.Target.Epoch, ht.SigningRoot,
		))
	}

	// Surrounded: any record with a strictly greater target voted from an
	// earlier source than the incoming attestation.
	for i := targetIdx + 1; i < len(history); i++ {
		h := history[i]
		if h.Source.Epoch < a.Source.Epoch {
			return NotSafe(KindSurrounded, fmt.Sprintf(
				"attestation (source %d, target %d) is surrounded by existing (source %d, target %d)",
				a.Source.Epoch, a.Target.Epoch, h.Source.Epoch, h.Target.Epoch,
			))
		}
	}

	// Surrounding is skipped for the genesis source epoch, per lighthouse's
	// explicit special case.
	if a.Source.Epoch != 0 {
		// sourceIdx may legitimately land at -1: the source epoch can precede
		// every retained record (it need not itself be a target of history),
		// in which case the surrounding scan simply runs from index 0.
		sourceIdx := sort.Search(targetIdx+1, func(i int) bool {
			return history[i].Target.Epoch > a.Source.Epoch
		}) - 1
		for i := sourceIdx + 1; i <= targetIdx; i++ {
			h := history[i]
			if h.Source.Epoch > a.Source.Epoch {
				return NotSafe(KindSurrounding, fmt.Sprintf(
					"attestation (source %d, target %d) surrounds existing (source %d, target %d)",
					a.Source.Epoch, a.Target.Epoch, h.Source.Epoch, h.Target.Epoch,
				))
			}
		}
	}

	return Safe(ReasonValid)
}
