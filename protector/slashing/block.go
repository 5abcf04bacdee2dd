package slashing

import (
	"fmt"
	"sort"
)

// CheckBlock classifies a proposed block against a validator's block
// history, which must be ordered ascending by Slot. Pure function, no I/O.
//
// Grounded on the teacher's CheckProposal (protector/protector.go):
// proposalAtSlotExists + signingRootIsDifferent, generalized into a
// standalone predicate over a history view instead of being inlined
// alongside the store access.
func CheckBlock(b BlockRecord, history []BlockRecord) Outcome {
	if len(history) == 0 {
		return Safe(ReasonEmptyHistory)
	}

	if b.Slot < history[0].Slot {
		return NotSafe(KindPruningBarrier, fmt.Sprintf(
			"slot %d precedes earliest retained record at slot %d", b.Slot, history[0].Slot,
		))
	}

	idx := sort.Search(len(history), func(i int) bool {
		return history[i].Slot >= b.Slot
	})
	if idx == len(history) || history[idx].Slot != b.Slot {
		return Safe(ReasonValid)
	}

	existing := history[idx]
	if existing.SigningRoot == b.SigningRoot {
		return Safe(ReasonSameVote)
	}
	return NotSafe(KindDoubleProposal, fmt.Sprintf(
		"existing proposal at slot %d with conflicting signing root %x", b.Slot, existing.SigningRoot,
	))
}
