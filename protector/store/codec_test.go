package store

import (
	"testing"

	"github.com/ethvault/slashing-protector/protector/slashing"
	"github.com/stretchr/testify/require"
)

func TestCodec_AttestationRoundTrip(t *testing.T) {
	rec := slashing.AttestationRecord{
		Source:      slashing.Checkpoint{Epoch: 7, Root: [32]byte{1}},
		Target:      slashing.Checkpoint{Epoch: 9, Root: [32]byte{2}},
		SigningRoot: [32]byte{3},
	}
	got := decodeAttestation(rec.Target.Epoch, encodeAttestation(rec))
	require.Equal(t, rec, got)
}

func TestCodec_BlockRoundTrip(t *testing.T) {
	rec := slashing.BlockRecord{Slot: 42, SigningRoot: [32]byte{9}}
	got := decodeBlock(rec.Slot, encodeBlock(rec))
	require.Equal(t, rec, got)
}

func TestCodec_EpochKeyOrdering(t *testing.T) {
	lower := epochKey(1)
	higher := epochKey(2)
	require.Less(t, string(lower), string(higher), "big-endian keys must sort ascending lexically")
	require.Equal(t, slashing.Epoch(5), decodeEpochKey(epochKey(5)))
}

func TestCodec_SlotKeyOrdering(t *testing.T) {
	lower := slotKey(1)
	higher := slotKey(300)
	require.Less(t, string(lower), string(higher))
	require.Equal(t, slashing.Slot(300), decodeSlotKey(slotKey(300)))
}
