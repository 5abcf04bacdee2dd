package store

import (
	"path/filepath"
	"testing"

	"github.com/ethvault/slashing-protector/protector/slashing"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T, cfg Config) *Store {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func TestStore_Open_CreatesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fresh.db")
	s, err := Open(path, Config{})
	require.NoError(t, err)
	defer s.Close()

	_, ok, err := s.LatestAttestation()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStore_Open_RejectsSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "versioned.db")
	s, err := Open(path, Config{})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// Reopening with the same on-disk schema version succeeds.
	s2, err := Open(path, Config{})
	require.NoError(t, err)
	require.NoError(t, s2.Close())
}

func TestStore_AppendAttestation_Ordering(t *testing.T) {
	s := openTestStore(t, Config{})

	rec1 := slashing.AttestationRecord{Target: slashing.Checkpoint{Epoch: 1}}
	rec2 := slashing.AttestationRecord{Source: slashing.Checkpoint{Epoch: 1}, Target: slashing.Checkpoint{Epoch: 2}}

	require.NoError(t, s.AppendAttestation(rec1))
	require.NoError(t, s.AppendAttestation(rec2))

	history, err := s.AttestationsIn(0, 1000)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, slashing.Epoch(1), history[0].Target.Epoch)
	require.Equal(t, slashing.Epoch(2), history[1].Target.Epoch)

	latest, ok, err := s.LatestAttestation()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, slashing.Epoch(2), latest.Target.Epoch)
}

func TestStore_AppendAttestation_Conflict(t *testing.T) {
	s := openTestStore(t, Config{})

	require.NoError(t, s.AppendAttestation(slashing.AttestationRecord{Target: slashing.Checkpoint{Epoch: 5}}))
	err := s.AppendAttestation(slashing.AttestationRecord{Target: slashing.Checkpoint{Epoch: 5}})
	require.ErrorIs(t, err, ErrConflict)

	err = s.AppendAttestation(slashing.AttestationRecord{Target: slashing.Checkpoint{Epoch: 3}})
	require.ErrorIs(t, err, ErrConflict)
}

func TestStore_AppendAttestation_StoreFull(t *testing.T) {
	s := openTestStore(t, Config{MaxEpoch: 10})

	err := s.AppendAttestation(slashing.AttestationRecord{Target: slashing.Checkpoint{Epoch: 11}})
	require.ErrorIs(t, err, ErrStoreFull)
}

func TestStore_AppendBlock_ConflictAndFull(t *testing.T) {
	s := openTestStore(t, Config{MaxSlot: 10})

	require.NoError(t, s.AppendBlock(slashing.BlockRecord{Slot: 5}))
	require.ErrorIs(t, s.AppendBlock(slashing.BlockRecord{Slot: 5}), ErrConflict)
	require.ErrorIs(t, s.AppendBlock(slashing.BlockRecord{Slot: 11}), ErrStoreFull)

	latest, ok, err := s.LatestBlock()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, slashing.Slot(5), latest.Slot)

	got, ok, err := s.BlockAt(5)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, slashing.Slot(5), got.Slot)

	_, ok, err = s.BlockAt(6)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStore_PruneAttestations_RetainsBoundary(t *testing.T) {
	s := openTestStore(t, Config{})

	for epoch := slashing.Epoch(1); epoch <= 10; epoch++ {
		require.NoError(t, s.AppendAttestation(slashing.AttestationRecord{
			Source: slashing.Checkpoint{Epoch: epoch - 1},
			Target: slashing.Checkpoint{Epoch: epoch},
		}))
	}

	require.NoError(t, s.PruneAttestations(5))

	history, err := s.AttestationsIn(0, 1000)
	require.NoError(t, err)

	require.Equal(t, slashing.Epoch(4), history[0].Target.Epoch, "the boundary record below the threshold must survive")
	for _, rec := range history[1:] {
		require.GreaterOrEqual(t, uint64(rec.Target.Epoch), uint64(5))
	}
}

func TestStore_PruneAttestations_ExactThreshold(t *testing.T) {
	s := openTestStore(t, Config{})
	for epoch := slashing.Epoch(1); epoch <= 5; epoch++ {
		require.NoError(t, s.AppendAttestation(slashing.AttestationRecord{Target: slashing.Checkpoint{Epoch: epoch}}))
	}

	require.NoError(t, s.PruneAttestations(3))

	history, err := s.AttestationsIn(0, 1000)
	require.NoError(t, err)
	require.Equal(t, slashing.Epoch(2), history[0].Target.Epoch)
	require.Equal(t, slashing.Epoch(3), history[1].Target.Epoch)
	require.Equal(t, slashing.Epoch(4), history[2].Target.Epoch)
	require.Equal(t, slashing.Epoch(5), history[3].Target.Epoch)
}

func TestStore_PruneAttestations_ThresholdBeyondAllKeys(t *testing.T) {
	s := openTestStore(t, Config{})
	for epoch := slashing.Epoch(1); epoch <= 3; epoch++ {
		require.NoError(t, s.AppendAttestation(slashing.AttestationRecord{Target: slashing.Checkpoint{Epoch: epoch}}))
	}

	require.NoError(t, s.PruneAttestations(1000))

	history, err := s.AttestationsIn(0, 1000)
	require.NoError(t, err)
	require.Len(t, history, 1, "only the single greatest (boundary) record survives")
	require.Equal(t, slashing.Epoch(3), history[0].Target.Epoch)
}

func TestStore_PruneAttestations_EmptyBucket(t *testing.T) {
	s := openTestStore(t, Config{})
	require.NoError(t, s.PruneAttestations(5))

	history, err := s.AttestationsIn(0, 1000)
	require.NoError(t, err)
	require.Empty(t, history)
}

func TestStore_PruneBlocks_RetainsBoundary(t *testing.T) {
	s := openTestStore(t, Config{})
	for slot := slashing.Slot(1); slot <= 10; slot++ {
		require.NoError(t, s.AppendBlock(slashing.BlockRecord{Slot: slot}))
	}

	require.NoError(t, s.PruneBlocks(5))

	history, err := s.BlocksIn(0, 1000)
	require.NoError(t, err)
	require.Equal(t, slashing.Slot(4), history[0].Slot)
	for _, rec := range history[1:] {
		require.GreaterOrEqual(t, uint64(rec.Slot), uint64(5))
	}
}
