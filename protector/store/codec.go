package store

import (
	"encoding/binary"

	"github.com/ethvault/slashing-protector/protector/slashing"
)

// Keys are raw big-endian uint64s: bbolt orders keys lexically by byte
// value, so big-endian encoding is what gives ascending iteration order for
// free (mirrors the bucket layout in the retrieved Prysm attester
// protection file, which keys signing-root and source-epoch buckets the
// same way).

func epochKey(e slashing.Epoch) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(e))
	return b[:]
}

func decodeEpochKey(b []byte) slashing.Epoch {
	return slashing.Epoch(binary.BigEndian.Uint64(b))
}

func slotKey(s slashing.Slot) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(s))
	return b[:]
}

func decodeSlotKey(b []byte) slashing.Slot {
	return slashing.Slot(binary.BigEndian.Uint64(b))
}

// attestationValue is sourceEpoch(8) || sourceRoot(32) || targetRoot(32) ||
// signingRoot(32); the target epoch itself is the bucket key.
const attestationValueLen = 8 + 32 + 32 + 32

func encodeAttestation(rec slashing.AttestationRecord) []byte {
	buf := make([]byte, attestationValueLen)
	binary.BigEndian.PutUint64(buf[0:8], uint64(rec.Source.Epoch))
	copy(buf[8:40], rec.Source.Root[:])
	copy(buf[40:72], rec.Target.Root[:])
	copy(buf[72:104], rec.SigningRoot[:])
	return buf
}

func decodeAttestation(targetEpoch slashing.Epoch, value []byte) slashing.AttestationRecord {
	var rec slashing.AttestationRecord
	rec.Source.Epoch = slashing.Epoch(binary.BigEndian.Uint64(value[0:8]))
	copy(rec.Source.Root[:], value[8:40])
	rec.Target.Epoch = targetEpoch
	copy(rec.Target.Root[:], value[40:72])
	copy(rec.SigningRoot[:], value[72:104])
	return rec
}

// blockValue is just the 32-byte signing root; the slot is the bucket key.
const blockValueLen = 32

func encodeBlock(rec slashing.BlockRecord) []byte {
	buf := make([]byte, blockValueLen)
	copy(buf, rec.SigningRoot[:])
	return buf
}

func decodeBlock(slot slashing.Slot, value []byte) slashing.BlockRecord {
	var rec slashing.BlockRecord
	rec.Slot = slot
	copy(rec.SigningRoot[:], value)
	return rec
}
