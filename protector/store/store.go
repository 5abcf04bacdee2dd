// Package store implements the durable, crash-safe, per-validator history
// store described by spec §4.1. One Store wraps one bbolt file scoped to a
// single validator (kvpool.Pool opens one file per (network, validator));
// within it, an "attestations" bucket and a "blocks" bucket hold the
// ordered histories, keyed by big-endian target epoch / slot so bbolt's
// native cursor order is the ascending order the decision engines require.
package store

import (
	"time"

	"github.com/ethvault/slashing-protector/protector/slashing"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

var (
	attestationsBucket = []byte("attestations")
	blocksBucket       = []byte("blocks")
	metaBucket         = []byte("meta")

	schemaVersionKey = []byte("schema_version")
)

const schemaVersion = "1"

// Config carries the protocol parameters the store and decision engines
// need but never mint themselves.
type Config struct {
	// SlotsPerEpoch is a network parameter; it is not currently consulted
	// by the store directly (the decision engines work purely in epochs
	// and slots) but is threaded through so a future slot<->epoch bound
	// check has it available without a signature change.
	SlotsPerEpoch uint64

	// MaxEpoch and MaxSlot bound unsigned arithmetic: appends beyond them
	// fail with ErrStoreFull rather than risk wraparound. Zero means "use
	// the package default" (2^63-1), which is large enough that no real
	// network reaches it; tests can set a small bound to exercise the
	// guard directly.
	MaxEpoch slashing.Epoch
	MaxSlot  slashing.Slot
}

const defaultMaxBound = ^uint64(0) >> 1

func (c Config) maxEpoch() slashing.Epoch {
	if c.MaxEpoch == 0 {
		return slashing.Epoch(defaultMaxBound)
	}
	return c.MaxEpoch
}

func (c Config) maxSlot() slashing.Slot {
	if c.MaxSlot == 0 {
		return slashing.Slot(defaultMaxBound)
	}
	return c.MaxSlot
}

// Store is a single validator's durable history.
type Store struct {
	db  *bolt.DB
	cfg Config
}

// Open creates the schema if absent and returns a handle to it. It fails
// with ErrStoreInit if the path is unreadable or an existing schema's
// version does not match this package's.
func Open(path string, cfg Config) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(ErrStoreInit, "bolt.Open(%s): %v", path, err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists(metaBucket)
		if err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(attestationsBucket); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(blocksBucket); err != nil {
			return err
		}
		existing := meta.Get(schemaVersionKey)
		if existing == nil {
			return meta.Put(schemaVersionKey, []byte(schemaVersion))
		}
		if string(existing) != schemaVersion {
			return errors.Errorf("schema version %q, wanted %q", existing, schemaVersion)
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(ErrStoreInit, err.Error())
	}

	return &Store{db: db, cfg: cfg}, nil
}

// Close releases the underlying file handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// LatestAttestation returns the record with the greatest target epoch, or
// ok=false if the history is empty.
func (s *Store) LatestAttestation() (rec slashing.AttestationRecord, ok bool, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(attestationsBucket).Cursor()
		k, v := c.Last()
		if k == nil {
			return nil
		}
		rec = decodeAttestation(decodeEpochKey(k), v)
		ok = true
		return nil
	})
	return rec, ok, err
}

// AttestationsIn returns every record with target epoch in [low, high],
// ascending by target epoch.
func (s *Store) AttestationsIn(low, high slashing.Epoch) ([]slashing.AttestationRecord, error) {
	var out []slashing.AttestationRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(attestationsBucket).Cursor()
		lowKey := epochKey(low)
		for k, v := c.Seek(lowKey); k != nil; k, v = c.Next() {
			epoch := decodeEpochKey(k)
			if epoch > high {
				break
			}
			out = append(out, decodeAttestation(epoch, v))
		}
		return nil
	})
	return out, err
}

// AppendAttestation atomically appends rec, failing with ErrConflict if
// rec.Target.Epoch does not exceed the current latest target epoch, and
// with ErrStoreFull if it exceeds the configured bound. A successful
// return is durable across crash/restart (bbolt fsyncs on commit).
func (s *Store) AppendAttestation(rec slashing.AttestationRecord) error {
	if rec.Target.Epoch > s.cfg.maxEpoch() {
		return ErrStoreFull
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(attestationsBucket)
		k, _ := b.Cursor().Last()
		if k != nil && decodeEpochKey(k) >= rec.Target.Epoch {
			return ErrConflict
		}
		return b.Put(epochKey(rec.Target.Epoch), encodeAttestation(rec))
	})
}

// LatestBlock returns the record with the greatest slot, or ok=false if the
// history is empty.
func (s *Store) LatestBlock() (rec slashing.BlockRecord, ok bool, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(blocksBucket).Cursor()
		k, v := c.Last()
		if k == nil {
			return nil
		}
		rec = decodeBlock(decodeSlotKey(k), v)
		ok = true
		return nil
	})
	return rec, ok, err
}

// BlockAt returns the record at the given slot, or ok=false if absent.
func (s *Store) BlockAt(slot slashing.Slot) (rec slashing.BlockRecord, ok bool, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(blocksBucket).Get(slotKey(slot))
		if v == nil {
			return nil
		}
		rec = decodeBlock(slot, v)
		ok = true
		return nil
	})
	return rec, ok, err
}

// BlocksIn returns every record with slot in [low, high], ascending by
// slot.
func (s *Store) BlocksIn(low, high slashing.Slot) ([]slashing.BlockRecord, error) {
	var out []slashing.BlockRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(blocksBucket).Cursor()
		lowKey := slotKey(low)
		for k, v := c.Seek(lowKey); k != nil; k, v = c.Next() {
			slot := decodeSlotKey(k)
			if slot > high {
				break
			}
			out = append(out, decodeBlock(slot, v))
		}
		return nil
	})
	return out, err
}

// AppendBlock atomically appends rec, failing with ErrConflict if a block
// already exists at rec.Slot, and with ErrStoreFull if the slot exceeds the
// configured bound.
func (s *Store) AppendBlock(rec slashing.BlockRecord) error {
	if rec.Slot > s.cfg.maxSlot() {
		return ErrStoreFull
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(blocksBucket)
		if b.Get(slotKey(rec.Slot)) != nil {
			return ErrConflict
		}
		return b.Put(slotKey(rec.Slot), encodeBlock(rec))
	})
}

// PruneAttestations removes every record with target epoch < minTarget,
// except it always retains the single greatest such record (the boundary
// record the decision engine needs to prove safety against pruned history).
func (s *Store) PruneAttestations(minTarget slashing.Epoch) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(attestationsBucket)
		c := b.Cursor()

		boundaryKey, _ := c.Seek(epochKey(minTarget))
		if boundaryKey != nil && decodeEpochKey(boundaryKey) == minTarget {
			// Seek landed exactly on minTarget; the boundary is the prior key.
			boundaryKey, _ = c.Prev()
		} else if boundaryKey == nil {
			// Every key is < minTarget; the boundary is the last key.
			boundaryKey, _ = c.Last()
		} else {
			// Seek landed past minTarget; step back once for the boundary.
			boundaryKey, _ = c.Prev()
		}

		var toDelete [][]byte
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			if decodeEpochKey(k) >= minTarget {
				break
			}
			if boundaryKey != nil && string(k) == string(boundaryKey) {
				continue
			}
			toDelete = append(toDelete, append([]byte(nil), k...))
		}
		for _, k := range toDelete {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// PruneBlocks removes every record with slot < minSlot, except it always
// retains the single greatest such record.
func (s *Store) PruneBlocks(minSlot slashing.Slot) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(blocksBucket)
		c := b.Cursor()

		boundaryKey, _ := c.Seek(slotKey(minSlot))
		if boundaryKey != nil && decodeSlotKey(boundaryKey) == minSlot {
			boundaryKey, _ = c.Prev()
		} else if boundaryKey == nil {
			boundaryKey, _ = c.Last()
		} else {
			boundaryKey, _ = c.Prev()
		}

		var toDelete [][]byte
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			if decodeSlotKey(k) >= minSlot {
				break
			}
			if boundaryKey != nil && string(k) == string(boundaryKey) {
				continue
			}
			toDelete = append(toDelete, append([]byte(nil), k...))
		}
		for _, k := range toDelete {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}
