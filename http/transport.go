package http

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/ethvault/slashing-protector/protector"
	"github.com/go-chi/render"
)

// requestHasher lets a handler compute an xxhash idempotency key for an
// incoming request before it is acted on, so a retried request can be told
// apart from a genuinely new one by a caller that wants at-most-once
// semantics on top of this service's at-least-once HTTP contract.
type requestHasher interface {
	Hash() (uint64, error)
}

type attestationRequest struct {
	PubKey      jsonPubKey  `json:"pub_key"`
	SourceEpoch phase0Epoch `json:"source_epoch"`
	SourceRoot  jsonRoot    `json:"source_root"`
	TargetEpoch phase0Epoch `json:"target_epoch"`
	TargetRoot  jsonRoot    `json:"target_root"`
	SigningRoot jsonRoot    `json:"signing_root"`
}

func (r *attestationRequest) Hash() (uint64, error) {
	h := xxhash.New()
	h.Write(r.PubKey[:])
	writeUint64(h, uint64(r.SourceEpoch))
	h.Write(r.SourceRoot[:])
	writeUint64(h, uint64(r.TargetEpoch))
	h.Write(r.TargetRoot[:])
	h.Write(r.SigningRoot[:])
	return h.Sum64(), nil
}

func (r *attestationRequest) record() protector.AttestationRecord {
	return protector.AttestationRecord{
		Source:      protector.Checkpoint{Epoch: protector.Epoch(r.SourceEpoch), Root: [32]byte(r.SourceRoot)},
		Target:      protector.Checkpoint{Epoch: protector.Epoch(r.TargetEpoch), Root: [32]byte(r.TargetRoot)},
		SigningRoot: [32]byte(r.SigningRoot),
	}
}

type proposalRequest struct {
	PubKey      jsonPubKey `json:"pub_key"`
	Slot        phase0Slot `json:"slot"`
	SigningRoot jsonRoot   `json:"signing_root"`
}

func (r *proposalRequest) Hash() (uint64, error) {
	h := xxhash.New()
	h.Write(r.PubKey[:])
	writeUint64(h, uint64(r.Slot))
	h.Write(r.SigningRoot[:])
	return h.Sum64(), nil
}

func (r *proposalRequest) record() protector.BlockRecord {
	return protector.BlockRecord{Slot: protector.Slot(r.Slot), SigningRoot: [32]byte(r.SigningRoot)}
}

type pruneRequest struct {
	MinEpoch phase0Epoch `json:"min_epoch"`
	MinSlot  phase0Slot  `json:"min_slot"`
}

// outcomeDTO is the wire shape of a protector.Outcome: exactly one of
// Reason/Kind is populated, mirroring Outcome's own invariant.
type outcomeDTO struct {
	Safe   bool            `json:"safe"`
	Reason protector.Reason `json:"reason,omitempty"`
	Kind   protector.Kind   `json:"kind,omitempty"`
	Detail string          `json:"detail,omitempty"`
}

func newOutcomeDTO(o protector.Outcome) outcomeDTO {
	return outcomeDTO{
		Safe:   o.IsSafe(),
		Reason: o.Reason,
		Kind:   o.Kind,
		Detail: o.Detail,
	}
}

type checkResponse struct {
	Hash       uint64      `json:"hash,omitempty"`
	Outcome    *outcomeDTO `json:"outcome,omitempty"`
	StatusCode int         `json:"status_code,omitempty"`
	Error      string      `json:"error,omitempty"`
}

func (c *checkResponse) Render(w http.ResponseWriter, r *http.Request) error {
	if c.StatusCode != 0 {
		render.Status(r, c.StatusCode)
	}
	render.JSON(w, r, c)
	return nil
}

func writeUint64(h *xxhash.Digest, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	h.Write(buf[:])
}

// phase0Epoch/phase0Slot avoid importing the phase0 package into this file
// just for two numeric aliases; protector already re-exports them.
type phase0Epoch = protector.Epoch
type phase0Slot = protector.Slot

type jsonPubKey protector.ValidatorId

func (j jsonPubKey) MarshalJSON() ([]byte, error) {
	return []byte(`"0x` + hex.EncodeToString(j[:]) + `"`), nil
}

func (j *jsonPubKey) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return err
	}
	copy(j[:], v)
	return nil
}

type jsonRoot [32]byte

func (j jsonRoot) MarshalJSON() ([]byte, error) {
	return []byte(`"0x` + hex.EncodeToString(j[:]) + `"`), nil
}

func (j *jsonRoot) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return err
	}
	copy(j[:], v)
	return nil
}
