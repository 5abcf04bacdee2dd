// Package interchange implements the EIP-3076-compatible slashing
// protection interchange format of spec §4.5/§6: import and export of
// validator histories as a standardized JSON document, for migrating a
// validator between client implementations.
//
// Grounded on the retrieved Prysm local/standard-protection-format
// importer: per-pubkey grouping of duplicate JSON entries, a genesis-
// validators-root metadata check, "absent signing root is a wildcard"
// handling, and a higher-epoch-wins / differing-root-aborts conflict
// policy on import.
package interchange

// FormatVersion is the interchange format version this package produces
// and the only one it accepts on import.
const FormatVersion = "5"

// Document is the top-level interchange JSON object of spec §6.
type Document struct {
	Metadata Metadata          `json:"metadata"`
	Data     []ValidatorHistory `json:"data"`
}

// Metadata identifies the chain a document's history belongs to.
type Metadata struct {
	InterchangeFormatVersion string `json:"interchange_format_version"`
	GenesisValidatorsRoot    string `json:"genesis_validators_root"`
}

// ValidatorHistory is one validator's signed blocks and attestations.
type ValidatorHistory struct {
	Pubkey             string              `json:"pubkey"`
	SignedBlocks       []SignedBlock       `json:"signed_blocks"`
	SignedAttestations []SignedAttestation `json:"signed_attestations"`
}

// SignedBlock is one proposal entry. SigningRoot is optional: an absent or
// empty value is a wildcard that forbids a SameVote classification on
// import (any conflicting entry at the same slot aborts the import for
// that validator).
type SignedBlock struct {
	Slot        string `json:"slot"`
	SigningRoot string `json:"signing_root,omitempty"`
}

// SignedAttestation is one attestation entry, with the same optional-root
// wildcard semantics as SignedBlock.
type SignedAttestation struct {
	SourceEpoch string `json:"source_epoch"`
	TargetEpoch string `json:"target_epoch"`
	SigningRoot string `json:"signing_root,omitempty"`
}

// ImportSummary reports the outcome of importing a Document.
type ImportSummary struct {
	// Imported counts successfully imported (validator, record) pairs,
	// attestations and blocks combined.
	Imported int
	// Skipped lists validators whose history could not be fully reconciled
	// with what was already on disk or with their own document entries: the
	// first rejected record aborts the rest of that validator's import, and
	// whatever was imported for them before that point is kept.
	Skipped []SkippedValidator
}

// SkippedValidator names why a validator's import was aborted partway
// through, so a caller doesn't have to re-derive it from the logs.
type SkippedValidator struct {
	PubKey string `json:"pub_key"`
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}
