package http

import (
	"context"
	"encoding/hex"
	"net/http"

	"github.com/carlmjohnson/requests"
	"github.com/ethvault/slashing-protector/protector"
	"github.com/ethvault/slashing-protector/protector/interchange"
	"github.com/pkg/errors"
)

// Client is a typed client for Server's routes, built on carlmjohnson/
// requests rather than raw net/http so retries, base-URL joining, and JSON
// (de)serialization read the way the rest of the example pack builds HTTP
// clients.
type Client struct {
	base string
	http *http.Client
}

func NewClient(httpClient *http.Client, addr string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{base: addr, http: httpClient}
}

func (c *Client) CheckAttestation(ctx context.Context, network string, validator protector.ValidatorId, a protector.AttestationRecord) (protector.Outcome, error) {
	req := &attestationRequest{
		PubKey:      jsonPubKey(validator),
		SourceEpoch: a.Source.Epoch,
		SourceRoot:  jsonRoot(a.Source.Root),
		TargetEpoch: a.Target.Epoch,
		TargetRoot:  jsonRoot(a.Target.Root),
		SigningRoot: jsonRoot(a.SigningRoot),
	}
	var resp checkResponse
	err := requests.URL(c.base).
		Client(c.http).
		Pathf("/v1/%s/slashable/attestation", network).
		Method(http.MethodPost).
		BodyJSON(req).
		ToJSON(&resp).
		Fetch(ctx)
	if err != nil {
		return protector.Outcome{}, errors.Wrap(err, "requests.Fetch")
	}
	if resp.Error != "" {
		return protector.Outcome{}, errors.New(resp.Error)
	}
	return outcomeFromDTO(resp.Outcome), nil
}

func (c *Client) CheckProposal(ctx context.Context, network string, validator protector.ValidatorId, b protector.BlockRecord) (protector.Outcome, error) {
	req := &proposalRequest{
		PubKey:      jsonPubKey(validator),
		Slot:        b.Slot,
		SigningRoot: jsonRoot(b.SigningRoot),
	}
	var resp checkResponse
	err := requests.URL(c.base).
		Client(c.http).
		Pathf("/v1/%s/slashable/proposal", network).
		Method(http.MethodPost).
		BodyJSON(req).
		ToJSON(&resp).
		Fetch(ctx)
	if err != nil {
		return protector.Outcome{}, errors.Wrap(err, "requests.Fetch")
	}
	if resp.Error != "" {
		return protector.Outcome{}, errors.New(resp.Error)
	}
	return outcomeFromDTO(resp.Outcome), nil
}

func (c *Client) Prune(ctx context.Context, network string, validator protector.ValidatorId, minEpoch protector.Epoch, minSlot protector.Slot) error {
	req := &pruneRequest{MinEpoch: minEpoch, MinSlot: minSlot}
	return requests.URL(c.base).
		Client(c.http).
		Pathf("/v1/%s/prune/%s", network, hex.EncodeToString(validator[:])).
		Method(http.MethodPost).
		BodyJSON(req).
		Fetch(ctx)
}

func (c *Client) Import(ctx context.Context, network string, doc *interchange.Document) (*interchange.ImportSummary, error) {
	var summary interchange.ImportSummary
	err := requests.URL(c.base).
		Client(c.http).
		Pathf("/v1/%s/interchange", network).
		Method(http.MethodPost).
		BodyJSON(doc).
		ToJSON(&summary).
		Fetch(ctx)
	return &summary, errors.Wrap(err, "requests.Fetch")
}

func (c *Client) Export(ctx context.Context, network string, validators []protector.ValidatorId) (*interchange.Document, error) {
	pubKeys := make([]string, len(validators))
	for i, id := range validators {
		pubKeys[i] = "0x" + hex.EncodeToString(id[:])
	}
	var doc interchange.Document
	err := requests.URL(c.base).
		Client(c.http).
		Pathf("/v1/%s/interchange", network).
		Param("pub_key", pubKeys...).
		ToJSON(&doc).
		Fetch(ctx)
	return &doc, errors.Wrap(err, "requests.Fetch")
}

func outcomeFromDTO(dto *outcomeDTO) protector.Outcome {
	if dto == nil {
		return protector.Outcome{}
	}
	if dto.Safe {
		return protector.Safe(dto.Reason)
	}
	return protector.NotSafe(dto.Kind, dto.Detail)
}
