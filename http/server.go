// Package http is the transport facade of spec §6: a chi-routed HTTP
// surface over protector.Service, plus a typed client for talking to it.
// Grounded on the teacher's http/server.go and http/client.go, generalized
// from the two-operation (attestation/proposal) API to the five operations
// of the Service façade.
package http

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/ethvault/slashing-protector/protector"
	"github.com/ethvault/slashing-protector/protector/interchange"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Protector is the subset of *protector.Service the server needs, named so
// tests can substitute a fake.
type Protector interface {
	CheckAndInsertAttestation(ctx context.Context, network string, validator protector.ValidatorId, a protector.AttestationRecord) protector.Outcome
	CheckAndInsertBlock(ctx context.Context, network string, validator protector.ValidatorId, b protector.BlockRecord) protector.Outcome
	Prune(ctx context.Context, network string, validator protector.ValidatorId, minEpoch protector.Epoch, minSlot protector.Slot) error
	HistoryFor(ctx context.Context, network string, validator protector.ValidatorId) ([]protector.AttestationRecord, []protector.BlockRecord, error)
	PoolSize() int

	interchange.ImportTarget
	interchange.ExportSource
}

type Server struct {
	logger    *zap.Logger
	protector Protector
	metrics   *metrics
	router    *chi.Mux
}

func NewServer(logger *zap.Logger, svc Protector) *Server {
	s := &Server{
		logger:    logger,
		protector: svc,
	}
	reg := prometheus.NewRegistry()
	s.metrics = newMetrics(reg, svc.PoolSize)

	s.router = chi.NewRouter()
	s.router.Use(middleware.Timeout(60 * time.Second))
	s.router.Use(middleware.Logger)
	s.router.Use(render.SetContentType(render.ContentTypeJSON))
	s.router.Mount("/debug", middleware.Profiler())
	s.router.Handle("/v1/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	s.router.Route("/v1/{network}", func(r chi.Router) {
		r.Use(networkCtx)
		r.Route("/slashable", func(r chi.Router) {
			r.Post("/proposal", s.handleCheckProposal)
			r.Post("/attestation", s.handleCheckAttestation)
		})
		r.Get("/history/{pub_key}", s.handleHistory)
		r.Post("/prune/{pub_key}", s.handlePrune)
		r.Post("/interchange", s.handleImport)
		r.Get("/interchange", s.handleExport)
	})
	return s
}

func (s *Server) handleCheckProposal(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req proposalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		render.Render(w, r, &checkResponse{StatusCode: http.StatusBadRequest, Error: err.Error()})
		return
	}

	outcome := s.protector.CheckAndInsertBlock(r.Context(), getNetwork(r.Context()), protector.ValidatorId(req.PubKey), req.record())
	s.metrics.observe("proposal", outcome)

	s.logger.Debug("CheckProposal",
		zap.String("pub_key", hex.EncodeToString(req.PubKey[:])),
		zap.Uint64("slot", uint64(req.Slot)),
		zap.String("outcome", outcome.String()),
		zap.Duration("took", time.Since(start)),
	)
	dto := newOutcomeDTO(outcome)
	render.Render(w, r, &checkResponse{Outcome: &dto})
}

func (s *Server) handleCheckAttestation(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req attestationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		render.Render(w, r, &checkResponse{StatusCode: http.StatusBadRequest, Error: err.Error()})
		return
	}

	outcome := s.protector.CheckAndInsertAttestation(r.Context(), getNetwork(r.Context()), protector.ValidatorId(req.PubKey), req.record())
	s.metrics.observe("attestation", outcome)

	s.logger.Debug("CheckAttestation",
		zap.String("pub_key", hex.EncodeToString(req.PubKey[:])),
		zap.Uint64("source_epoch", uint64(req.SourceEpoch)),
		zap.Uint64("target_epoch", uint64(req.TargetEpoch)),
		zap.String("outcome", outcome.String()),
		zap.Duration("took", time.Since(start)),
	)
	dto := newOutcomeDTO(outcome)
	render.Render(w, r, &checkResponse{Outcome: &dto})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	pubKey, err := decodePubKeyParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	attestations, blocks, err := s.protector.HistoryFor(r.Context(), getNetwork(r.Context()), pubKey)
	if err != nil {
		s.logger.Error("failed to get history", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	type block struct {
		Slot        protector.Slot `json:"slot"`
		SigningRoot string         `json:"signing_root"`
	}
	respBlocks := make([]block, len(blocks))
	for i, b := range blocks {
		respBlocks[i] = block{Slot: b.Slot, SigningRoot: "0x" + hex.EncodeToString(b.SigningRoot[:])}
	}

	type attestation struct {
		Source      protector.Epoch `json:"source"`
		Target      protector.Epoch `json:"target"`
		SigningRoot string          `json:"signing_root"`
	}
	respAttestations := make([]attestation, len(attestations))
	for i, a := range attestations {
		respAttestations[i] = attestation{
			Source:      a.Source.Epoch,
			Target:      a.Target.Epoch,
			SigningRoot: "0x" + hex.EncodeToString(a.SigningRoot[:]),
		}
	}

	render.JSON(w, r, struct {
		Blocks       []block       `json:"blocks"`
		Attestations []attestation `json:"attestations"`
	}{respBlocks, respAttestations})
}

func (s *Server) handlePrune(w http.ResponseWriter, r *http.Request) {
	pubKey, err := decodePubKeyParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req pruneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.protector.Prune(r.Context(), getNetwork(r.Context()), pubKey, protector.Epoch(req.MinEpoch), protector.Slot(req.MinSlot)); err != nil {
		s.logger.Error("failed to prune", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var doc interchange.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	summary, err := interchange.Import(r.Context(), s.protector, getNetwork(r.Context()), &doc)
	if err != nil {
		s.logger.Error("failed to import interchange document", zap.Error(err))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	render.JSON(w, r, summary)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	pubKeys := r.URL.Query()["pub_key"]
	ids := make([]protector.ValidatorId, 0, len(pubKeys))
	for _, s := range pubKeys {
		var id protector.ValidatorId
		b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
		if err != nil || len(b) != len(id) {
			http.Error(w, "invalid pub_key: "+s, http.StatusBadRequest)
			return
		}
		copy(id[:], b)
		ids = append(ids, id)
	}

	doc, err := interchange.Export(r.Context(), s.protector, getNetwork(r.Context()), ids)
	if err != nil {
		s.logger.Error("failed to export interchange document", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	render.JSON(w, r, doc)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func decodePubKeyParam(r *http.Request) (protector.ValidatorId, error) {
	var pubKey protector.ValidatorId
	b, err := hex.DecodeString(strings.TrimPrefix(chi.URLParam(r, "pub_key"), "0x"))
	if err != nil {
		return pubKey, err
	}
	copy(pubKey[:], b)
	return pubKey, nil
}

type networkCtxKey struct{}

func networkCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		network := chi.URLParam(r, "network")
		if network == "" {
			http.Error(w, "network parameter is required", http.StatusBadRequest)
			return
		}
		ctx := context.WithValue(r.Context(), networkCtxKey{}, network)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func getNetwork(ctx context.Context) string {
	return ctx.Value(networkCtxKey{}).(string)
}
