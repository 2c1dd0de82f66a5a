// Package claimapi exposes the FNOL intake and claim lifecycle HTTP API.
package claimapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/fnol/internal/bus"
	"github.com/linnemanlabs/fnol/internal/claim"
	"github.com/linnemanlabs/fnol/internal/doceval"
	"github.com/linnemanlabs/fnol/internal/history"
	"github.com/linnemanlabs/fnol/internal/notify"
	"github.com/linnemanlabs/fnol/internal/triage"
)

// ClaimService defines the business operations claimapi needs.
type ClaimService interface {
	Submit(ctx context.Context, in *triage.Intake) (*claim.Claim, error)
	Get(ctx context.Context, id string) (*claim.Claim, bool, error)
	ProcessDocument(ctx context.Context, id, docType string, v *claim.Verdict) error
	Close(ctx context.Context, id, reason string) error
	SimilarClaims(ctx context.Context, id string, topK int) (*history.SimilarResult, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger    log.Logger
	svc       ClaimService
	bus       *bus.Bus
	sink      notify.Sink
	evaluator doceval.Evaluator
}

// New creates a new API handler. sink and evaluator may be nil; the
// corresponding endpoints then return 404 and the fallback verdict path.
func New(logger log.Logger, svc ClaimService, b *bus.Bus, sink notify.Sink, evaluator doceval.Evaluator) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("claim service is required"))
	}
	if b == nil {
		panic(xerrors.New("bus is required"))
	}
	return &API{
		logger:    logger,
		svc:       svc,
		bus:       b,
		sink:      sink,
		evaluator: evaluator,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/claims", func(r chi.Router) {
		r.Post("/", a.handleSubmitClaim)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", a.handleGetClaim)
			r.Get("/events", a.handleListEvents)
			r.Get("/notifications", a.handleListNotifications)
			r.Get("/similar", a.handleSimilarClaims)
			r.Post("/documents", a.handleUploadDocument)
			r.Post("/close", a.handleCloseClaim)
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
