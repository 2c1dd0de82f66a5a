// Package translate turns internal triage and document events into
// customer-safe status updates. It is the single choke point between the
// pipeline's operational vocabulary (fraud rationale, agent names) and the
// customer notification surface: nothing else writes to the notify sink.
package translate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/fnol/internal/bus"
	"github.com/linnemanlabs/fnol/internal/claim"
	"github.com/linnemanlabs/fnol/internal/notify"
)

// Translator subscribes to internal events and emits sanitized
// ClaimStatusUpdated events plus persisted notifications.
type Translator struct {
	bus    *bus.Bus
	sink   notify.Sink
	logger log.Logger

	unsubscribe []func()
}

// New creates a Translator. Call Start to subscribe it on the bus.
func New(b *bus.Bus, sink notify.Sink, logger log.Logger) *Translator {
	if logger == nil {
		logger = log.Nop()
	}
	return &Translator{bus: b, sink: sink, logger: logger}
}

// Start registers the translator's subscriptions.
func (t *Translator) Start() {
	t.unsubscribe = append(t.unsubscribe,
		t.bus.Subscribe(bus.TypeTriageResult, t.handleTriageResult),
		t.bus.Subscribe(bus.TypeDocumentEvaluated, t.handleDocumentEvaluated),
		t.bus.Subscribe(bus.TypeDocumentRequest, t.handleDocumentRequest),
	)
}

// Stop removes the translator's subscriptions.
func (t *Translator) Stop() {
	for _, u := range t.unsubscribe {
		u()
	}
	t.unsubscribe = nil
}

func (t *Translator) handleTriageResult(ctx context.Context, ev bus.Event) error {
	p, ok := ev.Payload.(bus.TriageResult)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", ev.Payload, ev.Type)
	}

	// Map the internal outcome to a closed set of customer statuses. The
	// message never names agents and never says more about fraud than
	// "additional review".
	var (
		status  claim.Status
		message string
	)
	switch {
	case p.FraudSignal:
		status = claim.StatusUnderSIUReview
		message = "We need to review some details a bit more closely. A specialist will contact you."
	case len(p.MissingInfo) > 0:
		status = claim.StatusAwaitingDocuments
		message = fmt.Sprintf("Action required: we need %d additional document(s) to proceed.", len(p.MissingInfo))
	case p.Decision == claim.DecisionFastTrack:
		status = claim.StatusFastTrackRecommended
		message = "Great news! Your claim qualifies for fast track processing."
	default:
		status = claim.StatusUnderReview
		message = "Your claim has been received and is being reviewed by our claims team."
	}

	t.emit(ctx, ev, status, message)
	return nil
}

func (t *Translator) handleDocumentEvaluated(ctx context.Context, ev bus.Event) error {
	p, ok := ev.Payload.(bus.DocumentEvaluated)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", ev.Payload, ev.Type)
	}

	docName := strings.ReplaceAll(p.DocumentType, "_", " ")
	status := claim.StatusDocumentReceived
	message := fmt.Sprintf("We've received your %s.", docName)
	switch p.VerdictStatus {
	case "validated":
		message = fmt.Sprintf("Your %s has been verified successfully.", docName)
	case "mismatch":
		status = claim.StatusUnderReview
		message = fmt.Sprintf("We noticed some discrepancies in the uploaded %s. An adjuster will review it shortly.", docName)
	case "rejected", "error":
		status = claim.StatusActionRequired
		message = fmt.Sprintf("We couldn't read the uploaded %s. Please try uploading it again.", docName)
	}

	t.emit(ctx, ev, status, message)
	return nil
}

func (t *Translator) handleDocumentRequest(ctx context.Context, ev bus.Event) error {
	p, ok := ev.Payload.(bus.DocumentRequest)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", ev.Payload, ev.Type)
	}

	docName := strings.ReplaceAll(p.DocumentType, "_", " ")
	message := fmt.Sprintf("Please upload a copy of your %s.", docName)
	t.emit(ctx, ev, claim.StatusAwaitingDocuments, message)
	return nil
}

// emit publishes the sanitized status event and persists one notification.
// Persistence is detached from the dispatch path: a slow or failing sink
// must not block the bus, and its failure is logged, never republished.
func (t *Translator) emit(ctx context.Context, src bus.Event, status claim.Status, message string) {
	t.bus.Publish(ctx, bus.Event{
		Type:          bus.TypeClaimStatusUpdated,
		CorrelationID: src.CorrelationID,
		Actor:         bus.ActorCustomer,
		Payload: bus.StatusUpdated{
			Status: status,
			Reason: message,
			Detail: bus.StatusDetail{OriginalActor: src.Actor},
		},
	})

	n := &notify.Notification{
		ID:                ulid.Make().String(),
		CorrelationID:     src.CorrelationID,
		CustomerPseudonym: "cust-" + src.CorrelationID,
		Status:            string(status),
		Message:           message,
		Detail: notify.Detail{
			Actor:         bus.ActorCustomer,
			Reason:        message,
			OriginalActor: src.Actor,
		},
		CreatedAt: time.Now(),
	}

	go func() {
		pctx := context.WithoutCancel(ctx)
		if err := t.sink.Insert(pctx, n); err != nil {
			t.logger.Error(pctx, err, "failed to persist notification",
				"correlation_id", n.CorrelationID,
				"status", n.Status,
			)
		}
	}()
}
