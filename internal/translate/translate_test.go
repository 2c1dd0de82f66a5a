package translate

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/linnemanlabs/fnol/internal/bus"
	"github.com/linnemanlabs/fnol/internal/claim"
	"github.com/linnemanlabs/fnol/internal/notify"
)

// chanSink hands inserted notifications to the test, since the translator
// persists them off the dispatch path.
type chanSink struct {
	ch  chan *notify.Notification
	err error
}

func newChanSink() *chanSink {
	return &chanSink{ch: make(chan *notify.Notification, 8)}
}

func (s *chanSink) Insert(_ context.Context, n *notify.Notification) error {
	s.ch <- n
	return s.err
}

func (s *chanSink) List(context.Context, string) ([]*notify.Notification, error) {
	return nil, nil
}

func (s *chanSink) await(t *testing.T) *notify.Notification {
	t.Helper()
	select {
	case n := <-s.ch:
		return n
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for notification insert")
		return nil
	}
}

func newTestTranslator(t *testing.T) (*bus.Bus, *chanSink) {
	t.Helper()
	b := bus.New(nil, nil)
	sink := newChanSink()
	tr := New(b, sink, nil)
	tr.Start()
	t.Cleanup(tr.Stop)
	return b, sink
}

func TestTriageResult_CustomerStatusMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		payload     bus.TriageResult
		wantStatus  claim.Status
		wantMessage string
	}{
		{
			name:        "fraud signal is softened",
			payload:     bus.TriageResult{Decision: claim.DecisionFlagged, Rationale: "Risk detected: claimant has 4 past claims, 2 were flagged.", FraudSignal: true},
			wantStatus:  claim.StatusUnderSIUReview,
			wantMessage: "We need to review some details a bit more closely. A specialist will contact you.",
		},
		{
			name:        "missing documents",
			payload:     bus.TriageResult{Decision: claim.DecisionStandard, MissingInfo: []string{claim.DocAccidentPhoto, claim.DocPoliceReport}},
			wantStatus:  claim.StatusAwaitingDocuments,
			wantMessage: "Action required: we need 2 additional document(s) to proceed.",
		},
		{
			name:        "fast track",
			payload:     bus.TriageResult{Decision: claim.DecisionFastTrack},
			wantStatus:  claim.StatusFastTrackRecommended,
			wantMessage: "Great news! Your claim qualifies for fast track processing.",
		},
		{
			name:        "standard review",
			payload:     bus.TriageResult{Decision: claim.DecisionStandard},
			wantStatus:  claim.StatusUnderReview,
			wantMessage: "Your claim has been received and is being reviewed by our claims team.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b, sink := newTestTranslator(t)

			b.Publish(context.Background(), bus.Event{
				Type:          bus.TypeTriageResult,
				CorrelationID: "c1",
				Actor:         bus.ActorTriage,
				Payload:       tt.payload,
			})

			updates := customerUpdates(b)
			if len(updates) != 1 {
				t.Fatalf("customer updates = %d, want 1", len(updates))
			}
			p := updates[0].Payload.(bus.StatusUpdated)
			if p.Status != tt.wantStatus {
				t.Fatalf("status = %s, want %s", p.Status, tt.wantStatus)
			}
			if p.Reason != tt.wantMessage {
				t.Fatalf("message = %q, want %q", p.Reason, tt.wantMessage)
			}
			if p.Detail.OriginalActor != bus.ActorTriage {
				t.Fatalf("original actor = %q", p.Detail.OriginalActor)
			}
			// The customer surface never sees internal rationale text.
			if tt.payload.Rationale != "" && strings.Contains(p.Reason, "flagged") {
				t.Fatalf("internal rationale leaked: %q", p.Reason)
			}

			n := sink.await(t)
			if n.Status != string(tt.wantStatus) || n.Message != tt.wantMessage {
				t.Fatalf("notification = %+v", n)
			}
			if n.CustomerPseudonym != "cust-c1" {
				t.Fatalf("pseudonym = %q", n.CustomerPseudonym)
			}
			if n.ID == "" {
				t.Fatal("notification has no ID")
			}
		})
	}
}

func TestDocumentEvaluated_VerdictMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		verdict     string
		wantStatus  claim.Status
		wantMessage string
	}{
		{
			name:        "validated",
			verdict:     "validated",
			wantStatus:  claim.StatusDocumentReceived,
			wantMessage: "Your accident photo has been verified successfully.",
		},
		{
			name:        "mismatch",
			verdict:     "mismatch",
			wantStatus:  claim.StatusUnderReview,
			wantMessage: "We noticed some discrepancies in the uploaded accident photo. An adjuster will review it shortly.",
		},
		{
			name:        "rejected",
			verdict:     "rejected",
			wantStatus:  claim.StatusActionRequired,
			wantMessage: "We couldn't read the uploaded accident photo. Please try uploading it again.",
		},
		{
			name:        "error",
			verdict:     "error",
			wantStatus:  claim.StatusActionRequired,
			wantMessage: "We couldn't read the uploaded accident photo. Please try uploading it again.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b, sink := newTestTranslator(t)

			b.Publish(context.Background(), bus.Event{
				Type:          bus.TypeDocumentEvaluated,
				CorrelationID: "c1",
				Actor:         bus.ActorDocEval,
				Payload:       bus.DocumentEvaluated{DocumentType: claim.DocAccidentPhoto, VerdictStatus: tt.verdict},
			})

			updates := customerUpdates(b)
			if len(updates) != 1 {
				t.Fatalf("customer updates = %d, want 1", len(updates))
			}
			p := updates[0].Payload.(bus.StatusUpdated)
			if p.Status != tt.wantStatus || p.Reason != tt.wantMessage {
				t.Fatalf("got %s %q", p.Status, p.Reason)
			}
			sink.await(t)
		})
	}
}

func TestDocumentRequest_AsksForUpload(t *testing.T) {
	t.Parallel()
	b, sink := newTestTranslator(t)

	b.Publish(context.Background(), bus.Event{
		Type:          bus.TypeDocumentRequest,
		CorrelationID: "c1",
		Actor:         bus.ActorDocRequest,
		Payload:       bus.DocumentRequest{DocumentType: claim.DocPoliceReport},
	})

	updates := customerUpdates(b)
	if len(updates) != 1 {
		t.Fatalf("customer updates = %d, want 1", len(updates))
	}
	p := updates[0].Payload.(bus.StatusUpdated)
	if p.Status != claim.StatusAwaitingDocuments {
		t.Fatalf("status = %s", p.Status)
	}
	if p.Reason != "Please upload a copy of your police report." {
		t.Fatalf("message = %q", p.Reason)
	}

	n := sink.await(t)
	if n.Detail.OriginalActor != bus.ActorDocRequest {
		t.Fatalf("original actor = %q", n.Detail.OriginalActor)
	}
}

func TestEmit_SinkFailureDoesNotRepublish(t *testing.T) {
	t.Parallel()
	b := bus.New(nil, nil)
	sink := newChanSink()
	sink.err = errors.New("sink down")
	tr := New(b, sink, nil)
	tr.Start()
	defer tr.Stop()

	b.Publish(context.Background(), bus.Event{
		Type:          bus.TypeDocumentRequest,
		CorrelationID: "c1",
		Actor:         bus.ActorDocRequest,
		Payload:       bus.DocumentRequest{DocumentType: claim.DocLicense},
	})
	sink.await(t)

	if updates := customerUpdates(b); len(updates) != 1 {
		t.Fatalf("customer updates = %d, want exactly 1 despite sink failure", len(updates))
	}
}

func TestStop_Unsubscribes(t *testing.T) {
	t.Parallel()
	b := bus.New(nil, nil)
	tr := New(b, newChanSink(), nil)
	tr.Start()
	tr.Stop()

	b.Publish(context.Background(), bus.Event{
		Type:          bus.TypeTriageResult,
		CorrelationID: "c1",
		Actor:         bus.ActorTriage,
		Payload:       bus.TriageResult{Decision: claim.DecisionStandard},
	})

	if updates := customerUpdates(b); len(updates) != 0 {
		t.Fatalf("customer updates = %d, want 0 after Stop", len(updates))
	}
}

// customerUpdates filters the bus log down to translator-emitted events.
func customerUpdates(b *bus.Bus) []bus.Event {
	var out []bus.Event
	for _, ev := range b.EventsByType(bus.TypeClaimStatusUpdated) {
		if ev.Actor == bus.ActorCustomer {
			out = append(out, ev)
		}
	}
	return out
}
