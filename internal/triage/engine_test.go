package triage

import (
	"context"
	"strings"
	"testing"

	"github.com/linnemanlabs/fnol/internal/bus"
	"github.com/linnemanlabs/fnol/internal/claim"
	"github.com/linnemanlabs/fnol/internal/history"
)

func newTestEngine(t *testing.T) (*Engine, *bus.Bus) {
	t.Helper()
	b := bus.New(nil, nil)
	return NewEngine(b, nil), b
}

func TestAnalyze_FraudSignalWinsOverSeverity(t *testing.T) {
	t.Parallel()
	e, b := newTestEngine(t)

	c := &claim.Claim{
		ID:           "c1",
		IncidentType: "collision",
		Severity:     claim.SeverityHeavy,
		Injuries:     true,
		FraudRisk:    claim.FraudRiskHigh,
		Documents:    []string{claim.DocAccidentPhoto},
	}
	r := e.Analyze(context.Background(), c, &history.HistoryResult{})

	if r.Decision != claim.DecisionFlagged {
		t.Fatalf("Decision = %s, want Flagged", r.Decision)
	}
	if r.Status != claim.StatusUnderSIUReview {
		t.Fatalf("Status = %s, want UnderSIUReview", r.Status)
	}
	if r.EstimateLabel != "Under Investigation" {
		t.Fatalf("EstimateLabel = %q", r.EstimateLabel)
	}
	if !strings.Contains(r.Rationale, "declared fraud risk High") {
		t.Fatalf("Rationale = %q, want declared risk mentioned", r.Rationale)
	}

	updates := b.EventsByType(bus.TypeClaimStatusUpdated)
	if len(updates) != 1 {
		t.Fatalf("status updates = %d, want 1", len(updates))
	}
	if updates[0].Actor != bus.ActorFraudSignal {
		t.Fatalf("status actor = %q, want %q", updates[0].Actor, bus.ActorFraudSignal)
	}
}

func TestAnalyze_SuspiciousHistoryFlagsWithReason(t *testing.T) {
	t.Parallel()
	e, _ := newTestEngine(t)

	hist := &history.HistoryResult{
		IsSuspicious: true,
		Reason:       "claimant has 4 past claims, 2 were flagged",
	}
	c := &claim.Claim{ID: "c1", IncidentType: "collision", Severity: claim.SeverityMinor, Drivable: true, Documents: []string{claim.DocAccidentPhoto}}
	r := e.Analyze(context.Background(), c, hist)

	if !r.FraudSignal || r.Decision != claim.DecisionFlagged {
		t.Fatalf("got decision=%s fraud=%v, want flagged", r.Decision, r.FraudSignal)
	}
	if !strings.Contains(r.Rationale, hist.Reason) {
		t.Fatalf("Rationale = %q, want history reason", r.Rationale)
	}
}

func TestAnalyze_CollisionRequiresAccidentPhoto(t *testing.T) {
	t.Parallel()
	e, b := newTestEngine(t)

	c := &claim.Claim{ID: "c1", IncidentType: "collision", Severity: claim.SeverityMinor, Drivable: true}
	r := e.Analyze(context.Background(), c, nil)

	if len(r.MissingInfo) != 1 || r.MissingInfo[0] != claim.DocAccidentPhoto {
		t.Fatalf("MissingInfo = %v, want [accident_photo]", r.MissingInfo)
	}
	if r.Status != claim.StatusAwaitingDocuments {
		t.Fatalf("Status = %s, want AwaitingDocuments", r.Status)
	}
	// Missing evidence suppresses the otherwise-qualifying fast track.
	if r.Decision != claim.DecisionStandard {
		t.Fatalf("Decision = %s, want Standard", r.Decision)
	}
	if len(r.NextSteps) == 0 || r.NextSteps[0] != "Request accident photo" {
		t.Fatalf("NextSteps = %v, want request step first", r.NextSteps)
	}

	reqs := b.EventsByType(bus.TypeDocumentRequest)
	if len(reqs) != 1 {
		t.Fatalf("document requests = %d, want 1", len(reqs))
	}
	p := reqs[0].Payload.(bus.DocumentRequest)
	if p.DocumentType != claim.DocAccidentPhoto {
		t.Fatalf("requested %q, want accident_photo", p.DocumentType)
	}
}

func TestAnalyze_TheftRequiresPoliceReport(t *testing.T) {
	t.Parallel()
	e, _ := newTestEngine(t)

	c := &claim.Claim{ID: "c1", IncidentType: "theft", Severity: claim.SeverityModerate}
	r := e.Analyze(context.Background(), c, nil)

	if len(r.MissingInfo) != 1 || r.MissingInfo[0] != claim.DocPoliceReport {
		t.Fatalf("MissingInfo = %v, want [police_report]", r.MissingInfo)
	}
}

func TestAnalyze_RequestIsIdempotent(t *testing.T) {
	t.Parallel()
	e, b := newTestEngine(t)

	c := &claim.Claim{
		ID:           "c1",
		IncidentType: "collision",
		Severity:     claim.SeverityMinor,
		NextSteps:    []string{"Request accident photo"},
	}
	r := e.Analyze(context.Background(), c, nil)

	if len(r.MissingInfo) != 1 {
		t.Fatalf("MissingInfo = %v, want still missing", r.MissingInfo)
	}
	if got := b.EventsByType(bus.TypeDocumentRequest); len(got) != 0 {
		t.Fatalf("document requests = %d, want 0 for already-requested doc", len(got))
	}
	if n := countString(r.NextSteps, "Request accident photo"); n != 1 {
		t.Fatalf("request step appears %d times, want 1", n)
	}
}

func TestAnalyze_MismatchFlagsReopenRequirements(t *testing.T) {
	t.Parallel()
	e, b := newTestEngine(t)

	c := &claim.Claim{
		ID:            "c1",
		IncidentType:  "collision",
		Severity:      claim.SeverityMinor,
		Drivable:      true,
		Documents:     []string{claim.DocAccidentPhoto},
		MismatchFlags: []string{claim.DocAccidentPhoto, claim.DocAccidentPhoto},
	}
	r := e.Analyze(context.Background(), c, nil)

	if len(r.MissingInfo) != 1 || r.MissingInfo[0] != claim.DocAccidentPhoto {
		t.Fatalf("MissingInfo = %v, want deduplicated [accident_photo]", r.MissingInfo)
	}
	if r.Status != claim.StatusAwaitingDocuments {
		t.Fatalf("Status = %s, want AwaitingDocuments", r.Status)
	}
	if got := b.EventsByType(bus.TypeDocumentRequest); len(got) != 1 {
		t.Fatalf("document requests = %d, want 1", len(got))
	}
}

func TestAnalyze_HeavySeverityStaysStandard(t *testing.T) {
	t.Parallel()
	e, _ := newTestEngine(t)

	c := &claim.Claim{ID: "c1", IncidentType: "collision", Severity: claim.SeverityHeavy, Documents: []string{claim.DocAccidentPhoto}}
	r := e.Analyze(context.Background(), c, nil)

	if r.Decision != claim.DecisionStandard {
		t.Fatalf("Decision = %s, want Standard", r.Decision)
	}
	if !strings.Contains(r.Rationale, "Senior adjuster review") {
		t.Fatalf("Rationale = %q", r.Rationale)
	}
	if r.EstimateLabel != "$3,000 - $10,000" {
		t.Fatalf("EstimateLabel = %q", r.EstimateLabel)
	}
	if r.Status != claim.StatusUnderReview {
		t.Fatalf("Status = %s, want UnderReview", r.Status)
	}
}

func TestAnalyze_InjuriesRequireMedicalReview(t *testing.T) {
	t.Parallel()
	e, _ := newTestEngine(t)

	c := &claim.Claim{ID: "c1", IncidentType: "collision", Severity: claim.SeverityMinor, Drivable: true, Injuries: true, Documents: []string{claim.DocAccidentPhoto}}
	r := e.Analyze(context.Background(), c, nil)

	if r.Decision != claim.DecisionStandard {
		t.Fatalf("Decision = %s, want Standard", r.Decision)
	}
	if r.EstimateLabel != "Pending Medical Review" {
		t.Fatalf("EstimateLabel = %q", r.EstimateLabel)
	}
}

func TestAnalyze_FastTrack(t *testing.T) {
	t.Parallel()
	e, _ := newTestEngine(t)

	c := &claim.Claim{
		ID:           "c1",
		IncidentType: "collision",
		Severity:     claim.SeverityMinor,
		Drivable:     true,
		Documents:    []string{claim.DocAccidentPhoto},
	}
	r := e.Analyze(context.Background(), c, &history.HistoryResult{})

	if r.Decision != claim.DecisionFastTrack {
		t.Fatalf("Decision = %s, want FastTrack", r.Decision)
	}
	if r.Status != claim.StatusFastTrackRecommended {
		t.Fatalf("Status = %s, want FastTrackRecommended", r.Status)
	}
	if r.EstimateLabel != "$300 - $800" {
		t.Fatalf("EstimateLabel = %q", r.EstimateLabel)
	}
}

func TestAnalyze_FastTrackViaRecommendedAction(t *testing.T) {
	t.Parallel()
	e, _ := newTestEngine(t)

	c := &claim.Claim{
		ID:                "c1",
		IncidentType:      "windshield",
		Severity:          claim.SeverityModerate,
		RecommendedAction: "Fast track approval",
	}
	r := e.Analyze(context.Background(), c, nil)

	if r.Decision != claim.DecisionFastTrack {
		t.Fatalf("Decision = %s, want FastTrack", r.Decision)
	}
}

func TestAnalyze_PublishesResultBeforeStatus(t *testing.T) {
	t.Parallel()
	e, b := newTestEngine(t)

	var order []bus.EventType
	b.Subscribe(bus.TypeWildcard, func(_ context.Context, ev bus.Event) error {
		order = append(order, ev.Type)
		return nil
	})

	c := &claim.Claim{ID: "c1", IncidentType: "collision", Severity: claim.SeverityMinor, Drivable: true, Documents: []string{claim.DocAccidentPhoto}}
	e.Analyze(context.Background(), c, nil)

	if len(order) != 2 || order[0] != bus.TypeTriageResult || order[1] != bus.TypeClaimStatusUpdated {
		t.Fatalf("publish order = %v", order)
	}
}

func countString(list []string, s string) int {
	var n int
	for _, v := range list {
		if v == s {
			n++
		}
	}
	return n
}
