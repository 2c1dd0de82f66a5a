package triage

import (
	"context"
	"fmt"
	"strings"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/fnol/internal/bus"
	"github.com/linnemanlabs/fnol/internal/claim"
	"github.com/linnemanlabs/fnol/internal/history"
)

// Coarse estimate labels attached to the triage decision.
const (
	estimateUnderInvestigation = "Under Investigation"
	estimatePendingMedical     = "Pending Medical Review"
	estimateHeavy              = "$3,000 - $10,000"
	estimateFastTrack          = "$300 - $800"
	estimateStandard           = "$500 - $1,500"
)

// Engine classifies a claim snapshot. Analyze is a pure function of its
// inputs apart from the two event publishes it performs on completion.
type Engine struct {
	bus    *bus.Bus
	logger log.Logger
}

// NewEngine creates a triage engine publishing on the given bus.
func NewEngine(b *bus.Bus, logger log.Logger) *Engine {
	if logger == nil {
		logger = log.Nop()
	}
	return &Engine{bus: b, logger: logger}
}

// Analyze runs the rule cascade over a claim snapshot and publishes
// TriageResult followed by ClaimStatusUpdated (in that order, so consumers
// see the detailed result before the status summary). Rules are evaluated
// in fixed priority order; the first decision rule that matches wins.
func (e *Engine) Analyze(ctx context.Context, c *claim.Claim, hist *history.HistoryResult) Result {
	r := Result{
		Decision:      claim.DecisionStandard,
		Rationale:     "Claim requires standard adjuster review.",
		EstimateLabel: estimateStandard,
		NextSteps:     append([]string(nil), c.NextSteps...),
	}

	// 1. Missing evidence. Collisions need a damage photo, thefts a police
	// report. Mismatch flags from document evaluation re-open requirements
	// even for documents already on file.
	incident := strings.ToLower(c.IncidentType)
	if strings.Contains(incident, "collision") && !c.HasDocument(claim.DocAccidentPhoto) {
		r.MissingInfo = append(r.MissingInfo, claim.DocAccidentPhoto)
	}
	if strings.Contains(incident, "theft") && !c.HasDocument(claim.DocPoliceReport) {
		r.MissingInfo = append(r.MissingInfo, claim.DocPoliceReport)
	}
	for _, docType := range c.MismatchFlags {
		if !contains(r.MissingInfo, docType) {
			r.MissingInfo = append(r.MissingInfo, docType)
		}
	}

	// 2. Fraud signal: declared risk level or suspicious claimant history.
	if c.FraudRisk == claim.FraudRiskHigh || c.FraudRisk == claim.FraudRiskMedium {
		r.FraudSignal = true
		r.FraudReason = fmt.Sprintf("declared fraud risk %s", c.FraudRisk)
	}
	if hist != nil && hist.IsSuspicious {
		r.FraudSignal = true
		r.FraudReason = hist.Reason
	}

	// 3. Decision, by descending priority. Heavy severity without a fraud
	// signal stays Standard with heightened review rather than Flagged:
	// damage cost alone is not an integrity signal, and SIU capacity is
	// reserved for fraud.
	switch {
	case r.FraudSignal:
		r.Decision = claim.DecisionFlagged
		r.Rationale = fmt.Sprintf("Risk detected: %s.", orDefault(r.FraudReason, "inconsistencies found"))
		r.EstimateLabel = estimateUnderInvestigation
	case c.Severity == claim.SeverityHeavy:
		r.Decision = claim.DecisionStandard
		r.Rationale = "Heavy damage reported, potential total loss. Senior adjuster review required."
		r.EstimateLabel = estimateHeavy
	case c.Injuries:
		r.Decision = claim.DecisionStandard
		r.Rationale = "Injuries reported. Medical review required."
		r.EstimateLabel = estimatePendingMedical
	case c.Drivable && c.Severity == claim.SeverityMinor && len(r.MissingInfo) == 0:
		r.Decision = claim.DecisionFastTrack
		r.Rationale = "Drivable vehicle with minor damage. Qualifies for automated processing."
		r.EstimateLabel = estimateFastTrack
	case strings.Contains(strings.ToLower(c.RecommendedAction), "fast"):
		r.Decision = claim.DecisionFastTrack
		r.Rationale = "Recommended for fast track based on low complexity."
		r.EstimateLabel = estimateFastTrack
	}

	// 4. Status derivation, plus one idempotent DocumentRequest per newly
	// required document type.
	actor := bus.ActorTriage
	switch {
	case r.FraudSignal:
		r.Status = claim.StatusUnderSIUReview
		actor = bus.ActorFraudSignal
	case len(r.MissingInfo) > 0:
		r.Status = claim.StatusAwaitingDocuments
		for _, docType := range r.MissingInfo {
			step := requestStep(docType)
			if contains(r.NextSteps, step) {
				continue
			}
			r.NextSteps = append([]string{step}, r.NextSteps...)
			e.bus.Publish(ctx, bus.Event{
				Type:          bus.TypeDocumentRequest,
				CorrelationID: c.ID,
				Actor:         bus.ActorDocRequest,
				Payload:       bus.DocumentRequest{DocumentType: docType},
			})
		}
	case r.Decision == claim.DecisionFastTrack:
		r.Status = claim.StatusFastTrackRecommended
	default:
		r.Status = claim.StatusUnderReview
	}

	// 5. TriageResult first, then the status-only summary.
	e.bus.Publish(ctx, bus.Event{
		Type:          bus.TypeTriageResult,
		CorrelationID: c.ID,
		Actor:         bus.ActorTriage,
		Payload: bus.TriageResult{
			Decision:    r.Decision,
			Rationale:   r.Rationale,
			Estimate:    r.EstimateLabel,
			Status:      r.Status,
			MissingInfo: r.MissingInfo,
			FraudSignal: r.FraudSignal,
			NextSteps:   r.NextSteps,
		},
	})
	e.bus.Publish(ctx, bus.Event{
		Type:          bus.TypeClaimStatusUpdated,
		CorrelationID: c.ID,
		Actor:         actor,
		Payload: bus.StatusUpdated{
			Status: r.Status,
			Reason: r.Rationale,
			Detail: bus.StatusDetail{
				Decision:    r.Decision,
				MissingInfo: r.MissingInfo,
			},
		},
	})

	e.logger.Info(ctx, "triage decision",
		"claim_id", c.ID,
		"decision", string(r.Decision),
		"status", string(r.Status),
		"fraud_signal", r.FraudSignal,
		"missing_info", len(r.MissingInfo),
	)
	return r
}

func requestStep(docType string) string {
	return "Request " + strings.ReplaceAll(docType, "_", " ")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
