package triage

import "github.com/linnemanlabs/fnol/internal/claim"

// Result is the outcome of one triage run over a claim snapshot.
type Result struct {
	Decision claim.Decision `json:"decision"`
	// Rationale is operational text for adjusters; it may cite fraud
	// reasoning and must never reach the customer surface unsanitized.
	Rationale string `json:"rationale"`
	// EstimateLabel is the coarse, human-readable estimate attached to the
	// decision ("Under Investigation" for fraud-flagged claims). The
	// numeric settlement range is computed separately by EstimateSettlement.
	EstimateLabel string       `json:"estimate_label"`
	Status        claim.Status `json:"status"`
	MissingInfo   []string     `json:"missing_info,omitempty"`
	FraudSignal   bool         `json:"fraud_signal"`
	FraudReason   string       `json:"fraud_reason,omitempty"`
	NextSteps     []string     `json:"next_steps,omitempty"`
}
