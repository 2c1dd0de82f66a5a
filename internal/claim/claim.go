package claim

import "time"

// Severity is the declared damage severity on a claim.
type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityModerate Severity = "moderate"
	SeverityHeavy    Severity = "heavy"
	SeverityUnclear  Severity = "unclear"
)

// Decision is the triage classification of a claim.
type Decision string

const (
	DecisionStandard  Decision = "Standard"
	DecisionFastTrack Decision = "FastTrack"
	DecisionFlagged   Decision = "Flagged"
)

// FraudRisk is the declared fraud-risk level on intake.
type FraudRisk string

const (
	FraudRiskLow    FraudRisk = "Low"
	FraudRiskMedium FraudRisk = "Medium"
	FraudRiskHigh   FraudRisk = "High"
)

// Status tracks where a claim is in its lifecycle.
type Status string

const (
	StatusSubmitted            Status = "Submitted"
	StatusUnderReview          Status = "UnderReview"
	StatusAwaitingDocuments    Status = "AwaitingDocuments"
	StatusDocumentReceived     Status = "DocumentReceived"
	StatusFastTrackRecommended Status = "FastTrackRecommended"
	StatusUnderSIUReview       Status = "UnderSIUReview"
	StatusActionRequired       Status = "ActionRequired"
	StatusReadyForPayout       Status = "ReadyForPayout"
	StatusCompleted            Status = "Completed"
)

// Terminal reports whether the status closes the claim. Closed claims are
// excluded from Recent scans and are never mutated again.
func (s Status) Terminal() bool {
	return s == StatusCompleted
}

// Document type tags requested and submitted as evidence.
const (
	DocAccidentPhoto = "accident_photo"
	DocPoliceReport  = "police_report"
	DocLicense       = "license"
)

// Mismatch is a single discrepancy found by the document evaluator between
// the claimed facts and what a submitted document shows.
type Mismatch struct {
	Type     string `json:"type"` // document type tag the mismatch re-opens
	Claimed  string `json:"claimed"`
	Detected string `json:"detected"`
	Severity string `json:"severity"` // low|medium|high
}

// Verdict is the structured outcome of one document evaluation.
type Verdict struct {
	Valid            bool       `json:"valid"`
	Status           string     `json:"status"` // validated|mismatch|rejected|error
	ClassifiedType   string     `json:"classified_type"`
	Mismatches       []Mismatch `json:"mismatches,omitempty"`
	DetectedSeverity Severity   `json:"detected_severity,omitempty"`
	Confidence       float64    `json:"confidence,omitempty"`
	EvaluatedAt      time.Time  `json:"evaluated_at"`
}

// Estimate is a settlement range with a confidence in [0.1, 1.0].
// Sentinel is set (and Min/Max zero) when no numeric range applies,
// e.g. a fraud-flagged claim under investigation.
type Estimate struct {
	Min        int     `json:"min"`
	Max        int     `json:"max"`
	Confidence float64 `json:"confidence"`
	Sentinel   string  `json:"sentinel,omitempty"`
}

// StatusChange is one entry in the append-only status history.
type StatusChange struct {
	Status    Status    `json:"status"`
	Actor     string    `json:"actor"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Vehicle identifies the insured vehicle for similarity matching.
type Vehicle struct {
	Make  string `json:"make,omitempty"`
	Model string `json:"model,omitempty"`
	Year  int    `json:"year,omitempty"`
}

// Claim is the central aggregate: one reported incident under triage.
//
// The engine-owned fields (Decision, MissingInfo, Status, StatusHistory,
// Estimate) are derived by each triage run and by status-translation events;
// they are never written directly by intake code. MismatchFlags are transient
// carry-over from document evaluation and are cleared on each re-triage.
type Claim struct {
	ID         string `json:"id"`
	ClaimantID string `json:"claimant_id"`

	IncidentType string   `json:"incident_type"`
	Severity     Severity `json:"severity"`
	Injuries     bool     `json:"injuries"`
	Drivable     bool     `json:"drivable"`
	Description  string   `json:"description,omitempty"`
	Vehicle      Vehicle  `json:"vehicle"`

	Documents     []string  `json:"documents,omitempty"` // submitted document type tags
	Verdicts      []Verdict `json:"verdicts,omitempty"`
	FraudRisk     FraudRisk `json:"fraud_risk,omitempty"`
	MismatchFlags []string  `json:"mismatch_flags,omitempty"`

	RecommendedAction string `json:"recommended_action,omitempty"` // externally supplied fallback

	Decision      Decision       `json:"decision,omitempty"`
	MissingInfo   []string       `json:"missing_info,omitempty"`
	NextSteps     []string       `json:"next_steps,omitempty"`
	Status        Status         `json:"status"`
	StatusHistory []StatusChange `json:"status_history,omitempty"`
	Estimate      *Estimate      `json:"estimate,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasDocument reports whether a document type tag has been submitted.
func (c *Claim) HasDocument(docType string) bool {
	for _, d := range c.Documents {
		if d == docType {
			return true
		}
	}
	return false
}

// AddDocument records a document type tag once.
func (c *Claim) AddDocument(docType string) {
	if !c.HasDocument(docType) {
		c.Documents = append(c.Documents, docType)
	}
}

// PushStatus appends to the status history and sets the current status.
func (c *Claim) PushStatus(status Status, actor, reason string, at time.Time) {
	c.Status = status
	c.StatusHistory = append(c.StatusHistory, StatusChange{
		Status:    status,
		Actor:     actor,
		Reason:    reason,
		Timestamp: at,
	})
}
