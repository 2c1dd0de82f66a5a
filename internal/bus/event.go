package bus

import (
	"time"

	"github.com/linnemanlabs/fnol/internal/claim"
)

// EventType discriminates events on the bus.
type EventType string

// The fixed event catalogue. TypeWildcard subscribes to everything.
const (
	TypeClaimInitiated     EventType = "ClaimInitiated"
	TypeClaimStatusUpdated EventType = "ClaimStatusUpdated"
	TypeTriageResult       EventType = "TriageResult"
	TypeDocumentRequest    EventType = "DocumentRequest"
	TypeDocumentUploaded   EventType = "DocumentUploaded"
	TypeDocumentEvaluated  EventType = "DocumentEvaluated"
	TypeSettlementEstimate EventType = "SettlementEstimate"
	TypeImprovementHint    EventType = "AgentImprovementHint"

	TypeWildcard EventType = "*"
)

// Agent actor names carried on events for attribution.
const (
	ActorIntake      = "fnol-intake"
	ActorTriage      = "triage-decision"
	ActorFraudSignal = "fraud-signal"
	ActorDocRequest  = "document-request"
	ActorDocEval     = "document-evaluation"
	ActorCustomer    = "customer-update"
	ActorJourney     = "journey"
)

// Event is an immutable record published on the bus. CorrelationID is the
// claim ID (empty for improvement hints, which are agent-scoped). The bus
// assigns Timestamp when zero and never overwrites a set one.
type Event struct {
	Type          EventType `json:"event_type"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Actor         string    `json:"actor,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	Payload       Payload   `json:"payload,omitempty"`
}

// Payload is the sealed sum over the event catalogue. Subscribers type-switch
// on the concrete payload; an unknown payload for a known type is a bug.
type Payload interface {
	isPayload()
}

// ClaimInitiated carries the intake snapshot identifiers.
type ClaimInitiated struct {
	ClaimantID   string         `json:"claimant_id"`
	IncidentType string         `json:"incident_type"`
	Severity     claim.Severity `json:"severity"`
}

// TriageResult is the full outcome of one engine run.
type TriageResult struct {
	Decision    claim.Decision `json:"decision"`
	Rationale   string         `json:"rationale"`
	Estimate    string         `json:"estimate"` // coarse label, not the numeric range
	Status      claim.Status   `json:"status"`
	MissingInfo []string       `json:"missing_info,omitempty"`
	FraudSignal bool           `json:"fraud_signal"`
	NextSteps   []string       `json:"next_steps,omitempty"`
}

// StatusUpdated is the status-only summary published after a TriageResult,
// and by the status translator for customer-facing updates.
type StatusUpdated struct {
	Status claim.Status `json:"status"`
	Reason string       `json:"reason,omitempty"`
	Detail StatusDetail `json:"detail"`
}

// StatusDetail is the structured detail blob on a status update.
type StatusDetail struct {
	Decision      claim.Decision `json:"decision,omitempty"`
	MissingInfo   []string       `json:"missing_info,omitempty"`
	OriginalActor string         `json:"original_actor,omitempty"`
}

// DocumentRequest asks the claimant for one document type.
type DocumentRequest struct {
	DocumentType string `json:"document_type"`
}

// DocumentUploaded records receipt of a document, before evaluation.
type DocumentUploaded struct {
	DocumentType string `json:"document_type"`
}

// DocumentEvaluated carries the evaluator verdict summary.
type DocumentEvaluated struct {
	DocumentType  string `json:"document_type"`
	VerdictStatus string `json:"verdict_status"` // validated|mismatch|rejected|error
	MismatchCount int    `json:"mismatch_count,omitempty"`
}

// SettlementEstimate carries a computed settlement range.
type SettlementEstimate struct {
	Min        int     `json:"min"`
	Max        int     `json:"max"`
	Confidence float64 `json:"confidence"`
	Sentinel   string  `json:"sentinel,omitempty"`
}

// ImprovementHint is an ephemeral tuning signal emitted by the journey
// aggregator; consumed only by logging/observability.
type ImprovementHint struct {
	TargetAgent     string             `json:"target_agent"`
	Hint            string             `json:"hint"`
	Evidence        map[string]float64 `json:"evidence,omitempty"`
	SuggestedAction string             `json:"suggested_action,omitempty"`
	Severity        string             `json:"severity"` // low|medium|high
}

func (ClaimInitiated) isPayload()     {}
func (TriageResult) isPayload()       {}
func (StatusUpdated) isPayload()      {}
func (DocumentRequest) isPayload()    {}
func (DocumentUploaded) isPayload()   {}
func (DocumentEvaluated) isPayload()  {}
func (SettlementEstimate) isPayload() {}
func (ImprovementHint) isPayload()    {}
