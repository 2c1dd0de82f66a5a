package triage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/fnol/internal/bus"
	"github.com/linnemanlabs/fnol/internal/claim"
	"github.com/linnemanlabs/fnol/internal/history"
)

const historyScanLimit = 500

// Intake is the FNOL snapshot accepted from the intake surface.
type Intake struct {
	ClaimantID        string         `json:"claimant_id"`
	IncidentType      string         `json:"incident_type"`
	Severity          claim.Severity `json:"severity"`
	Injuries          bool           `json:"injuries"`
	Drivable          bool           `json:"drivable"`
	Description       string         `json:"description,omitempty"`
	Vehicle           claim.Vehicle  `json:"vehicle"`
	Documents         []string       `json:"documents,omitempty"`
	FraudRisk         claim.FraudRisk `json:"fraud_risk,omitempty"`
	RecommendedAction string         `json:"recommended_action,omitempty"`
}

// Service is the business boundary for claim triage. It owns claim
// lifecycle, serializes re-triage per claim ID, and orchestrates the
// engine, historical lookup and settlement estimation.
type Service struct {
	store   claim.Store
	lookup  *history.Lookup
	engine  *Engine
	bus     *bus.Bus
	logger  log.Logger
	metrics *Metrics

	// The engine trusts that it receives the latest claim snapshot, so
	// concurrent re-triage of the same claim ID must be serialized here.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewService creates a triage service. metrics may be nil.
func NewService(store claim.Store, lookup *history.Lookup, engine *Engine, b *bus.Bus, logger log.Logger, metrics *Metrics) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		store:   store,
		lookup:  lookup,
		engine:  engine,
		bus:     b,
		logger:  logger,
		metrics: metrics,
		locks:   make(map[string]*sync.Mutex),
	}
}

// Submit accepts an intake snapshot, persists the new claim, publishes
// ClaimInitiated and kicks off the initial triage asynchronously.
func (s *Service) Submit(ctx context.Context, in *Intake) (*claim.Claim, error) {
	now := time.Now()
	c := &claim.Claim{
		ID:                ulid.Make().String(),
		ClaimantID:        in.ClaimantID,
		IncidentType:      in.IncidentType,
		Severity:          in.Severity,
		Injuries:          in.Injuries,
		Drivable:          in.Drivable,
		Description:       in.Description,
		Vehicle:           in.Vehicle,
		Documents:         append([]string(nil), in.Documents...),
		FraudRisk:         in.FraudRisk,
		RecommendedAction: in.RecommendedAction,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	c.PushStatus(claim.StatusSubmitted, bus.ActorIntake, "Claim received", now)

	if err := s.store.Put(ctx, c); err != nil {
		if s.metrics != nil {
			s.metrics.SubmitsTotal.WithLabelValues("error").Inc()
		}
		return nil, fmt.Errorf("persist claim: %w", err)
	}

	s.bus.Publish(ctx, bus.Event{
		Type:          bus.TypeClaimInitiated,
		CorrelationID: c.ID,
		Actor:         bus.ActorIntake,
		Payload: bus.ClaimInitiated{
			ClaimantID:   c.ClaimantID,
			IncidentType: c.IncidentType,
			Severity:     c.Severity,
		},
	})
	if s.metrics != nil {
		s.metrics.SubmitsTotal.WithLabelValues("accepted").Inc()
	}

	// Initial triage runs off the request path; pass only the ID so the
	// goroutine re-reads the latest snapshot under the claim lock.
	go func(id string) {
		if err := s.Triage(context.WithoutCancel(ctx), id); err != nil {
			s.logger.Error(ctx, err, "initial triage failed", "claim_id", id)
		}
	}(c.ID)

	return c, nil
}

// Get retrieves a claim by ID.
func (s *Service) Get(ctx context.Context, id string) (*claim.Claim, bool, error) {
	return s.store.Get(ctx, id)
}

// Triage re-evaluates a claim against the current evidence and history,
// applies the result to the claim, and publishes the settlement estimate.
func (s *Service) Triage(ctx context.Context, id string) error {
	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()
	return s.triageLocked(ctx, id)
}

// ProcessDocument records an evaluated document on the claim and re-runs
// triage: mismatch findings re-enter as mismatch flags, and a detected
// severity overrides the declared one before re-evaluation.
func (s *Service) ProcessDocument(ctx context.Context, id, docType string, v *claim.Verdict) error {
	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	c, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("load claim: %w", err)
	}
	if !ok {
		return fmt.Errorf("claim %s not found", id)
	}
	if c.Status.Terminal() {
		return fmt.Errorf("claim %s is closed", id)
	}

	s.bus.Publish(ctx, bus.Event{
		Type:          bus.TypeDocumentUploaded,
		CorrelationID: id,
		Actor:         bus.ActorIntake,
		Payload:       bus.DocumentUploaded{DocumentType: docType},
	})

	c.Verdicts = append(c.Verdicts, *v)
	if v.Status == "validated" {
		c.AddDocument(v.ClassifiedType)
	}
	for _, m := range v.Mismatches {
		c.MismatchFlags = append(c.MismatchFlags, m.Type)
	}
	switch v.DetectedSeverity {
	case claim.SeverityMinor, claim.SeverityModerate, claim.SeverityHeavy:
		c.Severity = v.DetectedSeverity
	}
	c.UpdatedAt = time.Now()

	if err := s.store.Put(ctx, c); err != nil {
		return fmt.Errorf("persist claim: %w", err)
	}

	s.bus.Publish(ctx, bus.Event{
		Type:          bus.TypeDocumentEvaluated,
		CorrelationID: id,
		Actor:         bus.ActorDocEval,
		Payload: bus.DocumentEvaluated{
			DocumentType:  docType,
			VerdictStatus: v.Status,
			MismatchCount: len(v.Mismatches),
		},
	})

	return s.triageLocked(ctx, id)
}

// Close terminally closes a claim. Closed claims leave the Recent scan and
// are never re-triaged.
func (s *Service) Close(ctx context.Context, id, reason string) error {
	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	c, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("load claim: %w", err)
	}
	if !ok {
		return fmt.Errorf("claim %s not found", id)
	}
	if c.Status.Terminal() {
		return nil
	}

	now := time.Now()
	c.PushStatus(claim.StatusCompleted, bus.ActorIntake, reason, now)
	c.UpdatedAt = now
	if err := s.store.Put(ctx, c); err != nil {
		return fmt.Errorf("persist claim: %w", err)
	}

	s.bus.Publish(ctx, bus.Event{
		Type:          bus.TypeClaimStatusUpdated,
		CorrelationID: id,
		Actor:         bus.ActorIntake,
		Payload: bus.StatusUpdated{
			Status: claim.StatusCompleted,
			Reason: reason,
		},
	})
	return nil
}

// SimilarClaims exposes the historical lookup for the API surface.
func (s *Service) SimilarClaims(ctx context.Context, id string, topK int) (*history.SimilarResult, error) {
	c, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load claim: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("claim %s not found", id)
	}
	return s.lookup.FindSimilarClaims(ctx, history.Query{
		VehicleMake:  c.Vehicle.Make,
		VehicleModel: c.Vehicle.Model,
		VehicleYear:  c.Vehicle.Year,
		IncidentType: c.IncidentType,
		Severity:     c.Severity,
	}, topK), nil
}

func (s *Service) triageLocked(ctx context.Context, id string) error {
	start := time.Now()

	c, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("load claim: %w", err)
	}
	if !ok {
		return fmt.Errorf("claim %s not found", id)
	}
	if c.Status.Terminal() {
		return fmt.Errorf("claim %s is closed", id)
	}

	// Store failure degrades to an empty history rather than blocking
	// triage; the lookup itself applies the same policy to scans.
	var hist *history.HistoryResult
	recent, err := s.store.Recent(ctx, historyScanLimit)
	if err != nil {
		s.logger.Error(ctx, err, "history scan failed, triaging without claimant history", "claim_id", id)
		hist = &history.HistoryResult{}
	} else {
		hist = s.lookup.CheckUserHistory(c.ClaimantID, recent)
	}

	result := s.engine.Analyze(ctx, c, hist)

	actor := bus.ActorTriage
	if result.FraudSignal {
		actor = bus.ActorFraudSignal
	}

	now := time.Now()
	c.Decision = result.Decision
	c.MissingInfo = result.MissingInfo
	c.NextSteps = result.NextSteps
	c.MismatchFlags = nil // transient; consumed by this run
	c.PushStatus(result.Status, actor, result.Rationale, now)

	est := EstimateSettlement(c, result)
	c.Estimate = &est
	c.UpdatedAt = now

	if err := s.store.Put(ctx, c); err != nil {
		return fmt.Errorf("persist triage outcome: %w", err)
	}

	s.bus.Publish(ctx, bus.Event{
		Type:          bus.TypeSettlementEstimate,
		CorrelationID: id,
		Actor:         bus.ActorTriage,
		Payload: bus.SettlementEstimate{
			Min:        est.Min,
			Max:        est.Max,
			Confidence: est.Confidence,
			Sentinel:   est.Sentinel,
		},
	})

	if s.metrics != nil {
		s.metrics.TriagesTotal.WithLabelValues(string(result.Decision)).Inc()
		s.metrics.TriageDuration.Observe(time.Since(start).Seconds())
		if result.FraudSignal {
			s.metrics.FraudFlagsTotal.Inc()
		}
	}
	return nil
}

func (s *Service) lockFor(id string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	mu, ok := s.locks[id]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[id] = mu
	}
	return mu
}
