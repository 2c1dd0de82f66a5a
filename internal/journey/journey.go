// Package journey aggregates claim lifecycle events into periodic reports and
// emits improvement hints when agent performance drifts past fixed thresholds.
package journey

import (
	"context"
	"sync"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/fnol/internal/bus"
	"github.com/linnemanlabs/fnol/internal/claim"
)

const (
	// DefaultFlushInterval is how often accumulators are flushed into a report.
	DefaultFlushInterval = 5 * time.Minute

	// reportWindow is the nominal lookback stamped on each report.
	reportWindow = 24 * time.Hour

	generatedBy = "journey-agent-v1"

	slowTriageThreshold   = 30.0 // seconds, mean time to triage
	mismatchRateThreshold = 0.10
)

// accumulators is the mutable per-window state. All fields are guarded by
// Aggregator.mu; the flush reads and resets them under the same lock.
type accumulators struct {
	claimsSeen    map[string]struct{}
	initiatedAt   map[string]time.Time
	triageSeconds []float64
	fastTrack     int
	flagged       int
	fraudFlags    int
	docRequests   map[string]int
	docsEvaluated int
	docMismatches int
	estimateMins  []float64
	estimateMaxes []float64
}

func newAccumulators() *accumulators {
	return &accumulators{
		claimsSeen:  make(map[string]struct{}),
		initiatedAt: make(map[string]time.Time),
		docRequests: make(map[string]int),
	}
}

// Aggregator subscribes to lifecycle events and flushes aggregate reports on
// a timer. Event handlers and Flush share one mutex, so a flush never reads a
// half-updated window.
type Aggregator struct {
	bus     *bus.Bus
	sink    ReportSink
	logger  log.Logger
	metrics *Metrics

	interval time.Duration
	now      func() time.Time

	mu  sync.Mutex
	acc *accumulators

	unsubscribe []func()
}

// New creates an Aggregator. A nil sink disables persistence; reports are
// still logged and hints still published. interval <= 0 selects the default.
func New(b *bus.Bus, sink ReportSink, logger log.Logger, metrics *Metrics, interval time.Duration) *Aggregator {
	if logger == nil {
		logger = log.Nop()
	}
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	return &Aggregator{
		bus:      b,
		sink:     sink,
		logger:   logger,
		metrics:  metrics,
		interval: interval,
		now:      time.Now,
		acc:      newAccumulators(),
	}
}

// Start registers the aggregator's subscriptions.
func (a *Aggregator) Start() {
	a.unsubscribe = append(a.unsubscribe,
		a.bus.Subscribe(bus.TypeClaimInitiated, a.handleClaimInitiated),
		a.bus.Subscribe(bus.TypeTriageResult, a.handleTriageResult),
		a.bus.Subscribe(bus.TypeDocumentRequest, a.handleDocumentRequest),
		a.bus.Subscribe(bus.TypeDocumentEvaluated, a.handleDocumentEvaluated),
		a.bus.Subscribe(bus.TypeSettlementEstimate, a.handleSettlementEstimate),
	)
}

// Stop removes the aggregator's subscriptions.
func (a *Aggregator) Stop() {
	for _, u := range a.unsubscribe {
		u()
	}
	a.unsubscribe = nil
}

// Run flushes on the configured interval until ctx is cancelled, then
// performs one final flush so a clean shutdown does not drop a window.
func (a *Aggregator) Run(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.Flush(context.WithoutCancel(ctx))
			return
		case <-ticker.C:
			a.Flush(ctx)
		}
	}
}

func (a *Aggregator) handleClaimInitiated(ctx context.Context, ev bus.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.acc.claimsSeen[ev.CorrelationID] = struct{}{}
	if _, ok := a.acc.initiatedAt[ev.CorrelationID]; !ok {
		a.acc.initiatedAt[ev.CorrelationID] = ev.Timestamp
	}
	return nil
}

func (a *Aggregator) handleTriageResult(ctx context.Context, ev bus.Event) error {
	p, ok := ev.Payload.(bus.TriageResult)
	if !ok {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.acc.claimsSeen[ev.CorrelationID] = struct{}{}
	if initiated, ok := a.acc.initiatedAt[ev.CorrelationID]; ok {
		a.acc.triageSeconds = append(a.acc.triageSeconds, ev.Timestamp.Sub(initiated).Seconds())
	}

	switch p.Decision {
	case claim.DecisionFastTrack:
		a.acc.fastTrack++
	case claim.DecisionFlagged:
		a.acc.flagged++
	}
	if p.FraudSignal {
		a.acc.fraudFlags++
	}
	return nil
}

func (a *Aggregator) handleDocumentRequest(ctx context.Context, ev bus.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.acc.docRequests[ev.CorrelationID]++
	return nil
}

func (a *Aggregator) handleDocumentEvaluated(ctx context.Context, ev bus.Event) error {
	p, ok := ev.Payload.(bus.DocumentEvaluated)
	if !ok {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.acc.docsEvaluated++
	if p.VerdictStatus == "mismatch" || p.MismatchCount > 0 {
		a.acc.docMismatches++
	}
	return nil
}

func (a *Aggregator) handleSettlementEstimate(ctx context.Context, ev bus.Event) error {
	p, ok := ev.Payload.(bus.SettlementEstimate)
	if !ok {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if p.Min > 0 {
		a.acc.estimateMins = append(a.acc.estimateMins, float64(p.Min))
	}
	if p.Max > 0 {
		a.acc.estimateMaxes = append(a.acc.estimateMaxes, float64(p.Max))
	}
	return nil
}

// Flush emits one report for the current window and resets the accumulators.
// A window with zero claims is skipped silently and the accumulators are left
// untouched. The reset happens even when persistence or hint emission fails.
func (a *Aggregator) Flush(ctx context.Context) {
	a.mu.Lock()
	acc := a.acc
	if len(acc.claimsSeen) == 0 {
		a.mu.Unlock()
		return
	}
	a.acc = newAccumulators()
	a.mu.Unlock()

	end := a.now()
	total := len(acc.claimsSeen)

	docCounts := make([]float64, 0, len(acc.docRequests))
	for _, n := range acc.docRequests {
		docCounts = append(docCounts, float64(n))
	}

	report := &Report{
		ID:              ulid.Make().String(),
		WindowStart:     end.Add(-reportWindow),
		WindowEnd:       end,
		TotalClaims:     total,
		AvgTimeToTriage: mean(acc.triageSeconds),
		PctFastTrack:    float64(acc.fastTrack) / float64(total),
		PctFlagged:      float64(acc.flagged) / float64(total),
		FraudFlagRate:   float64(acc.fraudFlags) / float64(total),
		AvgDocsPerClaim: mean(docCounts),
		AvgEstimateMin:  mean(acc.estimateMins),
		AvgEstimateMax:  mean(acc.estimateMaxes),
		DocsEvaluated:   acc.docsEvaluated,
		GeneratedBy:     generatedBy,
		GeneratedAt:     end,
	}
	if acc.docsEvaluated > 0 {
		rate := float64(acc.docMismatches) / float64(acc.docsEvaluated)
		report.DocMismatchRate = &rate
	}

	a.logger.Info(ctx, "journey window flushed",
		"total_claims", total,
		"fast_track", acc.fastTrack,
		"flagged", acc.flagged,
		"fraud_flags", acc.fraudFlags,
		"documents_evaluated", acc.docsEvaluated,
	)
	if a.metrics != nil {
		a.metrics.FlushesTotal.Inc()
		a.metrics.ClaimsPerWindow.Observe(float64(total))
	}

	if a.sink != nil {
		if err := a.sink.Insert(ctx, report); err != nil {
			a.logger.Error(ctx, err, "failed to persist journey report", "report_id", report.ID)
		}
	}

	a.emitHints(ctx, report)
}

// emitHints publishes improvement hints for thresholds the window crossed.
func (a *Aggregator) emitHints(ctx context.Context, r *Report) {
	if r.AvgTimeToTriage != nil && *r.AvgTimeToTriage > slowTriageThreshold {
		a.publishHint(ctx, bus.ImprovementHint{
			TargetAgent:     bus.ActorTriage,
			Hint:            "Average triage time exceeds 30s. Consider caching policy lookups or simplifying rules.",
			Evidence:        map[string]float64{"avg_triage_seconds": *r.AvgTimeToTriage},
			SuggestedAction: "Use cached policy lookup; set timeout=200ms",
			Severity:        "medium",
		})
	}
	if r.DocMismatchRate != nil && *r.DocMismatchRate > mismatchRateThreshold {
		a.publishHint(ctx, bus.ImprovementHint{
			TargetAgent:     bus.ActorDocEval,
			Hint:            "Document mismatch rate exceeds 10%. Consider improving photo upload guidance.",
			Evidence:        map[string]float64{"mismatch_rate": *r.DocMismatchRate},
			SuggestedAction: "Add clearer photo upload instructions; adjust classification threshold",
			Severity:        "high",
		})
	}
}

func (a *Aggregator) publishHint(ctx context.Context, hint bus.ImprovementHint) {
	a.bus.Publish(ctx, bus.Event{
		Type:    bus.TypeImprovementHint,
		Actor:   bus.ActorJourney,
		Payload: hint,
	})
	if a.metrics != nil {
		a.metrics.HintsTotal.WithLabelValues(hint.TargetAgent).Inc()
	}
}

// mean returns nil for an empty sample set.
func mean(xs []float64) *float64 {
	if len(xs) == 0 {
		return nil
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	m := sum / float64(len(xs))
	return &m
}
