package journey

import (
	"context"
	"time"
)

// Report is one flushed aggregation window. Means and rates are nil when the
// window saw no samples for their denominator.
type Report struct {
	ID          string    `json:"id"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`

	TotalClaims     int       `json:"total_claims"`
	AvgTimeToTriage *float64  `json:"avg_time_to_triage_seconds,omitempty"`
	PctFastTrack    float64   `json:"pct_fast_track"`
	PctFlagged      float64   `json:"pct_flagged"`
	FraudFlagRate   float64   `json:"fraud_flag_rate"`
	AvgDocsPerClaim *float64  `json:"avg_documents_per_claim,omitempty"`
	AvgEstimateMin  *float64  `json:"avg_settlement_estimate_min,omitempty"`
	AvgEstimateMax  *float64  `json:"avg_settlement_estimate_max,omitempty"`
	DocsEvaluated   int       `json:"documents_evaluated"`
	DocMismatchRate *float64  `json:"document_mismatch_rate,omitempty"`
	GeneratedBy     string    `json:"generated_by"`
	GeneratedAt     time.Time `json:"generated_at"`
}

// ReportSink persists flushed reports. Implementations must be safe for
// concurrent use.
type ReportSink interface {
	// Insert appends one report.
	Insert(ctx context.Context, r *Report) error

	// Recent returns up to limit reports, newest first.
	Recent(ctx context.Context, limit int) ([]*Report, error)
}

// MultiSink fans Insert out to every sink and serves Recent from the first.
// Insert returns the first error but still delivers to the remaining sinks.
func MultiSink(sinks ...ReportSink) ReportSink {
	return multiSink(sinks)
}

type multiSink []ReportSink

func (m multiSink) Insert(ctx context.Context, r *Report) error {
	var first error
	for _, s := range m {
		if err := s.Insert(ctx, r); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m multiSink) Recent(ctx context.Context, limit int) ([]*Report, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return m[0].Recent(ctx, limit)
}
