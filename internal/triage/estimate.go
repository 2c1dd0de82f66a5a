package triage

import (
	"math"

	"github.com/linnemanlabs/fnol/internal/claim"
)

// Base settlement ranges per declared severity, in whole currency units.
var severityRanges = map[claim.Severity][2]float64{
	claim.SeverityMinor:    {200, 1000},
	claim.SeverityModerate: {1000, 3000},
	claim.SeverityHeavy:    {3000, 10000},
}

const (
	injuryLowFactor  = 1.5
	injuryHighFactor = 2.0

	injuryConfidencePenalty  = 0.1
	missingConfidencePenalty = 0.2
	fraudConfidence          = 0.3

	minConfidence = 0.1
	maxConfidence = 1.0
)

// EstimateSettlement computes the numeric settlement range for a claim given
// the latest triage result. Pure; called by the orchestrating service, not by
// the engine. Bounds are rounded to whole currency units; confidence is
// clamped to [0.1, 1.0], and a fraud signal pins it to exactly 0.3.
func EstimateSettlement(c *claim.Claim, r Result) claim.Estimate {
	if r.FraudSignal {
		return claim.Estimate{
			Sentinel:   estimateUnderInvestigation,
			Confidence: fraudConfidence,
		}
	}

	bounds, ok := severityRanges[c.Severity]
	if !ok {
		bounds = severityRanges[claim.SeverityModerate]
	}
	low, high := bounds[0], bounds[1]
	confidence := maxConfidence

	if c.Injuries {
		low *= injuryLowFactor
		high *= injuryHighFactor
		confidence -= injuryConfidencePenalty
	}
	if len(r.MissingInfo) > 0 {
		confidence -= missingConfidencePenalty
	}

	confidence = math.Min(maxConfidence, math.Max(minConfidence, confidence))

	return claim.Estimate{
		Min:        int(math.Round(low)),
		Max:        int(math.Round(high)),
		Confidence: confidence,
	}
}
