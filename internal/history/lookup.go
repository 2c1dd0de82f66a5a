// Package history scores past claims for similarity and flags suspicious
// claimant patterns. It is read-only over the claim store and always
// degrades to a zeroed result when the store is unavailable.
package history

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/fnol/internal/claim"
)

// Additive similarity weights. Deliberately not normalized: a strong match
// can score above 1.0, callers must not read the score as a probability.
const (
	weightMake     = 0.4
	weightModel    = 0.3
	weightYear     = 0.2 // model year within ±1
	weightIncident = 0.3 // incident type, pre-filtered
	weightSeverity = 0.2
	weightRecency  = 0.15 // created within the last 30 days

	recencyWindow = 30 * 24 * time.Hour
	scanLimit     = 500
)

// Suspicious-history thresholds.
const (
	minHistoryClaims   = 3
	minFlaggedClaims   = 2
	highFrequencyCount = 3
	frequencyWindow    = 6 * 30 * 24 * time.Hour // trailing 6 months
)

// Query describes the claim being matched against history.
type Query struct {
	VehicleMake  string
	VehicleModel string
	VehicleYear  int
	IncidentType string
	Severity     claim.Severity
}

// Match is one scored historical claim.
type Match struct {
	ClaimID  string          `json:"claim_id"`
	Score    float64         `json:"score"`
	Decision claim.Decision  `json:"decision,omitempty"`
	Estimate *claim.Estimate `json:"estimate,omitempty"`
}

// SimilarResult aggregates the top-K matches.
type SimilarResult struct {
	Count            int     `json:"count"`
	AvgSettlementMin int     `json:"avg_settlement_min"`
	AvgSettlementMax int     `json:"avg_settlement_max"`
	FraudRate        float64 `json:"fraud_rate"`
	TopMatches       []Match `json:"top_matches,omitempty"`
}

// HistoryResult is the outcome of a claimant-history check.
type HistoryResult struct {
	IsSuspicious   bool   `json:"is_suspicious"`
	Reason         string `json:"reason,omitempty"`
	PastClaimCount int    `json:"past_claim_count"`
}

// Lookup serves similarity queries over the claim store. Results are cached
// briefly since a re-triage burst re-runs the same scan-and-score.
type Lookup struct {
	store  claim.Store
	logger log.Logger
	cache  *gocache.Cache
	now    func() time.Time
}

// New creates a Lookup. cacheTTL <= 0 disables caching.
func New(store claim.Store, logger log.Logger, cacheTTL time.Duration) *Lookup {
	if logger == nil {
		logger = log.Nop()
	}
	l := &Lookup{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
	if cacheTTL > 0 {
		l.cache = gocache.New(cacheTTL, 2*cacheTTL)
	}
	return l
}

// FindSimilarClaims ranks past claims against the query and returns the top
// K with settlement and fraud aggregates. Store failure logs and returns a
// zeroed result, never an error.
func (l *Lookup) FindSimilarClaims(ctx context.Context, q Query, topK int) *SimilarResult {
	if topK <= 0 {
		topK = 10
	}

	key := cacheKey(q, topK)
	if l.cache != nil {
		if v, ok := l.cache.Get(key); ok {
			return v.(*SimilarResult)
		}
	}

	recent, err := l.store.Recent(ctx, scanLimit)
	if err != nil {
		l.logger.Error(ctx, err, "historical scan failed, returning empty result")
		return &SimilarResult{}
	}

	// Pre-filter on incident type; the type weight is then granted to
	// every surviving candidate.
	var candidates []*claim.Claim
	for _, c := range recent {
		if q.IncidentType != "" && !strings.EqualFold(c.IncidentType, q.IncidentType) {
			continue
		}
		candidates = append(candidates, c)
	}

	now := l.now()
	matches := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		matches = append(matches, Match{
			ClaimID:  c.ID,
			Score:    l.score(c, q, now),
			Decision: c.Decision,
			Estimate: c.Estimate,
		})
	}

	// Stable sort keeps fetch order (most recent first) for equal scores.
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}

	result := aggregate(matches)
	if l.cache != nil {
		l.cache.SetDefault(key, result)
	}
	return result
}

func (l *Lookup) score(c *claim.Claim, q Query, now time.Time) float64 {
	var s float64
	if q.VehicleMake != "" && strings.EqualFold(c.Vehicle.Make, q.VehicleMake) {
		s += weightMake
	}
	if q.VehicleModel != "" && strings.EqualFold(c.Vehicle.Model, q.VehicleModel) {
		s += weightModel
	}
	if q.VehicleYear != 0 && c.Vehicle.Year != 0 {
		if math.Abs(float64(c.Vehicle.Year-q.VehicleYear)) <= 1 {
			s += weightYear
		}
	}
	if q.IncidentType != "" {
		s += weightIncident
	}
	if q.Severity != "" && c.Severity == q.Severity {
		s += weightSeverity
	}
	if now.Sub(c.CreatedAt) < recencyWindow {
		s += weightRecency
	}
	return s
}

func aggregate(matches []Match) *SimilarResult {
	result := &SimilarResult{
		Count:      len(matches),
		TopMatches: matches,
	}
	if len(matches) == 0 {
		return result
	}

	var sumMin, sumMax, withEstimate, flagged int
	for _, m := range matches {
		if m.Estimate != nil && m.Estimate.Min > 0 {
			sumMin += m.Estimate.Min
			sumMax += m.Estimate.Max
			withEstimate++
		}
		if m.Decision == claim.DecisionFlagged {
			flagged++
		}
	}
	if withEstimate > 0 {
		result.AvgSettlementMin = int(math.Round(float64(sumMin) / float64(withEstimate)))
		result.AvgSettlementMax = int(math.Round(float64(sumMax) / float64(withEstimate)))
	}
	result.FraudRate = float64(flagged) / float64(len(matches))
	return result
}

// CheckUserHistory flags a claimant whose record shows repeat-flagged or
// high-frequency filing. The repeat-flagged rule is checked first and
// short-circuits.
func (l *Lookup) CheckUserHistory(userID string, claims []*claim.Claim) *HistoryResult {
	if userID == "" || len(claims) == 0 {
		return &HistoryResult{}
	}

	var userClaims []*claim.Claim
	for _, c := range claims {
		if c.ClaimantID == userID {
			userClaims = append(userClaims, c)
		}
	}
	res := &HistoryResult{PastClaimCount: len(userClaims)}

	if len(userClaims) >= minHistoryClaims {
		var flagged int
		for _, c := range userClaims {
			if c.Decision == claim.DecisionFlagged {
				flagged++
			}
		}
		if flagged >= minFlaggedClaims {
			res.IsSuspicious = true
			res.Reason = fmt.Sprintf("claimant has %d past claims, %d were flagged", len(userClaims), flagged)
			return res
		}
	}

	cutoff := l.now().Add(-frequencyWindow)
	var recent int
	for _, c := range userClaims {
		if c.CreatedAt.After(cutoff) {
			recent++
		}
	}
	if recent >= highFrequencyCount {
		res.IsSuspicious = true
		res.Reason = fmt.Sprintf("%d claims filed in the last 6 months", recent)
	}
	return res
}

func cacheKey(q Query, topK int) string {
	return fmt.Sprintf("%s|%s|%d|%s|%s|%d",
		strings.ToLower(q.VehicleMake), strings.ToLower(q.VehicleModel),
		q.VehicleYear, strings.ToLower(q.IncidentType), q.Severity, topK)
}
