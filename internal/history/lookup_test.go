package history

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/linnemanlabs/fnol/internal/claim"
	"github.com/linnemanlabs/fnol/internal/claim/memstore"
)

type failingStore struct{}

func (failingStore) Get(context.Context, string) (*claim.Claim, bool, error) {
	return nil, false, errors.New("store down")
}
func (failingStore) Put(context.Context, *claim.Claim) error { return errors.New("store down") }
func (failingStore) Recent(context.Context, int) ([]*claim.Claim, error) {
	return nil, errors.New("store down")
}

func TestFindSimilarClaims_ExactMatchScore(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	past := &claim.Claim{
		ID:           "past-1",
		ClaimantID:   "u1",
		IncidentType: "collision",
		Severity:     claim.SeverityModerate,
		Vehicle:      claim.Vehicle{Make: "Toyota", Model: "Camry", Year: 2020},
		Status:       claim.StatusUnderReview,
		CreatedAt:    time.Now().Add(-48 * time.Hour),
	}
	if err := store.Put(context.Background(), past); err != nil {
		t.Fatalf("Put: %v", err)
	}

	l := New(store, nil, 0)
	result := l.FindSimilarClaims(context.Background(), Query{
		VehicleMake:  "Toyota",
		VehicleModel: "Camry",
		VehicleYear:  2020,
		IncidentType: "collision",
	}, 10)

	if result.Count != 1 {
		t.Fatalf("count = %d, want 1", result.Count)
	}
	// make 0.4 + model 0.3 + year 0.2 + incident 0.3 + recency 0.15
	if got := result.TopMatches[0].Score; math.Abs(got-1.35) > 1e-9 {
		t.Errorf("score = %v, want 1.35", got)
	}
}

func TestFindSimilarClaims_IncidentTypePreFilter(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	claims := []*claim.Claim{
		{ID: "a", IncidentType: "collision", Status: claim.StatusUnderReview, CreatedAt: time.Now()},
		{ID: "b", IncidentType: "theft", Status: claim.StatusUnderReview, CreatedAt: time.Now()},
	}
	for _, c := range claims {
		if err := store.Put(context.Background(), c); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	l := New(store, nil, 0)
	result := l.FindSimilarClaims(context.Background(), Query{IncidentType: "collision"}, 10)

	if result.Count != 1 {
		t.Fatalf("count = %d, want 1", result.Count)
	}
	if result.TopMatches[0].ClaimID != "a" {
		t.Errorf("match = %q, want %q", result.TopMatches[0].ClaimID, "a")
	}
}

func TestFindSimilarClaims_Aggregates(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	claims := []*claim.Claim{
		{
			ID: "a", IncidentType: "collision", Status: claim.StatusUnderReview,
			Decision: claim.DecisionFlagged, CreatedAt: time.Now(),
			Estimate: &claim.Estimate{Min: 1000, Max: 3000},
		},
		{
			ID: "b", IncidentType: "collision", Status: claim.StatusUnderReview,
			Decision: claim.DecisionStandard, CreatedAt: time.Now(),
			Estimate: &claim.Estimate{Min: 2000, Max: 5000},
		},
		{
			// sentinel estimate, excluded from settlement means
			ID: "c", IncidentType: "collision", Status: claim.StatusUnderReview,
			Decision: claim.DecisionStandard, CreatedAt: time.Now(),
			Estimate: &claim.Estimate{Sentinel: "Under Investigation"},
		},
	}
	for _, c := range claims {
		if err := store.Put(context.Background(), c); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	l := New(store, nil, 0)
	result := l.FindSimilarClaims(context.Background(), Query{IncidentType: "collision"}, 10)

	if result.Count != 3 {
		t.Fatalf("count = %d, want 3", result.Count)
	}
	if result.AvgSettlementMin != 1500 {
		t.Errorf("avg min = %d, want 1500", result.AvgSettlementMin)
	}
	if result.AvgSettlementMax != 4000 {
		t.Errorf("avg max = %d, want 4000", result.AvgSettlementMax)
	}
	if math.Abs(result.FraudRate-1.0/3.0) > 1e-9 {
		t.Errorf("fraud rate = %v, want 1/3", result.FraudRate)
	}
}

func TestFindSimilarClaims_TopKTruncation(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	for _, id := range []string{"a", "b", "c"} {
		c := &claim.Claim{ID: id, IncidentType: "collision", Status: claim.StatusUnderReview, CreatedAt: time.Now()}
		if err := store.Put(context.Background(), c); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	l := New(store, nil, 0)
	result := l.FindSimilarClaims(context.Background(), Query{IncidentType: "collision"}, 2)

	if len(result.TopMatches) != 2 {
		t.Errorf("matches = %d, want 2", len(result.TopMatches))
	}
}

func TestFindSimilarClaims_StoreFailureReturnsZeroed(t *testing.T) {
	t.Parallel()

	l := New(failingStore{}, nil, 0)
	result := l.FindSimilarClaims(context.Background(), Query{IncidentType: "collision"}, 10)

	if result == nil {
		t.Fatal("expected non-nil result")
	}
	if result.Count != 0 || len(result.TopMatches) != 0 {
		t.Errorf("result = %+v, want zeroed", result)
	}
}

func TestFindSimilarClaims_CacheHit(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	c := &claim.Claim{ID: "a", IncidentType: "collision", Status: claim.StatusUnderReview, CreatedAt: time.Now()}
	if err := store.Put(context.Background(), c); err != nil {
		t.Fatalf("Put: %v", err)
	}

	l := New(store, nil, time.Minute)
	q := Query{IncidentType: "collision"}

	first := l.FindSimilarClaims(context.Background(), q, 10)
	if first.Count != 1 {
		t.Fatalf("count = %d, want 1", first.Count)
	}

	// A new claim does not appear until the cached entry expires.
	c2 := &claim.Claim{ID: "b", IncidentType: "collision", Status: claim.StatusUnderReview, CreatedAt: time.Now()}
	if err := store.Put(context.Background(), c2); err != nil {
		t.Fatalf("Put: %v", err)
	}
	second := l.FindSimilarClaims(context.Background(), q, 10)
	if second.Count != 1 {
		t.Errorf("count = %d, want cached 1", second.Count)
	}
}

func TestCheckUserHistory_RepeatFlagged(t *testing.T) {
	t.Parallel()

	l := New(memstore.New(), nil, 0)
	now := time.Now()
	claims := []*claim.Claim{
		{ClaimantID: "u1", Decision: claim.DecisionFlagged, CreatedAt: now.Add(-400 * 24 * time.Hour)},
		{ClaimantID: "u1", Decision: claim.DecisionFlagged, CreatedAt: now.Add(-380 * 24 * time.Hour)},
		{ClaimantID: "u1", Decision: claim.DecisionStandard, CreatedAt: now.Add(-360 * 24 * time.Hour)},
		{ClaimantID: "other", Decision: claim.DecisionFlagged, CreatedAt: now},
	}

	res := l.CheckUserHistory("u1", claims)

	if !res.IsSuspicious {
		t.Fatal("expected suspicious for 3 claims with 2 flagged")
	}
	if res.PastClaimCount != 3 {
		t.Errorf("past claims = %d, want 3", res.PastClaimCount)
	}
}

func TestCheckUserHistory_HighFrequency(t *testing.T) {
	t.Parallel()

	l := New(memstore.New(), nil, 0)
	now := time.Now()
	claims := []*claim.Claim{
		{ClaimantID: "u1", Decision: claim.DecisionStandard, CreatedAt: now.Add(-10 * 24 * time.Hour)},
		{ClaimantID: "u1", Decision: claim.DecisionStandard, CreatedAt: now.Add(-40 * 24 * time.Hour)},
		{ClaimantID: "u1", Decision: claim.DecisionStandard, CreatedAt: now.Add(-80 * 24 * time.Hour)},
	}

	res := l.CheckUserHistory("u1", claims)

	if !res.IsSuspicious {
		t.Fatal("expected suspicious for 3 claims in 6 months")
	}
}

func TestCheckUserHistory_CleanRecord(t *testing.T) {
	t.Parallel()

	l := New(memstore.New(), nil, 0)
	now := time.Now()
	claims := []*claim.Claim{
		{ClaimantID: "u1", Decision: claim.DecisionStandard, CreatedAt: now.Add(-300 * 24 * time.Hour)},
		{ClaimantID: "u1", Decision: claim.DecisionFlagged, CreatedAt: now.Add(-600 * 24 * time.Hour)},
	}

	res := l.CheckUserHistory("u1", claims)

	if res.IsSuspicious {
		t.Errorf("unexpected suspicious: %+v", res)
	}
	if res.PastClaimCount != 2 {
		t.Errorf("past claims = %d, want 2", res.PastClaimCount)
	}
}

func TestCheckUserHistory_EmptyInputs(t *testing.T) {
	t.Parallel()

	l := New(memstore.New(), nil, 0)

	if res := l.CheckUserHistory("", []*claim.Claim{{ClaimantID: "u1"}}); res.IsSuspicious {
		t.Error("empty user ID should not be suspicious")
	}
	if res := l.CheckUserHistory("u1", nil); res.IsSuspicious {
		t.Error("no claims should not be suspicious")
	}
}
