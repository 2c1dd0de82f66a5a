package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/fnol/internal/bus"
	"github.com/linnemanlabs/fnol/internal/journey"
)

var busHint = bus.ImprovementHint{
	TargetAgent:     "triage-decision",
	Hint:            "Average triage time exceeds 30s.",
	Evidence:        map[string]float64{"avg_triage_seconds": 45},
	SuggestedAction: "Use cached policy lookup",
	Severity:        "medium",
}

func TestInsert_PostsReportToWebhook(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content-type = %q, want application/json", r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	avg := 12.5
	n := New(srv.URL, log.Nop())
	report := &journey.Report{
		ID:              "01JN123",
		TotalClaims:     4,
		PctFastTrack:    0.25,
		PctFlagged:      0.5,
		FraudFlagRate:   0.25,
		DocsEvaluated:   3,
		AvgTimeToTriage: &avg,
		GeneratedAt:     time.Date(2026, 8, 30, 14, 23, 0, 0, time.UTC),
	}

	if err := n.Insert(context.Background(), report); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	blocks, ok := got["blocks"].([]any)
	if !ok {
		t.Fatal("expected blocks array in payload")
	}
	// header, fields section, context = 3 blocks
	if len(blocks) != 3 {
		t.Errorf("blocks count = %d, want 3", len(blocks))
	}

	header := blocks[0].(map[string]any)
	headerText := header["text"].(map[string]any)["text"].(string)
	if !strings.Contains(headerText, "Journey Report") {
		t.Errorf("header text = %q, want to contain Journey Report", headerText)
	}
}

func TestInsert_NoOpWithoutURL(t *testing.T) {
	t.Parallel()

	n := New("", log.Nop())
	if err := n.Insert(context.Background(), &journey.Report{TotalClaims: 1}); err != nil {
		t.Fatalf("Insert with empty URL should be no-op, got: %v", err)
	}
}

func TestInsert_WebhookErrorSurfaces(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid_blocks", http.StatusBadRequest)
	}))
	defer srv.Close()

	n := New(srv.URL, log.Nop())
	err := n.Insert(context.Background(), &journey.Report{TotalClaims: 1})
	if err == nil {
		t.Fatal("expected error for non-2xx webhook response")
	}
	if !strings.Contains(err.Error(), "400") {
		t.Errorf("error = %v, want to mention status 400", err)
	}
}

func TestHintMessage_IncludesEvidence(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var got map[string]any
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		raw, _ := json.Marshal(got)
		if !strings.Contains(string(raw), "avg_triage_seconds=45.00") {
			t.Errorf("payload missing evidence: %s", raw)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	// post directly; the bus path only adds a goroutine hop
	n := New(srv.URL, log.Nop())
	msg := hintMessage(&busHint, time.Now())
	if err := n.post(context.Background(), msg); err != nil {
		t.Fatalf("post: %v", err)
	}
}
