// Package doceval validates, classifies, and evaluates uploaded claim
// documents. The vision-backed implementation compares what a document shows
// against what the claimant declared and reports structured mismatches.
package doceval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/linnemanlabs/fnol/internal/claim"
)

// MaxDocumentSize is the largest accepted upload.
const MaxDocumentSize = 10 << 20 // 10 MiB

// Document is one uploaded file.
type Document struct {
	Data      []byte
	MediaType string
}

// Evaluator produces a verdict for an uploaded document. Implementations
// return an error only for infrastructure failures; a readable document that
// contradicts the claim is a successful evaluation with a mismatch verdict.
type Evaluator interface {
	Evaluate(ctx context.Context, doc Document, docType string, c *claim.Claim) (*claim.Verdict, error)
}

// acceptedMediaTypes lists the upload formats per document type tag.
var acceptedMediaTypes = map[string][]string{
	claim.DocAccidentPhoto: {"image/jpeg", "image/png", "image/webp"},
	claim.DocLicense:       {"image/jpeg", "image/png"},
	claim.DocPoliceReport:  {"application/pdf", "image/jpeg", "image/png"},
}

// ValidateDocument checks size and media type before any model call.
func ValidateDocument(doc Document, docType string) error {
	if len(doc.Data) == 0 {
		return fmt.Errorf("empty document")
	}
	if len(doc.Data) > MaxDocumentSize {
		return fmt.Errorf("document too large (max %d bytes)", MaxDocumentSize)
	}
	accepted, ok := acceptedMediaTypes[docType]
	if !ok {
		return fmt.Errorf("unknown document type %q", docType)
	}
	for _, mt := range accepted {
		if strings.EqualFold(doc.MediaType, mt) {
			return nil
		}
	}
	return fmt.Errorf("media type %q not accepted for %s", doc.MediaType, docType)
}

// Rejected builds the verdict for a document that failed validation.
func Rejected(docType string, reason error) *claim.Verdict {
	return &claim.Verdict{
		Valid:          false,
		Status:         "rejected",
		ClassifiedType: docType,
		Mismatches: []claim.Mismatch{{
			Type:     docType,
			Claimed:  docType,
			Detected: reason.Error(),
			Severity: "low",
		}},
		EvaluatedAt: time.Now(),
	}
}

// Fallback builds the verdict used when evaluation itself fails. It signals a
// mismatch so the claim cannot silently progress on an unverified document.
func Fallback(docType string) *claim.Verdict {
	return &claim.Verdict{
		Valid:          false,
		Status:         "error",
		ClassifiedType: docType,
		Mismatches: []claim.Mismatch{{
			Type:     docType,
			Claimed:  docType,
			Detected: "analysis unavailable",
			Severity: "medium",
		}},
		DetectedSeverity: claim.SeverityUnclear,
		EvaluatedAt:      time.Now(),
	}
}

// severityLevels is the ladder used for severity mismatch detection. A
// claimed-vs-detected gap of two or more steps is a mismatch.
var severityLevels = map[string]int{
	"none":     0,
	"minor":    1,
	"moderate": 2,
	"heavy":    3,
	"severe":   3,
}

const severityMismatchGap = 2

// detectMismatches compares a vision analysis against the declared claim.
// Only accident photos carry severity and drivability comparisons; red flags
// apply to every document type.
func detectMismatches(a *visionAnalysis, c *claim.Claim, docType string) []claim.Mismatch {
	var out []claim.Mismatch

	if docType == claim.DocAccidentPhoto {
		claimed, cok := severityLevels[strings.ToLower(string(c.Severity))]
		detected, dok := severityLevels[strings.ToLower(a.DetectedSeverity)]
		if cok && dok && abs(claimed-detected) >= severityMismatchGap {
			out = append(out, claim.Mismatch{
				Type:     "severity_mismatch",
				Claimed:  strings.ToLower(string(c.Severity)),
				Detected: strings.ToLower(a.DetectedSeverity),
				Severity: "high",
			})
		}

		if c.Drivable && strings.EqualFold(a.IsDrivable, "no") {
			out = append(out, claim.Mismatch{
				Type:     "drivable_mismatch",
				Claimed:  "drivable",
				Detected: "not drivable",
				Severity: "medium",
			})
		}

		if strings.EqualFold(a.DetectedSeverity, "none") &&
			strings.Contains(strings.ToLower(c.Description), "damage") {
			out = append(out, claim.Mismatch{
				Type:     "no_visible_damage",
				Claimed:  "damage reported",
				Detected: "no damage visible",
				Severity: "high",
			})
		}
	}

	for _, flag := range a.RedFlags {
		out = append(out, claim.Mismatch{
			Type:     "red_flag",
			Claimed:  docType,
			Detected: flag,
			Severity: "medium",
		})
	}

	return out
}

// normalizeSeverity maps a vision severity label onto the claim vocabulary.
func normalizeSeverity(s string) claim.Severity {
	switch strings.ToLower(s) {
	case "minor":
		return claim.SeverityMinor
	case "moderate":
		return claim.SeverityModerate
	case "heavy", "severe":
		return claim.SeverityHeavy
	case "":
		return ""
	default:
		return claim.SeverityUnclear
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
