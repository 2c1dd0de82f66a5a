package doceval

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/fnol/internal/claim"
)

const maxVerdictTokens = 1024

// ClaudeEvaluator evaluates documents with Claude vision.
type ClaudeEvaluator struct {
	client anthropic.Client
	model  string
	logger log.Logger
}

// NewClaudeEvaluator creates a vision evaluator for the given API key and
// model name.
func NewClaudeEvaluator(apiKey, model string, logger log.Logger) *ClaudeEvaluator {
	if logger == nil {
		logger = log.Nop()
	}
	return &ClaudeEvaluator{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
		logger: logger,
	}
}

// Evaluate validates the document, runs vision analysis, and folds detected
// discrepancies into a verdict.
func (e *ClaudeEvaluator) Evaluate(ctx context.Context, doc Document, docType string, c *claim.Claim) (*claim.Verdict, error) {
	if err := ValidateDocument(doc, docType); err != nil {
		return Rejected(docType, err), nil
	}

	analysis, err := e.analyze(ctx, doc, docType, c)
	if err != nil {
		return nil, fmt.Errorf("vision analysis: %w", err)
	}

	mismatches := detectMismatches(analysis, c, docType)

	v := &claim.Verdict{
		Valid:            true,
		Status:           "validated",
		ClassifiedType:   orDocType(analysis.ClassifiedType, docType),
		Mismatches:       mismatches,
		DetectedSeverity: normalizeSeverity(analysis.DetectedSeverity),
		Confidence:       analysis.Confidence,
		EvaluatedAt:      time.Now(),
	}
	if len(mismatches) > 0 {
		v.Status = "mismatch"
	}
	return v, nil
}

// visionAnalysis is the JSON shape the model is prompted to return.
type visionAnalysis struct {
	ClassifiedType   string   `json:"classifiedType"`
	DetectedSeverity string   `json:"detectedSeverity"`
	DamageLocation   string   `json:"damageLocation"`
	IsDrivable       string   `json:"isDrivable"`
	ReportNumber     string   `json:"reportNumber"`
	Readable         bool     `json:"readable"`
	RedFlags         []string `json:"redFlags"`
	Confidence       float64  `json:"confidence"`
}

func (e *ClaudeEvaluator) analyze(ctx context.Context, doc Document, docType string, c *claim.Claim) (*visionAnalysis, error) {
	encoded := base64.StdEncoding.EncodeToString(doc.Data)

	msg, err := e.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(e.model),
		MaxTokens: maxVerdictTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewImageBlockBase64(doc.MediaType, encoded),
				anthropic.NewTextBlock(promptFor(docType, c)),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("messages api: %w", err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	analysis, err := parseAnalysis(text)
	if err != nil {
		return nil, err
	}

	e.logger.Info(ctx, "document analyzed",
		"claim_id", c.ID,
		"doc_type", docType,
		"classified_type", analysis.ClassifiedType,
		"detected_severity", analysis.DetectedSeverity,
		"red_flags", len(analysis.RedFlags),
	)
	return analysis, nil
}

// parseAnalysis decodes the model's JSON verdict, tolerating a surrounding
// markdown code fence.
func parseAnalysis(text string) (*visionAnalysis, error) {
	text = strings.TrimSpace(text)
	if after, ok := strings.CutPrefix(text, "```json"); ok {
		text = after
	} else if after, ok := strings.CutPrefix(text, "```"); ok {
		text = after
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")

	var a visionAnalysis
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &a); err != nil {
		return nil, fmt.Errorf("parse analysis: %w", err)
	}
	return &a, nil
}

func promptFor(docType string, c *claim.Claim) string {
	switch docType {
	case claim.DocAccidentPhoto:
		return fmt.Sprintf(`You are an expert insurance claims adjuster analyzing a vehicle damage photo.

Analyze this image and assess damage severity, location, and drivability, and
note any red flags or inconsistencies.

Claimed damage: %s
Claimed severity: %s
Claimed drivable: %t

Return JSON only:
{
  "classifiedType": "accident_photo",
  "detectedSeverity": "none|minor|moderate|severe",
  "damageLocation": "front|rear|side|multiple|roof|undercarriage",
  "isDrivable": "yes|no|unclear",
  "redFlags": ["..."],
  "confidence": 0.0
}`, orDocType(c.Description, "not specified"), string(c.Severity), c.Drivable)

	case claim.DocLicense:
		return `Analyze this ID or license image. Determine whether it is readable,
what kind of document it is, and whether anything looks altered or expired.

Return JSON only:
{
  "classifiedType": "license",
  "readable": true,
  "redFlags": ["..."],
  "confidence": 0.0
}`

	case claim.DocPoliceReport:
		return fmt.Sprintf(`Analyze this police report document. Determine whether it is a
valid report, extract the report number if visible, and note any red flags.

Claimed incident type: %s

Return JSON only:
{
  "classifiedType": "police_report",
  "reportNumber": "...",
  "redFlags": ["..."],
  "confidence": 0.0
}`, c.IncidentType)
	}
	return "Classify this insurance claim document. Return JSON only with fields classifiedType, redFlags, confidence."
}

func orDocType(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
