// Package pgstore provides a PostgreSQL implementation of claim.Store.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/fnol/internal/claim"
)

var tracer = otel.Tracer("github.com/linnemanlabs/fnol/internal/claim/pgstore")

//go:embed schema.sql
var schema string

// Store persists claims in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema on the given pool and returns a ready Store.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

const claimColumns = `id, claimant_id, incident_type, severity, injuries, drivable, description,
	vehicle, documents, verdicts, fraud_risk, mismatch_flags, recommended_action,
	decision, missing_info, next_steps, status, status_history, estimate, created_at, updated_at`

// Get retrieves a claim by ID.
func (s *Store) Get(ctx context.Context, id string) (*claim.Claim, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Get", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + claimColumns + ` FROM claims WHERE id = $1`
	c, err := scanClaimRow(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	if c == nil {
		return nil, false, nil
	}
	return c, true, nil
}

// Put inserts or updates a claim (upsert on id).
func (s *Store) Put(ctx context.Context, c *claim.Claim) error {
	ctx, span := tracer.Start(ctx, "pgstore.Put", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPSERT"),
	))
	defer span.End()

	vehicleJSON, err := json.Marshal(c.Vehicle)
	if err != nil {
		return fmt.Errorf("marshal vehicle: %w", err)
	}
	documentsJSON, err := marshalSlice(c.Documents)
	if err != nil {
		return fmt.Errorf("marshal documents: %w", err)
	}
	verdictsJSON, err := marshalSlice(c.Verdicts)
	if err != nil {
		return fmt.Errorf("marshal verdicts: %w", err)
	}
	mismatchJSON, err := marshalSlice(c.MismatchFlags)
	if err != nil {
		return fmt.Errorf("marshal mismatch flags: %w", err)
	}
	missingJSON, err := marshalSlice(c.MissingInfo)
	if err != nil {
		return fmt.Errorf("marshal missing info: %w", err)
	}
	nextStepsJSON, err := marshalSlice(c.NextSteps)
	if err != nil {
		return fmt.Errorf("marshal next steps: %w", err)
	}
	historyJSON, err := marshalSlice(c.StatusHistory)
	if err != nil {
		return fmt.Errorf("marshal status history: %w", err)
	}
	var estimateJSON []byte
	if c.Estimate != nil {
		estimateJSON, err = json.Marshal(c.Estimate)
		if err != nil {
			return fmt.Errorf("marshal estimate: %w", err)
		}
	}

	query := `INSERT INTO claims (` + claimColumns + `)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
	ON CONFLICT (id) DO UPDATE SET
		claimant_id        = EXCLUDED.claimant_id,
		incident_type      = EXCLUDED.incident_type,
		severity           = EXCLUDED.severity,
		injuries           = EXCLUDED.injuries,
		drivable           = EXCLUDED.drivable,
		description        = EXCLUDED.description,
		vehicle            = EXCLUDED.vehicle,
		documents          = EXCLUDED.documents,
		verdicts           = EXCLUDED.verdicts,
		fraud_risk         = EXCLUDED.fraud_risk,
		mismatch_flags     = EXCLUDED.mismatch_flags,
		recommended_action = EXCLUDED.recommended_action,
		decision           = EXCLUDED.decision,
		missing_info       = EXCLUDED.missing_info,
		next_steps         = EXCLUDED.next_steps,
		status             = EXCLUDED.status,
		status_history     = EXCLUDED.status_history,
		estimate           = EXCLUDED.estimate,
		updated_at         = EXCLUDED.updated_at`

	_, err = s.pool.Exec(ctx, query,
		c.ID, c.ClaimantID, c.IncidentType, string(c.Severity), c.Injuries, c.Drivable, c.Description,
		vehicleJSON, documentsJSON, verdictsJSON, string(c.FraudRisk), mismatchJSON, c.RecommendedAction,
		string(c.Decision), missingJSON, nextStepsJSON, string(c.Status), historyJSON, estimateJSON,
		c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upsert claim: %w", err)
	}
	return nil
}

// Recent returns up to limit non-terminal claims, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]*claim.Claim, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Recent", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + claimColumns + ` FROM claims
	WHERE status <> $1 ORDER BY created_at DESC LIMIT $2`
	rows, err := s.pool.Query(ctx, query, string(claim.StatusCompleted), limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query recent claims: %w", err)
	}
	defer rows.Close()

	var out []*claim.Claim
	for rows.Next() {
		c, err := scanClaimRow(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("iterate claims: %w", err)
	}
	return out, nil
}

// marshalSlice marshals a slice as JSON, mapping nil to the empty array so
// DB rows never carry SQL NULL for list columns.
func marshalSlice[T any](s []T) ([]byte, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s)
}

// scanClaimRow scans a single row into a claim.Claim.
// Returns (nil, nil) when no row is found.
func scanClaimRow(row pgx.Row) (*claim.Claim, error) {
	var (
		c             claim.Claim
		severity      string
		fraudRisk     string
		decision      string
		status        string
		vehicleJSON   []byte
		docsJSON      []byte
		verdictsJSON  []byte
		mismatchJSON  []byte
		missingJSON   []byte
		nextStepsJSON []byte
		historyJSON   []byte
		estimateJSON  []byte
	)

	err := row.Scan(
		&c.ID, &c.ClaimantID, &c.IncidentType, &severity, &c.Injuries, &c.Drivable, &c.Description,
		&vehicleJSON, &docsJSON, &verdictsJSON, &fraudRisk, &mismatchJSON, &c.RecommendedAction,
		&decision, &missingJSON, &nextStepsJSON, &status, &historyJSON, &estimateJSON,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan: %w", err)
	}

	c.Severity = claim.Severity(severity)
	c.FraudRisk = claim.FraudRisk(fraudRisk)
	c.Decision = claim.Decision(decision)
	c.Status = claim.Status(status)

	if err := json.Unmarshal(vehicleJSON, &c.Vehicle); err != nil {
		return nil, fmt.Errorf("unmarshal vehicle: %w", err)
	}
	if err := json.Unmarshal(docsJSON, &c.Documents); err != nil {
		return nil, fmt.Errorf("unmarshal documents: %w", err)
	}
	if err := json.Unmarshal(verdictsJSON, &c.Verdicts); err != nil {
		return nil, fmt.Errorf("unmarshal verdicts: %w", err)
	}
	if err := json.Unmarshal(mismatchJSON, &c.MismatchFlags); err != nil {
		return nil, fmt.Errorf("unmarshal mismatch flags: %w", err)
	}
	if err := json.Unmarshal(missingJSON, &c.MissingInfo); err != nil {
		return nil, fmt.Errorf("unmarshal missing info: %w", err)
	}
	if err := json.Unmarshal(nextStepsJSON, &c.NextSteps); err != nil {
		return nil, fmt.Errorf("unmarshal next steps: %w", err)
	}
	if err := json.Unmarshal(historyJSON, &c.StatusHistory); err != nil {
		return nil, fmt.Errorf("unmarshal status history: %w", err)
	}
	if len(estimateJSON) > 0 {
		c.Estimate = &claim.Estimate{}
		if err := json.Unmarshal(estimateJSON, c.Estimate); err != nil {
			return nil, fmt.Errorf("unmarshal estimate: %w", err)
		}
	}
	return &c, nil
}
