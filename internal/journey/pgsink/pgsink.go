// Package pgsink provides a PostgreSQL implementation of journey.ReportSink.
package pgsink

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/fnol/internal/journey"
)

var tracer = otel.Tracer("github.com/linnemanlabs/fnol/internal/journey/pgsink")

//go:embed schema.sql
var schema string

// Sink persists journey reports in PostgreSQL. The full report is stored as
// one JSONB blob; window bounds are lifted into columns for range queries.
type Sink struct {
	pool *pgxpool.Pool
}

// New applies the schema on the given pool and returns a ready Sink.
func New(ctx context.Context, pool *pgxpool.Pool) (*Sink, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Sink{pool: pool}, nil
}

// Insert appends one report row.
func (s *Sink) Insert(ctx context.Context, r *journey.Report) error {
	ctx, span := tracer.Start(ctx, "pgsink.Insert", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "INSERT"),
	))
	defer span.End()

	reportJSON, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO journey_reports (id, window_start, window_end, report, generated_by, generated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		r.ID, r.WindowStart, r.WindowEnd, reportJSON, r.GeneratedBy, r.GeneratedAt,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// Recent returns up to limit reports, newest first.
func (s *Sink) Recent(ctx context.Context, limit int) ([]*journey.Report, error) {
	ctx, span := tracer.Start(ctx, "pgsink.Recent", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT report FROM journey_reports ORDER BY generated_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	var out []*journey.Report
	for rows.Next() {
		var reportJSON []byte
		if err := rows.Scan(&reportJSON); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		var r journey.Report
		if err := json.Unmarshal(reportJSON, &r); err != nil {
			return nil, fmt.Errorf("unmarshal report: %w", err)
		}
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return out, nil
}
