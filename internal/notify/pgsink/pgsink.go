// Package pgsink provides a PostgreSQL implementation of notify.Sink.
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

	"github.com/linnemanlabs/fnol/internal/notify"
)

var tracer = otel.Tracer("github.com/linnemanlabs/fnol/internal/notify/pgsink")

//go:embed schema.sql
var schema string

// Sink persists notifications in PostgreSQL.
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

// Insert appends one notification row.
func (s *Sink) Insert(ctx context.Context, n *notify.Notification) error {
	ctx, span := tracer.Start(ctx, "pgsink.Insert", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "INSERT"),
	))
	defer span.End()

	detailJSON, err := json.Marshal(n.Detail)
	if err != nil {
		return fmt.Errorf("marshal detail: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO customer_notifications (id, correlation_id, customer_pseudonym, status, message, detail, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		n.ID, n.CorrelationID, n.CustomerPseudonym, n.Status, n.Message, detailJSON, n.CreatedAt,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// List returns notifications for one claim, oldest first.
func (s *Sink) List(ctx context.Context, correlationID string) ([]*notify.Notification, error) {
	ctx, span := tracer.Start(ctx, "pgsink.List", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT id, correlation_id, customer_pseudonym, status, message, detail, created_at
		 FROM customer_notifications WHERE correlation_id = $1 ORDER BY created_at`,
		correlationID,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var out []*notify.Notification
	for rows.Next() {
		var (
			n          notify.Notification
			detailJSON []byte
		)
		if err := rows.Scan(&n.ID, &n.CorrelationID, &n.CustomerPseudonym, &n.Status, &n.Message, &detailJSON, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		if err := json.Unmarshal(detailJSON, &n.Detail); err != nil {
			return nil, fmt.Errorf("unmarshal detail: %w", err)
		}
		out = append(out, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return out, nil
}
