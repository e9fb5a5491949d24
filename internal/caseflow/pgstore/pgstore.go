// Package pgstore provides a PostgreSQL implementation of caseflow.Store.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/recourse/internal/caseflow"
)

var tracer = otel.Tracer("github.com/linnemanlabs/recourse/internal/caseflow/pgstore")

//go:embed schema.sql
var schema string

// Store persists case checkpoints in PostgreSQL. The full state lives in
// a JSONB column; a few fields are promoted to real columns for queries.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema and returns a ready Store. The pool remains
// owned by the caller.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Save upserts the case checkpoint.
func (s *Store) Save(ctx context.Context, st *caseflow.State) error {
	ctx, span := tracer.Start(ctx, "pgstore.Save", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPSERT"),
	))
	defer span.End()

	stateJSON, err := json.Marshal(st)
	if err != nil {
		err = fmt.Errorf("marshal state: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	var ticketID string
	if st.Ticket != nil {
		ticketID = st.Ticket.ID
	}
	var completedAt *time.Time
	if !st.CompletedAt.IsZero() {
		completedAt = &st.CompletedAt
	}

	query := `INSERT INTO case_runs (
		id, ticket_id, status, cursor, decision, state, created_at, completed_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	ON CONFLICT (id) DO UPDATE SET
		ticket_id    = EXCLUDED.ticket_id,
		status       = EXCLUDED.status,
		cursor       = EXCLUDED.cursor,
		decision     = EXCLUDED.decision,
		state        = EXCLUDED.state,
		completed_at = EXCLUDED.completed_at`

	_, err = s.pool.Exec(ctx, query,
		st.ID, ticketID, string(st.Status), string(st.Cursor), string(st.Decision),
		stateJSON, st.CreatedAt, completedAt,
	)
	if err != nil {
		err = fmt.Errorf("upsert case: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// Load retrieves a case checkpoint by ID.
func (s *Store) Load(ctx context.Context, id string) (*caseflow.State, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Load", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	var stateJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT state FROM case_runs WHERE id = $1`, id,
	).Scan(&stateJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		err = fmt.Errorf("scan: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}

	var st caseflow.State
	if err := json.Unmarshal(stateJSON, &st); err != nil {
		err = fmt.Errorf("unmarshal state: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	return &st, true, nil
}

// ListAwaitingApproval returns the IDs of cases suspended for a human
// decision, oldest first, for reviewer tooling that works the backlog.
func (s *Store) ListAwaitingApproval(ctx context.Context, limit int) ([]string, error) {
	ctx, span := tracer.Start(ctx, "pgstore.ListAwaitingApproval", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id FROM case_runs WHERE status = $1 ORDER BY created_at ASC LIMIT $2`,
		string(caseflow.StatusAwaitingApproval), limit,
	)
	if err != nil {
		err = fmt.Errorf("query: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate: %w", err)
	}
	return ids, nil
}
