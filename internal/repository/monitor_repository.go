package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/ept-backend/internal/model"
)

// MonitorRepository reads the audit tables written by the background workers.
type MonitorRepository struct {
	pool *pgxpool.Pool
}

// NewMonitorRepository creates a new MonitorRepository.
func NewMonitorRepository(pool *pgxpool.Pool) *MonitorRepository {
	return &MonitorRepository{pool: pool}
}

// GetIntegrityCounts returns the number of integrity events per attempt.
func (r *MonitorRepository) GetIntegrityCounts(ctx context.Context, attemptIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	counts := make(map[uuid.UUID]int64)
	if len(attemptIDs) == 0 {
		return counts, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT attempt_id, COUNT(*)
		 FROM proctoring_events
		 WHERE attempt_id = ANY($1)
		 GROUP BY attempt_id`,
		attemptIDs,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		var count int64
		if err := rows.Scan(&id, &count); err != nil {
			return nil, err
		}
		counts[id] = count
	}
	return counts, rows.Err()
}

// ListIntegrityEvents returns every integrity event of an attempt, oldest first.
func (r *MonitorRepository) ListIntegrityEvents(ctx context.Context, attemptID uuid.UUID) ([]model.IntegrityEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT attempt_id, candidate_id, kind, detail, occurred_at
		 FROM proctoring_events
		 WHERE attempt_id = $1
		 ORDER BY occurred_at`,
		attemptID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []model.IntegrityEvent{}
	for rows.Next() {
		var e model.IntegrityEvent
		var kind string
		if err := rows.Scan(&e.AttemptID, &e.CandidateID, &kind, &e.Detail, &e.OccurredAt); err != nil {
			return nil, err
		}
		e.Kind = model.IntegrityKind(kind)
		events = append(events, e)
	}
	return events, rows.Err()
}

// CountAnswers returns how many answers the audit trail holds for an attempt.
func (r *MonitorRepository) CountAnswers(ctx context.Context, attemptID uuid.UUID) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM session_answers WHERE attempt_id = $1`, attemptID).Scan(&n)
	return n, err
}
