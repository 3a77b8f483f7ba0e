package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/ept-backend/internal/model"
)

// OutcomeRow is one persisted attempt, used by reports.
type OutcomeRow struct {
	AttemptID       uuid.UUID `json:"attempt_id"`
	CandidateID     uuid.UUID `json:"candidate_id"`
	FullName        string    `json:"full_name"`
	Email           string    `json:"email"`
	Score           int       `json:"score"`
	RawScore        int       `json:"raw_score"`
	TotalQuestions  int       `json:"total_questions"`
	Passed          bool      `json:"passed"`
	FailureReason   string    `json:"failure_reason,omitempty"`
	CertificateCode *string   `json:"certificate_code,omitempty"`
	Forced          bool      `json:"forced"`
	FinishedAt      time.Time `json:"finished_at"`
	Frames          int       `json:"frames"`
}

// OutcomeRepository persists exam outcomes and their evidence frames.
type OutcomeRepository struct {
	pool *pgxpool.Pool
}

// NewOutcomeRepository creates a new OutcomeRepository.
func NewOutcomeRepository(pool *pgxpool.Pool) *OutcomeRepository {
	return &OutcomeRepository{pool: pool}
}

// Save writes the outcome in one transaction: the candidate's latest result,
// the attempt row, and the evidence frames via COPY. Saving the same attempt
// twice is a no-op for the attempt and frames.
func (r *OutcomeRepository) Save(ctx context.Context, o model.ExamOutcome) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var code, reason *string
	if o.CertificateCode != "" {
		code = &o.CertificateCode
	}
	if o.FailureReason != "" {
		reason = &o.FailureReason
	}

	tag, err := tx.Exec(ctx,
		`UPDATE candidates
		 SET exam_completed = TRUE, score = $2, raw_score = $3, total_questions = $4, passed = $5,
		     failure_reason = $6, certificate_code = $7, last_exam_date = $8, updated_at = NOW()
		 WHERE id = $1`,
		o.CandidateID, o.Score, o.RawScore, o.TotalQuestions, o.Passed, reason, code, o.LastExamDate)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	tag, err = tx.Exec(ctx,
		`INSERT INTO exam_outcomes (attempt_id, candidate_id, score, raw_score, total_questions, passed,
		                            failure_reason, certificate_code, forced, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (attempt_id) DO NOTHING`,
		o.AttemptID, o.CandidateID, o.Score, o.RawScore, o.TotalQuestions, o.Passed,
		o.FailureReason, code, o.Forced, o.StartedAt, o.LastExamDate)
	if err != nil {
		return err
	}

	if tag.RowsAffected() > 0 && len(o.Screenshots) > 0 {
		rows := make([][]interface{}, len(o.Screenshots))
		for i, img := range o.Screenshots {
			rows[i] = []interface{}{o.AttemptID, i + 1, img, o.LastExamDate}
		}
		if _, err := tx.CopyFrom(ctx,
			pgx.Identifier{"evidence_frames"},
			[]string{"attempt_id", "seq", "image", "created_at"},
			pgx.CopyFromRows(rows),
		); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// ListFrames returns the evidence frames of an attempt in capture order.
func (r *OutcomeRepository) ListFrames(ctx context.Context, attemptID uuid.UUID) ([]model.EvidenceFrame, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT attempt_id, seq, image, created_at FROM evidence_frames WHERE attempt_id = $1 ORDER BY seq`,
		attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	frames := []model.EvidenceFrame{}
	for rows.Next() {
		var f model.EvidenceFrame
		if err := rows.Scan(&f.AttemptID, &f.Seq, &f.Image, &f.CreatedAt); err != nil {
			return nil, err
		}
		frames = append(frames, f)
	}
	return frames, rows.Err()
}

// GetFrame returns the JPEG bytes of one evidence frame.
func (r *OutcomeRepository) GetFrame(ctx context.Context, attemptID uuid.UUID, seq int) ([]byte, error) {
	var img []byte
	err := r.pool.QueryRow(ctx,
		`SELECT image FROM evidence_frames WHERE attempt_id = $1 AND seq = $2`,
		attemptID, seq).Scan(&img)
	return img, err
}

// ListRecent returns the latest outcomes with candidate details.
func (r *OutcomeRepository) ListRecent(ctx context.Context, limit int) ([]OutcomeRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT o.attempt_id, o.candidate_id, c.full_name, c.email, o.score, o.raw_score, o.total_questions,
		        o.passed, o.failure_reason, o.certificate_code, o.forced, o.finished_at,
		        (SELECT COUNT(*) FROM evidence_frames f WHERE f.attempt_id = o.attempt_id)
		 FROM exam_outcomes o
		 JOIN candidates c ON c.id = o.candidate_id
		 ORDER BY o.finished_at DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []OutcomeRow{}
	for rows.Next() {
		var o OutcomeRow
		if err := rows.Scan(&o.AttemptID, &o.CandidateID, &o.FullName, &o.Email, &o.Score, &o.RawScore,
			&o.TotalQuestions, &o.Passed, &o.FailureReason, &o.CertificateCode, &o.Forced, &o.FinishedAt,
			&o.Frames); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
