package repository

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/ept-backend/internal/model"
	"github.com/stemsi/ept-backend/internal/scoring"
)

var ErrDuplicateEmail = errors.New("candidate with this email already exists")

// CandidateRepository handles candidate data access.
type CandidateRepository struct {
	pool *pgxpool.Pool
}

// NewCandidateRepository creates a new CandidateRepository.
func NewCandidateRepository(pool *pgxpool.Pool) *CandidateRepository {
	return &CandidateRepository{pool: pool}
}

const candidateColumns = `id, email, full_name, document_id, password_hash, purchased_level, purchase_date,
	amount_paid, exam_completed, score, raw_score, total_questions, passed, failure_reason,
	certificate_code, last_exam_date, created_at, updated_at`

func scanCandidate(row pgx.Row) (*model.Candidate, error) {
	c := &model.Candidate{}
	var level *string
	err := row.Scan(&c.ID, &c.Email, &c.FullName, &c.DocumentID, &c.PasswordHash, &level, &c.PurchaseDate,
		&c.AmountPaid, &c.ExamCompleted, &c.Score, &c.RawScore, &c.TotalQuestions, &c.Passed, &c.FailureReason,
		&c.CertificateCode, &c.LastExamDate, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if level != nil {
		l := model.ProficiencyLevel(*level)
		c.PurchasedLevel = &l
	}
	return c, nil
}

// GetByID retrieves a candidate by ID.
func (r *CandidateRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Candidate, error) {
	return scanCandidate(r.pool.QueryRow(ctx,
		`SELECT `+candidateColumns+` FROM candidates WHERE id = $1`, id))
}

// GetByEmail retrieves a candidate by email, case-insensitively.
func (r *CandidateRepository) GetByEmail(ctx context.Context, email string) (*model.Candidate, error) {
	return scanCandidate(r.pool.QueryRow(ctx,
		`SELECT `+candidateColumns+` FROM candidates WHERE LOWER(email) = LOWER($1)`, email))
}

// GetByCertificateCode looks up the holder of an issued certificate.
func (r *CandidateRepository) GetByCertificateCode(ctx context.Context, code string) (*model.Candidate, error) {
	return scanCandidate(r.pool.QueryRow(ctx,
		`SELECT `+candidateColumns+` FROM candidates WHERE UPPER(certificate_code) = UPPER($1)`, code))
}

// Create inserts a new candidate.
func (r *CandidateRepository) Create(ctx context.Context, c *model.Candidate) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO candidates (email, full_name, document_id, password_hash)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at, updated_at`,
		c.Email, c.FullName, c.DocumentID, c.PasswordHash,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateEmail
		}
		return err
	}
	return nil
}

// RecordPurchase marks the candidate as having paid for the exam.
func (r *CandidateRepository) RecordPurchase(ctx context.Context, id uuid.UUID, level model.ProficiencyLevel, amount float64, at time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE candidates
		 SET purchased_level = $2, purchase_date = $3, amount_paid = amount_paid + $4, updated_at = NOW()
		 WHERE id = $1`,
		id, string(level), at, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Retake archives the latest result into exam_history and reopens the exam.
func (r *CandidateRepository) Retake(ctx context.Context, c *model.Candidate) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	entry := RetakeHistoryEntry(c, time.Now())
	if _, err := tx.Exec(ctx,
		`INSERT INTO exam_history (candidate_id, taken_at, score, passed) VALUES ($1, $2, $3, $4)`,
		c.ID, entry.Date, entry.Score, entry.Passed); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE candidates
		 SET exam_completed = FALSE, score = NULL, raw_score = NULL, total_questions = NULL,
		     passed = NULL, failure_reason = NULL, certificate_code = NULL, updated_at = NOW()
		 WHERE id = $1`, c.ID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Unlock reopens the exam immediately without archiving the latest result.
func (r *CandidateRepository) Unlock(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE candidates
		 SET exam_completed = FALSE, score = NULL, raw_score = NULL, total_questions = NULL,
		     passed = NULL, failure_reason = NULL, certificate_code = NULL, last_exam_date = NULL,
		     updated_at = NOW()
		 WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// RetakeHistoryEntry builds the archive row for the candidate's latest result.
func RetakeHistoryEntry(c *model.Candidate, now time.Time) model.ExamHistoryEntry {
	e := model.ExamHistoryEntry{Date: now}
	if c.LastExamDate != nil {
		e.Date = *c.LastExamDate
	}
	if c.Score != nil {
		e.Score = *c.Score
	}
	e.Passed = e.Score >= scoring.PassThreshold
	return e
}

// ListHistory returns archived attempts, newest first.
func (r *CandidateRepository) ListHistory(ctx context.Context, id uuid.UUID) ([]model.ExamHistoryEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT taken_at, score, passed FROM exam_history WHERE candidate_id = $1 ORDER BY taken_at DESC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := []model.ExamHistoryEntry{}
	for rows.Next() {
		var h model.ExamHistoryEntry
		if err := rows.Scan(&h.Date, &h.Score, &h.Passed); err != nil {
			return nil, err
		}
		history = append(history, h)
	}
	return history, rows.Err()
}

// ListPaginated retrieves candidates for the admin sales list.
func (r *CandidateRepository) ListPaginated(ctx context.Context, f model.CandidateListFilter) ([]model.Candidate, int, error) {
	var where []string
	var args []interface{}
	argIdx := 1

	if s := strings.TrimSpace(f.Search); s != "" {
		where = append(where, `(email ILIKE $`+strconv.Itoa(argIdx)+` OR full_name ILIKE $`+strconv.Itoa(argIdx)+`)`)
		args = append(args, "%"+s+"%")
		argIdx++
	}
	if f.Purchased != nil {
		if *f.Purchased {
			where = append(where, `purchase_date IS NOT NULL`)
		} else {
			where = append(where, `purchase_date IS NULL`)
		}
	}
	if f.Passed != nil {
		where = append(where, `passed = $`+strconv.Itoa(argIdx))
		args = append(args, *f.Passed)
		argIdx++
	}

	clause := ""
	if len(where) > 0 {
		clause = ` WHERE ` + strings.Join(where, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM candidates`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + candidateColumns + ` FROM candidates` + clause +
		` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(argIdx) + ` OFFSET $` + strconv.Itoa(argIdx+1)
	args = append(args, f.PerPage, (f.Page-1)*f.PerPage)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	candidates := []model.Candidate{}
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, 0, err
		}
		candidates = append(candidates, *c)
	}
	return candidates, total, rows.Err()
}
