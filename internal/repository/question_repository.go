package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/ept-backend/internal/model"
)

// QuestionRepository handles question bank data access. Options and
// sub-questions are stored as JSONB.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

const questionColumns = `id, number, level, section, text, context, audio_url, options, correct_answer, sub_questions`

func scanQuestion(row pgx.Row) (*model.Question, error) {
	q := &model.Question{}
	var level, section string
	err := row.Scan(&q.ID, &q.Number, &level, &section, &q.Text, &q.Context, &q.AudioURL,
		&q.Options, &q.CorrectAnswer, &q.SubQuestions)
	if err != nil {
		return nil, err
	}
	q.Level = model.ProficiencyLevel(level)
	q.Section = model.Section(section)
	if len(q.SubQuestions) == 0 {
		q.SubQuestions = nil
	}
	return q, nil
}

// List retrieves the whole bank in exam order.
func (r *QuestionRepository) List(ctx context.Context) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+questionColumns+` FROM questions ORDER BY position, number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	questions := []model.Question{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, *q)
	}
	return questions, rows.Err()
}

// GetByID retrieves one question.
func (r *QuestionRepository) GetByID(ctx context.Context, id string) (*model.Question, error) {
	return scanQuestion(r.pool.QueryRow(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE id = $1`, id))
}

// Count returns the bank size.
func (r *QuestionRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM questions`).Scan(&n)
	return n, err
}

// Append inserts questions after the current last position.
func (r *QuestionRepository) Append(ctx context.Context, questions []model.Question) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var pos int
	if err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(position), 0) FROM questions`).Scan(&pos); err != nil {
		return err
	}
	if err := insertQuestions(ctx, tx, questions, pos+1); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ReplaceAll swaps the whole bank atomically.
func (r *QuestionRepository) ReplaceAll(ctx context.Context, questions []model.Question) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM questions`); err != nil {
		return err
	}
	if err := insertQuestions(ctx, tx, questions, 1); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Update overwrites a question's content, keeping its position.
func (r *QuestionRepository) Update(ctx context.Context, q *model.Question) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE questions
		 SET number = $2, level = $3, section = $4, text = $5, context = $6, audio_url = $7,
		     options = $8, correct_answer = $9, sub_questions = $10, updated_at = NOW()
		 WHERE id = $1`,
		q.ID, q.Number, string(q.Level), string(q.Section), q.Text, q.Context, q.AudioURL,
		q.Options, q.CorrectAnswer, subQuestionsOrEmpty(q.SubQuestions))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Delete removes a question.
func (r *QuestionRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM questions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func insertQuestions(ctx context.Context, tx pgx.Tx, questions []model.Question, startPos int) error {
	batch := &pgx.Batch{}
	for i := range questions {
		q := &questions[i]
		batch.Queue(
			`INSERT INTO questions (id, number, position, level, section, text, context, audio_url, options, correct_answer, sub_questions)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			q.ID, q.Number, startPos+i, string(q.Level), string(q.Section), q.Text, q.Context, q.AudioURL,
			q.Options, q.CorrectAnswer, subQuestionsOrEmpty(q.SubQuestions))
	}
	return tx.SendBatch(ctx, batch).Close()
}

func subQuestionsOrEmpty(sq []model.SubQuestion) []model.SubQuestion {
	if sq == nil {
		return []model.SubQuestion{}
	}
	return sq
}
