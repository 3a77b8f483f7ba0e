package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/ept-backend/internal/model"
)

type SettingRepository struct {
	pool *pgxpool.Pool
}

func NewSettingRepository(pool *pgxpool.Pool) *SettingRepository {
	return &SettingRepository{pool: pool}
}

func (r *SettingRepository) GetAll(ctx context.Context) ([]model.AppSetting, error) {
	rows, err := r.pool.Query(ctx, `SELECT key, value, updated_at FROM app_settings ORDER BY key ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	settings := []model.AppSetting{}
	for rows.Next() {
		var s model.AppSetting
		if err := rows.Scan(&s.Key, &s.Value, &s.UpdatedAt); err != nil {
			return nil, err
		}
		settings = append(settings, s)
	}
	return settings, rows.Err()
}

func (r *SettingRepository) GetByKey(ctx context.Context, key string) (*model.AppSetting, error) {
	s := &model.AppSetting{}
	err := r.pool.QueryRow(ctx, `SELECT key, value, updated_at FROM app_settings WHERE key = $1`, key).
		Scan(&s.Key, &s.Value, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// UpsertMany writes all pairs in one transaction.
func (r *SettingRepository) UpsertMany(ctx context.Context, values map[string]string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for k, v := range values {
		if _, err := tx.Exec(ctx,
			`INSERT INTO app_settings (key, value, updated_at) VALUES ($1, $2, NOW())
			 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
			k, v); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// ReserveNumbers advances next_question_number by n and returns the first
// reserved number.
func (r *SettingRepository) ReserveNumbers(ctx context.Context, n int) (int, error) {
	var next int
	err := r.pool.QueryRow(ctx,
		`INSERT INTO app_settings (key, value, updated_at) VALUES ($1, ($2::int + 1)::text, NOW())
		 ON CONFLICT (key) DO UPDATE
		   SET value = (COALESCE(NULLIF(app_settings.value, '')::int, 1) + $2::int)::text, updated_at = NOW()
		 RETURNING value::int`,
		model.SettingNextQuestionNumber, n,
	).Scan(&next)
	if err != nil {
		return 0, err
	}
	return next - n, nil
}
