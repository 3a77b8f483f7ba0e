package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/ept-backend/internal/model"
)

// DailySales is the purchase volume of one calendar day.
type DailySales struct {
	Day       time.Time `json:"day"`
	Purchases int       `json:"purchases"`
	Revenue   float64   `json:"revenue"`
}

// DashboardRepository handles admin dashboard data access.
type DashboardRepository struct {
	pool *pgxpool.Pool
}

// NewDashboardRepository creates a new DashboardRepository.
func NewDashboardRepository(pool *pgxpool.Pool) *DashboardRepository {
	return &DashboardRepository{pool: pool}
}

// GetSummary fills the persisted counters of the dashboard. LiveSessions is
// left for the caller.
func (r *DashboardRepository) GetSummary(ctx context.Context) (model.AdminDashboard, error) {
	var d model.AdminDashboard
	err := r.pool.QueryRow(ctx,
		`SELECT
			(SELECT COUNT(*) FROM candidates),
			(SELECT COUNT(*) FROM candidates WHERE purchase_date IS NOT NULL),
			(SELECT COALESCE(SUM(amount_paid), 0)::float8 FROM candidates),
			(SELECT COUNT(*) FROM exam_outcomes),
			(SELECT COUNT(*) FROM exam_outcomes WHERE passed),
			(SELECT COALESCE(AVG(score), 0)::float8 FROM exam_outcomes),
			(SELECT COUNT(*) FROM exam_outcomes WHERE forced),
			(SELECT COUNT(*) FROM questions)`,
	).Scan(&d.TotalCandidates, &d.TotalPurchases, &d.TotalRevenue, &d.ExamsCompleted, &d.ExamsPassed,
		&d.AverageScore, &d.ForcedOutcomes, &d.QuestionBankSize)
	if err != nil {
		return d, err
	}
	d.ExamsFailed = d.ExamsCompleted - d.ExamsPassed
	if d.ExamsCompleted > 0 {
		d.PassRate = float64(d.ExamsPassed) / float64(d.ExamsCompleted) * 100
	}
	return d, nil
}

// GetDailySales returns purchases per day for the last `days` days, oldest first.
func (r *DashboardRepository) GetDailySales(ctx context.Context, days int) ([]DailySales, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT date_trunc('day', purchase_date) AS day, COUNT(*), COALESCE(SUM(amount_paid), 0)::float8
		 FROM candidates
		 WHERE purchase_date >= NOW() - make_interval(days => $1)
		 GROUP BY day
		 ORDER BY day ASC`, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := []DailySales{}
	for rows.Next() {
		var s DailySales
		if err := rows.Scan(&s.Day, &s.Purchases, &s.Revenue); err != nil {
			return nil, err
		}
		sales = append(sales, s)
	}
	return sales, rows.Err()
}

// GetLevelDistribution counts purchases per level.
func (r *DashboardRepository) GetLevelDistribution(ctx context.Context) (map[model.ProficiencyLevel]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT purchased_level, COUNT(*) FROM candidates WHERE purchased_level IS NOT NULL GROUP BY purchased_level`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[model.ProficiencyLevel]int)
	for rows.Next() {
		var level string
		var n int
		if err := rows.Scan(&level, &n); err != nil {
			return nil, err
		}
		out[model.ProficiencyLevel(level)] = n
	}
	return out, rows.Err()
}
