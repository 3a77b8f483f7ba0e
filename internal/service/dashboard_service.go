package service

import (
	"context"

	"github.com/stemsi/ept-backend/internal/model"
	"github.com/stemsi/ept-backend/internal/repository"
)

// DashboardData consolidates all metrics for the admin dashboard.
type DashboardData struct {
	Summary           model.AdminDashboard           `json:"summary"`
	DailySales        []repository.DailySales        `json:"daily_sales"`
	LevelDistribution map[model.ProficiencyLevel]int `json:"level_distribution"`
	RecentOutcomes    []repository.OutcomeRow        `json:"recent_outcomes"`
}

// DashboardService handles admin dashboard business logic.
type DashboardService struct {
	repo        *repository.DashboardRepository
	outcomeRepo *repository.OutcomeRepository
	sessionSvc  *ExamSessionService
}

// NewDashboardService creates a new DashboardService.
func NewDashboardService(repo *repository.DashboardRepository, outcomeRepo *repository.OutcomeRepository, sessionSvc *ExamSessionService) *DashboardService {
	return &DashboardService{repo: repo, outcomeRepo: outcomeRepo, sessionSvc: sessionSvc}
}

// GetDashboardData gathers sales, finance and outcome metrics. salesDays
// bounds the daily sales series.
func (s *DashboardService) GetDashboardData(ctx context.Context, salesDays int) (*DashboardData, error) {
	if salesDays < 1 || salesDays > 365 {
		salesDays = 30
	}

	summary, err := s.repo.GetSummary(ctx)
	if err != nil {
		return nil, err
	}
	summary.LiveSessions = s.sessionSvc.LiveCount()

	sales, err := s.repo.GetDailySales(ctx, salesDays)
	if err != nil {
		return nil, err
	}

	levels, err := s.repo.GetLevelDistribution(ctx)
	if err != nil {
		return nil, err
	}

	recent, err := s.outcomeRepo.ListRecent(ctx, 10)
	if err != nil {
		return nil, err
	}

	return &DashboardData{
		Summary:           summary,
		DailySales:        sales,
		LevelDistribution: levels,
		RecentOutcomes:    recent,
	}, nil
}
