package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/ept-backend/internal/config"
	"github.com/stemsi/ept-backend/internal/model"
	"github.com/stemsi/ept-backend/internal/repository"
	"github.com/stemsi/ept-backend/internal/response"
	"github.com/stemsi/ept-backend/internal/scoring"
)

// Candidate portal errors.
var (
	ErrNotEligible      = errors.New("candidate is not eligible to start the exam")
	ErrNoResultToRetake = errors.New("no completed exam to retake")
	ErrRetakeCooldown   = errors.New("retake cooldown has not elapsed")
)

const candidateProfileTTL = 5 * time.Minute

// CandidateService handles candidate accounts, purchases and the retake gate.
type CandidateService struct {
	candidateRepo *repository.CandidateRepository
	authSvc       *AuthService
	rdb           *redis.Client
	cfg           *config.Config
	log           zerolog.Logger
	now           func() time.Time
}

// NewCandidateService creates a new CandidateService.
func NewCandidateService(
	candidateRepo *repository.CandidateRepository,
	authSvc *AuthService,
	rdb *redis.Client,
	cfg *config.Config,
	log zerolog.Logger,
) *CandidateService {
	return &CandidateService{
		candidateRepo: candidateRepo,
		authSvc:       authSvc,
		rdb:           rdb,
		cfg:           cfg,
		log:           log.With().Str("component", "candidate_service").Logger(),
		now:           time.Now,
	}
}

// Register creates a candidate account.
func (s *CandidateService) Register(ctx context.Context, req *model.CandidateRegisterRequest) (*model.Candidate, error) {
	hash, err := s.authSvc.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	c := &model.Candidate{
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		FullName:     strings.TrimSpace(req.FullName),
		DocumentID:   strings.TrimSpace(req.DocumentID),
		PasswordHash: hash,
	}
	if err := s.candidateRepo.Create(ctx, c); err != nil {
		return nil, err
	}
	s.log.Info().Str("candidate_id", c.ID.String()).Msg("Candidate registered")
	return c, nil
}

// Login checks credentials and issues a single-device token.
func (s *CandidateService) Login(ctx context.Context, req *model.CandidateLoginRequest) (*model.CandidateLoginResponse, error) {
	c, err := s.candidateRepo.GetByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := s.authSvc.CheckPassword(c.PasswordHash, req.Password); err != nil {
		return nil, err
	}
	token, err := s.authSvc.GenerateCandidateToken(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	return &model.CandidateLoginResponse{Token: token, Candidate: *c}, nil
}

// Logout revokes the candidate's current login.
func (s *CandidateService) Logout(ctx context.Context, id uuid.UUID) error {
	return s.authSvc.RevokeCandidateSession(ctx, id)
}

// GetByID returns the candidate, served from the Redis profile cache when warm.
func (s *CandidateService) GetByID(ctx context.Context, id uuid.UUID) (*model.Candidate, error) {
	key := config.CacheKey.CandidateProfileKey(id)
	if data, err := s.rdb.Get(ctx, key).Bytes(); err == nil {
		var cached model.Candidate
		if json.Unmarshal(data, &cached) == nil {
			return &cached, nil
		}
	}

	c, err := s.candidateRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(c); err == nil {
		s.rdb.Set(ctx, key, data, candidateProfileTTL)
	}
	return c, nil
}

// GetFresh bypasses the profile cache.
func (s *CandidateService) GetFresh(ctx context.Context, id uuid.UUID) (*model.Candidate, error) {
	return s.candidateRepo.GetByID(ctx, id)
}

// InvalidateProfile drops the cached profile after a write.
func (s *CandidateService) InvalidateProfile(ctx context.Context, id uuid.UUID) {
	if err := s.rdb.Del(ctx, config.CacheKey.CandidateProfileKey(id)).Err(); err != nil {
		s.log.Warn().Err(err).Str("candidate_id", id.String()).Msg("Failed to invalidate candidate profile")
	}
}

// Dashboard assembles the candidate's portal view.
func (s *CandidateService) Dashboard(ctx context.Context, id uuid.UUID) (*model.CandidateDashboard, error) {
	c, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	history, err := s.candidateRepo.ListHistory(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}

	d := &model.CandidateDashboard{
		Candidate:    *c,
		CanStartExam: CanStartExam(c),
		History:      history,
	}
	if c.ExamCompleted {
		d.CanRetake, d.DaysUntilRetake = RetakeStatus(c.LastExamDate, s.now(), s.cfg.RetakeCooldownDays)
	}
	if c.Score != nil {
		d.CEFRLevel = scoring.CEFRLevel(*c.Score)
	}
	return d, nil
}

// Retake archives the latest result and reopens the exam once the cooldown
// has elapsed.
func (s *CandidateService) Retake(ctx context.Context, id uuid.UUID) error {
	c, err := s.candidateRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !c.ExamCompleted {
		return ErrNoResultToRetake
	}
	if ok, days := RetakeStatus(c.LastExamDate, s.now(), s.cfg.RetakeCooldownDays); !ok {
		return fmt.Errorf("%w: %d days left", ErrRetakeCooldown, days)
	}
	if err := s.candidateRepo.Retake(ctx, c); err != nil {
		return err
	}
	s.InvalidateProfile(ctx, id)
	s.log.Info().Str("candidate_id", id.String()).Msg("Candidate started a retake")
	return nil
}

// Unlock reopens the exam for a candidate immediately, bypassing the cooldown.
func (s *CandidateService) Unlock(ctx context.Context, id uuid.UUID) error {
	if err := s.candidateRepo.Unlock(ctx, id); err != nil {
		return err
	}
	s.InvalidateProfile(ctx, id)
	s.log.Warn().Str("candidate_id", id.String()).Msg("Candidate unlocked by admin")
	return nil
}

// RecordPurchase marks the exam as paid. Level defaults to B2 and the amount
// to the configured exam price.
func (s *CandidateService) RecordPurchase(ctx context.Context, id uuid.UUID, req *model.RecordPurchaseRequest) (*model.Candidate, error) {
	level := req.Level
	if !level.Valid() {
		level = model.LevelB2
	}
	amount := s.cfg.ExamPrice
	if req.AmountPaid != nil {
		amount = *req.AmountPaid
	}
	if err := s.candidateRepo.RecordPurchase(ctx, id, level, amount, s.now()); err != nil {
		return nil, err
	}
	s.InvalidateProfile(ctx, id)
	return s.candidateRepo.GetByID(ctx, id)
}

// List retrieves candidates for the admin sales list with pagination.
func (s *CandidateService) List(ctx context.Context, f model.CandidateListFilter) ([]model.Candidate, *response.Pagination, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 {
		f.PerPage = 10
	}
	if f.PerPage > 100 {
		f.PerPage = 100
	}

	candidates, total, err := s.candidateRepo.ListPaginated(ctx, f)
	if err != nil {
		return nil, nil, err
	}

	return candidates, response.NewPagination(f.Page, f.PerPage, total), nil
}

// CanStartExam reports whether a new session may be opened for c.
func CanStartExam(c *model.Candidate) bool {
	return c.HasPurchase() && !c.ExamCompleted
}

// RetakeStatus applies the cooldown to the last exam date. When a retake is
// not yet allowed it also returns the whole days left, rounded up.
func RetakeStatus(lastExam *time.Time, now time.Time, cooldownDays int) (bool, int) {
	if lastExam == nil {
		return true, 0
	}
	daysSince := now.Sub(*lastExam).Hours() / 24
	if daysSince >= float64(cooldownDays) {
		return true, 0
	}
	return false, int(math.Ceil(float64(cooldownDays) - daysSince))
}
