package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/ept-backend/internal/model"
	"github.com/stemsi/ept-backend/internal/repository"
)

// RecordStore persists finished sessions to Postgres and drops the
// candidate's cached profile so the dashboard reflects the new result.
type RecordStore struct {
	outcomeRepo  *repository.OutcomeRepository
	candidateSvc *CandidateService
	log          zerolog.Logger
}

// NewRecordStore creates a new RecordStore.
func NewRecordStore(outcomeRepo *repository.OutcomeRepository, candidateSvc *CandidateService, log zerolog.Logger) *RecordStore {
	return &RecordStore{
		outcomeRepo:  outcomeRepo,
		candidateSvc: candidateSvc,
		log:          log.With().Str("component", "record_store").Logger(),
	}
}

// PersistOutcome stores the outcome, the candidate's latest result and the
// evidence frames in one transaction.
func (s *RecordStore) PersistOutcome(ctx context.Context, candidateID uuid.UUID, outcome model.ExamOutcome) error {
	outcome.CandidateID = candidateID
	if err := s.outcomeRepo.Save(ctx, outcome); err != nil {
		return fmt.Errorf("save outcome: %w", err)
	}
	s.candidateSvc.InvalidateProfile(ctx, candidateID)

	s.log.Info().
		Str("candidate_id", candidateID.String()).
		Str("attempt_id", outcome.AttemptID.String()).
		Int("score", outcome.Score).
		Int("frames", len(outcome.Screenshots)).
		Msg("Outcome persisted")
	return nil
}
