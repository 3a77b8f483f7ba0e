package service

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/ept-backend/internal/config"
	"github.com/stemsi/ept-backend/internal/model"
	"github.com/stemsi/ept-backend/internal/repository"
)

// MonitorService orchestrates live exam monitoring business logic.
type MonitorService struct {
	monitorRepo *repository.MonitorRepository
	outcomeRepo *repository.OutcomeRepository
	sessionSvc  *ExamSessionService
	rdb         *redis.Client
	log         zerolog.Logger
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(
	monitorRepo *repository.MonitorRepository,
	outcomeRepo *repository.OutcomeRepository,
	sessionSvc *ExamSessionService,
	rdb *redis.Client,
	log zerolog.Logger,
) *MonitorService {
	return &MonitorService{
		monitorRepo: monitorRepo,
		outcomeRepo: outcomeRepo,
		sessionSvc:  sessionSvc,
		rdb:         rdb,
		log:         log.With().Str("component", "monitor_service").Logger(),
	}
}

// AttemptReview is the evidence collected for one attempt.
type AttemptReview struct {
	AttemptID       uuid.UUID              `json:"attempt_id"`
	AnswersAudited  int64                  `json:"answers_audited"`
	IntegrityEvents []model.IntegrityEvent `json:"integrity_events"`
	Frames          []model.EvidenceFrame  `json:"frames"`
}

// LiveSessions returns every running session with its integrity event count.
func (s *MonitorService) LiveSessions(ctx context.Context) ([]model.LiveSessionView, error) {
	views := s.sessionSvc.ListLive()
	ids := make([]uuid.UUID, len(views))
	for i := range views {
		ids[i] = views[i].AttemptID
	}

	// Integrity counts are best-effort; the worker may lag behind.
	counts, err := s.monitorRepo.GetIntegrityCounts(ctx, ids)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to load integrity counts")
		return views, nil
	}
	for i := range views {
		views[i].IntegrityEvents = counts[views[i].AttemptID]
	}
	return views, nil
}

// ReviewAttempt gathers the audit trail, integrity events and evidence frame
// metadata of an attempt concurrently.
func (s *MonitorService) ReviewAttempt(ctx context.Context, attemptID uuid.UUID) (*AttemptReview, error) {
	review := &AttemptReview{AttemptID: attemptID}

	var (
		answersErr, eventsErr, framesErr error
		wg                               sync.WaitGroup
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		review.AnswersAudited, answersErr = s.monitorRepo.CountAnswers(ctx, attemptID)
	}()
	go func() {
		defer wg.Done()
		review.IntegrityEvents, eventsErr = s.monitorRepo.ListIntegrityEvents(ctx, attemptID)
	}()
	go func() {
		defer wg.Done()
		review.Frames, framesErr = s.outcomeRepo.ListFrames(ctx, attemptID)
	}()
	wg.Wait()

	for _, err := range []error{answersErr, eventsErr, framesErr} {
		if err != nil {
			return nil, err
		}
	}
	return review, nil
}

// Frame returns the image bytes of one stored evidence frame.
func (s *MonitorService) Frame(ctx context.Context, attemptID uuid.UUID, seq int) ([]byte, error) {
	return s.outcomeRepo.GetFrame(ctx, attemptID, seq)
}

// Subscribe streams session events published on the monitor channel until
// ctx is cancelled.
func (s *MonitorService) Subscribe(ctx context.Context) <-chan model.SessionEvent {
	out := make(chan model.SessionEvent, 16)
	sub := s.rdb.Subscribe(ctx, config.CacheKey.SessionMonitorChannel())

	go func() {
		defer close(out)
		defer sub.Close()

		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev model.SessionEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					s.log.Debug().Err(err).Msg("Discarding malformed monitor event")
					continue
				}
				select {
				case out <- ev:
				default:
					s.log.Debug().Msg("Monitor subscriber lagging, event dropped")
				}
			}
		}
	}()
	return out
}
