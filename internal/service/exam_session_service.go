package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/ept-backend/internal/config"
	"github.com/stemsi/ept-backend/internal/evidence"
	"github.com/stemsi/ept-backend/internal/model"
	"github.com/stemsi/ept-backend/internal/session"
)

// ErrNoLiveSession is returned when the candidate has no running session.
var ErrNoLiveSession = errors.New("no live session for candidate")

const publishTimeout = 3 * time.Second

// HostEvent is delivered to the candidate's stream when the session settles
// or fails to persist.
type HostEvent struct {
	Kind   model.SessionEventType
	Score  int
	Reason string
	Err    error
}

// LiveSession is one running exam attempt together with its frame buffer.
type LiveSession struct {
	Machine *session.Machine
	Frames  *evidence.LatestFrame
	host    *sessionHost
}

// Subscribe registers for host events. The returned func unsubscribes.
func (l *LiveSession) Subscribe() (<-chan HostEvent, func()) {
	return l.host.subscribe()
}

// ExamSessionService owns the registry of live exam sessions, at most one
// per candidate.
type ExamSessionService struct {
	cfg          *config.Config
	questions    session.QuestionSource
	candidateSvc *CandidateService
	store        session.RecordStore
	rdb          *redis.Client
	log          zerolog.Logger

	mu   sync.Mutex
	live map[uuid.UUID]*LiveSession
}

// NewExamSessionService creates a new ExamSessionService.
func NewExamSessionService(
	cfg *config.Config,
	questions session.QuestionSource,
	candidateSvc *CandidateService,
	store session.RecordStore,
	rdb *redis.Client,
	log zerolog.Logger,
) *ExamSessionService {
	return &ExamSessionService{
		cfg:          cfg,
		questions:    questions,
		candidateSvc: candidateSvc,
		store:        store,
		rdb:          rdb,
		log:          log.With().Str("component", "exam_session_service").Logger(),
		live:         make(map[uuid.UUID]*LiveSession),
	}
}

// Start returns the candidate's live session, creating one when none is
// running. A new session requires a recorded purchase and no completed exam.
func (s *ExamSessionService) Start(ctx context.Context, candidateID uuid.UUID) (*LiveSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l, ok := s.live[candidateID]; ok {
		return l, nil
	}

	c, err := s.candidateSvc.GetFresh(ctx, candidateID)
	if err != nil {
		return nil, fmt.Errorf("load candidate: %w", err)
	}
	if !CanStartExam(c) {
		return nil, ErrNotEligible
	}

	questions, err := s.questions.LoadQuestions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}

	frames := evidence.NewLatestFrame()
	host := &sessionHost{svc: s, candidateID: candidateID, subs: map[chan HostEvent]struct{}{}}
	m, err := session.New(questions, candidateID, s.store, host, evidence.NewCapturer(frames), session.Config{
		SetupBudget: s.cfg.SetupBudget,
		SetupGrace:  s.cfg.SetupGrace,
		SubmitDelay: s.cfg.SubmitDelay,
		Logger:      s.log,
	})
	if err != nil {
		return nil, err
	}

	l := &LiveSession{Machine: m, Frames: frames, host: host}
	host.live = l
	s.live[candidateID] = l
	go s.drive(l)

	s.log.Info().
		Str("candidate_id", candidateID.String()).
		Str("attempt_id", m.AttemptID().String()).
		Int("questions", len(questions)).
		Msg("Exam session opened")
	return l, nil
}

// Get returns the candidate's live session.
func (s *ExamSessionService) Get(candidateID uuid.UUID) (*LiveSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.live[candidateID]
	return l, ok
}

// Grant forwards the capability prompt result and announces the start.
func (s *ExamSessionService) Grant(ctx context.Context, l *LiveSession, granted bool) error {
	before := l.Machine.Snapshot().Phase
	if err := l.Machine.Grant(granted); err != nil {
		return err
	}
	if before == session.PhaseSetup {
		s.publish(ctx, l, model.SessionEventStarted, nil, "")
	}
	return nil
}

// Select records an answer and queues it for the audit trail.
func (s *ExamSessionService) Select(ctx context.Context, l *LiveSession, itemID string, option int) error {
	if err := l.Machine.Select(itemID, option); err != nil {
		return err
	}
	s.enqueue(ctx, config.WorkerKey.PersistAnswersQueue, model.AnswerAudit{
		AttemptID:   l.Machine.AttemptID(),
		CandidateID: l.Machine.CandidateID(),
		ItemID:      itemID,
		Option:      option,
		SelectedAt:  time.Now(),
	})
	return nil
}

// Next advances the session and reports progress to the monitor.
func (s *ExamSessionService) Next(ctx context.Context, l *LiveSession) error {
	if err := l.Machine.Next(); err != nil {
		return err
	}
	s.publish(ctx, l, model.SessionEventProgress, nil, "")
	return nil
}

// Finish submits the session, or retries persistence after a failure.
func (s *ExamSessionService) Finish(l *LiveSession) error {
	return l.Machine.Finish()
}

// PushFrame stores the latest shared-screen frame for evidence capture.
func (s *ExamSessionService) PushFrame(l *LiveSession, data []byte) error {
	return l.Frames.Push(data)
}

// ReportIntegrity logs and queues a client-reported proctoring signal. It
// never changes the session.
func (s *ExamSessionService) ReportIntegrity(ctx context.Context, l *LiveSession, kind model.IntegrityKind, detail string) {
	ev := model.IntegrityEvent{
		AttemptID:   l.Machine.AttemptID(),
		CandidateID: l.Machine.CandidateID(),
		Kind:        kind.Normalize(),
		Detail:      detail,
		OccurredAt:  time.Now(),
	}
	s.log.Warn().
		Str("candidate_id", ev.CandidateID.String()).
		Str("attempt_id", ev.AttemptID.String()).
		Str("kind", string(ev.Kind)).
		Msg("Integrity event reported")
	s.enqueue(ctx, config.WorkerKey.PersistIntegrityQueue, ev)
	s.publish(ctx, l, model.SessionEventIntegrity, nil, string(ev.Kind))
}

// Annul ends the candidate's live session with a forced score. The reason is
// recorded as the failure reason, so no certificate is issued.
func (s *ExamSessionService) Annul(ctx context.Context, candidateID uuid.UUID, percentage int, reason string) error {
	l, ok := s.Get(candidateID)
	if !ok {
		return ErrNoLiveSession
	}
	return l.Machine.ForceFinish(percentage, reason)
}

// ListLive returns a view of every running session.
func (s *ExamSessionService) ListLive() []model.LiveSessionView {
	s.mu.Lock()
	sessions := make([]*LiveSession, 0, len(s.live))
	for _, l := range s.live {
		sessions = append(sessions, l)
	}
	s.mu.Unlock()

	views := make([]model.LiveSessionView, 0, len(sessions))
	for _, l := range sessions {
		snap := l.Machine.Snapshot()
		views = append(views, model.LiveSessionView{
			CandidateID: l.Machine.CandidateID(),
			AttemptID:   snap.AttemptID,
			Phase:       string(snap.Phase),
			Index:       snap.Index,
			Total:       snap.Total,
			Answered:    snap.Answered,
			Frames:      snap.Frames,
			TimeLeft:    snap.TimeLeft,
		})
	}
	return views
}

// LiveCount returns the number of running sessions.
func (s *ExamSessionService) LiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// Shutdown stops every session's ticker.
func (s *ExamSessionService) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.live {
		l.Machine.Close()
	}
}

// drive ticks the machine until it settles, then drops it from the registry.
func (s *ExamSessionService) drive(l *LiveSession) {
	_ = l.Machine.Run(context.Background())
	l.Frames.Close()

	s.mu.Lock()
	if cur, ok := s.live[l.Machine.CandidateID()]; ok && cur == l {
		delete(s.live, l.Machine.CandidateID())
	}
	s.mu.Unlock()
}

func (s *ExamSessionService) enqueue(ctx context.Context, queue string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.rdb.RPush(ctx, queue, data).Err(); err != nil {
		s.log.Error().Err(err).Str("queue", queue).Msg("Failed to enqueue")
	}
}

func (s *ExamSessionService) publish(ctx context.Context, l *LiveSession, kind model.SessionEventType, score *int, reason string) {
	snap := l.Machine.Snapshot()
	ev := model.SessionEvent{
		Type:        kind,
		CandidateID: l.Machine.CandidateID(),
		AttemptID:   snap.AttemptID,
		Phase:       string(snap.Phase),
		Index:       snap.Index,
		Total:       snap.Total,
		Answered:    snap.Answered,
		Score:       score,
		Reason:      reason,
		At:          time.Now(),
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := s.rdb.Publish(ctx, config.CacheKey.SessionMonitorChannel(), data).Err(); err != nil {
		s.log.Debug().Err(err).Msg("Monitor publish failed")
	}
}

// sessionHost receives machine callbacks, fans them out to the candidate's
// stream and publishes them for the admin monitor.
type sessionHost struct {
	svc         *ExamSessionService
	candidateID uuid.UUID
	live        *LiveSession

	mu   sync.Mutex
	subs map[chan HostEvent]struct{}
}

func (h *sessionHost) subscribe() (<-chan HostEvent, func()) {
	ch := make(chan HostEvent, 4)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch, func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
	}
}

func (h *sessionHost) emit(ev HostEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (h *sessionHost) OnSessionComplete(score int) {
	h.emit(HostEvent{Kind: model.SessionEventCompleted, Score: score})
	h.announce(model.SessionEventCompleted, &score, "")
}

func (h *sessionHost) OnSessionAnnulled(reason string) {
	h.emit(HostEvent{Kind: model.SessionEventAnnulled, Reason: reason})
	h.announce(model.SessionEventAnnulled, nil, reason)
}

func (h *sessionHost) OnSessionError(err error) {
	h.emit(HostEvent{Kind: model.SessionEventError, Err: err})
	h.announce(model.SessionEventError, nil, err.Error())
}

func (h *sessionHost) announce(kind model.SessionEventType, score *int, reason string) {
	if h.live == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	h.svc.publish(ctx, h.live, kind, score, reason)
}
