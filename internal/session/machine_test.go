package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/stemsi/ept-backend/internal/model"
)

// ─── Fakes ───────────────────────────────────────────────────────────────────

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeStore struct {
	mu       sync.Mutex
	calls    int
	failNext int
	saved    []model.ExamOutcome
}

func (s *fakeStore) PersistOutcome(_ context.Context, _ uuid.UUID, o model.ExamOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failNext > 0 {
		s.failNext--
		return errors.New("db down")
	}
	s.saved = append(s.saved, o)
	return nil
}

func (s *fakeStore) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fakeHost struct {
	mu        sync.Mutex
	completed []int
	annulled  []string
	errs      []error
}

func (h *fakeHost) OnSessionComplete(score int) {
	h.mu.Lock()
	h.completed = append(h.completed, score)
	h.mu.Unlock()
}

func (h *fakeHost) OnSessionAnnulled(reason string) {
	h.mu.Lock()
	h.annulled = append(h.annulled, reason)
	h.mu.Unlock()
}

func (h *fakeHost) OnSessionError(err error) {
	h.mu.Lock()
	h.errs = append(h.errs, err)
	h.mu.Unlock()
}

type fakeRecorder struct {
	mu      sync.Mutex
	n       int
	fail    bool
	stopped int
}

func (r *fakeRecorder) Capture() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return nil, errors.New("no stream")
	}
	r.n++
	return []byte{byte(r.n)}, nil
}

func (r *fakeRecorder) Stop() {
	r.mu.Lock()
	r.stopped++
	r.mu.Unlock()
}

type harness struct {
	m     *Machine
	clock *fakeClock
	store *fakeStore
	host  *fakeHost
	rec   *fakeRecorder
}

func newHarness(t *testing.T, qs []model.Question) *harness {
	t.Helper()
	h := &harness{
		clock: newFakeClock(),
		store: &fakeStore{},
		host:  &fakeHost{},
		rec:   &fakeRecorder{},
	}
	m, err := New(qs, uuid.New(), h.store, h.host, h.rec, Config{
		SetupBudget: 120 * time.Second,
		SetupGrace:  5 * time.Second,
		Now:         h.clock.Now,
		NewCode:     func() string { return "ABC123XYZ" },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.m = m
	return h
}

func threeQuestions() []model.Question {
	return []model.Question{
		{ID: "q1", Level: model.LevelB1, Section: model.SectionGrammar, Text: "one", Options: []string{"a", "b", "c"}, CorrectAnswer: 0},
		{ID: "q2", Level: model.LevelB1, Section: model.SectionGrammar, Text: "two", Options: []string{"a", "b", "c"}, CorrectAnswer: 1},
		{ID: "q3", Level: model.LevelB1, Section: model.SectionGrammar, Text: "three", Options: []string{"a", "b", "c"}, CorrectAnswer: 2},
	}
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// ─── Construction ────────────────────────────────────────────────────────────

func TestNew_RejectsEmptyAndInvalid(t *testing.T) {
	if _, err := New(nil, uuid.New(), &fakeStore{}, nil, nil, Config{}); !errors.Is(err, ErrNoQuestions) {
		t.Fatalf("expected ErrNoQuestions, got %v", err)
	}

	bad := threeQuestions()
	bad[1].CorrectAnswer = 7
	if _, err := New(bad, uuid.New(), &fakeStore{}, nil, nil, Config{}); !errors.Is(err, model.ErrInvalidQuestion) {
		t.Fatalf("expected ErrInvalidQuestion, got %v", err)
	}

	dup := threeQuestions()
	dup[2].ID = "q1"
	if _, err := New(dup, uuid.New(), &fakeStore{}, nil, nil, Config{}); !errors.Is(err, model.ErrInvalidQuestion) {
		t.Fatalf("expected duplicate id rejection, got %v", err)
	}

	if _, err := New(threeQuestions(), uuid.New(), nil, nil, nil, Config{}); !errors.Is(err, ErrNoRecordStore) {
		t.Fatalf("expected ErrNoRecordStore, got %v", err)
	}
}

func TestNew_CopiesQuestions(t *testing.T) {
	qs := threeQuestions()
	h := newHarness(t, qs)
	qs[0].Options[0] = "mutated"
	_ = h.m.Grant(true)
	if got := h.m.Snapshot().Question.Options[0]; got != "a" {
		t.Fatalf("machine must not observe caller mutation, got %q", got)
	}
}

// ─── Setup ───────────────────────────────────────────────────────────────────

func TestSetup_AnnulsAtBudget(t *testing.T) {
	h := newHarness(t, threeQuestions())

	h.clock.Advance(119 * time.Second)
	h.m.Tick()
	if h.m.Snapshot().Phase != PhaseSetup {
		t.Fatalf("must still be in setup at 119s")
	}

	h.clock.Advance(time.Second)
	h.m.Tick()
	if got := h.m.Snapshot().Phase; got != PhaseAnnulled {
		t.Fatalf("expected ANNULLED at 120s, got %s", got)
	}
	if len(h.host.annulled) != 1 || h.host.annulled[0] != ReasonSetupTimeout {
		t.Fatalf("unexpected annul callbacks: %v", h.host.annulled)
	}
	if !isClosed(h.m.Done()) {
		t.Fatalf("Done must be closed after annulment")
	}
	if h.store.Calls() != 0 {
		t.Fatalf("annulment must not persist an outcome")
	}

	h.m.Tick()
	if len(h.host.annulled) != 1 {
		t.Fatalf("annulment must fire once")
	}
}

func TestSetup_GrantBeforeBudgetPreventsAnnulment(t *testing.T) {
	h := newHarness(t, threeQuestions())

	h.clock.Advance(119 * time.Second)
	h.m.Tick()
	if err := h.m.Grant(true); err != nil {
		t.Fatalf("Grant: %v", err)
	}

	h.clock.Advance(time.Second)
	h.m.Tick()
	h.clock.Advance(30 * time.Second)
	h.m.Tick()

	if got := h.m.Snapshot().Phase; got != PhaseInProgress {
		t.Fatalf("expected IN_PROGRESS, got %s", got)
	}
	if len(h.host.annulled) != 0 {
		t.Fatalf("no annulment expected, got %v", h.host.annulled)
	}
}

func TestSetup_DenialIsRecoverable(t *testing.T) {
	h := newHarness(t, threeQuestions())

	if err := h.m.Grant(false); !errors.Is(err, ErrCapabilityDenied) {
		t.Fatalf("expected ErrCapabilityDenied, got %v", err)
	}
	if h.m.Snapshot().Phase != PhaseSetup {
		t.Fatalf("denial must keep SETUP")
	}
	if err := h.m.Grant(true); err != nil {
		t.Fatalf("retry grant: %v", err)
	}
	if h.m.Snapshot().Phase != PhaseInProgress {
		t.Fatalf("expected IN_PROGRESS after retry")
	}
}

func TestSetup_NoAnnulmentInsideGrace(t *testing.T) {
	h := newHarness(t, threeQuestions())
	h.m.cfg.SetupBudget = time.Second

	h.clock.Advance(3 * time.Second)
	h.m.Tick()
	if h.m.Snapshot().Phase != PhaseSetup {
		t.Fatalf("must not annul inside the grace window")
	}
	h.clock.Advance(2 * time.Second)
	h.m.Tick()
	if h.m.Snapshot().Phase != PhaseAnnulled {
		t.Fatalf("expected annulment once grace elapsed")
	}
}

func TestSetup_ActionsRejected(t *testing.T) {
	h := newHarness(t, threeQuestions())
	if err := h.m.Select("q1", 0); !errors.Is(err, ErrNotInProgress) {
		t.Fatalf("Select in setup: %v", err)
	}
	if err := h.m.Next(); !errors.Is(err, ErrNotInProgress) {
		t.Fatalf("Next in setup: %v", err)
	}
	if err := h.m.Finish(); !errors.Is(err, ErrNotInProgress) {
		t.Fatalf("Finish in setup: %v", err)
	}
}

// ─── In progress ─────────────────────────────────────────────────────────────

func TestTimeout_ClearsOnlyCurrentAnswers(t *testing.T) {
	h := newHarness(t, threeQuestions())
	_ = h.m.Grant(true)

	if err := h.m.Select("q1", 0); err != nil {
		t.Fatalf("select q1: %v", err)
	}
	_ = h.m.Next()
	if err := h.m.Select("q2", 1); err != nil {
		t.Fatalf("select q2: %v", err)
	}

	h.clock.Advance(59 * time.Second)
	h.m.Tick()
	if h.m.Snapshot().Index != 1 {
		t.Fatalf("q2 must still be active before its deadline")
	}
	h.clock.Advance(time.Second)
	h.m.Tick()

	snap := h.m.Snapshot()
	if snap.Index != 2 {
		t.Fatalf("expected index 2 after timeout, got %d", snap.Index)
	}
	if snap.Answered != 1 {
		t.Fatalf("expected only q1 answered, got %d", snap.Answered)
	}
	if _, ok := h.m.answers["q1"]; !ok {
		t.Fatalf("q1 answer must survive q2 timeout")
	}
	if _, ok := h.m.answers["q2"]; ok {
		t.Fatalf("q2 answer must be cleared by timeout")
	}
	if snap.Frames != 2 {
		t.Fatalf("expected a frame per transition, got %d", snap.Frames)
	}
}

func TestTimeout_ClearsAllSubQuestionAnswers(t *testing.T) {
	qs := []model.Question{
		{
			ID: "m", Level: model.LevelB2, Section: model.SectionReading, Text: "match",
			Options: []string{"a", "b", "c"},
			SubQuestions: []model.SubQuestion{
				{ID: "m-1", Text: "x", CorrectAnswer: 0},
				{ID: "m-2", Text: "y", CorrectAnswer: 1},
			},
		},
		threeQuestions()[0],
	}
	h := newHarness(t, qs)
	_ = h.m.Grant(true)
	_ = h.m.Select("m-1", 0)
	_ = h.m.Select("m-2", 1)

	h.clock.Advance(90 * time.Second)
	h.m.Tick()

	if len(h.m.answers) != 0 {
		t.Fatalf("all sub-question answers must be cleared, got %v", h.m.answers)
	}
}

func TestSelect_Validation(t *testing.T) {
	h := newHarness(t, threeQuestions())
	_ = h.m.Grant(true)

	if err := h.m.Select("q2", 0); !errors.Is(err, ErrUnknownItem) {
		t.Fatalf("expected ErrUnknownItem, got %v", err)
	}
	if err := h.m.Select("q1", 3); !errors.Is(err, ErrOptionOutOfRange) {
		t.Fatalf("expected ErrOptionOutOfRange, got %v", err)
	}
	if err := h.m.Select("q1", -1); !errors.Is(err, ErrOptionOutOfRange) {
		t.Fatalf("expected ErrOptionOutOfRange, got %v", err)
	}
	if err := h.m.Select("q1", 2); err != nil {
		t.Fatalf("valid select: %v", err)
	}
	if got := h.m.Snapshot().Selected["q1"]; got != 2 {
		t.Fatalf("expected selection 2, got %d", got)
	}
}

func TestSnapshot_TimeLeft(t *testing.T) {
	h := newHarness(t, model.SampleQuestions())
	if got := h.m.Snapshot().SetupLeft; got != 120 {
		t.Fatalf("expected 120s setup left, got %d", got)
	}
	_ = h.m.Grant(true)
	h.clock.Advance(1500 * time.Millisecond)
	snap := h.m.Snapshot()
	if snap.TimeLeft != 59 {
		t.Fatalf("expected 59s left, got %d", snap.TimeLeft)
	}
	if snap.Question == nil || snap.Question.ID != "1" {
		t.Fatalf("expected first sample question, got %+v", snap.Question)
	}
}

// ─── Submission ──────────────────────────────────────────────────────────────

func answerSample(t *testing.T, h *harness, picks []int) {
	t.Helper()
	if err := h.m.Grant(true); err != nil {
		t.Fatalf("Grant: %v", err)
	}
	for i, q := range model.SampleQuestions() {
		if err := h.m.Select(q.ID, picks[i]); err != nil {
			t.Fatalf("select %s: %v", q.ID, err)
		}
		if err := h.m.Next(); err != nil {
			t.Fatalf("next: %v", err)
		}
	}
}

func TestSampleSet_AllCorrect(t *testing.T) {
	h := newHarness(t, model.SampleQuestions())
	answerSample(t, h, []int{1, 2, 2, 2})

	if h.m.Snapshot().Phase != PhaseCompleted {
		t.Fatalf("expected COMPLETED, got %s", h.m.Snapshot().Phase)
	}
	if h.store.Calls() != 1 {
		t.Fatalf("expected one persist, got %d", h.store.Calls())
	}
	o := h.store.saved[0]
	if o.RawScore != 4 || o.TotalQuestions != 4 || o.Score != 100 || !o.Passed {
		t.Fatalf("unexpected outcome: %+v", o)
	}
	if o.CertificateCode != "ABC123XYZ" || o.FailureReason != "" {
		t.Fatalf("passed outcome must carry a code and no reason: %+v", o)
	}
	if len(o.Screenshots) != 4 {
		t.Fatalf("expected 4 screenshots, got %d", len(o.Screenshots))
	}
	if h.rec.stopped != 1 {
		t.Fatalf("recorder must be stopped once, got %d", h.rec.stopped)
	}
	if len(h.host.completed) != 1 || h.host.completed[0] != 100 {
		t.Fatalf("unexpected completion callbacks: %v", h.host.completed)
	}
	if !isClosed(h.m.Done()) {
		t.Fatalf("Done must be closed")
	}
}

func TestSampleSet_AllZero(t *testing.T) {
	qs := model.SampleQuestions()
	want := 0
	for _, q := range qs {
		if q.CorrectAnswer == 0 {
			want++
		}
	}

	h := newHarness(t, qs)
	answerSample(t, h, []int{0, 0, 0, 0})

	o := h.store.saved[0]
	if o.RawScore != want {
		t.Fatalf("expected raw %d, got %d", want, o.RawScore)
	}
	if o.Passed || o.CertificateCode != "" {
		t.Fatalf("failed outcome must not carry a code: %+v", o)
	}
	if o.FailureReason != model.DefaultFailureReason {
		t.Fatalf("unexpected failure reason %q", o.FailureReason)
	}
}

func TestFinish_OnlyOnePersist(t *testing.T) {
	h := newHarness(t, threeQuestions())
	_ = h.m.Grant(true)
	_ = h.m.Select("q1", 0)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.m.Finish()
		}()
	}
	wg.Wait()
	_ = h.m.Finish()
	_ = h.m.Next()
	h.clock.Advance(10 * time.Minute)
	h.m.Tick()

	if h.store.Calls() != 1 {
		t.Fatalf("expected exactly one persist, got %d", h.store.Calls())
	}
	if err := h.m.Select("q1", 1); !errors.Is(err, ErrNotInProgress) {
		t.Fatalf("select after finish: %v", err)
	}
	if h.store.saved[0].Score != 33 {
		t.Fatalf("expected 33%%, got %d", h.store.saved[0].Score)
	}
}

func TestFinish_DoesNotCapture(t *testing.T) {
	h := newHarness(t, threeQuestions())
	_ = h.m.Grant(true)
	_ = h.m.Finish()
	if n := len(h.store.saved[0].Screenshots); n != 0 {
		t.Fatalf("finish must not capture, got %d frames", n)
	}
}

func TestEvidenceFailureIsSkipped(t *testing.T) {
	h := newHarness(t, threeQuestions())
	h.rec.fail = true
	_ = h.m.Grant(true)
	_ = h.m.Next()
	_ = h.m.Next()
	_ = h.m.Next()

	if h.m.Snapshot().Phase != PhaseCompleted {
		t.Fatalf("capture failures must not block completion")
	}
	if n := len(h.store.saved[0].Screenshots); n != 0 {
		t.Fatalf("expected no frames, got %d", n)
	}
}

func TestPersist_RetriesOnce(t *testing.T) {
	h := newHarness(t, threeQuestions())
	h.store.failNext = 1
	_ = h.m.Grant(true)
	_ = h.m.Finish()

	if h.store.Calls() != 2 {
		t.Fatalf("expected 2 attempts, got %d", h.store.Calls())
	}
	if h.m.Snapshot().Phase != PhaseCompleted {
		t.Fatalf("expected COMPLETED after retry")
	}
	if len(h.host.errs) != 0 {
		t.Fatalf("no error callback expected")
	}
}

func TestPersist_FailureThenManualRetry(t *testing.T) {
	h := newHarness(t, threeQuestions())
	h.store.failNext = 2
	_ = h.m.Grant(true)
	_ = h.m.Select("q1", 0)
	_ = h.m.Finish()

	if got := h.m.Snapshot().Phase; got != PhaseSubmitFailed {
		t.Fatalf("expected SUBMIT_FAILED, got %s", got)
	}
	if len(h.host.errs) != 1 || !errors.Is(h.host.errs[0], ErrPersistFailed) {
		t.Fatalf("expected persist error callback, got %v", h.host.errs)
	}
	if len(h.host.completed) != 0 {
		t.Fatalf("failure must not look like completion")
	}
	held, ok := h.m.Outcome()
	if !ok {
		t.Fatalf("outcome must be held in memory")
	}

	h.clock.Advance(time.Hour)
	if err := h.m.Finish(); err != nil {
		t.Fatalf("retry finish: %v", err)
	}
	if h.m.Snapshot().Phase != PhaseCompleted {
		t.Fatalf("expected COMPLETED after manual retry")
	}
	if h.store.Calls() != 3 {
		t.Fatalf("expected 3 attempts, got %d", h.store.Calls())
	}
	if got := h.store.saved[0]; !got.LastExamDate.Equal(held.LastExamDate) || got.Score != held.Score {
		t.Fatalf("retry must store the held outcome, got %+v", got)
	}
}

func TestForceFinish(t *testing.T) {
	h := newHarness(t, model.SampleQuestions())
	_ = h.m.Grant(true)
	_ = h.m.Select("1", 1)

	if err := h.m.ForceFinish(101, "x"); !errors.Is(err, ErrInvalidScore) {
		t.Fatalf("expected ErrInvalidScore, got %v", err)
	}
	if err := h.m.ForceFinish(40, "integrity violation"); err != nil {
		t.Fatalf("ForceFinish: %v", err)
	}
	o := h.store.saved[0]
	if !o.Forced || o.Score != 40 || o.RawScore != 2 || o.Passed {
		t.Fatalf("unexpected forced outcome: %+v", o)
	}
	if o.FailureReason != "integrity violation" || o.CertificateCode != "" {
		t.Fatalf("forced reason must be kept without a code: %+v", o)
	}
}

func TestForceFinish_PassingWithReasonGetsNoCode(t *testing.T) {
	h := newHarness(t, model.SampleQuestions())
	_ = h.m.Grant(true)
	_ = h.m.ForceFinish(90, "administrative review")
	o := h.store.saved[0]
	if !o.Passed || o.CertificateCode != "" {
		t.Fatalf("a failure reason must suppress the certificate: %+v", o)
	}
}

func TestSubmitDelay_CutShortByClose(t *testing.T) {
	h := newHarness(t, threeQuestions())
	h.m.cfg.SubmitDelay = time.Hour
	_ = h.m.Grant(true)

	done := make(chan struct{})
	go func() {
		_ = h.m.Finish()
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	if h.m.Snapshot().Phase != PhaseSubmitting {
		t.Fatalf("expected SUBMITTING during delay")
	}
	h.m.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Finish did not return after Close")
	}
	if h.store.Calls() != 1 {
		t.Fatalf("outcome must still be persisted, got %d", h.store.Calls())
	}
}

func TestRun_StopsOnContext(t *testing.T) {
	h := newHarness(t, threeQuestions())
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- h.m.Run(ctx) }()
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return")
	}
}

func TestRun_ReturnsWhenDone(t *testing.T) {
	h := newHarness(t, threeQuestions())
	_ = h.m.Grant(true)
	_ = h.m.Finish()

	errCh := make(chan error, 1)
	go func() { errCh <- h.m.Run(context.Background()) }()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("expected nil, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return for a settled session")
	}
}
