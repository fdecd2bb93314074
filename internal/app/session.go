package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"assessment-service/internal/domain"
	"assessment-service/internal/telemetry"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

// TimeoutPolicy decides what an expired countdown does to the score sheet.
type TimeoutPolicy string

const (
	// TimeoutSkip advances without recording an answer.
	TimeoutSkip TimeoutPolicy = "skip"
	// TimeoutIncorrect records an unanswered, incorrect answer before advancing.
	TimeoutIncorrect TimeoutPolicy = "incorrect"
)

// ParseTimeoutPolicy accepts "skip" and "incorrect"; anything else is an error.
func ParseTimeoutPolicy(raw string) (TimeoutPolicy, error) {
	switch TimeoutPolicy(raw) {
	case "", TimeoutSkip:
		return TimeoutSkip, nil
	case TimeoutIncorrect:
		return TimeoutIncorrect, nil
	}
	return "", fmt.Errorf("unknown timeout policy %q", raw)
}

// SessionConfig holds the timing and scoring policy of a session.
type SessionConfig struct {
	QuestionBudget  int           // countdown ticks per question
	Tick            time.Duration // length of one countdown tick
	FeedbackDelay   time.Duration // pause between an answer and the advance
	TimeoutPolicy   TimeoutPolicy
	RevealCorrect   bool // show the correct letter during feedback
	PersistAttempts int
	PersistBackoff  time.Duration
	PersistTimeout  time.Duration
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		QuestionBudget:  40,
		Tick:            time.Second,
		FeedbackDelay:   1500 * time.Millisecond,
		TimeoutPolicy:   TimeoutSkip,
		PersistAttempts: 1,
		PersistBackoff:  500 * time.Millisecond,
		PersistTimeout:  10 * time.Second,
	}
}

func (c SessionConfig) withDefaults() SessionConfig {
	d := DefaultSessionConfig()
	if c.QuestionBudget <= 0 {
		c.QuestionBudget = d.QuestionBudget
	}
	if c.Tick <= 0 {
		c.Tick = d.Tick
	}
	if c.FeedbackDelay < 0 {
		c.FeedbackDelay = d.FeedbackDelay
	}
	if c.TimeoutPolicy == "" {
		c.TimeoutPolicy = d.TimeoutPolicy
	}
	if c.PersistAttempts <= 0 {
		c.PersistAttempts = d.PersistAttempts
	}
	if c.PersistBackoff <= 0 {
		c.PersistBackoff = d.PersistBackoff
	}
	if c.PersistTimeout <= 0 {
		c.PersistTimeout = d.PersistTimeout
	}
	return c
}

// ResultSink receives the single result record of a finished session.
type ResultSink interface {
	PersistResult(ctx context.Context, rec domain.ResultRecord) error
}

// Session is the state machine of one participant's quiz run. All state
// changes happen under mu; timer callbacks carry the generation they were
// armed in and are ignored once the session moved on or was disposed.
type Session struct {
	id          string
	participant domain.Participant
	assignment  domain.TopicAssignment
	questions   []domain.Question
	cfg         SessionConfig
	sink        ResultSink
	clock       Clock

	mu          sync.Mutex
	status      domain.SessionStatus
	index       int
	countdown   int
	score       int
	answers     []domain.Answer
	locked      bool
	feedback    *domain.Feedback
	result      *domain.ResultRecord
	persistErr  error
	disposed    bool
	gen         uint64
	tick        Timer
	advance     Timer
	subscribers map[chan domain.SessionSnapshot]struct{}

	done     chan struct{}
	doneOnce sync.Once
}

// SessionParams groups everything a session is built from.
type SessionParams struct {
	ID          string
	Participant domain.Participant
	Assignment  domain.TopicAssignment
	Questions   []domain.Question
	Config      SessionConfig
	Sink        ResultSink
	Clock       Clock
}

// NewSession builds a session in the Loading state, or NoContent when it has no questions.
func NewSession(p SessionParams) *Session {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Clock == nil {
		p.Clock = RealClock()
	}
	s := &Session{
		id:          p.ID,
		participant: p.Participant,
		assignment:  p.Assignment,
		questions:   p.Questions,
		cfg:         p.Config.withDefaults(),
		sink:        p.Sink,
		clock:       p.Clock,
		status:      domain.StatusLoading,
		subscribers: make(map[chan domain.SessionSnapshot]struct{}),
		done:        make(chan struct{}),
	}
	if len(p.Questions) == 0 {
		s.status = domain.StatusNoContent
		s.closeDone()
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Participant returns who the session belongs to.
func (s *Session) Participant() domain.Participant { return s.participant }

// Start moves a loading session onto its first question.
func (s *Session) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed || s.status != domain.StatusLoading {
		return
	}
	s.status = domain.StatusActive
	s.index = 0
	s.enterQuestionLocked()
	s.broadcastLocked()
}

// Answer selects option for the current question. Only the first selection per
// question is accepted; later ones return accepted=false and no error.
func (s *Session) Answer(option int) (answer domain.Answer, accepted bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed || s.status != domain.StatusActive {
		return domain.Answer{}, false, domain.ErrSessionNotActive
	}
	if s.locked {
		return domain.Answer{}, false, nil
	}
	q := s.questions[s.index]
	if option < 0 || option >= len(q.Options) {
		return domain.Answer{}, false, fmt.Errorf("%w: %d", domain.ErrOptionNotFound, option)
	}

	s.locked = true
	s.stopTimersLocked()

	isCorrect := q.IsCorrect(q.Options[option])
	answer = domain.Answer{
		QuestionID: q.ID,
		Prompt:     q.Prompt,
		Selected:   domain.IndexToLetter(option),
		Correct:    domain.IndexToLetter(q.CorrectIndex()),
		IsCorrect:  isCorrect,
		Topic:      q.Topic,
		AnsweredAt: s.clock.Now(),
	}
	s.answers = append(s.answers, answer)
	if isCorrect {
		s.score++
		telemetry.AnswersRecorded.WithLabelValues(telemetry.OutcomeCorrect).Inc()
	} else {
		telemetry.AnswersRecorded.WithLabelValues(telemetry.OutcomeIncorrect).Inc()
	}

	s.feedback = &domain.Feedback{Selected: answer.Selected, IsCorrect: isCorrect}
	if s.cfg.RevealCorrect {
		s.feedback.Correct = answer.Correct
	}

	gen := s.gen
	s.advance = s.clock.AfterFunc(s.cfg.FeedbackDelay, func() { s.onFeedbackElapsed(gen) })
	s.broadcastLocked()
	return answer, true, nil
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() domain.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Result returns the result record once the session has finished.
func (s *Session) Result() (domain.ResultRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return domain.ResultRecord{}, false
	}
	return cloneRecord(*s.result), true
}

// PersistError reports the outcome of the result emission, nil on success or before finishing.
func (s *Session) PersistError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistErr
}

// Wait returns a channel closed when the session can no longer produce work:
// the result emission was attempted, or the session ended without a result.
func (s *Session) Wait() <-chan struct{} {
	return s.done
}

// Close disposes the session. Pending timers are cancelled and no transition
// fires afterwards. An in-flight result emission is left to complete.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	s.disposed = true
	s.gen++
	s.stopTimersLocked()

	finished := s.status == domain.StatusFinished
	if s.status == domain.StatusActive || s.status == domain.StatusLoading {
		s.status = domain.StatusClosed
	}
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
	if !finished {
		s.closeDone()
	}
}

// Subscribe returns a channel of snapshots, primed with the current one.
// The caller must invoke cancel to avoid leaks.
func (s *Session) Subscribe() (<-chan domain.SessionSnapshot, func()) {
	ch := make(chan domain.SessionSnapshot, 8)

	s.mu.Lock()
	if s.disposed {
		ch <- s.snapshotLocked()
		close(ch)
		s.mu.Unlock()
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) onTick(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed || gen != s.gen || s.status != domain.StatusActive || s.locked {
		return
	}
	s.countdown--
	if s.countdown <= 0 {
		s.countdown = 0
		s.timeoutLocked()
	} else {
		s.armTickLocked()
	}
	s.broadcastLocked()
}

func (s *Session) onFeedbackElapsed(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed || gen != s.gen || s.status != domain.StatusActive {
		return
	}
	s.advanceLocked()
	s.broadcastLocked()
}

func (s *Session) timeoutLocked() {
	q := s.questions[s.index]
	telemetry.AnswersRecorded.WithLabelValues(telemetry.OutcomeTimeout).Inc()
	if s.cfg.TimeoutPolicy == TimeoutIncorrect {
		s.answers = append(s.answers, domain.Answer{
			QuestionID: q.ID,
			Prompt:     q.Prompt,
			Correct:    domain.IndexToLetter(q.CorrectIndex()),
			Topic:      q.Topic,
			TimedOut:   true,
			AnsweredAt: s.clock.Now(),
		})
	}
	slog.Debug("question timed out", "session", s.id, "index", s.index, "policy", s.cfg.TimeoutPolicy)
	s.advanceLocked()
}

func (s *Session) advanceLocked() {
	s.stopTimersLocked()
	if s.index < len(s.questions)-1 {
		s.index++
		s.enterQuestionLocked()
		return
	}
	s.finishLocked()
}

func (s *Session) enterQuestionLocked() {
	s.gen++
	s.countdown = s.cfg.QuestionBudget
	s.locked = false
	s.feedback = nil
	s.armTickLocked()
}

func (s *Session) armTickLocked() {
	gen := s.gen
	s.tick = s.clock.AfterFunc(s.cfg.Tick, func() { s.onTick(gen) })
}

func (s *Session) stopTimersLocked() {
	if s.tick != nil {
		s.tick.Stop()
		s.tick = nil
	}
	if s.advance != nil {
		s.advance.Stop()
		s.advance = nil
	}
}

func (s *Session) finishLocked() {
	s.gen++
	s.status = domain.StatusFinished
	s.locked = true
	s.countdown = 0

	correct := 0
	for _, a := range s.answers {
		if a.IsCorrect {
			correct++
		}
	}
	total := len(s.questions)
	grade, pct := domain.CalculateGrade(s.score, total)

	rec := domain.ResultRecord{
		ID:             uuid.NewString(),
		SessionID:      s.id,
		Participant:    s.participant,
		Score:          s.score,
		TotalQuestions: total,
		Grade:          grade,
		Percentage:     pct.Round(2),
		CorrectCount:   correct,
		IncorrectCount: len(s.answers) - correct,
		Answers:        append([]domain.Answer(nil), s.answers...),
		AssignedTopics: append([]string(nil), s.assignment.Topics...),
		QuestionsLimit: s.assignment.QuestionsLimit,
		CompletedAt:    s.clock.Now(),
	}
	s.result = &rec

	slog.Info("quiz finished",
		"session", s.id,
		"score", rec.Score,
		"total", rec.TotalQuestions,
		"grade", rec.Grade,
	)
	go s.emit(cloneRecord(rec))
}

// cloneRecord copies the slices so the stored record is never shared.
func cloneRecord(rec domain.ResultRecord) domain.ResultRecord {
	rec.Answers = append([]domain.Answer(nil), rec.Answers...)
	rec.AssignedTopics = append([]string(nil), rec.AssignedTopics...)
	return rec
}

// MaxDuration is the longest the session can run if every question times out
// or is answered at the last tick.
func (s *Session) MaxDuration() time.Duration {
	perQuestion := time.Duration(s.cfg.QuestionBudget)*s.cfg.Tick + s.cfg.FeedbackDelay
	return time.Duration(len(s.questions)) * perQuestion
}

// emit hands the record to the sink. Failures are logged and kept for
// inspection; they never change the finished state.
func (s *Session) emit(rec domain.ResultRecord) {
	defer s.closeDone()
	if s.sink == nil {
		return
	}

	attempt := 0
	op := func() error {
		attempt++
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.PersistTimeout)
		defer cancel()
		return s.sink.PersistResult(ctx, rec)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.cfg.PersistBackoff
	retry := backoff.WithMaxRetries(policy, uint64(s.cfg.PersistAttempts-1))

	err := backoff.RetryNotify(op, retry, func(err error, wait time.Duration) {
		slog.Warn("persist result retrying", "session", s.id, "attempt", attempt, "wait", wait, "error", err)
	})
	if err != nil {
		err = fmt.Errorf("%w: %w", domain.ErrPersistenceFailure, err)
		slog.Error("persist result failed", "session", s.id, "attempts", attempt, "error", err)
		telemetry.ResultsPersisted.WithLabelValues(telemetry.OutcomeFailed).Inc()
	} else {
		telemetry.ResultsPersisted.WithLabelValues(telemetry.OutcomeOK).Inc()
	}

	s.mu.Lock()
	s.persistErr = err
	s.mu.Unlock()
}

func (s *Session) closeDone() {
	s.doneOnce.Do(func() { close(s.done) })
}

func (s *Session) broadcastLocked() {
	snap := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// Drop the oldest snapshot so a slow reader never blocks the timers.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

func (s *Session) snapshotLocked() domain.SessionSnapshot {
	snap := domain.SessionSnapshot{
		SessionID: s.id,
		Status:    s.status,
		Index:     s.index,
		Total:     len(s.questions),
		Countdown: s.countdown,
		Score:     s.score,
		Answered:  len(s.answers),
		Locked:    s.locked,
		UpdatedAt: s.clock.Now(),
	}
	if s.status == domain.StatusActive {
		q := s.questions[s.index]
		snap.Question = &domain.QuestionView{
			ID:      q.ID,
			Topic:   q.Topic,
			Prompt:  q.Prompt,
			Options: append([]string(nil), q.Options...),
		}
	}
	if s.feedback != nil {
		fb := *s.feedback
		snap.Feedback = &fb
	}
	if s.result != nil {
		rec := cloneRecord(*s.result)
		snap.Result = &rec
	}
	return snap
}
