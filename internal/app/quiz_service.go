package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"assessment-service/internal/domain"
	"assessment-service/internal/telemetry"
	"github.com/google/uuid"
)

// SessionRepository abstracts where live sessions are tracked (in-memory, Redis, etc).
type SessionRepository interface {
	Put(session *Session)
	Get(sessionID string) (*Session, bool)
	// Delete reports whether the session was present.
	Delete(sessionID string) bool
	// Touch extends whatever liveness the store keeps for a session.
	Touch(sessionID string)
	All() []*Session
}

// ContentProvider supplies the question bank and group metadata.
type ContentProvider interface {
	FetchBank(ctx context.Context) ([]domain.Question, error)
	// FetchGroup returns domain.ErrGroupNotFound for unknown ids.
	FetchGroup(ctx context.Context, groupID string) (domain.Group, error)
	ListGroups(ctx context.Context) ([]domain.Group, error)
}

// ParticipantRecorder stores who started an assessment. Optional.
type ParticipantRecorder interface {
	RecordParticipant(ctx context.Context, p domain.Participant) error
}

// Options configures a QuizService.
type Options struct {
	Session      SessionConfig
	TopicQuota   int
	DefaultLimit int
	Clock        Clock
	Participants ParticipantRecorder
}

// QuizService contains the assessment use cases.
type QuizService struct {
	sessions     SessionRepository
	content      ContentProvider
	sink         ResultSink
	participants ParticipantRecorder
	selector     *Selector
	cfg          SessionConfig
	defaultLimit int
	clock        Clock

	wg sync.WaitGroup
}

func NewQuizService(store SessionRepository, content ContentProvider, sink ResultSink, opts Options) *QuizService {
	if opts.Clock == nil {
		opts.Clock = RealClock()
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = domain.DefaultQuestionsLimit
	}
	return &QuizService{
		sessions:     store,
		content:      content,
		sink:         sink,
		participants: opts.Participants,
		selector:     NewSelector(opts.TopicQuota),
		cfg:          opts.Session.withDefaults(),
		defaultLimit: opts.DefaultLimit,
		clock:        opts.Clock,
	}
}

// StartRequest carries the participant identity collected at entry.
type StartRequest struct {
	Participant domain.Participant
}

// Preview is a selection computed without starting a session.
type Preview struct {
	Group      domain.Group
	Assignment domain.TopicAssignment
	TopicQuota int
	Questions  []domain.Question
}

// Start validates the participant, selects questions for their group and
// starts a new session on the first question.
func (s *QuizService) Start(ctx context.Context, req StartRequest) (*Session, error) {
	if err := req.Participant.Validate(); err != nil {
		telemetry.SessionsRejected.WithLabelValues("missing_identity").Inc()
		return nil, err
	}

	preview, err := s.Preview(ctx, req.Participant.GroupID)
	if err != nil {
		var noContent *domain.NoContentError
		switch {
		case errors.As(err, &noContent):
			telemetry.SessionsRejected.WithLabelValues("no_content").Inc()
			slog.Warn("no questions for group",
				"group", noContent.GroupID,
				"bank", noContent.BankSize,
				"candidates", noContent.Candidates,
				"assigned", noContent.AssignedTopics,
				"available", noContent.AvailableTopics,
			)
		case errors.Is(err, domain.ErrGroupNotFound):
			telemetry.SessionsRejected.WithLabelValues("group_not_found").Inc()
			slog.Warn("group not found", "group", req.Participant.GroupID, "error", err)
		}
		return nil, err
	}

	if s.participants != nil {
		if err := s.participants.RecordParticipant(ctx, req.Participant); err != nil {
			slog.Error("record participant failed", "name", req.Participant.Name, "error", err)
		}
	}

	session := NewSession(SessionParams{
		ID:          uuid.NewString(),
		Participant: req.Participant,
		Assignment:  preview.Assignment,
		Questions:   preview.Questions,
		Config:      s.cfg,
		Sink:        s.sink,
		Clock:       s.clock,
	})
	s.sessions.Put(session)
	telemetry.ActiveSessions.Inc()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		<-session.Wait()
	}()

	session.Start()
	telemetry.SessionsStarted.Inc()
	slog.Info("quiz started",
		"session", session.ID(),
		"group", req.Participant.GroupID,
		"questions", len(preview.Questions),
	)
	return session, nil
}

// Preview runs the selection for a group without creating a session.
func (s *QuizService) Preview(ctx context.Context, groupID string) (Preview, error) {
	group, err := s.content.FetchGroup(ctx, groupID)
	if err != nil {
		return Preview{}, fmt.Errorf("fetch group %s: %w", groupID, err)
	}
	bank, err := s.content.FetchBank(ctx)
	if err != nil {
		return Preview{}, fmt.Errorf("fetch bank: %w", err)
	}

	assignment := group.Assignment(s.defaultLimit)
	questions := s.selector.Select(bank, assignment.Topics, assignment.QuestionsLimit)
	if len(questions) == 0 {
		return Preview{}, &domain.NoContentError{
			GroupID:         groupID,
			BankSize:        len(bank),
			Candidates:      len(FilterByTopics(bank, assignment.Topics)),
			AssignedTopics:  assignment.Topics,
			AvailableTopics: BankTopics(bank),
		}
	}
	return Preview{
		Group:      group,
		Assignment: assignment,
		TopicQuota: s.selector.Quota(),
		Questions:  questions,
	}, nil
}

// Answer forwards an option choice to the session.
func (s *QuizService) Answer(_ context.Context, sessionID string, option int) (domain.Answer, bool, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.Answer{}, false, domain.ErrSessionNotFound
	}
	answer, accepted, err := session.Answer(option)
	if accepted {
		s.sessions.Touch(sessionID)
	}
	return answer, accepted, err
}

// Snapshot returns the current state of a session.
func (s *QuizService) Snapshot(_ context.Context, sessionID string) (domain.SessionSnapshot, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.SessionSnapshot{}, domain.ErrSessionNotFound
	}
	return session.Snapshot(), nil
}

// Subscribe returns a channel that receives snapshots of a session.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *QuizService) Subscribe(_ context.Context, sessionID string) (<-chan domain.SessionSnapshot, func(), error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch, cancel := session.Subscribe()
	return ch, cancel, nil
}

// Leave disposes the session and drops it from the store.
func (s *QuizService) Leave(_ context.Context, sessionID string) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return
	}
	session.Close()
	if s.sessions.Delete(sessionID) {
		telemetry.ActiveSessions.Dec()
	}
}

// Groups lists the groups a participant can pick from.
func (s *QuizService) Groups(ctx context.Context) ([]domain.Group, error) {
	return s.content.ListGroups(ctx)
}

// Shutdown disposes every live session and waits for pending result emissions.
func (s *QuizService) Shutdown(ctx context.Context) error {
	for _, session := range s.sessions.All() {
		s.Leave(ctx, session.ID())
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// MultiSink fans a record out to every sink and joins their errors.
type MultiSink []ResultSink

func (m MultiSink) PersistResult(ctx context.Context, rec domain.ResultRecord) error {
	var errs []error
	for _, sink := range m {
		if err := sink.PersistResult(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
