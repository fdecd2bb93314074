package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultQuestionsLimit is used when a group does not carry a positive limit.
const DefaultQuestionsLimit = 100

// Question is a single multiple-choice item of the bank.
type Question struct {
	ID            string   `json:"id" yaml:"id"`
	Topic         string   `json:"topic" yaml:"topic"`
	Prompt        string   `json:"prompt" yaml:"prompt"`
	Options       []string `json:"options" yaml:"options"`
	CorrectAnswer string   `json:"correctAnswer" yaml:"correct_answer"`
	// SourceID is set on padded copies and points at the original question.
	SourceID string `json:"sourceId,omitempty" yaml:"-"`
}

// Validate checks the structural invariants of a question.
func (q Question) Validate() error {
	if q.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidQuestion)
	}
	if len(q.Options) < 2 {
		return fmt.Errorf("%w: question %s has %d options, need at least two", ErrInvalidQuestion, q.ID, len(q.Options))
	}
	if q.CorrectIndex() < 0 {
		return fmt.Errorf("%w: question %s correct answer is not one of its options", ErrInvalidQuestion, q.ID)
	}
	return nil
}

// CorrectIndex returns the position of the correct answer among the options, or -1.
func (q Question) CorrectIndex() int {
	for i, opt := range q.Options {
		if opt == q.CorrectAnswer {
			return i
		}
	}
	return -1
}

// IsCorrect reports whether option is exactly the correct answer.
func (q Question) IsCorrect(option string) bool {
	return option == q.CorrectAnswer
}

// Duplicate returns a content copy of q under a new identifier.
func (q Question) Duplicate(id string) Question {
	dup := q
	dup.ID = id
	if q.SourceID != "" {
		dup.SourceID = q.SourceID
	} else {
		dup.SourceID = q.ID
	}
	return dup
}

// IsDuplicate reports whether the question is a padded copy.
func (q Question) IsDuplicate() bool {
	return q.SourceID != ""
}

// Section names a topic; groups reference sections by id.
type Section struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Group is a participant group with its assigned topics.
type Group struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	// SubjectIDs are the raw subject references the topics were resolved from.
	SubjectIDs     []string `json:"subjectIds,omitempty" yaml:"subject_ids"`
	Topics         []string `json:"topics" yaml:"topics"`
	QuestionsLimit int      `json:"questionsLimit" yaml:"questions_limit"`
}

// Assignment derives the topic assignment, falling back to defaultLimit.
func (g Group) Assignment(defaultLimit int) TopicAssignment {
	limit := g.QuestionsLimit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit <= 0 {
		limit = DefaultQuestionsLimit
	}
	topics := make([]string, 0, len(g.Topics))
	seen := make(map[string]struct{}, len(g.Topics))
	for _, t := range g.Topics {
		if _, ok := seen[t]; ok || t == "" {
			continue
		}
		seen[t] = struct{}{}
		topics = append(topics, t)
	}
	return TopicAssignment{Topics: topics, QuestionsLimit: limit}
}

// TopicAssignment is what the selector consumes for one participant.
type TopicAssignment struct {
	Topics         []string `json:"topics"`
	QuestionsLimit int      `json:"questionsLimit"`
}

// Participant identifies the person taking the assessment.
type Participant struct {
	Name    string `json:"name"`
	Surname string `json:"surname"`
	Group   string `json:"group"`
	GroupID string `json:"groupId"`
}

// Validate returns an *IdentityError when required fields are absent.
func (p Participant) Validate() error {
	var missing []string
	if strings.TrimSpace(p.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(p.Group) == "" {
		missing = append(missing, "group")
	}
	if strings.TrimSpace(p.GroupID) == "" {
		missing = append(missing, "groupId")
	}
	if len(missing) > 0 {
		return &IdentityError{Missing: missing}
	}
	return nil
}

// Answer is the immutable record of one answered (or timed out) question.
type Answer struct {
	QuestionID string    `json:"questionId"`
	Prompt     string    `json:"question"`
	Selected   string    `json:"selectedAnswer"`
	Correct    string    `json:"correctAnswer"`
	IsCorrect  bool      `json:"isCorrect"`
	Topic      string    `json:"section"`
	TimedOut   bool      `json:"timedOut,omitempty"`
	AnsweredAt time.Time `json:"answeredAt"`
}

// ResultRecord is emitted once when a session finishes.
type ResultRecord struct {
	ID             string          `json:"id"`
	SessionID      string          `json:"sessionId"`
	Participant    Participant     `json:"participant"`
	Score          int             `json:"score"`
	TotalQuestions int             `json:"totalQuestions"`
	Grade          int             `json:"grade"`
	Percentage     decimal.Decimal `json:"percentage"`
	CorrectCount   int             `json:"correctCount"`
	IncorrectCount int             `json:"incorrectCount"`
	Answers        []Answer        `json:"answers"`
	AssignedTopics []string        `json:"groupSubjects"`
	QuestionsLimit int             `json:"questionsLimit"`
	CompletedAt    time.Time       `json:"date"`
}
