package domain

import "time"

// SessionStatus is the externally visible state of a quiz session.
type SessionStatus string

const (
	StatusLoading   SessionStatus = "loading"
	StatusActive    SessionStatus = "active"
	StatusFinished  SessionStatus = "finished"
	StatusNoContent SessionStatus = "no_content"
	StatusClosed    SessionStatus = "closed"
)

// QuestionView is a question as shown to the participant, without its answer.
type QuestionView struct {
	ID      string   `json:"id"`
	Topic   string   `json:"topic"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
}

// Feedback is shown between an accepted answer and the automatic advance.
type Feedback struct {
	Selected  string `json:"selected"`
	Correct   string `json:"correct,omitempty"`
	IsCorrect bool   `json:"isCorrect"`
}

// SessionSnapshot is a point-in-time copy of a session's state.
type SessionSnapshot struct {
	SessionID string        `json:"sessionId"`
	Status    SessionStatus `json:"status"`
	Index     int           `json:"index"`
	Total     int           `json:"total"`
	Countdown int           `json:"countdown"`
	Score     int           `json:"score"`
	Answered  int           `json:"answered"`
	Locked    bool          `json:"locked"`
	Question  *QuestionView `json:"question,omitempty"`
	Feedback  *Feedback     `json:"feedback,omitempty"`
	Result    *ResultRecord `json:"result,omitempty"`
	UpdatedAt time.Time     `json:"updatedAt"`
}
