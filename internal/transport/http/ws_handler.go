package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"assessment-service/internal/app"
	"assessment-service/internal/domain"
	"github.com/gorilla/websocket"
)

// Error codes sent to the client in error messages.
const (
	CodeMissingIdentity = "missing_identity"
	CodeGroupNotFound   = "group_not_found"
	CodeNoContent       = "no_content"
	CodeInvalidAnswer   = "invalid_answer"
	CodeNotActive       = "not_active"
	CodeUnsupported     = "unsupported"
	CodeInternal        = "internal"
)

type WSHandler struct {
	service  *app.QuizService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// answerPayload selects by zero-based option index or by letter.
type answerPayload struct {
	Option *int   `json:"option"`
	Letter string `json:"letter"`
}

type answerResult struct {
	Accepted bool          `json:"accepted"`
	Answer   domain.Answer `json:"answer"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type noContentDetails struct {
	GroupID         string   `json:"groupId"`
	BankSize        int      `json:"bankSize"`
	Candidates      int      `json:"candidates"`
	AssignedTopics  []string `json:"assignedTopics"`
	AvailableTopics []string `json:"availableTopics"`
}

// ServeWS upgrades the request, starts a session for the participant named in
// the query and streams its snapshots until either side closes.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	participant := domain.Participant{
		Name:    q.Get("name"),
		Surname: q.Get("surname"),
		Group:   q.Get("group"),
		GroupID: q.Get("groupId"),
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	session, err := h.service.Start(r.Context(), app.StartRequest{Participant: participant})
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: startError(err)})
		return
	}
	sessionID := session.ID()
	defer h.service.Leave(r.Context(), sessionID)

	updates, cancel, err := h.service.Subscribe(r.Context(), sessionID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Code: CodeInternal, Message: err.Error()}})
		return
	}
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// Only the writer goroutine touches conn for writes.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				slog.Debug("ws write failed", "session", sessionID, "error", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "snapshot", Payload: update}:
				case <-closeSignals:
					return
				case <-writerDone:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		var reply outboundMessage[any]
		switch inbound.Type {
		case "answer":
			option, ok := parseOption(inbound.Payload)
			if !ok {
				reply = errorMessage(CodeInvalidAnswer, "invalid answer payload")
				break
			}
			answer, accepted, err := h.service.Answer(r.Context(), sessionID, option)
			switch {
			case errors.Is(err, domain.ErrOptionNotFound):
				reply = errorMessage(CodeInvalidAnswer, err.Error())
			case err != nil:
				reply = errorMessage(CodeNotActive, err.Error())
			default:
				reply = outboundMessage[any]{Type: "answerResult", Payload: answerResult{Accepted: accepted, Answer: answer}}
			}
		default:
			reply = errorMessage(CodeUnsupported, "unsupported message type")
		}
		if !enqueue(send, writerDone, reply) {
			break
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// enqueue hands msg to the writer and reports false once the writer has stopped.
func enqueue(send chan<- outboundMessage[any], writerDone <-chan struct{}, msg outboundMessage[any]) bool {
	select {
	case send <- msg:
		return true
	case <-writerDone:
		return false
	}
}

func parseOption(raw json.RawMessage) (int, bool) {
	var payload answerPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return 0, false
	}
	if payload.Option != nil {
		return *payload.Option, true
	}
	if payload.Letter != "" {
		return domain.LetterToIndex(payload.Letter)
	}
	return 0, false
}

func errorMessage(code, message string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Code: code, Message: message}}
}

// startError maps a start failure to its client-facing code.
func startError(err error) errorPayload {
	var noContent *domain.NoContentError
	switch {
	case errors.As(err, &noContent):
		return errorPayload{
			Code:    CodeNoContent,
			Message: "no questions are available for your group",
			Details: noContentDetails{
				GroupID:         noContent.GroupID,
				BankSize:        noContent.BankSize,
				Candidates:      noContent.Candidates,
				AssignedTopics:  noContent.AssignedTopics,
				AvailableTopics: noContent.AvailableTopics,
			},
		}
	case errors.Is(err, domain.ErrMissingIdentity):
		return errorPayload{Code: CodeMissingIdentity, Message: err.Error()}
	case errors.Is(err, domain.ErrGroupNotFound):
		return errorPayload{Code: CodeGroupNotFound, Message: err.Error()}
	default:
		slog.Error("start session failed", "error", err)
		return errorPayload{Code: CodeInternal, Message: "could not start the quiz"}
	}
}
