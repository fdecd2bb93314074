package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"assessment-service/internal/app"
	"assessment-service/internal/domain"
	"assessment-service/internal/infra/memory"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wsMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func newTestServer(t *testing.T, sink app.ResultSink) *httptest.Server {
	t.Helper()
	content := memory.NewStaticContentProvider(sampleBank(), sampleGroups())
	service := app.NewQuizService(memory.NewSessionStore(), memory.NewContentCache(content, time.Minute), sink, app.Options{
		Session: app.SessionConfig{FeedbackDelay: 10 * time.Millisecond},
	})

	wsHandler := NewWSHandler(service)
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	mux.HandleFunc("/groups", GroupsHandler(service))
	mux.HandleFunc("/healthz", HealthHandler)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func dial(t *testing.T, server *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	u := "ws" + server.URL[len("http"):] + "/ws?" + query
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil skips messages until one of the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, want string, match func(json.RawMessage) bool) json.RawMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var msg wsMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == want && (match == nil || match(msg.Payload)) {
			return msg.Payload
		}
	}
}

func TestWebSocketAnswerFlow(t *testing.T) {
	results := memory.NewResultLog()
	server := newTestServer(t, results)
	conn := dial(t, server, "groupId=g1&name=Ada&surname=Lovelace&group=CS-1")

	var snap domain.SessionSnapshot
	require.NoError(t, json.Unmarshal(readUntil(t, conn, "snapshot", nil), &snap))
	assert.Equal(t, domain.StatusActive, snap.Status)
	assert.Equal(t, 2, snap.Total)
	require.NotNil(t, snap.Question)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "answer", "payload": map[string]any{"option": 1}}))

	var res answerResult
	require.NoError(t, json.Unmarshal(readUntil(t, conn, "answerResult", nil), &res))
	assert.True(t, res.Accepted)
	assert.True(t, res.Answer.IsCorrect)

	// Second question, answered by letter.
	readUntil(t, conn, "snapshot", func(raw json.RawMessage) bool {
		var s domain.SessionSnapshot
		return json.Unmarshal(raw, &s) == nil && s.Index == 1 && !s.Locked
	})
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "answer", "payload": map[string]any{"letter": "a"}}))

	final := readUntil(t, conn, "snapshot", func(raw json.RawMessage) bool {
		var s domain.SessionSnapshot
		return json.Unmarshal(raw, &s) == nil && s.Status == domain.StatusFinished
	})
	var done domain.SessionSnapshot
	require.NoError(t, json.Unmarshal(final, &done))
	require.NotNil(t, done.Result)
	assert.Equal(t, 1, done.Result.Score)
	assert.Equal(t, 2, done.Result.TotalQuestions)

	require.Eventually(t, func() bool { return len(results.Records()) == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocketStartErrors(t *testing.T) {
	server := newTestServer(t, nil)

	cases := []struct {
		query string
		code  string
	}{
		{"groupId=g1&group=CS-1", CodeMissingIdentity},
		{"groupId=missing&name=Ada&group=X", CodeGroupNotFound},
		{"groupId=g2&name=Ada&group=CHEM-1", CodeNoContent},
	}
	for _, tc := range cases {
		conn := dial(t, server, tc.query)
		var payload errorPayload
		require.NoError(t, json.Unmarshal(readUntil(t, conn, "error", nil), &payload))
		assert.Equal(t, tc.code, payload.Code, tc.query)
	}
}

func TestWebSocketRejectsBadAnswer(t *testing.T) {
	server := newTestServer(t, nil)
	conn := dial(t, server, "groupId=g1&name=Ada&group=CS-1")
	readUntil(t, conn, "snapshot", nil)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "answer", "payload": map[string]any{"option": 9}}))
	var payload errorPayload
	require.NoError(t, json.Unmarshal(readUntil(t, conn, "error", nil), &payload))
	assert.Equal(t, CodeInvalidAnswer, payload.Code)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "hint"}))
	require.NoError(t, json.Unmarshal(readUntil(t, conn, "error", nil), &payload))
	assert.Equal(t, CodeUnsupported, payload.Code)
}

func TestGroupsEndpoint(t *testing.T) {
	server := newTestServer(t, nil)

	resp, err := http.Get(server.URL + "/groups")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var groups []groupView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&groups))
	require.Len(t, groups, 2)
	assert.Equal(t, "CHEM-1", groups[0].Name)
	assert.Equal(t, []string{"Math"}, groups[1].Topics)
}

func sampleBank() []domain.Question {
	return []domain.Question{
		{ID: "q1", Topic: "Math", Prompt: "What is 2 + 2?", Options: []string{"3", "4", "5"}, CorrectAnswer: "4"},
		{ID: "q2", Topic: "Math", Prompt: "What is 3 + 3?", Options: []string{"6", "7"}, CorrectAnswer: "7"},
	}
}

func sampleGroups() []domain.Group {
	return []domain.Group{
		{ID: "g1", Name: "CS-1", Topics: []string{"Math"}, QuestionsLimit: 2},
		{ID: "g2", Name: "CHEM-1", Topics: []string{"Chemistry"}, QuestionsLimit: 2},
	}
}

func TestEnqueueStopsWhenWriterExited(t *testing.T) {
	send := make(chan outboundMessage[any], 1)
	writerDone := make(chan struct{})

	require.True(t, enqueue(send, writerDone, errorMessage(CodeUnsupported, "first")))

	close(writerDone)
	result := make(chan bool, 1)
	go func() { result <- enqueue(send, writerDone, errorMessage(CodeUnsupported, "second")) }()

	select {
	case ok := <-result:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("enqueue blocked on a full buffer after the writer stopped")
	}
}
