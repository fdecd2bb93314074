package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"assessment-service/internal/app"
	"assessment-service/internal/domain"
)

type groupView struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Topics         []string `json:"topics"`
	QuestionsLimit int      `json:"questionsLimit"`
}

// GroupsHandler lists the groups a participant can pick before starting.
func GroupsHandler(service *app.QuizService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		groups, err := service.Groups(r.Context())
		if err != nil {
			slog.Error("list groups failed", "error", err)
			http.Error(w, "could not list groups", http.StatusInternalServerError)
			return
		}
		out := make([]groupView, 0, len(groups))
		for _, g := range groups {
			out = append(out, toGroupView(g))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	}
}

func toGroupView(g domain.Group) groupView {
	a := g.Assignment(0)
	return groupView{ID: g.ID, Name: g.Name, Topics: a.Topics, QuestionsLimit: g.QuestionsLimit}
}

// HealthHandler answers health checks.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("ok"))
}
