package redis

import (
	"fmt"
	"testing"
	"time"

	"assessment-service/internal/app"
	"assessment-service/internal/domain"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestSessionStoreSetsAndClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewSessionStore(client, time.Minute)

	store.Put(app.NewSession(app.SessionParams{
		ID:          "s-1",
		Participant: domain.Participant{Name: "Ali", Group: "A", GroupID: "g1"},
	}))
	if !mr.Exists("quiz:session:s-1") {
		t.Fatalf("expected redis key to be set")
	}
	if got, _ := mr.Get("quiz:session:s-1"); got != "g1" {
		t.Fatalf("expected group marker, got %q", got)
	}

	store.Delete("s-1")
	if mr.Exists("quiz:session:s-1") {
		t.Fatalf("expected redis key to be removed")
	}
	if _, ok := store.Get("s-1"); ok {
		t.Fatalf("expected session gone")
	}
}

func TestSessionStoreLivenessOutlastsLongSession(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewSessionStore(client, 10*time.Minute)

	questions := make([]domain.Question, 100)
	for i := range questions {
		questions[i] = domain.Question{ID: fmt.Sprintf("q%d", i), Topic: "Math", Options: []string{"a", "b"}, CorrectAnswer: "a"}
	}
	session := app.NewSession(app.SessionParams{
		ID:          "s-long",
		Participant: domain.Participant{Name: "Ali", Group: "A", GroupID: "g1"},
		Questions:   questions,
	})
	store.Put(session)

	mr.FastForward(11 * time.Minute)
	if !mr.Exists("quiz:session:s-long") {
		t.Fatalf("liveness key expired while the session can still be running")
	}

	mr.FastForward(session.MaxDuration())
	if mr.Exists("quiz:session:s-long") {
		t.Fatalf("expected liveness key to expire after the longest possible run")
	}
}

func TestSessionStoreTouchExtendsLiveness(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewSessionStore(client, time.Minute)
	store.Put(app.NewSession(app.SessionParams{
		ID:          "s-1",
		Participant: domain.Participant{Name: "Ali", Group: "A", GroupID: "g1"},
	}))

	mr.FastForward(50 * time.Second)
	store.Touch("s-1")
	mr.FastForward(50 * time.Second)
	if !mr.Exists("quiz:session:s-1") {
		t.Fatalf("expected touch to extend the liveness key")
	}

	if !store.Delete("s-1") {
		t.Fatalf("expected delete to report removal")
	}
	if store.Delete("s-1") {
		t.Fatalf("expected second delete to be a no-op")
	}
}
