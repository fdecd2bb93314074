package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"assessment-service/internal/app"
	"assessment-service/internal/domain"
)

func TestContentCacheCachesBank(t *testing.T) {
	loader := &countingLoader{ContentProvider: NewStaticContentProvider(sampleBank(), sampleGroups())}
	cache := NewContentCache(loader, time.Minute)

	if _, err := cache.FetchBank(context.Background()); err != nil {
		t.Fatalf("fetch bank: %v", err)
	}
	if loader.bankCalls != 1 {
		t.Fatalf("expected loader once, got %d", loader.bankCalls)
	}

	bank, err := cache.FetchBank(context.Background())
	if err != nil {
		t.Fatalf("fetch bank 2: %v", err)
	}
	if loader.bankCalls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.bankCalls)
	}
	if len(bank) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(bank))
	}
}

func TestContentCacheExpires(t *testing.T) {
	loader := &countingLoader{ContentProvider: NewStaticContentProvider(sampleBank(), sampleGroups())}
	cache := NewContentCache(loader, time.Minute)
	now := time.Now()
	cache.clock = func() time.Time { return now }

	if _, err := cache.FetchGroup(context.Background(), "g1"); err != nil {
		t.Fatalf("fetch group: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := cache.FetchGroup(context.Background(), "g1"); err != nil {
		t.Fatalf("fetch group after expiry: %v", err)
	}
	if loader.groupCalls != 2 {
		t.Fatalf("expected reload after ttl, loader calls %d", loader.groupCalls)
	}
}

func TestContentCacheDoesNotCacheMissingGroup(t *testing.T) {
	loader := &countingLoader{ContentProvider: NewStaticContentProvider(sampleBank(), nil)}
	cache := NewContentCache(loader, time.Minute)

	for i := 0; i < 2; i++ {
		_, err := cache.FetchGroup(context.Background(), "missing")
		if !errors.Is(err, domain.ErrGroupNotFound) {
			t.Fatalf("expected group not found, got %v", err)
		}
	}
	if loader.groupCalls != 2 {
		t.Fatalf("expected every miss to reach the loader, got %d", loader.groupCalls)
	}
}

type countingLoader struct {
	app.ContentProvider
	bankCalls  int
	groupCalls int
}

func (l *countingLoader) FetchBank(ctx context.Context) ([]domain.Question, error) {
	l.bankCalls++
	return l.ContentProvider.FetchBank(ctx)
}

func (l *countingLoader) FetchGroup(ctx context.Context, groupID string) (domain.Group, error) {
	l.groupCalls++
	return l.ContentProvider.FetchGroup(ctx, groupID)
}

func sampleBank() []domain.Question {
	return []domain.Question{
		{ID: "q1", Topic: "Math", Prompt: "What is 2 + 2?", Options: []string{"3", "4"}, CorrectAnswer: "4"},
		{ID: "q2", Topic: "Physics", Prompt: "Unit of force?", Options: []string{"Newton", "Joule"}, CorrectAnswer: "Newton"},
	}
}

func sampleGroups() []domain.Group {
	return []domain.Group{{ID: "g1", Name: "Group 1", Topics: []string{"Math"}, QuestionsLimit: 10}}
}
