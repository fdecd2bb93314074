package app

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"assessment-service/internal/domain"
)

// DefaultTopicQuota is how many questions a chosen topic contributes.
const DefaultTopicQuota = 5

// Selector builds a balanced, shuffled question set from a bank.
type Selector struct {
	quota int

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewSelector(quota int) *Selector {
	return newSelectorWithRand(quota, rand.New(rand.NewSource(time.Now().UnixNano())))
}

func newSelectorWithRand(quota int, rnd *rand.Rand) *Selector {
	if quota <= 0 {
		quota = DefaultTopicQuota
	}
	return &Selector{quota: quota, rnd: rnd}
}

// Quota returns the per-topic question count.
func (s *Selector) Quota() int {
	return s.quota
}

// Select returns exactly limit questions whenever at least one bank question
// belongs to an assigned topic, and nil otherwise. Missing volume is padded
// with renamed copies of already selected questions.
func (s *Selector) Select(bank []domain.Question, topics []string, limit int) []domain.Question {
	if limit <= 0 {
		return nil
	}

	candidates := FilterByTopics(bank, topics)
	if len(candidates) == 0 {
		return nil
	}

	byTopic := make(map[string][]domain.Question)
	var available []string
	for _, q := range candidates {
		if _, ok := byTopic[q.Topic]; !ok {
			available = append(available, q.Topic)
		}
		byTopic[q.Topic] = append(byTopic[q.Topic], q)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	required := limit / s.quota
	chosen := available
	if len(available) >= required {
		chosen = shuffled(s.rnd, available)[:required]
	}

	selected := make([]domain.Question, 0, limit)
	used := make(map[string]struct{}, limit)
	for _, topic := range chosen {
		pool := shuffled(s.rnd, byTopic[topic])
		n := min(s.quota, len(pool))
		for _, q := range pool[:n] {
			selected = append(selected, q)
			used[q.ID] = struct{}{}
		}
	}

	if len(selected) < limit {
		var remaining []domain.Question
		for _, q := range candidates {
			if _, ok := used[q.ID]; !ok {
				remaining = append(remaining, q)
			}
		}
		remaining = shuffled(s.rnd, remaining)
		need := min(limit-len(selected), len(remaining))
		for _, q := range remaining[:need] {
			selected = append(selected, q)
			used[q.ID] = struct{}{}
		}
	}

	if n := len(selected); n > 0 && n < limit {
		need := limit - n
		for i := 0; i < need; i++ {
			src := selected[i%n]
			id := syntheticID(src.ID, i, used)
			used[id] = struct{}{}
			selected = append(selected, src.Duplicate(id))
		}
	}

	if len(selected) > limit {
		selected = selected[:limit]
	}
	return shuffled(s.rnd, selected)
}

// FilterByTopics keeps the bank questions whose topic is assigned.
func FilterByTopics(bank []domain.Question, topics []string) []domain.Question {
	assigned := make(map[string]struct{}, len(topics))
	for _, t := range topics {
		assigned[t] = struct{}{}
	}
	var out []domain.Question
	for _, q := range bank {
		if q.Topic == "" {
			continue
		}
		if _, ok := assigned[q.Topic]; ok {
			out = append(out, q)
		}
	}
	return out
}

// BankTopics lists the distinct topics present in a bank, sorted.
func BankTopics(bank []domain.Question) []string {
	seen := make(map[string]struct{})
	for _, q := range bank {
		if q.Topic != "" {
			seen[q.Topic] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func syntheticID(sourceID string, seq int, used map[string]struct{}) string {
	id := fmt.Sprintf("%s_dup_%d", sourceID, seq)
	for n := 1; ; n++ {
		if _, taken := used[id]; !taken {
			return id
		}
		id = fmt.Sprintf("%s_dup_%d_%d", sourceID, seq, n)
	}
}

// shuffled returns a Fisher-Yates permutation of a copy of in.
func shuffled[T any](rnd *rand.Rand, in []T) []T {
	out := make([]T, len(in))
	copy(out, in)
	for i := len(out) - 1; i > 0; i-- {
		j := rnd.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}
