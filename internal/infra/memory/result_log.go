package memory

import (
	"context"
	"sync"

	"assessment-service/internal/domain"
)

// ResultLog keeps result records in memory, used when no database is configured.
type ResultLog struct {
	mu      sync.RWMutex
	records []domain.ResultRecord
}

func NewResultLog() *ResultLog {
	return &ResultLog{}
}

func (l *ResultLog) PersistResult(_ context.Context, rec domain.ResultRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, rec)
	return nil
}

// Records returns a copy of everything persisted so far.
func (l *ResultLog) Records() []domain.ResultRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]domain.ResultRecord(nil), l.records...)
}
