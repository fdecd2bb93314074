package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"assessment-service/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// ResultStore writes result records and participant registrations.
type ResultStore struct {
	pool *pgxpool.Pool
}

func NewResultStore(pool *pgxpool.Pool) *ResultStore {
	return &ResultStore{pool: pool}
}

// PersistResult inserts the record once; replays of the same id are ignored.
func (s *ResultStore) PersistResult(ctx context.Context, rec domain.ResultRecord) error {
	answers, err := json.Marshal(rec.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	subjects, err := json.Marshal(rec.AssignedTopics)
	if err != nil {
		return fmt.Errorf("marshal subjects: %w", err)
	}

	const stmt = `
INSERT INTO results (
	id, session_id, name, surname, group_name, group_id,
	score, total_questions, grade, percentage, correct_count, incorrect_count,
	answers, group_subjects, questions_limit, completed_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::numeric, $11, $12, $13::jsonb, $14::jsonb, $15, $16)
ON CONFLICT (id) DO NOTHING`

	_, err = s.pool.Exec(ctx, stmt,
		rec.ID, rec.SessionID,
		rec.Participant.Name, rec.Participant.Surname, rec.Participant.Group, rec.Participant.GroupID,
		rec.Score, rec.TotalQuestions, rec.Grade, rec.Percentage.StringFixed(2),
		rec.CorrectCount, rec.IncorrectCount,
		string(answers), string(subjects), rec.QuestionsLimit, rec.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

func (s *ResultStore) RecordParticipant(ctx context.Context, p domain.Participant) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO participants (name, surname, group_name, group_id) VALUES ($1, $2, $3, $4)`,
		p.Name, p.Surname, p.Group, p.GroupID,
	)
	if err != nil {
		return fmt.Errorf("insert participant: %w", err)
	}
	return nil
}

// ResultsByGroup returns the records of a group, newest first.
func (s *ResultStore) ResultsByGroup(ctx context.Context, groupID string) ([]domain.ResultRecord, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id::text, session_id, name, surname, group_name, group_id,
       score, total_questions, grade, percentage::text, correct_count, incorrect_count,
       answers, group_subjects, questions_limit, completed_at
FROM results WHERE group_id = $1 ORDER BY completed_at DESC`, groupID)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var out []domain.ResultRecord
	for rows.Next() {
		var (
			rec               domain.ResultRecord
			pct               string
			answers, subjects []byte
		)
		err := rows.Scan(&rec.ID, &rec.SessionID,
			&rec.Participant.Name, &rec.Participant.Surname, &rec.Participant.Group, &rec.Participant.GroupID,
			&rec.Score, &rec.TotalQuestions, &rec.Grade, &pct, &rec.CorrectCount, &rec.IncorrectCount,
			&answers, &subjects, &rec.QuestionsLimit, &rec.CompletedAt)
		if err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		if err := rec.Percentage.UnmarshalText([]byte(pct)); err != nil {
			return nil, fmt.Errorf("parse percentage: %w", err)
		}
		if err := json.Unmarshal(answers, &rec.Answers); err != nil {
			return nil, fmt.Errorf("unmarshal answers: %w", err)
		}
		if err := json.Unmarshal(subjects, &rec.AssignedTopics); err != nil {
			return nil, fmt.Errorf("unmarshal subjects: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
