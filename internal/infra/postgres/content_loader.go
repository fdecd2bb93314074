package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"assessment-service/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// ContentLoader reads the question bank and groups from Postgres.
type ContentLoader struct {
	pool *pgxpool.Pool
}

func NewContentLoader(pool *pgxpool.Pool) *ContentLoader {
	return &ContentLoader{pool: pool}
}

// FetchBank loads every question; rows breaking question invariants are skipped.
func (l *ContentLoader) FetchBank(ctx context.Context) ([]domain.Question, error) {
	rows, err := l.pool.Query(ctx, `SELECT id, section, prompt, options, correct_answer FROM questions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	var bank []domain.Question
	for rows.Next() {
		var (
			q   domain.Question
			raw []byte
		)
		if err := rows.Scan(&q.ID, &q.Topic, &q.Prompt, &raw, &q.CorrectAnswer); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if err := json.Unmarshal(raw, &q.Options); err != nil {
			return nil, fmt.Errorf("unmarshal options of %s: %w", q.ID, err)
		}
		if err := q.Validate(); err != nil {
			slog.Warn("skipping invalid question", "id", q.ID, "error", err)
			continue
		}
		bank = append(bank, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read questions: %w", err)
	}
	return bank, nil
}

// groupsQuery resolves subject ids to section names; unknown subjects yield no topic.
const groupsQuery = `
SELECT g.id, g.name, g.questions_limit,
       COALESCE(array_agg(gs.section_id ORDER BY gs.position) FILTER (WHERE gs.section_id IS NOT NULL), '{}'),
       COALESCE(array_agg(s.name ORDER BY gs.position) FILTER (WHERE s.name IS NOT NULL), '{}')
FROM student_groups g
LEFT JOIN group_sections gs ON gs.group_id = g.id
LEFT JOIN sections s ON s.id = gs.section_id
WHERE $1 = '' OR g.id = $1
GROUP BY g.id, g.name, g.questions_limit
ORDER BY g.name`

func (l *ContentLoader) FetchGroup(ctx context.Context, groupID string) (domain.Group, error) {
	if groupID == "" {
		return domain.Group{}, domain.ErrGroupNotFound
	}
	groups, err := l.queryGroups(ctx, groupID)
	if err != nil {
		return domain.Group{}, err
	}
	if len(groups) == 0 {
		return domain.Group{}, domain.ErrGroupNotFound
	}
	return groups[0], nil
}

func (l *ContentLoader) ListGroups(ctx context.Context) ([]domain.Group, error) {
	return l.queryGroups(ctx, "")
}

func (l *ContentLoader) queryGroups(ctx context.Context, groupID string) ([]domain.Group, error) {
	rows, err := l.pool.Query(ctx, groupsQuery, groupID)
	if err != nil {
		return nil, fmt.Errorf("query groups: %w", err)
	}
	defer rows.Close()

	var groups []domain.Group
	for rows.Next() {
		var g domain.Group
		if err := rows.Scan(&g.ID, &g.Name, &g.QuestionsLimit, &g.SubjectIDs, &g.Topics); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read groups: %w", err)
	}
	return groups, nil
}
