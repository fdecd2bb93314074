package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"assessment-service/internal/domain"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	pgmigrations "assessment-service/internal/infra/postgres/migrations"
)

// OpenBun opens a bun handle over pgdriver for migrations and seeding.
func OpenBun(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

// Migrate applies every pending migration and returns the applied group.
func Migrate(ctx context.Context, db *bun.DB) (*migrate.MigrationGroup, error) {
	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		return nil, fmt.Errorf("init migrator: %w", err)
	}
	group, err := migrator.Migrate(ctx)
	if err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return group, nil
}

// Seed upserts sections, groups and questions in one transaction.
func Seed(ctx context.Context, db *bun.DB, sections []domain.Section, groups []domain.Group, questions []domain.Question) error {
	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, s := range sections {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO sections (id, name) VALUES (?, ?) ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`,
				s.ID, s.Name); err != nil {
				return fmt.Errorf("upsert section %s: %w", s.ID, err)
			}
		}

		for _, g := range groups {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO student_groups (id, name, questions_limit) VALUES (?, ?, ?)
				 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, questions_limit = EXCLUDED.questions_limit`,
				g.ID, g.Name, g.QuestionsLimit); err != nil {
				return fmt.Errorf("upsert group %s: %w", g.ID, err)
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM group_sections WHERE group_id = ?`, g.ID); err != nil {
				return fmt.Errorf("reset group sections %s: %w", g.ID, err)
			}
			for pos, sectionID := range g.SubjectIDs {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO group_sections (group_id, section_id, position) VALUES (?, ?, ?) ON CONFLICT DO NOTHING`,
					g.ID, sectionID, pos); err != nil {
					return fmt.Errorf("link group %s to %s: %w", g.ID, sectionID, err)
				}
			}
		}

		for _, q := range questions {
			if err := q.Validate(); err != nil {
				return err
			}
			options, err := json.Marshal(q.Options)
			if err != nil {
				return fmt.Errorf("marshal options of %s: %w", q.ID, err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO questions (id, section, prompt, options, correct_answer) VALUES (?, ?, ?, ?::jsonb, ?)
				 ON CONFLICT (id) DO UPDATE SET section = EXCLUDED.section, prompt = EXCLUDED.prompt,
				 options = EXCLUDED.options, correct_answer = EXCLUDED.correct_answer`,
				q.ID, q.Topic, q.Prompt, string(options), q.CorrectAnswer); err != nil {
				return fmt.Errorf("upsert question %s: %w", q.ID, err)
			}
		}
		return nil
	})
}
