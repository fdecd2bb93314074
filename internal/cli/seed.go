package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"assessment-service/internal/config"
	"assessment-service/internal/domain"
	"assessment-service/internal/infra/memory"
	"assessment-service/internal/infra/postgres"
	redisstore "assessment-service/internal/infra/redis"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewSeedCmd loads a bank fixture into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load sections, groups and questions from a YAML or JSON file into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if file == "" {
				file = cfg.Content.File
			}
			if file == "" {
				return fmt.Errorf("no content file given")
			}
			content, err := memory.LoadContentFile(file)
			if err != nil {
				return err
			}
			if err := runMigrations(cmd.Context(), cfg); err != nil {
				return err
			}

			db := postgres.OpenBun(cfg.Postgres.URL)
			defer db.Close()
			if err := postgres.Seed(cmd.Context(), db, content.Sections, content.Groups, content.Questions); err != nil {
				return err
			}
			if err := invalidateCachedContent(cmd.Context(), cfg, content.Groups); err != nil {
				return fmt.Errorf("invalidate cached content: %w", err)
			}
			slog.Info("content seeded",
				"file", file,
				"sections", len(content.Sections),
				"groups", len(content.Groups),
				"questions", len(content.Questions),
			)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "content file (defaults to content.file)")
	return cmd
}

// invalidateCachedContent drops the redis copies of the bank and the seeded
// groups so running servers reload them from Postgres.
func invalidateCachedContent(ctx context.Context, cfg config.Config, groups []domain.Group) error {
	if cfg.Redis.Addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer client.Close()

	ids := make([]string, 0, len(groups))
	for _, g := range groups {
		ids = append(ids, g.ID)
	}
	cache := redisstore.NewContentCache(client, nil, config.TTLDuration(cfg.Content.TTL, 10*time.Minute))
	return cache.Invalidate(ctx, ids...)
}
