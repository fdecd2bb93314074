package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"assessment-service/internal/app"
	"assessment-service/internal/config"
	"assessment-service/internal/domain"
	"assessment-service/internal/infra/memory"
	pgstore "assessment-service/internal/infra/postgres"
	redisstore "assessment-service/internal/infra/redis"
	transport "assessment-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the assessment server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// deps are the backing stores chosen from config.
type deps struct {
	redis        *redis.Client
	pool         *pgxpool.Pool
	content      app.ContentProvider
	sessions     app.SessionRepository
	sink         app.MultiSink
	participants app.ParticipantRecorder
}

func (d *deps) Close() {
	if d.pool != nil {
		d.pool.Close()
	}
	if d.redis != nil {
		_ = d.redis.Close()
	}
}

func buildDeps(ctx context.Context, cfg config.Config) (*deps, error) {
	d := &deps{}

	if cfg.Redis.Addr != "" {
		d.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var loader app.ContentProvider
	switch {
	case cfg.Postgres.URL != "":
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		d.pool = pool
		loader = pgstore.NewContentLoader(pool)
	case cfg.Content.File != "":
		content, err := memory.LoadContentFile(cfg.Content.File)
		if err != nil {
			d.Close()
			return nil, err
		}
		loader = memory.NewContentProvider(content)
	default:
		slog.Warn("no postgres url or content file configured, serving the built-in sample bank")
		loader = memory.NewStaticContentProvider(sampleBank(), sampleGroups())
	}

	contentTTL := config.TTLDuration(cfg.Content.TTL, 10*time.Minute)
	if d.redis != nil {
		d.content = redisstore.NewContentCache(d.redis, loader, contentTTL)
		d.sessions = redisstore.NewSessionStore(d.redis, config.TTLDuration(cfg.Redis.TTL, 10*time.Minute))
		d.sink = append(d.sink, redisstore.NewResultStream(d.redis, cfg.Redis.ResultsStream))
	} else {
		d.content = memory.NewContentCache(loader, contentTTL)
		d.sessions = memory.NewSessionStore()
	}

	if d.pool != nil {
		store := pgstore.NewResultStore(d.pool)
		d.sink = append(d.sink, store)
		d.participants = store
	}
	if len(d.sink) == 0 {
		d.sink = append(d.sink, memory.NewResultLog())
	}
	return d, nil
}

func sessionConfig(cfg config.Config) (app.SessionConfig, error) {
	policy, err := app.ParseTimeoutPolicy(cfg.Quiz.TimeoutPolicy)
	if err != nil {
		return app.SessionConfig{}, err
	}
	sc := app.DefaultSessionConfig()
	sc.QuestionBudget = cfg.Quiz.QuestionBudget
	sc.Tick = config.TTLDuration(cfg.Quiz.Tick, sc.Tick)
	sc.FeedbackDelay = config.TTLDuration(cfg.Quiz.FeedbackDelay, sc.FeedbackDelay)
	sc.TimeoutPolicy = policy
	sc.RevealCorrect = cfg.Quiz.RevealCorrect
	sc.PersistAttempts = cfg.Quiz.PersistAttempts
	return sc, nil
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	sc, err := sessionConfig(cfg)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrations(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	d, err := buildDeps(ctx, cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	service := app.NewQuizService(d.sessions, d.content, d.sink, app.Options{
		Session:      sc,
		TopicQuota:   cfg.Quiz.TopicQuota,
		DefaultLimit: cfg.Quiz.DefaultLimit,
		Participants: d.participants,
	})
	wsHandler := transport.NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", transport.HealthHandler)
	mux.HandleFunc("/groups", transport.GroupsHandler(service))
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("starting assessment service", "port", finalPort, "policy", sc.TimeoutPolicy)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		if serr := service.Shutdown(shutdownCtx); serr != nil {
			slog.Warn("pending results not flushed", "error", serr)
		}
		return err
	})
	return g.Wait()
}

// sampleBank provides a minimal bank so the server runs without a database.
func sampleBank() []domain.Question {
	return []domain.Question{
		{ID: "m1", Topic: "Mathematics", Prompt: "What is 2 + 2?", Options: []string{"3", "4", "5"}, CorrectAnswer: "4"},
		{ID: "m2", Topic: "Mathematics", Prompt: "What is 3 x 3?", Options: []string{"6", "9", "12"}, CorrectAnswer: "9"},
		{ID: "p1", Topic: "Physics", Prompt: "Unit of force?", Options: []string{"Joule", "Newton", "Watt"}, CorrectAnswer: "Newton"},
	}
}

func sampleGroups() []domain.Group {
	return []domain.Group{
		{ID: "demo", Name: "Demo", Topics: []string{"Mathematics", "Physics"}, QuestionsLimit: 5},
	}
}
