package integration

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"assessment-service/internal/app"
	"assessment-service/internal/domain"
	pgstore "assessment-service/internal/infra/postgres"
	infraredis "assessment-service/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestAssessmentEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedContent(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	require.NoError(t, err)
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	require.NoError(t, err)
	defer redisClient.Close()

	loader := pgstore.NewContentLoader(pool)
	results := pgstore.NewResultStore(pool)
	content := infraredis.NewContentCache(redisClient, loader, 5*time.Minute)
	sessions := infraredis.NewSessionStore(redisClient, 5*time.Minute)
	sink := app.MultiSink{results, infraredis.NewResultStream(redisClient, "")}

	service := app.NewQuizService(sessions, content, sink, app.Options{
		Session:      app.SessionConfig{FeedbackDelay: 10 * time.Millisecond, PersistAttempts: 3},
		Participants: results,
	})

	groups, err := service.Groups(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 2)

	_, err = service.Start(ctx, app.StartRequest{Participant: participant("g-chem")})
	require.ErrorIs(t, err, domain.ErrNoContent)

	session, err := service.Start(ctx, app.StartRequest{Participant: participant("g-cs")})
	require.NoError(t, err)
	snap := session.Snapshot()
	require.Equal(t, 3, snap.Total)

	for i := 0; i < snap.Total; i++ {
		require.Eventually(t, func() bool {
			s := session.Snapshot()
			return s.Index == i && !s.Locked
		}, 2*time.Second, 5*time.Millisecond)
		current := session.Snapshot().Question
		require.NotNil(t, current)
		correct := indexOf(current.Options, "4")
		_, accepted, err := service.Answer(ctx, session.ID(), correct)
		require.NoError(t, err)
		require.True(t, accepted)
	}

	select {
	case <-session.Wait():
	case <-time.After(5 * time.Second):
		t.Fatal("result was not emitted")
	}
	require.NoError(t, session.PersistError())

	stored, err := results.ResultsByGroup(ctx, "g-cs")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, 3, stored[0].Score)
	assert.Equal(t, 5, stored[0].Grade)
	assert.Len(t, stored[0].Answers, 3)
	assert.Equal(t, "100.00", stored[0].Percentage.StringFixed(2))

	entries, err := redisClient.XRange(ctx, "quiz:results", "-", "+").Result()
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	// Re-emitting the same record does not create a second row.
	rec, _ := session.Result()
	require.NoError(t, results.PersistResult(ctx, rec))
	stored, err = results.ResultsByGroup(ctx, "g-cs")
	require.NoError(t, err)
	assert.Len(t, stored, 1)

	require.NoError(t, service.Shutdown(ctx))
}

func participant(groupID string) domain.Participant {
	return domain.Participant{Name: "Ada", Surname: "Lovelace", Group: groupID, GroupID: groupID}
}

func indexOf(options []string, want string) int {
	for i, o := range options {
		if o == want {
			return i
		}
	}
	return -1
}

func seedContent(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	db := pgstore.OpenBun(dsn)
	defer db.Close()

	_, err := pgstore.Migrate(ctx, db)
	require.NoError(t, err)

	sections := []domain.Section{{ID: "s-math", Name: "Math"}, {ID: "s-chem", Name: "Chemistry"}}
	groups := []domain.Group{
		{ID: "g-cs", Name: "CS-1", SubjectIDs: []string{"s-math"}, QuestionsLimit: 3},
		{ID: "g-chem", Name: "CHEM-1", SubjectIDs: []string{"s-chem"}, QuestionsLimit: 3},
	}
	var questions []domain.Question
	for i := 0; i < 2; i++ {
		questions = append(questions, domain.Question{
			ID:            fmt.Sprintf("m%d", i),
			Topic:         "Math",
			Prompt:        fmt.Sprintf("2 + 2, take %d", i),
			Options:       []string{"3", "4", "5"},
			CorrectAnswer: "4",
		})
	}
	require.NoError(t, pgstore.Seed(ctx, db, sections, groups, questions))
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
