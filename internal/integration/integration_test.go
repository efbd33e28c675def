package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"aura-trainer-service/internal/domain"
	"aura-trainer-service/internal/infra/memory"
	pgstore "aura-trainer-service/internal/infra/postgres"
	pgmigrations "aura-trainer-service/internal/infra/postgres/migrations"
	infraredis "aura-trainer-service/internal/infra/redis"
	"aura-trainer-service/internal/speech"
	"aura-trainer-service/internal/trainer"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

func TestLessonRoundEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	runMigrations(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	content := pgstore.NewContentStore(pool)
	lesson, err := content.CreateLesson(ctx, domain.Lesson{
		Title:         "Numbers",
		ResponseTimer: 5,
		Words: []domain.Word{
			{Value: "1", Word: "one", Alts: []string{"won"}},
			{Value: "2", Word: "two", Alts: []string{"to", "too"}},
		},
	})
	if err != nil {
		t.Fatalf("create lesson: %v", err)
	}
	if len(lesson.Words) != 2 || lesson.Words[0].Word != "one" {
		t.Fatalf("lesson did not round-trip: %+v", lesson)
	}

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	progress := infraredis.NewProgressStore(redisClient, time.Hour)

	cache := memory.NewLessonCache(content, time.Minute)
	service := trainer.NewService(cache, progress, trainer.Config{
		CorrectAdvanceDelay:   10 * time.Millisecond,
		IncorrectAdvanceDelay: 10 * time.Millisecond,
		TickInterval:          10 * time.Millisecond,
		SettleDelay:           5 * time.Millisecond,
		WatchdogInterval:      time.Hour,
		RestartDelay:          time.Millisecond,
	})

	engine := &nopEngine{}
	sink := &captureSink{completed: make(chan trainer.Result, 1)}
	round, err := service.OpenRound(ctx, lesson.ID, "u1", engine, engine, sink)
	if err != nil {
		t.Fatalf("open round: %v", err)
	}
	defer round.Close()

	if err := round.Start(); err != nil {
		t.Fatalf("start round: %v", err)
	}

	// Both words heard correctly, waiting out the advance between them.
	for i := 0; i < 2; i++ {
		waitForIndex(t, round, i)
		round.HandleRecognizerEvent(speech.RecognizerEvent{Type: speech.RecognizerStarted})
		round.HandleRecognizerEvent(speech.RecognizerEvent{
			Type:         speech.RecognizerResult,
			Alternatives: []string{lesson.Words[i].Word},
		})
		round.HandleRecognizerEvent(speech.RecognizerEvent{Type: speech.RecognizerEnded})
	}

	var result trainer.Result
	select {
	case result = <-sink.completed:
	case <-time.After(5 * time.Second):
		t.Fatalf("round never completed")
	}
	if result.Score != 2 || result.Total != 2 || result.Stars != 3 {
		t.Fatalf("unexpected result %+v", result)
	}

	stored, err := progress.Progress(ctx, "u1")
	if err != nil {
		t.Fatalf("read progress: %v", err)
	}
	if lp := stored.Lessons[lesson.ID]; !lp.Completed || lp.Stars != 3 {
		t.Fatalf("progress not persisted: %+v", stored)
	}
	if stored.TotalStars != result.TotalStars {
		t.Fatalf("star totals disagree: stored %d result %d", stored.TotalStars, result.TotalStars)
	}
}

func TestContentWritesAreTransactional(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	runMigrations(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	content := pgstore.NewContentStore(pool)

	// Duplicate word ids violate the primary key mid-insert; the lesson row
	// must roll back with the words.
	lessonID := uuid.NewString()
	dupWordID := uuid.NewString()
	_, err = content.CreateLesson(ctx, domain.Lesson{
		ID:    lessonID,
		Title: "Broken",
		Words: []domain.Word{
			{ID: dupWordID, Value: "1", Word: "one"},
			{ID: dupWordID, Value: "2", Word: "two"},
		},
	})
	if err == nil {
		t.Fatalf("expected duplicate word insert to fail")
	}
	if _, err := content.Lesson(ctx, lessonID); !errors.Is(err, domain.ErrLessonNotFound) {
		t.Fatalf("expected no orphaned lesson row, got %v", err)
	}
}

func waitForIndex(t *testing.T, round *trainer.Round, index int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap := round.Snapshot()
		if snap.Index == index && snap.Outcome == trainer.OutcomeNone {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("round never reached word %d", index)
}

type nopEngine struct{}

func (*nopEngine) Start() error            { return nil }
func (*nopEngine) Stop() error             { return nil }
func (*nopEngine) Speak(_, _ string) error { return nil }
func (*nopEngine) Cancel() error           { return nil }

type captureSink struct {
	completed chan trainer.Result
}

func (s *captureSink) RoundState(trainer.Snapshot) {}

func (s *captureSink) RoundCompleted(result trainer.Result) {
	select {
	case s.completed <- result:
	default:
	}
}

func (s *captureSink) RoundError(speech.ErrorKind) {}

func runMigrations(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "trainer", "POSTGRES_PASSWORD": "trainerpass", "POSTGRES_DB": "trainerdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
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
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://trainer:trainerpass@%s:%s/trainerdb?sslmode=disable", host, port.Port())
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
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
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
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
