package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"quiz-session-service/internal/app"
	"quiz-session-service/internal/domain"
	"quiz-session-service/internal/hub"
	pgloader "quiz-session-service/internal/infra/postgres"
	pgmigrations "quiz-session-service/internal/infra/postgres/migrations"
	infraredis "quiz-session-service/internal/infra/redis"
)

func TestSessionFlowEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedQuizKeys(t, ctx, pgURL, sampleKeys())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	loader := pgloader.NewAnswerKeyLoader(pool)

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	keyRepo := infraredis.NewAnswerKeyRepository(redisClient, loader, 5*time.Minute)
	sessionStore := infraredis.NewSessionStore(redisClient, 5*time.Minute)
	service := app.NewSessionService(sessionStore, keyRepo, hub.New()).
		WithArchive(pgloader.NewSubmissionArchive(pool))

	teacher := domain.Identity{UserID: "t1", Role: domain.RoleTeacher}
	student := domain.Identity{UserID: "u1", Role: domain.RoleStudent}

	session, err := service.CreateSession(ctx, teacher, "quiz-1", "class-1")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if _, err := service.JoinByCode(ctx, student, session.AccessCode); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := service.Start(ctx, session.ID, teacher); err != nil {
		t.Fatalf("start: %v", err)
	}

	now := time.Now()
	submission, err := service.Submit(ctx, session.ID, student, []domain.QuestionAnswer{
		{QuestionID: "q1", Selections: []domain.Selection{{Value: "B", At: now}}},
		{QuestionID: "q2", Pairs: []domain.MatchPair{
			{ID: "p1", LeftText: "cat", RightText: "meow"},
		}},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if submission.Summary.TotalScore != 3 || submission.Summary.MaxScore != 3 {
		t.Fatalf("expected 3/3, got %+v", submission.Summary)
	}

	board, err := service.Scoreboard(ctx, session.ID)
	if err != nil {
		t.Fatalf("scoreboard: %v", err)
	}
	if len(board) != 1 || board[0].UserID != "u1" || board[0].TotalScore != 3 {
		t.Fatalf("unexpected scoreboard %+v", board)
	}

	// The archive write is fire-and-forget; poll briefly for the row.
	deadline := time.Now().Add(5 * time.Second)
	for {
		var count int
		err := pool.QueryRow(ctx,
			`SELECT count(*) FROM quiz_submissions WHERE session_id=$1 AND user_id=$2`,
			session.ID, "u1").Scan(&count)
		if err == nil && count == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected archived submission, count err=%v", err)
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
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

func seedQuizKeys(t *testing.T, ctx context.Context, dsn string, keys []domain.AnswerKey) {
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

	data, err := json.Marshal(keys)
	if err != nil {
		t.Fatalf("marshal keys: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO quizzes (id, answer_keys) VALUES (?, ?::jsonb) ON CONFLICT (id) DO UPDATE SET answer_keys=EXCLUDED.answer_keys`, "quiz-1", string(data)); err != nil {
		t.Fatalf("insert quiz: %v", err)
	}
}

func sampleKeys() []domain.AnswerKey {
	return []domain.AnswerKey{
		{QuestionID: "q1", Kind: domain.KindMultipleChoice, Points: 2, Correct: []string{"B"}},
		{QuestionID: "q2", Kind: domain.KindMatching, Pairs: []domain.MatchPair{
			{ID: "p1", LeftText: "cat", RightText: "meow", Points: 1},
		}},
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
