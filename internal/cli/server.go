package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"quiz-session-service/internal/app"
	"quiz-session-service/internal/config"
	"quiz-session-service/internal/domain"
	"quiz-session-service/internal/hub"
	"quiz-session-service/internal/infra/memory"
	pgloader "quiz-session-service/internal/infra/postgres"
	redisinfra "quiz-session-service/internal/infra/redis"
	transport "quiz-session-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz session server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
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

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	sessionTTL := config.TTLDuration(cfg.Session.TTL, 4*time.Hour)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.AnswerKeyLoader = memory.NewStaticAnswerKeyLoader(sampleQuizKeys())
	if pool != nil {
		loader = pgloader.NewAnswerKeyLoader(pool)
	}

	keyTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var keyRepo app.AnswerKeyRepository
	if redisClient != nil {
		keyRepo = redisinfra.NewAnswerKeyRepository(redisClient, loader, keyTTL)
	} else {
		keyRepo = memory.NewAnswerKeyRepository(loader, keyTTL)
	}

	var store app.SessionStore
	if redisClient != nil {
		store = redisinfra.NewSessionStore(redisClient, sessionTTL)
	} else {
		store = memory.NewSessionStore()
	}

	service := app.NewSessionService(store, keyRepo, hub.New())
	if pool != nil {
		service = service.WithArchive(pgloader.NewSubmissionArchive(pool))
	}

	router := mux.NewRouter()
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	transport.NewRESTHandler(service).Register(router)
	transport.NewWSHandler(service).Register(router)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz session service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuizKeys seeds a demo quiz; swap the loader with the Postgres-backed
// one in production.
func sampleQuizKeys() map[string]domain.QuizKey {
	return map[string]domain.QuizKey{
		"quiz-1": {
			QuizID: "quiz-1",
			Keys: []domain.AnswerKey{
				{
					QuestionID: "q1",
					Kind:       domain.KindMultipleChoice,
					Points:     2,
					Correct:    []string{"B"},
				},
				{
					QuestionID:    "q2",
					Kind:          domain.KindMultipleChoice,
					Points:        3,
					Correct:       []string{"A", "C"},
					AllowMultiple: true,
				},
				{
					QuestionID: "q3",
					Kind:       domain.KindMatching,
					Pairs: []domain.MatchPair{
						{ID: "p1", LeftText: "cat", RightText: "meow", Points: 1},
						{ID: "p2", LeftText: "dog", RightText: "woof", Points: 1},
					},
				},
			},
		},
	}
}
