package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quiz-attempt-engine/internal/app"
	"quiz-attempt-engine/internal/authflow"
	"quiz-attempt-engine/internal/config"
	"quiz-attempt-engine/internal/domain"
	"quiz-attempt-engine/internal/event"
	"quiz-attempt-engine/internal/infra/memory"
	pgsource "quiz-attempt-engine/internal/infra/postgres"
	redisinfra "quiz-attempt-engine/internal/infra/redis"
	"quiz-attempt-engine/internal/infra/sqlite"
	transport "quiz-attempt-engine/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz attempt server",
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
	snapshotTTL := config.TTLDuration(cfg.Redis.TTL, 30*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var source memory.QuizSource = memory.NewStaticQuizSource(sampleQuizzes())
	if pool != nil {
		source = pgsource.NewQuizSource(pool)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	if redisClient != nil {
		quizRepo = redisinfra.NewQuizRepository(redisClient, source, quizTTL)
	} else {
		quizRepo = memory.NewQuizRepository(source, quizTTL)
	}

	var kv authflow.KVStore = memory.NewKVStore()
	if redisClient != nil {
		kv = redisinfra.NewKVStore(redisClient, snapshotTTL)
	}

	var sink app.ResultSink = memory.NewResultSink()
	if cfg.SQLite.Path != "" {
		resultStore, err := sqlite.NewResultStore(cfg.SQLite.Path)
		if err != nil {
			return err
		}
		defer resultStore.Close()
		sink = resultStore
	}

	sessions := memory.NewSessionStore(cfg.Scoring.SimilarityThreshold)
	engine := app.NewAttemptEngine(sessions, quizRepo, sink, authflow.NewBridge(kv), authflow.NewRecovery(kv))

	if cfg.AMQP.URL != "" {
		publisher, err := event.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			return err
		}
		defer publisher.Close()
		engine.UseEvents(publisher)
	}

	wsHandler := transport.NewWSHandler(engine)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz attempt engine on :%s", finalPort)
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

// sampleQuizzes seeds one quiz of each supported type for running without a database.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"world-capitals": {
			ID:    "quiz-capitals",
			Slug:  "world-capitals",
			Title: "World Capitals",
			Type:  domain.TypeMCQ,
			Questions: []domain.Question{
				{
					ID:     "q1",
					Prompt: "What is the capital of France?",
					Type:   domain.TypeMCQ,
					Options: []domain.Option{
						{ID: "o1", Text: "Lyon", Correct: false},
						{ID: "o2", Text: "Paris", Correct: true},
						{ID: "o3", Text: "Marseille", Correct: false},
					},
				},
			},
		},
		"go-fill-in": {
			ID:    "quiz-blanks",
			Slug:  "go-fill-in",
			Title: "Go Fill in the Blanks",
			Type:  domain.TypeBlanks,
			Questions: []domain.Question{
				{
					ID:              "q1",
					Prompt:          "The keyword to declare a function is ____.",
					Type:            domain.TypeBlanks,
					ReferenceAnswer: "func",
				},
			},
		},
		"explain-http": {
			ID:    "quiz-open",
			Slug:  "explain-http",
			Title: "Explain HTTP",
			Type:  domain.TypeOpenEnded,
			Questions: []domain.Question{
				{
					ID:              "q1",
					Prompt:          "What does a 404 status code mean?",
					Type:            domain.TypeOpenEnded,
					ReferenceAnswer: "the requested resource was not found",
					AcceptedAnswers: []string{"not found", "resource not found"},
				},
			},
		},
		"code-basics": {
			ID:    "quiz-code",
			Slug:  "code-basics",
			Title: "Code Basics",
			Type:  domain.TypeCode,
			Questions: []domain.Question{
				{
					ID:          "q1",
					Prompt:      "Which option fixes the off-by-one error?",
					Type:        domain.TypeCode,
					CodeSnippet: "for i := 0; i <= len(xs); i++ {",
					Options: []domain.Option{
						{ID: "o1", Text: "i < len(xs)", Correct: true},
						{ID: "o2", Text: "i <= len(xs)-0", Correct: false},
					},
				},
			},
		},
		"spanish-vocab": {
			ID:    "quiz-cards",
			Slug:  "spanish-vocab",
			Title: "Spanish Vocabulary",
			Type:  domain.TypeFlashcard,
			Questions: []domain.Question{
				{ID: "q1", Prompt: "perro", Type: domain.TypeFlashcard, ReferenceAnswer: "dog"},
				{ID: "q2", Prompt: "gato", Type: domain.TypeFlashcard, ReferenceAnswer: "cat"},
			},
		},
	}
}
