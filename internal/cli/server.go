package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aura-trainer-service/internal/config"
	"aura-trainer-service/internal/domain"
	"aura-trainer-service/internal/infra/memory"
	pgstore "aura-trainer-service/internal/infra/postgres"
	redisstore "aura-trainer-service/internal/infra/redis"
	"aura-trainer-service/internal/trainer"
	transport "aura-trainer-service/internal/transport/http"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the trainer server",
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

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var content transport.ContentStore
	var loader memory.LessonLoader
	if pool != nil {
		store := pgstore.NewContentStore(pool)
		content, loader = store, store
	} else {
		store := memory.NewContentStore(sampleLessons())
		content, loader = store, store
	}

	contentTTL := config.TTLDuration(cfg.Content.TTL, 10*time.Minute)
	lessonCache := memory.NewLessonCache(loader, contentTTL)

	var progress trainer.ProgressRepository
	if redisClient != nil {
		redisTTL := config.TTLDuration(cfg.Redis.TTL, 0)
		progress = redisstore.NewProgressStore(redisClient, redisTTL)
	} else {
		progress = memory.NewProgressStore()
	}

	service := trainer.NewService(lessonCache, progress, trainer.Config{Lang: cfg.Trainer.Lang})
	wsHandler := transport.NewWSHandler(service)
	apiHandler := transport.NewAPIHandler(content, progress, cfg.Admin.Key, lessonCache.Invalidate)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	apiHandler.Register(mux)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting trainer service on :%s", finalPort)
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

// sampleLessons seeds the in-memory store so the trainer works without a
// database.
func sampleLessons() []domain.Lesson {
	return []domain.Lesson{
		{
			ID:            "numbers-1",
			Title:         "Numbers",
			Description:   "Pronounce the numbers one to five",
			Icon:          "🔢",
			ResponseTimer: 6,
			Words: []domain.Word{
				{Value: "1", Word: "one", Alts: []string{"1", "won"}},
				{Value: "2", Word: "two", Alts: []string{"2", "to", "too"}},
				{Value: "3", Word: "three", Alts: []string{"3"}},
				{Value: "4", Word: "four", Alts: []string{"4", "for"}},
				{Value: "5", Word: "five", Alts: []string{"5"}},
			},
		},
	}
}
