package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/mailspool/internal/composer"
	"github.com/ignite/mailspool/internal/config"
	"github.com/ignite/mailspool/internal/dispatch"
	"github.com/ignite/mailspool/internal/pkg/distlock"
	"github.com/ignite/mailspool/internal/repository/postgres"
	"github.com/ignite/mailspool/internal/worker"
)

func main() {
	log.Println("Starting mailspool dispatch worker...")

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL is required")
	}
	if cfg.Tracking.BaseURL == "" {
		log.Fatal("tracking base URL is required")
	}

	db, err := postgres.Open(cfg.Database)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer db.Close()
	log.Println("Connected to database")

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		log.Printf("Using Redis dispatch lock at %s", cfg.Redis.Addr)
	} else {
		log.Println("Redis disabled, using Postgres advisory dispatch lock")
	}
	lock := distlock.NewLock(redisClient, db, "mailspool:dispatch", cfg.Dispatch.LockTTL())

	scheduler := dispatch.NewScheduler(
		postgres.NewDispatchRepo(db),
		composer.New(cfg.Tracking.BaseURL),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := worker.NewDispatchRunner(scheduler, lock, cfg.Dispatch.Interval(), cfg.Dispatch.LockTTL())
	go runner.Start(ctx)
	log.Printf("Dispatch runner started (every %s)", cfg.Dispatch.Interval())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down dispatch worker...")
	cancel()
}
