package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/macroplate/backend/config"
	"github.com/macroplate/backend/internal/database"
	"github.com/macroplate/backend/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[MAIN] loading config: %v", err)
	}
	log.Printf("[MAIN] starting in %s mode on port %s", cfg.Environment, cfg.Port)

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[MAIN] connecting to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("[MAIN] migrating database: %v", err)
	}

	opts := server.Options{Config: cfg, DB: db}

	if cfg.RedisURL != "" {
		redisClient, err := database.ConnectRedis(cfg.RedisURL, cfg.RedisPassword)
		if err != nil {
			log.Printf("[MAIN] redis unavailable, rate limits fall back to memory: %v", err)
		} else {
			opts.RedisClient = redisClient
		}
	}

	s3cfg, err := config.NewS3Config(context.Background(), cfg)
	if err != nil {
		log.Printf("[MAIN] s3 unavailable, image uploads disabled: %v", err)
	} else {
		opts.S3 = s3cfg
	}

	srv := server.New(opts)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		log.Fatalf("[MAIN] server error: %v", err)
	case sig := <-quit:
		log.Printf("[MAIN] received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("[MAIN] forced shutdown: %v", err)
	}
	log.Printf("[MAIN] server stopped")
}
