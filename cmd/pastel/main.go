package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pastel/internal/ai"
	"pastel/internal/auth"
	"pastel/internal/cache"
	"pastel/internal/config"
	"pastel/internal/db"
	"pastel/internal/delivery"
	"pastel/internal/email"
	httpx "pastel/internal/http"
	"pastel/internal/ratelimit"
	"pastel/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	gdb, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}
	if err := db.AutoMigrateAndIndexes(gdb); err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jwtSvc := auth.NewJWT(cfg.JWTSecret)
	limiter := ratelimit.NewLimiter(gdb)

	dashCache, err := cache.New(cfg.RedisURL)
	if err != nil {
		log.Printf("redis disabled: %v\n", err)
	}

	var uploads *storage.S3Store
	if cfg.S3Bucket != "" {
		uploads, err = storage.NewS3Store(ctx, storage.Options{
			Bucket:        cfg.S3Bucket,
			Region:        cfg.S3Region,
			AccessKeyID:   cfg.S3AccessKeyID,
			SecretKey:     cfg.S3SecretKey,
			PublicBaseURL: cfg.S3PublicBaseURL,
		})
		if err != nil {
			log.Fatal(err)
		}
	}

	notifier := email.NewResend(cfg.ResendAPIKey, cfg.EmailFrom, cfg.AppBaseURL)
	engine := delivery.NewEngine(
		&delivery.GormStore{DB: gdb},
		&delivery.UserIdentity{DB: gdb},
		notifier,
		cfg.SendTimeout,
	)
	reflections := &ai.Reflections{
		DB:        gdb,
		Reflector: ai.NewOpenRouter(cfg.OpenRouterAPIKey, cfg.OpenRouterModel),
	}

	r := httpx.NewRouter(cfg, gdb, jwtSvc, httpx.Deps{
		Limiter:     limiter,
		Engine:      engine,
		Reflections: reflections,
		Cache:       dashCache,
		Uploads:     uploads,
	})

	// delivery worker
	worker := &delivery.Worker{
		ID:         "worker-1",
		Engine:     engine,
		Limiter:    limiter,
		Interval:   cfg.SweepInterval,
		RetryEvery: cfg.RetryEvery,
	}
	go worker.Run(ctx)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("listening on %s\n", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	// graceful shutdown
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}
