package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/wirejam/wirejam/internal/config"
	"github.com/wirejam/wirejam/internal/gateway"
	"github.com/wirejam/wirejam/internal/handlers"
	httpx "github.com/wirejam/wirejam/internal/http"
	"github.com/wirejam/wirejam/internal/repo"
	"github.com/wirejam/wirejam/internal/service"
)

// openShapeRepo connects the configured store. The returned func releases it.
func openShapeRepo(ctx context.Context, cfg config.Config) (repo.ShapeRepo, func(), error) {
	switch cfg.ShapeStore {
	case "memory":
		return repo.NewMemoryShapeRepo(), func() {}, nil

	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:         cfg.RedisAddr,
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			PoolSize:     10,
			MinIdleConns: 5,
			MaxRetries:   3,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			PoolTimeout:  4 * time.Second,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("connect to redis: %w", err)
		}
		log.Println("connected to redis")
		return repo.NewRedisShapeRepo(rdb, cfg.RoomTTL), func() { rdb.Close() }, nil

	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		pr := repo.NewPostgresShapeRepo(pool)
		if err := pr.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		log.Println("connected to postgres")
		return pr, pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("%w: %q", repo.ErrUnknownBackend, cfg.ShapeStore)
	}
}

func main() {
	cfg := config.Load()

	startCtx, cancelStart := context.WithTimeout(context.Background(), 15*time.Second)
	shapes, closeRepo, err := openShapeRepo(startCtx, cfg)
	cancelStart()
	if err != nil {
		log.Fatalf("failed to open shape store: %v", err)
	}
	defer closeRepo()
	log.Printf("shape store: %s", cfg.ShapeStore)

	hub := gateway.NewHub(shapes, gateway.WithSendBuffer(cfg.WSSendBuffer))
	svc := service.NewRoomService(hub, service.NewRoomIDGenerator())
	h := handlers.NewRoomHandler(svc)
	ws := handlers.NewWebSocketHandler(hub, handlers.WebSocketOptions{
		AllowedOrigins:  cfg.AllowedOrigin,
		WriteTimeout:    cfg.WSWriteTimeout,
		PongTimeout:     cfg.WSPongTimeout,
		MaxMessageBytes: cfg.WSMaxMessageBytes,
	})
	router := httpx.NewRouter(h, ws, cfg.AllowedOrigin)

	srv := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("listening on %s", cfg.APIAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-sigChan
	log.Println("shutdown signal received, shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	log.Println("server stopped")
}
