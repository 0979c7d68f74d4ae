package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"anonpair/backend/internal/api/handler"
	"anonpair/backend/internal/chathub"
	"anonpair/backend/internal/config"
	"anonpair/backend/internal/models"
	"anonpair/backend/internal/storage"
)

func setupDependencies(cfg config.Config, log *slog.Logger) (*gorm.DB, *redis.Client) {
	db, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{})
	if err != nil {
		log.Error("postgres connection failed", "err", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Error("redis connection failed", "err", err)
		os.Exit(1)
	}

	if err := db.AutoMigrate(
		&models.Participant{},
		&models.ChatSession{},
		&models.ChatMessage{},
	); err != nil {
		log.Error("migrations failed", "err", err)
		os.Exit(1)
	}

	log.Info("database and redis connections established, migrations complete")
	return db, rdb
}

// sweepStaleState closes sessions left active by an unclean shutdown and
// resets the Redis search-queue mirror. Everyone was disconnected when
// the process died, so none of it can still be live.
func sweepStaleState(store *storage.Service, log *slog.Logger) {
	ids, err := store.ActiveSessionIDs()
	if err != nil {
		log.Warn("stale session lookup failed", "err", err)
	}
	now := time.Now()
	for _, id := range ids {
		if err := store.CloseSession(id, now); err != nil {
			log.Warn("stale session close failed", "session_id", id, "err", err)
		}
	}
	if len(ids) > 0 {
		log.Info("stale sessions closed", "count", len(ids))
	}
	if err := store.ClearSearchQueue(); err != nil {
		log.Warn("search queue reset failed", "err", err)
	}
}

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)
	log.Info("starting anonpair backend")

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", "err", err)
		os.Exit(1)
	}

	db, rdb := setupDependencies(cfg, log)
	store := storage.NewService(db, rdb)
	sweepStaleState(store, log)

	hub := chathub.NewCoordinator(store, cfg.PersistQueueSize, log)
	go hub.Run()
	defer hub.Close()

	r := gin.Default()
	h := handler.NewHandler(hub, cfg.JWTSecret, cfg.TokenTTL, log)

	r.GET("/", h.Health)
	r.GET("/token", h.GetAnonID)
	r.GET("/ws", h.ServeWebSocket)
	r.GET("/api/stats", h.GetStats)

	server := &http.Server{
		Addr:           cfg.Addr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	log.Info("listening", "addr", cfg.Addr)
	if err := server.ListenAndServe(); err != nil {
		log.Error("server stopped", "err", err)
		os.Exit(1)
	}
}
