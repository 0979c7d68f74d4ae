// Command admin is the operator CLI: inspect and repair persisted state
// while the hub is down.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"anonpair/backend/internal/config"
	"anonpair/backend/internal/storage"
)

func usage() {
	fmt.Println("Usage: admin <command>")
	fmt.Println("Commands:")
	fmt.Println("  sessions     list active session IDs")
	fmt.Println("  sweep        close all sessions still marked active")
	fmt.Println("  queue        list identities in the Redis search-queue mirror")
	fmt.Println("  queue-clear  drop the Redis search-queue mirror")
	os.Exit(1)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	db, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	store := storage.NewService(db, rdb)

	if len(os.Args) < 2 {
		usage()
	}

	switch os.Args[1] {
	case "sessions":
		ids, err := store.ActiveSessionIDs()
		if err != nil {
			log.Fatalf("listing active sessions failed: %v", err)
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		fmt.Printf("%d active session(s)\n", len(ids))

	case "sweep":
		ids, err := store.ActiveSessionIDs()
		if err != nil {
			log.Fatalf("listing active sessions failed: %v", err)
		}
		now := time.Now()
		for _, id := range ids {
			if err := store.CloseSession(id, now); err != nil {
				log.Printf("closing session %s failed: %v", id, err)
			}
		}
		fmt.Printf("closed %d session(s)\n", len(ids))

	case "queue":
		ids, err := store.SearchQueueMembers()
		if err != nil {
			log.Fatalf("listing search queue failed: %v", err)
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		fmt.Printf("%d identities queued\n", len(ids))

	case "queue-clear":
		if err := store.ClearSearchQueue(); err != nil {
			log.Fatalf("clearing search queue failed: %v", err)
		}
		fmt.Println("search queue cleared")

	default:
		usage()
	}
}
