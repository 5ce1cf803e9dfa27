package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gorilla/sessions"

	"authgate/core"
)

func main() {
	cfg := core.Load()
	ctx := context.Background()

	logCloser, err := core.SetupLogging(cfg, "api.log")
	if err != nil {
		log.Fatalf("failed to setup logging: %v", err)
	}
	defer logCloser.Close()

	db, err := core.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer db.Close()

	// Session registry: process-local by default, redis when configured.
	var registry core.SessionRegistry
	switch cfg.SessionBackend {
	case "redis":
		redisClient, err := core.NewRedisClient(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect redis: %v", err)
		}
		defer redisClient.Close()
		registry = core.NewRedisSessionRegistry(redisClient, cfg.SessionIdleTimeout)
	case "memory":
		registry = core.NewMemorySessionRegistry(cfg.SessionIdleTimeout)
	default:
		log.Fatalf("unknown session backend %q", cfg.SessionBackend)
	}

	rules, err := core.LoadRuleTable(cfg.AuthRulesPath)
	if err != nil {
		log.Fatalf("failed to load authorization rules: %v", err)
	}

	// Gorilla cookie store carries the opaque session token.
	store := sessions.NewCookieStore([]byte(cfg.SessionKey))

	userRepo := core.NewPgUserRepository(db)
	hasher := core.NewBcryptHasher(cfg.BcryptCost)
	authService := core.NewRepositoryAuthService(userRepo, hasher)

	if err := core.BootstrapAdmin(ctx, userRepo, hasher, cfg); err != nil {
		log.Fatalf("bootstrap admin failed: %v", err)
	}

	router := core.NewRouter(cfg, store, authService, userRepo, registry, rules)

	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Printf("starting api server on %s", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
