package main

import (
	"chat-functions/internal/functions"
	"chat-functions/internal/server"
	"chat-functions/internal/storage"
	"chat-functions/internal/storage/badgerdb"
	"context"
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// store is the document store both function groups run against
type store interface {
	functions.UserStore
	functions.MessageStore
	Close()
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}
	return cfg.Build()
}

func openStore(ctx context.Context, sugar *zap.SugaredLogger, cfg Config) (store, error) {
	switch cfg.Driver {
	case driverPostgres:
		return storage.New(ctx, sugar, cfg.Postgres, storage.ConnectionTimeout(cfg.Postgres.ConnectTimeout))
	case driverBadger:
		return badgerdb.New(sugar, cfg.Badger)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func main() {
	// variables already present in the environment take precedence over .env
	_ = godotenv.Load()

	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("Cannot parse env config: %v", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("zap: %v", err)
	}
	defer logger.Sync()

	sugar := logger.Sugar()
	sugar.Info("Application is starting")

	sugar.Info("Current time:", time.Now())

	s, err := openStore(context.Background(), sugar, cfg)
	if err != nil {
		sugar.Fatalf("Cannot open %s store: %v", cfg.Driver, err)
	}

	serverOpts := []server.Option{
		server.WithEnvConfig(cfg.Server),
		server.RegisterAfterShutdown(func() {
			sugar.Info("Closing store")
			s.Close()
			sugar.Info("Store is closed")
		}),
	}

	srv, err := server.NewServer(sugar,
		functions.NewAccounts(sugar.Named("accounts"), s),
		functions.NewMessages(sugar.Named("messages"), s),
		serverOpts...,
	)
	if err != nil {
		sugar.Fatalf("Cannot create Server instance: %v", err)
	}

	if err := srv.Start(); err != nil {
		sugar.Fatalf("Cannot start http srv: %v", err)
	}
}
