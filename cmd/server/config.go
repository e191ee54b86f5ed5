package main

import (
	"chat-functions/internal/server"
	"chat-functions/internal/storage"
	"chat-functions/internal/storage/badgerdb"
)

const (
	driverPostgres = "postgres"
	driverBadger   = "badger"
)

// Config defines everything parsed from environment variables on start
type Config struct {
	Server   server.EnvConfig
	Postgres storage.Config
	Badger   badgerdb.Config
	Driver   string `env:"STORE_DRIVER" envDefault:"postgres"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"debug"`
}
