package storage

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
)

// Config defines fields used for connecting to PostgreSQL, parsed from environment variables
type Config struct {
	User           string        `env:"POSTGRES_USER" envDefault:"postgres"`
	Password       string        `env:"POSTGRES_PASSWORD" envDefault:"postgres"`
	Host           string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port           uint16        `env:"POSTGRES_PORT" envDefault:"5432"`
	DBName         string        `env:"POSTGRES_DB" envDefault:"chat"`
	ConnectTimeout time.Duration `env:"POSTGRES_CONNECT_TIMEOUT" envDefault:"30s"`
}

// DSN returns keyword/value connection string
func (c Config) DSN() string {
	return fmt.Sprintf("user=%s password=%s host=%s port=%d dbname=%s sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.DBName)
}

// Option alters the default configuration of the pgxpool.Config used during new Store construction
type Option interface {
	apply(*pgxpool.Config)
}

type optionFunc func(c *pgxpool.Config)

func (f optionFunc) apply(c *pgxpool.Config) { f(c) }

// ConnectionTimeout sets timeout for connection to be established
func ConnectionTimeout(d time.Duration) Option {
	return optionFunc(func(c *pgxpool.Config) {
		c.ConnConfig.ConnectTimeout = d
	})
}

// MaxConns limits the size of the connection pool
func MaxConns(n int32) Option {
	return optionFunc(func(c *pgxpool.Config) {
		c.MaxConns = n
	})
}
