package config

import (
	"os"
	"time"
)

// Server captures process level configuration for the loyalty server.
type Server struct {
	Addr        string
	DatabaseURL string
	Redis       Redis
	TiersFile   string
}

// Redis captures connection settings for the Redis-backed store.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Server config from environment variables so main stays
// lean. DATABASE_URL selects the Postgres store, LOYALTY_REDIS_URL the Redis
// store; with neither set the server runs on the in-memory store.
func FromEnv() Server {
	addr := os.Getenv("LOYALTY_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	tiersFile := os.Getenv("LOYALTY_TIERS_FILE")
	if tiersFile == "" {
		tiersFile = "tiers.yaml"
	}

	return Server{
		Addr:        addr,
		DatabaseURL: os.Getenv("DATABASE_URL"),
		TiersFile:   tiersFile,
		Redis: Redis{
			URL:          os.Getenv("LOYALTY_REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
	}
}
