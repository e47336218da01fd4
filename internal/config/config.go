// Package config provides runtime configuration values for the service.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds connection and timing knobs for the server.
type Config struct {
	HTTPAddr        string
	MySQLDSN        string
	RedisAddr       string
	RedisDB         int
	LockTTL         time.Duration
	CartCacheTTL    time.Duration
	ProductCacheTTL time.Duration
	UserCacheTTL    time.Duration
	ShutdownTimeout time.Duration
	Seed            bool
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoienv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func durenvs(key string, defSec int) time.Duration {
	return time.Duration(atoienv(key, defSec)) * time.Second
}

func boolenv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// Load collects configuration from environment with defaults.
func Load() Config {
	return Config{
		HTTPAddr:        getenv("HTTP_ADDR", ":8080"),
		MySQLDSN:        getenv("MYSQL_DSN", "root:root@tcp(localhost:3306)/shopping_cart?parseTime=true"),
		RedisAddr:       getenv("REDIS_ADDR", "localhost:6379"),
		RedisDB:         atoienv("REDIS_DB", 0),
		LockTTL:         durenvs("LOCK_TTL", 30),
		CartCacheTTL:    durenvs("CART_CACHE_TTL", 60),
		ProductCacheTTL: durenvs("PRODUCT_CACHE_TTL", 300),
		UserCacheTTL:    durenvs("USER_CACHE_TTL", 1800),
		ShutdownTimeout: durenvs("SHUTDOWN_TIMEOUT", 5),
		Seed:            boolenv("SEED", true),
	}
}
