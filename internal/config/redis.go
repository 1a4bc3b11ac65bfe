package config

import (
	"os"
	"strconv"
	"strings"
)

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

func GetRedisConfig() RedisConfig {
	db := 0
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if parsed, err := strconv.Atoi(dbStr); err == nil {
			db = parsed
		}
	}

	// counters live under prefix + "user:<id>", keep the segments apart
	prefix := getEnv("REDIS_KEY_PREFIX", "weatherdesk:ratelimit:")
	if !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}

	return RedisConfig{
		Addr:      getEnv("REDIS_ADDR", "localhost:6379"),
		Password:  os.Getenv("REDIS_PASSWORD"),
		DB:        db,
		KeyPrefix: prefix,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
