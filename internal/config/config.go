// Package config loads server settings from the environment, with an optional .env file.
package config

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAPIAddr         = ":8080"
	defaultShapeStore      = "memory"
	defaultRedisAddr       = "localhost:6379"
	defaultRoomTTLSec      = 24 * 60 * 60
	defaultSendBuffer      = 256
	defaultWriteTimeout    = 10 * time.Second
	defaultPongTimeout     = 60 * time.Second
	defaultMaxMessageBytes = 1 << 20
)

var defaultAllowedOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5000",
}

type Config struct {
	APIAddr       string
	AllowedOrigin []string

	ShapeStore    string // memory | redis | postgres
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RoomTTL       int // seconds, redis only; 0 disables expiry
	DatabaseURL   string

	WSSendBuffer      int
	WSWriteTimeout    time.Duration
	WSPongTimeout     time.Duration
	WSMaxMessageBytes int64
}

// Load reads .env from the working directory if present, then the environment.
// Variables already set in the environment win over .env.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("failed to read .env: %v", err)
	}
	return Config{
		APIAddr:           envOr("API_ADDR", defaultAPIAddr),
		AllowedOrigin:     envCSV("CORS_ALLOWED_ORIGINS", defaultAllowedOrigins),
		ShapeStore:        strings.ToLower(envOr("SHAPE_STORE", defaultShapeStore)),
		RedisAddr:         envOr("REDIS_ADDR", defaultRedisAddr),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisDB:           envInt("REDIS_DB", 0),
		RoomTTL:           envInt("ROOM_TTL_SEC", defaultRoomTTLSec),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		WSSendBuffer:      envInt("WS_SEND_BUFFER", defaultSendBuffer),
		WSWriteTimeout:    envDuration("WS_WRITE_TIMEOUT", defaultWriteTimeout),
		WSPongTimeout:     envDuration("WS_PONG_TIMEOUT", defaultPongTimeout),
		WSMaxMessageBytes: int64(envInt("WS_MAX_MESSAGE_BYTES", defaultMaxMessageBytes)),
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			log.Printf("invalid %s=%s, fallback to default (%d)", key, v, def)
			return def
		}
		return i
	}
	return def
}

// envDuration accepts Go durations ("15s") or a bare number of seconds.
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if sec, err := strconv.Atoi(v); err == nil {
		return time.Duration(sec) * time.Second
	}
	log.Printf("invalid %s=%s, fallback to default (%s)", key, v, def)
	return def
}

// envCSV splits a comma separated list; an empty result falls back to def.
func envCSV(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return def
}
