// Package store persists result artifacts (OCR text files) so they can be
// downloaded after the request that produced them has finished.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrNotFound = errors.New("result not found")

// Store keeps named byte blobs. Names are flat: no directories.
type Store interface {
	Put(ctx context.Context, name string, data []byte) error
	Get(ctx context.Context, name string) ([]byte, error)
	Close() error
}

const (
	BackendFS     = "fs"
	BackendGCS    = "gcs"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

type Config struct {
	Backend string

	// fs
	Dir string

	// gcs
	Bucket string

	// gcs and redis
	Prefix string

	// redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// TTL expires results on backends that support it. Zero keeps them.
	TTL time.Duration
}

// Open builds the backend named by cfg.Backend.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", BackendFS:
		return NewFS(cfg.Dir)
	case BackendMemory:
		return NewMemory(), nil
	case BackendRedis:
		return NewRedis(ctx, RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.Prefix,
			TTL:      cfg.TTL,
		})
	case BackendGCS:
		return NewGCS(ctx, cfg.Bucket, cfg.Prefix)
	default:
		return nil, fmt.Errorf("unknown results backend %q", cfg.Backend)
	}
}

func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, "/\\\x00") {
		return fmt.Errorf("invalid result name %q", name)
	}
	return nil
}
