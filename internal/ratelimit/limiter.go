package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"

	"github.com/velocibid/velocibid/internal/config"
)

const (
	keyGenerateOrg = "velocibid:generate:org:%s"
	keyIngestOrg   = "velocibid:ingest:org:%s"
)

// Limiter throttles the expensive per-org operations: draft generation and
// document ingestion. A nil Limiter allows everything, so deployments without
// Redis keep working.
type Limiter struct {
	bucket *TokenBucket

	generateRate  float64
	generateBurst int
	ingestRate    float64
	ingestBurst   int
}

// NewLimiter builds the limiter from config. Returns (nil, nil) when rate
// limiting is disabled.
func NewLimiter(cfg config.Config) (*Limiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.GenerateRate <= 0 || limitCfg.GenerateBurst <= 0 {
		return nil, errors.New("generate rate limit must be positive")
	}
	if limitCfg.IngestRate <= 0 || limitCfg.IngestBurst <= 0 {
		return nil, errors.New("ingest rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})

	return NewLimiterWithClient(client, limitCfg), nil
}

// NewLimiterWithClient wires the limiter against an existing Redis client.
// Callers normally use NewLimiter; this entry serves setups that manage
// their own client.
func NewLimiterWithClient(client redis.Scripter, limitCfg config.RateLimitConfig) *Limiter {
	return &Limiter{
		bucket:        NewTokenBucket(client),
		generateRate:  limitCfg.GenerateRate,
		generateBurst: limitCfg.GenerateBurst,
		ingestRate:    limitCfg.IngestRate,
		ingestBurst:   limitCfg.IngestBurst,
	}
}

func (l *Limiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// AllowGenerate checks the org's draft generation budget.
func (l *Limiter) AllowGenerate(ctx context.Context, orgID string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	key := fmt.Sprintf(keyGenerateOrg, strings.TrimSpace(orgID))
	return l.bucket.Allow(ctx, key, l.generateRate, l.generateBurst)
}

// AllowIngest checks the org's document upload budget.
func (l *Limiter) AllowIngest(ctx context.Context, orgID string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	key := fmt.Sprintf(keyIngestOrg, strings.TrimSpace(orgID))
	return l.bucket.Allow(ctx, key, l.ingestRate, l.ingestBurst)
}
