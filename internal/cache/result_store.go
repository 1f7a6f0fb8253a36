// Package cache keeps finished analysis results in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/banking/batch-analysis/internal/config"
	"github.com/banking/batch-analysis/internal/domain"
)

const resultKeyPrefix = "analysis:result:"

// NewRedisClient creates a client from cfg and verifies connectivity
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// ResultStore saves analysis results as JSON with an expiry
type ResultStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewResultStore creates a result store. A zero ttl keeps results forever.
func NewResultStore(client redis.Cmdable, ttl time.Duration) *ResultStore {
	return &ResultStore{client: client, ttl: ttl}
}

func resultKey(analysisID string) string {
	return resultKeyPrefix + analysisID
}

// Save stores result under its analysis id
func (s *ResultStore) Save(ctx context.Context, result *domain.AnalysisResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode analysis result: %w", err)
	}
	if err := s.client.Set(ctx, resultKey(result.AnalysisID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store analysis result: %w", err)
	}
	return nil
}

// Get loads a stored result. Missing or expired results yield ErrResultNotFound.
func (s *ResultStore) Get(ctx context.Context, analysisID string) (*domain.AnalysisResult, error) {
	data, err := s.client.Get(ctx, resultKey(analysisID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrResultNotFound
		}
		return nil, fmt.Errorf("failed to get analysis result: %w", err)
	}

	var result domain.AnalysisResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode analysis result: %w", err)
	}
	return &result, nil
}
