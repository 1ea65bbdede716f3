package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "cogstim:run:"
	redisIndexKey  = "cogstim:runs"
)

// RedisConfig configures a RedisStore.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// RedisStore implements the Store interface on Redis. Each run is a JSON
// value under cogstim:run:<id>; the set cogstim:runs indexes every ID.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection with PING.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return &RedisStore{client: client}, nil
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func runKey(id string) string {
	return redisKeyPrefix + id
}

// SaveRun writes the run and adds it to the index in one transaction.
func (s *RedisStore) SaveRun(ctx context.Context, run *Run) error {
	if run == nil {
		return fmt.Errorf("run cannot be nil")
	}
	if err := run.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to serialize run: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, runKey(run.ID), data, 0)
		pipe.SAdd(ctx, redisIndexKey, run.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	slog.Debug("Run saved", "runID", run.ID, "backend", "redis")
	return nil
}

// LoadRun reads a run by ID.
func (s *RedisStore) LoadRun(ctx context.Context, id string) (*Run, error) {
	if id == "" {
		return nil, fmt.Errorf("run ID cannot be empty")
	}

	data, err := s.client.Get(ctx, runKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, &NotFoundError{RunID: id}
	} else if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}

	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to deserialize run: %w", err)
	}
	return &run, nil
}

// ListRuns returns metadata for every indexed run, newest first. Index
// entries whose value has disappeared are removed.
func (s *RedisStore) ListRuns(ctx context.Context) ([]RunInfo, error) {
	ids, err := s.client.SMembers(ctx, redisIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	infos := []RunInfo{}
	for _, id := range ids {
		run, err := s.LoadRun(ctx, id)
		if errors.Is(err, ErrNotFound) {
			s.client.SRem(ctx, redisIndexKey, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		infos = append(infos, run.ToInfo())
	}

	sortInfos(infos)
	return infos, nil
}

// DeleteRun removes the run value and its index entry.
func (s *RedisStore) DeleteRun(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("run ID cannot be empty")
	}

	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, runKey(id))
		pipe.SRem(ctx, redisIndexKey, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if del.Val() == 0 {
		return &NotFoundError{RunID: id}
	}

	slog.Debug("Run deleted", "runID", id, "backend", "redis")
	return nil
}
