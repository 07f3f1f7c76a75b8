package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis stores each checkpoint as a JSON string and indexes threads with a
// sorted set scored by version.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisOptions configures NewRedis. URL, when set, takes precedence over
// Addr, Password and DB.
type RedisOptions struct {
	URL      string
	Addr     string
	Password string
	DB       int
	Prefix   string        // Key prefix, default "ragagents:"
	TTL      time.Duration // Expiration for checkpoints, 0 keeps them forever
}

// NewRedis creates a Redis saver. No connection is made until first use.
func NewRedis(opts RedisOptions) (*Redis, error) {
	redisOpts := &redis.Options{Addr: opts.Addr, Password: opts.Password, DB: opts.DB}
	if opts.URL != "" {
		parsed, err := redis.ParseURL(opts.URL)
		if err != nil {
			return nil, fmt.Errorf("checkpoint: redis url: %w", err)
		}
		redisOpts = parsed
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "ragagents:"
	}
	return &Redis{client: redis.NewClient(redisOpts), prefix: prefix, ttl: opts.TTL}, nil
}

// Close closes the client.
func (s *Redis) Close() error {
	return s.client.Close()
}

func (s *Redis) checkpointKey(id string) string {
	return fmt.Sprintf("%scheckpoint:%s", s.prefix, id)
}

func (s *Redis) threadKey(id string) string {
	return fmt.Sprintf("%sthread:%s:checkpoints", s.prefix, id)
}

func (s *Redis) Save(ctx context.Context, cp *Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("checkpoint: marshal %s: %w", cp.ID, err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.checkpointKey(cp.ID), data, s.ttl)
	if thread := ThreadID(cp); thread != "" {
		key := s.threadKey(thread)
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(cp.Version), Member: cp.ID})
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("checkpoint: save %s: %w", cp.ID, err)
	}
	return nil
}

func (s *Redis) Load(ctx context.Context, id string) (*Checkpoint, error) {
	data, err := s.client.Get(ctx, s.checkpointKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("checkpoint: load %s: %w", id, err)
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("checkpoint: unmarshal %s: %w", id, err)
	}
	return &cp, nil
}

// List returns the thread's checkpoints oldest first. Index entries whose
// checkpoint has expired are skipped.
func (s *Redis) List(ctx context.Context, threadID string) ([]*Checkpoint, error) {
	ids, err := s.client.ZRange(ctx, s.threadKey(threadID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("checkpoint: list %s: %w", threadID, err)
	}
	return s.fetch(ctx, ids)
}

func (s *Redis) Latest(ctx context.Context, threadID string) (*Checkpoint, error) {
	ids, err := s.client.ZRevRange(ctx, s.threadKey(threadID), 0, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("checkpoint: latest %s: %w", threadID, err)
	}
	cps, err := s.fetch(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(cps) == 0 {
		return nil, fmt.Errorf("%w: thread %s", ErrNotFound, threadID)
	}
	return cps[0], nil
}

func (s *Redis) fetch(ctx context.Context, ids []string) ([]*Checkpoint, error) {
	if len(ids) == 0 {
		return []*Checkpoint{}, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.checkpointKey(id)
	}
	results, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("checkpoint: fetch: %w", err)
	}
	out := make([]*Checkpoint, 0, len(results))
	for _, r := range results {
		str, ok := r.(string)
		if !ok {
			continue
		}
		var cp Checkpoint
		if err := json.Unmarshal([]byte(str), &cp); err != nil {
			return nil, fmt.Errorf("checkpoint: unmarshal: %w", err)
		}
		out = append(out, &cp)
	}
	return out, nil
}

func (s *Redis) Delete(ctx context.Context, id string) error {
	cp, err := s.Load(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.checkpointKey(id))
	if thread := ThreadID(cp); thread != "" {
		pipe.ZRem(ctx, s.threadKey(thread), id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("checkpoint: delete %s: %w", id, err)
	}
	return nil
}

func (s *Redis) Clear(ctx context.Context, threadID string) error {
	key := s.threadKey(threadID)
	ids, err := s.client.ZRange(ctx, key, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("checkpoint: clear %s: %w", threadID, err)
	}
	pipe := s.client.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, s.checkpointKey(id))
	}
	pipe.Del(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("checkpoint: clear %s: %w", threadID, err)
	}
	return nil
}
