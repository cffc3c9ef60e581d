package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"splunk-log-downloader/internal/models"
)

const redisKey = "downloader:jobcache"

// RedisStore keeps the cache record in redis instead of the local filesystem,
// for operators who run the downloader from ephemeral hosts. Redis SET is
// atomic, which gives the same no-torn-reads guarantee as the file rename.
type RedisStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewRedisStore(addr string) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		key:    redisKey,
		// Splunk jobs age out server-side well within a day; keep the
		// record from outliving anything it could point at.
		ttl: 24 * time.Hour,
	}
}

func (s *RedisStore) Load(ctx context.Context) (models.JobHandle, bool) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		return models.JobHandle{}, false
	}
	var h models.JobHandle
	if err := json.Unmarshal(data, &h); err != nil || h.SID == "" {
		return models.JobHandle{}, false
	}
	return h, true
}

func (s *RedisStore) Save(ctx context.Context, h models.JobHandle) error {
	data, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("encode job handle: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save job handle to redis: %w", err)
	}
	return nil
}
