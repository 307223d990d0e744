// Package redisstore keeps registrations and status records in Redis.
//
// Layout under the configured prefix:
//
//	videos        hash  video_id -> registration JSON
//	videos:order  zset  video_id scored by insertion sequence
//	videos:seq    counter for the order zset
//	names         hash  video_id -> display name
//	status        hash  video_id -> status JSON
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/nwchenyw/tw-live-frontend/internal/config"
	"github.com/nwchenyw/tw-live-frontend/internal/models"
	"github.com/nwchenyw/tw-live-frontend/internal/store"
)

var addScript = redis.NewScript(`
	local videos = KEYS[1]
	local order = KEYS[2]
	local seq = KEYS[3]
	local names = KEYS[4]
	local id = ARGV[1]

	if ARGV[3] == '1' then
		redis.call('HSET', names, id, ARGV[4])
	else
		redis.call('HDEL', names, id)
	end

	local existing = redis.call('HGET', videos, id)
	if existing then
		return existing
	end

	local n = redis.call('INCR', seq)
	redis.call('HSET', videos, id, ARGV[2])
	redis.call('ZADD', order, n, id)
	return false
`)

var deleteScript = redis.NewScript(`
	local removed = redis.call('HDEL', KEYS[1], ARGV[1])
	if removed == 0 then
		return 0
	end
	redis.call('ZREM', KEYS[2], ARGV[1])
	redis.call('HDEL', KEYS[3], ARGV[1])
	redis.call('HDEL', KEYS[4], ARGV[1])
	return 1
`)

var saveStatusScript = redis.NewScript(`
	if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 0 then
		return 0
	end
	redis.call('HSET', KEYS[2], ARGV[1], ARGV[2])
	return 1
`)

// Store implements store.Store on a single Redis instance.
type Store struct {
	client *redis.Client
	logger *logrus.Logger
	prefix string
}

// NewClient builds a go-redis client from configuration. Only the first
// address is used.
func NewClient(cfg config.RedisConfig) *redis.Client {
	addr := "localhost:6379"
	if len(cfg.Addresses) > 0 {
		addr = cfg.Addresses[0]
	}
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})
}

func New(client *redis.Client, prefix string, logger *logrus.Logger) *Store {
	return &Store{client: client, logger: logger, prefix: prefix}
}

func (s *Store) key(name string) string { return s.prefix + name }

func (s *Store) ListVideos(ctx context.Context) ([]store.Registration, error) {
	ids, err := s.client.ZRange(ctx, s.key("videos:order"), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read video order: %w", err)
	}
	if len(ids) == 0 {
		return []store.Registration{}, nil
	}

	var regsCmd, namesCmd *redis.SliceCmd
	_, err = s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		regsCmd = p.HMGet(ctx, s.key("videos"), ids...)
		namesCmd = p.HMGet(ctx, s.key("names"), ids...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}

	regs := make([]store.Registration, 0, len(ids))
	names := namesCmd.Val()
	for i, raw := range regsCmd.Val() {
		data, ok := raw.(string)
		if !ok {
			// removed between ZRANGE and HMGET
			continue
		}
		var reg store.Registration
		if err := json.Unmarshal([]byte(data), &reg); err != nil {
			s.logger.WithError(err).WithField("video_id", ids[i]).Warn("Skipping corrupt registration")
			continue
		}
		if name, ok := names[i].(string); ok {
			reg.Name = &name
		}
		regs = append(regs, reg)
	}
	return regs, nil
}

func (s *Store) AddVideo(ctx context.Context, raw, videoID string, name *string) (store.Registration, bool, error) {
	reg := store.Registration{VideoID: videoID, Raw: raw, AddedAt: time.Now().UTC()}
	data, err := json.Marshal(reg)
	if err != nil {
		return store.Registration{}, false, fmt.Errorf("failed to marshal registration: %w", err)
	}

	hasName, nameVal := "0", ""
	if name != nil {
		hasName, nameVal = "1", *name
	}

	keys := []string{s.key("videos"), s.key("videos:order"), s.key("videos:seq"), s.key("names")}
	existing, err := addScript.Run(ctx, s.client, keys, videoID, data, hasName, nameVal).Text()
	switch {
	case errors.Is(err, redis.Nil):
		reg.Name = name
		s.logger.WithFields(logrus.Fields{"video_id": videoID, "raw": raw}).Info("Video registered")
		return reg, true, nil
	case err != nil:
		return store.Registration{}, false, fmt.Errorf("failed to add video: %w", err)
	}

	if err := json.Unmarshal([]byte(existing), &reg); err != nil {
		return store.Registration{}, false, fmt.Errorf("failed to decode registration: %w", err)
	}
	reg.Name = name
	return reg, false, nil
}

func (s *Store) DeleteVideo(ctx context.Context, videoID string) error {
	keys := []string{s.key("videos"), s.key("videos:order"), s.key("names"), s.key("status")}
	removed, err := deleteScript.Run(ctx, s.client, keys, videoID).Int()
	if err != nil {
		return fmt.Errorf("failed to delete video: %w", err)
	}
	if removed == 0 {
		return store.ErrNotFound
	}
	s.logger.WithField("video_id", videoID).Info("Video unregistered")
	return nil
}

func (s *Store) SaveStatus(ctx context.Context, status models.StatusItem) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}
	saved, err := saveStatusScript.Run(ctx, s.client,
		[]string{s.key("videos"), s.key("status")}, status.VideoID, data).Int()
	if err != nil {
		return fmt.Errorf("failed to save status: %w", err)
	}
	if saved == 0 {
		s.logger.WithField("video_id", status.VideoID).Debug("Dropped status for unregistered video")
	}
	return nil
}

// ListStatus returns every cached status ordered by video ID.
func (s *Store) ListStatus(ctx context.Context) ([]models.StatusItem, error) {
	all, err := s.client.HGetAll(ctx, s.key("status")).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list status: %w", err)
	}

	items := make([]models.StatusItem, 0, len(all))
	for id, data := range all {
		var item models.StatusItem
		if err := json.Unmarshal([]byte(data), &item); err != nil {
			s.logger.WithError(err).WithField("video_id", id).Warn("Skipping corrupt status")
			continue
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].VideoID < items[j].VideoID })
	return items, nil
}

func (s *Store) Counts(ctx context.Context) (int, int, error) {
	var watching, cached *redis.IntCmd
	_, err := s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		watching = p.HLen(ctx, s.key("videos"))
		cached = p.HLen(ctx, s.key("status"))
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count: %w", err)
	}
	return int(watching.Val()), int(cached.Val()), nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}

var _ store.Store = (*Store)(nil)
