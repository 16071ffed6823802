package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"
	"github.com/redis/go-redis/v9"

	"tftgg/internal/gql"
)

var zenc, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
var zdec, _ = zstd.NewReader(nil)

// envelope is the stored form of an entry: JSON, zstd compressed. Expiry is
// delegated to the Redis key TTL; ttlSeconds is kept for inspection only.
type envelope struct {
	Data       json.RawMessage `json:"data"`
	Complexity int             `json:"complexity,omitempty"`
	Tags       []string        `json:"tags,omitempty"`
	RequestID  string          `json:"requestId,omitempty"`
	LatencyMS  int64           `json:"latencyMs,omitempty"`
	CachedAt   int64           `json:"cachedAt"`
	TTLSeconds int64           `json:"ttlSeconds,omitempty"`
}

// RedisCache stores entries in Redis, one compressed value per key. It lets
// several gateway instances share one result cache.
type RedisCache struct {
	cli        *redis.Client
	prefix     string
	defaultTTL time.Duration
}

// NewRedisCache creates a cache on an already-connected client.
func NewRedisCache(cli *redis.Client, prefix string, defaultTTL time.Duration) *RedisCache {
	if prefix == "" {
		prefix = "tftgg:query:"
	}
	return &RedisCache{cli: cli, prefix: prefix, defaultTTL: defaultTTL}
}

func (rc *RedisCache) Get(ctx context.Context, operation string, args gql.Args) (*Entry, error) {
	raw, err := rc.cli.Get(ctx, rc.prefix+gql.CacheKey(operation, args)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	plain, err := zdec.DecodeAll(raw, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress cached entry: %w", err)
	}
	var env envelope
	if err := json.Unmarshal(plain, &env); err != nil {
		return nil, fmt.Errorf("decode cached entry: %w", err)
	}

	return &Entry{
		Data: gql.Result(env.Data),
		Meta: Meta{
			Complexity: env.Complexity,
			Tags:       env.Tags,
			TTL:        time.Duration(env.TTLSeconds) * time.Second,
		},
		RequestID: env.RequestID,
		Latency:   time.Duration(env.LatencyMS) * time.Millisecond,
		CachedAt:  time.Unix(env.CachedAt, 0),
	}, nil
}

func (rc *RedisCache) Set(ctx context.Context, operation string, args gql.Args, data gql.Result, meta Meta, requestID string, latency time.Duration) error {
	ttl := meta.TTL
	if ttl <= 0 {
		ttl = rc.defaultTTL
	}

	env := envelope{
		Data:       json.RawMessage(data),
		Complexity: meta.Complexity,
		Tags:       meta.Tags,
		RequestID:  requestID,
		LatencyMS:  latency.Milliseconds(),
		CachedAt:   time.Now().Unix(),
		TTLSeconds: int64(ttl / time.Second),
	}
	plain, err := json.Marshal(env)
	if err != nil {
		return err
	}

	packed := zenc.EncodeAll(plain, make([]byte, 0, len(plain)))
	return rc.cli.Set(ctx, rc.prefix+gql.CacheKey(operation, args), packed, ttl).Err()
}

// Close closes the underlying client.
func (rc *RedisCache) Close() {
	_ = rc.cli.Close()
}
