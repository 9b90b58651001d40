// Package redis caches metadata records in Redis so that several server
// processes share resolved metadata.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket"
	goredis "github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces every cache key
const DefaultKeyPrefix = "musicmarket:metadata:"

// Config options for the Redis cache
type Config struct {
	URL       string // redis://[:password@]host:port/db, takes precedence over Addr
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// Cache is a musicmarket.MetadataCache stored in Redis
type Cache struct {
	client *goredis.Client
	prefix string
}

// New connects to Redis and verifies the connection
func New(ctx context.Context, config Config) (*Cache, error) {
	var opts *goredis.Options
	if config.URL != "" {
		parsed, err := goredis.ParseURL(config.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		opts = parsed
	} else {
		if config.Addr == "" {
			return nil, errors.New("redis address is required")
		}
		opts = &goredis.Options{
			Addr:     config.Addr,
			Password: config.Password,
			DB:       config.DB,
		}
	}

	client := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewWithClient(client, config.KeyPrefix), nil
}

// NewWithClient wraps an existing client
func NewWithClient(client *goredis.Client, prefix string) *Cache {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Cache{client: client, prefix: prefix}
}

var _ musicmarket.MetadataCache = (*Cache)(nil)

func (c *Cache) Get(ctx context.Context, uri string) (*musicmarket.MetadataRecord, bool, error) {
	data, err := c.client.Get(ctx, c.prefix+uri).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var rec musicmarket.MetadataRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		// a corrupt entry is treated as a miss and overwritten by the next Set
		return nil, false, nil
	}
	return &rec, true, nil
}

// Set stores record; a zero ttl stores it without expiry
func (c *Cache) Set(ctx context.Context, uri string, record *musicmarket.MetadataRecord, ttl time.Duration) error {
	if record == nil {
		return nil
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return c.client.Set(ctx, c.prefix+uri, data, ttl).Err()
}

// Close closes the underlying client
func (c *Cache) Close() error {
	return c.client.Close()
}
