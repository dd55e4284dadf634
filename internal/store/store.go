package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is the key-value storage that stands in for a visitor's browser
// storage. Values are opaque strings, usually JSON snapshots.
type Store interface {
	// Get returns found=false (and no error) when the key does not exist.
	Get(ctx context.Context, key string) (value string, found bool, err error)
	// Set stores value under key, replacing any previous value. It returns
	// only after the write has been acknowledged by the backend.
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeSQLite StoreType = "sqlite"
	StoreTypeRedis  StoreType = "redis"
)

var (
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrInvalidStoreType = errors.New("invalid store type")
)

type Option func(*storeConfig)

type storeConfig struct {
	sqlitePath  string
	redisClient *redis.Client
	redisTTL    time.Duration
}

// WithSQLitePath sets the data source name for the sqlite driver.
func WithSQLitePath(path string) Option {
	return func(c *storeConfig) {
		c.sqlitePath = path
	}
}

// WithRedisClient sets the client for the redis driver.
func WithRedisClient(client *redis.Client) Option {
	return func(c *storeConfig) {
		c.redisClient = client
	}
}

// WithRedisTTL sets the expiry applied to every redis key on write.
// Zero keeps keys forever, like browser storage.
func WithRedisTTL(ttl time.Duration) Option {
	return func(c *storeConfig) {
		c.redisTTL = ttl
	}
}

// NewStore creates a Store for the given driver type.
func NewStore(storeType StoreType, opts ...Option) (Store, error) {
	cfg := &storeConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	switch storeType {
	case StoreTypeMemory:
		return NewMemoryStore(), nil
	case StoreTypeSQLite:
		if cfg.sqlitePath == "" {
			return nil, ErrInvalidConfig
		}
		return NewSQLiteStore(cfg.sqlitePath)
	case StoreTypeRedis:
		if cfg.redisClient == nil {
			return nil, ErrInvalidConfig
		}
		return NewRedisStore(cfg.redisClient, cfg.redisTTL), nil
	default:
		return nil, ErrInvalidStoreType
	}
}

// Open builds the Store for a configured driver, dialing redis first when
// the driver needs it.
func Open(ctx context.Context, storeType StoreType, sqlitePath, redisAddr string, redisTTL time.Duration) (Store, error) {
	opts := []Option{WithSQLitePath(sqlitePath), WithRedisTTL(redisTTL)}
	if storeType == StoreTypeRedis {
		client, err := DialRedis(ctx, redisAddr)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithRedisClient(client))
	}
	return NewStore(storeType, opts...)
}
