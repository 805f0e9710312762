package usage

import "github.com/redis/go-redis/v9"

// StoreOption is a functional option for configuring a usage store.
type StoreOption func(*storeConfig)

type storeConfig struct {
	redisClient *redis.Client
	redisKey    string
	filePath    string
}

// WithRedisClient sets the Redis client for the redis store.
func WithRedisClient(client *redis.Client) StoreOption {
	return func(c *storeConfig) {
		c.redisClient = client
	}
}

// WithRedisKey sets the key the whole log is stored under.
func WithRedisKey(key string) StoreOption {
	return func(c *storeConfig) {
		c.redisKey = key
	}
}

// WithFilePath sets the JSON file used by the file store.
func WithFilePath(path string) StoreOption {
	return func(c *storeConfig) {
		c.filePath = path
	}
}
