package config

import "strconv"

// RedisConfig selects the backing store for sessions and the per-organisation
// cache. When no address is configured the gateway runs on the in-memory
// implementations, which is the single-instance development setup.
type RedisConfig interface {
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
}

type Redis struct{}

var _ RedisConfig = Redis{}

func (Redis) GetRedisAddr() string {
	host := GetEnv("REDIS_HOST", "")
	port := GetEnv("REDIS_PORT", "6379")
	if host != "" {
		return host + ":" + port
	}
	return GetEnv("REDIS_ADDR", "")
}

func (Redis) GetRedisPassword() string {
	return GetEnv("REDIS_PASSWORD", "")
}

func (Redis) GetRedisDB() int {
	n, err := strconv.Atoi(GetEnv("REDIS_DB", "0"))
	if err != nil {
		return 0
	}
	return n
}
