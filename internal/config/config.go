package config

import (
	"github.com/joho/godotenv"
)

type Config interface {
	EnvConfig
	CorsConfig
	IdentityConfig
	SessionConfig
	RedisConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetAPIBaseURL() string
	GetDataFolder() string
	GetLogLevel() string
	GetEnv() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	Identity
	Session
	Redis
}

func New() Config {
	// Missing .env is fine; plain environment variables still apply.
	_ = godotenv.Load()
	return mainConfig{}
}
