package config

import "time"

type Config interface {
	EnvConfig
	CorsConfig
	SecurityConfig
	StoreConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetBaseURL() string
	GetSmtpHost() string
	GetSmtpPort() string
	GetSmtpPassword() string
	GetSmtpAccount() string
	GetEnv() string
	IsProduction() bool
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type StoreConfig interface {
	GetDatabaseDSN() string
	GetRedisAddr() string
	GetStoreTimeout() time.Duration
	GetJanitorInterval() time.Duration
}

type mainConfig struct {
	EnvVars
	Cors
	Security
	Store
}

func New() Config {
	return mainConfig{}
}
