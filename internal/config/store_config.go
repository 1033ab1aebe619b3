package config

import "time"

type Store struct{}

var _ StoreConfig = Store{}

// GetDatabaseDSN returns the PostgreSQL DSN. Empty means the in-memory store is used.
func (Store) GetDatabaseDSN() string {
	return GetEnv("DATABASE_DSN", "")
}

// GetRedisAddr returns host:port of the Redis used for resend throttling. Optional.
func (Store) GetRedisAddr() string {
	return GetEnv("REDIS_ADDR", "")
}

func (Store) GetStoreTimeout() time.Duration {
	return GetDurationEnv("STORE_TIMEOUT", 3*time.Second)
}

func (Store) GetJanitorInterval() time.Duration {
	return GetDurationEnv("JANITOR_INTERVAL", 15*time.Minute)
}
