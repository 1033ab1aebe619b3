package config

import "time"

type SecurityConfig interface {
	GetSessionTTL() time.Duration
	GetSessionCookieName() string
	GetCodeTTL() time.Duration
	GetResendInterval() time.Duration
	GetMaxCodeAttempts() int
}

type Security struct{}

var _ SecurityConfig = Security{}

func (Security) GetSessionTTL() time.Duration {
	return GetDurationEnv("SESSION_TTL", 30*24*time.Hour)
}

func (Security) GetSessionCookieName() string {
	return GetEnv("SESSION_COOKIE", "user_session")
}

func (Security) GetCodeTTL() time.Duration {
	return GetDurationEnv("OTP_TTL", 5*time.Minute)
}

func (Security) GetResendInterval() time.Duration {
	return GetDurationEnv("OTP_RESEND_INTERVAL", time.Minute)
}

func (Security) GetMaxCodeAttempts() int {
	return GetIntEnv("OTP_MAX_ATTEMPTS", 5)
}
