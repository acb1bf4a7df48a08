package config

import (
	"strings"
	"time"
)

// Session store backends
const (
	SessionStoreMemory = "memory"
	SessionStoreFile   = "file"
	SessionStoreRedis  = "redis"
)

type SessionConfig interface {
	GetSessionStore() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	GetConsoleIdleTimeout() time.Duration
	GetSecureCookies() bool
}

type Session struct{}

var _ SessionConfig = Session{}

// GetSessionStore returns memory, file or redis. Unknown values fall back to memory.
func (Session) GetSessionStore() string {
	switch s := strings.ToLower(GetEnv("SESSION_STORE", SessionStoreMemory)); s {
	case SessionStoreFile, SessionStoreRedis:
		return s
	default:
		return SessionStoreMemory
	}
}

func (Session) GetRedisAddr() string {
	return GetEnv("REDIS_ADDR", "localhost:6379")
}

func (Session) GetRedisPassword() string {
	return GetEnv("REDIS_PASSWORD", "")
}

func (Session) GetRedisDB() int {
	return GetEnvInt("REDIS_DB", 0)
}

// GetConsoleIdleTimeout is how long an unused console stays in memory.
func (Session) GetConsoleIdleTimeout() time.Duration {
	return GetEnvSeconds("CONSOLE_IDLE_SECONDS", 8*time.Hour)
}

func (Session) GetSecureCookies() bool {
	return GetEnvBool("SECURE_COOKIES", false)
}
