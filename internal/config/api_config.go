package config

import "time"

type APIConfig interface {
	GetAPIURL() string
	GetAPITimeout() time.Duration
	GetRefreshPath() string
}

type API struct{}

var _ APIConfig = API{}

// GetAPIURL returns the fleet REST API base URL.
func (API) GetAPIURL() string {
	return GetEnv("API_URL", "http://localhost:3000")
}

func (API) GetAPITimeout() time.Duration {
	return GetEnvSeconds("API_TIMEOUT_SECONDS", 10*time.Second)
}

func (API) GetRefreshPath() string {
	return GetEnv("API_REFRESH_PATH", "/auth/refresh")
}
