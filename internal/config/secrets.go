package config

import "os"

const defaultJWTSecret = "supersecretkey"

// Secrets holds credentials that never live in config.yaml.
type Secrets struct {
	OpenWeatherAPIKey string
	AnthropicAPIKey   string
	JWTSecret         string
}

// GetSecrets reads API keys and the token signing secret from the environment.
// The JWT secret falls back to a development value; callers should warn when it does.
func GetSecrets() Secrets {
	return Secrets{
		OpenWeatherAPIKey: os.Getenv("OPENWEATHER_API_KEY"),
		AnthropicAPIKey:   os.Getenv("ANTHROPIC_API_KEY"),
		JWTSecret:         getEnv("JWT_SECRET", defaultJWTSecret),
	}
}

// UsesDefaultJWTSecret reports whether s carries the development fallback secret.
func (s Secrets) UsesDefaultJWTSecret() bool {
	return s.JWTSecret == defaultJWTSecret
}
