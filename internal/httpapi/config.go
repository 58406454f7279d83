package httpapi

import (
	"fmt"
	"strings"
)

const (
	defaultListenAddr    = ":8080"
	defaultAllowedOrigin = "http://localhost:3000"
	defaultSessionIssuer = "tauth"
	defaultSessionCookie = "app_session"

	redesignCostCredits int64 = 1
	maxWebhookBodyBytes int64 = 65536
	authClaimsKey             = "auth_claims"
)

// Config aggregates runtime settings for the HTTP server.
type Config struct {
	ListenAddr        string
	PublicBaseURL     string
	AllowedOrigins    []string
	SessionSigningKey string
	SessionIssuer     string
	SessionCookieName string
}

// Validate ensures the configuration contains sane values.
func (cfg *Config) Validate() error {
	cfg.ListenAddr = defaultIfEmpty(cfg.ListenAddr, defaultListenAddr)
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{defaultAllowedOrigin}
	}
	cfg.SessionIssuer = defaultIfEmpty(cfg.SessionIssuer, defaultSessionIssuer)
	cfg.SessionCookieName = defaultIfEmpty(cfg.SessionCookieName, defaultSessionCookie)
	if strings.TrimSpace(cfg.PublicBaseURL) == "" {
		return fmt.Errorf("public base url is required")
	}
	if len(cfg.SessionSigningKey) == 0 {
		return fmt.Errorf("session signing key is required")
	}
	return nil
}

func defaultIfEmpty(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

// ParseAllowedOrigins splits comma-delimited origins into a slice.
func ParseAllowedOrigins(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	normalized := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			normalized = append(normalized, trimmed)
		}
	}
	return normalized
}
