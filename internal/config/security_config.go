package config

import (
	"strings"
	"time"
)

// SecurityConfig holds HTTP hardening settings
type SecurityConfig struct {
	HSTSMaxAge         time.Duration
	CORSAllowedOrigins []string
	PasswordMinLength  int
}

// SecurityConfig returns the security settings derived from the loaded config
func (c *Config) SecurityConfig() SecurityConfig {
	origins := []string{c.FrontendURL}
	if extra := getEnv("CORS_ALLOWED_ORIGINS", ""); extra != "" {
		for _, o := range strings.Split(extra, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
	}

	return SecurityConfig{
		HSTSMaxAge:         31536000 * time.Second, // 1 year
		CORSAllowedOrigins: origins,
		PasswordMinLength:  getEnvInt("PASSWORD_MIN_LENGTH", 6),
	}
}
