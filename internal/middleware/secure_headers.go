package middleware

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/softwarepar/backend/internal/config"
)

// SecureHeadersConfig contains configuration for secure headers
type SecureHeadersConfig struct {
	UseHSTS               bool
	HSTSMaxAge            time.Duration
	HSTSIncludeSubdomains bool

	CSPDirectives map[string]string

	XFrameOptions     string
	ReferrerPolicy    string
	PermissionsPolicy string

	// NoStorePrefixes are paths whose responses carry credentials
	NoStorePrefixes []string
}

// DefaultSecureHeadersConfig derives header settings for a JSON API
func DefaultSecureHeadersConfig(sec config.SecurityConfig, production bool) SecureHeadersConfig {
	connect := append([]string{"'self'"}, sec.CORSAllowedOrigins...)
	return SecureHeadersConfig{
		UseHSTS:               production,
		HSTSMaxAge:            sec.HSTSMaxAge,
		HSTSIncludeSubdomains: true,
		CSPDirectives: map[string]string{
			"default-src":     "'none'",
			"connect-src":     strings.Join(connect, " "),
			"frame-ancestors": "'none'",
			"base-uri":        "'none'",
		},
		XFrameOptions:     "DENY",
		ReferrerPolicy:    "strict-origin-when-cross-origin",
		PermissionsPolicy: "camera=(), microphone=(), geolocation=()",
		NoStorePrefixes:   []string{"/api/auth/"},
	}
}

// SecureHeadersMiddleware adds security headers to responses
func SecureHeadersMiddleware(cfg SecureHeadersConfig) gin.HandlerFunc {
	csp := buildCSP(cfg.CSPDirectives)
	hsts := "max-age=" + strconv.FormatInt(int64(cfg.HSTSMaxAge.Seconds()), 10)
	if cfg.HSTSIncludeSubdomains {
		hsts += "; includeSubDomains"
	}

	return func(c *gin.Context) {
		h := c.Writer.Header()
		if cfg.UseHSTS {
			h.Set("Strict-Transport-Security", hsts)
		}
		if csp != "" {
			h.Set("Content-Security-Policy", csp)
		}
		if cfg.XFrameOptions != "" {
			h.Set("X-Frame-Options", cfg.XFrameOptions)
		}
		h.Set("X-Content-Type-Options", "nosniff")
		if cfg.ReferrerPolicy != "" {
			h.Set("Referrer-Policy", cfg.ReferrerPolicy)
		}
		if cfg.PermissionsPolicy != "" {
			h.Set("Permissions-Policy", cfg.PermissionsPolicy)
		}

		for _, prefix := range cfg.NoStorePrefixes {
			if strings.HasPrefix(c.Request.URL.Path, prefix) {
				h.Set("Cache-Control", "no-store")
				h.Set("Pragma", "no-cache")
				break
			}
		}

		c.Next()
	}
}

// buildCSP renders directives in a stable order
func buildCSP(directives map[string]string) string {
	names := make([]string, 0, len(directives))
	for name := range directives {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+" "+directives[name])
	}
	return strings.Join(parts, "; ")
}
