package security

import (
	"strings"
	"sync"
	"time"
)

// LoginGuardConfig holds the thresholds for failed sign-in lockouts
type LoginGuardConfig struct {
	MaxFailuresPerEmail int
	MaxFailuresPerIP    int
	WindowDuration      time.Duration
	LockoutDuration     time.Duration
}

// DefaultLoginGuardConfig returns sensible defaults
func DefaultLoginGuardConfig() LoginGuardConfig {
	return LoginGuardConfig{
		MaxFailuresPerEmail: 5,
		MaxFailuresPerIP:    20,
		WindowDuration:      15 * time.Minute,
		LockoutDuration:     15 * time.Minute,
	}
}

// LoginGuard tracks failed sign-in attempts by email and by client IP and
// blocks further attempts once either key crosses its threshold.
type LoginGuard struct {
	mu     sync.Mutex
	email  map[string][]time.Time
	ip     map[string][]time.Time
	config LoginGuardConfig
	now    func() time.Time
}

// NewLoginGuard creates a new login guard
func NewLoginGuard(config LoginGuardConfig) *LoginGuard {
	return &LoginGuard{
		email:  make(map[string][]time.Time),
		ip:     make(map[string][]time.Time),
		config: config,
		now:    time.Now,
	}
}

// RecordFailure records a failed attempt for the email and ip
func (g *LoginGuard) RecordFailure(email, ip string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if key := normalizeEmail(email); key != "" {
		g.email[key] = append(g.prune(g.email[key], now), now)
	}
	if ip != "" {
		g.ip[ip] = append(g.prune(g.ip[ip], now), now)
	}
}

// Blocked reports whether attempts are locked out and until when
func (g *LoginGuard) Blocked(email, ip string) (bool, time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if key := normalizeEmail(email); key != "" {
		if until, ok := g.lockedUntil(g.email, key, g.config.MaxFailuresPerEmail, now); ok {
			return true, until
		}
	}
	if ip != "" {
		if until, ok := g.lockedUntil(g.ip, ip, g.config.MaxFailuresPerIP, now); ok {
			return true, until
		}
	}
	return false, time.Time{}
}

// Reset clears failures recorded for the email after a successful sign-in
func (g *LoginGuard) Reset(email string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.email, normalizeEmail(email))
}

func (g *LoginGuard) lockedUntil(attempts map[string][]time.Time, key string, max int, now time.Time) (time.Time, bool) {
	if max <= 0 {
		return time.Time{}, false
	}
	recent := g.prune(attempts[key], now)
	if len(recent) == 0 {
		delete(attempts, key)
		return time.Time{}, false
	}
	attempts[key] = recent
	if len(recent) < max {
		return time.Time{}, false
	}
	until := recent[len(recent)-1].Add(g.config.LockoutDuration)
	if now.Before(until) {
		return until, true
	}
	return time.Time{}, false
}

// prune drops attempts older than the window
func (g *LoginGuard) prune(attempts []time.Time, now time.Time) []time.Time {
	cutoff := now.Add(-g.config.WindowDuration)
	kept := attempts[:0]
	for _, at := range attempts {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	return kept
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
