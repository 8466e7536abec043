package utils

import (
	"strings"
)

// NormalizeEmail lowercases and trims an email address for storage and lookup
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeReferralCode uppercases a user-supplied referral code
func NormalizeReferralCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
