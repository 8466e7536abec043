package utils

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestGenerateReferralCodeFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^PAR42[A-Z0-9]{4}$`)
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		code, err := GenerateReferralCode(42)
		require.NoError(t, err)
		assert.Regexp(t, pattern, code)
		seen[code] = true
	}
	assert.Greater(t, len(seen), 150)
}

func TestGenerateReference(t *testing.T) {
	a := GenerateReference("SP")
	b := GenerateReference("SP")
	assert.Regexp(t, `^SP_\d{8}_[0-9A-F]{12}$`, a)
	assert.NotEqual(t, a, b)
}

func TestJWTRoundTrip(t *testing.T) {
	m := NewJWTManager("secret", time.Hour)
	token, err := m.GenerateToken(7, "p1@x.com", "partner")
	require.NoError(t, err)

	claims, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, "partner", claims.Role)
}

func TestJWTRejectsExpiredAndForeignTokens(t *testing.T) {
	m := NewJWTManager("secret", time.Hour)
	m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := m.GenerateToken(7, "p1@x.com", "partner")
	require.NoError(t, err)
	_, err = m.ValidateToken(expired)
	assert.Error(t, err)

	other := NewJWTManager("other-secret", time.Hour)
	foreign, err := other.GenerateToken(7, "p1@x.com", "partner")
	require.NoError(t, err)
	_, err = NewJWTManager("secret", time.Hour).ValidateToken(foreign)
	assert.Error(t, err)
}

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)
	hash, err := h.Hash("hunter22")
	require.NoError(t, err)
	assert.True(t, h.Compare(hash, "hunter22"))
	assert.False(t, h.Compare(hash, "hunter23"))
	assert.Equal(t, PasswordHashCost, NewBcryptHasher(0).Cost)
}

func TestPasswordPolicy(t *testing.T) {
	p := DefaultPasswordPolicy(6)
	assert.NoError(t, p.ValidatePassword("abc123", "p1@x.com"))
	assert.Error(t, p.ValidatePassword("abc", "p1@x.com"))
	assert.Error(t, p.ValidatePassword("      ", "p1@x.com"))
	assert.Error(t, p.ValidatePassword("P1@X.com", "p1@x.com"))
}

func TestHMAC(t *testing.T) {
	sig := SignHMAC("id:1;ts:2;", "key")
	assert.Len(t, sig, 64)
	assert.True(t, VerifyHMAC("id:1;ts:2;", sig, "key"))
	assert.False(t, VerifyHMAC("id:1;ts:3;", sig, "key"))
}

func TestNormalizers(t *testing.T) {
	assert.Equal(t, "p1@x.com", NormalizeEmail("  P1@X.com "))
	assert.Equal(t, "PAR1ABCD", NormalizeReferralCode(" par1abcd"))
}
