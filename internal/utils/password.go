package utils

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHashCost defines the cost for bcrypt password hashing
const PasswordHashCost = 12

// bcrypt ignores input past 72 bytes
const maxPasswordBytes = 72

// PasswordHasher hashes and verifies passwords
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) bool
}

// BcryptHasher is the production PasswordHasher
type BcryptHasher struct {
	Cost int
}

// NewBcryptHasher returns a hasher with the given cost, or PasswordHashCost when cost is 0
func NewBcryptHasher(cost int) BcryptHasher {
	if cost == 0 {
		cost = PasswordHashCost
	}
	return BcryptHasher{Cost: cost}
}

func (h BcryptHasher) Hash(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), h.Cost)
	return string(bytes), err
}

func (h BcryptHasher) Compare(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// PasswordPolicy defines the requirements for password strength
type PasswordPolicy struct {
	MinLength     int
	DisallowEmail bool
}

// DefaultPasswordPolicy returns the policy applied at registration
func DefaultPasswordPolicy(minLength int) PasswordPolicy {
	if minLength <= 0 {
		minLength = 6
	}
	return PasswordPolicy{MinLength: minLength, DisallowEmail: true}
}

// ValidatePassword checks a candidate password for the given account email
func (p PasswordPolicy) ValidatePassword(password, email string) error {
	if len(password) < p.MinLength {
		return fmt.Errorf("password must be at least %d characters long", p.MinLength)
	}
	if len(password) > maxPasswordBytes {
		return fmt.Errorf("password must be at most %d bytes long", maxPasswordBytes)
	}
	if strings.TrimSpace(password) == "" {
		return errors.New("password must not be blank")
	}
	if p.DisallowEmail && email != "" && strings.EqualFold(password, email) {
		return errors.New("password should not be your email address")
	}
	return nil
}
