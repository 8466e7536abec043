package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
)

const referralCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// ReferralCodeSuffixLength is the number of random characters after the user id
const ReferralCodeSuffixLength = 4

// GenerateReferralCode returns "PAR" + userID + four characters from [A-Z0-9]
func GenerateReferralCode(userID uint) (string, error) {
	suffix, err := randomFromCharset(ReferralCodeSuffixLength)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("PAR%d%s", userID, suffix), nil
}

func randomFromCharset(length int) (string, error) {
	result := make([]byte, length)
	max := big.NewInt(int64(len(referralCharset)))
	for i := range result {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		result[i] = referralCharset[n.Int64()]
	}
	return string(result), nil
}

// GenerateReference generates a unique reference for payments
func GenerateReference(prefix string) string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	timestamp := time.Now().UTC().Format("20060102")
	return fmt.Sprintf("%s_%s_%s", prefix, timestamp, id[:12])
}
