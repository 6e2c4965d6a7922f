package orders

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

const otpDigits = 6

var otpSpace = big.NewInt(1_000_000)

// GenerateOTP returns a zero-padded six digit code.
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, otpSpace)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%0*d", otpDigits, n.Int64()), nil
}

// HashOTP stores only a bcrypt digest of the delivery code.
func HashOTP(otp string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(otp), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash otp: %w", err)
	}
	return string(hash), nil
}

// VerifyOTP reports whether otp matches hash.
func VerifyOTP(hash, otp string) bool {
	if hash == "" || otp == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(otp)) == nil
}
