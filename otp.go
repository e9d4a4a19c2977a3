package identity

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// CodeLength is the number of digits in a one-time code.
const CodeLength = 6

var codeSpace = big.NewInt(1000000)

// DefaultVerifyWindow is how long signup and login codes stay valid.
const DefaultVerifyWindow = 10 * time.Minute

// DefaultResetWindow is how long forgot-password codes stay valid.
const DefaultResetWindow = 15 * time.Minute

// GenerateOTP draws a uniform 6 digit code, zero padded. The code space is
// 000000-999999; collisions across purposes are harmless because codes only
// match on the exact (account, code, purpose) triple.
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// MustGenerateOTP panics on entropy failure. Entropy exhaustion is not a
// recoverable condition for an auth service.
func MustGenerateOTP() string {
	code, err := GenerateOTP()
	if err != nil {
		panic("identity: otp generation failed: " + err.Error())
	}
	return code
}

// WindowFor returns the validity window for a purpose.
func WindowFor(purpose OTPPurpose) time.Duration {
	if purpose == PurposeForgotPassword {
		return DefaultResetWindow
	}
	return DefaultVerifyWindow
}
