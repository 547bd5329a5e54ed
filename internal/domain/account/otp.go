package account

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// otpTTL is how long a one-time code stays valid.
const otpTTL = 5 * time.Minute

var (
	ErrChallengeInvalid = errors.New("otp challenge invalid or expired")
	ErrCodeMismatch     = errors.New("otp code does not match")
)

// otpClaims binds a phone number to the hash of the code sent to it. The
// token is handed to the client and presented back on verify, so no OTP
// state is stored server-side.
type otpClaims struct {
	jwt.RegisteredClaims
	Phone    string `json:"phone"`
	CodeHash string `json:"code_hash"`
}

// GenerateCode returns a 6-digit numeric one-time code.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("generate otp code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func hashCode(phone, code string) string {
	sum := sha256.Sum256([]byte(phone + ":" + code))
	return hex.EncodeToString(sum[:])
}

// IssueChallenge signs a challenge token for the phone+code pair.
func IssueChallenge(secret []byte, phone, code string, now time.Time) (string, error) {
	claims := otpClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(otpTTL)),
		},
		Phone:    phone,
		CodeHash: hashCode(phone, code),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign otp challenge: %w", err)
	}
	return signed, nil
}

// VerifyChallenge checks the token signature, expiry, phone binding, and code.
func VerifyChallenge(secret []byte, tokenStr, phone, code string) error {
	var claims otpClaims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return ErrChallengeInvalid
	}
	if claims.Phone != phone {
		return ErrChallengeInvalid
	}
	expected := hashCode(phone, code)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(claims.CodeHash)) != 1 {
		return ErrCodeMismatch
	}
	return nil
}
