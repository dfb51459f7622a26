// ABOUTME: JWT credential verification for realtime handshakes
// ABOUTME: Uses HS256 signing with configurable secret

package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// subjectClaims is the ordered list of claim names tried when extracting the
// subject identifier from a credential. The first non-empty match wins.
// Historically tokens have been issued with any of these, so all three must
// keep working.
var subjectClaims = []string{"id", "user_id", "sub"}

// TokenVerifier validates a bearer credential and extracts the subject ID.
type TokenVerifier interface {
	Verify(credential string) (subject string, err error)
}

// JWTVerifier implements TokenVerifier using HS256 signed JWTs.
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier creates a verifier with the given signing secret.
func NewJWTVerifier(secret []byte) *JWTVerifier {
	return &JWTVerifier{secret: secret}
}

// Verify validates the credential and returns the subject identifier.
// Failures carry a RejectError distinguishing malformed, expired, and
// invalid credentials, since the client-visible rejection differs.
func (v *JWTVerifier) Verify(credential string) (string, error) {
	token, err := jwt.Parse(credential, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return "", Reject(ReasonExpiredCredential, err)
		case errors.Is(err, jwt.ErrTokenMalformed):
			return "", Reject(ReasonMalformedCredential, err)
		default:
			return "", Reject(ReasonInvalidCredential, err)
		}
	}

	if !token.Valid {
		return "", Reject(ReasonInvalidCredential, nil)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", Reject(ReasonMalformedCredential, errors.New("unexpected claims type"))
	}

	for _, name := range subjectClaims {
		if sub, ok := claims[name].(string); ok && sub != "" {
			return sub, nil
		}
	}
	return "", Reject(ReasonMalformedCredential, errors.New("no subject claim"))
}

// Generate creates a new credential for the given subject with expiration.
// Used by the bootstrap command and tests.
func (v *JWTVerifier) Generate(subject string, expiresIn time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(expiresIn).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
