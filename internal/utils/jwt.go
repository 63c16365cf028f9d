package utils

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrSealExpired and ErrSealInvalid are returned by OpenPayload.
var (
	ErrSealExpired = errors.New("sealed payload expired")
	ErrSealInvalid = errors.New("sealed payload invalid")
)

// payloadClaims carries an arbitrary JSON document under "data".  Subject
// names the slot the payload was written for so a token cannot be replayed
// into another slot.
type payloadClaims struct {
	Data json.RawMessage `json:"data"`
	jwt.RegisteredClaims
}

// SealPayload signs payload as an HS256 JWT with sub=subject, iat=issuedAt
// and exp=issuedAt+ttl.
func SealPayload(secret []byte, subject string, payload any, issuedAt time.Time, ttl time.Duration) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("seal: encode payload: %w", err)
	}
	claims := payloadClaims{
		Data: data,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(secret)
}

// OpenPayload verifies token at now and decodes its payload into out.  An
// expired token yields ErrSealExpired; a bad signature, a foreign
// algorithm or a subject other than subject yields ErrSealInvalid.
func OpenPayload(secret []byte, subject, token string, now time.Time, out any) error {
	var claims payloadClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
		jwt.WithSubject(subject),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrSealExpired
	case err != nil:
		return fmt.Errorf("%w: %v", ErrSealInvalid, err)
	}
	if err := json.Unmarshal(claims.Data, out); err != nil {
		return fmt.Errorf("%w: decode payload: %v", ErrSealInvalid, err)
	}
	return nil
}

// RandomSecret returns n bytes of crypto randomness, hex encoded.  Used as
// a per-process signing key when none is configured.
func RandomSecret(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
