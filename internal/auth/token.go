// Package auth mints and verifies listsync bearer tokens and stores the
// CLI's credentials on disk.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Audience is the aud claim every listsync token carries.
const Audience = "listsync"

// Token verification errors.
var (
	ErrMissingToken = errors.New("missing or invalid bearer token")
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// Claims identify the user a token was issued to.
type Claims struct {
	UserID    string `json:"sub"`
	Email     string `json:"email,omitempty"`
	Audience  string `json:"aud"`
	ExpiresAt int64  `json:"exp"`
}

type tokenHeader struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
}

var encodedHeader = mustEncode(tokenHeader{Alg: "HS256", Typ: "JWT"})

func mustEncode(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(data)
}

// Mint signs an HS256 token for userID valid for ttl.
func Mint(secret, userID, email string, ttl time.Duration, now time.Time) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("%w: empty signing secret", ErrInvalidToken)
	}
	payload, err := json.Marshal(Claims{
		UserID:    userID,
		Email:     email,
		Audience:  Audience,
		ExpiresAt: now.Add(ttl).Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("encode claims: %w", err)
	}
	unsigned := encodedHeader + "." + base64.RawURLEncoding.EncodeToString(payload)
	return unsigned + "." + sign(secret, unsigned), nil
}

func sign(secret, unsigned string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(unsigned))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// ParseBearer verifies an Authorization header value of the form
// "Bearer <token>".
func ParseBearer(authHeader, secret string, now time.Time) (Claims, error) {
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return Claims{}, ErrMissingToken
	}
	return Parse(strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer ")), secret, now)
}

// Parse verifies a raw token and returns its claims.
func Parse(raw, secret string, now time.Time) (Claims, error) {
	if raw == "" {
		return Claims{}, ErrMissingToken
	}
	parts := splitToken(raw)
	if parts == nil {
		return Claims{}, fmt.Errorf("%w: malformed jwt", ErrInvalidToken)
	}

	headerBytes, err := decodeSegment(parts[0])
	if err != nil {
		return Claims{}, fmt.Errorf("%w: header encoding", ErrInvalidToken)
	}
	var header tokenHeader
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return Claims{}, fmt.Errorf("%w: header", ErrInvalidToken)
	}
	if header.Alg != "HS256" {
		return Claims{}, fmt.Errorf("%w: unsupported algorithm %q", ErrInvalidToken, header.Alg)
	}

	sig, err := decodeSegment(parts[2])
	if err != nil {
		return Claims{}, fmt.Errorf("%w: signature encoding", ErrInvalidToken)
	}
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(parts[0] + "." + parts[1]))
	if !hmac.Equal(sig, mac.Sum(nil)) {
		return Claims{}, fmt.Errorf("%w: signature mismatch", ErrInvalidToken)
	}

	payloadBytes, err := decodeSegment(parts[1])
	if err != nil {
		return Claims{}, fmt.Errorf("%w: payload encoding", ErrInvalidToken)
	}
	var claims Claims
	if err := json.Unmarshal(payloadBytes, &claims); err != nil {
		return Claims{}, fmt.Errorf("%w: payload", ErrInvalidToken)
	}
	if claims.UserID == "" {
		return Claims{}, fmt.Errorf("%w: missing sub claim", ErrInvalidToken)
	}
	if claims.Audience != Audience {
		return Claims{}, fmt.Errorf("%w: invalid aud claim", ErrInvalidToken)
	}
	if now.Unix() >= claims.ExpiresAt {
		return Claims{}, ErrTokenExpired
	}
	return claims, nil
}

func splitToken(raw string) []string {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return nil
	}
	return parts
}

func decodeSegment(seg string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(seg)
}
