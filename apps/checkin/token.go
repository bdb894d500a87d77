package checkin

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenSession is returned when a valid token belongs to another session
var ErrTokenSession = errors.New("token does not belong to this session")

// Claims binds a guest token to one check-in session
type Claims struct {
	EntityID string `json:"entity_id"`
	Screen   string `json:"screen"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies guest session tokens
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenIssuer creates an HS256 token issuer
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}
}

// Issue returns a token for session
func (t *TokenIssuer) Issue(sessionID, entityID, screen string) (string, error) {
	now := time.Now()
	claims := Claims{
		EntityID: entityID,
		Screen:   screen,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sessionID,
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Verify parses tokenString and checks it was issued for sessionID
func (t *TokenIssuer) Verify(tokenString, sessionID string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is not valid")
	}
	if claims.Subject != sessionID {
		return nil, ErrTokenSession
	}
	return claims, nil
}

// bearerToken extracts the token of an "Authorization: Bearer <token>" header
func bearerToken(header string) string {
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
