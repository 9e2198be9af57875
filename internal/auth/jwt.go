package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingToken is returned when no bearer token was presented
	ErrMissingToken = errors.New("missing bearer token")
	// ErrMalformedHeader is returned for an Authorization header that is not "Bearer <token>"
	ErrMalformedHeader = errors.New("invalid authorization header format")
)

// Claims represents JWT claims. UID is the platform user the token acts for.
type Claims struct {
	UID int `json:"uid"`
	jwt.RegisteredClaims
}

var (
	jwtSecret []byte
	jwtIssuer string
)

// InitJWT initializes the JWT secret and the expected issuer.
// An empty issuer disables the issuer check.
func InitJWT(secret, issuer string) {
	jwtSecret = []byte(secret)
	jwtIssuer = issuer
}

// GenerateToken generates a JWT token for uid
func GenerateToken(uid int, expireAt time.Time) (string, error) {
	if len(jwtSecret) == 0 {
		return "", fmt.Errorf("JWT secret not initialized")
	}
	if uid <= 0 {
		return "", fmt.Errorf("invalid uid %d", uid)
	}

	claims := Claims{
		UID: uid,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(uid),
			ExpiresAt: jwt.NewNumericDate(expireAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    jwtIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

// ParseToken parses and validates a JWT token
func ParseToken(tokenString string) (*Claims, error) {
	if len(jwtSecret) == 0 {
		return nil, fmt.Errorf("JWT secret not initialized")
	}

	var opts []jwt.ParserOption
	if jwtIssuer != "" {
		opts = append(opts, jwt.WithIssuer(jwtIssuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Verify signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return jwtSecret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.UID <= 0 {
		return nil, fmt.Errorf("token carries no uid")
	}
	return claims, nil
}

// BearerToken extracts the token from an Authorization header value
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", ErrMalformedHeader
	}
	return strings.TrimSpace(parts[1]), nil
}
