package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt"
)

// TokenIssuer identifies the issuer accepted by ParseToken.
const TokenIssuer = "roomhub-auth"

// GenerateToken signs payload with HS256. It is used by the authentication service
// sharing JWT_SECRET with this server, and by tests.
func GenerateToken(payload *Payload, secretKey string, duration time.Duration) (string, error) {
	now := time.Now()

	payload.StandardClaims = jwt.StandardClaims{
		ExpiresAt: now.Add(duration).Unix(),
		IssuedAt:  now.Unix(),
		Issuer:    TokenIssuer,
		Subject:   payload.ID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, payload)
	return token.SignedString([]byte(secretKey))
}

// ParseToken validates the signature, expiry and issuer of tokenString.
func ParseToken(tokenString string, secretKey string) (*Payload, error) {
	claims := &Payload{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secretKey), nil
	})
	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid or expired token")
	}

	if !claims.VerifyIssuer(TokenIssuer, true) {
		return nil, errors.New("unexpected token issuer")
	}

	if claims.ID == "" {
		return nil, errors.New("token carries no user id")
	}

	return claims, nil
}
