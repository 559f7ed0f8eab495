package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the JWT claims expected by the API. The subject is the username.
type Claims struct {
	jwt.RegisteredClaims
	Classification string   `json:"classification"`
	Roles          []string `json:"roles"`
}

// Validator signs and validates HS256 tokens with a shared secret.
type Validator struct {
	secret []byte
	issuer string
}

// NewValidator creates a validator. The secret must not be empty.
func NewValidator(secret, issuer string) (*Validator, error) {
	if secret == "" {
		return nil, errors.New("jwt secret must not be empty")
	}
	return &Validator{secret: []byte(secret), issuer: issuer}, nil
}

// Validate parses a token and returns the caller it names.
func (v *Validator) Validate(tokenStr string) (*User, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("token subject is required")
	}
	return &User{
		Username:       claims.Subject,
		Classification: claims.Classification,
		Roles:          claims.Roles,
	}, nil
}

// Issue signs a token for u valid for ttl.
func (v *Validator) Issue(u *User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.Username,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Classification: u.Classification,
		Roles:          u.Roles,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
