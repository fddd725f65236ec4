package utils

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgrijalva/jwt-go"
)

// IdentityClaim is what the identity provider puts in its bearer tokens.
// Subject carries the user id.
type IdentityClaim struct {
	Email    string `json:"email,omitempty"`
	Username string `json:"preferred_username,omitempty"`
	Name     string `json:"name,omitempty"`
	jwt.StandardClaims
}

var ErrJwtSecretMissing = errors.New("AUTH_JWT_SECRET is not set")

func jwtSecret() []byte {
	return []byte(os.Getenv("AUTH_JWT_SECRET"))
}

// JwtGenerate signs an identity token; used by tools and tests.
func JwtGenerate(userId string, email string, name string, lifespan time.Duration) (string, error) {
	secret := jwtSecret()
	if len(secret) == 0 {
		return "", ErrJwtSecretMissing
	}
	now := time.Now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, &IdentityClaim{
		Email: email,
		Name:  name,
		StandardClaims: jwt.StandardClaims{
			Subject:   userId,
			ExpiresAt: now.Add(lifespan).Unix(),
			IssuedAt:  now.Unix(),
		},
	})
	return t.SignedString(secret)
}

func JwtValidate(token string) (*IdentityClaim, error) {
	secret := jwtSecret()
	if len(secret) == 0 {
		return nil, ErrJwtSecretMissing
	}
	claims := &IdentityClaim{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("there's a problem with the signing method")
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// Actor is the createdBy label: email, else username, else user id.
func (c *IdentityClaim) Actor() string {
	switch {
	case c.Email != "":
		return c.Email
	case c.Username != "":
		return c.Username
	}
	return c.Subject
}
