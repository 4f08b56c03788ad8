package services

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

const adminTokenTTL = 12 * time.Hour

// AdminService authenticates the single operator account and mints bearer
// tokens for the admin API.
type AdminService struct {
	email    string
	password string
	secret   []byte
}

func NewAdminService(email, password, jwtSecret string) *AdminService {
	return &AdminService{
		email:    email,
		password: password,
		secret:   []byte(jwtSecret),
	}
}

// Login checks credentials in constant time and returns a signed token.
func (s *AdminService) Login(email, password string) (string, error) {
	emailOK := subtle.ConstantTimeCompare([]byte(email), []byte(s.email)) == 1
	passwordOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.password)) == 1
	if !emailOK || !passwordOK {
		return "", ErrInvalidCredentials
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   s.email,
		Issuer:    "podomall",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(adminTokenTTL)),
	})
	return token.SignedString(s.secret)
}

// VerifyToken validates a bearer token and returns the admin subject.
func (s *AdminService) VerifyToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{},
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithIssuer("podomall"),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("parsing admin token: %w", err)
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return "", errors.New("invalid admin token")
	}
	return claims.Subject, nil
}
