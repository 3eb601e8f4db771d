package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// HostID identifies the single privileged host. There is exactly one host
// credential per deployment; everything beyond that is out of scope.
const HostID = "default_host"

var ErrInvalidHostCode = errors.New("invalid host code")

const hostTokenLifetime = 12 * time.Hour

// AuthService gates every state-mutating session operation except join.
// The shared host code is bcrypt-hashed at startup so the plaintext is not
// kept around; successful logins are exchanged for a signed JWT.
type AuthService struct {
	hostCodeHash []byte
	jwtSecret    string
}

func NewAuthService(hostCode, jwtSecret string) (*AuthService, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(hostCode), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash host code: %w", err)
	}
	return &AuthService{
		hostCodeHash: hash,
		jwtSecret:    jwtSecret,
	}, nil
}

// VerifyHostCode checks a raw shared-secret credential.
func (s *AuthService) VerifyHostCode(code string) bool {
	return bcrypt.CompareHashAndPassword(s.hostCodeHash, []byte(code)) == nil
}

// Login exchanges the shared host code for a bearer token.
func (s *AuthService) Login(code string) (string, error) {
	if !s.VerifyHostCode(code) {
		return "", ErrInvalidHostCode
	}

	claims := jwt.MapClaims{
		"host_id": HostID,
		"iat":     time.Now().Unix(),
		"exp":     time.Now().Add(hostTokenLifetime).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}

// ValidateToken checks a bearer token and returns the host id it carries.
func (s *AuthService) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return "", errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid token claims")
	}
	hostID, ok := claims["host_id"].(string)
	if !ok {
		return "", errors.New("invalid token claims")
	}
	return hostID, nil
}
