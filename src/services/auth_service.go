package services

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// AdminTokenTTL is how long an exchanged admin token stays valid
const AdminTokenTTL = 24 * time.Hour

const adminSubject = "admin"

// AuthService checks the administrative caller's credentials.
// The shared secret is configured either in plaintext or as a bcrypt hash;
// the hash wins when both are set.
type AuthService struct {
	secret     string
	secretHash string
	jwtSecret  string
	now        func() time.Time
}

// NewAuthService creates a new admin authentication service
func NewAuthService(secret, secretHash, jwtSecret string) *AuthService {
	return &AuthService{
		secret:     secret,
		secretHash: secretHash,
		jwtSecret:  jwtSecret,
		now:        time.Now,
	}
}

// Configured reports whether any admin secret is set
func (s *AuthService) Configured() bool {
	return s.secret != "" || s.secretHash != ""
}

// VerifySecret compares a presented secret with the configured one
func (s *AuthService) VerifySecret(presented string) bool {
	if presented == "" || !s.Configured() {
		return false
	}
	if s.secretHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(s.secretHash), []byte(presented)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(s.secret)) == 1
}

// IssueToken signs an HS256 admin token
func (s *AuthService) IssueToken() (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(AdminTokenTTL)
	claims := jwt.RegisteredClaims{
		Subject:   adminSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign JWT token: %w", err)
	}

	return signedToken, expiresAt, nil
}

// VerifyToken validates an admin token
func (s *AuthService) VerifyToken(tokenString string) error {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return fmt.Errorf("failed to parse JWT token: %w", err)
	}

	if !token.Valid || claims.Subject != adminSubject {
		return errors.New("invalid JWT token")
	}
	return nil
}

// HashSecret returns a bcrypt hash suitable for admin.api_key_hash
func HashSecret(secret string) (string, error) {
	if len(secret) < 8 {
		return "", errors.New("secret must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash secret: %w", err)
	}
	return string(hash), nil
}
